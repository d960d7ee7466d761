// Package config provides configuration loading and management for timeslice.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"timeslice/internal/models"
	"timeslice/pkg/imageio"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Slicing holds the geometric parameters of the composite
	Slicing models.SliceConfiguration `yaml:"slicing"`

	// Processing parameters
	Processing struct {
		// NumCores specifies how many goroutines composite the rows of one image
		NumCores int `yaml:"numCores"`

		// Composite selects direct copy or weighted accumulation
		Composite models.CompositeMode `yaml:"composite"`
	} `yaml:"processing"`

	// Preview parameters
	Preview struct {
		// MaxSize bounds the thumbnail width and height
		MaxSize int `yaml:"maxSize"`

		// Resampler is catmullrom, bilinear or lanczos
		Resampler string `yaml:"resampler"`
	} `yaml:"preview"`

	// Output parameters
	Output struct {
		// File is the final render path; its extension picks the format
		File string `yaml:"file"`

		// Quality is the JPEG quality, 1 to 100
		Quality int `yaml:"quality"`

		// Verbose enables debug logging
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{Slicing: models.DefaultSliceConfiguration()}

	cfg.Processing.NumCores = runtime.NumCPU()
	cfg.Processing.Composite = models.CompositeDirect

	cfg.Preview.MaxSize = imageio.DefaultThumbnailSize
	cfg.Preview.Resampler = imageio.ResampleCatmullRom

	cfg.Output.File = imageio.DefaultOutput
	cfg.Output.Quality = imageio.DefaultQuality
	cfg.Output.Verbose = false

	return cfg
}

// Validate checks the values a YAML file may have broken.
func (c *Config) Validate() error {
	if err := c.Slicing.Validate(); err != nil {
		return err
	}
	if c.Preview.MaxSize < 1 {
		return fmt.Errorf("preview.maxSize must be positive, got %d", c.Preview.MaxSize)
	}
	switch c.Preview.Resampler {
	case "", imageio.ResampleCatmullRom, imageio.ResampleBiLinear, imageio.ResampleLanczos:
	default:
		return fmt.Errorf("unknown preview.resampler %q", c.Preview.Resampler)
	}
	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100, got %d", c.Output.Quality)
	}
	if c.Output.File == "" {
		return errors.New("output.file must not be empty")
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Keys missing from the file keep their defaults
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
