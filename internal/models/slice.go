package models

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when a slice configuration cannot be turned
// into run geometry.
var ErrInvalidConfig = errors.New("invalid slice configuration")

// SliceType selects the geometric rule that assigns output pixels to
// source images.
type SliceType int

const (
	// Linear lays the images out as a rotated, scaled fan of soft-edged bands.
	Linear SliceType = iota

	// Radial splits the canvas into pie wedges around an origin point.
	Radial

	// Grid tiles the canvas into rows and columns, one cell per image.
	Grid
)

func (t SliceType) String() string {
	switch t {
	case Linear:
		return "linear"
	case Radial:
		return "radial"
	case Grid:
		return "grid"
	default:
		return fmt.Sprintf("SliceType(%d)", int(t))
	}
}

// ParseSliceType parses the names produced by String, case-insensitively.
func ParseSliceType(s string) (SliceType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linear":
		return Linear, nil
	case "radial":
		return Radial, nil
	case "grid":
		return Grid, nil
	}
	return 0, fmt.Errorf("unknown slice type %q (must be linear, radial or grid)", s)
}

// MarshalYAML stores the slice type by name.
func (t SliceType) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

// UnmarshalYAML accepts the slice type by name.
func (t *SliceType) UnmarshalYAML(value *yaml.Node) error {
	var name string
	if err := value.Decode(&name); err != nil {
		return err
	}
	parsed, err := ParseSliceType(name)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// SliceConfiguration holds every parameter of the slicing geometry.
// It is owned by the caller and only read during a run.
type SliceConfiguration struct {
	// Type is the slicing strategy
	Type SliceType `yaml:"type"`

	// Angle rotates the linear fan, in degrees
	Angle float64 `yaml:"angle"`

	// ScaleX and ScaleY stretch the linear fan along each axis
	ScaleX float64 `yaml:"scaleX"`
	ScaleY float64 `yaml:"scaleY"`

	// Reverse flips which image is treated as first and last
	Reverse bool `yaml:"reverse"`

	// Blending is the width of the feathered seam between linear bands.
	// Values below 0.01 give hard edges.
	Blending float64 `yaml:"blending"`

	// RadialCoverage is the total angle shared by all radial wedges, in degrees
	RadialCoverage float64 `yaml:"radialCoverage"`

	// RadialStart is the angle at which the first wedge begins, in degrees
	RadialStart float64 `yaml:"radialStart"`

	// OriginX and OriginY locate the radial pivot, normalized to the canvas
	OriginX float64 `yaml:"originX"`
	OriginY float64 `yaml:"originY"`

	// GridRows is the number of grid rows; columns are derived from the image count
	GridRows int `yaml:"gridRows"`

	// LinearEdgeFill lets the first and last linear bands claim the canvas
	// area beyond the fan with full weight instead of leaving it untouched.
	LinearEdgeFill bool `yaml:"linearEdgeFill"`
}

// DefaultSliceConfiguration returns the stock slicing parameters.
func DefaultSliceConfiguration() SliceConfiguration {
	return SliceConfiguration{
		Type:           Linear,
		Angle:          40,
		ScaleX:         1,
		ScaleY:         1,
		Blending:       1,
		RadialCoverage: 180,
		RadialStart:    -90,
		OriginX:        0.5,
		OriginY:        0,
		GridRows:       2,
	}
}

// Validate reports parameters that can never produce a usable run.
// The error wraps ErrInvalidConfig.
func (c SliceConfiguration) Validate() error {
	switch c.Type {
	case Linear, Radial, Grid:
	default:
		return fmt.Errorf("%w: %v", ErrInvalidConfig, c.Type)
	}

	for _, f := range []struct {
		name  string
		value float64
	}{
		{"angle", c.Angle},
		{"scaleX", c.ScaleX},
		{"scaleY", c.ScaleY},
		{"blending", c.Blending},
		{"radialCoverage", c.RadialCoverage},
		{"radialStart", c.RadialStart},
		{"originX", c.OriginX},
		{"originY", c.OriginY},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s is not a finite number", ErrInvalidConfig, f.name)
		}
	}

	if c.Blending < 0 {
		return fmt.Errorf("%w: blending must be non-negative, got %g", ErrInvalidConfig, c.Blending)
	}
	if c.GridRows < 1 {
		return fmt.Errorf("%w: gridRows must be at least 1, got %d", ErrInvalidConfig, c.GridRows)
	}
	return nil
}

// RenderMode selects between the fast thumbnail preview and the full
// resolution render.
type RenderMode int

const (
	Preview RenderMode = iota
	Final
)

func (m RenderMode) String() string {
	if m == Final {
		return "final"
	}
	return "preview"
}

// CompositeMode controls how an accepted pixel is written to the canvas.
type CompositeMode int

const (
	// CompositeDirect copies the source pixel and ignores the blend weight.
	CompositeDirect CompositeMode = iota

	// CompositeWeighted adds weight*source to the existing canvas pixel,
	// saturating each channel.
	CompositeWeighted
)

func (m CompositeMode) String() string {
	switch m {
	case CompositeDirect:
		return "direct"
	case CompositeWeighted:
		return "weighted"
	default:
		return fmt.Sprintf("CompositeMode(%d)", int(m))
	}
}

// ParseCompositeMode parses "direct" or "weighted".
func ParseCompositeMode(s string) (CompositeMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "direct", "":
		return CompositeDirect, nil
	case "weighted":
		return CompositeWeighted, nil
	}
	return 0, fmt.Errorf("unknown composite mode %q (must be direct or weighted)", s)
}

// MarshalYAML stores the composite mode by name.
func (m CompositeMode) MarshalYAML() (interface{}, error) {
	return m.String(), nil
}

// UnmarshalYAML accepts the composite mode by name.
func (m *CompositeMode) UnmarshalYAML(value *yaml.Node) error {
	var name string
	if err := value.Decode(&name); err != nil {
		return err
	}
	parsed, err := ParseCompositeMode(name)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
