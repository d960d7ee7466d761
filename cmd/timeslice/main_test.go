package main

import (
	"errors"
	"flag"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"

	"timeslice/internal/models"
	"timeslice/pkg/config"
)

// parseFlags registers the flags on a fresh set and parses args
func parseFlags(t *testing.T, args ...string) (*flag.FlagSet, *options) {
	t.Helper()
	fs := flag.NewFlagSet("timeslice", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	opts := registerFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Failed to parse %v: %v", args, err)
	}
	return fs, opts
}

// TestFlagsOverrideSlicing verifies that every slicing flag reaches the config
func TestFlagsOverrideSlicing(t *testing.T) {
	fs, opts := parseFlags(t,
		"-type", "radial",
		"-angle", "15",
		"-scale-x", "2",
		"-scale-y", "0.5",
		"-blending", "0.25",
		"-reverse",
		"-radial-start", "10",
		"-radial-coverage", "360",
		"-origin-x", "0.25",
		"-origin-y", "0.75",
		"-rows", "3",
		"-edge-fill",
		"-composite", "weighted",
	)

	cfg := config.DefaultConfig()
	if err := opts.apply(fs, cfg); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	want := models.SliceConfiguration{
		Type:           models.Radial,
		Angle:          15,
		ScaleX:         2,
		ScaleY:         0.5,
		Reverse:        true,
		Blending:       0.25,
		RadialCoverage: 360,
		RadialStart:    10,
		OriginX:        0.25,
		OriginY:        0.75,
		GridRows:       3,
		LinearEdgeFill: true,
	}
	if diff := cmp.Diff(want, cfg.Slicing); diff != "" {
		t.Errorf("Slicing mismatch (-want +got):\n%s", diff)
	}
	if cfg.Processing.Composite != models.CompositeWeighted {
		t.Errorf("Expected weighted compositing, got %v", cfg.Processing.Composite)
	}
}

// TestUnsetFlagsKeepConfig verifies that defaults do not clobber file values
func TestUnsetFlagsKeepConfig(t *testing.T) {
	fs, opts := parseFlags(t, "-angle", "5")

	cfg := config.DefaultConfig()
	cfg.Slicing.OriginX = 0.9
	cfg.Slicing.ScaleY = 3
	cfg.Output.File = "from-file.png"

	if err := opts.apply(fs, cfg); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if cfg.Slicing.Angle != 5 {
		t.Errorf("Expected angle 5, got %v", cfg.Slicing.Angle)
	}
	if cfg.Slicing.OriginX != 0.9 || cfg.Slicing.ScaleY != 3 || cfg.Output.File != "from-file.png" {
		t.Errorf("Expected file values to survive, got originX %v scaleY %v file %s",
			cfg.Slicing.OriginX, cfg.Slicing.ScaleY, cfg.Output.File)
	}
}

func TestFlagsInvalid(t *testing.T) {
	fs, opts := parseFlags(t, "-type", "spiral", "-composite", "additive")
	if err := opts.apply(fs, config.DefaultConfig()); err == nil {
		t.Error("Expected an error for unknown type and composite mode")
	}

	fs, opts = parseFlags(t, "-blending", "-1")
	if err := opts.apply(fs, config.DefaultConfig()); !errors.Is(err, models.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for negative blending, got %v", err)
	}
}
