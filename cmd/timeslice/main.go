package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"golang.org/x/term"

	"timeslice/internal/logging"
	"timeslice/internal/models"
	"timeslice/pkg/compositing"
	"timeslice/pkg/config"
	"timeslice/pkg/imageio"
	"timeslice/pkg/visualization"
)

// options holds the command line flags
type options struct {
	inputDir     string
	configPath   string
	initConfig   bool
	outputPath   string
	quality      int
	sliceType    string
	angle        float64
	scaleX       float64
	scaleY       float64
	blending     float64
	reverse      bool
	radialStart  float64
	coverageDeg  float64
	originX      float64
	originY      float64
	gridRows     int
	edgeFill     bool
	composite    string
	numCores     int
	preview      bool
	coverage     bool
	ownershipMap string
	verbose      bool
}

// registerFlags defines the command line flags on fs
func registerFlags(fs *flag.FlagSet) *options {
	d := models.DefaultSliceConfiguration()
	o := &options{}
	fs.StringVar(&o.inputDir, "input", "", "Directory containing the image stack")
	fs.StringVar(&o.configPath, "config", "timeslice.yaml", "YAML configuration file (missing file means defaults)")
	fs.BoolVar(&o.initConfig, "init-config", false, "Write a default configuration file to -config and exit")
	fs.StringVar(&o.outputPath, "output", imageio.DefaultOutput, "Output image; the extension picks jpg, png, tif or bmp")
	fs.IntVar(&o.quality, "quality", imageio.DefaultQuality, "JPEG quality (1-100)")
	fs.StringVar(&o.sliceType, "type", d.Type.String(), "Slicing strategy: linear, radial or grid")
	fs.Float64Var(&o.angle, "angle", d.Angle, "Linear fan rotation in degrees")
	fs.Float64Var(&o.scaleX, "scale-x", d.ScaleX, "Linear fan horizontal scale")
	fs.Float64Var(&o.scaleY, "scale-y", d.ScaleY, "Linear fan vertical scale")
	fs.Float64Var(&o.blending, "blending", d.Blending, "Linear seam softness (0 gives hard edges)")
	fs.BoolVar(&o.reverse, "reverse", d.Reverse, "Treat the last image as the first")
	fs.Float64Var(&o.radialStart, "radial-start", d.RadialStart, "Angle where the first radial wedge begins, in degrees")
	fs.Float64Var(&o.coverageDeg, "radial-coverage", d.RadialCoverage, "Total angle shared by the radial wedges, in degrees")
	fs.Float64Var(&o.originX, "origin-x", d.OriginX, "Radial pivot x, 0 (left) to 1 (right)")
	fs.Float64Var(&o.originY, "origin-y", d.OriginY, "Radial pivot y, 0 (bottom) to 1 (top)")
	fs.IntVar(&o.gridRows, "rows", d.GridRows, "Grid rows")
	fs.BoolVar(&o.edgeFill, "edge-fill", d.LinearEdgeFill, "Let the outer linear bands fill the canvas beyond the fan")
	fs.StringVar(&o.composite, "composite", models.CompositeDirect.String(), "Compositing mode: direct or weighted")
	fs.IntVar(&o.numCores, "cores", 0, "Goroutines per image (default: from config, all available)")
	fs.BoolVar(&o.preview, "preview", false, "Render from thumbnails instead of the full resolution images")
	fs.BoolVar(&o.coverage, "coverage", false, "Print how the configuration shares the canvas between images")
	fs.StringVar(&o.ownershipMap, "ownership-map", "", "Also write an image colouring each pixel by the image that owns it")
	fs.BoolVar(&o.verbose, "verbose", false, "Enable debug logging")
	return o
}

// apply copies the flags set on fs into cfg. Flags left at their defaults
// keep the config file values.
func (o *options) apply(fs *flag.FlagSet, cfg *config.Config) error {
	var errs error
	fs.Visit(func(f *flag.Flag) {
		var err error
		switch f.Name {
		case "output":
			cfg.Output.File = o.outputPath
		case "quality":
			cfg.Output.Quality = o.quality
		case "type":
			cfg.Slicing.Type, err = models.ParseSliceType(o.sliceType)
		case "angle":
			cfg.Slicing.Angle = o.angle
		case "scale-x":
			cfg.Slicing.ScaleX = o.scaleX
		case "scale-y":
			cfg.Slicing.ScaleY = o.scaleY
		case "blending":
			cfg.Slicing.Blending = o.blending
		case "reverse":
			cfg.Slicing.Reverse = o.reverse
		case "radial-start":
			cfg.Slicing.RadialStart = o.radialStart
		case "radial-coverage":
			cfg.Slicing.RadialCoverage = o.coverageDeg
		case "origin-x":
			cfg.Slicing.OriginX = o.originX
		case "origin-y":
			cfg.Slicing.OriginY = o.originY
		case "rows":
			cfg.Slicing.GridRows = o.gridRows
		case "edge-fill":
			cfg.Slicing.LinearEdgeFill = o.edgeFill
		case "composite":
			cfg.Processing.Composite, err = models.ParseCompositeMode(o.composite)
		case "cores":
			cfg.Processing.NumCores = o.numCores
		case "verbose":
			cfg.Output.Verbose = o.verbose
		}
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("-%s: %w", f.Name, err))
		}
	})
	if errs != nil {
		return errs
	}
	return cfg.Validate()
}

func main() {
	// Parse command line arguments
	opts := registerFlags(flag.CommandLine)
	flag.Parse()

	if opts.initConfig {
		if err := config.CreateDefaultConfigFile(opts.configPath); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", opts.configPath)
		return
	}

	// Validate inputs
	if opts.inputDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags given on the command line win over the config file
	if err := opts.apply(flag.CommandLine, cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	level := slog.LevelInfo
	if cfg.Output.Verbose {
		level = slog.LevelDebug
	}
	logging.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	paths, err := imageio.ListImages(opts.inputDir)
	if err != nil {
		log.Fatalf("Failed to list images: %v", err)
	}

	fmt.Println("================================")
	fmt.Println("TIME SLICE COMPOSITOR")
	fmt.Printf("%d images, %s slicing, %s compositing\n", len(paths), cfg.Slicing.Type, cfg.Processing.Composite)
	fmt.Println("================================")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if opts.coverage || opts.ownershipMap != "" {
		if err := diagnose(ctx, cfg, paths, opts.coverage, opts.ownershipMap); err != nil {
			log.Fatalf("Diagnostics failed: %v", err)
		}
	}

	session := compositing.NewSession(paths, imageio.NewThumbnailCache(cfg.Preview.MaxSize, cfg.Preview.Resampler))
	session.Sink = newProgress(paths)
	session.Composite = cfg.Processing.Composite
	session.NumCores = cfg.Processing.NumCores

	encoder := imageio.NewFileEncoder(cfg.Output.File, cfg.Output.Quality)

	startTime := time.Now()
	var run *compositing.Run
	if opts.preview {
		fmt.Println("Compositing preview thumbnails...")
		run = session.Preview(ctx, cfg.Slicing)
	} else {
		fmt.Println("Compositing full resolution images...")
		run = session.Render(ctx, cfg.Slicing, encoder)
	}

	if err := run.Wait(); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println("\nInterrupted, no output written")
			os.Exit(130)
		}
		var sizeErr *compositing.SizeMismatchError
		if errors.As(err, &sizeErr) {
			log.Fatalf("All images must match the first one: %v", sizeErr)
		}
		log.Fatalf("Compositing failed: %v", err)
	}

	if opts.preview {
		out, err := encoder.Encode(ctx, run.Result())
		if err != nil {
			log.Fatalf("Failed to write preview: %v", err)
		}
		fmt.Printf("Preview saved to: %s\n", out)
	}

	fmt.Printf("Completed in %.2f seconds using %d cores\n", time.Since(startTime).Seconds(), cfg.Processing.NumCores)
}

// diagnose prints the coverage report and writes the ownership map for the
// size of the first image.
func diagnose(ctx context.Context, cfg *config.Config, paths []string, report bool, mapPath string) error {
	first, err := imageio.LoadImage(paths[0])
	if err != nil {
		return err
	}
	size := first.Bounds().Size()

	viewer, err := visualization.NewViewer(cfg.Slicing, size.X, size.Y, len(paths))
	if err != nil {
		return err
	}

	if report {
		fmt.Printf("\nCoverage for a %dx%d canvas:\n", size.X, size.Y)
		if err := viewer.Coverage().WriteReport(os.Stdout); err != nil {
			return err
		}
		fmt.Println()
	}
	if mapPath != "" {
		out, err := viewer.SaveOwnershipMap(ctx, mapPath)
		if err != nil {
			return err
		}
		fmt.Printf("Ownership map saved to: %s\n", out)
	}
	return nil
}

// progress prints run events, rewriting a single line when stdout is a
// terminal.
type progress struct {
	paths []string
	tty   bool
}

func newProgress(paths []string) *progress {
	return &progress{
		paths: paths,
		tty:   term.IsTerminal(int(os.Stdout.Fd())),
	}
}

func (p *progress) Notify(e compositing.Event) {
	switch e.Kind {
	case compositing.EventInfo:
		fmt.Println(e.Message)
	case compositing.EventProgress, compositing.EventPreviewReady:
		line := fmt.Sprintf("[%d/%d] %s", e.Index+1, len(p.paths), filepath.Base(p.paths[e.Layer]))
		if e.Snapshot != nil {
			line += fmt.Sprintf(" %s", snapshotSize(e.Snapshot))
		}
		if p.tty {
			fmt.Printf("\r\033[K%s", line)
			if e.Index+1 == len(p.paths) {
				fmt.Println()
			}
		} else {
			fmt.Println(line)
		}
	case compositing.EventError:
		if p.tty {
			fmt.Println()
		}
		fmt.Printf("Error: %v\n", e.Err)
	case compositing.EventDone:
		fmt.Printf("Output saved to: %s\n", e.Output)
	}
}

func snapshotSize(img *image.RGBA) string {
	return fmt.Sprintf("(%dx%d)", img.Rect.Dx(), img.Rect.Dy())
}
