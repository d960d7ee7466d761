// Package compositing drives the slicing strategies over an image stack and
// writes the result into a single output canvas.
//
// A Processor performs exactly one run. Images are visited in stack order;
// the logical index handed to the strategy is reversed when the
// configuration asks for it. After each image the processor notifies its
// Sink and polls its context, so cancellation takes effect at image
// boundaries only.
package compositing

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"

	"timeslice/internal/logging"
	"timeslice/internal/models"
	"timeslice/pkg/imageio"
	"timeslice/pkg/slicing"
)

// LayerSource provides the images of a stack by index.
type LayerSource interface {
	// Len returns the number of images.
	Len() int

	// Name identifies image i in messages.
	Name(i int) string

	// Layer returns image i. It may decode from disk.
	Layer(ctx context.Context, i int) (image.Image, error)
}

// Encoder receives the finished canvas of a final render and returns where
// it was written.
type Encoder interface {
	Encode(ctx context.Context, img image.Image) (string, error)
}

// State is the lifecycle state of a Processor.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateAborted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAborted || s == StateFailed
}

// Params configures one compositing run.
type Params struct {
	// Mode selects preview (snapshot after each image) or final (progress
	// events and an encoded result).
	Mode models.RenderMode

	// Slicing is the geometric configuration. It is read, never modified.
	Slicing models.SliceConfiguration

	// Layers is the ordered image stack.
	Layers LayerSource

	// Sink receives notifications; nil discards them.
	Sink Sink

	// Encoder writes the final render. Required in final mode.
	Encoder Encoder

	// Composite selects how accepted pixels are written.
	Composite models.CompositeMode

	// NumCores splits the rows of each image across this many goroutines.
	// Values below 2 process rows serially. Output is identical either way.
	NumCores int
}

// Processor composites one image stack. It is not reusable: create a new
// Processor for every run.
type Processor struct {
	params *Params
	id     uuid.UUID
	state  atomic.Int32
	sink   Sink

	canvas *image.RGBA
	result *image.RGBA
}

// NewProcessor creates a processor in the idle state.
func NewProcessor(params *Params) *Processor {
	p := &Processor{
		params: params,
		id:     uuid.New(),
		sink:   params.Sink,
	}
	if p.sink == nil {
		p.sink = nopSink{}
	}
	return p
}

// ID uniquely identifies this run in logs.
func (p *Processor) ID() string { return p.id.String() }

// State returns the current lifecycle state.
func (p *Processor) State() State { return State(p.state.Load()) }

// Result returns a copy of the canvas once the run has completed, or nil.
func (p *Processor) Result() *image.RGBA {
	if p.State() != StateCompleted {
		return nil
	}
	return cloneRGBA(p.result)
}

// Process runs the compositing loop on the calling goroutine.
//
// It returns nil when the run completed, the context's error when it was
// cancelled, and otherwise an error matching one of the package's Err
// values. Failures are also reported to the Sink as an EventError;
// cancellation is not.
func (p *Processor) Process(ctx context.Context) error {
	if !p.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrAlreadyStarted
	}

	log := logging.Logger().With("run", p.ID(), "mode", p.params.Mode.String())
	start := time.Now()

	err := p.run(ctx, log)
	switch {
	case err == nil:
		p.result = p.canvas
		p.state.Store(int32(StateCompleted))
		log.Info("run completed", "elapsed", time.Since(start))
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		p.state.Store(int32(StateAborted))
		log.Info("run aborted", "elapsed", time.Since(start))
	default:
		p.state.Store(int32(StateFailed))
		log.Error("run failed", "error", err)
		p.sink.Notify(Event{Kind: EventError, Err: err})
	}
	p.canvas = nil
	return err
}

// Start runs Process on a new goroutine. The returned Run can cancel it and
// wait for its outcome.
func (p *Processor) Start(ctx context.Context) *Run {
	ctx, cancel := context.WithCancel(ctx)
	r := &Run{
		proc:   p,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(r.done)
		defer cancel()
		r.err = p.Process(ctx)
	}()
	return r
}

func (p *Processor) run(ctx context.Context, log *slog.Logger) error {
	final := p.params.Mode == models.Final
	if final {
		p.sink.Notify(Event{Kind: EventStarted})
		p.sink.Notify(Event{Kind: EventInfo, Message: "Started"})
	}

	layers := p.params.Layers
	n := 0
	if layers != nil {
		n = layers.Len()
	}
	if n < 2 {
		return fmt.Errorf("%w: need at least 2, got %d", ErrInsufficientInput, n)
	}
	if final && p.params.Encoder == nil {
		return fmt.Errorf("%w: final render without an encoder", ErrInvalidConfig)
	}

	first, err := p.loadLayer(ctx, 0)
	if err != nil {
		return err
	}

	p.canvas = newCanvas(first, final)
	w, h := p.canvas.Rect.Dx(), p.canvas.Rect.Dy()

	cfg := p.params.Slicing
	geom, err := slicing.NewGeometry(cfg, w, h, n)
	if err != nil {
		return err
	}
	strategy, err := slicing.NewStrategy(cfg, geom)
	if err != nil {
		return err
	}

	log.Info("run started", "images", n, "width", w, "height", h,
		"slicing", cfg.Type.String(), "composite", p.params.Composite.String())
	log.Debug("run geometry", "sin", geom.Sin, "cos", geom.Cos,
		"segmentAngle", geom.SegmentAngle, "gridColumns", geom.GridColumns,
		"pixelsPerColumn", geom.PixelsPerColumn, "pixelsPerRow", geom.PixelsPerRow)

	for step := 0; step < n; step++ {
		pi := step
		if cfg.Reverse {
			pi = n - 1 - step
		}

		stepStart := time.Now()
		layer := first
		if pi != 0 {
			if layer, err = p.loadLayer(ctx, pi); err != nil {
				return err
			}
		}

		src := imageio.ToRGBA(layer)
		if got := src.Rect.Size(); got != p.canvas.Rect.Size() {
			return &SizeMismatchError{
				Index: pi,
				Name:  layers.Name(pi),
				Want:  p.canvas.Rect.Size(),
				Got:   got,
			}
		}

		p.composite(strategy, src, pi)
		log.Debug("composited image", "step", step, "layer", pi,
			"name", layers.Name(pi), "elapsed", time.Since(stepStart))

		if final {
			p.sink.Notify(Event{Kind: EventProgress, Index: step, Layer: pi})
		} else {
			p.sink.Notify(Event{Kind: EventPreviewReady, Index: step, Layer: pi, Snapshot: cloneRGBA(p.canvas)})
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}

	if final {
		out, err := p.params.Encoder.Encode(ctx, p.canvas)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return err
			}
			return fmt.Errorf("%w: %w", ErrEncode, err)
		}
		p.sink.Notify(Event{Kind: EventDone, Output: out})
		p.sink.Notify(Event{Kind: EventInfo, Message: "Done!"})
	}
	return nil
}

// loadLayer fetches layer i, passing cancellation and size mismatches
// through unchanged.
func (p *Processor) loadLayer(ctx context.Context, i int) (image.Image, error) {
	img, err := p.params.Layers.Layer(ctx, i)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, err
		}
		var sizeErr *SizeMismatchError
		if errors.As(err, &sizeErr) {
			return nil, sizeErr
		}
		return nil, fmt.Errorf("%w %s: %w", ErrLayerLoad, p.params.Layers.Name(i), err)
	}
	return img, nil
}

// composite writes every pixel of src that the strategy assigns to layer
// pi. Rows are split into contiguous bands, one goroutine per band; a pixel
// is only ever touched by the goroutine owning its row, and images are
// processed one after another, so the result does not depend on NumCores.
func (p *Processor) composite(strategy slicing.Strategy, src *image.RGBA, pi int) {
	h := p.canvas.Rect.Dy()
	workers := min(max(p.params.NumCores, 1), h)
	if workers == 1 {
		p.compositeRows(strategy, src, pi, 0, h)
		return
	}

	band := (h + workers - 1) / workers
	var wg sync.WaitGroup
	for y0 := 0; y0 < h; y0 += band {
		y0 := y0
		y1 := min(y0+band, h)
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.compositeRows(strategy, src, pi, y0, y1)
		}()
	}
	wg.Wait()
}

func (p *Processor) compositeRows(strategy slicing.Strategy, src *image.RGBA, pi, y0, y1 int) {
	dst := p.canvas
	w := dst.Rect.Dx()
	weighted := p.params.Composite == models.CompositeWeighted

	for y := y0; y < y1; y++ {
		for x := 0; x < w; x++ {
			ok, weight := strategy.Include(x, y, pi)
			if !ok || weight < slicing.MinWeight {
				continue
			}

			d := dst.PixOffset(x, y)
			s := src.PixOffset(x, y)
			if weighted {
				for c := 0; c < 3; c++ {
					dst.Pix[d+c] = uint8(math.Min(255, float64(dst.Pix[d+c])+weight*float64(src.Pix[s+c])))
				}
			} else {
				copy(dst.Pix[d:d+3], src.Pix[s:s+3])
			}
			dst.Pix[d+3] = 0xff
		}
	}
}

// newCanvas allocates the output canvas with the size of first. A final
// render starts from the first image, a preview from opaque black.
func newCanvas(first image.Image, final bool) *image.RGBA {
	b := first.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if final {
		xdraw.Draw(canvas, canvas.Bounds(), first, b.Min, xdraw.Src)
	}
	for i := 3; i < len(canvas.Pix); i += 4 {
		canvas.Pix[i] = 0xff
	}
	return canvas
}

func cloneRGBA(img *image.RGBA) *image.RGBA {
	if img == nil {
		return nil
	}
	return &image.RGBA{
		Pix:    slices.Clone(img.Pix),
		Stride: img.Stride,
		Rect:   img.Rect,
	}
}
