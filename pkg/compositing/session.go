package compositing

import (
	"context"
	"sync"

	"timeslice/internal/models"
	"timeslice/pkg/imageio"
)

// Session ties a fixed list of image paths to a thumbnail cache so that
// repeated previews with different slicing parameters decode the stack only
// once. Starting a preview cancels the previous one.
type Session struct {
	Paths      []string
	Thumbnails *imageio.ThumbnailCache

	// Sink, Composite and NumCores are copied into every run's Params.
	Sink      Sink
	Composite models.CompositeMode
	NumCores  int

	mu      sync.Mutex
	preview *Run
}

// NewSession creates a session over paths. A nil cache gets a default one.
func NewSession(paths []string, thumbs *imageio.ThumbnailCache) *Session {
	if thumbs == nil {
		thumbs = imageio.NewThumbnailCache(imageio.DefaultThumbnailSize, "")
	}
	return &Session{Paths: paths, Thumbnails: thumbs}
}

// Preview starts a preview run over the cached thumbnails. A preview that
// is still running is cancelled and waited for first.
func (s *Session) Preview(ctx context.Context, cfg models.SliceConfiguration) *Run {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.preview != nil {
		s.preview.Cancel()
		_ = s.preview.Wait()
	}

	p := NewProcessor(&Params{
		Mode:      models.Preview,
		Slicing:   cfg,
		Layers:    s.Thumbnails.For(s.Paths),
		Sink:      s.Sink,
		Composite: s.Composite,
		NumCores:  s.NumCores,
	})
	s.preview = p.Start(ctx)
	return s.preview
}

// Render starts a full resolution run that hands its canvas to enc.
func (s *Session) Render(ctx context.Context, cfg models.SliceConfiguration, enc Encoder) *Run {
	p := NewProcessor(&Params{
		Mode:      models.Final,
		Slicing:   cfg,
		Layers:    imageio.NewFileSource(s.Paths),
		Sink:      s.Sink,
		Encoder:   enc,
		Composite: s.Composite,
		NumCores:  s.NumCores,
	})
	return p.Start(ctx)
}
