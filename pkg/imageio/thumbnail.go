package imageio

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/nfnt/resize"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"timeslice/internal/logging"
)

// DefaultThumbnailSize bounds both preview dimensions.
const DefaultThumbnailSize = 800

// Resampler names accepted by ThumbnailCache.
const (
	ResampleCatmullRom = "catmullrom"
	ResampleBiLinear   = "bilinear"
	ResampleLanczos    = "lanczos"
)

// ThumbnailCache builds downsampled copies of an image stack for preview
// runs. The thumbnails are built once per distinct path list and reused
// until a different list is requested.
type ThumbnailCache struct {
	// MaxSize bounds the thumbnail width and height. Aspect ratio is kept
	// and images that already fit are not enlarged.
	MaxSize int

	// Resampler is one of the Resample constants; empty means CatmullRom.
	Resampler string

	// Workers limits concurrent decoding; zero means runtime.NumCPU().
	Workers int

	mu     sync.Mutex
	key    string
	thumbs *MemorySource
}

// NewThumbnailCache returns a cache bounded to maxSize pixels.
func NewThumbnailCache(maxSize int, resampler string) *ThumbnailCache {
	return &ThumbnailCache{MaxSize: maxSize, Resampler: resampler}
}

// Source returns the thumbnails for paths, building them on first use.
// Changing MaxSize or Resampler rebuilds them on the next call. The full
// resolution images must all have the size of the first one; otherwise the
// error is a *SizeMismatchError.
func (c *ThumbnailCache) Source(ctx context.Context, paths []string) (*MemorySource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := fmt.Sprintf("%d\x00%s\x00%s", c.maxSize(), strings.ToLower(c.Resampler), strings.Join(paths, "\x00"))

	if c.thumbs != nil && c.key == key {
		logging.Logger().Debug("thumbnail cache hit", "images", len(paths))
		return c.thumbs, nil
	}

	logging.Logger().Info("generating preview thumbnails", "images", len(paths), "maxSize", c.maxSize())

	src := &MemorySource{
		Images: make([]image.Image, len(paths)),
		Names:  make([]string, len(paths)),
		Sizes:  make([]image.Point, len(paths)),
	}

	workers := c.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		i, path := i, path
		src.Names[i] = filepath.Base(path)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := LoadImage(path)
			if err != nil {
				return err
			}
			src.Sizes[i] = img.Bounds().Size()
			thumb, err := c.scale(img)
			if err != nil {
				return err
			}
			src.Images[i] = thumb
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := 1; i < len(src.Sizes); i++ {
		if src.Sizes[i] != src.Sizes[0] {
			return nil, &SizeMismatchError{
				Index: i,
				Name:  src.Names[i],
				Want:  src.Sizes[0],
				Got:   src.Sizes[i],
			}
		}
	}

	c.key = key
	c.thumbs = src
	return src, nil
}

// Invalidate drops the cached thumbnails.
func (c *ThumbnailCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = ""
	c.thumbs = nil
}

func (c *ThumbnailCache) maxSize() int {
	if c.MaxSize <= 0 {
		return DefaultThumbnailSize
	}
	return c.MaxSize
}

// scale shrinks img to fit the cache bounds.
func (c *ThumbnailCache) scale(img image.Image) (image.Image, error) {
	b := img.Bounds()
	w, h := FitSize(b.Dx(), b.Dy(), c.maxSize())
	if w == b.Dx() && h == b.Dy() {
		return ToRGBA(img), nil
	}

	switch strings.ToLower(c.Resampler) {
	case "", ResampleCatmullRom:
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
		return dst, nil
	case ResampleBiLinear:
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
		return dst, nil
	case ResampleLanczos:
		return ToRGBA(resize.Resize(uint(w), uint(h), img, resize.Lanczos3)), nil
	default:
		return nil, fmt.Errorf("unknown resampler %q", c.Resampler)
	}
}

// FitSize returns the largest size with the aspect ratio of w x h that fits
// in a max x max box, never enlarging. Both results are at least 1.
func FitSize(w, h, max int) (int, int) {
	if w <= max && h <= max {
		return w, h
	}
	if w >= h {
		return max, clampMin1(h * max / w)
	}
	return clampMin1(w * max / h), max
}

func clampMin1(v int) int {
	if v < 1 {
		return 1
	}
	return v
}

// ThumbnailSource is a layer source over a path list whose thumbnails are
// built through a ThumbnailCache on first access.
type ThumbnailSource struct {
	cache *ThumbnailCache
	paths []string
}

// For returns a lazily built thumbnail source for paths.
func (c *ThumbnailCache) For(paths []string) *ThumbnailSource {
	return &ThumbnailSource{cache: c, paths: paths}
}

// Len returns the number of images in the stack.
func (s *ThumbnailSource) Len() int { return len(s.paths) }

// Name returns the base name of image i.
func (s *ThumbnailSource) Name(i int) string { return filepath.Base(s.paths[i]) }

// Layer returns the thumbnail of image i, building the whole set if needed.
func (s *ThumbnailSource) Layer(ctx context.Context, i int) (image.Image, error) {
	thumbs, err := s.cache.Source(ctx, s.paths)
	if err != nil {
		return nil, err
	}
	return thumbs.Layer(ctx, i)
}
