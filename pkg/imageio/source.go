package imageio

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
)

// FileSource serves full resolution layers straight from disk. Each call to
// Layer decodes the file again, so only one layer is held in memory at a
// time by the compositing loop.
type FileSource struct {
	Paths []string
}

// NewFileSource wraps an ordered list of image paths.
func NewFileSource(paths []string) *FileSource {
	return &FileSource{Paths: paths}
}

// Len returns the number of images in the stack.
func (s *FileSource) Len() int { return len(s.Paths) }

// Name returns the base name of image i.
func (s *FileSource) Name(i int) string { return filepath.Base(s.Paths[i]) }

// Layer decodes image i.
func (s *FileSource) Layer(ctx context.Context, i int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if i < 0 || i >= len(s.Paths) {
		return nil, fmt.Errorf("layer %d out of range [0, %d)", i, len(s.Paths))
	}
	return LoadImage(s.Paths[i])
}

// MemorySource serves layers that are already decoded, such as preview
// thumbnails.
type MemorySource struct {
	Images []image.Image
	Names  []string

	// Sizes, when set, records the size each image was decoded at before
	// it was scaled
	Sizes []image.Point
}

// Len returns the number of images in the stack.
func (s *MemorySource) Len() int { return len(s.Images) }

// Name returns the name recorded for image i, or its index.
func (s *MemorySource) Name(i int) string {
	if i < len(s.Names) {
		return s.Names[i]
	}
	return fmt.Sprintf("#%d", i)
}

// Layer returns image i.
func (s *MemorySource) Layer(_ context.Context, i int) (image.Image, error) {
	if i < 0 || i >= len(s.Images) {
		return nil, fmt.Errorf("layer %d out of range [0, %d)", i, len(s.Images))
	}
	return s.Images[i], nil
}
