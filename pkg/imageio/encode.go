package imageio

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"timeslice/internal/logging"
)

// DefaultOutput and DefaultQuality name and grade the final render when
// nothing else is configured.
const (
	DefaultOutput  = "time.jpg"
	DefaultQuality = 90
)

// FileEncoder writes the finished composite to Path. The format follows the
// file extension: .jpg/.jpeg, .png, .tif/.tiff or .bmp.
type FileEncoder struct {
	Path string

	// Quality is the JPEG quality, 1..100. Zero means DefaultQuality.
	Quality int
}

// NewFileEncoder returns an encoder for path.
func NewFileEncoder(path string, quality int) *FileEncoder {
	return &FileEncoder{Path: path, Quality: quality}
}

// Encode writes img and returns the path it was written to. A partially
// written file is removed on failure.
func (e *FileEncoder) Encode(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := e.Path
	if path == "" {
		path = DefaultOutput
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}

	if err := e.write(file, path, img); err != nil {
		file.Close()
		os.Remove(path)
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to close output file: %w", err)
	}

	logging.Logger().Info("wrote composite", "path", path)
	return path, nil
}

func (e *FileEncoder) write(file *os.File, path string, img image.Image) error {
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".jpg", ".jpeg":
		quality := e.Quality
		if quality <= 0 {
			quality = DefaultQuality
		}
		err = jpeg.Encode(file, img, &jpeg.Options{Quality: quality})
	case ".png":
		err = png.Encode(file, img)
	case ".tif", ".tiff":
		err = tiff.Encode(file, img, &tiff.Options{Compression: tiff.Deflate})
	case ".bmp":
		err = bmp.Encode(file, img)
	default:
		return fmt.Errorf("unsupported output format %q", ext)
	}
	if err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	return nil
}
