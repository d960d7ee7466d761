package imageio

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// createTestImage creates an RGBA test image with the specified dimensions and pattern
func createTestImage(width, height int, pattern func(x, y int) color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, pattern(x, y))
		}
	}
	return img
}

// writePNG saves img under dir/name and returns the full path
func writePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create %s: %v", path, err)
	}
	defer file.Close()
	if err := png.Encode(file, img); err != nil {
		t.Fatalf("Failed to encode %s: %v", path, err)
	}
	return path
}

func solid(c color.RGBA) func(x, y int) color.RGBA {
	return func(x, y int) color.RGBA { return c }
}

func TestListImagesOrdersByNumber(t *testing.T) {
	dir := t.TempDir()
	img := createTestImage(4, 4, solid(color.RGBA{R: 255, A: 255}))
	for _, name := range []string{"frame_10.png", "frame_2.png", "frame_1.PNG", "b.png", "a.png"} {
		writePNG(t, dir, name, img)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}

	paths, err := ListImages(dir)
	if err != nil {
		t.Fatalf("ListImages failed: %v", err)
	}

	var got []string
	for _, p := range paths {
		got = append(got, filepath.Base(p))
	}
	want := []string{"a.png", "b.png", "frame_1.PNG", "frame_2.png", "frame_10.png"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ListImages order mismatch (-want +got):\n%s", diff)
	}
}

func TestListImagesEmpty(t *testing.T) {
	if _, err := ListImages(t.TempDir()); err == nil {
		t.Error("Expected an error for a directory without images")
	}
}

func TestExtractNumber(t *testing.T) {
	tests := map[string]int{
		"frame_007.jpg":   7,
		"IMG2024_12.jpeg": 202412,
		"cover.png":       0,
		"/tmp/x9/y3.png":  3,
	}
	for name, want := range tests {
		if got := extractNumber(name); got != want {
			t.Errorf("extractNumber(%q): expected %d, got %d", name, want, got)
		}
	}
}

func TestLoadImageAndToRGBA(t *testing.T) {
	dir := t.TempDir()
	want := createTestImage(6, 3, func(x, y int) color.RGBA {
		return color.RGBA{R: uint8(x * 40), G: uint8(y * 80), B: 7, A: 255}
	})
	path := writePNG(t, dir, "one.png", want)

	img, err := LoadImage(path)
	if err != nil {
		t.Fatalf("LoadImage failed: %v", err)
	}
	got := ToRGBA(img)
	if got.Bounds() != want.Bounds() {
		t.Fatalf("Expected bounds %v, got %v", want.Bounds(), got.Bounds())
	}
	if diff := cmp.Diff(want.Pix, got.Pix); diff != "" {
		t.Errorf("pixel mismatch (-want +got):\n%s", diff)
	}

	if _, err := LoadImage(filepath.Join(dir, "missing.png")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}

func TestToRGBANormalisesOrigin(t *testing.T) {
	src := image.NewRGBA(image.Rect(5, 5, 9, 7))
	src.SetRGBA(5, 5, color.RGBA{G: 200, A: 255})

	got := ToRGBA(src)
	if got == src {
		t.Fatal("Expected a copy for an image with a non-zero origin")
	}
	if got.Bounds() != image.Rect(0, 0, 4, 2) {
		t.Errorf("Expected bounds (0,0)-(4,2), got %v", got.Bounds())
	}
	if c := got.RGBAAt(0, 0); c.G != 200 {
		t.Errorf("Expected the corner pixel to move to the origin, got %v", c)
	}

	rgba := image.NewRGBA(image.Rect(0, 0, 2, 2))
	if ToRGBA(rgba) != rgba {
		t.Error("Expected an origin-based RGBA image to be returned as is")
	}
}

func TestFitSize(t *testing.T) {
	tests := []struct {
		w, h, max    int
		wantW, wantH int
	}{
		{100, 50, 800, 100, 50},
		{1600, 1200, 800, 800, 600},
		{1200, 1600, 800, 600, 800},
		{4000, 1, 800, 800, 1},
		{800, 800, 800, 800, 800},
	}
	for _, tt := range tests {
		w, h := FitSize(tt.w, tt.h, tt.max)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("FitSize(%d, %d, %d): expected %dx%d, got %dx%d", tt.w, tt.h, tt.max, tt.wantW, tt.wantH, w, h)
		}
	}
}

func TestThumbnailCacheReuse(t *testing.T) {
	dir := t.TempDir()
	img := createTestImage(40, 20, solid(color.RGBA{B: 255, A: 255}))
	a := writePNG(t, dir, "a.png", img)
	b := writePNG(t, dir, "b.png", img)

	cache := NewThumbnailCache(10, "")
	ctx := context.Background()

	first, err := cache.Source(ctx, []string{a, b})
	if err != nil {
		t.Fatalf("Source failed: %v", err)
	}
	if first.Len() != 2 {
		t.Fatalf("Expected 2 thumbnails, got %d", first.Len())
	}
	if got := first.Images[0].Bounds(); got.Dx() != 10 || got.Dy() != 5 {
		t.Errorf("Expected 10x5 thumbnail, got %dx%d", got.Dx(), got.Dy())
	}
	if first.Name(1) != "b.png" {
		t.Errorf("Expected name b.png, got %s", first.Name(1))
	}

	second, err := cache.Source(ctx, []string{a, b})
	if err != nil {
		t.Fatalf("Source failed: %v", err)
	}
	if second != first {
		t.Error("Expected the same path list to reuse the cached thumbnails")
	}

	third, err := cache.Source(ctx, []string{b, a})
	if err != nil {
		t.Fatalf("Source failed: %v", err)
	}
	if third == first {
		t.Error("Expected a different path list to rebuild the thumbnails")
	}

	cache.Invalidate()
	fourth, err := cache.Source(ctx, []string{b, a})
	if err != nil {
		t.Fatalf("Source failed: %v", err)
	}
	if fourth == third {
		t.Error("Expected Invalidate to drop the cached thumbnails")
	}
}

// TestThumbnailCacheSettingsChange verifies that new size or resampler
// settings rebuild the thumbnails
func TestThumbnailCacheSettingsChange(t *testing.T) {
	dir := t.TempDir()
	img := createTestImage(160, 80, solid(color.RGBA{G: 255, A: 255}))
	paths := []string{writePNG(t, dir, "a.png", img), writePNG(t, dir, "b.png", img)}

	cache := NewThumbnailCache(80, "")
	ctx := context.Background()

	first, err := cache.Source(ctx, paths)
	if err != nil {
		t.Fatalf("Source failed: %v", err)
	}
	if got := first.Images[0].Bounds().Size(); got != image.Pt(80, 40) {
		t.Errorf("Expected 80x40 thumbnail, got %v", got)
	}

	cache.MaxSize = 40
	second, err := cache.Source(ctx, paths)
	if err != nil {
		t.Fatalf("Source failed: %v", err)
	}
	if got := second.Images[0].Bounds().Size(); got != image.Pt(40, 20) {
		t.Errorf("Expected a smaller limit to give 40x20, got %v", got)
	}

	cache.Resampler = ResampleLanczos
	third, err := cache.Source(ctx, paths)
	if err != nil {
		t.Fatalf("Source failed: %v", err)
	}
	if third == second {
		t.Error("Expected a resampler change to rebuild the thumbnails")
	}
}

// TestThumbnailCacheSizeMismatch verifies that full resolution sizes are
// compared even when the thumbnails come out the same size
func TestThumbnailCacheSizeMismatch(t *testing.T) {
	dir := t.TempDir()
	a := writePNG(t, dir, "f0.png", createTestImage(160, 80, solid(color.RGBA{R: 255, A: 255})))
	b := writePNG(t, dir, "f1.png", createTestImage(160, 81, solid(color.RGBA{R: 255, A: 255})))

	if w, h := FitSize(160, 81, 80); w != 80 || h != 40 {
		t.Fatalf("Expected both images to shrink to 80x40, got %dx%d", w, h)
	}

	cache := NewThumbnailCache(80, "")
	_, err := cache.Source(context.Background(), []string{a, b})
	if !errors.Is(err, ErrSizeMismatch) {
		t.Fatalf("Expected ErrSizeMismatch, got %v", err)
	}
	var sizeErr *SizeMismatchError
	if !errors.As(err, &sizeErr) {
		t.Fatalf("Expected a *SizeMismatchError, got %T", err)
	}
	if sizeErr.Index != 1 || sizeErr.Name != "f1.png" {
		t.Errorf("Expected image 1 (f1.png), got %d (%s)", sizeErr.Index, sizeErr.Name)
	}
	if sizeErr.Want != image.Pt(160, 80) || sizeErr.Got != image.Pt(160, 81) {
		t.Errorf("Expected want 160x80 got 160x81, got want %v got %v", sizeErr.Want, sizeErr.Got)
	}
	if cache.thumbs != nil {
		t.Error("Expected a mismatching stack not to be cached")
	}
}

func TestThumbnailResamplers(t *testing.T) {
	img := createTestImage(64, 32, func(x, y int) color.RGBA {
		return color.RGBA{R: uint8(x * 4), G: uint8(y * 8), A: 255}
	})
	for _, r := range []string{ResampleCatmullRom, ResampleBiLinear, ResampleLanczos} {
		c := NewThumbnailCache(16, r)
		thumb, err := c.scale(img)
		if err != nil {
			t.Fatalf("%s: scale failed: %v", r, err)
		}
		if b := thumb.Bounds(); b.Dx() != 16 || b.Dy() != 8 {
			t.Errorf("%s: expected 16x8, got %dx%d", r, b.Dx(), b.Dy())
		}
	}

	if _, err := NewThumbnailCache(16, "nearest-ish").scale(img); err == nil {
		t.Error("Expected an error for an unknown resampler")
	}
}

func TestThumbnailCacheLoadError(t *testing.T) {
	cache := NewThumbnailCache(10, "")
	if _, err := cache.Source(context.Background(), []string{"/does/not/exist.png"}); err == nil {
		t.Error("Expected an error for a missing image")
	}
}

func TestFileEncoderFormats(t *testing.T) {
	dir := t.TempDir()
	img := createTestImage(8, 6, solid(color.RGBA{R: 10, G: 20, B: 30, A: 255}))

	for _, name := range []string{"out.jpg", "out.png", "nested/out.tiff", "out.bmp"} {
		enc := NewFileEncoder(filepath.Join(dir, name), 0)
		path, err := enc.Encode(context.Background(), img)
		if err != nil {
			t.Fatalf("%s: Encode failed: %v", name, err)
		}
		decoded, err := LoadImage(path)
		if err != nil {
			t.Fatalf("%s: LoadImage failed: %v", name, err)
		}
		if decoded.Bounds().Dx() != 8 || decoded.Bounds().Dy() != 6 {
			t.Errorf("%s: expected 8x6, got %v", name, decoded.Bounds())
		}
	}
}

func TestFileEncoderUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xyz")
	if _, err := NewFileEncoder(path, 90).Encode(context.Background(), image.NewRGBA(image.Rect(0, 0, 2, 2))); err == nil {
		t.Fatal("Expected an error for an unsupported extension")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected the partial file to be removed, stat returned %v", err)
	}
}

func TestSources(t *testing.T) {
	mem := &MemorySource{Images: []image.Image{image.NewRGBA(image.Rect(0, 0, 1, 1))}}
	if mem.Name(0) != "#0" {
		t.Errorf("Expected fallback name #0, got %s", mem.Name(0))
	}
	if _, err := mem.Layer(context.Background(), 1); err == nil {
		t.Error("Expected an out of range error")
	}

	fs := NewFileSource([]string{"/x/y/first.jpg"})
	if fs.Len() != 1 || fs.Name(0) != "first.jpg" {
		t.Errorf("Expected one layer named first.jpg, got %d/%s", fs.Len(), fs.Name(0))
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := fs.Layer(ctx, 0); err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestThumbnailSourceLazy(t *testing.T) {
	dir := t.TempDir()
	img := createTestImage(30, 30, solid(color.RGBA{G: 255, A: 255}))
	paths := []string{writePNG(t, dir, "1.png", img), writePNG(t, dir, "2.png", img)}

	cache := NewThumbnailCache(15, ResampleBiLinear)
	src := cache.For(paths)
	if src.Len() != 2 || src.Name(1) != "2.png" {
		t.Fatalf("Expected 2 layers ending in 2.png, got %d/%s", src.Len(), src.Name(1))
	}
	if cache.thumbs != nil {
		t.Fatal("Expected thumbnails to be built lazily")
	}

	layer, err := src.Layer(context.Background(), 1)
	if err != nil {
		t.Fatalf("Layer failed: %v", err)
	}
	if b := layer.Bounds(); b.Dx() != 15 || b.Dy() != 15 {
		t.Errorf("Expected 15x15 thumbnail, got %dx%d", b.Dx(), b.Dy())
	}
	if cache.thumbs == nil {
		t.Error("Expected the cache to be populated after the first layer")
	}
}
