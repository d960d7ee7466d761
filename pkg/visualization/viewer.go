// Package visualization renders diagnostic views of a slicing configuration:
// which image ends up owning each output pixel, and how evenly the canvas is
// shared between the images.
package visualization

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/gonum/stat"

	"timeslice/internal/models"
	"timeslice/pkg/imageio"
	"timeslice/pkg/slicing"
)

// Unclaimed marks a pixel that no image writes to.
const Unclaimed = -1

// Viewer evaluates a slicing configuration over a canvas without touching
// any pixel data.
type Viewer struct {
	strategy slicing.Strategy
	reverse  bool

	// dimensions of the canvas
	width  int
	height int
	images int
}

// NewViewer prepares the geometry for a width x height canvas and the given
// number of images.
func NewViewer(cfg models.SliceConfiguration, width, height, images int) (*Viewer, error) {
	geom, err := slicing.NewGeometry(cfg, width, height, images)
	if err != nil {
		return nil, err
	}
	strategy, err := slicing.NewStrategy(cfg, geom)
	if err != nil {
		return nil, err
	}
	return &Viewer{
		strategy: strategy,
		reverse:  cfg.Reverse,
		width:    width,
		height:   height,
		images:   images,
	}, nil
}

// Owner returns the logical index of the image that writes pixel (x, y)
// last in processing order, or Unclaimed. In direct compositing that image
// determines the final pixel value.
func (v *Viewer) Owner(x, y int) int {
	owner := Unclaimed
	for step := 0; step < v.images; step++ {
		pi := step
		if v.reverse {
			pi = v.images - 1 - step
		}
		if ok, w := v.strategy.Include(x, y, pi); ok && w >= slicing.MinWeight {
			owner = pi
		}
	}
	return owner
}

// OwnershipMap draws every pixel in the colour of its owner. Palette index 0
// is black for unclaimed pixels; image i uses index i+1. Images beyond the
// 255th share the last colour.
func (v *Viewer) OwnershipMap() *image.Paletted {
	img := image.NewPaletted(image.Rect(0, 0, v.width, v.height), Palette(v.images))
	for y := 0; y < v.height; y++ {
		for x := 0; x < v.width; x++ {
			img.SetColorIndex(x, y, uint8(min(v.Owner(x, y)+1, 255)))
		}
	}
	return img
}

// SaveOwnershipMap writes the ownership map to filename. The extension picks
// the format, as for a final render.
func (v *Viewer) SaveOwnershipMap(ctx context.Context, filename string) (string, error) {
	return imageio.NewFileEncoder(filename, imageio.DefaultQuality).Encode(ctx, v.OwnershipMap())
}

// Palette returns black followed by n evenly spaced hues.
func Palette(n int) color.Palette {
	p := make(color.Palette, 0, n+1)
	p = append(p, color.RGBA{A: 0xff})
	for i := 0; i < n && len(p) < 256; i++ {
		p = append(p, hue(float64(i)/float64(n)))
	}
	return p
}

// hue converts h in [0,1) to a fully saturated colour
func hue(h float64) color.RGBA {
	h6 := h * 6
	x := 1 - math.Abs(math.Mod(h6, 2)-1)
	var r, g, b float64
	switch int(h6) {
	case 0:
		r, g = 1, x
	case 1:
		r, g = x, 1
	case 2:
		g, b = 1, x
	case 3:
		g, b = x, 1
	case 4:
		r, b = x, 1
	default:
		r, b = 1, x
	}
	return color.RGBA{R: uint8(r * 255), G: uint8(g * 255), B: uint8(b * 255), A: 0xff}
}

// Coverage summarises how a configuration shares the canvas.
type Coverage struct {
	// Claimed counts, per logical image, the pixels it writes to
	Claimed []int

	// Owned counts, per logical image, the pixels it writes to last
	Owned []int

	// Unclaimed counts pixels no image writes to
	Unclaimed int

	// Overlap counts pixels written by more than one image
	Overlap int

	// Total is the number of canvas pixels
	Total int

	// Mean and StdDev describe the distribution of Owned
	Mean   float64
	StdDev float64
}

// Coverage evaluates the strategy at every pixel.
func (v *Viewer) Coverage() Coverage {
	c := Coverage{
		Claimed: make([]int, v.images),
		Owned:   make([]int, v.images),
		Total:   v.width * v.height,
	}

	for y := 0; y < v.height; y++ {
		for x := 0; x < v.width; x++ {
			writers := 0
			owner := Unclaimed
			for step := 0; step < v.images; step++ {
				pi := step
				if v.reverse {
					pi = v.images - 1 - step
				}
				if ok, w := v.strategy.Include(x, y, pi); ok && w >= slicing.MinWeight {
					c.Claimed[pi]++
					writers++
					owner = pi
				}
			}
			if owner == Unclaimed {
				c.Unclaimed++
			} else {
				c.Owned[owner]++
			}
			if writers > 1 {
				c.Overlap++
			}
		}
	}

	owned := make([]float64, len(c.Owned))
	for i, n := range c.Owned {
		owned[i] = float64(n)
	}
	if len(owned) > 1 {
		c.Mean, c.StdDev = stat.MeanStdDev(owned, nil)
	} else if len(owned) == 1 {
		c.Mean = owned[0]
	}
	return c
}

// WriteReport prints the coverage as a small table.
func (c Coverage) WriteReport(w io.Writer) error {
	pct := func(n int) float64 {
		if c.Total == 0 {
			return 0
		}
		return 100 * float64(n) / float64(c.Total)
	}

	if _, err := fmt.Fprintf(w, "%-8s %10s %10s %8s\n", "image", "claimed", "owned", "share"); err != nil {
		return err
	}
	for i := range c.Owned {
		if _, err := fmt.Fprintf(w, "%-8d %10d %10d %7.2f%%\n", i, c.Claimed[i], c.Owned[i], pct(c.Owned[i])); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "unclaimed: %d (%.2f%%)\noverlap: %d (%.2f%%)\nowned per image: mean %.1f, stddev %.1f\n",
		c.Unclaimed, pct(c.Unclaimed), c.Overlap, pct(c.Overlap), c.Mean, c.StdDev)
	return err
}
