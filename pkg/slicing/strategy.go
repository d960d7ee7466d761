// Package slicing decides, for every output pixel and every source image,
// whether the image owns the pixel and with what weight.
//
// A Strategy is selected once per run from the slice configuration and then
// queried for every (pixel, image) pair. All strategies are pure functions of
// their Geometry and are safe for concurrent use.
package slicing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"timeslice/internal/models"
)

// Strategy answers "is pixel (x, y) owned by the image at logical index
// layer, and with what weight?". Weights are in [0, 1]; a pixel with
// included == false must be left untouched by the caller.
type Strategy interface {
	Include(x, y, layer int) (included bool, weight float64)
}

// NewStrategy returns the strategy for cfg.Type bound to geom.
func NewStrategy(cfg models.SliceConfiguration, geom Geometry) (Strategy, error) {
	switch cfg.Type {
	case models.Linear:
		return NewLinear(cfg, geom), nil
	case models.Radial:
		return NewRadial(cfg, geom), nil
	case models.Grid:
		if geom.GridColumns < 1 {
			return nil, fmt.Errorf("%w: grid needs at least one column", models.ErrInvalidConfig)
		}
		return NewGrid(geom), nil
	default:
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidConfig, cfg.Type)
	}
}

// Linear lays the images out as a rotated and scaled fan of overlapping
// bands whose seams are softened by a Blender.
type Linear struct {
	geom     Geometry
	blend    Blender
	scaleX   float64
	edgeFill bool
}

// NewLinear builds the linear strategy.
func NewLinear(cfg models.SliceConfiguration, geom Geometry) *Linear {
	return &Linear{
		geom:     geom,
		blend:    Blender{Softness: cfg.Blending},
		scaleX:   cfg.ScaleX,
		edgeFill: cfg.LinearEdgeFill,
	}
}

// Project maps pixel (x, y) into the rotated and scaled fan space and
// returns the horizontal coordinate. The visible fan spans [-0.5, 0.5].
func (l *Linear) Project(x, y int) float64 {
	ox := float64(x)/float64(l.geom.Width) - 0.5
	oy := float64(y)/float64(l.geom.Height) - 0.5
	return l.scaleX * (l.geom.Cos*ox - l.geom.Sin*oy)
}

// Include implements Strategy.
func (l *Linear) Include(x, y, layer int) (bool, float64) {
	cx := l.Project(x, y)
	n := l.geom.Images

	// The first band ends at the low side of the fan and the last band at
	// the high side.
	if (layer == 0 && cx < -0.5) || (layer == n-1 && cx > 0.5) {
		if l.edgeFill {
			return true, 1
		}
		return false, 0
	}

	w := l.blend.Weight(2 * (float64(n-1)*(cx+0.5) - float64(layer) - 1))
	if w < MinWeight {
		return false, 0
	}
	return true, w
}

// Radial splits the canvas into equal wedges around an origin point.
type Radial struct {
	geom     Geometry
	start    float64
	coverage float64
}

// NewRadial builds the radial strategy.
func NewRadial(cfg models.SliceConfiguration, geom Geometry) *Radial {
	return &Radial{
		geom:     geom,
		start:    cfg.RadialStart,
		coverage: cfg.RadialCoverage,
	}
}

// Angle returns the clockwise angle of pixel (x, y) around the origin,
// measured from straight up and offset by the radial start, in [0, 360).
func (r *Radial) Angle(x, y int) float64 {
	p := r2.Vec{X: float64(x), Y: float64(r.geom.Height - 1 - y)}
	d := r2.Sub(p, r.geom.Origin)
	return wrapDegrees(math.Atan2(d.X, d.Y)*180/math.Pi - r.start)
}

// Wedge returns the half-open angular range [lo, hi) owned by layer.
// The bounds are computed as coverage*layer/N rather than layer*segment so
// that neighbouring wedges share bit-identical boundaries.
func (r *Radial) Wedge(layer int) (lo, hi float64) {
	n := float64(r.geom.Images)
	return r.coverage * float64(layer) / n, r.coverage * float64(layer+1) / n
}

// Include implements Strategy.
func (r *Radial) Include(x, y, layer int) (bool, float64) {
	a := r.Angle(x, y)
	lo, hi := r.Wedge(layer)
	if a < lo || a >= hi {
		return false, 0
	}
	return true, 1
}

func wrapDegrees(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	// a tiny negative remainder can round up to exactly 360
	if a >= 360 {
		a = 0
	}
	return a
}

// Grid tiles the canvas into GridRows x GridColumns cells filled row by row.
type Grid struct {
	geom Geometry
}

// NewGrid builds the grid strategy. geom.GridColumns must be positive.
func NewGrid(geom Geometry) *Grid {
	return &Grid{geom: geom}
}

// Cell returns the grid row and column containing pixel (x, y). It equals
// (floor(y / Geometry.PixelsPerRow), floor(x / Geometry.PixelsPerColumn))
// computed in integers, so cell borders never round into the wrong cell.
func (g *Grid) Cell(x, y int) (row, column int) {
	return y * g.geom.GridRows / g.geom.Height, x * g.geom.GridColumns / g.geom.Width
}

// Include implements Strategy.
func (g *Grid) Include(x, y, layer int) (bool, float64) {
	row, column := g.Cell(x, y)
	if row != layer/g.geom.GridColumns || column != layer%g.geom.GridColumns {
		return false, 0
	}
	return true, 1
}
