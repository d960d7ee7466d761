package slicing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"timeslice/internal/models"
)

// Geometry holds the constants derived once per run from the slice
// configuration, the canvas size and the number of images. It is read-only
// after NewGeometry returns and may be shared between goroutines.
type Geometry struct {
	// Width and Height are the canvas dimensions in pixels
	Width  int
	Height int

	// Images is the number of layers in the stack
	Images int

	// Sin and Cos of the linear rotation angle
	Sin float64
	Cos float64

	// SegmentAngle is the angular width of one radial wedge, in degrees
	SegmentAngle float64

	// GridRows is copied from the configuration. GridColumns is
	// floor(Images / GridRows); images beyond GridRows*GridColumns get no cell.
	GridRows    int
	GridColumns int

	// PixelsPerColumn and PixelsPerRow are the grid cell size in pixels.
	// Grid.Cell is the integer form of floor(x / PixelsPerColumn) and
	// floor(y / PixelsPerRow).
	PixelsPerColumn float64
	PixelsPerRow    float64

	// Origin is the radial pivot in pixel space, with y pointing up
	Origin r2.Vec
}

// NewGeometry computes the run constants for a canvas of width x height
// pixels composited from the given number of images.
func NewGeometry(cfg models.SliceConfiguration, width, height, images int) (Geometry, error) {
	if err := cfg.Validate(); err != nil {
		return Geometry{}, err
	}
	if width <= 0 || height <= 0 {
		return Geometry{}, fmt.Errorf("%w: empty canvas %dx%d", models.ErrInvalidConfig, width, height)
	}
	if images < 1 {
		return Geometry{}, fmt.Errorf("%w: no images", models.ErrInvalidConfig)
	}

	rad := cfg.Angle * math.Pi / 180
	g := Geometry{
		Width:        width,
		Height:       height,
		Images:       images,
		Sin:          math.Sin(rad),
		Cos:          math.Cos(rad),
		SegmentAngle: cfg.RadialCoverage / float64(images),
		GridRows:     cfg.GridRows,
		GridColumns:  images / cfg.GridRows,
		PixelsPerRow: float64(height) / float64(cfg.GridRows),
		Origin: r2.Vec{
			X: cfg.OriginX * float64(width),
			Y: cfg.OriginY * float64(height),
		},
	}

	if g.GridColumns > 0 {
		g.PixelsPerColumn = float64(width) / float64(g.GridColumns)
	} else if cfg.Type == models.Grid {
		return Geometry{}, fmt.Errorf("%w: %d images cannot fill %d grid rows",
			models.ErrInvalidConfig, images, cfg.GridRows)
	}

	return g, nil
}

// GridCapacity is the number of images that are assigned a grid cell.
func (g Geometry) GridCapacity() int {
	return g.GridRows * g.GridColumns
}
