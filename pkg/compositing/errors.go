package compositing

import (
	"errors"

	"timeslice/internal/models"
	"timeslice/pkg/imageio"
)

// Run errors. Every failed run returns an error matching exactly one of
// these with errors.Is.
var (
	// ErrInsufficientInput means fewer than two images were supplied.
	ErrInsufficientInput = errors.New("too few images")

	// ErrSizeMismatch means a layer differs in size from the canvas. The
	// concrete error is a *SizeMismatchError naming the image.
	ErrSizeMismatch = imageio.ErrSizeMismatch

	// ErrInvalidConfig means the slice configuration cannot produce geometry.
	ErrInvalidConfig = models.ErrInvalidConfig

	// ErrLayerLoad means a layer could not be decoded.
	ErrLayerLoad = errors.New("failed to load layer")

	// ErrEncode means the finished canvas could not be written.
	ErrEncode = errors.New("failed to encode output")
)

// ErrAlreadyStarted is returned when a Processor is run a second time.
var ErrAlreadyStarted = errors.New("processor already started")

// SizeMismatchError reports the layer whose dimensions differ from the
// canvas. Preview runs report it for the full resolution sources behind
// their thumbnails.
type SizeMismatchError = imageio.SizeMismatchError
