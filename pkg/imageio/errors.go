package imageio

import (
	"errors"
	"fmt"
	"image"
)

// ErrSizeMismatch means an image of a stack differs in size from the first
// one. The concrete error is a *SizeMismatchError naming the image.
var ErrSizeMismatch = errors.New("image size mismatch")

// SizeMismatchError reports the image whose dimensions differ from the canvas.
type SizeMismatchError struct {
	// Index is the position of the image in the stack
	Index int

	// Name identifies the image, usually its file name
	Name string

	// Want is the canvas size, Got the image size
	Want image.Point
	Got  image.Point
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("image %s is wrong size: %dx%d, canvas is %dx%d",
		e.Name, e.Got.X, e.Got.Y, e.Want.X, e.Want.Y)
}

// Unwrap lets errors.Is match ErrSizeMismatch.
func (e *SizeMismatchError) Unwrap() error { return ErrSizeMismatch }
