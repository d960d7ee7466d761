package compositing

import (
	"context"
	"image"
)

// Run is a handle to a Processor executing on its own goroutine.
type Run struct {
	proc   *Processor
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// ID returns the processor's run ID.
func (r *Run) ID() string { return r.proc.ID() }

// State returns the processor's current state.
func (r *Run) State() State { return r.proc.State() }

// Cancel asks the run to stop. The request is honoured after the image
// currently being composited is finished.
func (r *Run) Cancel() { r.cancel() }

// Done is closed when the run has reached a terminal state.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run ends and returns Process's result.
func (r *Run) Wait() error {
	<-r.done
	return r.err
}

// Result returns the completed canvas, or nil if the run did not complete.
func (r *Run) Result() *image.RGBA {
	<-r.done
	return r.proc.Result()
}
