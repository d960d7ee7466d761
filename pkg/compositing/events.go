package compositing

import (
	"fmt"
	"image"
)

// EventKind identifies a run notification.
type EventKind int

const (
	// EventStarted is sent once when a final render begins.
	EventStarted EventKind = iota

	// EventInfo carries a human readable status message.
	EventInfo

	// EventProgress is sent after each image of a final render.
	EventProgress

	// EventPreviewReady is sent after each image of a preview run and
	// carries a snapshot of the canvas.
	EventPreviewReady

	// EventError is sent once when a run fails.
	EventError

	// EventDone is sent once when a final render has been written.
	EventDone
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventInfo:
		return "info"
	case EventProgress:
		return "progress"
	case EventPreviewReady:
		return "previewReady"
	case EventError:
		return "error"
	case EventDone:
		return "done"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is a single notification from a run.
type Event struct {
	Kind EventKind

	// Index is the processing step (0..N-1) for progress and preview events
	Index int

	// Layer is the logical image index composited in that step. It differs
	// from Index when the configuration reverses the stack.
	Layer int

	// Message is set for info events
	Message string

	// Snapshot is a private copy of the canvas for preview events. The
	// receiver may keep and modify it.
	Snapshot *image.RGBA

	// Err is set for error events
	Err error

	// Output is where the encoder wrote the final render, for done events
	Output string
}

// Sink receives run notifications. Notify is called from the run's
// goroutine, in order, and should return quickly.
type Sink interface {
	Notify(Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event)

// Notify calls f(e).
func (f SinkFunc) Notify(e Event) { f(e) }

type nopSink struct{}

func (nopSink) Notify(Event) {}
