package output

import (
	"context"
	"errors"
	"fmt"

	"github.com/bryanchriswhite/webcamize/internal/pixfmt"
)

var (
	// ErrDeviceUnsupported is returned where no virtual video device exists.
	ErrDeviceUnsupported = errors.New("virtual video device not supported on this platform")
	// ErrFrameDropped means the sink deliberately discarded a frame.
	ErrFrameDropped = errors.New("frame dropped")
)

// Frame is one buffer ready for output. Data is only valid for the
// duration of Write.
type Frame struct {
	Data   []byte
	Width  int
	Height int
	Format pixfmt.Format
}

// Sink defines the interface for frame consumers.
// This allows us to swap between output methods:
// - v4l2loopback virtual webcam
// - file or stdout
// - nothing at all
type Sink interface {
	// Open prepares the sink for writing
	Open(ctx context.Context) error

	// Write delivers one frame synchronously
	Write(frame Frame) error

	// Close releases the sink
	Close() error

	// Name returns a human-readable name for this sink
	Name() string
}

// ShortWriteError reports a write that accepted fewer bytes than offered.
// Err holds the cause when the write also failed.
type ShortWriteError struct {
	Written  int
	Expected int
	Err      error
}

func (e *ShortWriteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("short write: %d of %d bytes: %v", e.Written, e.Expected, e.Err)
	}
	return fmt.Sprintf("short write: %d of %d bytes", e.Written, e.Expected)
}

func (e *ShortWriteError) Unwrap() error { return e.Err }

// Runner executes an external command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// NoneSink discards every frame.
type NoneSink struct{}

// NewNoneSink creates a sink that accepts and discards frames.
func NewNoneSink() *NoneSink { return &NoneSink{} }

func (NoneSink) Open(ctx context.Context) error { return nil }
func (NoneSink) Write(frame Frame) error        { return nil }
func (NoneSink) Close() error                   { return nil }
func (NoneSink) Name() string                   { return "none" }
