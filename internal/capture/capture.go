package capture

import (
	"context"
	"errors"
)

var (
	// ErrNotFound means no matching camera was detected.
	ErrNotFound = errors.New("camera not found")
	// ErrProtocol means the camera control stack failed to start a session.
	ErrProtocol = errors.New("camera protocol error")
	// ErrCaptureFailed means a preview frame could not be read.
	ErrCaptureFailed = errors.New("capture failed")
)

// Source defines the interface for preview frame producers
type Source interface {
	// Open starts the capture session
	Open(ctx context.Context) error

	// Capture blocks until the next preview frame is available.
	// The returned bytes are only valid until the next call.
	// io.EOF means the source ended cleanly.
	Capture() ([]byte, error)

	// Close ends the session and releases resources
	Close() error

	// Name returns the display name of the camera, used to label the
	// virtual device
	Name() string
}

// Camera is one detected camera.
type Camera struct {
	Model string `json:"model"`
	Port  string `json:"port"`
}
