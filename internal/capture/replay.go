package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bryanchriswhite/webcamize/internal/logger"
)

// ReplaySource plays back a recorded stream of concatenated JPEG frames,
// such as a saved `gphoto2 --capture-movie --stdout` dump.
type ReplaySource struct {
	path string
	loop bool

	f      *os.File
	frames *FrameReader
	played int
}

// NewReplaySource creates a replay source for path.
func NewReplaySource(path string, loop bool) *ReplaySource {
	return &ReplaySource{path: path, loop: loop}
}

// Open opens the recording
func (r *ReplaySource) Open(ctx context.Context) error {
	f, err := os.Open(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		return fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	r.f = f
	r.frames = NewFrameReader(f)

	logger.WithComponent("replay").Info().
		Str("path", r.path).
		Bool("loop", r.loop).
		Msg("Replay source opened")
	return nil
}

// Capture returns the next recorded frame. At the end of the recording it
// rewinds when looping, otherwise it returns io.EOF.
func (r *ReplaySource) Capture() ([]byte, error) {
	if r.frames == nil {
		return nil, fmt.Errorf("%w: source not open", ErrCaptureFailed)
	}

	frame, err := r.frames.Next()
	if err == io.EOF && r.loop && r.played > 0 {
		if _, err := r.f.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("%w: rewind: %v", ErrCaptureFailed, err)
		}
		r.frames.Reset(r.f)
		r.played = 0
		frame, err = r.frames.Next()
	}
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}
	r.played++
	return frame, nil
}

// Close closes the recording
func (r *ReplaySource) Close() error {
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	r.frames = nil
	return err
}

// Name returns the recording's base name
func (r *ReplaySource) Name() string {
	base := filepath.Base(r.path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
