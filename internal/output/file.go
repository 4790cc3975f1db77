package output

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/mattn/go-isatty"

	"github.com/bryanchriswhite/webcamize/internal/config"
	"github.com/bryanchriswhite/webcamize/internal/logger"
)

// FileSink writes frames back to back to a file or stdout. With a length
// prefix, each frame is preceded by its size as a little-endian uint64.
type FileSink struct {
	path         string
	lengthPrefix bool

	w      io.Writer
	closer io.Closer
	prefix [8]byte
}

// NewFileSink creates a sink writing to path, or stdout for "-".
func NewFileSink(path string, lengthPrefix bool) *FileSink {
	if path == "" {
		path = config.StdoutPath
	}
	return &FileSink{path: path, lengthPrefix: lengthPrefix}
}

// Open opens the target for writing
func (s *FileSink) Open(ctx context.Context) error {
	log := logger.WithComponent("file")

	if s.path == config.StdoutPath {
		if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
			log.Warn().Msg("Writing binary frames to a terminal")
		}
		s.w = os.Stdout
		log.Info().Bool("length_prefix", s.lengthPrefix).Msg("Writing frames to stdout")
		return nil
	}

	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC|syscall.O_NONBLOCK, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	s.w = f
	s.closer = f
	log.Info().Str("path", s.path).Bool("length_prefix", s.lengthPrefix).Msg("Writing frames to file")
	return nil
}

// Write writes the frame in a single call
func (s *FileSink) Write(frame Frame) error {
	if s.w == nil {
		return fmt.Errorf("file sink not open")
	}
	if s.lengthPrefix {
		binary.LittleEndian.PutUint64(s.prefix[:], uint64(len(frame.Data)))
		if err := writeAll(s.w, s.prefix[:]); err != nil {
			return err
		}
	}
	return writeAll(s.w, frame.Data)
}

// Close closes the file. Stdout is left open.
func (s *FileSink) Close() error {
	s.w = nil
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}

// Name returns "stdout" or the file path
func (s *FileSink) Name() string {
	if s.path == config.StdoutPath {
		return "stdout"
	}
	return s.path
}

// writeAll issues one write and reports a short count as *ShortWriteError.
func writeAll(w io.Writer, p []byte) error {
	n, err := writeOnce(w, p)
	if err != nil && n <= 0 {
		return fmt.Errorf("write failed: %w", err)
	}
	if n < len(p) {
		return &ShortWriteError{Written: n, Expected: len(p), Err: err}
	}
	return nil
}
