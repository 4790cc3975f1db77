package output

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bryanchriswhite/webcamize/internal/config"
	"github.com/bryanchriswhite/webcamize/internal/pixfmt"
)

func TestFileSink_WritesFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yuyv")
	if err := os.WriteFile(path, []byte("stale contents"), 0o644); err != nil {
		t.Fatal(err)
	}

	sink := NewFileSink(path, false)
	if err := sink.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	frames := [][]byte{{1, 2, 3, 4}, {5, 6, 7, 8}}
	for _, f := range frames {
		if err := sink.Write(Frame{Data: f, Width: 2, Height: 1, Format: pixfmt.YUYV}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := bytes.Join(frames, nil); !bytes.Equal(got, want) {
		t.Fatalf("file = %v, want %v", got, want)
	}
	if sink.Name() != path {
		t.Errorf("Name() = %q", sink.Name())
	}
}

func TestFileSink_LengthPrefix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")
	sink := NewFileSink(path, true)
	if err := sink.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	data := []byte{0xFF, 0xD8, 0xFF, 0xD9}
	if err := sink.Write(Frame{Data: data, Format: pixfmt.MJPEG}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	sink.Close()

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 8+len(data) {
		t.Fatalf("file is %d bytes, want %d", len(got), 8+len(data))
	}
	if n := binary.LittleEndian.Uint64(got[:8]); n != uint64(len(data)) {
		t.Errorf("prefix = %d, want %d", n, len(data))
	}
	if !bytes.Equal(got[8:], data) {
		t.Errorf("payload = %v", got[8:])
	}
}

var errNoSpace = errors.New("no space left")

type shortWriter struct{ max int }

func (w shortWriter) Write(p []byte) (int, error) {
	if len(p) > w.max {
		return w.max, errNoSpace
	}
	return len(p), nil
}

func TestFileSink_ShortWrite(t *testing.T) {
	sink := NewFileSink("unused", false)
	sink.w = shortWriter{max: 3}

	err := sink.Write(Frame{Data: make([]byte, 10)})
	var swe *ShortWriteError
	if !errors.As(err, &swe) {
		t.Fatalf("err = %v, want *ShortWriteError", err)
	}
	if swe.Written != 3 || swe.Expected != 10 {
		t.Errorf("got %+v, want 3 of 10", swe)
	}
	if !errors.Is(err, errNoSpace) {
		t.Errorf("cause lost: %v", err)
	}
}

func TestFileSink_WriteBeforeOpen(t *testing.T) {
	if err := NewFileSink("unused", false).Write(Frame{Data: []byte{1}}); err == nil {
		t.Fatal("expected error writing to unopened sink")
	}
}

func TestFileSink_StdoutName(t *testing.T) {
	for _, path := range []string{"", config.StdoutPath} {
		if got := NewFileSink(path, false).Name(); got != "stdout" {
			t.Errorf("NewFileSink(%q).Name() = %q, want stdout", path, got)
		}
	}
}

func TestNoneSink(t *testing.T) {
	var s Sink = NewNoneSink()
	if err := s.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Write(Frame{Data: []byte{1, 2}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if s.Name() != "none" {
		t.Errorf("Name() = %q", s.Name())
	}
}
