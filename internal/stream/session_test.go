package stream

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"testing"

	"github.com/bryanchriswhite/webcamize/internal/output"
	"github.com/bryanchriswhite/webcamize/internal/pixfmt"
)

type fakeConverter struct {
	events *[]string
}

func (c *fakeConverter) Convert(frame []byte) ([]byte, error) { return frame, nil }

func (c *fakeConverter) Format() pixfmt.Format { return pixfmt.RGB24 }

func (c *fakeConverter) Width() int { return 1 }

func (c *fakeConverter) Height() int { return 1 }

func (c *fakeConverter) ScaleInits() int { return 1 }

func (c *fakeConverter) Close() error {
	record(c.events, "converter.close")
	return nil
}

type labeledSink struct {
	recordingSink
	label string
}

func (s *labeledSink) SetLabel(label string) { s.label = label }

type failingSink struct {
	recordingSink
	openErr  error
	closeErr error
}

func (s *failingSink) Open(ctx context.Context) error {
	record(s.events, "sink.open")
	return s.openErr
}

func (s *failingSink) Close() error {
	record(s.events, "sink.close")
	return s.closeErr
}

func TestSession_ReleasesInReverseOrder(t *testing.T) {
	var events []string
	s := NewSession(Options{
		Source:    &fakeSource{frames: [][]byte{{1, 2, 3}}, events: &events},
		Converter: &fakeConverter{events: &events},
		Sink:      &recordingSink{events: &events},
	})

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := "source.open sink.open sink.close converter.close source.close"
	if got := strings.Join(events, " "); got != want {
		t.Fatalf("events = %q, want %q", got, want)
	}
	if st := s.Stats().State(); st != StateTerminated {
		t.Errorf("state = %v", st)
	}
}

func TestSession_SinkOpenFailure(t *testing.T) {
	var events []string
	s := NewSession(Options{
		Source: &fakeSource{frames: [][]byte{{1}}, events: &events},
		Sink:   &failingSink{recordingSink: recordingSink{events: &events}, openErr: errors.New("permission denied")},
	})

	err := s.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "permission denied") {
		t.Fatalf("err = %v", err)
	}
	if got := strings.Join(events, " "); got != "source.open sink.open source.close" {
		t.Fatalf("events = %q", got)
	}
}

func TestSession_CleanupErrorsDoNotChangeResult(t *testing.T) {
	s := NewSession(Options{
		Source: &fakeSource{frames: [][]byte{{1}}},
		Sink:   &failingSink{closeErr: errors.New("modprobe -r failed")},
	})
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestSession_LabelsSinkAfterCamera(t *testing.T) {
	sink := &labeledSink{}
	s := NewSession(Options{
		Source:          &fakeSource{},
		Sink:            sink,
		LabelFromCamera: true,
	})
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sink.label != "Fake Camera" {
		t.Errorf("label = %q", sink.label)
	}

	sink = &labeledSink{label: "kept"}
	if err := NewSession(Options{Source: &fakeSource{}, Sink: sink}).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if sink.label != "kept" {
		t.Errorf("label overwritten to %q", sink.label)
	}
}

func TestSession_ContextCancelStopsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frames := make([][]byte, 100)
	for i := range frames {
		frames[i] = []byte{byte(i)}
	}
	s := NewSession(Options{Source: &fakeSource{frames: frames}})
	sink := &recordingSink{}
	s.opts.Sink = sink
	sink.onWrite = func(output.Frame) error {
		if len(sink.frames) == 2 {
			cancel()
			// AfterFunc runs on its own goroutine
			for s.Alive().Alive() {
				runtime.Gosched()
			}
		}
		return nil
	}

	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sink.frames) != 3 {
		t.Fatalf("sink got %d frames, want 3", len(sink.frames))
	}
}
