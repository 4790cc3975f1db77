package stream

import (
	"context"
	"fmt"

	"github.com/bryanchriswhite/webcamize/internal/capture"
	"github.com/bryanchriswhite/webcamize/internal/logger"
	"github.com/bryanchriswhite/webcamize/internal/output"
)

// Labeler is implemented by sinks that can name themselves after the
// camera.
type Labeler interface {
	SetLabel(label string)
}

// Options configures a Session.
type Options struct {
	Source    capture.Source
	Converter Converter
	Sink      output.Sink
	FPS       int

	// LabelFromCamera names the sink after the opened camera
	LabelFromCamera bool

	Alive *Alive
	Stats *Stats
}

// Session owns the resources of one streaming run and releases them in
// reverse order of acquisition.
type Session struct {
	opts  Options
	alive *Alive
	stats *Stats
}

// NewSession creates a session. Nothing is opened until Run.
func NewSession(opts Options) *Session {
	s := &Session{opts: opts, alive: opts.Alive, stats: opts.Stats}
	if s.alive == nil {
		s.alive = NewAlive()
	}
	if s.stats == nil {
		s.stats = NewStats()
	}
	return s
}

// Alive returns the session's run flag
func (s *Session) Alive() *Alive {
	return s.alive
}

// Stats returns the session's counters
func (s *Session) Stats() *Stats {
	return s.stats
}

type cleanupFunc struct {
	name string
	fn   func() error
}

// Run opens the source and sink, streams until stopped, then cleans up.
// It returns nil for an interrupt or a clean end of stream. Cancelling ctx
// stops the loop at the next iteration boundary.
func (s *Session) Run(ctx context.Context) (err error) {
	log := logger.WithComponent("session").With().Str("session", s.stats.SessionID()).Logger()

	var cleanups []cleanupFunc
	defer func() {
		s.stats.setState(StateCleanup)
		for i := len(cleanups) - 1; i >= 0; i-- {
			c := cleanups[i]
			if cerr := c.fn(); cerr != nil {
				log.Warn().Err(cerr).Str("resource", c.name).Msg("Cleanup failed")
			} else {
				log.Debug().Str("resource", c.name).Msg("Released")
			}
		}
		s.stats.setState(StateTerminated)
	}()

	stopWatch := context.AfterFunc(ctx, s.alive.Stop)
	defer stopWatch()

	s.stats.setState(StateInitializing)

	if err := s.opts.Source.Open(ctx); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	cleanups = append(cleanups, cleanupFunc{"source", s.opts.Source.Close})

	if s.opts.Converter != nil {
		cleanups = append(cleanups, cleanupFunc{"converter", s.opts.Converter.Close})
	}

	if l, ok := s.opts.Sink.(Labeler); ok && s.opts.LabelFromCamera {
		l.SetLabel(s.opts.Source.Name())
	}
	if err := s.opts.Sink.Open(ctx); err != nil {
		return fmt.Errorf("open %s output: %w", s.opts.Sink.Name(), err)
	}
	cleanups = append(cleanups, cleanupFunc{"sink", s.opts.Sink.Close})

	s.stats.setNames(s.opts.Source.Name(), s.opts.Sink.Name())
	log.Info().
		Str("camera", s.opts.Source.Name()).
		Str("output", s.opts.Sink.Name()).
		Int("fps", s.opts.FPS).
		Msg("Session started")

	s.stats.setState(StateRunning)
	loop := NewLoop(s.opts.Source, s.opts.Converter, s.opts.Sink, NewPacer(s.opts.FPS), s.alive, s.stats)
	return loop.Run()
}
