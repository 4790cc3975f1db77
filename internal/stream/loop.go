// Package stream runs the capture → convert → output loop.
package stream

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/webcamize/internal/capture"
	"github.com/bryanchriswhite/webcamize/internal/convert"
	"github.com/bryanchriswhite/webcamize/internal/logger"
	"github.com/bryanchriswhite/webcamize/internal/output"
	"github.com/bryanchriswhite/webcamize/internal/pixfmt"
)

// Converter turns a coded frame into a raw pixel buffer.
// *convert.Converter satisfies it.
type Converter interface {
	Convert(frame []byte) ([]byte, error)
	Format() pixfmt.Format
	Width() int
	Height() int
	ScaleInits() int
	Close() error
}

// Loop moves frames from a source to a sink, one per iteration.
type Loop struct {
	source    capture.Source
	converter Converter
	sink      output.Sink
	pacer     *Pacer
	alive     *Alive
	stats     *Stats
	log       *zerolog.Logger

	frames uint64
}

// NewLoop wires an opened source and sink. A nil converter passes frames
// through untouched.
func NewLoop(source capture.Source, converter Converter, sink output.Sink, pacer *Pacer, alive *Alive, stats *Stats) *Loop {
	if alive == nil {
		alive = NewAlive()
	}
	if stats == nil {
		stats = NewStats()
	}
	if pacer == nil {
		pacer = NewPacer(0)
	}
	return &Loop{
		source:    source,
		converter: converter,
		sink:      sink,
		pacer:     pacer,
		alive:     alive,
		stats:     stats,
		log:       logger.WithComponent("loop"),
	}
}

// Run iterates until the alive flag drops, the source ends, or a fatal
// error occurs. The flag is only checked between iterations.
func (l *Loop) Run() error {
	l.log.Info().
		Bool("convert", l.converter != nil).
		Dur("interval", l.pacer.Interval()).
		Msg("Streaming")

	for l.alive.Alive() {
		l.pacer.MarkStart()
		done, err := l.step()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		l.pacer.MarkEndAndSleep()
	}

	l.log.Info().Uint64("frames", l.frames).Msg("Interrupted, stopping")
	return nil
}

func (l *Loop) step() (done bool, err error) {
	data, err := l.source.Capture()
	if err != nil {
		if errors.Is(err, io.EOF) {
			l.log.Info().Uint64("frames", l.frames).Msg("End of stream")
			return true, nil
		}
		if !l.alive.Alive() {
			// the camera process usually shares our terminal's SIGINT
			l.log.Debug().Err(err).Msg("Capture ended during shutdown")
			return true, nil
		}
		return true, fmt.Errorf("capture from %s: %w", l.source.Name(), err)
	}
	l.frames++
	l.stats.captured.Add(1)

	frame := output.Frame{Data: data, Format: pixfmt.MJPEG}
	if l.converter != nil {
		buf, err := l.converter.Convert(data)
		switch {
		case err == nil:
			frame = output.Frame{
				Data:   buf,
				Width:  l.converter.Width(),
				Height: l.converter.Height(),
				Format: l.converter.Format(),
			}
			l.stats.converted.Add(1)
			l.stats.scaleInits.Store(int64(l.converter.ScaleInits()))
		case l.frames == 1 && errors.Is(err, convert.ErrNoVideoStream):
			return true, fmt.Errorf("first frame: %w", err)
		default:
			l.log.Warn().Err(err).Uint64("frame", l.frames).Msg("Conversion failed, passing raw frame through")
			l.stats.passthrough.Add(1)
		}
	}

	if err := l.sink.Write(frame); err != nil {
		if errors.Is(err, output.ErrFrameDropped) {
			l.stats.dropped.Add(1)
			return false, nil
		}
		return true, fmt.Errorf("write to %s: %w", l.sink.Name(), err)
	}
	l.stats.written(frame)
	return false, nil
}
