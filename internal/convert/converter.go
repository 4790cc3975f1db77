// Package convert decodes camera preview payloads and repacks them into a
// fixed raw pixel layout for the output sinks.
//
// A Converter initialises itself lazily from the first frame: it probes
// the payload envelope, opens a decoder once, and keeps a rescale context
// and output buffer that are rebuilt only when the picture size changes.
package convert

import (
	"errors"
	"fmt"

	"github.com/bryanchriswhite/webcamize/internal/logger"
	"github.com/bryanchriswhite/webcamize/internal/pixfmt"
	"github.com/rs/zerolog"
)

var (
	// ErrNoVideoStream means the first frame carried no decodable picture.
	ErrNoVideoStream = errors.New("no video stream in frame")
	// ErrDecodeFailed means a frame could not be decoded. The converter
	// stays usable for the next frame.
	ErrDecodeFailed = errors.New("decode failed")
	// ErrScaleFailed means the decoded picture could not be repacked.
	ErrScaleFailed = errors.New("scale failed")
)

// Options configures a Converter.
type Options struct {
	// Format is the raw layout to produce.
	Format pixfmt.Format
	// Accelerated prefers the accelerated decoder when one is compiled in.
	Accelerated bool
}

// Converter holds decoder and rescale state for one stream. It is not safe
// for concurrent use; the capture loop is its only caller.
type Converter struct {
	opts Options
	log  *zerolog.Logger

	decoder Decoder
	codec   string

	// last seen picture size
	width  int
	height int

	scale      *scaleContext
	buf        []byte
	scaleInits int
}

// New creates a Converter. No decoder is opened until the first frame.
func New(opts Options) (*Converter, error) {
	if !opts.Format.Raw() {
		return nil, fmt.Errorf("cannot convert to %s", opts.Format)
	}
	return &Converter{
		opts: opts,
		log:  logger.WithComponent("converter"),
	}, nil
}

// Convert decodes frame and returns it in the target layout. The returned
// slice aliases the converter's buffer and is valid until the next call.
func (c *Converter) Convert(frame []byte) ([]byte, error) {
	if c.decoder == nil {
		if err := c.init(frame); err != nil {
			return nil, err
		}
	}

	img, err := c.decoder.Decode(frame)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: decoder returned no picture", ErrDecodeFailed)
	}

	b := img.Bounds()
	if c.scale == nil || b.Dx() != c.width || b.Dy() != c.height {
		c.reconfigure(b.Dx(), b.Dy())
	}

	n, err := c.scale.run(c.buf[:c.scale.size], img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScaleFailed, err)
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: conversion produced %d bytes", ErrScaleFailed, n)
	}
	return c.buf[:n], nil
}

func (c *Converter) init(frame []byte) error {
	codec, width, height, err := probe(frame)
	if err != nil {
		return err
	}

	opts := defaultDecoderOptions(codec)
	var dec Decoder
	if c.opts.Accelerated && acceleratedDecoder != nil {
		dec, err = acceleratedDecoder(opts)
		if err != nil {
			c.log.Debug().Err(err).Msg("Accelerated decoder unavailable, using software decode")
			dec = nil
		}
	}
	if dec == nil {
		dec = newSoftwareDecoder(opts)
	}

	c.decoder = dec
	c.codec = codec
	c.width = width
	c.height = height

	c.log.Info().
		Str("codec", codec).
		Str("decoder", dec.Name()).
		Int("width", width).
		Int("height", height).
		Str("target", c.opts.Format.String()).
		Msg("Decoder initialized")
	return nil
}

// reconfigure rebuilds the rescale context for a new picture size. The
// output buffer only ever grows.
func (c *Converter) reconfigure(width, height int) {
	if c.scale != nil {
		c.log.Info().
			Int("old_width", c.width).
			Int("old_height", c.height).
			Int("width", width).
			Int("height", height).
			Msg("Picture size changed, rebuilding rescale context")
	}

	c.scale = newScaleContext(c.opts.Format, width, height)
	c.width = width
	c.height = height
	c.scaleInits++

	if cap(c.buf) < c.scale.size {
		c.buf = make([]byte, c.scale.size)
	}
	c.buf = c.buf[:cap(c.buf)]

	c.log.Debug().
		Int("frame_size", c.scale.size).
		Int("capacity", cap(c.buf)).
		Msg("Rescale context ready")
}

// Initialized reports whether a decoder has been opened.
func (c *Converter) Initialized() bool {
	return c.decoder != nil
}

// Format returns the target layout.
func (c *Converter) Format() pixfmt.Format {
	return c.opts.Format
}

// Codec returns the detected payload codec, empty before the first frame.
func (c *Converter) Codec() string {
	return c.codec
}

// Width returns the last seen picture width.
func (c *Converter) Width() int {
	return c.width
}

// Height returns the last seen picture height.
func (c *Converter) Height() int {
	return c.height
}

// Capacity returns the allocated size of the output buffer.
func (c *Converter) Capacity() int {
	return cap(c.buf)
}

// ScaleInits returns how many times the rescale context has been built.
func (c *Converter) ScaleInits() int {
	return c.scaleInits
}

// Close releases the decoder and buffers.
func (c *Converter) Close() error {
	var err error
	if c.decoder != nil {
		err = c.decoder.Close()
		c.decoder = nil
	}
	c.scale = nil
	c.buf = nil
	return err
}
