package convert

import (
	"bytes"
	"fmt"
	"image"
	"runtime"

	// Preview payload codecs. JPEG is what cameras send in practice; the
	// rest cover bodies that stream other still formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Decoder turns one coded picture into pixels.
type Decoder interface {
	// Decode decodes exactly one picture from data.
	Decode(data []byte) (image.Image, error)
	// Name identifies the implementation for logging.
	Name() string
	// Close releases decoder resources.
	Close() error
}

// DecoderOptions configures a decoder for a live stream.
type DecoderOptions struct {
	// Codec is the payload format reported by the envelope probe.
	Codec string
	// LowLatency requests one-in one-out decoding with no look-ahead.
	LowLatency bool
	// Threads is the frame-threading hint for decoders that support it.
	Threads int
}

func defaultDecoderOptions(codec string) DecoderOptions {
	return DecoderOptions{
		Codec:      codec,
		LowLatency: true,
		Threads:    runtime.NumCPU(),
	}
}

// acceleratedDecoder is set by builds that include an accelerated backend.
var acceleratedDecoder func(opts DecoderOptions) (Decoder, error)

// AccelerationAvailable reports whether an accelerated decoder was compiled in.
func AccelerationAvailable() bool {
	return acceleratedDecoder != nil
}

type softwareDecoder struct {
	opts DecoderOptions
}

func newSoftwareDecoder(opts DecoderOptions) *softwareDecoder {
	return &softwareDecoder{opts: opts}
}

func (d *softwareDecoder) Decode(data []byte) (image.Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if format != d.opts.Codec {
		return nil, fmt.Errorf("payload codec changed from %s to %s", d.opts.Codec, format)
	}
	return img, nil
}

func (d *softwareDecoder) Name() string {
	return "software/" + d.opts.Codec
}

func (d *softwareDecoder) Close() error {
	return nil
}

// probe parses the payload envelope without decoding pixel data.
func probe(data []byte) (codec string, width, height int, err error) {
	cfg, codec, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", 0, 0, fmt.Errorf("%w: %v", ErrNoVideoStream, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return "", 0, 0, fmt.Errorf("%w: %s picture reports %dx%d", ErrNoVideoStream, codec, cfg.Width, cfg.Height)
	}
	return codec, cfg.Width, cfg.Height, nil
}

// ProbeDimensions returns the picture size declared in a coded frame's header.
func ProbeDimensions(data []byte) (width, height int, err error) {
	_, width, height, err = probe(data)
	return width, height, err
}
