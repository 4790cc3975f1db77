//go:build gocv

package convert

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

func init() {
	acceleratedDecoder = newGocvDecoder
}

// gocvDecoder decodes through OpenCV's imgcodecs (libjpeg-turbo SIMD paths).
type gocvDecoder struct {
	opts DecoderOptions
}

func newGocvDecoder(opts DecoderOptions) (Decoder, error) {
	if opts.Codec != "jpeg" && opts.Codec != "png" && opts.Codec != "bmp" && opts.Codec != "tiff" && opts.Codec != "webp" {
		return nil, fmt.Errorf("opencv cannot decode %s", opts.Codec)
	}
	return &gocvDecoder{opts: opts}, nil
}

func (d *gocvDecoder) Decode(data []byte) (image.Image, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("empty image")
	}
	return mat.ToImage()
}

func (d *gocvDecoder) Name() string {
	return "opencv/" + d.opts.Codec
}

func (d *gocvDecoder) Close() error {
	return nil
}
