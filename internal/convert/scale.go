package convert

import (
	"fmt"
	"image"
	"image/color"

	"github.com/bryanchriswhite/webcamize/internal/pixfmt"
	"golang.org/x/image/draw"
)

// scaleContext maps pictures of one size onto the target layout at the
// same size. It is rebuilt whenever the source dimensions change.
type scaleContext struct {
	width  int
	height int
	format pixfmt.Format
	size   int

	// canvas is the RGBA staging image for sources without a direct path
	canvas *image.RGBA
}

func newScaleContext(format pixfmt.Format, width, height int) *scaleContext {
	return &scaleContext{
		width:  width,
		height: height,
		format: format,
		size:   format.FrameSize(width, height),
	}
}

// run writes src into dst and returns the number of bytes produced.
func (s *scaleContext) run(dst []byte, src image.Image) (int, error) {
	b := src.Bounds()
	if b.Dx() != s.width || b.Dy() != s.height {
		return 0, fmt.Errorf("picture is %dx%d, context expects %dx%d", b.Dx(), b.Dy(), s.width, s.height)
	}
	if len(dst) < s.size {
		return 0, fmt.Errorf("output buffer holds %d bytes, need %d", len(dst), s.size)
	}

	if ycc, ok := src.(*image.YCbCr); ok && s.format == pixfmt.YUYV {
		return packYCbCrToYUYV(dst, ycc, s.width, s.height), nil
	}
	return packRGBA(dst, s.rgba(src), s.format), nil
}

func (s *scaleContext) rgba(src image.Image) *image.RGBA {
	if r, ok := src.(*image.RGBA); ok && r.Bounds().Min == (image.Point{}) {
		return r
	}
	if s.canvas == nil {
		s.canvas = image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	}
	draw.Copy(s.canvas, image.Point{}, src, src.Bounds(), draw.Src, nil)
	return s.canvas
}

// packYCbCrToYUYV samples the luma and chroma planes directly.
func packYCbCrToYUYV(dst []byte, src *image.YCbCr, width, height int) int {
	minX, minY := src.Rect.Min.X, src.Rect.Min.Y
	stride := pixfmt.YUYV.BytesPerLine(width)

	for y := 0; y < height; y++ {
		row := dst[y*stride : (y+1)*stride]
		for x, o := 0, 0; x < width; x, o = x+2, o+4 {
			yi := src.YOffset(minX+x, minY+y)
			ci := src.COffset(minX+x, minY+y)
			y0 := src.Y[yi]
			y1 := y0
			if x+1 < width {
				y1 = src.Y[src.YOffset(minX+x+1, minY+y)]
			}
			row[o] = y0
			row[o+1] = src.Cb[ci]
			row[o+2] = y1
			row[o+3] = src.Cr[ci]
		}
	}
	return stride * height
}

func packRGBA(dst []byte, src *image.RGBA, format pixfmt.Format) int {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	stride := format.BytesPerLine(w)

	for y := 0; y < h; y++ {
		in := src.Pix[y*src.Stride : y*src.Stride+w*4]
		out := dst[y*stride : (y+1)*stride]

		switch format {
		case pixfmt.RGB24:
			for x := 0; x < w; x++ {
				out[x*3] = in[x*4]
				out[x*3+1] = in[x*4+1]
				out[x*3+2] = in[x*4+2]
			}
		case pixfmt.BGR24:
			for x := 0; x < w; x++ {
				out[x*3] = in[x*4+2]
				out[x*3+1] = in[x*4+1]
				out[x*3+2] = in[x*4]
			}
		case pixfmt.YUYV:
			for x, o := 0, 0; x < w; x, o = x+2, o+4 {
				y0, cb0, cr0 := color.RGBToYCbCr(in[x*4], in[x*4+1], in[x*4+2])
				y1, cb1, cr1 := y0, cb0, cr0
				if x+1 < w {
					y1, cb1, cr1 = color.RGBToYCbCr(in[x*4+4], in[x*4+5], in[x*4+6])
				}
				out[o] = y0
				out[o+1] = uint8((uint16(cb0) + uint16(cb1) + 1) / 2)
				out[o+2] = y1
				out[o+3] = uint8((uint16(cr0) + uint16(cr1) + 1) / 2)
			}
		default:
			return 0
		}
	}
	return stride * h
}
