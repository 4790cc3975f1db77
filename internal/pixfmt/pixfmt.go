// Package pixfmt describes the pixel layouts that flow between the
// converter and the output sinks.
package pixfmt

import (
	"fmt"
	"strings"
)

// Format identifies a frame layout.
type Format int

const (
	// MJPEG is the camera's coded payload passed through untouched.
	MJPEG Format = iota
	// YUYV is packed YUV 4:2:2, two bytes per pixel.
	YUYV
	// RGB24 is packed 8-bit R, G, B.
	RGB24
	// BGR24 is packed 8-bit B, G, R.
	BGR24
)

// V4L2 fourcc codes
const (
	FourCCMJPEG uint32 = 'M' | 'J'<<8 | 'P'<<16 | 'G'<<24
	FourCCYUYV  uint32 = 'Y' | 'U'<<8 | 'Y'<<16 | 'V'<<24
	FourCCRGB24 uint32 = 'R' | 'G'<<8 | 'B'<<16 | '3'<<24
	FourCCBGR24 uint32 = 'B' | 'G'<<8 | 'R'<<16 | '3'<<24
)

var names = map[Format]string{
	MJPEG: "mjpeg",
	YUYV:  "yuyv",
	RGB24: "rgb24",
	BGR24: "bgr24",
}

func (f Format) String() string {
	if n, ok := names[f]; ok {
		return n
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// Parse returns the format named s (case-insensitive).
func Parse(s string) (Format, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for f, n := range names {
		if n == want {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown pixel format %q (use yuyv, rgb24 or bgr24)", s)
}

// ParseTarget is Parse restricted to formats the converter can produce.
func ParseTarget(s string) (Format, error) {
	f, err := Parse(s)
	if err != nil {
		return 0, err
	}
	if !f.Raw() {
		return 0, fmt.Errorf("pixel format %q cannot be a conversion target", s)
	}
	return f, nil
}

// Raw reports whether f is an uncompressed fixed-size layout.
func (f Format) Raw() bool {
	return f == YUYV || f == RGB24 || f == BGR24
}

// FourCC returns the V4L2 pixel format code.
func (f Format) FourCC() uint32 {
	switch f {
	case YUYV:
		return FourCCYUYV
	case RGB24:
		return FourCCRGB24
	case BGR24:
		return FourCCBGR24
	default:
		return FourCCMJPEG
	}
}

// BytesPerPixel is the nominal size of one pixel; 0 for coded formats.
func (f Format) BytesPerPixel() int {
	switch f {
	case YUYV:
		return 2
	case RGB24, BGR24:
		return 3
	default:
		return 0
	}
}

// BytesPerLine returns the stride of one row of width pixels. YUYV rows
// are padded to a whole macropixel.
func (f Format) BytesPerLine(width int) int {
	if width <= 0 {
		return 0
	}
	if f == YUYV {
		return ((width + 1) / 2) * 4
	}
	return width * f.BytesPerPixel()
}

// FrameSize returns the byte size of a width x height frame.
func (f Format) FrameSize(width, height int) int {
	if height <= 0 {
		return 0
	}
	return f.BytesPerLine(width) * height
}
