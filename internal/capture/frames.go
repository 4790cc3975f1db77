package capture

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"slices"
)

// MaxFrameSize bounds a single preview frame.
const MaxFrameSize = 32 << 20

// ErrFrameTooLarge is returned when a frame exceeds MaxFrameSize.
var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// JPEG markers
const (
	markerTEM  = 0x01
	markerRST0 = 0xD0
	markerRST7 = 0xD7
	markerSOI  = 0xD8
	markerEOI  = 0xD9
	markerSOS  = 0xDA
)

// FrameReader splits a byte stream of concatenated JPEG pictures into
// individual frames. Marker segments are skipped by length so embedded
// thumbnails cannot end a frame early.
type FrameReader struct {
	r   *bufio.Reader
	buf []byte
}

// NewFrameReader wraps r.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReaderSize(r, 256<<10)}
}

// Reset discards buffered state and reads from r.
func (fr *FrameReader) Reset(r io.Reader) {
	fr.r.Reset(r)
	fr.buf = fr.buf[:0]
}

// Next returns the next complete frame from SOI to EOI. The slice is reused
// by the following call. io.EOF is returned only between frames.
func (fr *FrameReader) Next() ([]byte, error) {
	if err := fr.seekSOI(); err != nil {
		return nil, err
	}
	fr.buf = append(fr.buf[:0], 0xFF, markerSOI)

	marker, err := fr.readMarker()
	for err == nil {
		switch {
		case marker == markerEOI:
			return fr.buf, nil
		case marker == markerTEM, marker >= markerRST0 && marker <= markerRST7:
			marker, err = fr.readMarker()
		case marker == markerSOS:
			if err = fr.readSegment(); err == nil {
				marker, err = fr.scanEntropy()
			}
		default:
			if err = fr.readSegment(); err == nil {
				marker, err = fr.readMarker()
			}
		}
	}
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return nil, err
}

// seekSOI discards bytes up to and including the next start-of-image marker.
func (fr *FrameReader) seekSOI() error {
	prevFF := false
	for {
		b, err := fr.r.ReadByte()
		if err != nil {
			return err
		}
		if prevFF && b == markerSOI {
			return nil
		}
		prevFF = b == 0xFF
	}
}

// readMarker reads 0xFF, any fill bytes, and the marker code.
func (fr *FrameReader) readMarker() (byte, error) {
	b, err := fr.r.ReadByte()
	if err != nil {
		return 0, err
	}
	if b != 0xFF {
		return 0, fmt.Errorf("malformed jpeg: expected marker, found %#02x", b)
	}
	for b == 0xFF {
		if b, err = fr.r.ReadByte(); err != nil {
			return 0, err
		}
	}
	return b, fr.append(0xFF, b)
}

// readSegment copies a length-prefixed marker payload.
func (fr *FrameReader) readSegment() error {
	var hdr [2]byte
	if _, err := io.ReadFull(fr.r, hdr[:]); err != nil {
		return err
	}
	length := int(hdr[0])<<8 | int(hdr[1])
	if length < 2 {
		return fmt.Errorf("malformed jpeg: segment length %d", length)
	}
	if err := fr.append(hdr[0], hdr[1]); err != nil {
		return err
	}

	start := len(fr.buf)
	if err := fr.grow(length - 2); err != nil {
		return err
	}
	_, err := io.ReadFull(fr.r, fr.buf[start:])
	return err
}

// scanEntropy copies entropy-coded data up to the next real marker, which
// it returns.
func (fr *FrameReader) scanEntropy() (byte, error) {
	for {
		b, err := fr.r.ReadByte()
		if err != nil {
			return 0, err
		}
		if b != 0xFF {
			if err := fr.append(b); err != nil {
				return 0, err
			}
			continue
		}

		next, err := fr.r.ReadByte()
		for err == nil && next == 0xFF {
			next, err = fr.r.ReadByte()
		}
		if err != nil {
			return 0, err
		}
		if err := fr.append(0xFF, next); err != nil {
			return 0, err
		}
		if next == 0x00 || (next >= markerRST0 && next <= markerRST7) {
			continue
		}
		return next, nil
	}
}

func (fr *FrameReader) append(b ...byte) error {
	if len(fr.buf)+len(b) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	fr.buf = append(fr.buf, b...)
	return nil
}

func (fr *FrameReader) grow(n int) error {
	if len(fr.buf)+n > MaxFrameSize {
		return ErrFrameTooLarge
	}
	fr.buf = slices.Grow(fr.buf, n)
	fr.buf = fr.buf[:len(fr.buf)+n]
	return nil
}
