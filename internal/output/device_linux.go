//go:build linux

package output

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/bryanchriswhite/webcamize/internal/convert"
	"github.com/bryanchriswhite/webcamize/internal/logger"
	"github.com/bryanchriswhite/webcamize/internal/pixfmt"
)

const (
	v4l2BufTypeVideoOutput = 2
	v4l2FieldNone          = 1
	v4l2ColorspaceJPEG     = 7
	v4l2ColorspaceSRGB     = 8
)

type v4l2PixFormat struct {
	Width        uint32
	Height       uint32
	Pixelformat  uint32
	Field        uint32
	Bytesperline uint32
	Sizeimage    uint32
	Colorspace   uint32
	Priv         uint32
	Flags        uint32
	YcbcrEnc     uint32
	Quantization uint32
	XferFunc     uint32
}

type v4l2Format struct {
	Type uint32
	_    [unsafe.Sizeof(uintptr(0)) - 4]byte // union is pointer aligned
	fmt  [200]byte
}

const (
	iocWrite = 1
	iocRead  = 2

	iocNRShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30
)

func iowr(typ, nr, size uintptr) uintptr {
	return (iocRead|iocWrite)<<iocDirShift | typ<<iocTypeShift | nr<<iocNRShift | size<<iocSizeShift
}

var vidiocSFmt = iowr(uintptr('V'), 5, unsafe.Sizeof(v4l2Format{}))

// DeviceSink writes frames to a v4l2loopback output node.
type DeviceSink struct {
	loopback *Loopback
	f        *os.File

	configured bool
	format     pixfmt.Format
	width      int
	height     int
	warned     bool

	setFormat func(fd uintptr, format pixfmt.Format, width, height int) error
}

// NewDeviceSink creates a sink backed by lb.
func NewDeviceSink(lb *Loopback) (Sink, error) {
	return newDeviceSink(lb), nil
}

func newDeviceSink(lb *Loopback) *DeviceSink {
	return &DeviceSink{loopback: lb, setFormat: setOutputFormat}
}

// SetLabel names the virtual camera, if the device is yet to be created.
func (d *DeviceSink) SetLabel(label string) {
	d.loopback.SetLabel(label)
}

// Open creates or reuses the loopback device and opens its node
func (d *DeviceSink) Open(ctx context.Context) error {
	path, err := d.loopback.Setup(ctx)
	if err != nil {
		d.abandon(ctx)
		return err
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		d.abandon(ctx)
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	d.f = f
	d.configured = false
	return nil
}

// abandon unloads a module this sink loaded before Open failed. The
// caller's context may already be cancelled.
func (d *DeviceSink) abandon(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.loopback.opts.Timeout)
	defer cancel()
	if err := d.loopback.Teardown(ctx); err != nil {
		logger.WithComponent("device").Warn().Err(err).Msg("Loopback teardown failed")
	}
}

// Write configures the device format when the frame layout changes and
// writes the frame. Coded frames arriving while the device carries a raw
// format are dropped.
func (d *DeviceSink) Write(frame Frame) error {
	if d.f == nil {
		return errors.New("device sink not open")
	}
	log := logger.WithComponent("device")

	width, height := frame.Width, frame.Height
	if frame.Format == pixfmt.MJPEG {
		if d.configured && d.format.Raw() {
			if !d.warned {
				log.Warn().
					Str("device_format", d.format.String()).
					Msg("Dropping unconverted frame on raw-format device")
				d.warned = true
			}
			return ErrFrameDropped
		}
		if width == 0 || height == 0 {
			w, h, err := convert.ProbeDimensions(frame.Data)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrFrameDropped, err)
			}
			width, height = w, h
		}
	}

	if !d.configured || frame.Format != d.format || width != d.width || height != d.height {
		if err := d.setFormat(d.f.Fd(), frame.Format, width, height); err != nil {
			return fmt.Errorf("failed to set format %s %dx%d on %s: %w",
				frame.Format, width, height, d.f.Name(), err)
		}
		log.Info().
			Str("format", frame.Format.String()).
			Int("width", width).
			Int("height", height).
			Msg("Configured device format")
		d.configured = true
		d.format, d.width, d.height = frame.Format, width, height
		d.warned = false
	}

	return writeAll(d.f, frame.Data)
}

// Close closes the node, then unloads the module if this process loaded it
func (d *DeviceSink) Close() error {
	var errs []error
	if d.f != nil {
		errs = append(errs, d.f.Close())
		d.f = nil
	}
	errs = append(errs, d.loopback.Teardown(context.Background()))
	return errors.Join(errs...)
}

// Name returns the device node path
func (d *DeviceSink) Name() string {
	if p := d.loopback.Path(); p != "" {
		return p
	}
	return "v4l2loopback"
}

func setOutputFormat(fd uintptr, format pixfmt.Format, width, height int) error {
	f := v4l2Format{Type: v4l2BufTypeVideoOutput}
	pix := (*v4l2PixFormat)(unsafe.Pointer(&f.fmt[0]))
	pix.Width = uint32(width)
	pix.Height = uint32(height)
	pix.Pixelformat = format.FourCC()
	pix.Field = v4l2FieldNone
	pix.Colorspace = v4l2ColorspaceSRGB
	if format.Raw() {
		pix.Bytesperline = uint32(format.BytesPerLine(width))
		pix.Sizeimage = uint32(format.FrameSize(width, height))
	} else {
		pix.Colorspace = v4l2ColorspaceJPEG
		pix.Sizeimage = uint32(width * height * 2)
	}

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, vidiocSFmt, uintptr(unsafe.Pointer(&f)))
	if errno != 0 {
		return fmt.Errorf("VIDIOC_S_FMT: %w", errno)
	}
	return nil
}
