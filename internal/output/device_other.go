//go:build !linux

package output

// NewDeviceSink reports ErrDeviceUnsupported outside Linux.
func NewDeviceSink(lb *Loopback) (Sink, error) {
	return nil, ErrDeviceUnsupported
}
