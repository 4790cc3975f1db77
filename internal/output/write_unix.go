//go:build unix

package output

import (
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// writeOnce issues a single write(2) for files. os.File.Write would keep
// writing the remainder of a partial write.
func writeOnce(w io.Writer, p []byte) (int, error) {
	f, ok := w.(*os.File)
	if !ok {
		return w.Write(p)
	}
	rc, err := f.SyscallConn()
	if err != nil {
		return f.Write(p)
	}

	var n int
	var werr error
	if err := rc.Write(func(fd uintptr) bool {
		n, werr = unix.Write(int(fd), p)
		return true
	}); err != nil {
		return 0, err
	}
	if n < 0 {
		n = 0
	}
	return n, werr
}
