package readyloop

import (
	"golang.org/x/sys/unix"
)

func readFD(fd int, buf []byte) (int, error) {
	n, err := unix.Read(fd, buf)
	if n < 0 {
		n = 0
	}
	return n, err
}

func writeFD(fd int, buf []byte) (int, error) {
	n, err := unix.Write(fd, buf)
	if n < 0 {
		n = 0
	}
	return n, err
}

func closeFD(fd int) {
	_ = unix.Close(fd)
}

func isWouldBlock(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR
}
