//go:build linux
// +build linux

// File: reactor/reactor_linux.go
//
// Linux epoll(7)-based reactor implementation and factory.

package reactor

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// linuxReactor is an epoll-based event reactor.
type linuxReactor struct {
	epfd int
}

// NewEpollReactor constructs a new epoll-backed EventReactor.
func NewEpollReactor() (EventReactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &linuxReactor{epfd: epfd}, nil
}

func toEpollEvents(m Mask) uint32 {
	var ev uint32
	if m&MaskRead != 0 {
		ev |= unix.EPOLLIN
	}
	if m&MaskWrite != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func (r *linuxReactor) Register(fd uintptr, udata uintptr, mask Mask) error {
	event := &unix.EpollEvent{Events: toEpollEvents(mask), Fd: int32(fd)}
	*(*uintptr)(unsafe.Pointer(&event.Pad)) = udata
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, int(fd), event)
}

func (r *linuxReactor) Modify(fd uintptr, udata uintptr, mask Mask) error {
	event := &unix.EpollEvent{Events: toEpollEvents(mask), Fd: int32(fd)}
	*(*uintptr)(unsafe.Pointer(&event.Pad)) = udata
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, int(fd), event)
}

func (r *linuxReactor) Deregister(fd uintptr) error {
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, int(fd), nil)
}

// Wait blocks up to timeoutMillis and fills the result into the events
// slice, returning the number of ready entries.
func (r *linuxReactor) Wait(events []Event, timeoutMillis int) (int, error) {
	rawEvents := make([]unix.EpollEvent, len(events))
	n, err := unix.EpollWait(r.epfd, rawEvents, timeoutMillis)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for i := 0; i < n; i++ {
		re := rawEvents[i]
		events[i] = Event{
			Fd:       uintptr(re.Fd),
			UserData: *(*uintptr)(unsafe.Pointer(&re.Pad)),
			Readable: re.Events&(unix.EPOLLIN|unix.EPOLLHUP) != 0,
			Writable: re.Events&unix.EPOLLOUT != 0,
			Err:      re.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0,
		}
	}
	return n, nil
}

func (r *linuxReactor) Close() error {
	return unix.Close(r.epfd)
}
