//go:build !linux && !windows
// +build !linux,!windows

// File: reactor/reactor_stub.go
//
// Growable poll(2)-array fallback reactor for platforms without epoll/IOCP.

package reactor

import "golang.org/x/sys/unix"

type pollEntry struct {
	fd    uintptr
	udata uintptr
	mask  Mask
}

type pollReactor struct {
	entries []pollEntry
	index   map[uintptr]int
}

// NewEpollReactor is named to match the Linux factory's call sites in the
// ready loop; on non-Linux platforms it returns the poll(2)-based fallback.
func NewEpollReactor() (EventReactor, error) {
	return &pollReactor{index: make(map[uintptr]int)}, nil
}

func (r *pollReactor) Register(fd uintptr, udata uintptr, mask Mask) error {
	r.index[fd] = len(r.entries)
	r.entries = append(r.entries, pollEntry{fd: fd, udata: udata, mask: mask})
	return nil
}

func (r *pollReactor) Modify(fd uintptr, udata uintptr, mask Mask) error {
	i, ok := r.index[fd]
	if !ok {
		return r.Register(fd, udata, mask)
	}
	r.entries[i].mask = mask
	r.entries[i].udata = udata
	return nil
}

func (r *pollReactor) Deregister(fd uintptr) error {
	i, ok := r.index[fd]
	if !ok {
		return nil
	}
	last := len(r.entries) - 1
	r.entries[i] = r.entries[last]
	r.index[r.entries[i].fd] = i
	r.entries = r.entries[:last]
	delete(r.index, fd)
	return nil
}

func toPollEvents(m Mask) int16 {
	var ev int16
	if m&MaskRead != 0 {
		ev |= unix.POLLIN
	}
	if m&MaskWrite != 0 {
		ev |= unix.POLLOUT
	}
	return ev
}

func (r *pollReactor) Wait(events []Event, timeoutMillis int) (int, error) {
	fds := make([]unix.PollFd, len(r.entries))
	for i, e := range r.entries {
		fds[i] = unix.PollFd{Fd: int32(e.fd), Events: toPollEvents(e.mask)}
	}
	n, err := unix.Poll(fds, timeoutMillis)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	count := 0
	for i, pfd := range fds {
		if pfd.Revents == 0 {
			continue
		}
		if count >= len(events) {
			break
		}
		events[count] = Event{
			Fd:       uintptr(pfd.Fd),
			UserData: r.entries[i].udata,
			Readable: pfd.Revents&(unix.POLLIN|unix.POLLHUP) != 0,
			Writable: pfd.Revents&unix.POLLOUT != 0,
			Err:      pfd.Revents&(unix.POLLERR|unix.POLLHUP) != 0,
		}
		count++
	}
	return count, nil
}

func (r *pollReactor) Close() error {
	return nil
}
