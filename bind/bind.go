// Package bind parses server listen URLs and opens the raw, non-blocking
// listening sockets the ready loop polls, grounded on the teacher's
// internal/transport/transport_linux.go (socket creation + TCP_NODELAY via
// golang.org/x/sys/unix) generalized from one outbound client socket to a
// listening socket per configured URL, with SO_REUSEPORT/SO_KEEPALIVE added
// per spec.md §2's bind options.
package bind

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Scheme identifies the transport a Bind listens on.
type Scheme int

const (
	SchemeHTTP Scheme = iota
	SchemeTCP
	SchemeUnix
)

// Bind is one opened, non-blocking listening socket.
type Bind struct {
	Scheme Scheme
	Addr   string // host:port or unix path, as displayed/logged
	FD     int
}

// Parse splits a listen URL of the form "http://host:port", "http://:port",
// "http://[::1]:port", "tcp://host:port", or "unix:///path/to.sock" into a
// scheme and address, matching spec.md §2's accepted bind syntaxes.
func Parse(url string) (Scheme, string, error) {
	switch {
	case strings.HasPrefix(url, "http://"):
		return SchemeHTTP, strings.TrimPrefix(url, "http://"), nil
	case strings.HasPrefix(url, "tcp://"):
		return SchemeTCP, strings.TrimPrefix(url, "tcp://"), nil
	case strings.HasPrefix(url, "unix://"):
		return SchemeUnix, strings.TrimPrefix(url, "unix://"), nil
	default:
		return 0, "", fmt.Errorf("bind: unrecognized listen URL %q", url)
	}
}

// Open parses url and opens a non-blocking listening socket for it, applying
// SO_REUSEADDR/SO_REUSEPORT so multiple server instances may share a port
// (spec.md §2). TCP_NODELAY/SO_KEEPALIVE are not set here; Accept sets them
// on each accepted stream socket.
func Open(url string, backlog int) (*Bind, error) {
	scheme, addr, err := Parse(url)
	if err != nil {
		return nil, err
	}
	switch scheme {
	case SchemeUnix:
		return openUnix(addr, backlog)
	default:
		return openTCP(scheme, addr, backlog)
	}
}

func openTCP(scheme Scheme, addr string, backlog int) (*Bind, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		// No host:port form (e.g. a bare port): treat the whole address as
		// the port.
		host, portStr = "", strings.TrimPrefix(addr, ":")
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("bind: invalid port in %q: %w", addr, err)
	}

	family := unix.AF_INET
	ip := net.ParseIP(host)
	if ip != nil && ip.To4() == nil {
		family = unix.AF_INET6
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("bind: socket: %w", err)
	}
	cleanup := func() { unix.Close(fd) }

	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		cleanup()
		return nil, fmt.Errorf("bind: SO_REUSEADDR: %w", err)
	}
	// SO_REUSEPORT lets several worker processes share one listen port; not
	// fatal if the kernel lacks it.
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)

	if family == unix.AF_INET6 {
		var sa unix.SockaddrInet6
		copy(sa.Addr[:], ip.To16())
		sa.Port = port
		if err = unix.Bind(fd, &sa); err != nil {
			cleanup()
			return nil, fmt.Errorf("bind: bind: %w", err)
		}
	} else {
		var sa unix.SockaddrInet4
		if ip != nil {
			copy(sa.Addr[:], ip.To4())
		}
		sa.Port = port
		if err = unix.Bind(fd, &sa); err != nil {
			cleanup()
			return nil, fmt.Errorf("bind: bind: %w", err)
		}
	}

	if err = unix.Listen(fd, backlog); err != nil {
		cleanup()
		return nil, fmt.Errorf("bind: listen: %w", err)
	}

	return &Bind{Scheme: scheme, Addr: addr, FD: fd}, nil
}

func openUnix(path string, backlog int) (*Bind, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("bind: socket: %w", err)
	}
	cleanup := func() { unix.Close(fd) }

	_ = unix.Unlink(path)
	sa := &unix.SockaddrUnix{Name: path}
	if err = unix.Bind(fd, sa); err != nil {
		cleanup()
		return nil, fmt.Errorf("bind: bind: %w", err)
	}
	if err = unix.Listen(fd, backlog); err != nil {
		cleanup()
		return nil, fmt.Errorf("bind: listen: %w", err)
	}
	return &Bind{Scheme: SchemeUnix, Addr: path, FD: fd}, nil
}

// Accept accepts one pending connection and sets it non-blocking with
// TCP_NODELAY/SO_KEEPALIVE, per spec.md §4.3's accept-time socket options.
func (b *Bind) Accept() (int, error) {
	nfd, _, err := unix.Accept4(b.FD, unix.SOCK_NONBLOCK)
	if err != nil {
		return -1, err
	}
	if b.Scheme != SchemeUnix {
		_ = unix.SetsockoptInt(nfd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
		_ = unix.SetsockoptInt(nfd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)
	}
	return nfd, nil
}

// Close closes the listening socket.
func (b *Bind) Close() error {
	return unix.Close(b.FD)
}
