// Package conn implements the per-socket connection state machine:
// HTTP/1.1 request parsing, WebSocket frame multiplexing, SSE upgrade, and
// the outgoing FIFO response queue, grounded on spec.md §3/§4.5 and, for the
// WebSocket half, on the teacher's internal/websocket.Connection /
// core/protocol wiring (now folded directly into this state machine rather
// than kept as a separate wrapper type, since the spec describes one
// per-socket object, not a layered adapter chain).
package conn

import (
	"net/http"
	"sync/atomic"
	"time"
)

const (
	headerBufSize = 8 * 1024
	idleTimeout   = 5 * time.Second
	softCloseWait = 500 * time.Millisecond
)

// Dispatcher is the callback surface a Conn uses once it has a complete
// Request ready for routing: hook lookup, page-cache fallback, and eval-queue
// enqueue all live in whatever implements Dispatcher (the server package),
// keeping conn itself free of a dependency on router/pagecache/queue.
type Dispatcher interface {
	// Dispatch handles a freshly parsed Request: look up a Hook, try the
	// page cache on a GET miss, and either answer synchronously (canned
	// status responses) or enqueue the Request for a worker. Implementations
	// must eventually call req.Res.Publish.
	Dispatch(req *Request)

	// DispatchPush hands a synthesized push Request (OnMessage/OnBinary/...)
	// to the worker pool; no Response is expected back.
	DispatchPush(req *Request)
}

// Conn is one accepted socket's state, owned exclusively by the ready loop
// once registered, per spec.md §3's ownership invariant.
type Conn struct {
	id   uint64
	fd   int
	Kind Kind

	dispatcher Dispatcher

	// HTTP read state.
	headerBuf []byte // 8 KiB scratch until headers are complete
	headerLen int
	msg       []byte // full-message buffer once content-length is known
	msgLen    int
	wantLen   int // total bytes the in-progress message needs

	pending *Request // in-progress Req, nil between messages

	// WS/SSE read state.
	wsBuf []byte // accumulates bytes until a full frame is available

	// Outbound FIFO.
	resHead, resTail *Response
	framed           []byte // current head Response, framed for the wire
	writeCursor      int

	deadline   atomic.Int64 // unix nanos
	closing    atomic.Bool
	dead       atomic.Bool
	hijacked   atomic.Bool

	Upgraded any // set once upgraded; opaque to conn, read by push dispatch

	Pedantic bool
}

// New creates a Conn for the given id/fd, owned by no dispatcher until
// Attach is called (the listen loop creates bare Conns; the ready loop
// attaches the dispatcher when it installs read/write callbacks).
func New(id uint64, fd int, kind Kind) *Conn {
	c := &Conn{id: id, fd: fd, Kind: kind, headerBuf: make([]byte, 0, headerBufSize)}
	c.touch()
	return c
}

// Attach wires the Dispatcher used for completed requests.
func (c *Conn) Attach(d Dispatcher) { c.dispatcher = d }

// isPush reports whether m is one of the synthesized push pseudo-methods.
func isPush(m Method) bool {
	return m >= OnMessage && m <= OnError
}

// DispatchRequest routes req to the attached Dispatcher's Dispatch or
// DispatchPush, whichever matches req's Method, per spec.md §4.5's
// "feed returns Requests, the ready loop dispatches them" split.
func (c *Conn) DispatchRequest(req *Request) {
	if c.dispatcher == nil {
		return
	}
	if isPush(req.Method) {
		c.dispatcher.DispatchPush(req)
		return
	}
	c.dispatcher.Dispatch(req)
}

// ID returns the connection's process-unique id.
func (c *Conn) ID() uint64 { return c.id }

// FD returns the underlying file descriptor.
func (c *Conn) FD() int { return c.fd }

func (c *Conn) touch() {
	c.deadline.Store(time.Now().Add(idleTimeout).UnixNano())
}

// Expired reports whether now is past the idle deadline.
func (c *Conn) Expired(now time.Time) bool {
	return now.UnixNano() > c.deadline.Load()
}

// BeginSoftClose shortens the deadline to a final grace period after the
// first expiry, per spec.md §4.5's soft-close path.
func (c *Conn) BeginSoftClose() {
	c.closing.Store(true)
	c.deadline.Store(time.Now().Add(softCloseWait).UnixNano())
}

func (c *Conn) Closing() bool { return c.closing.Load() }

// Hijack marks the Conn as taken over by a handler: the ready loop must not
// close the socket when it later removes this Conn's link.
func (c *Conn) Hijack() { c.hijacked.Store(true) }

func (c *Conn) Hijacked() bool { return c.hijacked.Load() }

func (c *Conn) MarkDead() { c.dead.Store(true) }

func (c *Conn) Dead() bool { return c.dead.Load() }

// Enqueue appends res to the Con's outbound FIFO.
func (c *Conn) Enqueue(res *Response) {
	if c.resTail == nil {
		c.resHead, c.resTail = res, res
		return
	}
	c.resTail.next = res
	c.resTail = res
}

// EnqueueClose implements upgraded.ConnHandle: it queues an empty, already
// closed Response so the write path tears the connection down once prior
// responses flush.
func (c *Conn) EnqueueClose() {
	res := NewResponse(c.Kind)
	res.Close = true
	res.Publish(emptyText())
	c.Enqueue(res)
}

// Head returns the first Response in the FIFO, or nil.
func (c *Conn) Head() *Response { return c.resHead }

// Advance pops the current head, matching spec.md §4.5's write-path rule of
// releasing the sent Text and moving to the next Res.
func (c *Conn) Advance() {
	if c.resHead == nil {
		return
	}
	head := c.resHead
	c.resHead = head.next
	if c.resHead == nil {
		c.resTail = nil
	}
	if m := head.Message(); m != nil {
		m.Release()
	}
}

func newHeader() http.Header { return make(http.Header, 8) }
