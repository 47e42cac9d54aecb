package conn

import (
	"sync/atomic"

	"github.com/ohler55/agoo-sub000/text"
)

// Kind selects which outbound framing a Response gets written with, and
// doubles as the Conn's own connection kind (HTTP/WS/SSE), matching
// spec.md §3 where both Con.kind and Res.con_kind share one enumeration.
type Kind int

const (
	KindHTTP Kind = iota
	KindWS
	KindSSE
)

// Response is one queued outbound message, matching spec.md §3's Res: a
// singly-linked FIFO node whose message Text starts nil and is atomically
// published by a worker goroutine once ready. The ready loop observes
// "message != nil" as "ready to send" via an acquire load paired with the
// worker's release store, per spec.md §9's atomically-published design note.
type Response struct {
	next    *Response
	message atomic.Pointer[text.Text]

	Close   bool // drop the connection after this Res is fully sent
	ConKind Kind
	Ping    bool
	Pong    bool

	written int // write-cursor into message's bytes
}

// NewResponse allocates an unpublished Response.
func NewResponse(kind Kind) *Response {
	return &Response{ConKind: kind}
}

// Publish atomically installs msg with release semantics, making it visible
// to a concurrently polling ready loop.
func (r *Response) Publish(msg *text.Text) {
	r.message.Store(msg)
}

// Message acquire-loads the published Text, or nil if not yet published.
func (r *Response) Message() *text.Text {
	return r.message.Load()
}

// Ready reports whether the worker has published a message yet.
func (r *Response) Ready() bool {
	return r.message.Load() != nil
}
