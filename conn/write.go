package conn

import (
	"fmt"

	"github.com/ohler55/agoo-sub000/text"
	"github.com/ohler55/agoo-sub000/wsproto"
)

var emptyTextSingleton = text.Create(nil)

// emptyText returns a shared, refcounted empty Text for Responses that carry
// no payload (e.g. a close marker).
func emptyText() *text.Text {
	return emptyTextSingleton.Ref()
}

// WriteResult reports what a single write attempt accomplished, letting the
// ready loop decide whether to keep the write-ready flag set.
type WriteResult struct {
	Bytes     []byte // remaining bytes to hand to the socket write syscall
	Done      bool   // this Response fully queued; call Advance after the
	// syscall reports the whole slice was written
	CloseAfter bool // tear the connection down once Bytes finish sending
}

// NextWrite returns the bytes to attempt writing next, framed per the head
// Response's Kind (WS frames get RFC 6455 server framing; SSE gets
// "event: msg\ndata: ...\n\n"; HTTP bytes pass straight through since the
// worker already formatted a full status line + headers + body).
func (c *Conn) NextWrite() (WriteResult, bool) {
	head := c.resHead
	if head == nil {
		return WriteResult{}, false
	}
	msg := head.Message()
	if msg == nil {
		return WriteResult{}, false // not yet published by the worker
	}

	if c.writeCursor == 0 {
		c.framed = frameResponse(head, msg)
	}
	if c.writeCursor >= len(c.framed) {
		c.writeCursor = 0
		return WriteResult{Done: true, CloseAfter: head.Close}, true
	}
	return WriteResult{Bytes: c.framed[c.writeCursor:], CloseAfter: head.Close}, true
}

// AdvanceWrite tells the Conn that n more bytes of the current framed Response
// were written to the socket, advancing past it (and calling Conn.Advance /
// releasing the Text) once the whole framed payload has gone out.
func (c *Conn) AdvanceWrite(n int) {
	c.writeCursor += n
	if c.writeCursor >= len(c.framed) {
		c.framed = nil
		c.writeCursor = 0
		c.Advance()
	}
}

func frameResponse(res *Response, msg *text.Text) []byte {
	switch res.ConKind {
	case KindWS:
		var op byte = wsproto.OpcodeText
		if res.Ping {
			op = wsproto.OpcodePing
		} else if res.Pong {
			op = wsproto.OpcodePong
		} else if res.Close {
			op = wsproto.OpcodeClose
		}
		return wsproto.Encode(op, msg.Bytes())
	case KindSSE:
		return []byte(fmt.Sprintf("event: msg\ndata: %s\n\n", msg.Bytes()))
	default:
		return msg.Bytes()
	}
}

// ssePreamble is written once immediately after an SSE upgrade response.
func ssePreamble() []byte {
	return []byte("retry: 5\n\n")
}
