package conn

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/ohler55/agoo-sub000/text"
	"github.com/ohler55/agoo-sub000/wsproto"
)

const maxHeaderSize = headerBufSize

var crlfcrlf = []byte("\r\n\r\n")

// Feed appends newly read bytes to the Conn's parse state and returns any
// Requests that became complete as a result. Multiple pipelined requests in
// one read are returned in order, per spec.md §4.5's pipelining note.
func (c *Conn) Feed(data []byte) ([]*Request, error) {
	switch c.Kind {
	case KindWS:
		return c.feedWS(data)
	case KindSSE:
		// SSE connections are write-only from the server's perspective once
		// upgraded; any bytes read are discarded (clients send nothing).
		return nil, nil
	default:
		return c.feedHTTP(data)
	}
}

func (c *Conn) feedHTTP(data []byte) ([]*Request, error) {
	var reqs []*Request
	c.headerBuf = append(c.headerBuf, data...)
	for {
		if c.msg == nil {
			idx := bytes.Index(c.headerBuf, crlfcrlf)
			if idx < 0 {
				if len(c.headerBuf) > maxHeaderSize {
					return reqs, errHeaderTooLarge
				}
				return reqs, nil
			}
			req, contentLen, err := parseHeaders(c.headerBuf[:idx])
			if err != nil {
				return reqs, err
			}
			rest := c.headerBuf[idx+4:]
			c.headerBuf = c.headerBuf[:0]
			if contentLen > 0 {
				c.msg = make([]byte, 0, contentLen)
				c.wantLen = contentLen
				c.pending = req
				if len(rest) >= contentLen {
					c.msg = append(c.msg, rest[:contentLen]...)
					req.Body = c.msg
					reqs = append(reqs, c.finishRequest(req))
					c.headerBuf = append(c.headerBuf[:0], rest[contentLen:]...)
					c.msg = nil
					c.pending = nil
					continue
				}
				c.msg = append(c.msg, rest...)
				c.headerBuf = c.headerBuf[:0]
				return reqs, nil
			}
			req.Body = nil
			reqs = append(reqs, c.finishRequest(req))
			c.headerBuf = append(c.headerBuf[:0], rest...)
			continue
		}
		// Mid-body: drain from headerBuf (reused as the post-header scratch).
		need := c.wantLen - len(c.msg)
		if len(c.headerBuf) < need {
			c.msg = append(c.msg, c.headerBuf...)
			c.headerBuf = c.headerBuf[:0]
			return reqs, nil
		}
		c.msg = append(c.msg, c.headerBuf[:need]...)
		rest := c.headerBuf[need:]
		c.pending.Body = c.msg
		reqs = append(reqs, c.finishRequest(c.pending))
		c.pending = nil
		c.msg = nil
		c.headerBuf = append(c.headerBuf[:0], rest...)
	}
}

// finishRequest attaches the owning Conn and a queued, not-yet-published
// Response to a freshly parsed HTTP request, preserving FIFO order with any
// earlier pipelined requests on the same Conn.
func (c *Conn) finishRequest(req *Request) *Request {
	req.Con = c
	req.Res = NewResponse(c.Kind)
	c.Enqueue(req.Res)
	return req
}

// parseHeaders parses one request-line + header block (without the trailing
// CRLFCRLF) and returns the Request plus its Content-Length, or an error
// matching the status codes spec.md §4.5 requires (400/411/431).
func parseHeaders(block []byte) (*Request, int, error) {
	lines := strings.Split(string(block), "\r\n")
	if len(lines) == 0 || lines[0] == "" {
		return nil, 0, errBadRequest
	}
	parts := strings.SplitN(lines[0], " ", 3)
	if len(parts) != 3 {
		return nil, 0, errBadRequest
	}
	method := parseMethod(parts[0])
	if method == MethodUnknown {
		return nil, 0, errBadRequest
	}
	target := parts[1]
	path, query := target, ""
	if i := strings.IndexByte(target, '?'); i >= 0 {
		path, query = target[:i], target[i+1:]
	}

	header := newHeader()
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		i := strings.IndexByte(line, ':')
		if i < 0 {
			return nil, 0, errBadRequest
		}
		key := strings.TrimSpace(line[:i])
		val := strings.TrimSpace(line[i+1:])
		header.Add(key, val)
	}

	contentLen := 0
	if cl := header.Get("Content-Length"); cl != "" {
		n, err := strconv.Atoi(cl)
		if err != nil || n < 0 {
			return nil, 0, errBadRequest
		}
		contentLen = n
	} else if method == POST || method == PUT || method == PATCH {
		return nil, 0, errLengthRequired
	}

	req := &Request{
		Method: method,
		Path:   path,
		Query:  query,
		Header: header,
	}
	if wsproto.IsUpgradeRequest(header) {
		req.Upgrade = UpgradeWS
	} else if accept := header.Get("Accept"); strings.Contains(accept, "text/event-stream") {
		req.Upgrade = UpgradeSSE
	}
	return req, contentLen, nil
}

func (c *Conn) feedWS(data []byte) ([]*Request, error) {
	c.wsBuf = append(c.wsBuf, data...)
	var reqs []*Request
	for {
		total, ok := wsproto.Len(c.wsBuf)
		if !ok {
			return reqs, nil
		}
		frame, err := wsproto.Decode(c.wsBuf[:total])
		if err != nil {
			return reqs, err
		}
		c.wsBuf = c.wsBuf[total:]

		switch frame.Opcode {
		case wsproto.OpcodePing:
			pong := NewResponse(KindWS)
			pong.Pong = true
			pong.Publish(text.Create(frame.Payload))
			c.Enqueue(pong)
		case wsproto.OpcodePong:
			// no-op; keepalive acknowledged.
		case wsproto.OpcodeClose:
			reqs = append(reqs, &Request{Method: OnClose, Con: c})
			c.BeginSoftClose()
		case wsproto.OpcodeText:
			reqs = append(reqs, &Request{Method: OnMessage, Con: c, PushPayload: frame.Payload, PushBinary: false})
		case wsproto.OpcodeBinary:
			reqs = append(reqs, &Request{Method: OnBinary, Con: c, PushPayload: frame.Payload, PushBinary: true})
		default:
			return reqs, errBadRequest
		}
	}
}
