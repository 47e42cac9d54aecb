package conn

import (
	"strings"
	"testing"

	"github.com/ohler55/agoo-sub000/wsproto"
)

func TestFeedHTTPSimpleGet(t *testing.T) {
	c := New(1, -1, KindHTTP)
	reqs, err := c.Feed([]byte("GET /hello?x=1 HTTP/1.1\r\nHost: localhost\r\n\r\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	req := reqs[0]
	if req.Method != GET || req.Path != "/hello" || req.Query != "x=1" {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestFeedHTTPPostRequiresLength(t *testing.T) {
	c := New(1, -1, KindHTTP)
	_, err := c.Feed([]byte("POST /submit HTTP/1.1\r\nHost: localhost\r\n\r\n"))
	if err != errLengthRequired {
		t.Fatalf("expected length-required error, got %v", err)
	}
	if StatusFor(err) != 411 {
		t.Fatalf("expected 411, got %d", StatusFor(err))
	}
}

func TestFeedHTTPWithBody(t *testing.T) {
	c := New(1, -1, KindHTTP)
	raw := "POST /echo HTTP/1.1\r\nHost: localhost\r\nContent-Length: 5\r\n\r\nhello"
	reqs, err := c.Feed([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reqs) != 1 || string(reqs[0].Body) != "hello" {
		t.Fatalf("unexpected body parse: %+v", reqs)
	}
}

func TestFeedHTTPBodySplitAcrossReads(t *testing.T) {
	c := New(1, -1, KindHTTP)
	reqs, err := c.Feed([]byte("POST /echo HTTP/1.1\r\nContent-Length: 5\r\n\r\nhel"))
	if err != nil || len(reqs) != 0 {
		t.Fatalf("expected request still pending, got reqs=%v err=%v", reqs, err)
	}
	reqs, err = c.Feed([]byte("lo"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reqs) != 1 || string(reqs[0].Body) != "hello" {
		t.Fatalf("unexpected completed body: %+v", reqs)
	}
}

func TestFeedHTTPPipelining(t *testing.T) {
	c := New(1, -1, KindHTTP)
	raw := "GET /a HTTP/1.1\r\n\r\nGET /b HTTP/1.1\r\n\r\n"
	reqs, err := c.Feed([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reqs) != 2 || reqs[0].Path != "/a" || reqs[1].Path != "/b" {
		t.Fatalf("unexpected pipelined requests: %+v", reqs)
	}
}

func TestFeedHTTPUnknownMethod(t *testing.T) {
	c := New(1, -1, KindHTTP)
	_, err := c.Feed([]byte("FROB / HTTP/1.1\r\n\r\n"))
	if err != errBadRequest {
		t.Fatalf("expected bad request, got %v", err)
	}
	if StatusFor(err) != 400 {
		t.Fatalf("expected 400, got %d", StatusFor(err))
	}
}

func TestFeedDetectsUpgradeRequest(t *testing.T) {
	c := New(1, -1, KindHTTP)
	raw := strings.Join([]string{
		"GET /chat HTTP/1.1",
		"Host: localhost",
		"Upgrade: websocket",
		"Connection: Upgrade",
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==",
		"Sec-WebSocket-Version: 13",
		"", "",
	}, "\r\n")
	reqs, err := c.Feed([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reqs) != 1 || reqs[0].Upgrade != UpgradeWS {
		t.Fatalf("expected websocket upgrade detected: %+v", reqs)
	}
}

func TestFeedWSTextFrame(t *testing.T) {
	c := New(1, -1, KindWS)
	frame := maskedFrame(wsproto.OpcodeText, []byte("hi"))
	reqs, err := c.Feed(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reqs) != 1 || reqs[0].Method != OnMessage || string(reqs[0].PushPayload) != "hi" {
		t.Fatalf("unexpected ws request: %+v", reqs)
	}
}

func TestFeedWSPingQueuesPong(t *testing.T) {
	c := New(1, -1, KindWS)
	frame := maskedFrame(wsproto.OpcodePing, []byte("ping"))
	_, err := c.Feed(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Head() == nil || !c.Head().Pong {
		t.Fatalf("expected a queued pong response")
	}
}

func TestFeedWSCloseBeginsSoftClose(t *testing.T) {
	c := New(1, -1, KindWS)
	frame := maskedFrame(wsproto.OpcodeClose, nil)
	reqs, err := c.Feed(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reqs) != 1 || reqs[0].Method != OnClose {
		t.Fatalf("expected ON_CLOSE request: %+v", reqs)
	}
	if !c.Closing() {
		t.Fatalf("expected conn marked closing")
	}
}

func maskedFrame(opcode byte, payload []byte) []byte {
	buf := []byte{0x80 | opcode}
	l := len(payload)
	switch {
	case l < 126:
		buf = append(buf, 0x80|byte(l))
	default:
		buf = append(buf, 0x80|126, byte(l>>8), byte(l))
	}
	mask := []byte{1, 2, 3, 4}
	buf = append(buf, mask...)
	for i, b := range payload {
		buf = append(buf, b^mask[i%4])
	}
	return buf
}
