package server

import (
	"strings"
	"testing"
	"time"

	"github.com/ohler55/agoo-sub000/conn"
	"github.com/ohler55/agoo-sub000/handler"
	"github.com/ohler55/agoo-sub000/router"
	"github.com/ohler55/agoo-sub000/upgraded"
)

type helloHandler struct{}

func (helloHandler) OnRequest(req *conn.Request, res *handler.ResponseWriter) {
	res.Status = 200
	res.Body = []byte("hello")
}

func waitPublished(t *testing.T, res *conn.Response) string {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if res.Ready() {
			return string(res.Message().Bytes())
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("response never published")
	return ""
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(WithBinds(nil), WithWorkerCount(1))
	// WithBinds(nil) clears the default bind, so validation must fail;
	// exercise that path, then build the server with the default bind.
	if err == nil {
		t.Fatal("expected validation error for an empty bind list")
	}
	s, err = NewServer(WithWorkerCount(1))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() {
		for _, b := range s.binds {
			b.Close()
		}
		s.pool.Close()
	})
	return s
}

func TestDispatchRoutesToRegisteredHook(t *testing.T) {
	s := newTestServer(t)

	s.Register("GET", "/hello", router.Base, helloHandler{}, "")

	c := conn.New(1, -1, conn.KindHTTP)
	res := conn.NewResponse(conn.KindHTTP)
	req := &conn.Request{Method: conn.GET, Path: "/hello", Con: c, Res: res}

	s.Dispatch(req)

	body := waitPublished(t, res)
	if !strings.Contains(body, "200") || !strings.Contains(body, "hello") {
		t.Fatalf("unexpected response: %q", body)
	}
}

func TestDispatchFallsBackToPageCacheOnGetMiss(t *testing.T) {
	s := newTestServer(t)

	s.pages.Immutable("/static.txt", []byte("static content"))

	c := conn.New(1, -1, conn.KindHTTP)
	res := conn.NewResponse(conn.KindHTTP)
	req := &conn.Request{Method: conn.GET, Path: "/static.txt", Con: c, Res: res}

	s.Dispatch(req)

	if !res.Ready() {
		t.Fatal("expected the page cache hit to publish synchronously")
	}
	body := string(res.Message().Bytes())
	if !strings.Contains(body, "static content") {
		t.Fatalf("unexpected response: %q", body)
	}
}

func TestDispatchReturns404WithNoHookOrPage(t *testing.T) {
	s := newTestServer(t)

	c := conn.New(1, -1, conn.KindHTTP)
	res := conn.NewResponse(conn.KindHTTP)
	req := &conn.Request{Method: conn.GET, Path: "/missing", Con: c, Res: res}

	s.Dispatch(req)

	if !res.Ready() {
		t.Fatal("expected a synchronous 404")
	}
	if !strings.Contains(string(res.Message().Bytes()), "404") {
		t.Fatalf("expected 404, got %q", res.Message().Bytes())
	}
}

type echoPushHandler struct {
	opened bool
}

func (h *echoPushHandler) OnOpen(up *upgraded.Upgraded) { h.opened = true }

func TestDispatchWSUpgradeSendsHandshakeAndOpensHandler(t *testing.T) {
	s := newTestServer(t)

	ph := &echoPushHandler{}
	s.Register("GET", "/ws", router.Push, ph, "")

	c := conn.New(1, -1, conn.KindHTTP)
	res := conn.NewResponse(conn.KindHTTP)
	req := &conn.Request{
		Method:  conn.GET,
		Path:    "/ws",
		Con:     c,
		Res:     res,
		Upgrade: conn.UpgradeWS,
	}
	req.Header = make(map[string][]string)
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")

	s.Dispatch(req)

	if !res.Ready() {
		t.Fatal("expected handshake response published synchronously")
	}
	if !strings.Contains(string(res.Message().Bytes()), "101 Switching Protocols") {
		t.Fatalf("expected 101 response, got %q", res.Message().Bytes())
	}
	if c.Kind != conn.KindWS {
		t.Fatalf("expected Conn upgraded to KindWS, got %v", c.Kind)
	}
	if !ph.opened {
		t.Fatal("expected OnOpen to have been called")
	}
	if c.Upgraded == nil {
		t.Fatal("expected Conn.Upgraded to be set")
	}
}
