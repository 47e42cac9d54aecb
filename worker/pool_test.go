package worker

import (
	"testing"
	"time"

	"github.com/ohler55/agoo-sub000/conn"
	"github.com/ohler55/agoo-sub000/handler"
	"github.com/ohler55/agoo-sub000/pub"
	"github.com/ohler55/agoo-sub000/router"
	"github.com/ohler55/agoo-sub000/upgraded"
)

type fakePubQueue struct {
	got []*pub.Pub
}

func (f *fakePubQueue) Submit(p *pub.Pub) { f.got = append(f.got, p) }

type fakeBaseHandler struct {
	status int
	body   string
}

func (h *fakeBaseHandler) OnRequest(req *conn.Request, res *handler.ResponseWriter) {
	res.Status = h.status
	res.Body = []byte(h.body)
}

func waitReady(t *testing.T, res *conn.Response) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if res.Ready() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("response was never published")
}

func TestDispatchBaseHandlerPublishesResponse(t *testing.T) {
	pool := NewPool(2, &fakePubQueue{})
	defer pool.Close()

	hook := &router.Hook{Type: router.Base, Handler: &fakeBaseHandler{status: 200, body: "hi"}}
	res := conn.NewResponse(conn.KindHTTP)
	req := &conn.Request{Method: conn.GET, Hook: hook, Res: res}

	pool.Dispatch(req)
	waitReady(t, res)

	msg := res.Message()
	if msg == nil {
		t.Fatal("expected published message")
	}
	body := string(msg.Bytes())
	if !contains(body, "200") || !contains(body, "hi") {
		t.Fatalf("unexpected response: %q", body)
	}
}

func TestDispatchMissingHookReturns404(t *testing.T) {
	pool := NewPool(1, &fakePubQueue{})
	defer pool.Close()

	res := conn.NewResponse(conn.KindHTTP)
	req := &conn.Request{Method: conn.GET, Res: res}

	pool.Dispatch(req)
	waitReady(t, res)

	if !contains(string(res.Message().Bytes()), "404") {
		t.Fatalf("expected 404, got %q", res.Message().Bytes())
	}
}

func TestDispatchPanicRecoversWith500(t *testing.T) {
	pool := NewPool(1, &fakePubQueue{})
	defer pool.Close()

	hook := &router.Hook{Type: router.Base, Handler: handler.FuncHandler(func(req *conn.Request, res *handler.ResponseWriter) {
		panic("boom")
	})}
	// FuncHandler is dispatched via router.Func, not router.Base; use the
	// right type so the handler actually gets invoked and panics.
	hook.Type = router.Func

	res := conn.NewResponse(conn.KindHTTP)
	req := &conn.Request{Method: conn.GET, Hook: hook, Res: res}

	pool.Dispatch(req)
	waitReady(t, res)

	if !res.Close {
		t.Fatal("expected Close to be set after a recovered panic")
	}
	if !contains(string(res.Message().Bytes()), "500") {
		t.Fatalf("expected 500, got %q", res.Message().Bytes())
	}
}

func TestDispatchPushCloseSubmitsPubClose(t *testing.T) {
	pq := &fakePubQueue{}
	pool := NewPool(1, pq)
	defer pool.Close()

	up := upgraded.New(fakeConnHandle{}, nil)
	req := &conn.Request{Method: conn.OnClose, Env: up}

	pool.DispatchPush(req)

	deadline := time.Now().Add(time.Second)
	for len(pq.got) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if len(pq.got) != 1 || pq.got[0].Kind != pub.Close {
		t.Fatalf("expected one Close pub command, got %+v", pq.got)
	}
}

type fakeConnHandle struct{}

func (fakeConnHandle) ID() uint64        { return 1 }
func (fakeConnHandle) EnqueueClose()     {}

func TestStatusCarriesNoBodyUsedForNoContentStatuses(t *testing.T) {
	pool := NewPool(1, &fakePubQueue{})
	defer pool.Close()

	hook := &router.Hook{Type: router.Base, Handler: &fakeBaseHandler{status: 204, body: "should not appear"}}
	res := conn.NewResponse(conn.KindHTTP)
	req := &conn.Request{Method: conn.GET, Hook: hook, Res: res}

	pool.Dispatch(req)
	waitReady(t, res)

	body := string(res.Message().Bytes())
	if contains(body, "Content-Length") {
		t.Fatalf("204 response must not carry Content-Length: %q", body)
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
