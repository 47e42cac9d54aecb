// Package worker implements the fixed-size handler worker pool that
// consumes Requests off the eval-queue and dispatches them by Hook type,
// grounded on the teacher's core/concurrency.Executor (local lock-free
// queue per worker plus a shared global-queue fallback, panic-safe task
// execution) adapted from a generic TaskFunc executor into a
// Request-dispatching one.
package worker

import (
	"fmt"
	"net/http"

	"github.com/ohler55/agoo-sub000/conn"
	"github.com/ohler55/agoo-sub000/core/concurrency"
	"github.com/ohler55/agoo-sub000/handler"
	"github.com/ohler55/agoo-sub000/pub"
	"github.com/ohler55/agoo-sub000/router"
	"github.com/ohler55/agoo-sub000/text"
	"github.com/ohler55/agoo-sub000/upgraded"
)

// PubPublisher is the narrow surface the pool needs to push a Pub command
// onto the pub-queue — satisfied by pubsub.Loop, kept as an interface here
// so worker never imports pubsub (which itself depends on conn/upgraded).
type PubPublisher interface {
	Submit(p *pub.Pub)
}

// Pool is a fixed-size set of handler goroutines.
type Pool struct {
	exec *concurrency.Executor
	pubq PubPublisher
}

// NewPool starts n worker goroutines backed by a teacher-style Executor.
func NewPool(n int, pubq PubPublisher) *Pool {
	return &Pool{exec: concurrency.NewExecutor(n), pubq: pubq}
}

// Close stops every worker goroutine and waits for the tasks they are
// running to return; tasks still queued when Close is called are not run.
func (p *Pool) Close() {
	p.exec.Close()
}

// Dispatch implements conn.Dispatcher: submits req for asynchronous
// handling by a worker goroutine.
func (p *Pool) Dispatch(req *conn.Request) {
	if err := p.exec.Submit(func() { p.handle(req) }); err != nil {
		respondError(req, 503)
	}
}

// DispatchPush implements conn.Dispatcher for synthesized push events.
func (p *Pool) DispatchPush(req *conn.Request) {
	if err := p.exec.Submit(func() { p.handlePush(req) }); err != nil {
		// Push events have no response to fail; drop silently, matching
		// the at-most-once delivery the spec's back-pressure rule implies
		// once the pool itself is shedding load.
		_ = err
	}
}

func (p *Pool) handle(req *conn.Request) {
	defer func() {
		if r := recover(); r != nil {
			respondError(req, 500)
		}
	}()

	hook, _ := req.Hook.(*router.Hook)
	if hook == nil {
		respondError(req, 404)
		return
	}

	rw := handler.NewResponseWriter()
	switch hook.Type {
	case router.Base:
		h, _ := hook.Handler.(handler.BaseHandler)
		if h == nil {
			respondError(req, 500)
			return
		}
		h.OnRequest(req, rw)
	case router.Rack:
		h, _ := hook.Handler.(handler.RackHandler)
		if h == nil {
			respondError(req, 500)
			return
		}
		status, hdr, body := h.Call(handler.Env{
			"REQUEST_METHOD": req.Method.String(),
			"PATH_INFO":       req.Path,
			"QUERY_STRING":    req.Query,
			"rack.input":      req.Body,
		})
		rw.Status = status
		if hdr != nil {
			rw.Header = hdr
		}
		if body != nil {
			buf := make([]byte, 0, 1024)
			tmp := make([]byte, 4096)
			for {
				n, err := body.Read(tmp)
				if n > 0 {
					buf = append(buf, tmp[:n]...)
				}
				if err != nil {
					break
				}
			}
			rw.Body = buf
		}
	case router.Wab:
		h, _ := hook.Handler.(handler.WabHandler)
		if h == nil {
			respondError(req, 500)
			return
		}
		switch req.Method {
		case conn.POST:
			h.Create(req, rw)
		case conn.GET:
			h.Read(req, rw)
		case conn.PUT, conn.PATCH:
			h.Update(req, rw)
		case conn.DELETE:
			h.Delete(req, rw)
		default:
			rw.Status = 405
		}
	case router.Func:
		fn, _ := hook.Handler.(handler.FuncHandler)
		if fn == nil {
			respondError(req, 500)
			return
		}
		fn(req, rw)
	default:
		respondError(req, 500)
		return
	}

	writeResponse(req, rw)
}

func (p *Pool) handlePush(req *conn.Request) {
	defer func() { recover() }()

	up, _ := req.Env.(*upgraded.Upgraded)
	if up == nil {
		return
	}
	h := up.Handler

	switch req.Method {
	case conn.OnMessage, conn.OnBinary:
		handler.DispatchMessage(h, up, req.PushPayload, req.PushBinary)
	case conn.OnClose:
		handler.DispatchClose(h, up)
		p.pubq.Submit(pub.NewClose(up))
	case conn.OnShutdown:
		handler.DispatchShutdown(h, up)
	case conn.OnEmpty:
		handler.DispatchDrained(h, up)
	case conn.OnError:
		handler.DispatchError(h, up, req.PushErr)
	}
}

func writeResponse(req *conn.Request, rw *handler.ResponseWriter) {
	res := req.Res
	if res == nil {
		return
	}
	if handler.StatusCarriesNoBody(rw.Status) {
		res.Publish(text.Create(formatStatusLine(rw.Status, nil)))
		return
	}
	if rw.Header == nil {
		rw.Header = make(http.Header)
	}
	if rw.Header.Get("Content-Type") == "" {
		rw.Header.Set("Content-Type", "text/plain")
	}
	rw.Header.Set("Content-Length", fmt.Sprintf("%d", len(rw.Body)))
	res.Publish(text.Create(formatStatusLine(rw.Status, rw.Header, rw.Body)))
}

func respondError(req *conn.Request, status int) {
	if req.Res == nil {
		return
	}
	req.Res.Close = status >= 500
	req.Res.Publish(text.Create(formatStatusLine(status, nil)))
}

func formatStatusLine(status int, header http.Header, body ...[]byte) []byte {
	buf := []byte(fmt.Sprintf("HTTP/1.1 %d %s\r\n", status, http.StatusText(status)))
	for k, vs := range header {
		for _, v := range vs {
			buf = append(buf, []byte(k+": "+v+"\r\n")...)
		}
	}
	buf = append(buf, '\r', '\n')
	for _, b := range body {
		buf = append(buf, b...)
	}
	return buf
}
