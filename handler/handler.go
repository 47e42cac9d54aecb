// Package handler defines the dispatch contracts a registered Hook may
// implement, grounded on the teacher's api.Handler/api.WebSocketConn
// interface shape (pool/, facade/ adapters in the teacher wrap a concrete
// type behind a narrow interface the dispatcher calls through) generalized
// to the spec's four handler kinds plus the push-event callback set.
package handler

import (
	"io"
	"net/http"

	"github.com/ohler55/agoo-sub000/conn"
	"github.com/ohler55/agoo-sub000/upgraded"
)

// ResponseWriter is the write-side handle a Base/Wab/Func handler uses to
// set status, headers, and body before the worker formats and publishes a
// Response onto the originating Conn.
type ResponseWriter struct {
	Status int
	Header http.Header
	Body   []byte
}

// NewResponseWriter returns a 200-defaulted writer ready for a handler to
// fill in.
func NewResponseWriter() *ResponseWriter {
	return &ResponseWriter{Status: 200, Header: make(http.Header)}
}

// BaseHandler is the simplest dispatch kind: one method, full control over
// status/headers/body.
type BaseHandler interface {
	OnRequest(req *conn.Request, res *ResponseWriter)
}

// Env is the Rack-style request environment handed to a RackHandler.
type Env map[string]any

// RackHandler mirrors a Rack `call(env)` contract: return status, headers,
// and a body reader.
type RackHandler interface {
	Call(env Env) (status int, header http.Header, body io.Reader)
}

// WabHandler dispatches by HTTP method onto four CRUD-shaped methods.
type WabHandler interface {
	Create(req *conn.Request, res *ResponseWriter)
	Read(req *conn.Request, res *ResponseWriter)
	Update(req *conn.Request, res *ResponseWriter)
	Delete(req *conn.Request, res *ResponseWriter)
}

// FuncHandler is a plain-function handler. It does not implement
// BaseHandler; hooks of type router.Func hold a FuncHandler and the worker
// calls it directly.
type FuncHandler func(req *conn.Request, res *ResponseWriter)

// PushHandler is the full set of WS/SSE lifecycle callbacks; a concrete
// handler need only implement the ones it cares about — callers probe for
// each with the narrower single-method interfaces below, matching the
// spec's "as available" dispatch rule.
type PushHandler interface {
	OnOpen(up *upgraded.Upgraded)
	OnMessage(up *upgraded.Upgraded, msg []byte, binary bool)
	OnClose(up *upgraded.Upgraded)
	OnDrained(up *upgraded.Upgraded)
	OnError(up *upgraded.Upgraded, err error)
	OnShutdown(up *upgraded.Upgraded)
}

type onOpener interface{ OnOpen(up *upgraded.Upgraded) }
type onMessenger interface {
	OnMessage(up *upgraded.Upgraded, msg []byte, binary bool)
}
type onCloser interface{ OnClose(up *upgraded.Upgraded) }
type onDrainer interface{ OnDrained(up *upgraded.Upgraded) }
type onErrorer interface{ OnError(up *upgraded.Upgraded, err error) }
type onShutdowner interface{ OnShutdown(up *upgraded.Upgraded) }

// DispatchOpen calls OnOpen if h implements it.
func DispatchOpen(h any, up *upgraded.Upgraded) {
	if v, ok := h.(onOpener); ok {
		v.OnOpen(up)
	}
}

// DispatchMessage calls OnMessage if h implements it.
func DispatchMessage(h any, up *upgraded.Upgraded, msg []byte, binary bool) {
	if v, ok := h.(onMessenger); ok {
		v.OnMessage(up, msg, binary)
	}
}

// DispatchClose calls OnClose if h implements it.
func DispatchClose(h any, up *upgraded.Upgraded) {
	if v, ok := h.(onCloser); ok {
		v.OnClose(up)
	}
}

// DispatchDrained calls OnDrained if h implements it.
func DispatchDrained(h any, up *upgraded.Upgraded) {
	if v, ok := h.(onDrainer); ok {
		v.OnDrained(up)
	}
}

// DispatchError calls OnError if h implements it.
func DispatchError(h any, up *upgraded.Upgraded, err error) {
	if v, ok := h.(onErrorer); ok {
		v.OnError(up, err)
	}
}

// DispatchShutdown calls OnShutdown if h implements it.
func DispatchShutdown(h any, up *upgraded.Upgraded) {
	if v, ok := h.(onShutdowner); ok {
		v.OnShutdown(up)
	}
}

// StatusCarriesNoBody reports whether status is one of the special codes
// that must never carry Content-Length/Content-Type, per spec.md §4.6.
func StatusCarriesNoBody(status int) bool {
	switch status {
	case 100, 101, 102, 204, 205, 304:
		return true
	default:
		return false
	}
}
