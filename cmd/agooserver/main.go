// Command agooserver is a demo entry point over the server package: a
// static file root, a WebSocket echo handler, and an SSE ticker, grounded on
// the teacher's examples/highlevel/echo/main.go flag-parsing shape (plain
// stdlib flag, no CLI framework, since none appears anywhere in the
// retrieval pack).
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ohler55/agoo-sub000/conn"
	"github.com/ohler55/agoo-sub000/handler"
	"github.com/ohler55/agoo-sub000/logctl"
	"github.com/ohler55/agoo-sub000/pub"
	"github.com/ohler55/agoo-sub000/router"
	"github.com/ohler55/agoo-sub000/server"
	"github.com/ohler55/agoo-sub000/text"
	"github.com/ohler55/agoo-sub000/upgraded"
)

func main() {
	port := flag.Int("port", 6464, "port to listen on")
	root := flag.String("root", ".", "static file root directory")
	workers := flag.Int("workers", 4, "handler worker goroutine count")
	debug := flag.Bool("debug", false, "enable debug logging and probes")
	quiet := flag.Bool("quiet", false, "suppress informational logging")
	flag.Parse()

	s, err := server.NewServer(
		server.WithBinds([]string{fmt.Sprintf("http://:%d", *port)}),
		server.WithRoot(*root),
		server.WithWorkerCount(*workers),
		server.WithDebug(*debug),
		server.WithQuiet(*quiet),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "agooserver: %v\n", err)
		os.Exit(1)
	}

	s.Register("GET", "/hello", router.Func, handler.FuncHandler(helloHandler), "")
	s.Register("GET", "/ws/echo", router.Push, &echoPushHandler{}, "")
	s.Register("GET", "/sse/ticker", router.Push, &tickerPushHandler{server: s}, "")

	stop := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		close(stop)
	}()

	logctl.Default.Info(logctl.Listen, "listening on :%d, serving %s", *port, *root)
	s.Serve(stop)
}

func helloHandler(req *conn.Request, res *handler.ResponseWriter) {
	res.Status = 200
	res.Body = []byte("hello, world\n")
}

// echoPushHandler echoes every inbound WebSocket message back to its sender.
type echoPushHandler struct{}

func (echoPushHandler) OnOpen(up *upgraded.Upgraded) {
	logctl.Default.Info(logctl.WS, "connection opened")
}

func (echoPushHandler) OnMessage(up *upgraded.Upgraded, msg []byte, binary bool) {
	if c, ok := up.Con.(interface {
		Enqueue(res *conn.Response)
	}); ok {
		res := conn.NewResponse(conn.KindWS)
		res.Publish(text.Create(append([]byte(nil), msg...)))
		c.Enqueue(res)
	}
}

func (echoPushHandler) OnClose(up *upgraded.Upgraded) {
	logctl.Default.Info(logctl.WS, "connection closed")
}

// tickerPushHandler starts a goroutine for every new SSE connection that
// writes the current time directly to that connection once a second, and
// stops once more than 100 writes are pending on it.
type tickerPushHandler struct {
	server *server.Server
}

func (h *tickerPushHandler) OnOpen(up *upgraded.Upgraded) {
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if up.Pending() > 100 {
				return // connection backed up; stop feeding it
			}
			h.server.PubLoop().Submit(pub.NewWrite(up, text.Create([]byte(time.Now().Format(time.RFC3339))), false))
		}
	}()
}
