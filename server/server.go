package server

import (
	"fmt"

	"github.com/ohler55/agoo-sub000/bind"
	"github.com/ohler55/agoo-sub000/conn"
	"github.com/ohler55/agoo-sub000/control"
	"github.com/ohler55/agoo-sub000/handler"
	"github.com/ohler55/agoo-sub000/listenloop"
	"github.com/ohler55/agoo-sub000/logctl"
	"github.com/ohler55/agoo-sub000/pagecache"
	"github.com/ohler55/agoo-sub000/pubsub"
	"github.com/ohler55/agoo-sub000/queue"
	"github.com/ohler55/agoo-sub000/reactor"
	"github.com/ohler55/agoo-sub000/readyloop"
	"github.com/ohler55/agoo-sub000/router"
	"github.com/ohler55/agoo-sub000/upgraded"
	"github.com/ohler55/agoo-sub000/worker"
	"github.com/ohler55/agoo-sub000/wsproto"
)

const conQueueCapacity = 4096

// Server wires the listen loop, ready loop, worker pool, pub loop, router,
// page cache, and control plane into one runnable instance, grounded on the
// teacher's highlevel.Server assembly (one struct owning every subsystem,
// Register* methods building up a Hook table before Start).
type Server struct {
	opts Options

	table *router.Table
	pages *pagecache.Cache
	pool  *worker.Pool
	pub   *pubsub.Loop
	upMgr *upgraded.Manager

	binds      []*bind.Bind
	conQ       *queue.Queue[*conn.Conn]
	listenLoop *listenloop.Loop
	readyLoop  *readyloop.Loop

	cfg     *control.ConfigStore
	metrics *control.MetricsRegistry
	debug   *control.DebugProbes
	log     *logctl.Logger

	started bool
}

// NewServer builds a Server from the given Options, opening every configured
// bind but not yet accepting connections (call Start or Serve for that).
func NewServer(opts ...Option) (*Server, error) {
	o := DefaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	s := &Server{
		opts:    o,
		table:   router.New(),
		pages:   pagecache.New(),
		upMgr:   upgraded.NewManager(),
		cfg:     control.NewConfigStore(),
		metrics: control.NewMetricsRegistry(),
		debug:   control.NewDebugProbes(),
		log:     logctl.Default,
	}
	if o.Root != "" {
		s.pages.SetRoot(o.Root)
	}
	if o.Debug {
		control.RegisterPlatformProbes(s.debug)
		s.log.SetMinLevel(logctl.LevelDebug)
	}
	if o.Quiet {
		for _, cat := range []logctl.Category{logctl.Conn, logctl.WS, logctl.SSE, logctl.Pub, logctl.Page, logctl.Worker, logctl.Listen} {
			s.log.SetQuiet(cat, true)
		}
	}
	s.debug.RegisterProbe("config.snapshot", func() any { return s.cfg.GetSnapshot() })
	s.debug.RegisterProbe("metrics.snapshot", func() any { return s.metrics.GetSnapshot() })
	s.debug.RegisterProbe("log.counts", func() any { return s.log.Counts() })

	for _, url := range o.Binds {
		b, err := bind.Open(url, 1024)
		if err != nil {
			for _, opened := range s.binds {
				opened.Close()
			}
			return nil, fmt.Errorf("server: %w", err)
		}
		s.binds = append(s.binds, b)
	}

	s.pub = pubsub.NewLoop(o.PubQueueSize, s.upMgr, s.metrics)
	s.pool = worker.NewPool(o.WorkerCount, s.pub)

	r, err := reactor.NewEpollReactor()
	if err != nil {
		return nil, fmt.Errorf("server: reactor: %w", err)
	}
	s.conQ = queue.New[*conn.Conn](conQueueCapacity)
	s.listenLoop = listenloop.New(s.binds, s.conQ, nil)
	s.readyLoop = readyloop.New(r, s.conQ)

	s.cfg.OnReload(func() {
		snap := s.cfg.GetSnapshot()
		if v, ok := snap["maxPushPending"].(int); ok {
			s.opts.MaxPushPending = v
		}
	})

	return s, nil
}

// Register inserts a Hook into the route table, matching the teacher's
// Server.Handle-style registration surface.
func (s *Server) Register(method, pattern string, typ router.Type, handler any, queueName string) *router.Hook {
	return s.table.Register(method, pattern, typ, handler, queueName)
}

// RegisterNotFound installs the catch-all 404 hook.
func (s *Server) RegisterNotFound(handler any, typ router.Type) *router.Hook {
	return s.table.RegisterNotFound(handler, typ)
}

// AddMime registers or overrides a static-file MIME type.
func (s *Server) AddMime(ext, mimeType string) { s.pages.AddMime(ext, mimeType) }

// PathGroup registers a logical static-file prefix over one or more
// directories.
func (s *Server) PathGroup(prefix string, dirs ...string) { s.pages.PathGroup(prefix, dirs...) }

// SetRoot sets the static-file root directory.
func (s *Server) SetRoot(dir string) { s.pages.SetRoot(dir) }

// ConfigStore exposes the hot-reloadable configuration store.
func (s *Server) ConfigStore() *control.ConfigStore { return s.cfg }

// Metrics exposes the metrics registry.
func (s *Server) Metrics() *control.MetricsRegistry { return s.metrics }

// Debug exposes the debug probe registry.
func (s *Server) Debug() *control.DebugProbes { return s.debug }

// PubLoop exposes the pub-loop submit queue, letting demo/background code
// (e.g. an SSE ticker) publish to an Upgraded connection the same way the
// worker pool does.
func (s *Server) PubLoop() *pubsub.Loop { return s.pub }

// Start launches every background loop without blocking the caller.
func (s *Server) Start() {
	if s.started {
		return
	}
	s.started = true
	s.pub.Start()
	s.readyLoop.Start()
	s.listenLoop.Start()
	s.log.Info(logctl.Listen, "server started on %d bind(s)", len(s.binds))
}

// Serve starts the server and blocks until stop is closed by the caller
// (typically from a signal handler), then calls Shutdown itself.
func (s *Server) Serve(stop <-chan struct{}) {
	s.Start()
	<-stop
	s.Shutdown()
}

// Shutdown stops accepting new connections, stops the ready loop (which
// closes every open connection without flushing its pending responses),
// closes the worker pool (queued tasks are not run), then tears down the
// pub loop and the binds.
func (s *Server) Shutdown() {
	if !s.started {
		return
	}
	s.listenLoop.Stop()
	s.readyLoop.Stop()
	s.pool.Close()
	s.pub.Stop()
	for _, b := range s.binds {
		b.Close()
	}
	s.started = false
	s.log.Info(logctl.Listen, "server stopped")
}

// Dispatch implements conn.Dispatcher: match a Hook, fall back to the page
// cache on a GET miss, handle WS/SSE upgrade handshakes synchronously, and
// otherwise enqueue req for a worker.
func (s *Server) Dispatch(req *conn.Request) {
	if s.opts.RootFirst && req.Method == conn.GET {
		if page, ok := s.pages.Get(req.Path); ok {
			s.serveStatic(req, page)
			return
		}
	}

	hook := s.table.Match(req.Method.String(), req.Path)
	if hook == nil && req.Method == conn.GET {
		if page, ok := s.pages.Get(req.Path); ok {
			s.serveStatic(req, page)
			return
		}
	}
	if hook == nil {
		hook = s.table.NotFound()
	}
	if hook == nil {
		req.Res.Publish(notFoundResponse())
		return
	}
	req.Hook = hook

	if hook.Type == router.Push && req.Upgrade != conn.UpgradeNone {
		s.upgrade(req, hook)
		return
	}

	s.pool.Dispatch(req)
}

// DispatchPush implements conn.Dispatcher for synthesized push events,
// attaching the Conn's live Upgraded handle before handing off to the pool.
func (s *Server) DispatchPush(req *conn.Request) {
	req.Env = req.Con.Upgraded
	s.pool.DispatchPush(req)
}

func (s *Server) serveStatic(req *conn.Request, page *pagecache.Page) {
	req.Res.Publish(page.Resp.Ref())
}

func (s *Server) upgrade(req *conn.Request, hook *router.Hook) {
	switch req.Upgrade {
	case conn.UpgradeWS:
		key := req.Header.Get("Sec-WebSocket-Key")
		protocol := req.Header.Get("Sec-WebSocket-Protocol")
		req.Res.Publish(responseText(wsproto.HandshakeResponse(key, protocol)))
		req.Con.UpgradeTo(conn.KindWS)
	case conn.UpgradeSSE:
		req.Res.Publish(responseText(sseHandshakeResponse()))
		req.Con.UpgradeTo(conn.KindSSE)
	default:
		s.pool.Dispatch(req)
		return
	}
	up := upgraded.New(req.Con, hook.Handler)
	s.upMgr.Add(up)
	req.Con.Upgraded = up
	handler.DispatchOpen(hook.Handler, up)
}
