// Package server assembles the listen loop, ready loop, worker pool, pub
// loop, router, page cache, and control plane into one runnable instance,
// grounded on the teacher's highlevel.Server construction shape (functional
// Option setters over a defaulted Options struct, validated at NewServer
// time) generalized to this spec's bind/thread/worker/push-pending knobs.
package server

import "fmt"

// Options configures a Server before it is built.
type Options struct {
	Binds []string // listen URLs, e.g. "http://:8080", "unix:///tmp/app.sock"

	ThreadCount    int // reserved for a future multi-reactor split; [1,1000]
	WorkerCount    int // handler worker goroutines; [1,32]
	MaxPushPending int // stored and hot-reloadable, [0,1000]; no write path checks it
	PubQueueSize   int

	Pedantic  bool // stored only; no request parsing reads it
	RootFirst bool // try the page-cache root before the router on every GET

	Root string

	Quiet bool
	Debug bool
}

// Option mutates an Options value.
type Option func(*Options)

// DefaultOptions returns the baseline configuration the teacher's
// highlevel.Server ships as its zero-value default, adapted to this spec's
// field set.
func DefaultOptions() Options {
	return Options{
		Binds:          []string{"http://:6464"},
		ThreadCount:    1,
		WorkerCount:    4,
		MaxPushPending: 256,
		PubQueueSize:   1024,
	}
}

// WithBind appends a listen URL.
func WithBind(url string) Option {
	return func(o *Options) { o.Binds = append(o.Binds, url) }
}

// WithBinds replaces the listen URL set.
func WithBinds(urls []string) Option {
	return func(o *Options) { o.Binds = urls }
}

// WithThreadCount sets the reactor thread count, clamped to [1,1000].
func WithThreadCount(n int) Option {
	return func(o *Options) { o.ThreadCount = clamp(n, 1, 1000) }
}

// WithWorkerCount sets the handler worker pool size, clamped to [1,32].
func WithWorkerCount(n int) Option {
	return func(o *Options) { o.WorkerCount = clamp(n, 1, 32) }
}

// WithMaxPushPending sets Options.MaxPushPending, clamped to [0,1000]. The
// value is stored only: pushes and writes are not refused when a
// connection's pending count reaches it.
func WithMaxPushPending(n int) Option {
	return func(o *Options) { o.MaxPushPending = clamp(n, 0, 1000) }
}

// WithPedantic sets Options.Pedantic. The flag is stored only: no request
// validation depends on it.
func WithPedantic(v bool) Option {
	return func(o *Options) { o.Pedantic = v }
}

// WithRootFirst toggles whether static files are tried before routed hooks.
func WithRootFirst(v bool) Option {
	return func(o *Options) { o.RootFirst = v }
}

// WithRoot sets the static file root directory.
func WithRoot(dir string) Option {
	return func(o *Options) { o.Root = dir }
}

// WithQuiet suppresses informational logging.
func WithQuiet(v bool) Option {
	return func(o *Options) { o.Quiet = v }
}

// WithDebug enables debug-level logging and registers platform probes.
func WithDebug(v bool) Option {
	return func(o *Options) { o.Debug = v }
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func (o Options) validate() error {
	if len(o.Binds) == 0 {
		return fmt.Errorf("server: at least one bind is required")
	}
	return nil
}
