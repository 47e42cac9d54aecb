// Package readyloop implements the single goroutine that owns every
// accepted connection once it has left the listen loop: registering its fd
// with an EventReactor, recomputing its interest mask, and dispatching
// readable/writable/periodic-check events into Conn's read/write paths,
// per spec.md §4.4's five-step ready loop. Grounded on the teacher's
// reactor/reactor_linux.go epoll-driven dispatch loop, generalized from a
// flat event slice to the Link callback shape reactor.Link already defines.
package readyloop

import (
	"time"

	"github.com/ohler55/agoo-sub000/conn"
	"github.com/ohler55/agoo-sub000/queue"
	"github.com/ohler55/agoo-sub000/reactor"
)

const (
	waitTimeoutMillis = 10
	checkInterval     = 500 * time.Millisecond
	maxEventsPerWait  = 256
)

// Loop owns the reactor, the link table, and the queue of freshly accepted
// connections handed over by the listen loop.
type Loop struct {
	reactor reactor.EventReactor
	links   *reactor.Links
	conQ    *queue.Queue[*conn.Conn]

	nextCheck time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a Loop pulling newly accepted Conns from conQ.
func New(r reactor.EventReactor, conQ *queue.Queue[*conn.Conn]) *Loop {
	return &Loop{
		reactor:   r,
		links:     reactor.NewLinks(),
		conQ:      conQ,
		nextCheck: time.Now().Add(checkInterval),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start runs the ready loop on its own goroutine.
func (l *Loop) Start() {
	go l.run()
}

// Stop signals the loop to exit and waits for it to finish its current pass.
func (l *Loop) Stop() {
	close(l.stopCh)
	<-l.doneCh
}

func (l *Loop) run() {
	defer close(l.doneCh)
	events := make([]reactor.Event, maxEventsPerWait)
	for {
		select {
		case <-l.stopCh:
			l.drainAndClose()
			return
		default:
		}

		l.absorbNewConns()
		l.recomputeMasks()

		n, err := l.reactor.Wait(events, waitTimeoutMillis)
		if err == nil {
			for i := 0; i < n; i++ {
				l.dispatch(events[i])
			}
		}

		if time.Now().After(l.nextCheck) {
			l.runChecks()
			l.nextCheck = time.Now().Add(checkInterval)
		}
	}
}

// absorbNewConns drains whatever the listen loop has queued, registering
// each new Conn as a Link with a fresh read-only interest mask.
func (l *Loop) absorbNewConns() {
	for {
		c, ok := l.conQ.Pop(0)
		if !ok {
			return
		}
		link := &reactor.Link{
			FD:  uintptr(c.FD()),
			Ctx: c,
			IO:  ioMask,
			Check: func(ctx any) bool {
				return checkIdle(ctx.(*conn.Conn))
			},
			Read: func(ctx any) bool {
				return readConn(ctx.(*conn.Conn))
			},
			Write: func(ctx any) bool {
				return writeConn(ctx.(*conn.Conn))
			},
			Error: func(ctx any) {
				ctx.(*conn.Conn).MarkDead()
			},
		}
		id := l.links.Add(link)
		_ = l.reactor.Register(link.FD, id, reactor.MaskRead)
		link.SetLastMask(reactor.MaskRead)
	}
}

// recomputeMasks re-derives each Link's interest mask from its Conn's
// current outbound-FIFO state and pushes a Modify only when it changed.
func (l *Loop) recomputeMasks() {
	l.links.Each(func(id uintptr, link *reactor.Link) {
		want := link.IO(link.Ctx)
		if want != link.LastMask() {
			_ = l.reactor.Modify(link.FD, id, want)
			link.SetLastMask(want)
		}
	})
}

func (l *Loop) dispatch(ev reactor.Event) {
	link, ok := l.links.Get(ev.UserData)
	if !ok {
		return
	}
	remove := false
	if ev.Err {
		link.Error(link.Ctx)
		remove = true
	}
	if !remove && ev.Readable && link.Read != nil {
		remove = link.Read(link.Ctx)
	}
	if !remove && ev.Writable && link.Write != nil {
		remove = link.Write(link.Ctx)
	}
	if remove {
		l.remove(ev.UserData, link)
	}
}

func (l *Loop) runChecks() {
	var toRemove []uintptr
	l.links.Each(func(id uintptr, link *reactor.Link) {
		if link.Check != nil && link.Check(link.Ctx) {
			toRemove = append(toRemove, id)
		}
	})
	for _, id := range toRemove {
		if link, ok := l.links.Get(id); ok {
			l.remove(id, link)
		}
	}
}

func (l *Loop) remove(id uintptr, link *reactor.Link) {
	_ = l.reactor.Deregister(link.FD)
	if link.Destroy != nil {
		link.Destroy(link.Ctx)
	}
	c := link.Ctx.(*conn.Conn)
	if !c.Hijacked() {
		closeFD(int(link.FD))
	}
	l.links.Remove(id)
}

func (l *Loop) drainAndClose() {
	l.links.Each(func(id uintptr, link *reactor.Link) {
		_ = l.reactor.Deregister(link.FD)
		if c, ok := link.Ctx.(*conn.Conn); ok && !c.Hijacked() {
			closeFD(int(link.FD))
		}
	})
}

// ioMask computes a Link's desired interest: read is always wanted unless
// hard-closed; write is wanted whenever the outbound FIFO has a head
// Response, whether or not it has been published yet.
func ioMask(ctx any) reactor.Mask {
	c := ctx.(*conn.Conn)
	if c.Dead() {
		return 0
	}
	mask := reactor.MaskRead
	if c.Head() != nil {
		mask |= reactor.MaskWrite
	}
	return mask
}

func checkIdle(c *conn.Conn) bool {
	if c.Dead() {
		return true
	}
	if c.Expired(time.Now()) {
		if c.Closing() {
			c.MarkDead()
			return true
		}
		c.BeginSoftClose()
	}
	return false
}

func readConn(c *conn.Conn) bool {
	buf := make([]byte, 16*1024)
	n, err := readFD(int(c.FD()), buf)
	if n > 0 {
		reqs, ferr := c.Feed(buf[:n])
		for _, req := range reqs {
			c.DispatchRequest(req)
		}
		if ferr != nil {
			c.MarkDead()
			return true
		}
	}
	if err != nil && !isWouldBlock(err) {
		c.MarkDead()
		return true
	}
	return c.Dead()
}

func writeConn(c *conn.Conn) bool {
	for {
		wr, ok := c.NextWrite()
		if !ok {
			return c.Dead()
		}
		if len(wr.Bytes) == 0 {
			if wr.Done {
				c.AdvanceWrite(0)
				if wr.CloseAfter {
					c.MarkDead()
					return true
				}
				continue
			}
			return false
		}
		n, err := writeFD(int(c.FD()), wr.Bytes)
		if n > 0 {
			c.AdvanceWrite(n)
		}
		if err != nil {
			if isWouldBlock(err) {
				return false
			}
			c.MarkDead()
			return true
		}
		if n < len(wr.Bytes) {
			return false
		}
	}
}
