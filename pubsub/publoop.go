// Package pubsub implements the single consumer goroutine draining the pub
// queue: the five Pub command shapes (Write/Publish/Subscribe/Unsubscribe/
// Close) applied against a subcache.Cache and fanned out to upgraded.Upgraded
// connections, grounded on the original source's ext/agoo/pub.c pub_loop and
// the teacher's queue-draining goroutine shape (pop-with-timeout, process,
// loop) used throughout its internal/ ready-loop style code.
package pubsub

import (
	"time"

	"github.com/ohler55/agoo-sub000/conn"
	"github.com/ohler55/agoo-sub000/control"
	"github.com/ohler55/agoo-sub000/pub"
	"github.com/ohler55/agoo-sub000/queue"
	"github.com/ohler55/agoo-sub000/subcache"
	"github.com/ohler55/agoo-sub000/text"
	"github.com/ohler55/agoo-sub000/upgraded"
)

const popTimeout = 100 * time.Millisecond

// enqueuer is the narrow surface of conn.Conn this package needs through
// upgraded.ConnHandle, which only exposes ID/EnqueueClose; a plain Con
// reference also satisfies this so the pub loop can queue a real Response.
type enqueuer interface {
	Enqueue(res *conn.Response)
}

// Loop owns the pub queue, the subscription cache, and the global Upgraded
// list. It is the sole writer of both the Cache and each Upgraded's pending
// counter once commands have been enqueued, matching spec.md §5's
// single-writer convention.
type Loop struct {
	q    *queue.Queue[*pub.Pub]
	subs *subcache.Cache
	mgr  *upgraded.Manager

	metrics   *control.MetricsRegistry
	processed uint64

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewLoop creates a Loop with the given pub queue capacity.
func NewLoop(queueCapacity int, mgr *upgraded.Manager, metrics *control.MetricsRegistry) *Loop {
	return &Loop{
		q:       queue.NewMulti[*pub.Pub](queueCapacity, true, false),
		subs:    subcache.New(),
		mgr:     mgr,
		metrics: metrics,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Submit implements worker.PubPublisher: enqueues p for the loop goroutine.
func (l *Loop) Submit(p *pub.Pub) {
	l.q.Push(p)
}

// Start runs the drain loop on its own goroutine until Stop is called.
func (l *Loop) Start() {
	go l.run()
}

// Stop signals the loop to exit and waits for it to drain its current
// iteration.
func (l *Loop) Stop() {
	close(l.stopCh)
	<-l.doneCh
}

func (l *Loop) run() {
	defer close(l.doneCh)
	for {
		select {
		case <-l.stopCh:
			l.drainRemaining()
			return
		default:
		}
		p, ok := l.q.Pop(popTimeout)
		if !ok {
			continue
		}
		l.handle(p)
	}
}

// drainRemaining processes whatever is already queued without blocking,
// so every IncPending this loop owns gets a matching DecPending before exit.
func (l *Loop) drainRemaining() {
	for {
		p, ok := l.q.Pop(0)
		if !ok {
			return
		}
		l.handle(p)
	}
}

func (l *Loop) handle(p *pub.Pub) {
	defer func() {
		if p.Up != nil {
			p.Up.DecPending()
		}
	}()

	switch p.Kind {
	case pub.Write:
		l.write(p.Up, p.Msg)
	case pub.Publish:
		l.publish(p.Subject, p.Msg)
	case pub.Subscribe:
		l.subs.Insert(p.Up.Con.ID(), 0, p.Subject)
		p.Up.AddSubject(p.Subject)
	case pub.Unsubscribe:
		l.subs.Remove(p.Up.Con.ID(), 0, p.Subject)
		p.Up.RemoveSubject(p.Subject)
	case pub.Close:
		l.closeUp(p.Up)
	}

	if l.metrics != nil {
		l.processed++
		l.metrics.Set("pubsub.processed", l.processed)
	}
}

func (l *Loop) write(up *upgraded.Upgraded, msg *text.Text) {
	if up == nil || msg == nil {
		return
	}
	enqueueRes(up, msg)
}

func (l *Loop) publish(subject string, msg *text.Text) {
	if msg == nil {
		return
	}
	l.subs.Match(subject, func(s *subcache.Sub) {
		up := l.lookupUpgraded(s.CID)
		if up == nil {
			return
		}
		enqueueRes(up, msg.Ref())
	})
}

func (l *Loop) closeUp(up *upgraded.Upgraded) {
	if up == nil {
		return
	}
	up.Con.EnqueueClose()
	l.subs.Remove(up.Con.ID(), 0, "")
	l.mgr.Release(up)
}

// lookupUpgraded resolves a subscription's connection id back to its live
// Upgraded by scanning the manager's list; the subscription cache stores only
// the id so a closed connection's stale subscriptions harmlessly miss here
// until their own Close command prunes them.
func (l *Loop) lookupUpgraded(cid uint64) *upgraded.Upgraded {
	var found *upgraded.Upgraded
	l.mgr.Each(func(u *upgraded.Upgraded) {
		if found == nil && u.Con.ID() == cid {
			found = u
		}
	})
	return found
}

func enqueueRes(up *upgraded.Upgraded, msg *text.Text) {
	c, ok := up.Con.(enqueuer)
	if !ok {
		msg.Release()
		return
	}
	res := conn.NewResponse(conn.KindWS)
	res.Publish(msg)
	c.Enqueue(res)
}
