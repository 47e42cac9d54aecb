package pubsub

import (
	"testing"
	"time"

	"github.com/ohler55/agoo-sub000/conn"
	"github.com/ohler55/agoo-sub000/pub"
	"github.com/ohler55/agoo-sub000/text"
	"github.com/ohler55/agoo-sub000/upgraded"
)

type fakeConn struct {
	id     uint64
	closed bool
	queued []*conn.Response
}

func (f *fakeConn) ID() uint64 { return f.id }
func (f *fakeConn) EnqueueClose() {
	f.closed = true
}
func (f *fakeConn) Enqueue(res *conn.Response) {
	f.queued = append(f.queued, res)
}

func newTestLoop() (*Loop, *upgraded.Manager) {
	mgr := upgraded.NewManager()
	return NewLoop(64, mgr, nil), mgr
}

func TestSubscribeThenPublishDeliversToMatchingSub(t *testing.T) {
	loop, mgr := newTestLoop()
	loop.Start()
	defer loop.Stop()

	fc := &fakeConn{id: 7}
	up := upgraded.New(fc, nil)
	mgr.Add(up)

	loop.Submit(pub.NewSubscribe(up, "room.*"))
	waitPendingZero(t, up)

	loop.Submit(pub.NewPublish("room.42", text.Create([]byte("hi")), false))
	waitPendingZero(t, up)

	deadline := time.Now().Add(time.Second)
	for len(fc.queued) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if len(fc.queued) != 1 {
		t.Fatalf("expected one queued response, got %d", len(fc.queued))
	}
	if string(fc.queued[0].Message().Bytes()) != "hi" {
		t.Fatalf("unexpected payload: %q", fc.queued[0].Message().Bytes())
	}
}

func TestUnsubscribeStopsFurtherDelivery(t *testing.T) {
	loop, mgr := newTestLoop()
	loop.Start()
	defer loop.Stop()

	fc := &fakeConn{id: 9}
	up := upgraded.New(fc, nil)
	mgr.Add(up)

	loop.Submit(pub.NewSubscribe(up, "x.y"))
	waitPendingZero(t, up)
	loop.Submit(pub.NewUnsubscribe(up, "x.y"))
	waitPendingZero(t, up)

	loop.Submit(pub.NewPublish("x.y", text.Create([]byte("late")), false))
	waitPendingZero(t, up)
	time.Sleep(20 * time.Millisecond)

	if len(fc.queued) != 0 {
		t.Fatalf("expected no delivery after unsubscribe, got %d", len(fc.queued))
	}
}

func TestCloseReleasesAndEnqueuesClose(t *testing.T) {
	loop, mgr := newTestLoop()
	loop.Start()
	defer loop.Stop()

	fc := &fakeConn{id: 3}
	up := upgraded.New(fc, nil)
	mgr.Add(up)

	loop.Submit(pub.NewClose(up))
	waitPendingZero(t, up)

	if !fc.closed {
		t.Fatal("expected EnqueueClose to have been called")
	}
}

func TestWriteEnqueuesDirectly(t *testing.T) {
	loop, mgr := newTestLoop()
	loop.Start()
	defer loop.Stop()

	fc := &fakeConn{id: 1}
	up := upgraded.New(fc, nil)
	mgr.Add(up)

	loop.Submit(pub.NewWrite(up, text.Create([]byte("direct")), false))
	waitPendingZero(t, up)

	deadline := time.Now().Add(time.Second)
	for len(fc.queued) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if len(fc.queued) != 1 || string(fc.queued[0].Message().Bytes()) != "direct" {
		t.Fatalf("unexpected queued state: %+v", fc.queued)
	}
}

func waitPendingZero(t *testing.T, up *upgraded.Upgraded) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for up.Pending() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if up.Pending() != 0 {
		t.Fatalf("pending counter never reached zero: %d", up.Pending())
	}
}
