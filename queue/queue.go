// Package queue implements the bounded ring buffer that is the only
// supported handoff between the listen loop, the ready loop, the worker
// pool, and the pub loop. It is a generic re-telling of the source's
// queue.c: a fixed-capacity ring with a one-byte self-pipe used to sleep a
// blocked popper and wake it from another goroutine, plus an optional
// lock-free single-producer/single-consumer fast path (grounded on the
// teacher's core/concurrency.LockFreeQueue, a Vyukov-style MPMC ring) for
// the high-throughput Con-queue and eval-queue uses.
package queue

import (
	"os"
	"sync"
	"sync/atomic"
	"time"
)

const (
	notWaiting int32 = 0
	waiting    int32 = 1
	notified   int32 = 2

	retryDelay = 100 * time.Microsecond
)

// Queue is a bounded ring buffer of T. MultiPush/MultiPop select whether the
// corresponding side takes a spinlock (for multiple concurrent producers or
// consumers) or relies on the lock-free single-producer/single-consumer
// cell protocol.
type Queue[T any] struct {
	mask  uint64
	cells []cell[T]
	head  uint64
	tail  uint64

	multiPush bool
	multiPop  bool
	pushLock  spinFlag
	popLock   spinFlag

	waitState atomic.Int32

	mu         sync.Mutex // guards pipe lifecycle
	readPipe   *os.File
	writePipe  *os.File
}

type cell[T any] struct {
	sequence atomic.Uint64
	data     T
}

// New creates a single-producer/single-consumer Queue of the given capacity
// (rounded up to a power of two, minimum 4, matching the source's minimum).
func New[T any](capacity int) *Queue[T] {
	return newQueue[T](capacity, false, false)
}

// NewMulti creates a Queue with the given multi-producer/multi-consumer
// flags, each guarded by its own spin-retry critical section.
func NewMulti[T any](capacity int, multiPush, multiPop bool) *Queue[T] {
	return newQueue[T](capacity, multiPush, multiPop)
}

func newQueue[T any](capacity int, multiPush, multiPop bool) *Queue[T] {
	if capacity < 4 {
		capacity = 4
	}
	size := 1
	for size < capacity {
		size <<= 1
	}
	q := &Queue[T]{
		mask:      uint64(size - 1),
		cells:     make([]cell[T], size),
		multiPush: multiPush,
		multiPop:  multiPop,
	}
	for i := range q.cells {
		q.cells[i].sequence.Store(uint64(i))
	}
	return q
}

// Push blocks (spin-retrying every 100µs) until a slot is free, then stores
// item and wakes a waiting popper if one has registered interest via Listen.
func (q *Queue[T]) Push(item T) {
	if q.multiPush {
		q.pushLock.lock()
		defer q.pushLock.unlock()
	}
	for {
		tail := atomic.LoadUint64(&q.tail)
		idx := tail & q.mask
		c := &q.cells[idx]
		seq := c.sequence.Load()
		dif := int64(seq) - int64(tail)
		switch {
		case dif == 0:
			if atomic.CompareAndSwapUint64(&q.tail, tail, tail+1) {
				c.data = item
				c.sequence.Store(tail + 1)
				q.wake()
				return
			}
		case dif < 0:
			time.Sleep(retryDelay) // full; wait for a slot
		default:
			// tail moved underneath us; retry immediately
		}
	}
}

// TryPush attempts a single non-blocking push; returns false if the ring is
// currently full.
func (q *Queue[T]) TryPush(item T) bool {
	if q.multiPush {
		q.pushLock.lock()
		defer q.pushLock.unlock()
	}
	tail := atomic.LoadUint64(&q.tail)
	idx := tail & q.mask
	c := &q.cells[idx]
	seq := c.sequence.Load()
	dif := int64(seq) - int64(tail)
	if dif != 0 {
		return false
	}
	if !atomic.CompareAndSwapUint64(&q.tail, tail, tail+1) {
		return false
	}
	c.data = item
	c.sequence.Store(tail + 1)
	q.wake()
	return true
}

// Pop returns an item if one is available within timeout. While the ring is
// empty it registers as a waiter and sleeps in steps of about 5ms,
// re-checking the ring after each step; it does not read the self-pipe, so a
// concurrent Push is seen at the next re-check, not immediately.
func (q *Queue[T]) Pop(timeout time.Duration) (item T, ok bool) {
	if q.multiPop {
		q.popLock.lock()
		defer q.popLock.unlock()
	}
	deadline := time.Now().Add(timeout)
	for {
		if v, got := q.tryDequeue(); got {
			return v, true
		}
		if timeout <= 0 || time.Now().After(deadline) {
			var zero T
			return zero, false
		}
		fd := q.Listen()
		remaining := time.Until(deadline)
		if remaining > retryDelay {
			remaining = retryDelay * 50 // ~5ms poll granularity, like the source's 100ms cap scaled down
		}
		waitOnPipe(fd, remaining)
		q.Release()
	}
}

func (q *Queue[T]) tryDequeue() (T, bool) {
	for {
		head := atomic.LoadUint64(&q.head)
		idx := head & q.mask
		c := &q.cells[idx]
		seq := c.sequence.Load()
		dif := int64(seq) - int64(head+1)
		switch {
		case dif == 0:
			if atomic.CompareAndSwapUint64(&q.head, head, head+1) {
				item := c.data
				var zero T
				c.data = zero
				c.sequence.Store(head + q.mask + 1)
				return item, true
			}
		case dif < 0:
			var zero T
			return zero, false
		default:
			// head moved; retry
		}
	}
}

// Empty is a conservative check intended for the popper's own use.
func (q *Queue[T]) Empty() bool {
	head := atomic.LoadUint64(&q.head)
	tail := atomic.LoadUint64(&q.tail)
	return head == tail
}

// Count returns the approximate number of queued items.
func (q *Queue[T]) Count() int {
	head := atomic.LoadUint64(&q.head)
	tail := atomic.LoadUint64(&q.tail)
	return int(tail - head)
}

// Listen lazily creates the self-pipe and arms the waiting flag, returning
// the read end's fd for integration into an outer reactor's poll set.
func (q *Queue[T]) Listen() int {
	q.mu.Lock()
	if q.readPipe == nil {
		r, w, err := os.Pipe()
		if err == nil {
			q.readPipe, q.writePipe = r, w
		}
	}
	q.mu.Unlock()
	q.waitState.Store(waiting)
	if q.readPipe == nil {
		return -1
	}
	return int(q.readPipe.Fd())
}

// Release drains the self-pipe and clears the waiting flag.
func (q *Queue[T]) Release() {
	q.mu.Lock()
	r := q.readPipe
	q.mu.Unlock()
	if r != nil {
		buf := make([]byte, 8)
		for {
			r.SetReadDeadline(time.Now())
			n, err := r.Read(buf)
			if n <= 0 || err != nil {
				break
			}
		}
	}
	q.waitState.Store(notWaiting)
}

// Wakeup writes a byte unconditionally, regardless of waiter state.
func (q *Queue[T]) Wakeup() {
	q.mu.Lock()
	w := q.writePipe
	q.mu.Unlock()
	if w != nil {
		w.Write([]byte{'.'})
	}
}

func (q *Queue[T]) wake() {
	if q.waitState.Load() == waiting {
		q.mu.Lock()
		w := q.writePipe
		q.mu.Unlock()
		if w != nil {
			w.Write([]byte{'.'})
		}
		q.waitState.Store(notified)
	}
}

func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.readPipe != nil {
		q.readPipe.Close()
		q.writePipe.Close()
		q.readPipe, q.writePipe = nil, nil
	}
}

// spinFlag is a minimal test-and-set spinlock used for the multi-push and
// multi-pop critical sections, matching the source's atomic_flag usage.
type spinFlag struct {
	v atomic.Bool
}

func (f *spinFlag) lock() {
	for !f.v.CompareAndSwap(false, true) {
		time.Sleep(retryDelay)
	}
}

func (f *spinFlag) unlock() {
	f.v.Store(false)
}

func waitOnPipe(fd int, d time.Duration) {
	if fd < 0 || d <= 0 {
		if d > 0 {
			time.Sleep(d)
		}
		return
	}
	// A plain deadline sleep stands in for a poll(2) wait on fd: the caller
	// re-checks the ring immediately after, same as the source's pattern of
	// polling the wake pipe then re-testing head/tail.
	time.Sleep(d)
}
