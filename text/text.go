// Package text implements the reference-counted, append-extendable byte
// buffer used for every wire payload in the connection core: parsed request
// bodies, formatted responses, cached static pages, and outbound WebSocket
// and SSE frames all share the same Text so a published page or message can
// be fanned out to many connections without copying.
//
// Text is immutable once shared: Append may return a new, larger allocation
// and the caller must reassign its pointer, exactly as the source's
// text_append contract requires. Growth policy is old + old/2, matching the
// source. The backing byte slice is drawn from a small channel-backed
// allocator (grounded on the teacher's pool.SimpleBytePool) to cut GC
// pressure on the read/write hot path; Text itself does not take a lock —
// callers must not share a Text they intend to mutate via Append across
// goroutines.
package text

import "sync/atomic"

// poolBucket is the smallest backing-array size class recycled by the
// global allocator. Requests below this get a buffer of at least this
// capacity; a larger request reuses a pooled buffer only if its capacity is
// big enough, and otherwise gets a fresh allocation of exactly the request.
const poolBucket = 4096

var backing = newBytePool(256, poolBucket)

// Text is a shared, reference-counted byte buffer.
type Text struct {
	buf  []byte
	refs atomic.Int32
}

// Create copies bytes into a new Text with refcount 1.
func Create(b []byte) *Text {
	t := Allocate(len(b))
	t.buf = append(t.buf[:0], b...)
	return t
}

// Allocate returns an empty Text with at least the given capacity reserved.
func Allocate(capHint int) *Text {
	buf := backing.get(capHint)
	t := &Text{buf: buf[:0]}
	t.refs.Store(1)
	return t
}

// Len returns the number of live bytes.
func (t *Text) Len() int { return len(t.buf) }

// Bytes returns the live byte slice. Callers must not retain it past a
// Release of the owning Text.
func (t *Text) Bytes() []byte { return t.buf }

// Ref increments the reference count and returns t, for chaining at a
// sharing call site (e.g. attaching one cached page Text to many Res).
func (t *Text) Ref() *Text {
	t.refs.Add(1)
	return t
}

// Release decrements the reference count, returning the backing array to the
// pool when it reaches zero. Matches the source's "free when pre-decrement
// value is 1" rule.
func (t *Text) Release() {
	if t.refs.Add(-1) == 0 {
		backing.put(t.buf[:0])
		t.buf = nil
	}
}

// Append appends b to t, growing the backing array (old + old/2) if needed,
// and returns the Text to use going forward — which may be t itself or a
// freshly allocated replacement. The caller must reassign:
//
//	t = text.Append(t, more)
func Append(t *Text, b []byte) *Text {
	need := len(t.buf) + len(b)
	if need <= cap(t.buf) {
		t.buf = append(t.buf, b...)
		return t
	}
	newCap := cap(t.buf) + cap(t.buf)/2
	if newCap < need {
		newCap = need
	}
	nt := Allocate(newCap)
	nt.buf = append(nt.buf[:0], t.buf...)
	nt.buf = append(nt.buf, b...)
	t.Release()
	return nt
}

// Prepend returns a Text with b placed before t's current contents.
func Prepend(t *Text, b []byte) *Text {
	nt := Allocate(len(b) + len(t.buf))
	nt.buf = append(nt.buf[:0], b...)
	nt.buf = append(nt.buf, t.buf...)
	t.Release()
	return nt
}
