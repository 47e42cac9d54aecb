// Package upgraded implements the lifecycle object for a WebSocket or SSE
// connection once it has left plain HTTP: its subject set, pending-Pub
// counter, and reference count, grounded on the original source's
// ext/agoo/upgraded.c (struct _Upgraded: next/prev, con, pending, ref_cnt,
// subjects, on_* flags).
//
// The cyclic Con<->Upgraded link is resolved the way spec.md §9 prescribes:
// per-side reference counts under one shared mutex (Manager.mu below); each
// side clears its own pointer before releasing, and destruction happens
// exactly when refcount reaches zero while holding that mutex.
package upgraded

import (
	"sync"
	"sync/atomic"
)

// ConnHandle is the minimal surface Upgraded needs from its owning
// connection: its ID and a way to schedule teardown, without upgraded
// importing the conn package. Callers that enqueue responses type-assert
// Con to a wider interface.
type ConnHandle interface {
	ID() uint64
	// EnqueueClose marks the connection for teardown after its pending
	// responses flush.
	EnqueueClose()
}

// Upgraded is one WS/SSE connection's pub/sub lifecycle state.
type Upgraded struct {
	Con      ConnHandle
	Handler  any // PushHandler implementation, dispatched by worker
	OnMsg    bool
	OnClose  bool
	OnShut   bool
	OnEmpty  bool

	pending atomic.Int32
	refs    atomic.Int32

	mu       sync.Mutex // guards subjects; the list links are guarded by Manager.mu
	subjects []string
	prev, next *Upgraded
}

// New creates an Upgraded with refcount 1 (the Con's reference).
func New(con ConnHandle, handler any) *Upgraded {
	u := &Upgraded{Con: con, Handler: handler}
	u.refs.Store(1)
	return u
}

// Ref increments the reference count.
func (u *Upgraded) Ref() { u.refs.Add(1) }

// Pending returns the current in-flight Pub count.
func (u *Upgraded) Pending() int32 { return u.pending.Load() }

// IncPending increments the pending counter before a Pub referencing this
// Upgraded is enqueued.
func (u *Upgraded) IncPending() { u.pending.Add(1) }

// DecPending decrements the pending counter. Per spec.md §9's fixed Open
// Question, every pub-loop command handler must call this exactly once for
// every IncPending, including on failure paths, so that pending strictly
// tracks in-flight Pubs.
func (u *Upgraded) DecPending() { u.pending.Add(-1) }

// AddSubject appends subject if not already present (dedup by string
// equality, matching the source's upgraded_add_subject).
func (u *Upgraded) AddSubject(subject string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, s := range u.subjects {
		if s == subject {
			return
		}
	}
	u.subjects = append(u.subjects, subject)
}

// RemoveSubject deletes subject; an empty subject clears all subjects.
func (u *Upgraded) RemoveSubject(subject string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if subject == "" {
		u.subjects = nil
		return
	}
	out := u.subjects[:0]
	for _, s := range u.subjects {
		if s != subject {
			out = append(out, s)
		}
	}
	u.subjects = out
}

// Subjects returns a snapshot copy of the current subject list.
func (u *Upgraded) Subjects() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]string, len(u.subjects))
	copy(out, u.subjects)
	return out
}

// Manager owns the global doubly-linked Upgraded list the pub loop iterates
// on every publish, and is the single lock ("up_lock" in spec.md §5) that
// serializes list mutation and the refcount==0 destroy race.
type Manager struct {
	mu   sync.Mutex
	head *Upgraded
}

// NewManager creates an empty Manager.
func NewManager() *Manager { return &Manager{} }

// Add inserts u at the head of the global list.
func (m *Manager) Add(u *Upgraded) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.next = m.head
	if m.head != nil {
		m.head.prev = u
	}
	u.prev = nil
	m.head = u
}

// Remove unlinks u from the global list. Safe to call more than once.
func (m *Manager) Remove(u *Upgraded) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.prev != nil {
		u.prev.next = u.next
	} else if m.head == u {
		m.head = u.next
	}
	if u.next != nil {
		u.next.prev = u.prev
	}
	u.prev, u.next = nil, nil
}

// Release drops one reference to u and, if that was the last one, removes
// it from the global list under the same lock that protects list mutation —
// implementing invariant (iii) of spec.md §3.
func (m *Manager) Release(u *Upgraded) {
	if u.refs.Add(-1) != 0 {
		return
	}
	m.mu.Lock()
	if u.prev != nil {
		u.prev.next = u.next
	} else if m.head == u {
		m.head = u.next
	}
	if u.next != nil {
		u.next.prev = u.prev
	}
	u.prev, u.next = nil, nil
	m.mu.Unlock()
}

// Each calls fn for every live Upgraded in the global list. fn must not
// mutate the list; callers that need to remove entries should collect them
// and call Release afterward.
func (m *Manager) Each(fn func(*Upgraded)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for u := m.head; u != nil; u = u.next {
		fn(u)
	}
}
