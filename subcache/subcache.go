// Package subcache implements the cid+sid-keyed subscription table and the
// `.`-tokenized subject matcher (`*` one token, `>` remainder), grounded on
// the original source's ext/agoo/sub.c and subscription.c. Only the pub loop
// mutates a Cache; everyone else only ever reads it — there is no internal
// locking here, matching spec.md §5's single-writer convention for the
// SubCache.
package subcache

import "strings"

const bucketCount = 1024

// Sub is one subscription: a connection id, a subscription id, and the
// subject pattern it was registered with.
type Sub struct {
	CID, SID uint64
	Subject  string
	next     *Sub
}

func key(cid, sid uint64) uint64 { return cid ^ sid }

// Cache is the fixed 1024-bucket chained hash of Subs.
type Cache struct {
	buckets [bucketCount]*Sub
}

// New returns an empty Cache.
func New() *Cache { return &Cache{} }

// Insert adds a Sub keyed by (cid, sid). Re-inserting the same
// (cid, sid, subject) triple is a silent no-op, matching the idempotence
// law of spec.md §8 (duplicate subscribe is a no-op).
func (c *Cache) Insert(cid, sid uint64, subject string) *Sub {
	idx := key(cid, sid) % bucketCount
	for s := c.buckets[idx]; s != nil; s = s.next {
		if s.CID == cid && s.SID == sid && s.Subject == subject {
			return s
		}
	}
	s := &Sub{CID: cid, SID: sid, Subject: subject, next: c.buckets[idx]}
	c.buckets[idx] = s
	return s
}

// Remove deletes Subs matching (cid, sid) and, when subject is non-empty,
// additionally matching that subject; an empty subject removes all Subs for
// (cid, sid), matching the unsubscribe(up, subject|NULL) contract.
func (c *Cache) Remove(cid, sid uint64, subject string) {
	idx := key(cid, sid) % bucketCount
	var prev *Sub
	s := c.buckets[idx]
	for s != nil {
		next := s.next
		if s.CID == cid && s.SID == sid && (subject == "" || s.Subject == subject) {
			if prev == nil {
				c.buckets[idx] = next
			} else {
				prev.next = next
			}
		} else {
			prev = s
		}
		s = next
	}
}

// Match calls fn for every Sub whose subject pattern matches the published
// subject.
func (c *Cache) Match(subject string, fn func(*Sub)) {
	for i := range c.buckets {
		for s := c.buckets[i]; s != nil; s = s.next {
			if SubjectMatch(s.Subject, subject) {
				fn(s)
			}
		}
	}
}

// SubjectMatch reports whether a published subject matches a subscription
// pattern: tokens are split on ".", "*" matches exactly one token, ">"
// matches all remaining tokens (and must be the final pattern token),
// anything else must match the corresponding token byte-for-byte.
func SubjectMatch(pattern, subject string) bool {
	pTok := strings.Split(pattern, ".")
	sTok := strings.Split(subject, ".")
	for i, p := range pTok {
		if p == ">" {
			return true // matches this and all remaining tokens
		}
		if i >= len(sTok) {
			return false
		}
		if p == "*" {
			continue
		}
		if p != sTok[i] {
			return false
		}
	}
	return len(pTok) == len(sTok)
}
