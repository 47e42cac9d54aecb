// Package pub defines the tagged command that flows through the pub queue
// from handlers (running on worker goroutines) to the single pub-loop
// consumer, grounded directly on the original source's ext/agoo/pub.c
// constructors (pub_subscribe, pub_unsubscribe, pub_publish, pub_write,
// pub_close).
package pub

import (
	"github.com/ohler55/agoo-sub000/text"
	"github.com/ohler55/agoo-sub000/upgraded"
)

// Kind tags the five pub-queue command shapes.
type Kind int

const (
	Write Kind = iota
	Publish
	Subscribe
	Unsubscribe
	Close
)

// Pub is one command enqueued onto the pub queue.
type Pub struct {
	Kind    Kind
	Up      *upgraded.Upgraded // target for Write/Subscribe/Unsubscribe/Close
	Subject string             // subject for Publish/Subscribe/Unsubscribe ("" = unsubscribe-all)
	Msg     *text.Text         // payload for Write/Publish
	Binary  bool
}

// NewSubscribe builds a subscribe command and bumps up's pending counter,
// matching pub_subscribe's cid/sid/subject shape (cid/sid are resolved from
// Up by the pub loop via the SubCache, not carried here).
func NewSubscribe(up *upgraded.Upgraded, subject string) *Pub {
	up.IncPending()
	return &Pub{Kind: Subscribe, Up: up, Subject: subject}
}

// NewUnsubscribe builds an unsubscribe command; an empty subject removes
// every subscription owned by up.
func NewUnsubscribe(up *upgraded.Upgraded, subject string) *Pub {
	up.IncPending()
	return &Pub{Kind: Unsubscribe, Up: up, Subject: subject}
}

// NewPublish builds a publish command carrying a referenced Text so the pub
// loop can fan it out to every matching Upgraded without copying.
func NewPublish(subject string, msg *text.Text, binary bool) *Pub {
	return &Pub{Kind: Publish, Subject: subject, Msg: msg, Binary: binary}
}

// NewWrite builds a direct, non-fan-out write to one Upgraded's connection.
func NewWrite(up *upgraded.Upgraded, msg *text.Text, binary bool) *Pub {
	up.IncPending()
	return &Pub{Kind: Write, Up: up, Msg: msg, Binary: binary}
}

// NewClose builds a close command for one Upgraded.
func NewClose(up *upgraded.Upgraded) *Pub {
	up.IncPending()
	return &Pub{Kind: Close, Up: up}
}
