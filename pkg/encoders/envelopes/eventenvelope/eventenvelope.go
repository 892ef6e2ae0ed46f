// Package eventenvelope defines the two EVENT message shapes: the client
// submission `["EVENT",<event>]` and the relay result
// `["EVENT",<subid>,<event>]`.
package eventenvelope

import (
	"parley.dev/pkg/encoders/envelopes"
	"parley.dev/pkg/encoders/event"
	"parley.dev/pkg/encoders/subscription"
	"parley.dev/pkg/interfaces/codec"
	"parley.dev/pkg/utils/chk"
)

// L is the label of this envelope.
const L = "EVENT"

// Submission is the client-to-relay form carrying only the event.
type Submission struct {
	Event *event.E
}

var _ codec.Envelope = (*Submission)(nil)

// NewSubmission creates an empty Submission.
func NewSubmission() *Submission { return &Submission{} }

// NewSubmissionWith wraps an event in a Submission.
func NewSubmissionWith(ev *event.E) *Submission { return &Submission{Event: ev} }

// Label returns the envelope label.
func (en *Submission) Label() string { return L }

// Marshal appends the wire frame to dst.
func (en *Submission) Marshal(dst []byte) (b []byte) {
	return envelopes.Marshal(dst, L, en.Event.Marshal)
}

// Unmarshal consumes the envelope body after the label.
func (en *Submission) Unmarshal(b []byte) (r []byte, err error) {
	en.Event = event.New()
	if r, err = en.Event.Unmarshal(b); chk.D(err) {
		return
	}
	r, err = envelopes.SkipToTheEnd(r)
	return
}

// ParseSubmission reads a Submission body.
func ParseSubmission(b []byte) (t *Submission, rem []byte, err error) {
	t = NewSubmission()
	rem, err = t.Unmarshal(b)
	return
}

// Result is the relay-to-client form carrying the subscription id the event
// matched.
type Result struct {
	Subscription *subscription.Id
	Event        *event.E
}

var _ codec.Envelope = (*Result)(nil)

// NewResult creates an empty Result.
func NewResult() *Result { return &Result{} }

// NewResultWith binds an event to a subscription id.
func NewResultWith(id *subscription.Id, ev *event.E) *Result {
	return &Result{Subscription: id, Event: ev}
}

// Label returns the envelope label.
func (en *Result) Label() string { return L }

// Marshal appends the wire frame to dst.
func (en *Result) Marshal(dst []byte) (b []byte) {
	return envelopes.Marshal(
		dst, L, en.Subscription.Marshal, en.Event.Marshal,
	)
}

// Unmarshal consumes the envelope body after the label.
func (en *Result) Unmarshal(b []byte) (r []byte, err error) {
	en.Subscription = &subscription.Id{}
	if r, err = en.Subscription.Unmarshal(b); chk.D(err) {
		return
	}
	en.Event = event.New()
	if r, err = en.Event.Unmarshal(r); chk.D(err) {
		return
	}
	r, err = envelopes.SkipToTheEnd(r)
	return
}

// ParseResult reads a Result body.
func ParseResult(b []byte) (t *Result, rem []byte, err error) {
	t = NewResult()
	rem, err = t.Unmarshal(b)
	return
}
