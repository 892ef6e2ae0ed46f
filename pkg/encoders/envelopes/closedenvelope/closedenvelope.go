// Package closedenvelope defines the relay subscription termination notice
// `["CLOSED",<subid>,<message>]`.
package closedenvelope

import (
	"parley.dev/pkg/encoders/envelopes"
	"parley.dev/pkg/encoders/subscription"
	"parley.dev/pkg/encoders/text"
	"parley.dev/pkg/interfaces/codec"
	"parley.dev/pkg/utils/chk"
)

// L is the label of this envelope.
const L = "CLOSED"

// T is a CLOSED message.
type T struct {
	Subscription *subscription.Id
	Reason       []byte
}

var _ codec.Envelope = (*T)(nil)

// New creates an empty CLOSED.
func New() *T { return &T{} }

// NewFrom builds a CLOSED from its parts.
func NewFrom(id *subscription.Id, reason []byte) *T {
	return &T{Subscription: id, Reason: reason}
}

// Label returns the envelope label.
func (en *T) Label() string { return L }

// ReasonString returns the reason as a string.
func (en *T) ReasonString() string { return string(en.Reason) }

// Marshal appends the wire frame to dst.
func (en *T) Marshal(dst []byte) (b []byte) {
	return envelopes.Marshal(
		dst, L, en.Subscription.Marshal,
		func(o []byte) []byte {
			return text.AppendQuote(o, en.Reason, text.NostrEscape)
		},
	)
}

// Unmarshal consumes the envelope body after the label.
func (en *T) Unmarshal(b []byte) (r []byte, err error) {
	en.Subscription = &subscription.Id{}
	if r, err = en.Subscription.Unmarshal(b); chk.D(err) {
		return
	}
	if en.Reason, r, err = text.UnmarshalQuoted(r); chk.D(err) {
		return
	}
	r, err = envelopes.SkipToTheEnd(r)
	return
}

// Parse reads a CLOSED body.
func Parse(b []byte) (t *T, rem []byte, err error) {
	t = New()
	rem, err = t.Unmarshal(b)
	return
}
