// Package eoseenvelope defines the relay end-of-stored-events signal
// `["EOSE",<subid>]`.
package eoseenvelope

import (
	"parley.dev/pkg/encoders/envelopes"
	"parley.dev/pkg/encoders/subscription"
	"parley.dev/pkg/interfaces/codec"
	"parley.dev/pkg/utils/chk"
)

// L is the label of this envelope.
const L = "EOSE"

// T is an EOSE message.
type T struct {
	Subscription *subscription.Id
}

var _ codec.Envelope = (*T)(nil)

// New creates an empty EOSE.
func New() *T { return &T{} }

// NewFrom wraps a subscription id.
func NewFrom(id *subscription.Id) *T { return &T{Subscription: id} }

// Label returns the envelope label.
func (en *T) Label() string { return L }

// Marshal appends the wire frame to dst.
func (en *T) Marshal(dst []byte) (b []byte) {
	return envelopes.Marshal(dst, L, en.Subscription.Marshal)
}

// Unmarshal consumes the envelope body after the label.
func (en *T) Unmarshal(b []byte) (r []byte, err error) {
	en.Subscription = &subscription.Id{}
	if r, err = en.Subscription.Unmarshal(b); chk.D(err) {
		return
	}
	r, err = envelopes.SkipToTheEnd(r)
	return
}

// Parse reads an EOSE body.
func Parse(b []byte) (t *T, rem []byte, err error) {
	t = New()
	rem, err = t.Unmarshal(b)
	return
}
