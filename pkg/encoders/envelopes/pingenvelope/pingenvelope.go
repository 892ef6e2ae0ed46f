// Package pingenvelope defines the application-level heartbeat
// `["PING",<nonce>]`, used to measure round trip latency through relays
// that answer unknown frames with a NOTICE echo or a matching PING.
package pingenvelope

import (
	"parley.dev/pkg/encoders/envelopes"
	"parley.dev/pkg/encoders/ints"
	"parley.dev/pkg/interfaces/codec"
	"parley.dev/pkg/utils/chk"
)

// L is the label of this envelope.
const L = "PING"

// T is a PING message.
type T struct {
	Nonce uint64
}

var _ codec.Envelope = (*T)(nil)

// New creates an empty PING.
func New() *T { return &T{} }

// NewFrom wraps a nonce.
func NewFrom(nonce uint64) *T { return &T{Nonce: nonce} }

// Label returns the envelope label.
func (en *T) Label() string { return L }

// Marshal appends the wire frame to dst.
func (en *T) Marshal(dst []byte) (b []byte) {
	return envelopes.Marshal(
		dst, L,
		func(o []byte) []byte { return ints.New(en.Nonce).Marshal(o) },
	)
}

// Unmarshal consumes the envelope body after the label.
func (en *T) Unmarshal(b []byte) (r []byte, err error) {
	n := ints.New(0)
	if r, err = n.Unmarshal(b); chk.D(err) {
		return
	}
	en.Nonce = n.Uint64()
	r, err = envelopes.SkipToTheEnd(r)
	return
}

// Parse reads a PING body.
func Parse(b []byte) (t *T, rem []byte, err error) {
	t = New()
	rem, err = t.Unmarshal(b)
	return
}
