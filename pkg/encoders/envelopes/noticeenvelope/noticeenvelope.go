// Package noticeenvelope defines the relay human-readable notice
// `["NOTICE",<message>]`.
package noticeenvelope

import (
	"parley.dev/pkg/encoders/envelopes"
	"parley.dev/pkg/encoders/text"
	"parley.dev/pkg/interfaces/codec"
	"parley.dev/pkg/utils/chk"
)

// L is the label of this envelope.
const L = "NOTICE"

// T is a NOTICE message.
type T struct {
	Message []byte
}

var _ codec.Envelope = (*T)(nil)

// New creates an empty NOTICE.
func New() *T { return &T{} }

// NewFrom wraps a message.
func NewFrom[V string | []byte](msg V) *T { return &T{Message: []byte(msg)} }

// Label returns the envelope label.
func (en *T) Label() string { return L }

// Marshal appends the wire frame to dst.
func (en *T) Marshal(dst []byte) (b []byte) {
	return envelopes.Marshal(
		dst, L,
		func(o []byte) []byte {
			return text.AppendQuote(o, en.Message, text.NostrEscape)
		},
	)
}

// Unmarshal consumes the envelope body after the label.
func (en *T) Unmarshal(b []byte) (r []byte, err error) {
	if en.Message, r, err = text.UnmarshalQuoted(b); chk.D(err) {
		return
	}
	r, err = envelopes.SkipToTheEnd(r)
	return
}

// Parse reads a NOTICE body.
func Parse(b []byte) (t *T, rem []byte, err error) {
	t = New()
	rem, err = t.Unmarshal(b)
	return
}
