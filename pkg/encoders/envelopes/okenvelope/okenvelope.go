// Package okenvelope defines the relay acknowledgement
// `["OK",<event id>,<accepted>,<message>]`.
package okenvelope

import (
	"bytes"

	"parley.dev/pkg/encoders/envelopes"
	"parley.dev/pkg/encoders/eventid"
	"parley.dev/pkg/encoders/hex"
	"parley.dev/pkg/encoders/text"
	"parley.dev/pkg/interfaces/codec"
	"parley.dev/pkg/utils/chk"
	"parley.dev/pkg/utils/errorf"
)

// L is the label of this envelope.
const L = "OK"

// Machine-readable reason prefixes defined by NIP-01/NIP-42.
const (
	Duplicate    = "duplicate"
	Pow          = "pow"
	Blocked      = "blocked"
	RateLimited  = "rate-limited"
	Invalid      = "invalid"
	AuthRequired = "auth-required"
	Restricted   = "restricted"
	Error        = "error"
)

// T is an OK message.
type T struct {
	EventID *eventid.T
	OK      bool
	Reason  []byte
}

var _ codec.Envelope = (*T)(nil)

// New creates an empty OK.
func New() *T { return &T{} }

// NewFrom builds an OK from its parts.
func NewFrom(id []byte, ok bool, reason ...[]byte) *T {
	var r []byte
	if len(reason) > 0 {
		r = reason[0]
	}
	return &T{EventID: eventid.NewWith(id), OK: ok, Reason: r}
}

// Label returns the envelope label.
func (en *T) Label() string { return L }

// ReasonString returns the reason as a string.
func (en *T) ReasonString() string { return string(en.Reason) }

// Marshal appends the wire frame to dst.
func (en *T) Marshal(dst []byte) (b []byte) {
	return envelopes.Marshal(
		dst, L,
		func(o []byte) []byte {
			return text.AppendQuote(o, en.EventID.Bytes(), hex.EncAppend)
		},
		func(o []byte) []byte {
			if en.OK {
				return append(o, "true"...)
			}
			return append(o, "false"...)
		},
		func(o []byte) []byte {
			return text.AppendQuote(o, en.Reason, text.NostrEscape)
		},
	)
}

// Unmarshal consumes the envelope body after the label.
func (en *T) Unmarshal(b []byte) (r []byte, err error) {
	var id []byte
	if id, r, err = text.UnmarshalHex(b); chk.D(err) {
		return
	}
	if len(id) != eventid.Len {
		err = errorf.D("invalid event id length %d in OK", len(id))
		return
	}
	en.EventID = eventid.NewWith(id)
	for len(r) > 0 && (r[0] == ',' || r[0] == ' ') {
		r = r[1:]
	}
	switch {
	case bytes.HasPrefix(r, []byte("true")):
		en.OK = true
		r = r[4:]
	case bytes.HasPrefix(r, []byte("false")):
		r = r[5:]
	default:
		err = errorf.D("no boolean in OK envelope: '%s'", b)
		return
	}
	for len(r) > 0 && (r[0] == ',' || r[0] == ' ') {
		r = r[1:]
	}
	if len(r) > 0 && r[0] == '"' {
		if en.Reason, r, err = text.UnmarshalQuoted(r); chk.D(err) {
			return
		}
	}
	r, err = envelopes.SkipToTheEnd(r)
	return
}

// Parse reads an OK body.
func Parse(b []byte) (t *T, rem []byte, err error) {
	t = New()
	rem, err = t.Unmarshal(b)
	return
}
