// Package authenvelope defines the NIP-42 authentication pair: the relay
// challenge `["AUTH",<challenge>]` and the client response
// `["AUTH",<signed event>]`.
package authenvelope

import (
	"parley.dev/pkg/encoders/envelopes"
	"parley.dev/pkg/encoders/event"
	"parley.dev/pkg/encoders/text"
	"parley.dev/pkg/interfaces/codec"
	"parley.dev/pkg/utils/chk"
)

// L is the label of this envelope.
const L = "AUTH"

// Challenge is the relay-sent random string that prevents replay of auth
// events.
type Challenge struct {
	Challenge []byte
}

var _ codec.Envelope = (*Challenge)(nil)

// NewChallenge creates an empty Challenge.
func NewChallenge() *Challenge { return &Challenge{} }

// NewChallengeWith wraps challenge bytes.
func NewChallengeWith[V string | []byte](c V) *Challenge {
	return &Challenge{Challenge: []byte(c)}
}

// Label returns the envelope label.
func (en *Challenge) Label() string { return L }

// Marshal appends the wire frame to dst.
func (en *Challenge) Marshal(dst []byte) (b []byte) {
	return envelopes.Marshal(
		dst, L,
		func(o []byte) []byte {
			return text.AppendQuote(o, en.Challenge, text.NostrEscape)
		},
	)
}

// Unmarshal consumes the envelope body after the label.
func (en *Challenge) Unmarshal(b []byte) (r []byte, err error) {
	if en.Challenge, r, err = text.UnmarshalQuoted(b); chk.D(err) {
		return
	}
	r, err = envelopes.SkipToTheEnd(r)
	return
}

// ParseChallenge reads a Challenge body.
func ParseChallenge(b []byte) (t *Challenge, rem []byte, err error) {
	t = NewChallenge()
	rem, err = t.Unmarshal(b)
	return
}

// Response is the client reply carrying the signed kind 22242 event bearing
// the relay URL and challenge tags.
type Response struct {
	Event *event.E
}

var _ codec.Envelope = (*Response)(nil)

// NewResponse creates an empty Response.
func NewResponse() *Response { return &Response{} }

// NewResponseWith wraps a signed auth event.
func NewResponseWith(ev *event.E) *Response { return &Response{Event: ev} }

// Label returns the envelope label.
func (en *Response) Label() string { return L }

// Marshal appends the wire frame to dst.
func (en *Response) Marshal(dst []byte) (b []byte) {
	return envelopes.Marshal(dst, L, en.Event.Marshal)
}

// Unmarshal consumes the envelope body after the label.
func (en *Response) Unmarshal(b []byte) (r []byte, err error) {
	en.Event = event.New()
	if r, err = en.Event.Unmarshal(b); chk.D(err) {
		return
	}
	r, err = envelopes.SkipToTheEnd(r)
	return
}

// ParseResponse reads a Response body.
func ParseResponse(b []byte) (t *Response, rem []byte, err error) {
	t = NewResponse()
	rem, err = t.Unmarshal(b)
	return
}
