// Package negentropyenvelope defines the NIP-77 reconciliation frames:
// `["NEG-OPEN",<subid>,<filter>,<hex msg>]`, `["NEG-MSG",<subid>,<hex msg>]`,
// `["NEG-CLOSE",<subid>]` and the relay error `["NEG-ERR",<subid>,<reason>]`.
package negentropyenvelope

import (
	"parley.dev/pkg/encoders/envelopes"
	"parley.dev/pkg/encoders/filter"
	"parley.dev/pkg/encoders/hex"
	"parley.dev/pkg/encoders/subscription"
	"parley.dev/pkg/encoders/text"
	"parley.dev/pkg/interfaces/codec"
	"parley.dev/pkg/utils/chk"
)

// Envelope labels.
const (
	OpenLabel  = "NEG-OPEN"
	MsgLabel   = "NEG-MSG"
	CloseLabel = "NEG-CLOSE"
	ErrLabel   = "NEG-ERR"
)

// Open is the client frame that starts a reconciliation session over a
// filter, carrying the initial protocol message.
type Open struct {
	Subscription *subscription.Id
	Filter       *filter.F
	Message      []byte
}

var _ codec.Envelope = (*Open)(nil)

// NewOpen creates an empty Open.
func NewOpen() *Open { return &Open{} }

// NewOpenFrom builds an Open from its parts; msg is the raw binary protocol
// message, hex-encoded on the wire.
func NewOpenFrom(id *subscription.Id, f *filter.F, msg []byte) *Open {
	return &Open{Subscription: id, Filter: f, Message: msg}
}

// Label returns the envelope label.
func (en *Open) Label() string { return OpenLabel }

// Marshal appends the wire frame to dst.
func (en *Open) Marshal(dst []byte) (b []byte) {
	return envelopes.Marshal(
		dst, OpenLabel, en.Subscription.Marshal, en.Filter.Marshal,
		func(o []byte) []byte {
			return text.AppendQuote(o, en.Message, hex.EncAppend)
		},
	)
}

// Unmarshal consumes the envelope body after the label.
func (en *Open) Unmarshal(b []byte) (r []byte, err error) {
	en.Subscription = &subscription.Id{}
	if r, err = en.Subscription.Unmarshal(b); chk.D(err) {
		return
	}
	en.Filter = filter.New()
	if r, err = en.Filter.Unmarshal(r); chk.D(err) {
		return
	}
	if en.Message, r, err = text.UnmarshalHex(r); chk.D(err) {
		return
	}
	r, err = envelopes.SkipToTheEnd(r)
	return
}

// ParseOpen reads an Open body.
func ParseOpen(b []byte) (t *Open, rem []byte, err error) {
	t = NewOpen()
	rem, err = t.Unmarshal(b)
	return
}

// Msg is one round of the reconciliation dialogue, sent by either side.
type Msg struct {
	Subscription *subscription.Id
	Message      []byte
}

var _ codec.Envelope = (*Msg)(nil)

// NewMsg creates an empty Msg.
func NewMsg() *Msg { return &Msg{} }

// NewMsgFrom builds a Msg; msg is raw binary, hex-encoded on the wire.
func NewMsgFrom(id *subscription.Id, msg []byte) *Msg {
	return &Msg{Subscription: id, Message: msg}
}

// Label returns the envelope label.
func (en *Msg) Label() string { return MsgLabel }

// Marshal appends the wire frame to dst.
func (en *Msg) Marshal(dst []byte) (b []byte) {
	return envelopes.Marshal(
		dst, MsgLabel, en.Subscription.Marshal,
		func(o []byte) []byte {
			return text.AppendQuote(o, en.Message, hex.EncAppend)
		},
	)
}

// Unmarshal consumes the envelope body after the label.
func (en *Msg) Unmarshal(b []byte) (r []byte, err error) {
	en.Subscription = &subscription.Id{}
	if r, err = en.Subscription.Unmarshal(b); chk.D(err) {
		return
	}
	if en.Message, r, err = text.UnmarshalHex(r); chk.D(err) {
		return
	}
	r, err = envelopes.SkipToTheEnd(r)
	return
}

// ParseMsg reads a Msg body.
func ParseMsg(b []byte) (t *Msg, rem []byte, err error) {
	t = NewMsg()
	rem, err = t.Unmarshal(b)
	return
}

// Close ends a reconciliation session.
type Close struct {
	Subscription *subscription.Id
}

var _ codec.Envelope = (*Close)(nil)

// NewClose creates an empty Close.
func NewClose() *Close { return &Close{} }

// NewCloseFrom wraps a subscription id.
func NewCloseFrom(id *subscription.Id) *Close {
	return &Close{Subscription: id}
}

// Label returns the envelope label.
func (en *Close) Label() string { return CloseLabel }

// Marshal appends the wire frame to dst.
func (en *Close) Marshal(dst []byte) (b []byte) {
	return envelopes.Marshal(dst, CloseLabel, en.Subscription.Marshal)
}

// Unmarshal consumes the envelope body after the label.
func (en *Close) Unmarshal(b []byte) (r []byte, err error) {
	en.Subscription = &subscription.Id{}
	if r, err = en.Subscription.Unmarshal(b); chk.D(err) {
		return
	}
	r, err = envelopes.SkipToTheEnd(r)
	return
}

// Err is the relay failure notice for a reconciliation session.
type Err struct {
	Subscription *subscription.Id
	Reason       []byte
}

var _ codec.Envelope = (*Err)(nil)

// NewErr creates an empty Err.
func NewErr() *Err { return &Err{} }

// NewErrFrom builds an Err from its parts.
func NewErrFrom(id *subscription.Id, reason []byte) *Err {
	return &Err{Subscription: id, Reason: reason}
}

// Label returns the envelope label.
func (en *Err) Label() string { return ErrLabel }

// ReasonString returns the reason as a string.
func (en *Err) ReasonString() string { return string(en.Reason) }

// Marshal appends the wire frame to dst.
func (en *Err) Marshal(dst []byte) (b []byte) {
	return envelopes.Marshal(
		dst, ErrLabel, en.Subscription.Marshal,
		func(o []byte) []byte {
			return text.AppendQuote(o, en.Reason, text.NostrEscape)
		},
	)
}

// Unmarshal consumes the envelope body after the label.
func (en *Err) Unmarshal(b []byte) (r []byte, err error) {
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

// ParseErr reads an Err body.
func ParseErr(b []byte) (t *Err, rem []byte, err error) {
	t = NewErr()
	rem, err = t.Unmarshal(b)
	return
}
