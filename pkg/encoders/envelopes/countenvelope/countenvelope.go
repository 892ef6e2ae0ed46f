// Package countenvelope defines the NIP-45 count request
// `["COUNT",<subid>,<filter>...]` and response
// `["COUNT",<subid>,{"count":<n>}]`.
package countenvelope

import (
	"bytes"

	"parley.dev/pkg/encoders/envelopes"
	"parley.dev/pkg/encoders/filter"
	"parley.dev/pkg/encoders/filters"
	"parley.dev/pkg/encoders/ints"
	"parley.dev/pkg/encoders/subscription"
	"parley.dev/pkg/interfaces/codec"
	"parley.dev/pkg/utils/chk"
	"parley.dev/pkg/utils/errorf"
)

// L is the label of this envelope.
const L = "COUNT"

// Request is the client form carrying filters to count.
type Request struct {
	Subscription *subscription.Id
	Filters      *filters.T
}

var _ codec.Envelope = (*Request)(nil)

// NewRequest creates an empty Request.
func NewRequest() *Request { return &Request{} }

// NewRequestFrom binds a subscription id and filters.
func NewRequestFrom(id *subscription.Id, ff *filters.T) *Request {
	return &Request{Subscription: id, Filters: ff}
}

// Label returns the envelope label.
func (en *Request) Label() string { return L }

// Marshal appends the wire frame to dst.
func (en *Request) Marshal(dst []byte) (b []byte) {
	b = dst
	b = append(b, '[', '"')
	b = append(b, L...)
	b = append(b, '"', ',')
	b = en.Subscription.Marshal(b)
	for _, f := range en.Filters.F {
		b = append(b, ',')
		b = f.Marshal(b)
	}
	b = append(b, ']')
	return
}

// Unmarshal consumes the envelope body after the label.
func (en *Request) Unmarshal(b []byte) (r []byte, err error) {
	en.Subscription = &subscription.Id{}
	if r, err = en.Subscription.Unmarshal(b); chk.D(err) {
		return
	}
	en.Filters = filters.New()
	for len(r) > 0 {
		switch r[0] {
		case ']':
			r = r[1:]
			return
		case '{':
			f := filter.New()
			if r, err = f.Unmarshal(r); chk.D(err) {
				return
			}
			en.Filters.F = append(en.Filters.F, f)
		default:
			r = r[1:]
		}
	}
	return
}

// Response is the relay form carrying the count.
type Response struct {
	Subscription *subscription.Id
	Count        uint64
}

var _ codec.Envelope = (*Response)(nil)

var jCount = []byte("count")

// NewResponse creates an empty Response.
func NewResponse() *Response { return &Response{} }

// NewResponseFrom binds a subscription id and count.
func NewResponseFrom(id *subscription.Id, count uint64) *Response {
	return &Response{Subscription: id, Count: count}
}

// Label returns the envelope label.
func (en *Response) Label() string { return L }

// Marshal appends the wire frame to dst.
func (en *Response) Marshal(dst []byte) (b []byte) {
	return envelopes.Marshal(
		dst, L, en.Subscription.Marshal,
		func(o []byte) []byte {
			o = append(o, '{', '"')
			o = append(o, jCount...)
			o = append(o, '"', ':')
			o = ints.New(en.Count).Marshal(o)
			o = append(o, '}')
			return o
		},
	)
}

// Unmarshal consumes the envelope body after the label.
func (en *Response) Unmarshal(b []byte) (r []byte, err error) {
	en.Subscription = &subscription.Id{}
	if r, err = en.Subscription.Unmarshal(b); chk.D(err) {
		return
	}
	idx := bytes.Index(r, jCount)
	if idx < 0 {
		err = errorf.D("no count field in COUNT response: '%s'", b)
		return
	}
	n := ints.New(0)
	if r, err = n.Unmarshal(r[idx+len(jCount):]); chk.D(err) {
		return
	}
	en.Count = n.Uint64()
	r, err = envelopes.SkipToTheEnd(r)
	return
}

// ParseResponse reads a Response body.
func ParseResponse(b []byte) (t *Response, rem []byte, err error) {
	t = NewResponse()
	rem, err = t.Unmarshal(b)
	return
}
