// Package reqenvelope defines the client subscription request
// `["REQ",<subid>,<filter>...]`.
package reqenvelope

import (
	"parley.dev/pkg/encoders/filter"
	"parley.dev/pkg/encoders/filters"
	"parley.dev/pkg/encoders/subscription"
	"parley.dev/pkg/interfaces/codec"
	"parley.dev/pkg/utils/chk"
)

// L is the label of this envelope.
const L = "REQ"

// T is a REQ message.
type T struct {
	Subscription *subscription.Id
	Filters      *filters.T
}

var _ codec.Envelope = (*T)(nil)

// New creates an empty REQ.
func New() *T { return &T{} }

// NewFrom binds a subscription id and filters.
func NewFrom(id *subscription.Id, ff *filters.T) *T {
	return &T{Subscription: id, Filters: ff}
}

// Label returns the envelope label.
func (en *T) Label() string { return L }

// Marshal appends the wire frame to dst.
func (en *T) Marshal(dst []byte) (b []byte) {
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
func (en *T) Unmarshal(b []byte) (r []byte, err error) {
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

// Parse reads a REQ body.
func Parse(b []byte) (t *T, rem []byte, err error) {
	t = New()
	rem, err = t.Unmarshal(b)
	return
}
