// Package filters is a list of filter.F, the unit a REQ subscription
// carries.
package filters

import (
	"parley.dev/pkg/encoders/event"
	"parley.dev/pkg/encoders/filter"
)

// T is a list of filters. An event matches the list when it matches any
// member.
type T struct {
	F []*filter.F
}

// New creates a filters.T from its arguments.
func New(ff ...*filter.F) *T { return &T{F: ff} }

// Len returns the number of filters (nil-safe).
func (t *T) Len() int {
	if t == nil {
		return 0
	}
	return len(t.F)
}

// Match reports whether any filter in the list matches the event.
func (t *T) Match(ev *event.E) bool {
	for _, f := range t.F {
		if f.Matches(ev) {
			return true
		}
	}
	return false
}

// MatchIgnoringTimestampConstraints is Match without since/until, for live
// events after EOSE.
func (t *T) MatchIgnoringTimestampConstraints(ev *event.E) bool {
	for _, f := range t.F {
		if f.MatchesIgnoringTimestamp(ev) {
			return true
		}
	}
	return false
}

// Clone deep-copies the list.
func (t *T) Clone() *T {
	c := &T{F: make([]*filter.F, len(t.F))}
	for i, f := range t.F {
		c.F[i] = f.Clone()
	}
	return c
}

// Marshal appends the comma separated JSON forms of the filters to dst, as
// they appear inside a REQ frame.
func (t *T) Marshal(dst []byte) (b []byte) {
	for i, f := range t.F {
		dst = f.Marshal(dst)
		if i < len(t.F)-1 {
			dst = append(dst, ',')
		}
	}
	b = dst
	return
}
