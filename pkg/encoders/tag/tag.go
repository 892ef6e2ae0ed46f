// Package tag is the codec for a single event tag: an ordered list of
// strings whose first element is the tag name. Values are kept in the byte
// form they arrived in; hex fields are not converted so that an event
// round-trips byte-identical.
package tag

import (
	"bytes"

	"parley.dev/pkg/encoders/text"
	"parley.dev/pkg/utils/errorf"
)

// T is a single tag.
type T struct {
	F [][]byte
}

// New creates a tag from string or byte slice fields.
func New[V string | []byte](fields ...V) *T {
	t := &T{F: make([][]byte, 0, len(fields))}
	for _, f := range fields {
		t.F = append(t.F, []byte(f))
	}
	return t
}

// FromBytesSlice wraps an existing [][]byte as a tag.
func FromBytesSlice(fields ...[]byte) *T { return &T{F: fields} }

// Len returns the number of fields (nil-safe).
func (t *T) Len() int {
	if t == nil {
		return 0
	}
	return len(t.F)
}

// B returns field i as bytes, nil when out of range.
func (t *T) B(i int) []byte {
	if t == nil || i >= len(t.F) {
		return nil
	}
	return t.F[i]
}

// S returns field i as a string.
func (t *T) S(i int) string { return string(t.B(i)) }

// Key returns the tag name (first field).
func (t *T) Key() []byte { return t.B(0) }

// Value returns the second field, by convention the tag's value.
func (t *T) Value() []byte { return t.B(1) }

// IsIndexable reports whether the tag name is a single ascii letter, making
// its value eligible for the tag index and for `#x` filter constraints.
func (t *T) IsIndexable() bool {
	k := t.Key()
	if len(k) != 1 {
		return false
	}
	return k[0] >= 'a' && k[0] <= 'z' || k[0] >= 'A' && k[0] <= 'Z'
}

// Equal compares two tags field by field.
func (t *T) Equal(other *T) bool {
	if t.Len() != other.Len() {
		return false
	}
	for i := range t.F {
		if !bytes.Equal(t.F[i], other.F[i]) {
			return false
		}
	}
	return true
}

// Clone makes a deep copy of the tag.
func (t *T) Clone() *T {
	c := &T{F: make([][]byte, len(t.F))}
	for i, f := range t.F {
		c.F[i] = append([]byte{}, f...)
	}
	return c
}

// ToStringSlice converts the tag fields to strings.
func (t *T) ToStringSlice() (s []string) {
	s = make([]string, 0, t.Len())
	for _, f := range t.F {
		s = append(s, string(f))
	}
	return
}

// Marshal appends the JSON array form of the tag to dst.
func (t *T) Marshal(dst []byte) []byte {
	dst = append(dst, '[')
	for i, f := range t.F {
		dst = text.AppendQuote(dst, f, text.NostrEscape)
		if i < len(t.F)-1 {
			dst = append(dst, ',')
		}
	}
	dst = append(dst, ']')
	return dst
}

// Unmarshal consumes a JSON string array off the front of b.
func (t *T) Unmarshal(b []byte) (rem []byte, err error) {
	var vals [][]byte
	if vals, rem, err = text.UnmarshalStringArray(b); err != nil {
		return
	}
	if len(vals) == 0 {
		err = errorf.D("empty tag in '%s'", b)
		return
	}
	t.F = vals
	return
}
