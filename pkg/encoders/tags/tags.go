// Package tags is the codec for the ordered tag list of an event, with the
// helpers the store and filter engine need: d-tag extraction, indexable
// pairs, and filter intersection.
package tags

import (
	"bytes"

	"parley.dev/pkg/encoders/tag"
)

// T is an ordered list of tags.
type T struct {
	T []*tag.T
}

// New creates a tags.T from its arguments.
func New(tt ...*tag.T) *T { return &T{T: tt} }

// NewWithCap creates an empty list with capacity.
func NewWithCap(c int) *T { return &T{T: make([]*tag.T, 0, c)} }

// Len returns the number of tags (nil-safe).
func (t *T) Len() int {
	if t == nil {
		return 0
	}
	return len(t.T)
}

// AppendTags adds tags to the list and returns it.
func (t *T) AppendTags(tt ...*tag.T) *T {
	t.T = append(t.T, tt...)
	return t
}

// ToSliceOfTags returns the underlying tag list.
func (t *T) ToSliceOfTags() []*tag.T {
	if t == nil {
		return nil
	}
	return t.T
}

// GetFirst returns the first tag whose leading fields match those of the
// prefix tag, or nil.
func (t *T) GetFirst(prefix *tag.T) *tag.T {
	if t == nil {
		return nil
	}
	for _, tt := range t.T {
		if tt.Len() < prefix.Len() {
			continue
		}
		match := true
		for i := 0; i < prefix.Len(); i++ {
			if !bytes.Equal(tt.B(i), prefix.B(i)) {
				match = false
				break
			}
		}
		if match {
			return tt
		}
	}
	return nil
}

// GetAll returns every tag whose key matches.
func (t *T) GetAll(key []byte) (tt []*tag.T) {
	if t == nil {
		return
	}
	for _, x := range t.T {
		if bytes.Equal(x.Key(), key) {
			tt = append(tt, x)
		}
	}
	return
}

// GetD returns the value of the first "d" tag, empty when absent. An empty
// identifier is a valid coordinate for parameterized replaceable events.
func (t *T) GetD() []byte {
	if d := t.GetFirst(tag.New("d")); d != nil {
		return d.Value()
	}
	return nil
}

// ContainsAny reports whether any tag in the list has the given key and a
// value in the values list.
func (t *T) ContainsAny(key []byte, values [][]byte) bool {
	if t == nil {
		return false
	}
	for _, x := range t.T {
		if !bytes.Equal(x.Key(), key) {
			continue
		}
		for _, v := range values {
			if bytes.Equal(x.Value(), v) {
				return true
			}
		}
	}
	return false
}

// Clone makes a deep copy of the list.
func (t *T) Clone() *T {
	c := &T{T: make([]*tag.T, len(t.T))}
	for i, x := range t.T {
		c.T[i] = x.Clone()
	}
	return c
}

// Equal compares two tag lists.
func (t *T) Equal(other *T) bool {
	if t.Len() != other.Len() {
		return false
	}
	for i := range t.T {
		if !t.T[i].Equal(other.T[i]) {
			return false
		}
	}
	return true
}

// ToStringsSlice converts the list to [][]string for basic-type consumers.
func (t *T) ToStringsSlice() (s [][]string) {
	s = make([][]string, 0, t.Len())
	for _, x := range t.T {
		s = append(s, x.ToStringSlice())
	}
	return
}

// Marshal appends the JSON array-of-arrays form to dst.
func (t *T) Marshal(dst []byte) []byte {
	dst = append(dst, '[')
	for i, x := range t.T {
		dst = x.Marshal(dst)
		if i < len(t.T)-1 {
			dst = append(dst, ',')
		}
	}
	dst = append(dst, ']')
	return dst
}

// Unmarshal consumes a JSON array of string arrays off the front of b.
func (t *T) Unmarshal(b []byte) (rem []byte, err error) {
	rem = b
	for len(rem) > 0 && rem[0] != '[' {
		rem = rem[1:]
	}
	if len(rem) > 0 {
		rem = rem[1:]
	}
	for len(rem) > 0 {
		switch rem[0] {
		case ']':
			rem = rem[1:]
			return
		case ',', ' ', '\t', '\n':
			rem = rem[1:]
		case '[':
			x := &tag.T{}
			if rem, err = x.Unmarshal(rem); err != nil {
				return
			}
			t.T = append(t.T, x)
		default:
			rem = rem[1:]
		}
	}
	return
}
