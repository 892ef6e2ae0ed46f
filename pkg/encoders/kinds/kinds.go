// Package kinds is a list of kind.T for filters.
package kinds

import (
	"sort"

	"parley.dev/pkg/encoders/kind"
)

// T is a list of kinds.
type T struct {
	K []*kind.T
}

// New creates a kinds.T from its arguments.
func New(ks ...*kind.T) *T { return &T{K: ks} }

// NewWithCap creates an empty kinds.T with capacity.
func NewWithCap(c int) *T { return &T{K: make([]*kind.T, 0, c)} }

// Len returns the number of kinds in the list (nil-safe).
func (k *T) Len() int {
	if k == nil {
		return 0
	}
	return len(k.K)
}

// Contains reports whether the list includes the given kind.
func (k *T) Contains(c *kind.T) bool {
	if k == nil || c == nil {
		return false
	}
	for _, kk := range k.K {
		if kk.K == c.K {
			return true
		}
	}
	return false
}

// Append adds a kind to the list.
func (k *T) Append(c *kind.T) { k.K = append(k.K, c) }

// Sort orders the list ascending by code.
func (k *T) Sort() {
	sort.Slice(k.K, func(i, j int) bool { return k.K[i].K < k.K[j].K })
}

// Marshal appends the JSON array form to dst.
func (k *T) Marshal(dst []byte) []byte {
	dst = append(dst, '[')
	for i, kk := range k.K {
		dst = kk.Marshal(dst)
		if i < len(k.K)-1 {
			dst = append(dst, ',')
		}
	}
	dst = append(dst, ']')
	return dst
}

// Unmarshal consumes a JSON array of kind numbers off the front of b.
func (k *T) Unmarshal(b []byte) (rem []byte, err error) {
	rem = b
	for len(rem) > 0 && rem[0] != '[' {
		rem = rem[1:]
	}
	if len(rem) > 0 {
		rem = rem[1:]
	}
	for len(rem) > 0 {
		if rem[0] == ']' {
			rem = rem[1:]
			return
		}
		if rem[0] == ',' || rem[0] == ' ' {
			rem = rem[1:]
			continue
		}
		kk := kind.New(0)
		if rem, err = kk.Unmarshal(rem); err != nil {
			return
		}
		k.K = append(k.K, kk)
	}
	return
}
