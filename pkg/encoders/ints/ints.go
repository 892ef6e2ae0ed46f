// Package ints is a fast ascii decimal codec for unsigned integers as found
// in nostr JSON (timestamps, kinds, limits).
package ints

import (
	"parley.dev/pkg/utils/errorf"
)

// T wraps an unsigned integer for the append/consume codec.
type T struct {
	N uint64
}

// New creates an ints.T from any unsigned-convertible value.
func New[V uint64 | uint32 | uint16 | uint | int64 | int32 | int16 | int](n V) *T {
	return &T{N: uint64(n)}
}

// Uint64 returns the value.
func (n *T) Uint64() uint64 { return n.N }

// Int64 returns the value as int64.
func (n *T) Int64() int64 { return int64(n.N) }

// Uint16 returns the value truncated to 16 bits.
func (n *T) Uint16() uint16 { return uint16(n.N) }

// Marshal appends the ascii decimal form to dst.
func (n *T) Marshal(dst []byte) []byte {
	if n.N == 0 {
		return append(dst, '0')
	}
	var tmp [20]byte
	i := len(tmp)
	for v := n.N; v > 0; v /= 10 {
		i--
		tmp[i] = byte('0' + v%10)
	}
	return append(dst, tmp[i:]...)
}

// Unmarshal consumes ascii decimal digits off the front of b, skipping
// leading non-digits (whitespace, colon residue).
func (n *T) Unmarshal(b []byte) (rem []byte, err error) {
	rem = b
	for len(rem) > 0 && (rem[0] < '0' || rem[0] > '9') {
		if rem[0] == ']' || rem[0] == '}' || rem[0] == ',' {
			err = errorf.D("no digits found in '%s'", b)
			return
		}
		rem = rem[1:]
	}
	if len(rem) == 0 {
		err = errorf.D("no digits found in '%s'", b)
		return
	}
	n.N = 0
	for len(rem) > 0 && rem[0] >= '0' && rem[0] <= '9' {
		n.N = n.N*10 + uint64(rem[0]-'0')
		rem = rem[1:]
	}
	return
}
