// Package varint is the unsigned variable-length integer codec used in the
// binary event blob and the negentropy wire format: big-endian base-128
// groups with the continuation high bit set on all but the final byte.
package varint

import (
	"io"

	"parley.dev/pkg/utils/errorf"
)

// Encode writes v to w in varint form.
func Encode(w io.Writer, v uint64) {
	var tmp [10]byte
	i := len(tmp) - 1
	tmp[i] = byte(v & 0x7f)
	v >>= 7
	for v > 0 {
		i--
		tmp[i] = byte(v&0x7f) | 0x80
		v >>= 7
	}
	w.Write(tmp[i:])
}

// Append appends the varint form of v to dst.
func Append(dst []byte, v uint64) []byte {
	var tmp [10]byte
	i := len(tmp) - 1
	tmp[i] = byte(v & 0x7f)
	v >>= 7
	for v > 0 {
		i--
		tmp[i] = byte(v&0x7f) | 0x80
		v >>= 7
	}
	return append(dst, tmp[i:]...)
}

// Decode reads one varint off r.
func Decode(r io.Reader) (v uint64, err error) {
	var b [1]byte
	for {
		var n int
		if n, err = r.Read(b[:]); err != nil {
			return
		}
		if n == 0 {
			err = errorf.D("varint: short read")
			return
		}
		v = v<<7 | uint64(b[0]&0x7f)
		if b[0]&0x80 == 0 {
			return
		}
	}
}

// Extract reads one varint off the front of b and returns the remainder.
func Extract(b []byte) (v uint64, rem []byte, err error) {
	rem = b
	for len(rem) > 0 {
		c := rem[0]
		rem = rem[1:]
		v = v<<7 | uint64(c&0x7f)
		if c&0x80 == 0 {
			return
		}
	}
	err = errorf.D("varint: truncated")
	return
}
