// Package hex is a lowercase hexadecimal codec built on the SIMD-accelerated
// templexxx/xhex, with append and must variants.
package hex

import (
	"encoding/hex"

	"github.com/templexxx/xhex"

	"parley.dev/pkg/utils/errorf"
)

// Enc encodes a byte slice as lowercase hex.
func Enc(b []byte) (s string) {
	dst := make([]byte, len(b)*2)
	xhex.Encode(dst, b)
	return string(dst)
}

// EncAppend appends the lowercase hex encoding of src to dst.
func EncAppend(dst, src []byte) (b []byte) {
	l := len(dst)
	dst = append(dst, make([]byte, len(src)*2)...)
	xhex.Encode(dst[l:], src)
	return dst
}

// Dec decodes a hex string into a new byte slice.
func Dec(s string) (b []byte, err error) {
	b = make([]byte, len(s)/2)
	if err = xhex.Decode(b, []byte(s)); err != nil {
		err = errorf.D("hex: failed to decode '%s': %v", s, err)
		return
	}
	return
}

// DecAppend decodes hexadecimal src appending the binary form to dst.
func DecAppend(dst, src []byte) (b []byte, err error) {
	l := len(dst)
	dst = append(dst, make([]byte, len(src)/2)...)
	if err = xhex.Decode(dst[l:], src); err != nil {
		err = errorf.D("hex: failed to decode '%s': %v", src, err)
		return
	}
	return dst, nil
}

// MustDec decodes or panics; for use on compile-time constants in tests.
func MustDec(s string) (b []byte) {
	var err error
	if b, err = Dec(s); err != nil {
		panic(err)
	}
	return
}

// DecStd is the stdlib fallback for inputs xhex does not accept.
func DecStd(s string) (b []byte, err error) { return hex.DecodeString(s) }
