package text

import (
	"parley.dev/pkg/encoders/hex"
	"parley.dev/pkg/utils/errorf"
)

// JSONKey appends `"key":` to dst.
func JSONKey(dst, key []byte) []byte {
	dst = append(dst, '"')
	dst = append(dst, key...)
	dst = append(dst, '"', ':')
	return dst
}

// AppendQuote appends src to dst wrapped in double quotes, transformed by
// enc (eg NostrEscape or hex.EncAppend).
func AppendQuote(
	dst, src []byte, enc func(dst, src []byte) []byte,
) []byte {
	dst = append(dst, '"')
	dst = enc(dst, src)
	dst = append(dst, '"')
	return dst
}

// MarshalHexArray appends a JSON array of hex-encoded strings to dst.
func MarshalHexArray(dst []byte, src [][]byte) []byte {
	dst = append(dst, '[')
	for i, s := range src {
		dst = AppendQuote(dst, s, hex.EncAppend)
		if i < len(src)-1 {
			dst = append(dst, ',')
		}
	}
	dst = append(dst, ']')
	return dst
}

// UnmarshalQuoted reads a quoted string off the front of b, unescaping it,
// and returns the content and the remainder after the closing quote.
func UnmarshalQuoted(b []byte) (content, rem []byte, err error) {
	rem = b
	for len(rem) > 0 && rem[0] != '"' {
		rem = rem[1:]
	}
	if len(rem) == 0 {
		err = errorf.D("no opening quote in '%s'", b)
		return
	}
	rem = rem[1:]
	for i := 0; i < len(rem); i++ {
		switch rem[i] {
		case '\\':
			i++
		case '"':
			content = NostrUnescape(nil, rem[:i])
			rem = rem[i+1:]
			return
		}
	}
	err = errorf.D("unterminated quoted string in '%s'", b)
	return
}

// UnmarshalHex reads one quoted hex string off the front of b and returns
// its binary form and the remainder.
func UnmarshalHex(b []byte) (v, rem []byte, err error) {
	var s []byte
	if s, rem, err = UnmarshalQuoted(b); err != nil {
		return
	}
	if len(s)%2 != 0 {
		err = errorf.D("odd length hex string '%s'", s)
		return
	}
	v, err = hex.Dec(string(s))
	return
}

// UnmarshalHexArray reads a JSON array of hex strings of the given binary
// size off the front of b.
func UnmarshalHexArray(b []byte, size int) (
	vals [][]byte, rem []byte, err error,
) {
	rem = b
	for len(rem) > 0 && rem[0] != '[' {
		rem = rem[1:]
	}
	if len(rem) == 0 {
		err = errorf.D("no opening bracket in '%s'", b)
		return
	}
	rem = rem[1:]
	for {
		for len(rem) > 0 && (rem[0] == ',' || rem[0] == ' ' ||
			rem[0] == '\t' || rem[0] == '\n') {
			rem = rem[1:]
		}
		if len(rem) == 0 {
			err = errorf.D("unterminated array in '%s'", b)
			return
		}
		if rem[0] == ']' {
			rem = rem[1:]
			return
		}
		var s []byte
		if s, rem, err = UnmarshalQuoted(rem); err != nil {
			return
		}
		if len(s) != size*2 {
			err = errorf.D(
				"hex array element wrong length, got %d expect %d",
				len(s), size*2,
			)
			return
		}
		var v []byte
		if v, err = hex.Dec(string(s)); err != nil {
			return
		}
		vals = append(vals, v)
	}
}

// UnmarshalStringArray reads a JSON array of arbitrary strings off the front
// of b.
func UnmarshalStringArray(b []byte) (vals [][]byte, rem []byte, err error) {
	rem = b
	for len(rem) > 0 && rem[0] != '[' {
		rem = rem[1:]
	}
	if len(rem) == 0 {
		err = errorf.D("no opening bracket in '%s'", b)
		return
	}
	rem = rem[1:]
	for {
		for len(rem) > 0 && (rem[0] == ',' || rem[0] == ' ' ||
			rem[0] == '\t' || rem[0] == '\n') {
			rem = rem[1:]
		}
		if len(rem) == 0 {
			err = errorf.D("unterminated array in '%s'", b)
			return
		}
		if rem[0] == ']' {
			rem = rem[1:]
			return
		}
		var s []byte
		if s, rem, err = UnmarshalQuoted(rem); err != nil {
			return
		}
		vals = append(vals, s)
	}
}
