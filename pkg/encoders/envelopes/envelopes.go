// Package envelopes provides the shared framing helpers of the nostr wire
// format: every message is a JSON array whose first element is a label
// string that identifies the codec for the rest.
package envelopes

import (
	"parley.dev/pkg/utils/errorf"
)

// Marshal appends a `["LABEL",...]` frame to dst, with each content function
// appending one comma separated element.
func Marshal(
	dst []byte, label string, content ...func(dst []byte) []byte,
) (b []byte) {
	dst = append(dst, '[', '"')
	dst = append(dst, label...)
	dst = append(dst, '"')
	for _, c := range content {
		dst = append(dst, ',')
		dst = c(dst)
	}
	dst = append(dst, ']')
	b = dst
	return
}

// Identify reads the label off the front of an envelope frame, returning it
// and the remainder positioned at the second element (or the closing
// bracket for bare frames).
func Identify(b []byte) (label string, rem []byte, err error) {
	rem = b
	for len(rem) > 0 && rem[0] != '[' {
		rem = rem[1:]
	}
	if len(rem) == 0 {
		err = errorf.D("not an envelope: '%s'", b)
		return
	}
	rem = rem[1:]
	for len(rem) > 0 && rem[0] != '"' {
		rem = rem[1:]
	}
	if len(rem) == 0 {
		err = errorf.D("no label in envelope: '%s'", b)
		return
	}
	rem = rem[1:]
	var lb []byte
	for len(rem) > 0 && rem[0] != '"' {
		lb = append(lb, rem[0])
		rem = rem[1:]
	}
	if len(rem) == 0 {
		err = errorf.D("unterminated label in envelope: '%s'", b)
		return
	}
	rem = rem[1:]
	for len(rem) > 0 && (rem[0] == ',' || rem[0] == ' ' || rem[0] == '\t' ||
		rem[0] == '\n' || rem[0] == '\r') {
		rem = rem[1:]
	}
	label = string(lb)
	return
}

// SkipToTheEnd consumes the remainder of an envelope up to and including its
// closing bracket.
func SkipToTheEnd(b []byte) (rem []byte, err error) {
	rem = b
	for len(rem) > 0 {
		if rem[0] == ']' {
			rem = rem[1:]
			return
		}
		rem = rem[1:]
	}
	return
}
