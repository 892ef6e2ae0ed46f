// Package subscription holds the subscription id type, an opaque non-empty
// string of at most 64 characters scoped to one relay connection.
package subscription

import (
	"lukechampine.com/frand"

	"parley.dev/pkg/encoders/text"
	"parley.dev/pkg/utils/errorf"
)

// MaxLen is the NIP-01 ceiling on subscription id length.
const MaxLen = 64

// Id is a subscription identifier.
type Id struct {
	T []byte
}

// NewId creates a subscription id from a string or bytes.
func NewId[V string | []byte](s V) *Id { return &Id{T: []byte(s)} }

// NewRandom generates a random hex subscription id.
func NewRandom() *Id {
	b := frand.Bytes(16)
	dst := make([]byte, 0, 32)
	const hexdigit = "0123456789abcdef"
	for _, c := range b {
		dst = append(dst, hexdigit[c>>4], hexdigit[c&0xf])
	}
	return &Id{T: dst}
}

// String returns the id as a string.
func (id *Id) String() string { return string(id.T) }

// Valid reports whether the id is non-empty and within the length bound.
func (id *Id) Valid() bool {
	return id != nil && len(id.T) > 0 && len(id.T) <= MaxLen
}

// Marshal appends the quoted, escaped form to dst.
func (id *Id) Marshal(dst []byte) []byte {
	return text.AppendQuote(dst, id.T, text.NostrEscape)
}

// Unmarshal reads a quoted subscription id off the front of b.
func (id *Id) Unmarshal(b []byte) (rem []byte, err error) {
	if id.T, rem, err = text.UnmarshalQuoted(b); err != nil {
		return
	}
	if !id.Valid() {
		err = errorf.D("invalid subscription id '%s'", id.T)
	}
	return
}
