// Package eventid is the 32 byte sha256 identity of an event.
package eventid

import (
	"bytes"

	"parley.dev/pkg/encoders/hex"
	"parley.dev/pkg/utils/errorf"
)

// Len is the byte length of an event ID.
const Len = 32

// T wraps the binary form of an event ID.
type T struct {
	B []byte
}

// New returns an empty event ID.
func New() *T { return &T{} }

// NewWith wraps existing ID bytes.
func NewWith(b []byte) *T { return &T{B: b} }

// FromHex decodes a 64 character hex string into an event ID.
func FromHex(s string) (id *T, err error) {
	if len(s) != Len*2 {
		err = errorf.D(
			"event id hex wrong length, got %d require %d", len(s), Len*2,
		)
		return
	}
	var b []byte
	if b, err = hex.Dec(s); err != nil {
		return
	}
	return &T{B: b}, nil
}

// String returns the hex form of the ID.
func (id *T) String() string { return hex.Enc(id.B) }

// Bytes returns the binary form of the ID.
func (id *T) Bytes() []byte { return id.B }

// Equal compares two IDs.
func (id *T) Equal(other *T) bool { return bytes.Equal(id.B, other.B) }

// Valid reports whether the ID has the correct length.
func (id *T) Valid() bool { return id != nil && len(id.B) == Len }
