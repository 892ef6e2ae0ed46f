// Package timestamp is the unix-seconds time field of events and filters.
package timestamp

import (
	"time"

	"parley.dev/pkg/encoders/ints"
)

// T is a unix timestamp in seconds. The wire form is an ascii decimal, the
// index form is big-endian 8 bytes.
type T struct {
	V int64
}

// New returns a zero timestamp.
func New() *T { return &T{} }

// Now returns the current time as a timestamp.
func Now() *T { return &T{V: time.Now().Unix()} }

// FromUnix converts a unix seconds count into a timestamp.
func FromUnix(t int64) *T { return &T{V: t} }

// FromTime converts a time.Time into a timestamp.
func FromTime(t time.Time) *T { return &T{V: t.Unix()} }

// I64 returns the timestamp as int64 (zero for nil).
func (t *T) I64() int64 {
	if t == nil {
		return 0
	}
	return t.V
}

// U64 returns the timestamp as uint64, clamping negatives to zero.
func (t *T) U64() uint64 {
	if t == nil || t.V < 0 {
		return 0
	}
	return uint64(t.V)
}

// Int returns the timestamp as int.
func (t *T) Int() int { return int(t.I64()) }

// Time converts the timestamp to a time.Time.
func (t *T) Time() time.Time { return time.Unix(t.I64(), 0) }

// Marshal appends the ascii decimal form to dst.
func (t *T) Marshal(dst []byte) []byte {
	return ints.New(t.U64()).Marshal(dst)
}

// Unmarshal consumes an ascii decimal timestamp off the front of b.
func (t *T) Unmarshal(b []byte) (rem []byte, err error) {
	n := ints.New(0)
	if rem, err = n.Unmarshal(b); err != nil {
		return
	}
	t.V = n.Int64()
	return
}
