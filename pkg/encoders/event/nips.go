package event

import (
	"math/bits"

	"parley.dev/pkg/encoders/ints"
	"parley.dev/pkg/encoders/tag"
	"parley.dev/pkg/encoders/timestamp"
)

// ExpirationTag is the NIP-40 tag name.
var ExpirationTag = []byte("expiration")

// ProtectedTag is the NIP-70 tag name.
var ProtectedTag = []byte("-")

// Expiration returns the NIP-40 expiration timestamp of the event, nil when
// the tag is absent or malformed.
func (ev *E) Expiration() (ts *timestamp.T) {
	t := ev.Tags.GetFirst(tag.New(ExpirationTag))
	if t == nil || len(t.Value()) == 0 {
		return
	}
	n := ints.New(0)
	if _, err := n.Unmarshal(t.Value()); err != nil {
		return
	}
	return timestamp.FromUnix(n.Int64())
}

// IsExpired reports whether the event carries an expiration tag with a
// timestamp at or before now.
func (ev *E) IsExpired(now *timestamp.T) bool {
	exp := ev.Expiration()
	return exp != nil && exp.I64() <= now.I64()
}

// IsProtected reports whether the event carries the NIP-70 "-" tag, marking
// it publishable only by its author.
func (ev *E) IsProtected() bool {
	return ev.Tags.GetFirst(tag.New(ProtectedTag)) != nil
}

// Pow returns the NIP-13 proof of work of the event: the number of leading
// zero bits of its ID.
func (ev *E) Pow() (difficulty int) {
	for _, b := range ev.ID {
		if b == 0 {
			difficulty += 8
			continue
		}
		difficulty += bits.LeadingZeros8(b)
		break
	}
	return
}
