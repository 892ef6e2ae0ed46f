// Package kind is the event kind code and the NIP range tables that govern
// persistence behaviour. The category of a kind is data, derived from the
// ranges in NIP-01/NIP-09, so callers never hardcode numeric comparisons.
package kind

import (
	"parley.dev/pkg/encoders/ints"
)

// T is a nostr event kind code.
type T struct {
	K uint16
}

// New creates a kind.T from any integer-convertible value.
func New[V uint16 | uint32 | uint64 | int16 | int32 | int64 | int](k V) *T {
	return &T{K: uint16(k)}
}

// Well-known kinds referenced by the core.
var (
	ProfileMetadata      = New(0)
	TextNote             = New(1)
	FollowList           = New(3)
	Deletion             = New(5)
	Repost               = New(6)
	Reaction             = New(7)
	RelayListMetadata    = New(10002)
	ClientAuthentication = New(22242)
)

// category codes for the Category table.
const (
	Regular = iota
	Replaceable
	ParameterizedReplaceable
	Ephemeral
)

// Category returns the persistence category of a kind per the NIP ranges:
// replaceable 0, 3 and 10000-19999; ephemeral 20000-29999; parameterized
// replaceable 30000-39999; everything else regular.
func (k *T) Category() int {
	switch {
	case k.K == 0 || k.K == 3:
		return Replaceable
	case k.K >= 10000 && k.K < 20000:
		return Replaceable
	case k.K >= 20000 && k.K < 30000:
		return Ephemeral
	case k.K >= 30000 && k.K < 40000:
		return ParameterizedReplaceable
	}
	return Regular
}

// IsReplaceable reports whether only the newest event per (kind, pubkey) is
// retained.
func (k *T) IsReplaceable() bool { return k.Category() == Replaceable }

// IsParameterizedReplaceable reports whether only the newest event per
// (kind, pubkey, d-tag) is retained.
func (k *T) IsParameterizedReplaceable() bool {
	return k.Category() == ParameterizedReplaceable
}

// IsEphemeral reports whether the event is never persisted.
func (k *T) IsEphemeral() bool { return k.Category() == Ephemeral }

// IsDeletion reports whether this is a NIP-09 deletion request.
func (k *T) IsDeletion() bool { return k.K == Deletion.K }

// Equal compares two kinds by code.
func (k *T) Equal(other *T) bool {
	return k != nil && other != nil && k.K == other.K
}

// Marshal appends the ascii decimal form to dst.
func (k *T) Marshal(dst []byte) []byte {
	return ints.New(k.K).Marshal(dst)
}

// Unmarshal consumes an ascii decimal kind off the front of b.
func (k *T) Unmarshal(b []byte) (rem []byte, err error) {
	n := ints.New(0)
	if rem, err = n.Unmarshal(b); err != nil {
		return
	}
	k.K = n.Uint16()
	return
}
