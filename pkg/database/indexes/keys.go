// Package indexes defines the key layout of the event store. Every keyspace
// begins with a three byte human-readable prefix; the remaining fields are
// fixed width so that lexicographic order is semantic order. Timestamps in
// query indexes are stored bitwise complemented (types.Rev64) so forward
// iteration runs newest first.
package indexes

import (
	"io"
	"reflect"

	"parley.dev/pkg/database/indexes/types"
	"parley.dev/pkg/interfaces/codec"
	"parley.dev/pkg/utils/chk"
)

// I is a three byte keyspace prefix.
type I string

// The keyspace prefixes.
const (
	EventPrefix        = I("evt") // id -> event blob
	CreatedAtPrefix    = I("c--") // ~created_at | id
	PubkeyPrefix       = I("p-c") // pubkey | ~created_at | id
	KindPrefix         = I("k-c") // kind | ~created_at | id
	KindPubkeyPrefix   = I("pkc") // pubkey | kind | ~created_at | id
	TagPrefix          = I("t-c") // letter | valhash | ~created_at | id
	CoordinatePrefix   = I("crd") // kind | pubkey | ident | ~created_at | id
	DeletedIdPrefix    = I("del") // id -> nil (tombstone)
	DeletedCoordPrefix = I("dcr") // kind | pubkey | ident -> created_at
	ExpirationPrefix   = I("exp") // expiration | id
	SeenOnPrefix       = I("sor") // id -> seen-on-relays record
)

// P wraps a prefix as a codec.I so it can lead an encoder list.
type P struct {
	val []byte
}

// NewPrefix makes a prefix field. With no argument it is a three byte
// placeholder for decoding.
func NewPrefix(prf ...I) (p *P) {
	if len(prf) > 0 {
		return &P{[]byte(prf[0])}
	}
	return &P{make([]byte, 3)}
}

// Bytes returns the prefix bytes.
func (p *P) Bytes() (b []byte) { return p.val }

func (p *P) MarshalWrite(w io.Writer) (err error) {
	_, err = w.Write(p.val)
	return
}

func (p *P) UnmarshalRead(r io.Reader) (err error) {
	if len(p.val) != 3 {
		p.val = make([]byte, 3)
	}
	_, err = io.ReadFull(r, p.val)
	return
}

// T is an ordered list of key fields. Nil fields are skipped when
// marshalling, which is how search prefixes are generated: supply the
// leading fields and leave the rest nil.
type T struct {
	Encs []codec.I
}

// New creates a key encoder list.
func New(encoders ...codec.I) (t *T) { return &T{encoders} }

// MarshalWrite writes all non-nil fields in order.
func (t *T) MarshalWrite(w io.Writer) (err error) {
	for _, e := range t.Encs {
		if e == nil || reflect.ValueOf(e).IsNil() {
			continue
		}
		if err = e.MarshalWrite(w); chk.E(err) {
			return
		}
	}
	return
}

// UnmarshalRead reads all fields in order.
func (t *T) UnmarshalRead(r io.Reader) (err error) {
	for _, e := range t.Encs {
		if err = e.UnmarshalRead(r); chk.E(err) {
			return
		}
	}
	return
}

// Event is the primary keyspace: the value is the binary event blob.
//
//	3 prefix | 32 id
func EventEnc(id *types.Id) *T {
	return New(NewPrefix(EventPrefix), id)
}
func EventDec(id *types.Id) *T { return New(NewPrefix(), id) }

// CreatedAt orders all events by time.
//
//	3 prefix | 8 ~created_at | 32 id
func CreatedAtEnc(ca *types.Rev64, id *types.Id) *T {
	return New(NewPrefix(CreatedAtPrefix), ca, id)
}
func CreatedAtDec(ca *types.Rev64, id *types.Id) *T {
	return New(NewPrefix(), ca, id)
}

// Pubkey orders an author's events by time.
//
//	3 prefix | 32 pubkey | 8 ~created_at | 32 id
func PubkeyEnc(p *types.Pub, ca *types.Rev64, id *types.Id) *T {
	return New(NewPrefix(PubkeyPrefix), p, ca, id)
}
func PubkeyDec(p *types.Pub, ca *types.Rev64, id *types.Id) *T {
	return New(NewPrefix(), p, ca, id)
}

// Kind orders one kind's events by time.
//
//	3 prefix | 2 kind | 8 ~created_at | 32 id
func KindEnc(ki *types.Uint16, ca *types.Rev64, id *types.Id) *T {
	return New(NewPrefix(KindPrefix), ki, ca, id)
}
func KindDec(ki *types.Uint16, ca *types.Rev64, id *types.Id) *T {
	return New(NewPrefix(), ki, ca, id)
}

// KindPubkey orders an author's events of one kind by time.
//
//	3 prefix | 32 pubkey | 2 kind | 8 ~created_at | 32 id
func KindPubkeyEnc(
	p *types.Pub, ki *types.Uint16, ca *types.Rev64, id *types.Id,
) *T {
	return New(NewPrefix(KindPubkeyPrefix), p, ki, ca, id)
}
func KindPubkeyDec(
	p *types.Pub, ki *types.Uint16, ca *types.Rev64, id *types.Id,
) *T {
	return New(NewPrefix(), p, ki, ca, id)
}

// Tag orders events bearing an indexable tag value by time.
//
//	3 prefix | 1 letter | 8 valhash | 8 ~created_at | 32 id
func TagEnc(
	l *types.Letter, v *types.ValHash, ca *types.Rev64, id *types.Id,
) *T {
	return New(NewPrefix(TagPrefix), l, v, ca, id)
}
func TagDec(
	l *types.Letter, v *types.ValHash, ca *types.Rev64, id *types.Id,
) *T {
	return New(NewPrefix(), l, v, ca, id)
}

// Coordinate orders the replaceable events at one coordinate by time.
//
//	3 prefix | 2 kind | 32 pubkey | varint ident | 8 ~created_at | 32 id
func CoordinateEnc(
	ki *types.Uint16, p *types.Pub, ident *types.Ident, ca *types.Rev64,
	id *types.Id,
) *T {
	return New(NewPrefix(CoordinatePrefix), ki, p, ident, ca, id)
}
func CoordinateDec(
	ki *types.Uint16, p *types.Pub, ident *types.Ident, ca *types.Rev64,
	id *types.Id,
) *T {
	return New(NewPrefix(), ki, p, ident, ca, id)
}

// DeletedId is the id tombstone keyspace.
//
//	3 prefix | 32 id
func DeletedIdEnc(id *types.Id) *T {
	return New(NewPrefix(DeletedIdPrefix), id)
}

// DeletedCoord is the coordinate tombstone keyspace; the value holds the
// big-endian deletion timestamp.
//
//	3 prefix | 2 kind | 32 pubkey | varint ident -> 8 created_at
func DeletedCoordEnc(
	ki *types.Uint16, p *types.Pub, ident *types.Ident,
) *T {
	return New(NewPrefix(DeletedCoordPrefix), ki, p, ident)
}

// Expiration orders events by their NIP-40 expiration time, ascending, for
// the sweep.
//
//	3 prefix | 8 expiration | 32 id
func ExpirationEnc(exp *types.Uint64, id *types.Id) *T {
	return New(NewPrefix(ExpirationPrefix), exp, id)
}
func ExpirationDec(exp *types.Uint64, id *types.Id) *T {
	return New(NewPrefix(), exp, id)
}

// SeenOn is the optional seen-on-relays keyspace; the value is a msgpack
// record of relay URLs.
//
//	3 prefix | 32 id
func SeenOnEnc(id *types.Id) *T {
	return New(NewPrefix(SeenOnPrefix), id)
}
