// Package types holds the fixed-width field types that compose index keys.
// Each implements codec.I so keys.T can concatenate them; byte order is
// chosen so lexicographic order equals semantic order.
package types

import (
	"encoding/binary"
	"io"

	"github.com/minio/sha256-simd"

	"parley.dev/pkg/encoders/varint"
	"parley.dev/pkg/utils/errorf"
)

// Id is the full 32 byte event id.
type Id struct {
	val []byte
}

// FromId loads 32 id bytes.
func (i *Id) FromId(b []byte) (err error) {
	if len(b) != 32 {
		return errorf.E("id must be 32 bytes, got %d", len(b))
	}
	i.val = b
	return
}

// Bytes returns the id bytes.
func (i *Id) Bytes() []byte { return i.val }

func (i *Id) MarshalWrite(w io.Writer) (err error) {
	_, err = w.Write(i.val)
	return
}

func (i *Id) UnmarshalRead(r io.Reader) (err error) {
	if len(i.val) != 32 {
		i.val = make([]byte, 32)
	}
	_, err = io.ReadFull(r, i.val)
	return
}

// Pub is the full 32 byte x-only pubkey.
type Pub struct {
	val []byte
}

// FromPubkey loads 32 pubkey bytes.
func (p *Pub) FromPubkey(b []byte) (err error) {
	if len(b) != 32 {
		return errorf.E("pubkey must be 32 bytes, got %d", len(b))
	}
	p.val = b
	return
}

// Bytes returns the pubkey bytes.
func (p *Pub) Bytes() []byte { return p.val }

func (p *Pub) MarshalWrite(w io.Writer) (err error) {
	_, err = w.Write(p.val)
	return
}

func (p *Pub) UnmarshalRead(r io.Reader) (err error) {
	if len(p.val) != 32 {
		p.val = make([]byte, 32)
	}
	_, err = io.ReadFull(r, p.val)
	return
}

// Uint16 is a big-endian event kind.
type Uint16 struct {
	V uint16
}

// Set stores the value.
func (u *Uint16) Set(v uint16) { u.V = v }

// Get returns the value.
func (u *Uint16) Get() uint16 { return u.V }

func (u *Uint16) MarshalWrite(w io.Writer) (err error) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], u.V)
	_, err = w.Write(b[:])
	return
}

func (u *Uint16) UnmarshalRead(r io.Reader) (err error) {
	var b [2]byte
	if _, err = io.ReadFull(r, b[:]); err != nil {
		return
	}
	u.V = binary.BigEndian.Uint16(b[:])
	return
}

// Uint64 is a big-endian 8 byte unsigned, ascending order.
type Uint64 struct {
	V uint64
}

// Set stores the value.
func (u *Uint64) Set(v uint64) { u.V = v }

// Get returns the value.
func (u *Uint64) Get() uint64 { return u.V }

func (u *Uint64) MarshalWrite(w io.Writer) (err error) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], u.V)
	_, err = w.Write(b[:])
	return
}

func (u *Uint64) UnmarshalRead(r io.Reader) (err error) {
	var b [8]byte
	if _, err = io.ReadFull(r, b[:]); err != nil {
		return
	}
	u.V = binary.BigEndian.Uint64(b[:])
	return
}

// Rev64 is a big-endian 8 byte unsigned stored bitwise complemented, so
// lexicographic iteration runs newest first. Set and Get speak in plain
// values; the complement exists only on the wire.
type Rev64 struct {
	V uint64
}

// Set stores the plain value.
func (u *Rev64) Set(v uint64) { u.V = v }

// Get returns the plain value.
func (u *Rev64) Get() uint64 { return u.V }

func (u *Rev64) MarshalWrite(w io.Writer) (err error) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], ^u.V)
	_, err = w.Write(b[:])
	return
}

func (u *Rev64) UnmarshalRead(r io.Reader) (err error) {
	var b [8]byte
	if _, err = io.ReadFull(r, b[:]); err != nil {
		return
	}
	u.V = ^binary.BigEndian.Uint64(b[:])
	return
}

// Letter is a single ascii letter, the key of an indexable tag.
type Letter struct {
	L byte
}

// Set stores the letter.
func (l *Letter) Set(b byte) { l.L = b }

func (l *Letter) MarshalWrite(w io.Writer) (err error) {
	_, err = w.Write([]byte{l.L})
	return
}

func (l *Letter) UnmarshalRead(r io.Reader) (err error) {
	var b [1]byte
	if _, err = io.ReadFull(r, b[:]); err != nil {
		return
	}
	l.L = b[0]
	return
}

// ValHash is the truncated 8 byte sha256 of a tag value, keeping tag index
// keys fixed width regardless of value size.
type ValHash struct {
	val []byte
}

// FromValue hashes a tag value into the field.
func (v *ValHash) FromValue(b []byte) {
	h := sha256.Sum256(b)
	v.val = h[:8]
}

// Bytes returns the hash bytes.
func (v *ValHash) Bytes() []byte { return v.val }

func (v *ValHash) MarshalWrite(w io.Writer) (err error) {
	_, err = w.Write(v.val)
	return
}

func (v *ValHash) UnmarshalRead(r io.Reader) (err error) {
	if len(v.val) != 8 {
		v.val = make([]byte, 8)
	}
	_, err = io.ReadFull(r, v.val)
	return
}

// Ident is a varint length-prefixed identifier, the d-tag value of a
// coordinate. Empty is valid and distinct from absent.
type Ident struct {
	val []byte
}

// FromIdent loads identifier bytes.
func (i *Ident) FromIdent(b []byte) { i.val = b }

// Bytes returns the identifier bytes.
func (i *Ident) Bytes() []byte { return i.val }

func (i *Ident) MarshalWrite(w io.Writer) (err error) {
	varint.Encode(w, uint64(len(i.val)))
	_, err = w.Write(i.val)
	return
}

func (i *Ident) UnmarshalRead(r io.Reader) (err error) {
	var l uint64
	if l, err = varint.Decode(r); err != nil {
		return
	}
	i.val = make([]byte, l)
	_, err = io.ReadFull(r, i.val)
	return
}
