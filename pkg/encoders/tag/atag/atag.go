// Package atag parses and renders the `a` tag coordinate form
// `<kind>:<pubkey hex>:<identifier>` that addresses replaceable events.
package atag

import (
	"bytes"

	"parley.dev/pkg/encoders/hex"
	"parley.dev/pkg/encoders/ints"
	"parley.dev/pkg/encoders/kind"
	"parley.dev/pkg/utils/errorf"
)

// T is a parsed coordinate.
type T struct {
	Kind   *kind.T
	Pubkey []byte
	DTag   []byte
}

// Marshal appends the `kind:pubkey:identifier` form to dst.
func (a *T) Marshal(dst []byte) (b []byte) {
	dst = a.Kind.Marshal(dst)
	dst = append(dst, ':')
	dst = hex.EncAppend(dst, a.Pubkey)
	dst = append(dst, ':')
	dst = append(dst, a.DTag...)
	b = dst
	return
}

// Parse decodes a coordinate from its tag value form.
func Parse(b []byte) (a *T, err error) {
	parts := bytes.SplitN(b, []byte{':'}, 3)
	if len(parts) < 2 {
		err = errorf.D("invalid coordinate '%s'", b)
		return
	}
	a = &T{Kind: kind.New(0)}
	n := ints.New(0)
	if _, err = n.Unmarshal(parts[0]); err != nil {
		return
	}
	a.Kind.K = n.Uint16()
	if len(parts[1]) != 64 {
		err = errorf.D("invalid coordinate pubkey '%s'", parts[1])
		return
	}
	if a.Pubkey, err = hex.Dec(string(parts[1])); err != nil {
		return
	}
	if len(parts) == 3 {
		a.DTag = parts[2]
	}
	return
}
