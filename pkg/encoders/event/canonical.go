package event

import (
	"bytes"

	"parley.dev/pkg/encoders/text"
)

// ToCanonical appends the canonical form of the event to dst:
//
//	[0,"<pubkey hex>",<created_at>,<kind>,<tags>,"<content>"]
//
// with no whitespace and the ECMA-404 minimal escape set. This byte form is
// the sole input to the sha256 that derives the event ID.
func (ev *E) ToCanonical(dst []byte) (b []byte) {
	dst = append(dst, "[0,\""...)
	dst = hexAppend(dst, ev.Pubkey)
	dst = append(dst, '"', ',')
	dst = ev.CreatedAt.Marshal(dst)
	dst = append(dst, ',')
	dst = ev.Kind.Marshal(dst)
	dst = append(dst, ',')
	dst = ev.Tags.Marshal(dst)
	dst = append(dst, ',')
	dst = text.AppendQuote(dst, ev.Content, text.NostrEscape)
	dst = append(dst, ']')
	b = dst
	return
}

// GetIDBytes computes the event ID: the sha256 of the canonical form.
func (ev *E) GetIDBytes() (id []byte) {
	return Hash(ev.ToCanonical(nil))
}

// CheckID reports whether the stored ID matches the canonical hash.
func (ev *E) CheckID() (ok bool) {
	return bytes.Equal(ev.ID, ev.GetIDBytes())
}
