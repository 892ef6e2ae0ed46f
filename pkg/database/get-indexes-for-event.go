package database

import (
	"bytes"

	"parley.dev/pkg/database/indexes"
	"parley.dev/pkg/database/indexes/types"
	"parley.dev/pkg/encoders/event"
	"parley.dev/pkg/utils/chk"
)

// GetIndexesForEvent generates all secondary index keys for an event: the
// time, author, kind, author+kind and tag orderings, the coordinate index
// for replaceable kinds, and the expiration entry when a NIP-40 tag is
// present. The primary evt key is not included; SaveEvent writes that with
// the blob value.
func GetIndexesForEvent(ev *event.E) (keys [][]byte, err error) {
	id := new(types.Id)
	if err = id.FromId(ev.ID); chk.E(err) {
		return
	}
	pk := new(types.Pub)
	if err = pk.FromPubkey(ev.Pubkey); chk.E(err) {
		return
	}
	ca := new(types.Rev64)
	ca.Set(ev.CreatedAt.U64())
	ki := new(types.Uint16)
	ki.Set(ev.Kind.K)

	add := func(t *indexes.T) (err error) {
		buf := new(bytes.Buffer)
		if err = t.MarshalWrite(buf); chk.E(err) {
			return
		}
		keys = append(keys, buf.Bytes())
		return
	}

	if err = add(indexes.CreatedAtEnc(ca, id)); err != nil {
		return
	}
	if err = add(indexes.PubkeyEnc(pk, ca, id)); err != nil {
		return
	}
	if err = add(indexes.KindEnc(ki, ca, id)); err != nil {
		return
	}
	if err = add(indexes.KindPubkeyEnc(pk, ki, ca, id)); err != nil {
		return
	}
	for _, tg := range ev.Tags.ToSliceOfTags() {
		if !tg.IsIndexable() || tg.Len() < 2 {
			continue
		}
		l := new(types.Letter)
		l.Set(tg.Key()[0])
		v := new(types.ValHash)
		v.FromValue(tg.Value())
		if err = add(indexes.TagEnc(l, v, ca, id)); err != nil {
			return
		}
	}
	if ev.Kind.IsReplaceable() || ev.Kind.IsParameterizedReplaceable() {
		ident := new(types.Ident)
		if ev.Kind.IsParameterizedReplaceable() {
			ident.FromIdent(ev.Tags.GetD())
		}
		if err = add(indexes.CoordinateEnc(ki, pk, ident, ca, id)); err != nil {
			return
		}
	}
	if exp := ev.Expiration(); exp != nil {
		e := new(types.Uint64)
		e.Set(exp.U64())
		if err = add(indexes.ExpirationEnc(e, id)); err != nil {
			return
		}
	}
	return
}
