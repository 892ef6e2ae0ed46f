package database

import (
	"bytes"

	"parley.dev/pkg/database/indexes"
	"parley.dev/pkg/database/indexes/types"
	"parley.dev/pkg/encoders/filter"
	"parley.dev/pkg/utils/chk"
)

// Range is one prefix scan over a keyspace. Keys under Prefix end with
// `~created_at | id`; Start seeks to the newest key the filter's until
// bound allows and iteration stops when created_at falls below Since.
type Range struct {
	Prefix []byte
	Start  []byte
	Since  uint64
}

// Plan is the index access plan for one filter: either direct id lookups or
// a set of ranges over the narrowest applicable keyspace.
type Plan struct {
	IdLookups [][]byte
	Ranges    []Range
}

func encodePrefix(t *indexes.T) (b []byte, err error) {
	buf := new(bytes.Buffer)
	if err = t.MarshalWrite(buf); chk.E(err) {
		return
	}
	b = buf.Bytes()
	return
}

func withUntil(prefix []byte, f *filter.F) (r Range) {
	r.Prefix = prefix
	r.Start = prefix
	if f.Until != nil && f.Until.U64() > 0 {
		ca := new(types.Rev64)
		ca.Set(f.Until.U64())
		buf := new(bytes.Buffer)
		buf.Write(prefix)
		_ = ca.MarshalWrite(buf)
		r.Start = buf.Bytes()
	}
	if f.Since != nil {
		r.Since = f.Since.U64()
	}
	return
}

// GetIndexesFromFilter selects the narrowest index for a filter and derives
// the scan ranges: ids beat author+kind, which beats author, tag, kind and
// finally the bare time ordering.
func GetIndexesFromFilter(f *filter.F) (plan *Plan, err error) {
	plan = &Plan{}
	switch {
	case f.IDs.Len() > 0:
		for _, idb := range f.IDs.F {
			id := new(types.Id)
			if err = id.FromId(idb); err != nil {
				// skip malformed ids rather than failing the whole query
				err = nil
				continue
			}
			var k []byte
			if k, err = encodePrefix(indexes.EventEnc(id)); chk.E(err) {
				return
			}
			plan.IdLookups = append(plan.IdLookups, k)
		}
	case f.Authors.Len() > 0 && f.Kinds.Len() > 0:
		for _, pkb := range f.Authors.F {
			pk := new(types.Pub)
			if err = pk.FromPubkey(pkb); err != nil {
				err = nil
				continue
			}
			for _, kk := range f.Kinds.K {
				ki := new(types.Uint16)
				ki.Set(kk.K)
				var p []byte
				if p, err = encodePrefix(
					indexes.KindPubkeyEnc(pk, ki, nil, nil),
				); chk.E(err) {
					return
				}
				plan.Ranges = append(plan.Ranges, withUntil(p, f))
			}
		}
	case f.Authors.Len() > 0:
		for _, pkb := range f.Authors.F {
			pk := new(types.Pub)
			if err = pk.FromPubkey(pkb); err != nil {
				err = nil
				continue
			}
			var p []byte
			if p, err = encodePrefix(
				indexes.PubkeyEnc(pk, nil, nil),
			); chk.E(err) {
				return
			}
			plan.Ranges = append(plan.Ranges, withUntil(p, f))
		}
	case tagRangeable(f):
		for _, tg := range f.Tags.ToSliceOfTags() {
			key := tg.Key()
			if len(key) != 2 || key[0] != '#' {
				continue
			}
			for _, val := range tg.F[1:] {
				l := new(types.Letter)
				l.Set(key[1])
				v := new(types.ValHash)
				v.FromValue(val)
				var p []byte
				if p, err = encodePrefix(
					indexes.TagEnc(l, v, nil, nil),
				); chk.E(err) {
					return
				}
				plan.Ranges = append(plan.Ranges, withUntil(p, f))
			}
			// one tag key's ranges suffice; the rest are verified by the
			// post-filter match
			break
		}
	case f.Kinds.Len() > 0:
		for _, kk := range f.Kinds.K {
			ki := new(types.Uint16)
			ki.Set(kk.K)
			var p []byte
			if p, err = encodePrefix(
				indexes.KindEnc(ki, nil, nil),
			); chk.E(err) {
				return
			}
			plan.Ranges = append(plan.Ranges, withUntil(p, f))
		}
	default:
		var p []byte
		if p, err = encodePrefix(
			indexes.CreatedAtEnc(nil, nil),
		); chk.E(err) {
			return
		}
		plan.Ranges = append(plan.Ranges, withUntil(p, f))
	}
	return
}

func tagRangeable(f *filter.F) bool {
	for _, tg := range f.Tags.ToSliceOfTags() {
		key := tg.Key()
		if len(key) == 2 && key[0] == '#' && tg.Len() > 1 {
			return true
		}
	}
	return false
}
