package event

import (
	"io"

	"parley.dev/pkg/encoders/kind"
	"parley.dev/pkg/encoders/tag"
	"parley.dev/pkg/encoders/tags"
	"parley.dev/pkg/encoders/timestamp"
	"parley.dev/pkg/encoders/varint"
	"parley.dev/pkg/utils/chk"
)

// MarshalBinary writes the stored blob encoding of an event. The layout is
// length-prefixed so it round-trips the received event exactly:
//
//	[ 32 bytes ID ]
//	[ 32 bytes Pubkey ]
//	[ varint CreatedAt ]
//	[ varint Kind ]
//	[ varint tag count
//	  [ varint field count [ varint field length, field bytes ]... ]... ]
//	[ varint Content length, Content ]
//	[ 64 bytes Sig ]
func (ev *E) MarshalBinary(w io.Writer) {
	_, _ = w.Write(ev.ID)
	_, _ = w.Write(ev.Pubkey)
	varint.Encode(w, ev.CreatedAt.U64())
	varint.Encode(w, uint64(ev.Kind.K))
	varint.Encode(w, uint64(ev.Tags.Len()))
	for _, x := range ev.Tags.ToSliceOfTags() {
		varint.Encode(w, uint64(x.Len()))
		for _, y := range x.F {
			varint.Encode(w, uint64(len(y)))
			_, _ = w.Write(y)
		}
	}
	varint.Encode(w, uint64(len(ev.Content)))
	_, _ = w.Write(ev.Content)
	_, _ = w.Write(ev.Sig)
	return
}

// UnmarshalBinary reads the stored blob encoding of an event.
func (ev *E) UnmarshalBinary(r io.Reader) (err error) {
	ev.ID = make([]byte, 32)
	if _, err = io.ReadFull(r, ev.ID); chk.E(err) {
		return
	}
	ev.Pubkey = make([]byte, 32)
	if _, err = io.ReadFull(r, ev.Pubkey); chk.E(err) {
		return
	}
	var ca uint64
	if ca, err = varint.Decode(r); chk.E(err) {
		return
	}
	ev.CreatedAt = timestamp.FromUnix(int64(ca))
	var k uint64
	if k, err = varint.Decode(r); chk.E(err) {
		return
	}
	ev.Kind = kind.New(k)
	var nTags uint64
	if nTags, err = varint.Decode(r); chk.E(err) {
		return
	}
	ev.Tags = tags.NewWithCap(int(nTags))
	for range nTags {
		var nField uint64
		if nField, err = varint.Decode(r); chk.E(err) {
			return
		}
		fields := make([][]byte, 0, nField)
		for range nField {
			var lenField uint64
			if lenField, err = varint.Decode(r); chk.E(err) {
				return
			}
			field := make([]byte, lenField)
			if _, err = io.ReadFull(r, field); chk.E(err) {
				return
			}
			fields = append(fields, field)
		}
		ev.Tags.AppendTags(tag.FromBytesSlice(fields...))
	}
	var cLen uint64
	if cLen, err = varint.Decode(r); chk.E(err) {
		return
	}
	ev.Content = make([]byte, cLen)
	if _, err = io.ReadFull(r, ev.Content); chk.E(err) {
		return
	}
	ev.Sig = make([]byte, 64)
	if _, err = io.ReadFull(r, ev.Sig); chk.E(err) {
		return
	}
	return
}
