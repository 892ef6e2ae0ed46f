// Package filter is the codec for nostr filters (queries) and the engine
// that matches them against events. A canonical field ordering gives
// identical JSON for the same set of constraints, enabling filter
// fingerprinting.
package filter

import (
	"bytes"
	"encoding/binary"
	"sort"

	"parley.dev/pkg/encoders/event"
	"parley.dev/pkg/encoders/eventid"
	"parley.dev/pkg/encoders/ints"
	"parley.dev/pkg/encoders/kinds"
	"parley.dev/pkg/encoders/tag"
	"parley.dev/pkg/encoders/tags"
	"parley.dev/pkg/encoders/text"
	"parley.dev/pkg/encoders/timestamp"
	"parley.dev/pkg/utils/errorf"
)

// F is the query form for requesting events. A missing field is no
// constraint; within a field membership is OR, across fields AND. Tags holds
// the generic `#x` constraints: each tag's first field is the `#x` key, the
// rest are the accepted values.
type F struct {
	IDs     *tag.T
	Kinds   *kinds.T
	Authors *tag.T
	Tags    *tags.T
	Since   *timestamp.T
	Until   *timestamp.T
	Limit   *uint
}

// New creates an empty filter ready for most uses.
func New() (f *F) {
	return &F{
		IDs:     tag.FromBytesSlice(),
		Kinds:   kinds.NewWithCap(0),
		Authors: tag.FromBytesSlice(),
		Tags:    tags.New(),
	}
}

// Clone deep-copies a filter.
func (f *F) Clone() (clone *F) {
	clone = &F{
		IDs:     f.IDs.Clone(),
		Kinds:   kinds.New(f.Kinds.K...),
		Authors: f.Authors.Clone(),
		Tags:    f.Tags.Clone(),
	}
	if f.Since != nil {
		clone.Since = timestamp.FromUnix(f.Since.I64())
	}
	if f.Until != nil {
		clone.Until = timestamp.FromUnix(f.Until.I64())
	}
	if f.Limit != nil {
		lim := *f.Limit
		clone.Limit = &lim
	}
	return
}

// Matches determines whether an event satisfies every constraint present in
// the filter.
func (f *F) Matches(ev *event.E) bool {
	if ev == nil {
		return false
	}
	if f.IDs.Len() > 0 && !containsBytes(f.IDs, ev.ID) {
		return false
	}
	if f.Kinds.Len() > 0 && !f.Kinds.Contains(ev.Kind) {
		return false
	}
	if f.Authors.Len() > 0 && !containsBytes(f.Authors, ev.Pubkey) {
		return false
	}
	for _, tg := range f.Tags.ToSliceOfTags() {
		key := tg.Key()
		if len(key) != 2 || key[0] != '#' {
			continue
		}
		if !ev.Tags.ContainsAny(key[1:], tg.F[1:]) {
			return false
		}
	}
	if f.Since != nil && f.Since.I64() != 0 &&
		ev.CreatedAt.I64() < f.Since.I64() {
		return false
	}
	if f.Until != nil && f.Until.I64() != 0 &&
		ev.CreatedAt.I64() > f.Until.I64() {
		return false
	}
	return true
}

// MatchesIgnoringTimestamp is Matches without the since/until constraints,
// used for live subscription events received after EOSE.
func (f *F) MatchesIgnoringTimestamp(ev *event.E) bool {
	if ev == nil {
		return false
	}
	if f.IDs.Len() > 0 && !containsBytes(f.IDs, ev.ID) {
		return false
	}
	if f.Kinds.Len() > 0 && !f.Kinds.Contains(ev.Kind) {
		return false
	}
	if f.Authors.Len() > 0 && !containsBytes(f.Authors, ev.Pubkey) {
		return false
	}
	for _, tg := range f.Tags.ToSliceOfTags() {
		key := tg.Key()
		if len(key) != 2 || key[0] != '#' {
			continue
		}
		if !ev.Tags.ContainsAny(key[1:], tg.F[1:]) {
			return false
		}
	}
	return true
}

func containsBytes(t *tag.T, b []byte) bool {
	for _, f := range t.F {
		if bytes.Equal(f, b) {
			return true
		}
	}
	return false
}

var (
	jIDs     = []byte("ids")
	jKinds   = []byte("kinds")
	jAuthors = []byte("authors")
	jSince   = []byte("since")
	jUntil   = []byte("until")
	jLimit   = []byte("limit")
)

// Marshal appends the canonical minified JSON form of the filter to dst.
func (f *F) Marshal(dst []byte) (b []byte) {
	f.Sort()
	var first bool
	comma := func() {
		if first {
			dst = append(dst, ',')
		} else {
			first = true
		}
	}
	dst = append(dst, '{')
	if f.IDs.Len() > 0 {
		first = true
		dst = text.JSONKey(dst, jIDs)
		dst = text.MarshalHexArray(dst, f.IDs.F)
	}
	if f.Kinds.Len() > 0 {
		comma()
		dst = text.JSONKey(dst, jKinds)
		dst = f.Kinds.Marshal(dst)
	}
	if f.Authors.Len() > 0 {
		comma()
		dst = text.JSONKey(dst, jAuthors)
		dst = text.MarshalHexArray(dst, f.Authors.F)
	}
	for _, tg := range f.Tags.ToSliceOfTags() {
		key := tg.Key()
		if len(key) != 2 || key[0] != '#' || tg.Len() < 2 {
			continue
		}
		comma()
		dst = append(dst, '"', key[0], key[1], '"', ':', '[')
		for i, v := range tg.F[1:] {
			dst = text.AppendQuote(dst, v, text.NostrEscape)
			if i < tg.Len()-2 {
				dst = append(dst, ',')
			}
		}
		dst = append(dst, ']')
	}
	if f.Since != nil && f.Since.U64() > 0 {
		comma()
		dst = text.JSONKey(dst, jSince)
		dst = f.Since.Marshal(dst)
	}
	if f.Until != nil && f.Until.U64() > 0 {
		comma()
		dst = text.JSONKey(dst, jUntil)
		dst = f.Until.Marshal(dst)
	}
	if f.Limit != nil {
		comma()
		dst = text.JSONKey(dst, jLimit)
		dst = ints.New(*f.Limit).Marshal(dst)
	}
	dst = append(dst, '}')
	b = dst
	return
}

// Serialize renders the filter as minified JSON.
func (f *F) Serialize() (b []byte) { return f.Marshal(nil) }

// Unmarshal reads a filter object off the front of b and returns the
// remainder.
func (f *F) Unmarshal(b []byte) (r []byte, err error) {
	if f.Tags == nil {
		f.Tags = tags.New()
	}
	r = b
	var key []byte
	for len(r) > 0 && r[0] != '{' {
		r = r[1:]
	}
	if len(r) == 0 {
		err = errorf.D("no object in '%s'", b)
		return
	}
	r = r[1:]
	for len(r) > 0 {
		switch r[0] {
		case '}':
			r = r[1:]
			return
		case '"':
			key = key[:0]
			r = r[1:]
			for len(r) > 0 && r[0] != '"' {
				key = append(key, r[0])
				r = r[1:]
			}
			if len(r) == 0 {
				err = errorf.D("unterminated key in '%s'", b)
				return
			}
			r = r[1:]
			for len(r) > 0 && r[0] != ':' {
				r = r[1:]
			}
			if len(r) > 0 {
				r = r[1:]
			}
			if r, err = f.unmarshalValue(key, r); err != nil {
				return
			}
		default:
			r = r[1:]
		}
	}
	err = errorf.D("unterminated filter in '%s'", b)
	return
}

func (f *F) unmarshalValue(key, b []byte) (r []byte, err error) {
	r = b
	switch {
	case len(key) == 2 && key[0] == '#':
		var vals [][]byte
		if vals, r, err = text.UnmarshalStringArray(r); err != nil {
			return
		}
		k := append([]byte{}, key...)
		f.Tags.AppendTags(tag.FromBytesSlice(append([][]byte{k}, vals...)...))
	case bytes.Equal(key, jIDs):
		var vals [][]byte
		if vals, r, err = text.UnmarshalHexArray(r, eventid.Len); err != nil {
			return
		}
		f.IDs = tag.FromBytesSlice(vals...)
	case bytes.Equal(key, jAuthors):
		var vals [][]byte
		if vals, r, err = text.UnmarshalHexArray(r, 32); err != nil {
			return
		}
		f.Authors = tag.FromBytesSlice(vals...)
	case bytes.Equal(key, jKinds):
		f.Kinds = kinds.NewWithCap(0)
		if r, err = f.Kinds.Unmarshal(r); err != nil {
			return
		}
	case bytes.Equal(key, jSince):
		f.Since = timestamp.New()
		if r, err = f.Since.Unmarshal(r); err != nil {
			return
		}
	case bytes.Equal(key, jUntil):
		f.Until = timestamp.New()
		if r, err = f.Until.Unmarshal(r); err != nil {
			return
		}
	case bytes.Equal(key, jLimit):
		n := ints.New(0)
		if r, err = n.Unmarshal(r); err != nil {
			return
		}
		lim := uint(n.Uint64())
		f.Limit = &lim
	default:
		err = errorf.D("unknown filter key '%s'", key)
	}
	return
}

// Sort orders the fields of the filter so that the same constraint set
// always marshals identically.
func (f *F) Sort() {
	if f.IDs != nil {
		sort.Slice(f.IDs.F, func(i, j int) bool {
			return bytes.Compare(f.IDs.F[i], f.IDs.F[j]) < 0
		})
	}
	if f.Authors != nil {
		sort.Slice(f.Authors.F, func(i, j int) bool {
			return bytes.Compare(f.Authors.F[i], f.Authors.F[j]) < 0
		})
	}
	if f.Kinds != nil {
		f.Kinds.Sort()
	}
	if f.Tags != nil {
		sort.Slice(f.Tags.T, func(i, j int) bool {
			return bytes.Compare(f.Tags.T[i].Key(), f.Tags.T[j].Key()) < 0
		})
	}
}

// Fingerprint returns a truncated sha256 of the canonical form with the
// Limit field removed, identifying the constraint set.
func (f *F) Fingerprint() (fp uint64) {
	lim := f.Limit
	f.Limit = nil
	h := event.Hash(f.Marshal(nil))
	f.Limit = lim
	return binary.LittleEndian.Uint64(h)
}

// Equal reports whether two filters express the same constraint set.
func (f *F) Equal(other *F) bool {
	return bytes.Equal(f.Marshal(nil), other.Marshal(nil))
}
