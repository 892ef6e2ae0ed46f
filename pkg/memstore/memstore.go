// Package memstore is the in-memory implementation of the event store
// interface, sharing the badger backend's semantics exactly: the same
// persistence policy, replaceable rules and tombstone behaviour, over
// process-local maps. Useful for tests and ephemeral deployments.
package memstore

import (
	"bytes"
	"sort"
	"sync"

	"parley.dev/pkg/encoders/event"
	"parley.dev/pkg/encoders/filter"
	"parley.dev/pkg/encoders/filters"
	"parley.dev/pkg/encoders/tag"
	"parley.dev/pkg/encoders/tag/atag"
	"parley.dev/pkg/encoders/timestamp"
	"parley.dev/pkg/interfaces/store"
	"parley.dev/pkg/utils/context"
)

// D is the in-memory event store. A single RWMutex stands in for the
// single-writer/many-reader transaction model of the disk backend.
type D struct {
	mx          sync.RWMutex
	events      map[string]*event.E
	deletedIds  map[string]struct{}
	deletedCrds map[string]uint64
}

var _ store.I = (*D)(nil)

// New creates an empty in-memory store.
func New() *D {
	return &D{
		events:      make(map[string]*event.E),
		deletedIds:  make(map[string]struct{}),
		deletedCrds: make(map[string]uint64),
	}
}

// Path returns the empty string; there is no backing directory.
func (d *D) Path() string { return "" }

// Close is a no-op.
func (d *D) Close() (err error) { return }

// Sync is a no-op.
func (d *D) Sync() (err error) { return }

// Wipe drops everything.
func (d *D) Wipe() (err error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.events = make(map[string]*event.E)
	d.deletedIds = make(map[string]struct{})
	d.deletedCrds = make(map[string]uint64)
	return
}

func coordKey(ki uint16, pubkey, ident []byte) string {
	b := make([]byte, 0, 2+32+len(ident))
	b = append(b, byte(ki>>8), byte(ki))
	b = append(b, pubkey...)
	b = append(b, ident...)
	return string(b)
}

func eventIdent(ev *event.E) []byte {
	if ev.Kind.IsParameterizedReplaceable() {
		return ev.Tags.GetD()
	}
	return nil
}

// SaveEvent applies the same persistence policy as the disk backend.
func (d *D) SaveEvent(c context.T, ev *event.E) (
	res store.SaveResult, err error,
) {
	if ev.Kind.IsEphemeral() {
		res = store.SaveResult{
			Status: store.Rejected, Reason: store.ReasonEphemeral,
		}
		return
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	if _, ok := d.events[string(ev.ID)]; ok {
		res = store.SaveResult{Status: store.Duplicate}
		return
	}
	if _, ok := d.deletedIds[string(ev.ID)]; ok {
		res = store.SaveResult{
			Status: store.Rejected, Reason: store.ReasonDeleted,
		}
		return
	}
	if ev.Kind.IsReplaceable() || ev.Kind.IsParameterizedReplaceable() {
		var ident []byte
		checkTombstone := true
		if ev.Kind.IsParameterizedReplaceable() {
			if dtag := ev.Tags.GetFirst(tag.New("d")); dtag != nil {
				ident = dtag.Value()
			} else {
				checkTombstone = false
			}
		}
		ck := coordKey(ev.Kind.K, ev.Pubkey, ident)
		if checkTombstone {
			if ts, ok := d.deletedCrds[ck]; ok &&
				ev.CreatedAt.U64() <= ts {
				res = store.SaveResult{
					Status: store.Rejected, Reason: store.ReasonDeleted,
				}
				return
			}
		}
		var atCoord []*event.E
		for _, old := range d.events {
			if old.Kind.K == ev.Kind.K &&
				bytes.Equal(old.Pubkey, ev.Pubkey) &&
				bytes.Equal(eventIdent(old), ident) {
				atCoord = append(atCoord, old)
			}
		}
		for _, old := range atCoord {
			if old.CreatedAt.U64() > ev.CreatedAt.U64() {
				res = store.SaveResult{
					Status: store.Rejected, Reason: store.ReasonReplaced,
				}
				return
			}
		}
		for _, old := range atCoord {
			delete(d.events, string(old.ID))
		}
	}
	d.events[string(ev.ID)] = ev
	if ev.Kind.IsDeletion() {
		if !d.processDeletion(ev) {
			delete(d.events, string(ev.ID))
			res = store.SaveResult{
				Status: store.Rejected,
				Reason: store.ReasonInvalidDeletion,
			}
			return
		}
	}
	res = store.SaveResult{Status: store.Stored}
	return
}

// processDeletion mirrors the disk backend; returns false when the deletion
// references another author's event, in which case the caller rolls back.
func (d *D) processDeletion(ev *event.E) (ok bool) {
	// validate before mutating so rejection leaves no trace
	var ids [][]byte
	for _, tg := range ev.Tags.GetAll([]byte("e")) {
		idv := decodeIdValue(tg.Value())
		if idv == nil {
			continue
		}
		if target, exists := d.events[string(idv)]; exists &&
			!bytes.Equal(target.Pubkey, ev.Pubkey) {
			return false
		}
		ids = append(ids, idv)
	}
	for _, idv := range ids {
		d.deletedIds[string(idv)] = struct{}{}
		delete(d.events, string(idv))
	}
	for _, tg := range ev.Tags.GetAll([]byte("a")) {
		a, err := atag.Parse(tg.Value())
		if err != nil || !bytes.Equal(a.Pubkey, ev.Pubkey) {
			continue
		}
		ck := coordKey(a.Kind.K, a.Pubkey, a.DTag)
		if d.deletedCrds[ck] < ev.CreatedAt.U64() {
			d.deletedCrds[ck] = ev.CreatedAt.U64()
		}
		for _, old := range d.events {
			if old.Kind.K == a.Kind.K &&
				bytes.Equal(old.Pubkey, a.Pubkey) &&
				bytes.Equal(eventIdent(old), a.DTag) &&
				old.CreatedAt.U64() <= ev.CreatedAt.U64() {
				delete(d.events, string(old.ID))
			}
		}
	}
	return true
}

func decodeIdValue(v []byte) []byte {
	if len(v) == 32 {
		return v
	}
	if len(v) != 64 {
		return nil
	}
	out := make([]byte, 32)
	for i := 0; i < 32; i++ {
		hi := unhex(v[i*2])
		lo := unhex(v[i*2+1])
		if hi == 0xff || lo == 0xff {
			return nil
		}
		out[i] = hi<<4 | lo
	}
	return out
}

func unhex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 0xff
}

// QueryEvents scans the event set against each filter, newest first,
// deduplicated, per-filter limits honored.
func (d *D) QueryEvents(c context.T, ff *filters.T) (
	evs event.S, err error,
) {
	d.mx.RLock()
	defer d.mx.RUnlock()
	seen := make(map[string]struct{})
	for _, f := range ff.F {
		var matched event.S
		for _, ev := range d.events {
			if f.Matches(ev) {
				matched = append(matched, ev)
			}
		}
		sort.Sort(matched)
		if f.Limit != nil && len(matched) > int(*f.Limit) {
			matched = matched[:*f.Limit]
		}
		for _, ev := range matched {
			if _, ok := seen[string(ev.ID)]; ok {
				continue
			}
			seen[string(ev.ID)] = struct{}{}
			evs = append(evs, ev)
		}
	}
	sort.Sort(evs)
	return
}

// CountEvents counts matches without the limit truncation.
func (d *D) CountEvents(c context.T, ff *filters.T) (count int, err error) {
	d.mx.RLock()
	defer d.mx.RUnlock()
	seen := make(map[string]struct{})
	for _, f := range ff.F {
		for _, ev := range d.events {
			if f.Matches(ev) {
				seen[string(ev.ID)] = struct{}{}
			}
		}
	}
	count = len(seen)
	return
}

// HasEvent probes the event set.
func (d *D) HasEvent(c context.T, id []byte) (has bool, err error) {
	d.mx.RLock()
	defer d.mx.RUnlock()
	_, has = d.events[string(id)]
	return
}

// IsDeleted reports whether the id carries a tombstone.
func (d *D) IsDeleted(c context.T, id []byte) (deleted bool, err error) {
	d.mx.RLock()
	defer d.mx.RUnlock()
	_, deleted = d.deletedIds[string(id)]
	return
}

// WhenCoordinateDeleted returns the coordinate tombstone timestamp.
func (d *D) WhenCoordinateDeleted(
	c context.T, coord *store.Coordinate,
) (ts *timestamp.T, err error) {
	d.mx.RLock()
	defer d.mx.RUnlock()
	if v, ok := d.deletedCrds[coordKey(
		coord.Kind, coord.Pubkey, coord.Identifier,
	)]; ok {
		ts = timestamp.FromUnix(int64(v))
	}
	return
}

// NegentropyItems returns matching (id, created_at) pairs ascending.
func (d *D) NegentropyItems(c context.T, f *filter.F) (
	items []store.Item, err error,
) {
	d.mx.RLock()
	defer d.mx.RUnlock()
	for _, ev := range d.events {
		if f.Matches(ev) {
			items = append(items, store.Item{
				ID: ev.ID, CreatedAt: ev.CreatedAt.I64(),
			})
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt != items[j].CreatedAt {
			return items[i].CreatedAt < items[j].CreatedAt
		}
		return bytes.Compare(items[i].ID, items[j].ID) < 0
	})
	return
}

// DeleteEvents removes matching events without tombstones.
func (d *D) DeleteEvents(c context.T, f *filter.F) (n int, err error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	for id, ev := range d.events {
		if f.Matches(ev) {
			delete(d.events, id)
			n++
		}
	}
	return
}

// EventSeen is not supported by the memory backend.
func (d *D) EventSeen(c context.T, id []byte, relayURL string) (err error) {
	return store.ErrNotSupported
}

// SeenOn is not supported by the memory backend.
func (d *D) SeenOn(c context.T, id []byte) (urls []string, err error) {
	err = store.ErrNotSupported
	return
}
