package database

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"parley.dev/pkg/encoders/event"
	"parley.dev/pkg/encoders/filter"
	"parley.dev/pkg/encoders/filters"
	"parley.dev/pkg/utils/chk"
	"parley.dev/pkg/utils/context"
)

// QueryEvents runs each filter against its index plan and combines the
// results newest first, deduplicated by id, ties broken ascending by id.
// Each filter's limit applies to that filter's walk; the combined set is
// not re-truncated.
func (d *D) QueryEvents(c context.T, ff *filters.T) (
	evs event.S, err error,
) {
	seen := make(map[string]struct{})
	for _, f := range ff.F {
		var matched event.S
		if matched, err = d.queryFilter(c, f); chk.E(err) {
			return
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

// queryFilter walks one filter's chosen index newest first, materializes
// candidate events, verifies the residual predicates the index does not
// capture, and stops at the filter's limit.
func (d *D) queryFilter(c context.T, f *filter.F) (
	evs event.S, err error,
) {
	var plan *Plan
	if plan, err = GetIndexesFromFilter(f); chk.E(err) {
		return
	}
	limit := 0
	if f.Limit != nil {
		limit = int(*f.Limit)
	}
	err = d.View(func(txn *badger.Txn) (err error) {
		if len(plan.IdLookups) > 0 {
			for _, key := range plan.IdLookups {
				var ev *event.E
				if ev, err = fetchEventInTxn(
					txn, key[3:],
				); chk.E(err) {
					return
				}
				if ev == nil || !f.Matches(ev) {
					continue
				}
				evs = append(evs, ev)
			}
			sort.Sort(evs)
			if limit > 0 && len(evs) > limit {
				evs = evs[:limit]
			}
			return
		}
		// candidate ids from every range, newest first per range
		var cands []coordEntry
		for _, rng := range plan.Ranges {
			if err = walkRange(txn, rng, func(id []byte, ca uint64) bool {
				cands = append(
					cands, coordEntry{id: id, createdAt: ca},
				)
				return true
			}); chk.E(err) {
				return
			}
		}
		// merge ranges newest first before materializing so the limit cuts
		// the right tail
		sort.Slice(cands, func(i, j int) bool {
			if cands[i].createdAt != cands[j].createdAt {
				return cands[i].createdAt > cands[j].createdAt
			}
			return bytes.Compare(cands[i].id, cands[j].id) < 0
		})
		seen := make(map[string]struct{})
		for _, cand := range cands {
			if _, ok := seen[string(cand.id)]; ok {
				continue
			}
			seen[string(cand.id)] = struct{}{}
			var ev *event.E
			if ev, err = fetchEventInTxn(txn, cand.id); chk.E(err) {
				return
			}
			if ev == nil || !f.Matches(ev) {
				continue
			}
			evs = append(evs, ev)
			if limit > 0 && len(evs) >= limit {
				return
			}
		}
		return
	})
	return
}

// walkRange iterates one Range newest first, calling fn with each (id,
// created_at) until fn returns false or the since bound is crossed.
func walkRange(
	txn *badger.Txn, rng Range, fn func(id []byte, ca uint64) bool,
) (err error) {
	it := txn.NewIterator(badger.IteratorOptions{Prefix: rng.Prefix})
	defer it.Close()
	for it.Seek(rng.Start); it.ValidForPrefix(rng.Prefix); it.Next() {
		k := it.Item().Key()
		if len(k) < len(rng.Prefix)+40 {
			continue
		}
		tail := k[len(k)-40:]
		ca := ^binary.BigEndian.Uint64(tail[:8])
		if ca < rng.Since {
			// complement coding means everything after this is older
			return
		}
		id := append([]byte{}, tail[8:]...)
		if !fn(id, ca) {
			return
		}
	}
	return
}

// CountEvents is QueryEvents without materializing event bodies for index
// walks; residual predicates that need the body still load it.
func (d *D) CountEvents(c context.T, ff *filters.T) (count int, err error) {
	seen := make(map[string]struct{})
	for _, f := range ff.F {
		var plan *Plan
		if plan, err = GetIndexesFromFilter(f); chk.E(err) {
			return
		}
		needsBody := filterNeedsBody(f)
		err = d.View(func(txn *badger.Txn) (err error) {
			if len(plan.IdLookups) > 0 {
				for _, key := range plan.IdLookups {
					ev, e := fetchEventInTxn(txn, key[3:])
					if e != nil || ev == nil || !f.Matches(ev) {
						continue
					}
					seen[string(key[3:])] = struct{}{}
				}
				return
			}
			for _, rng := range plan.Ranges {
				if err = walkRange(
					txn, rng, func(id []byte, ca uint64) bool {
						if _, ok := seen[string(id)]; ok {
							return true
						}
						if needsBody {
							ev, e := fetchEventInTxn(txn, id)
							if e != nil || ev == nil || !f.Matches(ev) {
								return true
							}
						}
						seen[string(id)] = struct{}{}
						return true
					},
				); chk.E(err) {
					return
				}
			}
			return
		})
		if err != nil {
			return
		}
	}
	count = len(seen)
	return
}

// filterNeedsBody reports whether the filter has predicates the chosen
// index does not express, requiring the event body to verify.
func filterNeedsBody(f *filter.F) bool {
	n := 0
	for _, tg := range f.Tags.ToSliceOfTags() {
		key := tg.Key()
		if len(key) == 2 && key[0] == '#' {
			n++
		}
	}
	if n > 1 {
		return true
	}
	// a single tag key is fully expressed only when it is the chosen index
	if n == 1 && (f.Authors.Len() > 0 || f.Kinds.Len() > 0) {
		return true
	}
	if n == 1 {
		// value hashes can collide; verify against the body
		return true
	}
	return false
}

// HasEvent probes the primary index.
func (d *D) HasEvent(c context.T, id []byte) (has bool, err error) {
	err = d.View(func(txn *badger.Txn) (err error) {
		has, err = hasKey(txn, eventKey(id))
		return
	})
	return
}

// FetchEventById loads a single event, nil when absent.
func (d *D) FetchEventById(c context.T, id []byte) (
	ev *event.E, err error,
) {
	err = d.View(func(txn *badger.Txn) (err error) {
		ev, err = fetchEventInTxn(txn, id)
		return
	})
	return
}
