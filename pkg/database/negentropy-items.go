package database

import (
	"bytes"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"parley.dev/pkg/encoders/filter"
	"parley.dev/pkg/interfaces/store"
	"parley.dev/pkg/utils/chk"
	"parley.dev/pkg/utils/context"
)

// NegentropyItems returns the (id, created_at) pairs selected by the
// filter, ordered ascending by (created_at, id) as the reconciler requires.
// Bodies are only materialized for residual predicate checks.
func (d *D) NegentropyItems(c context.T, f *filter.F) (
	items []store.Item, err error,
) {
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
				items = append(items, store.Item{
					ID:        ev.ID,
					CreatedAt: ev.CreatedAt.I64(),
				})
			}
			return
		}
		seen := make(map[string]struct{})
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
					items = append(items, store.Item{
						ID: id, CreatedAt: int64(ca),
					})
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
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt != items[j].CreatedAt {
			return items[i].CreatedAt < items[j].CreatedAt
		}
		return bytes.Compare(items[i].ID, items[j].ID) < 0
	})
	return
}
