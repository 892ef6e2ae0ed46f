package database

import (
	"github.com/dgraph-io/badger/v4"

	"parley.dev/pkg/encoders/event"
	"parley.dev/pkg/encoders/filter"
	"parley.dev/pkg/encoders/filters"
	"parley.dev/pkg/utils/chk"
	"parley.dev/pkg/utils/context"
)

// DeleteEvents removes the events matching a filter outright. This is local
// pruning: no tombstones are written and a removed event can be saved
// again.
func (d *D) DeleteEvents(c context.T, f *filter.F) (n int, err error) {
	var evs event.S
	if evs, err = d.QueryEvents(c, filters.New(f)); chk.E(err) {
		return
	}
	err = d.Update(func(txn *badger.Txn) (err error) {
		for _, ev := range evs {
			if err = deleteEventInTxn(txn, ev.ID); chk.E(err) {
				return
			}
			n++
		}
		return
	})
	return
}
