package database

import (
	"github.com/dgraph-io/badger/v4"

	"parley.dev/pkg/encoders/timestamp"
	"parley.dev/pkg/interfaces/store"
	"parley.dev/pkg/utils/context"
)

// IsDeleted reports whether an id carries a deletion tombstone. Tombstones
// outlive the events they refer to.
func (d *D) IsDeleted(c context.T, id []byte) (deleted bool, err error) {
	err = d.View(func(txn *badger.Txn) (err error) {
		deleted, err = hasKey(txn, deletedIdKey(id))
		return
	})
	return
}

// WhenCoordinateDeleted returns the tombstone timestamp of a coordinate,
// nil when no tombstone exists.
func (d *D) WhenCoordinateDeleted(
	c context.T, coord *store.Coordinate,
) (ts *timestamp.T, err error) {
	err = d.View(func(txn *badger.Txn) (err error) {
		var v uint64
		var found bool
		if v, found, err = getCoordTombstone(
			txn, coord.Kind, coord.Pubkey, coord.Identifier,
		); err != nil {
			return
		}
		if found {
			ts = timestamp.FromUnix(int64(v))
		}
		return
	})
	return
}
