package database

import (
	"encoding/binary"

	"github.com/dgraph-io/badger/v4"

	"parley.dev/pkg/database/indexes"
	"parley.dev/pkg/encoders/timestamp"
	"parley.dev/pkg/utils/chk"
)

// DeleteExpired sweeps the expiration index and removes every event whose
// NIP-40 expiration is at or before now. No tombstones are written; an
// expired event is simply gone.
func (d *D) DeleteExpired() (n int, err error) {
	now := timestamp.Now().U64()
	prefix := []byte(indexes.ExpirationPrefix)
	var expired [][]byte
	err = d.View(func(txn *badger.Txn) (err error) {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			k := it.Item().Key()
			if len(k) != len(prefix)+40 {
				continue
			}
			exp := binary.BigEndian.Uint64(k[len(prefix):])
			if exp > now {
				// ascending order: the rest are still alive
				return
			}
			expired = append(expired, append([]byte{}, k[len(prefix)+8:]...))
		}
		return
	})
	if err != nil {
		return
	}
	if len(expired) == 0 {
		return
	}
	err = d.Update(func(txn *badger.Txn) (err error) {
		for _, id := range expired {
			if err = deleteEventInTxn(txn, id); chk.E(err) {
				return
			}
			n++
		}
		return
	})
	return
}
