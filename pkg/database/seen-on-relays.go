package database

import (
	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"parley.dev/pkg/utils/chk"
	"parley.dev/pkg/utils/context"
)

// seenRecord is the msgpack value of the seen-on keyspace.
type seenRecord struct {
	Relays []string `msgpack:"relays"`
}

// EventSeen records that an event was observed on a relay. Idempotent per
// (id, url).
func (d *D) EventSeen(c context.T, id []byte, relayURL string) (err error) {
	err = d.Update(func(txn *badger.Txn) (err error) {
		rec := &seenRecord{}
		item, e := txn.Get(seenOnKey(id))
		if e == nil {
			if err = item.Value(func(val []byte) error {
				return msgpack.Unmarshal(val, rec)
			}); chk.E(err) {
				return
			}
		} else if e != badger.ErrKeyNotFound {
			return e
		}
		for _, u := range rec.Relays {
			if u == relayURL {
				return
			}
		}
		rec.Relays = append(rec.Relays, relayURL)
		var data []byte
		if data, err = msgpack.Marshal(rec); chk.E(err) {
			return
		}
		return txn.Set(seenOnKey(id), data)
	})
	return
}

// SeenOn returns the relay URLs an event has been observed on.
func (d *D) SeenOn(c context.T, id []byte) (urls []string, err error) {
	err = d.View(func(txn *badger.Txn) (err error) {
		item, e := txn.Get(seenOnKey(id))
		if e == badger.ErrKeyNotFound {
			return
		}
		if e != nil {
			return e
		}
		rec := &seenRecord{}
		if err = item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, rec)
		}); chk.E(err) {
			return
		}
		urls = rec.Relays
		return
	})
	return
}
