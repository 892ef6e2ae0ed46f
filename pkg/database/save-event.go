package database

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/dgraph-io/badger/v4"

	"parley.dev/pkg/database/indexes"
	"parley.dev/pkg/database/indexes/types"
	"parley.dev/pkg/encoders/event"
	"parley.dev/pkg/encoders/hex"
	"parley.dev/pkg/encoders/tag"
	"parley.dev/pkg/encoders/tag/atag"
	"parley.dev/pkg/interfaces/store"
	"parley.dev/pkg/utils/chk"
	"parley.dev/pkg/utils/context"
)

var errInvalidDeletion = errors.New("deletion referencing another author")

// SaveEvent applies the persistence policy and writes the event with all of
// its index entries in one transaction. The returned SaveResult
// distinguishes Stored, Duplicate and the Rejected reasons; err is reserved
// for backend failures.
func (d *D) SaveEvent(c context.T, ev *event.E) (
	res store.SaveResult, err error,
) {
	if ev.Kind.IsEphemeral() {
		res = store.SaveResult{
			Status: store.Rejected, Reason: store.ReasonEphemeral,
		}
		return
	}
	rejected := ""
	err = d.Update(func(txn *badger.Txn) (err error) {
		// duplicate
		var exists bool
		if exists, err = hasKey(txn, eventKey(ev.ID)); chk.E(err) {
			return
		}
		if exists {
			rejected = "duplicate"
			return
		}
		// id tombstone
		if exists, err = hasKey(txn, deletedIdKey(ev.ID)); chk.E(err) {
			return
		}
		if exists {
			rejected = store.ReasonDeleted
			return
		}
		// coordinate tombstone
		if ev.Kind.IsReplaceable() || ev.Kind.IsParameterizedReplaceable() {
			var ident []byte
			checkTombstone := true
			if ev.Kind.IsParameterizedReplaceable() {
				if dtag := ev.Tags.GetFirst(tag.New("d")); dtag != nil {
					ident = dtag.Value()
				} else {
					// absent d tag: the empty-string coordinate still
					// governs supersession, but the tombstone check is
					// skipped
					checkTombstone = false
				}
			}
			if checkTombstone {
				var ts uint64
				var found bool
				if ts, found, err = getCoordTombstone(
					txn, ev.Kind.K, ev.Pubkey, ident,
				); chk.E(err) {
					return
				}
				if found && ev.CreatedAt.U64() <= ts {
					rejected = store.ReasonDeleted
					return
				}
			}
			// replaceable supersession
			var coords []coordEntry
			if coords, err = scanCoordinate(
				txn, ev.Kind.K, ev.Pubkey, ident,
			); chk.E(err) {
				return
			}
			for _, ce := range coords {
				if ce.createdAt > ev.CreatedAt.U64() {
					rejected = store.ReasonReplaced
					return
				}
			}
			for _, ce := range coords {
				if err = deleteEventInTxn(txn, ce.id); chk.E(err) {
					return
				}
			}
		}
		// write primary and secondary indexes
		var keys [][]byte
		if keys, err = GetIndexesForEvent(ev); chk.E(err) {
			return
		}
		for _, k := range keys {
			if err = txn.Set(k, nil); chk.E(err) {
				return
			}
		}
		blob := new(bytes.Buffer)
		ev.MarshalBinary(blob)
		if err = txn.Set(eventKey(ev.ID), blob.Bytes()); chk.E(err) {
			return
		}
		// deletion event processing
		if ev.Kind.IsDeletion() {
			if err = processDeletion(txn, ev); err != nil {
				return
			}
		}
		return
	})
	if err == errInvalidDeletion {
		err = nil
		res = store.SaveResult{
			Status: store.Rejected, Reason: store.ReasonInvalidDeletion,
		}
		return
	}
	if err != nil {
		return
	}
	switch rejected {
	case "":
		res = store.SaveResult{Status: store.Stored}
	case "duplicate":
		res = store.SaveResult{Status: store.Duplicate}
	default:
		res = store.SaveResult{Status: store.Rejected, Reason: rejected}
	}
	return
}

// processDeletion tombstones the ids and coordinates a kind 5 event
// references and removes the targets. A referenced id that exists under
// another author invalidates the whole deletion.
func processDeletion(txn *badger.Txn, ev *event.E) (err error) {
	for _, tg := range ev.Tags.GetAll([]byte("e")) {
		idv := tg.Value()
		if len(idv) == 64 {
			var decoded []byte
			if decoded, err = hex.Dec(string(idv)); err != nil {
				err = nil
				continue
			}
			idv = decoded
		}
		if len(idv) != 32 {
			continue
		}
		var target *event.E
		if target, err = fetchEventInTxn(txn, idv); chk.E(err) {
			return
		}
		if target != nil && !bytes.Equal(target.Pubkey, ev.Pubkey) {
			return errInvalidDeletion
		}
		if err = txn.Set(deletedIdKey(idv), nil); chk.E(err) {
			return
		}
		if target != nil {
			if err = deleteEventInTxn(txn, idv); chk.E(err) {
				return
			}
		}
	}
	for _, tg := range ev.Tags.GetAll([]byte("a")) {
		var a *atag.T
		if a, err = atag.Parse(tg.Value()); err != nil {
			err = nil
			continue
		}
		if !bytes.Equal(a.Pubkey, ev.Pubkey) {
			continue
		}
		ts := ev.CreatedAt.U64()
		var existing uint64
		var found bool
		if existing, found, err = getCoordTombstone(
			txn, a.Kind.K, a.Pubkey, a.DTag,
		); chk.E(err) {
			return
		}
		if found && existing > ts {
			ts = existing
		}
		var val [8]byte
		binary.BigEndian.PutUint64(val[:], ts)
		if err = txn.Set(
			coordTombstoneKey(a.Kind.K, a.Pubkey, a.DTag), val[:],
		); chk.E(err) {
			return
		}
		var coords []coordEntry
		if coords, err = scanCoordinate(
			txn, a.Kind.K, a.Pubkey, a.DTag,
		); chk.E(err) {
			return
		}
		for _, ce := range coords {
			if ce.createdAt <= ev.CreatedAt.U64() {
				if err = deleteEventInTxn(txn, ce.id); chk.E(err) {
					return
				}
			}
		}
	}
	return
}

// coordEntry is one event found at a coordinate.
type coordEntry struct {
	id        []byte
	createdAt uint64
}

// scanCoordinate lists the events stored at a (kind, pubkey, ident)
// coordinate.
func scanCoordinate(
	txn *badger.Txn, ki uint16, pubkey, ident []byte,
) (entries []coordEntry, err error) {
	prefix := coordPrefix(ki, pubkey, ident)
	it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
	defer it.Close()
	for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
		k := it.Item().Key()
		if len(k) < len(prefix)+40 {
			continue
		}
		tail := k[len(prefix):]
		ca := ^binary.BigEndian.Uint64(tail[:8])
		id := append([]byte{}, tail[8:40]...)
		entries = append(entries, coordEntry{id: id, createdAt: ca})
	}
	return
}

// deleteEventInTxn removes an event's blob and every index entry it
// generated. Tombstones are left untouched.
func deleteEventInTxn(txn *badger.Txn, id []byte) (err error) {
	var ev *event.E
	if ev, err = fetchEventInTxn(txn, id); chk.E(err) {
		return
	}
	if ev == nil {
		return
	}
	var keys [][]byte
	if keys, err = GetIndexesForEvent(ev); chk.E(err) {
		return
	}
	for _, k := range keys {
		if err = txn.Delete(k); chk.E(err) {
			return
		}
	}
	if err = txn.Delete(eventKey(id)); chk.E(err) {
		return
	}
	if err = txn.Delete(seenOnKey(id)); chk.E(err) {
		return
	}
	return
}

// fetchEventInTxn loads and decodes the blob for an id, nil when absent.
func fetchEventInTxn(txn *badger.Txn, id []byte) (ev *event.E, err error) {
	item, e := txn.Get(eventKey(id))
	if e == badger.ErrKeyNotFound {
		return
	}
	if e != nil {
		err = e
		return
	}
	err = item.Value(func(val []byte) (err error) {
		ev = event.New()
		return ev.UnmarshalBinary(bytes.NewReader(val))
	})
	return
}

func hasKey(txn *badger.Txn, key []byte) (exists bool, err error) {
	_, e := txn.Get(key)
	if e == badger.ErrKeyNotFound {
		return
	}
	if e != nil {
		err = e
		return
	}
	exists = true
	return
}

func getCoordTombstone(
	txn *badger.Txn, ki uint16, pubkey, ident []byte,
) (ts uint64, found bool, err error) {
	item, e := txn.Get(coordTombstoneKey(ki, pubkey, ident))
	if e == badger.ErrKeyNotFound {
		return
	}
	if e != nil {
		err = e
		return
	}
	err = item.Value(func(val []byte) error {
		if len(val) == 8 {
			ts = binary.BigEndian.Uint64(val)
			found = true
		}
		return nil
	})
	return
}

// key builders

func eventKey(id []byte) []byte {
	k := make([]byte, 0, 35)
	k = append(k, indexes.EventPrefix...)
	return append(k, id...)
}

func deletedIdKey(id []byte) []byte {
	k := make([]byte, 0, 35)
	k = append(k, indexes.DeletedIdPrefix...)
	return append(k, id...)
}

func seenOnKey(id []byte) []byte {
	k := make([]byte, 0, 35)
	k = append(k, indexes.SeenOnPrefix...)
	return append(k, id...)
}

func coordTombstoneKey(ki uint16, pubkey, ident []byte) []byte {
	kk := new(types.Uint16)
	kk.Set(ki)
	pk := new(types.Pub)
	_ = pk.FromPubkey(pubkey)
	idt := new(types.Ident)
	idt.FromIdent(ident)
	buf := new(bytes.Buffer)
	_ = indexes.DeletedCoordEnc(kk, pk, idt).MarshalWrite(buf)
	return buf.Bytes()
}

func coordPrefix(ki uint16, pubkey, ident []byte) []byte {
	kk := new(types.Uint16)
	kk.Set(ki)
	pk := new(types.Pub)
	_ = pk.FromPubkey(pubkey)
	idt := new(types.Ident)
	idt.FromIdent(ident)
	buf := new(bytes.Buffer)
	_ = indexes.CoordinateEnc(kk, pk, idt, nil, nil).MarshalWrite(buf)
	return buf.Bytes()
}
