package memstore_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"parley.dev/pkg/encoders/event"
	"parley.dev/pkg/encoders/filter"
	"parley.dev/pkg/encoders/filters"
	"parley.dev/pkg/encoders/hex"
	"parley.dev/pkg/encoders/kind"
	"parley.dev/pkg/encoders/kinds"
	"parley.dev/pkg/encoders/tag"
	"parley.dev/pkg/interfaces/store"
	"parley.dev/pkg/memstore"
	"parley.dev/pkg/testutil"
	"parley.dev/pkg/utils/context"
)

func kindFilter(k uint16) *filters.T {
	f := filter.New()
	f.Kinds = kinds.New(kind.New(k))
	return filters.New(f)
}

// The memory backend must share the disk backend's semantics exactly;
// these mirror the scenarios of the database package.

func TestReplaceableSupersede(t *testing.T) {
	db := memstore.New()
	c := context.Bg()
	sign, _ := testutil.NewSigner()
	e1, err := testutil.KindAt(sign, 0, 100, "a")
	require.NoError(t, err)
	e2, err := testutil.KindAt(sign, 0, 200, "b")
	require.NoError(t, err)
	res, err := db.SaveEvent(c, e1)
	require.NoError(t, err)
	require.Equal(t, store.Stored, res.Status)
	res, err = db.SaveEvent(c, e2)
	require.NoError(t, err)
	require.Equal(t, store.Stored, res.Status)
	evs, err := db.QueryEvents(c, kindFilter(0))
	require.NoError(t, err)
	require.Len(t, evs, 1)
	require.Equal(t, e2.ID, evs[0].ID)
	// out of order arrival is rejected
	res, err = db.SaveEvent(c, e1)
	require.NoError(t, err)
	require.Equal(t, store.Rejected, res.Status)
	require.Equal(t, store.ReasonReplaced, res.Reason)
}

func TestDuplicateAndEphemeral(t *testing.T) {
	db := memstore.New()
	c := context.Bg()
	sign, _ := testutil.NewSigner()
	ev, err := testutil.TextNote(sign, 100, "x")
	require.NoError(t, err)
	res, err := db.SaveEvent(c, ev)
	require.NoError(t, err)
	require.Equal(t, store.Stored, res.Status)
	res, err = db.SaveEvent(c, ev)
	require.NoError(t, err)
	require.Equal(t, store.Duplicate, res.Status)
	eph, err := testutil.KindAt(sign, 25000, 100, "gone")
	require.NoError(t, err)
	res, err = db.SaveEvent(c, eph)
	require.NoError(t, err)
	require.Equal(t, store.Rejected, res.Status)
	require.Equal(t, store.ReasonEphemeral, res.Reason)
}

func TestDeletionSemantics(t *testing.T) {
	db := memstore.New()
	c := context.Bg()
	alice, _ := testutil.NewSigner()
	bob, _ := testutil.NewSigner()
	ev, err := testutil.TextNote(alice, 50, "target")
	require.NoError(t, err)
	_, err = db.SaveEvent(c, ev)
	require.NoError(t, err)
	// foreign deletion rejected without effect
	foreign, err := testutil.Deletion(
		bob, 60, []string{hex.Enc(ev.ID)}, nil,
	)
	require.NoError(t, err)
	res, err := db.SaveEvent(c, foreign)
	require.NoError(t, err)
	require.Equal(t, store.Rejected, res.Status)
	require.Equal(t, store.ReasonInvalidDeletion, res.Reason)
	has, err := db.HasEvent(c, ev.ID)
	require.NoError(t, err)
	require.True(t, has)
	// own deletion tombstones and removes
	own, err := testutil.Deletion(
		alice, 70, []string{hex.Enc(ev.ID)}, nil,
	)
	require.NoError(t, err)
	res, err = db.SaveEvent(c, own)
	require.NoError(t, err)
	require.Equal(t, store.Stored, res.Status)
	deleted, err := db.IsDeleted(c, ev.ID)
	require.NoError(t, err)
	require.True(t, deleted)
	res, err = db.SaveEvent(c, ev)
	require.NoError(t, err)
	require.Equal(t, store.Rejected, res.Status)
	require.Equal(t, store.ReasonDeleted, res.Reason)
}

func TestParameterizedReplaceable(t *testing.T) {
	db := memstore.New()
	c := context.Bg()
	sign, _ := testutil.NewSigner()
	ex1, err := testutil.KindAt(sign, 30000, 10, "1", tag.New("d", "x"))
	require.NoError(t, err)
	ey, err := testutil.KindAt(sign, 30000, 20, "2", tag.New("d", "y"))
	require.NoError(t, err)
	ex2, err := testutil.KindAt(sign, 30000, 30, "3", tag.New("d", "x"))
	require.NoError(t, err)
	for _, ev := range []*event.E{ex1, ey, ex2} {
		res, err := db.SaveEvent(c, ev)
		require.NoError(t, err)
		require.Equal(t, store.Stored, res.Status)
	}
	evs, err := db.QueryEvents(c, kindFilter(30000))
	require.NoError(t, err)
	require.Len(t, evs, 2)
	require.Equal(t, ex2.ID, evs[0].ID)
	require.Equal(t, ey.ID, evs[1].ID)
}

func TestSeenOnNotSupported(t *testing.T) {
	db := memstore.New()
	c := context.Bg()
	err := db.EventSeen(c, make([]byte, 32), "wss://x.example")
	require.ErrorIs(t, err, store.ErrNotSupported)
	_, err = db.SeenOn(c, make([]byte, 32))
	require.ErrorIs(t, err, store.ErrNotSupported)
}

func TestNegentropyItemsAscending(t *testing.T) {
	db := memstore.New()
	c := context.Bg()
	sign, _ := testutil.NewSigner()
	for i := int64(3); i >= 1; i-- {
		ev, err := testutil.TextNote(sign, i*10, "i")
		require.NoError(t, err)
		_, err = db.SaveEvent(c, ev)
		require.NoError(t, err)
	}
	f := filter.New()
	f.Kinds = kinds.New(kind.TextNote)
	items, err := db.NegentropyItems(c, f)
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Less(t, items[0].CreatedAt, items[1].CreatedAt)
	require.Less(t, items[1].CreatedAt, items[2].CreatedAt)
}
