package database_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"parley.dev/pkg/encoders/event"
	"parley.dev/pkg/encoders/filter"
	"parley.dev/pkg/encoders/filters"
	"parley.dev/pkg/encoders/kind"
	"parley.dev/pkg/encoders/kinds"
	"parley.dev/pkg/encoders/tag"
	"parley.dev/pkg/encoders/timestamp"
	"parley.dev/pkg/interfaces/store"
	"parley.dev/pkg/testutil"
)

// S5: filter by generic tag.
func TestQueryByTag(t *testing.T) {
	db, c := newDB(t)
	sign, _ := testutil.NewSigner()
	e1, err := testutil.TextNote(sign, 10, "one", tag.New("t", "rust"))
	require.NoError(t, err)
	e2, err := testutil.TextNote(sign, 20, "two", tag.New("t", "nostr"))
	require.NoError(t, err)
	e3, err := testutil.TextNote(
		sign, 30, "three", tag.New("t", "rust"), tag.New("t", "relay"),
	)
	require.NoError(t, err)
	for _, ev := range []*event.E{e1, e2, e3} {
		res, err := db.SaveEvent(c, ev)
		require.NoError(t, err)
		require.Equal(t, store.Stored, res.Status)
	}
	f := filter.New()
	f.Tags.AppendTags(tag.New("#t", "rust"))
	evs, err := db.QueryEvents(c, filters.New(f))
	require.NoError(t, err)
	require.Len(t, evs, 2)
	require.Equal(t, e3.ID, evs[0].ID)
	require.Equal(t, e1.ID, evs[1].ID)
}

func TestQueryOrderingAndLimit(t *testing.T) {
	db, c := newDB(t)
	sign, _ := testutil.NewSigner()
	var saved []*event.E
	for i := int64(1); i <= 10; i++ {
		ev, err := testutil.TextNote(sign, i*100, "note")
		require.NoError(t, err)
		res, err := db.SaveEvent(c, ev)
		require.NoError(t, err)
		require.Equal(t, store.Stored, res.Status)
		saved = append(saved, ev)
	}
	f := filter.New()
	f.Authors = tag.FromBytesSlice(saved[0].Pubkey)
	lim := uint(3)
	f.Limit = &lim
	evs, err := db.QueryEvents(c, filters.New(f))
	require.NoError(t, err)
	require.Len(t, evs, 3)
	// newest first
	require.EqualValues(t, 1000, evs[0].CreatedAt.I64())
	require.EqualValues(t, 900, evs[1].CreatedAt.I64())
	require.EqualValues(t, 800, evs[2].CreatedAt.I64())
}

func TestQueryTimeWindow(t *testing.T) {
	db, c := newDB(t)
	sign, _ := testutil.NewSigner()
	for i := int64(1); i <= 5; i++ {
		ev, err := testutil.TextNote(sign, i*100, "note")
		require.NoError(t, err)
		_, err = db.SaveEvent(c, ev)
		require.NoError(t, err)
	}
	f := filter.New()
	f.Kinds = kinds.New(kind.TextNote)
	f.Since = timestamp.FromUnix(200)
	f.Until = timestamp.FromUnix(400)
	evs, err := db.QueryEvents(c, filters.New(f))
	require.NoError(t, err)
	require.Len(t, evs, 3)
	for _, ev := range evs {
		require.GreaterOrEqual(t, ev.CreatedAt.I64(), int64(200))
		require.LessOrEqual(t, ev.CreatedAt.I64(), int64(400))
	}
}

func TestQueryByIdsDedupAcrossFilters(t *testing.T) {
	db, c := newDB(t)
	sign, _ := testutil.NewSigner()
	ev, err := testutil.TextNote(sign, 100, "only")
	require.NoError(t, err)
	_, err = db.SaveEvent(c, ev)
	require.NoError(t, err)
	f1 := filter.New()
	f1.IDs = tag.FromBytesSlice(ev.ID)
	f2 := filter.New()
	f2.Kinds = kinds.New(kind.TextNote)
	evs, err := db.QueryEvents(c, filters.New(f1, f2))
	require.NoError(t, err)
	require.Len(t, evs, 1)
}

func TestNegentropyItemsAscending(t *testing.T) {
	db, c := newDB(t)
	sign, _ := testutil.NewSigner()
	for i := int64(5); i >= 1; i-- {
		ev, err := testutil.TextNote(sign, i*10, "item")
		require.NoError(t, err)
		_, err = db.SaveEvent(c, ev)
		require.NoError(t, err)
	}
	f := filter.New()
	f.Kinds = kinds.New(kind.TextNote)
	items, err := db.NegentropyItems(c, f)
	require.NoError(t, err)
	require.Len(t, items, 5)
	for i := 1; i < len(items); i++ {
		require.Less(t, items[i-1].CreatedAt, items[i].CreatedAt)
	}
}

func TestDeleteEventsNoTombstone(t *testing.T) {
	db, c := newDB(t)
	sign, _ := testutil.NewSigner()
	ev, err := testutil.TextNote(sign, 100, "prunable")
	require.NoError(t, err)
	_, err = db.SaveEvent(c, ev)
	require.NoError(t, err)
	f := filter.New()
	f.IDs = tag.FromBytesSlice(ev.ID)
	n, err := db.DeleteEvents(c, f)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	has, err := db.HasEvent(c, ev.ID)
	require.NoError(t, err)
	require.False(t, has)
	deleted, err := db.IsDeleted(c, ev.ID)
	require.NoError(t, err)
	require.False(t, deleted)
	// no tombstone: re-saving succeeds
	res, err := db.SaveEvent(c, ev)
	require.NoError(t, err)
	require.Equal(t, store.Stored, res.Status)
}

func TestWipe(t *testing.T) {
	db, c := newDB(t)
	sign, _ := testutil.NewSigner()
	ev, err := testutil.TextNote(sign, 100, "short lived")
	require.NoError(t, err)
	_, err = db.SaveEvent(c, ev)
	require.NoError(t, err)
	require.NoError(t, db.Wipe())
	n, err := db.CountEvents(c, kindFilter(1))
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestDeleteExpired(t *testing.T) {
	db, c := newDB(t)
	sign, _ := testutil.NewSigner()
	expired, err := testutil.TextNote(
		sign, 100, "stale", tag.New("expiration", "1000"),
	)
	require.NoError(t, err)
	alive, err := testutil.TextNote(
		sign, 100, "fresh", tag.New("expiration", "99999999999"),
	)
	require.NoError(t, err)
	_, err = db.SaveEvent(c, expired)
	require.NoError(t, err)
	_, err = db.SaveEvent(c, alive)
	require.NoError(t, err)
	n, err := db.DeleteExpired()
	require.NoError(t, err)
	require.Equal(t, 1, n)
	has, err := db.HasEvent(c, expired.ID)
	require.NoError(t, err)
	require.False(t, has)
	has, err = db.HasEvent(c, alive.ID)
	require.NoError(t, err)
	require.True(t, has)
}

func TestSeenOnRelays(t *testing.T) {
	db, c := newDB(t)
	sign, _ := testutil.NewSigner()
	ev, err := testutil.TextNote(sign, 100, "seen")
	require.NoError(t, err)
	_, err = db.SaveEvent(c, ev)
	require.NoError(t, err)
	require.NoError(t, db.EventSeen(c, ev.ID, "wss://one.example"))
	require.NoError(t, db.EventSeen(c, ev.ID, "wss://two.example"))
	require.NoError(t, db.EventSeen(c, ev.ID, "wss://one.example"))
	urls, err := db.SeenOn(c, ev.ID)
	require.NoError(t, err)
	require.ElementsMatch(
		t, []string{"wss://one.example", "wss://two.example"}, urls,
	)
}
