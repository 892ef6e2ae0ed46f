package database_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"parley.dev/pkg/database"
	"parley.dev/pkg/encoders/event"
	"parley.dev/pkg/encoders/filter"
	"parley.dev/pkg/encoders/filters"
	"parley.dev/pkg/encoders/hex"
	"parley.dev/pkg/encoders/kind"
	"parley.dev/pkg/encoders/kinds"
	"parley.dev/pkg/encoders/tag"
	"parley.dev/pkg/interfaces/store"
	"parley.dev/pkg/testutil"
	"parley.dev/pkg/utils/context"
)

func newDB(t *testing.T) (db *database.D, c context.T) {
	t.Helper()
	c, cancel := context.Cancel(context.Bg())
	db, err := database.New(c, cancel, t.TempDir(), "off")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
		cancel()
	})
	return
}

func kindFilter(k uint16) *filters.T {
	f := filter.New()
	f.Kinds = kinds.New(kind.New(k))
	return filters.New(f)
}

func TestSaveAndQuery(t *testing.T) {
	db, c := newDB(t)
	sign, err := testutil.NewSigner()
	require.NoError(t, err)
	ev, err := testutil.TextNote(sign, 100, "hello")
	require.NoError(t, err)
	res, err := db.SaveEvent(c, ev)
	require.NoError(t, err)
	require.Equal(t, store.Stored, res.Status)
	has, err := db.HasEvent(c, ev.ID)
	require.NoError(t, err)
	require.True(t, has)
	evs, err := db.QueryEvents(c, kindFilter(1))
	require.NoError(t, err)
	require.Len(t, evs, 1)
	require.Equal(t, ev.ID, evs[0].ID)
}

func TestSaveDuplicate(t *testing.T) {
	db, c := newDB(t)
	sign, _ := testutil.NewSigner()
	ev, err := testutil.TextNote(sign, 100, "dup")
	require.NoError(t, err)
	res, err := db.SaveEvent(c, ev)
	require.NoError(t, err)
	require.Equal(t, store.Stored, res.Status)
	res, err = db.SaveEvent(c, ev)
	require.NoError(t, err)
	require.Equal(t, store.Duplicate, res.Status)
	n, err := db.CountEvents(c, kindFilter(1))
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestSaveEphemeralRejected(t *testing.T) {
	db, c := newDB(t)
	sign, _ := testutil.NewSigner()
	ev, err := testutil.KindAt(sign, 20001, 100, "gone")
	require.NoError(t, err)
	res, err := db.SaveEvent(c, ev)
	require.NoError(t, err)
	require.Equal(t, store.Rejected, res.Status)
	require.Equal(t, store.ReasonEphemeral, res.Reason)
	has, err := db.HasEvent(c, ev.ID)
	require.NoError(t, err)
	require.False(t, has)
}

// S1: newer replaceable event supersedes the older at the same
// coordinate.
func TestReplaceableSupersede(t *testing.T) {
	db, c := newDB(t)
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
	has, err := db.HasEvent(c, e1.ID)
	require.NoError(t, err)
	require.False(t, has)
}

// S2: an older replaceable event arriving after a newer one is rejected.
func TestReplaceableOutOfOrder(t *testing.T) {
	db, c := newDB(t)
	sign, _ := testutil.NewSigner()
	e1, err := testutil.KindAt(sign, 0, 200, "b")
	require.NoError(t, err)
	e2, err := testutil.KindAt(sign, 0, 100, "a")
	require.NoError(t, err)
	res, err := db.SaveEvent(c, e1)
	require.NoError(t, err)
	require.Equal(t, store.Stored, res.Status)
	res, err = db.SaveEvent(c, e2)
	require.NoError(t, err)
	require.Equal(t, store.Rejected, res.Status)
	require.Equal(t, store.ReasonReplaced, res.Reason)
	evs, err := db.QueryEvents(c, kindFilter(0))
	require.NoError(t, err)
	require.Len(t, evs, 1)
	require.Equal(t, e1.ID, evs[0].ID)
}

// S3: parameterized replaceable events replace per d tag.
func TestParameterizedReplaceableByDTag(t *testing.T) {
	db, c := newDB(t)
	sign, _ := testutil.NewSigner()
	ex1, err := testutil.KindAt(sign, 30000, 10, "one", tag.New("d", "x"))
	require.NoError(t, err)
	ey, err := testutil.KindAt(sign, 30000, 20, "two", tag.New("d", "y"))
	require.NoError(t, err)
	ex2, err := testutil.KindAt(sign, 30000, 30, "three", tag.New("d", "x"))
	require.NoError(t, err)
	for _, ev := range []*event.E{ex1, ey, ex2} {
		res, err := db.SaveEvent(c, ev)
		require.NoError(t, err)
		require.Equal(t, store.Stored, res.Status)
	}
	evs, err := db.QueryEvents(c, kindFilter(30000))
	require.NoError(t, err)
	require.Len(t, evs, 2)
	require.Equal(t, ex2.ID, evs[0].ID) // newest first
	require.Equal(t, ey.ID, evs[1].ID)
}

// S4: a deletion event removes the target, tombstones it, and blocks
// re-insertion.
func TestDeletionTombstonesId(t *testing.T) {
	db, c := newDB(t)
	sign, _ := testutil.NewSigner()
	ev, err := testutil.TextNote(sign, 50, "doomed")
	require.NoError(t, err)
	res, err := db.SaveEvent(c, ev)
	require.NoError(t, err)
	require.Equal(t, store.Stored, res.Status)
	del, err := testutil.Deletion(
		sign, 60, []string{hex.Enc(ev.ID)}, nil,
	)
	require.NoError(t, err)
	res, err = db.SaveEvent(c, del)
	require.NoError(t, err)
	require.Equal(t, store.Stored, res.Status)
	has, err := db.HasEvent(c, ev.ID)
	require.NoError(t, err)
	require.False(t, has)
	deleted, err := db.IsDeleted(c, ev.ID)
	require.NoError(t, err)
	require.True(t, deleted)
	res, err = db.SaveEvent(c, ev)
	require.NoError(t, err)
	require.Equal(t, store.Rejected, res.Status)
	require.Equal(t, store.ReasonDeleted, res.Reason)
}

func TestDeletionForeignAuthorRejected(t *testing.T) {
	db, c := newDB(t)
	alice, _ := testutil.NewSigner()
	bob, _ := testutil.NewSigner()
	ev, err := testutil.TextNote(alice, 50, "alice's")
	require.NoError(t, err)
	res, err := db.SaveEvent(c, ev)
	require.NoError(t, err)
	require.Equal(t, store.Stored, res.Status)
	del, err := testutil.Deletion(bob, 60, []string{hex.Enc(ev.ID)}, nil)
	require.NoError(t, err)
	res, err = db.SaveEvent(c, del)
	require.NoError(t, err)
	require.Equal(t, store.Rejected, res.Status)
	require.Equal(t, store.ReasonInvalidDeletion, res.Reason)
	// the whole transaction rolled back: target intact, no tombstone, no
	// deletion event stored
	has, err := db.HasEvent(c, ev.ID)
	require.NoError(t, err)
	require.True(t, has)
	deleted, err := db.IsDeleted(c, ev.ID)
	require.NoError(t, err)
	require.False(t, deleted)
	has, err = db.HasEvent(c, del.ID)
	require.NoError(t, err)
	require.False(t, has)
}

func TestDeletionByCoordinate(t *testing.T) {
	db, c := newDB(t)
	sign, _ := testutil.NewSigner()
	ev, err := testutil.KindAt(sign, 30000, 100, "addressed",
		tag.New("d", "x"))
	require.NoError(t, err)
	res, err := db.SaveEvent(c, ev)
	require.NoError(t, err)
	require.Equal(t, store.Stored, res.Status)
	coord := "30000:" + hex.Enc(ev.Pubkey) + ":x"
	del, err := testutil.Deletion(sign, 150, nil, []string{coord})
	require.NoError(t, err)
	res, err = db.SaveEvent(c, del)
	require.NoError(t, err)
	require.Equal(t, store.Stored, res.Status)
	has, err := db.HasEvent(c, ev.ID)
	require.NoError(t, err)
	require.False(t, has)
	ts, err := db.WhenCoordinateDeleted(c, &store.Coordinate{
		Kind: 30000, Pubkey: ev.Pubkey, Identifier: []byte("x"),
	})
	require.NoError(t, err)
	require.NotNil(t, ts)
	require.EqualValues(t, 150, ts.I64())
	// an older same-coordinate event is refused by the tombstone
	older, err := testutil.KindAt(sign, 30000, 120, "older",
		tag.New("d", "x"))
	require.NoError(t, err)
	res, err = db.SaveEvent(c, older)
	require.NoError(t, err)
	require.Equal(t, store.Rejected, res.Status)
	require.Equal(t, store.ReasonDeleted, res.Reason)
	// a newer one is accepted
	newer, err := testutil.KindAt(sign, 30000, 200, "newer",
		tag.New("d", "x"))
	require.NoError(t, err)
	res, err = db.SaveEvent(c, newer)
	require.NoError(t, err)
	require.Equal(t, store.Stored, res.Status)
}
