package negentropy

import (
	"testing"

	"github.com/minio/sha256-simd"
	"github.com/stretchr/testify/require"
)

func makeItems(n int, seed byte) (items []Item) {
	for i := 0; i < n; i++ {
		h := sha256.Sum256([]byte{seed, byte(i), byte(i >> 8)})
		items = append(items, Item{Timestamp: uint64(1000 + i), ID: h[:]})
	}
	return
}

func vectorOf(t *testing.T, items []Item) *Vector {
	t.Helper()
	v := NewVector()
	for _, it := range items {
		require.NoError(t, v.Insert(it.Timestamp, it.ID))
	}
	require.NoError(t, v.Seal())
	return v
}

// dialogue runs a full reconciliation between two vectors and returns the
// ids the initiator has that the responder lacks and vice versa, plus the
// number of round trips.
func dialogue(t *testing.T, local, remote *Vector) (
	have, need [][]byte, rounds int,
) {
	t.Helper()
	initiator := New(local, 0)
	responder := New(remote, 0)
	msg, err := initiator.Initiate()
	require.NoError(t, err)
	for {
		rounds++
		require.Less(t, rounds, 100, "dialogue did not converge")
		reply, _, _, err := responder.Reconcile(msg)
		require.NoError(t, err)
		var h, n [][]byte
		msg, h, n, err = initiator.Reconcile(reply)
		require.NoError(t, err)
		have = append(have, h...)
		need = append(need, n...)
		if msg == nil {
			return
		}
	}
}

func idSet(ids [][]byte) map[string]struct{} {
	s := make(map[string]struct{})
	for _, id := range ids {
		s[string(id)] = struct{}{}
	}
	return s
}

func TestIdenticalSetsReconcileImmediately(t *testing.T) {
	items := makeItems(500, 1)
	have, need, rounds := dialogue(
		t, vectorOf(t, items), vectorOf(t, items),
	)
	require.Empty(t, have)
	require.Empty(t, need)
	require.Equal(t, 1, rounds)
}

func TestSmallDisjointSets(t *testing.T) {
	all := makeItems(5, 2)
	local := vectorOf(t, all[:3])   // {1,2,3}
	remote := vectorOf(t, all[1:])  // {2,3,4,5}
	have, need, _ := dialogue(t, local, remote)
	haveSet := idSet(have)
	needSet := idSet(need)
	require.Len(t, haveSet, 1)
	require.Contains(t, haveSet, string(all[0].ID))
	require.Len(t, needSet, 2)
	require.Contains(t, needSet, string(all[3].ID))
	require.Contains(t, needSet, string(all[4].ID))
}

func TestLargeSetsWithScatteredDifferences(t *testing.T) {
	all := makeItems(5000, 3)
	var localItems, remoteItems []Item
	missingLocal := make(map[string]struct{})
	missingRemote := make(map[string]struct{})
	for i, it := range all {
		switch {
		case i%501 == 0:
			// only remote has it
			remoteItems = append(remoteItems, it)
			missingLocal[string(it.ID)] = struct{}{}
		case i%503 == 0:
			// only local has it
			localItems = append(localItems, it)
			missingRemote[string(it.ID)] = struct{}{}
		default:
			localItems = append(localItems, it)
			remoteItems = append(remoteItems, it)
		}
	}
	have, need, _ := dialogue(
		t, vectorOf(t, localItems), vectorOf(t, remoteItems),
	)
	require.Equal(t, missingRemote, idSet(have))
	require.Equal(t, missingLocal, idSet(need))
}

func TestIdempotentSecondDialogue(t *testing.T) {
	items := makeItems(1000, 4)
	local := vectorOf(t, items)
	remote := vectorOf(t, items)
	have, need, rounds := dialogue(t, local, remote)
	require.Empty(t, have)
	require.Empty(t, need)
	require.Equal(t, 1, rounds)
	// a second identical dialogue makes no progress beyond the opening
	// fingerprint exchange
	have, need, rounds = dialogue(
		t, vectorOf(t, items), vectorOf(t, items),
	)
	require.Empty(t, have)
	require.Empty(t, need)
	require.Equal(t, 1, rounds)
}

func TestFrameSizeLimitSplitsRounds(t *testing.T) {
	all := makeItems(4000, 5)
	local := vectorOf(t, all[:1])
	remote := vectorOf(t, all)
	initiator := New(local, 4096)
	responder := New(remote, 4096)
	msg, err := initiator.Initiate()
	require.NoError(t, err)
	rounds := 0
	var need [][]byte
	for {
		rounds++
		require.Less(t, rounds, 1000)
		reply, _, _, err := responder.Reconcile(msg)
		require.NoError(t, err)
		require.LessOrEqual(t, len(reply), 4096)
		var n [][]byte
		msg, _, n, err = initiator.Reconcile(reply)
		require.NoError(t, err)
		need = append(need, n...)
		if msg == nil {
			break
		}
		require.LessOrEqual(t, len(msg), 4096)
	}
	require.Greater(t, rounds, 1)
	require.Len(t, idSet(need), len(all)-1)
}

func TestInvalidVersionRejected(t *testing.T) {
	v := vectorOf(t, makeItems(3, 6))
	n := New(v, 0)
	_, _, _, err := n.Reconcile([]byte{0x60, 0x00})
	require.ErrorIs(t, err, ErrInvalidVersion)
}

func TestFingerprintDiffersAcrossSets(t *testing.T) {
	a := vectorOf(t, makeItems(10, 7))
	b := vectorOf(t, makeItems(10, 8))
	fa := a.Fingerprint(0, a.Size())
	fb := b.Fingerprint(0, b.Size())
	require.NotEqual(t, fa, fb)
}
