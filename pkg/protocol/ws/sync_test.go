package ws_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"parley.dev/pkg/encoders/event"
	"parley.dev/pkg/encoders/filter"
	"parley.dev/pkg/encoders/filters"
	"parley.dev/pkg/encoders/kind"
	"parley.dev/pkg/encoders/kinds"
	"parley.dev/pkg/interfaces/signer"
	"parley.dev/pkg/memstore"
	"parley.dev/pkg/protocol/ws"
	"parley.dev/pkg/testrelay"
	"parley.dev/pkg/testutil"
	"parley.dev/pkg/utils/context"
)

func notesAt(
	t *testing.T, sign signer.I, times ...int64,
) (evs []*event.E) {
	t.Helper()
	for _, ts := range times {
		ev, err := testutil.TextNote(sign, ts, "synced")
		require.NoError(t, err)
		evs = append(evs, ev)
	}
	return
}

func textNoteFilter() *filter.F {
	f := filter.New()
	f.Kinds = kinds.New(kind.TextNote)
	return f
}

// S6: local = {1,2,3}, remote = {2,3,4,5}; a bidirectional sync leaves
// both with {1,2,3,4,5}.
func TestSyncBidirectional(t *testing.T) {
	c := context.Bg()
	sign, err := testutil.NewSigner()
	require.NoError(t, err)
	all := notesAt(t, sign, 1000, 2000, 3000, 4000, 5000)

	local := memstore.New()
	remote := memstore.New()
	for _, ev := range all[:3] {
		_, err := local.SaveEvent(c, ev)
		require.NoError(t, err)
	}
	for _, ev := range all[1:] {
		_, err := remote.SaveEvent(c, ev)
		require.NoError(t, err)
	}

	tr := testrelay.New(context.Bg(), remote)
	url, err := tr.Start()
	require.NoError(t, err)
	t.Cleanup(tr.Stop)

	ctx, cancel := context.Cancel(context.Bg())
	t.Cleanup(cancel)
	opts := ws.DefaultOptions()
	opts.Reconnect = false
	pool := ws.NewPool(ctx, local, &ws.PoolOptions{RelayOptions: opts})
	t.Cleanup(pool.Shutdown)
	added, err := pool.AddRelay(url, ws.FlagRead|ws.FlagWrite)
	require.NoError(t, err)
	require.True(t, added)
	waitConnected(t, pool)

	syncOpts := ws.DefaultSyncOptions()
	syncOpts.Direction = ws.SyncBoth
	rec, err := pool.Sync(ctx, textNoteFilter(), syncOpts)
	require.NoError(t, err)
	require.Empty(t, rec.SendFailures)
	require.Len(t, rec.LocalMissing, 2)
	require.Len(t, rec.RemoteMissing, 1)

	// give the uploaded event a moment to land
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		n, err := remote.CountEvents(c, filters.New(textNoteFilter()))
		require.NoError(t, err)
		if n == 5 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	for _, ev := range all {
		has, err := local.HasEvent(c, ev.ID)
		require.NoError(t, err)
		require.True(t, has, "local missing %s", ev.IDString())
		has, err = remote.HasEvent(c, ev.ID)
		require.NoError(t, err)
		require.True(t, has, "remote missing %s", ev.IDString())
	}
}

func TestSyncDryRunTransfersNothing(t *testing.T) {
	c := context.Bg()
	sign, _ := testutil.NewSigner()
	all := notesAt(t, sign, 100, 200)
	local := memstore.New()
	remote := memstore.New()
	_, err := local.SaveEvent(c, all[0])
	require.NoError(t, err)
	_, err = remote.SaveEvent(c, all[1])
	require.NoError(t, err)
	tr := testrelay.New(context.Bg(), remote)
	url, err := tr.Start()
	require.NoError(t, err)
	t.Cleanup(tr.Stop)
	ctx, cancel := context.Cancel(context.Bg())
	t.Cleanup(cancel)
	opts := ws.DefaultOptions()
	opts.Reconnect = false
	pool := ws.NewPool(ctx, local, &ws.PoolOptions{RelayOptions: opts})
	t.Cleanup(pool.Shutdown)
	_, err = pool.AddRelay(url, ws.FlagRead|ws.FlagWrite)
	require.NoError(t, err)
	waitConnected(t, pool)
	syncOpts := ws.DefaultSyncOptions()
	syncOpts.Direction = ws.SyncBoth
	syncOpts.DryRun = true
	rec, err := pool.Sync(ctx, textNoteFilter(), syncOpts)
	require.NoError(t, err)
	require.Len(t, rec.LocalMissing, 1)
	require.Len(t, rec.RemoteMissing, 1)
	has, err := local.HasEvent(c, all[1].ID)
	require.NoError(t, err)
	require.False(t, has)
	has, err = remote.HasEvent(c, all[0].ID)
	require.NoError(t, err)
	require.False(t, has)
}

func TestSyncIdenticalStoresIsANoop(t *testing.T) {
	c := context.Bg()
	sign, _ := testutil.NewSigner()
	all := notesAt(t, sign, 100, 200, 300)
	local := memstore.New()
	remote := memstore.New()
	for _, ev := range all {
		_, err := local.SaveEvent(c, ev)
		require.NoError(t, err)
		_, err = remote.SaveEvent(c, ev)
		require.NoError(t, err)
	}
	tr := testrelay.New(context.Bg(), remote)
	url, err := tr.Start()
	require.NoError(t, err)
	t.Cleanup(tr.Stop)
	ctx, cancel := context.Cancel(context.Bg())
	t.Cleanup(cancel)
	opts := ws.DefaultOptions()
	opts.Reconnect = false
	pool := ws.NewPool(ctx, local, &ws.PoolOptions{RelayOptions: opts})
	t.Cleanup(pool.Shutdown)
	_, err = pool.AddRelay(url, ws.FlagRead|ws.FlagWrite)
	require.NoError(t, err)
	waitConnected(t, pool)
	syncOpts := ws.DefaultSyncOptions()
	syncOpts.Direction = ws.SyncBoth
	rec, err := pool.Sync(ctx, textNoteFilter(), syncOpts)
	require.NoError(t, err)
	require.Empty(t, rec.LocalMissing)
	require.Empty(t, rec.RemoteMissing)
	require.Empty(t, rec.SendFailures)
}
