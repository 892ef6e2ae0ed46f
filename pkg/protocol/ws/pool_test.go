package ws_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"parley.dev/pkg/encoders/filter"
	"parley.dev/pkg/encoders/filters"
	"parley.dev/pkg/encoders/kind"
	"parley.dev/pkg/encoders/kinds"
	"parley.dev/pkg/memstore"
	"parley.dev/pkg/protocol/ws"
	"parley.dev/pkg/testutil"
	"parley.dev/pkg/utils/context"
)

func newPool(t *testing.T, urls ...string) *ws.Pool {
	t.Helper()
	c, cancel := context.Cancel(context.Bg())
	t.Cleanup(cancel)
	opts := ws.DefaultOptions()
	opts.Reconnect = false
	pool := ws.NewPool(c, memstore.New(), &ws.PoolOptions{
		RelayOptions: opts,
	})
	t.Cleanup(pool.Shutdown)
	for _, url := range urls {
		added, err := pool.AddRelay(
			url, ws.FlagRead|ws.FlagWrite,
		)
		require.NoError(t, err)
		require.True(t, added)
	}
	waitConnected(t, pool)
	return pool
}

func waitConnected(t *testing.T, pool *ws.Pool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		all := true
		for _, url := range pool.RelayURLs() {
			if r := pool.Relay(url); r == nil || !r.IsConnected() {
				all = false
			}
		}
		if all {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("relays did not connect")
}

func TestPoolSendEventFanOut(t *testing.T) {
	url1, tr1 := startRelay(t)
	url2, tr2 := startRelay(t)
	pool := newPool(t, url1, url2)
	sign, _ := testutil.NewSigner()
	ev, err := testutil.TextNote(sign, time.Now().Unix(), "fan out")
	require.NoError(t, err)
	out, err := pool.SendEvent(context.Bg(), ev)
	require.NoError(t, err)
	require.Len(t, out.Success, 2)
	require.Empty(t, out.Failed)
	has, err := tr1.Store.HasEvent(context.Bg(), ev.ID)
	require.NoError(t, err)
	require.True(t, has)
	has, err = tr2.Store.HasEvent(context.Bg(), ev.ID)
	require.NoError(t, err)
	require.True(t, has)
	// the local store got it too
	has, err = pool.Store().HasEvent(context.Bg(), ev.ID)
	require.NoError(t, err)
	require.True(t, has)
}

func TestPoolFetchMergesAndDedupes(t *testing.T) {
	url1, tr1 := startRelay(t)
	url2, tr2 := startRelay(t)
	pool := newPool(t, url1, url2)
	sign, _ := testutil.NewSigner()
	c := context.Bg()
	shared, err := testutil.TextNote(sign, 1000, "on both")
	require.NoError(t, err)
	only1, err := testutil.TextNote(sign, 2000, "on one")
	require.NoError(t, err)
	_, err = tr1.Store.SaveEvent(c, shared)
	require.NoError(t, err)
	_, err = tr2.Store.SaveEvent(c, shared)
	require.NoError(t, err)
	_, err = tr1.Store.SaveEvent(c, only1)
	require.NoError(t, err)
	f := filter.New()
	f.Kinds = kinds.New(kind.TextNote)
	evs, err := pool.FetchEvents(c, filters.New(f), 5*time.Second)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	// newest first
	require.Equal(t, only1.ID, evs[0].ID)
	require.Equal(t, shared.ID, evs[1].ID)
}

func TestAddRelayTwiceUpdatesFlags(t *testing.T) {
	url, _ := startRelay(t)
	pool := newPool(t, url)
	added, err := pool.AddRelay(url, ws.FlagDiscovery)
	require.NoError(t, err)
	require.False(t, added)
	r := pool.Relay(url)
	require.NotNil(t, r)
	require.True(t, r.Flags.Load().Has(ws.FlagRead))
	require.True(t, r.Flags.Load().Has(ws.FlagDiscovery))
}

func TestRemoveRelayRespectsInboxOutbox(t *testing.T) {
	url, _ := startRelay(t)
	pool := newPool(t, url)
	r := pool.Relay(url)
	r.Flags.Set(ws.FlagInbox)
	removed, err := pool.RemoveRelay(url)
	require.NoError(t, err)
	require.False(t, removed)
	// still present, but stripped of read/write
	r = pool.Relay(url)
	require.NotNil(t, r)
	require.False(t, r.Flags.Load().Has(ws.FlagRead))
	require.False(t, r.Flags.Load().Has(ws.FlagWrite))
	require.True(t, r.Flags.Load().Has(ws.FlagInbox))
	require.True(t, pool.ForceRemoveRelay(url))
	require.Nil(t, pool.Relay(url))
}

func TestMaxRelays(t *testing.T) {
	url1, _ := startRelay(t)
	url2, _ := startRelay(t)
	c, cancel := context.Cancel(context.Bg())
	t.Cleanup(cancel)
	opts := ws.DefaultOptions()
	opts.Reconnect = false
	pool := ws.NewPool(c, memstore.New(), &ws.PoolOptions{
		MaxRelays:    1,
		RelayOptions: opts,
	})
	t.Cleanup(pool.Shutdown)
	added, err := pool.AddRelay(url1, ws.FlagRead)
	require.NoError(t, err)
	require.True(t, added)
	_, err = pool.AddRelay(url2, ws.FlagRead)
	require.Error(t, err)
}

func TestPoolNotificationsCarryStatusChanges(t *testing.T) {
	url, _ := startRelay(t)
	c, cancel := context.Cancel(context.Bg())
	t.Cleanup(cancel)
	opts := ws.DefaultOptions()
	opts.Reconnect = false
	pool := ws.NewPool(c, memstore.New(), &ws.PoolOptions{
		RelayOptions: opts,
	})
	t.Cleanup(pool.Shutdown)
	notifications := pool.Notifications()
	_, err := pool.AddRelay(url, ws.FlagRead)
	require.NoError(t, err)
	deadline := time.After(10 * time.Second)
	for {
		select {
		case n := <-notifications:
			if sn, ok := n.(ws.RelayStatusNotification); ok &&
				sn.Status == ws.StatusConnected {
				return
			}
		case <-deadline:
			t.Fatal("no connected status notification")
		}
	}
}
