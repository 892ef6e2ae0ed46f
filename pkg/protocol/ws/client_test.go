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
	"parley.dev/pkg/testrelay"
	"parley.dev/pkg/testutil"
	"parley.dev/pkg/utils/context"
)

func startRelay(t *testing.T) (url string, tr *testrelay.T) {
	t.Helper()
	tr = testrelay.New(context.Bg(), memstore.New())
	url, err := tr.Start()
	require.NoError(t, err)
	t.Cleanup(tr.Stop)
	return
}

func connect(t *testing.T, url string) *ws.Client {
	t.Helper()
	c, cancel := context.Cancel(context.Bg())
	t.Cleanup(cancel)
	opts := ws.DefaultOptions()
	opts.Reconnect = false
	relay := ws.NewRelay(c, url, opts)
	require.NoError(t, relay.Connect(c))
	t.Cleanup(func() { _ = relay.Terminate() })
	return relay
}

func TestPublishAndFetch(t *testing.T) {
	url, tr := startRelay(t)
	relay := connect(t, url)
	require.Equal(t, ws.StatusConnected, relay.Status())
	sign, err := testutil.NewSigner()
	require.NoError(t, err)
	ev, err := testutil.TextNote(sign, time.Now().Unix(), "over the wire")
	require.NoError(t, err)
	c := context.Bg()
	require.NoError(t, relay.Publish(c, ev))
	// it landed in the relay's store
	has, err := tr.Store.HasEvent(c, ev.ID)
	require.NoError(t, err)
	require.True(t, has)
	f := filter.New()
	f.Kinds = kinds.New(kind.TextNote)
	evs, err := relay.FetchEvents(c, filters.New(f), 5*time.Second)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	require.Equal(t, ev.ID, evs[0].ID)
}

func TestPublishRejectedByPolicy(t *testing.T) {
	url, _ := startRelay(t)
	relay := connect(t, url)
	sign, _ := testutil.NewSigner()
	now := time.Now().Unix()
	newer, err := testutil.KindAt(sign, 0, now, "newer")
	require.NoError(t, err)
	older, err := testutil.KindAt(sign, 0, now-100, "older")
	require.NoError(t, err)
	c := context.Bg()
	require.NoError(t, relay.Publish(c, newer))
	err = relay.Publish(c, older)
	require.Error(t, err)
	require.Contains(t, err.Error(), "replaced")
}

func TestCountEvents(t *testing.T) {
	url, tr := startRelay(t)
	relay := connect(t, url)
	sign, _ := testutil.NewSigner()
	c := context.Bg()
	for i := int64(0); i < 3; i++ {
		ev, err := testutil.TextNote(sign, time.Now().Unix()+i, "n")
		require.NoError(t, err)
		_, err = tr.Store.SaveEvent(c, ev)
		require.NoError(t, err)
	}
	f := filter.New()
	f.Kinds = kinds.New(kind.TextNote)
	n, err := relay.CountEvents(c, f, 5*time.Second)
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
}

func TestSubscriptionReceivesLiveEvents(t *testing.T) {
	url, _ := startRelay(t)
	subscriber := connect(t, url)
	publisher := connect(t, url)
	c := context.Bg()
	f := filter.New()
	f.Kinds = kinds.New(kind.TextNote)
	sub, err := subscriber.Subscribe(c, filters.New(f), nil)
	require.NoError(t, err)
	defer sub.Unsub()
	select {
	case <-sub.EndOfStoredEvents:
	case <-time.After(5 * time.Second):
		t.Fatal("no EOSE")
	}
	sign, _ := testutil.NewSigner()
	ev, err := testutil.TextNote(sign, time.Now().Unix(), "live")
	require.NoError(t, err)
	require.NoError(t, publisher.Publish(c, ev))
	select {
	case got := <-sub.Events:
		require.Equal(t, ev.ID, got.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("live event not delivered")
	}
}

func TestUnsubscribeIdempotent(t *testing.T) {
	url, _ := startRelay(t)
	relay := connect(t, url)
	f := filter.New()
	f.Kinds = kinds.New(kind.TextNote)
	sub, err := relay.Subscribe(context.Bg(), filters.New(f), nil)
	require.NoError(t, err)
	sub.Unsub()
	sub.Unsub()
	relay.UnsubscribeAll()
}
