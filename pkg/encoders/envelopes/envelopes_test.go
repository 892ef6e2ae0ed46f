package envelopes_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"parley.dev/pkg/encoders/envelopes"
	"parley.dev/pkg/encoders/envelopes/closedenvelope"
	"parley.dev/pkg/encoders/envelopes/eoseenvelope"
	"parley.dev/pkg/encoders/envelopes/eventenvelope"
	"parley.dev/pkg/encoders/envelopes/negentropyenvelope"
	"parley.dev/pkg/encoders/envelopes/okenvelope"
	"parley.dev/pkg/encoders/envelopes/reqenvelope"
	"parley.dev/pkg/encoders/filter"
	"parley.dev/pkg/encoders/filters"
	"parley.dev/pkg/encoders/kind"
	"parley.dev/pkg/encoders/kinds"
	"parley.dev/pkg/encoders/subscription"
	"parley.dev/pkg/testutil"
)

func TestIdentify(t *testing.T) {
	label, rem, err := envelopes.Identify(
		[]byte(`["EOSE","sub1"]`),
	)
	require.NoError(t, err)
	require.Equal(t, "EOSE", label)
	env, _, err := eoseenvelope.Parse(rem)
	require.NoError(t, err)
	require.Equal(t, "sub1", env.Subscription.String())
}

func TestEventResultRoundTrip(t *testing.T) {
	sign, err := testutil.NewSigner()
	require.NoError(t, err)
	ev, err := testutil.TextNote(sign, 12345, "envelope me")
	require.NoError(t, err)
	env := eventenvelope.NewResultWith(subscription.NewId("abc"), ev)
	b := env.Marshal(nil)
	label, rem, err := envelopes.Identify(b)
	require.NoError(t, err)
	require.Equal(t, eventenvelope.L, label)
	decoded, _, err := eventenvelope.ParseResult(rem)
	require.NoError(t, err)
	require.Equal(t, "abc", decoded.Subscription.String())
	require.Equal(t, ev.Marshal(nil), decoded.Event.Marshal(nil))
}

func TestReqRoundTrip(t *testing.T) {
	f := filter.New()
	f.Kinds = kinds.New(kind.TextNote)
	env := reqenvelope.NewFrom(
		subscription.NewId("sub"), filters.New(f),
	)
	b := env.Marshal(nil)
	label, rem, err := envelopes.Identify(b)
	require.NoError(t, err)
	require.Equal(t, reqenvelope.L, label)
	decoded, _, err := reqenvelope.Parse(rem)
	require.NoError(t, err)
	require.Equal(t, "sub", decoded.Subscription.String())
	require.Equal(t, 1, decoded.Filters.Len())
	require.Equal(t, f.Marshal(nil), decoded.Filters.F[0].Marshal(nil))
}

func TestOkRoundTrip(t *testing.T) {
	id := make([]byte, 32)
	id[0] = 0xab
	env := okenvelope.NewFrom(id, false, []byte("blocked: no thanks"))
	b := env.Marshal(nil)
	label, rem, err := envelopes.Identify(b)
	require.NoError(t, err)
	require.Equal(t, okenvelope.L, label)
	decoded, _, err := okenvelope.Parse(rem)
	require.NoError(t, err)
	require.False(t, decoded.OK)
	require.Equal(t, id, decoded.EventID.Bytes())
	require.Equal(t, "blocked: no thanks", decoded.ReasonString())
}

func TestClosedRoundTrip(t *testing.T) {
	env := closedenvelope.NewFrom(
		subscription.NewId("s"), []byte("auth-required: do auth"),
	)
	b := env.Marshal(nil)
	label, rem, err := envelopes.Identify(b)
	require.NoError(t, err)
	require.Equal(t, closedenvelope.L, label)
	decoded, _, err := closedenvelope.Parse(rem)
	require.NoError(t, err)
	require.Equal(t, "auth-required: do auth", decoded.ReasonString())
}

func TestNegMsgRoundTrip(t *testing.T) {
	payload := []byte{0x61, 0x00, 0x01, 0xfe}
	env := negentropyenvelope.NewMsgFrom(subscription.NewId("n"), payload)
	b := env.Marshal(nil)
	label, rem, err := envelopes.Identify(b)
	require.NoError(t, err)
	require.Equal(t, negentropyenvelope.MsgLabel, label)
	decoded, _, err := negentropyenvelope.ParseMsg(rem)
	require.NoError(t, err)
	require.Equal(t, payload, decoded.Message)
}
