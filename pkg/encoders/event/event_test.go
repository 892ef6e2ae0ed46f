package event_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"parley.dev/pkg/crypto/p256k"
	"parley.dev/pkg/encoders/event"
	"parley.dev/pkg/encoders/kind"
	"parley.dev/pkg/encoders/tag"
	"parley.dev/pkg/encoders/tags"
	"parley.dev/pkg/encoders/timestamp"
)

func newSigned(t *testing.T, content string, tt ...*tag.T) *event.E {
	t.Helper()
	sign := &p256k.Signer{}
	require.NoError(t, sign.Generate())
	ev := &event.E{
		CreatedAt: timestamp.FromUnix(1700000000),
		Kind:      kind.TextNote,
		Tags:      tags.New(tt...),
		Content:   []byte(content),
	}
	require.NoError(t, ev.Sign(sign))
	return ev
}

func TestSignVerify(t *testing.T) {
	ev := newSigned(t, "hello nostr")
	ok, err := ev.Verify()
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, ev.CheckID())
}

func TestVerifyRejectsTamperedContent(t *testing.T) {
	ev := newSigned(t, "original")
	ev.Content = []byte("tampered")
	ok, err := ev.Verify()
	require.False(t, ok && err == nil)
}

func TestCanonicalEscaping(t *testing.T) {
	ev := newSigned(t, "line\nbreak \"quote\" tab\there")
	// the canonical form must hash to the id the signature covers
	require.True(t, ev.CheckID())
	canonical := ev.ToCanonical(nil)
	require.NotContains(t, string(canonical), "\n")
	require.Contains(t, string(canonical), `\n`)
}

func TestJSONRoundTrip(t *testing.T) {
	ev := newSigned(
		t, "round trip", tag.New("t", "test"), tag.New("e",
			"5c83da77af1dec6d7289834998ad7aafbd9e2191396d75ec3cc27f5a77226f36"),
	)
	b := ev.Marshal(nil)
	decoded := event.New()
	_, err := decoded.Unmarshal(b)
	require.NoError(t, err)
	require.Equal(t, ev.ID, decoded.ID)
	require.Equal(t, ev.Pubkey, decoded.Pubkey)
	require.Equal(t, ev.CreatedAt.I64(), decoded.CreatedAt.I64())
	require.Equal(t, ev.Kind.K, decoded.Kind.K)
	require.True(t, ev.Tags.Equal(decoded.Tags))
	require.Equal(t, ev.Content, decoded.Content)
	require.Equal(t, ev.Sig, decoded.Sig)
	// re-marshalling produces identical bytes
	require.Equal(t, b, decoded.Marshal(nil))
}

func TestBinaryRoundTrip(t *testing.T) {
	ev := newSigned(t, "binary", tag.New("d", "x"), tag.New("t", "nostr"))
	buf := new(bytes.Buffer)
	ev.MarshalBinary(buf)
	decoded := event.New()
	require.NoError(t, decoded.UnmarshalBinary(buf))
	require.Equal(t, ev.Marshal(nil), decoded.Marshal(nil))
}

func TestExpiration(t *testing.T) {
	ev := newSigned(t, "expires", tag.New("expiration", "1700000100"))
	require.True(t, ev.IsExpired(timestamp.FromUnix(1700000100)))
	require.True(t, ev.IsExpired(timestamp.FromUnix(1800000000)))
	require.False(t, ev.IsExpired(timestamp.FromUnix(1700000099)))
	plain := newSigned(t, "no expiry")
	require.False(t, plain.IsExpired(timestamp.Now()))
}

func TestProtected(t *testing.T) {
	ev := newSigned(t, "protected", tag.New("-"))
	require.True(t, ev.IsProtected())
	require.False(t, newSigned(t, "open").IsProtected())
}

func TestPow(t *testing.T) {
	ev := newSigned(t, "pow")
	ev.ID = append([]byte{0, 0, 0x1f}, ev.ID[3:]...)
	require.Equal(t, 19, ev.Pow())
}
