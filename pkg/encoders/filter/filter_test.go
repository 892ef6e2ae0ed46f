package filter_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"parley.dev/pkg/crypto/p256k"
	"parley.dev/pkg/encoders/event"
	"parley.dev/pkg/encoders/filter"
	"parley.dev/pkg/encoders/kind"
	"parley.dev/pkg/encoders/kinds"
	"parley.dev/pkg/encoders/tag"
	"parley.dev/pkg/encoders/tags"
	"parley.dev/pkg/encoders/timestamp"
)

func signedAt(t *testing.T, ts int64, tt ...*tag.T) *event.E {
	t.Helper()
	sign := &p256k.Signer{}
	require.NoError(t, sign.Generate())
	ev := &event.E{
		CreatedAt: timestamp.FromUnix(ts),
		Kind:      kind.TextNote,
		Tags:      tags.New(tt...),
		Content:   []byte("x"),
	}
	require.NoError(t, ev.Sign(sign))
	return ev
}

func TestMatchesEmptyFilter(t *testing.T) {
	require.True(t, filter.New().Matches(signedAt(t, 100)))
}

func TestMatchesKindsAndAuthors(t *testing.T) {
	ev := signedAt(t, 100)
	f := filter.New()
	f.Kinds = kinds.New(kind.TextNote)
	require.True(t, f.Matches(ev))
	f.Kinds = kinds.New(kind.ProfileMetadata)
	require.False(t, f.Matches(ev))
	f = filter.New()
	f.Authors = tag.FromBytesSlice(ev.Pubkey)
	require.True(t, f.Matches(ev))
	f.Authors = tag.FromBytesSlice(make([]byte, 32))
	require.False(t, f.Matches(ev))
}

func TestMatchesTimeBoundsInclusive(t *testing.T) {
	ev := signedAt(t, 100)
	f := filter.New()
	f.Since = timestamp.FromUnix(100)
	f.Until = timestamp.FromUnix(100)
	require.True(t, f.Matches(ev))
	f.Since = timestamp.FromUnix(101)
	require.False(t, f.Matches(ev))
	f.Since = timestamp.FromUnix(50)
	f.Until = timestamp.FromUnix(99)
	require.False(t, f.Matches(ev))
}

func TestMatchesGenericTags(t *testing.T) {
	ev := signedAt(t, 100, tag.New("t", "rust"), tag.New("t", "relay"))
	f := filter.New()
	f.Tags.AppendTags(tag.New("#t", "rust"))
	require.True(t, f.Matches(ev))
	f = filter.New()
	f.Tags.AppendTags(tag.New("#t", "nostr"))
	require.False(t, f.Matches(ev))
	// intra-field OR
	f = filter.New()
	f.Tags.AppendTags(tag.New("#t", "nostr", "relay"))
	require.True(t, f.Matches(ev))
	// inter-field AND
	f = filter.New()
	f.Tags.AppendTags(tag.New("#t", "rust"))
	f.Kinds = kinds.New(kind.ProfileMetadata)
	require.False(t, f.Matches(ev))
}

func TestMatchesIgnoringTimestamp(t *testing.T) {
	ev := signedAt(t, 100)
	f := filter.New()
	f.Until = timestamp.FromUnix(50)
	require.False(t, f.Matches(ev))
	require.True(t, f.MatchesIgnoringTimestamp(ev))
}

func TestJSONRoundTrip(t *testing.T) {
	f := filter.New()
	f.Kinds = kinds.New(kind.TextNote, kind.Repost)
	f.Since = timestamp.FromUnix(1000)
	f.Until = timestamp.FromUnix(2000)
	lim := uint(10)
	f.Limit = &lim
	f.Tags.AppendTags(tag.New("#t", "nostr"))
	b := f.Marshal(nil)
	decoded := filter.New()
	_, err := decoded.Unmarshal(b)
	require.NoError(t, err)
	require.Equal(t, b, decoded.Marshal(nil))
}

func TestFingerprintIgnoresLimit(t *testing.T) {
	f1 := filter.New()
	f1.Kinds = kinds.New(kind.TextNote)
	f2 := f1.Clone()
	lim := uint(5)
	f2.Limit = &lim
	require.Equal(t, f1.Fingerprint(), f2.Fingerprint())
}

func TestFingerprintOrderIndependent(t *testing.T) {
	f1 := filter.New()
	f1.Kinds = kinds.New(kind.Repost, kind.TextNote)
	f2 := filter.New()
	f2.Kinds = kinds.New(kind.TextNote, kind.Repost)
	require.Equal(t, f1.Fingerprint(), f2.Fingerprint())
}
