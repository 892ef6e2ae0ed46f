// Package event provides the codec for nostr events: the wire JSON format
// (with id and signature), the canonical form that is hashed to derive the
// id, and a compact binary form used as the stored blob.
package event

import (
	"github.com/minio/sha256-simd"

	"parley.dev/pkg/encoders/eventid"
	"parley.dev/pkg/encoders/hex"
	"parley.dev/pkg/encoders/kind"
	"parley.dev/pkg/encoders/tags"
	"parley.dev/pkg/encoders/timestamp"
)

// E is the primary datatype of nostr. Events are immutable once signed;
// everything in the core passes them by pointer and never mutates them.
type E struct {

	// ID is the SHA256 hash of the canonical encoding of the event.
	ID []byte

	// Pubkey is the x-only public key of the event creator.
	Pubkey []byte

	// CreatedAt is the UNIX timestamp asserted by the event creator; it is
	// preserved as received, past or future.
	CreatedAt *timestamp.T

	// Kind is the protocol code for the type of event.
	Kind *kind.T

	// Tags are an ordered list of tags; single-letter tag names are
	// indexable.
	Tags *tags.T

	// Content is an arbitrary string, its meaning governed by Kind.
	Content []byte

	// Sig is the BIP-340 signature over ID by Pubkey.
	Sig []byte
}

// New makes a new empty event.
func New() (ev *E) { return &E{Tags: tags.New()} }

// S is a slice of events that sorts newest first, ties broken ascending by
// id, the order of combined query results.
type S []*E

func (ev S) Len() int { return len(ev) }
func (ev S) Less(i, j int) bool {
	a, b := ev[i], ev[j]
	if a.CreatedAt.I64() != b.CreatedAt.I64() {
		return a.CreatedAt.I64() > b.CreatedAt.I64()
	}
	return string(a.ID) < string(b.ID)
}
func (ev S) Swap(i, j int) { ev[i], ev[j] = ev[j], ev[i] }

// C is a channel that carries events.
type C chan *E

// IDString returns the event ID as lowercase hex.
func (ev *E) IDString() (s string) { return hex.Enc(ev.ID) }

// EventID wraps the ID bytes as an eventid.T.
func (ev *E) EventID() *eventid.T { return eventid.NewWith(ev.ID) }

// PubKeyString returns the pubkey as lowercase hex.
func (ev *E) PubKeyString() (s string) { return hex.Enc(ev.Pubkey) }

// SigString returns the signature as lowercase hex.
func (ev *E) SigString() (s string) { return hex.Enc(ev.Sig) }

// ContentString returns the content as a string.
func (ev *E) ContentString() (s string) { return string(ev.Content) }

// Serialize renders the event as minified wire JSON.
func (ev *E) Serialize() (b []byte) { return ev.Marshal(nil) }

// Hash is a helper that returns a sha256 digest as a slice.
func Hash(in []byte) (out []byte) {
	h := sha256.Sum256(in)
	return h[:]
}
