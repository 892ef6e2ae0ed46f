// Package testutil provides frand-driven generators for keys and events
// used across the package tests.
package testutil

import (
	"encoding/base64"

	"lukechampine.com/frand"

	"parley.dev/pkg/crypto/p256k"
	"parley.dev/pkg/encoders/event"
	"parley.dev/pkg/encoders/kind"
	"parley.dev/pkg/encoders/tag"
	"parley.dev/pkg/encoders/tags"
	"parley.dev/pkg/encoders/timestamp"
	"parley.dev/pkg/interfaces/signer"
	"parley.dev/pkg/utils/chk"
)

// NewSigner generates a fresh keypair.
func NewSigner() (s signer.I, err error) {
	sg := &p256k.Signer{}
	if err = sg.Generate(); chk.E(err) {
		return
	}
	s = sg
	return
}

// TextNote builds and signs a kind 1 event with the given timestamp and
// content.
func TextNote(
	sign signer.I, createdAt int64, content string, tt ...*tag.T,
) (ev *event.E, err error) {
	ev = &event.E{
		CreatedAt: timestamp.FromUnix(createdAt),
		Kind:      kind.TextNote,
		Tags:      tags.New(tt...),
		Content:   []byte(content),
	}
	err = ev.Sign(sign)
	return
}

// KindAt builds and signs an event of an arbitrary kind.
func KindAt(
	sign signer.I, k uint16, createdAt int64, content string, tt ...*tag.T,
) (ev *event.E, err error) {
	ev = &event.E{
		CreatedAt: timestamp.FromUnix(createdAt),
		Kind:      kind.New(k),
		Tags:      tags.New(tt...),
		Content:   []byte(content),
	}
	err = ev.Sign(sign)
	return
}

// RandomTextNote builds a random-content note up to maxSize bytes.
func RandomTextNote(sign signer.I, maxSize int) (ev *event.E, err error) {
	l := frand.Intn(maxSize * 6 / 8) // account for base64 expansion
	content := base64.StdEncoding.EncodeToString(frand.Bytes(l))
	return TextNote(sign, timestamp.Now().I64(), content)
}

// Deletion builds and signs a kind 5 event referencing event ids (hex) and
// coordinates.
func Deletion(
	sign signer.I, createdAt int64, eTagIds []string, aTags []string,
) (ev *event.E, err error) {
	tt := tags.New()
	for _, id := range eTagIds {
		tt.AppendTags(tag.New("e", id))
	}
	for _, a := range aTags {
		tt.AppendTags(tag.New("a", a))
	}
	ev = &event.E{
		CreatedAt: timestamp.FromUnix(createdAt),
		Kind:      kind.Deletion,
		Tags:      tt,
		Content:   []byte{},
	}
	err = ev.Sign(sign)
	return
}
