package event

import (
	"bytes"
	"io"

	"parley.dev/pkg/encoders/eventid"
	"parley.dev/pkg/encoders/hex"
	"parley.dev/pkg/encoders/kind"
	"parley.dev/pkg/encoders/tags"
	"parley.dev/pkg/encoders/text"
	"parley.dev/pkg/encoders/timestamp"
	"parley.dev/pkg/utils/errorf"
)

var (
	jID        = []byte("id")
	jPubkey    = []byte("pubkey")
	jCreatedAt = []byte("created_at")
	jKind      = []byte("kind")
	jTags      = []byte("tags")
	jContent   = []byte("content")
	jSig       = []byte("sig")
)

func hexAppend(dst, src []byte) []byte { return hex.EncAppend(dst, src) }

// Marshal appends the minified wire JSON form of the event to dst.
func (ev *E) Marshal(dst []byte) (b []byte) {
	dst = append(dst, '{')
	dst = text.JSONKey(dst, jID)
	dst = text.AppendQuote(dst, ev.ID, hexAppend)
	dst = append(dst, ',')
	dst = text.JSONKey(dst, jPubkey)
	dst = text.AppendQuote(dst, ev.Pubkey, hexAppend)
	dst = append(dst, ',')
	dst = text.JSONKey(dst, jCreatedAt)
	dst = ev.CreatedAt.Marshal(dst)
	dst = append(dst, ',')
	dst = text.JSONKey(dst, jKind)
	dst = ev.Kind.Marshal(dst)
	dst = append(dst, ',')
	dst = text.JSONKey(dst, jTags)
	dst = ev.Tags.Marshal(dst)
	dst = append(dst, ',')
	dst = text.JSONKey(dst, jContent)
	dst = text.AppendQuote(dst, ev.Content, text.NostrEscape)
	dst = append(dst, ',')
	dst = text.JSONKey(dst, jSig)
	dst = text.AppendQuote(dst, ev.Sig, hexAppend)
	dst = append(dst, '}')
	b = dst
	return
}

// Unmarshal reads an event off the front of b, tolerating whitespace, and
// returns the remainder.
func (ev *E) Unmarshal(b []byte) (r []byte, err error) {
	key := make([]byte, 0, 10)
	r = b
	for ; len(r) > 0; r = r[1:] {
		if isWhitespace(r[0]) {
			continue
		}
		if r[0] == '{' {
			r = r[1:]
			goto BetweenKeys
		}
	}
	goto eof
BetweenKeys:
	for ; len(r) > 0; r = r[1:] {
		if isWhitespace(r[0]) {
			continue
		}
		if r[0] == '"' {
			r = r[1:]
			goto InKey
		}
	}
	goto eof
InKey:
	for ; len(r) > 0; r = r[1:] {
		if r[0] == '"' {
			r = r[1:]
			goto InKV
		}
		key = append(key, r[0])
	}
	goto eof
InKV:
	for ; len(r) > 0; r = r[1:] {
		if isWhitespace(r[0]) {
			continue
		}
		if r[0] == ':' {
			r = r[1:]
			goto InVal
		}
	}
	goto eof
InVal:
	for len(r) > 0 && isWhitespace(r[0]) {
		r = r[1:]
	}
	switch key[0] {
	case jID[0]:
		if !bytes.Equal(jID, key) {
			goto invalid
		}
		var id []byte
		if id, r, err = text.UnmarshalHex(r); err != nil {
			return
		}
		if len(id) != eventid.Len {
			err = errorf.D(
				"invalid id, require %d got %d", eventid.Len, len(id),
			)
			return
		}
		ev.ID = id
		goto BetweenKV
	case jPubkey[0]:
		if !bytes.Equal(jPubkey, key) {
			goto invalid
		}
		var pk []byte
		if pk, r, err = text.UnmarshalHex(r); err != nil {
			return
		}
		if len(pk) != 32 {
			err = errorf.D("invalid pubkey, require 32 got %d", len(pk))
			return
		}
		ev.Pubkey = pk
		goto BetweenKV
	case jKind[0]:
		if !bytes.Equal(jKind, key) {
			goto invalid
		}
		ev.Kind = kind.New(0)
		if r, err = ev.Kind.Unmarshal(r); err != nil {
			return
		}
		goto BetweenKV
	case jTags[0]:
		if !bytes.Equal(jTags, key) {
			goto invalid
		}
		ev.Tags = tags.New()
		if r, err = ev.Tags.Unmarshal(r); err != nil {
			return
		}
		goto BetweenKV
	case jSig[0]:
		if !bytes.Equal(jSig, key) {
			goto invalid
		}
		var sig []byte
		if sig, r, err = text.UnmarshalHex(r); err != nil {
			return
		}
		if len(sig) != 64 {
			err = errorf.D("invalid sig length, require 64 got %d", len(sig))
			return
		}
		ev.Sig = sig
		goto BetweenKV
	case jContent[0]:
		if key[1] == jContent[1] {
			if !bytes.Equal(jContent, key) {
				goto invalid
			}
			if ev.Content, r, err = text.UnmarshalQuoted(r); err != nil {
				return
			}
			goto BetweenKV
		} else if key[1] == jCreatedAt[1] {
			if !bytes.Equal(jCreatedAt, key) {
				goto invalid
			}
			ev.CreatedAt = timestamp.New()
			if r, err = ev.CreatedAt.Unmarshal(r); err != nil {
				return
			}
			goto BetweenKV
		} else {
			goto invalid
		}
	default:
		goto invalid
	}
BetweenKV:
	key = key[:0]
	for ; len(r) > 0; r = r[1:] {
		if isWhitespace(r[0]) {
			continue
		}
		switch {
		case r[0] == '}':
			r = r[1:]
			return
		case r[0] == ',':
			r = r[1:]
			goto BetweenKeys
		case r[0] == '"':
			r = r[1:]
			goto InKey
		}
	}
	goto eof
invalid:
	err = errorf.D("invalid key '%s' in event JSON '%s'", key, b)
	return
eof:
	err = io.EOF
	return
}

func isWhitespace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
