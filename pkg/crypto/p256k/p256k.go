// Package p256k implements the signer.I interface with BIP-340 schnorr
// signatures over secp256k1 using the btcec library.
package p256k

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"parley.dev/pkg/interfaces/signer"
	"parley.dev/pkg/utils/chk"
	"parley.dev/pkg/utils/errorf"
)

// SecKeyLen and PubKeyLen are the raw key lengths.
const (
	SecKeyLen = 32
	PubKeyLen = 32
	SigLen    = 64
)

// Signer holds a secp256k1 keypair, or only a public key for verify-only
// use.
type Signer struct {
	sec *btcec.PrivateKey
	pub *btcec.PublicKey
	skb []byte
	pkb []byte
}

var _ signer.I = &Signer{}

// Generate creates a new keypair in the Signer.
func (s *Signer) Generate() (err error) {
	if s.sec, err = btcec.NewPrivateKey(); chk.E(err) {
		return
	}
	s.skb = s.sec.Serialize()
	s.pub = s.sec.PubKey()
	s.pkb = schnorr.SerializePubKey(s.pub)
	return
}

// InitSec initializes the Signer from raw secret key bytes.
func (s *Signer) InitSec(sec []byte) (err error) {
	if len(sec) != SecKeyLen {
		return errorf.E("sec key must be %d bytes, got %d", SecKeyLen, len(sec))
	}
	s.sec, s.pub = btcec.PrivKeyFromBytes(sec)
	s.skb = sec
	s.pkb = schnorr.SerializePubKey(s.pub)
	return
}

// InitPub initializes a verify-only Signer from an x-only public key.
func (s *Signer) InitPub(pub []byte) (err error) {
	if len(pub) != PubKeyLen {
		return errorf.E("pub key must be %d bytes, got %d", PubKeyLen, len(pub))
	}
	if s.pub, err = schnorr.ParsePubKey(pub); err != nil {
		return errorf.D("invalid public key: %v", err)
	}
	s.pkb = pub
	return
}

// Sec returns the secret key bytes.
func (s *Signer) Sec() []byte { return s.skb }

// Pub returns the x-only public key bytes.
func (s *Signer) Pub() []byte { return s.pkb }

// Sign produces a schnorr signature over a 32 byte message hash.
func (s *Signer) Sign(msg []byte) (sig []byte, err error) {
	if s.sec == nil {
		err = errorf.E("signer has no secret key")
		return
	}
	var ss *schnorr.Signature
	if ss, err = schnorr.Sign(s.sec, msg); chk.E(err) {
		return
	}
	sig = ss.Serialize()
	return
}

// Verify checks a schnorr signature over a 32 byte message hash.
func (s *Signer) Verify(msg, sig []byte) (valid bool, err error) {
	if s.pub == nil {
		err = errorf.E("signer has no public key")
		return
	}
	if len(sig) != SigLen {
		err = errorf.D("signature must be %d bytes, got %d", SigLen, len(sig))
		return
	}
	var ss *schnorr.Signature
	if ss, err = schnorr.ParseSignature(sig); err != nil {
		err = errorf.D("failed to parse signature: %v", err)
		return
	}
	valid = ss.Verify(msg, s.pub)
	return
}

// ECDH derives the x coordinate of the shared point with a peer x-only
// public key, the shared secret of NIP-04/NIP-44 encryption.
func (s *Signer) ECDH(pub []byte) (secret []byte, err error) {
	if s.sec == nil {
		err = errorf.E("signer has no secret key")
		return
	}
	var pk *btcec.PublicKey
	if pk, err = schnorr.ParsePubKey(pub); err != nil {
		err = errorf.D("invalid peer public key: %v", err)
		return
	}
	secret = btcec.GenerateSharedSecret(s.sec, pk)
	return
}

// Zero wipes the secret key material.
func (s *Signer) Zero() {
	if s.sec != nil {
		s.sec.Zero()
	}
	for i := range s.skb {
		s.skb[i] = 0
	}
}
