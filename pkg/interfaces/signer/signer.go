// Package signer is the trait the core consumes for key operations. Key
// management itself is an external collaborator; the core only ever asks for
// the public key, a signature over an event id, and the ECDH shared secret
// that NIP-04/NIP-44 payload encryption derives from.
package signer

// I is the signing capability consumed by the core.
type I interface {
	// Generate creates a fresh keypair in the signer.
	Generate() (err error)
	// InitSec initializes the signer from raw secret key bytes.
	InitSec(sec []byte) (err error)
	// InitPub initializes a verify-only signer from an x-only pubkey.
	InitPub(pub []byte) (err error)
	// Sec returns the secret key bytes.
	Sec() (b []byte)
	// Pub returns the x-only public key bytes.
	Pub() (b []byte)
	// Sign produces a BIP-340 schnorr signature over a 32 byte message.
	Sign(msg []byte) (sig []byte, err error)
	// Verify checks a BIP-340 schnorr signature over a 32 byte message.
	Verify(msg, sig []byte) (valid bool, err error)
	// ECDH derives the shared secret with a peer x-only pubkey, as used by
	// the NIP-04 and NIP-44 payload encryption schemes.
	ECDH(pub []byte) (secret []byte, err error)
	// Zero wipes the secret key material.
	Zero()
}
