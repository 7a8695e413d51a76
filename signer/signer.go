// Package signer is the crypto adapter: deterministic hashing and
// signature sign/verify over message bytes. Key management is external;
// this package never persists or generates long-term keys.
package signer

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"errors"
)

// ErrInvalidSignature is returned when verification is syntactically
// impossible: wrong-length signature or malformed public key.
var ErrInvalidSignature = errors.New("signer: invalid signature")

// Digest is a 32-byte SHA-256 hash.
type Digest [32]byte

// Hash returns the SHA-256 digest of b.
func Hash(b []byte) Digest {
	return sha256.Sum256(b)
}

// GenerateKey returns a new ed25519 keypair, for tests and tooling that
// need to mint validator identities.
func GenerateKey() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(rand.Reader)
}

// Sign signs msg with priv.
func Sign(priv ed25519.PrivateKey, msg []byte) ([]byte, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, ErrInvalidSignature
	}
	return ed25519.Sign(priv, msg), nil
}

// Verify reports whether sig is a valid signature over msg under pub.
// It returns ErrInvalidSignature (rather than false) when verification
// is syntactically impossible.
func Verify(pub ed25519.PublicKey, msg, sig []byte) (bool, error) {
	if len(pub) != ed25519.PublicKeySize {
		return false, ErrInvalidSignature
	}
	if len(sig) != ed25519.SignatureSize {
		return false, ErrInvalidSignature
	}
	return ed25519.Verify(pub, msg, sig), nil
}
