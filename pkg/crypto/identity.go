// Package crypto implements the node's key material and the per-peer
// session cryptography: X25519 agreement, HKDF-SHA256 key derivation,
// AES-256-GCM sealing and Ed25519 signatures.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/curve25519"
)

var ErrKeyGeneration = errors.New("key generation failed")

// Identity holds the node's session-ephemeral key material: an X25519
// agreement pair, an Ed25519 signing pair and an Ed25519 identity pair.
// All three are generated fresh at session start and wiped at stop.
type Identity struct {
	x25519Private [32]byte
	X25519Public  [32]byte

	signingPrivate ed25519.PrivateKey
	SigningPublic  ed25519.PublicKey

	identityPrivate ed25519.PrivateKey
	IdentityPublic  ed25519.PublicKey
}

// NewIdentity generates a fresh identity.
func NewIdentity() (*Identity, error) {
	id := &Identity{}

	if _, err := rand.Read(id.x25519Private[:]); err != nil {
		return nil, ErrKeyGeneration
	}
	pub, err := curve25519.X25519(id.x25519Private[:], curve25519.Basepoint)
	if err != nil {
		return nil, ErrKeyGeneration
	}
	copy(id.X25519Public[:], pub)

	id.SigningPublic, id.signingPrivate, err = ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, ErrKeyGeneration
	}

	id.IdentityPublic, id.identityPrivate, err = ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, ErrKeyGeneration
	}

	return id, nil
}

// CombinedPublicKey returns the 96-byte concatenation
// x25519 || signing || identity exchanged during the handshake.
func (id *Identity) CombinedPublicKey() []byte {
	combined := make([]byte, 0, 96)
	combined = append(combined, id.X25519Public[:]...)
	combined = append(combined, id.SigningPublic...)
	combined = append(combined, id.IdentityPublic...)
	return combined
}

// Sign signs data with the session signing key.
func (id *Identity) Sign(data []byte) []byte {
	return ed25519.Sign(id.signingPrivate, data)
}

// Wipe zeroes the private key material.
func (id *Identity) Wipe() {
	for i := range id.x25519Private {
		id.x25519Private[i] = 0
	}
	for i := range id.signingPrivate {
		id.signingPrivate[i] = 0
	}
	for i := range id.identityPrivate {
		id.identityPrivate[i] = 0
	}
}
