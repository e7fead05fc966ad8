package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

var (
	ErrNoSharedSecret   = errors.New("no shared secret for peer")
	ErrBadKeyLength     = errors.New("combined public key must be 96 bytes")
	ErrDecryptionFailed = errors.New("decryption failed")
	ErrEncryptionFailed = errors.New("encryption failed")
)

// HKDF salt pinning the derivation to this protocol version.
const hkdfSalt = "bitchat-v1"

// PeerKeys holds everything learned about a peer through the handshake.
type PeerKeys struct {
	X25519Public   [32]byte
	SigningPublic  [32]byte
	IdentityPublic [32]byte
	SymmetricKey   [32]byte
}

// SessionStore maps peer ids to their public keys and the derived
// AES-256-GCM session key. The mesh coordinator owns the store and drives
// all mutations from its event loop; the mutex covers read-only queries
// from the facade and control API.
type SessionStore struct {
	mu       sync.RWMutex
	identity *Identity
	peers    map[string]*PeerKeys
}

// NewSessionStore creates a store bound to the node's identity.
func NewSessionStore(identity *Identity) *SessionStore {
	return &SessionStore{
		identity: identity,
		peers:    make(map[string]*PeerKeys),
	}
}

// AddPeerKey records a peer's combined public key and derives the shared
// session key. Repeated handshakes from the same peer do not rotate an
// already-established key.
func (s *SessionStore) AddPeerKey(peerID string, combined []byte) error {
	if len(combined) != 96 {
		return ErrBadKeyLength
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.peers[peerID]; exists {
		return nil
	}

	pk := &PeerKeys{}
	copy(pk.X25519Public[:], combined[0:32])
	copy(pk.SigningPublic[:], combined[32:64])
	copy(pk.IdentityPublic[:], combined[64:96])

	shared, err := curve25519.X25519(s.identity.x25519Private[:], pk.X25519Public[:])
	if err != nil {
		return fmt.Errorf("x25519 agreement: %w", err)
	}

	kdf := hkdf.New(sha256.New, shared, []byte(hkdfSalt), nil)
	if _, err := kdf.Read(pk.SymmetricKey[:]); err != nil {
		return fmt.Errorf("hkdf derivation: %w", err)
	}

	s.peers[peerID] = pk
	return nil
}

// HasKey reports whether the handshake with a peer completed.
func (s *SessionStore) HasKey(peerID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.peers[peerID]
	return ok
}

// Encrypt seals plaintext for a peer: nonce || ciphertext || tag with a
// fresh 96-bit random nonce.
func (s *SessionStore) Encrypt(plaintext []byte, peerID string) ([]byte, error) {
	s.mu.RLock()
	pk, ok := s.peers[peerID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNoSharedSecret
	}

	gcm, err := newGCM(pk.SymmetricKey[:])
	if err != nil {
		return nil, ErrEncryptionFailed
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, ErrEncryptionFailed
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a nonce || ciphertext || tag box from a peer.
func (s *SessionStore) Decrypt(box []byte, peerID string) ([]byte, error) {
	s.mu.RLock()
	pk, ok := s.peers[peerID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrDecryptionFailed
	}

	gcm, err := newGCM(pk.SymmetricKey[:])
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	if len(box) < gcm.NonceSize() {
		return nil, ErrDecryptionFailed
	}
	nonce, ciphertext := box[:gcm.NonceSize()], box[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// Verify checks an Ed25519 signature against the peer's signing key. An
// unknown peer verifies as false rather than crashing.
func (s *SessionStore) Verify(data, signature []byte, peerID string) bool {
	s.mu.RLock()
	pk, ok := s.peers[peerID]
	s.mu.RUnlock()
	if !ok || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pk.SigningPublic[:], data, signature)
}

// Remove forgets a peer's keys.
func (s *SessionStore) Remove(peerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, peerID)
}

// Clear wipes every derived key and forgets all peers.
func (s *SessionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pk := range s.peers {
		for i := range pk.SymmetricKey {
			pk.SymmetricKey[i] = 0
		}
	}
	s.peers = make(map[string]*PeerKeys)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
