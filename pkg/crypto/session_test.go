package crypto

import (
	"bytes"
	"testing"
)

func newPair(t *testing.T) (*SessionStore, *SessionStore) {
	t.Helper()

	aliceID, err := NewIdentity()
	if err != nil {
		t.Fatalf("NewIdentity() error = %v", err)
	}
	bobID, err := NewIdentity()
	if err != nil {
		t.Fatalf("NewIdentity() error = %v", err)
	}

	alice := NewSessionStore(aliceID)
	bob := NewSessionStore(bobID)

	if err := alice.AddPeerKey("BBBBBBBB", bobID.CombinedPublicKey()); err != nil {
		t.Fatalf("AddPeerKey() error = %v", err)
	}
	if err := bob.AddPeerKey("AAAAAAAA", aliceID.CombinedPublicKey()); err != nil {
		t.Fatalf("AddPeerKey() error = %v", err)
	}

	return alice, bob
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	alice, bob := newPair(t)

	plaintexts := [][]byte{
		[]byte("secret"),
		[]byte(""),
		bytes.Repeat([]byte{0x00}, 1024),
	}

	for _, plaintext := range plaintexts {
		box, err := alice.Encrypt(plaintext, "BBBBBBBB")
		if err != nil {
			t.Fatalf("Encrypt() error = %v", err)
		}
		if bytes.Contains(box, []byte("secret")) {
			t.Errorf("ciphertext leaks plaintext")
		}

		out, err := bob.Decrypt(box, "AAAAAAAA")
		if err != nil {
			t.Fatalf("Decrypt() error = %v", err)
		}
		if !bytes.Equal(out, plaintext) {
			t.Errorf("Decrypt(Encrypt(m)) != m")
		}
	}
}

func TestDecryptWrongKeyFails(t *testing.T) {
	alice, _ := newPair(t)

	eveID, err := NewIdentity()
	if err != nil {
		t.Fatalf("NewIdentity() error = %v", err)
	}
	eve := NewSessionStore(eveID)
	if err := eve.AddPeerKey("AAAAAAAA", mustIdentity(t).CombinedPublicKey()); err != nil {
		t.Fatalf("AddPeerKey() error = %v", err)
	}

	box, err := alice.Encrypt([]byte("secret"), "BBBBBBBB")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	if _, err := eve.Decrypt(box, "AAAAAAAA"); err != ErrDecryptionFailed {
		t.Errorf("Decrypt() with wrong key error = %v, want %v", err, ErrDecryptionFailed)
	}
}

func TestDecryptHostileInputs(t *testing.T) {
	alice, _ := newPair(t)

	tests := []struct {
		name string
		box  []byte
	}{
		{"empty", nil},
		{"shorter than nonce", []byte{1, 2, 3}},
		{"nonce only", make([]byte, 12)},
		{"garbage tag", make([]byte, 64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := alice.Decrypt(tt.box, "BBBBBBBB"); err != ErrDecryptionFailed {
				t.Errorf("Decrypt() error = %v, want %v", err, ErrDecryptionFailed)
			}
		})
	}
}

func TestEncryptWithoutHandshake(t *testing.T) {
	store := NewSessionStore(mustIdentity(t))
	if _, err := store.Encrypt([]byte("hi"), "CCCCCCCC"); err != ErrNoSharedSecret {
		t.Errorf("Encrypt() error = %v, want %v", err, ErrNoSharedSecret)
	}
	if _, err := store.Decrypt(make([]byte, 32), "CCCCCCCC"); err != ErrDecryptionFailed {
		t.Errorf("Decrypt() error = %v, want %v", err, ErrDecryptionFailed)
	}
}

func TestSharedSecretSymmetry(t *testing.T) {
	aliceID := mustIdentity(t)
	bobID := mustIdentity(t)

	alice := NewSessionStore(aliceID)
	bob := NewSessionStore(bobID)
	alice.AddPeerKey("B", bobID.CombinedPublicKey())
	bob.AddPeerKey("A", aliceID.CombinedPublicKey())

	if alice.peers["B"].SymmetricKey != bob.peers["A"].SymmetricKey {
		t.Errorf("derived keys differ between the two sides")
	}
}

func TestHandshakeIdempotence(t *testing.T) {
	aliceID := mustIdentity(t)
	store := NewSessionStore(mustIdentity(t))

	if err := store.AddPeerKey("AAAAAAAA", aliceID.CombinedPublicKey()); err != nil {
		t.Fatalf("AddPeerKey() error = %v", err)
	}
	first := store.peers["AAAAAAAA"].SymmetricKey

	// A second handshake, even with different key material, must not
	// rotate the established key.
	otherID := mustIdentity(t)
	if err := store.AddPeerKey("AAAAAAAA", otherID.CombinedPublicKey()); err != nil {
		t.Fatalf("AddPeerKey() error = %v", err)
	}

	if store.peers["AAAAAAAA"].SymmetricKey != first {
		t.Errorf("repeated KEY_EXCHANGE rotated an established key")
	}
}

func TestAddPeerKeyBadLength(t *testing.T) {
	store := NewSessionStore(mustIdentity(t))
	if err := store.AddPeerKey("X", make([]byte, 95)); err != ErrBadKeyLength {
		t.Errorf("AddPeerKey() error = %v, want %v", err, ErrBadKeyLength)
	}
}

func TestSignVerify(t *testing.T) {
	aliceID := mustIdentity(t)
	bob := NewSessionStore(mustIdentity(t))
	bob.AddPeerKey("AAAAAAAA", aliceID.CombinedPublicKey())

	data := []byte("payload bytes as on the wire")
	sig := aliceID.Sign(data)

	if !bob.Verify(data, sig, "AAAAAAAA") {
		t.Errorf("Verify() = false for a valid signature")
	}
	if bob.Verify([]byte("tampered"), sig, "AAAAAAAA") {
		t.Errorf("Verify() = true for tampered data")
	}
	if bob.Verify(data, sig, "UNKNOWN") {
		t.Errorf("Verify() = true for an unknown peer")
	}
	if bob.Verify(data, sig[:32], "AAAAAAAA") {
		t.Errorf("Verify() = true for a short signature")
	}

	// A signature from a different identity must not verify.
	mallory := mustIdentity(t)
	if bob.Verify(data, mallory.Sign(data), "AAAAAAAA") {
		t.Errorf("Verify() = true for a signature from the wrong key")
	}
}

func TestClearWipesKeys(t *testing.T) {
	store := NewSessionStore(mustIdentity(t))
	store.AddPeerKey("AAAAAAAA", mustIdentity(t).CombinedPublicKey())

	pk := store.peers["AAAAAAAA"]
	store.Clear()

	var zero [32]byte
	if pk.SymmetricKey != zero {
		t.Errorf("Clear() left key material behind")
	}
	if store.HasKey("AAAAAAAA") {
		t.Errorf("HasKey() = true after Clear()")
	}
}

func TestCombinedPublicKeyLayout(t *testing.T) {
	id := mustIdentity(t)
	combined := id.CombinedPublicKey()

	if len(combined) != 96 {
		t.Fatalf("CombinedPublicKey() length = %d, want 96", len(combined))
	}
	if !bytes.Equal(combined[0:32], id.X25519Public[:]) {
		t.Errorf("bytes 0..32 are not the x25519 public key")
	}
	if !bytes.Equal(combined[32:64], id.SigningPublic) {
		t.Errorf("bytes 32..64 are not the signing public key")
	}
	if !bytes.Equal(combined[64:96], id.IdentityPublic) {
		t.Errorf("bytes 64..96 are not the identity public key")
	}
}

func mustIdentity(t *testing.T) *Identity {
	t.Helper()
	id, err := NewIdentity()
	if err != nil {
		t.Fatalf("NewIdentity() error = %v", err)
	}
	return id
}
