package krypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// NonceSize is the per-record nonce length shared by both AEADs.
	NonceSize = 12
	// TagSize is the authentication tag length shared by both AEADs.
	TagSize = 16

	// VersionAESGCM tags records sealed with AES-256-GCM.
	VersionAESGCM = "aes256gcm/v1"
	// VersionChaCha20Poly1305 tags records sealed with ChaCha20-Poly1305.
	VersionChaCha20Poly1305 = "chacha20poly1305/v1"
)

// ErrAuthenticationFailed is the only error Open reports for a record that does
// not verify. The cause (tampering, wrong key, corruption) is never revealed.
var ErrAuthenticationFailed = errors.New("message authentication failed")

// Cipher seals and opens EncryptedRecords under a Key.
type Cipher interface {
	Seal(plaintext []byte, key *Key) (EncryptedRecord, error)
	Open(rec EncryptedRecord, key *Key) ([]byte, error)
	Version() string
}

// AESGCM is the default Cipher: AES-256-GCM with a random 96-bit nonce.
type AESGCM struct{}

// Seal encrypts plaintext with AES-256-GCM, returning the nonce, ciphertext and tag separately.
func (AESGCM) Seal(plaintext []byte, key *Key) (EncryptedRecord, error) {
	aead, err := newAESGCM(key)
	if err != nil {
		return EncryptedRecord{}, err
	}
	return seal(aead, VersionAESGCM, plaintext)
}

// Open verifies and decrypts a record produced by Seal.
func (AESGCM) Open(rec EncryptedRecord, key *Key) ([]byte, error) {
	aead, err := newAESGCM(key)
	if err != nil {
		return nil, err
	}
	return open(aead, VersionAESGCM, rec)
}

// Version returns the schema tag written into sealed records.
func (AESGCM) Version() string { return VersionAESGCM }

// ChaCha20Poly1305 is the RFC 8439 AEAD, for hosts without AES acceleration.
type ChaCha20Poly1305 struct{}

// Seal encrypts plaintext with ChaCha20-Poly1305.
func (ChaCha20Poly1305) Seal(plaintext []byte, key *Key) (EncryptedRecord, error) {
	aead, err := newChaCha(key)
	if err != nil {
		return EncryptedRecord{}, err
	}
	return seal(aead, VersionChaCha20Poly1305, plaintext)
}

// Open verifies and decrypts a record produced by Seal.
func (ChaCha20Poly1305) Open(rec EncryptedRecord, key *Key) ([]byte, error) {
	aead, err := newChaCha(key)
	if err != nil {
		return nil, err
	}
	return open(aead, VersionChaCha20Poly1305, rec)
}

// Version returns the schema tag written into sealed records.
func (ChaCha20Poly1305) Version() string { return VersionChaCha20Poly1305 }

// CipherFor resolves a schema version (or its short name) to a Cipher.
func CipherFor(name string) (Cipher, error) {
	switch name {
	case "", "aes", "aes-gcm", VersionAESGCM:
		return AESGCM{}, nil
	case "chacha", "chacha20poly1305", VersionChaCha20Poly1305:
		return ChaCha20Poly1305{}, nil
	default:
		return nil, fmt.Errorf("unknown cipher %q", name)
	}
}

func newAESGCM(key *Key) (cipher.AEAD, error) {
	raw := key.Bytes()
	if len(raw) != KeySize {
		return nil, ErrInvalidKeyLength
	}
	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

func newChaCha(key *Key) (cipher.AEAD, error) {
	raw := key.Bytes()
	if len(raw) != KeySize {
		return nil, ErrInvalidKeyLength
	}
	aead, err := chacha20poly1305.New(raw)
	if err != nil {
		return nil, fmt.Errorf("create chacha20poly1305: %w", err)
	}
	return aead, nil
}

// seal binds the schema version as associated data so a relabelled record fails to open.
func seal(aead cipher.AEAD, version string, plaintext []byte) (EncryptedRecord, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return EncryptedRecord{}, fmt.Errorf("%w: generate nonce: %v", ErrRandomSource, err)
	}

	sealed := aead.Seal(nil, nonce, plaintext, []byte(version))
	split := len(sealed) - TagSize

	return EncryptedRecord{
		Ciphertext:    sealed[:split:split],
		Nonce:         nonce,
		Tag:           sealed[split:],
		SchemaVersion: version,
	}, nil
}

func open(aead cipher.AEAD, version string, rec EncryptedRecord) ([]byte, error) {
	if rec.SchemaVersion != "" && rec.SchemaVersion != version {
		return nil, ErrAuthenticationFailed
	}
	if len(rec.Nonce) != NonceSize || len(rec.Tag) != TagSize {
		return nil, ErrAuthenticationFailed
	}

	sealed := make([]byte, 0, len(rec.Ciphertext)+TagSize)
	sealed = append(sealed, rec.Ciphertext...)
	sealed = append(sealed, rec.Tag...)

	plaintext, err := aead.Open(nil, rec.Nonce, sealed, []byte(version))
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}
