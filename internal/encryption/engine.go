// Package encryption seals and opens sensitive field content under the
// device key held by a keystore.Store.
package encryption

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/awnumar/memguard"

	"github.com/Hussein-Mazeh/atlas/internal/keystore"
	"github.com/Hussein-Mazeh/atlas/krypto"
)

var (
	// ErrKeyUnavailable reports that the key could not be loaded, provisioned or stored.
	ErrKeyUnavailable = errors.New("encryption key unavailable")
	// ErrCipherFailure reports a seal or open failure, including failed authentication.
	ErrCipherFailure = errors.New("cipher failure")
	// ErrEncodingFailure reports text that cannot be encoded as UTF-8.
	ErrEncodingFailure = errors.New("text is not valid UTF-8")
	// ErrDecodingFailure reports a record that decrypted correctly but is not UTF-8 text.
	ErrDecodingFailure = errors.New("decrypted content is not valid UTF-8")
)

// Engine orchestrates a key store and a cipher. All operations run under one
// mutex, so a Rekey can never interleave with an in-flight Encrypt or Decrypt
// on the same Engine.
type Engine struct {
	store  keystore.Store
	cipher krypto.Cipher
	keyID  string
	log    *slog.Logger

	mu        sync.Mutex
	available bool
}

// Option customises an Engine.
type Option func(*Engine)

// WithCipher selects the AEAD; AES-256-GCM is the default.
func WithCipher(c krypto.Cipher) Option {
	return func(e *Engine) { e.cipher = c }
}

// WithKeyID overrides keystore.DefaultKeyID.
func WithKeyID(id string) Option {
	return func(e *Engine) { e.keyID = id }
}

// WithLogger sets the structured logger. Key material is never logged.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// New returns an Engine over store. No key is provisioned until first use;
// availability is probed immediately.
func New(store keystore.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		cipher: krypto.AESGCM{},
		keyID:  keystore.DefaultKeyID,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With("component", "encryption", "key_id", e.keyID)
	e.Probe()
	return e
}

// IsEncryptionAvailable reports whether the last key-store interaction left a
// usable or provisionable key.
func (e *Engine) IsEncryptionAvailable() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.available
}

// Probe re-reads the key store and recomputes availability. A missing key
// counts as available because the next Encrypt provisions one.
func (e *Engine) Probe() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	key, err := e.store.Retrieve(e.keyID)
	switch {
	case err == nil:
		key.Destroy()
		e.available = true
	case errors.Is(err, keystore.ErrNotFound):
		e.available = true
	default:
		e.log.Warn("key store probe failed", "err", err)
		e.available = false
	}
	return e.available
}

// Encrypt seals plaintext, provisioning a new key first if none exists.
func (e *Engine) Encrypt(plaintext []byte) (krypto.EncryptedRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key, err := e.loadOrProvision()
	if err != nil {
		return krypto.EncryptedRecord{}, err
	}
	defer key.Destroy()

	rec, err := e.cipher.Seal(plaintext, key)
	if err != nil {
		return krypto.EncryptedRecord{}, fmt.Errorf("%w: seal: %w", ErrCipherFailure, err)
	}
	return rec, nil
}

// EncryptString seals the UTF-8 encoding of text.
func (e *Engine) EncryptString(text string) (krypto.EncryptedRecord, error) {
	if !utf8.ValidString(text) {
		return krypto.EncryptedRecord{}, ErrEncodingFailure
	}
	return e.Encrypt([]byte(text))
}

// Decrypt opens rec under the stored key. It never provisions a key: with no
// key present it fails with ErrKeyUnavailable rather than an authentication error.
func (e *Engine) Decrypt(rec krypto.EncryptedRecord) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key, err := e.load()
	if err != nil {
		return nil, err
	}
	defer key.Destroy()

	plaintext, err := e.opener(rec).Open(rec, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCipherFailure, err)
	}
	return plaintext, nil
}

// DecryptString opens rec and checks the plaintext is UTF-8 text.
func (e *Engine) DecryptString(rec krypto.EncryptedRecord) (string, error) {
	plaintext, err := e.Decrypt(rec)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(plaintext) {
		return "", ErrDecodingFailure
	}
	return string(plaintext), nil
}

// Reencrypt opens rec and seals the plaintext again under the current key
// and cipher with a fresh nonce. Callers migrate records this way before a
// Rekey or after switching cipher.
func (e *Engine) Reencrypt(rec krypto.EncryptedRecord) (krypto.EncryptedRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key, err := e.load()
	if err != nil {
		return krypto.EncryptedRecord{}, err
	}
	defer key.Destroy()

	plaintext, err := e.opener(rec).Open(rec, key)
	if err != nil {
		return krypto.EncryptedRecord{}, fmt.Errorf("%w: %w", ErrCipherFailure, err)
	}
	defer memguard.WipeBytes(plaintext)

	out, err := e.cipher.Seal(plaintext, key)
	if err != nil {
		return krypto.EncryptedRecord{}, fmt.Errorf("%w: seal: %w", ErrCipherFailure, err)
	}
	return out, nil
}

// Rekey replaces the stored key with a new one. Every record sealed under the
// previous key becomes permanently undecryptable; nothing is migrated.
func (e *Engine) Rekey() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	key, err := e.provision()
	if err != nil {
		return err
	}
	key.Destroy()
	e.log.Info("encryption key rotated")
	return nil
}

// ClearKey deletes the stored key. Existing records are lost for good and
// encryption stays unavailable until the next Encrypt or Rekey provisions a
// fresh key.
func (e *Engine) ClearKey() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.Delete(e.keyID); err != nil {
		e.log.Error("delete key failed", "err", err)
		return fmt.Errorf("%w: delete: %w", ErrKeyUnavailable, err)
	}
	e.available = false
	e.log.Info("encryption key destroyed")
	return nil
}

// load retrieves the current key without provisioning.
func (e *Engine) load() (*krypto.Key, error) {
	key, err := e.store.Retrieve(e.keyID)
	if err != nil {
		if !errors.Is(err, keystore.ErrNotFound) {
			e.available = false
			e.log.Error("retrieve key failed", "err", err)
		}
		return nil, fmt.Errorf("%w: %w", ErrKeyUnavailable, err)
	}
	e.available = true
	return key, nil
}

// loadOrProvision is the single place a missing key is recovered locally.
func (e *Engine) loadOrProvision() (*krypto.Key, error) {
	key, err := e.store.Retrieve(e.keyID)
	switch {
	case err == nil:
		e.available = true
		return key, nil
	case errors.Is(err, keystore.ErrNotFound):
		e.log.Info("no encryption key present, provisioning")
		return e.provision()
	default:
		e.available = false
		e.log.Error("retrieve key failed", "err", err)
		return nil, fmt.Errorf("%w: %w", ErrKeyUnavailable, err)
	}
}

func (e *Engine) provision() (*krypto.Key, error) {
	key, err := krypto.NewRandomKey()
	if err != nil {
		e.available = false
		return nil, fmt.Errorf("%w: %w", ErrKeyUnavailable, err)
	}
	if err := e.store.Store(e.keyID, key); err != nil {
		key.Destroy()
		e.available = false
		e.log.Error("store key failed", "err", err)
		return nil, fmt.Errorf("%w: %w", ErrKeyUnavailable, err)
	}
	e.available = true
	return key, nil
}

// opener picks the cipher named by the record's schema version, so records
// sealed before a cipher change still open. Unversioned or unknown records use
// the configured cipher.
func (e *Engine) opener(rec krypto.EncryptedRecord) krypto.Cipher {
	if rec.SchemaVersion == "" || rec.SchemaVersion == e.cipher.Version() {
		return e.cipher
	}
	if c, err := krypto.CipherFor(rec.SchemaVersion); err == nil {
		return c
	}
	return e.cipher
}
