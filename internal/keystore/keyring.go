package keystore

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/99designs/keyring"

	"github.com/Hussein-Mazeh/atlas/krypto"
)

// KeyringConfig selects and configures the keyring backend.
type KeyringConfig struct {
	// ServiceName scopes entries; defaults to "atlas".
	ServiceName string
	// Backends restricts the backends tried, in order. Empty means the
	// platform defaults chosen by the keyring library.
	Backends []string
	// FileDir is where the encrypted file backend keeps its entries.
	FileDir string
	// FilePassword unlocks the encrypted file backend.
	FilePassword func(prompt string) (string, error)
}

// Keyring stores keys through github.com/99designs/keyring: the Secret
// Service, KWallet, Windows Credential Manager, kernel keyctl, pass, or a
// JWE-encrypted file as a last resort.
type Keyring struct {
	ring keyring.Keyring
}

// OpenKeyring opens the first usable backend allowed by cfg.
func OpenKeyring(cfg KeyringConfig) (*Keyring, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultService
	}

	kcfg := keyring.Config{
		ServiceName:                    cfg.ServiceName,
		KeychainSynchronizable:         false,
		KeychainAccessibleWhenUnlocked: true,
		KeyCtlScope:                    "user",
		LibSecretCollectionName:        "login",
		FileDir:                        cfg.FileDir,
	}
	if cfg.FilePassword != nil {
		kcfg.FilePasswordFunc = keyring.PromptFunc(cfg.FilePassword)
	}
	for _, name := range cfg.Backends {
		kcfg.AllowedBackends = append(kcfg.AllowedBackends, keyring.BackendType(name))
	}

	ring, err := keyring.Open(kcfg)
	if err != nil {
		return nil, &PersistenceError{Op: "open", Code: -1, Err: err}
	}
	return &Keyring{ring: ring}, nil
}

// NewKeyringFrom wraps an already opened keyring, such as keyring.NewArrayKeyring.
func NewKeyringFrom(ring keyring.Keyring) *Keyring {
	return &Keyring{ring: ring}
}

func (k *Keyring) Store(id string, key *krypto.Key) error {
	if err := validID(id); err != nil {
		return err
	}
	// Some backends keep the slice they are given, so it is not wiped here.
	err := k.ring.Set(keyring.Item{
		Key:                         id,
		Data:                        bytes.Clone(key.Bytes()),
		Label:                       itemLabel,
		Description:                 "device-local data encryption key",
		KeychainNotSynchronizable:   true,
		KeychainNotTrustApplication: false,
	})
	if err != nil {
		return &PersistenceError{Op: "store", Code: -1, Err: err}
	}
	return nil
}

func (k *Keyring) Retrieve(id string) (*krypto.Key, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	item, err := k.ring.Get(id)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, &PersistenceError{Op: "retrieve", Code: -1, Err: err}
	}
	return keyFromStored(bytes.Clone(item.Data))
}

func (k *Keyring) Delete(id string) error {
	if err := validID(id); err != nil {
		return err
	}
	err := k.ring.Remove(id)
	if err == nil || errors.Is(err, keyring.ErrKeyNotFound) || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return &PersistenceError{Op: "delete", Code: -1, Err: err}
}

// Backends lists the keyring backends usable on this host.
func Backends() []string {
	var out []string
	for _, b := range keyring.AvailableBackends() {
		out = append(out, string(b))
	}
	return out
}

func (k *Keyring) String() string {
	return fmt.Sprintf("keyring(%T)", k.ring)
}
