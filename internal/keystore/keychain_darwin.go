//go:build darwin

package keystore

import (
	"bytes"
	"errors"

	"github.com/awnumar/memguard"
	keychain "github.com/keybase/go-keychain"

	"github.com/Hussein-Mazeh/atlas/krypto"
)

// Keychain stores keys as generic-password items in the macOS Keychain.
//
// Items are device-local (SynchronizableNo) and readable only while the
// device is unlocked (AccessibleWhenUnlockedThisDeviceOnly), so the key
// never migrates to another device through backups or iCloud.
type Keychain struct {
	service string
}

// NewKeychain returns a Keychain store under the given service name
// ("atlas" when empty).
func NewKeychain(service string) *Keychain {
	if service == "" {
		service = DefaultService
	}
	return &Keychain{service: service}
}

// Store adds the item, or updates it in place when it already exists.
// Both paths are single Keychain transactions.
func (k *Keychain) Store(id string, key *krypto.Key) error {
	if err := validID(id); err != nil {
		return err
	}
	data := bytes.Clone(key.Bytes())
	defer memguard.WipeBytes(data)

	item := keychain.NewGenericPassword(k.service, id, itemLabel, data, "")
	item.SetSynchronizable(keychain.SynchronizableNo)
	item.SetAccessible(keychain.AccessibleWhenUnlockedThisDeviceOnly)

	err := keychain.AddItem(item)
	if err == nil {
		return nil
	}
	if !errors.Is(err, keychain.ErrorDuplicateItem) {
		return keychainError("store", err)
	}

	query := keychain.NewGenericPassword(k.service, id, "", nil, "")
	update := keychain.NewItem()
	update.SetData(data)
	if err := keychain.UpdateItem(query, update); err != nil {
		return keychainError("update", err)
	}
	return nil
}

func (k *Keychain) Retrieve(id string) (*krypto.Key, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	data, err := keychain.GetGenericPassword(k.service, id, "", "")
	if err != nil {
		if errors.Is(err, keychain.ErrorItemNotFound) {
			return nil, ErrNotFound
		}
		return nil, keychainError("retrieve", err)
	}
	if data == nil {
		return nil, ErrNotFound
	}
	return keyFromStored(data)
}

func (k *Keychain) Delete(id string) error {
	if err := validID(id); err != nil {
		return err
	}
	query := keychain.NewGenericPassword(k.service, id, "", nil, "")
	if err := keychain.DeleteItem(query); err != nil && !errors.Is(err, keychain.ErrorItemNotFound) {
		return keychainError("delete", err)
	}
	return nil
}

func keychainError(op string, err error) error {
	code := -1
	var kerr keychain.Error
	if errors.As(err, &kerr) {
		code = int(kerr)
	}
	return &PersistenceError{Op: op, Code: code, Err: err}
}
