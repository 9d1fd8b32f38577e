// Package keystore persists the device-resident data encryption key in
// OS-protected secret storage.
//
// Every implementation keys entries by a fixed identifier string, replaces
// entries atomically, and treats deletion of a missing entry as success.
// Key bytes never appear in errors or log output.
package keystore

import (
	"errors"
	"fmt"

	"github.com/Hussein-Mazeh/atlas/krypto"
)

// DefaultKeyID is the identifier of the data encryption key.
const DefaultKeyID = "atlas.encryption.key"

// DefaultService scopes entries in the platform secret store.
const DefaultService = "atlas"

// itemLabel is the user-visible name of the entry in the platform store.
const itemLabel = "Atlas data encryption key"

var (
	// ErrNotFound reports that no entry exists for the identifier.
	ErrNotFound = errors.New("key not found")
	// ErrCorrupt reports stored bytes that are not a valid key.
	ErrCorrupt = errors.New("stored key is corrupt")
	// ErrPersistence is matched by every *PersistenceError.
	ErrPersistence = errors.New("secret store failure")
)

// Store holds one symmetric key per identifier.
type Store interface {
	// Store persists key under id, replacing any existing entry.
	// The caller keeps ownership of key.
	Store(id string, key *krypto.Key) error
	// Retrieve returns a new Key the caller must Destroy.
	Retrieve(id string) (*krypto.Key, error)
	// Delete removes the entry; a missing entry is not an error.
	Delete(id string) error
}

// PersistenceError wraps a platform secret-store failure.
// Code is the platform status (or -1 when the backend has none).
type PersistenceError struct {
	Op   string
	Code int
	Err  error
}

func (e *PersistenceError) Error() string {
	if e.Code == -1 {
		return fmt.Sprintf("keystore %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("keystore %s (code %d): %v", e.Op, e.Code, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrPersistence) match any PersistenceError.
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// validID rejects empty identifiers before they reach a platform API.
func validID(id string) error {
	if id == "" {
		return &PersistenceError{Op: "validate", Code: -1, Err: errors.New("identifier is required")}
	}
	return nil
}

// keyFromStored converts raw store bytes into a Key, mapping bad lengths to ErrCorrupt.
func keyFromStored(raw []byte) (*krypto.Key, error) {
	key, err := krypto.KeyFromBytes(raw)
	if err != nil {
		return nil, ErrCorrupt
	}
	return key, nil
}
