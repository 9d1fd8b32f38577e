package keystore

import (
	"errors"
	"fmt"
)

// ErrUnsupported signals a backend that is not available on this platform.
var ErrUnsupported = errors.New("secret store backend not supported on this platform")

// Open returns the Store named by backend and wraps it so that operations on
// one identifier are serialized. Recognised names are "memory", "keychain"
// (macOS only), "keyring", and "" for the platform default.
func Open(backend string, cfg KeyringConfig) (Store, error) {
	var (
		store Store
		err   error
	)
	switch backend {
	case "":
		store, err = platformDefault(cfg)
	case "memory":
		store = NewMemory()
	case "keychain":
		store, err = openKeychain(cfg)
	case "keyring":
		store, err = OpenKeyring(cfg)
	default:
		return nil, fmt.Errorf("unknown keystore backend %q", backend)
	}
	if err != nil {
		return nil, err
	}
	return NewSerialized(store), nil
}
