package krypto

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/awnumar/memguard"
)

// KeySize is the length in bytes of a data encryption key (256 bits).
const KeySize = 32

var (
	// ErrInvalidKeyLength reports key material that is not KeySize bytes.
	ErrInvalidKeyLength = errors.New("key must be 32 bytes")
	// ErrRandomSource reports a failure of the platform random number generator.
	ErrRandomSource = errors.New("random source failure")
)

// Key holds 256-bit key material in guarded, mlocked memory.
// A Key must be destroyed by whoever obtained it once the operation is done.
type Key struct {
	buf *memguard.LockedBuffer
}

// NewRandomKey draws a fresh key from crypto/rand directly into locked memory.
func NewRandomKey() (*Key, error) {
	buf := memguard.NewBuffer(KeySize)
	if _, err := io.ReadFull(rand.Reader, buf.Bytes()); err != nil {
		buf.Destroy()
		return nil, fmt.Errorf("%w: generate key: %v", ErrRandomSource, err)
	}
	buf.Freeze()
	return &Key{buf: buf}, nil
}

// KeyFromBytes moves raw key bytes into locked memory.
// The source slice is wiped whether or not the call succeeds.
func KeyFromBytes(raw []byte) (*Key, error) {
	if len(raw) != KeySize {
		memguard.WipeBytes(raw)
		return nil, ErrInvalidKeyLength
	}
	buf := memguard.NewBufferFromBytes(raw)
	buf.Freeze()
	return &Key{buf: buf}, nil
}

// Bytes exposes the key material. The slice is only valid until Destroy.
func (k *Key) Bytes() []byte {
	if k == nil || k.buf == nil {
		return nil
	}
	return k.buf.Bytes()
}

// Equal reports whether both keys hold the same material, in constant time.
func (k *Key) Equal(other *Key) bool {
	if k == nil || other == nil || !k.alive() || !other.alive() {
		return false
	}
	return k.buf.EqualTo(other.buf.Bytes())
}

// Destroy wipes the key and releases its locked pages. It is safe to call twice.
func (k *Key) Destroy() {
	if k == nil || k.buf == nil {
		return
	}
	k.buf.Destroy()
}

func (k *Key) alive() bool {
	return k.buf != nil && k.buf.IsAlive()
}
