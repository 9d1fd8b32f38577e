package krypto

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// SaltLengthBytes is the salt length used for passcode verifiers.
const SaltLengthBytes = 16

// Argon2Params captures tunable parameters for Argon2id.
type Argon2Params struct {
	MemoryMB    uint32 `json:"memoryMB"`
	Time        uint32 `json:"time"`
	Parallelism uint8  `json:"parallelism"`
	KeyLen      uint32 `json:"keyLen"`
}

// DefaultArgon2Params returns sane defaults for deriving a 256-bit verifier.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		MemoryMB:    64,
		Time:        3,
		Parallelism: 1,
		KeyLen:      32,
	}
}

// Validate rejects parameter sets that would make the derivation meaningless.
func (p Argon2Params) Validate() error {
	switch {
	case p.KeyLen == 0:
		return errors.New("key length must be positive")
	case p.MemoryMB == 0:
		return errors.New("memory parameter must be positive")
	case p.Time == 0:
		return errors.New("time parameter must be positive")
	case p.Parallelism == 0:
		return errors.New("parallelism must be positive")
	}
	return nil
}

// DeriveKeyArgon2id derives key material from a secret using Argon2id.
func DeriveKeyArgon2id(secret []byte, salt []byte, p Argon2Params) ([]byte, error) {
	if len(secret) == 0 {
		return nil, errors.New("secret is required")
	}
	if len(salt) != SaltLengthBytes {
		return nil, fmt.Errorf("salt must be %d bytes", SaltLengthBytes)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	key := argon2.IDKey(secret, salt, p.Time, p.MemoryMB*1024, p.Parallelism, p.KeyLen)
	if uint32(len(key)) != p.KeyLen {
		return nil, fmt.Errorf("derived key has unexpected length %d", len(key))
	}
	return key, nil
}

// NewRandomSalt returns a cryptographically secure random salt.
func NewRandomSalt() ([]byte, error) {
	salt := make([]byte, SaltLengthBytes)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("%w: generate salt: %v", ErrRandomSource, err)
	}
	return salt, nil
}
