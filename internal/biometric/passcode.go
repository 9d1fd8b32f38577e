package biometric

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/awnumar/memguard"

	"github.com/Hussein-Mazeh/atlas/auth"
	"github.com/Hussein-Mazeh/atlas/krypto"
)

// PasscodeKey is the entry under which the passcode verifier is persisted.
const PasscodeKey = "credential.passcode"

// MaxPasscodeFailures is the number of consecutive failures before lockout.
const MaxPasscodeFailures = 5

// ErrPromptCancelled may be returned by a Prompt when the user dismisses it.
var ErrPromptCancelled = errors.New("prompt cancelled")

// VerifierStore persists the passcode verifier. settings.SQLiteStore satisfies it.
type VerifierStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Prompt asks the user for their passcode.
type Prompt func(ctx context.Context, reason string) ([]byte, error)

type verifier struct {
	Salt []byte              `json:"salt"`
	Hash []byte              `json:"hash"`
	KDF  krypto.Argon2Params `json:"kdf"`
}

// Passcode is the device-credential Gate: it verifies a user-chosen passcode
// against an Argon2id verifier. It locks out after MaxPasscodeFailures
// consecutive failures until the process restarts.
type Passcode struct {
	store  VerifierStore
	prompt Prompt
	params krypto.Argon2Params

	mu       sync.Mutex
	failures int
}

// NewPasscode returns a Passcode gate. params configures verifiers created by
// SetPasscode; existing verifiers keep the parameters they were created with.
func NewPasscode(store VerifierStore, prompt Prompt, params krypto.Argon2Params) *Passcode {
	return &Passcode{store: store, prompt: prompt, params: params}
}

// Available reports whether a passcode has been set.
func (p *Passcode) Available() bool {
	_, ok, err := p.store.Get(context.Background(), PasscodeKey)
	return err == nil && ok
}

// Authenticate prompts for the passcode and compares it in constant time.
// An empty entry, a cancelled prompt or a cancelled ctx yield Cancelled.
func (p *Passcode) Authenticate(ctx context.Context, reason string) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failures >= MaxPasscodeFailures {
		return Result{}, &UnavailableError{Code: -8, Reason: "too many failed attempts"}
	}

	v, err := p.load(ctx)
	if err != nil {
		return Result{}, err
	}

	if reason == "" {
		reason = defaultReason
	}
	entered, err := p.prompt(ctx, reason)
	defer memguard.WipeBytes(entered)
	switch {
	case ctx.Err() != nil, errors.Is(err, ErrPromptCancelled):
		return Result{Outcome: Cancelled, Reason: "authentication cancelled"}, nil
	case err != nil:
		return Result{}, fmt.Errorf("read passcode: %w", err)
	case len(entered) == 0:
		return Result{Outcome: Cancelled, Reason: "authentication cancelled"}, nil
	}

	derived, err := krypto.DeriveKeyArgon2id(entered, v.Salt, v.KDF)
	if err != nil {
		return Result{}, fmt.Errorf("derive passcode verifier: %w", err)
	}
	defer memguard.WipeBytes(derived)

	if subtle.ConstantTimeCompare(derived, v.Hash) != 1 {
		p.failures++
		return Result{Outcome: Failed, Reason: "incorrect passcode"}, nil
	}
	p.failures = 0
	return Result{Outcome: Succeeded}, nil
}

// SetPasscode validates pc against the passcode policy and replaces the verifier.
func (p *Passcode) SetPasscode(ctx context.Context, pc []byte) error {
	if err := auth.ValidatePasscode(string(pc)); err != nil {
		return err
	}

	salt, err := krypto.NewRandomSalt()
	if err != nil {
		return err
	}
	hash, err := krypto.DeriveKeyArgon2id(pc, salt, p.params)
	if err != nil {
		return fmt.Errorf("derive passcode verifier: %w", err)
	}
	defer memguard.WipeBytes(hash)

	data, err := json.Marshal(verifier{Salt: salt, Hash: hash, KDF: p.params})
	if err != nil {
		return fmt.Errorf("encode passcode verifier: %w", err)
	}
	if err := p.store.Put(ctx, PasscodeKey, data); err != nil {
		return fmt.Errorf("save passcode verifier: %w", err)
	}

	p.mu.Lock()
	p.failures = 0
	p.mu.Unlock()
	return nil
}

// Clear removes the passcode. Afterwards the gate reports unavailable.
func (p *Passcode) Clear(ctx context.Context) error {
	if err := p.store.Delete(ctx, PasscodeKey); err != nil {
		return fmt.Errorf("remove passcode verifier: %w", err)
	}
	return nil
}

func (p *Passcode) load(ctx context.Context) (verifier, error) {
	data, ok, err := p.store.Get(ctx, PasscodeKey)
	if err != nil {
		return verifier{}, fmt.Errorf("load passcode verifier: %w", err)
	}
	if !ok {
		return verifier{}, &UnavailableError{Code: -5, Reason: "no passcode is set"}
	}
	var v verifier
	if err := json.Unmarshal(data, &v); err != nil {
		return verifier{}, fmt.Errorf("decode passcode verifier: %w", err)
	}
	return v, nil
}
