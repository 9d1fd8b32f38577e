package biometric_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hussein-Mazeh/atlas/auth"
	"github.com/Hussein-Mazeh/atlas/internal/biometric"
	"github.com/Hussein-Mazeh/atlas/krypto"
)

const strongPasscode = "violet-Harbor-93-quill"

var fastParams = krypto.Argon2Params{MemoryMB: 1, Time: 1, Parallelism: 1, KeyLen: 32}

type kv struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newKV() *kv { return &kv{m: map[string][]byte{}} }

func (s *kv) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return append([]byte(nil), v...), ok, nil
}

func (s *kv) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = append([]byte(nil), value...)
	return nil
}

func (s *kv) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

// answer returns a Prompt that always types pc.
func answer(pc string) biometric.Prompt {
	return func(context.Context, string) ([]byte, error) { return []byte(pc), nil }
}

func newGate(t *testing.T, prompt biometric.Prompt) (*biometric.Passcode, *kv) {
	t.Helper()
	store := newKV()
	setup := biometric.NewPasscode(store, nil, fastParams)
	require.NoError(t, setup.SetPasscode(context.Background(), []byte(strongPasscode)))
	return biometric.NewPasscode(store, prompt, fastParams), store
}

func TestPasscodeUnavailableUntilSet(t *testing.T) {
	store := newKV()
	gate := biometric.NewPasscode(store, answer(strongPasscode), fastParams)
	assert.False(t, gate.Available())

	_, err := gate.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, biometric.ErrNotAvailable)

	require.NoError(t, gate.SetPasscode(context.Background(), []byte(strongPasscode)))
	assert.True(t, gate.Available())

	require.NoError(t, gate.Clear(context.Background()))
	assert.False(t, gate.Available())
}

func TestPasscodeRejectsWeakPasscode(t *testing.T) {
	gate := biometric.NewPasscode(newKV(), nil, fastParams)
	assert.ErrorIs(t, gate.SetPasscode(context.Background(), []byte("short")), auth.ErrPasscodeTooShort)
	assert.ErrorIs(t, gate.SetPasscode(context.Background(), []byte("password")), auth.ErrPasscodeTooWeak)
	assert.False(t, gate.Available())
}

func TestPasscodeOutcomes(t *testing.T) {
	cases := []struct {
		name   string
		prompt biometric.Prompt
		want   biometric.Outcome
	}{
		{"correct", answer(strongPasscode), biometric.Succeeded},
		{"incorrect", answer("not-the-passcode"), biometric.Failed},
		{"empty", answer(""), biometric.Cancelled},
		{"dismissed", func(context.Context, string) ([]byte, error) { return nil, biometric.ErrPromptCancelled }, biometric.Cancelled},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gate, _ := newGate(t, tc.prompt)
			res, err := gate.Authenticate(context.Background(), "Unlock")
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Outcome)
		})
	}
}

func TestPasscodeCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gate, _ := newGate(t, func(ctx context.Context, _ string) ([]byte, error) {
		cancel()
		return nil, ctx.Err()
	})

	res, err := gate.Authenticate(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, biometric.Cancelled, res.Outcome)
}

func TestPasscodePromptErrorPropagates(t *testing.T) {
	boom := errors.New("tty closed")
	gate, _ := newGate(t, func(context.Context, string) ([]byte, error) { return nil, boom })

	_, err := gate.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, boom)
}

func TestPasscodeLocksOutAfterRepeatedFailures(t *testing.T) {
	gate, _ := newGate(t, answer("not-the-passcode"))
	ctx := context.Background()

	for i := 0; i < biometric.MaxPasscodeFailures; i++ {
		res, err := gate.Authenticate(ctx, "")
		require.NoError(t, err)
		require.Equal(t, biometric.Failed, res.Outcome)
	}

	_, err := gate.Authenticate(ctx, "")
	var unavailable *biometric.UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.ErrorIs(t, err, biometric.ErrNotAvailable)

	// Resetting the passcode clears the lockout.
	require.NoError(t, gate.SetPasscode(ctx, []byte("not-the-passcode-Orbit-41")))
	res, err := gate.Authenticate(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, biometric.Failed, res.Outcome)
}

func TestPasscodeVerifierKeepsItsParameters(t *testing.T) {
	_, store := newGate(t, answer(strongPasscode))
	raw, ok, err := store.Get(context.Background(), biometric.PasscodeKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotContains(t, string(raw), strongPasscode)

	// A gate configured with different parameters still verifies the stored passcode.
	other := biometric.NewPasscode(store, answer(strongPasscode), krypto.Argon2Params{MemoryMB: 2, Time: 2, Parallelism: 1, KeyLen: 32})
	res, err := other.Authenticate(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, biometric.Succeeded, res.Outcome)
}

func TestUnavailableGate(t *testing.T) {
	var g biometric.Gate = biometric.Unavailable{}
	assert.False(t, g.Available())
	res, err := g.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, biometric.ErrNotAvailable)
	assert.Equal(t, biometric.Failed, res.Outcome)
	assert.Equal(t, "failed", res.Outcome.String())
}
