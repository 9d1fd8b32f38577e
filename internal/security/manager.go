// Package security is the single policy surface other subsystems call. It
// composes the encryption engine, the user-presence gate and the session
// behind the user's settings.
package security

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/Hussein-Mazeh/atlas/internal/biometric"
	"github.com/Hussein-Mazeh/atlas/internal/encryption"
	"github.com/Hussein-Mazeh/atlas/internal/session"
	"github.com/Hussein-Mazeh/atlas/internal/settings"
	"github.com/Hussein-Mazeh/atlas/krypto"
)

// AppOpenReason is shown by the gate when unlocking at launch.
const AppOpenReason = "Unlock Atlas"

var (
	// ErrEncryptionNotAvailable means encryption is disabled or the key store is unusable.
	ErrEncryptionNotAvailable = errors.New("encryption not available")
	// ErrAuthenticationRequired means the session is missing or expired.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrBiometricUnavailable means the platform refused to authenticate at all.
	ErrBiometricUnavailable = errors.New("biometric authentication unavailable")
	// ErrSecurityDisabled means a key operation was requested while encryption is off.
	ErrSecurityDisabled = errors.New("security is disabled")
)

// Config wires a Manager. Engine and Settings are required.
type Config struct {
	Engine   *encryption.Engine
	Gate     biometric.Gate
	Settings settings.Store
	Clock    clock.Clock
	Logger   *slog.Logger
}

// Manager applies the security policy. It is safe for concurrent use.
type Manager struct {
	engine *encryption.Engine
	gate   biometric.Gate
	store  settings.Store
	clock  clock.Clock
	log    *slog.Logger

	session session.Session

	mu       sync.Mutex
	settings settings.Settings
}

// New loads the persisted settings and returns a ready Manager. A nil Gate
// behaves as a host without biometrics.
func New(ctx context.Context, cfg Config) (*Manager, error) {
	if cfg.Engine == nil {
		return nil, errors.New("security: engine is required")
	}
	if cfg.Settings == nil {
		return nil, errors.New("security: settings store is required")
	}

	m := &Manager{
		engine: cfg.Engine,
		gate:   cfg.Gate,
		store:  cfg.Settings,
		clock:  cfg.Clock,
		log:    cfg.Logger,
	}
	if m.gate == nil {
		m.gate = biometric.Unavailable{}
	}
	if m.clock == nil {
		m.clock = clock.New()
	}
	if m.log == nil {
		m.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	m.log = m.log.With("component", "security")

	st, err := m.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	m.settings = st
	m.log.Info("security manager ready",
		"encryption_enabled", st.EncryptionEnabled,
		"encryption_available", m.engine.IsEncryptionAvailable(),
	)
	return m, nil
}

// Settings returns the current policy.
func (m *Manager) Settings() settings.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

// Attempt runs the authentication policy and returns the gate's result. The
// session is updated only on Succeeded; Failed and Cancelled leave it as it was.
func (m *Manager) Attempt(ctx context.Context, reason string) (biometric.Result, error) {
	st := m.Settings()
	if !st.EncryptionEnabled {
		return biometric.Result{Outcome: biometric.Succeeded, Reason: "security disabled"}, nil
	}

	if !st.RequireAuthForSensitiveData || !m.gate.Available() {
		m.session.RecordSuccess(m.clock.Now())
		return biometric.Result{Outcome: biometric.Succeeded}, nil
	}

	res, err := m.gate.Authenticate(ctx, reason)
	if err != nil {
		m.log.Warn("authentication unavailable", "err", err)
		if errors.Is(err, biometric.ErrNotAvailable) {
			return biometric.Result{}, fmt.Errorf("%w: %w", ErrBiometricUnavailable, err)
		}
		return biometric.Result{}, fmt.Errorf("authenticate: %w", err)
	}

	switch res.Outcome {
	case biometric.Succeeded:
		m.session.RecordSuccess(m.clock.Now())
		m.log.Info("authenticated")
	default:
		m.log.Info("authentication not completed", "outcome", res.Outcome)
	}
	return res, nil
}

// Authenticate reports whether the user is now authenticated.
func (m *Manager) Authenticate(ctx context.Context, reason string) (bool, error) {
	res, err := m.Attempt(ctx, reason)
	if err != nil {
		return false, err
	}
	return res.Outcome == biometric.Succeeded, nil
}

// AuthenticateForAppOpen succeeds without prompting unless the policy asks for
// authentication at launch and the gate can provide it.
func (m *Manager) AuthenticateForAppOpen(ctx context.Context) (bool, error) {
	if !m.Settings().RequireAuthOnAppOpen || !m.gate.Available() {
		return true, nil
	}
	return m.Authenticate(ctx, AppOpenReason)
}

// Logout ends the session. Sensitive operations must authenticate again.
func (m *Manager) Logout() {
	m.session.Logout()
	m.log.Info("logged out")
}

// IsSessionValid reports whether the session is within the auto-lock window.
// A stale session is logged out as it is observed.
func (m *Manager) IsSessionValid() bool {
	timeout := m.Settings().AutoLockTimeout
	valid, expired := m.session.Expire(m.clock.Now(), timeout)
	if expired {
		m.log.Info("session expired", "timeout", timeout)
	}
	return valid
}

// RequireSession returns ErrAuthenticationRequired unless the session is
// valid or encryption is disabled. Encrypt and Decrypt do not call it.
func (m *Manager) RequireSession() error {
	if !m.Settings().EncryptionEnabled || m.IsSessionValid() {
		return nil
	}
	return ErrAuthenticationRequired
}

// SessionState returns the stored session snapshot without evaluating expiry.
func (m *Manager) SessionState() session.State {
	return m.session.State()
}

func (m *Manager) checkEncryption() error {
	if !m.Settings().EncryptionEnabled || !m.engine.IsEncryptionAvailable() {
		return ErrEncryptionNotAvailable
	}
	return nil
}

// Encrypt seals plaintext when encryption is enabled and available.
func (m *Manager) Encrypt(plaintext []byte) (krypto.EncryptedRecord, error) {
	if err := m.checkEncryption(); err != nil {
		return krypto.EncryptedRecord{}, err
	}
	return m.engine.Encrypt(plaintext)
}

// EncryptString seals text when encryption is enabled and available.
func (m *Manager) EncryptString(text string) (krypto.EncryptedRecord, error) {
	if err := m.checkEncryption(); err != nil {
		return krypto.EncryptedRecord{}, err
	}
	return m.engine.EncryptString(text)
}

// Decrypt opens rec when encryption is enabled and available.
func (m *Manager) Decrypt(rec krypto.EncryptedRecord) ([]byte, error) {
	if err := m.checkEncryption(); err != nil {
		return nil, err
	}
	return m.engine.Decrypt(rec)
}

// DecryptString opens rec as UTF-8 text.
func (m *Manager) DecryptString(rec krypto.EncryptedRecord) (string, error) {
	if err := m.checkEncryption(); err != nil {
		return "", err
	}
	return m.engine.DecryptString(rec)
}

// Rekey replaces the device key. Records sealed before are lost.
func (m *Manager) Rekey() error {
	if !m.Settings().EncryptionEnabled {
		return ErrSecurityDisabled
	}
	if err := m.engine.Rekey(); err != nil {
		return err
	}
	m.log.Info("key rotated", "level", m.SecurityLevel())
	return nil
}

// ClearKey destroys the device key. Encryption is unavailable until Rekey.
func (m *Manager) ClearKey() error {
	if !m.Settings().EncryptionEnabled {
		return ErrSecurityDisabled
	}
	if err := m.engine.ClearKey(); err != nil {
		return err
	}
	m.log.Info("key cleared", "level", m.SecurityLevel())
	return nil
}

// UpdateSettings applies u, persists the result and returns it. Nothing
// changes when validation or persistence fails.
func (m *Manager) UpdateSettings(ctx context.Context, u settings.Update) (settings.Settings, error) {
	m.mu.Lock()
	next, err := u.Apply(m.settings)
	if err != nil {
		m.mu.Unlock()
		return m.Settings(), err
	}
	if err := m.store.Save(ctx, next); err != nil {
		m.mu.Unlock()
		return m.Settings(), fmt.Errorf("save settings: %w", err)
	}
	enabling := next.EncryptionEnabled && !m.settings.EncryptionEnabled
	m.settings = next
	m.mu.Unlock()

	if enabling {
		m.engine.Probe()
	}
	m.log.Info("settings updated",
		"require_auth_on_app_open", next.RequireAuthOnAppOpen,
		"require_auth_for_sensitive_data", next.RequireAuthForSensitiveData,
		"auto_lock_timeout", next.AutoLockTimeout,
		"encryption_enabled", next.EncryptionEnabled,
		"level", m.SecurityLevel(),
	)
	return next, nil
}

// SecurityLevel summarises which protections are active right now.
func (m *Manager) SecurityLevel() Level {
	if !m.Settings().EncryptionEnabled || !m.engine.IsEncryptionAvailable() {
		return LevelNone
	}
	if !m.gate.Available() {
		return LevelEncryptionOnly
	}
	return LevelFull
}

// BiometricAvailable reports whether the gate can prompt.
func (m *Manager) BiometricAvailable() bool {
	return m.gate.Available()
}
