// Package settings holds the user-controlled security policy and its
// persistence.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// DefaultAutoLockTimeout is the session window used until the user changes it.
const DefaultAutoLockTimeout = 5 * time.Minute

// ErrInvalidTimeout reports a non-positive auto-lock timeout.
var ErrInvalidTimeout = errors.New("auto-lock timeout must be positive")

// Settings is the security policy consulted by the manager.
type Settings struct {
	RequireAuthOnAppOpen        bool
	RequireAuthForSensitiveData bool
	AutoLockTimeout             time.Duration
	EncryptionEnabled           bool
}

// Defaults returns the policy of a fresh install.
func Defaults() Settings {
	return Settings{
		RequireAuthOnAppOpen:        false,
		RequireAuthForSensitiveData: true,
		AutoLockTimeout:             DefaultAutoLockTimeout,
		EncryptionEnabled:           true,
	}
}

// Validate rejects settings the manager cannot enforce.
func (s Settings) Validate() error {
	if s.AutoLockTimeout <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTimeout, s.AutoLockTimeout)
	}
	return nil
}

// Update is a partial change; nil fields are left as they are.
type Update struct {
	RequireAuthOnAppOpen        *bool
	RequireAuthForSensitiveData *bool
	AutoLockTimeout             *time.Duration
	EncryptionEnabled           *bool
}

// Apply returns s with u applied. s is returned unchanged with an error when
// the result would be invalid.
func (u Update) Apply(s Settings) (Settings, error) {
	next := s
	if u.RequireAuthOnAppOpen != nil {
		next.RequireAuthOnAppOpen = *u.RequireAuthOnAppOpen
	}
	if u.RequireAuthForSensitiveData != nil {
		next.RequireAuthForSensitiveData = *u.RequireAuthForSensitiveData
	}
	if u.AutoLockTimeout != nil {
		next.AutoLockTimeout = *u.AutoLockTimeout
	}
	if u.EncryptionEnabled != nil {
		next.EncryptionEnabled = *u.EncryptionEnabled
	}
	if err := next.Validate(); err != nil {
		return s, err
	}
	return next, nil
}

// Store persists Settings. Load on an empty store returns Defaults.
type Store interface {
	Load(ctx context.Context) (Settings, error)
	Save(ctx context.Context, s Settings) error
}

// Keys under which each field is persisted by key/value stores.
const (
	keyAuthOnAppOpen        = "policy.require_auth_on_app_open"
	keyAuthForSensitiveData = "policy.require_auth_for_sensitive_data"
	keyAutoLockTimeout      = "policy.auto_lock_timeout"
	keyEncryptionEnabled    = "policy.encryption_enabled"
)

// toPairs flattens s into the textual key/value form.
func toPairs(s Settings) map[string]string {
	return map[string]string{
		keyAuthOnAppOpen:        strconv.FormatBool(s.RequireAuthOnAppOpen),
		keyAuthForSensitiveData: strconv.FormatBool(s.RequireAuthForSensitiveData),
		keyAutoLockTimeout:      s.AutoLockTimeout.String(),
		keyEncryptionEnabled:    strconv.FormatBool(s.EncryptionEnabled),
	}
}

// fromPairs rebuilds Settings; missing keys keep their default.
func fromPairs(pairs map[string]string) (Settings, error) {
	s := Defaults()
	bools := []struct {
		key string
		dst *bool
	}{
		{keyAuthOnAppOpen, &s.RequireAuthOnAppOpen},
		{keyAuthForSensitiveData, &s.RequireAuthForSensitiveData},
		{keyEncryptionEnabled, &s.EncryptionEnabled},
	}
	for _, b := range bools {
		raw, ok := pairs[b.key]
		if !ok {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return Settings{}, fmt.Errorf("parse %s: %w", b.key, err)
		}
		*b.dst = v
	}
	if raw, ok := pairs[keyAutoLockTimeout]; ok {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Settings{}, fmt.Errorf("parse %s: %w", keyAutoLockTimeout, err)
		}
		s.AutoLockTimeout = d
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}
