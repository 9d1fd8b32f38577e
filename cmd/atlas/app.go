package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/Hussein-Mazeh/atlas/internal/biometric"
	"github.com/Hussein-Mazeh/atlas/internal/encryption"
	"github.com/Hussein-Mazeh/atlas/internal/keystore"
	"github.com/Hussein-Mazeh/atlas/internal/security"
	"github.com/Hussein-Mazeh/atlas/internal/settings"
	"github.com/Hussein-Mazeh/atlas/krypto"
)

// passcodePrompt reads the passcode for the passcode gate.
var passcodePrompt biometric.Prompt = promptPasscode

// app is the composition root shared by every command for one invocation.
type app struct {
	log      *slog.Logger
	db       *settings.SQLiteStore
	passcode *biometric.Passcode
	gate     biometric.Gate
	manager  *security.Manager
	keystore string
}

func openApp(ctx context.Context) (*app, error) {
	log, err := newLogger(viper.GetString("log.format"), viper.GetString("log.level"))
	if err != nil {
		return nil, userError{msg: err.Error()}
	}
	log = log.With("run_id", uuid.NewString())

	dataDir := viper.GetString("data_dir")
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	c, err := krypto.CipherFor(viper.GetString("cipher"))
	if err != nil {
		return nil, userError{msg: err.Error()}
	}

	backend := viper.GetString("keystore.backend")
	store, err := keystore.Open(backend, keystore.KeyringConfig{
		ServiceName:  keystore.DefaultService,
		Backends:     viper.GetStringSlice("keystore.backends"),
		FileDir:      filepath.Join(dataDir, "keys"),
		FilePassword: keyringPassword,
	})
	if errors.Is(err, keystore.ErrUnsupported) {
		return nil, userError{msg: fmt.Sprintf("key store %q is not supported on this platform", backend)}
	}
	if err != nil {
		return nil, fmt.Errorf("open key store: %w", err)
	}
	engine := encryption.New(store, encryption.WithCipher(c), encryption.WithLogger(log))

	db, err := settings.OpenSQLite(filepath.Join(dataDir, settings.DefaultDatabaseName))
	if err != nil {
		return nil, err
	}

	var policy settings.Store = db
	switch viper.GetString("settings.store") {
	case "", "sqlite":
	case "file":
		policy = settings.FileStore{Dir: dataDir}
	default:
		db.Close()
		return nil, userError{msg: fmt.Sprintf("unknown settings store %q", viper.GetString("settings.store"))}
	}

	a := &app{
		log:      log,
		db:       db,
		passcode: biometric.NewPasscode(db, passcodePrompt, krypto.DefaultArgon2Params()),
		keystore: backend,
	}
	a.gate, err = a.selectGate(viper.GetString("gate"))
	if err != nil {
		db.Close()
		return nil, err
	}

	a.manager, err = security.New(ctx, security.Config{
		Engine:   engine,
		Gate:     a.gate,
		Settings: policy,
		Logger:   log,
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

// selectGate resolves the configured gate. In auto mode the platform
// biometric wins, then a configured passcode, then none.
func (a *app) selectGate(name string) (biometric.Gate, error) {
	switch name {
	case "", "auto":
		if g := biometric.Platform(); g.Available() {
			return g, nil
		}
		if a.passcode.Available() {
			return a.passcode, nil
		}
		return biometric.Unavailable{}, nil
	case "touchid":
		return biometric.Platform(), nil
	case "passcode":
		return a.passcode, nil
	case "none":
		return biometric.Unavailable{}, nil
	default:
		return nil, userError{msg: fmt.Sprintf("unknown gate %q", name)}
	}
}

func (a *app) Close() error {
	return a.db.Close()
}

// authenticate runs the manager's policy and turns anything short of success
// into a userError.
func (a *app) authenticate(ctx context.Context, reason string) error {
	res, err := a.manager.Attempt(ctx, reason)
	if err != nil {
		a.log.Debug("authentication error", "err", err)
		return userError{msg: security.UserMessage(err)}
	}
	if res.Outcome != biometric.Succeeded {
		return userError{msg: security.OutcomeMessage(res)}
	}
	return nil
}

// verifyPasscode asks for the current passcode regardless of policy.
func (a *app) verifyPasscode(ctx context.Context) error {
	res, err := a.passcode.Authenticate(ctx, "Enter your current Atlas passcode")
	if err != nil {
		return userError{msg: security.UserMessage(err)}
	}
	if res.Outcome != biometric.Succeeded {
		return userError{msg: security.OutcomeMessage(res)}
	}
	return nil
}

func newLogger(format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}
