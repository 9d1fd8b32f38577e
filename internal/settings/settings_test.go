package settings_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hussein-Mazeh/atlas/internal/settings"
)

func ptr[T any](v T) *T { return &v }

func TestDefaults(t *testing.T) {
	d := settings.Defaults()
	assert.False(t, d.RequireAuthOnAppOpen)
	assert.True(t, d.RequireAuthForSensitiveData)
	assert.Equal(t, 5*time.Minute, d.AutoLockTimeout)
	assert.True(t, d.EncryptionEnabled)
	assert.NoError(t, d.Validate())
}

func TestUpdateApply(t *testing.T) {
	base := settings.Defaults()

	got, err := settings.Update{}.Apply(base)
	require.NoError(t, err)
	assert.Equal(t, base, got, "empty update changes nothing")

	got, err = settings.Update{
		RequireAuthOnAppOpen: ptr(true),
		AutoLockTimeout:      ptr(30 * time.Second),
	}.Apply(base)
	require.NoError(t, err)
	assert.True(t, got.RequireAuthOnAppOpen)
	assert.Equal(t, 30*time.Second, got.AutoLockTimeout)
	assert.True(t, got.RequireAuthForSensitiveData)
	assert.True(t, got.EncryptionEnabled)

	for _, d := range []time.Duration{0, -time.Second} {
		got, err = settings.Update{AutoLockTimeout: ptr(d), EncryptionEnabled: ptr(false)}.Apply(base)
		assert.ErrorIs(t, err, settings.ErrInvalidTimeout)
		assert.Equal(t, base, got, "invalid update leaves settings untouched")
	}
}

// storeContract runs the behaviour every Store must share.
func storeContract(t *testing.T, store settings.Store) {
	t.Helper()
	ctx := context.Background()

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, settings.Defaults(), got, "empty store loads defaults")

	want := settings.Settings{
		RequireAuthOnAppOpen:        true,
		RequireAuthForSensitiveData: false,
		AutoLockTimeout:             90 * time.Second,
		EncryptionEnabled:           false,
	}
	require.NoError(t, store.Save(ctx, want))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	bad := want
	bad.AutoLockTimeout = 0
	assert.ErrorIs(t, store.Save(ctx, bad), settings.ErrInvalidTimeout)
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got, "rejected save leaves previous value")
}

func TestStores(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		storeContract(t, settings.NewMemoryStore())
	})
	t.Run("file", func(t *testing.T) {
		storeContract(t, settings.FileStore{Dir: filepath.Join(t.TempDir(), "atlas")})
	})
	t.Run("sqlite", func(t *testing.T) {
		store, err := settings.OpenSQLite(filepath.Join(t.TempDir(), settings.DefaultDatabaseName))
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		storeContract(t, store)
	})
}

func TestOpenSQLiteCreatesOwnerOnlyFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "data", settings.DefaultDatabaseName)

	store, err := settings.OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("OpenSQLite returned error: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	info, err := os.Stat(dbPath)
	if err != nil {
		t.Fatalf("expected database file to exist at %q: %v", dbPath, err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0o600 {
		t.Fatalf("expected mode 0600, got %v", info.Mode().Perm())
	}
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	if _, err := settings.OpenSQLite(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), settings.DefaultDatabaseName)

	store, err := settings.OpenSQLite(dbPath)
	require.NoError(t, err)
	want := settings.Defaults()
	want.AutoLockTimeout = time.Hour
	require.NoError(t, store.Save(ctx, want))
	require.NoError(t, store.Put(ctx, "credential.passcode", []byte(`{"salt":"x"}`)))
	require.NoError(t, store.Close())

	store, err = settings.OpenSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	raw, ok, err := store.Get(ctx, "credential.passcode")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"salt":"x"}`, string(raw))
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	store := settings.FileStore{Dir: dir}
	require.NoError(t, os.WriteFile(store.Path(), []byte("{not json"), 0o600))

	_, err := store.Load(context.Background())
	assert.Error(t, err)
}

func TestFileStoreWritesOwnerOnlyFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permissions are not enforced on windows")
	}
	store := settings.FileStore{Dir: t.TempDir()}
	require.NoError(t, store.Save(context.Background(), settings.Defaults()))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

type kvStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

func TestEntries(t *testing.T) {
	sqlite, err := settings.OpenSQLite(filepath.Join(t.TempDir(), settings.DefaultDatabaseName))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	for name, store := range map[string]kvStore{"memory": settings.NewMemoryStore(), "sqlite": sqlite} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := store.Get(ctx, "credential.passcode")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Put(ctx, "credential.passcode", []byte("one")))
			require.NoError(t, store.Put(ctx, "credential.passcode", []byte("two")))
			v, ok, err := store.Get(ctx, "credential.passcode")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, []byte("two"), v)

			require.NoError(t, store.Delete(ctx, "credential.passcode"))
			require.NoError(t, store.Delete(ctx, "credential.passcode"), "delete is idempotent")
			_, ok, err = store.Get(ctx, "credential.passcode")
			require.NoError(t, err)
			assert.False(t, ok)

			assert.Error(t, store.Put(ctx, "", []byte("x")))
			assert.Error(t, store.Put(ctx, "policy.encryption_enabled", []byte("false")), "policy keys are reserved")
		})
	}
}

func TestMemoryStoreFailSaves(t *testing.T) {
	boom := errors.New("disk full")
	store := settings.NewMemoryStore()
	store.FailSaves(boom)
	assert.ErrorIs(t, store.Save(context.Background(), settings.Defaults()), boom)
	store.FailSaves(nil)
	assert.NoError(t, store.Save(context.Background(), settings.Defaults()))
}
