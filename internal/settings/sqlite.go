package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver
)

// DefaultDatabaseName is the settings database file inside the data directory.
const DefaultDatabaseName = "atlas.db"

// policyPrefix marks rows that belong to Settings rather than to other entries.
const policyPrefix = "policy."

const createSettingsTable = `
CREATE TABLE IF NOT EXISTS settings (
	key        TEXT     PRIMARY KEY,
	value      BLOB     NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

// SQLiteStore persists Settings and other small entries (such as the passcode
// verifier) in a single key/value table.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite creates (if needed) and opens the settings database at path.
// The caller must Close the returned store.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open settings database: %w", err)
	}

	// Prime the connection so the file exists before chmod.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping settings database: %w", err)
	}

	if _, err := db.Exec(createSettingsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	if err := EnsurePerm0600(path); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string { return s.path }

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// EnsurePerm0600 restricts the file to its owner on Unix systems.
func EnsurePerm0600(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	if err := os.Chmod(path, 0o600); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("chmod database: %w", err)
	}
	return nil
}

// Load reads the policy rows. An empty table yields Defaults.
func (s *SQLiteStore) Load(ctx context.Context) (Settings, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings WHERE key LIKE ?`, policyPrefix+"%")
	if err != nil {
		return Settings{}, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	pairs := make(map[string]string)
	for rows.Next() {
		var (
			key   string
			value []byte
		)
		if err := rows.Scan(&key, &value); err != nil {
			return Settings{}, fmt.Errorf("scan settings: %w", err)
		}
		pairs[key] = string(value)
	}
	if err := rows.Err(); err != nil {
		return Settings{}, fmt.Errorf("iterate settings: %w", err)
	}

	return fromPairs(pairs)
}

// Save writes every policy field in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, st Settings) error {
	if err := st.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settings transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for key, value := range toPairs(st) {
		if err := upsert(ctx, tx, key, []byte(value)); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settings: %w", err)
	}
	return nil
}

// Get returns the raw entry stored under key.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query %s: %w", key, err)
	}
	return value, true, nil
}

// Put stores value under key, replacing any existing entry.
func (s *SQLiteStore) Put(ctx context.Context, key string, value []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	return upsert(ctx, s.db, key, value)
}

// Delete removes key. Deleting a missing key is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, e execer, key string, value []byte) error {
	_, err := e.ExecContext(ctx, `
INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`, key, value)
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// validKey keeps raw entries out of the policy namespace.
func validKey(key string) error {
	switch {
	case key == "":
		return errors.New("key is required")
	case strings.HasPrefix(key, policyPrefix):
		return fmt.Errorf("key %q is reserved", key)
	}
	return nil
}
