package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultFileName is the JSON settings file inside the data directory.
const DefaultFileName = "settings.json"

// FileStore persists Settings as a JSON document.
type FileStore struct {
	Dir string
}

// Path resolves the settings file location.
func (f FileStore) Path() string {
	return filepath.Join(f.Dir, DefaultFileName)
}

// Load reads the settings file. A missing file yields Defaults.
func (f FileStore) Load(context.Context) (Settings, error) {
	data, err := os.ReadFile(f.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Defaults(), nil
		}
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}

	var pairs map[string]string
	if err := json.Unmarshal(data, &pairs); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return fromPairs(pairs)
}

// Save writes the settings file atomically with owner-only permissions.
func (f FileStore) Save(_ context.Context, s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if f.Dir == "" {
		return errors.New("settings directory not specified")
	}
	if err := os.MkdirAll(f.Dir, 0o700); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(toPairs(s), "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	tmp, err := os.CreateTemp(f.Dir, "settings-*.json")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp settings: %w", err)
	}

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp settings: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp settings: %w", err)
	}

	if err := os.Rename(tmpPath, f.Path()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}
