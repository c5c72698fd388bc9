// Package configstore persists the service configuration in a small JSON
// key-value file under the user's config directory.
package configstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

const (
	fileName   = "storage.json"
	backupName = "storage.json.bak"
)

// ErrCorrupt reports a storage file that is not a JSON object.
var ErrCorrupt = errors.New("storage file is corrupt")

// KV is the key-value store the configuration is persisted in.
type KV interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// FileStore keeps every key in one JSON object on disk.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore creates a store in the platform config directory.
func NewFileStore() (*FileStore, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

// NewFileStoreAt creates a store rooted at dir.
func NewFileStoreAt(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the platform-specific config directory.
func Dir() (string, error) {
	if dir := os.Getenv("AZIMG_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", "azimg"), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, "azimg"), nil
	default:
		configHome := os.Getenv("XDG_CONFIG_HOME")
		if configHome == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configHome = filepath.Join(home, ".config")
		}
		return filepath.Join(configHome, "azimg"), nil
	}
}

func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) Path() string {
	return filepath.Join(s.dir, fileName)
}

func (s *FileStore) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return nil, false, err
	}
	value, ok := entries[key]
	return value, ok, nil
}

// Set stores value under key. Values are kept in compact form, so Get
// returns exactly what Set was given when it was already compact.
func (s *FileStore) Set(key string, value []byte) error {
	var compact bytes.Buffer
	if err := json.Compact(&compact, value); err != nil {
		return fmt.Errorf("value for %s is not valid JSON: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadForWrite()
	if err != nil {
		return err
	}
	entries[key] = json.RawMessage(compact.Bytes())
	return s.save(entries)
}

func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadForWrite()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return s.save(entries)
}

func (s *FileStore) load() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]json.RawMessage), nil
		}
		return nil, err
	}

	entries := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w: %w", fileName, ErrCorrupt, err)
	}
	if entries == nil {
		return nil, fmt.Errorf("failed to parse %s: %w", fileName, ErrCorrupt)
	}
	return entries, nil
}

// loadForWrite is load for callers about to rewrite the file. An unparseable
// file is moved to storage.json.bak and treated as empty.
func (s *FileStore) loadForWrite() (map[string]json.RawMessage, error) {
	entries, err := s.load()
	if !errors.Is(err, ErrCorrupt) {
		return entries, err
	}
	if err := os.Rename(s.Path(), filepath.Join(s.dir, backupName)); err != nil {
		return nil, fmt.Errorf("failed to back up %s: %w", fileName, err)
	}
	return make(map[string]json.RawMessage), nil
}

func (s *FileStore) save(entries map[string]json.RawMessage) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}

	// Owner read/write only; the file holds the API key.
	if err := os.WriteFile(s.Path(), data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", fileName, err)
	}
	return nil
}
