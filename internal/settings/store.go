package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrNotFound is returned by Get when no value is stored under a key.
var ErrNotFound = errors.New("setting not found")

// Store persists JSON-encodable values by key.
type Store interface {
	Get(key string, v any) error // returns ErrNotFound if key is absent
	Put(key string, v any) error
	Delete(key string) error
	Close() error
}

// Backends accepted by Open.
const (
	BackendJSON = "json"
	BackendBolt = "bolt"
)

// Open returns the Store for backend rooted in dir. An empty dir means the
// default data directory.
func Open(backend, dir string) (Store, error) {
	if dir == "" {
		d, err := DataDir()
		if err != nil {
			return nil, fmt.Errorf("resolving data directory: %w", err)
		}
		dir = d
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	switch backend {
	case "", BackendJSON:
		return NewFileStore(filepath.Join(dir, "settings.json")), nil
	case BackendBolt:
		return NewBoltStore(filepath.Join(dir, "projector.db"))
	}
	return nil, fmt.Errorf("unknown settings backend %q", backend)
}

// DataDir returns the projector-specific XDG data directory.
// Path: $XDG_DATA_HOME/projector or ~/.local/share/projector
func DataDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "projector"), nil
}

// fileStore keeps every setting in one JSON document.
type fileStore struct {
	path string

	mu sync.Mutex
}

// NewFileStore returns a Store backed by the JSON file at path.
func NewFileStore(path string) Store {
	return &fileStore{path: path}
}

func (f *fileStore) Get(key string, v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return err
	}
	raw, ok := doc[key]
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to parse setting %q: %w", key, err)
	}
	return nil
}

func (f *fileStore) Put(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to persist setting %q: %w", key, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return err
	}
	doc[key] = raw
	return f.write(doc)
}

func (f *fileStore) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := doc[key]; !ok {
		return nil
	}
	delete(doc, key)
	return f.write(doc)
}

func (f *fileStore) Close() error { return nil }

// read loads the document, treating a missing file as empty.
func (f *fileStore) read() (map[string]json.RawMessage, error) {
	doc := make(map[string]json.RawMessage)
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return doc, nil
		}
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	return doc, nil
}

// write replaces the document atomically via a temp file + os.Rename.
func (f *fileStore) write(doc map[string]json.RawMessage) (err error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to persist settings: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), "settings-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to persist settings: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to persist settings: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to persist settings: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to persist settings: %w", err)
	}
	if err = os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("failed to persist settings: %w", err)
	}
	return nil
}
