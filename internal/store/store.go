package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/mcphost/internal/paths"
	"github.com/thoreinstein/mcphost/pkg/fileutil"
)

// Keys under which the registry persists its two blobs.
const (
	KeyServers = "mcpServers"
	KeyStatus  = "mcpServerStatus"
)

// Store is the host-provided key/value persistence the registry mirrors
// itself into. Values are JSON-serializable blobs; the store survives
// host restarts.
type Store interface {
	// Get unmarshals the value stored under key into out. Missing keys
	// return found=false and leave out untouched.
	Get(key string, out any) (found bool, err error)

	// Set serializes value under key.
	Set(key string, value any) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
}

// MemStore is an in-memory Store for tests and embedding hosts that
// manage persistence themselves.
type MemStore struct {
	mu   sync.RWMutex
	data map[string]json.RawMessage
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string]json.RawMessage)}
}

// Get implements Store.
func (m *MemStore) Get(key string, out any) (bool, error) {
	m.mu.RLock()
	raw, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, errors.Wrapf(err, "decoding stored value %q", key)
	}
	return true, nil
}

// Set implements Store.
func (m *MemStore) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encoding value for %q", key)
	}
	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
	return nil
}

// Delete implements Store.
func (m *MemStore) Delete(key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

// FileStore persists each key as one JSON file in a directory, written
// atomically so interrupted writes leave the previous value intact.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates a file-backed store rooted at dir, creating it
// if necessary. An empty dir defaults to the mcphost state directory.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = paths.StateDir()
	}
	if err := paths.EnsureDir(dir, 0); err != nil {
		return nil, errors.Wrapf(err, "creating store directory %s", dir)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, key+".json")
}

// Get implements Store.
func (f *FileStore) Get(key string, out any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "reading %q", key)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return true, errors.Wrapf(err, "decoding stored value %q", key)
	}
	return true, nil
}

// Set implements Store.
func (f *FileStore) Set(key string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := fileutil.AtomicWriteJSON(f.path(key), value); err != nil {
		return errors.Wrapf(err, "writing %q", key)
	}
	return nil
}

// Delete implements Store.
func (f *FileStore) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path(key)); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "deleting %q", key)
	}
	return nil
}
