package stores

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/natefinch/atomic"

	"github.com/colonyops/tempo/internal/core/kv"
)

// KVStore implements kv.KV on a single JSON namespace file. Every mutation
// rewrites the whole namespace through an atomic rename; an in-process
// mutex serializes writers. Concurrent processes are last-writer-wins,
// which matches the single-user usage pattern this store is built for.
type KVStore struct {
	path string
	mu   sync.RWMutex
}

var _ kv.KV = (*KVStore)(nil)

// NewKVStore creates a JSON-file-backed KV store at dataDir/tempo.json.
func NewKVStore(dataDir string) *KVStore {
	return &KVStore{path: filepath.Join(dataDir, "tempo.json")}
}

// Get retrieves and deserializes a value by key.
// Returns an error wrapping kv.ErrNotFound if the key does not exist.
func (s *KVStore) Get(ctx context.Context, key string, dest any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := s.load()
	if err != nil {
		return err
	}

	raw, ok := data[key]
	if !ok {
		return fmt.Errorf("kv get %q: %w", key, kv.ErrNotFound)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("kv get %q unmarshal: %w", key, err)
	}

	return nil
}

// Set stores a value under key, replacing any previous value.
func (s *KVStore) Set(ctx context.Context, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return err
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("kv set %q marshal: %w", key, err)
	}

	data[key] = raw
	return s.save(data)
}

// Delete removes a key. Deleting a missing key is a no-op.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return err
	}

	if _, ok := data[key]; !ok {
		return nil
	}

	delete(data, key)
	return s.save(data)
}

// Has returns whether a key exists.
func (s *KVStore) Has(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := s.load()
	if err != nil {
		return false, err
	}

	_, ok := data[key]
	return ok, nil
}

// ListKeys returns all keys in the namespace, sorted.
func (s *KVStore) ListKeys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := s.load()
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys, nil
}

// load reads the namespace file. A missing or empty file is an empty
// namespace, not an error.
func (s *KVStore) load() (map[string]json.RawMessage, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("read kv namespace: %w", err)
	}

	if len(raw) == 0 {
		return map[string]json.RawMessage{}, nil
	}

	var data map[string]json.RawMessage
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode kv namespace: %w", err)
	}
	if data == nil {
		data = map[string]json.RawMessage{}
	}

	return data, nil
}

// save writes the whole namespace atomically.
func (s *KVStore) save(data map[string]json.RawMessage) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode kv namespace: %w", err)
	}

	if err := atomic.WriteFile(s.path, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("write kv namespace: %w", err)
	}

	return nil
}
