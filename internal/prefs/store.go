// Package prefs persists user preferences such as the local root path.
package prefs

import (
	"context"
	"sync"
)

// KeyLocalRoot holds the filesystem prefix used to build copyable paths.
const KeyLocalRoot = "localRoot"

// Store is a string key-value store.
type Store interface {
	// Get returns the value for key and whether it was set.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key, replacing any earlier value.
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

// MemoryStore is a Store that lives only as long as the process.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// LocalRoot reads the local root; unset reads as "".
func LocalRoot(ctx context.Context, s Store) (string, error) {
	v, _, err := s.Get(ctx, KeyLocalRoot)
	return v, err
}

// SetLocalRoot stores root, or clears it when root is empty.
func SetLocalRoot(ctx context.Context, s Store, root string) error {
	if root == "" {
		return s.Delete(ctx, KeyLocalRoot)
	}
	return s.Set(ctx, KeyLocalRoot, root)
}
