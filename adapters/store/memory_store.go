package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/layer-3/sessionkit/core"
	"github.com/layer-3/sessionkit/ports"
)

// MemoryStore is an in-memory implementation of the KeyVault interface
type MemoryStore struct {
	keys map[string]string
	mu   sync.RWMutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() ports.KeyVault {
	return &MemoryStore{
		keys: make(map[string]string),
	}
}

// Put stores a serialized key
func (s *MemoryStore) Put(ctx context.Context, keyID string, jwkJSON string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.keys[keyID] = jwkJSON
	return nil
}

// Get returns the serialized key stored under keyID
func (s *MemoryStore) Get(ctx context.Context, keyID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jwkJSON, exists := s.keys[keyID]
	if !exists {
		return "", fmt.Errorf("%w: %s", core.ErrVaultMiss, keyID)
	}
	return jwkJSON, nil
}

// Delete removes a key; deleting a missing key is not an error
func (s *MemoryStore) Delete(ctx context.Context, keyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.keys, keyID)
	return nil
}

// List returns the stored key ids in lexical order
func (s *MemoryStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.keys))
	for id := range s.keys {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}
