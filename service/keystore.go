package service

import (
	"fmt"
	"slices"

	"github.com/layer-3/sessionkit/core"
	"github.com/layer-3/sessionkit/internal/jwks"
	"github.com/layer-3/sessionkit/ports"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// KeyStore holds named session keys and their session attachments.
// It is not safe for concurrent use.
type KeyStore struct {
	entries   map[string]*core.KeyEntry
	generator ports.KeyGenerator
}

// NewKeyStore creates a key store seeded with a generated default key
func NewKeyStore(generator ports.KeyGenerator) (*KeyStore, error) {
	s := &KeyStore{
		entries:   make(map[string]*core.KeyEntry),
		generator: generator,
	}
	if _, err := s.Create(nil); err != nil {
		return nil, fmt.Errorf("failed to seed default key: %w", err)
	}
	return s, nil
}

// Create generates a new key under keyID
func (s *KeyStore) Create(keyID *string) (string, error) {
	id := core.ResolveKeyID(keyID)
	if _, exists := s.entries[id]; exists {
		return "", fmt.Errorf("%w: %s", core.ErrDuplicateKey, id)
	}

	key, err := s.generator.Generate()
	if err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}

	return id, s.put(id, key)
}

// Import stores caller-supplied key material under keyID. An existing entry
// is only replaced when allowOverride is set, and loses its session.
func (s *KeyStore) Import(key jwk.Key, keyID *string, allowOverride bool) (string, error) {
	id := core.ResolveKeyID(keyID)
	if _, exists := s.entries[id]; exists && !allowOverride {
		return "", fmt.Errorf("%w: %s", core.ErrDuplicateKey, id)
	}

	return id, s.put(id, key)
}

// Export returns a copy of the key stored under keyID
func (s *KeyStore) Export(keyID *string) (jwk.Key, error) {
	entry, err := s.lookup(keyID)
	if err != nil {
		return nil, err
	}
	return jwks.Clone(entry.Key)
}

// Get returns a copy of the entry stored under keyID
func (s *KeyStore) Get(keyID *string) (core.KeyEntry, error) {
	entry, err := s.lookup(keyID)
	if err != nil {
		return core.KeyEntry{}, err
	}

	key, err := jwks.Clone(entry.Key)
	if err != nil {
		return core.KeyEntry{}, err
	}

	out := core.KeyEntry{ID: entry.ID, Key: key}
	if entry.Session != nil {
		session := *entry.Session
		out.Session = &session
	}
	return out, nil
}

// Rename moves an entry, session included, from oldID to newID
func (s *KeyStore) Rename(oldID, newID string) error {
	entry, exists := s.entries[oldID]
	if !exists {
		return fmt.Errorf("%w: %s", core.ErrKeyNotFound, oldID)
	}
	if _, exists := s.entries[newID]; exists {
		return fmt.Errorf("%w: %s", core.ErrDuplicateKey, newID)
	}

	key, err := jwks.WithKeyID(entry.Key, newID)
	if err != nil {
		return fmt.Errorf("failed to rename key: %w", err)
	}

	moved := &core.KeyEntry{ID: newID, Key: key}
	if entry.Session != nil {
		session := *entry.Session
		session.KeyID = newID
		moved.Session = &session
	}

	delete(s.entries, oldID)
	s.entries[newID] = moved
	return nil
}

// List returns the stored key ids in lexical order
func (s *KeyStore) List() []string {
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of stored keys
func (s *KeyStore) Len() int {
	return len(s.entries)
}

// AttachSession stores session as the proof of authorization of a key.
// The explicit keyID wins over the one carried by the session.
func (s *KeyStore) AttachSession(keyID *string, session core.Session) error {
	id := ""
	if keyID != nil {
		id = *keyID
	}
	if id == "" {
		id = session.KeyID
	}
	if id == "" {
		return core.ErrMissingKeyID
	}

	entry, exists := s.entries[id]
	if !exists {
		return fmt.Errorf("%w: %s", core.ErrKeyNotFound, id)
	}

	session.KeyID = id
	entry.Session = &session
	return nil
}

func (s *KeyStore) lookup(keyID *string) (*core.KeyEntry, error) {
	id := core.ResolveKeyID(keyID)
	entry, exists := s.entries[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", core.ErrKeyNotFound, id)
	}
	return entry, nil
}

// put stores a private copy of key with its kid set to id
func (s *KeyStore) put(id string, key jwk.Key) error {
	if key == nil {
		return fmt.Errorf("failed to store key %s: no key material", id)
	}

	stored, err := jwks.WithKeyID(key, id)
	if err != nil {
		return fmt.Errorf("failed to store key %s: %w", id, err)
	}

	s.entries[id] = &core.KeyEntry{ID: id, Key: stored}
	return nil
}
