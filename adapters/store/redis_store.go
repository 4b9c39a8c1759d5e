package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/layer-3/sessionkit/core"
	"github.com/layer-3/sessionkit/ports"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis implementation of the KeyVault interface
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis store
func NewRedisStore(client *redis.Client) ports.KeyVault {
	return &RedisStore{
		client: client,
		prefix: "sessionkit:key:",
	}
}

// Put stores a serialized key without expiry
func (s *RedisStore) Put(ctx context.Context, keyID string, jwkJSON string) error {
	if err := s.client.Set(ctx, s.prefix+keyID, jwkJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to store key: %w", err)
	}
	return nil
}

// Get returns the serialized key stored under keyID
func (s *RedisStore) Get(ctx context.Context, keyID string) (string, error) {
	val, err := s.client.Get(ctx, s.prefix+keyID).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: %s", core.ErrVaultMiss, keyID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to load key: %w", err)
	}
	return val, nil
}

// Delete removes a key
func (s *RedisStore) Delete(ctx context.Context, keyID string) error {
	if err := s.client.Del(ctx, s.prefix+keyID).Err(); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}

// List scans for stored key ids
func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	var ids []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	slices.Sort(ids)
	return slices.Compact(ids), nil
}
