package ports

import "context"

// KeyVault persists serialized JWKs outside the process
type KeyVault interface {
	Put(ctx context.Context, keyID string, jwkJSON string) error
	Get(ctx context.Context, keyID string) (string, error)
	Delete(ctx context.Context, keyID string) error
	List(ctx context.Context) ([]string, error)
}
