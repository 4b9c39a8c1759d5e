package didkey

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/layer-3/sessionkit/internal/jwks"
	"github.com/layer-3/sessionkit/ports"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// DefaultCacheTTL bounds how long a derived identity is reused
const DefaultCacheTTL = 5 * time.Minute

// Resolver caches derived identities by key thumbprint
type Resolver struct {
	deriver ports.IdentityDeriver
	cache   *expirable.LRU[string, string]
}

// NewResolver wraps deriver with an LRU cache of the given size
func NewResolver(deriver ports.IdentityDeriver, size int, ttl time.Duration) *Resolver {
	return &Resolver{
		deriver: deriver,
		cache:   expirable.NewLRU[string, string](size, nil, ttl),
	}
}

// DeriveIdentity returns the cached identity of key, deriving it on a miss
func (r *Resolver) DeriveIdentity(ctx context.Context, key jwk.Key) (string, error) {
	tp, err := jwks.Thumbprint(key)
	if err != nil {
		return r.deriver.DeriveIdentity(ctx, key)
	}

	skipCache, _ := ctx.Value(skipCacheKey{}).(bool)
	if !skipCache {
		if uri, ok := r.cache.Get(tp); ok {
			return uri, nil
		}
	}

	uri, err := r.deriver.DeriveIdentity(ctx, key)
	if err != nil {
		return "", err
	}

	r.cache.Add(tp, uri)
	return uri, nil
}

// Bust drops the cached identity of key
func (r *Resolver) Bust(key jwk.Key) {
	if tp, err := jwks.Thumbprint(key); err == nil {
		r.cache.Remove(tp)
	}
}

// Len returns the number of cached identities
func (r *Resolver) Len() int {
	return r.cache.Len()
}

type skipCacheKey struct{}

// WithSkipCache returns a context that makes the resolver re-derive
func WithSkipCache(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipCacheKey{}, true)
}
