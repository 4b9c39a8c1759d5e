package ports

import (
	"context"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// KeyGenerator produces fresh session keys
type KeyGenerator interface {
	Generate() (jwk.Key, error)
}

// IdentityDeriver derives the DID verification method URI of a key.
// Derivation may need to resolve a DID document, so it takes a context.
type IdentityDeriver interface {
	DeriveIdentity(ctx context.Context, key jwk.Key) (string, error)
}
