package didkey

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"fmt"
	"io"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"golang.org/x/crypto/hkdf"
)

// Ed25519Generator generates Ed25519 session keys as JWKs
type Ed25519Generator struct {
	rand io.Reader
}

// NewEd25519Generator creates a generator reading entropy from crypto/rand
func NewEd25519Generator() *Ed25519Generator {
	return &Ed25519Generator{rand: rand.Reader}
}

// Generate returns a fresh Ed25519 private JWK
func (g *Ed25519Generator) Generate() (jwk.Key, error) {
	_, priv, err := ed25519.GenerateKey(g.rand)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session key: %w", err)
	}
	return fromEd25519(priv)
}

// DeriveEd25519 deterministically derives an Ed25519 JWK from seed material.
// HKDF-SHA512 separates keys derived from the same seed by label.
func DeriveEd25519(seed []byte, label string) (jwk.Key, error) {
	if len(seed) == 0 {
		return nil, fmt.Errorf("seed must not be empty")
	}

	r := hkdf.New(sha512.New, seed, []byte("sessionkit"), []byte(label))
	edSeed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(r, edSeed); err != nil {
		return nil, fmt.Errorf("failed to derive key seed: %w", err)
	}

	return fromEd25519(ed25519.NewKeyFromSeed(edSeed))
}

func fromEd25519(priv ed25519.PrivateKey) (jwk.Key, error) {
	key, err := jwk.FromRaw(priv)
	if err != nil {
		return nil, fmt.Errorf("failed to convert session key to JWK: %w", err)
	}
	return key, nil
}
