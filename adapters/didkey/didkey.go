// Package didkey derives did:key identifiers for session keys.
package didkey

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"fmt"
	"strings"

	"github.com/bluesky-social/indigo/atproto/crypto"
	"github.com/bluesky-social/indigo/atproto/syntax"
	"github.com/layer-3/sessionkit/core"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multicodec"
	"github.com/multiformats/go-varint"
)

const didKeyPrefix = "did:key:"

// Deriver derives did:key DIDs from Ed25519 (OKP) and P-256 (EC) JWKs
type Deriver struct{}

// NewDeriver creates a did:key deriver
func NewDeriver() *Deriver {
	return &Deriver{}
}

// DeriveIdentity returns the verification method URI did:key:<id>#<id>
func (d *Deriver) DeriveIdentity(ctx context.Context, key jwk.Key) (string, error) {
	did, err := d.DID(key)
	if err != nil {
		return "", err
	}
	return VerificationMethod(did)
}

// DID returns the did:key DID of key's public half
func (d *Deriver) DID(key jwk.Key) (string, error) {
	pub, err := key.PublicKey()
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrIdentityDerivation, err)
	}

	var did string
	switch pub.KeyType() {
	case jwa.OKP:
		did, err = ed25519DID(pub)
	case jwa.EC:
		did, err = p256DID(pub)
	default:
		err = fmt.Errorf("unsupported key type %s", pub.KeyType())
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrIdentityDerivation, err)
	}

	if _, err := syntax.ParseDID(did); err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrIdentityDerivation, err)
	}
	return did, nil
}

// VerificationMethod returns the DID URL of the single key in a did:key DID
func VerificationMethod(did string) (string, error) {
	parsed, err := syntax.ParseDID(did)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrIdentityDerivation, err)
	}
	if parsed.Method() != "key" {
		return "", fmt.Errorf("%w: unsupported DID method %q", core.ErrIdentityDerivation, parsed.Method())
	}
	return did + "#" + strings.TrimPrefix(did, didKeyPrefix), nil
}

func ed25519DID(pub jwk.Key) (string, error) {
	okp, ok := pub.(jwk.OKPPublicKey)
	if !ok || okp.Crv() != jwa.Ed25519 {
		return "", fmt.Errorf("unsupported OKP curve")
	}

	var raw ed25519.PublicKey
	if err := pub.Raw(&raw); err != nil {
		return "", err
	}

	data := append(varint.ToUvarint(uint64(multicodec.Ed25519Pub)), raw...)
	encoded, err := multibase.Encode(multibase.Base58BTC, data)
	if err != nil {
		return "", err
	}
	return didKeyPrefix + encoded, nil
}

func p256DID(pub jwk.Key) (string, error) {
	ec, ok := pub.(jwk.ECDSAPublicKey)
	if !ok || ec.Crv() != jwa.P256 {
		return "", fmt.Errorf("unsupported EC curve")
	}

	var raw ecdsa.PublicKey
	if err := pub.Raw(&raw); err != nil {
		return "", err
	}

	compressed := elliptic.MarshalCompressed(elliptic.P256(), raw.X, raw.Y)
	p256, err := crypto.ParsePublicBytesP256(compressed)
	if err != nil {
		return "", err
	}
	return p256.DIDKey(), nil
}
