// Package jwks converts session keys to and from their exchange formats:
// JWK JSON text, and the same text base64-encoded for text-only channels.
package jwks

import (
	"crypto"
	_ "crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/layer-3/sessionkit/core"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// Parse reads a JWK from its JSON text
func Parse(jwkJSON string) (jwk.Key, error) {
	key, err := jwk.ParseKey([]byte(jwkJSON))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid JWK format: %v", core.ErrInvalidKey, err)
	}
	return key, nil
}

// Encode writes a JWK as JSON text
func Encode(key jwk.Key) (string, error) {
	b, err := json.Marshal(key)
	if err != nil {
		return "", fmt.Errorf("failed to marshal JWK: %w", err)
	}
	return string(b), nil
}

// ParseBase64 reads a JWK whose JSON text is base64-encoded.
// Standard and URL alphabets are accepted, with or without padding.
func ParseBase64(encoded string) (jwk.Key, error) {
	raw, err := decodeBase64(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 JWK: %v", core.ErrInvalidKey, err)
	}
	return Parse(string(raw))
}

// EncodeBase64 writes a JWK as base64-encoded JSON text
func EncodeBase64(key jwk.Key) (string, error) {
	s, err := Encode(key)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString([]byte(s)), nil
}

// ParseAny accepts either representation. Values that look like a JSON
// object are parsed as JWK text, everything else as base64.
func ParseAny(value string) (jwk.Key, error) {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "{") {
		return Parse(trimmed)
	}
	return ParseBase64(trimmed)
}

// Clone returns an independent copy of key
func Clone(key jwk.Key) (jwk.Key, error) {
	s, err := Encode(key)
	if err != nil {
		return nil, err
	}
	return Parse(s)
}

// WithKeyID returns a copy of key whose "kid" is keyID
func WithKeyID(key jwk.Key, keyID string) (jwk.Key, error) {
	clone, err := Clone(key)
	if err != nil {
		return nil, err
	}
	if err := clone.Set(jwk.KeyIDKey, keyID); err != nil {
		return nil, fmt.Errorf("failed to set key id: %w", err)
	}
	return clone, nil
}

// Thumbprint returns the RFC 7638 SHA-256 thumbprint of key.
// The thumbprint ignores "kid", so it identifies key material only.
func Thumbprint(key jwk.Key) (string, error) {
	tp, err := key.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("failed to compute thumbprint: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(tp), nil
}

// SameMaterial reports whether two keys hold the same key material
func SameMaterial(a, b jwk.Key) bool {
	ta, err := Thumbprint(a)
	if err != nil {
		return false
	}
	tb, err := Thumbprint(b)
	if err != nil {
		return false
	}
	return ta == tb
}

func decodeBase64(s string) ([]byte, error) {
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
