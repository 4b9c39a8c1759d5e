package tokenizer

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/layer-3/sessionkit/core"
	"github.com/layer-3/sessionkit/ports"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// JWTTokenizer implements the InvocationSigner interface using JWT
type JWTTokenizer struct{}

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer() ports.InvocationSigner {
	return &JWTTokenizer{}
}

// Sign converts an invocation to a JWT signed by the session key
func (j *JWTTokenizer) Sign(key jwk.Key, invocation core.Invocation) (string, error) {
	method, signKey, err := signingKey(key)
	if err != nil {
		return "", err
	}

	claims := InvocationClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    invocation.Issuer,
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(invocation.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(invocation.IssuedAt),
			Audience:  jwt.ClaimStrings{invocation.Audience},
		},
		Proof: invocation.Proof,
	}

	token := jwt.NewWithClaims(method, claims)
	if kid := key.KeyID(); kid != "" {
		token.Header["kid"] = kid
	}

	signedToken, err := token.SignedString(signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign invocation: %w", err)
	}

	return signedToken, nil
}

// Parse verifies a token against the public half of key and returns its
// invocation
func (j *JWTTokenizer) Parse(tokenStr string, key jwk.Key) (*core.Invocation, error) {
	method, verifyKey, err := verificationKey(key)
	if err != nil {
		return nil, err
	}

	token, err := jwt.ParseWithClaims(tokenStr, &InvocationClaims{}, func(token *jwt.Token) (interface{}, error) {
		return verifyKey, nil
	}, jwt.WithValidMethods([]string{method.Alg()}), jwt.WithIssuedAt())
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, core.ErrInvalidSignature
	}

	claims, ok := token.Claims.(*InvocationClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims type")
	}

	invocation := &core.Invocation{
		Issuer: claims.Issuer,
		Proof:  claims.Proof,
	}
	if len(claims.Audience) > 0 {
		invocation.Audience = claims.Audience[0]
	}
	if claims.IssuedAt != nil {
		invocation.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		invocation.ExpiresAt = claims.ExpiresAt.Time
	}

	return invocation, nil
}

func signingKey(key jwk.Key) (jwt.SigningMethod, interface{}, error) {
	if key == nil {
		return nil, nil, fmt.Errorf("no signing key")
	}

	var raw interface{}
	if err := key.Raw(&raw); err != nil {
		return nil, nil, fmt.Errorf("failed to read signing key: %w", err)
	}

	switch k := raw.(type) {
	case ed25519.PrivateKey:
		return jwt.SigningMethodEdDSA, k, nil
	case *ecdsa.PrivateKey:
		return jwt.SigningMethodES256, k, nil
	case ecdsa.PrivateKey:
		return jwt.SigningMethodES256, &k, nil
	default:
		return nil, nil, fmt.Errorf("unsupported signing key type %T", raw)
	}
}

func verificationKey(key jwk.Key) (jwt.SigningMethod, interface{}, error) {
	if key == nil {
		return nil, nil, fmt.Errorf("no verification key")
	}

	pub, err := key.PublicKey()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to derive public key: %w", err)
	}

	var raw interface{}
	if err := pub.Raw(&raw); err != nil {
		return nil, nil, fmt.Errorf("failed to read public key: %w", err)
	}

	switch k := raw.(type) {
	case ed25519.PublicKey:
		return jwt.SigningMethodEdDSA, k, nil
	case *ecdsa.PublicKey:
		return jwt.SigningMethodES256, k, nil
	case ecdsa.PublicKey:
		return jwt.SigningMethodES256, &k, nil
	default:
		return nil, nil, fmt.Errorf("unsupported verification key type %T", raw)
	}
}
