package tokenizer

import "github.com/golang-jwt/jwt/v5"

// InvocationClaims combines standard claims with the delegation proof
type InvocationClaims struct {
	jwt.RegisteredClaims
	Proof string `json:"prf,omitempty"` // Delegation the issuer acts under
}
