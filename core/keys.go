package core

import (
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// DefaultKeyID is the key id used whenever a caller omits one
const DefaultKeyID = "default"

// ResolveKeyID returns the explicit key id, or DefaultKeyID when it is nil
func ResolveKeyID(keyID *string) string {
	if keyID == nil {
		return DefaultKeyID
	}
	return *keyID
}

// KeyEntry is one named session key and its optional session attachment
type KeyEntry struct {
	ID      string   // Key id, always equal to the JWK "kid"
	Key     jwk.Key  // Private key material
	Session *Session // Proof of authorization, nil until a sign-in completes
}

// Session is the proof of authorization attached to a key after a signed
// SIWE message has been accepted upstream.
type Session struct {
	KeyID              string    `json:"keyId,omitempty"`              // Key the delegation was issued for
	VerificationMethod string    `json:"verificationMethod,omitempty"` // DID URL of the session key
	Message            string    `json:"message"`                      // Signed SIWE text
	Signature          string    `json:"signature"`                    // EIP-191 signature, hex
	Address            string    `json:"address,omitempty"`            // Recovered signer address
	DelegationHeader   string    `json:"delegationHeader,omitempty"`
	DelegationCID      string    `json:"delegationCid,omitempty"`
	ExpiresAt          time.Time `json:"expiresAt,omitempty"`
}

// KeyEventType identifies a key lifecycle change
type KeyEventType string

const (
	KeyCreated      KeyEventType = "key.created"
	KeyImported     KeyEventType = "key.imported"
	KeyRenamed      KeyEventType = "key.renamed"
	SessionAttached KeyEventType = "session.attached"
)

// KeyEvent describes a successful key store mutation
type KeyEvent struct {
	Type       KeyEventType `json:"type"`
	KeyID      string       `json:"key_id"`
	PreviousID string       `json:"previous_id,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// Invocation holds the claims of a token signed by a session key
type Invocation struct {
	Issuer    string    // DID URL of the session key
	Audience  string    // Service the invocation is addressed to
	Proof     string    // Delegation the session key acts under
	IssuedAt  time.Time
	ExpiresAt time.Time
}
