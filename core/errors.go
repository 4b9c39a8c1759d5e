package core

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateKey is returned when a key id is already present in the key store
	ErrDuplicateKey = errors.New("key already exists")

	// ErrKeyNotFound is returned when no key is stored under the requested id
	ErrKeyNotFound = errors.New("key not found")

	// ErrMissingKeyID is returned when a session cannot be tied to a key id
	ErrMissingKeyID = errors.New("no key id provided")

	// ErrInvalidNamespace is returned when a capability namespace does not parse
	ErrInvalidNamespace = errors.New("invalid capability namespace")

	// ErrActionEncoding is returned when a capability action fails validation
	ErrActionEncoding = errors.New("invalid capability action")

	// ErrSerialization is returned when extra fields are not a JSON object
	ErrSerialization = errors.New("unable to serialize extra fields")

	// ErrNoMatchingGrant is returned when extra fields target a namespace without grants
	ErrNoMatchingGrant = errors.New("no grant in namespace")

	// ErrInvalidURI is returned when the signer identity is not a URI
	ErrInvalidURI = errors.New("invalid uri")

	// ErrInvalidDomain is returned when the domain is not a URI authority
	ErrInvalidDomain = errors.New("failed to parse the domain as an authority")

	// ErrInvalidAddress is returned when the address is not 20 hex-encoded bytes
	ErrInvalidAddress = errors.New("invalid ethereum address")

	// ErrInvalidNonce is returned when a nonce is not 8 or more alphanumerics
	ErrInvalidNonce = errors.New("invalid nonce")

	// ErrInvalidStatement is returned when a statement spans more than one line
	ErrInvalidStatement = errors.New("invalid statement")

	// ErrInvalidRequestID is returned when a request id has characters outside pchar
	ErrInvalidRequestID = errors.New("invalid request id")

	// ErrTimestampParse is returned when a timestamp is not RFC 3339
	ErrTimestampParse = errors.New("unable to parse timestamp from string")

	// ErrResourceURI is returned when a resource is not a valid UTF-8 URI
	ErrResourceURI = errors.New("unable to parse resource as uri")

	// ErrIdentityDerivation is returned when no DID can be derived from a key
	ErrIdentityDerivation = errors.New("unable to derive the DID of the session key")

	// ErrSigning is returned for malformed input to the secp256k1 signing utility
	ErrSigning = errors.New("signing failed")

	// ErrMalformedMessage is returned when signed text is not a SIWE message
	ErrMalformedMessage = errors.New("malformed SIWE message")

	// ErrInvalidSignature is returned when a signature does not match the signer
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrSessionNotAttached is returned when a key has no session attachment
	ErrSessionNotAttached = errors.New("no session attached to key")

	// ErrInvalidKey is returned when key material does not decode as a JWK
	ErrInvalidKey = errors.New("invalid key material")

	// ErrVaultMiss is returned when the key vault holds nothing under a key id
	ErrVaultMiss = errors.New("key not found in vault")
)

// TimestampError names the request field whose timestamp failed to parse.
type TimestampError struct {
	Field string
	Value string
	Err   error
}

func (e *TimestampError) Error() string {
	return fmt.Sprintf("%s: %s %q: %v", ErrTimestampParse, e.Field, e.Value, e.Err)
}

// Unwrap lets errors.Is match ErrTimestampParse as well as the parse cause.
func (e *TimestampError) Unwrap() []error {
	return []error{ErrTimestampParse, e.Err}
}
