package sessionkit

import (
	"errors"

	"github.com/layer-3/sessionkit/core"
)

// Error kinds returned by the Manager. Match them with errors.Is.
var (
	ErrDuplicateKey       = core.ErrDuplicateKey
	ErrKeyNotFound        = core.ErrKeyNotFound
	ErrMissingKeyID       = core.ErrMissingKeyID
	ErrInvalidNamespace   = core.ErrInvalidNamespace
	ErrActionEncoding     = core.ErrActionEncoding
	ErrSerialization      = core.ErrSerialization
	ErrNoMatchingGrant    = core.ErrNoMatchingGrant
	ErrInvalidURI         = core.ErrInvalidURI
	ErrInvalidDomain      = core.ErrInvalidDomain
	ErrInvalidAddress     = core.ErrInvalidAddress
	ErrInvalidNonce       = core.ErrInvalidNonce
	ErrInvalidStatement   = core.ErrInvalidStatement
	ErrInvalidRequestID   = core.ErrInvalidRequestID
	ErrTimestampParse     = core.ErrTimestampParse
	ErrResourceURI        = core.ErrResourceURI
	ErrIdentityDerivation = core.ErrIdentityDerivation
	ErrSigning            = core.ErrSigning
	ErrMalformedMessage   = core.ErrMalformedMessage
	ErrInvalidSignature   = core.ErrInvalidSignature
	ErrSessionNotAttached = core.ErrSessionNotAttached
	ErrInvalidKey         = core.ErrInvalidKey
	ErrVaultMiss          = core.ErrVaultMiss

	// ErrNoVault is returned by SaveKey and LoadKey without a configured vault
	ErrNoVault = errors.New("no key vault configured")
)
