package sessionkit

import (
	"context"

	"github.com/layer-3/sessionkit/core"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// Client represents the public interface for hosts embedding a session manager
type Client interface {
	// Capability grants collapse errors to false and report them to the diagnostic sink
	AddDefaultActions(namespace string, actions []string) bool
	AddTargetedActions(namespace, target string, actions []string) bool
	AddExtraFields(namespace string, fields map[string]any) bool
	ResetCapability()
	Capabilities() []core.Grant

	// Build renders the SIWE message delegating the grants to a session key
	Build(ctx context.Context, req core.SiweRequest, keyID, overrideURI *string) (string, error)

	// CompleteSignIn verifies a signed message and attaches the session
	CompleteSignIn(ctx context.Context, keyID *string, message, signature string) (core.Session, error)

	CreateSessionKey(ctx context.Context, keyID *string) (string, error)
	ImportSessionKey(ctx context.Context, key jwk.Key, keyID *string, allowOverride bool) (string, error)
	RenameSessionKeyID(ctx context.Context, oldID, newID string) error
	ListSessionKeys() []string
	UpdateSession(ctx context.Context, keyID *string, session core.Session) error

	GetDID(ctx context.Context, keyID *string) (string, error)
	IdentityURI(ctx context.Context, keyID *string) (string, error)
	JWK(keyID *string) (string, error)

	ImportKey(ctx context.Context, jwkJSON string, keyID *string, allowOverride bool) (string, error)
	ExportKey(keyID *string) (string, error)
	ImportKeyBase64(ctx context.Context, encoded string, keyID *string, allowOverride bool) (string, error)
	ExportKeyBase64(keyID *string) (string, error)
	ImportKeyFromEnvValue(ctx context.Context, value string, keyID *string, allowOverride bool) (string, error)

	SaveKey(ctx context.Context, keyID *string) error
	LoadKey(ctx context.Context, keyID *string, allowOverride bool) (string, error)

	SignInvocation(ctx context.Context, keyID *string, audience string) (string, error)
}

var _ Client = (*Manager)(nil)
