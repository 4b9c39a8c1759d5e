package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/sessionkit/core"
	"github.com/layer-3/sessionkit/ports"
	"github.com/layer-3/sessionkit/siwe"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// SessionManager owns the key store and the capability accumulator of one
// client and builds SIWE messages delegating to its session keys.
// It holds no locks; use it from one goroutine at a time.
type SessionManager struct {
	keys         *KeyStore
	capabilities *Accumulator
	deriver      ports.IdentityDeriver
	builder      *siwe.Builder
	signer       ports.InvocationSigner
	nowTime      func() time.Time
	builderOpts  []siwe.Option
}

// SessionManagerOption configures a SessionManager
type SessionManagerOption func(*SessionManager)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) SessionManagerOption {
	return func(m *SessionManager) {
		m.nowTime = nowFunc
	}
}

// WithInvocationSigner enables SignInvocation
func WithInvocationSigner(signer ports.InvocationSigner) SessionManagerOption {
	return func(m *SessionManager) {
		m.signer = signer
	}
}

// WithBuilderOptions passes options through to the SIWE builder
func WithBuilderOptions(opts ...siwe.Option) SessionManagerOption {
	return func(m *SessionManager) {
		m.builderOpts = append(m.builderOpts, opts...)
	}
}

// NewSessionManager creates a session manager with a generated default key
func NewSessionManager(
	generator ports.KeyGenerator,
	deriver ports.IdentityDeriver,
	encoder ports.CapabilityEncoder,
	options ...SessionManagerOption,
) (*SessionManager, error) {
	if generator == nil {
		return nil, errors.New("[NewSessionManager] key generator is required")
	}
	if deriver == nil {
		return nil, errors.New("[NewSessionManager] identity deriver is required")
	}
	if encoder == nil {
		return nil, errors.New("[NewSessionManager] capability encoder is required")
	}

	m := &SessionManager{
		capabilities: NewAccumulator(),
		deriver:      deriver,
		nowTime:      time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	m.builder = siwe.NewBuilder(encoder, m.builderOpts...)

	keys, err := NewKeyStore(generator)
	if err != nil {
		return nil, err
	}
	m.keys = keys

	return m, nil
}

// CreateKey generates a new session key
func (m *SessionManager) CreateKey(keyID *string) (string, error) {
	return m.keys.Create(keyID)
}

// ImportKey stores caller-supplied key material
func (m *SessionManager) ImportKey(key jwk.Key, keyID *string, allowOverride bool) (string, error) {
	return m.keys.Import(key, keyID, allowOverride)
}

// ExportKey returns a copy of a stored key
func (m *SessionManager) ExportKey(keyID *string) (jwk.Key, error) {
	return m.keys.Export(keyID)
}

// Key returns a copy of a stored entry
func (m *SessionManager) Key(keyID *string) (core.KeyEntry, error) {
	return m.keys.Get(keyID)
}

// RenameKey moves a key to a new id
func (m *SessionManager) RenameKey(oldID, newID string) error {
	return m.keys.Rename(oldID, newID)
}

// ListKeys returns every key id
func (m *SessionManager) ListKeys() []string {
	return m.keys.List()
}

// AttachSession records the proof of authorization of a key
func (m *SessionManager) AttachSession(keyID *string, session core.Session) error {
	return m.keys.AttachSession(keyID, session)
}

// WithDefaultActions grants actions on every target of namespace
func (m *SessionManager) WithDefaultActions(namespace string, actions []string) error {
	return m.capabilities.WithDefaultActions(namespace, actions)
}

// WithTargetedActions grants actions on one target of namespace
func (m *SessionManager) WithTargetedActions(namespace, target string, actions []string) error {
	return m.capabilities.WithTargetedActions(namespace, target, actions)
}

// WithExtraFields attaches fields to the latest grant scope of namespace
func (m *SessionManager) WithExtraFields(namespace string, fields map[string]any) error {
	return m.capabilities.WithExtraFields(namespace, fields)
}

// ResetCapabilities discards accumulated grants
func (m *SessionManager) ResetCapabilities() {
	m.capabilities.Reset()
}

// Capabilities returns the accumulated grants
func (m *SessionManager) Capabilities() []core.Grant {
	return m.capabilities.Snapshot()
}

// IdentityURI derives the DID verification method of a stored key
func (m *SessionManager) IdentityURI(ctx context.Context, keyID *string) (string, error) {
	entry, err := m.keys.Get(keyID)
	if err != nil {
		return "", err
	}

	uri, err := m.deriver.DeriveIdentity(ctx, entry.Key)
	if err != nil {
		if errors.Is(err, core.ErrIdentityDerivation) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", core.ErrIdentityDerivation, err)
	}
	return uri, nil
}

// BuildMessage renders a SIWE message delegating the accumulated grants to
// a session key. overrideURI, when set, replaces the derived identity.
func (m *SessionManager) BuildMessage(ctx context.Context, req core.SiweRequest, keyID *string, overrideURI *string) (string, error) {
	var uri string
	if overrideURI != nil {
		uri = *overrideURI
	} else {
		derived, err := m.IdentityURI(ctx, keyID)
		if err != nil {
			return "", err
		}
		uri = derived
	}

	return m.builder.Build(req, uri, m.capabilities.Snapshot())
}

// SignInvocation issues a token signed by a session key that already holds
// a session. The token never outlives the session.
func (m *SessionManager) SignInvocation(ctx context.Context, keyID *string, audience string, ttl time.Duration) (string, error) {
	if m.signer == nil {
		return "", errors.New("no invocation signer configured")
	}

	entry, err := m.keys.Get(keyID)
	if err != nil {
		return "", err
	}
	if entry.Session == nil {
		return "", fmt.Errorf("%w: %s", core.ErrSessionNotAttached, entry.ID)
	}

	issuer := entry.Session.VerificationMethod
	if issuer == "" {
		if issuer, err = m.IdentityURI(ctx, &entry.ID); err != nil {
			return "", err
		}
	}

	proof := entry.Session.DelegationCID
	if proof == "" {
		proof = entry.Session.Signature
	}

	now := m.nowTime()
	expiresAt := now.Add(ttl)
	if !entry.Session.ExpiresAt.IsZero() && entry.Session.ExpiresAt.Before(expiresAt) {
		expiresAt = entry.Session.ExpiresAt
	}
	if !expiresAt.After(now) {
		return "", fmt.Errorf("%w: session expired at %s", core.ErrSessionNotAttached, entry.Session.ExpiresAt.Format(time.RFC3339))
	}

	return m.signer.Sign(entry.Key, core.Invocation{
		Issuer:    issuer,
		Audience:  audience,
		Proof:     proof,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	})
}
