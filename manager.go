// Package sessionkit manages session keys that act on behalf of an Ethereum
// account. Hosts accumulate ReCap capability grants, build a Sign-In with
// Ethereum message delegating them to a session key's did:key, and attach
// the signed result as the key's session.
package sessionkit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/layer-3/sessionkit/adapters/diagnostics"
	"github.com/layer-3/sessionkit/adapters/didkey"
	"github.com/layer-3/sessionkit/adapters/recap"
	"github.com/layer-3/sessionkit/adapters/tokenizer"
	"github.com/layer-3/sessionkit/core"
	"github.com/layer-3/sessionkit/internal/eth"
	"github.com/layer-3/sessionkit/internal/jwks"
	"github.com/layer-3/sessionkit/ports"
	"github.com/layer-3/sessionkit/service"
	"github.com/layer-3/sessionkit/siwe"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultInvocationTTL bounds invocation tokens when no TTL is configured
	DefaultInvocationTTL = 5 * time.Minute

	// DefaultResolverCacheSize is the number of derived identities kept
	DefaultResolverCacheSize = 128
)

// Manager is the host-facing session manager. Capability grants report
// failure as false and send the error to the diagnostic sink; every other
// operation returns it. Like the SessionManager it wraps, it is not safe
// for concurrent use.
type Manager struct {
	session *service.SessionManager
	sink    ports.DiagnosticSink
	events  ports.EventPublisher
	vault   ports.KeyVault

	generator ports.KeyGenerator
	deriver   ports.IdentityDeriver
	encoder   ports.CapabilityEncoder
	signer    ports.InvocationSigner

	invocationTTL time.Duration
	nowTime       func() time.Time
	builderOpts   []siwe.Option
}

// Option configures a Manager
type Option func(*Manager)

// WithDiagnosticSink replaces the zerolog sink
func WithDiagnosticSink(sink ports.DiagnosticSink) Option {
	return func(m *Manager) {
		m.sink = sink
	}
}

// WithEventPublisher publishes key lifecycle events after each mutation
func WithEventPublisher(events ports.EventPublisher) Option {
	return func(m *Manager) {
		m.events = events
	}
}

// WithKeyVault enables SaveKey and LoadKey
func WithKeyVault(vault ports.KeyVault) Option {
	return func(m *Manager) {
		m.vault = vault
	}
}

// WithKeyGenerator replaces the Ed25519 key generator
func WithKeyGenerator(generator ports.KeyGenerator) Option {
	return func(m *Manager) {
		m.generator = generator
	}
}

// WithIdentityDeriver replaces the cached did:key deriver
func WithIdentityDeriver(deriver ports.IdentityDeriver) Option {
	return func(m *Manager) {
		m.deriver = deriver
	}
}

// WithCapabilityEncoder replaces the ReCap encoder
func WithCapabilityEncoder(encoder ports.CapabilityEncoder) Option {
	return func(m *Manager) {
		m.encoder = encoder
	}
}

// WithInvocationSigner replaces the JWT invocation signer
func WithInvocationSigner(signer ports.InvocationSigner) Option {
	return func(m *Manager) {
		m.signer = signer
	}
}

// WithInvocationTTL sets the lifetime of invocation tokens
func WithInvocationTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.invocationTTL = ttl
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

// WithNonceSource replaces the random SIWE nonce generator
func WithNonceSource(fn func() (string, error)) Option {
	return func(m *Manager) {
		m.builderOpts = append(m.builderOpts, siwe.WithNonceSource(fn))
	}
}

// New creates a Manager holding a freshly generated "default" key
func New(options ...Option) (*Manager, error) {
	m := &Manager{
		invocationTTL: DefaultInvocationTTL,
		nowTime:       time.Now,
	}
	for _, opt := range options {
		opt(m)
	}

	if m.sink == nil {
		m.sink = diagnostics.NewZerologSink(log.Logger, "sessionkit")
	}
	if m.generator == nil {
		m.generator = didkey.NewEd25519Generator()
	}
	if m.deriver == nil {
		m.deriver = didkey.NewResolver(didkey.NewDeriver(), DefaultResolverCacheSize, didkey.DefaultCacheTTL)
	}
	if m.encoder == nil {
		m.encoder = recap.NewEncoder()
	}
	if m.signer == nil {
		m.signer = tokenizer.NewJWTTokenizer()
	}

	session, err := service.NewSessionManager(m.generator, m.deriver, m.encoder,
		service.WithInvocationSigner(m.signer),
		service.WithNowTime(m.nowTime),
		service.WithBuilderOptions(m.builderOpts...),
	)
	if err != nil {
		return nil, err
	}
	m.session = session

	return m, nil
}

// AddDefaultActions grants actions on every target of namespace
func (m *Manager) AddDefaultActions(namespace string, actions []string) bool {
	return m.collapse(m.session.WithDefaultActions(namespace, actions))
}

// AddTargetedActions grants actions on namespace:target
func (m *Manager) AddTargetedActions(namespace, target string, actions []string) bool {
	return m.collapse(m.session.WithTargetedActions(namespace, target, actions))
}

// AddExtraFields attaches fields to the latest grant scope of namespace
func (m *Manager) AddExtraFields(namespace string, fields map[string]any) bool {
	return m.collapse(m.session.WithExtraFields(namespace, fields))
}

// ResetCapability discards accumulated grants
func (m *Manager) ResetCapability() {
	m.session.ResetCapabilities()
}

// Capabilities returns the accumulated grants
func (m *Manager) Capabilities() []core.Grant {
	return m.session.Capabilities()
}

// Build renders the SIWE message for req. The session key's identity is the
// URI unless overrideURI is set.
func (m *Manager) Build(ctx context.Context, req core.SiweRequest, keyID, overrideURI *string) (string, error) {
	return m.session.BuildMessage(ctx, req, keyID, overrideURI)
}

// CompleteSignIn checks that message was built for the key and signed by
// the account it names, then attaches it as the key's session.
func (m *Manager) CompleteSignIn(ctx context.Context, keyID *string, message, signature string) (core.Session, error) {
	id := core.ResolveKeyID(keyID)

	msg, err := siwe.ParseMessage(message)
	if err != nil {
		return core.Session{}, err
	}
	if msg.String() != message {
		return core.Session{}, fmt.Errorf("%w: text is not in canonical form", core.ErrMalformedMessage)
	}

	uri, err := m.session.IdentityURI(ctx, &id)
	if err != nil {
		return core.Session{}, err
	}
	signer := msg.GetURI()
	if signer.String() != uri {
		return core.Session{}, fmt.Errorf("%w: message is addressed to %s, not key %s", core.ErrInvalidURI, signer.String(), id)
	}

	if err := siwe.VerifyMessage(msg, signature); err != nil {
		return core.Session{}, err
	}

	address := msg.GetAddress()
	session := core.Session{
		KeyID:              id,
		VerificationMethod: uri,
		Message:            message,
		Signature:          strings.TrimPrefix(signature, "0x"),
		Address:            address.Hex(),
	}
	if exp := msg.GetExpirationTime(); exp != nil {
		if t, err := time.Parse(time.RFC3339, *exp); err == nil {
			session.ExpiresAt = t
		}
	}

	if err := m.UpdateSession(ctx, &id, session); err != nil {
		return core.Session{}, err
	}
	return session, nil
}

// CreateSessionKey generates a new session key
func (m *Manager) CreateSessionKey(ctx context.Context, keyID *string) (string, error) {
	id, err := m.session.CreateKey(keyID)
	if err != nil {
		return "", err
	}
	m.publish(ctx, core.KeyCreated, id, "")
	return id, nil
}

// ImportSessionKey stores caller-supplied key material
func (m *Manager) ImportSessionKey(ctx context.Context, key jwk.Key, keyID *string, allowOverride bool) (string, error) {
	id, err := m.session.ImportKey(key, keyID, allowOverride)
	if err != nil {
		return "", err
	}
	m.publish(ctx, core.KeyImported, id, "")
	return id, nil
}

// RenameSessionKeyID moves a key and its session to newID
func (m *Manager) RenameSessionKeyID(ctx context.Context, oldID, newID string) error {
	if err := m.session.RenameKey(oldID, newID); err != nil {
		return err
	}
	m.publish(ctx, core.KeyRenamed, newID, oldID)
	return nil
}

// ListSessionKeys returns every key id
func (m *Manager) ListSessionKeys() []string {
	return m.session.ListKeys()
}

// UpdateSession attaches session to a key. A nil keyID falls back to the
// key id carried by the session.
func (m *Manager) UpdateSession(ctx context.Context, keyID *string, session core.Session) error {
	if err := m.session.AttachSession(keyID, session); err != nil {
		return err
	}

	id := session.KeyID
	if keyID != nil && *keyID != "" {
		id = *keyID
	}
	m.publish(ctx, core.SessionAttached, id, "")
	return nil
}

// GetDID returns the did:key DID of a session key
func (m *Manager) GetDID(ctx context.Context, keyID *string) (string, error) {
	uri, err := m.session.IdentityURI(ctx, keyID)
	if err != nil {
		return "", err
	}
	did, _, _ := strings.Cut(uri, "#")
	return did, nil
}

// IdentityURI returns the DID verification method of a session key
func (m *Manager) IdentityURI(ctx context.Context, keyID *string) (string, error) {
	return m.session.IdentityURI(ctx, keyID)
}

// JWK returns the public half of a session key as JWK JSON. Unlike the
// browser SDK's jwk(), the private key is never included; use ExportKey for
// the full key.
func (m *Manager) JWK(keyID *string) (string, error) {
	key, err := m.session.ExportKey(keyID)
	if err != nil {
		return "", err
	}
	pub, err := key.PublicKey()
	if err != nil {
		return "", fmt.Errorf("failed to derive public key: %w", err)
	}
	return jwks.Encode(pub)
}

// ImportKey stores a private key given as JWK JSON
func (m *Manager) ImportKey(ctx context.Context, jwkJSON string, keyID *string, allowOverride bool) (string, error) {
	key, err := jwks.Parse(jwkJSON)
	if err != nil {
		return "", err
	}
	return m.ImportSessionKey(ctx, key, keyID, allowOverride)
}

// ExportKey returns a private key as JWK JSON
func (m *Manager) ExportKey(keyID *string) (string, error) {
	key, err := m.session.ExportKey(keyID)
	if err != nil {
		return "", err
	}
	return jwks.Encode(key)
}

// ImportKeyBase64 stores a private key given as base64 JWK JSON
func (m *Manager) ImportKeyBase64(ctx context.Context, encoded string, keyID *string, allowOverride bool) (string, error) {
	key, err := jwks.ParseBase64(encoded)
	if err != nil {
		return "", err
	}
	return m.ImportSessionKey(ctx, key, keyID, allowOverride)
}

// ExportKeyBase64 returns a private key as base64 JWK JSON
func (m *Manager) ExportKeyBase64(keyID *string) (string, error) {
	key, err := m.session.ExportKey(keyID)
	if err != nil {
		return "", err
	}
	return jwks.EncodeBase64(key)
}

// ImportKeyFromEnvValue stores a key read by the host from an environment
// variable, in either JWK JSON or base64 form.
func (m *Manager) ImportKeyFromEnvValue(ctx context.Context, value string, keyID *string, allowOverride bool) (string, error) {
	key, err := jwks.ParseAny(value)
	if err != nil {
		return "", err
	}
	return m.ImportSessionKey(ctx, key, keyID, allowOverride)
}

// SaveKey writes a key to the vault
func (m *Manager) SaveKey(ctx context.Context, keyID *string) error {
	if m.vault == nil {
		return ErrNoVault
	}

	jwkJSON, err := m.ExportKey(keyID)
	if err != nil {
		return err
	}
	return m.vault.Put(ctx, core.ResolveKeyID(keyID), jwkJSON)
}

// LoadKey imports a key from the vault under the same id
func (m *Manager) LoadKey(ctx context.Context, keyID *string, allowOverride bool) (string, error) {
	if m.vault == nil {
		return "", ErrNoVault
	}

	jwkJSON, err := m.vault.Get(ctx, core.ResolveKeyID(keyID))
	if err != nil {
		return "", err
	}
	return m.ImportKey(ctx, jwkJSON, keyID, allowOverride)
}

// SignInvocation issues a token signed by a key holding a session
func (m *Manager) SignInvocation(ctx context.Context, keyID *string, audience string) (string, error) {
	return m.session.SignInvocation(ctx, keyID, audience, m.invocationTTL)
}

// SignSecp256k1 signs the SHA-256 digest of message with a hex secp256k1
// private key and returns the 64-byte r || s signature.
func SignSecp256k1(message []byte, privateKeyHex string) ([]byte, error) {
	return eth.SignCompact(message, privateKeyHex)
}

// SignEthereumMessage signs message with the EIP-191 prefix and returns the
// 65-byte r || s || v signature as hex, v being 27 or 28.
func SignEthereumMessage(message string, privateKeyHex string) (string, error) {
	sig, err := eth.SignPersonalMessage(message, privateKeyHex)
	if err != nil {
		return "", err
	}
	return sig.Hex(), nil
}

func (m *Manager) collapse(err error) bool {
	if err != nil {
		m.sink.LogError(err.Error())
		return false
	}
	return true
}

// publish reports failures to the sink; the mutation has already happened
func (m *Manager) publish(ctx context.Context, typ core.KeyEventType, keyID, previousID string) {
	if m.events == nil {
		return
	}

	event := core.KeyEvent{
		Type:       typ,
		KeyID:      keyID,
		PreviousID: previousID,
		OccurredAt: m.nowTime(),
	}
	if err := m.events.PublishKeyEvent(ctx, event); err != nil {
		m.sink.LogError(fmt.Sprintf("failed to publish %s event for key %s: %v", typ, keyID, err))
	}
}
