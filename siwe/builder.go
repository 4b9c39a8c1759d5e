package siwe

import (
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/sessionkit/core"
	"github.com/layer-3/sessionkit/internal/eth"
	"github.com/layer-3/sessionkit/ports"
	spruce "github.com/spruceid/siwe-go"
)

const (
	// NonceLength is the length of generated nonces
	NonceLength = 17

	nonceAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// punctuation allowed in a URI and in a single path segment
	uriPunct   = "-._~:/?#[]@!$&'()*+,;="
	pcharPunct = "-._~!$&'()*+,;=:@"
)

var (
	schemePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*:`)
	noncePattern  = regexp.MustCompile(`^[A-Za-z0-9]{8,}$`)
)

// Builder validates SIWE requests and renders them as message text
type Builder struct {
	encoder ports.CapabilityEncoder
	nonce   func() (string, error)
}

// Option configures a Builder
type Option func(*Builder)

// WithNonceSource replaces the random nonce generator
func WithNonceSource(fn func() (string, error)) Option {
	return func(b *Builder) {
		b.nonce = fn
	}
}

// NewBuilder creates a builder that merges grants with encoder
func NewBuilder(encoder ports.CapabilityEncoder, opts ...Option) *Builder {
	b := &Builder{
		encoder: encoder,
		nonce:   GenerateNonce,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build composes the message for req signed over to identityURI and returns
// its canonical text. Validation stops at the first failing field.
func (b *Builder) Build(req core.SiweRequest, identityURI string, grants []core.Grant) (string, error) {
	msg, err := b.Compose(req, identityURI, grants)
	if err != nil {
		return "", err
	}
	return msg.String(), nil
}

// Compose is Build without the final serialization
func (b *Builder) Compose(req core.SiweRequest, identityURI string, grants []core.Grant) (*Message, error) {
	if _, err := parseURI(identityURI); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidURI, err)
	}

	if err := checkAuthority(req.Domain); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidDomain, err)
	}

	address, err := ParseAddress(req.Address)
	if err != nil {
		return nil, err
	}

	nonce := ""
	if req.Nonce != nil {
		nonce = *req.Nonce
	} else if nonce, err = b.nonce(); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	if !noncePattern.MatchString(nonce) {
		return nil, fmt.Errorf("%w: '%s' is not 8 or more alphanumeric characters", core.ErrInvalidNonce, nonce)
	}

	if err := checkTimestamp("issuedAt", req.IssuedAt); err != nil {
		return nil, err
	}
	if req.ExpirationTime != nil {
		if err := checkTimestamp("expirationTime", *req.ExpirationTime); err != nil {
			return nil, err
		}
	}
	if req.NotBefore != nil {
		if err := checkTimestamp("notBefore", *req.NotBefore); err != nil {
			return nil, err
		}
	}

	resources := make([]url.URL, 0, len(req.Resources)+1)
	for _, r := range req.Resources {
		if !utf8.ValidString(r) {
			return nil, fmt.Errorf("%w: resource is not valid UTF-8", core.ErrResourceURI)
		}
		u, err := parseURI(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrResourceURI, err)
		}
		resources = append(resources, *u)
	}

	statement := ""
	if req.Statement != nil {
		if strings.ContainsAny(*req.Statement, "\r\n") {
			return nil, fmt.Errorf("%w: line breaks are not allowed", core.ErrInvalidStatement)
		}
		statement = *req.Statement
	}

	if req.RequestID != nil {
		if err := checkChars(*req.RequestID, pcharPunct); err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrInvalidRequestID, err)
		}
	}

	if req.ChainID > math.MaxInt {
		return nil, fmt.Errorf("chain id %d is out of range", req.ChainID)
	}

	if len(grants) > 0 {
		fields, err := b.encoder.Encode(grants)
		if err != nil {
			return nil, fmt.Errorf("failed to encode capabilities: %w", err)
		}
		if fields.Resource != "" {
			u, err := parseURI(fields.Resource)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", core.ErrResourceURI, err)
			}
			resources = append(resources, *u)
		}
		if fields.Statement != "" {
			if strings.TrimSpace(statement) == "" {
				statement = fields.Statement
			} else {
				statement += " " + fields.Statement
			}
		}
	}

	options := map[string]interface{}{
		"chainId":  int(req.ChainID),
		"issuedAt": req.IssuedAt,
	}
	// a blank statement renders as no statement at all
	if strings.TrimSpace(statement) != "" {
		options["statement"] = statement
	}
	if req.ExpirationTime != nil {
		options["expirationTime"] = *req.ExpirationTime
	}
	if req.NotBefore != nil {
		options["notBefore"] = *req.NotBefore
	}
	if req.RequestID != nil {
		options["requestId"] = *req.RequestID
	}
	if len(resources) > 0 {
		options["resources"] = resources
	}

	msg, err := spruce.InitMessage(req.Domain, address.Hex(), identityURI, nonce, options)
	if err != nil {
		return nil, fmt.Errorf("failed to compose message: %w", err)
	}
	return msg, nil
}

// ParseAddress decodes a 20-byte address, with or without 0x
func ParseAddress(s string) (common.Address, error) {
	return eth.ParseAddress(s)
}

// VerifySignature reports whether signatureHex is an EIP-191 signature of
// message by address.
func VerifySignature(message, signatureHex, address string) (bool, error) {
	expected, err := ParseAddress(address)
	if err != nil {
		return false, err
	}
	return eth.VerifyPersonalSignature(message, signatureHex, expected)
}

// VerifyMessage checks that signatureHex is an EIP-191 signature of msg by
// the address msg names.
func VerifyMessage(msg *Message, signatureHex string) error {
	if !strings.HasPrefix(signatureHex, "0x") {
		signatureHex = "0x" + signatureHex
	}
	if _, err := msg.VerifyEIP191(signatureHex); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidSignature, err)
	}
	return nil
}

// GenerateNonce returns NonceLength random alphanumeric characters
func GenerateNonce() (string, error) {
	size := big.NewInt(int64(len(nonceAlphabet)))
	out := make([]byte, NonceLength)
	for i := range out {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		out[i] = nonceAlphabet[n.Int64()]
	}
	return string(out), nil
}

// parseURI accepts an absolute RFC 3986 URI made only of unreserved,
// reserved and percent-encoded characters.
func parseURI(s string) (*url.URL, error) {
	if err := checkChars(s, uriPunct); err != nil {
		return nil, fmt.Errorf("'%s': %v", s, err)
	}
	if !schemePattern.MatchString(s) {
		return nil, fmt.Errorf("'%s' has no scheme", s)
	}
	if strings.Count(s, "#") > 1 {
		return nil, fmt.Errorf("'%s' has more than one fragment", s)
	}

	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	if u.Opaque == "" && u.Host == "" && u.Path == "" {
		return nil, fmt.Errorf("'%s' is empty after the scheme", s)
	}
	return u, nil
}

func checkChars(s, punct string) error {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case strings.IndexByte(nonceAlphabet, c) >= 0, strings.IndexByte(punct, c) >= 0:
		case c == '%':
			if i+2 >= len(s) || !isHex(s[i+1]) || !isHex(s[i+2]) {
				return fmt.Errorf("bad percent-encoding at offset %d", i)
			}
			i += 2
		default:
			return fmt.Errorf("character %q at offset %d is not allowed", c, i)
		}
	}
	return nil
}

func isHex(c byte) bool {
	return strings.IndexByte("0123456789abcdefABCDEF", c) >= 0
}

// checkAuthority accepts [userinfo@]host[:port] and nothing else
func checkAuthority(s string) error {
	if s == "" {
		return fmt.Errorf("domain is empty")
	}
	if strings.ContainsAny(s, "/?#") {
		return fmt.Errorf("'%s' is not an authority", s)
	}

	u, err := url.Parse("//" + s)
	if err != nil {
		return err
	}
	if u.Hostname() == "" {
		return fmt.Errorf("'%s' has no host", s)
	}
	return nil
}

func checkTimestamp(field, value string) error {
	if _, err := time.Parse(time.RFC3339, value); err != nil {
		return &core.TimestampError{Field: field, Value: value, Err: err}
	}
	return nil
}
