package siwe_test

import (
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/layer-3/sessionkit/adapters/recap"
	"github.com/layer-3/sessionkit/core"
	"github.com/layer-3/sessionkit/internal/eth"
	"github.com/layer-3/sessionkit/siwe"
	"github.com/stretchr/testify/require"
)

const (
	testURI     = "did:key:z6MkpTHR8VNsBxYAAWHut2Geadd9jSwuBV8xRoAnwWsdvktH#z6MkpTHR8VNsBxYAAWHut2Geadd9jSwuBV8xRoAnwWsdvktH"
	testAddress = "0xFb6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
	checksummed = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"

	hardhatKey     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	hardhatAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func ptr(s string) *string { return &s }

func baseRequest() core.SiweRequest {
	return core.SiweRequest{
		Address:  testAddress,
		ChainID:  1,
		Domain:   "example.com",
		IssuedAt: "2024-01-01T00:00:00Z",
	}
}

type fixedEncoder struct {
	fields core.CapabilityFields
	err    error
}

func (e fixedEncoder) Encode([]core.Grant) (core.CapabilityFields, error) {
	return e.fields, e.err
}

func resources(msg *siwe.Message) []string {
	var out []string
	for _, r := range msg.GetResources() {
		out = append(out, r.String())
	}
	return out
}

func TestBuild_Text(t *testing.T) {
	b := siwe.NewBuilder(recap.NewEncoder())

	t.Run("minimal", func(t *testing.T) {
		req := baseRequest()
		req.Nonce = ptr("abcdefgh12345678")

		text, err := b.Build(req, testURI, nil)
		require.NoError(t, err)
		require.Equal(t, "example.com wants you to sign in with your Ethereum account:\n"+
			checksummed+"\n\n\n"+
			"URI: "+testURI+"\n"+
			"Version: 1\n"+
			"Chain ID: 1\n"+
			"Nonce: abcdefgh12345678\n"+
			"Issued At: 2024-01-01T00:00:00Z", text)
	})

	t.Run("all fields", func(t *testing.T) {
		req := baseRequest()
		req.Domain = "app.example.com:8443"
		req.Nonce = ptr("32891756")
		req.Statement = ptr("Sign in to the app.")
		req.ExpirationTime = ptr("2024-01-02T00:00:00.000Z")
		req.NotBefore = ptr("2023-12-31T00:00:00+01:00")
		req.RequestID = ptr("req-1")
		req.Resources = []string{"ipfs://bafybeiemxf5abjwjbikoz4mc3a3dla6ual3jsgpdr4cjr3oz3evfyavhwq/", "https://example.com/my-web2-claim.json"}

		text, err := b.Build(req, testURI, nil)
		require.NoError(t, err)
		require.Equal(t, "app.example.com:8443 wants you to sign in with your Ethereum account:\n"+
			checksummed+"\n\n"+
			"Sign in to the app.\n\n"+
			"URI: "+testURI+"\n"+
			"Version: 1\n"+
			"Chain ID: 1\n"+
			"Nonce: 32891756\n"+
			"Issued At: 2024-01-01T00:00:00Z\n"+
			"Expiration Time: 2024-01-02T00:00:00.000Z\n"+
			"Not Before: 2023-12-31T00:00:00+01:00\n"+
			"Request ID: req-1\n"+
			"Resources:\n"+
			"- ipfs://bafybeiemxf5abjwjbikoz4mc3a3dla6ual3jsgpdr4cjr3oz3evfyavhwq/\n"+
			"- https://example.com/my-web2-claim.json", text)
	})

	t.Run("address without prefix", func(t *testing.T) {
		req := baseRequest()
		req.Nonce = ptr("abcdefgh")
		withPrefix, err := b.Build(req, testURI, nil)
		require.NoError(t, err)

		req.Address = strings.TrimPrefix(strings.ToLower(testAddress), "0x")
		without, err := b.Build(req, testURI, nil)
		require.NoError(t, err)
		require.Equal(t, withPrefix, without)
	})
}

func TestBuild_Nonce(t *testing.T) {
	b := siwe.NewBuilder(recap.NewEncoder())
	alnum := regexp.MustCompile(`^[A-Za-z0-9]+$`)
	nonceLine := regexp.MustCompile(`(?m)^Nonce: (.*)$`)

	t.Run("explicit nonce is deterministic", func(t *testing.T) {
		req := baseRequest()
		req.Nonce = ptr("fixednonce1")
		first, err := b.Build(req, testURI, nil)
		require.NoError(t, err)
		second, err := b.Build(req, testURI, nil)
		require.NoError(t, err)
		require.Equal(t, first, second)
	})

	t.Run("generated nonces differ", func(t *testing.T) {
		first, err := b.Build(baseRequest(), testURI, nil)
		require.NoError(t, err)
		second, err := b.Build(baseRequest(), testURI, nil)
		require.NoError(t, err)

		require.Contains(t, first, "example.com wants you to sign in")
		require.Contains(t, first, checksummed)
		require.Contains(t, first, "Chain ID: 1")
		require.Contains(t, first, "2024-01-01T00:00:00Z")

		n1 := nonceLine.FindStringSubmatch(first)[1]
		n2 := nonceLine.FindStringSubmatch(second)[1]
		require.NotEqual(t, n1, n2)
		for _, n := range []string{n1, n2} {
			require.GreaterOrEqual(t, len(n), 8)
			require.Regexp(t, alnum, n)
		}
	})

	t.Run("custom source", func(t *testing.T) {
		b := siwe.NewBuilder(recap.NewEncoder(), siwe.WithNonceSource(func() (string, error) {
			return "fromsource", nil
		}))
		text, err := b.Build(baseRequest(), testURI, nil)
		require.NoError(t, err)
		require.Contains(t, text, "\nNonce: fromsource\n")
	})

	t.Run("source failure", func(t *testing.T) {
		b := siwe.NewBuilder(recap.NewEncoder(), siwe.WithNonceSource(func() (string, error) {
			return "", errors.New("no entropy")
		}))
		_, err := b.Build(baseRequest(), testURI, nil)
		require.Error(t, err)
	})
}

func TestGenerateNonce(t *testing.T) {
	n, err := siwe.GenerateNonce()
	require.NoError(t, err)
	require.Len(t, n, siwe.NonceLength)
	require.Regexp(t, `^[A-Za-z0-9]+$`, n)
}

func TestBuild_Errors(t *testing.T) {
	b := siwe.NewBuilder(recap.NewEncoder())

	tests := []struct {
		name   string
		mutate func(*core.SiweRequest)
		uri    string
		target error
	}{
		{"uri without scheme", func(*core.SiweRequest) {}, "not a uri", core.ErrInvalidURI},
		{"empty uri", func(*core.SiweRequest) {}, "", core.ErrInvalidURI},
		{"domain with scheme", func(r *core.SiweRequest) { r.Domain = "https://example.com" }, testURI, core.ErrInvalidDomain},
		{"domain with path", func(r *core.SiweRequest) { r.Domain = "example.com/login" }, testURI, core.ErrInvalidDomain},
		{"domain with space", func(r *core.SiweRequest) { r.Domain = "exa mple.com" }, testURI, core.ErrInvalidDomain},
		{"domain with bad port", func(r *core.SiweRequest) { r.Domain = "example.com:http" }, testURI, core.ErrInvalidDomain},
		{"empty domain", func(r *core.SiweRequest) { r.Domain = "" }, testURI, core.ErrInvalidDomain},
		{"short address", func(r *core.SiweRequest) { r.Address = "0x1234" }, testURI, core.ErrInvalidAddress},
		{"non hex address", func(r *core.SiweRequest) { r.Address = "0xZZ6916095ca1df60bB79Ce92cE3Ea74c37c5d359" }, testURI, core.ErrInvalidAddress},
		{"issued at", func(r *core.SiweRequest) { r.IssuedAt = "yesterday" }, testURI, core.ErrTimestampParse},
		{"expiration", func(r *core.SiweRequest) { r.ExpirationTime = ptr("2024-13-01T00:00:00Z") }, testURI, core.ErrTimestampParse},
		{"not before", func(r *core.SiweRequest) { r.NotBefore = ptr("2024-01-01") }, testURI, core.ErrTimestampParse},
		{"resource without scheme", func(r *core.SiweRequest) { r.Resources = []string{"https://ok.example", "relative/path"} }, testURI, core.ErrResourceURI},
		{"resource not utf8", func(r *core.SiweRequest) { r.Resources = []string{"https://example.com/\xff"} }, testURI, core.ErrResourceURI},
		{"uri with space", func(*core.SiweRequest) {}, "did:key:z6Mk with space", core.ErrInvalidURI},
		{"uri with angle brackets", func(*core.SiweRequest) {}, "https://example.com/<x>", core.ErrInvalidURI},
		{"uri with bad escape", func(*core.SiweRequest) {}, "https://example.com/%zz", core.ErrInvalidURI},
		{"uri with two fragments", func(*core.SiweRequest) {}, "did:key:z#a#b", core.ErrInvalidURI},
		{"resource with space", func(r *core.SiweRequest) { r.Resources = []string{"https://example.com/a b"} }, testURI, core.ErrResourceURI},
		{"resource with angle brackets", func(r *core.SiweRequest) { r.Resources = []string{"urn:x<y>"} }, testURI, core.ErrResourceURI},
		{"resource with truncated escape", func(r *core.SiweRequest) { r.Resources = []string{"https://example.com/%4"} }, testURI, core.ErrResourceURI},
		{"short nonce", func(r *core.SiweRequest) { r.Nonce = ptr("abc123") }, testURI, core.ErrInvalidNonce},
		{"nonce with dash", func(r *core.SiweRequest) { r.Nonce = ptr("abcd-1234") }, testURI, core.ErrInvalidNonce},
		{"multiline statement", func(r *core.SiweRequest) { r.Statement = ptr("line one\nline two") }, testURI, core.ErrInvalidStatement},
		{"request id with space", func(r *core.SiweRequest) { r.RequestID = ptr("req 1") }, testURI, core.ErrInvalidRequestID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := baseRequest()
			tt.mutate(&req)
			text, err := b.Build(req, tt.uri, nil)
			require.ErrorIs(t, err, tt.target)
			require.Empty(t, text)
		})
	}
}

func TestBuild_AcceptedURIs(t *testing.T) {
	b := siwe.NewBuilder(recap.NewEncoder())

	for _, uri := range []string{
		testURI,
		"https://example.com/a%20b?q=1&r=(x)#frag",
		"urn:uuid:6e8bc430-9c3a-11d9-9669-0800200c9a66",
		"ipfs://bafybeiemxf5abjwjbikoz4mc3a3dla6ual3jsgpdr4cjr3oz3evfyavhwq/",
	} {
		t.Run(uri, func(t *testing.T) {
			req := baseRequest()
			req.Resources = []string{uri}
			_, err := b.Build(req, uri, nil)
			require.NoError(t, err)
		})
	}
}

func TestBuild_EmptyStatement(t *testing.T) {
	b := siwe.NewBuilder(recap.NewEncoder())
	req := baseRequest()
	req.Nonce = ptr("abcdefgh")
	without, err := b.Build(req, testURI, nil)
	require.NoError(t, err)

	req.Statement = ptr("")
	empty, err := b.Build(req, testURI, nil)
	require.NoError(t, err)
	require.Equal(t, without, empty)
}

func TestBuild_ErrorOrder(t *testing.T) {
	b := siwe.NewBuilder(recap.NewEncoder())
	req := baseRequest()
	req.Domain = "https://bad"
	req.Address = "bad"
	req.IssuedAt = "bad"

	_, err := b.Build(req, "bad", nil)
	require.ErrorIs(t, err, core.ErrInvalidURI)

	_, err = b.Build(req, testURI, nil)
	require.ErrorIs(t, err, core.ErrInvalidDomain)

	req.Domain = "example.com"
	_, err = b.Build(req, testURI, nil)
	require.ErrorIs(t, err, core.ErrInvalidAddress)
}

func TestBuild_TimestampField(t *testing.T) {
	b := siwe.NewBuilder(recap.NewEncoder())
	req := baseRequest()
	req.NotBefore = ptr("soon")

	_, err := b.Build(req, testURI, nil)
	var tsErr *core.TimestampError
	require.ErrorAs(t, err, &tsErr)
	require.Equal(t, "notBefore", tsErr.Field)
	require.Equal(t, "soon", tsErr.Value)
}

func TestBuild_UnorderedTimestamps(t *testing.T) {
	b := siwe.NewBuilder(recap.NewEncoder())
	req := baseRequest()
	req.ExpirationTime = ptr("2020-01-01T00:00:00Z")

	_, err := b.Build(req, testURI, nil)
	require.NoError(t, err)
}

func TestBuild_Capabilities(t *testing.T) {
	grants := []core.Grant{{Namespace: "kepler", Target: "kepler:*", Action: "read"}}

	t.Run("appended to statement and resources", func(t *testing.T) {
		b := siwe.NewBuilder(fixedEncoder{fields: core.CapabilityFields{Resource: "urn:recap:abc", Statement: "Suffix."}})
		req := baseRequest()
		req.Nonce = ptr("abcdefgh")
		req.Statement = ptr("Hello.")
		req.Resources = []string{"https://example.com"}

		msg, err := b.Compose(req, testURI, grants)
		require.NoError(t, err)
		require.Equal(t, "Hello. Suffix.", *msg.GetStatement())
		require.Equal(t, []string{"https://example.com", "urn:recap:abc"}, resources(msg))
		require.Equal(t, "Hello.", *req.Statement)
		require.Equal(t, []string{"https://example.com"}, req.Resources)
	})

	t.Run("becomes the statement", func(t *testing.T) {
		b := siwe.NewBuilder(fixedEncoder{fields: core.CapabilityFields{Resource: "urn:recap:abc", Statement: "Suffix."}})
		msg, err := b.Compose(baseRequest(), testURI, grants)
		require.NoError(t, err)
		require.Equal(t, "Suffix.", *msg.GetStatement())
	})

	t.Run("encoder error", func(t *testing.T) {
		b := siwe.NewBuilder(fixedEncoder{err: core.ErrSerialization})
		text, err := b.Build(baseRequest(), testURI, grants)
		require.ErrorIs(t, err, core.ErrSerialization)
		require.Empty(t, text)
	})

	t.Run("recap is deterministic", func(t *testing.T) {
		b := siwe.NewBuilder(recap.NewEncoder())
		req := baseRequest()
		req.Nonce = ptr("abcdefgh")
		first, err := b.Build(req, testURI, grants)
		require.NoError(t, err)
		second, err := b.Build(req, testURI, grants)
		require.NoError(t, err)
		require.Equal(t, first, second)
		require.Contains(t, first, "\n- "+recap.URNPrefix)
		require.Contains(t, first, recap.StatementPrefix)
	})

	t.Run("no grants leaves message alone", func(t *testing.T) {
		b := siwe.NewBuilder(fixedEncoder{err: errors.New("must not be called")})
		_, err := b.Build(baseRequest(), testURI, nil)
		require.NoError(t, err)
	})
}

func TestVerifySignature(t *testing.T) {
	b := siwe.NewBuilder(recap.NewEncoder())
	req := baseRequest()
	req.Address = hardhatAddress
	text, err := b.Build(req, testURI, nil)
	require.NoError(t, err)

	sig, err := eth.SignPersonalMessage(text, hardhatKey)
	require.NoError(t, err)

	ok, err := siwe.VerifySignature(text, sig.Hex(), hardhatAddress)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = siwe.VerifySignature(text, sig.Hex(), testAddress)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = siwe.VerifySignature(text, sig.Hex(), "0x12")
	require.ErrorIs(t, err, core.ErrInvalidAddress)
}

func TestVerifyMessage(t *testing.T) {
	b := siwe.NewBuilder(recap.NewEncoder())
	req := baseRequest()
	req.Address = hardhatAddress
	msg, err := b.Compose(req, testURI, nil)
	require.NoError(t, err)

	sig, err := eth.SignPersonalMessage(msg.String(), hardhatKey)
	require.NoError(t, err)
	require.NoError(t, siwe.VerifyMessage(msg, sig.Hex()))
	require.NoError(t, siwe.VerifyMessage(msg, "0x"+sig.Hex()))

	other, err := eth.SignPersonalMessage(msg.String(), strings.Repeat("11", 32))
	require.NoError(t, err)
	require.ErrorIs(t, siwe.VerifyMessage(msg, other.Hex()), core.ErrInvalidSignature)
	require.ErrorIs(t, siwe.VerifyMessage(msg, "zz"), core.ErrInvalidSignature)
}
