package ports

import (
	"github.com/layer-3/sessionkit/core"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// InvocationSigner converts invocations to tokens signed by a session key
type InvocationSigner interface {
	Sign(key jwk.Key, invocation core.Invocation) (string, error)
	Parse(token string, key jwk.Key) (*core.Invocation, error)
}
