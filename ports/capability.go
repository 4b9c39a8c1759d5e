package ports

import "github.com/layer-3/sessionkit/core"

// CapabilityEncoder turns accumulated grants into SIWE message fields.
// The same grant sequence must always encode to the same fields.
type CapabilityEncoder interface {
	Encode(grants []core.Grant) (core.CapabilityFields, error)
}
