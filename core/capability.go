package core

// WildcardTarget is the target used by default actions
const WildcardTarget = "*"

// Grant is one delegated capability: an action on a target within a namespace
type Grant struct {
	Namespace string         `json:"namespace"`
	Target    string         `json:"target"` // namespace:* or namespace:<target>
	Action    string         `json:"action"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// CapabilityFields is what an encoded capability contributes to a SIWE message
type CapabilityFields struct {
	Resource  string // Appended as the last resource
	Statement string // Appended to the statement
}
