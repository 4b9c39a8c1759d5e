// Package recap encodes capability grants as an EIP-5573 ReCap: a
// "urn:recap:" resource carrying the base64url JSON capability object, and
// the human-readable statement that must accompany it.
package recap

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/layer-3/sessionkit/core"
)

const (
	// URNPrefix starts every ReCap resource URI
	URNPrefix = "urn:recap:"

	// StatementPrefix opens the statement generated for a ReCap
	StatementPrefix = "I further authorize the stated URI to perform the following actions on my behalf:"
)

// capability is the JSON object carried by the resource
type capability struct {
	Att map[string]map[string][]map[string]any `json:"att"`
	Prf []string                               `json:"prf"`
}

// Encoder implements ports.CapabilityEncoder
type Encoder struct{}

// NewEncoder creates a ReCap encoder
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Encode builds the ReCap resource and statement for grants. Duplicate
// grants collapse, and extra fields of a target apply to all of its abilities.
func (e *Encoder) Encode(grants []core.Grant) (core.CapabilityFields, error) {
	if len(grants) == 0 {
		return core.CapabilityFields{}, nil
	}

	abilities := make(map[string]map[string]struct{})
	extras := make(map[string]map[string]any)
	for _, g := range grants {
		if abilities[g.Target] == nil {
			abilities[g.Target] = make(map[string]struct{})
		}
		abilities[g.Target][Ability(g.Namespace, g.Action)] = struct{}{}

		if len(g.Extra) > 0 {
			if extras[g.Target] == nil {
				extras[g.Target] = make(map[string]any)
			}
			maps.Copy(extras[g.Target], g.Extra)
		}
	}

	c := capability{
		Att: make(map[string]map[string][]map[string]any, len(abilities)),
		Prf: []string{},
	}
	for target, set := range abilities {
		nb := extras[target]
		if nb == nil {
			nb = map[string]any{}
		}
		c.Att[target] = make(map[string][]map[string]any, len(set))
		for ability := range set {
			c.Att[target][ability] = []map[string]any{nb}
		}
	}

	payload, err := json.Marshal(c)
	if err != nil {
		return core.CapabilityFields{}, fmt.Errorf("%w: %v", core.ErrSerialization, err)
	}

	return core.CapabilityFields{
		Resource:  URNPrefix + base64.RawURLEncoding.EncodeToString(payload),
		Statement: statement(abilities),
	}, nil
}

// Ability joins a grant's namespace scheme and action into "ns/action"
func Ability(namespace, action string) string {
	scheme, _, _ := strings.Cut(namespace, ":")
	return scheme + "/" + action
}

// statement renders one numbered clause per (target, ability namespace),
// ordered by target then namespace.
func statement(abilities map[string]map[string]struct{}) string {
	var b strings.Builder
	b.WriteString(StatementPrefix)

	n := 1
	for _, target := range slices.Sorted(maps.Keys(abilities)) {
		byNamespace := make(map[string][]string)
		for ability := range abilities[target] {
			ns, action, _ := strings.Cut(ability, "/")
			byNamespace[ns] = append(byNamespace[ns], action)
		}

		for _, ns := range slices.Sorted(maps.Keys(byNamespace)) {
			actions := byNamespace[ns]
			slices.Sort(actions)
			quoted := make([]string, len(actions))
			for i, a := range actions {
				quoted[i] = "'" + a + "'"
			}
			fmt.Fprintf(&b, " (%d) '%s': %s for '%s'.", n, ns, strings.Join(quoted, ", "), target)
			n++
		}
	}
	return b.String()
}

// Decode reads the capability object back out of a ReCap resource
func Decode(resource string) (map[string]map[string][]map[string]any, error) {
	encoded, ok := strings.CutPrefix(resource, URNPrefix)
	if !ok {
		return nil, fmt.Errorf("not a recap resource: %s", resource)
	}

	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid recap encoding: %w", err)
	}

	var c capability
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, fmt.Errorf("invalid recap payload: %w", err)
	}
	return c.Att, nil
}
