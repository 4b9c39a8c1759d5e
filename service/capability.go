package service

import (
	"encoding/json"
	"fmt"
	"maps"
	"regexp"

	"github.com/layer-3/sessionkit/core"
)

var (
	// First segment is a URI scheme, the rest are pchar runs without '/'
	namespacePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*(:[A-Za-z0-9\-._~!$&'()*+,;=@%]+)*$`)
	actionPattern    = regexp.MustCompile(`^[A-Za-z0-9.*_+\-]+$`)
)

// Accumulator collects capability grants across calls until a message is
// built from them. It is not safe for concurrent use.
type Accumulator struct {
	grants []core.Grant
}

// NewAccumulator creates an empty accumulator
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// WithDefaultActions grants actions on every target of namespace
func (a *Accumulator) WithDefaultActions(namespace string, actions []string) error {
	return a.add(namespace, core.WildcardTarget, actions)
}

// WithTargetedActions grants actions on one target of namespace
func (a *Accumulator) WithTargetedActions(namespace, target string, actions []string) error {
	return a.add(namespace, target, actions)
}

// WithExtraFields attaches fields to the target of the most recent grant in
// namespace. Every grant sharing that target carries the fields.
func (a *Accumulator) WithExtraFields(namespace string, fields map[string]any) error {
	if err := checkNamespace(namespace); err != nil {
		return err
	}

	extra, err := normalizeFields(fields)
	if err != nil {
		return err
	}

	last := -1
	for i := range a.grants {
		if a.grants[i].Namespace == namespace {
			last = i
		}
	}
	if last < 0 {
		return fmt.Errorf("%w: %s", core.ErrNoMatchingGrant, namespace)
	}

	target := a.grants[last].Target
	for i := range a.grants {
		if a.grants[i].Target != target {
			continue
		}
		merged := maps.Clone(a.grants[i].Extra)
		if merged == nil {
			merged = make(map[string]any, len(extra))
		}
		maps.Copy(merged, extra)
		a.grants[i].Extra = merged
	}
	return nil
}

// Reset discards every grant
func (a *Accumulator) Reset() {
	a.grants = nil
}

// Snapshot returns a copy of the grants in insertion order
func (a *Accumulator) Snapshot() []core.Grant {
	out := make([]core.Grant, len(a.grants))
	for i, g := range a.grants {
		g.Extra = maps.Clone(g.Extra)
		out[i] = g
	}
	return out
}

// Len returns the number of grants
func (a *Accumulator) Len() int {
	return len(a.grants)
}

// add validates the whole batch before appending any of it
func (a *Accumulator) add(namespace, target string, actions []string) error {
	if err := checkNamespace(namespace); err != nil {
		return err
	}
	for _, action := range actions {
		if !actionPattern.MatchString(action) {
			return fmt.Errorf("%w: '%s'", core.ErrActionEncoding, action)
		}
	}

	resource := namespace + ":" + target
	for _, action := range actions {
		a.grants = append(a.grants, core.Grant{
			Namespace: namespace,
			Target:    resource,
			Action:    action,
		})
	}
	return nil
}

func checkNamespace(namespace string) error {
	if !namespacePattern.MatchString(namespace) {
		return fmt.Errorf("%w: '%s'", core.ErrInvalidNamespace, namespace)
	}
	return nil
}

// normalizeFields round-trips fields through JSON so stored values are
// plain JSON types detached from the caller.
func normalizeFields(fields map[string]any) (map[string]any, error) {
	if fields == nil {
		return nil, fmt.Errorf("%w: fields are null", core.ErrSerialization)
	}

	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSerialization, err)
	}

	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSerialization, err)
	}
	return out, nil
}
