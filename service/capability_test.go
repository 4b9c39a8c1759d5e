package service_test

import (
	"testing"

	"github.com/layer-3/sessionkit/core"
	"github.com/layer-3/sessionkit/service"
	"github.com/stretchr/testify/require"
)

func TestAccumulator_DefaultActions(t *testing.T) {
	a := service.NewAccumulator()

	require.NoError(t, a.WithDefaultActions("kepler", []string{"read", "write"}))
	require.Equal(t, []core.Grant{
		{Namespace: "kepler", Target: "kepler:*", Action: "read"},
		{Namespace: "kepler", Target: "kepler:*", Action: "write"},
	}, a.Snapshot())

	t.Run("empty batch", func(t *testing.T) {
		require.NoError(t, a.WithDefaultActions("kepler", []string{}))
		require.NoError(t, a.WithDefaultActions("kepler", nil))
		require.Equal(t, 2, a.Len())
	})
}

func TestAccumulator_TargetedActions(t *testing.T) {
	a := service.NewAccumulator()
	require.NoError(t, a.WithTargetedActions("tinycloud", "orbit0/kv/photos", []string{"get", "list"}))

	snap := a.Snapshot()
	require.Len(t, snap, 2)
	for _, g := range snap {
		require.Equal(t, "tinycloud", g.Namespace)
		require.Equal(t, "tinycloud:orbit0/kv/photos", g.Target)
	}
}

func TestAccumulator_Validation(t *testing.T) {
	tests := []struct {
		name      string
		namespace string
		actions   []string
		target    error
	}{
		{"not a uri", "not a uri", []string{"read"}, core.ErrInvalidNamespace},
		{"empty namespace", "", []string{"read"}, core.ErrInvalidNamespace},
		{"leading digit", "1kepler", []string{"read"}, core.ErrInvalidNamespace},
		{"trailing colon", "kepler:", []string{"read"}, core.ErrInvalidNamespace},
		{"bad action", "kepler", []string{"read", "wr ite"}, core.ErrActionEncoding},
		{"empty action", "kepler", []string{""}, core.ErrActionEncoding},
		{"slash in action", "kepler", []string{"kv/get"}, core.ErrActionEncoding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := service.NewAccumulator()
			require.NoError(t, a.WithDefaultActions("kepler", []string{"list"}))
			before := a.Snapshot()

			require.ErrorIs(t, a.WithDefaultActions(tt.namespace, tt.actions), tt.target)
			require.ErrorIs(t, a.WithTargetedActions(tt.namespace, "t", tt.actions), tt.target)
			require.Equal(t, before, a.Snapshot())
		})
	}

	t.Run("accepted namespaces", func(t *testing.T) {
		a := service.NewAccumulator()
		for _, ns := range []string{"kepler", "tinycloud+kv", "org.example:orbit0", "a:b:c"} {
			require.NoError(t, a.WithDefaultActions(ns, []string{"read", "*", "kv.get_all"}), ns)
		}
	})
}

func TestAccumulator_ExtraFields(t *testing.T) {
	a := service.NewAccumulator()
	require.NoError(t, a.WithDefaultActions("kepler", []string{"read"}))
	require.NoError(t, a.WithTargetedActions("kepler", "photos", []string{"get", "put"}))
	require.NoError(t, a.WithDefaultActions("other", []string{"read"}))

	fields := map[string]any{"limit": 10, "tags": []string{"a"}}
	require.NoError(t, a.WithExtraFields("kepler", fields))
	fields["limit"] = 99

	snap := a.Snapshot()
	require.Nil(t, snap[0].Extra)
	require.Equal(t, map[string]any{"limit": float64(10), "tags": []any{"a"}}, snap[1].Extra)
	require.Equal(t, snap[1].Extra, snap[2].Extra)
	require.Nil(t, snap[3].Extra)

	t.Run("merges", func(t *testing.T) {
		require.NoError(t, a.WithExtraFields("kepler", map[string]any{"expiry": "soon"}))
		extra := a.Snapshot()[2].Extra
		require.Equal(t, "soon", extra["expiry"])
		require.Equal(t, float64(10), extra["limit"])
	})

	t.Run("snapshot is a copy", func(t *testing.T) {
		snap := a.Snapshot()
		snap[1].Extra["limit"] = "changed"
		require.Equal(t, float64(10), a.Snapshot()[1].Extra["limit"])
	})

	t.Run("no grant", func(t *testing.T) {
		require.ErrorIs(t, a.WithExtraFields("unused", map[string]any{"a": 1}), core.ErrNoMatchingGrant)
	})

	t.Run("invalid namespace", func(t *testing.T) {
		require.ErrorIs(t, a.WithExtraFields("not a uri", map[string]any{"a": 1}), core.ErrInvalidNamespace)
	})

	t.Run("not serializable", func(t *testing.T) {
		before := a.Snapshot()
		require.ErrorIs(t, a.WithExtraFields("kepler", map[string]any{"fn": func() {}}), core.ErrSerialization)
		require.ErrorIs(t, a.WithExtraFields("kepler", nil), core.ErrSerialization)
		require.Equal(t, before, a.Snapshot())
	})
}

func TestAccumulator_Reset(t *testing.T) {
	a := service.NewAccumulator()
	require.NoError(t, a.WithDefaultActions("kepler", []string{"read"}))

	a.Reset()
	require.Empty(t, a.Snapshot())
	a.Reset()
	require.Equal(t, 0, a.Len())
}
