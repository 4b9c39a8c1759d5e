package recap_test

import (
	"strings"
	"testing"

	"github.com/layer-3/sessionkit/adapters/recap"
	"github.com/layer-3/sessionkit/core"
	"github.com/stretchr/testify/require"
)

func TestEncoder_Encode(t *testing.T) {
	e := recap.NewEncoder()

	t.Run("no grants", func(t *testing.T) {
		fields, err := e.Encode(nil)
		require.NoError(t, err)
		require.Empty(t, fields.Resource)
		require.Empty(t, fields.Statement)
	})

	t.Run("statement and resource", func(t *testing.T) {
		grants := []core.Grant{
			{Namespace: "kepler", Target: "kepler:*", Action: "write"},
			{Namespace: "kepler", Target: "kepler:*", Action: "read"},
			{Namespace: "tinycloud", Target: "tinycloud:orbit/photos", Action: "list"},
		}

		fields, err := e.Encode(grants)
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(fields.Resource, recap.URNPrefix))
		require.Equal(t,
			recap.StatementPrefix+
				" (1) 'kepler': 'read', 'write' for 'kepler:*'."+
				" (2) 'tinycloud': 'list' for 'tinycloud:orbit/photos'.",
			fields.Statement)

		att, err := recap.Decode(fields.Resource)
		require.NoError(t, err)
		require.Len(t, att, 2)
		require.Contains(t, att["kepler:*"], "kepler/read")
		require.Contains(t, att["kepler:*"], "kepler/write")
		require.Equal(t, []map[string]any{{}}, att["tinycloud:orbit/photos"]["tinycloud/list"])
	})

	t.Run("deterministic", func(t *testing.T) {
		grants := []core.Grant{
			{Namespace: "a", Target: "a:*", Action: "x"},
			{Namespace: "b", Target: "b:one", Action: "y"},
			{Namespace: "b", Target: "b:two", Action: "z"},
		}
		first, err := e.Encode(grants)
		require.NoError(t, err)
		for range 10 {
			again, err := e.Encode(grants)
			require.NoError(t, err)
			require.Equal(t, first, again)
		}
	})

	t.Run("duplicates collapse", func(t *testing.T) {
		one, err := e.Encode([]core.Grant{{Namespace: "a", Target: "a:*", Action: "x"}})
		require.NoError(t, err)
		two, err := e.Encode([]core.Grant{
			{Namespace: "a", Target: "a:*", Action: "x"},
			{Namespace: "a", Target: "a:*", Action: "x"},
		})
		require.NoError(t, err)
		require.Equal(t, one, two)
	})

	t.Run("extra fields become notes on every ability of the target", func(t *testing.T) {
		fields, err := e.Encode([]core.Grant{
			{Namespace: "a", Target: "a:*", Action: "x", Extra: map[string]any{"limit": 5}},
			{Namespace: "a", Target: "a:*", Action: "y"},
		})
		require.NoError(t, err)

		att, err := recap.Decode(fields.Resource)
		require.NoError(t, err)
		for _, ability := range []string{"a/x", "a/y"} {
			require.Len(t, att["a:*"][ability], 1)
			require.EqualValues(t, 5, att["a:*"][ability][0]["limit"])
		}
	})

	t.Run("unserializable extra", func(t *testing.T) {
		_, err := e.Encode([]core.Grant{
			{Namespace: "a", Target: "a:*", Action: "x", Extra: map[string]any{"ch": make(chan int)}},
		})
		require.ErrorIs(t, err, core.ErrSerialization)
	})
}

func TestAbility(t *testing.T) {
	require.Equal(t, "kepler/read", recap.Ability("kepler", "read"))
	require.Equal(t, "kepler/read", recap.Ability("kepler:orbit", "read"))
}

func TestDecode_Invalid(t *testing.T) {
	_, err := recap.Decode("https://example.com")
	require.Error(t, err)
	_, err = recap.Decode(recap.URNPrefix + "!!!")
	require.Error(t, err)
}
