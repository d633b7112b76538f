package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUIDIsUniqueAndOrdered(t *testing.T) {
	seen := make(map[string]bool)
	prev := ""
	for i := 0; i < 1000; i++ {
		uid := NewUID()
		require.Len(t, uid, 36)
		require.False(t, seen[uid], "duplicate uid %s", uid)
		seen[uid] = true
		if prev != "" {
			assert.GreaterOrEqual(t, uid[:13], prev[:13], "uids must sort by creation time")
		}
		prev = uid
	}
}

func TestCompositeEdgeUIDRoundTrip(t *testing.T) {
	tests := []EdgeKey{
		{Source: "u1", Label: "KNOWS", Target: "u2"},
		{Source: "a|b", Label: "LIKES", Target: "c%d", Rank: 3},
		{Source: "with space", Label: "E", Target: "x", Rank: -1},
	}
	for _, k := range tests {
		t.Run(k.Source, func(t *testing.T) {
			uid := CompositeEdgeUID(k)
			got, err := ParseCompositeEdgeUID(uid)
			require.NoError(t, err)
			assert.Equal(t, k, got)
		})
	}
	assert.Equal(t, "u1|KNOWS|u2", CompositeEdgeUID(EdgeKey{Source: "u1", Label: "KNOWS", Target: "u2"}))
}

func TestParseCompositeEdgeUIDRejects(t *testing.T) {
	for _, uid := range []string{"", "a|b", "a||c", "a|b|c|x", "a|b|c|1|2"} {
		_, err := ParseCompositeEdgeUID(uid)
		assert.Error(t, err, uid)
	}
}

func TestSplitReserved(t *testing.T) {
	user, uid, created, updated := SplitReserved(map[string]any{
		"uid":        "u1",
		"created_at": int64(100),
		"updated_at": 200.0,
		"name":       "Alice",
	})
	assert.Equal(t, "u1", uid)
	assert.Equal(t, int64(100), created)
	assert.Equal(t, int64(200), updated)
	assert.Equal(t, map[string]any{"name": "Alice"}, user)
	assert.True(t, IsReserved("uid"))
	assert.False(t, IsReserved("name"))
}

func TestPlaceholderUID(t *testing.T) {
	uid := PlaceholderUID(PlaceholderVertexUID, 2)
	assert.Equal(t, "unknown_vertex_2", uid)
	assert.True(t, IsPlaceholderUID(uid))
	assert.False(t, IsPlaceholderUID("u1"))
}
