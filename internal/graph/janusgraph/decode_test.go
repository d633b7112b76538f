package janusgraph

import (
	"testing"
	"time"

	gremlingo "github.com/apache/tinkerpop/gremlin-go/v3/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/graphbridge/internal/graph/normalize"
)

// Tagged maps arrive with interface keys, as GraphBinary decodes them
func taggedAlice() map[any]any {
	return map[any]any{
		"~kind": "vertex",
		"id":    "4128",
		"label": "Person",
		"properties": map[any]any{
			"name":       "Alice",
			"age":        int32(30),
			"created_at": int64(10),
			"updated_at": int64(11),
		},
	}
}

func taggedBob() map[any]any {
	return map[any]any{"~kind": "vertex", "id": "8224", "label": "Person", "properties": map[any]any{"name": "Bob"}}
}

func taggedKnows() map[any]any {
	return map[any]any{
		"~kind":      "edge",
		"id":         "4r6-36o-6c5-6cw",
		"label":      "KNOWS",
		"out":        "4128",
		"in":         "8224",
		"properties": map[any]any{"since": int64(2020)},
	}
}

func TestTaggedVertex(t *testing.T) {
	v, err := taggedVertex(taggedAlice())
	require.NoError(t, err)

	assert.Equal(t, "4128", v.UID)
	assert.Equal(t, "Person", v.Label)
	assert.Equal(t, map[string]any{"name": "Alice", "age": int64(30)}, v.Properties)
	assert.Equal(t, int64(10), v.CreatedAt)
	assert.Equal(t, int64(11), v.UpdatedAt)
}

func TestTaggedEdge(t *testing.T) {
	e, err := taggedEdge(taggedKnows())
	require.NoError(t, err)

	assert.Equal(t, "4r6-36o-6c5-6cw", e.UID)
	assert.Equal(t, "4128", e.SourceUID)
	assert.Equal(t, "8224", e.TargetUID)
	assert.Equal(t, map[string]any{"since": int64(2020)}, e.Properties)

	broken := taggedKnows()
	delete(broken, "out")
	_, err = taggedEdge(broken)
	assert.Error(t, err)
}

func TestNormalizeTaggedPathAndList(t *testing.T) {
	path := map[any]any{"~kind": "path", "objects": []any{taggedAlice(), taggedKnows(), taggedBob()}}
	rows := []any{
		path,
		[]any{taggedAlice(), "note"},
		map[any]any{"count": int32(2)},
	}
	out := normalize.New(decoder{}, nil).Normalize(rows)

	assert.Len(t, out.Vertices, 2)
	assert.Len(t, out.Edges, 1)
	assert.Equal(t, 3, out.Statistics.ResultRows)
	assert.Equal(t, 4, out.Statistics.ElementsSeen)
	assert.ElementsMatch(t, []any{"note", int64(2)}, out.Scalars)
}

func TestNormalizeDriverElements(t *testing.T) {
	alice := gremlingo.Vertex{Element: gremlingo.Element{Id: int64(4128), Label: "Person"}}
	bob := gremlingo.Vertex{Element: gremlingo.Element{Id: int64(8224), Label: "Person"}}
	knows := &gremlingo.Edge{Element: gremlingo.Element{Id: "4r6", Label: "KNOWS"}, OutV: alice, InV: bob}
	path := &gremlingo.Path{Objects: []any{&alice, knows, &bob}}

	rows := []any{path, gremlingo.NewSimpleSet(&alice, time.Unix(0, 0).UTC())}
	out := normalize.New(decoder{}, nil).Normalize(rows)

	require.Len(t, out.Vertices, 2)
	assert.Equal(t, "4128", out.Vertices[0].UID)
	require.Len(t, out.Edges, 1)
	assert.Equal(t, "4128", out.Edges[0].SourceUID)
	assert.Equal(t, "8224", out.Edges[0].TargetUID)
	assert.Equal(t, []any{time.Unix(0, 0).UTC()}, out.Scalars)
}

func TestTaggedVertexWithoutIDIsPlaceholder(t *testing.T) {
	noID := taggedBob()
	delete(noID, "id")
	out := normalize.New(decoder{}, nil).Normalize([]any{noID, taggedAlice()})

	require.Len(t, out.Vertices, 2)
	assert.True(t, out.Vertices[0].Placeholder)
	assert.Equal(t, 1, out.Statistics.PartialFailures)
}

func TestScalarFallsBackToText(t *testing.T) {
	type geoshape struct{ Lat, Lon float64 }
	assert.Equal(t, int64(7), decoder{}.Scalar(int32(7)))
	assert.Equal(t, "{1 2}", decoder{}.Scalar(geoshape{1, 2}))
}

func TestFlattenRows(t *testing.T) {
	assert.Equal(t, []any{"a", "b"}, flattenRows([]any{[]any{"a", "b"}}))
	assert.Equal(t, []any{"a", "b"}, flattenRows([]any{"a", "b"}))
}
