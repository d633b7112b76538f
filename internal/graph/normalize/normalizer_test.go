package normalize

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	graphErrors "github.com/rohankatakam/graphbridge/internal/errors"
	"github.com/rohankatakam/graphbridge/internal/model"
)

type fakeVertex struct {
	uid, label string
	props      map[string]any
	broken     bool
	panics     bool
}

type fakeEdge struct {
	uid, label, src, dst string
}

type fakePath struct {
	items []any
}

type fakeDecoder struct{}

func (fakeDecoder) Shape(v any) Shape {
	switch v.(type) {
	case fakeVertex:
		return ShapeVertex
	case fakeEdge:
		return ShapeEdge
	case fakePath:
		return ShapePath
	case []any:
		return ShapeList
	case map[string]any:
		return ShapeMap
	}
	return ShapeScalar
}

func (fakeDecoder) Vertex(v any) (model.Vertex, error) {
	fv := v.(fakeVertex)
	if fv.panics {
		panic("corrupt vertex")
	}
	if fv.broken {
		return model.Vertex{}, errors.New("cannot coerce property")
	}
	return model.Vertex{UID: fv.uid, Label: fv.label, Properties: fv.props}, nil
}

func (fakeDecoder) Edge(v any) (model.Edge, error) {
	fe := v.(fakeEdge)
	return model.Edge{UID: fe.uid, Label: fe.label, SourceUID: fe.src, TargetUID: fe.dst}, nil
}

func (fakeDecoder) Children(v any) ([]any, error) {
	switch x := v.(type) {
	case fakePath:
		return x.items, nil
	case []any:
		return x, nil
	case map[string]any:
		return MapValues(x), nil
	}
	return nil, errors.New("not a container")
}

func (fakeDecoder) Scalar(v any) any { return v }

func TestNormalizeDedupAcrossShapes(t *testing.T) {
	v1 := fakeVertex{uid: "v1", label: "Person", props: map[string]any{"name": "Alice"}}
	v2 := fakeVertex{uid: "v2", label: "Person"}
	v3 := fakeVertex{uid: "v3", label: "Person"}
	e1 := fakeEdge{uid: "e1", label: "KNOWS", src: "v1", dst: "v2"}
	e2 := fakeEdge{uid: "e2", label: "KNOWS", src: "v2", dst: "v3"}

	raw := []any{
		v1,
		e1,
		fakePath{items: []any{v2, e2, v3}},
		map[string]any{"x": v1},
	}

	res := New(fakeDecoder{}, nil).Normalize(raw)

	require.Len(t, res.Vertices, 3)
	require.Len(t, res.Edges, 2)
	assert.Equal(t, []string{"v1", "v2", "v3"}, vertexUIDs(res))
	assert.Equal(t, 5, res.Statistics.ResultRows, "result rows count distinct elements")
	assert.Equal(t, 6, res.Statistics.ElementsSeen, "elements seen counts encounters")
	assert.Equal(t, model.StatusSuccess, res.Statistics.Status)
	assert.Empty(t, res.Warnings)
	assert.NoError(t, res.Partial())
}

func TestNormalizeFirstOccurrenceWins(t *testing.T) {
	first := fakeVertex{uid: "v1", label: "Person", props: map[string]any{"name": "first"}}
	second := fakeVertex{uid: "v1", label: "Person", props: map[string]any{"name": "second"}}

	res := New(fakeDecoder{}, nil).Normalize([]any{first, second})

	require.Len(t, res.Vertices, 1)
	assert.Equal(t, "first", res.Vertices[0].Properties["name"])
}

func TestNormalizeScalarsAreNeverElements(t *testing.T) {
	res := New(fakeDecoder{}, nil).Normalize([]any{
		int64(42),
		"hello",
		map[string]any{"count": int64(7), "who": fakeVertex{uid: "v1", label: "P"}},
		nil,
	})

	assert.Len(t, res.Vertices, 1)
	assert.Empty(t, res.Edges)
	assert.Equal(t, 4, res.Statistics.ScalarCount)
	assert.ElementsMatch(t, []any{int64(42), "hello", int64(7), nil}, res.Scalars)
	assert.Equal(t, 1, res.Statistics.ResultRows)
}

func TestNormalizePartialFailureUsesPlaceholders(t *testing.T) {
	raw := []any{
		fakeVertex{uid: "v1", label: "Person"},
		fakeVertex{broken: true},
		fakeVertex{panics: true},
		fakeVertex{uid: "v2", label: "Person"},
		fakeEdge{uid: "e1", label: "KNOWS", src: "v1", dst: "v2"},
	}

	res := New(fakeDecoder{}, nil).Normalize(raw)

	require.Len(t, res.Vertices, 4, "valid vertices survive next to placeholders")
	assert.Len(t, res.Edges, 1)
	assert.Equal(t, 2, res.Statistics.PartialFailures)
	assert.Len(t, res.Warnings, 2)

	var placeholders []model.Vertex
	for _, v := range res.Vertices {
		if v.Placeholder {
			placeholders = append(placeholders, v)
		}
	}
	require.Len(t, placeholders, 2)
	assert.Equal(t, "unknown_vertex_1", placeholders[0].UID)
	assert.Equal(t, "unknown_vertex_2", placeholders[1].UID)
	assert.Equal(t, "Vertex", placeholders[0].Label)

	err := res.Partial()
	require.Error(t, err)
	assert.True(t, graphErrors.IsType(err, graphErrors.ErrorTypePartialExtraction))
	assert.Equal(t, model.StatusSuccess, res.Statistics.Status)
}

func TestNormalizeMissingUIDIsPartial(t *testing.T) {
	res := New(fakeDecoder{}, nil).Normalize(fakeVertex{uid: "", label: "Ghost"})

	require.Len(t, res.Vertices, 1)
	assert.True(t, res.Vertices[0].Placeholder)
	assert.Equal(t, 1, res.Statistics.PartialFailures)
}

func TestNormalizeEmpty(t *testing.T) {
	res := New(fakeDecoder{}, nil).Normalize([]any{})

	assert.NotNil(t, res.Vertices)
	assert.NotNil(t, res.Edges)
	assert.Zero(t, res.Statistics.ResultRows)
}

func TestNormalizeDepthLimit(t *testing.T) {
	var nested any = fakeVertex{uid: "deep", label: "P"}
	for i := 0; i < maxDepth+5; i++ {
		nested = []any{nested}
	}

	res := New(fakeDecoder{}, nil).Normalize(nested)

	assert.Empty(t, res.Vertices)
	require.NotEmpty(t, res.Warnings)
}

func TestMapValuesOrdering(t *testing.T) {
	assert.Equal(t, []any{1, 2, 3}, MapValues(map[string]int{"b": 2, "a": 1, "c": 3}))
	assert.Equal(t, []any{"x", "y"}, AnyMapValues(map[any]any{int64(2): "y", int64(1): "x"}))
}

func vertexUIDs(r *model.GraphQueryResult) []string {
	out := make([]string, len(r.Vertices))
	for i, v := range r.Vertices {
		out[i] = v.UID
	}
	return out
}
