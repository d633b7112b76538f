package stats

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/graphbridge/internal/errors"
	"github.com/rohankatakam/graphbridge/internal/graph"
	"github.com/rohankatakam/graphbridge/internal/model"
	"github.com/rohankatakam/graphbridge/internal/registry"
)

// memAdapter serves fixed vertices and edges. It is read-only, so concurrent
// scans need no locking.
type memAdapter struct {
	graph.GraphAdapter

	kind     model.BackendKind
	vertices []model.Vertex
	edges    []model.Edge
	failOn   string
}

func (m *memAdapter) Kind() model.BackendKind { return m.kind }
func (m *memAdapter) Config() model.ConnectionConfig { return model.ConnectionConfig{Kind: m.kind} }

func (m *memAdapter) GetVertexTypes(context.Context, string) ([]model.LabelType, error) {
	return labelTypes(model.LabelVertex, "Person", "City"), nil
}

func (m *memAdapter) GetEdgeTypes(context.Context, string) ([]model.LabelType, error) {
	return labelTypes(model.LabelEdge, "KNOWS", "LIVES_IN"), nil
}

func (m *memAdapter) QueryVertices(_ context.Context, _ string, label string) ([]model.Vertex, error) {
	if label == m.failOn {
		return nil, errors.QueryExecution(nil, "scan failed")
	}
	var out []model.Vertex
	for _, v := range m.vertices {
		if v.Label == label {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *memAdapter) QueryEdges(_ context.Context, _ string, label string) ([]model.Edge, error) {
	var out []model.Edge
	for _, e := range m.edges {
		if e.Label == label {
			out = append(out, e)
		}
	}
	return out, nil
}

func labelTypes(kind model.LabelKind, names ...string) []model.LabelType {
	out := make([]model.LabelType, len(names))
	for i, n := range names {
		out[i] = model.LabelType{Name: n, Kind: kind}
	}
	return out
}

func sample(kind model.BackendKind) *memAdapter {
	return &memAdapter{
		kind: kind,
		vertices: []model.Vertex{
			{UID: "a", Label: "Person"},
			{UID: "b", Label: "Person"},
			{UID: "c", Label: "Person"},
			{UID: "berlin", Label: "City"},
		},
		edges: []model.Edge{
			{UID: "e1", Label: "KNOWS", SourceUID: "a", TargetUID: "b"},
			{UID: "e2", Label: "KNOWS", SourceUID: "a", TargetUID: "c"},
			{UID: "e3", Label: "LIVES_IN", SourceUID: "a", TargetUID: "berlin"},
			{UID: "e4", Label: "LIVES_IN", SourceUID: "b", TargetUID: "berlin"},
		},
	}
}

func TestCollect(t *testing.T) {
	st, err := Collect(context.Background(), sample(model.BackendNeo4j), "people", Options{})
	require.NoError(t, err)

	assert.Equal(t, model.BackendNeo4j, st.Backend)
	assert.Equal(t, []TypeCount{{Name: "Person", Count: 3}, {Name: "City", Count: 1}}, st.VertexTypes)
	assert.Equal(t, []TypeCount{{Name: "KNOWS", Count: 2}, {Name: "LIVES_IN", Count: 2}}, st.EdgeTypes)
	assert.Equal(t, 4, st.TotalVertices)
	assert.Equal(t, 4, st.TotalEdges)
	assert.False(t, st.Capped)

	assert.Equal(t, 4, st.Degree.Vertices)
	assert.Equal(t, 0, st.Degree.Isolated)
	assert.Equal(t, 3, st.Degree.MaxOut)
	assert.Equal(t, 2, st.Degree.MaxIn)
	assert.InDelta(t, 2.0, st.Degree.Mean, 1e-9)
	require.NotEmpty(t, st.Degree.Top)
	assert.Equal(t, VertexDegree{UID: "a", Label: "Person", Out: 3}, st.Degree.Top[0])
}

func TestCollectMarksCappedTypes(t *testing.T) {
	st, err := Collect(context.Background(), sample(model.BackendNebula), "", Options{RowCap: 2})
	require.NoError(t, err)
	assert.True(t, st.Capped)
	assert.True(t, st.VertexTypes[0].Capped)
	assert.False(t, st.VertexTypes[1].Capped)
}

func TestCollectPropagatesScanErrors(t *testing.T) {
	a := sample(model.BackendJanus)
	a.failOn = "City"
	_, err := Collect(context.Background(), a, "", Options{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeQueryExecution))
	assert.Contains(t, err.Error(), "City")
}

func TestDegrees(t *testing.T) {
	tests := []struct {
		name     string
		vertices []model.Vertex
		edges    []model.Edge
		top      int
		want     DegreeSummary
	}{
		{
			name: "empty graph",
			want: DegreeSummary{},
		},
		{
			name:     "isolated vertices are counted but never top",
			vertices: []model.Vertex{{UID: "x"}, {UID: "y"}},
			top:      3,
			want:     DegreeSummary{Vertices: 2, Isolated: 2},
		},
		{
			name:  "edge endpoints outside the scan still count",
			edges: []model.Edge{{SourceUID: "p", TargetUID: "q"}},
			top:   1,
			want: DegreeSummary{
				Vertices: 2, MaxIn: 1, MaxOut: 1, Mean: 1,
				Top: []VertexDegree{{UID: "p", Out: 1}},
			},
		},
		{
			name:     "placeholders are skipped",
			vertices: []model.Vertex{{UID: "unknown_vertex_0", Placeholder: true}},
			edges:    []model.Edge{{UID: "unknown_edge_0", Placeholder: true}},
			top:      1,
			want:     DegreeSummary{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Degrees(tt.vertices, tt.edges, tt.top))
		})
	}
}

func TestCollectAll(t *testing.T) {
	failing := sample(model.BackendJanus)
	failing.failOn = "Person"
	adapters := map[model.BackendKind]graph.GraphAdapter{
		model.BackendNeo4j: sample(model.BackendNeo4j),
		model.BackendJanus: failing,
	}
	factories := make(map[model.BackendKind]registry.Factory)
	for kind, a := range adapters {
		factories[kind] = func(model.ConnectionConfig, ...graph.Option) graph.GraphAdapter { return a }
	}
	reg := registry.New(registry.Options{Factories: factories})

	results := CollectAll(context.Background(), reg, map[model.BackendKind]string{
		model.BackendNeo4j: "neo4j",
		model.BackendJanus: "",
	}, Options{})

	require.Len(t, results, 2)
	require.NoError(t, results[model.BackendNeo4j].Err)
	assert.Equal(t, 4, results[model.BackendNeo4j].Stats.TotalVertices)
	assert.Error(t, results[model.BackendJanus].Err)
	assert.Nil(t, results[model.BackendJanus].Stats)
}
