package nebulagraph

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/graphbridge/internal/graph/normalize"
)

func aliceValue() vertexValue {
	return vertexValue{
		VID:  "u1",
		Tags: []string{"Person", "Employee"},
		Props: map[string]map[string]any{
			"Person":   {"name": "Alice", "age": int64(30), "nick": nil, "created_at": int64(10), "updated_at": int64(11)},
			"Employee": {"team": "graph"},
		},
	}
}

func bobValue() vertexValue {
	return vertexValue{VID: "u2", Tags: []string{"Person"}, Props: map[string]map[string]any{"Person": {"name": "Bob"}}}
}

func knowsValue() edgeValue {
	return edgeValue{Src: "u1", Dst: "u2", Name: "KNOWS", Props: map[string]any{"since": int64(2020), "created_at": int64(5)}}
}

func TestVertexMergesTags(t *testing.T) {
	v := aliceValue().toVertex()

	assert.Equal(t, "u1", v.UID)
	assert.Equal(t, "Employee", v.Label)
	assert.Equal(t, map[string]any{"name": "Alice", "age": int64(30), "team": "graph"}, v.Properties)
	assert.Equal(t, int64(10), v.CreatedAt)
	assert.Equal(t, int64(11), v.UpdatedAt)
}

func TestEdgeUIDIsComposite(t *testing.T) {
	e := knowsValue().toEdge()

	assert.Equal(t, "u1|KNOWS|u2", e.UID)
	assert.Equal(t, "u1", e.SourceUID)
	assert.Equal(t, "u2", e.TargetUID)
	assert.Equal(t, map[string]any{"since": int64(2020)}, e.Properties)
	assert.Equal(t, int64(5), e.CreatedAt)

	ranked := knowsValue()
	ranked.Rank = 3
	assert.Equal(t, "u1|KNOWS|u2|3", ranked.toEdge().UID)
}

func TestNormalizeRowsDedupsAcrossPathsAndColumns(t *testing.T) {
	rows := []any{
		[]any{pathValue{Elements: []any{aliceValue(), knowsValue(), bobValue()}}, int64(1)},
		[]any{aliceValue(), map[string]any{"friend": bobValue()}},
	}
	out := normalize.New(decoder{}, nil).Normalize(rows)

	assert.Len(t, out.Vertices, 2)
	assert.Len(t, out.Edges, 1)
	assert.Equal(t, 3, out.Statistics.ResultRows)
	assert.Equal(t, 5, out.Statistics.ElementsSeen)
	assert.Equal(t, []any{int64(1)}, out.Scalars)
	assert.NoError(t, out.Partial())
}

func TestBrokenValuesBecomePlaceholders(t *testing.T) {
	rows := []any{
		[]any{brokenValue{Shape: normalize.ShapeVertex, Err: fmt.Errorf("bad vid")}, bobValue()},
		brokenValue{Shape: normalize.ShapeScalar, Err: fmt.Errorf("bad row")},
	}
	out := normalize.New(decoder{}, nil).Normalize(rows)

	require.Len(t, out.Vertices, 2)
	assert.True(t, out.Vertices[0].Placeholder)
	assert.Equal(t, "u2", out.Vertices[1].UID)
	assert.Equal(t, 1, out.Statistics.PartialFailures)
	assert.Error(t, out.Partial())
	require.Len(t, out.Scalars, 1)
	assert.Contains(t, out.Scalars[0], "bad row")
}

func TestDropNulls(t *testing.T) {
	assert.Equal(t, map[string]any{"a": int64(1)}, dropNulls(map[string]any{"a": int64(1), "b": nil}))
}

func TestParseDateTime(t *testing.T) {
	want := time.Date(2024, 3, 5, 14, 7, 9, 123456000, time.UTC)
	tests := []struct {
		in   string
		want any
	}{
		{in: "2024-03-05T14:07:09.123456000", want: want},
		{in: "2024-03-05T14:07:09.123456", want: want},
		{in: "2024-03-05T14:07:09.123456Z", want: want},
		{in: "2024-03-05T14:07:09", want: want.Truncate(time.Second)},
		{in: "P1D", want: "P1D"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseDateTime(tt.in))
		})
	}
}

func TestDateTimeLiteralReadsBack(t *testing.T) {
	written := time.Date(2023, 11, 2, 8, 30, 0, 250000000, time.FixedZone("CET", 3600))
	lit, err := literal(colDateTime, written)
	require.NoError(t, err)
	require.Equal(t, `datetime("2023-11-02T07:30:00.250000")`, lit)

	got := parseDateTime("2023-11-02T07:30:00.250000")
	require.IsType(t, time.Time{}, got)
	assert.True(t, written.Equal(got.(time.Time)))
}
