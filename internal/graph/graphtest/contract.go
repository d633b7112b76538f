// Package graphtest holds the behavioural contract every GraphAdapter must
// satisfy. Backend packages run it from env-gated integration tests against
// a live server.
package graphtest

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/graphbridge/internal/errors"
	"github.com/rohankatakam/graphbridge/internal/graph"
	"github.com/rohankatakam/graphbridge/internal/model"
)

// Env returns the environment variable or skips the test when it is unset
func Env(t *testing.T, key string) string {
	t.Helper()
	v := os.Getenv(key)
	if v == "" {
		t.Skipf("%s not set; skipping integration test", key)
	}
	return v
}

// EnvOr returns the environment variable or fallback
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// HostPort splits "scheme://host:port" or "host:port"
func HostPort(address string) (host, port string, err error) {
	if i := strings.Index(address, "://"); i >= 0 {
		address = address[i+3:]
	}
	address = strings.TrimSuffix(address, "/")
	return net.SplitHostPort(address)
}

// Suffix makes type names unique per run so repeated runs against one
// server do not see each other's data.
func Suffix() string {
	return fmt.Sprintf("%d", time.Now().UnixNano()%1_000_000_000)
}

// Contract describes one backend under test
type Contract struct {
	Adapter graph.GraphAdapter
	// Graph is the database, space or graph the suite writes into
	Graph string
	// WrongLanguage is a tag the backend must reject
	WrongLanguage model.QueryLanguage
	// Settle waits for schema changes to become visible, for backends that
	// apply them asynchronously
	Settle func()
}

// Run executes the contract suite
func Run(t *testing.T, c Contract) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	a := c.Adapter
	person := "Person_" + Suffix()
	knowsLabel := "KNOWS_" + Suffix()
	settle := c.Settle
	if settle == nil {
		settle = func() {}
	}

	t.Run("type creation is idempotent", func(t *testing.T) {
		vt := model.LabelType{Name: person, Kind: model.LabelVertex, Properties: []model.PropertyDefinition{
			{Name: "name", Type: model.PropertyString},
			{Name: "age", Type: model.PropertyLong},
		}}
		et := model.LabelType{Name: knowsLabel, Kind: model.LabelEdge, Properties: []model.PropertyDefinition{
			{Name: "since", Type: model.PropertyLong},
		}}
		require.NoError(t, a.CreateVertexType(ctx, c.Graph, vt))
		require.NoError(t, a.CreateVertexType(ctx, c.Graph, vt))
		require.NoError(t, a.CreateEdgeType(ctx, c.Graph, et))
		require.NoError(t, a.CreateEdgeType(ctx, c.Graph, et))
		settle()

		types, err := a.GetVertexTypes(ctx, c.Graph)
		require.NoError(t, err)
		assert.Equal(t, 1, countNamed(types, person))
	})

	var u1, u2, e1 string

	t.Run("create and read back", func(t *testing.T) {
		alice, err := a.CreateVertex(ctx, c.Graph, person, map[string]any{"name": "Alice", "age": 30})
		require.NoError(t, err)
		bob, err := a.CreateVertex(ctx, c.Graph, person, map[string]any{"name": "Bob", "age": 28})
		require.NoError(t, err)
		u1, u2 = alice.UID, bob.UID
		require.NotEqual(t, u1, u2)

		got, err := a.GetVertex(ctx, c.Graph, u1)
		require.NoError(t, err)
		assert.Equal(t, person, got.Label)
		assert.Equal(t, "Alice", got.Properties["name"])
		assert.EqualValues(t, 30, got.Properties["age"])

		edge, err := a.CreateEdge(ctx, c.Graph, knowsLabel, u1, u2, map[string]any{"since": 2020})
		require.NoError(t, err)
		e1 = edge.UID

		edges, err := a.QueryEdges(ctx, c.Graph, knowsLabel)
		require.NoError(t, err)
		require.Len(t, edges, 1)
		assert.Equal(t, u1, edges[0].SourceUID)
		assert.Equal(t, u2, edges[0].TargetUID)
		assert.EqualValues(t, 2020, edges[0].Properties["since"])

		gotEdge, err := a.GetEdge(ctx, c.Graph, e1)
		require.NoError(t, err)
		assert.Equal(t, knowsLabel, gotEdge.Label)
	})

	t.Run("types created by writes are scannable by label", func(t *testing.T) {
		place := "Place_" + Suffix()
		road := "ROAD_" + Suffix()
		from, err := a.CreateVertex(ctx, c.Graph, place, map[string]any{"name": "Oslo"})
		require.NoError(t, err)
		to, err := a.CreateVertex(ctx, c.Graph, place, map[string]any{"name": "Bergen"})
		require.NoError(t, err)
		edge, err := a.CreateEdge(ctx, c.Graph, road, from.UID, to.UID, map[string]any{"km": 463})
		require.NoError(t, err)
		settle()

		vertices, err := a.QueryVertices(ctx, c.Graph, place)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{from.UID, to.UID}, vertexUIDs(vertices))

		edges, err := a.QueryEdges(ctx, c.Graph, road)
		require.NoError(t, err)
		require.Len(t, edges, 1)
		assert.Equal(t, edge.UID, edges[0].UID)

		require.NoError(t, a.DeleteVertex(ctx, c.Graph, from.UID))
		require.NoError(t, a.DeleteVertex(ctx, c.Graph, to.UID))
	})

	t.Run("update merges properties", func(t *testing.T) {
		v, err := a.UpdateVertex(ctx, c.Graph, u2, map[string]any{"age": 29})
		require.NoError(t, err)
		assert.Equal(t, "Bob", v.Properties["name"])
		assert.EqualValues(t, 29, v.Properties["age"])

		e, err := a.UpdateEdge(ctx, c.Graph, e1, map[string]any{"since": 2021})
		require.NoError(t, err)
		assert.EqualValues(t, 2021, e.Properties["since"])
	})

	t.Run("edge to a missing vertex is never written", func(t *testing.T) {
		_, err := a.CreateEdge(ctx, c.Graph, knowsLabel, u1, "missing-vertex", nil)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeVertexNotFound))

		edges, err := a.QueryEdges(ctx, c.Graph, knowsLabel)
		require.NoError(t, err)
		assert.Len(t, edges, 1)
	})

	t.Run("native query rejects a foreign language", func(t *testing.T) {
		_, err := a.ExecuteNativeQuery(ctx, c.Graph, c.WrongLanguage, "RETURN 1")
		assert.True(t, errors.IsType(err, errors.ErrorTypeQueryLanguageNotSupported))
	})

	t.Run("delete vertex cascades to its edges", func(t *testing.T) {
		require.NoError(t, a.DeleteVertex(ctx, c.Graph, u1))

		edges, err := a.QueryEdges(ctx, c.Graph, knowsLabel)
		require.NoError(t, err)
		assert.Empty(t, edges)

		vertices, err := a.QueryVertices(ctx, c.Graph, person)
		require.NoError(t, err)
		for _, v := range vertices {
			assert.NotEqual(t, u1, v.UID)
		}

		_, err = a.GetVertex(ctx, c.Graph, u1)
		assert.True(t, errors.IsType(err, errors.ErrorTypeVertexNotFound))
		_, err = a.GetEdge(ctx, c.Graph, e1)
		assert.True(t, errors.IsType(err, errors.ErrorTypeEdgeNotFound))
	})

	t.Run("type deletion reports its scope", func(t *testing.T) {
		del, err := a.DeleteEdgeType(ctx, c.Graph, knowsLabel)
		if errors.IsType(err, errors.ErrorTypeUnsupportedOperation) {
			t.Skip("backend cannot delete types")
		}
		require.NoError(t, err)
		assert.Equal(t, knowsLabel, del.Name)

		del, err = a.DeleteVertexType(ctx, c.Graph, person)
		require.NoError(t, err)
		if del.Scope == model.DeletionScopeInstances {
			assert.True(t, del.Partial())
			assert.EqualValues(t, 1, del.InstancesRemoved)
		}
	})

	t.Run("disconnect is idempotent", func(t *testing.T) {
		require.NoError(t, a.Disconnect(ctx))
		require.NoError(t, a.Disconnect(ctx))
		assert.False(t, a.IsConnected())
	})
}

func countNamed(types []model.LabelType, name string) int {
	n := 0
	for _, t := range types {
		if t.Name == name {
			n++
		}
	}
	return n
}

func vertexUIDs(vs []model.Vertex) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.UID)
	}
	return out
}
