package neo4jgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/graphbridge/internal/errors"
	"github.com/rohankatakam/graphbridge/internal/model"
)

func TestBuildCreateNode(t *testing.T) {
	b := NewCypherBuilder()
	cypher, err := b.BuildCreateNode("Person", "u1", map[string]any{"name": "Alice", "age": int64(30)}, 1000)
	require.NoError(t, err)

	assert.Equal(t,
		"CREATE (n:`Person`) SET n.uid = $p3, n.`age` = $p0, n.`name` = $p1, n.created_at = $p2, n.updated_at = $p2 RETURN n",
		cypher)
	assert.Equal(t, map[string]any{"p0": int64(30), "p1": "Alice", "p2": int64(1000), "p3": "u1"}, b.Params())
}

func TestBuildCreateNodeRejectsBadNames(t *testing.T) {
	tests := []struct {
		name  string
		label string
		props map[string]any
	}{
		{"label with space", "Bad Label", nil},
		{"label with backquote", "A`) DETACH DELETE (n", nil},
		{"property with dash", "Person", map[string]any{"first-name": "x"}},
		{"reserved property", "Person", map[string]any{"uid": "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCypherBuilder().BuildCreateNode(tt.label, "u", tt.props, 0)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
		})
	}
}

func TestBuildUpdateNodeMatchesUIDOrElementID(t *testing.T) {
	b := NewCypherBuilder()
	cypher, err := b.BuildUpdateNode("u1", map[string]any{"age": int64(31)}, 5)
	require.NoError(t, err)

	assert.Contains(t, cypher, "WHERE n_uid.uid = $p2 WITH n_uid LIMIT 1")
	assert.Contains(t, cypher, "WHERE n_uid IS NULL AND elementId(n_id) = $p2")
	assert.NotContains(t, cypher, " OR ")
	assert.Contains(t, cypher, "n.`age` = $p0")
	assert.NotContains(t, cypher, "created_at")
	assert.Contains(t, cypher, "n.updated_at = $p1")
}

func TestBuildCreateEdgeReturnsEndpointUIDs(t *testing.T) {
	b := NewCypherBuilder()
	cypher, err := b.BuildCreateEdge("KNOWS", "u1", "u2", "e1", map[string]any{"since": int64(2020)}, 7)
	require.NoError(t, err)

	assert.Contains(t, cypher, "CREATE (s)-[r:`KNOWS`]->(t)")
	assert.Contains(t, cypher, "coalesce(s.uid, elementId(s)) AS src")
	assert.Contains(t, cypher, "coalesce(t.uid, elementId(t)) AS dst")
	assert.Equal(t, "u1", b.Params()["p0"])
	assert.Equal(t, "u2", b.Params()["p1"])
	assert.Equal(t, "e1", b.Params()["p4"])
}

func TestMatchByUIDTriesUIDBeforeElementID(t *testing.T) {
	assert.Equal(t,
		"OPTIONAL MATCH (n_uid) WHERE n_uid.uid = $p0 WITH n_uid LIMIT 1 "+
			"OPTIONAL MATCH (n_id) WHERE n_uid IS NULL AND elementId(n_id) = $p0 "+
			"WITH coalesce(n_uid, n_id) AS n WHERE n IS NOT NULL",
		matchByUID("n", "$p0", false))

	assert.Equal(t,
		"OPTIONAL MATCH (t_uid) WHERE t_uid.uid = $p1 WITH s, t_uid LIMIT 1 "+
			"OPTIONAL MATCH (t_id) WHERE t_uid IS NULL AND elementId(t_id) = $p1 "+
			"WITH s, coalesce(t_uid, t_id) AS t",
		matchByUID("t", "$p1", true, "s"))

	assert.Contains(t, matchRelByUID("r", "$p0", false), "OPTIONAL MATCH ()-[r_uid]->() WHERE r_uid.uid = $p0")
}

func TestBuildResolveEndpoints(t *testing.T) {
	b := NewCypherBuilder()
	cypher := b.BuildResolveEndpoints("u1", "u2")

	assert.Contains(t, cypher, "OPTIONAL MATCH (s_uid)")
	assert.Contains(t, cypher, "hasSource")
	assert.Contains(t, cypher, "hasTarget")
	assert.Len(t, b.Params(), 2)
}

func TestValidateDatabaseName(t *testing.T) {
	assert.NoError(t, validateDatabaseName("neo4j"))
	assert.NoError(t, validateDatabaseName("my-graph.v2"))
	assert.Error(t, validateDatabaseName("ab"))
	assert.Error(t, validateDatabaseName("1graph"))
	assert.Error(t, validateDatabaseName("bad_name"))
}

func TestTypeStatements(t *testing.T) {
	stmts, err := typeStatements(model.LabelType{
		Name: "Person",
		Properties: []model.PropertyDefinition{
			{Name: "name", Type: model.PropertyString, Indexed: true},
			{Name: "age", Type: model.PropertyLong},
		},
	}, model.LabelVertex)
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE CONSTRAINT `vertex_uid_Person` IF NOT EXISTS FOR (n:`Person`) REQUIRE n.uid IS UNIQUE", stmts[0])
	assert.Equal(t, "CREATE INDEX `vertex_Person_name` IF NOT EXISTS FOR (n:`Person`) ON (n.`name`)", stmts[1])

	stmts, err = typeStatements(model.LabelType{Name: "KNOWS"}, model.LabelEdge)
	require.NoError(t, err)
	assert.Equal(t, []string{"CREATE INDEX `edge_uid_KNOWS` IF NOT EXISTS FOR ()-[r:`KNOWS`]-() ON (r.uid)"}, stmts)

	_, err = typeStatements(model.LabelType{Name: "bad name"}, model.LabelVertex)
	assert.Error(t, err)
}

func TestPropertyType(t *testing.T) {
	assert.Equal(t, model.PropertyLong, propertyType([]string{"Long"}))
	assert.Equal(t, model.PropertyList, propertyType([]string{"StringArray"}))
	assert.Equal(t, model.PropertyDateTime, propertyType([]string{"LocalDateTime"}))
	assert.Equal(t, model.PropertyString, propertyType([]string{"Long", "String"}))
	assert.Equal(t, "KNOWS", relTypeName(":`KNOWS`"))
}
