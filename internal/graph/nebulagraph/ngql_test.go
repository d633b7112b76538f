package nebulagraph

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/graphbridge/internal/graph/identity"
	"github.com/rohankatakam/graphbridge/internal/model"
)

func TestStringLiteralEscapes(t *testing.T) {
	assert.Equal(t, `"plain"`, stringLiteral("plain"))
	assert.Equal(t, `"say \"hi\"\n"`, stringLiteral("say \"hi\"\n"))
	assert.Equal(t, `"a\\b"`, stringLiteral(`a\b`))
}

func TestLiteralFitsColumnType(t *testing.T) {
	day := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		col  string
		v    any
		want string
	}{
		{colString, "Alice", `"Alice"`},
		{colString, []any{int64(1), int64(2)}, `"[1,2]"`},
		{colString, int64(7), `"7"`},
		{colInt64, int64(30), "30"},
		{"int32", int64(3), "3"},
		{colDouble, 1.5, "1.5"},
		{colDouble, int64(2), "2.0"},
		{colBool, true, "true"},
		{colDate, day, `date("2024-03-01")`},
		{colDateTime, day, `datetime("2024-03-01T12:30:00.000000")`},
		{"fixed_string(32)", "x", `"x"`},
		{colInt64, nil, "NULL"},
		{"", "untyped", `"untyped"`},
	}
	for _, tt := range tests {
		got, err := literal(tt.col, tt.v)
		require.NoError(t, err, "%s %v", tt.col, tt.v)
		assert.Equal(t, tt.want, got, "%s %v", tt.col, tt.v)
	}
}

func TestLiteralRejectsMismatch(t *testing.T) {
	_, err := literal(colInt64, "thirty")
	assert.Error(t, err)

	_, err = literal(colBool, int64(1))
	assert.Error(t, err)

	_, err = literal(colDouble, math.NaN())
	assert.Error(t, err)
}

func TestColumnTypes(t *testing.T) {
	assert.Equal(t, colInt64, columnTypeOf(int64(1)))
	assert.Equal(t, colDouble, columnTypeOf(1.0))
	assert.Equal(t, colBool, columnTypeOf(false))
	assert.Equal(t, colDateTime, columnTypeOf(time.Now()))
	assert.Equal(t, colString, columnTypeOf(map[string]any{"a": "b"}))

	assert.Equal(t, colDate, columnTypeFor(model.PropertyDate))
	assert.Equal(t, colString, columnTypeFor(model.PropertyList))

	assert.Equal(t, model.PropertyLong, propertyTypeOf("INT64"))
	assert.Equal(t, model.PropertyDouble, propertyTypeOf("float"))
	assert.Equal(t, model.PropertyDateTime, propertyTypeOf("timestamp"))
	assert.Equal(t, model.PropertyString, propertyTypeOf("fixed_string(64)"))
}

func TestCreateSchemaStmtCarriesTimestamps(t *testing.T) {
	stmt, err := createSchemaStmt(kindTag, "Person", []column{
		{Name: "name", Type: colString, Required: true},
		{Name: "age", Type: colInt64, Default: int64(0)},
	})
	require.NoError(t, err)
	assert.Equal(t,
		"CREATE TAG IF NOT EXISTS `Person`(`created_at` int64 NULL, `updated_at` int64 NULL, `name` string NOT NULL, `age` int64 NULL DEFAULT 0)",
		stmt)

	stmt, err = alterAddStmt(kindEdge, "KNOWS", []column{{Name: "since", Type: colInt64}})
	require.NoError(t, err)
	assert.Equal(t, "ALTER EDGE `KNOWS` ADD (`since` int64 NULL)", stmt)

	_, err = createSchemaStmt(kindTag, "Person", []column{{Name: "age", Type: colInt64, Default: "old"}})
	assert.Error(t, err)
}

func TestIndexStatements(t *testing.T) {
	assert.Equal(t, "CREATE TAG INDEX IF NOT EXISTS `idx_tag_Person` ON `Person`()",
		createIndexStmt(kindTag, "Person", "", ""))
	assert.Equal(t, "CREATE TAG INDEX IF NOT EXISTS `idx_tag_Person_name` ON `Person`(`name`(64))",
		createIndexStmt(kindTag, "Person", "name", colString))
	assert.Equal(t, "CREATE EDGE INDEX IF NOT EXISTS `idx_edge_KNOWS_since` ON `KNOWS`(`since`)",
		createIndexStmt(kindEdge, "KNOWS", "since", colInt64))
	assert.Equal(t, "REBUILD TAG INDEX `idx_tag_Person`",
		rebuildIndexStmt(kindTag, indexName(kindTag, "Person", "")))
	assert.Equal(t, "REBUILD EDGE INDEX `idx_edge_KNOWS_since`",
		rebuildIndexStmt(kindEdge, indexName(kindEdge, "KNOWS", "since")))
}

func TestInsertAndUpdateStatements(t *testing.T) {
	as, err := assignments(
		map[string]any{"name": "Alice", "age": int64(30)},
		map[string]string{"name": colString, "age": colInt64},
		1000, true)
	require.NoError(t, err)

	assert.Equal(t,
		"INSERT VERTEX `Person`(`age`, `name`, `created_at`, `updated_at`) VALUES \"u1\":(30, \"Alice\", 1000, 1000)",
		insertVertexStmt("Person", "u1", as))

	as, err = assignments(map[string]any{"age": int64(31)}, map[string]string{"age": colInt64}, 2000, false)
	require.NoError(t, err)
	assert.Equal(t, "UPDATE VERTEX ON `Person` \"u1\" SET `age` = 31, `updated_at` = 2000",
		updateVertexStmt("Person", "u1", as))

	key := identity.EdgeKey{Source: "u1", Label: "KNOWS", Target: "u2"}
	assert.Equal(t,
		"INSERT EDGE `KNOWS`(`age`, `updated_at`) VALUES \"u1\"->\"u2\"@0:(31, 2000)",
		insertEdgeStmt(key, as))
	assert.Equal(t, "FETCH PROP ON `KNOWS` \"u1\"->\"u2\"@0 YIELD edge AS e", fetchEdgeStmt(key))
	assert.Equal(t, `FETCH PROP ON * "u1", "u2" YIELD vertex AS v`, fetchVerticesStmt("u1", "u2"))
}

func TestAssignmentsReportOffendingProperty(t *testing.T) {
	_, err := assignments(map[string]any{"age": "old"}, map[string]string{"age": colInt64}, 0, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"age"`)
}

func TestColumnsForSortsByName(t *testing.T) {
	cols := columnsFor(map[string]any{"b": int64(1), "a": "x"})
	require.Len(t, cols, 2)
	assert.Equal(t, column{Name: "a", Type: colString}, cols[0])
	assert.Equal(t, column{Name: "b", Type: colInt64}, cols[1])
}

func TestSchemaPending(t *testing.T) {
	assert.True(t, schemaPending(fmt.Errorf("TagNotFound: Tag not existed!")))
	assert.True(t, schemaPending(fmt.Errorf("SemanticError: Space was not chosen.")))
	assert.False(t, schemaPending(fmt.Errorf("SyntaxError: syntax error near `MATC`")))
	assert.False(t, schemaPending(nil))
}
