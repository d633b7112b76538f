package janusgraph

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/graphbridge/internal/errors"
	"github.com/rohankatakam/graphbridge/internal/model"
)

func TestScriptSelectsConfiguredGraph(t *testing.T) {
	s := script("social", readBody(getVertexScript))
	assert.True(t, strings.HasPrefix(s, openGraph))
	assert.Contains(t, s, elementFns)
	assert.True(t, strings.HasSuffix(s, "} finally { graph.tx().rollback() }\n"))

	s = script("", getVertexScript)
	assert.False(t, strings.Contains(s, "ConfiguredGraphFactory"))
}

func TestNativeBodyAlwaysRollsBack(t *testing.T) {
	body := nativeBody("g.V().limit(3)")
	assert.Contains(t, body, "gbRows({ ->\ng.V().limit(3)\n}.call(), gbCap + 1)")
	assert.Contains(t, body, "finally { graph.tx().rollback() }")
}

func TestWriteBodyCommits(t *testing.T) {
	body := writeBody(createVertexScript)
	assert.Contains(t, body, "graph.tx().commit()")
	assert.Contains(t, body, "catch (e) { graph.tx().rollback(); throw e }")
}

func TestTypeScriptsAreFilledIn(t *testing.T) {
	s := fmt.Sprintf(typesScript, "EdgeLabel", "Edge")
	assert.Contains(t, s, "mgmt.getGraphIndexes(Edge.class)")
	assert.NotContains(t, s, "%")

	s = fmt.Sprintf(createTypeScript, "Vertex")
	assert.Contains(t, s, "buildIndex(p.index, Vertex.class)")
	assert.NotContains(t, s, "%")
}

func TestTypeProps(t *testing.T) {
	props := typeProps(model.LabelType{
		Name: "Person",
		Kind: model.LabelVertex,
		Properties: []model.PropertyDefinition{
			{Name: "name", Type: model.PropertyString, Indexed: true},
			{Name: "born", Type: model.PropertyDate},
			{Name: "tags", Type: model.PropertyList},
		},
	})
	require.Len(t, props, 3)
	assert.Equal(t, map[string]any{"name": "name", "type": "java.lang.String", "index": "vertex_Person_name"}, props[0])
	assert.Equal(t, map[string]any{"name": "born", "type": "java.util.Date", "index": nil}, props[1])
	assert.Equal(t, "java.lang.String", props[2].(map[string]any)["type"])
}

func TestPropertyTypeRoundTrip(t *testing.T) {
	for _, pt := range []model.PropertyType{model.PropertyLong, model.PropertyDouble, model.PropertyBoolean, model.PropertyString} {
		assert.Equal(t, pt, propertyTypeOf(javaTypeOf(pt)))
	}
	assert.Equal(t, model.PropertyDateTime, propertyTypeOf(javaTypeOf(model.PropertyDate)))
	assert.Equal(t, model.PropertyLong, propertyTypeOf("java.lang.Integer"))
}

func TestStorageConfig(t *testing.T) {
	tests := []struct {
		name    string
		params  map[string]string
		backend any
		wantErr bool
	}{
		{"no storage params uses the template", nil, nil, false},
		{"cassandra maps to cql", map[string]string{"storage.backend": "cassandra", "storage.hostname": "cass"}, "cql", false},
		{"hbase", map[string]string{"storage.backend": "HBase"}, "hbase", false},
		{"berkeley", map[string]string{"storage.backend": "berkeleyje", "storage.directory": "/data"}, "berkeleyje", false},
		{"hostname only defaults to inmemory", map[string]string{"storage.hostname": "x"}, "inmemory", false},
		{"unknown backend", map[string]string{"storage.backend": "rocks"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf, err := storageConfig(model.ConnectionConfig{Kind: model.BackendJanus, Params: tt.params})
			if tt.wantErr {
				assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.backend, conf["storage.backend"])
		})
	}
}

func TestStorageConfigIgnoresConnectionParams(t *testing.T) {
	conf, err := storageConfig(model.ConnectionConfig{Params: map[string]string{"scheme": "wss", "storage.hostname": "c1"}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"storage.hostname": "c1", "storage.backend": "inmemory"}, conf)
}

func TestServerURL(t *testing.T) {
	cfg := model.ConnectionConfig{Kind: model.BackendJanus, Host: "janus", Port: 8182}
	assert.Equal(t, "ws://janus:8182/gremlin", serverURL(cfg))

	cfg.Params = map[string]string{"scheme": "wss", "path": "/g"}
	assert.Equal(t, "wss://janus:8182/g", serverURL(cfg))
}

func TestWriteProps(t *testing.T) {
	values, err := writeProps(map[string]any{"tags": []string{"a"}, "age": 3}, true)
	require.NoError(t, err)
	assert.Equal(t, `["a"]`, values["tags"])
	assert.Equal(t, int64(3), values["age"])
	assert.Contains(t, values, "created_at")
	assert.Contains(t, values, "updated_at")

	values, err = writeProps(nil, false)
	require.NoError(t, err)
	assert.NotContains(t, values, "created_at")

	_, err = writeProps(map[string]any{"updated_at": 1}, false)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}
