package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/graphbridge/internal/errors"
)

func TestParseBackendKind(t *testing.T) {
	tests := []struct {
		in   string
		want BackendKind
		ok   bool
	}{
		{"neo4j", BackendNeo4j, true},
		{"NebulaGraph", BackendNebula, true},
		{" janus ", BackendJanus, true},
		{"janusgraph", BackendJanus, true},
		{"dgraph", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBackendKind(tt.in)
			if !tt.ok {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseQueryLanguage(t *testing.T) {
	assert.Equal(t, LanguageCypher, ParseQueryLanguage("Cypher"))
	assert.Equal(t, LanguageCypher, ParseQueryLanguage("openCypher"))
	assert.Equal(t, LanguageNGQL, ParseQueryLanguage("nGQL"))
	assert.Equal(t, LanguageNGQL, ParseQueryLanguage("GQL"))
	assert.Equal(t, LanguageGremlin, ParseQueryLanguage("GREMLIN"))
	assert.Equal(t, QueryLanguage("SPARQL"), ParseQueryLanguage("SPARQL"))
}

func TestBackendKindLanguage(t *testing.T) {
	assert.Equal(t, LanguageCypher, BackendNeo4j.QueryLanguage())
	assert.Equal(t, LanguageNGQL, BackendNebula.QueryLanguage())
	assert.Equal(t, LanguageGremlin, BackendJanus.QueryLanguage())
}

func TestConnectionConfigValidate(t *testing.T) {
	valid := ConnectionConfig{Kind: BackendNeo4j, Host: "localhost", Port: 7687}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name string
		cfg  ConnectionConfig
	}{
		{"missing kind", ConnectionConfig{Host: "h", Port: 1}},
		{"unknown kind", ConnectionConfig{Kind: "dgraph", Host: "h", Port: 1}},
		{"missing host", ConnectionConfig{Kind: BackendNebula, Port: 9669}},
		{"bad port", ConnectionConfig{Kind: BackendJanus, Host: "h", Port: 70000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, errors.ErrorTypeConfig, errors.GetType(err))
		})
	}
}

func TestConnectionConfigEqual(t *testing.T) {
	a := ConnectionConfig{Kind: BackendJanus, Host: "h", Port: 8182, Params: map[string]string{"storage.backend": "cql"}}
	b := a
	b.Params = map[string]string{"storage.backend": "cql"}
	assert.True(t, a.Equal(b))

	b.Params["storage.backend"] = "hbase"
	assert.False(t, a.Equal(b))

	c := a
	c.Password = "secret"
	assert.False(t, a.Equal(c))
	assert.NotContains(t, c.String(), "secret")
}

func TestGraphQueryResultPartial(t *testing.T) {
	r := &GraphQueryResult{}
	assert.NoError(t, r.Partial())

	r.Statistics.PartialFailures = 2
	r.Warnings = []string{"a", "b"}
	err := r.Partial()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrPartialExtraction)
}

func TestTypeDeletionPartial(t *testing.T) {
	assert.False(t, TypeDeletion{Scope: DeletionScopeSchema}.Partial())
	assert.True(t, TypeDeletion{Scope: DeletionScopeInstances, InstancesRemoved: 3}.Partial())
}
