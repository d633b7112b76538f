package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/graphbridge/internal/errors"
	"github.com/rohankatakam/graphbridge/internal/model"
)

func TestParseProps(t *testing.T) {
	props, err := parseProps(`{"tags": ["a", 2], "score": 1.5, "nested": {"n": 3}}`,
		[]string{"name=Alice", "age=30", "active=true", `quoted="42"`, "note=two words", "empty="})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"tags":   []any{"a", int64(2)},
		"score":  1.5,
		"nested": map[string]any{"n": int64(3)},
		"name":   "Alice",
		"age":    int64(30),
		"active": true,
		"quoted": "42",
		"note":   "two words",
		"empty":  "",
	}, props)
}

func TestParsePropsPairsOverrideJSON(t *testing.T) {
	props, err := parseProps(`{"name": "Bob"}`, []string{"name=Alice"})
	require.NoError(t, err)
	assert.Equal(t, "Alice", props["name"])
}

func TestParsePropsErrors(t *testing.T) {
	_, err := parseProps(`[1, 2]`, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = parseProps("", []string{"novalue"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = parseProps("", []string{"=x"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestParsePropertyDefs(t *testing.T) {
	tests := []struct {
		name    string
		defs    []string
		want    []model.PropertyDefinition
		wantErr bool
	}{
		{
			name: "types and flags",
			defs: []string{"name:string:indexed", "age:LONG", "born:date:required:index"},
			want: []model.PropertyDefinition{
				{Name: "name", Type: model.PropertyString, Indexed: true},
				{Name: "age", Type: model.PropertyLong},
				{Name: "born", Type: model.PropertyDate, Indexed: true, Required: true},
			},
		},
		{name: "none", defs: nil, want: []model.PropertyDefinition{}},
		{name: "missing type", defs: []string{"name"}, wantErr: true},
		{name: "unknown type", defs: []string{"name:text"}, wantErr: true},
		{name: "unknown flag", defs: []string{"name:string:unique"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePropertyDefs(tt.defs)
			if tt.wantErr {
				assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderFormats(t *testing.T) {
	v := model.Vertex{UID: "u1", Label: "Person", Properties: map[string]any{"name": "Alice"}}

	var buf bytes.Buffer
	require.NoError(t, renderTo(&buf, "yaml", v))
	assert.Contains(t, buf.String(), "uid: u1\n")
	assert.Contains(t, buf.String(), "  name: Alice\n")

	buf.Reset()
	require.NoError(t, renderTo(&buf, "JSON", v))
	assert.Contains(t, buf.String(), `"uid": "u1"`)

	err := renderTo(&buf, "xml", v)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}
