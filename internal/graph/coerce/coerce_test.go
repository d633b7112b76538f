package coerce

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/graphbridge/internal/model"
)

func TestNormalizeScalars(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"string", "alice", "alice"},
		{"bool", true, true},
		{"int", 30, int64(30)},
		{"int32", int32(7), int64(7)},
		{"uint16", uint16(9), int64(9)},
		{"float32", float32(1.5), float64(1.5)},
		{"json int", json.Number("2020"), int64(2020)},
		{"json float", json.Number("2.5"), 2.5},
		{"time", now, now},
		{"time pointer", &now, now},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeComposite(t *testing.T) {
	got, err := Normalize(map[string]any{
		"tags":   []string{"a", "b"},
		"scores": [2]int{1, 2},
		"nested": map[any]any{1: "x"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"tags":   []any{"a", "b"},
		"scores": []any{int64(1), int64(2)},
		"nested": map[string]any{"1": "x"},
	}, got)
}

func TestNormalizeRejects(t *testing.T) {
	_, err := Normalize(uint64(math.MaxUint64))
	assert.Error(t, err)

	_, err = NormalizeMap(map[string]any{"ch": make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `property "ch"`)
}

func TestKindAndPropertyType(t *testing.T) {
	assert.Equal(t, KindLong, KindOf(int64(1)))
	assert.Equal(t, KindMap, KindOf(map[string]any{}))
	assert.Equal(t, KindNull, KindOf(nil))
	assert.Equal(t, model.PropertyLong, PropertyTypeOf(int64(1)))
	assert.Equal(t, model.PropertyDouble, PropertyTypeOf(1.0))
	assert.Equal(t, model.PropertyDateTime, PropertyTypeOf(time.Now()))
	assert.Equal(t, model.PropertyString, PropertyTypeOf("x"))
}

func TestFlatten(t *testing.T) {
	got, err := FlattenMap(map[string]any{
		"list": []any{int64(1), "a"},
		"map":  map[string]any{"k": true},
		"n":    int64(3),
	})
	require.NoError(t, err)
	assert.Equal(t, `[1,"a"]`, got["list"])
	assert.Equal(t, `{"k":true}`, got["map"])
	assert.Equal(t, int64(3), got["n"])
}

func TestMergeKeepsAbsentKeys(t *testing.T) {
	out := Merge(map[string]any{"name": "Alice", "age": int64(30)}, map[string]any{"age": int64(31)})
	assert.Equal(t, map[string]any{"name": "Alice", "age": int64(31)}, out)
	assert.Equal(t, []string{"age", "name"}, SortedKeys(out))
}

func TestAsLong(t *testing.T) {
	v, ok := AsLong("42")
	assert.True(t, ok)
	assert.Equal(t, int64(42), v)
	_, ok = AsLong("x")
	assert.False(t, ok)
}
