package normalize

import (
	"fmt"
	"sort"
)

// MapValues returns the values of m ordered by key, so dedup ("first
// occurrence wins") is deterministic across runs.
func MapValues[V any](m map[string]V) []any {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

// AnyMapValues is MapValues for maps keyed by arbitrary values, as produced by
// Gremlin deserializers. Keys are ordered by their fmt rendering.
func AnyMapValues(m map[any]any) []any {
	type kv struct {
		key string
		val any
	}
	entries := make([]kv, 0, len(m))
	for k, v := range m {
		entries = append(entries, kv{fmt.Sprint(k), v})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
	out := make([]any, len(entries))
	for i, e := range entries {
		out[i] = e.val
	}
	return out
}
