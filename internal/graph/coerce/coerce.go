// Package coerce maps arbitrary Go property values onto the generic value model
// shared by every adapter: string, long (int64), double (float64), bool,
// date (time.Time), list ([]any), map (map[string]any) and null (nil).
package coerce

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"time"

	"github.com/rohankatakam/graphbridge/internal/model"
)

// Kind is the generic value kind
type Kind string

const (
	KindNull   Kind = "null"
	KindString Kind = "string"
	KindLong   Kind = "long"
	KindDouble Kind = "double"
	KindBool   Kind = "bool"
	KindDate   Kind = "date"
	KindList   Kind = "list"
	KindMap    Kind = "map"
)

// Normalize converts v into the generic value model. Integers of every width
// become int64, floats become float64, slices and arrays become []any and maps
// with any key type become map[string]any with keys rendered by fmt.
func Normalize(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return x, nil
	case bool:
		return x, nil
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint:
		return uintToLong(uint64(x))
	case uint64:
		return uintToLong(x)
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", x.String(), err)
		}
		return f, nil
	case time.Time:
		return x, nil
	case *time.Time:
		if x == nil {
			return nil, nil
		}
		return *x, nil
	case []any:
		return normalizeSlice(reflect.ValueOf(x))
	case map[string]any:
		return NormalizeMap(x)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, nil
		}
		return Normalize(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return []any{}, nil
		}
		return normalizeSlice(rv)
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := fmt.Sprint(iter.Key().Interface())
			val, err := Normalize(iter.Value().Interface())
			if err != nil {
				return nil, fmt.Errorf("map key %q: %w", key, err)
			}
			out[key] = val
		}
		return out, nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return uintToLong(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	}
	return nil, fmt.Errorf("unsupported property value of type %T", v)
}

func uintToLong(u uint64) (any, error) {
	if u > math.MaxInt64 {
		return nil, fmt.Errorf("unsigned value %d overflows long", u)
	}
	return int64(u), nil
}

func normalizeSlice(rv reflect.Value) (any, error) {
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		val, err := Normalize(rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("list index %d: %w", i, err)
		}
		out[i] = val
	}
	return out, nil
}

// NormalizeMap normalizes every value of a property map. The error names the
// offending key.
func NormalizeMap(m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		val, err := Normalize(v)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", k, err)
		}
		out[k] = val
	}
	return out, nil
}

// KindOf classifies an already normalized value
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case string:
		return KindString
	case int64:
		return KindLong
	case float64:
		return KindDouble
	case bool:
		return KindBool
	case time.Time:
		return KindDate
	case []any:
		return KindList
	case map[string]any:
		return KindMap
	}
	return KindNull
}

// PropertyTypeOf infers the declared property type for a normalized value
func PropertyTypeOf(v any) model.PropertyType {
	switch KindOf(v) {
	case KindLong:
		return model.PropertyLong
	case KindDouble:
		return model.PropertyDouble
	case KindBool:
		return model.PropertyBoolean
	case KindDate:
		return model.PropertyDateTime
	case KindList:
		return model.PropertyList
	case KindMap:
		return model.PropertyMap
	}
	return model.PropertyString
}

// Flatten renders list and map values as JSON text for backends whose
// property model has no composite types. Other kinds pass through.
func Flatten(v any) (any, error) {
	switch KindOf(v) {
	case KindList, KindMap:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("flatten %s value: %w", KindOf(v), err)
		}
		return string(b), nil
	}
	return v, nil
}

// FlattenMap applies Flatten to every value
func FlattenMap(m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		fv, err := Flatten(v)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", k, err)
		}
		out[k] = fv
	}
	return out, nil
}

// Merge overlays src onto dst and returns dst. Keys absent from src are kept.
func Merge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// SortedKeys returns the keys of m in lexical order
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Millis converts a time to epoch milliseconds
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// AsLong reads a long from any numeric representation; strings are parsed.
func AsLong(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case float64:
		return int64(x), true
	case string:
		i, err := strconv.ParseInt(x, 10, 64)
		return i, err == nil
	}
	return 0, false
}
