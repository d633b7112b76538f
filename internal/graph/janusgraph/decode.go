package janusgraph

import (
	"fmt"

	gremlingo "github.com/apache/tinkerpop/gremlin-go/v3/driver"

	"github.com/rohankatakam/graphbridge/internal/graph/coerce"
	"github.com/rohankatakam/graphbridge/internal/graph/identity"
	"github.com/rohankatakam/graphbridge/internal/graph/normalize"
	"github.com/rohankatakam/graphbridge/internal/model"
)

// stringMap returns a deserialized map with string keys. GraphBinary maps
// arrive as map[interface{}]interface{}.
func stringMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, e := range m {
			out[fmt.Sprint(k)] = e
		}
		return out, true
	}
	return nil, false
}

// tagOf returns the element kind of a tagged map, or ""
func tagOf(v any) string {
	m, ok := stringMap(v)
	if !ok {
		return ""
	}
	kind, _ := m[tagKind].(string)
	return kind
}

func requireString(m map[string]any, key string) (string, error) {
	s, ok := m[key].(string)
	if !ok || s == "" {
		return "", fmt.Errorf("tagged element without %q", key)
	}
	return s, nil
}

// elementProps normalizes the properties of a tagged element
func elementProps(m map[string]any) (props map[string]any, created, updated int64, err error) {
	raw, _ := stringMap(m[tagProperties])
	values, err := coerce.NormalizeMap(raw)
	if err != nil {
		return nil, 0, 0, err
	}
	props, _, created, updated = identity.SplitReserved(values)
	return props, created, updated, nil
}

func taggedVertex(v any) (model.Vertex, error) {
	m, ok := stringMap(v)
	if !ok || m[tagKind] != kindVertex {
		return model.Vertex{}, fmt.Errorf("not a tagged vertex: %T", v)
	}
	id, err := requireString(m, tagID)
	if err != nil {
		return model.Vertex{}, err
	}
	label, _ := m[tagLabel].(string)
	props, created, updated, err := elementProps(m)
	if err != nil {
		return model.Vertex{}, fmt.Errorf("vertex %s: %w", id, err)
	}
	return model.Vertex{UID: id, Label: label, Properties: props, CreatedAt: created, UpdatedAt: updated}, nil
}

func taggedEdge(v any) (model.Edge, error) {
	m, ok := stringMap(v)
	if !ok || m[tagKind] != kindEdge {
		return model.Edge{}, fmt.Errorf("not a tagged edge: %T", v)
	}
	id, err := requireString(m, tagID)
	if err != nil {
		return model.Edge{}, err
	}
	out, err := requireString(m, tagOut)
	if err != nil {
		return model.Edge{}, err
	}
	in, err := requireString(m, tagIn)
	if err != nil {
		return model.Edge{}, err
	}
	label, _ := m[tagLabel].(string)
	props, created, updated, err := elementProps(m)
	if err != nil {
		return model.Edge{}, fmt.Errorf("edge %s: %w", id, err)
	}
	return model.Edge{
		UID:        id,
		Label:      label,
		SourceUID:  out,
		TargetUID:  in,
		Properties: props,
		CreatedAt:  created,
		UpdatedAt:  updated,
	}, nil
}

// decoder classifies deserialized Gremlin results. Scripts return tagged maps,
// but driver element types are accepted too for results produced without the
// server-side conversion.
type decoder struct{}

var _ normalize.Decoder = decoder{}

func (decoder) Shape(v any) normalize.Shape {
	switch x := v.(type) {
	case *gremlingo.Vertex:
		return normalize.ShapeVertex
	case *gremlingo.Edge:
		return normalize.ShapeEdge
	case *gremlingo.Path:
		return normalize.ShapePath
	case gremlingo.Set:
		return normalize.ShapeList
	case []any:
		return normalize.ShapeList
	case *gremlingo.Property, *gremlingo.VertexProperty:
		return normalize.ShapeScalar
	default:
		switch tagOf(x) {
		case kindVertex:
			return normalize.ShapeVertex
		case kindEdge:
			return normalize.ShapeEdge
		case kindPath:
			return normalize.ShapePath
		}
		if _, ok := stringMap(x); ok {
			return normalize.ShapeMap
		}
	}
	return normalize.ShapeScalar
}

func (decoder) Vertex(v any) (model.Vertex, error) {
	if x, ok := v.(*gremlingo.Vertex); ok {
		if x == nil || x.Id == nil {
			return model.Vertex{}, fmt.Errorf("vertex without id")
		}
		return model.Vertex{UID: fmt.Sprint(x.Id), Label: x.Label, Properties: map[string]any{}}, nil
	}
	return taggedVertex(v)
}

func (decoder) Edge(v any) (model.Edge, error) {
	if x, ok := v.(*gremlingo.Edge); ok {
		if x == nil || x.Id == nil {
			return model.Edge{}, fmt.Errorf("edge without id")
		}
		return model.Edge{
			UID:        fmt.Sprint(x.Id),
			Label:      x.Label,
			SourceUID:  fmt.Sprint(x.OutV.Id),
			TargetUID:  fmt.Sprint(x.InV.Id),
			Properties: map[string]any{},
		}, nil
	}
	return taggedEdge(v)
}

func (decoder) Children(v any) ([]any, error) {
	switch x := v.(type) {
	case *gremlingo.Path:
		return x.Objects, nil
	case gremlingo.Set:
		return x.ToSlice(), nil
	case []any:
		return x, nil
	}
	m, ok := stringMap(v)
	if !ok {
		return nil, fmt.Errorf("not a container: %T", v)
	}
	if m[tagKind] == kindPath {
		objects, ok := m[tagObjects].([]any)
		if !ok {
			return nil, fmt.Errorf("tagged path without objects")
		}
		return objects, nil
	}
	return normalize.MapValues(m), nil
}

// Scalar normalizes driver scalars to the generic value model. Values outside
// it are rendered as text.
func (decoder) Scalar(v any) any {
	switch x := v.(type) {
	case *gremlingo.Property:
		v = x.Value
	case *gremlingo.VertexProperty:
		v = x.Value
	}
	n, err := coerce.Normalize(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return n
}
