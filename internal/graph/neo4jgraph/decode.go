package neo4jgraph

import (
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/rohankatakam/graphbridge/internal/graph/coerce"
	"github.com/rohankatakam/graphbridge/internal/graph/identity"
	"github.com/rohankatakam/graphbridge/internal/graph/normalize"
	"github.com/rohankatakam/graphbridge/internal/model"
)

// toNeo4jProps converts generic properties into values the bolt driver can
// store on a node or relationship. Maps, and lists holding anything but
// scalars, have no property representation and are stored as JSON text.
func toNeo4jProps(props map[string]any) (map[string]any, error) {
	norm, err := coerce.NormalizeMap(props)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(norm))
	for k, v := range norm {
		if list, ok := v.([]any); ok && scalarList(list) {
			out[k] = list
			continue
		}
		fv, err := coerce.Flatten(v)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", k, err)
		}
		out[k] = fv
	}
	return out, nil
}

func scalarList(list []any) bool {
	for _, v := range list {
		switch coerce.KindOf(v) {
		case coerce.KindList, coerce.KindMap, coerce.KindNull:
			return false
		}
	}
	return true
}

// fromNeo4jValue converts a driver value into the generic value model
func fromNeo4jValue(v any) any {
	switch x := v.(type) {
	case dbtype.Date:
		return x.Time()
	case dbtype.LocalDateTime:
		return x.Time()
	case dbtype.LocalTime:
		return x.Time().Format("15:04:05.999999999")
	case dbtype.Time:
		return x.Time().Format("15:04:05.999999999Z07:00")
	case dbtype.Duration:
		return x.String()
	case dbtype.Point2D:
		return map[string]any{"x": x.X, "y": x.Y, "srid": int64(x.SpatialRefId)}
	case dbtype.Point3D:
		return map[string]any{"x": x.X, "y": x.Y, "z": x.Z, "srid": int64(x.SpatialRefId)}
	case time.Time:
		return x
	case []byte:
		return string(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = fromNeo4jValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = fromNeo4jValue(e)
		}
		return out
	}
	return v
}

func fromNeo4jProps(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = fromNeo4jValue(v)
	}
	return out
}

func nodeToVertex(n dbtype.Node) model.Vertex {
	props, uid, created, updated := identity.SplitReserved(fromNeo4jProps(n.Props))
	if uid == "" {
		uid = n.ElementId
	}
	label := ""
	if len(n.Labels) > 0 {
		label = n.Labels[0]
	}
	return model.Vertex{
		UID:        uid,
		Label:      label,
		Properties: props,
		CreatedAt:  created,
		UpdatedAt:  updated,
	}
}

// relToEdge converts a relationship. Endpoint uids come from the caller when
// known; otherwise the endpoint element ids are used.
func relToEdge(r dbtype.Relationship, src, dst string) model.Edge {
	props, uid, created, updated := identity.SplitReserved(fromNeo4jProps(r.Props))
	if uid == "" {
		uid = r.ElementId
	}
	if src == "" {
		src = r.StartElementId
	}
	if dst == "" {
		dst = r.EndElementId
	}
	return model.Edge{
		UID:        uid,
		Label:      r.Type,
		SourceUID:  src,
		TargetUID:  dst,
		Properties: props,
		CreatedAt:  created,
		UpdatedAt:  updated,
	}
}

// decoder classifies bolt values for the normalizer. endpoints maps node
// element ids to uids so relationship endpoints come out as uids.
type decoder struct {
	endpoints map[string]string
}

var _ normalize.Decoder = decoder{}

func (d decoder) Shape(v any) normalize.Shape {
	switch v.(type) {
	case dbtype.Node, *dbtype.Node:
		return normalize.ShapeVertex
	case dbtype.Relationship, *dbtype.Relationship:
		return normalize.ShapeEdge
	case dbtype.Path, *dbtype.Path:
		return normalize.ShapePath
	case *neo4j.Record, neo4j.Record:
		return normalize.ShapeMap
	case []any:
		return normalize.ShapeList
	case map[string]any:
		return normalize.ShapeMap
	}
	return normalize.ShapeScalar
}

func (d decoder) Vertex(v any) (model.Vertex, error) {
	switch n := v.(type) {
	case dbtype.Node:
		return nodeToVertex(n), nil
	case *dbtype.Node:
		if n == nil {
			return model.Vertex{}, fmt.Errorf("nil node")
		}
		return nodeToVertex(*n), nil
	}
	return model.Vertex{}, fmt.Errorf("not a node: %T", v)
}

func (d decoder) Edge(v any) (model.Edge, error) {
	var r dbtype.Relationship
	switch x := v.(type) {
	case dbtype.Relationship:
		r = x
	case *dbtype.Relationship:
		if x == nil {
			return model.Edge{}, fmt.Errorf("nil relationship")
		}
		r = *x
	default:
		return model.Edge{}, fmt.Errorf("not a relationship: %T", v)
	}
	return relToEdge(r, d.endpoints[r.StartElementId], d.endpoints[r.EndElementId]), nil
}

func (d decoder) Children(v any) ([]any, error) {
	switch x := v.(type) {
	case dbtype.Path:
		return pathElements(x), nil
	case *dbtype.Path:
		return pathElements(*x), nil
	case *neo4j.Record:
		return x.Values, nil
	case neo4j.Record:
		return x.Values, nil
	case []any:
		return x, nil
	case map[string]any:
		return normalize.MapValues(x), nil
	}
	return nil, fmt.Errorf("not a container: %T", v)
}

func (d decoder) Scalar(v any) any {
	return fromNeo4jValue(v)
}

// pathElements interleaves nodes and relationships in traversal order
func pathElements(p dbtype.Path) []any {
	out := make([]any, 0, len(p.Nodes)+len(p.Relationships))
	for i, n := range p.Nodes {
		out = append(out, n)
		if i < len(p.Relationships) {
			out = append(out, p.Relationships[i])
		}
	}
	return out
}

// endpointIndex walks raw values and maps every node element id it sees to
// the node's uid. It also returns relationship endpoint element ids that no
// node in the result accounts for.
func endpointIndex(values []any) (known map[string]string, missing []string) {
	known = make(map[string]string)
	wanted := make(map[string]struct{})

	var walk func(v any, depth int)
	walk = func(v any, depth int) {
		if depth > 64 {
			return
		}
		switch x := v.(type) {
		case dbtype.Node:
			known[x.ElementId] = nodeToVertex(x).UID
		case dbtype.Relationship:
			wanted[x.StartElementId] = struct{}{}
			wanted[x.EndElementId] = struct{}{}
		case dbtype.Path:
			for _, e := range pathElements(x) {
				walk(e, depth+1)
			}
		case *neo4j.Record:
			for _, e := range x.Values {
				walk(e, depth+1)
			}
		case []any:
			for _, e := range x {
				walk(e, depth+1)
			}
		case map[string]any:
			for _, e := range x {
				walk(e, depth+1)
			}
		}
	}
	for _, v := range values {
		walk(v, 0)
	}

	for id := range wanted {
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}
	return known, missing
}
