package nebulagraph

import (
	"fmt"
	"sort"
	"strings"
	"time"

	nebula "github.com/vesoft-inc/nebula-go/v3"

	"github.com/rohankatakam/graphbridge/internal/graph/coerce"
	"github.com/rohankatakam/graphbridge/internal/graph/identity"
	"github.com/rohankatakam/graphbridge/internal/graph/normalize"
	"github.com/rohankatakam/graphbridge/internal/model"
)

// The client's value wrappers are only built by the client itself, so result
// sets are first copied into these plain values and decoded from there.

// vertexValue is a vertex read from a result set
type vertexValue struct {
	VID   string
	Tags  []string
	Props map[string]map[string]any
}

// edgeValue is an edge read from a result set
type edgeValue struct {
	Src   string
	Dst   string
	Name  string
	Rank  int64
	Props map[string]any
}

// pathValue keeps the nodes and relationships of a path in traversal order
type pathValue struct {
	Elements []any
}

// brokenValue stands for an element the client could not unwrap
type brokenValue struct {
	Shape normalize.Shape
	Err   error
}

// rowsOf copies up to limit rows of a result set. truncated reports rows
// left behind.
func rowsOf(rs *nebula.ResultSet, limit int) (rows []any, truncated bool) {
	n := rs.GetRowSize()
	if n > limit {
		n, truncated = limit, true
	}
	cols := rs.GetColSize()
	rows = make([]any, 0, n)
	for i := 0; i < n; i++ {
		rec, err := rs.GetRowValuesByIndex(i)
		if err != nil {
			rows = append(rows, brokenValue{Shape: normalize.ShapeScalar, Err: err})
			continue
		}
		row := make([]any, 0, cols)
		for j := 0; j < cols; j++ {
			vw, err := rec.GetValueByIndex(j)
			if err != nil {
				row = append(row, brokenValue{Shape: normalize.ShapeScalar, Err: err})
				continue
			}
			row = append(row, fromWrapper(vw, 0))
		}
		rows = append(rows, row)
	}
	return rows, truncated
}

// maxValueDepth bounds the copy of nested lists and maps
const maxValueDepth = 64

// fromWrapper copies a client value into plain Go values
func fromWrapper(vw *nebula.ValueWrapper, depth int) any {
	if vw == nil || vw.IsNull() || vw.IsEmpty() {
		return nil
	}
	if depth > maxValueDepth {
		return brokenValue{Shape: normalize.ShapeScalar, Err: fmt.Errorf("value nested deeper than %d levels", maxValueDepth)}
	}
	switch {
	case vw.IsVertex():
		node, err := vw.AsNode()
		if err != nil {
			return brokenValue{Shape: normalize.ShapeVertex, Err: err}
		}
		v, err := vertexOf(node)
		if err != nil {
			return brokenValue{Shape: normalize.ShapeVertex, Err: err}
		}
		return v
	case vw.IsEdge():
		rel, err := vw.AsRelationship()
		if err != nil {
			return brokenValue{Shape: normalize.ShapeEdge, Err: err}
		}
		e, err := edgeOf(rel)
		if err != nil {
			return brokenValue{Shape: normalize.ShapeEdge, Err: err}
		}
		return e
	case vw.IsPath():
		p, err := vw.AsPath()
		if err != nil {
			return brokenValue{Shape: normalize.ShapePath, Err: err}
		}
		return pathOf(p)
	case vw.IsList():
		list, err := vw.AsList()
		if err != nil {
			return brokenValue{Shape: normalize.ShapeList, Err: err}
		}
		return listOf(list, depth)
	case vw.IsSet():
		set, err := vw.AsDedupList()
		if err != nil {
			return brokenValue{Shape: normalize.ShapeList, Err: err}
		}
		return listOf(set, depth)
	case vw.IsMap():
		m, err := vw.AsMap()
		if err != nil {
			return brokenValue{Shape: normalize.ShapeMap, Err: err}
		}
		out := make(map[string]any, len(m))
		for k, e := range m {
			out[k] = fromWrapper(&e, depth+1)
		}
		return out
	case vw.IsBool():
		b, _ := vw.AsBool()
		return b
	case vw.IsInt():
		n, _ := vw.AsInt()
		return n
	case vw.IsFloat():
		f, _ := vw.AsFloat()
		return f
	case vw.IsString():
		s, _ := vw.AsString()
		return s
	case vw.IsDate():
		s := unquote(vw.String())
		if t, err := time.Parse("2006-01-02", s); err == nil {
			return t
		}
		return s
	case vw.IsDateTime():
		return parseDateTime(unquote(vw.String()))
	}
	// time, duration and geography keep their nebula rendering
	return unquote(vw.String())
}

// parseDateTime reads nebula's datetime rendering, which is UTC with up to
// nine fractional digits and no zone, into a time.Time. Unrecognized text is
// returned as is.
func parseDateTime(s string) any {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return s
}

func listOf(list []nebula.ValueWrapper, depth int) []any {
	out := make([]any, len(list))
	for i := range list {
		out[i] = fromWrapper(&list[i], depth+1)
	}
	return out
}

func unquote(s string) string {
	return strings.Trim(s, `"`)
}

func vidOf(id nebula.ValueWrapper) (string, error) {
	if id.IsString() {
		return id.AsString()
	}
	if id.IsInt() {
		n, err := id.AsInt()
		return fmt.Sprint(n), err
	}
	return "", fmt.Errorf("unsupported vid type %s", id.GetType())
}

func propsOf(m map[string]*nebula.ValueWrapper) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = fromWrapper(v, 1)
	}
	return out
}

func vertexOf(node *nebula.Node) (vertexValue, error) {
	vid, err := vidOf(node.GetID())
	if err != nil {
		return vertexValue{}, err
	}
	v := vertexValue{VID: vid, Tags: node.GetTags(), Props: make(map[string]map[string]any)}
	for _, tag := range v.Tags {
		props, err := node.Properties(tag)
		if err != nil {
			return vertexValue{}, fmt.Errorf("tag %s of %s: %w", tag, vid, err)
		}
		v.Props[tag] = propsOf(props)
	}
	return v, nil
}

func edgeOf(rel *nebula.Relationship) (edgeValue, error) {
	src, err := vidOf(rel.GetSrcVertexID())
	if err != nil {
		return edgeValue{}, err
	}
	dst, err := vidOf(rel.GetDstVertexID())
	if err != nil {
		return edgeValue{}, err
	}
	return edgeValue{
		Src:   src,
		Dst:   dst,
		Name:  rel.GetEdgeName(),
		Rank:  rel.GetRanking(),
		Props: propsOf(rel.Properties()),
	}, nil
}

func pathOf(p *nebula.PathWrapper) pathValue {
	nodes := p.GetNodes()
	rels := p.GetRelationships()
	out := pathValue{Elements: make([]any, 0, len(nodes)+len(rels))}
	for i, n := range nodes {
		if v, err := vertexOf(n); err == nil {
			out.Elements = append(out.Elements, v)
		} else {
			out.Elements = append(out.Elements, brokenValue{Shape: normalize.ShapeVertex, Err: err})
		}
		if i < len(rels) {
			if e, err := edgeOf(rels[i]); err == nil {
				out.Elements = append(out.Elements, e)
			} else {
				out.Elements = append(out.Elements, brokenValue{Shape: normalize.ShapeEdge, Err: err})
			}
		}
	}
	return out
}

// toVertex merges the properties of every tag. The label is the first tag in
// lexical order.
func (v vertexValue) toVertex() model.Vertex {
	tags := append([]string(nil), v.Tags...)
	sort.Strings(tags)
	merged := make(map[string]any)
	for _, tag := range tags {
		coerce.Merge(merged, v.Props[tag])
	}
	props, _, created, updated := identity.SplitReserved(merged)
	label := ""
	if len(tags) > 0 {
		label = tags[0]
	}
	return model.Vertex{
		UID:        v.VID,
		Label:      label,
		Properties: dropNulls(props),
		CreatedAt:  created,
		UpdatedAt:  updated,
	}
}

func (e edgeValue) key() identity.EdgeKey {
	return identity.EdgeKey{Source: e.Src, Label: e.Name, Target: e.Dst, Rank: e.Rank}
}

func (e edgeValue) toEdge() model.Edge {
	props, _, created, updated := identity.SplitReserved(e.Props)
	return model.Edge{
		UID:        identity.CompositeEdgeUID(e.key()),
		Label:      e.Name,
		SourceUID:  e.Src,
		TargetUID:  e.Dst,
		Properties: dropNulls(props),
		CreatedAt:  created,
		UpdatedAt:  updated,
	}
}

// dropNulls removes columns without a value; a tag reports every column of
// its schema whether or not the vertex set it.
func dropNulls(props map[string]any) map[string]any {
	for k, v := range props {
		if v == nil {
			delete(props, k)
		}
	}
	return props
}

// decoder classifies copied values for the normalizer
type decoder struct{}

var _ normalize.Decoder = decoder{}

func (decoder) Shape(v any) normalize.Shape {
	switch x := v.(type) {
	case vertexValue:
		return normalize.ShapeVertex
	case edgeValue:
		return normalize.ShapeEdge
	case pathValue:
		return normalize.ShapePath
	case brokenValue:
		return x.Shape
	case []any:
		return normalize.ShapeList
	case map[string]any:
		return normalize.ShapeMap
	}
	return normalize.ShapeScalar
}

func (decoder) Vertex(v any) (model.Vertex, error) {
	switch x := v.(type) {
	case vertexValue:
		return x.toVertex(), nil
	case brokenValue:
		return model.Vertex{}, x.Err
	}
	return model.Vertex{}, fmt.Errorf("not a vertex: %T", v)
}

func (decoder) Edge(v any) (model.Edge, error) {
	switch x := v.(type) {
	case edgeValue:
		return x.toEdge(), nil
	case brokenValue:
		return model.Edge{}, x.Err
	}
	return model.Edge{}, fmt.Errorf("not an edge: %T", v)
}

func (decoder) Children(v any) ([]any, error) {
	switch x := v.(type) {
	case pathValue:
		return x.Elements, nil
	case []any:
		return x, nil
	case map[string]any:
		return normalize.MapValues(x), nil
	case brokenValue:
		return nil, x.Err
	}
	return nil, fmt.Errorf("not a container: %T", v)
}

func (decoder) Scalar(v any) any {
	if b, ok := v.(brokenValue); ok {
		return fmt.Sprintf("<unreadable: %v>", b.Err)
	}
	return v
}
