// Package normalize turns backend-native query results into the canonical
// GraphQueryResult. One recursive walk covers every backend; the backend
// supplies a Decoder that classifies and converts its own value types.
package normalize

import (
	"fmt"
	"log/slog"

	"github.com/rohankatakam/graphbridge/internal/graph/identity"
	"github.com/rohankatakam/graphbridge/internal/model"
)

// Shape is the closed set of value shapes the walk distinguishes
type Shape int

const (
	ShapeScalar Shape = iota
	ShapeVertex
	ShapeEdge
	ShapePath
	ShapeList
	ShapeMap
)

func (s Shape) String() string {
	switch s {
	case ShapeVertex:
		return "vertex"
	case ShapeEdge:
		return "edge"
	case ShapePath:
		return "path"
	case ShapeList:
		return "list"
	case ShapeMap:
		return "map"
	}
	return "scalar"
}

// Decoder is implemented per backend.
//
// Children returns, in encounter order, the constituents of a path (vertices
// and edges interleaved), the items of a list, or the values of a map. Map
// keys are never returned.
type Decoder interface {
	Shape(v any) Shape
	Vertex(v any) (model.Vertex, error)
	Edge(v any) (model.Edge, error)
	Children(v any) ([]any, error)
	Scalar(v any) any
}

// maxDepth bounds recursion on pathological or cyclic results
const maxDepth = 64

// Normalizer walks raw results with one Decoder
type Normalizer struct {
	dec    Decoder
	logger *slog.Logger
}

// New creates a normalizer for one backend's values
func New(dec Decoder, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default().With("component", "normalizer")
	}
	return &Normalizer{dec: dec, logger: logger}
}

type walk struct {
	dec         Decoder
	result      *model.GraphQueryResult
	vertexIndex map[string]struct{}
	edgeIndex   map[string]struct{}
	vertexHoles int
	edgeHoles   int
}

// Normalize walks raw and returns the deduplicated result. Status is SUCCESS;
// the caller fills in execution time. Elements that fail conversion are
// replaced by placeholders and listed in Warnings.
func (n *Normalizer) Normalize(raw any) *model.GraphQueryResult {
	w := &walk{
		dec: n.dec,
		result: &model.GraphQueryResult{
			Vertices: []model.Vertex{},
			Edges:    []model.Edge{},
		},
		vertexIndex: make(map[string]struct{}),
		edgeIndex:   make(map[string]struct{}),
	}
	w.visit(raw, 0)

	stats := &w.result.Statistics
	stats.ResultRows = len(w.result.Vertices) + len(w.result.Edges)
	stats.PartialFailures = w.vertexHoles + w.edgeHoles
	stats.Status = model.StatusSuccess
	if stats.PartialFailures > 0 {
		n.logger.Warn("partial extraction",
			"placeholders", stats.PartialFailures,
			"result_rows", stats.ResultRows)
	}
	return w.result
}

func (w *walk) visit(v any, depth int) {
	if depth > maxDepth {
		w.warn("nesting deeper than %d levels ignored", maxDepth)
		return
	}

	shape, err := w.shapeOf(v)
	if err != nil {
		w.warn("unclassifiable value %T: %v", v, err)
		return
	}

	switch shape {
	case ShapeVertex:
		w.result.Statistics.ElementsSeen++
		vx, err := w.vertex(v)
		if err != nil {
			w.vertexHoles++
			w.warn("vertex conversion failed: %v", err)
			w.result.Vertices = append(w.result.Vertices, model.Vertex{
				UID:         identity.PlaceholderUID(identity.PlaceholderVertexUID, w.vertexHoles),
				Label:       identity.PlaceholderVertexLabel,
				Properties:  map[string]any{},
				Placeholder: true,
			})
			return
		}
		if _, dup := w.vertexIndex[vx.UID]; dup {
			return
		}
		w.vertexIndex[vx.UID] = struct{}{}
		w.result.Vertices = append(w.result.Vertices, vx)

	case ShapeEdge:
		w.result.Statistics.ElementsSeen++
		ex, err := w.edge(v)
		if err != nil {
			w.edgeHoles++
			w.warn("edge conversion failed: %v", err)
			w.result.Edges = append(w.result.Edges, model.Edge{
				UID:         identity.PlaceholderUID(identity.PlaceholderEdgeUID, w.edgeHoles),
				Label:       identity.PlaceholderEdgeLabel,
				SourceUID:   identity.PlaceholderVertexUID,
				TargetUID:   identity.PlaceholderVertexUID,
				Properties:  map[string]any{},
				Placeholder: true,
			})
			return
		}
		if _, dup := w.edgeIndex[ex.UID]; dup {
			return
		}
		w.edgeIndex[ex.UID] = struct{}{}
		w.result.Edges = append(w.result.Edges, ex)

	case ShapePath, ShapeList, ShapeMap:
		children, err := w.children(v)
		if err != nil {
			w.warn("cannot expand %s: %v", shape, err)
			return
		}
		for _, c := range children {
			w.visit(c, depth+1)
		}

	default:
		w.result.Statistics.ScalarCount++
		w.result.Scalars = append(w.result.Scalars, w.dec.Scalar(v))
	}
}

func (w *walk) warn(format string, args ...any) {
	w.result.Warnings = append(w.result.Warnings, fmt.Sprintf(format, args...))
}

// The decoder calls below convert panics into errors so a single malformed
// element degrades to a placeholder.

func (w *walk) shapeOf(v any) (s Shape, err error) {
	defer recoverInto(&err)
	return w.dec.Shape(v), nil
}

func (w *walk) vertex(v any) (vx model.Vertex, err error) {
	defer recoverInto(&err)
	vx, err = w.dec.Vertex(v)
	if err == nil && vx.UID == "" {
		err = fmt.Errorf("vertex %q has no uid", vx.Label)
	}
	return vx, err
}

func (w *walk) edge(v any) (ex model.Edge, err error) {
	defer recoverInto(&err)
	ex, err = w.dec.Edge(v)
	if err == nil && ex.UID == "" {
		err = fmt.Errorf("edge %q has no uid", ex.Label)
	}
	return ex, err
}

func (w *walk) children(v any) (c []any, err error) {
	defer recoverInto(&err)
	return w.dec.Children(v)
}

func recoverInto(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("panic during conversion: %v", r)
	}
}
