package janusgraph

import (
	"context"
	"strings"
	"time"

	"github.com/rohankatakam/graphbridge/internal/errors"
	"github.com/rohankatakam/graphbridge/internal/graph"
	"github.com/rohankatakam/graphbridge/internal/graph/coerce"
	"github.com/rohankatakam/graphbridge/internal/graph/identity"
	"github.com/rohankatakam/graphbridge/internal/model"
)

// CreateVertex adds a vertex; its janus id becomes the uid
func (a *Adapter) CreateVertex(ctx context.Context, graphName, label string, props map[string]any) (*model.Vertex, error) {
	if err := graph.ValidateIdentifier("label", label); err != nil {
		return nil, err
	}
	values, err := writeProps(props, true)
	if err != nil {
		return nil, err
	}

	return graph.Observed(ctx, a.opts, &a.mu, graph.OpWrite, "CreateVertex", func(ctx context.Context) (*model.Vertex, error) {
		rows, err := a.evalLocked(graph.OpWrite, graphName, writeBody(createVertexScript),
			map[string]any{bindLabel: label, bindProps: values})
		if err != nil {
			return nil, classify(err, "failed to create %s vertex", label)
		}
		v, err := taggedVertex(first(rows))
		if err != nil {
			return nil, errors.InternalErrorf("unexpected create result: %v", err)
		}
		return &v, nil
	})
}

// GetVertex implements graph.GraphAdapter
func (a *Adapter) GetVertex(ctx context.Context, graphName, uid string) (*model.Vertex, error) {
	return graph.Observed(ctx, a.opts, &a.mu, graph.OpRead, "GetVertex", func(ctx context.Context) (*model.Vertex, error) {
		rows, err := a.evalLocked(graph.OpRead, graphName, readBody(getVertexScript), map[string]any{bindID: uid})
		if err != nil {
			return nil, lookupError(err, errors.VertexNotFound(uid), "failed to read vertex %s", uid)
		}
		return vertexOrNotFound(rows, uid)
	})
}

// UpdateVertex merges props into the vertex
func (a *Adapter) UpdateVertex(ctx context.Context, graphName, uid string, props map[string]any) (*model.Vertex, error) {
	values, err := writeProps(props, false)
	if err != nil {
		return nil, err
	}

	return graph.Observed(ctx, a.opts, &a.mu, graph.OpWrite, "UpdateVertex", func(ctx context.Context) (*model.Vertex, error) {
		rows, err := a.evalLocked(graph.OpWrite, graphName, writeBody(updateVertexScript),
			map[string]any{bindID: uid, bindProps: values})
		if err != nil {
			return nil, lookupError(err, errors.VertexNotFound(uid), "failed to update vertex %s", uid)
		}
		return vertexOrNotFound(rows, uid)
	})
}

// DeleteVertex removes the vertex; janus drops its edges with it
func (a *Adapter) DeleteVertex(ctx context.Context, graphName, uid string) error {
	_, err := graph.Observed(ctx, a.opts, &a.mu, graph.OpWrite, "DeleteVertex", func(ctx context.Context) (struct{}, error) {
		rows, err := a.evalLocked(graph.OpWrite, graphName, writeBody(deleteVertexScript), map[string]any{bindID: uid})
		if err != nil {
			return struct{}{}, lookupError(err, errors.VertexNotFound(uid), "failed to delete vertex %s", uid)
		}
		if removed, _ := first(rows).(bool); !removed {
			return struct{}{}, errors.VertexNotFound(uid)
		}
		return struct{}{}, nil
	})
	return err
}

// QueryVertices lists vertices, optionally of one label, up to the row cap
func (a *Adapter) QueryVertices(ctx context.Context, graphName, label string) ([]model.Vertex, error) {
	body := queryVerticesScript
	bindings := map[string]any{bindCap: a.opts.RowCap}
	if label != "" {
		if err := graph.ValidateIdentifier("label", label); err != nil {
			return nil, err
		}
		body = queryVerticesByLabel
		bindings[bindLabel] = label
	}

	return graph.Observed(ctx, a.opts, &a.mu, graph.OpRead, "QueryVertices", func(ctx context.Context) ([]model.Vertex, error) {
		rows, err := a.evalLocked(graph.OpRead, graphName, readBody(body), bindings)
		if err != nil {
			return nil, classify(err, "failed to query vertices")
		}
		vertices := make([]model.Vertex, 0, len(rows))
		for _, r := range flattenRows(rows) {
			v, err := taggedVertex(r)
			if err != nil {
				a.opts.Logger.Warn("skipping undecodable vertex", "error", err)
				continue
			}
			vertices = append(vertices, v)
		}
		return vertices, nil
	})
}

// CreateEdge checks both endpoints and adds the edge in one transaction
func (a *Adapter) CreateEdge(ctx context.Context, graphName, label, sourceUID, targetUID string, props map[string]any) (*model.Edge, error) {
	if err := graph.ValidateIdentifier("label", label); err != nil {
		return nil, err
	}
	values, err := writeProps(props, true)
	if err != nil {
		return nil, err
	}

	return graph.Observed(ctx, a.opts, &a.mu, graph.OpWrite, "CreateEdge", func(ctx context.Context) (*model.Edge, error) {
		rows, err := a.evalLocked(graph.OpWrite, graphName, writeBody(createEdgeScript), map[string]any{
			bindLabel:  label,
			bindSource: sourceUID,
			bindTarget: targetUID,
			bindProps:  values,
		})
		if err != nil {
			return nil, classify(err, "failed to create %s edge", label)
		}
		out := first(rows)
		if m, ok := stringMap(out); ok {
			switch m[tagMissing] {
			case "source":
				return nil, errors.VertexNotFound(sourceUID).WithContext("endpoint", "source")
			case "target":
				return nil, errors.VertexNotFound(targetUID).WithContext("endpoint", "target")
			}
		}
		e, err := taggedEdge(out)
		if err != nil {
			return nil, errors.InternalErrorf("unexpected create result: %v", err)
		}
		return &e, nil
	})
}

// GetEdge implements graph.GraphAdapter
func (a *Adapter) GetEdge(ctx context.Context, graphName, uid string) (*model.Edge, error) {
	return graph.Observed(ctx, a.opts, &a.mu, graph.OpRead, "GetEdge", func(ctx context.Context) (*model.Edge, error) {
		rows, err := a.evalLocked(graph.OpRead, graphName, readBody(getEdgeScript), map[string]any{bindID: uid})
		if err != nil {
			return nil, lookupError(err, errors.EdgeNotFound(uid), "failed to read edge %s", uid)
		}
		return edgeOrNotFound(rows, uid)
	})
}

// UpdateEdge merges props into the edge
func (a *Adapter) UpdateEdge(ctx context.Context, graphName, uid string, props map[string]any) (*model.Edge, error) {
	values, err := writeProps(props, false)
	if err != nil {
		return nil, err
	}

	return graph.Observed(ctx, a.opts, &a.mu, graph.OpWrite, "UpdateEdge", func(ctx context.Context) (*model.Edge, error) {
		rows, err := a.evalLocked(graph.OpWrite, graphName, writeBody(updateEdgeScript),
			map[string]any{bindID: uid, bindProps: values})
		if err != nil {
			return nil, lookupError(err, errors.EdgeNotFound(uid), "failed to update edge %s", uid)
		}
		return edgeOrNotFound(rows, uid)
	})
}

// DeleteEdge implements graph.GraphAdapter
func (a *Adapter) DeleteEdge(ctx context.Context, graphName, uid string) error {
	_, err := graph.Observed(ctx, a.opts, &a.mu, graph.OpWrite, "DeleteEdge", func(ctx context.Context) (struct{}, error) {
		rows, err := a.evalLocked(graph.OpWrite, graphName, writeBody(deleteEdgeScript), map[string]any{bindID: uid})
		if err != nil {
			return struct{}{}, lookupError(err, errors.EdgeNotFound(uid), "failed to delete edge %s", uid)
		}
		if removed, _ := first(rows).(bool); !removed {
			return struct{}{}, errors.EdgeNotFound(uid)
		}
		return struct{}{}, nil
	})
	return err
}

// QueryEdges lists edges, optionally of one label, up to the row cap
func (a *Adapter) QueryEdges(ctx context.Context, graphName, label string) ([]model.Edge, error) {
	body := queryEdgesScript
	bindings := map[string]any{bindCap: a.opts.RowCap}
	if label != "" {
		if err := graph.ValidateIdentifier("label", label); err != nil {
			return nil, err
		}
		body = queryEdgesByLabel
		bindings[bindLabel] = label
	}

	return graph.Observed(ctx, a.opts, &a.mu, graph.OpRead, "QueryEdges", func(ctx context.Context) ([]model.Edge, error) {
		rows, err := a.evalLocked(graph.OpRead, graphName, readBody(body), bindings)
		if err != nil {
			return nil, classify(err, "failed to query edges")
		}
		edges := make([]model.Edge, 0, len(rows))
		for _, r := range flattenRows(rows) {
			e, err := taggedEdge(r)
			if err != nil {
				a.opts.Logger.Warn("skipping undecodable edge", "error", err)
				continue
			}
			edges = append(edges, e)
		}
		return edges, nil
	})
}

// writeProps validates props and adds the timestamps. Lists and maps are
// stored as JSON text.
func writeProps(props map[string]any, created bool) (map[string]any, error) {
	if err := graph.ValidateProperties(props); err != nil {
		return nil, err
	}
	for k := range props {
		if identity.IsReserved(k) {
			return nil, errors.ValidationErrorf("property %q is reserved", k)
		}
	}
	values, err := coerce.NormalizeMap(props)
	if err != nil {
		return nil, errors.ValidationErrorf("properties: %v", err)
	}
	values, err = coerce.FlattenMap(values)
	if err != nil {
		return nil, errors.ValidationErrorf("properties: %v", err)
	}
	now := coerce.Millis(time.Now())
	if created {
		values[identity.CreatedAtProperty] = now
	}
	values[identity.UpdatedAtProperty] = now
	return values, nil
}

// flattenRows unrolls a script result that arrived as one list row
func flattenRows(rows []any) []any {
	if len(rows) == 1 {
		if list, ok := rows[0].([]any); ok {
			return list
		}
	}
	return rows
}

func vertexOrNotFound(rows []any, uid string) (*model.Vertex, error) {
	if first(rows) == nil {
		return nil, errors.VertexNotFound(uid)
	}
	v, err := taggedVertex(rows[0])
	if err != nil {
		return nil, errors.InternalErrorf("unexpected vertex result: %v", err)
	}
	return &v, nil
}

func edgeOrNotFound(rows []any, uid string) (*model.Edge, error) {
	if first(rows) == nil {
		return nil, errors.EdgeNotFound(uid)
	}
	e, err := taggedEdge(rows[0])
	if err != nil {
		return nil, errors.InternalErrorf("unexpected edge result: %v", err)
	}
	return &e, nil
}

// lookupError reports an id janus cannot parse as a missing element
func lookupError(err error, notFound *errors.Error, format, uid string) error {
	if e, ok := errors.AsError(err); ok && e.Type == errors.ErrorTypeQueryExecution && invalidID(err) {
		return notFound.WithContext("reason", err.Error())
	}
	return classify(err, format, uid)
}

func invalidID(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "relationidentifier") ||
		(strings.Contains(msg, "invalid") && strings.Contains(msg, " id"))
}
