package nebulagraph

import (
	"context"
	"fmt"
	"time"

	"github.com/rohankatakam/graphbridge/internal/errors"
	"github.com/rohankatakam/graphbridge/internal/graph"
	"github.com/rohankatakam/graphbridge/internal/graph/coerce"
	"github.com/rohankatakam/graphbridge/internal/graph/identity"
	"github.com/rohankatakam/graphbridge/internal/model"
)

// CreateVertex inserts a vertex whose vid is a minted uid. Missing tag
// columns are added first; the returned vertex is read back because nebula
// converts values to the column types.
func (a *Adapter) CreateVertex(ctx context.Context, graphName, label string, props map[string]any) (*model.Vertex, error) {
	if err := graph.ValidateIdentifier("tag", label); err != nil {
		return nil, err
	}
	values, err := userProps(props)
	if err != nil {
		return nil, err
	}

	return graph.Observed(ctx, a.opts, &a.mu, graph.OpWrite, "CreateVertex", func(ctx context.Context) (*model.Vertex, error) {
		space, err := a.useLocked(ctx, graphName)
		if err != nil {
			return nil, err
		}
		cols, err := a.prepareColumnsLocked(ctx, space, kindTag, label, values)
		if err != nil {
			return nil, err
		}
		as, err := assignments(values, cols, coerce.Millis(time.Now()), true)
		if err != nil {
			return nil, errors.ValidationErrorf("vertex properties: %v", err)
		}

		uid := identity.NewUID()
		if err := a.writeLocked(ctx, insertVertexStmt(label, uid, as)); err != nil {
			return nil, classify(err, "failed to create %s vertex", label)
		}
		v, err := a.fetchVertexLocked(uid)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, errors.InternalErrorf("vertex %s not readable after insert", uid)
		}
		return v, nil
	})
}

// GetVertex implements graph.GraphAdapter
func (a *Adapter) GetVertex(ctx context.Context, graphName, uid string) (*model.Vertex, error) {
	return graph.Observed(ctx, a.opts, &a.mu, graph.OpRead, "GetVertex", func(ctx context.Context) (*model.Vertex, error) {
		if _, err := a.useLocked(ctx, graphName); err != nil {
			return nil, err
		}
		return a.mustFetchVertexLocked(uid)
	})
}

// UpdateVertex merges props into the vertex's tag
func (a *Adapter) UpdateVertex(ctx context.Context, graphName, uid string, props map[string]any) (*model.Vertex, error) {
	values, err := userProps(props)
	if err != nil {
		return nil, err
	}

	return graph.Observed(ctx, a.opts, &a.mu, graph.OpWrite, "UpdateVertex", func(ctx context.Context) (*model.Vertex, error) {
		space, err := a.useLocked(ctx, graphName)
		if err != nil {
			return nil, err
		}
		current, err := a.mustFetchVertexLocked(uid)
		if err != nil {
			return nil, err
		}
		if current.Label == "" {
			return nil, errors.Unsupported("vertex %s has no tag to update", uid)
		}
		cols, err := a.prepareColumnsLocked(ctx, space, kindTag, current.Label, values)
		if err != nil {
			return nil, err
		}
		as, err := assignments(values, cols, coerce.Millis(time.Now()), false)
		if err != nil {
			return nil, errors.ValidationErrorf("vertex properties: %v", err)
		}
		if err := a.writeLocked(ctx, updateVertexStmt(current.Label, uid, as)); err != nil {
			return nil, classify(err, "failed to update vertex %s", uid)
		}
		return a.mustFetchVertexLocked(uid)
	})
}

// DeleteVertex removes the vertex together with its edges
func (a *Adapter) DeleteVertex(ctx context.Context, graphName, uid string) error {
	_, err := graph.Observed(ctx, a.opts, &a.mu, graph.OpWrite, "DeleteVertex", func(ctx context.Context) (struct{}, error) {
		if _, err := a.useLocked(ctx, graphName); err != nil {
			return struct{}{}, err
		}
		if _, err := a.mustFetchVertexLocked(uid); err != nil {
			return struct{}{}, err
		}
		if _, err := a.execLocked(fmt.Sprintf("DELETE VERTEX %s WITH EDGE", stringLiteral(uid))); err != nil {
			return struct{}{}, classify(err, "failed to delete vertex %s", uid)
		}
		return struct{}{}, nil
	})
	return err
}

// QueryVertices lists vertices, optionally of one tag, up to the row cap
func (a *Adapter) QueryVertices(ctx context.Context, graphName, label string) ([]model.Vertex, error) {
	stmt := fmt.Sprintf("MATCH (v) RETURN v LIMIT %d", a.opts.RowCap)
	if label != "" {
		if err := graph.ValidateIdentifier("tag", label); err != nil {
			return nil, err
		}
		stmt = fmt.Sprintf("MATCH (v:%s) RETURN v LIMIT %d", quote(label), a.opts.RowCap)
	}

	return graph.Observed(ctx, a.opts, &a.mu, graph.OpRead, "QueryVertices", func(ctx context.Context) ([]model.Vertex, error) {
		if _, err := a.useLocked(ctx, graphName); err != nil {
			return nil, err
		}
		vertices := []model.Vertex{}
		rs, err := a.execLocked(stmt)
		if a.missingSchema("vertex", label, err) {
			return vertices, nil
		}
		if err != nil {
			return nil, classify(err, "failed to query vertices")
		}
		rows, _ := rowsOf(rs, a.opts.RowCap)
		for _, row := range rows {
			for _, v := range row.([]any) {
				if vv, ok := v.(vertexValue); ok {
					vertices = append(vertices, vv.toVertex())
				}
			}
		}
		return vertices, nil
	})
}

// CreateEdge checks both endpoints and inserts the edge at rank 0. Nebula has
// no multi-statement transactions, so the check and the insert are separate
// statements.
func (a *Adapter) CreateEdge(ctx context.Context, graphName, label, sourceUID, targetUID string, props map[string]any) (*model.Edge, error) {
	if err := graph.ValidateIdentifier("edge type", label); err != nil {
		return nil, err
	}
	values, err := userProps(props)
	if err != nil {
		return nil, err
	}
	key := identity.EdgeKey{Source: sourceUID, Label: label, Target: targetUID}

	return graph.Observed(ctx, a.opts, &a.mu, graph.OpWrite, "CreateEdge", func(ctx context.Context) (*model.Edge, error) {
		space, err := a.useLocked(ctx, graphName)
		if err != nil {
			return nil, err
		}
		found, err := a.existingVerticesLocked(sourceUID, targetUID)
		if err != nil {
			return nil, err
		}
		if !found[sourceUID] {
			return nil, errors.VertexNotFound(sourceUID).WithContext("endpoint", "source")
		}
		if !found[targetUID] {
			return nil, errors.VertexNotFound(targetUID).WithContext("endpoint", "target")
		}

		cols, err := a.prepareColumnsLocked(ctx, space, kindEdge, label, values)
		if err != nil {
			return nil, err
		}
		as, err := assignments(values, cols, coerce.Millis(time.Now()), true)
		if err != nil {
			return nil, errors.ValidationErrorf("edge properties: %v", err)
		}
		if err := a.writeLocked(ctx, insertEdgeStmt(key, as)); err != nil {
			return nil, classify(err, "failed to create %s edge", label)
		}
		e, err := a.fetchEdgeLocked(key)
		if err != nil {
			return nil, err
		}
		if e == nil {
			return nil, errors.InternalErrorf("edge %s not readable after insert", identity.CompositeEdgeUID(key))
		}
		return e, nil
	})
}

// GetEdge resolves the composite uid back to its source, type, target and rank
func (a *Adapter) GetEdge(ctx context.Context, graphName, uid string) (*model.Edge, error) {
	key, err := edgeKey(uid)
	if err != nil {
		return nil, err
	}
	return graph.Observed(ctx, a.opts, &a.mu, graph.OpRead, "GetEdge", func(ctx context.Context) (*model.Edge, error) {
		if _, err := a.useLocked(ctx, graphName); err != nil {
			return nil, err
		}
		return a.mustFetchEdgeLocked(key, uid)
	})
}

// UpdateEdge merges props into the edge
func (a *Adapter) UpdateEdge(ctx context.Context, graphName, uid string, props map[string]any) (*model.Edge, error) {
	key, err := edgeKey(uid)
	if err != nil {
		return nil, err
	}
	values, err := userProps(props)
	if err != nil {
		return nil, err
	}

	return graph.Observed(ctx, a.opts, &a.mu, graph.OpWrite, "UpdateEdge", func(ctx context.Context) (*model.Edge, error) {
		space, err := a.useLocked(ctx, graphName)
		if err != nil {
			return nil, err
		}
		if _, err := a.mustFetchEdgeLocked(key, uid); err != nil {
			return nil, err
		}
		cols, err := a.prepareColumnsLocked(ctx, space, kindEdge, key.Label, values)
		if err != nil {
			return nil, err
		}
		as, err := assignments(values, cols, coerce.Millis(time.Now()), false)
		if err != nil {
			return nil, errors.ValidationErrorf("edge properties: %v", err)
		}
		if err := a.writeLocked(ctx, updateEdgeStmt(key, as)); err != nil {
			return nil, classify(err, "failed to update edge %s", uid)
		}
		return a.mustFetchEdgeLocked(key, uid)
	})
}

// DeleteEdge implements graph.GraphAdapter
func (a *Adapter) DeleteEdge(ctx context.Context, graphName, uid string) error {
	key, err := edgeKey(uid)
	if err != nil {
		return err
	}
	_, err = graph.Observed(ctx, a.opts, &a.mu, graph.OpWrite, "DeleteEdge", func(ctx context.Context) (struct{}, error) {
		if _, err := a.useLocked(ctx, graphName); err != nil {
			return struct{}{}, err
		}
		if _, err := a.mustFetchEdgeLocked(key, uid); err != nil {
			return struct{}{}, err
		}
		if _, err := a.execLocked(fmt.Sprintf("DELETE EDGE %s %s", quote(key.Label), edgeRef(key))); err != nil {
			return struct{}{}, classify(err, "failed to delete edge %s", uid)
		}
		return struct{}{}, nil
	})
	return err
}

// QueryEdges lists edges, optionally of one type, up to the row cap
func (a *Adapter) QueryEdges(ctx context.Context, graphName, label string) ([]model.Edge, error) {
	stmt := fmt.Sprintf("MATCH ()-[e]->() RETURN e LIMIT %d", a.opts.RowCap)
	if label != "" {
		if err := graph.ValidateIdentifier("edge type", label); err != nil {
			return nil, err
		}
		stmt = fmt.Sprintf("MATCH ()-[e:%s]->() RETURN e LIMIT %d", quote(label), a.opts.RowCap)
	}

	return graph.Observed(ctx, a.opts, &a.mu, graph.OpRead, "QueryEdges", func(ctx context.Context) ([]model.Edge, error) {
		if _, err := a.useLocked(ctx, graphName); err != nil {
			return nil, err
		}
		edges := []model.Edge{}
		rs, err := a.execLocked(stmt)
		if a.missingSchema("edge", label, err) {
			return edges, nil
		}
		if err != nil {
			return nil, classify(err, "failed to query edges")
		}
		rows, _ := rowsOf(rs, a.opts.RowCap)
		for _, row := range rows {
			for _, v := range row.([]any) {
				if ev, ok := v.(edgeValue); ok {
					edges = append(edges, ev.toEdge())
				}
			}
		}
		return edges, nil
	})
}

// missingSchema reports whether a scan failed only because its type or space
// is not visible yet, which reads as no rows. The swallowed error is logged.
func (a *Adapter) missingSchema(what, label string, err error) bool {
	if !schemaPending(err) {
		return false
	}
	a.opts.Logger.Debug(what+" scan found no schema, returning no rows", "label", label, "error", err)
	return true
}

// userProps validates and normalizes caller properties
func userProps(props map[string]any) (map[string]any, error) {
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
	return values, nil
}

func edgeKey(uid string) (identity.EdgeKey, error) {
	key, err := identity.ParseCompositeEdgeUID(uid)
	if err != nil {
		return identity.EdgeKey{}, errors.EdgeNotFound(uid).WithContext("reason", err.Error())
	}
	if err := graph.ValidateIdentifier("edge type", key.Label); err != nil {
		return identity.EdgeKey{}, errors.EdgeNotFound(uid).WithContext("reason", err.Error())
	}
	return key, nil
}

// prepareColumnsLocked extends the type for values and returns the column
// types to render them with. Columns just added may not be visible to
// DESCRIBE yet, so their types come from the values.
func (a *Adapter) prepareColumnsLocked(ctx context.Context, space string, kind schemaKind, name string, values map[string]any) (map[string]string, error) {
	if _, err := a.ensureTypeLocked(ctx, space, kind, name, columnsFor(values)); err != nil {
		return nil, err
	}
	cols, _, err := a.columnsLocked(space, kind, name)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		if t, ok := cols[k]; ok {
			out[k] = t
		} else {
			out[k] = columnTypeOf(v)
		}
	}
	return out, nil
}

// writeLocked runs a mutation, retrying while new schema propagates
func (a *Adapter) writeLocked(ctx context.Context, stmt string) error {
	return a.retrySchema(ctx, func() error {
		_, err := a.execLocked(stmt)
		return err
	})
}

func (a *Adapter) fetchVertexLocked(uid string) (*model.Vertex, error) {
	rs, err := a.execLocked(fetchVerticesStmt(uid))
	if err != nil {
		return nil, classify(err, "failed to fetch vertex %s", uid)
	}
	rows, _ := rowsOf(rs, 1)
	for _, row := range rows {
		for _, v := range row.([]any) {
			if vv, ok := v.(vertexValue); ok {
				vertex := vv.toVertex()
				return &vertex, nil
			}
		}
	}
	return nil, nil
}

func (a *Adapter) mustFetchVertexLocked(uid string) (*model.Vertex, error) {
	v, err := a.fetchVertexLocked(uid)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, errors.VertexNotFound(uid)
	}
	return v, nil
}

// existingVerticesLocked reports which of the vids exist
func (a *Adapter) existingVerticesLocked(vids ...string) (map[string]bool, error) {
	rs, err := a.execLocked(fetchVerticesStmt(vids...))
	if err != nil {
		return nil, classify(err, "failed to resolve vertices")
	}
	found := make(map[string]bool, len(vids))
	rows, _ := rowsOf(rs, len(vids))
	for _, row := range rows {
		for _, v := range row.([]any) {
			if vv, ok := v.(vertexValue); ok {
				found[vv.VID] = true
			}
		}
	}
	return found, nil
}

// fetchEdgeLocked returns nil when the edge or its type does not exist
func (a *Adapter) fetchEdgeLocked(key identity.EdgeKey) (*model.Edge, error) {
	rs, err := a.execLocked(fetchEdgeStmt(key))
	if schemaPending(err) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "failed to fetch edge %s", identity.CompositeEdgeUID(key))
	}
	rows, _ := rowsOf(rs, 1)
	for _, row := range rows {
		for _, v := range row.([]any) {
			if ev, ok := v.(edgeValue); ok {
				edge := ev.toEdge()
				return &edge, nil
			}
		}
	}
	return nil, nil
}

func (a *Adapter) mustFetchEdgeLocked(key identity.EdgeKey, uid string) (*model.Edge, error) {
	e, err := a.fetchEdgeLocked(key)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, errors.EdgeNotFound(uid)
	}
	return e, nil
}
