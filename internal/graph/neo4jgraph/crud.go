package neo4jgraph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/rohankatakam/graphbridge/internal/errors"
	"github.com/rohankatakam/graphbridge/internal/graph"
	"github.com/rohankatakam/graphbridge/internal/graph/coerce"
	"github.com/rohankatakam/graphbridge/internal/graph/identity"
	"github.com/rohankatakam/graphbridge/internal/model"
)

// CreateVertex implements graph.GraphAdapter
func (a *Adapter) CreateVertex(ctx context.Context, graphName, label string, props map[string]any) (*model.Vertex, error) {
	values, err := toNeo4jProps(props)
	if err != nil {
		return nil, errors.ValidationErrorf("vertex properties: %v", err)
	}
	b := NewCypherBuilder()
	cypher, err := b.BuildCreateNode(label, identity.NewUID(), values, coerce.Millis(time.Now()))
	if err != nil {
		return nil, err
	}

	return graph.Observed(ctx, a.opts, &a.mu, graph.OpWrite, "CreateVertex", func(ctx context.Context) (*model.Vertex, error) {
		out, err := a.writeLocked(ctx, graphName, graph.OpWrite, func(tx neo4j.ManagedTransaction) (any, error) {
			return singleNode(ctx, tx, cypher, b.Params(), "n")
		})
		if err != nil {
			return nil, classify(err, "failed to create %s vertex", label)
		}
		v := nodeToVertex(out.(dbtype.Node))
		return &v, nil
	})
}

// GetVertex implements graph.GraphAdapter
func (a *Adapter) GetVertex(ctx context.Context, graphName, uid string) (*model.Vertex, error) {
	return graph.Observed(ctx, a.opts, &a.mu, graph.OpRead, "GetVertex", func(ctx context.Context) (*model.Vertex, error) {
		var node *dbtype.Node
		err := a.readLocked(ctx, graphName, func(tx neo4j.ExplicitTransaction) error {
			b := NewCypherBuilder()
			p := b.AddParam(uid)
			cypher := fmt.Sprintf("%s RETURN n", matchByUID("n", p, false))
			records, err := collect(ctx, tx, cypher, b.Params(), 1)
			if err != nil || len(records) == 0 {
				return err
			}
			if n, ok := recordValue[dbtype.Node](records[0], "n"); ok {
				node = &n
			}
			return nil
		})
		if err != nil {
			return nil, classify(err, "failed to read vertex %s", uid)
		}
		if node == nil {
			return nil, errors.VertexNotFound(uid)
		}
		v := nodeToVertex(*node)
		return &v, nil
	})
}

// UpdateVertex merges props into the vertex. Absent keys are untouched.
func (a *Adapter) UpdateVertex(ctx context.Context, graphName, uid string, props map[string]any) (*model.Vertex, error) {
	values, err := toNeo4jProps(props)
	if err != nil {
		return nil, errors.ValidationErrorf("vertex properties: %v", err)
	}
	b := NewCypherBuilder()
	cypher, err := b.BuildUpdateNode(uid, values, coerce.Millis(time.Now()))
	if err != nil {
		return nil, err
	}

	return graph.Observed(ctx, a.opts, &a.mu, graph.OpWrite, "UpdateVertex", func(ctx context.Context) (*model.Vertex, error) {
		out, err := a.writeLocked(ctx, graphName, graph.OpWrite, func(tx neo4j.ManagedTransaction) (any, error) {
			return singleNode(ctx, tx, cypher, b.Params(), "n")
		})
		if errors.IsType(err, errors.ErrorTypeVertexNotFound) {
			return nil, errors.VertexNotFound(uid)
		}
		if err != nil {
			return nil, classify(err, "failed to update vertex %s", uid)
		}
		v := nodeToVertex(out.(dbtype.Node))
		return &v, nil
	})
}

// DeleteVertex removes the vertex and its incident relationships
func (a *Adapter) DeleteVertex(ctx context.Context, graphName, uid string) error {
	_, err := graph.Observed(ctx, a.opts, &a.mu, graph.OpWrite, "DeleteVertex", func(ctx context.Context) (struct{}, error) {
		b := NewCypherBuilder()
		p := b.AddParam(uid)
		cypher := fmt.Sprintf("%s DETACH DELETE n RETURN count(*) AS deleted", matchByUID("n", p, false))
		out, err := a.writeLocked(ctx, graphName, graph.OpWrite, func(tx neo4j.ManagedTransaction) (any, error) {
			return singleCount(ctx, tx, cypher, b.Params())
		})
		if err != nil {
			return struct{}{}, classify(err, "failed to delete vertex %s", uid)
		}
		if out.(int64) == 0 {
			return struct{}{}, errors.VertexNotFound(uid)
		}
		return struct{}{}, nil
	})
	return err
}

// QueryVertices lists vertices, optionally filtered by label, up to the row cap
func (a *Adapter) QueryVertices(ctx context.Context, graphName, label string) ([]model.Vertex, error) {
	match := "MATCH (n)"
	if label != "" {
		if err := graph.ValidateIdentifier("label", label); err != nil {
			return nil, err
		}
		match = fmt.Sprintf("MATCH (n:%s)", quote(label))
	}
	cypher := fmt.Sprintf("%s RETURN n LIMIT %d", match, a.opts.RowCap)

	return graph.Observed(ctx, a.opts, &a.mu, graph.OpRead, "QueryVertices", func(ctx context.Context) ([]model.Vertex, error) {
		vertices := []model.Vertex{}
		err := a.readLocked(ctx, graphName, func(tx neo4j.ExplicitTransaction) error {
			records, err := collect(ctx, tx, cypher, nil, a.opts.RowCap)
			if err != nil {
				return err
			}
			for _, rec := range records {
				if n, ok := recordValue[dbtype.Node](rec, "n"); ok {
					vertices = append(vertices, nodeToVertex(n))
				}
			}
			return nil
		})
		if err != nil {
			return nil, classify(err, "failed to query vertices")
		}
		return vertices, nil
	})
}

// CreateEdge resolves both endpoints and creates the relationship in one
// transaction. A missing endpoint fails before anything is written.
func (a *Adapter) CreateEdge(ctx context.Context, graphName, label, sourceUID, targetUID string, props map[string]any) (*model.Edge, error) {
	values, err := toNeo4jProps(props)
	if err != nil {
		return nil, errors.ValidationErrorf("edge properties: %v", err)
	}
	resolve := NewCypherBuilder()
	resolveCypher := resolve.BuildResolveEndpoints(sourceUID, targetUID)
	create := NewCypherBuilder()
	createCypher, err := create.BuildCreateEdge(label, sourceUID, targetUID, identity.NewUID(), values, coerce.Millis(time.Now()))
	if err != nil {
		return nil, err
	}

	return graph.Observed(ctx, a.opts, &a.mu, graph.OpWrite, "CreateEdge", func(ctx context.Context) (*model.Edge, error) {
		out, err := a.writeLocked(ctx, graphName, graph.OpWrite, func(tx neo4j.ManagedTransaction) (any, error) {
			result, err := tx.Run(ctx, resolveCypher, resolve.Params())
			if err != nil {
				return nil, err
			}
			rec, err := result.Single(ctx)
			if err != nil {
				return nil, err
			}
			if ok, _ := recordValue[bool](rec, "hasSource"); !ok {
				return nil, errors.VertexNotFound(sourceUID).WithContext("endpoint", "source")
			}
			if ok, _ := recordValue[bool](rec, "hasTarget"); !ok {
				return nil, errors.VertexNotFound(targetUID).WithContext("endpoint", "target")
			}
			return singleEdge(ctx, tx, createCypher, create.Params())
		})
		if err != nil {
			return nil, classify(err, "failed to create %s edge", label)
		}
		e := out.(model.Edge)
		return &e, nil
	})
}

// GetEdge implements graph.GraphAdapter
func (a *Adapter) GetEdge(ctx context.Context, graphName, uid string) (*model.Edge, error) {
	return graph.Observed(ctx, a.opts, &a.mu, graph.OpRead, "GetEdge", func(ctx context.Context) (*model.Edge, error) {
		var edge *model.Edge
		err := a.readLocked(ctx, graphName, func(tx neo4j.ExplicitTransaction) error {
			b := NewCypherBuilder()
			p := b.AddParam(uid)
			cypher := fmt.Sprintf("%s MATCH (s)-[r]->(t) RETURN r, %s AS src, %s AS dst",
				matchRelByUID("r", p, false), uidOf("s"), uidOf("t"))
			records, err := collect(ctx, tx, cypher, b.Params(), 1)
			if err != nil || len(records) == 0 {
				return err
			}
			if e, ok := recordEdge(records[0]); ok {
				edge = &e
			}
			return nil
		})
		if err != nil {
			return nil, classify(err, "failed to read edge %s", uid)
		}
		if edge == nil {
			return nil, errors.EdgeNotFound(uid)
		}
		return edge, nil
	})
}

// UpdateEdge merges props into the edge. Absent keys are untouched.
func (a *Adapter) UpdateEdge(ctx context.Context, graphName, uid string, props map[string]any) (*model.Edge, error) {
	values, err := toNeo4jProps(props)
	if err != nil {
		return nil, errors.ValidationErrorf("edge properties: %v", err)
	}
	b := NewCypherBuilder()
	cypher, err := b.BuildUpdateEdge(uid, values, coerce.Millis(time.Now()))
	if err != nil {
		return nil, err
	}

	return graph.Observed(ctx, a.opts, &a.mu, graph.OpWrite, "UpdateEdge", func(ctx context.Context) (*model.Edge, error) {
		out, err := a.writeLocked(ctx, graphName, graph.OpWrite, func(tx neo4j.ManagedTransaction) (any, error) {
			return singleEdge(ctx, tx, cypher, b.Params())
		})
		if errors.IsType(err, errors.ErrorTypeEdgeNotFound) {
			return nil, errors.EdgeNotFound(uid)
		}
		if err != nil {
			return nil, classify(err, "failed to update edge %s", uid)
		}
		e := out.(model.Edge)
		return &e, nil
	})
}

// DeleteEdge implements graph.GraphAdapter
func (a *Adapter) DeleteEdge(ctx context.Context, graphName, uid string) error {
	_, err := graph.Observed(ctx, a.opts, &a.mu, graph.OpWrite, "DeleteEdge", func(ctx context.Context) (struct{}, error) {
		b := NewCypherBuilder()
		p := b.AddParam(uid)
		cypher := fmt.Sprintf("%s DELETE r RETURN count(*) AS deleted", matchRelByUID("r", p, false))
		out, err := a.writeLocked(ctx, graphName, graph.OpWrite, func(tx neo4j.ManagedTransaction) (any, error) {
			return singleCount(ctx, tx, cypher, b.Params())
		})
		if err != nil {
			return struct{}{}, classify(err, "failed to delete edge %s", uid)
		}
		if out.(int64) == 0 {
			return struct{}{}, errors.EdgeNotFound(uid)
		}
		return struct{}{}, nil
	})
	return err
}

// QueryEdges lists edges, optionally filtered by type, up to the row cap
func (a *Adapter) QueryEdges(ctx context.Context, graphName, label string) ([]model.Edge, error) {
	rel := "[r]"
	if label != "" {
		if err := graph.ValidateIdentifier("edge label", label); err != nil {
			return nil, err
		}
		rel = fmt.Sprintf("[r:%s]", quote(label))
	}
	cypher := fmt.Sprintf("MATCH (s)-%s->(t) RETURN r, %s AS src, %s AS dst LIMIT %d",
		rel, uidOf("s"), uidOf("t"), a.opts.RowCap)

	return graph.Observed(ctx, a.opts, &a.mu, graph.OpRead, "QueryEdges", func(ctx context.Context) ([]model.Edge, error) {
		edges := []model.Edge{}
		err := a.readLocked(ctx, graphName, func(tx neo4j.ExplicitTransaction) error {
			records, err := collect(ctx, tx, cypher, nil, a.opts.RowCap)
			if err != nil {
				return err
			}
			for _, rec := range records {
				if e, ok := recordEdge(rec); ok {
					edges = append(edges, e)
				}
			}
			return nil
		})
		if err != nil {
			return nil, classify(err, "failed to query edges")
		}
		return edges, nil
	})
}

// recordValue reads a typed column from a record
func recordValue[T any](rec *neo4j.Record, key string) (T, bool) {
	var zero T
	raw, ok := rec.Get(key)
	if !ok {
		return zero, false
	}
	v, ok := raw.(T)
	return v, ok
}

// recordEdge reads the r, src and dst columns produced by the edge queries
func recordEdge(rec *neo4j.Record) (model.Edge, bool) {
	r, ok := recordValue[dbtype.Relationship](rec, "r")
	if !ok {
		return model.Edge{}, false
	}
	src, _ := recordValue[string](rec, "src")
	dst, _ := recordValue[string](rec, "dst")
	return relToEdge(r, src, dst), true
}

// collect runs a read statement and keeps at most limit records
func collect(ctx context.Context, tx neo4j.ExplicitTransaction, cypher string, params map[string]any, limit int) ([]*neo4j.Record, error) {
	result, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	iter := newLazyQueryIterator(ctx, result)
	records, err := iter.Collect(limit)
	if err != nil {
		return nil, err
	}
	if _, err := iter.Close(); err != nil {
		return nil, err
	}
	return records, nil
}

// singleNode returns the node in column key of the only row, or a
// VertexNotFound error when the statement matched nothing.
func singleNode(ctx context.Context, tx neo4j.ManagedTransaction, cypher string, params map[string]any, key string) (any, error) {
	result, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, err
		}
		return nil, errors.VertexNotFound("")
	}
	n, ok := recordValue[dbtype.Node](result.Record(), key)
	if !ok {
		return nil, errors.InternalErrorf("column %q is not a node", key)
	}
	if _, err := result.Consume(ctx); err != nil {
		return nil, err
	}
	return n, nil
}

// singleEdge is singleNode for the r, src and dst edge columns
func singleEdge(ctx context.Context, tx neo4j.ManagedTransaction, cypher string, params map[string]any) (any, error) {
	result, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, err
		}
		return nil, errors.EdgeNotFound("")
	}
	e, ok := recordEdge(result.Record())
	if !ok {
		return nil, errors.InternalErrorf("column r is not a relationship")
	}
	if _, err := result.Consume(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

func singleCount(ctx context.Context, tx neo4j.ManagedTransaction, cypher string, params map[string]any) (any, error) {
	result, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	rec, err := result.Single(ctx)
	if err != nil {
		return nil, err
	}
	n, _ := recordValue[int64](rec, "deleted")
	return n, nil
}
