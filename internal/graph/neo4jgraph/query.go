package neo4jgraph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/rohankatakam/graphbridge/internal/graph"
	"github.com/rohankatakam/graphbridge/internal/graph/normalize"
	"github.com/rohankatakam/graphbridge/internal/model"
)

// ExecuteNativeQuery runs a Cypher statement and normalizes its records. The
// language tag is checked before any connection is touched. At most RowCap
// records are read; the rest of the stream is discarded.
func (a *Adapter) ExecuteNativeQuery(ctx context.Context, graphName string, lang model.QueryLanguage, query string) (*model.GraphQueryResult, error) {
	if err := graph.CheckLanguage(model.BackendNeo4j, lang); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return normalize.New(decoder{}, a.opts.Logger).Normalize([]any{}), nil
	}

	return graph.Observed(ctx, a.opts, &a.mu, graph.OpNativeQuery, "ExecuteNativeQuery", func(ctx context.Context) (*model.GraphQueryResult, error) {
		start := time.Now()
		session, err := a.sessionLocked(ctx, graphName)
		if err != nil {
			return nil, err
		}

		result, err := session.Run(ctx, query, nil, txConfig(a.opts.Operations.Get(graph.OpNativeQuery))...)
		if err != nil {
			return nil, graph.FailedQuery(classify(err, "cypher query failed"), start)
		}
		iter := newLazyQueryIterator(ctx, result)
		records, err := iter.Collect(a.opts.RowCap)
		if _, cerr := iter.Close(); err == nil && cerr != nil {
			err = cerr
		}
		if err != nil {
			return nil, graph.FailedQuery(classify(err, "cypher query failed"), start)
		}

		raw := make([]any, len(records))
		for i, rec := range records {
			raw[i] = rec
		}
		endpoints, err := a.resolveEndpointsLocked(ctx, graphName, raw)
		if err != nil {
			return nil, graph.FailedQuery(err, start)
		}

		out := normalize.New(decoder{endpoints: endpoints}, a.opts.Logger).Normalize(raw)
		if iter.Truncated() {
			out.Warnings = append(out.Warnings, fmt.Sprintf("result truncated to %d rows", a.opts.RowCap))
		}
		out.Statistics.ExecutionTimeMs = time.Since(start).Milliseconds()
		return out, nil
	})
}

// resolveEndpointsLocked maps relationship endpoint element ids to uids.
// Endpoints already present as nodes in the result need no lookup.
func (a *Adapter) resolveEndpointsLocked(ctx context.Context, graphName string, raw []any) (map[string]string, error) {
	known, missing := endpointIndex(raw)
	if len(missing) == 0 {
		return known, nil
	}
	err := a.readLocked(ctx, graphName, func(tx neo4j.ExplicitTransaction) error {
		records, err := collect(ctx, tx,
			"MATCH (n) WHERE elementId(n) IN $ids RETURN elementId(n) AS id, "+uidOf("n")+" AS uid",
			map[string]any{"ids": missing}, len(missing))
		if err != nil {
			return err
		}
		for _, rec := range records {
			id, _ := recordValue[string](rec, "id")
			uid, _ := recordValue[string](rec, "uid")
			if id != "" && uid != "" {
				known[id] = uid
			}
		}
		return nil
	})
	if err != nil {
		return nil, classify(err, "failed to resolve relationship endpoints")
	}
	return known, nil
}
