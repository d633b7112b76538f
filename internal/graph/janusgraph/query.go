package janusgraph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rohankatakam/graphbridge/internal/graph"
	"github.com/rohankatakam/graphbridge/internal/graph/normalize"
	"github.com/rohankatakam/graphbridge/internal/model"
)

// ExecuteNativeQuery evaluates a Gremlin script against the graph. The script
// runs inside a closure; at most RowCap+1 rows of its result are converted on
// the server before the transaction is rolled back, so a script that wants
// its writes kept must commit them itself.
func (a *Adapter) ExecuteNativeQuery(ctx context.Context, graphName string, lang model.QueryLanguage, query string) (*model.GraphQueryResult, error) {
	if err := graph.CheckLanguage(model.BackendJanus, lang); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return normalize.New(decoder{}, a.opts.Logger).Normalize([]any{}), nil
	}

	return graph.Observed(ctx, a.opts, &a.mu, graph.OpNativeQuery, "ExecuteNativeQuery", func(ctx context.Context) (*model.GraphQueryResult, error) {
		start := time.Now()
		rows, err := a.evalLocked(graph.OpNativeQuery, graphName, nativeBody(query), map[string]any{bindCap: a.opts.RowCap})
		if err != nil {
			return nil, graph.FailedQuery(classify(err, "gremlin query failed"), start)
		}

		truncated := len(rows) > a.opts.RowCap
		if truncated {
			rows = rows[:a.opts.RowCap]
		}
		out := normalize.New(decoder{}, a.opts.Logger).Normalize(rows)
		if truncated {
			out.Warnings = append(out.Warnings, fmt.Sprintf("result truncated to %d rows", a.opts.RowCap))
		}
		out.Statistics.ExecutionTimeMs = time.Since(start).Milliseconds()
		return out, nil
	})
}
