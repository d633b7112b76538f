package nebulagraph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rohankatakam/graphbridge/internal/graph"
	"github.com/rohankatakam/graphbridge/internal/graph/normalize"
	"github.com/rohankatakam/graphbridge/internal/model"
)

// ExecuteNativeQuery runs an nGQL statement in the graph's space and
// normalizes the rows. Only the first RowCap rows are decoded. Without a
// graph name or configured space the statement runs in whatever space the
// session is in, so space-independent statements such as SHOW SPACES work.
func (a *Adapter) ExecuteNativeQuery(ctx context.Context, graphName string, lang model.QueryLanguage, query string) (*model.GraphQueryResult, error) {
	if err := graph.CheckLanguage(model.BackendNebula, lang); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return normalize.New(decoder{}, a.opts.Logger).Normalize([]any{}), nil
	}

	return graph.Observed(ctx, a.opts, &a.mu, graph.OpNativeQuery, "ExecuteNativeQuery", func(ctx context.Context) (*model.GraphQueryResult, error) {
		start := time.Now()
		if a.hasSpace(graphName) {
			if _, err := a.useLocked(ctx, graphName); err != nil {
				return nil, graph.FailedQuery(err, start)
			}
		}
		rs, err := a.execLocked(query)
		if err != nil {
			return nil, graph.FailedQuery(classify(err, "ngql query failed"), start)
		}
		// A statement may switch spaces
		if space := rs.GetSpaceName(); space != "" {
			a.currentSpace = space
		}

		rows, truncated := rowsOf(rs, a.opts.RowCap)
		out := normalize.New(decoder{}, a.opts.Logger).Normalize(rows)
		if truncated {
			out.Warnings = append(out.Warnings, fmt.Sprintf("result truncated to %d rows", a.opts.RowCap))
		}
		out.Statistics.ExecutionTimeMs = time.Since(start).Milliseconds()
		return out, nil
	})
}
