package graph

import (
	"time"

	"github.com/rohankatakam/graphbridge/internal/errors"
	"github.com/rohankatakam/graphbridge/internal/model"
)

// StatisticsContextKey is the error context key carrying the statistics of a
// failed native query
const StatisticsContextKey = "statistics"

// FailedQuery attaches ERROR statistics to a native query failure. Errors
// outside the taxonomy are wrapped as QueryExecution first.
func FailedQuery(err error, start time.Time) error {
	if err == nil {
		return nil
	}
	e, ok := errors.AsError(err)
	if !ok {
		e = errors.QueryExecution(err, "native query failed")
	}
	return e.WithContext(StatisticsContextKey, model.QueryStatistics{
		ExecutionTimeMs: time.Since(start).Milliseconds(),
		Status:          model.StatusError,
		ErrorMessage:    err.Error(),
	})
}

// QueryStatisticsOf returns the statistics FailedQuery attached to err
func QueryStatisticsOf(err error) (model.QueryStatistics, bool) {
	e, ok := errors.AsError(err)
	if !ok || e.Context == nil {
		return model.QueryStatistics{}, false
	}
	stats, ok := e.Context[StatisticsContextKey].(model.QueryStatistics)
	return stats, ok
}
