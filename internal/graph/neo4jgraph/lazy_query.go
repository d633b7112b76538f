package neo4jgraph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// lazyQueryIterator pulls records one at a time so a capped read never
// buffers more than it keeps.
type lazyQueryIterator struct {
	ctx    context.Context
	result neo4j.ResultWithContext
	// truncated is set when Collect stopped at its limit with records left
	truncated bool
}

func newLazyQueryIterator(ctx context.Context, result neo4j.ResultWithContext) *lazyQueryIterator {
	return &lazyQueryIterator{ctx: ctx, result: result}
}

// Next advances to the next record
func (l *lazyQueryIterator) Next() bool {
	return l.result.Next(l.ctx)
}

// Record returns the current record
func (l *lazyQueryIterator) Record() *neo4j.Record {
	return l.result.Record()
}

// Collect reads up to limit records. The limit is checked before advancing,
// so no record past the limit is pulled from the stream.
func (l *lazyQueryIterator) Collect(limit int) ([]*neo4j.Record, error) {
	records := make([]*neo4j.Record, 0, min(limit, 64))
	for len(records) < limit && l.Next() {
		records = append(records, l.result.Record())
	}
	if err := l.result.Err(); err != nil {
		return nil, err
	}
	if len(records) == limit {
		l.truncated = l.result.Peek(l.ctx)
	}
	return records, nil
}

// Truncated reports whether the last Collect left records unread
func (l *lazyQueryIterator) Truncated() bool {
	return l.truncated
}

// Close discards the remaining records and returns the summary. Always call
// it; an unconsumed result pins the connection.
func (l *lazyQueryIterator) Close() (neo4j.ResultSummary, error) {
	return l.result.Consume(l.ctx)
}
