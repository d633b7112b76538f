package graph

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	graphErrors "github.com/rohankatakam/graphbridge/internal/errors"
	"github.com/rohankatakam/graphbridge/internal/model"
)

func TestOperationConfigsFallback(t *testing.T) {
	ops := OperationConfigs(DefaultOperationConfigs())
	assert.Equal(t, 5*time.Second, ops.Get(OpHealthCheck).Timeout)
	assert.Equal(t, 60*time.Second, ops.Get("bulk_import").Timeout)
	assert.Equal(t, "bulk_import", ops.Get("bulk_import").Metadata["operation"])

	custom := ops.WithTimeouts(map[string]time.Duration{OpRead: time.Second, OpWrite: 0})
	assert.Equal(t, time.Second, custom.Get(OpRead).Timeout)
	assert.Equal(t, 60*time.Second, custom.Get(OpWrite).Timeout)
	assert.Equal(t, 30*time.Second, ops.Get(OpRead).Timeout, "original set is untouched")
}

func TestWithCustomMetadataCopies(t *testing.T) {
	base := OperationConfig{Timeout: time.Second, Metadata: map[string]any{"a": 1}}
	next := base.WithCustomMetadata("graph", "social")
	assert.Equal(t, "social", next.Metadata["graph"])
	assert.NotContains(t, base.Metadata, "graph")
}

func TestRunWithDeadlineReturnsResult(t *testing.T) {
	v, err := RunWithDeadline(context.Background(), time.Second, func(context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestRunWithDeadlineDiscardsSlowCall(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	_, err := RunWithDeadline(context.Background(), 20*time.Millisecond, func(context.Context) (int, error) {
		<-release
		return 1, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestObservedRecordsStats(t *testing.T) {
	o := BuildOptions("test")
	_, err := Observed(context.Background(), o, nil, OpRead, "GetVertex", func(context.Context) (string, error) {
		return "", errors.New("boom")
	})
	require.Error(t, err)
	_, _ = Observed(context.Background(), o, nil, OpRead, "GetVertex", func(context.Context) (string, error) {
		return "ok", nil
	})

	s, ok := o.Monitor.Stats("GetVertex")
	require.True(t, ok)
	assert.Equal(t, 2, s.TotalExecutions)
	assert.Equal(t, 1, s.FailureCount)
	assert.Zero(t, s.TimeoutCount)
}

func TestObservedSkipsExpiredQueuedOperation(t *testing.T) {
	o := BuildOptions("test", WithOperations(OperationConfigs{OpWrite: {Timeout: 30 * time.Millisecond}}))
	var mu sync.Mutex
	mu.Lock()

	ran := make(chan struct{}, 1)
	_, err := Observed(context.Background(), o, &mu, OpWrite, "CreateVertex", func(context.Context) (int, error) {
		ran <- struct{}{}
		return 1, nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	select {
	case <-ran:
		t.Fatal("operation started after its deadline")
	default:
	}
}

func TestBuildOptionsDefaults(t *testing.T) {
	o := BuildOptions("neo4j", WithRowCap(-1))
	assert.Equal(t, DefaultRowCap, o.RowCap)
	assert.NotNil(t, o.Logger)
	assert.NotNil(t, o.Monitor)

	o = BuildOptions("neo4j", WithRowCap(25), WithSchemaTTL(time.Hour))
	assert.Equal(t, 25, o.RowCap)
	assert.Equal(t, time.Hour, o.SchemaTTL)
}

func TestValidateIdentifier(t *testing.T) {
	for _, ok := range []string{"Person", "KNOWS", "_x1", "created_at"} {
		assert.NoError(t, ValidateIdentifier("label", ok), ok)
	}
	for _, bad := range []string{"", "1abc", "a-b", "x`) DETACH DELETE n //", "name space"} {
		err := ValidateIdentifier("label", bad)
		require.Error(t, err, bad)
		assert.True(t, graphErrors.IsType(err, graphErrors.ErrorTypeValidation))
	}
	assert.Error(t, ValidateProperties(map[string]any{"ok": 1, "not ok": 2}))
}

func TestCheckLanguage(t *testing.T) {
	assert.NoError(t, CheckLanguage(model.BackendNebula, "nGQL"))
	assert.NoError(t, CheckLanguage(model.BackendNebula, "GQL"))
	assert.NoError(t, CheckLanguage(model.BackendNeo4j, "Cypher"))
	assert.NoError(t, CheckLanguage(model.BackendJanus, "gremlin"))

	err := CheckLanguage(model.BackendNebula, "Cypher")
	require.Error(t, err)
	assert.ErrorIs(t, err, graphErrors.ErrQueryLanguageNotSupported)
	assert.Error(t, CheckLanguage(model.BackendJanus, "cypher"))
}

func TestSchemaCache(t *testing.T) {
	c := NewSchemaCache(time.Minute)
	_, ok := c.Columns("g", "tag", "Person")
	assert.False(t, ok)

	c.SetColumns("g", "tag", "Person", map[string]string{"name": "string"})
	cols, ok := c.Columns("g", "tag", "Person")
	require.True(t, ok)
	assert.Equal(t, "string", cols["name"])

	_, ok = c.Columns("other", "tag", "Person")
	assert.False(t, ok, "entries are scoped by graph")

	c.Invalidate("g", "tag", "Person")
	_, ok = c.Columns("g", "tag", "Person")
	assert.False(t, ok)

	c.SetColumns("g", "edge", "KNOWS", map[string]string{})
	c.Flush()
	_, ok = c.Columns("g", "edge", "KNOWS")
	assert.False(t, ok)
}
