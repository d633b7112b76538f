package graph

import (
	"context"
	"time"
)

// Operation classes. Every adapter call falls into exactly one.
const (
	OpRead        = "read"
	OpWrite       = "write"
	OpSchema      = "schema"
	OpNativeQuery = "native_query"
	OpHealthCheck = "health_check"
	OpConnect     = "connect"
)

// OperationConfig defines the external deadline and backend metadata for one
// operation class. Neo4j forwards both as transaction config; the other
// backends only honour the deadline.
type OperationConfig struct {
	Timeout  time.Duration
	Metadata map[string]any
}

// DefaultOperationConfigs returns the per-class defaults
func DefaultOperationConfigs() map[string]OperationConfig {
	return map[string]OperationConfig{
		OpRead: {
			Timeout:  30 * time.Second,
			Metadata: map[string]any{"operation": OpRead, "type": "read"},
		},
		OpWrite: {
			Timeout:  60 * time.Second,
			Metadata: map[string]any{"operation": OpWrite, "type": "write"},
		},
		// Schema changes can rebuild indexes on large graphs
		OpSchema: {
			Timeout:  5 * time.Minute,
			Metadata: map[string]any{"operation": OpSchema, "type": "schema"},
		},
		OpNativeQuery: {
			Timeout:  2 * time.Minute,
			Metadata: map[string]any{"operation": OpNativeQuery, "type": "read"},
		},
		OpHealthCheck: {
			Timeout:  5 * time.Second,
			Metadata: map[string]any{"operation": OpHealthCheck, "type": "read"},
		},
		OpConnect: {
			Timeout:  15 * time.Second,
			Metadata: map[string]any{"operation": OpConnect},
		},
	}
}

// OperationConfigs is a set of per-class configs with a fallback
type OperationConfigs map[string]OperationConfig

// Get returns the config for an operation class, falling back to 60s
func (c OperationConfigs) Get(operation string) OperationConfig {
	if cfg, ok := c[operation]; ok {
		return cfg
	}
	if cfg, ok := DefaultOperationConfigs()[operation]; ok {
		return cfg
	}
	return OperationConfig{
		Timeout: 60 * time.Second,
		Metadata: map[string]any{
			"operation": operation,
			"type":      "unknown",
		},
	}
}

// WithTimeouts overrides the timeout of selected classes; zero durations are
// ignored.
func (c OperationConfigs) WithTimeouts(timeouts map[string]time.Duration) OperationConfigs {
	out := make(OperationConfigs, len(c)+len(timeouts))
	for k, v := range c {
		out[k] = v
	}
	for op, d := range timeouts {
		if d <= 0 {
			continue
		}
		out[op] = out.Get(op).WithTimeout(d)
	}
	return out
}

// WithCustomMetadata creates a config with one extra metadata entry
func (oc OperationConfig) WithCustomMetadata(key string, value any) OperationConfig {
	newConfig := OperationConfig{
		Timeout:  oc.Timeout,
		Metadata: make(map[string]any, len(oc.Metadata)+1),
	}
	for k, v := range oc.Metadata {
		newConfig.Metadata[k] = v
	}
	newConfig.Metadata[key] = value
	return newConfig
}

// WithTimeout creates a config with a custom timeout
func (oc OperationConfig) WithTimeout(timeout time.Duration) OperationConfig {
	return OperationConfig{
		Timeout:  timeout,
		Metadata: oc.Metadata,
	}
}

// RunWithDeadline runs a blocking call under an external deadline. None of the
// backend clients guarantee mid-call cancellation, so when the deadline fires
// first the call keeps running in its goroutine and its result is discarded.
func RunWithDeadline[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(ctx)
		done <- outcome{v, err}
	}()

	select {
	case o := <-done:
		return o.val, o.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
