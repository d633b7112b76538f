// Package registry holds one graph adapter per backend kind and is the single
// entry point callers use to reach them. Each adapter is used by one logical
// operation at a time; different kinds run in parallel.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/rohankatakam/graphbridge/internal/errors"
	"github.com/rohankatakam/graphbridge/internal/graph"
	"github.com/rohankatakam/graphbridge/internal/graph/janusgraph"
	"github.com/rohankatakam/graphbridge/internal/graph/nebulagraph"
	"github.com/rohankatakam/graphbridge/internal/graph/neo4jgraph"
	"github.com/rohankatakam/graphbridge/internal/model"
)

// Factory builds a disconnected adapter for cfg
type Factory func(cfg model.ConnectionConfig, opts ...graph.Option) graph.GraphAdapter

// DefaultFactories returns the factories of the three supported backends
func DefaultFactories() map[model.BackendKind]Factory {
	return map[model.BackendKind]Factory{
		model.BackendNeo4j: func(cfg model.ConnectionConfig, opts ...graph.Option) graph.GraphAdapter {
			return neo4jgraph.New(cfg, opts...)
		},
		model.BackendNebula: func(cfg model.ConnectionConfig, opts ...graph.Option) graph.GraphAdapter {
			return nebulagraph.New(cfg, opts...)
		},
		model.BackendJanus: func(cfg model.ConnectionConfig, opts ...graph.Option) graph.GraphAdapter {
			return janusgraph.New(cfg, opts...)
		},
	}
}

// Options configure a Registry
type Options struct {
	Logger *slog.Logger
	// Factories replaces DefaultFactories when set
	Factories map[model.BackendKind]Factory
	// Configs are the initial connection configs per kind
	Configs map[model.BackendKind]model.ConnectionConfig
	// OpsPerSecond caps logical operations per adapter; zero means unlimited
	OpsPerSecond float64
	Burst        int
	// AdapterOptions are passed to every factory
	AdapterOptions []graph.Option
}

// entry is one registered adapter and the state that serializes its use
type entry struct {
	mu      sync.Mutex
	adapter graph.GraphAdapter
	limiter *rate.Limiter
}

// Registry selects adapters by kind
type Registry struct {
	logger  *slog.Logger
	entries map[model.BackendKind]*entry
}

// New builds one adapter per factory. Adapters connect lazily on first use.
func New(opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	factories := opts.Factories
	if factories == nil {
		factories = DefaultFactories()
	}
	limit := rate.Inf
	burst := 1
	if opts.OpsPerSecond > 0 {
		limit = rate.Limit(opts.OpsPerSecond)
		if opts.Burst > 0 {
			burst = opts.Burst
		}
	}

	adapterOpts := append([]graph.Option{graph.WithLogger(logger)}, opts.AdapterOptions...)
	r := &Registry{
		logger:  logger.With("component", "registry"),
		entries: make(map[model.BackendKind]*entry, len(factories)),
	}
	for kind, factory := range factories {
		cfg := opts.Configs[kind]
		if cfg.Kind == "" {
			cfg.Kind = kind
		}
		r.entries[kind] = &entry{
			adapter: factory(cfg, adapterOpts...),
			limiter: rate.NewLimiter(limit, burst),
		}
	}
	return r
}

// Kinds lists the registered kinds in model.AllBackends order
func (r *Registry) Kinds() []model.BackendKind {
	kinds := make([]model.BackendKind, 0, len(r.entries))
	for _, k := range model.AllBackends {
		if _, ok := r.entries[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Adapter returns the adapter registered for kind. Callers that use it
// directly bypass the registry's serialization.
func (r *Registry) Adapter(kind model.BackendKind) (graph.GraphAdapter, error) {
	e, err := r.entry(kind)
	if err != nil {
		return nil, err
	}
	return e.adapter, nil
}

func (r *Registry) entry(kind model.BackendKind) (*entry, error) {
	e, ok := r.entries[kind]
	if !ok {
		return nil, errors.ValidationErrorf("no adapter registered for backend %q", kind)
	}
	return e, nil
}

// Do runs one logical operation against the adapter of kind. It waits for
// the adapter to be free and for the rate limit, and reconnects first when
// cfg addresses a different backend than the adapter's current config. A cfg
// without a kind keeps the current config.
func (r *Registry) Do(ctx context.Context, kind model.BackendKind, cfg model.ConnectionConfig, op func(ctx context.Context, a graph.GraphAdapter) error) error {
	e, err := r.entry(kind)
	if err != nil {
		return err
	}
	if cfg.Kind != "" && cfg.Kind != kind {
		return errors.ValidationErrorf("config for %s used with the %s adapter", cfg.Kind, kind)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	if cfg.Kind != "" && !cfg.Equal(e.adapter.Config()) {
		r.logger.Info("reconnecting adapter with new config", "backend", kind, "config", cfg.String())
		if err := e.adapter.Connect(ctx, cfg); err != nil {
			return err
		}
	}
	return op(ctx, e.adapter)
}

// Run is Do for operations that return a value
func Run[T any](ctx context.Context, r *Registry, kind model.BackendKind, cfg model.ConnectionConfig, op func(ctx context.Context, a graph.GraphAdapter) (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, kind, cfg, func(ctx context.Context, a graph.GraphAdapter) error {
		v, err := op(ctx, a)
		out = v
		return err
	})
	return out, err
}

// NativeQuery runs a native query through Do. The language tag is checked by
// the adapter before it touches the network.
func (r *Registry) NativeQuery(ctx context.Context, kind model.BackendKind, cfg model.ConnectionConfig, graphName, lang, query string) (*model.GraphQueryResult, error) {
	return Run(ctx, r, kind, cfg, func(ctx context.Context, a graph.GraphAdapter) (*model.GraphQueryResult, error) {
		return a.ExecuteNativeQuery(ctx, graphName, model.ParseQueryLanguage(lang), query)
	})
}

// TestAll checks every given config in parallel with the adapter of its
// kind. The map holds nil for reachable backends.
func (r *Registry) TestAll(ctx context.Context, cfgs map[model.BackendKind]model.ConnectionConfig) map[model.BackendKind]error {
	var mu sync.Mutex
	results := make(map[model.BackendKind]error, len(cfgs))

	g, ctx := errgroup.WithContext(ctx)
	for kind, cfg := range cfgs {
		g.Go(func() error {
			var err error
			if e, lookupErr := r.entry(kind); lookupErr != nil {
				err = lookupErr
			} else {
				err = e.adapter.TestConnection(ctx, cfg)
			}
			mu.Lock()
			results[kind] = err
			mu.Unlock()
			// A failed backend must not cancel the others
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Close disconnects every adapter, waiting for in-flight operations
func (r *Registry) Close(ctx context.Context) error {
	var g errgroup.Group
	for kind, e := range r.entries {
		g.Go(func() error {
			e.mu.Lock()
			defer e.mu.Unlock()
			if err := e.adapter.Disconnect(ctx); err != nil {
				return fmt.Errorf("disconnect %s: %w", kind, err)
			}
			return nil
		})
	}
	return g.Wait()
}
