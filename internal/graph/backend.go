package graph

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rohankatakam/graphbridge/internal/model"
)

// GraphAdapter is the capability set shared by every backend. An adapter owns
// one live session at a time and expects sequential use; parallel callers need
// distinct instances.
//
// Every operation except Connect, Disconnect, IsConnected and TestConnection
// connects lazily with the adapter's configured ConnectionConfig. An empty
// graph name selects the backend's default database, space or graph.
type GraphAdapter interface {
	Kind() model.BackendKind

	// Session lifecycle
	Connect(ctx context.Context, cfg model.ConnectionConfig) error
	Disconnect(ctx context.Context) error
	IsConnected() bool
	TestConnection(ctx context.Context, cfg model.ConnectionConfig) error
	Config() model.ConnectionConfig

	// Graphs
	ListGraphs(ctx context.Context) ([]string, error)
	GetGraphSchema(ctx context.Context, graph string) (*model.GraphSchema, error)
	CreateGraph(ctx context.Context, graph string) error
	DeleteGraph(ctx context.Context, graph string) error

	// Schema
	GetVertexTypes(ctx context.Context, graph string) ([]model.LabelType, error)
	CreateVertexType(ctx context.Context, graph string, t model.LabelType) error
	DeleteVertexType(ctx context.Context, graph, name string) (*model.TypeDeletion, error)
	GetEdgeTypes(ctx context.Context, graph string) ([]model.LabelType, error)
	CreateEdgeType(ctx context.Context, graph string, t model.LabelType) error
	DeleteEdgeType(ctx context.Context, graph, name string) (*model.TypeDeletion, error)

	// Vertices
	CreateVertex(ctx context.Context, graph, label string, props map[string]any) (*model.Vertex, error)
	GetVertex(ctx context.Context, graph, uid string) (*model.Vertex, error)
	UpdateVertex(ctx context.Context, graph, uid string, props map[string]any) (*model.Vertex, error)
	DeleteVertex(ctx context.Context, graph, uid string) error
	QueryVertices(ctx context.Context, graph, label string) ([]model.Vertex, error)

	// Edges
	CreateEdge(ctx context.Context, graph, label, sourceUID, targetUID string, props map[string]any) (*model.Edge, error)
	GetEdge(ctx context.Context, graph, uid string) (*model.Edge, error)
	UpdateEdge(ctx context.Context, graph, uid string, props map[string]any) (*model.Edge, error)
	DeleteEdge(ctx context.Context, graph, uid string) error
	QueryEdges(ctx context.Context, graph, label string) ([]model.Edge, error)

	// Native queries
	ExecuteNativeQuery(ctx context.Context, graph string, lang model.QueryLanguage, query string) (*model.GraphQueryResult, error)
}

// DefaultRowCap bounds QueryVertices, QueryEdges and native query rows
const DefaultRowCap = 100

// Options are shared construction options for adapters
type Options struct {
	Logger     *slog.Logger
	RowCap     int
	Operations OperationConfigs
	Monitor    *OperationMonitor
	// SchemaTTL is how long adapters that cache schema descriptions keep them
	SchemaTTL time.Duration
}

// Option mutates Options
type Option func(*Options)

// WithLogger sets the adapter logger
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithRowCap sets the row cap for unfiltered scans and native queries
func WithRowCap(n int) Option {
	return func(o *Options) { o.RowCap = n }
}

// WithOperations replaces the per-class timeouts
func WithOperations(ops OperationConfigs) Option {
	return func(o *Options) { o.Operations = ops }
}

// WithMonitor shares an operation monitor between adapters
func WithMonitor(m *OperationMonitor) Option {
	return func(o *Options) { o.Monitor = m }
}

// WithSchemaTTL sets the schema description cache lifetime
func WithSchemaTTL(d time.Duration) Option {
	return func(o *Options) { o.SchemaTTL = d }
}

// BuildOptions applies opts over defaults. component names the slog component.
func BuildOptions(component string, opts ...Option) Options {
	o := Options{
		RowCap:     DefaultRowCap,
		Operations: OperationConfigs(DefaultOperationConfigs()),
		SchemaTTL:  time.Minute,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	o.Logger = o.Logger.With("component", component)
	if o.RowCap <= 0 {
		o.RowCap = DefaultRowCap
	}
	if o.Operations == nil {
		o.Operations = OperationConfigs(DefaultOperationConfigs())
	}
	if o.Monitor == nil {
		o.Monitor = NewOperationMonitor(o.Logger)
	}
	return o
}

// Observed runs fn under the deadline of an operation class, serialized by mu,
// and records it with the monitor. name is the capability-set method for
// logging.
//
// The lock is taken inside the deadline: an operation abandoned at its
// deadline keeps the lock until the backend returns, and a queued operation
// whose deadline passed while waiting never starts.
func Observed[T any](ctx context.Context, o Options, mu sync.Locker, class, name string, fn func(context.Context) (T, error)) (T, error) {
	cfg := o.Operations.Get(class)
	start := time.Now()
	v, err := RunWithDeadline(ctx, cfg.Timeout, func(ctx context.Context) (T, error) {
		if mu != nil {
			mu.Lock()
			defer mu.Unlock()
		}
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, err
		}
		return fn(ctx)
	})
	o.Monitor.Observe(name, cfg.Timeout, time.Since(start), err)
	return v, err
}
