// Package janusgraph implements the graph capability set on JanusGraph through
// Gremlin Server script evaluation. Graphs are configured graphs; vertex and
// edge ids are janus' own ids, which are stable and queryable, rendered as
// strings.
package janusgraph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	gremlingo "github.com/apache/tinkerpop/gremlin-go/v3/driver"

	"github.com/rohankatakam/graphbridge/internal/errors"
	"github.com/rohankatakam/graphbridge/internal/graph"
	"github.com/rohankatakam/graphbridge/internal/model"
)

// Adapter is the JanusGraph GraphAdapter. It holds one Gremlin Server client;
// each script selects its graph itself, so there is no current-graph state.
type Adapter struct {
	opts graph.Options

	// mu serializes operations and guards the fields below
	mu        sync.Mutex
	cfg       model.ConnectionConfig
	client    *gremlingo.Client
	connected atomic.Bool
}

var _ graph.GraphAdapter = (*Adapter)(nil)

// New creates a disconnected adapter that connects lazily with cfg
func New(cfg model.ConnectionConfig, opts ...graph.Option) *Adapter {
	if cfg.Kind == "" {
		cfg.Kind = model.BackendJanus
	}
	return &Adapter{
		cfg:  cfg,
		opts: graph.BuildOptions("janus", opts...),
	}
}

// Kind implements graph.GraphAdapter
func (a *Adapter) Kind() model.BackendKind { return model.BackendJanus }

// Config returns the connection config used for lazy connects
func (a *Adapter) Config() model.ConnectionConfig {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// IsConnected reports local handle presence only
func (a *Adapter) IsConnected() bool {
	return a.connected.Load()
}

// Connect closes any existing client and opens a new one
func (a *Adapter) Connect(ctx context.Context, cfg model.ConnectionConfig) error {
	_, err := graph.Observed(ctx, a.opts, &a.mu, graph.OpConnect, "Connect", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.connectLocked(cfg)
	})
	return err
}

// Disconnect closes the client. It is a no-op when already disconnected.
func (a *Adapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.releaseLocked()
	return nil
}

// TestConnection opens a throwaway client and evaluates 1+1
func (a *Adapter) TestConnection(ctx context.Context, cfg model.ConnectionConfig) error {
	if cfg.Kind == "" {
		cfg.Kind = model.BackendJanus
	}
	_, err := graph.Observed(ctx, a.opts, nil, graph.OpHealthCheck, "TestConnection", func(ctx context.Context) (struct{}, error) {
		client, err := openClient(cfg, a.opts.Logger)
		if err != nil {
			return struct{}{}, err
		}
		defer client.Close()

		rows, err := submit(client, testScript, nil, a.opts.Operations.Get(graph.OpHealthCheck).Timeout)
		if err != nil {
			return struct{}{}, errors.ConnectionFailure(err, "janus test script failed")
		}
		if len(rows) != 1 {
			return struct{}{}, errors.ConnectionFailure(nil, "janus test script returned %d rows", len(rows))
		}
		return struct{}{}, nil
	})
	return err
}

func (a *Adapter) connectLocked(cfg model.ConnectionConfig) error {
	if cfg.Kind == "" {
		cfg.Kind = model.BackendJanus
	}
	a.releaseLocked()
	a.cfg = cfg

	client, err := openClient(cfg, a.opts.Logger)
	if err != nil {
		return err
	}
	a.client = client
	a.connected.Store(true)

	a.opts.Logger.Info("janus adapter connected",
		"url", serverURL(cfg),
		"graph", cfg.Database)
	return nil
}

func (a *Adapter) releaseLocked() {
	if a.client == nil {
		return
	}
	a.client.Close()
	a.client = nil
	a.connected.Store(false)
	a.opts.Logger.Info("janus adapter disconnected")
}

// ensureConnectedLocked performs the lazy connect, keeping the connect
// failure in the chain.
func (a *Adapter) ensureConnectedLocked() error {
	if a.client != nil {
		return nil
	}
	if err := a.connectLocked(a.cfg); err != nil {
		return errors.NotConnected(err, "janus adapter has no usable client")
	}
	return nil
}

// graphName resolves the graph of a call. Empty means the server's own
// graph binding.
func (a *Adapter) graphName(name string) (string, error) {
	if name == "" {
		name = a.cfg.Database
	}
	if name == "" {
		return "", nil
	}
	if err := graph.ValidateIdentifier("graph", name); err != nil {
		return "", err
	}
	return name, nil
}

// evalLocked runs body against a graph with bindings. The graph binding is
// added when a configured graph is selected.
func (a *Adapter) evalLocked(class, graphName, body string, bindings map[string]any) ([]any, error) {
	name, err := a.graphName(graphName)
	if err != nil {
		return nil, err
	}
	if err := a.ensureConnectedLocked(); err != nil {
		return nil, err
	}
	if bindings == nil {
		bindings = make(map[string]any)
	}
	if name != "" {
		bindings[bindGraph] = name
	}
	return a.submitLocked(class, script(name, body), bindings)
}

// submitLocked runs a script that needs no graph selection
func (a *Adapter) submitLocked(class, text string, bindings map[string]any) ([]any, error) {
	if err := a.ensureConnectedLocked(); err != nil {
		return nil, err
	}
	a.opts.Logger.Debug("janus script", "script", truncate(text, 200))
	return submit(a.client, text, bindings, a.opts.Operations.Get(class).Timeout)
}

// serverURL builds the Gremlin Server websocket url. The scheme and path can
// be overridden with the "scheme" and "path" parameters.
func serverURL(cfg model.ConnectionConfig) string {
	return fmt.Sprintf("%s://%s%s", cfg.Param("scheme", "ws"), cfg.Address(), cfg.Param("path", "/gremlin"))
}

func openClient(cfg model.ConnectionConfig, logger *slog.Logger) (*gremlingo.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.ConnectionFailure(err, "invalid janus connection config")
	}
	if cfg.Kind != model.BackendJanus {
		return nil, errors.ConnectionFailure(nil, "config for %s passed to the janus adapter", cfg.Kind)
	}

	url := serverURL(cfg)
	client, err := gremlingo.NewClient(url, func(s *gremlingo.ClientSettings) {
		s.TraversalSource = "g"
		s.Logger = slogLogger{logger}
		s.LogVerbosity = gremlingo.Warning
		s.ConnectionTimeout = 15 * time.Second
		if cfg.Username != "" {
			s.AuthInfo = gremlingo.BasicAuthInfo(cfg.Username, cfg.Password)
		}
	})
	if err != nil {
		return nil, errors.ConnectionFailure(err, "failed to connect to gremlin server at %s", url)
	}
	return client, nil
}

// submit evaluates a script and reads every result. The server-side
// evaluation timeout mirrors the operation deadline.
func submit(client *gremlingo.Client, text string, bindings map[string]any, timeout time.Duration) ([]any, error) {
	b := new(gremlingo.RequestOptionsBuilder).SetBindings(bindings)
	if timeout > 0 {
		b = b.SetEvaluationTimeout(int(timeout.Milliseconds()))
	}
	rs, err := client.SubmitWithOptions(text, b.Create())
	if err != nil {
		return nil, classifySubmit(err)
	}
	results, err := rs.All()
	if err != nil {
		return nil, classifySubmit(err)
	}
	rows := make([]any, len(results))
	for i, r := range results {
		rows[i] = r.GetInterface()
	}
	return rows, nil
}

// classifySubmit separates transport failures from script failures
func classifySubmit(err error) error {
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "websocket", "dial", "broken pipe", "eof"} {
		if strings.Contains(msg, s) {
			return errors.ConnectionFailure(err, "gremlin server request failed")
		}
	}
	return errors.QueryExecution(err, "gremlin script failed")
}

// classify adds operation context to a script failure
func classify(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if e, ok := errors.AsError(err); ok {
		if e.Type == errors.ErrorTypeQueryExecution {
			return errors.QueryExecution(e, format, args...)
		}
		return err
	}
	return errors.QueryExecution(err, format, args...)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// slogLogger routes the gremlin client's log output to slog
type slogLogger struct {
	l *slog.Logger
}

var _ gremlingo.Logger = slogLogger{}

func (s slogLogger) Log(verbosity gremlingo.LogVerbosity, v ...interface{}) {
	s.log(verbosity, fmt.Sprint(v...))
}

func (s slogLogger) Logf(verbosity gremlingo.LogVerbosity, format string, v ...interface{}) {
	s.log(verbosity, fmt.Sprintf(format, v...))
}

func (s slogLogger) log(verbosity gremlingo.LogVerbosity, msg string) {
	switch verbosity {
	case gremlingo.Error:
		s.l.Error(msg, "source", "gremlin-go")
	case gremlingo.Warning:
		s.l.Warn(msg, "source", "gremlin-go")
	default:
		s.l.Debug(msg, "source", "gremlin-go")
	}
}
