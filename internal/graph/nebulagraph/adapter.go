// Package nebulagraph implements the graph capability set on NebulaGraph.
// Graphs are spaces, vertex types are tags and edge types are edge types.
// Vertex ids are minted uids; edges are identified by a composite of source,
// edge type, target and rank.
package nebulagraph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	nebula "github.com/vesoft-inc/nebula-go/v3"

	"github.com/rohankatakam/graphbridge/internal/errors"
	"github.com/rohankatakam/graphbridge/internal/graph"
	"github.com/rohankatakam/graphbridge/internal/model"
)

// Pool sizing for the connection pool
const (
	maxConnPoolSize = 10
	minConnPoolSize = 2
)

// Adapter is the NebulaGraph GraphAdapter. It holds one pool and one
// authenticated session; the session remembers the space last selected.
type Adapter struct {
	opts   graph.Options
	schema *graph.SchemaCache

	// mu serializes operations and guards the handle fields below
	mu           sync.Mutex
	cfg          model.ConnectionConfig
	pool         *nebula.ConnectionPool
	session      *nebula.Session
	currentSpace string
	connected    atomic.Bool
}

var _ graph.GraphAdapter = (*Adapter)(nil)

// New creates a disconnected adapter that connects lazily with cfg
func New(cfg model.ConnectionConfig, opts ...graph.Option) *Adapter {
	if cfg.Kind == "" {
		cfg.Kind = model.BackendNebula
	}
	o := graph.BuildOptions("nebula", opts...)
	return &Adapter{
		cfg:    cfg,
		opts:   o,
		schema: graph.NewSchemaCache(o.SchemaTTL),
	}
}

// Kind implements graph.GraphAdapter
func (a *Adapter) Kind() model.BackendKind { return model.BackendNebula }

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

// Connect releases any existing session and pool and opens new ones
func (a *Adapter) Connect(ctx context.Context, cfg model.ConnectionConfig) error {
	_, err := graph.Observed(ctx, a.opts, &a.mu, graph.OpConnect, "Connect", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.connectLocked(cfg)
	})
	return err
}

// Disconnect releases the session and pool. It is a no-op when already
// disconnected.
func (a *Adapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.releaseLocked()
	return nil
}

// TestConnection opens a throwaway pool and session and lists spaces
func (a *Adapter) TestConnection(ctx context.Context, cfg model.ConnectionConfig) error {
	if cfg.Kind == "" {
		cfg.Kind = model.BackendNebula
	}
	_, err := graph.Observed(ctx, a.opts, nil, graph.OpHealthCheck, "TestConnection", func(ctx context.Context) (struct{}, error) {
		pool, session, err := openSession(cfg, a.opts.Logger)
		if err != nil {
			return struct{}{}, err
		}
		defer pool.Close()
		defer session.Release()

		if _, err := execute(session, "SHOW SPACES"); err != nil {
			return struct{}{}, errors.ConnectionFailure(err, "nebula test query failed")
		}
		return struct{}{}, nil
	})
	return err
}

func (a *Adapter) connectLocked(cfg model.ConnectionConfig) error {
	if cfg.Kind == "" {
		cfg.Kind = model.BackendNebula
	}
	a.releaseLocked()
	a.cfg = cfg

	pool, session, err := openSession(cfg, a.opts.Logger)
	if err != nil {
		return err
	}
	a.pool = pool
	a.session = session
	a.connected.Store(true)

	a.opts.Logger.Info("nebula adapter connected",
		"address", cfg.Address(),
		"user", cfg.Username,
		"space", cfg.Database)
	return nil
}

func (a *Adapter) releaseLocked() {
	if a.pool == nil {
		return
	}
	if a.session != nil {
		a.session.Release()
	}
	a.pool.Close()
	a.session = nil
	a.pool = nil
	a.currentSpace = ""
	a.connected.Store(false)
	a.schema.Flush()
	a.opts.Logger.Info("nebula adapter disconnected")
}

// ensureConnectedLocked performs the lazy connect, keeping the connect
// failure in the chain.
func (a *Adapter) ensureConnectedLocked() error {
	if a.session != nil {
		return nil
	}
	if err := a.connectLocked(a.cfg); err != nil {
		return errors.NotConnected(err, "nebula adapter has no usable session")
	}
	return nil
}

// hasSpace reports whether a call names a space or one is configured
func (a *Adapter) hasSpace(graphName string) bool {
	return graphName != "" || a.cfg.Database != ""
}

// space resolves the graph name of a call to a space
func (a *Adapter) space(graphName string) (string, error) {
	if graphName == "" {
		graphName = a.cfg.Database
	}
	if graphName == "" {
		return "", errors.ValidationErrorf("no nebula space given and no default space configured")
	}
	if err := graph.ValidateIdentifier("space", graphName); err != nil {
		return "", err
	}
	return graphName, nil
}

// useLocked selects the space of a call. A freshly created space takes a
// heartbeat to become usable, so the switch is retried.
func (a *Adapter) useLocked(ctx context.Context, graphName string) (string, error) {
	if err := a.ensureConnectedLocked(); err != nil {
		return "", err
	}
	space, err := a.space(graphName)
	if err != nil {
		return "", err
	}
	if a.currentSpace == space {
		return space, nil
	}
	err = a.retrySchema(ctx, func() error {
		_, err := execute(a.session, "USE "+quote(space))
		return err
	})
	if err != nil {
		return "", classify(err, "failed to use space %s", space)
	}
	a.currentSpace = space
	return space, nil
}

// execLocked runs one statement on the adapter session
func (a *Adapter) execLocked(stmt string) (*nebula.ResultSet, error) {
	if err := a.ensureConnectedLocked(); err != nil {
		return nil, err
	}
	a.opts.Logger.Debug("nebula statement", "stmt", stmt)
	return execute(a.session, stmt)
}

// retrySchema retries fn while the error says schema changes have not
// reached the storage and graph services yet.
func (a *Adapter) retrySchema(ctx context.Context, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 3 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if !schemaPending(err) {
			return backoff.Permanent(err)
		}
		a.opts.Logger.Debug("nebula schema not yet visible, retrying", "attempt", attempt, "error", err)
		return err
	}, backoff.WithContext(b, ctx))
}

func openSession(cfg model.ConnectionConfig, logger *slog.Logger) (*nebula.ConnectionPool, *nebula.Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, errors.ConnectionFailure(err, "invalid nebula connection config")
	}
	if cfg.Kind != model.BackendNebula {
		return nil, nil, errors.ConnectionFailure(nil, "config for %s passed to the nebula adapter", cfg.Kind)
	}

	conf := nebula.GetDefaultConf()
	conf.MaxConnPoolSize = maxConnPoolSize
	conf.MinConnPoolSize = minConnPoolSize
	conf.TimeOut = 30 * time.Second

	hosts := []nebula.HostAddress{{Host: cfg.Host, Port: cfg.Port}}
	pool, err := nebula.NewConnectionPool(hosts, conf, slogLogger{logger})
	if err != nil {
		return nil, nil, errors.ConnectionFailure(err, "failed to create nebula pool for %s", cfg.Address())
	}
	session, err := pool.GetSession(cfg.Username, cfg.Password)
	if err != nil {
		pool.Close()
		return nil, nil, errors.ConnectionFailure(err, "failed to authenticate to nebula at %s", cfg.Address())
	}
	return pool, session, nil
}

// execute runs a statement and turns an unsuccessful result set into an
// error carrying the server's code and message.
func execute(session *nebula.Session, stmt string) (*nebula.ResultSet, error) {
	rs, err := session.Execute(stmt)
	if err != nil {
		return nil, errors.ConnectionFailure(err, "nebula request failed")
	}
	if !rs.IsSucceed() {
		return nil, errors.QueryExecution(nil, "%s", rs.GetErrorMsg()).
			WithContext("code", int(rs.GetErrorCode())).
			WithContext("stmt", truncate(stmt, 200))
	}
	return rs, nil
}

// classify adds operation context to a nebula failure
func classify(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if e, ok := errors.AsError(err); ok {
		if e.Type == errors.ErrorTypeQueryExecution && e.Cause == nil {
			return errors.QueryExecution(e, format, args...)
		}
		return err
	}
	return errors.QueryExecution(err, format, args...)
}

// schemaPending matches the errors nebula returns while a new space, tag,
// edge type or column is still propagating.
func schemaPending(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"not existed", "no schema found", "unknown column", "spacenotfound", "space was not chosen"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// slogLogger routes the nebula client's log output to slog
type slogLogger struct {
	l *slog.Logger
}

func (s slogLogger) Info(msg string)  { s.l.Debug(msg, "source", "nebula-go") }
func (s slogLogger) Warn(msg string)  { s.l.Warn(msg, "source", "nebula-go") }
func (s slogLogger) Error(msg string) { s.l.Error(msg, "source", "nebula-go") }

// Fatal logs at error level; the client library must not exit the process
func (s slogLogger) Fatal(msg string) {
	s.l.Error(fmt.Sprintf("fatal: %s", msg), "source", "nebula-go")
}
