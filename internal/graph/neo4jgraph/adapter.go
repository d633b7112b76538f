// Package neo4jgraph implements the graph capability set on Neo4j over the
// bolt driver. Vertices and edges carry a synthetic uid property because
// Neo4j element ids may be reused after deletion.
package neo4jgraph

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/rohankatakam/graphbridge/internal/errors"
	"github.com/rohankatakam/graphbridge/internal/graph"
	"github.com/rohankatakam/graphbridge/internal/model"
)

// systemDatabase hosts database administration commands
const systemDatabase = "system"

// Adapter is the Neo4j GraphAdapter. It holds one driver and one session; the
// session is bound to the database of the last graph used.
type Adapter struct {
	opts graph.Options

	// mu serializes operations and guards the handle fields below
	mu           sync.Mutex
	cfg          model.ConnectionConfig
	driver       neo4j.DriverWithContext
	session      neo4j.SessionWithContext
	currentGraph string
	connected    atomic.Bool
}

var _ graph.GraphAdapter = (*Adapter)(nil)

// New creates a disconnected adapter that connects lazily with cfg
func New(cfg model.ConnectionConfig, opts ...graph.Option) *Adapter {
	if cfg.Kind == "" {
		cfg.Kind = model.BackendNeo4j
	}
	return &Adapter{
		cfg:  cfg,
		opts: graph.BuildOptions("neo4j", opts...),
	}
}

// Kind implements graph.GraphAdapter
func (a *Adapter) Kind() model.BackendKind { return model.BackendNeo4j }

// Config returns the connection config used for lazy connects
func (a *Adapter) Config() model.ConnectionConfig {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// IsConnected reports local handle presence only; it does not reach the server.
func (a *Adapter) IsConnected() bool {
	return a.connected.Load()
}

// Connect releases any existing handle and opens a new one with cfg
func (a *Adapter) Connect(ctx context.Context, cfg model.ConnectionConfig) error {
	_, err := graph.Observed(ctx, a.opts, &a.mu, graph.OpConnect, "Connect", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.connectLocked(ctx, cfg)
	})
	return err
}

// Disconnect releases the session and driver. It is a no-op when already
// disconnected.
func (a *Adapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.releaseLocked(ctx)
}

// TestConnection opens a throwaway driver, runs one trivial read and closes
// it. The adapter's own handle is never touched.
func (a *Adapter) TestConnection(ctx context.Context, cfg model.ConnectionConfig) error {
	if cfg.Kind == "" {
		cfg.Kind = model.BackendNeo4j
	}
	_, err := graph.Observed(ctx, a.opts, nil, graph.OpHealthCheck, "TestConnection", func(ctx context.Context) (struct{}, error) {
		driver, err := openDriver(ctx, cfg)
		if err != nil {
			return struct{}{}, err
		}
		defer driver.Close(ctx)

		session := driver.NewSession(ctx, neo4j.SessionConfig{
			DatabaseName: cfg.Database,
			AccessMode:   neo4j.AccessModeRead,
		})
		defer session.Close(ctx)

		result, err := session.Run(ctx, "RETURN 1 AS test", nil)
		if err != nil {
			return struct{}{}, errors.ConnectionFailure(err, "neo4j test query failed")
		}
		if _, err := result.Consume(ctx); err != nil {
			return struct{}{}, errors.ConnectionFailure(err, "neo4j test query failed")
		}
		return struct{}{}, nil
	})
	return err
}

func (a *Adapter) connectLocked(ctx context.Context, cfg model.ConnectionConfig) error {
	if cfg.Kind == "" {
		cfg.Kind = model.BackendNeo4j
	}
	if err := a.releaseLocked(ctx); err != nil {
		a.opts.Logger.Warn("failed to release previous neo4j handle", "error", err)
	}
	a.cfg = cfg

	driver, err := openDriver(ctx, cfg)
	if err != nil {
		return err
	}
	a.driver = driver
	a.connected.Store(true)

	a.opts.Logger.Info("neo4j adapter connected",
		"address", cfg.Address(),
		"user", cfg.Username,
		"database", cfg.Database)
	return nil
}

func (a *Adapter) releaseLocked(ctx context.Context) error {
	if a.driver == nil {
		return nil
	}
	var sessionErr error
	if a.session != nil {
		sessionErr = a.session.Close(ctx)
	}
	driverErr := a.driver.Close(ctx)
	a.session = nil
	a.driver = nil
	a.currentGraph = ""
	a.connected.Store(false)

	if driverErr != nil {
		return errors.ConnectionFailure(driverErr, "failed to close neo4j driver")
	}
	if sessionErr != nil {
		return errors.ConnectionFailure(sessionErr, "failed to close neo4j session")
	}
	a.opts.Logger.Info("neo4j adapter disconnected")
	return nil
}

// ensureConnectedLocked performs the lazy connect. The connect failure stays
// in the chain, so callers can match both NotConnected and the original kind.
func (a *Adapter) ensureConnectedLocked(ctx context.Context) error {
	if a.driver != nil {
		return nil
	}
	if err := a.connectLocked(ctx, a.cfg); err != nil {
		return errors.NotConnected(err, "neo4j adapter has no usable session")
	}
	return nil
}

// sessionLocked returns the adapter session bound to the graph's database,
// replacing the session when the graph changes.
func (a *Adapter) sessionLocked(ctx context.Context, graphName string) (neo4j.SessionWithContext, error) {
	if err := a.ensureConnectedLocked(ctx); err != nil {
		return nil, err
	}
	db := a.database(graphName)
	if a.session != nil && a.currentGraph == db {
		return a.session, nil
	}
	if a.session != nil {
		if err := a.session.Close(ctx); err != nil {
			a.opts.Logger.Warn("failed to close neo4j session", "database", a.currentGraph, "error", err)
		}
	}
	a.session = a.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: db})
	a.currentGraph = db
	return a.session, nil
}

func (a *Adapter) database(graphName string) string {
	if graphName != "" {
		return graphName
	}
	return a.cfg.Database
}

func openDriver(ctx context.Context, cfg model.ConnectionConfig) (neo4j.DriverWithContext, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.ConnectionFailure(err, "invalid neo4j connection config")
	}
	if cfg.Kind != model.BackendNeo4j {
		return nil, errors.ConnectionFailure(nil, "config for %s passed to the neo4j adapter", cfg.Kind)
	}

	uri := fmt.Sprintf("%s://%s", cfg.Param("scheme", "neo4j"), cfg.Address())
	driver, err := neo4j.NewDriverWithContext(uri,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
		func(config *neo4j.Config) {
			config.MaxConnectionPoolSize = 10
			config.ConnectionAcquisitionTimeout = 30 * time.Second
			config.MaxConnectionLifetime = time.Hour
			config.SocketConnectTimeout = 5 * time.Second
			config.SocketKeepalive = true
		})
	if err != nil {
		return nil, errors.ConnectionFailure(err, "failed to create neo4j driver for %s", uri)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, errors.ConnectionFailure(err, "failed to connect to neo4j at %s", uri)
	}
	return driver, nil
}

// txConfig converts an operation class into neo4j transaction options
func txConfig(oc graph.OperationConfig) []func(*neo4j.TransactionConfig) {
	configs := []func(*neo4j.TransactionConfig){}
	if oc.Timeout > 0 {
		configs = append(configs, neo4j.WithTxTimeout(oc.Timeout))
	}
	if len(oc.Metadata) > 0 {
		configs = append(configs, neo4j.WithTxMetadata(oc.Metadata))
	}
	return configs
}

// readLocked runs fn in an explicit transaction that is always rolled back,
// on success and on error alike.
func (a *Adapter) readLocked(ctx context.Context, graphName string, fn func(neo4j.ExplicitTransaction) error) error {
	session, err := a.sessionLocked(ctx, graphName)
	if err != nil {
		return err
	}
	tx, err := session.BeginTransaction(ctx, txConfig(a.opts.Operations.Get(graph.OpRead))...)
	if err != nil {
		return classify(err, "failed to begin neo4j read transaction")
	}
	defer func() {
		if cerr := tx.Close(ctx); cerr != nil {
			a.opts.Logger.Debug("neo4j read transaction close failed", "error", cerr)
		}
	}()
	return fn(tx)
}

// writeLocked runs fn as a managed write transaction with driver retries
func (a *Adapter) writeLocked(ctx context.Context, graphName, class string, fn neo4j.ManagedTransactionWork) (any, error) {
	session, err := a.sessionLocked(ctx, graphName)
	if err != nil {
		return nil, err
	}
	return session.ExecuteWrite(ctx, fn, txConfig(a.opts.Operations.Get(class))...)
}

// autoCommitLocked runs a single statement outside an explicit transaction,
// as schema and administration commands require, and consumes its result.
func (a *Adapter) autoCommitLocked(ctx context.Context, session neo4j.SessionWithContext, class, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	result, err := session.Run(ctx, cypher, params, txConfig(a.opts.Operations.Get(class))...)
	if err != nil {
		return nil, err
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// systemSessionLocked opens a short-lived session on the system database for
// database administration. The caller closes it.
func (a *Adapter) systemSessionLocked(ctx context.Context) (neo4j.SessionWithContext, error) {
	if err := a.ensureConnectedLocked(ctx); err != nil {
		return nil, err
	}
	return a.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: systemDatabase}), nil
}
