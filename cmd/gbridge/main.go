package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rohankatakam/graphbridge/internal/config"
	"github.com/rohankatakam/graphbridge/internal/graph"
	"github.com/rohankatakam/graphbridge/internal/logging"
	"github.com/rohankatakam/graphbridge/internal/model"
	"github.com/rohankatakam/graphbridge/internal/registry"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile      string
	verbose      bool
	backendFlag  string
	graphFlag    string
	outputFormat string

	logger  *logrus.Logger
	cfg     *config.Config
	reg     *registry.Registry
	monitor *graph.OperationMonitor
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gbridge",
	Short: "graphbridge - one interface over Neo4j, NebulaGraph and JanusGraph",
	Long: `gbridge runs graph operations and native queries against Neo4j,
NebulaGraph and JanusGraph through a single capability set, and prints
normalized results as YAML or JSON.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logrus.New()
		logger.SetOutput(os.Stderr)
		if verbose {
			logger.SetLevel(logrus.DebugLevel)
		} else {
			logger.SetLevel(logrus.InfoLevel)
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			logger.WithError(err).Warn("Failed to load config, using defaults")
			cfg = config.Default()
		}

		logCfg := cfg.Logging()
		if verbose {
			logCfg.Level = logging.DEBUG
		}
		if err := logging.Initialize(logCfg); err != nil {
			return err
		}

		monitor = graph.NewOperationMonitor(nil)
		reg = registry.New(registry.Options{
			Configs:        cfg.Connections(),
			OpsPerSecond:   cfg.Limits.OpsPerSecond,
			Burst:          cfg.Limits.Burst,
			AdapterOptions: append(cfg.AdapterOptions(), graph.WithMonitor(monitor)),
		})
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if reg == nil {
			return nil
		}
		if verbose {
			monitor.LogSummary()
		}
		err := reg.Close(context.WithoutCancel(cmd.Context()))
		_ = logging.Close()
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .gbridge/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&backendFlag, "backend", "b", "neo4j", "backend kind: neo4j, nebula or janus")
	rootCmd.PersistentFlags().StringVarP(&graphFlag, "graph", "g", "", "database, space or graph (default: the configured one)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "yaml", "output format: yaml or json")

	rootCmd.SetVersionTemplate(`gbridge {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(graphsCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(vertexCmd)
	rootCmd.AddCommand(edgeCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(statsCmd)
}

// selectedBackend parses --backend
func selectedBackend() (model.BackendKind, error) {
	return model.ParseBackendKind(backendFlag)
}

// withAdapter runs one logical operation on the selected backend through the
// registry
func withAdapter(cmd *cobra.Command, op func(ctx context.Context, a graph.GraphAdapter) error) error {
	kind, err := selectedBackend()
	if err != nil {
		return err
	}
	logger.WithField("backend", kind).Debugf("running %s", cmd.CommandPath())
	return reg.Do(cmd.Context(), kind, model.ConnectionConfig{}, op)
}
