package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/graphbridge/internal/graph"
	"github.com/rohankatakam/graphbridge/internal/model"
)

var pingAll bool

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that a backend is reachable",
	Long: `Open a throwaway session and run the backend's health probe.

Examples:
  gbridge ping -b nebula
  gbridge ping --all`,
	Args: cobra.NoArgs,
	RunE: runPing,
}

var graphsCmd = &cobra.Command{
	Use:   "graphs",
	Short: "List, create and delete databases, spaces or graphs",
}

var graphsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the graphs of a backend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdapter(cmd, func(ctx context.Context, a graph.GraphAdapter) error {
			names, err := a.ListGraphs(ctx)
			if err != nil {
				return err
			}
			return render(names)
		})
	},
}

var graphsCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a graph if it does not exist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdapter(cmd, func(ctx context.Context, a graph.GraphAdapter) error {
			if err := a.CreateGraph(ctx, args[0]); err != nil {
				return err
			}
			statusLine("created graph %s on %s", args[0], a.Kind())
			return nil
		})
	},
}

var graphsDeleteCmd = &cobra.Command{
	Use:   "delete [name]",
	Short: "Delete a graph and everything in it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdapter(cmd, func(ctx context.Context, a graph.GraphAdapter) error {
			if err := a.DeleteGraph(ctx, args[0]); err != nil {
				return err
			}
			statusLine("deleted graph %s on %s", args[0], a.Kind())
			return nil
		})
	},
}

func init() {
	pingCmd.Flags().BoolVar(&pingAll, "all", false, "ping every configured backend in parallel")

	graphsCmd.AddCommand(graphsListCmd)
	graphsCmd.AddCommand(graphsCreateCmd)
	graphsCmd.AddCommand(graphsDeleteCmd)
}

type pingResult struct {
	Backend model.BackendKind `json:"backend" yaml:"backend"`
	Address string            `json:"address" yaml:"address"`
	OK      bool              `json:"ok" yaml:"ok"`
	Error   string            `json:"error,omitempty" yaml:"error,omitempty"`
}

func runPing(cmd *cobra.Command, args []string) error {
	conns := cfg.Connections()
	if !pingAll {
		kind, err := selectedBackend()
		if err != nil {
			return err
		}
		conns = map[model.BackendKind]model.ConnectionConfig{kind: conns[kind]}
	}

	start := time.Now()
	results := reg.TestAll(cmd.Context(), conns)
	logger.Debugf("pinged %d backends in %s", len(results), time.Since(start))

	out := make([]pingResult, 0, len(results))
	failed := 0
	for _, kind := range model.AllBackends {
		err, ok := results[kind]
		if !ok {
			continue
		}
		r := pingResult{Backend: kind, Address: conns[kind].Address(), OK: err == nil}
		if err != nil {
			r.Error = err.Error()
			failed++
		}
		out = append(out, r)
	}
	if err := render(out); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d backends unreachable", failed, len(out))
	}
	return nil
}
