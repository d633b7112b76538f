package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/graphbridge/internal/errors"
	"github.com/rohankatakam/graphbridge/internal/graph"
	"github.com/rohankatakam/graphbridge/internal/model"
	"github.com/rohankatakam/graphbridge/internal/registry"
	"github.com/rohankatakam/graphbridge/internal/stats"
)

var (
	queryLang string
	queryFile string
	statsAll  bool
)

var queryCmd = &cobra.Command{
	Use:   "query [query]",
	Short: "Run a native query and print the normalized result",
	Long: `Run a Cypher, nGQL or Gremlin query against the selected backend. The
language defaults to the backend's own; a mismatched --lang is rejected
before anything is sent. Use --file - to read the query from stdin.

Examples:
  gbridge query 'MATCH p=(a)-[r]->(b) RETURN p LIMIT 5'
  gbridge -b nebula -g social query --lang GQL 'MATCH (v:Person) RETURN v'
  gbridge -b janus query "g.V().hasLabel('Person').limit(3)"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runQuery,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count vertices and edges per type and summarize degrees",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	queryCmd.Flags().StringVar(&queryLang, "lang", "", "query language tag: cypher, ngql (GQL) or gremlin")
	queryCmd.Flags().StringVarP(&queryFile, "file", "f", "", "read the query from a file (- for stdin)")
	statsCmd.Flags().BoolVar(&statsAll, "all", false, "collect from every backend in parallel")
}

func readQuery(args []string) (string, error) {
	switch {
	case queryFile == "-":
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	case queryFile != "":
		data, err := os.ReadFile(queryFile)
		if err != nil {
			return "", fmt.Errorf("read query file: %w", err)
		}
		return string(data), nil
	case len(args) == 1:
		return args[0], nil
	}
	return "", errors.ValidationErrorf("give the query as an argument or with --file")
}

func runQuery(cmd *cobra.Command, args []string) error {
	kind, err := selectedBackend()
	if err != nil {
		return err
	}
	query, err := readQuery(args)
	if err != nil {
		return err
	}
	lang := queryLang
	if lang == "" {
		lang = string(kind.QueryLanguage())
	}

	res, err := reg.NativeQuery(cmd.Context(), kind, model.ConnectionConfig{}, graphFlag, lang, query)
	if err != nil {
		if st, ok := graph.QueryStatisticsOf(err); ok {
			logger.WithField("execution_time_ms", st.ExecutionTimeMs).Debug("query failed")
		}
		return err
	}
	if perr := res.Partial(); perr != nil {
		logger.Warn(perr.Error())
	}
	for _, w := range res.Warnings {
		logger.Warn(w)
	}
	return render(res)
}

func runStats(cmd *cobra.Command, args []string) error {
	opts := stats.Options{RowCap: cfg.Limits.RowCap}

	if statsAll {
		graphs := make(map[model.BackendKind]string, len(model.AllBackends))
		for _, kind := range model.AllBackends {
			graphs[kind] = graphFlag
		}
		results := stats.CollectAll(cmd.Context(), reg, graphs, opts)

		out := make([]*stats.GraphStats, 0, len(results))
		var failures []string
		for _, kind := range model.AllBackends {
			r := results[kind]
			if r.Err != nil {
				logger.WithError(r.Err).WithField("backend", kind).Warn("statistics unavailable")
				failures = append(failures, string(kind))
				continue
			}
			out = append(out, r.Stats)
		}
		if err := render(out); err != nil {
			return err
		}
		if len(failures) == len(model.AllBackends) {
			return fmt.Errorf("no backend returned statistics (%s)", strings.Join(failures, ", "))
		}
		return nil
	}

	kind, err := selectedBackend()
	if err != nil {
		return err
	}
	st, err := registry.Run(cmd.Context(), reg, kind, model.ConnectionConfig{}, func(ctx context.Context, a graph.GraphAdapter) (*stats.GraphStats, error) {
		return stats.Collect(ctx, a, graphFlag, opts)
	})
	if err != nil {
		return err
	}
	return render(st)
}
