package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/graphbridge/internal/graph"
)

var (
	propsJSON  string
	propPairs  []string
	labelFlag  string
	sourceFlag string
	targetFlag string
)

var vertexCmd = &cobra.Command{
	Use:   "vertex",
	Short: "Create, read, update, delete and list vertices",
}

var edgeCmd = &cobra.Command{
	Use:   "edge",
	Short: "Create, read, update, delete and list edges",
}

var vertexCreateCmd = &cobra.Command{
	Use:   "create [label]",
	Short: "Create a vertex",
	Long: `Create a vertex with a freshly minted uid.

Examples:
  gbridge vertex create Person --prop name=Alice --prop age=30
  gbridge vertex create Person --props '{"tags": ["a", "b"]}'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		props, err := parseProps(propsJSON, propPairs)
		if err != nil {
			return err
		}
		return withAdapter(cmd, func(ctx context.Context, a graph.GraphAdapter) error {
			v, err := a.CreateVertex(ctx, graphFlag, args[0], props)
			if err != nil {
				return err
			}
			return render(v)
		})
	},
}

var vertexGetCmd = &cobra.Command{
	Use:   "get [uid]",
	Short: "Get a vertex by uid",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdapter(cmd, func(ctx context.Context, a graph.GraphAdapter) error {
			v, err := a.GetVertex(ctx, graphFlag, args[0])
			if err != nil {
				return err
			}
			return render(v)
		})
	},
}

var vertexUpdateCmd = &cobra.Command{
	Use:   "update [uid]",
	Short: "Merge properties into a vertex",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		props, err := parseProps(propsJSON, propPairs)
		if err != nil {
			return err
		}
		return withAdapter(cmd, func(ctx context.Context, a graph.GraphAdapter) error {
			v, err := a.UpdateVertex(ctx, graphFlag, args[0], props)
			if err != nil {
				return err
			}
			return render(v)
		})
	},
}

var vertexDeleteCmd = &cobra.Command{
	Use:   "delete [uid]",
	Short: "Delete a vertex and its edges",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdapter(cmd, func(ctx context.Context, a graph.GraphAdapter) error {
			if err := a.DeleteVertex(ctx, graphFlag, args[0]); err != nil {
				return err
			}
			statusLine("deleted vertex %s", args[0])
			return nil
		})
	},
}

var vertexListCmd = &cobra.Command{
	Use:   "list",
	Short: "List vertices, optionally of one label (capped by limits.row_cap)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdapter(cmd, func(ctx context.Context, a graph.GraphAdapter) error {
			vs, err := a.QueryVertices(ctx, graphFlag, labelFlag)
			if err != nil {
				return err
			}
			return render(vs)
		})
	},
}

var edgeCreateCmd = &cobra.Command{
	Use:   "create [label]",
	Short: "Create an edge between two existing vertices",
	Long: `Create an edge. Both endpoints must exist.

Examples:
  gbridge edge create KNOWS --from <uid> --to <uid> --prop since=2020`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		props, err := parseProps(propsJSON, propPairs)
		if err != nil {
			return err
		}
		return withAdapter(cmd, func(ctx context.Context, a graph.GraphAdapter) error {
			e, err := a.CreateEdge(ctx, graphFlag, args[0], sourceFlag, targetFlag, props)
			if err != nil {
				return err
			}
			return render(e)
		})
	},
}

var edgeGetCmd = &cobra.Command{
	Use:   "get [uid]",
	Short: "Get an edge by uid",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdapter(cmd, func(ctx context.Context, a graph.GraphAdapter) error {
			e, err := a.GetEdge(ctx, graphFlag, args[0])
			if err != nil {
				return err
			}
			return render(e)
		})
	},
}

var edgeUpdateCmd = &cobra.Command{
	Use:   "update [uid]",
	Short: "Merge properties into an edge",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		props, err := parseProps(propsJSON, propPairs)
		if err != nil {
			return err
		}
		return withAdapter(cmd, func(ctx context.Context, a graph.GraphAdapter) error {
			e, err := a.UpdateEdge(ctx, graphFlag, args[0], props)
			if err != nil {
				return err
			}
			return render(e)
		})
	},
}

var edgeDeleteCmd = &cobra.Command{
	Use:   "delete [uid]",
	Short: "Delete an edge",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdapter(cmd, func(ctx context.Context, a graph.GraphAdapter) error {
			if err := a.DeleteEdge(ctx, graphFlag, args[0]); err != nil {
				return err
			}
			statusLine("deleted edge %s", args[0])
			return nil
		})
	},
}

var edgeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List edges, optionally of one label (capped by limits.row_cap)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdapter(cmd, func(ctx context.Context, a graph.GraphAdapter) error {
			es, err := a.QueryEdges(ctx, graphFlag, labelFlag)
			if err != nil {
				return err
			}
			return render(es)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{vertexCreateCmd, vertexUpdateCmd, edgeCreateCmd, edgeUpdateCmd} {
		c.Flags().StringVar(&propsJSON, "props", "", "properties as a JSON object")
		c.Flags().StringArrayVar(&propPairs, "prop", nil, "property key=value; values parse as JSON when possible (repeatable)")
	}
	for _, c := range []*cobra.Command{vertexListCmd, edgeListCmd} {
		c.Flags().StringVarP(&labelFlag, "label", "l", "", "only elements of this label")
	}
	edgeCreateCmd.Flags().StringVar(&sourceFlag, "from", "", "source vertex uid")
	edgeCreateCmd.Flags().StringVar(&targetFlag, "to", "", "target vertex uid")
	_ = edgeCreateCmd.MarkFlagRequired("from")
	_ = edgeCreateCmd.MarkFlagRequired("to")

	vertexCmd.AddCommand(vertexCreateCmd, vertexGetCmd, vertexUpdateCmd, vertexDeleteCmd, vertexListCmd)
	edgeCmd.AddCommand(edgeCreateCmd, edgeGetCmd, edgeUpdateCmd, edgeDeleteCmd, edgeListCmd)
}
