package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/graphbridge/internal/graph"
	"github.com/rohankatakam/graphbridge/internal/model"
)

var (
	typeProps       []string
	typeDescription string
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Inspect and change vertex and edge types",
}

var schemaShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the vertex and edge types of a graph",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdapter(cmd, func(ctx context.Context, a graph.GraphAdapter) error {
			schema, err := a.GetGraphSchema(ctx, graphFlag)
			if err != nil {
				return err
			}
			return render(schema)
		})
	},
}

var schemaCreateVertexTypeCmd = &cobra.Command{
	Use:   "create-vertex-type [name]",
	Short: "Create a vertex type (tag, label) with optional properties",
	Long: `Create a vertex type. Properties are given as name:type[:indexed][:required]
with type one of string, long, double, boolean, date, datetime, list, map.

Examples:
  gbridge schema create-vertex-type Person --prop name:string:indexed --prop age:long
  gbridge -b nebula -g social schema create-vertex-type City`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return createType(cmd, model.LabelVertex, args[0])
	},
}

var schemaCreateEdgeTypeCmd = &cobra.Command{
	Use:   "create-edge-type [name]",
	Short: "Create an edge type with optional properties",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return createType(cmd, model.LabelEdge, args[0])
	},
}

var schemaDeleteVertexTypeCmd = &cobra.Command{
	Use:   "delete-vertex-type [name]",
	Short: "Delete a vertex type, or only its vertices where types cannot be dropped",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return deleteType(cmd, model.LabelVertex, args[0])
	},
}

var schemaDeleteEdgeTypeCmd = &cobra.Command{
	Use:   "delete-edge-type [name]",
	Short: "Delete an edge type, or only its edges where types cannot be dropped",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return deleteType(cmd, model.LabelEdge, args[0])
	},
}

func init() {
	for _, c := range []*cobra.Command{schemaCreateVertexTypeCmd, schemaCreateEdgeTypeCmd} {
		c.Flags().StringArrayVar(&typeProps, "prop", nil, "property definition name:type[:indexed][:required] (repeatable)")
		c.Flags().StringVar(&typeDescription, "description", "", "type description")
	}

	schemaCmd.AddCommand(schemaShowCmd)
	schemaCmd.AddCommand(schemaCreateVertexTypeCmd)
	schemaCmd.AddCommand(schemaCreateEdgeTypeCmd)
	schemaCmd.AddCommand(schemaDeleteVertexTypeCmd)
	schemaCmd.AddCommand(schemaDeleteEdgeTypeCmd)
}

func createType(cmd *cobra.Command, kind model.LabelKind, name string) error {
	props, err := parsePropertyDefs(typeProps)
	if err != nil {
		return err
	}
	t := model.LabelType{Name: name, Kind: kind, Properties: props, Description: typeDescription}

	return withAdapter(cmd, func(ctx context.Context, a graph.GraphAdapter) error {
		if kind == model.LabelVertex {
			err = a.CreateVertexType(ctx, graphFlag, t)
		} else {
			err = a.CreateEdgeType(ctx, graphFlag, t)
		}
		if err != nil {
			return err
		}
		statusLine("created %s type %s", kind, name)
		return nil
	})
}

func deleteType(cmd *cobra.Command, kind model.LabelKind, name string) error {
	return withAdapter(cmd, func(ctx context.Context, a graph.GraphAdapter) error {
		var (
			res *model.TypeDeletion
			err error
		)
		if kind == model.LabelVertex {
			res, err = a.DeleteVertexType(ctx, graphFlag, name)
		} else {
			res, err = a.DeleteEdgeType(ctx, graphFlag, name)
		}
		if err != nil {
			return err
		}
		if res.Partial() {
			logger.Warnf("%s keeps no separate definition for %s; only its instances were removed", a.Kind(), name)
		}
		return render(res)
	})
}
