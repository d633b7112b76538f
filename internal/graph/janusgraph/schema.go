package janusgraph

import (
	"context"
	"fmt"
	"sort"

	"github.com/rohankatakam/graphbridge/internal/errors"
	"github.com/rohankatakam/graphbridge/internal/graph"
	"github.com/rohankatakam/graphbridge/internal/model"
)

// ListGraphs returns the names known to ConfiguredGraphFactory
func (a *Adapter) ListGraphs(ctx context.Context) ([]string, error) {
	return graph.Observed(ctx, a.opts, &a.mu, graph.OpRead, "ListGraphs", func(ctx context.Context) ([]string, error) {
		rows, err := a.submitLocked(graph.OpRead, listGraphsScript, nil)
		if err != nil {
			return nil, classify(err, "failed to list janus graphs")
		}
		names := make([]string, 0, len(rows))
		for _, r := range rows {
			if s, ok := r.(string); ok {
				names = append(names, s)
			}
		}
		sort.Strings(names)
		return names, nil
	})
}

// CreateGraph creates a configured graph. Storage parameters of the
// connection config become its configuration; without them the server's
// template is used. An existing graph is left alone.
func (a *Adapter) CreateGraph(ctx context.Context, graphName string) error {
	if err := graph.ValidateIdentifier("graph", graphName); err != nil {
		return err
	}
	_, err := graph.Observed(ctx, a.opts, &a.mu, graph.OpSchema, "CreateGraph", func(ctx context.Context) (struct{}, error) {
		conf, err := storageConfig(a.cfg)
		if err != nil {
			return struct{}{}, err
		}
		rows, err := a.submitLocked(graph.OpSchema, createGraphScript, map[string]any{bindName: graphName, bindConfig: conf})
		if err != nil {
			return struct{}{}, classify(err, "failed to create janus graph %s", graphName)
		}
		if created, _ := first(rows).(bool); created {
			a.opts.Logger.Info("janus graph created", "graph", graphName, "storage", conf["storage.backend"])
		}
		return struct{}{}, nil
	})
	return err
}

// DeleteGraph drops a configured graph and its data. A missing graph is not
// an error.
func (a *Adapter) DeleteGraph(ctx context.Context, graphName string) error {
	if err := graph.ValidateIdentifier("graph", graphName); err != nil {
		return err
	}
	_, err := graph.Observed(ctx, a.opts, &a.mu, graph.OpSchema, "DeleteGraph", func(ctx context.Context) (struct{}, error) {
		if _, err := a.submitLocked(graph.OpSchema, deleteGraphScript, map[string]any{bindName: graphName}); err != nil {
			return struct{}{}, classify(err, "failed to drop janus graph %s", graphName)
		}
		return struct{}{}, nil
	})
	return err
}

// GetGraphSchema implements graph.GraphAdapter
func (a *Adapter) GetGraphSchema(ctx context.Context, graphName string) (*model.GraphSchema, error) {
	return graph.Observed(ctx, a.opts, &a.mu, graph.OpRead, "GetGraphSchema", func(ctx context.Context) (*model.GraphSchema, error) {
		vertexTypes, err := a.typesLocked(graphName, model.LabelVertex)
		if err != nil {
			return nil, err
		}
		edgeTypes, err := a.typesLocked(graphName, model.LabelEdge)
		if err != nil {
			return nil, err
		}
		name, _ := a.graphName(graphName)
		return &model.GraphSchema{
			GraphName:   name,
			Backend:     model.BackendJanus,
			VertexTypes: vertexTypes,
			EdgeTypes:   edgeTypes,
		}, nil
	})
}

// GetVertexTypes implements graph.GraphAdapter
func (a *Adapter) GetVertexTypes(ctx context.Context, graphName string) ([]model.LabelType, error) {
	return graph.Observed(ctx, a.opts, &a.mu, graph.OpRead, "GetVertexTypes", func(ctx context.Context) ([]model.LabelType, error) {
		return a.typesLocked(graphName, model.LabelVertex)
	})
}

// GetEdgeTypes implements graph.GraphAdapter
func (a *Adapter) GetEdgeTypes(ctx context.Context, graphName string) ([]model.LabelType, error) {
	return graph.Observed(ctx, a.opts, &a.mu, graph.OpRead, "GetEdgeTypes", func(ctx context.Context) ([]model.LabelType, error) {
		return a.typesLocked(graphName, model.LabelEdge)
	})
}

// CreateVertexType makes the vertex label and the property keys and indexes
// it declares. Janus schema is add-only, so an existing label is kept as is.
func (a *Adapter) CreateVertexType(ctx context.Context, graphName string, t model.LabelType) error {
	return a.createType(ctx, graphName, t, model.LabelVertex, "CreateVertexType")
}

// CreateEdgeType makes the edge label, see CreateVertexType
func (a *Adapter) CreateEdgeType(ctx context.Context, graphName string, t model.LabelType) error {
	return a.createType(ctx, graphName, t, model.LabelEdge, "CreateEdgeType")
}

func (a *Adapter) createType(ctx context.Context, graphName string, t model.LabelType, kind model.LabelKind, opName string) error {
	if err := graph.ValidateIdentifier("label", t.Name); err != nil {
		return err
	}
	for _, p := range t.Properties {
		if err := graph.ValidateIdentifier("property", p.Name); err != nil {
			return err
		}
	}
	t.Kind = kind

	_, err := graph.Observed(ctx, a.opts, &a.mu, graph.OpSchema, opName, func(ctx context.Context) (struct{}, error) {
		body := fmt.Sprintf(createTypeScript, elementClass(kind))
		bindings := map[string]any{bindName: t.Name, bindProps: typeProps(t)}
		if _, err := a.evalLocked(graph.OpSchema, graphName, body, bindings); err != nil {
			return struct{}{}, classify(err, "failed to create janus %s label %s", kind, t.Name)
		}
		return struct{}{}, nil
	})
	return err
}

// DeleteVertexType is not supported: janus cannot remove a vertex label
func (a *Adapter) DeleteVertexType(ctx context.Context, graphName, name string) (*model.TypeDeletion, error) {
	return nil, errors.Unsupported("janusgraph cannot delete vertex label %q", name).
		WithContext("kind", string(model.LabelVertex))
}

// DeleteEdgeType is not supported: janus cannot remove an edge label
func (a *Adapter) DeleteEdgeType(ctx context.Context, graphName, name string) (*model.TypeDeletion, error) {
	return nil, errors.Unsupported("janusgraph cannot delete edge label %q", name).
		WithContext("kind", string(model.LabelEdge))
}

func elementClass(kind model.LabelKind) string {
	if kind == model.LabelEdge {
		return "Edge"
	}
	return "Vertex"
}

func (a *Adapter) typesLocked(graphName string, kind model.LabelKind) ([]model.LabelType, error) {
	labelClass := "VertexLabel"
	if kind == model.LabelEdge {
		labelClass = "EdgeLabel"
	}
	rows, err := a.evalLocked(graph.OpRead, graphName, fmt.Sprintf(typesScript, labelClass, elementClass(kind)), nil)
	if err != nil {
		return nil, classify(err, "failed to read janus %s labels", kind)
	}
	types := make([]model.LabelType, 0, len(rows))
	for _, r := range rows {
		t, ok := labelTypeOf(r, kind)
		if ok {
			types = append(types, t)
		}
	}
	sort.Slice(types, func(i, j int) bool { return types[i].Name < types[j].Name })
	return types, nil
}

// labelTypeOf decodes one row of typesScript
func labelTypeOf(row any, kind model.LabelKind) (model.LabelType, bool) {
	m, ok := stringMap(row)
	if !ok {
		return model.LabelType{}, false
	}
	name, _ := m["name"].(string)
	if name == "" {
		return model.LabelType{}, false
	}
	t := model.LabelType{Name: name, Kind: kind}
	props, _ := m["properties"].([]any)
	for _, p := range props {
		pm, ok := stringMap(p)
		if !ok {
			continue
		}
		pname, _ := pm["name"].(string)
		ptype, _ := pm["type"].(string)
		t.Properties = append(t.Properties, model.PropertyDefinition{
			Name:    pname,
			Type:    propertyTypeOf(ptype),
			Indexed: true,
		})
	}
	return t, true
}

func first(rows []any) any {
	if len(rows) == 0 {
		return nil
	}
	return rows[0]
}
