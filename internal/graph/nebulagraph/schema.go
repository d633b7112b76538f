package nebulagraph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	nebula "github.com/vesoft-inc/nebula-go/v3"

	"github.com/rohankatakam/graphbridge/internal/errors"
	"github.com/rohankatakam/graphbridge/internal/graph"
	"github.com/rohankatakam/graphbridge/internal/graph/coerce"
	"github.com/rohankatakam/graphbridge/internal/graph/identity"
	"github.com/rohankatakam/graphbridge/internal/model"
)

// Space layout of spaces created by CreateGraph
const (
	spacePartitions = 10
	spaceReplicas   = 1
)

// ListGraphs lists the spaces of the cluster
func (a *Adapter) ListGraphs(ctx context.Context) ([]string, error) {
	return graph.Observed(ctx, a.opts, &a.mu, graph.OpRead, "ListGraphs", func(ctx context.Context) ([]string, error) {
		rs, err := a.execLocked("SHOW SPACES")
		if err != nil {
			return nil, classify(err, "failed to list nebula spaces")
		}
		names := stringColumn(rs, "Name")
		sort.Strings(names)
		return names, nil
	})
}

// CreateGraph creates a space with fixed-string vids
func (a *Adapter) CreateGraph(ctx context.Context, graphName string) error {
	if err := graph.ValidateIdentifier("space", graphName); err != nil {
		return err
	}
	stmt := fmt.Sprintf("CREATE SPACE IF NOT EXISTS %s (partition_num=%d, replica_factor=%d, vid_type=%s)",
		quote(graphName), spacePartitions, spaceReplicas, vidType)
	_, err := graph.Observed(ctx, a.opts, &a.mu, graph.OpSchema, "CreateGraph", func(ctx context.Context) (struct{}, error) {
		if _, err := a.execLocked(stmt); err != nil {
			return struct{}{}, classify(err, "failed to create space %s", graphName)
		}
		return struct{}{}, nil
	})
	return err
}

// DeleteGraph drops a space and everything in it
func (a *Adapter) DeleteGraph(ctx context.Context, graphName string) error {
	if err := graph.ValidateIdentifier("space", graphName); err != nil {
		return err
	}
	_, err := graph.Observed(ctx, a.opts, &a.mu, graph.OpSchema, "DeleteGraph", func(ctx context.Context) (struct{}, error) {
		if _, err := a.execLocked("DROP SPACE IF EXISTS " + quote(graphName)); err != nil {
			return struct{}{}, classify(err, "failed to drop space %s", graphName)
		}
		if a.currentSpace == graphName {
			a.currentSpace = ""
		}
		a.schema.Flush()
		return struct{}{}, nil
	})
	return err
}

// GetGraphSchema describes every tag and edge type of a space
func (a *Adapter) GetGraphSchema(ctx context.Context, graphName string) (*model.GraphSchema, error) {
	return graph.Observed(ctx, a.opts, &a.mu, graph.OpRead, "GetGraphSchema", func(ctx context.Context) (*model.GraphSchema, error) {
		space, err := a.useLocked(ctx, graphName)
		if err != nil {
			return nil, err
		}
		tags, err := a.typesLocked(space, kindTag)
		if err != nil {
			return nil, err
		}
		edges, err := a.typesLocked(space, kindEdge)
		if err != nil {
			return nil, err
		}
		return &model.GraphSchema{
			GraphName:   space,
			Backend:     model.BackendNebula,
			VertexTypes: tags,
			EdgeTypes:   edges,
		}, nil
	})
}

// GetVertexTypes describes the tags of a space
func (a *Adapter) GetVertexTypes(ctx context.Context, graphName string) ([]model.LabelType, error) {
	return a.getTypes(ctx, graphName, kindTag, "GetVertexTypes")
}

// GetEdgeTypes describes the edge types of a space
func (a *Adapter) GetEdgeTypes(ctx context.Context, graphName string) ([]model.LabelType, error) {
	return a.getTypes(ctx, graphName, kindEdge, "GetEdgeTypes")
}

func (a *Adapter) getTypes(ctx context.Context, graphName string, kind schemaKind, opName string) ([]model.LabelType, error) {
	return graph.Observed(ctx, a.opts, &a.mu, graph.OpRead, opName, func(ctx context.Context) ([]model.LabelType, error) {
		space, err := a.useLocked(ctx, graphName)
		if err != nil {
			return nil, err
		}
		return a.typesLocked(space, kind)
	})
}

// CreateVertexType creates the tag with its declared columns and a label
// index. Creating an existing tag adds only the missing columns.
func (a *Adapter) CreateVertexType(ctx context.Context, graphName string, t model.LabelType) error {
	return a.createType(ctx, graphName, t, kindTag, "CreateVertexType")
}

// CreateEdgeType is CreateVertexType for edge types
func (a *Adapter) CreateEdgeType(ctx context.Context, graphName string, t model.LabelType) error {
	return a.createType(ctx, graphName, t, kindEdge, "CreateEdgeType")
}

func (a *Adapter) createType(ctx context.Context, graphName string, t model.LabelType, kind schemaKind, opName string) error {
	if err := graph.ValidateIdentifier(strings.ToLower(string(kind)), t.Name); err != nil {
		return err
	}
	cols := make([]column, 0, len(t.Properties))
	for _, p := range t.Properties {
		if err := graph.ValidateIdentifier("property", p.Name); err != nil {
			return err
		}
		if identity.IsReserved(p.Name) {
			return errors.ValidationErrorf("property %q is reserved", p.Name)
		}
		def, err := coerce.Normalize(p.DefaultValue)
		if err != nil {
			return errors.ValidationErrorf("default of %s: %v", p.Name, err)
		}
		cols = append(cols, column{Name: p.Name, Type: columnTypeFor(p.Type), Required: p.Required, Default: def})
	}

	_, err := graph.Observed(ctx, a.opts, &a.mu, graph.OpSchema, opName, func(ctx context.Context) (struct{}, error) {
		space, err := a.useLocked(ctx, graphName)
		if err != nil {
			return struct{}{}, err
		}
		created, err := a.ensureTypeLocked(ctx, space, kind, t.Name, cols)
		if err != nil {
			return struct{}{}, err
		}

		wanted := []indexSpec{{}}
		for _, p := range t.Properties {
			if p.Indexed {
				wanted = append(wanted, indexSpec{Prop: p.Name, ColType: columnTypeFor(p.Type)})
			}
		}
		existing := map[string]bool{}
		if !created {
			indexes, err := a.indexesLocked(kind)
			if err != nil {
				return struct{}{}, err
			}
			for _, idx := range indexes {
				existing[idx.Name] = true
			}
		}

		var added []string
		for _, w := range wanted {
			name := indexName(kind, t.Name, w.Prop)
			if existing[name] {
				continue
			}
			if err := a.createIndexLocked(ctx, kind, t.Name, w); err != nil {
				return struct{}{}, err
			}
			added = append(added, name)
		}

		// Rows written before an index existed are invisible to it until rebuilt
		if !created {
			for _, name := range added {
				if _, err := a.execLocked(rebuildIndexStmt(kind, name)); err != nil {
					return struct{}{}, classify(err, "failed to rebuild index %s", name)
				}
				a.opts.Logger.Info("nebula index rebuild submitted", "space", space, "index", name)
			}
		}
		return struct{}{}, nil
	})
	return err
}

// indexSpec is a label index when Prop is empty, a property index otherwise
type indexSpec struct {
	Prop    string
	ColType string
}

// createIndexLocked creates one index, retrying while a just created type is
// still unknown to the graph service.
func (a *Adapter) createIndexLocked(ctx context.Context, kind schemaKind, name string, spec indexSpec) error {
	stmt := createIndexStmt(kind, name, spec.Prop, spec.ColType)
	err := a.retrySchema(ctx, func() error {
		_, err := a.execLocked(stmt)
		return err
	})
	if err != nil {
		return classify(err, "failed to index %s", name)
	}
	return nil
}

// DeleteVertexType drops the tag's indexes and then the tag. The type
// definition is gone afterwards.
func (a *Adapter) DeleteVertexType(ctx context.Context, graphName, name string) (*model.TypeDeletion, error) {
	return a.deleteType(ctx, graphName, name, kindTag, model.LabelVertex, "DeleteVertexType")
}

// DeleteEdgeType is DeleteVertexType for edge types
func (a *Adapter) DeleteEdgeType(ctx context.Context, graphName, name string) (*model.TypeDeletion, error) {
	return a.deleteType(ctx, graphName, name, kindEdge, model.LabelEdge, "DeleteEdgeType")
}

func (a *Adapter) deleteType(ctx context.Context, graphName, name string, kind schemaKind, lk model.LabelKind, opName string) (*model.TypeDeletion, error) {
	if err := graph.ValidateIdentifier(strings.ToLower(string(kind)), name); err != nil {
		return nil, err
	}
	return graph.Observed(ctx, a.opts, &a.mu, graph.OpSchema, opName, func(ctx context.Context) (*model.TypeDeletion, error) {
		space, err := a.useLocked(ctx, graphName)
		if err != nil {
			return nil, err
		}
		indexes, err := a.indexesLocked(kind)
		if err != nil {
			return nil, err
		}
		for _, idx := range indexes {
			if idx.On != name {
				continue
			}
			if _, err := a.execLocked(fmt.Sprintf("DROP %s INDEX IF EXISTS %s", kind, quote(idx.Name))); err != nil {
				return nil, classify(err, "failed to drop index %s", idx.Name)
			}
		}
		if _, err := a.execLocked(fmt.Sprintf("DROP %s IF EXISTS %s", kind, quote(name))); err != nil {
			return nil, classify(err, "failed to drop %s %s", strings.ToLower(string(kind)), name)
		}
		a.schema.Invalidate(space, string(kind), name)

		a.opts.Logger.Info("nebula type dropped", "space", space, "kind", kind, "name", name)
		return &model.TypeDeletion{Name: name, Kind: lk, Scope: model.DeletionScopeSchema}, nil
	})
}

// typesLocked lists tags or edge types with their columns and indexes
func (a *Adapter) typesLocked(space string, kind schemaKind) ([]model.LabelType, error) {
	rs, err := a.execLocked(fmt.Sprintf("SHOW %sS", kind))
	if err != nil {
		return nil, classify(err, "failed to list %ss", strings.ToLower(string(kind)))
	}
	names := stringColumn(rs, "Name")
	sort.Strings(names)

	indexes, err := a.indexesLocked(kind)
	if err != nil {
		return nil, err
	}
	indexed := make(map[string]map[string]bool)
	for _, idx := range indexes {
		if indexed[idx.On] == nil {
			indexed[idx.On] = make(map[string]bool)
		}
		for _, c := range idx.Columns {
			indexed[idx.On][c] = true
		}
	}

	lk := model.LabelVertex
	if kind == kindEdge {
		lk = model.LabelEdge
	}
	types := make([]model.LabelType, 0, len(names))
	for _, name := range names {
		cols, err := a.describeLocked(space, kind, name)
		if err != nil {
			return nil, err
		}
		t := model.LabelType{Name: name, Kind: lk}
		for _, c := range cols {
			if identity.IsReserved(c.Name) {
				continue
			}
			t.Properties = append(t.Properties, model.PropertyDefinition{
				Name:         c.Name,
				Type:         propertyTypeOf(c.Type),
				Required:     c.Required,
				DefaultValue: c.Default,
				Indexed:      indexed[name][c.Name],
			})
		}
		types = append(types, t)
	}
	return types, nil
}

// describeLocked reads the columns of a tag or edge type and refreshes the
// column cache.
func (a *Adapter) describeLocked(space string, kind schemaKind, name string) ([]column, error) {
	rs, err := a.execLocked(fmt.Sprintf("DESCRIBE %s %s", kind, quote(name)))
	if err != nil {
		return nil, classify(err, "failed to describe %s %s", strings.ToLower(string(kind)), name)
	}
	fields := stringColumn(rs, "Field")
	types := stringColumn(rs, "Type")
	nulls := stringColumn(rs, "Null")
	defaults := rawColumn(rs, "Default")

	cols := make([]column, 0, len(fields))
	cache := make(map[string]string, len(fields))
	for i, f := range fields {
		c := column{Name: f}
		if i < len(types) {
			c.Type = types[i]
		}
		if i < len(nulls) {
			c.Required = strings.EqualFold(nulls[i], "NO")
		}
		if i < len(defaults) {
			c.Default = defaults[i]
		}
		cols = append(cols, c)
		cache[f] = c.Type
	}
	a.schema.SetColumns(space, string(kind), name, cache)
	return cols, nil
}

// columnsLocked returns the cached column types of a type, describing it on
// a miss. found is false when the type does not exist.
func (a *Adapter) columnsLocked(space string, kind schemaKind, name string) (cols map[string]string, found bool, err error) {
	if cols, ok := a.schema.Columns(space, string(kind), name); ok {
		return cols, true, nil
	}
	if _, err := a.describeLocked(space, kind, name); err != nil {
		if schemaPending(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	cols, _ = a.schema.Columns(space, string(kind), name)
	return cols, true, nil
}

// ensureTypeLocked makes sure the type exists with at least the given
// columns, creating it or adding the missing columns. A created type gets its
// label index before any row is written, so label scans see every row. New
// columns take a heartbeat to reach the storage service; writers retry.
func (a *Adapter) ensureTypeLocked(ctx context.Context, space string, kind schemaKind, name string, want []column) (created bool, err error) {
	existing, found, err := a.columnsLocked(space, kind, name)
	if err != nil {
		return false, err
	}

	var stmt string
	if !found {
		stmt, err = createSchemaStmt(kind, name, want)
	} else {
		var missing []column
		for _, c := range want {
			if _, ok := existing[c.Name]; !ok {
				missing = append(missing, c)
			}
		}
		if len(missing) == 0 {
			return false, nil
		}
		stmt, err = alterAddStmt(kind, name, missing)
	}
	if err != nil {
		return false, errors.ValidationErrorf("%s %s: %v", strings.ToLower(string(kind)), name, err)
	}

	if _, err := a.execLocked(stmt); err != nil {
		return false, classify(err, "failed to extend %s %s", strings.ToLower(string(kind)), name)
	}
	a.schema.Invalidate(space, string(kind), name)
	a.opts.Logger.Info("nebula schema extended", "space", space, "kind", kind, "name", name, "columns", len(want))

	if !found {
		if err := a.createIndexLocked(ctx, kind, name, indexSpec{}); err != nil {
			return true, err
		}
	}
	return !found, nil
}

// columnsFor derives the columns needed to store props
func columnsFor(props map[string]any) []column {
	cols := make([]column, 0, len(props))
	for _, k := range coerce.SortedKeys(props) {
		cols = append(cols, column{Name: k, Type: columnTypeOf(props[k])})
	}
	return cols
}

// indexInfo is one row of SHOW TAG/EDGE INDEXES
type indexInfo struct {
	Name    string
	On      string
	Columns []string
}

func (a *Adapter) indexesLocked(kind schemaKind) ([]indexInfo, error) {
	rs, err := a.execLocked(fmt.Sprintf("SHOW %s INDEXES", kind))
	if err != nil {
		return nil, classify(err, "failed to list %s indexes", strings.ToLower(string(kind)))
	}
	by := "By Tag"
	if kind == kindEdge {
		by = "By Edge"
	}
	names := stringColumn(rs, "Index Name")
	on := stringColumn(rs, by)
	cols := rawColumn(rs, "Columns")

	out := make([]indexInfo, 0, len(names))
	for i, n := range names {
		idx := indexInfo{Name: n}
		if i < len(on) {
			idx.On = on[i]
		}
		if i < len(cols) {
			if list, ok := cols[i].([]any); ok {
				for _, c := range list {
					if s, ok := c.(string); ok {
						idx.Columns = append(idx.Columns, s)
					}
				}
			}
		}
		out = append(out, idx)
	}
	return out, nil
}

// stringColumn reads one column as strings; missing columns read as empty
func stringColumn(rs *nebula.ResultSet, name string) []string {
	raw := rawColumn(rs, name)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if v == nil {
			out = append(out, "")
			continue
		}
		out = append(out, fmt.Sprint(v))
	}
	return out
}

func rawColumn(rs *nebula.ResultSet, name string) []any {
	values, err := rs.GetValuesByColName(name)
	if err != nil {
		return nil
	}
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = fromWrapper(v, 0)
	}
	return out
}
