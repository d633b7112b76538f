package neo4jgraph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/rohankatakam/graphbridge/internal/errors"
	"github.com/rohankatakam/graphbridge/internal/graph"
	"github.com/rohankatakam/graphbridge/internal/graph/identity"
	"github.com/rohankatakam/graphbridge/internal/model"
)

// deleteBatchSize bounds the instances removed per transaction when a type
// is deleted
const deleteBatchSize = 10000

// ListGraphs lists the databases of the server, without the system database
func (a *Adapter) ListGraphs(ctx context.Context) ([]string, error) {
	return graph.Observed(ctx, a.opts, &a.mu, graph.OpRead, "ListGraphs", func(ctx context.Context) ([]string, error) {
		session, err := a.systemSessionLocked(ctx)
		if err != nil {
			return nil, err
		}
		defer session.Close(ctx)

		records, err := a.autoCommitLocked(ctx, session, graph.OpRead, "SHOW DATABASES YIELD name RETURN DISTINCT name", nil)
		if err != nil {
			return nil, classify(err, "failed to list neo4j databases")
		}
		names := []string{}
		for _, rec := range records {
			if name, ok := recordValue[string](rec, "name"); ok && name != systemDatabase {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		return names, nil
	})
}

// CreateGraph creates a database. Community servers reject the command and
// the call fails as unsupported.
func (a *Adapter) CreateGraph(ctx context.Context, graphName string) error {
	if err := validateDatabaseName(graphName); err != nil {
		return err
	}
	return a.administer(ctx, "CreateGraph", fmt.Sprintf("CREATE DATABASE %s IF NOT EXISTS WAIT", quote(graphName)))
}

// DeleteGraph drops a database
func (a *Adapter) DeleteGraph(ctx context.Context, graphName string) error {
	if err := validateDatabaseName(graphName); err != nil {
		return err
	}
	if graphName == systemDatabase {
		return errors.Unsupported("the neo4j system database cannot be dropped")
	}
	return a.administer(ctx, "DeleteGraph", fmt.Sprintf("DROP DATABASE %s IF EXISTS WAIT", quote(graphName)))
}

func (a *Adapter) administer(ctx context.Context, name, cypher string) error {
	_, err := graph.Observed(ctx, a.opts, &a.mu, graph.OpSchema, name, func(ctx context.Context) (struct{}, error) {
		session, err := a.systemSessionLocked(ctx)
		if err != nil {
			return struct{}{}, err
		}
		defer session.Close(ctx)

		if _, err := a.autoCommitLocked(ctx, session, graph.OpSchema, cypher, nil); err != nil {
			return struct{}{}, classify(err, "neo4j %s failed", name)
		}
		return struct{}{}, nil
	})
	return err
}

// GetGraphSchema describes every vertex and edge type of the database
func (a *Adapter) GetGraphSchema(ctx context.Context, graphName string) (*model.GraphSchema, error) {
	return graph.Observed(ctx, a.opts, &a.mu, graph.OpRead, "GetGraphSchema", func(ctx context.Context) (*model.GraphSchema, error) {
		vertexTypes, err := a.typesLocked(ctx, graphName, model.LabelVertex)
		if err != nil {
			return nil, err
		}
		edgeTypes, err := a.typesLocked(ctx, graphName, model.LabelEdge)
		if err != nil {
			return nil, err
		}
		return &model.GraphSchema{
			GraphName:   a.database(graphName),
			Backend:     model.BackendNeo4j,
			VertexTypes: vertexTypes,
			EdgeTypes:   edgeTypes,
		}, nil
	})
}

// GetVertexTypes returns labels in use plus labels registered by an index or
// constraint but not yet carried by any node.
func (a *Adapter) GetVertexTypes(ctx context.Context, graphName string) ([]model.LabelType, error) {
	return graph.Observed(ctx, a.opts, &a.mu, graph.OpRead, "GetVertexTypes", func(ctx context.Context) ([]model.LabelType, error) {
		return a.typesLocked(ctx, graphName, model.LabelVertex)
	})
}

// GetEdgeTypes is GetVertexTypes for relationship types
func (a *Adapter) GetEdgeTypes(ctx context.Context, graphName string) ([]model.LabelType, error) {
	return graph.Observed(ctx, a.opts, &a.mu, graph.OpRead, "GetEdgeTypes", func(ctx context.Context) ([]model.LabelType, error) {
		return a.typesLocked(ctx, graphName, model.LabelEdge)
	})
}

// CreateVertexType registers the label with a uid uniqueness constraint and
// an index per indexed property. Neo4j labels exist implicitly, so creating
// an existing type changes nothing.
func (a *Adapter) CreateVertexType(ctx context.Context, graphName string, t model.LabelType) error {
	stmts, err := typeStatements(t, model.LabelVertex)
	if err != nil {
		return err
	}
	return a.runSchema(ctx, graphName, "CreateVertexType", stmts)
}

// CreateEdgeType registers the relationship type with a uid index
func (a *Adapter) CreateEdgeType(ctx context.Context, graphName string, t model.LabelType) error {
	stmts, err := typeStatements(t, model.LabelEdge)
	if err != nil {
		return err
	}
	return a.runSchema(ctx, graphName, "CreateEdgeType", stmts)
}

// DeleteVertexType drops the label's constraints and indexes and removes
// every node carrying it. Neo4j keeps label tokens, so the deletion reports
// instance scope.
func (a *Adapter) DeleteVertexType(ctx context.Context, graphName, name string) (*model.TypeDeletion, error) {
	if err := graph.ValidateIdentifier("label", name); err != nil {
		return nil, err
	}
	purge := fmt.Sprintf("MATCH (n:%s) WITH n LIMIT %d DETACH DELETE n RETURN count(*) AS deleted", quote(name), deleteBatchSize)
	return a.deleteType(ctx, graphName, "DeleteVertexType", name, model.LabelVertex, purge)
}

// DeleteEdgeType is DeleteVertexType for relationship types
func (a *Adapter) DeleteEdgeType(ctx context.Context, graphName, name string) (*model.TypeDeletion, error) {
	if err := graph.ValidateIdentifier("edge label", name); err != nil {
		return nil, err
	}
	purge := fmt.Sprintf("MATCH ()-[r:%s]->() WITH r LIMIT %d DELETE r RETURN count(*) AS deleted", quote(name), deleteBatchSize)
	return a.deleteType(ctx, graphName, "DeleteEdgeType", name, model.LabelEdge, purge)
}

func (a *Adapter) deleteType(ctx context.Context, graphName, opName, name string, kind model.LabelKind, purge string) (*model.TypeDeletion, error) {
	return graph.Observed(ctx, a.opts, &a.mu, graph.OpSchema, opName, func(ctx context.Context) (*model.TypeDeletion, error) {
		session, err := a.sessionLocked(ctx, graphName)
		if err != nil {
			return nil, err
		}
		drops, err := a.dropStatementsLocked(ctx, session, name, kind)
		if err != nil {
			return nil, err
		}
		for _, stmt := range drops {
			if _, err := a.autoCommitLocked(ctx, session, graph.OpSchema, stmt, nil); err != nil {
				return nil, classify(err, "failed to drop schema of %s", name)
			}
		}

		deletion := &model.TypeDeletion{Name: name, Kind: kind, Scope: model.DeletionScopeInstances}
		for {
			out, err := a.writeLocked(ctx, graphName, graph.OpSchema, func(tx neo4j.ManagedTransaction) (any, error) {
				return singleCount(ctx, tx, purge, nil)
			})
			if err != nil {
				return nil, classify(err, "failed to delete instances of %s", name)
			}
			n := out.(int64)
			deletion.InstancesRemoved += n
			if n < deleteBatchSize {
				break
			}
		}
		a.opts.Logger.Info("neo4j type deleted",
			"name", name,
			"kind", kind,
			"instances_removed", deletion.InstancesRemoved,
			"scope", deletion.Scope)
		return deletion, nil
	})
}

func (a *Adapter) runSchema(ctx context.Context, graphName, opName string, stmts []string) error {
	_, err := graph.Observed(ctx, a.opts, &a.mu, graph.OpSchema, opName, func(ctx context.Context) (struct{}, error) {
		session, err := a.sessionLocked(ctx, graphName)
		if err != nil {
			return struct{}{}, err
		}
		for _, stmt := range stmts {
			if _, err := a.autoCommitLocked(ctx, session, graph.OpSchema, stmt, nil); err != nil {
				return struct{}{}, classify(err, "neo4j %s failed", opName)
			}
		}
		return struct{}{}, nil
	})
	return err
}

// typeStatements renders the idempotent schema commands registering a type
func typeStatements(t model.LabelType, kind model.LabelKind) ([]string, error) {
	if err := graph.ValidateIdentifier(string(kind)+" type", t.Name); err != nil {
		return nil, err
	}
	label := quote(t.Name)
	var stmts []string
	if kind == model.LabelVertex {
		stmts = append(stmts, fmt.Sprintf("CREATE CONSTRAINT %s IF NOT EXISTS FOR (n:%s) REQUIRE n.%s IS UNIQUE",
			quote("vertex_uid_"+t.Name), label, identity.UIDProperty))
	} else {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX %s IF NOT EXISTS FOR ()-[r:%s]-() ON (r.%s)",
			quote("edge_uid_"+t.Name), label, identity.UIDProperty))
	}
	for _, p := range t.Properties {
		if err := graph.ValidateIdentifier("property", p.Name); err != nil {
			return nil, err
		}
		if !p.Indexed || identity.IsReserved(p.Name) {
			continue
		}
		idx := quote(fmt.Sprintf("%s_%s_%s", strings.ToLower(string(kind)), t.Name, p.Name))
		if kind == model.LabelVertex {
			stmts = append(stmts, fmt.Sprintf("CREATE INDEX %s IF NOT EXISTS FOR (n:%s) ON (n.%s)", idx, label, quote(p.Name)))
		} else {
			stmts = append(stmts, fmt.Sprintf("CREATE INDEX %s IF NOT EXISTS FOR ()-[r:%s]-() ON (r.%s)", idx, label, quote(p.Name)))
		}
	}
	return stmts, nil
}

// entityType maps a label kind to the entityType column of SHOW commands
func entityType(kind model.LabelKind) string {
	if kind == model.LabelVertex {
		return "NODE"
	}
	return "RELATIONSHIP"
}

// dropStatementsLocked lists the constraints, then the free-standing indexes,
// defined on name.
func (a *Adapter) dropStatementsLocked(ctx context.Context, session neo4j.SessionWithContext, name string, kind model.LabelKind) ([]string, error) {
	params := map[string]any{"entity": entityType(kind), "name": name}
	constraints, err := a.autoCommitLocked(ctx, session, graph.OpSchema,
		"SHOW CONSTRAINTS YIELD name, labelsOrTypes, entityType "+
			"WHERE entityType = $entity AND $name IN labelsOrTypes RETURN name", params)
	if err != nil {
		return nil, classify(err, "failed to list constraints of %s", name)
	}
	indexes, err := a.autoCommitLocked(ctx, session, graph.OpSchema,
		"SHOW INDEXES YIELD name, labelsOrTypes, entityType, owningConstraint "+
			"WHERE entityType = $entity AND labelsOrTypes IS NOT NULL AND $name IN labelsOrTypes "+
			"AND owningConstraint IS NULL RETURN name", params)
	if err != nil {
		return nil, classify(err, "failed to list indexes of %s", name)
	}

	var stmts []string
	for _, rec := range constraints {
		if n, ok := recordValue[string](rec, "name"); ok {
			stmts = append(stmts, fmt.Sprintf("DROP CONSTRAINT %s IF EXISTS", quote(n)))
		}
	}
	for _, rec := range indexes {
		if n, ok := recordValue[string](rec, "name"); ok {
			stmts = append(stmts, fmt.Sprintf("DROP INDEX %s IF EXISTS", quote(n)))
		}
	}
	return stmts, nil
}

// typeCatalog accumulates label types in first-seen order
type typeCatalog struct {
	kind  model.LabelKind
	types map[string]*model.LabelType
	props map[string]map[string]int
}

func newTypeCatalog(kind model.LabelKind) *typeCatalog {
	return &typeCatalog{
		kind:  kind,
		types: make(map[string]*model.LabelType),
		props: make(map[string]map[string]int),
	}
}

func (c *typeCatalog) add(name string) *model.LabelType {
	if t, ok := c.types[name]; ok {
		return t
	}
	t := &model.LabelType{Name: name, Kind: c.kind}
	c.types[name] = t
	c.props[name] = make(map[string]int)
	return t
}

// property returns the definition of prop on type name, creating both
func (c *typeCatalog) property(name, prop string) *model.PropertyDefinition {
	t := c.add(name)
	if i, ok := c.props[name][prop]; ok {
		return &t.Properties[i]
	}
	t.Properties = append(t.Properties, model.PropertyDefinition{Name: prop, Type: model.PropertyString})
	c.props[name][prop] = len(t.Properties) - 1
	return &t.Properties[len(t.Properties)-1]
}

func (c *typeCatalog) list() []model.LabelType {
	out := make([]model.LabelType, 0, len(c.types))
	for _, t := range c.types {
		sort.Slice(t.Properties, func(i, j int) bool { return t.Properties[i].Name < t.Properties[j].Name })
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// typesLocked merges token, property-type and index information. The
// procedure reads run in a rolled-back transaction; SHOW INDEXES runs
// auto-commit.
func (a *Adapter) typesLocked(ctx context.Context, graphName string, kind model.LabelKind) ([]model.LabelType, error) {
	tokens := "CALL db.labels() YIELD label RETURN label AS name"
	propsProc := "CALL db.schema.nodeTypeProperties() YIELD nodeLabels AS names, propertyName, propertyTypes, mandatory " +
		"RETURN names, propertyName, propertyTypes, mandatory"
	if kind == model.LabelEdge {
		tokens = "CALL db.relationshipTypes() YIELD relationshipType RETURN relationshipType AS name"
		propsProc = "CALL db.schema.relTypeProperties() YIELD relType, propertyName, propertyTypes, mandatory " +
			"RETURN [relType] AS names, propertyName, propertyTypes, mandatory"
	}

	catalog := newTypeCatalog(kind)
	err := a.readLocked(ctx, graphName, func(tx neo4j.ExplicitTransaction) error {
		records, err := collect(ctx, tx, tokens, nil, maxTypes)
		if err != nil {
			return err
		}
		for _, rec := range records {
			if name, ok := recordValue[string](rec, "name"); ok {
				catalog.add(name)
			}
		}

		records, err = collect(ctx, tx, propsProc, nil, maxTypes*64)
		if err != nil {
			return err
		}
		for _, rec := range records {
			prop, ok := recordValue[string](rec, "propertyName")
			if !ok || identity.IsReserved(prop) {
				continue
			}
			raw, _ := rec.Get("names")
			types, _ := rec.Get("propertyTypes")
			mandatory, _ := recordValue[bool](rec, "mandatory")
			for _, name := range stringsOf(raw) {
				def := catalog.property(relTypeName(name), prop)
				def.Type = propertyType(stringsOf(types))
				def.Required = mandatory
			}
		}
		return nil
	})
	if err != nil {
		return nil, classify(err, "failed to read neo4j %s types", strings.ToLower(string(kind)))
	}

	session, err := a.sessionLocked(ctx, graphName)
	if err != nil {
		return nil, err
	}
	records, err := a.autoCommitLocked(ctx, session, graph.OpRead,
		"SHOW INDEXES YIELD labelsOrTypes, properties, entityType "+
			"WHERE entityType = $entity AND labelsOrTypes IS NOT NULL RETURN labelsOrTypes, properties",
		map[string]any{"entity": entityType(kind)})
	if err != nil {
		return nil, classify(err, "failed to read neo4j indexes")
	}
	for _, rec := range records {
		names, _ := rec.Get("labelsOrTypes")
		props, _ := rec.Get("properties")
		for _, name := range stringsOf(names) {
			catalog.add(name)
			for _, prop := range stringsOf(props) {
				if identity.IsReserved(prop) {
					continue
				}
				catalog.property(name, prop).Indexed = true
			}
		}
	}
	return catalog.list(), nil
}

// maxTypes bounds the token lists read for a schema description
const maxTypes = 10000

func stringsOf(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, e := range list {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// relTypeName strips the :`T` decoration db.schema.relTypeProperties uses
func relTypeName(s string) string {
	s = strings.TrimPrefix(s, ":")
	return strings.Trim(s, "`")
}

// propertyType maps the type names reported by db.schema procedures. A
// property seen with several types is reported as a string.
func propertyType(types []string) model.PropertyType {
	if len(types) != 1 {
		return model.PropertyString
	}
	t := types[0]
	if strings.HasSuffix(t, "Array") {
		return model.PropertyList
	}
	switch t {
	case "Long", "Integer":
		return model.PropertyLong
	case "Double", "Float":
		return model.PropertyDouble
	case "Boolean":
		return model.PropertyBoolean
	case "Date":
		return model.PropertyDate
	case "DateTime", "LocalDateTime":
		return model.PropertyDateTime
	}
	return model.PropertyString
}
