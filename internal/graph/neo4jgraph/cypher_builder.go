package neo4jgraph

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rohankatakam/graphbridge/internal/errors"
	"github.com/rohankatakam/graphbridge/internal/graph"
	"github.com/rohankatakam/graphbridge/internal/graph/coerce"
	"github.com/rohankatakam/graphbridge/internal/graph/identity"
)

// CypherBuilder builds parameterized Cypher. Values always travel as
// parameters; labels and property keys are validated and backquoted.
type CypherBuilder struct {
	params  map[string]any
	counter int
}

// NewCypherBuilder creates a query builder
func NewCypherBuilder() *CypherBuilder {
	return &CypherBuilder{
		params: make(map[string]any),
	}
}

// AddParam adds a parameter and returns its placeholder
func (b *CypherBuilder) AddParam(value any) string {
	paramName := fmt.Sprintf("p%d", b.counter)
	b.counter++
	b.params[paramName] = value
	return "$" + paramName
}

// Params returns all parameters for the query
func (b *CypherBuilder) Params() map[string]any {
	return b.params
}

// matchByUID binds variable to the node carrying the uid. The uid property is
// tried first; the element id, for nodes created outside this adapter, only
// when no node carries it. carry lists variables bound by earlier clauses.
// A miss yields no row, or a row with variable null when optional is set.
func matchByUID(variable, placeholder string, optional bool, carry ...string) string {
	return uidLookup("(%s)", variable, placeholder, optional, carry)
}

// matchRelByUID is matchByUID for relationships
func matchRelByUID(variable, placeholder string, optional bool, carry ...string) string {
	return uidLookup("()-[%s]->()", variable, placeholder, optional, carry)
}

func uidLookup(pattern, variable, placeholder string, optional bool, carry []string) string {
	byUID, byID := variable+"_uid", variable+"_id"
	with := func(last string) string {
		return strings.Join(append(append([]string{}, carry...), last), ", ")
	}
	clause := fmt.Sprintf(
		"OPTIONAL MATCH %s WHERE %s.%s = %s WITH %s LIMIT 1 "+
			"OPTIONAL MATCH %s WHERE %s IS NULL AND elementId(%s) = %s "+
			"WITH %s",
		fmt.Sprintf(pattern, byUID), byUID, identity.UIDProperty, placeholder, with(byUID),
		fmt.Sprintf(pattern, byID), byUID, byID, placeholder,
		with(fmt.Sprintf("coalesce(%s, %s) AS %s", byUID, byID, variable)))
	if !optional {
		clause += fmt.Sprintf(" WHERE %s IS NOT NULL", variable)
	}
	return clause
}

// uidOf is the uid expression returned for an element
func uidOf(variable string) string {
	return fmt.Sprintf("coalesce(%[1]s.%[2]s, elementId(%[1]s))", variable, identity.UIDProperty)
}

// BuildCreateNode creates a node with a minted uid and timestamps
func (b *CypherBuilder) BuildCreateNode(label, uid string, props map[string]any, nowMillis int64) (string, error) {
	if err := graph.ValidateIdentifier("label", label); err != nil {
		return "", err
	}
	set, err := b.setClause("n", props, nowMillis, true)
	if err != nil {
		return "", err
	}
	uidParam := b.AddParam(uid)
	return fmt.Sprintf("CREATE (n:%s) SET n.%s = %s, %s RETURN n", quote(label), identity.UIDProperty, uidParam, set), nil
}

// BuildUpdateNode merges props into the node with the given uid
func (b *CypherBuilder) BuildUpdateNode(uid string, props map[string]any, nowMillis int64) (string, error) {
	set, err := b.setClause("n", props, nowMillis, false)
	if err != nil {
		return "", err
	}
	uidParam := b.AddParam(uid)
	return fmt.Sprintf("%s SET %s RETURN n", matchByUID("n", uidParam, false), set), nil
}

// BuildResolveEndpoints reports whether both endpoints of a new edge exist
func (b *CypherBuilder) BuildResolveEndpoints(sourceUID, targetUID string) string {
	src := b.AddParam(sourceUID)
	dst := b.AddParam(targetUID)
	return fmt.Sprintf("%s %s RETURN s IS NOT NULL AS hasSource, t IS NOT NULL AS hasTarget",
		matchByUID("s", src, true), matchByUID("t", dst, true, "s"))
}

// BuildCreateEdge creates a relationship between two resolved endpoints
func (b *CypherBuilder) BuildCreateEdge(label, sourceUID, targetUID, uid string, props map[string]any, nowMillis int64) (string, error) {
	if err := graph.ValidateIdentifier("edge label", label); err != nil {
		return "", err
	}
	src := b.AddParam(sourceUID)
	dst := b.AddParam(targetUID)
	set, err := b.setClause("r", props, nowMillis, true)
	if err != nil {
		return "", err
	}
	uidParam := b.AddParam(uid)
	return fmt.Sprintf(
		"%s %s "+
			"CREATE (s)-[r:%s]->(t) SET r.%s = %s, %s "+
			"RETURN r, %s AS src, %s AS dst",
		matchByUID("s", src, false), matchByUID("t", dst, false, "s"),
		quote(label), identity.UIDProperty, uidParam, set,
		uidOf("s"), uidOf("t")), nil
}

// BuildUpdateEdge merges props into the relationship with the given uid
func (b *CypherBuilder) BuildUpdateEdge(uid string, props map[string]any, nowMillis int64) (string, error) {
	set, err := b.setClause("r", props, nowMillis, false)
	if err != nil {
		return "", err
	}
	uidParam := b.AddParam(uid)
	return fmt.Sprintf("%s MATCH (s)-[r]->(t) SET %s RETURN r, %s AS src, %s AS dst",
		matchRelByUID("r", uidParam, false), set, uidOf("s"), uidOf("t")), nil
}

// setClause renders "v.k = $pN, ..." for props in key order, followed by
// the timestamp assignments.
func (b *CypherBuilder) setClause(variable string, props map[string]any, nowMillis int64, created bool) (string, error) {
	clauses := []string{}
	for _, key := range coerce.SortedKeys(props) {
		if err := graph.ValidateIdentifier("property", key); err != nil {
			return "", err
		}
		if identity.IsReserved(key) {
			return "", errors.ValidationErrorf("property %q is reserved", key)
		}
		clauses = append(clauses, fmt.Sprintf("%s.%s = %s", variable, quote(key), b.AddParam(props[key])))
	}
	now := b.AddParam(nowMillis)
	if created {
		clauses = append(clauses, fmt.Sprintf("%s.%s = %s", variable, identity.CreatedAtProperty, now))
	}
	clauses = append(clauses, fmt.Sprintf("%s.%s = %s", variable, identity.UpdatedAtProperty, now))
	return strings.Join(clauses, ", "), nil
}

// quote backquotes a validated identifier
func quote(name string) string {
	return "`" + name + "`"
}

// Database names allow dots and dashes but not underscores.
var databaseNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9.\-]{2,62}$`)

func validateDatabaseName(name string) error {
	if !databaseNamePattern.MatchString(name) {
		return errors.ValidationErrorf("invalid neo4j database name %q", name)
	}
	return nil
}
