package nebulagraph

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rohankatakam/graphbridge/internal/graph/coerce"
	"github.com/rohankatakam/graphbridge/internal/graph/identity"
	"github.com/rohankatakam/graphbridge/internal/model"
)

// Column types used when a tag or edge type is created or extended
const (
	colString   = "string"
	colInt64    = "int64"
	colDouble   = "double"
	colBool     = "bool"
	colDate     = "date"
	colDateTime = "datetime"
)

// vidType is the vid type of spaces created by the adapter. Minted uids are
// 36 characters.
const vidType = "FIXED_STRING(64)"

// schemaKind tells tags from edge types in statements and cache keys
type schemaKind string

const (
	kindTag  schemaKind = "TAG"
	kindEdge schemaKind = "EDGE"
)

func kindOf(k model.LabelKind) schemaKind {
	if k == model.LabelEdge {
		return kindEdge
	}
	return kindTag
}

// quote backquotes a validated identifier
func quote(name string) string {
	return "`" + name + "`"
}

var stringEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)

// stringLiteral renders a double-quoted nGQL string
func stringLiteral(s string) string {
	return `"` + stringEscaper.Replace(s) + `"`
}

// columnTypeOf picks the column type for a normalized value. Lists and maps
// are stored as JSON text.
func columnTypeOf(v any) string {
	switch coerce.KindOf(v) {
	case coerce.KindLong:
		return colInt64
	case coerce.KindDouble:
		return colDouble
	case coerce.KindBool:
		return colBool
	case coerce.KindDate:
		return colDateTime
	}
	return colString
}

// columnTypeFor maps a declared property type to a column type
func columnTypeFor(t model.PropertyType) string {
	switch t {
	case model.PropertyLong:
		return colInt64
	case model.PropertyDouble:
		return colDouble
	case model.PropertyBoolean:
		return colBool
	case model.PropertyDate:
		return colDate
	case model.PropertyDateTime:
		return colDateTime
	}
	return colString
}

// propertyTypeOf maps a column type reported by DESCRIBE to a property type
func propertyTypeOf(col string) model.PropertyType {
	col = strings.ToLower(col)
	switch {
	case strings.HasPrefix(col, "int"):
		return model.PropertyLong
	case col == "double" || col == "float":
		return model.PropertyDouble
	case col == "bool":
		return model.PropertyBoolean
	case col == "date":
		return model.PropertyDate
	case col == "datetime" || col == "timestamp":
		return model.PropertyDateTime
	}
	return model.PropertyString
}

// literal renders a normalized value for a column of type col. Values whose
// kind differs from the column are converted where nebula would refuse them.
func literal(col string, v any) (string, error) {
	if v == nil {
		return "NULL", nil
	}
	switch strings.ToLower(col) {
	case colString, "":
		if s, ok := v.(string); ok {
			return stringLiteral(s), nil
		}
		flat, err := coerce.Flatten(v)
		if err != nil {
			return "", err
		}
		if s, ok := flat.(string); ok {
			return stringLiteral(s), nil
		}
		if t, ok := flat.(time.Time); ok {
			return stringLiteral(t.UTC().Format(time.RFC3339Nano)), nil
		}
		return stringLiteral(fmt.Sprint(flat)), nil
	case colDouble, "float":
		switch x := v.(type) {
		case float64:
			return floatLiteral(x)
		case int64:
			return floatLiteral(float64(x))
		}
	case colBool:
		if b, ok := v.(bool); ok {
			return strconv.FormatBool(b), nil
		}
	case colDate:
		if t, ok := v.(time.Time); ok {
			return fmt.Sprintf("date(%s)", stringLiteral(t.UTC().Format("2006-01-02"))), nil
		}
	case colDateTime, "timestamp":
		if t, ok := v.(time.Time); ok {
			return fmt.Sprintf("datetime(%s)", stringLiteral(t.UTC().Format("2006-01-02T15:04:05.000000"))), nil
		}
	default:
		if strings.HasPrefix(strings.ToLower(col), "int") {
			if n, ok := coerce.AsLong(v); ok {
				return strconv.FormatInt(n, 10), nil
			}
		}
		if strings.HasPrefix(strings.ToLower(col), "fixed_string") {
			return literal(colString, v)
		}
	}
	return "", fmt.Errorf("value %v (%s) does not fit column type %s", v, coerce.KindOf(v), col)
}

func floatLiteral(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("value %v cannot be stored", f)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s, nil
}

// column is one column of a tag or edge type definition
type column struct {
	Name     string
	Type     string
	Required bool
	Default  any
}

// timestampColumns carry the advisory timestamps of every element
func timestampColumns() []column {
	return []column{
		{Name: identity.CreatedAtProperty, Type: colInt64},
		{Name: identity.UpdatedAtProperty, Type: colInt64},
	}
}

func columnDefinition(c column) (string, error) {
	def := fmt.Sprintf("%s %s", quote(c.Name), c.Type)
	if c.Required {
		def += " NOT NULL"
	} else {
		def += " NULL"
	}
	if c.Default != nil {
		lit, err := literal(c.Type, c.Default)
		if err != nil {
			return "", fmt.Errorf("default of %s: %w", c.Name, err)
		}
		def += " DEFAULT " + lit
	}
	return def, nil
}

func columnDefinitions(cols []column) (string, error) {
	defs := make([]string, 0, len(cols))
	for _, c := range cols {
		d, err := columnDefinition(c)
		if err != nil {
			return "", err
		}
		defs = append(defs, d)
	}
	return strings.Join(defs, ", "), nil
}

// createSchemaStmt renders CREATE TAG/EDGE IF NOT EXISTS with timestamp columns
func createSchemaStmt(kind schemaKind, name string, cols []column) (string, error) {
	defs, err := columnDefinitions(append(timestampColumns(), cols...))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CREATE %s IF NOT EXISTS %s(%s)", kind, quote(name), defs), nil
}

// alterAddStmt renders ALTER TAG/EDGE ... ADD for new columns
func alterAddStmt(kind schemaKind, name string, cols []column) (string, error) {
	defs, err := columnDefinitions(cols)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER %s %s ADD (%s)", kind, quote(name), defs), nil
}

// indexName names the label index created with each tag or edge type
func indexName(kind schemaKind, name, prop string) string {
	base := fmt.Sprintf("idx_%s_%s", strings.ToLower(string(kind)), name)
	if prop != "" {
		base += "_" + prop
	}
	return base
}

// createIndexStmt renders a label index, or a property index when prop is
// set. String columns need an index length.
func createIndexStmt(kind schemaKind, name, prop, colType string) string {
	target := ""
	if prop != "" {
		target = quote(prop)
		if colType == colString {
			target += "(64)"
		}
	}
	return fmt.Sprintf("CREATE %s INDEX IF NOT EXISTS %s ON %s(%s)", kind, quote(indexName(kind, name, prop)), quote(name), target)
}

// rebuildIndexStmt renders the job that indexes rows written before the
// index existed
func rebuildIndexStmt(kind schemaKind, index string) string {
	return fmt.Sprintf("REBUILD %s INDEX %s", kind, quote(index))
}

// edgeRef renders "src"->"dst"@rank
func edgeRef(k identity.EdgeKey) string {
	return fmt.Sprintf("%s->%s@%d", stringLiteral(k.Source), stringLiteral(k.Target), k.Rank)
}

// assignment is one column value in an INSERT or UPDATE
type assignment struct {
	Column  string
	Literal string
}

// assignments renders props and the timestamps against the column types in
// cols, in key order.
func assignments(props map[string]any, cols map[string]string, nowMillis int64, created bool) ([]assignment, error) {
	out := make([]assignment, 0, len(props)+2)
	for _, k := range coerce.SortedKeys(props) {
		lit, err := literal(cols[k], props[k])
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", k, err)
		}
		out = append(out, assignment{Column: k, Literal: lit})
	}
	now := strconv.FormatInt(nowMillis, 10)
	if created {
		out = append(out, assignment{Column: identity.CreatedAtProperty, Literal: now})
	}
	out = append(out, assignment{Column: identity.UpdatedAtProperty, Literal: now})
	return out, nil
}

func insertColumns(as []assignment) (names, values string) {
	n := make([]string, len(as))
	v := make([]string, len(as))
	for i, a := range as {
		n[i] = quote(a.Column)
		v[i] = a.Literal
	}
	return strings.Join(n, ", "), strings.Join(v, ", ")
}

func setClause(as []assignment) string {
	parts := make([]string, len(as))
	for i, a := range as {
		parts[i] = fmt.Sprintf("%s = %s", quote(a.Column), a.Literal)
	}
	return strings.Join(parts, ", ")
}

func insertVertexStmt(tag, vid string, as []assignment) string {
	names, values := insertColumns(as)
	return fmt.Sprintf("INSERT VERTEX %s(%s) VALUES %s:(%s)", quote(tag), names, stringLiteral(vid), values)
}

func insertEdgeStmt(k identity.EdgeKey, as []assignment) string {
	names, values := insertColumns(as)
	return fmt.Sprintf("INSERT EDGE %s(%s) VALUES %s:(%s)", quote(k.Label), names, edgeRef(k), values)
}

func updateVertexStmt(tag, vid string, as []assignment) string {
	return fmt.Sprintf("UPDATE VERTEX ON %s %s SET %s", quote(tag), stringLiteral(vid), setClause(as))
}

func updateEdgeStmt(k identity.EdgeKey, as []assignment) string {
	return fmt.Sprintf("UPDATE EDGE ON %s %s SET %s", quote(k.Label), edgeRef(k), setClause(as))
}

func fetchVerticesStmt(vids ...string) string {
	lits := make([]string, len(vids))
	for i, v := range vids {
		lits[i] = stringLiteral(v)
	}
	return fmt.Sprintf("FETCH PROP ON * %s YIELD vertex AS v", strings.Join(lits, ", "))
}

func fetchEdgeStmt(k identity.EdgeKey) string {
	return fmt.Sprintf("FETCH PROP ON %s %s YIELD edge AS e", quote(k.Label), edgeRef(k))
}
