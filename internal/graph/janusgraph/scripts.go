package janusgraph

import (
	"fmt"
	"strings"

	"github.com/rohankatakam/graphbridge/internal/errors"
	"github.com/rohankatakam/graphbridge/internal/model"
)

// Binding names shared by every script
const (
	bindGraph  = "gbGraph"
	bindID     = "gbId"
	bindLabel  = "gbLabel"
	bindProps  = "gbProps"
	bindSource = "gbSource"
	bindTarget = "gbTarget"
	bindCap    = "gbCap"
	bindName   = "gbName"
	bindConfig = "gbConfig"
)

// Keys of the tagged maps the scripts return for graph elements
const (
	tagKind       = "~kind"
	tagID         = "id"
	tagLabel      = "label"
	tagOut        = "out"
	tagIn         = "in"
	tagProperties = "properties"
	tagObjects    = "objects"
	tagMissing    = "~missing"

	kindVertex = "vertex"
	kindEdge   = "edge"
	kindPath   = "path"
)

// openGraph selects the configured graph named by the gbGraph binding
const openGraph = `def graph = ConfiguredGraphFactory.open(gbGraph)
def g = graph.traversal()
`

// elementFns converts results into plain lists, maps and scalars on the server.
// Elements become tagged maps keyed by their string ids, which keeps janus
// relation identifiers and other custom types off the wire.
const elementFns = `def gbValue
gbValue = { o ->
  if (o == null || o instanceof Number || o instanceof String || o instanceof Boolean || o instanceof Date) return o
  if (o instanceof Vertex) return ['~kind': 'vertex', 'id': o.id().toString(), 'label': o.label(),
      'properties': o.properties().collectEntries { [(it.key()): gbValue(it.value())] }]
  if (o instanceof Edge) return ['~kind': 'edge', 'id': o.id().toString(), 'label': o.label(),
      'out': o.outVertex().id().toString(), 'in': o.inVertex().id().toString(),
      'properties': o.properties().collectEntries { [(it.key()): gbValue(it.value())] }]
  if (o instanceof Path) return ['~kind': 'path', 'objects': o.objects().collect { gbValue(it) }]
  if (o instanceof Property) return gbValue(o.value())
  if (o instanceof Map) return o.collectEntries { k, v -> [(k.toString()): gbValue(v)] }
  if (o instanceof Iterator) return o.collect { gbValue(it) }
  if (o instanceof Iterable) return o.collect { gbValue(it) }
  if (o.getClass().isArray()) return o.collect { gbValue(it) }
  return o.toString()
}
def gbRows = { o, n ->
  def iter = o instanceof Iterator ? o : (o instanceof Iterable && !(o instanceof Map) ? o.iterator() : [o].iterator())
  def out = []
  while (iter.hasNext() && out.size() < n) out << gbValue(iter.next())
  out
}
def gbVid = { id -> id instanceof String && id.isLong() ? id.toLong() : id }
`

// script assembles the graph selection, the helpers and body. An empty graph
// name leaves the server's own graph and g bindings in place.
func script(graphName, body string) string {
	var b strings.Builder
	if graphName != "" {
		b.WriteString(openGraph)
	}
	b.WriteString(elementFns)
	b.WriteString(body)
	return b.String()
}

// readBody wraps a read so the transaction it opened is always rolled back
func readBody(body string) string {
	return "try {\n" + body + "\n} finally { graph.tx().rollback() }\n"
}

// writeBody commits on success and rolls back on failure
func writeBody(body string) string {
	return "try {\ndef gbOut = {\n" + body + "\n}.call()\ngraph.tx().commit()\ngbOut\n} catch (e) { graph.tx().rollback(); throw e }\n"
}

// nativeBody runs a caller's Gremlin inside a closure and flattens at most
// cap+1 rows of its result before the rollback.
func nativeBody(query string) string {
	return readBody("gbRows({ ->\n" + query + "\n}.call(), gbCap + 1)")
}

const (
	createVertexScript = `def t = g.addV(gbLabel)
gbProps.each { k, v -> t = t.property(k, v) }
gbValue(t.next())`

	getVertexScript = `gbValue(g.V(gbVid(gbId)).tryNext().orElse(null))`

	updateVertexScript = `def v = g.V(gbVid(gbId)).tryNext().orElse(null)
if (v == null) return null
gbProps.each { k, val -> v.property(k, val) }
gbValue(v)`

	deleteVertexScript = `def v = g.V(gbVid(gbId)).tryNext().orElse(null)
if (v == null) return false
v.remove()
true`

	queryVerticesScript  = `gbRows(g.V().limit(gbCap), gbCap)`
	queryVerticesByLabel = `gbRows(g.V().hasLabel(gbLabel).limit(gbCap), gbCap)`
	queryEdgesScript     = `gbRows(g.E().limit(gbCap), gbCap)`
	queryEdgesByLabel    = `gbRows(g.E().hasLabel(gbLabel).limit(gbCap), gbCap)`

	createEdgeScript = `def src = g.V(gbVid(gbSource)).tryNext().orElse(null)
if (src == null) return ['~missing': 'source']
def dst = g.V(gbVid(gbTarget)).tryNext().orElse(null)
if (dst == null) return ['~missing': 'target']
def t = g.V(src).addE(gbLabel).to(dst)
gbProps.each { k, v -> t = t.property(k, v) }
gbValue(t.next())`

	getEdgeScript = `gbValue(g.E(gbId).tryNext().orElse(null))`

	updateEdgeScript = `def e = g.E(gbId).tryNext().orElse(null)
if (e == null) return null
gbProps.each { k, val -> e.property(k, val) }
gbValue(e)`

	deleteEdgeScript = `def e = g.E(gbId).tryNext().orElse(null)
if (e == null) return false
e.remove()
true`
)

const (
	listGraphsScript = `ConfiguredGraphFactory.getGraphNames().sort()`

	// createGraphScript uses the server's template configuration when no
	// storage parameters are bound
	createGraphScript = `if (ConfiguredGraphFactory.getGraphNames().contains(gbName)) return false
if (gbConfig.isEmpty()) {
  ConfiguredGraphFactory.create(gbName)
} else {
  def m = new HashMap(gbConfig)
  m.put('graph.graphname', gbName)
  ConfiguredGraphFactory.createConfiguration(new org.apache.commons.configuration2.MapConfiguration(m))
  ConfiguredGraphFactory.open(gbName)
}
true`

	deleteGraphScript = `if (!ConfiguredGraphFactory.getGraphNames().contains(gbName)) return false
ConfiguredGraphFactory.drop(gbName)
true`

	// typesScript lists labels with the property keys of the composite
	// indexes restricted to them. %s is VertexLabel or EdgeLabel, %s Vertex or
	// Edge.
	typesScript = `def mgmt = graph.openManagement()
try {
  def labels = '%[1]s' == 'VertexLabel' ? mgmt.getVertexLabels() : mgmt.getRelationTypes(EdgeLabel.class)
  labels.collect { l ->
    def props = []
    mgmt.getGraphIndexes(%[2]s.class).each { idx ->
      if (idx.getIndexOnlyConstraint()?.name() == l.name()) {
        idx.getFieldKeys().each { k -> props << ['name': k.name(), 'type': k.dataType().getName()] }
      }
    }
    ['name': l.name(), 'properties': props]
  }
} finally { mgmt.rollback() }`

	// createTypeScript is add-only: existing labels, keys and indexes are
	// kept. %s is Vertex or Edge.
	createTypeScript = `def mgmt = graph.openManagement()
try {
  def label = '%[1]s' == 'Vertex' ?
      (mgmt.getVertexLabel(gbName) ?: mgmt.makeVertexLabel(gbName).make()) :
      (mgmt.getEdgeLabel(gbName) ?: mgmt.makeEdgeLabel(gbName).make())
  gbProps.each { p ->
    def key = mgmt.getPropertyKey(p.name) ?: mgmt.makePropertyKey(p.name).dataType(Class.forName(p.type)).make()
    if (p.index != null && !mgmt.containsGraphIndex(p.index)) {
      mgmt.buildIndex(p.index, %[1]s.class).addKey(key).indexOnly(label).buildCompositeIndex()
    }
  }
  mgmt.commit()
} catch (e) { mgmt.rollback(); throw e }
true`

	testScript = `1+1`
)

// javaTypeOf maps a property type to the property key data type. Lists and
// maps are stored as JSON text.
func javaTypeOf(t model.PropertyType) string {
	switch t {
	case model.PropertyLong:
		return "java.lang.Long"
	case model.PropertyDouble:
		return "java.lang.Double"
	case model.PropertyBoolean:
		return "java.lang.Boolean"
	case model.PropertyDate, model.PropertyDateTime:
		return "java.util.Date"
	}
	return "java.lang.String"
}

// propertyTypeOf maps a property key data type back
func propertyTypeOf(javaType string) model.PropertyType {
	switch javaType {
	case "java.lang.Long", "java.lang.Integer", "java.lang.Short", "java.lang.Byte":
		return model.PropertyLong
	case "java.lang.Double", "java.lang.Float":
		return model.PropertyDouble
	case "java.lang.Boolean":
		return model.PropertyBoolean
	case "java.util.Date", "java.time.Instant":
		return model.PropertyDateTime
	}
	return model.PropertyString
}

// indexName names the composite index built for an indexed property
func indexName(kind model.LabelKind, label, prop string) string {
	return fmt.Sprintf("%s_%s_%s", strings.ToLower(string(kind)), label, prop)
}

// typeProps renders property definitions as the gbProps binding of
// createTypeScript. Required flags and defaults have no janus counterpart.
func typeProps(t model.LabelType) []any {
	out := make([]any, 0, len(t.Properties))
	for _, p := range t.Properties {
		entry := map[string]any{"name": p.Name, "type": javaTypeOf(p.Type), "index": nil}
		if p.Indexed {
			entry["index"] = indexName(t.Kind, t.Name, p.Name)
		}
		out = append(out, entry)
	}
	return out
}

// Storage backend names accepted in the storage.backend parameter
var storageBackends = map[string]string{
	"":           "inmemory",
	"inmemory":   "inmemory",
	"cassandra":  "cql",
	"cql":        "cql",
	"hbase":      "hbase",
	"berkeley":   "berkeleyje",
	"berkeleyje": "berkeleyje",
}

// storageConfig builds the graph configuration for CreateGraph from the
// connection parameters. It is empty when no storage parameter is set, which
// leaves the server's template in charge.
func storageConfig(cfg model.ConnectionConfig) (map[string]any, error) {
	out := make(map[string]any)
	for k, v := range cfg.Params {
		if strings.HasPrefix(k, "storage.") || strings.HasPrefix(k, "index.") || strings.HasPrefix(k, "cache.") {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return out, nil
	}
	backend, ok := storageBackends[strings.ToLower(cfg.Param("storage.backend", ""))]
	if !ok {
		return nil, errors.ValidationErrorf("unknown janus storage backend %q", cfg.Params["storage.backend"])
	}
	out["storage.backend"] = backend
	return out, nil
}
