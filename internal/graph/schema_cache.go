package graph

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// SchemaCache keeps short-lived snapshots of type descriptions (for example
// the column set of a NebulaGraph tag) so writes do not describe the schema
// on every call. Keys are scoped by graph and type kind.
type SchemaCache struct {
	c *cache.Cache
}

// NewSchemaCache creates a cache whose entries expire after ttl
func NewSchemaCache(ttl time.Duration) *SchemaCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &SchemaCache{c: cache.New(ttl, 2*ttl)}
}

func schemaKey(graph, kind, name string) string {
	return graph + "\x00" + kind + "\x00" + name
}

// Columns returns the cached column types of a type
func (s *SchemaCache) Columns(graph, kind, name string) (map[string]string, bool) {
	v, ok := s.c.Get(schemaKey(graph, kind, name))
	if !ok {
		return nil, false
	}
	return v.(map[string]string), true
}

// SetColumns stores the column types of a type
func (s *SchemaCache) SetColumns(graph, kind, name string, cols map[string]string) {
	s.c.SetDefault(schemaKey(graph, kind, name), cols)
}

// Invalidate drops one type
func (s *SchemaCache) Invalidate(graph, kind, name string) {
	s.c.Delete(schemaKey(graph, kind, name))
}

// Flush drops every entry, used when a session is replaced or a graph dropped
func (s *SchemaCache) Flush() {
	s.c.Flush()
}
