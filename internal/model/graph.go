package model

import (
	"github.com/rohankatakam/graphbridge/internal/errors"
)

// Vertex is the backend-independent vertex record. CreatedAt and UpdatedAt are
// epoch millis and advisory: zero when the backend does not keep them.
type Vertex struct {
	UID         string         `json:"uid" yaml:"uid"`
	Label       string         `json:"label" yaml:"label"`
	Properties  map[string]any `json:"properties" yaml:"properties"`
	CreatedAt   int64          `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	UpdatedAt   int64          `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
	Placeholder bool           `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
}

// Edge is the backend-independent edge record
type Edge struct {
	UID         string         `json:"uid" yaml:"uid"`
	Label       string         `json:"label" yaml:"label"`
	SourceUID   string         `json:"sourceUid" yaml:"sourceUid"`
	TargetUID   string         `json:"targetUid" yaml:"targetUid"`
	Properties  map[string]any `json:"properties" yaml:"properties"`
	CreatedAt   int64          `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	UpdatedAt   int64          `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
	Placeholder bool           `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
}

// LabelKind distinguishes vertex types from edge types
type LabelKind string

const (
	LabelVertex LabelKind = "VERTEX"
	LabelEdge   LabelKind = "EDGE"
)

// PropertyType names the generic property value types
type PropertyType string

const (
	PropertyString   PropertyType = "STRING"
	PropertyLong     PropertyType = "LONG"
	PropertyDouble   PropertyType = "DOUBLE"
	PropertyBoolean  PropertyType = "BOOLEAN"
	PropertyDate     PropertyType = "DATE"
	PropertyDateTime PropertyType = "DATETIME"
	PropertyList     PropertyType = "LIST"
	PropertyMap      PropertyType = "MAP"
)

// PropertyDefinition describes one declared property of a type
type PropertyDefinition struct {
	Name         string       `json:"name" yaml:"name"`
	Type         PropertyType `json:"type" yaml:"type"`
	Required     bool         `json:"required,omitempty" yaml:"required,omitempty"`
	DefaultValue any          `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
	Indexed      bool         `json:"indexed,omitempty" yaml:"indexed,omitempty"`
	Description  string       `json:"description,omitempty" yaml:"description,omitempty"`
}

// LabelType is a vertex or edge type of one graph
type LabelType struct {
	Name        string               `json:"name" yaml:"name"`
	Kind        LabelKind            `json:"kind" yaml:"kind"`
	Properties  []PropertyDefinition `json:"properties,omitempty" yaml:"properties,omitempty"`
	Description string               `json:"description,omitempty" yaml:"description,omitempty"`
}

// GraphSchema is the type snapshot of one graph
type GraphSchema struct {
	GraphName   string      `json:"graphName" yaml:"graphName"`
	Backend     BackendKind `json:"backend" yaml:"backend"`
	VertexTypes []LabelType `json:"vertexTypes" yaml:"vertexTypes"`
	EdgeTypes   []LabelType `json:"edgeTypes" yaml:"edgeTypes"`
}

// DeletionScope says what a type deletion actually removed
type DeletionScope string

const (
	// DeletionScopeSchema means the type definition itself is gone
	DeletionScopeSchema DeletionScope = "schema"
	// DeletionScopeInstances means only elements carrying the type were
	// removed; the backend keeps no separate definition to drop
	DeletionScopeInstances DeletionScope = "instances"
)

// TypeDeletion reports the outcome of deleting a vertex or edge type
type TypeDeletion struct {
	Name             string        `json:"name" yaml:"name"`
	Kind             LabelKind     `json:"kind" yaml:"kind"`
	Scope            DeletionScope `json:"scope" yaml:"scope"`
	InstancesRemoved int64         `json:"instancesRemoved" yaml:"instancesRemoved"`
}

// Partial is true when the type definition survived the deletion
func (d TypeDeletion) Partial() bool {
	return d.Scope != DeletionScopeSchema
}

// Query status values
const (
	StatusSuccess = "SUCCESS"
	StatusError   = "ERROR"
)

// QueryStatistics accompanies every normalized result. ResultRows counts the
// distinct vertices and edges after dedup; ElementsSeen counts every vertex
// and edge encounter before dedup.
type QueryStatistics struct {
	ResultRows      int    `json:"resultRows" yaml:"resultRows"`
	ElementsSeen    int    `json:"elementsSeen" yaml:"elementsSeen"`
	ScalarCount     int    `json:"scalarCount" yaml:"scalarCount"`
	PartialFailures int    `json:"partialFailures,omitempty" yaml:"partialFailures,omitempty"`
	ExecutionTimeMs int64  `json:"executionTimeMs" yaml:"executionTimeMs"`
	Status          string `json:"status" yaml:"status"`
	ErrorMessage    string `json:"errorMessage,omitempty" yaml:"errorMessage,omitempty"`
}

// GraphQueryResult is the canonical shape of a native query result. Only the
// result normalizer builds one.
type GraphQueryResult struct {
	Vertices   []Vertex        `json:"vertices" yaml:"vertices"`
	Edges      []Edge          `json:"edges" yaml:"edges"`
	Scalars    []any           `json:"scalars,omitempty" yaml:"scalars,omitempty"`
	Statistics QueryStatistics `json:"statistics" yaml:"statistics"`
	Warnings   []string        `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Partial returns a PartialExtraction error when one or more elements were
// replaced by placeholders, nil otherwise. The result itself stays usable.
func (r *GraphQueryResult) Partial() error {
	if r == nil || r.Statistics.PartialFailures == 0 {
		return nil
	}
	return errors.PartialExtraction(r.Statistics.PartialFailures, r.Warnings)
}

// FindVertex returns the vertex with the uid, if present
func (r *GraphQueryResult) FindVertex(uid string) (Vertex, bool) {
	for _, v := range r.Vertices {
		if v.UID == uid {
			return v, true
		}
	}
	return Vertex{}, false
}

// FindEdge returns the edge with the uid, if present
func (r *GraphQueryResult) FindEdge(uid string) (Edge, bool) {
	for _, e := range r.Edges {
		if e.UID == uid {
			return e, true
		}
	}
	return Edge{}, false
}
