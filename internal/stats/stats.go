// Package stats derives graph statistics from the adapter capability set:
// per-type vertex and edge counts plus a degree summary. Counts come from
// label scans, so they are bounded by the adapter's row cap; a type whose scan
// hit the cap is reported as Capped.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rohankatakam/graphbridge/internal/graph"
	"github.com/rohankatakam/graphbridge/internal/model"
	"github.com/rohankatakam/graphbridge/internal/registry"
)

// DefaultTop is how many highest-degree vertices a summary keeps
const DefaultTop = 5

// TypeCount is the number of elements seen for one vertex or edge type
type TypeCount struct {
	Name   string `json:"name" yaml:"name"`
	Count  int    `json:"count" yaml:"count"`
	Capped bool   `json:"capped,omitempty" yaml:"capped,omitempty"`
}

// VertexDegree is the degree of one vertex within the scanned edges
type VertexDegree struct {
	UID   string `json:"uid" yaml:"uid"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
	In    int    `json:"in" yaml:"in"`
	Out   int    `json:"out" yaml:"out"`
}

// Total is In + Out
func (d VertexDegree) Total() int { return d.In + d.Out }

// DegreeSummary aggregates vertex degrees
type DegreeSummary struct {
	Vertices int            `json:"vertices" yaml:"vertices"`
	Isolated int            `json:"isolated" yaml:"isolated"`
	MaxIn    int            `json:"max_in" yaml:"max_in"`
	MaxOut   int            `json:"max_out" yaml:"max_out"`
	Mean     float64        `json:"mean" yaml:"mean"`
	Top      []VertexDegree `json:"top,omitempty" yaml:"top,omitempty"`
}

// GraphStats is the statistics of one graph
type GraphStats struct {
	Backend       model.BackendKind `json:"backend" yaml:"backend"`
	Graph         string            `json:"graph,omitempty" yaml:"graph,omitempty"`
	VertexTypes   []TypeCount       `json:"vertex_types" yaml:"vertex_types"`
	EdgeTypes     []TypeCount       `json:"edge_types" yaml:"edge_types"`
	TotalVertices int               `json:"total_vertices" yaml:"total_vertices"`
	TotalEdges    int               `json:"total_edges" yaml:"total_edges"`
	Degree        DegreeSummary     `json:"degree" yaml:"degree"`
	// Capped is set when any count was cut off by the row cap
	Capped bool `json:"capped" yaml:"capped"`
}

// Options tune a collection
type Options struct {
	// RowCap must match the adapter's row cap for Capped to be accurate
	RowCap int
	// Parallel bounds concurrent label scans
	Parallel int
	Top      int
	Logger   *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.RowCap <= 0 {
		o.RowCap = graph.DefaultRowCap
	}
	if o.Parallel <= 0 {
		o.Parallel = 4
	}
	if o.Top <= 0 {
		o.Top = DefaultTop
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Collect computes the statistics of graphName through a. Label scans run
// concurrently; adapters serialize them internally.
func Collect(ctx context.Context, a graph.GraphAdapter, graphName string, opts Options) (*GraphStats, error) {
	opts = opts.withDefaults()
	logger := opts.Logger.With("component", "stats", "backend", a.Kind(), "graph", graphName)

	var vertexTypes, edgeTypes []model.LabelType
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vertexTypes, err = a.GetVertexTypes(gctx, graphName)
		return err
	})
	g.Go(func() error {
		var err error
		edgeTypes, err = a.GetEdgeTypes(gctx, graphName)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("list types: %w", err)
	}

	vertices := make([][]model.Vertex, len(vertexTypes))
	edges := make([][]model.Edge, len(edgeTypes))

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(opts.Parallel)
	for i, t := range vertexTypes {
		g.Go(func() error {
			vs, err := a.QueryVertices(gctx, graphName, t.Name)
			if err != nil {
				return fmt.Errorf("scan vertex type %s: %w", t.Name, err)
			}
			vertices[i] = vs
			return nil
		})
	}
	for i, t := range edgeTypes {
		g.Go(func() error {
			es, err := a.QueryEdges(gctx, graphName, t.Name)
			if err != nil {
				return fmt.Errorf("scan edge type %s: %w", t.Name, err)
			}
			edges[i] = es
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &GraphStats{
		Backend:     a.Kind(),
		Graph:       graphName,
		VertexTypes: make([]TypeCount, len(vertexTypes)),
		EdgeTypes:   make([]TypeCount, len(edgeTypes)),
	}
	for i, t := range vertexTypes {
		out.VertexTypes[i] = TypeCount{Name: t.Name, Count: len(vertices[i]), Capped: len(vertices[i]) >= opts.RowCap}
		out.TotalVertices += len(vertices[i])
		out.Capped = out.Capped || out.VertexTypes[i].Capped
	}
	for i, t := range edgeTypes {
		out.EdgeTypes[i] = TypeCount{Name: t.Name, Count: len(edges[i]), Capped: len(edges[i]) >= opts.RowCap}
		out.TotalEdges += len(edges[i])
		out.Capped = out.Capped || out.EdgeTypes[i].Capped
	}
	out.Degree = Degrees(flatten(vertices), flatten(edges), opts.Top)

	if out.Capped {
		logger.Warn("statistics cut off by row cap", "row_cap", opts.RowCap)
	}
	logger.Debug("collected graph statistics",
		"vertex_types", len(vertexTypes), "edge_types", len(edgeTypes),
		"vertices", out.TotalVertices, "edges", out.TotalEdges)
	return out, nil
}

// Degrees summarizes the degree of every vertex that appears in vertices or
// as an edge endpoint. Top keeps the top highest-degree vertices.
func Degrees(vertices []model.Vertex, edges []model.Edge, top int) DegreeSummary {
	byUID := make(map[string]*VertexDegree, len(vertices))
	get := func(uid string) *VertexDegree {
		d, ok := byUID[uid]
		if !ok {
			d = &VertexDegree{UID: uid}
			byUID[uid] = d
		}
		return d
	}
	for _, v := range vertices {
		if v.Placeholder {
			continue
		}
		get(v.UID).Label = v.Label
	}
	for _, e := range edges {
		if e.Placeholder {
			continue
		}
		get(e.SourceUID).Out++
		get(e.TargetUID).In++
	}

	var s DegreeSummary
	all := make([]VertexDegree, 0, len(byUID))
	total := 0
	for _, d := range byUID {
		all = append(all, *d)
		total += d.Total()
		if d.Total() == 0 {
			s.Isolated++
		}
		s.MaxIn = max(s.MaxIn, d.In)
		s.MaxOut = max(s.MaxOut, d.Out)
	}
	s.Vertices = len(all)
	if s.Vertices > 0 {
		s.Mean = float64(total) / float64(s.Vertices)
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Total() != all[j].Total() {
			return all[i].Total() > all[j].Total()
		}
		return all[i].UID < all[j].UID
	})
	for _, d := range all {
		if len(s.Top) == top || d.Total() == 0 {
			break
		}
		s.Top = append(s.Top, d)
	}
	return s
}

// Result is the outcome of one backend in CollectAll
type Result struct {
	Stats *GraphStats
	Err   error
}

// CollectAll collects statistics of one graph per backend in parallel, each
// through the registry's serialized access. A failing backend does not stop
// the others.
func CollectAll(ctx context.Context, reg *registry.Registry, graphs map[model.BackendKind]string, opts Options) map[model.BackendKind]Result {
	var mu sync.Mutex
	results := make(map[model.BackendKind]Result, len(graphs))

	var g errgroup.Group
	for kind, graphName := range graphs {
		g.Go(func() error {
			st, err := registry.Run(ctx, reg, kind, model.ConnectionConfig{}, func(ctx context.Context, a graph.GraphAdapter) (*GraphStats, error) {
				return Collect(ctx, a, graphName, opts)
			})
			mu.Lock()
			results[kind] = Result{Stats: st, Err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func flatten[T any](groups [][]T) []T {
	var out []T
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
