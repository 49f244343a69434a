// Package network computes street-graph centrality metrics and
// aggregates them per census manzana.
package network

import (
	"gonum.org/v1/gonum/graph/simple"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/vector"
)

// Graph is an undirected weighted street graph keyed by OSM node ids,
// with node coordinates kept for containment tests.
type Graph struct {
	g      *simple.WeightedUndirectedGraph
	coords map[int64][2]float64 // lon, lat
}

// BuildGraph assembles the graph from an edge layer: every LineString
// feature carries u, v and length props plus the segment geometry.
// Self-loops and malformed features are skipped.
func BuildGraph(layer *vector.Layer) *Graph {
	gr := &Graph{
		g:      simple.NewWeightedUndirectedGraph(0, 0),
		coords: make(map[int64][2]float64),
	}
	for _, f := range layer.Features {
		if f.Geom == nil {
			continue
		}
		u, uok := asInt64(f.Props["u"])
		v, vok := asInt64(f.Props["v"])
		if !uok || !vok || u == v {
			continue
		}
		length, ok := asFloat64(f.Props["length"])
		if !ok || length <= 0 {
			continue
		}

		if flat := f.Geom.FlatCoords(); len(flat) >= 4 {
			gr.coords[u] = [2]float64{flat[0], flat[1]}
			gr.coords[v] = [2]float64{flat[len(flat)-2], flat[len(flat)-1]}
		}
		gr.g.SetWeightedEdge(gr.g.NewWeightedEdge(simple.Node(u), simple.Node(v), length))
	}
	return gr
}

// NodeCount reports the number of distinct nodes.
func (gr *Graph) NodeCount() int {
	return gr.g.Nodes().Len()
}

// EdgeCount reports the number of distinct undirected edges.
func (gr *Graph) EdgeCount() int {
	return gr.g.Edges().Len()
}

// asInt64 tolerates the types a props map picks up from construction
// or a JSON roundtrip.
func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}
