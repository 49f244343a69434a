package network

import (
	"sort"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/path"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/vector"
)

// NodeMetric is one street node with its centrality scores. Scores are
// normalized the conventional way: degree by n-1, betweenness by
// 2/((n-1)(n-2)) for an undirected graph.
type NodeMetric struct {
	ID          int64
	Lon, Lat    float64
	Degree      float64
	Betweenness float64
}

// Centrality computes per-node degree and length-weighted betweenness
// centrality. Nodes come back sorted by id so output is stable.
func (gr *Graph) Centrality() []NodeMetric {
	n := gr.g.Nodes().Len()
	if n == 0 {
		return nil
	}

	var betw map[int64]float64
	if n > 2 {
		paths := path.DijkstraAllPaths(gr.g)
		betw = network.BetweennessWeighted(gr.g, paths)
	}

	degreeNorm := 1.0
	if n > 1 {
		degreeNorm = 1 / float64(n-1)
	}
	betwNorm := 1.0
	if n > 2 {
		betwNorm = 2 / (float64(n-1) * float64(n-2))
	}

	metrics := make([]NodeMetric, 0, n)
	nodes := gr.g.Nodes()
	for nodes.Next() {
		id := nodes.Node().ID()
		coord := gr.coords[id]
		metrics = append(metrics, NodeMetric{
			ID:          id,
			Lon:         coord[0],
			Lat:         coord[1],
			Degree:      float64(gr.g.From(id).Len()) * degreeNorm,
			Betweenness: betw[id] * betwNorm,
		})
	}
	sort.Slice(metrics, func(i, j int) bool { return metrics[i].ID < metrics[j].ID })

	zap.L().Info("network centrality computed",
		zap.Int("nodes", n),
		zap.Int("edges", gr.EdgeCount()),
	)
	return metrics
}

// NodesLayer exports the scored nodes as a point layer for
// network_nodes_metrics.geojson.
func NodesLayer(metrics []NodeMetric) *vector.Layer {
	layer := &vector.Layer{Name: "network_nodes_metrics", SRID: 4326}
	for _, m := range metrics {
		layer.Features = append(layer.Features, vector.Feature{
			Props: map[string]any{
				"node_id":     m.ID,
				"degree":      m.Degree,
				"betweenness": m.Betweenness,
			},
			Geom: geom.NewPointFlat(geom.XY, []float64{m.Lon, m.Lat}),
		})
	}
	return layer
}

// ZoneMetrics is the per-manzana aggregate of the nodes it contains.
type ZoneMetrics struct {
	Key             string
	NodeCount       int
	DegreeMean      float64
	BetweennessMean float64
}

// AggregateByZone assigns each node to the first manzana containing it
// and averages the scores. Manzanas without nodes are absent from the
// result; callers emit zeros for them.
func AggregateByZone(metrics []NodeMetric, manzanas *vector.Layer, keyProp string) map[string]ZoneMetrics {
	out := make(map[string]ZoneMetrics)
	for _, m := range metrics {
		for _, f := range manzanas.Features {
			if !vector.PointInGeom(f.Geom, m.Lon, m.Lat) {
				continue
			}
			key := f.PropString(keyProp)
			if key == "" {
				break
			}
			z := out[key]
			z.Key = key
			z.NodeCount++
			z.DegreeMean += m.Degree
			z.BetweennessMean += m.Betweenness
			out[key] = z
			break
		}
	}
	for key, z := range out {
		z.DegreeMean /= float64(z.NodeCount)
		z.BetweennessMean /= float64(z.NodeCount)
		out[key] = z
	}
	return out
}
