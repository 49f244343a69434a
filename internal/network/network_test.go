package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/vector"
)

func edgeFeature(u, v int64, length float64, a, b [2]float64) vector.Feature {
	return vector.Feature{
		Props: map[string]any{"u": u, "v": v, "length": length},
		Geom:  geom.NewLineStringFlat(geom.XY, []float64{a[0], a[1], b[0], b[1]}),
	}
}

// pathGraph is 1 - 2 - 3: node 2 lies on every shortest path.
func pathGraph() *Graph {
	return BuildGraph(&vector.Layer{Features: []vector.Feature{
		edgeFeature(1, 2, 100, [2]float64{0, 0}, [2]float64{0.001, 0}),
		edgeFeature(2, 3, 100, [2]float64{0.001, 0}, [2]float64{0.002, 0}),
	}})
}

func TestBuildGraph_CountsAndCoords(t *testing.T) {
	gr := pathGraph()

	assert.Equal(t, 3, gr.NodeCount())
	assert.Equal(t, 2, gr.EdgeCount())
	assert.Equal(t, [2]float64{0.001, 0}, gr.coords[2])
}

func TestBuildGraph_SkipsMalformedEdges(t *testing.T) {
	gr := BuildGraph(&vector.Layer{Features: []vector.Feature{
		edgeFeature(1, 1, 10, [2]float64{0, 0}, [2]float64{0, 0}),
		{Props: map[string]any{"u": int64(1)}, Geom: geom.NewLineStringFlat(geom.XY, []float64{0, 0, 1, 1})},
		edgeFeature(1, 2, 0, [2]float64{0, 0}, [2]float64{1, 1}),
	}})

	assert.Equal(t, 0, gr.NodeCount())
}

func TestBuildGraph_NullGeometry(t *testing.T) {
	// Overpass occasionally emits ways without usable geometry; a
	// GeoJSON roundtrip turns those into features with a nil geom.
	gr := BuildGraph(&vector.Layer{Features: []vector.Feature{
		{Props: map[string]any{"u": int64(1), "v": int64(2), "length": 10.0}, Geom: nil},
		edgeFeature(1, 2, 100, [2]float64{0, 0}, [2]float64{0.001, 0}),
	}})

	assert.Equal(t, 2, gr.NodeCount())
	assert.Equal(t, 1, gr.EdgeCount())
}

func TestBuildGraph_JSONRoundtripTypes(t *testing.T) {
	// After a GeoJSON roundtrip the ids arrive as float64.
	gr := BuildGraph(&vector.Layer{Features: []vector.Feature{
		{
			Props: map[string]any{"u": float64(1), "v": float64(2), "length": float64(50)},
			Geom:  geom.NewLineStringFlat(geom.XY, []float64{0, 0, 1, 1}),
		},
	}})

	assert.Equal(t, 2, gr.NodeCount())
}

func TestCentrality_PathGraph(t *testing.T) {
	metrics := pathGraph().Centrality()
	require.Len(t, metrics, 3)

	byID := map[int64]NodeMetric{}
	for _, m := range metrics {
		byID[m.ID] = m
	}

	// Endpoints have degree 1/(n-1) = 0.5, the middle node 1.0.
	assert.InDelta(t, 0.5, byID[1].Degree, 1e-9)
	assert.InDelta(t, 1.0, byID[2].Degree, 1e-9)

	// Only node 2 sits between other nodes.
	assert.Greater(t, byID[2].Betweenness, 0.0)
	assert.InDelta(t, 0.0, byID[1].Betweenness, 1e-9)
	assert.InDelta(t, 0.0, byID[3].Betweenness, 1e-9)
}

func TestCentrality_SortedByID(t *testing.T) {
	metrics := pathGraph().Centrality()
	require.Len(t, metrics, 3)
	assert.Equal(t, int64(1), metrics[0].ID)
	assert.Equal(t, int64(3), metrics[2].ID)
}

func TestCentrality_EmptyGraph(t *testing.T) {
	gr := BuildGraph(&vector.Layer{})
	assert.Nil(t, gr.Centrality())
}

func TestNodesLayer(t *testing.T) {
	layer := NodesLayer([]NodeMetric{
		{ID: 7, Lon: -70.6, Lat: -33.4, Degree: 0.5, Betweenness: 0.1},
	})

	require.Len(t, layer.Features, 1)
	assert.Equal(t, "network_nodes_metrics", layer.Name)
	assert.Equal(t, int64(7), layer.Features[0].Props["node_id"])
	pt := layer.Features[0].Geom.(*geom.Point)
	assert.InDelta(t, -70.6, pt.X(), 1e-9)
}

func manzana(t *testing.T, key string, minX, minY, maxX, maxY float64) vector.Feature {
	t.Helper()
	p := geom.NewPolygon(geom.XY)
	_, err := p.SetCoords([][]geom.Coord{{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}})
	require.NoError(t, err)
	return vector.Feature{Props: map[string]any{"manzent": key}, Geom: p}
}

func TestAggregateByZone(t *testing.T) {
	manzanas := &vector.Layer{Features: []vector.Feature{
		manzana(t, "A", 0, 0, 1, 1),
		manzana(t, "B", 1, 0, 2, 1),
	}}
	metrics := []NodeMetric{
		{ID: 1, Lon: 0.2, Lat: 0.5, Degree: 0.4, Betweenness: 0.0},
		{ID: 2, Lon: 0.8, Lat: 0.5, Degree: 0.8, Betweenness: 0.2},
		{ID: 3, Lon: 1.5, Lat: 0.5, Degree: 0.2, Betweenness: 0.1},
		{ID: 4, Lon: 9, Lat: 9, Degree: 1.0, Betweenness: 1.0}, // outside
	}

	zones := AggregateByZone(metrics, manzanas, "manzent")
	require.Len(t, zones, 2)

	a := zones["A"]
	assert.Equal(t, 2, a.NodeCount)
	assert.InDelta(t, 0.6, a.DegreeMean, 1e-9)
	assert.InDelta(t, 0.1, a.BetweennessMean, 1e-9)

	b := zones["B"]
	assert.Equal(t, 1, b.NodeCount)
	assert.InDelta(t, 0.2, b.DegreeMean, 1e-9)
}
