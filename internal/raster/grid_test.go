package raster

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testGrid builds a w*h grid anchored at (-71, -33) with 0.01 degree
// pixels, filled from vals in row-major order.
func testGrid(t *testing.T, w, h int, vals []float64) *Grid {
	t.Helper()
	require.Len(t, vals, w*h)
	g := NewGrid(w, h, [6]float64{-71, 0.01, 0, -33, 0, -0.01}, -9999)
	copy(g.Data, vals)
	return g
}

func TestNewGrid_FilledWithNoData(t *testing.T) {
	g := NewGrid(3, 2, [6]float64{0, 1, 0, 0, 0, -1}, -9999)

	require.Len(t, g.Data, 6)
	for _, v := range g.Data {
		assert.True(t, g.IsNoData(v))
	}
}

func TestGrid_AtSet(t *testing.T) {
	g := NewGrid(3, 2, [6]float64{0, 1, 0, 0, 0, -1}, -9999)

	g.Set(2, 1, 42)
	assert.Equal(t, 42.0, g.At(2, 1))
	assert.False(t, g.IsNoData(g.At(2, 1)))
}

func TestGrid_IsNoData_NaN(t *testing.T) {
	g := NewGrid(1, 1, [6]float64{0, 1, 0, 0, 0, -1}, -9999)

	assert.True(t, g.IsNoData(math.NaN()))
	assert.True(t, g.IsNoData(-9999))
	assert.False(t, g.IsNoData(0))
}

func TestGrid_PixelCenter(t *testing.T) {
	g := NewGrid(10, 10, [6]float64{-71, 0.01, 0, -33, 0, -0.01}, -9999)

	x, y := g.PixelCenter(0, 0)
	assert.InDelta(t, -70.995, x, 1e-9)
	assert.InDelta(t, -33.005, y, 1e-9)

	x, y = g.PixelCenter(9, 9)
	assert.InDelta(t, -70.905, x, 1e-9)
	assert.InDelta(t, -33.095, y, 1e-9)
}

func TestGrid_PixelSize(t *testing.T) {
	g := NewGrid(1, 1, [6]float64{-71, 0.01, 0, -33, 0, -0.01}, -9999)

	dx, dy := g.PixelSize()
	assert.InDelta(t, 0.01, dx, 1e-12)
	assert.InDelta(t, 0.01, dy, 1e-12)
}

func TestGrid_AlignedWith(t *testing.T) {
	a := NewGrid(4, 4, [6]float64{-71, 0.01, 0, -33, 0, -0.01}, -9999)
	b := NewGrid(4, 4, [6]float64{-71, 0.01, 0, -33, 0, -0.01}, -1)
	c := NewGrid(4, 5, [6]float64{-71, 0.01, 0, -33, 0, -0.01}, -9999)
	d := NewGrid(4, 4, [6]float64{-71.5, 0.01, 0, -33, 0, -0.01}, -9999)

	assert.True(t, a.AlignedWith(b), "nodata must not affect alignment")
	assert.False(t, a.AlignedWith(c), "shape mismatch")
	assert.False(t, a.AlignedWith(d), "origin mismatch")
}

func TestGrid_Validate(t *testing.T) {
	g := NewGrid(2, 2, [6]float64{0, 1, 0, 0, 0, -1}, -9999)
	require.NoError(t, g.Validate())

	g.Data = g.Data[:3]
	assert.Error(t, g.Validate())

	assert.Error(t, (&Grid{Width: 0, Height: 2}).Validate())
}

func TestGrid_Stats(t *testing.T) {
	g := testGrid(t, 2, 2, []float64{10, 20, -9999, 30})

	min, max, mean, valid := g.Stats()
	assert.Equal(t, 3, valid)
	assert.Equal(t, 10.0, min)
	assert.Equal(t, 30.0, max)
	assert.InDelta(t, 20.0, mean, 1e-9)
}

func TestGrid_Stats_AllNoData(t *testing.T) {
	g := NewGrid(2, 2, [6]float64{0, 1, 0, 0, 0, -1}, -9999)

	_, _, _, valid := g.Stats()
	assert.Equal(t, 0, valid)
}
