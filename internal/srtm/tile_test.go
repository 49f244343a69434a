package srtm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/vector"
)

func TestTileCode(t *testing.T) {
	tests := []struct {
		lat, lon int
		want     string
	}{
		{-33, -71, "S33W071"},
		{-34, -71, "S34W071"},
		{-1, -180, "S01W180"},
		{0, 0, "N00E000"},
		{45, 7, "N45E007"},
		{-56, -68, "S56W068"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TileCode(tt.lat, tt.lon))
	}
}

func TestParseTileCode_Roundtrip(t *testing.T) {
	for _, code := range []string{"S33W071", "N00E000", "S01W180", "N45E007"} {
		lat, lon, err := ParseTileCode(code)
		require.NoError(t, err)
		assert.Equal(t, code, TileCode(lat, lon))
	}
}

func TestParseTileCode_Malformed(t *testing.T) {
	for _, code := range []string{"", "S33", "X33W071", "S33X071", "S33W0A1", "S33W0711"} {
		_, _, err := ParseTileCode(code)
		assert.Error(t, err, code)
	}
}

func TestTilesForBBox_SingleCell(t *testing.T) {
	b := vector.BBox{MinX: -70.8, MinY: -33.6, MaxX: -70.4, MaxY: -33.3}

	assert.Equal(t, []string{"S34W071"}, TilesForBBox(b))
}

func TestTilesForBBox_SpansFourCells(t *testing.T) {
	b := vector.BBox{MinX: -71.2, MinY: -33.9, MaxX: -70.9, MaxY: -32.8}

	assert.Equal(t,
		[]string{"S33W071", "S33W072", "S34W071", "S34W072"},
		TilesForBBox(b))
}

func TestTilesForBBox_MaxEdgeOnCellBoundary(t *testing.T) {
	// A max edge sitting exactly on -33/-70 must not pull in the
	// northern or eastern neighbor cells.
	b := vector.BBox{MinX: -71, MinY: -34, MaxX: -70, MaxY: -33}

	assert.Equal(t, []string{"S34W071"}, TilesForBBox(b))
}

func TestTileMirrors_OrderAndShapes(t *testing.T) {
	mirrors := TileMirrors("S34W071")
	require.Len(t, mirrors, 5)

	assert.Equal(t, "https://srtm.kurviger.de/SRTM3/S34W071.hgt.gz", mirrors[0].URL)
	assert.True(t, strings.HasSuffix(mirrors[1].URL, "S34W071.hgt.zip"))
	assert.True(t, strings.HasPrefix(mirrors[2].URL, "ftp://"))
	assert.Contains(t, mirrors[4].URL, "/skadi/S34/S34W071.hgt.gz")
}
