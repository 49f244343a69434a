// Package srtm resolves, downloads and normalizes SRTM3 elevation
// tiles for a comuna's bounding box.
package srtm

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/fetcher"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/vector"
)

// TileCode names the 1-degree SRTM cell by its southwest corner, in
// the S33W071 form.
func TileCode(latSW, lonSW int) string {
	ns := "N"
	if latSW < 0 {
		ns = "S"
	}
	ew := "E"
	if lonSW < 0 {
		ew = "W"
	}
	return fmt.Sprintf("%s%02d%s%03d", ns, absInt(latSW), ew, absInt(lonSW))
}

// ParseTileCode inverts TileCode.
func ParseTileCode(code string) (latSW, lonSW int, err error) {
	if len(code) != 7 {
		return 0, 0, eris.Errorf("srtm: malformed tile code %q", code)
	}
	lat, err := strconv.Atoi(code[1:3])
	if err != nil {
		return 0, 0, eris.Errorf("srtm: malformed tile code %q", code)
	}
	lon, err := strconv.Atoi(code[4:7])
	if err != nil {
		return 0, 0, eris.Errorf("srtm: malformed tile code %q", code)
	}
	switch code[0] {
	case 'S':
		lat = -lat
	case 'N':
	default:
		return 0, 0, eris.Errorf("srtm: malformed tile code %q", code)
	}
	switch code[3] {
	case 'W':
		lon = -lon
	case 'E':
	default:
		return 0, 0, eris.Errorf("srtm: malformed tile code %q", code)
	}
	return lat, lon, nil
}

// TilesForBBox returns the sorted set of tile codes whose 1-degree
// cells the bbox touches. The small epsilon keeps a bbox whose max
// edge sits exactly on a cell boundary from pulling in the next cell.
func TilesForBBox(b vector.BBox) []string {
	const eps = 1e-9
	set := map[string]struct{}{}
	for lat := int(math.Floor(b.MinY)); lat <= int(math.Floor(b.MaxY-eps)); lat++ {
		for lon := int(math.Floor(b.MinX)); lon <= int(math.Floor(b.MaxX-eps)); lon++ {
			set[TileCode(lat, lon)] = struct{}{}
		}
	}
	codes := make([]string, 0, len(set))
	for c := range set {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// TileMirrors lists the download locations for one tile, most
// reliable first. The Mapzen Skadi bucket shards tiles into
// per-latitude subdirectories (S34/S34W071.hgt.gz).
func TileMirrors(code string) []fetcher.Mirror {
	return []fetcher.Mirror{
		{URL: fmt.Sprintf("https://srtm.kurviger.de/SRTM3/%s.hgt.gz", code), Compression: fetcher.CompressionGzip},
		{URL: fmt.Sprintf("https://dds.cr.usgs.gov/srtm/version2_1/SRTM3/South_America/%s.hgt.zip", code), Compression: fetcher.CompressionZip},
		{URL: fmt.Sprintf("ftp://srtm.kurviger.de/SRTM3/%s.hgt", code), Compression: fetcher.CompressionNone},
		{URL: fmt.Sprintf("https://srtmtiles.s3.amazonaws.com/%s.hgt.gz", code), Compression: fetcher.CompressionGzip},
		{URL: fmt.Sprintf("https://s3.amazonaws.com/elevation-tiles-prod/skadi/%s/%s.hgt.gz", code[:3], code), Compression: fetcher.CompressionGzip},
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
