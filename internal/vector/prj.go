package vector

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// authorityRe matches EPSG authority clauses in WKT1. The outermost
// CRS authority is written last, so the final match identifies the
// whole reference system rather than a nested datum or axis.
var authorityRe = regexp.MustCompile(`AUTHORITY\["EPSG",\s*"(\d+)"\]`)

// utmZoneRe matches the zone designation ESRI-style .prj files carry
// when no authority clause is present ("WGS_1984_UTM_Zone_19S").
var utmZoneRe = regexp.MustCompile(`UTM[_ ]ZONE[_ ](\d{1,2})([NS])`)

// DetectSRID reads the .prj sidecar of a shapefile and derives its
// EPSG code. Official Chilean layers ship either WKT with an explicit
// EPSG authority or ESRI-style WKT naming a WGS84 UTM zone (18S/19S
// for the mainland). A missing or unrecognized sidecar defaults to
// WGS84, which is what the download endpoints emit when asked.
func DetectSRID(shpPath string) int {
	prjPath := strings.TrimSuffix(shpPath, ".shp") + ".prj"
	data, err := os.ReadFile(prjPath)
	if err != nil {
		zap.L().Debug("vector: no prj sidecar, assuming WGS84", zap.String("shp", shpPath))
		return 4326
	}
	srid := sridFromWKT(string(data))
	if srid == 0 {
		zap.L().Warn("vector: unrecognized prj, assuming WGS84",
			zap.String("prj", prjPath))
		return 4326
	}
	return srid
}

// sridFromWKT derives the EPSG code from a WKT CRS definition.
// Returns 0 when nothing matches.
func sridFromWKT(wkt string) int {
	matches := authorityRe.FindAllStringSubmatch(wkt, -1)
	if len(matches) > 0 {
		code, err := strconv.Atoi(matches[len(matches)-1][1])
		if err == nil && code > 0 {
			return code
		}
	}

	upper := strings.ToUpper(wkt)
	if m := utmZoneRe.FindStringSubmatch(upper); m != nil && strings.Contains(upper, "WGS") {
		zone, _ := strconv.Atoi(m[1])
		if zone >= 1 && zone <= 60 {
			if m[2] == "S" {
				return 32700 + zone
			}
			return 32600 + zone
		}
	}

	if strings.HasPrefix(strings.TrimSpace(upper), "GEOGCS") && strings.Contains(upper, "WGS") {
		return 4326
	}
	return 0
}
