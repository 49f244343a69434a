package area

import (
	"context"
	"encoding/json"
	"io"
	"net/url"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/fetcher"
)

// NominatimSource geocodes the comuna against OSM as the last resort.
// Its polygons carry no official status, so the boundary is tagged
// "osm" and downstream outputs keep that provenance.
type NominatimSource struct {
	fetch   fetcher.Fetcher
	baseURL string
	log     *zap.Logger
}

// NewNominatimSource builds an OSM geocoding boundary source.
func NewNominatimSource(f fetcher.Fetcher, baseURL string) *NominatimSource {
	return &NominatimSource{
		fetch:   f,
		baseURL: baseURL,
		log:     zap.L().With(zap.String("component", "nominatim_source")),
	}
}

func (s *NominatimSource) Name() string { return "nominatim" }

type nominatimResult struct {
	DisplayName string          `json:"display_name"`
	Class       string          `json:"class"`
	Type        string          `json:"type"`
	GeoJSON     json.RawMessage `json:"geojson"`
}

// Fetch searches Nominatim for "<comuna>, Chile" and returns the
// first result with a polygonal geometry.
func (s *NominatimSource) Fetch(ctx context.Context, comuna string) (*Boundary, error) {
	q := url.Values{}
	q.Set("q", comuna+", Chile")
	q.Set("format", "json")
	q.Set("polygon_geojson", "1")
	q.Set("limit", "5")

	body, err := s.fetch.Download(ctx, s.baseURL+"/search?"+q.Encode())
	if err != nil {
		return nil, eris.Wrap(err, "area: nominatim request")
	}
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, eris.Wrap(err, "area: read nominatim response")
	}

	var results []nominatimResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, eris.Wrap(err, "area: decode nominatim response")
	}

	for _, r := range results {
		if len(r.GeoJSON) == 0 {
			continue
		}
		var g geom.T
		if err := geojson.Unmarshal(r.GeoJSON, &g); err != nil {
			s.log.Debug("skipping undecodable nominatim geometry",
				zap.String("display_name", r.DisplayName),
				zap.Error(err),
			)
			continue
		}
		if !isAreal(g) {
			continue
		}
		s.log.Info("nominatim boundary accepted",
			zap.String("comuna", comuna),
			zap.String("display_name", r.DisplayName),
		)
		return &Boundary{Source: SourceOSM, Geom: g}, nil
	}

	return nil, eris.Errorf("area: nominatim found no polygon for %q", comuna)
}
