package area

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/fetcher"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/vector"
)

// nameAttrs are the attribute names official layers use for the comuna name.
var nameAttrs = []string{"COMUNA", "NOM_COMUNA", "NOM_COM", "Comuna", "comuna", "NOMBRE"}

// WFSSource queries the official IDE Chile WFS for the comuna polygon.
type WFSSource struct {
	fetch    fetcher.Fetcher
	baseURL  string
	typeName string
	log      *zap.Logger
}

// NewWFSSource builds a WFS boundary source. typeName may be empty,
// in which case the national comuna layer is assumed.
func NewWFSSource(f fetcher.Fetcher, baseURL, typeName string) *WFSSource {
	if typeName == "" {
		typeName = "dpa:comunas"
	}
	return &WFSSource{
		fetch:    f,
		baseURL:  baseURL,
		typeName: typeName,
		log:      zap.L().With(zap.String("component", "wfs_source")),
	}
}

func (s *WFSSource) Name() string { return "wfs" }

// Fetch runs a GetFeature request filtered by comuna name and picks
// the feature whose name attribute matches after normalization.
func (s *WFSSource) Fetch(ctx context.Context, comuna string) (*Boundary, error) {
	q := url.Values{}
	q.Set("service", "WFS")
	q.Set("version", "2.0.0")
	q.Set("request", "GetFeature")
	q.Set("typeNames", s.typeName)
	q.Set("outputFormat", "application/json")
	q.Set("srsName", "EPSG:4326")
	q.Set("cql_filter", cqlFilter(comuna))

	body, err := s.fetch.Download(ctx, s.baseURL+"?"+q.Encode())
	if err != nil {
		return nil, eris.Wrap(err, "area: wfs request")
	}
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, eris.Wrap(err, "area: read wfs response")
	}

	layer, err := vector.ParseGeoJSON(data, "wfs")
	if err != nil {
		return nil, err
	}

	feat := matchFeature(layer, comuna)
	if feat == nil {
		return nil, eris.Errorf("area: wfs returned %d features, none named %q", len(layer.Features), comuna)
	}

	s.log.Debug("wfs feature matched", zap.String("comuna", comuna))
	return &Boundary{Source: SourceOficial, Geom: feat.Geom}, nil
}

// cqlFilter builds the name filter for the GetFeature request.
// Normalization keeps the apostrophe, so it gets doubled for CQL
// string-literal escaping (O'Higgins and friends).
func cqlFilter(comuna string) string {
	name := strings.ReplaceAll(Normalize(comuna), "'", "''")
	return fmt.Sprintf("strToUpperCase(COMUNA) LIKE '%%%s%%'", name)
}

// matchFeature finds the feature whose name attribute normalizes to
// the requested comuna. Only polygonal features qualify.
func matchFeature(layer *vector.Layer, comuna string) *vector.Feature {
	want := Normalize(comuna)
	for i := range layer.Features {
		f := &layer.Features[i]
		if !isAreal(f.Geom) {
			continue
		}
		for _, attr := range nameAttrs {
			if v := f.PropString(attr); v != "" && Normalize(v) == want {
				return f
			}
		}
	}
	return nil
}

func isAreal(g geom.T) bool {
	switch g.(type) {
	case *geom.Polygon, *geom.MultiPolygon:
		return true
	}
	return false
}
