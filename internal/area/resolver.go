package area

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/vector"
)

// Resolver walks an ordered source chain until one yields a boundary.
type Resolver struct {
	sources []BoundarySource
	margin  float64
	log     *zap.Logger
}

// NewResolver builds a resolver over the given sources, tried in
// order. margin expands the resulting bounding box on every side, in
// degrees.
func NewResolver(margin float64, sources ...BoundarySource) *Resolver {
	return &Resolver{
		sources: sources,
		margin:  margin,
		log:     zap.L().With(zap.String("component", "area_resolver")),
	}
}

// Resolve returns the first boundary any source produces for the
// comuna. Individual source failures are logged and skipped; if every
// source fails the error wraps ErrBoundaryUnresolved.
func (r *Resolver) Resolve(ctx context.Context, comuna string) (*Boundary, error) {
	normalized := Normalize(comuna)
	if normalized == "" {
		return nil, eris.Wrap(ErrBoundaryUnresolved, "area: empty comuna name")
	}

	for _, src := range r.sources {
		b, err := src.Fetch(ctx, comuna)
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrapf(ctx.Err(), "area: resolve %s cancelled", comuna)
			}
			r.log.Warn("boundary source failed, trying next",
				zap.String("comuna", comuna),
				zap.String("source", src.Name()),
				zap.Error(err),
			)
			continue
		}
		if b == nil || b.Geom == nil {
			r.log.Warn("boundary source returned no geometry, trying next",
				zap.String("comuna", comuna),
				zap.String("source", src.Name()),
			)
			continue
		}

		b.Comuna = comuna
		b.Normalized = normalized
		b.BBox = vector.BoundsOf(b.Geom).Expand(r.margin)
		r.log.Info("boundary resolved",
			zap.String("comuna", comuna),
			zap.String("source", b.Source),
			zap.Float64("min_x", b.BBox.MinX),
			zap.Float64("min_y", b.BBox.MinY),
			zap.Float64("max_x", b.BBox.MaxX),
			zap.Float64("max_y", b.BBox.MaxY),
		)
		return b, nil
	}

	return nil, eris.Wrapf(ErrBoundaryUnresolved, "area: %d sources exhausted for %q", len(r.sources), comuna)
}
