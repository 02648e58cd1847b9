package domain

import (
	"context"

	"github.com/paulmach/orb/geojson"
)

// BoundarySource provides postal-code boundary polygons for the location chart.
type BoundarySource interface {
	// FetchBoundaries returns the feature collection published at url.
	FetchBoundaries(ctx context.Context, url string) (*geojson.FeatureCollection, error)
}
