// Copyright 2025 The AddrHarvest Authors
// SPDX-License-Identifier: Apache-2.0

// Package geocoder talks to the external geocoding service. It exposes the
// two request shapes the pipeline needs: lookup by typed OSM id and
// free-text search. All outbound traffic goes through an injected interval
// limiter because the service enforces a hard rate limit.
package geocoder

import (
	"context"

	"github.com/cartobase/addrharvest/spatial"
)

// Place is a geocoded match. A nil Place with a nil error means the service
// had no answer, which is a legitimate outcome and not a failure.
type Place struct {
	OSMID       string
	DisplayName string
	Country     string
	City        string
	Street      string
	// PlaceRank is the service's specificity ordinal; higher is more
	// specific.
	PlaceRank int
	Centroid  spatial.Point
	// BoundingBox encloses the matched geometry. Valid only when HasBox is
	// set; some matches come without one.
	BoundingBox spatial.Box
	HasBox      bool
}

// Geocoder resolves OSM elements and free-text queries to places.
type Geocoder interface {
	// Lookup resolves a typed OSM id such as "N123", "W456" or "R789".
	Lookup(ctx context.Context, osmID string) (*Place, error)

	// Search resolves a free-text query to its best match.
	Search(ctx context.Context, query string) (*Place, error)
}
