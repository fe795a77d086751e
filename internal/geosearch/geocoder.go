package geosearch

import (
	"context"
	"errors"
)

// ErrLocationNotFound is returned when a lookup yields no usable place.
var ErrLocationNotFound = errors.New("location not found")

// Place is a single geocoding suggestion.
type Place struct {
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	DisplayName string  `json:"displayName"`
}

// Geocoder resolves free-text queries to places and coordinates back to a
// human-readable location.
type Geocoder interface {
	Search(ctx context.Context, query string) ([]Place, error)
	Reverse(ctx context.Context, lat, lng float64) (Place, error)
}
