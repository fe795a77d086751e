package geosearch

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
	"googlemaps.github.io/maps"
)

// GoogleOptions configures the Google Maps geocoder.
type GoogleOptions struct {
	APIKey  string
	BaseURL string // optional, for proxies and tests
	Region  string
	QPS     float64
	Limit   int
}

// GoogleGeocoder resolves places through the Google Maps Geocoding API.
type GoogleGeocoder struct {
	client  *maps.Client
	limiter *rate.Limiter
	region  string
	limit   int
}

// NewGoogleGeocoder creates a Google-backed geocoder.
func NewGoogleGeocoder(opts GoogleOptions) (*GoogleGeocoder, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("google geocoder: api key not set")
	}

	clientOpts := []maps.ClientOption{maps.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, maps.WithBaseURL(opts.BaseURL))
	}
	client, err := maps.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}

	return &GoogleGeocoder{
		client:  client,
		limiter: newLimiter(opts.QPS),
		region:  opts.Region,
		limit:   resultLimit(opts.Limit),
	}, nil
}

// Search forward-geocodes a free-text query.
func (g *GoogleGeocoder) Search(ctx context.Context, query string) ([]Place, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{
		Address: query,
		Region:  g.region,
	})
	if err != nil {
		return nil, fmt.Errorf("geocode %q: %w", query, err)
	}
	if len(results) == 0 {
		return nil, ErrLocationNotFound
	}

	places := make([]Place, 0, len(results))
	for _, r := range results {
		places = append(places, Place{
			Lat:         r.Geometry.Location.Lat,
			Lng:         r.Geometry.Location.Lng,
			DisplayName: r.FormattedAddress,
		})
		if len(places) == g.limit {
			break
		}
	}
	return places, nil
}

// Reverse returns the best formatted address for a coordinate.
func (g *GoogleGeocoder) Reverse(ctx context.Context, lat, lng float64) (Place, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return Place{}, err
	}

	results, err := g.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: lat, Lng: lng},
	})
	if err != nil {
		return Place{}, fmt.Errorf("reverse geocode %f,%f: %w", lat, lng, err)
	}
	if len(results) == 0 {
		return Place{}, ErrLocationNotFound
	}
	return Place{Lat: lat, Lng: lng, DisplayName: results[0].FormattedAddress}, nil
}

func newLimiter(qps float64) *rate.Limiter {
	if qps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(qps), 1)
}

func resultLimit(n int) int {
	if n <= 0 {
		return 5
	}
	return n
}
