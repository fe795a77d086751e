package geospatial

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// EarthRadius is the WGS84 equatorial radius in meters used for area math.
const EarthRadius = 6378137.0

const sqMetersPerHectare = 10000.0

var (
	// ErrInvalidGeometry is returned when a stored or drawn geometry is not a usable Polygon.
	ErrInvalidGeometry = errors.New("invalid geometry")
	// ErrCoordinateRange is returned when a vertex falls outside WGS84 bounds.
	ErrCoordinateRange = errors.New("coordinate out of range")
)

// LatLng is a WGS84 position in degrees, latitude first as map toolkits expect.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsZero reports whether the position is exactly 0,0.
func (ll LatLng) IsZero() bool {
	return ll.Lat == 0 && ll.Lng == 0
}

// Point converts to an orb point (lng, lat).
func (ll LatLng) Point() orb.Point {
	return orb.Point{ll.Lng, ll.Lat}
}

// FromPoint converts an orb point (lng, lat) to a LatLng.
func FromPoint(p orb.Point) LatLng {
	return LatLng{Lat: p.Lat(), Lng: p.Lon()}
}

func (ll LatLng) String() string {
	return fmt.Sprintf("%.6f,%.6f", ll.Lat, ll.Lng)
}

// ConvertToHectares converts square meters to hectares
func ConvertToHectares(sqMeters float64) float64 {
	return sqMeters / sqMetersPerHectare
}

// RoundTo rounds v to the given number of decimal places.
func RoundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

// ValidateCoordinates checks that every vertex of the polygon is a valid WGS84 position.
func ValidateCoordinates(p orb.Polygon) error {
	for _, ring := range p {
		for _, pt := range ring {
			if math.IsNaN(pt.Lat()) || math.IsNaN(pt.Lon()) {
				return fmt.Errorf("%w: NaN vertex", ErrCoordinateRange)
			}
			if pt.Lat() < -90 || pt.Lat() > 90 || pt.Lon() < -180 || pt.Lon() > 180 {
				return fmt.Errorf("%w: %v", ErrCoordinateRange, pt)
			}
		}
	}
	return nil
}
