package geospatial

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Shape is anything a draw surface produced that can describe itself as GeoJSON,
// either a bare geometry or a Feature wrapping one.
type Shape interface {
	GeoJSON() ([]byte, error)
}

// ParsePolygon parses a persisted bare GeoJSON Polygon geometry. Open rings are
// closed so callers always get valid GeoJSON rings back.
func ParsePolygon(s string) (orb.Polygon, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty string", ErrInvalidGeometry)
	}

	g, err := geojson.UnmarshalGeometry([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}

	return asPolygon(g.Geometry())
}

// FromShape extracts the polygon a draw surface produced. Both a Feature and a
// bare geometry are accepted since drawing toolkits usually hand out Features.
func FromShape(shape Shape) (orb.Polygon, error) {
	if shape == nil {
		return nil, fmt.Errorf("%w: nil shape", ErrInvalidGeometry)
	}
	data, err := shape.GeoJSON()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}

	var peek struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &peek); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}

	if peek.Type == "Feature" {
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
		}
		return asPolygon(f.Geometry)
	}

	return ParsePolygon(string(data))
}

// SerializePolygon renders the canonical persistence format: a bare GeoJSON
// Polygon geometry object, not a Feature.
func SerializePolygon(p orb.Polygon) (string, error) {
	if len(p) == 0 || len(p[0]) == 0 {
		return "", fmt.Errorf("%w: empty polygon", ErrInvalidGeometry)
	}
	data, err := geojson.NewGeometry(p).MarshalJSON()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// CloseRings returns a copy of p with every open ring closed.
func CloseRings(p orb.Polygon) orb.Polygon {
	out := make(orb.Polygon, len(p))
	for i, ring := range p {
		r := make(orb.Ring, len(ring), len(ring)+1)
		copy(r, ring)
		if len(r) > 0 && !r.Closed() {
			r = append(r, r[0])
		}
		out[i] = r
	}
	return out
}

// PolygonFeatureCollection wraps a polygon into a single-feature collection
// for map display. An empty polygon yields an empty collection.
func PolygonFeatureCollection(p orb.Polygon, props map[string]interface{}) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	if len(p) == 0 {
		return fc.MarshalJSON()
	}
	f := geojson.NewFeature(p)
	for k, v := range props {
		f.Properties[k] = v
	}
	fc.Append(f)
	return fc.MarshalJSON()
}

func asPolygon(g orb.Geometry) (orb.Polygon, error) {
	p, ok := g.(orb.Polygon)
	if !ok {
		if g == nil {
			return nil, fmt.Errorf("%w: no geometry", ErrInvalidGeometry)
		}
		return nil, fmt.Errorf("%w: expected Polygon, got %s", ErrInvalidGeometry, g.GeoJSONType())
	}
	if len(p) == 0 || len(p[0]) == 0 {
		return nil, fmt.Errorf("%w: empty polygon", ErrInvalidGeometry)
	}
	return CloseRings(p), nil
}
