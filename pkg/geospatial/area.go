package geospatial

import (
	"math"

	"github.com/paulmach/orb"
)

// RingAreaHectares returns the area enclosed by a ring on a sphere of radius
// EarthRadius, in hectares. The ring may be open or closed and wound either
// way. Rings with fewer than three points have no area.
func RingAreaHectares(ring orb.Ring) float64 {
	n := len(ring)
	if n < 3 {
		return 0
	}

	var sum float64
	for i := 0; i < n; i++ {
		p1 := ring[i]
		p2 := ring[(i+1)%n]
		sum += toRadians(p2.Lon()-p1.Lon()) *
			(2 + math.Sin(toRadians(p1.Lat())) + math.Sin(toRadians(p2.Lat())))
	}

	sqMeters := sum * EarthRadius * EarthRadius / 2
	return ConvertToHectares(math.Abs(sqMeters))
}

// PolygonAreaHectares returns the outer ring area minus any holes, never negative.
func PolygonAreaHectares(p orb.Polygon) float64 {
	if len(p) == 0 {
		return 0
	}
	area := RingAreaHectares(p[0])
	for _, hole := range p[1:] {
		area -= RingAreaHectares(hole)
	}
	if area < 0 {
		return 0
	}
	return area
}

// VertexMeanCenter averages the distinct vertices of a ring. The closing
// vertex of a closed ring is not counted twice.
func VertexMeanCenter(ring orb.Ring) LatLng {
	pts := distinctVertices(ring)
	if len(pts) == 0 {
		return LatLng{}
	}

	var lat, lng float64
	for _, pt := range pts {
		lat += pt.Lat()
		lng += pt.Lon()
	}
	n := float64(len(pts))
	return LatLng{Lat: lat / n, Lng: lng / n}
}

// BoundsCenter returns the center of the ring's bounding box.
func BoundsCenter(ring orb.Ring) LatLng {
	if len(ring) == 0 {
		return LatLng{}
	}
	return FromPoint(ring.Bound().Center())
}

// Bounds returns the bounding box of the polygon's outer ring.
func Bounds(p orb.Polygon) orb.Bound {
	if len(p) == 0 {
		return orb.Bound{}
	}
	return p[0].Bound()
}

func distinctVertices(ring orb.Ring) []orb.Point {
	if len(ring) > 1 && ring.Closed() {
		return ring[:len(ring)-1]
	}
	return ring
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
