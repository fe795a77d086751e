package mapdraw

import (
	"github.com/paulmach/orb"

	"agrotrace/company-portal/portal-backend/internal/mapview"
	"agrotrace/company-portal/portal-backend/pkg/geospatial"
)

// Padding is the margin in screen pixels kept around fitted bounds.
type Padding struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// DefaultPadding matches the margin the dashboard map has always used.
var DefaultPadding = Padding{X: 50, Y: 50}

// Surface is the capability set the controller needs from a map toolkit.
// Shape events flow the other way: the surface adapter calls the
// controller's ShapeCreated, ShapeEdited and ShapeDeleted.
type Surface interface {
	mapview.Viewport
	AddShape(p orb.Polygon)
	ClearShapes()
	CurrentShapes() []orb.Polygon
	FitBounds(b orb.Bound, padding Padding)
}

// BoundsCenterer is implemented by shapes whose toolkit already knows the
// center of their bounding box.
type BoundsCenterer interface {
	BoundsCenter() (geospatial.LatLng, bool)
}

// Tools lists which draw tools the surface should offer.
type Tools struct {
	Polygon      bool `json:"polygon"`
	Rectangle    bool `json:"rectangle"`
	Circle       bool `json:"circle"`
	CircleMarker bool `json:"circlemarker"`
	Marker       bool `json:"marker"`
	Polyline     bool `json:"polyline"`
	Edit         bool `json:"edit"`
	Remove       bool `json:"remove"`
}

// ToolConfig enables polygon drawing only, plus editing and removal of the
// placed polygon.
func ToolConfig() Tools {
	return Tools{Polygon: true, Edit: true, Remove: true}
}
