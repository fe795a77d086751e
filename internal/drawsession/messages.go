package drawsession

import (
	"encoding/json"

	"agrotrace/company-portal/portal-backend/internal/geosearch"
	"agrotrace/company-portal/portal-backend/internal/mapdraw"
	"agrotrace/company-portal/portal-backend/internal/mapview"
	"agrotrace/company-portal/portal-backend/pkg/geospatial"
)

// Client to server message types.
const (
	TypeBeginDraw    = "begin_draw"
	TypeCancelDraw   = "cancel_draw"
	TypeShapeCreated = "shape_created"
	TypeShapeEdited  = "shape_edited"
	TypeShapeDeleted = "shape_deleted"
	TypeCenter       = "center"
	TypeSearch       = "search"
)

// Server to client message types.
const (
	TypeTools       = "tools"
	TypeIcons       = "icons"
	TypeChange      = "change"
	TypeAddShape    = "add_shape"
	TypeClearShapes = "clear_shapes"
	TypeFitBounds   = "fit_bounds"
	TypeSetView     = "set_view"
	TypeSuggestions = "suggestions"
	TypeSearchError = "search_error"
	TypeError       = "error"
)

// Inbound is any message a client may send. Only the fields of its type are
// set.
type Inbound struct {
	Type     string          `json:"type"`
	Geometry json.RawMessage `json:"geometry,omitempty"`
	Lat      float64         `json:"lat"`
	Lng      float64         `json:"lng"`
	Query    string          `json:"query"`
}

// GeoJSON makes the inbound geometry usable as a drawn shape.
func (m Inbound) GeoJSON() ([]byte, error) {
	return m.Geometry, nil
}

type typeOnly struct {
	Type string `json:"type"`
}

type toolsMessage struct {
	Type  string        `json:"type"`
	Tools mapdraw.Tools `json:"tools"`
}

type iconsMessage struct {
	Type string `json:"type"`
	mapview.IconConfig
}

type changeMessage struct {
	Type string `json:"type"`
	mapdraw.ChangeEvent
}

type shapeMessage struct {
	Type     string          `json:"type"`
	Geometry json.RawMessage `json:"geometry"`
}

type fitBoundsMessage struct {
	Type    string          `json:"type"`
	Bounds  [2][2]float64   `json:"bounds"` // [[south, west], [north, east]]
	Padding mapdraw.Padding `json:"padding"`
}

type setViewMessage struct {
	Type    string            `json:"type"`
	Center  geospatial.LatLng `json:"center"`
	Zoom    int               `json:"zoom"`
	Animate bool              `json:"animate"`
}

type suggestionsMessage struct {
	Type    string            `json:"type"`
	Query   string            `json:"query"`
	Results []geosearch.Place `json:"results"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
