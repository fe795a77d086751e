package drawsession

import (
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"agrotrace/company-portal/portal-backend/internal/mapdraw"
	"agrotrace/company-portal/portal-backend/internal/mapview"
	"agrotrace/company-portal/portal-backend/pkg/geospatial"
)

// remoteSurface mirrors the browser map. Every change is forwarded as a
// message; the shapes themselves are tracked locally.
type remoteSurface struct {
	mu     sync.Mutex
	shapes []orb.Polygon
	send   func(interface{})
	logger *zap.Logger
}

var _ mapdraw.Surface = (*remoteSurface)(nil)

func newRemoteSurface(send func(interface{}), logger *zap.Logger) *remoteSurface {
	return &remoteSurface{send: send, logger: logger}
}

func (s *remoteSurface) SetView(center geospatial.LatLng, zoom int, opts mapview.ViewOptions) {
	s.send(setViewMessage{Type: TypeSetView, Center: center, Zoom: zoom, Animate: opts.Animate})
}

func (s *remoteSurface) AddShape(p orb.Polygon) {
	data, err := geojson.NewGeometry(p).MarshalJSON()
	if err != nil {
		s.logger.Error("Failed to encode shape", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.shapes = append(s.shapes, p)
	s.mu.Unlock()

	s.send(shapeMessage{Type: TypeAddShape, Geometry: data})
}

func (s *remoteSurface) ClearShapes() {
	s.mu.Lock()
	s.shapes = nil
	s.mu.Unlock()

	s.send(typeOnly{Type: TypeClearShapes})
}

func (s *remoteSurface) CurrentShapes() []orb.Polygon {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]orb.Polygon(nil), s.shapes...)
}

func (s *remoteSurface) FitBounds(b orb.Bound, padding mapdraw.Padding) {
	s.send(fitBoundsMessage{
		Type:    TypeFitBounds,
		Bounds:  [2][2]float64{{b.Min.Lat(), b.Min.Lon()}, {b.Max.Lat(), b.Max.Lon()}},
		Padding: padding,
	})
}
