package mapview

import (
	"go.uber.org/zap"

	"agrotrace/company-portal/portal-backend/pkg/geospatial"
)

// SearchZoom is the zoom level used when centering on a search result.
const SearchZoom = 13

// ViewOptions controls how the viewport moves.
type ViewOptions struct {
	Animate bool `json:"animate"`
}

// Viewport is the part of a map surface that can be panned and zoomed.
type Viewport interface {
	SetView(center geospatial.LatLng, zoom int, opts ViewOptions)
}

// Synchronizer applies external center directives to a viewport. It never
// touches drawn shapes.
type Synchronizer struct {
	viewport Viewport
	zoom     int
	logger   *zap.Logger
}

// NewSynchronizer creates a synchronizer that recenters at SearchZoom.
func NewSynchronizer(viewport Viewport, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{
		viewport: viewport,
		zoom:     SearchZoom,
		logger:   logger,
	}
}

// Apply recenters the viewport on directive. A directive of exactly 0,0 means
// "no directive" and is ignored; it reports whether the viewport moved.
func (s *Synchronizer) Apply(directive geospatial.LatLng) bool {
	if directive.IsZero() {
		return false
	}
	s.logger.Debug("Recentering map", zap.Stringer("center", directive), zap.Int("zoom", s.zoom))
	s.viewport.SetView(directive, s.zoom, ViewOptions{Animate: true})
	return true
}
