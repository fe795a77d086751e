package lands

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"agrotrace/company-portal/portal-backend/internal/deforestation"
	"agrotrace/company-portal/portal-backend/internal/geosearch"
	"agrotrace/company-portal/portal-backend/pkg/geospatial"
)

// Service implements land CRUD and the geometry-derived fields.
type Service struct {
	repo     Repository
	geocoder geosearch.Geocoder
	checker  deforestation.Checker
	checks   singleflight.Group
	now      func() time.Time
	logger   *zap.Logger
}

// NewService creates a land service. geocoder and checker may be nil, which
// disables location lookup and deforestation checks respectively.
func NewService(repo Repository, geocoder geosearch.Geocoder, checker deforestation.Checker, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		geocoder: geocoder,
		checker:  checker,
		now:      time.Now,
		logger:   logger,
	}
}

// geometry holds the values derived from a polygon string.
type geometry struct {
	canonical string
	areaHa    float64
	center    geospatial.LatLng
}

func deriveGeometry(raw string) (geometry, error) {
	p, err := geospatial.ParsePolygon(raw)
	if err != nil {
		return geometry{}, fmt.Errorf("%w: %v", ErrInvalidPolygon, err)
	}
	if err := geospatial.ValidateCoordinates(p); err != nil {
		return geometry{}, fmt.Errorf("%w: %v", ErrInvalidPolygon, err)
	}

	area := geospatial.RoundTo(geospatial.PolygonAreaHectares(p), 2)
	if area <= 0 {
		return geometry{}, fmt.Errorf("%w: polygon encloses no area", ErrInvalidPolygon)
	}

	canonical, err := geospatial.SerializePolygon(p)
	if err != nil {
		return geometry{}, fmt.Errorf("%w: %v", ErrInvalidPolygon, err)
	}
	return geometry{
		canonical: canonical,
		areaHa:    area,
		center:    geospatial.VertexMeanCenter(p[0]),
	}, nil
}

func (g geometry) applyTo(land *Land) {
	land.GeoPolygon = &g.canonical
	land.AreaHectares = g.areaHa
	land.Latitude = g.center.Lat
	land.Longitude = g.center.Lng
}

// CreateLand validates and stores a new land for a company.
func (s *Service) CreateLand(ctx context.Context, companyID uuid.UUID, req CreateLandRequest) (*Land, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	geom, err := deriveGeometry(req.GeoPolygon)
	if err != nil {
		return nil, err
	}

	now := s.now()
	land := &Land{
		ID:                  uuid.New(),
		CompanyID:           companyID,
		Name:                name,
		Location:            strings.TrimSpace(req.Location),
		IsDeforestationFree: req.IsDeforestationFree,
		RecordedAt:          now,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if req.RecordedAt != nil {
		land.RecordedAt = *req.RecordedAt
	}
	geom.applyTo(land)

	if req.AreaHectares != nil && geospatial.RoundTo(*req.AreaHectares, 2) != geom.areaHa {
		s.logger.Debug("Client area differs from computed area",
			zap.Float64("client_ha", *req.AreaHectares),
			zap.Float64("computed_ha", geom.areaHa))
	}
	if land.Location == "" {
		land.Location = s.lookupLocation(ctx, geom.center)
	}

	if err := s.repo.Create(ctx, land); err != nil {
		return nil, fmt.Errorf("failed to create land: %w", err)
	}

	s.logger.Info("Land created",
		zap.String("land_id", land.ID.String()),
		zap.String("company_id", companyID.String()),
		zap.Float64("area_ha", land.AreaHectares))
	return land, nil
}

// GetLand returns one land of a company.
func (s *Service) GetLand(ctx context.Context, companyID, id uuid.UUID) (*Land, error) {
	return s.repo.GetByID(ctx, companyID, id)
}

// ListLands lists a company's lands, optionally filtered by a search term
// matched against name and location.
func (s *Service) ListLands(ctx context.Context, filter LandFilter) ([]Land, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.List(ctx, filter)
}

// UpdateLand applies a partial update. A changed polygon recomputes area and
// centroid and resets the deforestation status to unknown unless the request
// sets it explicitly. Only the columns the request touches are written.
func (s *Service) UpdateLand(ctx context.Context, companyID, id uuid.UUID, req UpdateLandRequest) (*Land, error) {
	land, err := s.repo.GetByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}

	var columns []string
	touch := func(names ...string) {
		for _, name := range names {
			if !slices.Contains(columns, name) {
				columns = append(columns, name)
			}
		}
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, ErrNameRequired
		}
		land.Name = name
		touch("name")
	}
	if req.Location != nil {
		land.Location = strings.TrimSpace(*req.Location)
		touch("location")
	}
	if req.RecordedAt != nil {
		land.RecordedAt = *req.RecordedAt
		touch("recorded_at")
	}

	if req.GeoPolygon != nil {
		geom, err := deriveGeometry(*req.GeoPolygon)
		if err != nil {
			return nil, err
		}
		if geom.canonical != land.Polygon() {
			geom.applyTo(land)
			land.IsDeforestationFree = nil
			land.DeforestationCheckedAt = nil
			touch("geo_polygon", "area_hectares", "latitude", "longitude",
				"is_deforestation_free", "deforestation_checked_at")
		}
	}
	if req.IsDeforestationFree != nil {
		land.IsDeforestationFree = req.IsDeforestationFree
		touch("is_deforestation_free")
	}
	if land.Location == "" && land.GeoPolygon != nil {
		if location := s.lookupLocation(ctx, geospatial.LatLng{Lat: land.Latitude, Lng: land.Longitude}); location != "" {
			land.Location = location
			touch("location")
		}
	}
	if len(columns) == 0 {
		return land, nil
	}

	land.UpdatedAt = s.now()
	touch("updated_at")
	if err := s.repo.Update(ctx, land, columns); err != nil {
		return nil, fmt.Errorf("failed to update land: %w", err)
	}
	return s.repo.GetByID(ctx, companyID, id)
}

// DeleteLand soft-deletes a land. Batch sources keep their snapshots.
func (s *Service) DeleteLand(ctx context.Context, companyID, id uuid.UUID) error {
	return s.repo.Delete(ctx, companyID, id)
}

// LandGeometry renders the live polygon as a FeatureCollection.
func (s *Service) LandGeometry(ctx context.Context, companyID, id uuid.UUID) ([]byte, error) {
	land, err := s.repo.GetByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}

	p, err := geospatial.ParsePolygon(land.Polygon())
	if err != nil {
		s.logger.Warn("Stored land polygon is unusable",
			zap.String("land_id", land.ID.String()),
			zap.Error(err))
		return geospatial.PolygonFeatureCollection(nil, nil)
	}
	return geospatial.PolygonFeatureCollection(p, map[string]interface{}{
		"id":           land.ID.String(),
		"name":         land.Name,
		"areaHectares": land.AreaHectares,
	})
}

// CheckDeforestation asks the inference service about a land's polygon and
// persists the verdict. On failure the stored flag is left untouched, and a
// verdict for a polygon that was redrawn meanwhile is discarded with
// ErrStaleCheck.
// Concurrent checks of the same land share one upstream call.
func (s *Service) CheckDeforestation(ctx context.Context, companyID, id uuid.UUID, lookbackYears int) (*Land, error) {
	land, err := s.repo.GetByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if err := s.check(ctx, land, lookbackYears); err != nil {
		return nil, err
	}
	return land, nil
}

// RecheckPending checks up to limit lands whose status is unknown. It keeps
// going past individual failures and returns how many were updated.
func (s *Service) RecheckPending(ctx context.Context, limit, lookbackYears int) (int, error) {
	if s.checker == nil {
		return 0, nil
	}
	pending, err := s.repo.ListUnchecked(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list unchecked lands: %w", err)
	}

	updated := 0
	for i := range pending {
		if ctx.Err() != nil {
			return updated, ctx.Err()
		}
		if err := s.check(ctx, &pending[i], lookbackYears); err != nil {
			if errors.Is(err, ErrStaleCheck) {
				s.logger.Info("Discarded deforestation verdict for redrawn land",
					zap.String("land_id", pending[i].ID.String()))
				continue
			}
			s.logger.Warn("Deforestation recheck failed",
				zap.String("land_id", pending[i].ID.String()),
				zap.Error(err))
			continue
		}
		updated++
	}
	return updated, nil
}

func (s *Service) check(ctx context.Context, land *Land, lookbackYears int) error {
	if s.checker == nil {
		return fmt.Errorf("%w: no inference service configured", deforestation.ErrInference)
	}
	polygon := land.Polygon()
	if polygon == "" {
		return fmt.Errorf("%w: land has no polygon", ErrInvalidPolygon)
	}
	if lookbackYears <= 0 {
		lookbackYears = deforestation.DefaultLookbackYears
	}

	key := fmt.Sprintf("%s/%d/%s", land.ID, lookbackYears, polygon)
	v, err, shared := s.checks.Do(key, func() (interface{}, error) {
		free, err := s.checker.Check(ctx, polygon, lookbackYears)
		if err != nil {
			return false, err
		}
		if err := s.repo.SetDeforestationResult(ctx, land.ID, polygon, free, s.now()); err != nil {
			return false, fmt.Errorf("failed to save deforestation result: %w", err)
		}
		return free, nil
	})
	if err != nil {
		return err
	}
	if shared {
		s.logger.Debug("Joined in-flight deforestation check", zap.String("land_id", land.ID.String()))
	}

	free := v.(bool)
	checkedAt := s.now()
	land.IsDeforestationFree = &free
	land.DeforestationCheckedAt = &checkedAt
	return nil
}

func (s *Service) lookupLocation(ctx context.Context, center geospatial.LatLng) string {
	if s.geocoder == nil || center.IsZero() {
		return ""
	}
	place, err := s.geocoder.Reverse(ctx, center.Lat, center.Lng)
	if err != nil {
		if !errors.Is(err, geosearch.ErrLocationNotFound) {
			s.logger.Warn("Reverse geocoding failed", zap.Stringer("center", center), zap.Error(err))
		}
		return ""
	}
	return place.DisplayName
}
