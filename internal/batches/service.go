package batches

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"agrotrace/company-portal/portal-backend/internal/lands"
	"agrotrace/company-portal/portal-backend/pkg/geospatial"
)

// LandLookup is the part of the land service batches depend on.
type LandLookup interface {
	GetLand(ctx context.Context, companyID, id uuid.UUID) (*lands.Land, error)
	ListLands(ctx context.Context, filter lands.LandFilter) ([]lands.Land, error)
}

// Service manages batches and their sources.
type Service struct {
	repo   Repository
	lands  LandLookup
	now    func() time.Time
	logger *zap.Logger
}

// NewService creates a batch service
func NewService(repo Repository, landLookup LandLookup, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:   repo,
		lands:  landLookup,
		now:    time.Now,
		logger: logger,
	}
}

// CreateBatch creates a batch for a company.
func (s *Service) CreateBatch(ctx context.Context, companyID uuid.UUID, req CreateBatchRequest) (*Batch, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrInvalidBatch)
	}

	now := s.now()
	batch := &Batch{
		ID:         uuid.New(),
		CompanyID:  companyID,
		Code:       code,
		Commodity:  strings.TrimSpace(req.Commodity),
		ProducedAt: req.ProducedAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to create batch: %w", err)
	}
	return batch, nil
}

func (s *Service) GetBatch(ctx context.Context, companyID, id uuid.UUID) (*Batch, error) {
	return s.repo.GetBatch(ctx, companyID, id)
}

func (s *Service) ListBatches(ctx context.Context, companyID uuid.UUID) ([]Batch, error) {
	return s.repo.ListBatches(ctx, companyID)
}

func (s *Service) DeleteBatch(ctx context.Context, companyID, id uuid.UUID) error {
	return s.repo.DeleteBatch(ctx, companyID, id)
}

// ListSources returns the sources of a company's batch.
func (s *Service) ListSources(ctx context.Context, companyID, batchID uuid.UUID) ([]BatchSource, error) {
	if _, err := s.repo.GetBatch(ctx, companyID, batchID); err != nil {
		return nil, err
	}
	return s.repo.ListSources(ctx, batchID)
}

// CreateSource links a land to a batch and freezes the land's current state
// into the source. A missing land fails before anything is written.
func (s *Service) CreateSource(ctx context.Context, companyID, batchID uuid.UUID, req CreateSourceRequest) (*BatchSource, error) {
	if req.VolumeKg < 0 {
		return nil, fmt.Errorf("%w: volume must not be negative", ErrInvalidBatch)
	}
	if _, err := s.repo.GetBatch(ctx, companyID, batchID); err != nil {
		return nil, err
	}

	land, err := s.loadLand(ctx, companyID, req.LandID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUnused(ctx, batchID, req.LandID); err != nil {
		return nil, err
	}

	now := s.now()
	source := &BatchSource{
		ID:            uuid.New(),
		BatchID:       batchID,
		FarmerGroupID: req.FarmerGroupID,
		LandID:        land.ID,
		VolumeKg:      req.VolumeKg,
		LandSnapshot:  datatypes.NewJSONType(BuildSnapshot(*land, now)),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.CreateSource(ctx, source); err != nil {
		return nil, fmt.Errorf("failed to create batch source: %w", err)
	}

	s.logger.Info("Batch source created",
		zap.String("batch_id", batchID.String()),
		zap.String("land_id", land.ID.String()))
	return source, nil
}

// UpdateSource edits a source. The snapshot is replaced wholesale when the
// land changes and left byte-for-byte intact otherwise.
func (s *Service) UpdateSource(ctx context.Context, companyID, batchID, sourceID uuid.UUID, req UpdateSourceRequest) (*BatchSource, error) {
	if req.VolumeKg != nil && *req.VolumeKg < 0 {
		return nil, fmt.Errorf("%w: volume must not be negative", ErrInvalidBatch)
	}
	if _, err := s.repo.GetBatch(ctx, companyID, batchID); err != nil {
		return nil, err
	}
	source, err := s.repo.GetSource(ctx, batchID, sourceID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if req.LandID != nil && *req.LandID != source.LandID {
		land, err := s.loadLand(ctx, companyID, *req.LandID)
		if err != nil {
			return nil, err
		}
		if err := s.ensureUnused(ctx, batchID, land.ID); err != nil {
			return nil, err
		}
		source.LandID = land.ID
		source.LandSnapshot = datatypes.NewJSONType(BuildSnapshot(*land, now))
	}
	if req.FarmerGroupID != nil {
		source.FarmerGroupID = req.FarmerGroupID
	}
	if req.VolumeKg != nil {
		source.VolumeKg = *req.VolumeKg
	}
	source.UpdatedAt = now

	if err := s.repo.UpdateSource(ctx, source); err != nil {
		return nil, fmt.Errorf("failed to update batch source: %w", err)
	}
	return source, nil
}

func (s *Service) DeleteSource(ctx context.Context, companyID, batchID, sourceID uuid.UUID) error {
	if _, err := s.repo.GetBatch(ctx, companyID, batchID); err != nil {
		return err
	}
	return s.repo.DeleteSource(ctx, batchID, sourceID)
}

// AvailableLands lists the company's lands not yet used by the batch.
func (s *Service) AvailableLands(ctx context.Context, companyID, batchID uuid.UUID, search string) ([]lands.Land, error) {
	if _, err := s.repo.GetBatch(ctx, companyID, batchID); err != nil {
		return nil, err
	}
	used, err := s.repo.UsedLandIDs(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list used lands: %w", err)
	}
	return s.lands.ListLands(ctx, lands.LandFilter{
		CompanyID:  companyID,
		Search:     search,
		ExcludeIDs: used,
	})
}

// SourceMap renders the snapshot polygon of a source as a FeatureCollection.
// The live land is never consulted.
func (s *Service) SourceMap(ctx context.Context, companyID, batchID, sourceID uuid.UUID) ([]byte, error) {
	if _, err := s.repo.GetBatch(ctx, companyID, batchID); err != nil {
		return nil, err
	}
	source, err := s.repo.GetSource(ctx, batchID, sourceID)
	if err != nil {
		return nil, err
	}

	snap := source.Snapshot()
	polygon := ""
	if snap.GeoPolygon != nil {
		polygon = *snap.GeoPolygon
	}
	p, err := geospatial.ParsePolygon(polygon)
	if err != nil {
		s.logger.Warn("Snapshot polygon is unusable",
			zap.String("source_id", sourceID.String()),
			zap.Error(err))
		return geospatial.PolygonFeatureCollection(nil, nil)
	}
	return geospatial.PolygonFeatureCollection(p, map[string]interface{}{
		"landId":       snap.ID.String(),
		"name":         snap.Name,
		"areaHectares": snap.AreaHectares,
		"snapshotDate": snap.SnapshotDate,
	})
}

func (s *Service) loadLand(ctx context.Context, companyID, landID uuid.UUID) (*lands.Land, error) {
	if landID == uuid.Nil {
		return nil, ErrLandNotFound
	}
	land, err := s.lands.GetLand(ctx, companyID, landID)
	if errors.Is(err, lands.ErrNotFound) {
		return nil, ErrLandNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load land: %w", err)
	}
	return land, nil
}

func (s *Service) ensureUnused(ctx context.Context, batchID, landID uuid.UUID) error {
	used, err := s.repo.UsedLandIDs(ctx, batchID)
	if err != nil {
		return fmt.Errorf("failed to list used lands: %w", err)
	}
	if slices.Contains(used, landID) {
		return ErrLandAlreadyUsed
	}
	return nil
}
