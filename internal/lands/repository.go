package lands

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, land *Land) error
	GetByID(ctx context.Context, companyID, id uuid.UUID) (*Land, error)
	List(ctx context.Context, filter LandFilter) ([]Land, error)
	// Update writes only the named columns of land.
	Update(ctx context.Context, land *Land, columns []string) error
	Delete(ctx context.Context, companyID, id uuid.UUID) error

	// ListUnchecked returns lands with a polygon whose deforestation status
	// is still unknown, oldest first, across all companies.
	ListUnchecked(ctx context.Context, limit int) ([]Land, error)
	// SetDeforestationResult stores a verdict only while the land still has
	// the polygon it was computed for. Otherwise it returns ErrStaleCheck.
	SetDeforestationResult(ctx context.Context, id uuid.UUID, polygon string, free bool, checkedAt time.Time) error
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Create(ctx context.Context, land *Land) error {
	return r.db.WithContext(ctx).Create(land).Error
}

func (r *gormRepository) GetByID(ctx context.Context, companyID, id uuid.UUID) (*Land, error) {
	var land Land
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, id).
		First(&land).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &land, nil
}

func (r *gormRepository) List(ctx context.Context, filter LandFilter) ([]Land, error) {
	query := r.db.WithContext(ctx).Where("company_id = ?", filter.CompanyID)

	if term := strings.TrimSpace(filter.Search); term != "" {
		like := "%" + escapeLike(term) + "%"
		query = query.Where("name ILIKE ? OR location ILIKE ?", like, like)
	}
	if len(filter.ExcludeIDs) > 0 {
		query = query.Where("id NOT IN ?", filter.ExcludeIDs)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var lands []Land
	if err := query.Order("name ASC").Find(&lands).Error; err != nil {
		return nil, err
	}
	return lands, nil
}

func (r *gormRepository) Update(ctx context.Context, land *Land, columns []string) error {
	if len(columns) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(land).
		Where("company_id = ?", land.CompanyID).
		Select(columns).
		Updates(land).Error
}

func (r *gormRepository) Delete(ctx context.Context, companyID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, id).
		Delete(&Land{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormRepository) ListUnchecked(ctx context.Context, limit int) ([]Land, error) {
	var lands []Land
	err := r.db.WithContext(ctx).
		Where("geo_polygon IS NOT NULL AND geo_polygon <> '' AND is_deforestation_free IS NULL").
		Order("created_at ASC").
		Limit(limit).
		Find(&lands).Error
	return lands, err
}

func (r *gormRepository) SetDeforestationResult(ctx context.Context, id uuid.UUID, polygon string, free bool, checkedAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&Land{}).
		Where("id = ? AND geo_polygon = ?", id, polygon).
		Updates(map[string]interface{}{
			"is_deforestation_free":    free,
			"deforestation_checked_at": checkedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleCheck
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
