package batches

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	CreateBatch(ctx context.Context, batch *Batch) error
	GetBatch(ctx context.Context, companyID, id uuid.UUID) (*Batch, error)
	ListBatches(ctx context.Context, companyID uuid.UUID) ([]Batch, error)
	DeleteBatch(ctx context.Context, companyID, id uuid.UUID) error

	CreateSource(ctx context.Context, source *BatchSource) error
	GetSource(ctx context.Context, batchID, id uuid.UUID) (*BatchSource, error)
	ListSources(ctx context.Context, batchID uuid.UUID) ([]BatchSource, error)
	UpdateSource(ctx context.Context, source *BatchSource) error
	DeleteSource(ctx context.Context, batchID, id uuid.UUID) error

	// UsedLandIDs returns the lands already linked to a batch.
	UsedLandIDs(ctx context.Context, batchID uuid.UUID) ([]uuid.UUID, error)
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateBatch(ctx context.Context, batch *Batch) error {
	return r.db.WithContext(ctx).Create(batch).Error
}

func (r *gormRepository) GetBatch(ctx context.Context, companyID, id uuid.UUID) (*Batch, error) {
	var batch Batch
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, id).
		First(&batch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBatchNotFound
	}
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *gormRepository) ListBatches(ctx context.Context, companyID uuid.UUID) ([]Batch, error) {
	var batches []Batch
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("created_at DESC").
		Find(&batches).Error
	return batches, err
}

func (r *gormRepository) DeleteBatch(ctx context.Context, companyID, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("company_id = ? AND id = ?", companyID, id).Delete(&Batch{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrBatchNotFound
		}
		return tx.Where("batch_id = ?", id).Delete(&BatchSource{}).Error
	})
}

func (r *gormRepository) CreateSource(ctx context.Context, source *BatchSource) error {
	return sourceWriteError(r.db.WithContext(ctx).Create(source).Error)
}

func (r *gormRepository) GetSource(ctx context.Context, batchID, id uuid.UUID) (*BatchSource, error) {
	var source BatchSource
	err := r.db.WithContext(ctx).
		Where("batch_id = ? AND id = ?", batchID, id).
		First(&source).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSourceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &source, nil
}

func (r *gormRepository) ListSources(ctx context.Context, batchID uuid.UUID) ([]BatchSource, error) {
	var sources []BatchSource
	err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("created_at ASC").
		Find(&sources).Error
	return sources, err
}

func (r *gormRepository) UpdateSource(ctx context.Context, source *BatchSource) error {
	return sourceWriteError(r.db.WithContext(ctx).Save(source).Error)
}

// sourceWriteError reports a hit on idx_batch_sources_batch_land as
// ErrLandAlreadyUsed. It needs a gorm.DB opened with TranslateError.
func sourceWriteError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrLandAlreadyUsed
	}
	return err
}

func (r *gormRepository) DeleteSource(ctx context.Context, batchID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("batch_id = ? AND id = ?", batchID, id).
		Delete(&BatchSource{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSourceNotFound
	}
	return nil
}

func (r *gormRepository) UsedLandIDs(ctx context.Context, batchID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&BatchSource{}).
		Where("batch_id = ?", batchID).
		Pluck("land_id", &ids).Error
	return ids, err
}
