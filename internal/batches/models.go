package batches

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrBatchNotFound   = errors.New("batch not found")
	ErrSourceNotFound  = errors.New("batch source not found")
	ErrLandNotFound    = errors.New("land not found")
	ErrLandAlreadyUsed = errors.New("land is already a source of this batch")
	ErrInvalidBatch    = errors.New("invalid batch")
)

// Batch is a production batch of a commodity.
type Batch struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID  uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_batches_company_code" json:"companyId"`
	Code       string         `gorm:"not null;uniqueIndex:idx_batches_company_code" json:"code"`
	Commodity  string         `json:"commodity"`
	ProducedAt *time.Time     `json:"producedAt,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// LandSnapshot is the state of a land at the moment it was linked to a
// batch. It is never edited in place.
type LandSnapshot struct {
	ID                  uuid.UUID `json:"id"`
	Name                string    `json:"name"`
	AreaHectares        float64   `json:"areaHectares"`
	Latitude            float64   `json:"latitude"`
	Longitude           float64   `json:"longitude"`
	Location            string    `json:"location"`
	GeoPolygon          *string   `json:"geoPolygon"`
	IsDeforestationFree *bool     `json:"isDeforestationFree"`
	RecordedAt          time.Time `json:"recordedAt"`
	SnapshotDate        time.Time `json:"snapshotDate"`
}

// BatchSource links a land, and the farmer group that harvested it, to a batch.
type BatchSource struct {
	ID            uuid.UUID                        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	BatchID       uuid.UUID                        `gorm:"type:uuid;not null;uniqueIndex:idx_batch_sources_batch_land" json:"batchId"`
	FarmerGroupID *uuid.UUID                       `gorm:"type:uuid" json:"farmerGroupId,omitempty"`
	LandID        uuid.UUID                        `gorm:"type:uuid;not null;uniqueIndex:idx_batch_sources_batch_land" json:"landId"`
	VolumeKg      float64                          `gorm:"not null;default:0" json:"volumeKg"`
	LandSnapshot  datatypes.JSONType[LandSnapshot] `gorm:"type:jsonb" json:"landSnapshot"`
	CreatedAt     time.Time                        `json:"createdAt"`
	UpdatedAt     time.Time                        `json:"updatedAt"`
}

// Snapshot returns the frozen land data.
func (s *BatchSource) Snapshot() LandSnapshot {
	return s.LandSnapshot.Data()
}

// CreateBatchRequest is the body of POST /batches.
type CreateBatchRequest struct {
	Code       string     `json:"code"`
	Commodity  string     `json:"commodity"`
	ProducedAt *time.Time `json:"producedAt,omitempty"`
}

// CreateSourceRequest is the body of POST /batches/:id/sources.
type CreateSourceRequest struct {
	LandID        uuid.UUID  `json:"landId"`
	FarmerGroupID *uuid.UUID `json:"farmerGroupId,omitempty"`
	VolumeKg      float64    `json:"volumeKg"`
}

// UpdateSourceRequest is the body of PUT /batches/:id/sources/:sourceId.
type UpdateSourceRequest struct {
	LandID        *uuid.UUID `json:"landId"`
	FarmerGroupID *uuid.UUID `json:"farmerGroupId"`
	VolumeKg      *float64   `json:"volumeKg"`
}
