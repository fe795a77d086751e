package lands

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound       = errors.New("land not found")
	ErrInvalidPolygon = errors.New("invalid land polygon")
	ErrNameRequired   = errors.New("name is required")

	// ErrStaleCheck means the polygon changed while its deforestation check
	// was running, so the verdict was not stored.
	ErrStaleCheck = errors.New("land polygon changed during deforestation check")
)

// Land is a plot of farmland owned by a company.
type Land struct {
	ID                     uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID              uuid.UUID      `gorm:"type:uuid;not null;index" json:"companyId"`
	Name                   string         `gorm:"not null" json:"name"`
	Location               string         `json:"location"`
	AreaHectares           float64        `gorm:"not null;default:0" json:"areaHectares"`
	Latitude               float64        `json:"latitude"`
	Longitude              float64        `json:"longitude"`
	GeoPolygon             *string        `gorm:"type:text" json:"geoPolygon"`
	IsDeforestationFree    *bool          `json:"isDeforestationFree"`
	DeforestationCheckedAt *time.Time     `json:"deforestationCheckedAt,omitempty"`
	RecordedAt             time.Time      `json:"recordedAt"`
	CreatedAt              time.Time      `json:"createdAt"`
	UpdatedAt              time.Time      `json:"updatedAt"`
	DeletedAt              gorm.DeletedAt `gorm:"index" json:"-"`
}

// Polygon returns the stored polygon string or "".
func (l *Land) Polygon() string {
	if l.GeoPolygon == nil {
		return ""
	}
	return *l.GeoPolygon
}

// CreateLandRequest is the body of POST /lands. Area and centroid sent by the
// client are advisory; the server recomputes both from GeoPolygon.
type CreateLandRequest struct {
	Name                string     `json:"name"`
	Location            string     `json:"location"`
	GeoPolygon          string     `json:"geoPolygon"`
	AreaHectares        *float64   `json:"areaHectares,omitempty"`
	Latitude            *float64   `json:"latitude,omitempty"`
	Longitude           *float64   `json:"longitude,omitempty"`
	IsDeforestationFree *bool      `json:"isDeforestationFree,omitempty"`
	RecordedAt          *time.Time `json:"recordedAt,omitempty"`
}

// UpdateLandRequest is the body of PUT /lands/:id. Nil fields are unchanged.
type UpdateLandRequest struct {
	Name                *string    `json:"name"`
	Location            *string    `json:"location"`
	GeoPolygon          *string    `json:"geoPolygon"`
	IsDeforestationFree *bool      `json:"isDeforestationFree"`
	RecordedAt          *time.Time `json:"recordedAt"`
}

// LandFilter narrows a land listing. CompanyID is always required.
type LandFilter struct {
	CompanyID  uuid.UUID
	Search     string
	ExcludeIDs []uuid.UUID
	Limit      int
	Offset     int
}
