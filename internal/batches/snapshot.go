package batches

import (
	"time"

	"agrotrace/company-portal/portal-backend/internal/lands"
)

// BuildSnapshot copies the traceability-relevant fields of land and stamps
// the copy with capturedAt. The result shares no memory with land.
func BuildSnapshot(land lands.Land, capturedAt time.Time) LandSnapshot {
	snap := LandSnapshot{
		ID:           land.ID,
		Name:         land.Name,
		AreaHectares: land.AreaHectares,
		Latitude:     land.Latitude,
		Longitude:    land.Longitude,
		Location:     land.Location,
		RecordedAt:   land.RecordedAt,
		SnapshotDate: capturedAt,
	}
	if land.GeoPolygon != nil {
		polygon := *land.GeoPolygon
		snap.GeoPolygon = &polygon
	}
	if land.IsDeforestationFree != nil {
		free := *land.IsDeforestationFree
		snap.IsDeforestationFree = &free
	}
	return snap
}
