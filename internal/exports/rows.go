package exports

import (
	"time"

	"agrotrace/company-portal/portal-backend/internal/batches"
)

// Column keys of a traceability row.
const (
	ColBatchCode     = "batch_code"
	ColSourceID      = "source_id"
	ColFarmerGroupID = "farmer_group_id"
	ColLandID        = "land_id"
	ColLandName      = "land_name"
	ColLocation      = "location"
	ColAreaHectares  = "area_hectares"
	ColLatitude      = "latitude"
	ColLongitude     = "longitude"
	ColVolumeKg      = "volume_kg"
	ColDeforestation = "deforestation_free"
	ColRecordedAt    = "recorded_at"
	ColSnapshotDate  = "snapshot_date"
)

// Columns is the column order shared by every tabular format.
var Columns = []string{
	ColBatchCode, ColSourceID, ColFarmerGroupID, ColLandID, ColLandName, ColLocation,
	ColAreaHectares, ColLatitude, ColLongitude, ColVolumeKg, ColDeforestation,
	ColRecordedAt, ColSnapshotDate,
}

// ColumnLabels are the human readable headers for Columns.
var ColumnLabels = []string{
	"Batch", "Source", "Farmer Group", "Land", "Land Name", "Location",
	"Area (ha)", "Latitude", "Longitude", "Volume (kg)", "Deforestation Free",
	"Recorded At", "Snapshot Date",
}

// Report is the data every export format renders. Rows are built from
// source snapshots only; live lands are never read.
type Report struct {
	Batch       batches.Batch
	Sources     []batches.BatchSource
	Rows        []map[string]interface{}
	Summary     Summary
	GeneratedAt time.Time
}

// Summary aggregates a batch's sources.
type Summary struct {
	Sources           int
	TotalVolumeKg     float64
	TotalAreaHectares float64
	DeforestationFree int
	Unchecked         int
}

// Items returns the summary as ordered label/value pairs.
func (s Summary) Items() []SummaryItem {
	return []SummaryItem{
		{"Sources", s.Sources},
		{"Total Volume (kg)", s.TotalVolumeKg},
		{"Total Area (ha)", s.TotalAreaHectares},
		{"Deforestation Free", s.DeforestationFree},
		{"Not Yet Checked", s.Unchecked},
	}
}

// SummaryItem is one label/value line of a summary.
type SummaryItem struct {
	Label string
	Value interface{}
}

// BuildReport flattens the sources of batch into export rows.
func BuildReport(batch batches.Batch, sources []batches.BatchSource, generatedAt time.Time) Report {
	report := Report{
		Batch:       batch,
		Sources:     sources,
		Rows:        make([]map[string]interface{}, 0, len(sources)),
		GeneratedAt: generatedAt,
	}

	for i := range sources {
		src := &sources[i]
		snap := src.Snapshot()

		var farmerGroup interface{}
		if src.FarmerGroupID != nil {
			farmerGroup = src.FarmerGroupID.String()
		}

		report.Rows = append(report.Rows, map[string]interface{}{
			ColBatchCode:     batch.Code,
			ColSourceID:      src.ID.String(),
			ColFarmerGroupID: farmerGroup,
			ColLandID:        snap.ID.String(),
			ColLandName:      snap.Name,
			ColLocation:      snap.Location,
			ColAreaHectares:  snap.AreaHectares,
			ColLatitude:      snap.Latitude,
			ColLongitude:     snap.Longitude,
			ColVolumeKg:      src.VolumeKg,
			ColDeforestation: deforestationStatus(snap.IsDeforestationFree),
			ColRecordedAt:    snap.RecordedAt,
			ColSnapshotDate:  snap.SnapshotDate,
		})

		report.Summary.Sources++
		report.Summary.TotalVolumeKg += src.VolumeKg
		report.Summary.TotalAreaHectares += snap.AreaHectares
		switch {
		case snap.IsDeforestationFree == nil:
			report.Summary.Unchecked++
		case *snap.IsDeforestationFree:
			report.Summary.DeforestationFree++
		}
	}
	return report
}

func deforestationStatus(free *bool) string {
	switch {
	case free == nil:
		return "unknown"
	case *free:
		return "yes"
	default:
		return "no"
	}
}
