package exports

import (
	"io"

	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"agrotrace/company-portal/portal-backend/pkg/geospatial"
)

// WriteGeoJSON renders one Feature per source whose snapshot carries a usable
// polygon. Sources without one are skipped.
func WriteGeoJSON(w io.Writer, report Report, logger *zap.Logger) error {
	fc := geojson.NewFeatureCollection()
	for i := range report.Sources {
		src := &report.Sources[i]
		snap := src.Snapshot()
		if snap.GeoPolygon == nil {
			continue
		}
		p, err := geospatial.ParsePolygon(*snap.GeoPolygon)
		if err != nil {
			logger.Warn("Skipping source with unusable snapshot polygon",
				zap.String("source_id", src.ID.String()),
				zap.Error(err))
			continue
		}

		f := geojson.NewFeature(p)
		f.Properties = geojson.Properties{
			"batchCode":           report.Batch.Code,
			"sourceId":            src.ID.String(),
			"landId":              snap.ID.String(),
			"name":                snap.Name,
			"location":            snap.Location,
			"areaHectares":        snap.AreaHectares,
			"volumeKg":            src.VolumeKg,
			"isDeforestationFree": snap.IsDeforestationFree,
			"snapshotDate":        snap.SnapshotDate,
		}
		fc.Append(f)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
