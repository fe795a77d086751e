package batches

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrotrace/company-portal/portal-backend/internal/lands"
)

func TestBuildSnapshot_CopiesFields(t *testing.T) {
	land := testLand(squarePolygon)
	captured := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	snap := BuildSnapshot(*land, captured)

	assert.Equal(t, land.ID, snap.ID)
	assert.Equal(t, land.Name, snap.Name)
	assert.Equal(t, land.AreaHectares, snap.AreaHectares)
	assert.Equal(t, land.Latitude, snap.Latitude)
	assert.Equal(t, land.Longitude, snap.Longitude)
	assert.Equal(t, land.Location, snap.Location)
	assert.Equal(t, squarePolygon, *snap.GeoPolygon)
	assert.True(t, *snap.IsDeforestationFree)
	assert.Equal(t, land.RecordedAt, snap.RecordedAt)
	assert.Equal(t, captured, snap.SnapshotDate)
}

func TestBuildSnapshot_SharesNoMemoryWithLand(t *testing.T) {
	land := testLand(squarePolygon)
	snap := BuildSnapshot(*land, clock)

	*land.GeoPolygon = movedPolygon
	*land.IsDeforestationFree = false
	land.AreaHectares = 1

	assert.Equal(t, squarePolygon, *snap.GeoPolygon)
	assert.True(t, *snap.IsDeforestationFree)
	assert.Equal(t, 123.1, snap.AreaHectares)
}

func TestBuildSnapshot_NilOptionalFields(t *testing.T) {
	snap := BuildSnapshot(lands.Land{ID: uuid.New(), Name: "Bare"}, clock)

	assert.Nil(t, snap.GeoPolygon)
	assert.Nil(t, snap.IsDeforestationFree)
}

func TestLandSnapshot_JSONShape(t *testing.T) {
	data, err := json.Marshal(BuildSnapshot(*testLand(squarePolygon), clock))
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &fields))
	for _, key := range []string{"id", "name", "areaHectares", "latitude", "longitude", "location",
		"geoPolygon", "isDeforestationFree", "recordedAt", "snapshotDate"} {
		assert.Contains(t, fields, key)
	}
}
