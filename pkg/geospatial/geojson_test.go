package geospatial

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rawShape []byte

func (r rawShape) GeoJSON() ([]byte, error) { return r, nil }

func TestSerializePolygon_BareGeometry(t *testing.T) {
	p := orb.Polygon{square(1, 2, 0.5)}

	s, err := SerializePolygon(p)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(s), &decoded))
	assert.Equal(t, "Polygon", decoded["type"])
	assert.NotContains(t, decoded, "geometry")
	assert.NotContains(t, decoded, "properties")
}

func TestSerializePolygon_Empty(t *testing.T) {
	_, err := SerializePolygon(nil)
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestParsePolygon_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 50; i++ {
		n := 3 + rng.Intn(20)
		ring := make(orb.Ring, 0, n+1)
		for j := 0; j < n; j++ {
			ring = append(ring, orb.Point{rng.Float64()*360 - 180, rng.Float64()*180 - 90})
		}
		ring = append(ring, ring[0])
		g := orb.Polygon{ring}

		s, err := SerializePolygon(g)
		require.NoError(t, err)

		back, err := ParsePolygon(s)
		require.NoError(t, err)
		assert.Equal(t, g, back)
	}
}

func TestParsePolygon_Errors(t *testing.T) {
	cases := map[string]string{
		"empty":      "",
		"not json":   "{not json",
		"point":      `{"type":"Point","coordinates":[1,2]}`,
		"feature":    `{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]},"properties":{}}`,
		"no rings":   `{"type":"Polygon","coordinates":[]}`,
		"empty ring": `{"type":"Polygon","coordinates":[[]]}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePolygon(in)
			assert.ErrorIs(t, err, ErrInvalidGeometry)
		})
	}
}

func TestParsePolygon_ClosesOpenRing(t *testing.T) {
	p, err := ParsePolygon(`{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1]]]}`)
	require.NoError(t, err)

	require.Len(t, p[0], 4)
	assert.True(t, p[0].Closed())
}

func TestFromShape(t *testing.T) {
	feature := rawShape(`{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}`)
	bare := rawShape(`{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`)

	fromFeature, err := FromShape(feature)
	require.NoError(t, err)
	fromBare, err := FromShape(bare)
	require.NoError(t, err)

	assert.Equal(t, fromBare, fromFeature)

	_, err = FromShape(rawShape(`{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]}}`))
	assert.ErrorIs(t, err, ErrInvalidGeometry)

	_, err = FromShape(nil)
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestCloseRings_DoesNotMutateInput(t *testing.T) {
	open := orb.Polygon{{{0, 0}, {1, 0}, {1, 1}}}

	closed := CloseRings(open)

	assert.Len(t, open[0], 3)
	assert.Len(t, closed[0], 4)
}

func TestPolygonFeatureCollection(t *testing.T) {
	data, err := PolygonFeatureCollection(orb.Polygon{square(0, 0, 1)}, map[string]interface{}{"name": "north plot"})
	require.NoError(t, err)

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]interface{} `json:"properties"`
			Geometry   struct {
				Type string `json:"type"`
			} `json:"geometry"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "Polygon", fc.Features[0].Geometry.Type)
	assert.Equal(t, "north plot", fc.Features[0].Properties["name"])
}

func TestPolygonFeatureCollection_Empty(t *testing.T) {
	data, err := PolygonFeatureCollection(nil, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(data))
}
