package mapdraw

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"agrotrace/company-portal/portal-backend/internal/mapview"
	"agrotrace/company-portal/portal-backend/pkg/geospatial"
	"agrotrace/company-portal/portal-backend/pkg/workflows"
)

type viewCall struct {
	center geospatial.LatLng
	zoom   int
	opts   mapview.ViewOptions
}

type fitCall struct {
	bounds  orb.Bound
	padding Padding
}

type fakeSurface struct {
	shapes []orb.Polygon
	views  []viewCall
	fits   []fitCall
}

func (s *fakeSurface) SetView(center geospatial.LatLng, zoom int, opts mapview.ViewOptions) {
	s.views = append(s.views, viewCall{center, zoom, opts})
}
func (s *fakeSurface) AddShape(p orb.Polygon)        { s.shapes = append(s.shapes, p) }
func (s *fakeSurface) ClearShapes()                  { s.shapes = nil }
func (s *fakeSurface) CurrentShapes() []orb.Polygon { return s.shapes }
func (s *fakeSurface) FitBounds(b orb.Bound, padding Padding) {
	s.fits = append(s.fits, fitCall{b, padding})
}

type drawnShape struct {
	raw    string
	center *geospatial.LatLng
}

func (d drawnShape) GeoJSON() ([]byte, error) { return []byte(d.raw), nil }

func (d drawnShape) BoundsCenter() (geospatial.LatLng, bool) {
	if d.center == nil {
		return geospatial.LatLng{}, false
	}
	return *d.center, true
}

const milliRect = `{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[0.001,0],[0.001,0.001],[0,0.001],[0,0]]]}}`
const otherRect = `{"type":"Polygon","coordinates":[[[10,10],[10.01,10],[10.01,10.01],[10,10.01],[10,10]]]}`

func newTestController(opts Options) (*Controller, *fakeSurface, *[]ChangeEvent) {
	surface := &fakeSurface{}
	events := &[]ChangeEvent{}
	opts.OnChange = func(ev ChangeEvent) { *events = append(*events, ev) }
	return NewController(surface, opts, zap.NewNop()), surface, events
}

func TestController_DrawThenDelete(t *testing.T) {
	c, surface, events := newTestController(Options{})

	require.NoError(t, c.BeginDrawing())
	assert.Equal(t, StateDrawing, c.State())

	require.NoError(t, c.ShapeCreated(drawnShape{raw: milliRect}))
	assert.Equal(t, StatePlaced, c.State())
	require.Len(t, *events, 1)

	created := (*events)[0]
	assert.Equal(t, 1.24, created.AreaHa)
	assert.InDelta(t, 0.0005, created.Center.Lat, 1e-9)
	assert.InDelta(t, 0.0005, created.Center.Lng, 1e-9)
	assert.Contains(t, created.GeoJSON, `"type":"Polygon"`)
	assert.Len(t, surface.CurrentShapes(), 1)

	require.NoError(t, c.ShapeDeleted())
	require.Len(t, *events, 2)
	assert.Equal(t, ChangeEvent{GeoJSON: "", AreaHa: 0, Center: geospatial.LatLng{Lat: 0, Lng: 0}}, (*events)[1])
	assert.Equal(t, StateEmpty, c.State())
	assert.Empty(t, surface.CurrentShapes())
}

func TestController_CreateReplacesExistingShape(t *testing.T) {
	c, surface, events := newTestController(Options{})

	require.NoError(t, c.ShapeCreated(drawnShape{raw: milliRect}))
	require.NoError(t, c.ShapeCreated(drawnShape{raw: otherRect}))
	require.NoError(t, c.ShapeCreated(drawnShape{raw: otherRect}))

	require.Len(t, surface.CurrentShapes(), 1)
	assert.Equal(t, orb.Point{10, 10}, surface.CurrentShapes()[0][0][0])
	assert.Len(t, *events, 3)
	assert.Equal(t, StatePlaced, c.State())
}

func TestController_BeginDrawingWhilePlaced(t *testing.T) {
	c, _, _ := newTestController(Options{})
	require.NoError(t, c.ShapeCreated(drawnShape{raw: milliRect}))

	err := c.BeginDrawing()

	assert.ErrorIs(t, err, ErrShapeAlreadyPlaced)
	assert.Equal(t, StatePlaced, c.State())
}

func TestController_CancelDrawing(t *testing.T) {
	c, _, events := newTestController(Options{})

	require.NoError(t, c.BeginDrawing())
	require.NoError(t, c.CancelDrawing())

	assert.Equal(t, StateEmpty, c.State())
	assert.Empty(t, *events)
	assert.Error(t, c.CancelDrawing())
}

func TestController_EditRequiresPlacedPolygon(t *testing.T) {
	c, _, events := newTestController(Options{})

	err := c.ShapeEdited(drawnShape{raw: otherRect})

	var te *workflows.TransitionError[State]
	assert.True(t, errors.As(err, &te))
	assert.Empty(t, *events)

	require.NoError(t, c.ShapeCreated(drawnShape{raw: milliRect}))
	require.NoError(t, c.ShapeEdited(drawnShape{raw: otherRect}))
	require.Len(t, *events, 2)
	assert.Greater(t, (*events)[1].AreaHa, (*events)[0].AreaHa)
}

func TestController_UnusableShapeIsIgnored(t *testing.T) {
	c, surface, events := newTestController(Options{})
	require.NoError(t, c.ShapeCreated(drawnShape{raw: milliRect}))

	err := c.ShapeCreated(drawnShape{raw: `{"type":"Point","coordinates":[1,2]}`})

	assert.ErrorIs(t, err, geospatial.ErrInvalidGeometry)
	assert.Equal(t, StatePlaced, c.State())
	assert.Len(t, surface.CurrentShapes(), 1)
	assert.Len(t, *events, 1)
}

func TestController_DeleteWhenEmptyIsNoop(t *testing.T) {
	c, _, events := newTestController(Options{})

	assert.NoError(t, c.ShapeDeleted())
	assert.Empty(t, *events)
}

func TestController_MountFitsStoredPolygon(t *testing.T) {
	c, surface, events := newTestController(Options{
		DefaultCenter: geospatial.LatLng{Lat: -2.5, Lng: 118},
		DefaultZoom:   5,
	})

	c.Mount(otherRect)

	assert.Equal(t, StatePlaced, c.State())
	require.Len(t, surface.fits, 1)
	assert.Equal(t, orb.Bound{Min: orb.Point{10, 10}, Max: orb.Point{10.01, 10.01}}, surface.fits[0].bounds)
	assert.Equal(t, DefaultPadding, surface.fits[0].padding)
	assert.Empty(t, surface.views, "default view must not be used when a polygon is loaded")
	assert.Len(t, surface.CurrentShapes(), 1)
	assert.Empty(t, *events)

	ev := c.Event()
	assert.InDelta(t, 122.0, ev.AreaHa, 0.5)
	assert.InDelta(t, 10.005, ev.Center.Lat, 1e-9)
}

func TestController_ConfiguredPadding(t *testing.T) {
	tests := []struct {
		name    string
		padding *Padding
		want    Padding
	}{
		{"default", nil, DefaultPadding},
		{"none", &Padding{}, Padding{}},
		{"custom", &Padding{X: 10, Y: 24}, Padding{X: 10, Y: 24}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, surface, _ := newTestController(Options{Padding: tt.padding})

			c.Mount(otherRect)

			require.Len(t, surface.fits, 1)
			assert.Equal(t, tt.want, surface.fits[0].padding)
		})
	}
}

func TestController_MountMalformedPolygon(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	surface := &fakeSurface{}
	def := geospatial.LatLng{Lat: -2.5, Lng: 118}
	c := NewController(surface, Options{DefaultCenter: def, DefaultZoom: 5}, zap.New(core))

	c.Mount(`{"type":"Polygon","coordinates":`)

	assert.Equal(t, StateEmpty, c.State())
	assert.Equal(t, 1, logs.FilterMessage("Ignoring malformed initial polygon").Len())
	require.Len(t, surface.views, 1)
	assert.Equal(t, def, surface.views[0].center)
	assert.Equal(t, 5, surface.views[0].zoom)
	assert.Empty(t, surface.fits)
	assert.Equal(t, emptyEvent(), c.Event())

	require.NoError(t, c.BeginDrawing())
}

func TestController_MountThenDelete(t *testing.T) {
	c, surface, events := newTestController(Options{})
	c.Mount(otherRect)

	require.NoError(t, c.ShapeDeleted())

	assert.Empty(t, surface.CurrentShapes())
	require.Len(t, *events, 1)
	assert.Equal(t, emptyEvent(), (*events)[0])
}

func TestController_BoundingBoxCenterPrefersShape(t *testing.T) {
	native := geospatial.LatLng{Lat: 1, Lng: 2}
	c, _, events := newTestController(Options{CenterMethod: CenterBoundingBox})

	require.NoError(t, c.ShapeCreated(drawnShape{raw: otherRect, center: &native}))
	require.NoError(t, c.ShapeEdited(drawnShape{raw: otherRect}))

	assert.Equal(t, native, (*events)[0].Center)
	assert.InDelta(t, 10.005, (*events)[1].Center.Lat, 1e-9)
	assert.InDelta(t, 10.005, (*events)[1].Center.Lng, 1e-9)
}

func TestToolConfig(t *testing.T) {
	tools := ToolConfig()

	assert.True(t, tools.Polygon)
	assert.False(t, tools.Rectangle)
	assert.False(t, tools.Circle)
	assert.False(t, tools.CircleMarker)
	assert.False(t, tools.Marker)
	assert.False(t, tools.Polyline)
}
