package mapview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"agrotrace/company-portal/portal-backend/pkg/geospatial"
)

type MockViewport struct {
	mock.Mock
}

func (m *MockViewport) SetView(center geospatial.LatLng, zoom int, opts ViewOptions) {
	m.Called(center, zoom, opts)
}

func TestSynchronizer_IgnoresZeroSentinel(t *testing.T) {
	vp := new(MockViewport)
	s := NewSynchronizer(vp, nil)

	moved := s.Apply(geospatial.LatLng{Lat: 0, Lng: 0})

	assert.False(t, moved)
	vp.AssertNotCalled(t, "SetView", mock.Anything, mock.Anything, mock.Anything)
}

func TestSynchronizer_RecentersAtSearchZoom(t *testing.T) {
	vp := new(MockViewport)
	target := geospatial.LatLng{Lat: -6.2, Lng: 106.8}
	vp.On("SetView", target, 13, ViewOptions{Animate: true}).Return()

	s := NewSynchronizer(vp, nil)

	assert.True(t, s.Apply(target))
	vp.AssertExpectations(t)
}

func TestSynchronizer_OnlyOneAxisZeroIsValid(t *testing.T) {
	vp := new(MockViewport)
	vp.On("SetView", mock.Anything, SearchZoom, mock.Anything).Return()

	s := NewSynchronizer(vp, nil)

	assert.True(t, s.Apply(geospatial.LatLng{Lat: 0, Lng: 32.5}))
	assert.True(t, s.Apply(geospatial.LatLng{Lat: 1.3, Lng: 0}))
	vp.AssertNumberOfCalls(t, "SetView", 2)
}

func TestIconRegistry_InitOnce(t *testing.T) {
	r := &IconRegistry{}

	_, err := r.Icons()
	assert.ErrorIs(t, err, ErrIconsNotInitialized)

	assert.True(t, r.Init(IconConfig{IconURL: "/static/marker.png"}))
	assert.False(t, r.Init(IconConfig{IconURL: "/other.png"}))

	icons, err := r.Icons()
	assert.NoError(t, err)
	assert.Equal(t, "/static/marker.png", icons.IconURL)
}
