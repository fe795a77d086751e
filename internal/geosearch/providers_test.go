package geosearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNominatimGeocoder_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "kebun raya", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"lat":"-6.5976","lon":"106.7996","display_name":"Kebun Raya Bogor"},
			{"lat":"bad","lon":"1","display_name":"Broken"}
		]`))
	}))
	defer srv.Close()

	g := NewNominatimGeocoder(NominatimOptions{BaseURL: srv.URL}, nil)
	places, err := g.Search(context.Background(), "kebun raya")

	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, Place{Lat: -6.5976, Lng: 106.7996, DisplayName: "Kebun Raya Bogor"}, places[0])
}

func TestNominatimGeocoder_EmptyResultIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	g := NewNominatimGeocoder(NominatimOptions{BaseURL: srv.URL}, nil)
	_, err := g.Search(context.Background(), "atlantis")

	assert.ErrorIs(t, err, ErrLocationNotFound)
}

func TestNominatimGeocoder_Reverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("lat") {
		case "-6.2":
			w.Write([]byte(`{"lat":"-6.2","lon":"106.8","display_name":"Jakarta, Indonesia"}`))
		default:
			w.Write([]byte(`{"error":"Unable to geocode"}`))
		}
	}))
	defer srv.Close()

	g := NewNominatimGeocoder(NominatimOptions{BaseURL: srv.URL}, nil)

	place, err := g.Reverse(context.Background(), -6.2, 106.8)
	require.NoError(t, err)
	assert.Equal(t, "Jakarta, Indonesia", place.DisplayName)

	_, err = g.Reverse(context.Background(), 0, -160)
	assert.ErrorIs(t, err, ErrLocationNotFound)
}

func TestNominatimGeocoder_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g := NewNominatimGeocoder(NominatimOptions{BaseURL: srv.URL}, nil)
	_, err := g.Search(context.Background(), "bogor")

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLocationNotFound)
}

func TestGoogleGeocoder_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/geocode/json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("address") == "" {
			w.Write([]byte(`{"results":[{"formatted_address":"Jl. Sudirman, Jakarta","geometry":{"location":{"lat":-6.2,"lng":106.8}}}],"status":"OK"}`))
			return
		}
		w.Write([]byte(`{"results":[{"formatted_address":"Jakarta, Indonesia","geometry":{"location":{"lat":-6.2088,"lng":106.8456}}}],"status":"OK"}`))
	}))
	defer srv.Close()

	g, err := NewGoogleGeocoder(GoogleOptions{APIKey: "AIza-test", BaseURL: srv.URL})
	require.NoError(t, err)

	places, err := g.Search(context.Background(), "jakarta")
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, Place{Lat: -6.2088, Lng: 106.8456, DisplayName: "Jakarta, Indonesia"}, places[0])

	place, err := g.Reverse(context.Background(), -6.2, 106.8)
	require.NoError(t, err)
	assert.Equal(t, "Jl. Sudirman, Jakarta", place.DisplayName)
}

func TestNewGoogleGeocoder_RequiresKey(t *testing.T) {
	_, err := NewGoogleGeocoder(GoogleOptions{})
	assert.Error(t, err)
}

// MockGeocoder is a mock implementation of the Geocoder interface
type MockGeocoder struct {
	mock.Mock
}

func (m *MockGeocoder) Search(ctx context.Context, query string) ([]Place, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Place), args.Error(1)
}

func (m *MockGeocoder) Reverse(ctx context.Context, lat, lng float64) (Place, error) {
	args := m.Called(ctx, lat, lng)
	return args.Get(0).(Place), args.Error(1)
}

func TestCachingGeocoder_MemoizesHits(t *testing.T) {
	next := new(MockGeocoder)
	next.On("Search", mock.Anything, "Bogor").Return([]Place{{DisplayName: "Bogor"}}, nil).Once()
	next.On("Search", mock.Anything, "nowhere").Return(nil, ErrLocationNotFound).Twice()
	next.On("Reverse", mock.Anything, -6.59761, 106.79961).Return(Place{DisplayName: "Bogor"}, nil).Once()

	c := NewCachingGeocoder(next, time.Minute)
	defer c.Stop()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		places, err := c.Search(ctx, "Bogor")
		require.NoError(t, err)
		assert.Equal(t, "Bogor", places[0].DisplayName)
	}
	_, err := c.Search(ctx, " bogor ")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := c.Search(ctx, "nowhere")
		assert.ErrorIs(t, err, ErrLocationNotFound)
	}

	_, err = c.Reverse(ctx, -6.59761, 106.79961)
	require.NoError(t, err)
	_, err = c.Reverse(ctx, -6.59762, 106.79962)
	require.NoError(t, err)

	next.AssertExpectations(t)
}

func TestTTLCache_Expiry(t *testing.T) {
	c := newTTLCache[int](time.Minute, time.Hour)
	defer c.Stop()

	var now atomic.Int64
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now.Store(base.UnixNano())
	c.now = func() time.Time { return time.Unix(0, now.Load()) }

	c.Set("k", 7)
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 7, v)

	now.Store(base.Add(2 * time.Minute).UnixNano())
	_, ok = c.Get("k")
	assert.False(t, ok)

	c.removeExpired()
	assert.Equal(t, 0, c.Size())
}
