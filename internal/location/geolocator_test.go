package location

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/urbanlens/internal/models"
)

func TestIPGeolocator_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","lat":42.6526,"lon":-73.7562}`))
	}))
	defer server.Close()

	geo := NewIPGeolocator(server.URL, time.Second)
	coords, err := geo.CurrentPosition(context.Background())

	require.NoError(t, err)
	assert.Equal(t, models.Coordinates{Latitude: 42.6526, Longitude: -73.7562}, coords)
}

func TestIPGeolocator_LookupFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"fail","message":"private range"}`))
	}))
	defer server.Close()

	_, err := NewIPGeolocator(server.URL, time.Second).CurrentPosition(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "private range")
}

func TestIPGeolocator_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := NewIPGeolocator(server.URL, time.Second).CurrentPosition(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status")
}

func TestIPGeolocator_WithResolver(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	resolver, _ := newTestResolver(NewIPGeolocator(server.URL, time.Second), time.Second)
	res := resolver.Resolve(context.Background())

	assert.Equal(t, Default(), res.Coordinates)
	assert.Equal(t, SourceFallback, res.Source)
}

func TestNewIPGeolocator_Defaults(t *testing.T) {
	geo := NewIPGeolocator("", 0)
	assert.Equal(t, DefaultIPEndpoint, geo.endpoint)
	assert.Equal(t, DefaultTimeout, geo.session.Timeout)
}

func TestStaticGeolocator(t *testing.T) {
	geo := StaticGeolocator{Position: models.Coordinates{Latitude: 10, Longitude: 20}}

	coords, err := geo.CurrentPosition(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.Coordinates{Latitude: 10, Longitude: 20}, coords)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = geo.CurrentPosition(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
