package location

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ukydev/urbanlens/internal/models"
)

// Geolocator is a device capability that reports the current position.
type Geolocator interface {
	CurrentPosition(ctx context.Context) (models.Coordinates, error)
}

// GeolocatorFunc adapts a function to the Geolocator interface.
type GeolocatorFunc func(ctx context.Context) (models.Coordinates, error)

func (f GeolocatorFunc) CurrentPosition(ctx context.Context) (models.Coordinates, error) {
	return f(ctx)
}

// StaticGeolocator always reports the same position.
type StaticGeolocator struct {
	Position models.Coordinates
}

func (g StaticGeolocator) CurrentPosition(ctx context.Context) (models.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return models.Coordinates{}, err
	}
	return g.Position, nil
}

// DefaultIPEndpoint is the ip-api.com lookup for the caller's public address.
const DefaultIPEndpoint = "http://ip-api.com/json/?fields=status,message,lat,lon"

// IPGeolocator estimates the position from the public IP address.
type IPGeolocator struct {
	session  *http.Client
	endpoint string
}

type ipLookupResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// NewIPGeolocator creates an IP based geolocator. An empty endpoint selects
// DefaultIPEndpoint.
func NewIPGeolocator(endpoint string, timeout time.Duration) *IPGeolocator {
	if endpoint == "" {
		endpoint = DefaultIPEndpoint
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &IPGeolocator{
		session:  &http.Client{Timeout: timeout},
		endpoint: endpoint,
	}
}

// CurrentPosition looks up the position of the current public address.
func (g *IPGeolocator) CurrentPosition(ctx context.Context) (models.Coordinates, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint, nil)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "urbanlens/1.0")

	resp, err := g.session.Do(req)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("ip lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Coordinates{}, fmt.Errorf("ip lookup: unexpected status: %s", resp.Status)
	}

	var decoded ipLookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return models.Coordinates{}, fmt.Errorf("decode ip lookup response: %w", err)
	}

	if decoded.Status != "success" {
		return models.Coordinates{}, fmt.Errorf("ip lookup %s: %s", decoded.Status, decoded.Message)
	}

	return models.Coordinates{Latitude: decoded.Lat, Longitude: decoded.Lon}, nil
}
