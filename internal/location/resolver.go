package location

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/urbanlens/internal/diagnostics"
	"github.com/ukydev/urbanlens/internal/metrics"
	"github.com/ukydev/urbanlens/internal/models"
)

// Fallback position used whenever no live reading is available.
const (
	DefaultLatitude  = 42.65698624597273
	DefaultLongitude = -73.75144231302086
)

// DefaultTimeout bounds a single position request.
const DefaultTimeout = 10 * time.Second

var (
	ErrLocationUnavailable = errors.New("geolocation capability unavailable")
	ErrInvalidReading      = errors.New("invalid position reading")
)

// Source tells whether coordinates came from the device or the fallback.
type Source string

const (
	SourceLive     Source = "live"
	SourceFallback Source = "fallback"
)

// Resolution is the outcome of a coordinate resolution.
type Resolution struct {
	Coordinates models.Coordinates `json:"coordinates"`
	Source      Source             `json:"source"`
}

// Default returns the fallback coordinates.
func Default() models.Coordinates {
	return models.Coordinates{Latitude: DefaultLatitude, Longitude: DefaultLongitude}
}

// Resolver determines the user's working coordinates.
//
// It prefers a live reading from its Geolocator and degrades to Default on
// any failure. Resolve never returns an error; failures are reported on the
// diagnostic channel instead. A Resolver holds no per-call state and is safe
// for concurrent use.
type Resolver struct {
	geo      Geolocator
	timeout  time.Duration
	reporter *diagnostics.Reporter
}

// NewResolver creates a resolver. geo may be nil when the environment has no
// geolocation capability. A non-positive timeout selects DefaultTimeout.
func NewResolver(geo Geolocator, timeout time.Duration, reporter *diagnostics.Reporter) *Resolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if reporter == nil {
		reporter = diagnostics.NewReporter(nil, nil)
	}
	return &Resolver{geo: geo, timeout: timeout, reporter: reporter}
}

// ResolveCoordinates returns the live coordinates or the default pair.
func (r *Resolver) ResolveCoordinates(ctx context.Context) models.Coordinates {
	return r.Resolve(ctx).Coordinates
}

// Resolve returns the coordinates together with where they came from.
func (r *Resolver) Resolve(ctx context.Context) Resolution {
	if r.geo == nil {
		return r.fallback(ctx, log.InfoLevel, ErrLocationUnavailable)
	}

	coords, err := r.position(ctx)
	if err != nil {
		return r.fallback(ctx, log.WarnLevel, err)
	}

	metrics.LocationResolutions.WithLabelValues(string(SourceLive)).Inc()
	r.reporter.Logger().WithFields(log.Fields{
		"latitude":  coords.Latitude,
		"longitude": coords.Longitude,
	}).Debug("Resolved live coordinates")

	return Resolution{Coordinates: coords, Source: SourceLive}
}

type reading struct {
	coords models.Coordinates
	err    error
}

// position asks the geolocator for a reading, giving up after the timeout
// even when the geolocator ignores its context.
func (r *Resolver) position(ctx context.Context) (models.Coordinates, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	ch := make(chan reading, 1)
	go func() {
		c, err := r.geo.CurrentPosition(ctx)
		ch <- reading{coords: c, err: err}
	}()

	select {
	case rd := <-ch:
		if rd.err != nil {
			return models.Coordinates{}, fmt.Errorf("current position: %w", rd.err)
		}
		if !rd.coords.Valid() {
			return models.Coordinates{}, fmt.Errorf("%w: %s", ErrInvalidReading, rd.coords)
		}
		return rd.coords, nil
	case <-ctx.Done():
		return models.Coordinates{}, fmt.Errorf("current position: %w", ctx.Err())
	}
}

func (r *Resolver) fallback(ctx context.Context, level log.Level, cause error) Resolution {
	metrics.LocationResolutions.WithLabelValues(string(SourceFallback)).Inc()
	r.reporter.Report(ctx, level, diagnostics.KindLocationFallback, "Using default coordinates", cause, log.Fields{
		"latitude":  DefaultLatitude,
		"longitude": DefaultLongitude,
	})
	return Resolution{Coordinates: Default(), Source: SourceFallback}
}
