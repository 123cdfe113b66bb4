package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	// LocationResolutions counts coordinate resolutions by source (live or fallback).
	LocationResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "urbanlens",
		Subsystem: "location",
		Name:      "resolutions_total",
		Help:      "Total coordinate resolutions by source",
	}, []string{"source"})

	PlacesRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "urbanlens",
		Subsystem: "places",
		Name:      "requests_total",
		Help:      "Total places API requests by operation and outcome",
	}, []string{"operation", "outcome"})

	PlacesRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "urbanlens",
		Subsystem: "places",
		Name:      "request_duration_seconds",
		Help:      "Places API request latency in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"operation"})

	SignIns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "urbanlens",
		Subsystem: "auth",
		Name:      "sign_ins_total",
		Help:      "Total interactive sign-in attempts by outcome",
	}, []string{"outcome"})

	DiagnosticEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "urbanlens",
		Subsystem: "diagnostics",
		Name:      "events_total",
		Help:      "Total absorbed failures reported on the diagnostic channel",
	}, []string{"kind"})
)

// Push sends the default registry to a Prometheus Pushgateway under job.
// A command-line client has no scrape endpoint, so this is how its counters
// leave the process.
func Push(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	err := push.New(url, job).
		Gatherer(prometheus.DefaultGatherer).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
