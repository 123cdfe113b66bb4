package diagnostics

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/urbanlens/internal/metrics"
)

// Kind identifies an absorbed failure.
type Kind string

const (
	KindLocationFallback  Kind = "location_fallback"
	KindPlacesFetchFailed Kind = "places_fetch_failed"
	KindSignInFailed      Kind = "sign_in_failed"
)

const publishTimeout = 2 * time.Second

// Event is what the reporter publishes for each absorbed failure.
type Event struct {
	Kind      Kind                   `json:"kind"`
	Message   string                 `json:"message"`
	Error     string                 `json:"error,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Publisher forwards events to an external sink.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Reporter routes failures that are hidden from callers to the log, the
// metrics registry and an optional publisher.
type Reporter struct {
	log       log.FieldLogger
	publisher Publisher
}

// NewReporter creates a reporter. A nil logger means the standard logrus logger;
// a nil publisher disables publishing.
func NewReporter(logger log.FieldLogger, publisher Publisher) *Reporter {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Reporter{log: logger, publisher: publisher}
}

// Logger returns the reporter's logger.
func (r *Reporter) Logger() log.FieldLogger {
	if r == nil {
		return log.StandardLogger()
	}
	return r.log
}

// Report logs the failure at level and hands it to the publisher.
// Publishing outlives caller cancellation since the failure being reported
// is often the cancellation itself.
func (r *Reporter) Report(ctx context.Context, level log.Level, kind Kind, msg string, err error, fields log.Fields) {
	if r == nil {
		r = NewReporter(nil, nil)
	}

	entry := r.log.WithFields(fields).WithField("event", string(kind))
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Log(level, msg)

	metrics.DiagnosticEvents.WithLabelValues(string(kind)).Inc()

	if r.publisher == nil {
		return
	}

	event := Event{
		Kind:      kind,
		Message:   msg,
		Fields:    fields,
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		event.Error = err.Error()
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if perr := r.publisher.Publish(pubCtx, event); perr != nil {
		r.log.WithError(perr).WithField("event", string(kind)).Warn("Failed to publish diagnostic event")
	}
}
