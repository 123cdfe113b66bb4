package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/urbanlens/internal/diagnostics"
	"github.com/ukydev/urbanlens/internal/metrics"
	"github.com/ukydev/urbanlens/internal/models"
)

// Search defaults. The centre, radius and key are the values the map
// front-end has always sent.
const (
	DefaultBaseURL  = "https://maps.googleapis.com/maps/api/place"
	DefaultLocation = "-33.8670522,151.1957362"
	DefaultRadius   = 1500
	DefaultAPIKey   = "YOUR_API_KEY"
	DefaultTimeout  = 10 * time.Second
)

// SearchParams configures the places API requests.
type SearchParams struct {
	BaseURL  string
	Location string
	Radius   int
	APIKey   string
	Type     string
}

// DefaultSearchParams returns the literal search configuration.
func DefaultSearchParams() SearchParams {
	return SearchParams{
		BaseURL:  DefaultBaseURL,
		Location: DefaultLocation,
		Radius:   DefaultRadius,
		APIKey:   DefaultAPIKey,
	}
}

// Client queries the places API on behalf of a signed-in user.
//
// The identity token is passed per call and never retained. The client is
// safe for concurrent use.
type Client struct {
	session  *http.Client
	params   SearchParams
	reporter *diagnostics.Reporter
}

// NewClient creates a places client.
func NewClient(params SearchParams, timeout time.Duration, reporter *diagnostics.Reporter) (*Client, error) {
	if params.BaseURL == "" {
		return nil, errors.New("places base url is empty")
	}
	if _, err := url.Parse(params.BaseURL); err != nil {
		return nil, fmt.Errorf("places base url: %w", err)
	}
	if params.Radius <= 0 {
		return nil, fmt.Errorf("places radius must be positive, got %d", params.Radius)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if reporter == nil {
		reporter = diagnostics.NewReporter(nil, nil)
	}

	return &Client{
		session:  &http.Client{Timeout: timeout},
		params:   params,
		reporter: reporter,
	}, nil
}

// Params returns the client's search configuration.
func (c *Client) Params() SearchParams {
	return c.params
}

type nearbyResponse struct {
	Results []models.Place `json:"results"`
	Status  string         `json:"status"`
}

// FetchNearbyPlaces searches around the configured centre.
//
// It never fails: any error is reported on the diagnostic channel and an
// empty list is returned.
func (c *Client) FetchNearbyPlaces(ctx context.Context, identityToken string) []models.Place {
	return c.fetchNearby(ctx, identityToken, c.params.Location)
}

// FetchNearbyPlacesAt is FetchNearbyPlaces centred on coords.
func (c *Client) FetchNearbyPlacesAt(ctx context.Context, identityToken string, coords models.Coordinates) []models.Place {
	return c.fetchNearby(ctx, identityToken, coords.String())
}

func (c *Client) fetchNearby(ctx context.Context, token, location string) []models.Place {
	start := time.Now()
	results, err := c.nearby(ctx, token, location)
	metrics.PlacesRequestDuration.WithLabelValues("nearby").Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.PlacesRequests.WithLabelValues("nearby", "failed").Inc()

		fields := log.Fields{
			"location": location,
			"radius":   c.params.Radius,
		}
		var se *StatusError
		if errors.As(err, &se) {
			fields["status"] = se.Code
		}
		c.reporter.Report(ctx, log.ErrorLevel, diagnostics.KindPlacesFetchFailed, "Failed to fetch saved places", err, fields)
		return []models.Place{}
	}

	metrics.PlacesRequests.WithLabelValues("nearby", "ok").Inc()
	c.reporter.Logger().WithFields(log.Fields{
		"location": location,
		"results":  len(results),
	}).Debug("Fetched nearby places")

	return results
}

func (c *Client) nearby(ctx context.Context, token, location string) ([]models.Place, error) {
	q := url.Values{}
	q.Set("location", location)
	q.Set("radius", strconv.Itoa(c.params.Radius))
	if c.params.Type != "" {
		q.Set("type", c.params.Type)
	}

	req, err := c.newRequest(ctx, c.endpoint("nearbysearch"), token, q)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("nearby search: %w", err)
	}
	defer resp.Body.Close()

	var decoded nearbyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode nearby search response: %w", err)
	}

	c.warnOnAPIStatus("nearby", decoded.Status)

	if decoded.Results == nil {
		return []models.Place{}, nil
	}
	return decoded.Results, nil
}

// warnOnAPIStatus logs application-level errors the API reports with a 2xx.
func (c *Client) warnOnAPIStatus(operation, status string) {
	switch status {
	case "", "OK", "ZERO_RESULTS":
		return
	}
	c.reporter.Logger().WithFields(log.Fields{
		"operation":  operation,
		"api_status": status,
	}).Warn("Places API reported a non-OK status")
}

func (c *Client) endpoint(name string) string {
	return strings.TrimRight(c.params.BaseURL, "/") + "/" + name + "/json"
}
