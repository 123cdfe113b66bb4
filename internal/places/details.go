package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ukydev/urbanlens/internal/metrics"
	"github.com/ukydev/urbanlens/internal/models"
)

// PlaceDetails fetches the full record of a single place. Unlike
// FetchNearbyPlaces it returns errors to the caller.
func (c *Client) PlaceDetails(ctx context.Context, identityToken, placeID string, fields ...string) (_ models.Place, err error) {
	defer c.observe("details", time.Now())(&err)

	if placeID == "" {
		return nil, errors.New("place id is empty")
	}

	q := url.Values{}
	q.Set("place_id", placeID)
	if len(fields) > 0 {
		q.Set("fields", strings.Join(fields, ","))
	}

	req, err := c.newRequest(ctx, c.endpoint("details"), identityToken, q)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("place details %q: %w", placeID, err)
	}
	defer resp.Body.Close()

	var decoded struct {
		Result models.Place `json:"result"`
		Status string       `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode place details response: %w", err)
	}

	c.warnOnAPIStatus("details", decoded.Status)

	if len(decoded.Result) == 0 {
		return nil, fmt.Errorf("no details for place %q", placeID)
	}
	return decoded.Result, nil
}

// Autocomplete returns query predictions for partial input text, biased
// towards the configured search centre.
func (c *Client) Autocomplete(ctx context.Context, identityToken, input string) (_ []models.Place, err error) {
	defer c.observe("autocomplete", time.Now())(&err)

	input = strings.TrimSpace(input)
	if input == "" {
		return nil, errors.New("autocomplete input is empty")
	}

	q := url.Values{}
	q.Set("input", input)
	if c.params.Location != "" {
		q.Set("location", c.params.Location)
		q.Set("radius", fmt.Sprint(c.params.Radius))
	}

	req, err := c.newRequest(ctx, c.endpoint("autocomplete"), identityToken, q)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("autocomplete %q: %w", input, err)
	}
	defer resp.Body.Close()

	var decoded struct {
		Predictions []models.Place `json:"predictions"`
		Status      string         `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode autocomplete response: %w", err)
	}

	c.warnOnAPIStatus("autocomplete", decoded.Status)

	if decoded.Predictions == nil {
		return []models.Place{}, nil
	}
	return decoded.Predictions, nil
}

// observe records latency and outcome for operation once the call returns.
func (c *Client) observe(operation string, start time.Time) func(errp *error) {
	return func(errp *error) {
		metrics.PlacesRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

		outcome := "ok"
		if errp != nil && *errp != nil {
			outcome = "failed"
			c.reporter.Logger().WithError(*errp).WithField("operation", operation).Debug("Places request failed")
		}
		metrics.PlacesRequests.WithLabelValues(operation, outcome).Inc()
	}
}
