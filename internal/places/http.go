package places

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const maxErrorBody = 512

// StatusError is returned when the places API answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("places api status %d: %s", e.Code, e.Body)
}

// BearerHeader formats an identity token as an Authorization header value.
func BearerHeader(token string) string {
	return "Bearer " + token
}

func (c *Client) newRequest(
	ctx context.Context,
	endpoint string,
	token string,
	query url.Values,
) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	query.Set("key", c.params.APIKey)
	req.URL.RawQuery = query.Encode()

	req.Header.Set("Authorization", BearerHeader(token))
	req.Header.Set("Accept", "application/json")

	return req, nil
}

// do sends req and turns non-2xx responses into a *StatusError.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.session.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return nil, &StatusError{
			Code: resp.StatusCode,
			Body: strings.TrimSpace(string(b)),
		}
	}
	return resp, nil
}
