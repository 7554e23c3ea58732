package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// FetchError is a network-level fetch failure: timeout, connection refused or
// a non-2xx response. The cycle that hit it is aborted; the next scheduled
// tick is the retry mechanism.
type FetchError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider fetch %s: unexpected status %d", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("provider fetch %s: %v", e.Endpoint, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Client fetches raw telemetry snapshots from one external GPS provider.
type Client struct {
	http *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{http: &http.Client{Timeout: timeout}}
}

// Fetch performs GET <endpoint>?user_api_hash=<apiKey> and decodes the group
// snapshot. An empty body, an empty array or a payload that decodes to zero
// groups yields an empty slice and no error: upstream hiccups that produce no
// usable records are not failures.
func (c *Client) Fetch(ctx context.Context, endpoint, apiKey string) ([]RawGroup, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, &FetchError{Endpoint: endpoint, Err: err}
	}
	q := u.Query()
	q.Set("user_api_hash", apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &FetchError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{Endpoint: endpoint, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Endpoint: endpoint, Err: err}
	}
	if len(body) == 0 {
		return nil, nil
	}

	var groups []RawGroup
	if err := json.Unmarshal(body, &groups); err != nil {
		// Malformed in a way that yields zero usable records. Tolerate it.
		return nil, nil
	}
	return groups, nil
}
