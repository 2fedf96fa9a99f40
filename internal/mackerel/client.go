// Package mackerel is a minimal read-only client for the Mackerel API.
//
// Only the two endpoints the report needs are implemented: the monitor
// listing and the cursor-paginated alert listing. Authentication is a
// static X-Api-Key header on every request.
package mackerel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/mackerelops/alert-report/internal/logging"
)

const (
	// DefaultBaseURL is the public Mackerel API origin.
	DefaultBaseURL = "https://api.mackerelio.com"

	// DefaultTimeout bounds each individual API request.
	DefaultTimeout = 30 * time.Second

	// maxResponseSize prevents OOM on unexpectedly large API responses (10MB).
	maxResponseSize = 10 * 1024 * 1024

	// maxErrorBodyLen limits error body in error messages to avoid log bloat.
	maxErrorBodyLen = 500
)

// Client calls the Mackerel API. Construct with New; the zero value is
// not usable.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *logging.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client (useful for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// New creates a Client for the given API origin and key.
func New(baseURL, apiKey string, logger *logging.Logger, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AlertsParams are the query parameters for one page of the alert listing.
type AlertsParams struct {
	From   int64  // window lower bound, unix seconds
	To     int64  // window upper bound, unix seconds
	Limit  int    // page size
	NextID string // continuation cursor; empty on the first page
}

// AlertsPage is one page of the alert listing. NextID is empty when the
// API signalled no further pages.
type AlertsPage struct {
	Alerts []Alert
	NextID string
}

// FindMonitors fetches the full monitor directory in a single request.
func (c *Client) FindMonitors(ctx context.Context) ([]Monitor, error) {
	body, err := c.get(ctx, "/api/v0/monitors", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Monitors []Monitor `json:"monitors"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse monitors response: %w", err)
	}
	return resp.Monitors, nil
}

// FindAlerts fetches one page of alerts that were open within [From, To].
// Closed alerts are always included (withClosed=true); the API returns
// pages in descending openedAt order.
func (c *Client) FindAlerts(ctx context.Context, p AlertsParams) (*AlertsPage, error) {
	q := url.Values{}
	q.Set("withClosed", "true")
	q.Set("from", strconv.FormatInt(p.From, 10))
	q.Set("to", strconv.FormatInt(p.To, 10))
	q.Set("limit", strconv.Itoa(p.Limit))
	if p.NextID != "" {
		q.Set("nextId", p.NextID)
	}

	body, err := c.get(ctx, "/api/v0/alerts", q)
	if err != nil {
		return nil, err
	}

	parsed := gjson.ParseBytes(body)
	page := &AlertsPage{NextID: parsed.Get("nextId").String()}
	if raw := parsed.Get("alerts"); raw.Exists() {
		if err := json.Unmarshal([]byte(raw.Raw), &page.Alerts); err != nil {
			return nil, fmt.Errorf("failed to parse alerts response: %w", err)
		}
	}
	return page, nil
}

// get performs one authenticated GET and returns the response body.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", path, err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("path", path).Msg("api_request")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", path, err)
	}

	if resp.StatusCode != http.StatusOK {
		errBody := string(body)
		if len(errBody) > maxErrorBodyLen {
			errBody = errBody[:maxErrorBodyLen] + "... (truncated)"
		}
		return nil, fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, errBody)
	}
	return body, nil
}
