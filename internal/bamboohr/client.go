package bamboohr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the BambooHR API gateway. The company domain is appended
// to it for every request.
const DefaultBaseURL = "https://api.bamboohr.com/api/gateway.php"

// DefaultLookaheadDays is how far ahead of today who's out is queried.
const DefaultLookaheadDays = 30

// BambooHR ignores the password when authenticating with an API key.
const apiKeyPassword = "x"

// Client is a minimal BambooHR REST API client.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	companyDomain string
	apiKey        string
	lookaheadDays int
	limiter       *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBaseURL points the client at a different API gateway.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// WithLookaheadDays sets the who's out window used by GetTimeOff.
func WithLookaheadDays(days int) Option {
	return func(c *Client) {
		c.lookaheadDays = days
	}
}

// WithRateLimit limits the client to rps requests per second. A value of
// zero or less disables pacing.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// NewClient creates a BambooHR client authenticating with apiKey against
// the given company domain.
func NewClient(apiKey, companyDomain string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("BambooHR API key must not be empty")
	}
	if companyDomain == "" {
		return nil, fmt.Errorf("BambooHR company domain must not be empty")
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:       DefaultBaseURL,
		companyDomain: companyDomain,
		apiKey:        apiKey,
		lookaheadDays: DefaultLookaheadDays,
		limiter:       rate.NewLimiter(rate.Inf, 1),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// get issues an authenticated GET for path and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("BambooHR: rate limiter: %w", err)
	}

	endpoint := c.baseURL + "/" + url.PathEscape(c.companyDomain) + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("BambooHR: failed to build request for %s: %w", path, err)
	}
	req.SetBasicAuth(c.apiKey, apiKeyPassword)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("BambooHR: GET %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("BambooHR: GET %s returned HTTP %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("BambooHR: failed to decode response for %s: %w", path, err)
	}

	return nil
}

// GetDirectory returns the full employee directory.
func (c *Client) GetDirectory(ctx context.Context) ([]Employee, error) {
	var directory Directory
	if err := c.get(ctx, "/v1/employees/directory", nil, &directory); err != nil {
		return nil, err
	}
	return directory.Employees, nil
}

// GetWhosOut returns every who's out entry between start and end. How the
// boundaries are applied is up to BambooHR.
func (c *Client) GetWhosOut(ctx context.Context, start, end Date) ([]TimeOffRecord, error) {
	query := url.Values{}
	query.Set("start", start.String())
	query.Set("end", end.String())

	var records []TimeOffRecord
	if err := c.get(ctx, "/v1/time_off/whos_out", query, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// GetTimeOffRequests returns the time off requests of a single employee
// between start and end.
func (c *Client) GetTimeOffRequests(ctx context.Context, employeeID ID, start, end Date) ([]TimeOffRequest, error) {
	query := url.Values{}
	query.Set("employeeId", string(employeeID))
	query.Set("start", start.String())
	query.Set("end", end.String())

	var requests []TimeOffRequest
	if err := c.get(ctx, "/v1/time_off/requests", query, &requests); err != nil {
		return nil, err
	}
	return requests, nil
}

// LookaheadWindow returns the inclusive who's out window starting at today.
func (c *Client) LookaheadWindow(today Date) (Date, Date) {
	return today, today.AddDays(c.lookaheadDays)
}
