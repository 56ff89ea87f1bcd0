package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/crmops/crm-migrator/internal/models"
)

const (
	defaultPageSize = 100
	// maxPages bounds pagination so a miscounting remote cannot spin us forever.
	maxPages    = 500
	maxAttempts = 3
	baseBackoff = 500 * time.Millisecond
)

// Client talks to the CRM platform's REST API. All calls are authenticated
// per account with a bearer API key, carry a fixed API version header, and go
// through a per-account token-bucket limiter shared by every concurrent
// caller targeting that account.
type Client struct {
	baseURL    string
	apiVersion string
	httpClient *http.Client

	rps   rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewClient creates a Client for the given platform base URL.
func NewClient(baseURL, apiVersion string, rps float64, burst int, timeout time.Duration) *Client {
	if burst < 1 {
		burst = 1
	}
	return &Client{
		baseURL:    baseURL,
		apiVersion: apiVersion,
		httpClient: &http.Client{Timeout: timeout},
		rps:        rate.Limit(rps),
		burst:      burst,
		limiters:   make(map[string]*rate.Limiter),
	}
}

// limiterFor returns the token bucket for one account, creating it on first use.
func (c *Client) limiterFor(acct models.AccountCredentials) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[acct.LocationID]
	if !ok {
		l = rate.NewLimiter(c.rps, c.burst)
		c.limiters[acct.LocationID] = l
	}
	return l
}

// HTTPError describes a non-2xx response from the platform.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, truncate(e.Body, 200))
}

// retryable reports whether a response status is worth another attempt.
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// do performs one authenticated call with rate limiting and bounded retry.
func (c *Client) do(ctx context.Context, method string, acct models.AccountCredentials, path string, params url.Values, payload interface{}) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var body []byte
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshaling body: %w", err)
		}
		body = data
	}

	limiter := c.limiterFor(acct)

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := baseBackoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, reader)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+acct.APIKey)
		req.Header.Set("Version", c.apiVersion)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%s %s: %w", method, path, err)
			continue
		}
		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("reading response: %w", err)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return respBody, nil
		}
		lastErr = &HTTPError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(respBody)}
		if !retryable(resp.StatusCode) {
			return respBody, lastErr
		}
	}
	return nil, lastErr
}

// Get performs an authenticated GET and returns the raw response body.
func (c *Client) Get(ctx context.Context, acct models.AccountCredentials, path string, params url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodGet, acct, path, params, nil)
}

// GetJSON performs an authenticated GET and unmarshals the response into dest.
func (c *Client) GetJSON(ctx context.Context, acct models.AccountCredentials, path string, params url.Values, dest interface{}) error {
	body, err := c.Get(ctx, acct, path, params)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, dest)
}

// Post performs an authenticated POST with a JSON body.
func (c *Client) Post(ctx context.Context, acct models.AccountCredentials, path string, payload interface{}) ([]byte, error) {
	return c.do(ctx, http.MethodPost, acct, path, nil, payload)
}

// Put performs an authenticated PUT with a JSON body.
func (c *Client) Put(ctx context.Context, acct models.AccountCredentials, path string, payload interface{}) ([]byte, error) {
	return c.do(ctx, http.MethodPut, acct, path, nil, payload)
}

// page is the platform's paginated list envelope. Records live under a
// per-collection key, so they are decoded separately by the caller.
type page struct {
	Meta struct {
		Total       int    `json:"total"`
		NextPageURL string `json:"nextPageUrl"`
	} `json:"meta"`
}

// decodePage extracts the record array stored under key plus the meta block.
func decodePage(body []byte, key string) ([]Record, page, error) {
	var p page
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, p, fmt.Errorf("parsing response: %w", err)
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, p, fmt.Errorf("parsing response: %w", err)
	}
	raw, ok := envelope[key]
	if !ok {
		return nil, p, nil
	}
	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, p, fmt.Errorf("parsing %s: %w", key, err)
	}
	return records, p, nil
}

// listParams requests creation-time ascending order so reruns of a cancelled
// job reproduce a consistent prefix.
func listParams(acct models.AccountCredentials) url.Values {
	return url.Values{
		"locationId": {acct.LocationID},
		"limit":      {fmt.Sprintf("%d", defaultPageSize)},
		"sortBy":     {"date_added"},
		"order":      {"asc"},
	}
}

// ListAll fetches every page of a collection, following nextPageUrl up to
// maxPages, returning records in the platform's reported order.
func (c *Client) ListAll(ctx context.Context, acct models.AccountCredentials, path, key string) ([]Record, error) {
	var all []Record
	params := listParams(acct)
	for pageNum := 1; pageNum <= maxPages; pageNum++ {
		params.Set("page", fmt.Sprintf("%d", pageNum))
		body, err := c.Get(ctx, acct, path, params)
		if err != nil {
			return nil, err
		}
		records, p, err := decodePage(body, key)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
		if p.Meta.NextPageURL == "" || len(records) == 0 {
			break
		}
	}
	return all, nil
}

// Count returns the collection size, trusting the platform's reported total
// when present and paging until exhaustion otherwise.
func (c *Client) Count(ctx context.Context, acct models.AccountCredentials, path, key string) (int, error) {
	params := listParams(acct)
	params.Set("page", "1")
	body, err := c.Get(ctx, acct, path, params)
	if err != nil {
		return 0, err
	}
	records, p, err := decodePage(body, key)
	if err != nil {
		return 0, err
	}
	if p.Meta.Total > 0 {
		return p.Meta.Total, nil
	}
	total := len(records)
	for pageNum := 2; pageNum <= maxPages && p.Meta.NextPageURL != "" && len(records) > 0; pageNum++ {
		params.Set("page", fmt.Sprintf("%d", pageNum))
		body, err = c.Get(ctx, acct, path, params)
		if err != nil {
			return total, err
		}
		records, p, err = decodePage(body, key)
		if err != nil {
			return total, err
		}
		total += len(records)
	}
	return total, nil
}

// FindBy searches a collection by one query parameter and returns the first
// match, or nil if the key is absent at that account.
func (c *Client) FindBy(ctx context.Context, acct models.AccountCredentials, path, key, param, value string) (Record, error) {
	params := url.Values{
		"locationId": {acct.LocationID},
		param:        {value},
	}
	body, err := c.Get(ctx, acct, path, params)
	if err != nil {
		return nil, err
	}
	records, _, err := decodePage(body, key)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
