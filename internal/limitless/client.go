package limitless

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL     = "https://api.limitless.ai/v1"
	defaultTimeout     = 30 * time.Second
	defaultPageSize    = 50
	userAgent          = "LifelogSync/0.1.0"
	defaultRetryAfter  = 30 * time.Second
	defaultRateReset   = 5 * time.Second
	maxTimeoutBackoff  = 30 * time.Second
	maxConnectBackoff  = 60 * time.Second
	singleFetchRetries = 3
)

// HTTPClient defines the interface for HTTP operations
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Sleeper blocks for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// Client fetches transcripts from the lifelog service. It never returns an
// error to the caller: unrecoverable failures degrade to synthetic data or
// whatever was accumulated so far.
type Client struct {
	apiKey     string
	baseURL    string
	authMethod string
	pageSize   int
	forceMock  bool
	httpClient HTTPClient
	sleep      Sleeper
	jitter     func(max time.Duration) time.Duration
	now        func() time.Time
}

// ClientOption allows configuring the Client
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBaseURL sets a custom base URL
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		if url != "" {
			c.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithAuthMethod selects which auth headers are sent: "all", "bearer" or "api_key"
func WithAuthMethod(method string) ClientOption {
	return func(c *Client) {
		if method != "" {
			c.authMethod = method
		}
	}
}

// WithPageSize caps the number of results requested per page
func WithPageSize(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if hc, ok := c.httpClient.(*http.Client); ok && d > 0 {
			hc.Timeout = d
		}
	}
}

// WithForceMock makes every fetch return synthetic transcripts
func WithForceMock(force bool) ClientOption {
	return func(c *Client) {
		c.forceMock = force
	}
}

// WithSleeper replaces the backoff sleep, mainly for tests
func WithSleeper(s Sleeper) ClientOption {
	return func(c *Client) {
		c.sleep = s
	}
}

// WithJitter replaces the random jitter source
func WithJitter(j func(max time.Duration) time.Duration) ClientOption {
	return func(c *Client) {
		c.jitter = j
	}
}

// WithClock sets the time source used for synthetic data
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new lifelog API client. An empty apiKey is valid and
// puts the client in synthetic-data mode.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	client := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		authMethod: "all",
		pageSize:   defaultPageSize,
		httpClient: &http.Client{Timeout: defaultTimeout},
		sleep:      sleepContext,
		jitter:     randomJitter,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// UsesMock reports whether the client skips the network entirely
func (c *Client) UsesMock() bool {
	if c.forceMock || c.apiKey == "" {
		return true
	}
	base := strings.ToLower(c.baseURL)
	return strings.HasSuffix(base, "/mock") ||
		strings.Contains(base, "localhost") ||
		strings.Contains(base, "127.0.0.1")
}

// endpoint returns the collection URL for the configured base
func (c *Client) endpoint() string {
	if strings.HasSuffix(c.baseURL, "/lifelogs") {
		return c.baseURL
	}
	if strings.Contains(c.baseURL, "lifelogs") {
		return c.baseURL + "/lifelogs"
	}
	return c.baseURL + "/transcripts"
}

func (c *Client) newRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	switch c.authMethod {
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	case "api_key":
		req.Header.Set("X-API-Key", c.apiKey)
	default:
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	return req, nil
}

// timeoutBackoff is the linear schedule used for timeouts and 5xx responses
func (c *Client) timeoutBackoff(page int) time.Duration {
	d := time.Duration(5*(page+1)) * time.Second
	if d > maxTimeoutBackoff {
		d = maxTimeoutBackoff
	}
	return d + c.jitter(2*time.Second)
}

// connectBackoff is the exponential schedule used for connection failures
func (c *Client) connectBackoff(page int) time.Duration {
	d := maxConnectBackoff
	if page < 6 {
		d = time.Duration(1<<page) * time.Second
	}
	if d > maxConnectBackoff {
		d = maxConnectBackoff
	}
	return d + c.jitter(5*time.Second)
}

// isTimeout reports whether err is a request timeout
func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	if errors.As(err, &te) && te.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(max)))
}

// decodeJSON reads and decodes JSON from response body
func decodeJSON(r io.Reader, v interface{}) error {
	return json.NewDecoder(r).Decode(v)
}

// drain discards and closes a response body so the connection can be reused
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
