package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	DefaultBaseURL    = "https://api.notion.com/v1"
	notionVersion     = "2022-06-28"
	defaultMinGap     = 350 * time.Millisecond
	defaultTimeout    = 30 * time.Second
	maxCommentLength  = 2000
	rateLimitedStatus = http.StatusTooManyRequests
	rateLimitRetry    = 2 * time.Second
)

// HTTPClient is the subset of *http.Client used by Client
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// Client is a minimal Notion REST client
type Client struct {
	token      string
	baseURL    string
	httpClient HTTPClient
	minGap     time.Duration
	sleep      Sleeper

	mu      sync.Mutex
	lastReq time.Time
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c HTTPClient) ClientOption {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithBaseURL overrides the API base URL
func WithBaseURL(u string) ClientOption {
	return func(cl *Client) {
		if u != "" {
			cl.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithMinRequestGap sets the minimum spacing between requests; zero disables throttling
func WithMinRequestGap(d time.Duration) ClientOption {
	return func(cl *Client) {
		cl.minGap = d
	}
}

// WithSleeper replaces the context-aware sleep used by throttling and retries
func WithSleeper(s Sleeper) ClientOption {
	return func(cl *Client) {
		cl.sleep = s
	}
}

func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		token:      token,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		minGap:     defaultMinGap,
		sleep:      SleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SleepContext sleeps for d unless ctx ends first
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// APIError is a non-2xx Notion response
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("notion API %s %s returned %d: %s", e.Method, e.Path, e.Status, e.Body)
}

func (c *Client) throttle(ctx context.Context) error {
	if c.minGap <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lastReq.IsZero() {
		if delta := time.Since(c.lastReq); delta < c.minGap {
			if err := c.sleep(ctx, c.minGap-delta); err != nil {
				return err
			}
		}
	}
	c.lastReq = time.Now()
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, payload any, out any) error {
	if err := c.throttle(ctx); err != nil {
		return err
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", notionVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// RetrieveSchema fetches a database and returns its property schema
func (c *Client) RetrieveSchema(ctx context.Context, databaseID string) (Schema, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/databases/"+url.PathEscape(databaseID), nil, nil, &raw); err != nil {
		return nil, err
	}
	schema, err := ParseSchema(raw)
	if err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	return schema, nil
}

type createPageRequest struct {
	Parent     map[string]string `json:"parent"`
	Properties Properties        `json:"properties"`
}

// CreatePage creates a page in a database and returns its id
func (c *Client) CreatePage(ctx context.Context, databaseID string, props Properties) (string, error) {
	payload := createPageRequest{
		Parent:     map[string]string{"database_id": databaseID},
		Properties: props,
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/pages", nil, payload, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("notion API returned no page id")
	}
	return resp.ID, nil
}

// CreateComment attaches a comment to a page, truncated to the API limit.
// A rate-limited request is retried once.
func (c *Client) CreateComment(ctx context.Context, pageID, text string) error {
	payload := map[string]any{
		"parent":    map[string]string{"page_id": pageID},
		"rich_text": richTextArray(TruncateComment(text)),
	}
	err := c.doJSON(ctx, http.MethodPost, "/comments", nil, payload, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == rateLimitedStatus {
		if serr := c.sleep(ctx, rateLimitRetry); serr != nil {
			return serr
		}
		err = c.doJSON(ctx, http.MethodPost, "/comments", nil, payload, nil)
	}
	return err
}

// TruncateComment cuts text to the comment length limit, ending in "..."
func TruncateComment(text string) string {
	r := []rune(text)
	if len(r) <= maxCommentLength {
		return text
	}
	return string(r[:maxCommentLength-3]) + "..."
}
