package limitless

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// FetchOptions contains optional parameters for fetching transcripts
type FetchOptions struct {
	Since      *time.Time
	Date       string // YYYY-MM-DD, sent as the service's date filter
	MaxResults int
}

// DefaultFetchOptions returns default fetch options
func DefaultFetchOptions() FetchOptions {
	return FetchOptions{
		MaxResults: 100,
	}
}

// listResponse covers both the {data:{lifelogs}} and {transcripts} shapes
type listResponse struct {
	Data        json.RawMessage `json:"data"`
	Transcripts []Transcript    `json:"transcripts"`
	HasMore     *bool           `json:"has_more"`
	NextCursor  string          `json:"next_cursor"`
	Meta        struct {
		Lifelogs struct {
			NextCursor string `json:"nextCursor"`
		} `json:"lifelogs"`
	} `json:"meta"`
}

type dataEnvelope struct {
	Lifelogs    []Transcript `json:"lifelogs"`
	Transcripts []Transcript `json:"transcripts"`
	Transcript  *Transcript  `json:"transcript"`
	Lifelog     *Transcript  `json:"lifelog"`
}

// items flattens whichever shape the page used
func (r *listResponse) items() []Transcript {
	if len(r.Data) > 0 && string(r.Data) != "null" {
		var env dataEnvelope
		if err := json.Unmarshal(r.Data, &env); err == nil {
			if len(env.Lifelogs) > 0 {
				return env.Lifelogs
			}
			if len(env.Transcripts) > 0 {
				return env.Transcripts
			}
		}
		var list []Transcript
		if err := json.Unmarshal(r.Data, &list); err == nil && len(list) > 0 {
			return list
		}
	}
	return r.Transcripts
}

func (r *listResponse) cursor() string {
	if r.NextCursor != "" {
		return r.NextCursor
	}
	return r.Meta.Lifelogs.NextCursor
}

// hasMore trusts an explicit has_more flag, then a returned cursor
func (r *listResponse) hasMore() bool {
	if r.HasMore != nil {
		return *r.HasMore
	}
	return r.cursor() != ""
}

// Fetch pages through transcripts until MaxResults is reached or the service
// reports no more pages. It never fails: auth errors and wrong endpoints fall
// back to synthetic data, other hard failures return what was collected.
func (c *Client) Fetch(ctx context.Context, opts FetchOptions) []Transcript {
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultFetchOptions().MaxResults
	}

	if c.UsesMock() {
		slog.Info("using synthetic transcripts", "max_results", opts.MaxResults)
		return MockTranscripts(c.now(), opts.MaxResults)
	}

	limit := opts.MaxResults
	if limit > c.pageSize {
		limit = c.pageSize
	}

	var all []Transcript
	page := 1
	cursor := ""

	for {
		params := url.Values{}
		params.Set("limit", strconv.Itoa(limit))
		params.Set("page", strconv.Itoa(page))
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		if opts.Since != nil {
			params.Set("since", opts.Since.UTC().Format(time.RFC3339))
		}
		if opts.Date != "" {
			params.Set("date", opts.Date)
		}

		req, err := c.newRequest(ctx, fmt.Sprintf("%s?%s", c.endpoint(), params.Encode()))
		if err != nil {
			slog.Error("failed to build transcript request", "error", err)
			return all
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return all
			}
			delay := c.connectBackoff(page)
			kind := "connection error"
			if isTimeout(err) {
				delay = c.timeoutBackoff(page)
				kind = "timeout"
			}
			slog.Warn("transcript fetch failed, retrying", "kind", kind, "page", page, "delay", delay, "error", err)
			if c.sleep(ctx, delay) != nil {
				return all
			}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			drain(resp)
			slog.Error("transcript service rejected credentials, using synthetic data", "status", resp.StatusCode)
			return MockTranscripts(c.now(), opts.MaxResults)

		case resp.StatusCode == http.StatusNotFound:
			drain(resp)
			slog.Error("transcript endpoint not found, using synthetic data", "url", c.endpoint())
			return MockTranscripts(c.now(), opts.MaxResults)

		case resp.StatusCode == http.StatusTooManyRequests:
			delay := retryAfter(resp.Header, defaultRetryAfter)
			drain(resp)
			slog.Warn("rate limited, waiting", "page", page, "delay", delay)
			if c.sleep(ctx, delay) != nil {
				return all
			}
			continue

		case resp.StatusCode >= 500:
			drain(resp)
			delay := c.timeoutBackoff(page)
			slog.Warn("transcript service error, retrying", "status", resp.StatusCode, "page", page, "delay", delay)
			if c.sleep(ctx, delay) != nil {
				return all
			}
			continue

		case resp.StatusCode != http.StatusOK:
			drain(resp)
			slog.Error("unexpected transcript response", "status", resp.StatusCode, "page", page)
			return all
		}

		var result listResponse
		err = decodeJSON(resp.Body, &result)
		header := resp.Header
		drain(resp)
		if err != nil {
			slog.Error("failed to decode transcript page", "page", page, "error", err)
			return all
		}

		items := result.items()
		if len(items) == 0 {
			break
		}
		all = append(all, items...)
		slog.Debug("fetched transcript page", "page", page, "count", len(items), "total", len(all))

		if len(all) >= opts.MaxResults || !result.hasMore() {
			break
		}

		if err := c.respectRateLimit(ctx, header); err != nil {
			return all
		}
		page++
		cursor = result.cursor()
	}

	if len(all) > opts.MaxResults {
		all = all[:opts.MaxResults]
	}
	return all
}

// respectRateLimit waits out the reset window when the remaining quota is nearly spent
func (c *Client) respectRateLimit(ctx context.Context, h http.Header) error {
	remaining := h.Get("X-RateLimit-Remaining")
	if remaining == "" {
		return nil
	}
	n, err := strconv.Atoi(remaining)
	if err != nil || n > 1 {
		return nil
	}
	delay := defaultRateReset
	if reset, err := strconv.Atoi(h.Get("X-RateLimit-Reset")); err == nil && reset > 0 {
		delay = time.Duration(reset) * time.Second
	}
	slog.Info("rate limit nearly exhausted, pausing", "delay", delay)
	return c.sleep(ctx, delay)
}

// retryAfter parses the Retry-After header in seconds
func retryAfter(h http.Header, fallback time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(h.Get("Retry-After")); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}

// Get fetches a single transcript by id. It returns nil when the transcript
// does not exist or every attempt failed.
func (c *Client) Get(ctx context.Context, id string) *Transcript {
	if c.UsesMock() {
		return findMock(c.now(), id)
	}

	for attempt := 0; attempt < singleFetchRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(2*attempt)*time.Second + c.jitter(time.Second)
			if c.sleep(ctx, delay) != nil {
				return nil
			}
		}

		req, err := c.newRequest(ctx, c.endpoint()+"/"+url.PathEscape(id))
		if err != nil {
			slog.Error("failed to build transcript request", "id", id, "error", err)
			return nil
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			slog.Warn("transcript fetch failed", "id", id, "attempt", attempt+1, "error", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			drain(resp)
			return nil
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			drain(resp)
			slog.Error("transcript service rejected credentials, using synthetic data", "status", resp.StatusCode)
			return findMock(c.now(), id)
		case resp.StatusCode == http.StatusTooManyRequests:
			delay := retryAfter(resp.Header, defaultRetryAfter)
			drain(resp)
			if c.sleep(ctx, delay) != nil {
				return nil
			}
			continue
		case resp.StatusCode != http.StatusOK:
			drain(resp)
			slog.Warn("unexpected transcript response", "id", id, "status", resp.StatusCode, "attempt", attempt+1)
			continue
		}

		var body struct {
			Data       *dataEnvelope `json:"data"`
			Transcript *Transcript   `json:"transcript"`
			Lifelog    *Transcript   `json:"lifelog"`
		}
		err = decodeJSON(resp.Body, &body)
		drain(resp)
		if err != nil {
			slog.Warn("failed to decode transcript", "id", id, "error", err)
			continue
		}

		switch {
		case body.Data != nil && body.Data.Transcript != nil:
			return body.Data.Transcript
		case body.Data != nil && body.Data.Lifelog != nil:
			return body.Data.Lifelog
		case body.Transcript != nil:
			return body.Transcript
		case body.Lifelog != nil:
			return body.Lifelog
		}
		return nil
	}

	return nil
}
