package limitless

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

// mockHTTPClient is a test double for HTTPClient
type mockHTTPClient struct {
	responses []*http.Response
	errors    []error
	callCount int
	requests  []*http.Request
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	m.requests = append(m.requests, req)
	defer func() { m.callCount++ }()
	if m.callCount < len(m.errors) && m.errors[m.callCount] != nil {
		return nil, m.errors[m.callCount]
	}
	if m.callCount < len(m.responses) {
		return m.responses[m.callCount], nil
	}
	return nil, io.EOF
}

type timeoutError struct{}

func (timeoutError) Error() string { return "i/o timeout" }
func (timeoutError) Timeout() bool { return true }

// recordSleeper records requested delays without blocking
type recordSleeper struct {
	delays []time.Duration
}

func (r *recordSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func noJitter(time.Duration) time.Duration { return 0 }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func pageBody(t *testing.T, start, count int, hasMore bool) string {
	t.Helper()
	items := make([]map[string]any, count)
	for i := range items {
		items[i] = map[string]any{
			"id":        fmt.Sprintf("tr-%d", start+i),
			"timestamp": "2026-03-01T10:00:00Z",
			"content":   "some content",
		}
	}
	body, err := json.Marshal(map[string]any{"transcripts": items, "has_more": hasMore})
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func newTestClient(mock *mockHTTPClient, sleeper *recordSleeper, opts ...ClientOption) *Client {
	base := []ClientOption{
		WithHTTPClient(mock),
		WithSleeper(sleeper.sleep),
		WithJitter(noJitter),
	}
	return NewClient("test-key", append(base, opts...)...)
}

func TestFetchMockFallbackWithoutKey(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	client := NewClient("", WithClock(func() time.Time { return now }))

	items := client.Fetch(context.Background(), FetchOptions{MaxResults: 10})
	if len(items) != 10 {
		t.Fatalf("expected 10 synthetic transcripts, got %d", len(items))
	}
	seen := make(map[string]bool)
	for i, item := range items {
		want := fmt.Sprintf("mock-transcript-%d", i)
		if item.ID != want {
			t.Errorf("expected id %s, got %s", want, item.ID)
		}
		if seen[item.ID] {
			t.Errorf("duplicate id %s", item.ID)
		}
		seen[item.ID] = true
		if len(item.Content) < 50 {
			t.Errorf("expected usable content for %s", item.ID)
		}
		if item.Timestamp.After(now) || now.Sub(item.Timestamp.Time) > 8*24*time.Hour {
			t.Errorf("timestamp %v outside the past week", item.Timestamp)
		}
	}
}

func TestUsesMock(t *testing.T) {
	tests := []struct {
		name string
		key  string
		opts []ClientOption
		want bool
	}{
		{name: "no key", key: "", want: true},
		{name: "live", key: "k", want: false},
		{name: "mock suffix", key: "k", opts: []ClientOption{WithBaseURL("https://api.example.com/v1/mock")}, want: true},
		{name: "localhost", key: "k", opts: []ClientOption{WithBaseURL("http://localhost:8080/v1")}, want: true},
		{name: "loopback", key: "k", opts: []ClientOption{WithBaseURL("http://127.0.0.1:8080")}, want: true},
		{name: "forced", key: "k", opts: []ClientOption{WithForceMock(true)}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewClient(tt.key, tt.opts...).UsesMock(); got != tt.want {
				t.Errorf("UsesMock() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFetchPaginationTermination(t *testing.T) {
	mock := &mockHTTPClient{
		responses: []*http.Response{
			jsonResponse(http.StatusOK, pageBody(t, 0, 25, true)),
			jsonResponse(http.StatusOK, pageBody(t, 25, 25, true)),
			jsonResponse(http.StatusOK, pageBody(t, 50, 0, false)),
		},
	}
	client := newTestClient(mock, &recordSleeper{})

	items := client.Fetch(context.Background(), FetchOptions{MaxResults: 200})
	if len(items) != 50 {
		t.Errorf("expected 50 transcripts, got %d", len(items))
	}
	if mock.callCount != 3 {
		t.Errorf("expected 3 page requests, got %d", mock.callCount)
	}
	if got := mock.requests[1].URL.Query().Get("page"); got != "2" {
		t.Errorf("expected page=2 on second request, got %q", got)
	}
}

func TestFetchStopsAtMaxResults(t *testing.T) {
	mock := &mockHTTPClient{
		responses: []*http.Response{
			jsonResponse(http.StatusOK, pageBody(t, 0, 25, true)),
			jsonResponse(http.StatusOK, pageBody(t, 25, 25, true)),
		},
	}
	client := newTestClient(mock, &recordSleeper{}, WithPageSize(25))

	items := client.Fetch(context.Background(), FetchOptions{MaxResults: 30})
	if len(items) != 30 {
		t.Errorf("expected 30 transcripts, got %d", len(items))
	}
	if mock.callCount != 2 {
		t.Errorf("expected 2 requests, got %d", mock.callCount)
	}
	if got := mock.requests[0].URL.Query().Get("limit"); got != "25" {
		t.Errorf("expected limit capped at page size, got %q", got)
	}
}

func TestFetchLifelogShapeHoistsContent(t *testing.T) {
	body := `{
		"data": {"lifelogs": [
			{"id": "ll-1", "startTime": "2026-03-01T09:00:00Z", "title": "Morning", "contents": [{"type": "heading1", "content": "Plan the sprint review"}]}
		]},
		"meta": {"lifelogs": {"nextCursor": "abc"}}
	}`
	mock := &mockHTTPClient{
		responses: []*http.Response{
			jsonResponse(http.StatusOK, body),
			jsonResponse(http.StatusOK, `{"data": {"lifelogs": []}}`),
		},
	}
	client := newTestClient(mock, &recordSleeper{}, WithBaseURL("https://api.example.com/v1/lifelogs"))

	items := client.Fetch(context.Background(), FetchOptions{MaxResults: 10})
	if len(items) != 1 {
		t.Fatalf("expected 1 transcript, got %d", len(items))
	}
	if items[0].Content != "Plan the sprint review" {
		t.Errorf("expected hoisted content, got %q", items[0].Content)
	}
	if items[0].Timestamp.IsZero() {
		t.Error("expected startTime to populate timestamp")
	}
	if string(items[0].Metadata["title"]) != `"Morning"` {
		t.Errorf("expected title kept in metadata, got %s", items[0].Metadata["title"])
	}
	if mock.callCount != 2 {
		t.Fatalf("expected cursor to trigger a second request, got %d", mock.callCount)
	}
	if got := mock.requests[1].URL.Query().Get("cursor"); got != "abc" {
		t.Errorf("expected cursor=abc, got %q", got)
	}
	if !strings.HasSuffix(mock.requests[0].URL.Path, "/v1/lifelogs") {
		t.Errorf("unexpected endpoint %s", mock.requests[0].URL.Path)
	}
}

func TestFetchRetryPolicy(t *testing.T) {
	ok := pageBody(t, 0, 2, false)

	tests := []struct {
		name       string
		responses  []*http.Response
		errors     []error
		wantDelays []time.Duration
		wantCount  int
		wantMock   bool
	}{
		{
			name:       "timeout uses linear backoff",
			errors:     []error{timeoutError{}},
			responses:  []*http.Response{nil, jsonResponse(http.StatusOK, ok)},
			wantDelays: []time.Duration{10 * time.Second},
			wantCount:  2,
		},
		{
			name:       "connection failure uses exponential backoff",
			errors:     []error{errors.New("connection refused")},
			responses:  []*http.Response{nil, jsonResponse(http.StatusOK, ok)},
			wantDelays: []time.Duration{2 * time.Second},
			wantCount:  2,
		},
		{
			name: "429 honours Retry-After",
			responses: []*http.Response{
				{StatusCode: http.StatusTooManyRequests, Header: http.Header{"Retry-After": []string{"7"}}, Body: io.NopCloser(bytes.NewReader(nil))},
				jsonResponse(http.StatusOK, ok),
			},
			wantDelays: []time.Duration{7 * time.Second},
			wantCount:  2,
		},
		{
			name: "429 defaults to 30s",
			responses: []*http.Response{
				jsonResponse(http.StatusTooManyRequests, ""),
				jsonResponse(http.StatusOK, ok),
			},
			wantDelays: []time.Duration{30 * time.Second},
			wantCount:  2,
		},
		{
			name: "5xx retries with timeout schedule",
			responses: []*http.Response{
				jsonResponse(http.StatusBadGateway, ""),
				jsonResponse(http.StatusOK, ok),
			},
			wantDelays: []time.Duration{10 * time.Second},
			wantCount:  2,
		},
		{
			name:      "401 falls back to synthetic data",
			responses: []*http.Response{jsonResponse(http.StatusUnauthorized, "")},
			wantCount: 10,
			wantMock:  true,
		},
		{
			name:      "404 falls back to synthetic data",
			responses: []*http.Response{jsonResponse(http.StatusNotFound, "")},
			wantCount: 10,
			wantMock:  true,
		},
		{
			name:      "other 4xx returns what was collected",
			responses: []*http.Response{jsonResponse(http.StatusBadRequest, "")},
			wantCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockHTTPClient{responses: tt.responses, errors: tt.errors}
			sleeper := &recordSleeper{}
			client := newTestClient(mock, sleeper)

			items := client.Fetch(context.Background(), FetchOptions{MaxResults: 10})
			if len(items) != tt.wantCount {
				t.Fatalf("expected %d transcripts, got %d", tt.wantCount, len(items))
			}
			if tt.wantMock && !strings.HasPrefix(items[0].ID, "mock-transcript-") {
				t.Errorf("expected synthetic transcripts, got %s", items[0].ID)
			}
			if len(sleeper.delays) != len(tt.wantDelays) {
				t.Fatalf("expected delays %v, got %v", tt.wantDelays, sleeper.delays)
			}
			for i, d := range tt.wantDelays {
				if sleeper.delays[i] != d {
					t.Errorf("delay %d: expected %v, got %v", i, d, sleeper.delays[i])
				}
			}
		})
	}
}

func TestFetchRespectsRateLimitHeaders(t *testing.T) {
	first := jsonResponse(http.StatusOK, pageBody(t, 0, 2, true))
	first.Header.Set("X-RateLimit-Remaining", "1")
	first.Header.Set("X-RateLimit-Reset", "12")
	mock := &mockHTTPClient{
		responses: []*http.Response{first, jsonResponse(http.StatusOK, pageBody(t, 2, 2, false))},
	}
	sleeper := &recordSleeper{}
	client := newTestClient(mock, sleeper)

	items := client.Fetch(context.Background(), FetchOptions{MaxResults: 10})
	if len(items) != 4 {
		t.Errorf("expected 4 transcripts, got %d", len(items))
	}
	if len(sleeper.delays) != 1 || sleeper.delays[0] != 12*time.Second {
		t.Errorf("expected one 12s pause, got %v", sleeper.delays)
	}
}

func TestFetchSendsAuthHeaders(t *testing.T) {
	tests := []struct {
		method     string
		wantBearer bool
		wantAPIKey bool
	}{
		{method: "all", wantBearer: true, wantAPIKey: true},
		{method: "bearer", wantBearer: true},
		{method: "api_key", wantAPIKey: true},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			mock := &mockHTTPClient{responses: []*http.Response{jsonResponse(http.StatusOK, `{"transcripts": []}`)}}
			client := newTestClient(mock, &recordSleeper{}, WithAuthMethod(tt.method))
			since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

			client.Fetch(context.Background(), FetchOptions{Since: &since, MaxResults: 5})

			req := mock.requests[0]
			if got := req.Header.Get("Authorization") == "Bearer test-key"; got != tt.wantBearer {
				t.Errorf("bearer header present = %v, want %v", got, tt.wantBearer)
			}
			if got := req.Header.Get("X-API-Key") == "test-key"; got != tt.wantAPIKey {
				t.Errorf("api key header present = %v, want %v", got, tt.wantAPIKey)
			}
			if got := req.URL.Query().Get("since"); got != "2026-03-01T00:00:00Z" {
				t.Errorf("expected since param, got %q", got)
			}
			if !strings.HasSuffix(req.URL.Path, "/transcripts") {
				t.Errorf("expected transcripts endpoint, got %s", req.URL.Path)
			}
		})
	}
}

func TestGet(t *testing.T) {
	t.Run("nested data shape", func(t *testing.T) {
		mock := &mockHTTPClient{responses: []*http.Response{
			jsonResponse(http.StatusOK, `{"data": {"transcript": {"id": "tr-1", "content": "hello"}}}`),
		}}
		tr := newTestClient(mock, &recordSleeper{}).Get(context.Background(), "tr-1")
		if tr == nil || tr.ID != "tr-1" || tr.Content != "hello" {
			t.Fatalf("unexpected transcript %+v", tr)
		}
	})

	t.Run("not found", func(t *testing.T) {
		mock := &mockHTTPClient{responses: []*http.Response{jsonResponse(http.StatusNotFound, "")}}
		if tr := newTestClient(mock, &recordSleeper{}).Get(context.Background(), "tr-1"); tr != nil {
			t.Errorf("expected nil, got %+v", tr)
		}
	})

	t.Run("bounded retries", func(t *testing.T) {
		mock := &mockHTTPClient{errors: []error{io.EOF, io.EOF, io.EOF, io.EOF}}
		sleeper := &recordSleeper{}
		if tr := newTestClient(mock, sleeper).Get(context.Background(), "tr-1"); tr != nil {
			t.Errorf("expected nil, got %+v", tr)
		}
		if mock.callCount != 3 {
			t.Errorf("expected 3 attempts, got %d", mock.callCount)
		}
		if len(sleeper.delays) != 2 || sleeper.delays[0] != 2*time.Second || sleeper.delays[1] != 4*time.Second {
			t.Errorf("unexpected delays %v", sleeper.delays)
		}
	})

	t.Run("auth failure uses synthetic data", func(t *testing.T) {
		mock := &mockHTTPClient{responses: []*http.Response{jsonResponse(http.StatusForbidden, "")}}
		tr := newTestClient(mock, &recordSleeper{}).Get(context.Background(), "mock-transcript-3")
		if tr == nil || tr.ID != "mock-transcript-3" {
			t.Errorf("expected synthetic transcript, got %+v", tr)
		}
	})
}

func TestFlexibleTimeUnmarshal(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{`"2026-03-01T10:00:00Z"`, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		{`"2026-03-01T10:00:00"`, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		{`"2026-03-01"`, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		{`1772359200`, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		{`1772359200000`, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		var ft FlexibleTime
		if err := json.Unmarshal([]byte(tt.input), &ft); err != nil {
			t.Errorf("%s: unexpected error %v", tt.input, err)
			continue
		}
		if !ft.Equal(tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.input, tt.want, ft.Time)
		}
	}
}

func TestImportanceRaise(t *testing.T) {
	level := ImportanceMedium
	level = level.Raise(ImportanceHigh)
	level = level.Raise(ImportanceMediumHigh)
	level = level.Raise(ImportanceLow)
	if level != ImportanceHigh {
		t.Errorf("expected importance to stay high, got %s", level)
	}
}

func TestTranscriptArchiveDocumentRoundTrip(t *testing.T) {
	doc := `{
		"transcript_id": "tr-7",
		"content": "archived content",
		"transcript_details": {"importance_level": "high", "keywords": ["deploy"]},
		"archived_at": "2026-03-02T00:00:00Z",
		"metadata": {"id": "tr-7", "timestamp": "2026-03-01T08:00:00Z", "device_id": "device-1"}
	}`
	var tr Transcript
	if err := json.Unmarshal([]byte(doc), &tr); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if tr.ID != "tr-7" {
		t.Errorf("expected id from transcript_id, got %q", tr.ID)
	}
	if tr.Details == nil || tr.Details.ImportanceLevel != ImportanceHigh {
		t.Errorf("expected details carried over, got %+v", tr.Details)
	}
	if tr.Timestamp.IsZero() {
		t.Error("expected timestamp from nested metadata")
	}
	if string(tr.Metadata["device_id"]) != `"device-1"` {
		t.Errorf("expected device_id in metadata, got %v", tr.Metadata)
	}
	if _, ok := tr.Metadata["archived_at"]; ok {
		t.Error("archived_at should not leak into metadata")
	}
}
