package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mcao2/lifelog-sync/internal/extract"
	"github.com/mcao2/lifelog-sync/internal/notion"
)

// Notifier delivers human-readable status lines. Failures are reported to
// the caller, which only logs them.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// LogNotifier writes notifications to the default logger
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, text string) error {
	slog.Info(text)
	return nil
}

// FileNotifier appends timestamped lines to a file
type FileNotifier struct {
	Path string
	now  func() time.Time
	mu   sync.Mutex
}

// NewFileNotifier creates a notifier appending to path
func NewFileNotifier(path string) *FileNotifier {
	return &FileNotifier{Path: path, now: time.Now}
}

func (n *FileNotifier) Notify(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(n.Path), 0755); err != nil {
		return fmt.Errorf("failed to create notification dir: %w", err)
	}
	f, err := os.OpenFile(n.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open notification log: %w", err)
	}
	defer f.Close()

	now := time.Now
	if n.now != nil {
		now = n.now
	}
	line := fmt.Sprintf("[%s] %s\n", now().Format(time.RFC3339), strings.ReplaceAll(text, "\n", " | "))
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("failed to write notification: %w", err)
	}
	return nil
}

// HTTPClient is the subset of *http.Client used by WebhookNotifier
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookNotifier posts {"text": ...} to a URL
type WebhookNotifier struct {
	URL        string
	httpClient HTTPClient
}

// NewWebhookNotifier creates a webhook notifier. A nil client uses a
// client with a short timeout.
func NewWebhookNotifier(url string, httpClient HTTPClient) *WebhookNotifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookNotifier{URL: url, httpClient: httpClient}
}

func (n *WebhookNotifier) Notify(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// MultiNotifier fans a notification out to every notifier and joins their
// errors.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, text string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CompletionMessage describes a finished run
func CompletionMessage(s *Summary) string {
	if s.Relevant == 0 {
		return fmt.Sprintf("Lifelog sync finished: no relevant transcripts in %d fetched", s.Fetched)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Lifelog sync finished: %d transcripts, %d items", s.Relevant, s.TotalItems())
	if s.DryRun {
		fmt.Fprintf(&b, ", %d records (dry run)", s.Records.Total())
		return b.String()
	}
	fmt.Fprintf(&b, ", %d pages created", s.TotalCreated())
	var parts []string
	for _, c := range notion.Collections {
		if n := s.Created[c]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", c, n))
		}
	}
	if len(parts) > 0 {
		b.WriteString(" (" + strings.Join(parts, ", ") + ")")
	}
	if s.Failed > 0 {
		fmt.Fprintf(&b, ", %d failed", s.Failed)
	}
	return b.String()
}

// FailureMessage gives a concise failure summary: counts so far and the
// first error.
func FailureMessage(s *Summary) string {
	var items []string
	for _, c := range extract.AllCategories {
		if n := s.Items[c]; n > 0 {
			items = append(items, fmt.Sprintf("%s %d", c, n))
		}
	}
	msg := fmt.Sprintf("Lifelog sync failed after %d fetched, %d relevant, %d pages created",
		s.Fetched, s.Relevant, s.TotalCreated())
	if len(items) > 0 {
		msg += " (items: " + strings.Join(items, ", ") + ")"
	}
	if s.FirstError != nil {
		msg += ": " + s.FirstError.Error()
	}
	return msg
}
