package notion

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/mcao2/lifelog-sync/internal/limitless"
)

const (
	DefaultWriteDelay  = 300 * time.Millisecond
	shortTextThreshold = 100
	transcriptExcerpt  = 1000
)

// Destination is the part of the Notion API the writer depends on
type Destination interface {
	RetrieveSchema(ctx context.Context, databaseID string) (Schema, error)
	CreatePage(ctx context.Context, databaseID string, props Properties) (string, error)
	CreateComment(ctx context.Context, pageID, text string) error
}

// Created identifies one page written by the writer
type Created struct {
	Collection   Collection
	ItemID       string
	TranscriptID string
	PageID       string
}

// WriteResult summarizes a Write call
type WriteResult struct {
	Created    []Created
	Failed     int
	Skipped    int
	FirstError error
}

// Count returns the number of pages created in c
func (r *WriteResult) Count(c Collection) int {
	n := 0
	for _, cr := range r.Created {
		if cr.Collection == c {
			n++
		}
	}
	return n
}

func (r *WriteResult) fail(err error) {
	r.Failed++
	if r.FirstError == nil {
		r.FirstError = err
	}
}

// Writer creates records in their destination databases
type Writer struct {
	dest      Destination
	databases map[Collection]string
	delay     time.Duration
	sleep     Sleeper
	now       func() time.Time
	schemas   map[Collection]Schema
}

// WriterOption configures a Writer
type WriterOption func(*Writer)

// WithWriteDelay sets the pause after each page write
func WithWriteDelay(d time.Duration) WriterOption {
	return func(w *Writer) {
		w.delay = d
	}
}

// WithWriterSleeper replaces the sleep used between writes
func WithWriterSleeper(s Sleeper) WriterOption {
	return func(w *Writer) {
		w.sleep = s
	}
}

// WithWriterClock sets the clock used for date sanitation
func WithWriterClock(now func() time.Time) WriterOption {
	return func(w *Writer) {
		w.now = now
	}
}

// NewWriter returns a writer for the given database ids. Collections with an
// empty id are skipped.
func NewWriter(dest Destination, databases map[Collection]string, opts ...WriterOption) *Writer {
	w := &Writer{
		dest:      dest,
		databases: databases,
		delay:     DefaultWriteDelay,
		sleep:     SleepContext,
		now:       time.Now,
		schemas:   make(map[Collection]Schema),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Schema returns the live schema for c, fetching it once per writer
func (w *Writer) Schema(ctx context.Context, c Collection) (Schema, error) {
	if s, ok := w.schemas[c]; ok {
		return s, nil
	}
	dbID := w.databases[c]
	if dbID == "" {
		return nil, fmt.Errorf("no database configured for %s", c)
	}
	s, err := w.dest.RetrieveSchema(ctx, dbID)
	if err != nil {
		return nil, fmt.Errorf("retrieve %s schema: %w", c, err)
	}
	w.schemas[c] = s
	return s, nil
}

// LearnTags collects the tag vocabulary from every configured database,
// sorted and deduplicated case-insensitively. Generated "Priority: X" options
// and unreadable schemas are skipped.
func (w *Writer) LearnTags(ctx context.Context) []string {
	seen := make(map[string]bool)
	var tags []string
	for _, c := range Collections {
		if w.databases[c] == "" {
			continue
		}
		s, err := w.Schema(ctx, c)
		if err != nil {
			slog.Warn("could not read tags", "collection", c, "error", err)
			continue
		}
		for _, t := range s.ExistingTags() {
			key := strings.ToLower(strings.TrimSpace(t))
			if key == "" || seen[key] || strings.HasPrefix(key, "priority:") {
				continue
			}
			seen[key] = true
			tags = append(tags, t)
		}
	}
	sort.Strings(tags)
	return tags
}

// Write creates every record in collection order. A Todo carrying a parent
// item id is linked to the Task page created for that item. Per-record
// failures are counted and do not stop the run; only context cancellation
// returns an error.
func (w *Writer) Write(ctx context.Context, set RecordSet) (*WriteResult, error) {
	res := &WriteResult{}
	pages := make(map[string]string)

	for _, c := range Collections {
		records := set[c]
		if len(records) == 0 {
			continue
		}
		if w.databases[c] == "" {
			slog.Warn("no database configured, skipping records", "collection", c, "count", len(records))
			res.Skipped += len(records)
			continue
		}
		schema, err := w.Schema(ctx, c)
		if err != nil {
			slog.Error("skipping collection", "collection", c, "error", err)
			res.Skipped += len(records)
			if res.FirstError == nil {
				res.FirstError = err
			}
			continue
		}

		slog.Info("writing records", "collection", c, "count", len(records))
		for _, rec := range records {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			pageID, err := w.writeOne(ctx, c, schema, rec, pages)
			if err != nil {
				slog.Error("failed to create page", "collection", c, "transcript_id", rec.TranscriptID, "error", err)
				res.fail(fmt.Errorf("%s record for %s: %w", c.Singular(), rec.TranscriptID, err))
			} else {
				if rec.ItemID != "" {
					pages[rec.ItemID] = pageID
				}
				res.Created = append(res.Created, Created{
					Collection:   c,
					ItemID:       rec.ItemID,
					TranscriptID: rec.TranscriptID,
					PageID:       pageID,
				})
			}
			if err := w.sleep(ctx, w.delay); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

func (w *Writer) writeOne(ctx context.Context, c Collection, schema Schema, rec Record, pages map[string]string) (string, error) {
	props := EnrichDescription(c, rec.Properties, rec.TranscriptID, rec.Details)
	props = props.SanitizeDates(w.now())
	if rec.ParentItemID != "" {
		if id, ok := pages[rec.ParentItemID]; ok {
			props[ParentTaskProperty] = Relation(id)
		} else {
			props[ParentTaskProperty] = Relation()
		}
	}

	pageID, err := w.dest.CreatePage(ctx, w.databases[c], Reconcile(c, props, schema))
	if err != nil {
		return "", err
	}

	if rec.TranscriptID != "" {
		if err := w.dest.CreateComment(ctx, pageID, CommentText(rec.TranscriptID, rec.Details)); err != nil {
			slog.Warn("failed to add comment", "page_id", pageID, "error", err)
		}
	}
	return pageID, nil
}

// DescriptionField is the long-text property for a collection
func DescriptionField(c Collection) string {
	if c == CollectionTodo || c == CollectionLifelog {
		return "Notes"
	}
	return "Description"
}

// EnrichDescription returns a copy of props with a transcript section added
// to the collection's description field. Text shorter than 100 characters
// gets the section in front; longer text gets it appended. Nothing changes
// when the field is absent or there are no details.
func EnrichDescription(c Collection, props Properties, transcriptID string, d *limitless.Details) Properties {
	out := props.Clone()
	field := DescriptionField(c)
	existing, ok := out[field]
	if !ok || d == nil {
		return out
	}

	text := existing.PlainText()
	section := transcriptSection(transcriptID, d)
	if len([]rune(text)) < shortTextThreshold {
		text = section + "\n\n" + text
	} else {
		text += section
	}
	out[field] = RichText(text)
	return out
}

func transcriptSection(transcriptID string, d *limitless.Details) string {
	var b strings.Builder
	b.WriteString("\n\n# Transcript Details")
	if transcriptID != "" {
		fmt.Fprintf(&b, "\n\n## Source\nTranscript ID: %s", transcriptID)
	}
	if d.CreatedAt != "" {
		fmt.Fprintf(&b, "\n\n**Recording Date**: %s", d.CreatedAt)
	}
	if d.Content != "" {
		fmt.Fprintf(&b, "\n\n## Full Transcript\n%s", excerpt(d.Content, transcriptExcerpt))
	}
	if d.Context != "" {
		fmt.Fprintf(&b, "\n\n## Context\n%s", d.Context)
	}

	var info []string
	if len(d.Keywords) > 0 {
		info = append(info, "**Keywords**: "+boldList(limit(d.Keywords, 15)))
	}
	if d.ImportanceLevel != "" {
		info = append(info, "**Importance**: "+strings.ToUpper(string(d.ImportanceLevel)))
	}
	if len(d.ActionKeywords) > 0 {
		info = append(info, "**Action Keywords**: "+boldList(limit(d.ActionKeywords, 10)))
	}
	if len(d.PriorityIndicators) > 0 {
		parts := make([]string, 0, len(d.PriorityIndicators))
		for _, p := range d.PriorityIndicators {
			parts = append(parts, fmt.Sprintf("**%s** (%s)", p.Keyword, p.Priority))
		}
		info = append(info, "**Priority Indicators**: "+strings.Join(parts, ", "))
	}
	if len(d.StatusIndicators) > 0 {
		parts := make([]string, 0, len(d.StatusIndicators))
		for _, s := range d.StatusIndicators {
			parts = append(parts, fmt.Sprintf("**%s** (%s)", s.Keyword, s.Status))
		}
		info = append(info, "**Status Indicators**: "+strings.Join(parts, ", "))
	}
	if len(d.DateIndicators) > 0 {
		parts := make([]string, 0, len(d.DateIndicators))
		for _, di := range d.DateIndicators {
			parts = append(parts, fmt.Sprintf("**%s**: %s", di.Date, di.Text))
		}
		info = append(info, "**Date References**:\n- "+strings.Join(parts, "\n- "))
	}
	if len(info) > 0 {
		b.WriteString("\n\n## Extracted Information\n")
		b.WriteString(strings.Join(info, "\n"))
	}
	return b.String()
}

// CommentText builds the annotation attached to a created page
func CommentText(transcriptID string, d *limitless.Details) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Transcript Information\n\n**ID**: %s", transcriptID)
	if d != nil {
		if d.CreatedAt != "" {
			fmt.Fprintf(&b, "\n**Recorded**: %s", d.CreatedAt)
		}
		if d.ImportanceLevel != "" {
			fmt.Fprintf(&b, "\n**Importance**: %s", strings.ToUpper(string(d.ImportanceLevel)))
		}
		if len(d.Keywords) > 0 {
			fmt.Fprintf(&b, "\n\n## Keywords\n%s", boldList(limit(d.Keywords, 10)))
		}
		if d.Content != "" {
			fmt.Fprintf(&b, "\n\n## Transcript Content\n%s", excerpt(d.Content, transcriptExcerpt))
		}
		if d.Context != "" {
			fmt.Fprintf(&b, "\n\n## Context\n%s", d.Context)
		}
		if len(d.ActionKeywords) > 0 {
			fmt.Fprintf(&b, "\n\n**Action Keywords**: %s", strings.Join(d.ActionKeywords, ", "))
		}
	}
	return TruncateComment(b.String())
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func limit(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func boldList(items []string) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = "**" + it + "**"
	}
	return strings.Join(parts, ", ")
}
