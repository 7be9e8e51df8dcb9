package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mcao2/lifelog-sync/internal/limitless"
)

// Extractor runs the model once per transcript and collects typed items
type Extractor struct {
	model  Model
	budget *Budget
	now    func() time.Time
	newID  func() string
}

// ExtractorOption configures an Extractor
type ExtractorOption func(*Extractor)

// WithBudget trims transcript content to a token budget before each call
func WithBudget(b *Budget) ExtractorOption {
	return func(e *Extractor) {
		e.budget = b
	}
}

// WithExtractorClock sets the source of the "today" anchor date
func WithExtractorClock(now func() time.Time) ExtractorOption {
	return func(e *Extractor) {
		e.now = now
	}
}

// WithIDGenerator replaces the uuid item id generator
func WithIDGenerator(gen func() string) ExtractorOption {
	return func(e *Extractor) {
		e.newID = gen
	}
}

// NewExtractor creates an Extractor. A nil model makes Extract a no-op.
func NewExtractor(model Model, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		model: model,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns every item extracted from transcripts, in transcript order.
// A failure for one transcript is logged and that transcript contributes nothing.
func (e *Extractor) Extract(ctx context.Context, transcripts []limitless.Transcript) *Result {
	result := &Result{}
	if e.model == nil {
		slog.Warn("no model configured, skipping extraction")
		return result
	}

	for _, t := range transcripts {
		if ctx.Err() != nil {
			slog.Warn("extraction cancelled", "error", ctx.Err())
			break
		}
		if strings.TrimSpace(t.Content) == "" {
			slog.Info("skipping transcript with empty content", "transcript_id", t.ID)
			continue
		}

		items, err := e.ExtractOne(ctx, t)
		if err != nil {
			slog.Error("extraction failed", "transcript_id", t.ID, "error", err)
			continue
		}
		slog.Info("extracted items", "transcript_id", t.ID, "count", items.Total())
		result.Merge(items)
	}
	return result
}

// ExtractOne calls the model for a single transcript and stamps the items
func (e *Extractor) ExtractOne(ctx context.Context, t limitless.Transcript) (*Result, error) {
	content := t.Content
	if trimmed, cut := e.budget.Trim(content); cut {
		slog.Info("trimmed transcript to token budget", "transcript_id", t.ID, "max_tokens", e.budget.maxTokens)
		content = trimmed
	}

	response, err := e.model.Complete(ctx, SystemPrompt(e.now()), UserPrompt(content))
	if err != nil {
		return nil, fmt.Errorf("model call: %w", err)
	}
	items, err := ParseExtraction(response)
	if err != nil {
		return nil, err
	}
	e.stamp(items, t)
	return items, nil
}

// stamp assigns fresh item ids and copies provenance from the transcript
func (e *Extractor) stamp(r *Result, t limitless.Transcript) {
	for _, it := range r.All() {
		env := it.Base()
		env.ItemID = e.newID()
		env.TranscriptID = t.ID
		if t.Details != nil {
			env.TranscriptDetails = t.Details.Clone()
		}
	}
}

// Stamp applies item ids and provenance to a result parsed outside the
// Extractor, such as a manually pasted model answer.
func (e *Extractor) Stamp(r *Result, t limitless.Transcript) {
	e.stamp(r, t)
}
