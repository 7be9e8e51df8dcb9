package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mcao2/lifelog-sync/internal/config"
	"github.com/mcao2/lifelog-sync/internal/extract"
	"github.com/mcao2/lifelog-sync/internal/limitless"
	"github.com/mcao2/lifelog-sync/internal/notion"
	"github.com/mcao2/lifelog-sync/internal/transcript"
	"github.com/mcao2/lifelog-sync/internal/transform"
)

// Fetcher returns transcripts from the remote service. Implementations
// degrade to synthetic data instead of failing.
type Fetcher interface {
	Fetch(ctx context.Context, opts limitless.FetchOptions) []limitless.Transcript
}

// ItemExtractor turns transcripts into typed items
type ItemExtractor interface {
	Extract(ctx context.Context, transcripts []limitless.Transcript) *extract.Result
}

// RecordWriter submits target records to the destination
type RecordWriter interface {
	LearnTags(ctx context.Context) []string
	Write(ctx context.Context, set notion.RecordSet) (*notion.WriteResult, error)
}

// Deps holds the stages a Pipeline drives. Writer may be nil, in which case
// every run behaves as a dry run.
type Deps struct {
	Fetcher     Fetcher
	Filter      *transcript.Filter
	Archiver    *transcript.Archiver
	ArchiveDir  string
	Extractor   ItemExtractor
	Transformer *transform.Transformer
	Writer      RecordWriter
	Keywords    *config.Keywords
	State       *config.RunState
	Notifier    Notifier
}

// RunOptions controls a single run
type RunOptions struct {
	Days            int
	Date            string
	MaxResults      int
	TranscriptsPath string
	SkipProcessed   bool
	DryRun          bool
}

// Summary reports what a run did, including partial progress when the run
// stopped early.
type Summary struct {
	StartedAt  time.Time
	Duration   time.Duration
	Fetched    int
	Relevant   int
	Archived   int
	Marked     int
	Items      map[extract.Category]int
	Records    notion.RecordSet
	Created    map[notion.Collection]int
	Failed     int
	Skipped    int
	DryRun     bool
	FirstError error
}

// TotalItems returns the number of extracted items across categories
func (s *Summary) TotalItems() int {
	n := 0
	for _, v := range s.Items {
		n += v
	}
	return n
}

// TotalCreated returns the number of pages written
func (s *Summary) TotalCreated() int {
	n := 0
	for _, v := range s.Created {
		n += v
	}
	return n
}

// Pipeline wires the fetch, filter, archive, extract, transform and write
// stages into one sequential run.
type Pipeline struct {
	deps Deps
	now  func() time.Time
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// New creates a pipeline from its stages
func New(deps Deps, opts ...Option) *Pipeline {
	if deps.Notifier == nil {
		deps.Notifier = LogNotifier{}
	}
	if deps.Keywords == nil {
		deps.Keywords = config.DefaultKeywords()
	}
	if deps.Filter == nil {
		deps.Filter = transcript.NewFilter(deps.Keywords)
	}
	if deps.Transformer == nil {
		deps.Transformer = transform.New(deps.Keywords)
	}
	p := &Pipeline{
		deps: deps,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one pass of the pipeline. A run with no relevant transcripts
// is not an error. On a fatal error the returned summary holds the progress
// made so far.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*Summary, error) {
	start := p.now()
	sum := &Summary{
		StartedAt: start,
		Items:     make(map[extract.Category]int),
		Created:   make(map[notion.Collection]int),
		DryRun:    opts.DryRun || p.deps.Writer == nil,
	}
	p.notify(ctx, "Lifelog sync started")

	err := p.run(ctx, opts, sum)
	sum.Duration = p.now().Sub(start)
	if err != nil {
		sum.FirstError = err
		p.notify(ctx, FailureMessage(sum))
		return sum, err
	}
	p.notify(ctx, CompletionMessage(sum))
	return sum, nil
}

func (p *Pipeline) run(ctx context.Context, opts RunOptions, sum *Summary) error {
	transcripts, err := p.load(ctx, opts)
	if err != nil {
		return err
	}
	sum.Fetched = len(transcripts)

	if opts.SkipProcessed && p.deps.State != nil {
		transcripts = p.dropProcessed(transcripts)
	}

	relevant := p.deps.Filter.Filter(transcripts)
	sum.Relevant = len(relevant)
	if len(relevant) == 0 {
		slog.Warn("No relevant transcripts found", "fetched", sum.Fetched)
		return p.finish(sum, nil)
	}

	if p.deps.Archiver != nil {
		archived := p.deps.Archiver.ArchiveAll(relevant)
		sum.Archived = len(archived)
	}
	if p.deps.ArchiveDir != "" {
		sum.Marked = len(transcript.ArchiveMarked(p.deps.ArchiveDir, relevant, p.now()))
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if p.deps.Extractor == nil {
		return fmt.Errorf("no item extractor configured")
	}
	result := p.deps.Extractor.Extract(ctx, relevant)
	for _, c := range extract.AllCategories {
		sum.Items[c] = result.Count(c)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if !sum.DryRun {
		if tags := p.deps.Writer.LearnTags(ctx); len(tags) > 0 {
			if err := p.deps.Keywords.UpdateExistingTags(tags); err != nil {
				slog.Error("Failed to save learned tags", "error", err)
			}
		}
	}

	set := p.deps.Transformer.Transform(result)
	sum.Records = set
	if sum.DryRun {
		slog.Info("Dry run, skipping destination write", "records", set.Total())
		return p.finish(sum, relevant)
	}

	res, err := p.deps.Writer.Write(ctx, set)
	if res != nil {
		p.record(sum, res)
	}
	if err != nil {
		return fmt.Errorf("failed to write records: %w", err)
	}
	return p.finish(sum, relevant)
}

func (p *Pipeline) load(ctx context.Context, opts RunOptions) ([]limitless.Transcript, error) {
	if opts.TranscriptsPath != "" {
		ts, err := transcript.LoadFromPath(opts.TranscriptsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load transcripts: %w", err)
		}
		slog.Info("Loaded transcripts from disk", "path", opts.TranscriptsPath, "count", len(ts))
		return ts, nil
	}
	if p.deps.Fetcher == nil {
		return nil, fmt.Errorf("no transcript source configured")
	}
	fo := limitless.FetchOptions{
		Since:      p.since(opts.Days),
		Date:       opts.Date,
		MaxResults: opts.MaxResults,
	}
	return p.deps.Fetcher.Fetch(ctx, fo), nil
}

// since uses the last successful run as the lower bound, falling back to
// the configured look-back window.
func (p *Pipeline) since(days int) *time.Time {
	if p.deps.State != nil {
		if last, ok := p.deps.State.LastRun(); ok {
			return &last
		}
	}
	if days <= 0 {
		return nil
	}
	t := p.now().Add(-time.Duration(days) * 24 * time.Hour)
	return &t
}

func (p *Pipeline) dropProcessed(ts []limitless.Transcript) []limitless.Transcript {
	out := ts[:0:0]
	for _, t := range ts {
		if p.deps.State.IsProcessed(t.ID) {
			slog.Debug("Skipping processed transcript", "transcript_id", t.ID)
			continue
		}
		out = append(out, t)
	}
	if skipped := len(ts) - len(out); skipped > 0 {
		slog.Info("Skipped processed transcripts", "count", skipped)
	}
	return out
}

func (p *Pipeline) record(sum *Summary, res *notion.WriteResult) {
	for _, c := range notion.Collections {
		if n := res.Count(c); n > 0 {
			sum.Created[c] = n
		}
	}
	sum.Failed = res.Failed
	sum.Skipped = res.Skipped
	if sum.FirstError == nil {
		sum.FirstError = res.FirstError
	}

	if p.deps.State == nil {
		return
	}
	for _, cr := range res.Created {
		if cr.TranscriptID == "" {
			continue
		}
		if err := p.deps.State.AddMapping(cr.Collection.String(), cr.TranscriptID, cr.PageID); err != nil {
			slog.Error("Failed to save mapping", "transcript_id", cr.TranscriptID, "error", err)
		}
	}
}

// finish persists processed ids and the run time. State errors are logged;
// the destination has already been written.
func (p *Pipeline) finish(sum *Summary, processed []limitless.Transcript) error {
	if p.deps.State == nil || sum.DryRun {
		return nil
	}
	ids := make([]string, 0, len(processed))
	for _, t := range processed {
		ids = append(ids, t.ID)
	}
	if err := p.deps.State.MarkProcessed(ids...); err != nil {
		slog.Error("Failed to save processed transcripts", "error", err)
	}
	if err := p.deps.State.SetLastRun(p.now()); err != nil {
		slog.Error("Failed to save last run time", "error", err)
	}
	return nil
}

func (p *Pipeline) notify(ctx context.Context, text string) {
	if err := p.deps.Notifier.Notify(ctx, text); err != nil {
		slog.Warn("Notification failed", "error", err)
	}
}
