// Package transcript decides which transcripts are worth extracting from,
// annotates them with keyword context, and archives them to disk.
package transcript

import (
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mcao2/lifelog-sync/internal/config"
	"github.com/mcao2/lifelog-sync/internal/limitless"
)

const (
	MinContentLength = 50

	indicatorWindow   = 15
	actionWindow      = 100
	markerWindow      = 150
	ordinaryActionCap = 3
)

// DefaultSpecialMarkers are the keywords that force high importance
var DefaultSpecialMarkers = []string{"TB", "TeeBee"}

// RelevanceChecker is a secondary relevance gate applied when no action
// keyword matched.
type RelevanceChecker interface {
	Relevant(t limitless.Transcript) bool
}

// RelevanceFunc adapts a function to RelevanceChecker
type RelevanceFunc func(t limitless.Transcript) bool

func (f RelevanceFunc) Relevant(t limitless.Transcript) bool { return f(t) }

// AlwaysRelevant accepts every transcript
var AlwaysRelevant RelevanceChecker = RelevanceFunc(func(limitless.Transcript) bool { return true })

// Filter selects transcripts for extraction and attaches Details to them
type Filter struct {
	keywords  *config.Keywords
	relevance RelevanceChecker
	markers   []string
	now       func() time.Time
}

// FilterOption configures a Filter
type FilterOption func(*Filter)

// WithRelevance replaces the default always-true relevance check
func WithRelevance(r RelevanceChecker) FilterOption {
	return func(f *Filter) {
		if r != nil {
			f.relevance = r
		}
	}
}

// WithSpecialMarkers replaces the special marker set
func WithSpecialMarkers(markers ...string) FilterOption {
	return func(f *Filter) {
		f.markers = markers
	}
}

// WithFilterClock sets the time source for processed dates
func WithFilterClock(now func() time.Time) FilterOption {
	return func(f *Filter) {
		f.now = now
	}
}

func NewFilter(keywords *config.Keywords, opts ...FilterOption) *Filter {
	if keywords == nil {
		keywords = config.DefaultKeywords()
	}
	f := &Filter{
		keywords:  keywords,
		relevance: AlwaysRelevant,
		markers:   DefaultSpecialMarkers,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Filter returns the relevant subset of transcripts in input order, each
// carrying fully built Details.
func (f *Filter) Filter(transcripts []limitless.Transcript) []limitless.Transcript {
	var out []limitless.Transcript
	for _, t := range transcripts {
		length := utf8.RuneCountInString(t.Content)
		if len(strings.TrimSpace(t.Content)) == 0 || length < MinContentLength {
			slog.Info("skipping short transcript", "transcript_id", t.ID, "length", length)
			continue
		}

		details, hasAction := f.analyze(t)
		if !hasAction && !f.relevance.Relevant(t) {
			slog.Debug("transcript not relevant", "transcript_id", t.ID)
			continue
		}

		t.Details = details
		out = append(out, t)
	}
	slog.Info("filtered transcripts", "input", len(transcripts), "relevant", len(out))
	return out
}

// analyze builds the Details for one transcript and reports whether any
// action keyword matched.
func (f *Filter) analyze(t limitless.Transcript) (*limitless.Details, bool) {
	content := t.Content

	d := &limitless.Details{
		TranscriptID:       t.ID,
		Content:            content,
		CreatedAt:          createdAt(t),
		PriorityIndicators: []limitless.PriorityIndicator{},
		StatusIndicators:   []limitless.StatusIndicator{},
		DateIndicators:     []limitless.DateIndicator{},
		Keywords:           []string{},
		WordCount:          len(strings.Fields(content)),
		ProcessedDate:      f.now().Format(time.RFC3339),
		ImportanceLevel:    limitless.ImportanceMedium,
		SourceType:         "voice_transcript",
		ActionKeywords:     []string{},
	}
	if !t.Timestamp.IsZero() {
		d.TranscriptDate = t.Timestamp.Format("2006-01-02")
	}

	for _, level := range config.OrderedKeys(f.keywords.PriorityKeywords) {
		for _, kw := range f.keywords.PriorityKeywords[level] {
			idx, end := indexFold(content, kw, 0)
			if idx < 0 {
				continue
			}
			d.PriorityIndicators = append(d.PriorityIndicators, limitless.PriorityIndicator{
				Priority: level,
				Keyword:  kw,
				Context:  window(content, idx, end-idx, indicatorWindow),
			})
			d.Keywords = appendUnique(d.Keywords, kw)
			if level == "high" {
				d.ImportanceLevel = d.ImportanceLevel.Raise(limitless.ImportanceHigh)
			}
		}
	}

	for _, status := range config.OrderedKeys(f.keywords.StatusKeywords) {
		for _, kw := range f.keywords.StatusKeywords[status] {
			idx, end := indexFold(content, kw, 0)
			if idx < 0 {
				continue
			}
			d.StatusIndicators = append(d.StatusIndicators, limitless.StatusIndicator{
				Status:  status,
				Keyword: kw,
				Context: window(content, idx, end-idx, indicatorWindow),
			})
			d.Keywords = appendUnique(d.Keywords, kw)
		}
	}

	for _, kw := range f.keywords.DateKeywords {
		idx, end := indexFold(content, kw, 0)
		if idx < 0 {
			continue
		}
		d.DateIndicators = append(d.DateIndicators, limitless.DateIndicator{
			Date:     kw,
			Text:     window(content, idx, end-idx, indicatorWindow),
			Position: utf8.RuneCountInString(content[:idx]),
		})
		d.Keywords = appendUnique(d.Keywords, kw)
	}

	ordinary := 0
	for _, kw := range f.keywords.ActionKeywords {
		if f.isMarker(kw) {
			continue
		}
		idx, end := indexFold(content, kw, 0)
		if idx < 0 {
			continue
		}
		d.ActionKeywords = appendUnique(d.ActionKeywords, kw)
		d.Keywords = appendUnique(d.Keywords, kw)
		if d.Context == "" {
			d.Context = window(content, idx, end-idx, actionWindow)
		}
		ordinary++
		if ordinary >= ordinaryActionCap {
			break
		}
	}
	if ordinary >= ordinaryActionCap {
		d.ImportanceLevel = d.ImportanceLevel.Raise(limitless.ImportanceMediumHigh)
	}

	// Markers are scanned over the full content regardless of the ordinary cap.
	for _, marker := range f.markers {
		found := f.findMarkers(content, marker)
		if len(found) == 0 {
			continue
		}
		d.ActionKeywords = appendUnique(d.ActionKeywords, marker)
		d.Keywords = appendUnique(d.Keywords, marker)
		d.ExtractedMarkers = append(d.ExtractedMarkers, found...)
		d.ImportanceLevel = limitless.ImportanceHigh
	}
	if len(d.ExtractedMarkers) > 0 {
		d.Context = d.ExtractedMarkers[0].FullContext
	}

	return d, len(d.ActionKeywords) > 0
}

func (f *Filter) isMarker(kw string) bool {
	for _, m := range f.markers {
		if strings.EqualFold(m, kw) {
			return true
		}
	}
	return false
}

// findMarkers returns every occurrence of marker with its surrounding window
func (f *Filter) findMarkers(content, marker string) []limitless.Marker {
	if marker == "" {
		return nil
	}
	var out []limitless.Marker
	for start := 0; start < len(content); {
		pos, end := indexFold(content, marker, start)
		if pos < 0 || end == pos {
			break
		}
		before := strings.ToValidUTF8(content[clampStart(pos-markerWindow):pos], "")
		after := strings.ToValidUTF8(content[end:clampEnd(end+markerWindow, len(content))], "")
		out = append(out, limitless.Marker{
			Keyword:     marker,
			Position:    utf8.RuneCountInString(content[:pos]),
			Before:      before,
			After:       after,
			FullContext: before + "[" + content[pos:end] + "]" + after,
		})
		start = end
	}
	return out
}

// indexFold is a case-insensitive strings.Index starting at byte offset
// from. It returns the byte range of the match, which may differ in length
// from sub when case forms have different encodings.
func indexFold(s, sub string, from int) (int, int) {
	if sub == "" {
		return from, from
	}
	for i := from; i < len(s); {
		if n := prefixFold(s[i:], sub); n >= 0 {
			return i, i + n
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return -1, -1
}

// prefixFold returns the byte length of the prefix of s that case-folds to
// prefix, or -1.
func prefixFold(s, prefix string) int {
	j := 0
	for _, pr := range prefix {
		if j >= len(s) {
			return -1
		}
		r, size := utf8.DecodeRuneInString(s[j:])
		if r != pr && !strings.EqualFold(string(r), string(pr)) {
			return -1
		}
		j += size
	}
	return j
}

// HasMarkers reports whether filtering found special markers in t
func HasMarkers(t limitless.Transcript) bool {
	return t.Details != nil && len(t.Details.ExtractedMarkers) > 0
}

func createdAt(t limitless.Transcript) string {
	if t.Timestamp.IsZero() {
		return ""
	}
	return t.Timestamp.Format(time.RFC3339)
}

// window returns up to n bytes either side of content[idx:idx+length]
func window(content string, idx, length, n int) string {
	return strings.TrimSpace(strings.ToValidUTF8(content[clampStart(idx-n):clampEnd(idx+length+n, len(content))], ""))
}

func clampStart(i int) int {
	if i < 0 {
		return 0
	}
	return i
}

func clampEnd(i, max int) int {
	if i > max {
		return max
	}
	return i
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return list
		}
	}
	return append(list, s)
}
