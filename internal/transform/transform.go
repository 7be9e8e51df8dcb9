// Package transform maps extracted items onto destination records.
package transform

import (
	"strings"
	"time"
	"unicode"

	"github.com/mcao2/lifelog-sync/internal/config"
	"github.com/mcao2/lifelog-sync/internal/extract"
	"github.com/mcao2/lifelog-sync/internal/limitless"
	"github.com/mcao2/lifelog-sync/internal/notion"
)

const (
	dateLayout         = "2006-01-02"
	defaultDueInDays   = 7
	defaultProjectDays = 90
	defaultProject     = "General Tasks"
	todoIDSuffix       = ":todo"
)

// Transformer builds destination records from extracted items. Every output
// is a pure function of the item, the keyword dictionary and the clock.
type Transformer struct {
	keywords   *config.Keywords
	now        func() time.Time
	dueInDays  int
	datePrefix bool
	assignee   string
}

// Option configures a Transformer
type Option func(*Transformer)

// WithClock sets the source of "today"
func WithClock(now func() time.Time) Option {
	return func(t *Transformer) {
		t.now = now
	}
}

// WithDueInDays sets the default due date offset for tasks and meetings
func WithDueInDays(days int) Option {
	return func(t *Transformer) {
		if days > 0 {
			t.dueInDays = days
		}
	}
}

// WithDatePrefix toggles the "YYYY-MM-DD | " title prefix
func WithDatePrefix(enabled bool) Option {
	return func(t *Transformer) {
		t.datePrefix = enabled
	}
}

// WithDefaultAssignee sets the user id assigned to tasks and todos
func WithDefaultAssignee(userID string) Option {
	return func(t *Transformer) {
		t.assignee = strings.TrimSpace(userID)
	}
}

// New returns a Transformer. A nil keyword dictionary uses the defaults.
func New(kw *config.Keywords, opts ...Option) *Transformer {
	if kw == nil {
		kw = config.DefaultKeywords()
	}
	t := &Transformer{
		keywords:   kw,
		now:        time.Now,
		dueInDays:  defaultDueInDays,
		datePrefix: true,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transform maps every extracted item to its destination records. Tasks fan
// out to a Task record and a companion Todo record; a Lifelog summary is
// added whenever anything was extracted.
func (t *Transformer) Transform(result *extract.Result) notion.RecordSet {
	set := make(notion.RecordSet)
	if result == nil {
		return set
	}
	today := t.today()

	add := func(c notion.Collection, rec notion.Record) {
		if rec.TranscriptID != "" {
			if _, ok := rec.Properties["Source"]; !ok {
				rec.Properties["Source"] = notion.RichText("Transcript ID: " + rec.TranscriptID)
			}
		}
		rec.Properties = rec.Properties.SanitizeDates(today)
		set[c] = append(set[c], rec)
	}

	for _, c := range extract.AllCategories {
		for _, item := range result.Items(c) {
			in := t.enrich(item)
			switch it := item.(type) {
			case *extract.Task:
				task := t.taskRecord(it, in)
				add(notion.CollectionTasks, task)
				add(notion.CollectionTodo, t.todoRecord(it, in, task.ItemID))
			case *extract.Meeting:
				add(notion.CollectionTasks, t.meetingRecord(it, in))
			case *extract.Project:
				add(notion.CollectionProjects, t.projectRecord(it, in))
			case *extract.ResearchItem:
				add(notion.CollectionTasks, t.researchRecord(it, in))
			case *extract.Message:
				add(notion.CollectionTodo, t.messageRecord(it, in))
			}
		}
	}

	if rec, ok := t.lifelogRecord(result); ok {
		add(notion.CollectionLifelog, rec)
	}
	return set
}

// input is an item's provenance after enrichment. The item itself is not
// modified.
type input struct {
	itemID       string
	transcriptID string
	details      *limitless.Details
	created      string
	context      string
}

func (t *Transformer) enrich(item extract.Item) input {
	env := item.Base()
	today := t.todayString()

	in := input{
		itemID:       env.ItemID,
		transcriptID: env.TranscriptID,
		context:      env.ContextText(),
		created:      today,
	}
	if notion.ValidDate(env.CreatedDate) {
		in.created = env.CreatedDate
	}

	d := env.TranscriptDetails.Clone()
	if d == nil {
		d = &limitless.Details{TranscriptID: env.TranscriptID}
	}
	if d.Context == "" {
		d.Context = in.context
	}
	if d.CreatedAt == "" {
		d.CreatedAt = in.created
	}
	in.details = d
	return in
}

func (t *Transformer) today() time.Time {
	now := t.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

func (t *Transformer) todayString() string {
	return t.today().Format(dateLayout)
}

func (t *Transformer) daysFromToday(n int) string {
	return t.today().AddDate(0, 0, n).Format(dateLayout)
}

// dateOr returns s when it is a valid date, otherwise fallback
func dateOr(s, fallback string) string {
	s = strings.TrimSpace(s)
	if notion.ValidDate(s) {
		return s
	}
	return fallback
}

func (t *Transformer) title(created, raw string) string {
	if t.datePrefix {
		return created + " | " + raw
	}
	return raw
}

func (t *Transformer) people() notion.Property {
	if t.assignee == "" {
		return notion.People()
	}
	return notion.People(t.assignee)
}

// inferProject finds the first configured project category whose keywords
// appear among the transcript's action keywords.
func (t *Transformer) inferProject(d *limitless.Details) string {
	if d == nil || len(d.ActionKeywords) == 0 {
		return ""
	}
	actions := make(map[string]bool, len(d.ActionKeywords))
	for _, k := range d.ActionKeywords {
		actions[strings.ToLower(k)] = true
	}
	for _, category := range config.OrderedKeys(t.keywords.ProjectCategoryKeywords) {
		for _, k := range t.keywords.ProjectCategoryKeywords[category] {
			if actions[strings.ToLower(k)] {
				return category
			}
		}
	}
	return ""
}

// NormalizePriority maps free-form priority text to High, Medium or Low
func NormalizePriority(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "urgent", "critical", "important", "asap", "p0", "p1":
		return "High"
	case "low", "whenever", "someday", "p3", "p4":
		return "Low"
	}
	return "Medium"
}

// UrgencyPriority derives a priority from a message's urgency text
func UrgencyPriority(urgency string) string {
	u := strings.ToLower(urgency)
	switch {
	case strings.Contains(u, "high"), strings.Contains(u, "urgent"), strings.Contains(u, "important"):
		return "High"
	case strings.Contains(u, "low"), strings.Contains(u, "whenever"):
		return "Low"
	}
	return "Medium"
}

// capitalize upper-cases the first letter and lower-cases the rest
func capitalize(s string) string {
	r := []rune(strings.ToLower(s))
	if len(r) == 0 {
		return ""
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func bulletList(items []string) string {
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = "- " + it
	}
	return strings.Join(lines, "\n")
}

func boldList(items []string, n int) string {
	if len(items) > n {
		items = items[:n]
	}
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = "**" + it + "**"
	}
	return strings.Join(parts, ", ")
}

// sections joins "## Heading" blocks, omitting any with an empty body
type sections []string

func (s *sections) add(heading, body string) {
	if strings.TrimSpace(body) == "" {
		return
	}
	*s = append(*s, "## "+heading+"\n"+body)
}

func (s sections) String() string {
	return strings.Join(s, "\n\n")
}

// paragraphs joins non-empty blocks with blank lines
type paragraphs []string

func (p *paragraphs) add(label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	*p = append(*p, label+value)
}

func (p paragraphs) String() string {
	return strings.Join(p, "\n\n")
}
