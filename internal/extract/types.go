// Package extract turns transcript text into typed actionable items using a
// language model.
package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mcao2/lifelog-sync/internal/limitless"
)

// Category is the closed set of item kinds the model may return
type Category int

const (
	Tasks Category = iota
	Meetings
	Projects
	Research
	Messages
)

// AllCategories lists every category in processing order
var AllCategories = []Category{Tasks, Meetings, Projects, Research, Messages}

func (c Category) String() string {
	switch c {
	case Tasks:
		return "tasks"
	case Meetings:
		return "meetings"
	case Projects:
		return "projects"
	case Research:
		return "research"
	case Messages:
		return "messages"
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// Singular returns the item-type name used for tags and descriptors
func (c Category) Singular() string {
	switch c {
	case Tasks:
		return "task"
	case Meetings:
		return "meeting"
	case Projects:
		return "project"
	case Research:
		return "research"
	case Messages:
		return "message"
	}
	return c.String()
}

// ParseCategory maps a model-supplied key to a Category. It accepts plural
// and singular forms in any case.
func ParseCategory(s string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tasks", "task", "todos", "action_items":
		return Tasks, true
	case "meetings", "meeting":
		return Meetings, true
	case "projects", "project":
		return Projects, true
	case "research", "researches", "research_items":
		return Research, true
	case "messages", "message":
		return Messages, true
	}
	return 0, false
}

// Envelope is the provenance shared by every extracted item
type Envelope struct {
	ItemID            string             `json:"item_id,omitempty"`
	TranscriptID      string             `json:"transcript_id,omitempty"`
	TranscriptDetails *limitless.Details `json:"transcript_details,omitempty"`
	CreatedDate       string             `json:"created_date,omitempty"`
	Context           string             `json:"context,omitempty"`
	ExtractedContext  string             `json:"extracted_context,omitempty"`
	Tags              StringList         `json:"tags,omitempty"`
}

// ContextText returns the item context, falling back to the extracted context
func (e *Envelope) ContextText() string {
	if e.Context != "" {
		return e.Context
	}
	return e.ExtractedContext
}

// Item is implemented by every extracted item type
type Item interface {
	Category() Category
	Base() *Envelope
	// Label is a short human-readable name used in summaries
	Label() string
}

type Task struct {
	Envelope
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Priority      string     `json:"priority,omitempty"`
	DueDate       string     `json:"due_date,omitempty"`
	Project       string     `json:"project,omitempty"`
	Status        string     `json:"status,omitempty"`
	Assignee      string     `json:"assignee,omitempty"`
	BlockedBy     StringList `json:"blocked_by,omitempty"`
	Dependencies  StringList `json:"dependencies,omitempty"`
	EstimatedTime Text       `json:"estimated_time,omitempty"`
	Updates       StringList `json:"updates,omitempty"`
	Completion    Percent    `json:"completion_percentage,omitempty"`
}

func (t *Task) Category() Category { return Tasks }
func (t *Task) Base() *Envelope    { return &t.Envelope }
func (t *Task) Label() string      { return t.Title }

type Meeting struct {
	Envelope
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Agenda       Text       `json:"agenda,omitempty"`
	Participants StringList `json:"participants,omitempty"`
	Location     string     `json:"location,omitempty"`
	Date         string     `json:"date,omitempty"`
	Time         string     `json:"time,omitempty"`
	Priority     string     `json:"priority,omitempty"`
	Duration     Text       `json:"duration,omitempty"`
	Recurrence   string     `json:"recurrence,omitempty"`
	Notes        Text       `json:"notes,omitempty"`
}

func (m *Meeting) Category() Category { return Meetings }
func (m *Meeting) Base() *Envelope    { return &m.Envelope }
func (m *Meeting) Label() string      { return m.Title }

type Project struct {
	Envelope
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	Goals        StringList `json:"goals,omitempty"`
	Scope        string     `json:"scope,omitempty"`
	Timeline     Timeline   `json:"timeline,omitempty"`
	Team         StringList `json:"team,omitempty"`
	Owner        string     `json:"owner,omitempty"`
	Manager      string     `json:"manager,omitempty"`
	Dependencies StringList `json:"dependencies,omitempty"`
	BlockedBy    StringList `json:"blocked_by,omitempty"`
	Status       string     `json:"status,omitempty"`
	Priority     string     `json:"priority,omitempty"`
	URL          string     `json:"url,omitempty"`
	Categories   StringList `json:"categories,omitempty"`
	Updates      StringList `json:"updates,omitempty"`
	Budget       Text       `json:"budget,omitempty"`
	Completion   Percent    `json:"completion_percentage,omitempty"`
}

func (p *Project) Category() Category { return Projects }
func (p *Project) Base() *Envelope    { return &p.Envelope }
func (p *Project) Label() string      { return p.Name }

type ResearchItem struct {
	Envelope
	Topic         string     `json:"topic"`
	Description   string     `json:"description,omitempty"`
	Questions     StringList `json:"questions,omitempty"`
	Sources       StringList `json:"sources,omitempty"`
	Status        string     `json:"status,omitempty"`
	Priority      string     `json:"priority,omitempty"`
	DueDate       string     `json:"due_date,omitempty"`
	Project       string     `json:"project,omitempty"`
	EstimatedTime Text       `json:"estimated_time,omitempty"`
}

func (r *ResearchItem) Category() Category { return Research }
func (r *ResearchItem) Base() *Envelope    { return &r.Envelope }
func (r *ResearchItem) Label() string      { return r.Topic }

type Message struct {
	Envelope
	Recipient    string `json:"recipient"`
	Content      string `json:"content"`
	Medium       string `json:"medium,omitempty"`
	Urgency      string `json:"urgency,omitempty"`
	Status       string `json:"status,omitempty"`
	DueDate      string `json:"due_date,omitempty"`
	FollowUpDate string `json:"follow_up_date,omitempty"`
}

func (m *Message) Category() Category { return Messages }
func (m *Message) Base() *Envelope    { return &m.Envelope }
func (m *Message) Label() string {
	return "To " + m.Recipient + ": " + m.Content
}

// Result holds extracted items grouped by category, each slice in extraction order
type Result struct {
	Tasks    []*Task         `json:"tasks"`
	Meetings []*Meeting      `json:"meetings"`
	Projects []*Project      `json:"projects"`
	Research []*ResearchItem `json:"research"`
	Messages []*Message      `json:"messages"`
}

// Items returns the items of one category as the Item interface
func (r *Result) Items(c Category) []Item {
	var out []Item
	switch c {
	case Tasks:
		for _, it := range r.Tasks {
			out = append(out, it)
		}
	case Meetings:
		for _, it := range r.Meetings {
			out = append(out, it)
		}
	case Projects:
		for _, it := range r.Projects {
			out = append(out, it)
		}
	case Research:
		for _, it := range r.Research {
			out = append(out, it)
		}
	case Messages:
		for _, it := range r.Messages {
			out = append(out, it)
		}
	}
	return out
}

// All returns every item in category order
func (r *Result) All() []Item {
	var out []Item
	for _, c := range AllCategories {
		out = append(out, r.Items(c)...)
	}
	return out
}

// Count returns the number of items in a category
func (r *Result) Count(c Category) int {
	switch c {
	case Tasks:
		return len(r.Tasks)
	case Meetings:
		return len(r.Meetings)
	case Projects:
		return len(r.Projects)
	case Research:
		return len(r.Research)
	case Messages:
		return len(r.Messages)
	}
	return 0
}

// Total returns the number of items across all categories
func (r *Result) Total() int {
	n := 0
	for _, c := range AllCategories {
		n += r.Count(c)
	}
	return n
}

// Merge appends other's items after r's, keeping order within each category
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	r.Tasks = append(r.Tasks, other.Tasks...)
	r.Meetings = append(r.Meetings, other.Meetings...)
	r.Projects = append(r.Projects, other.Projects...)
	r.Research = append(r.Research, other.Research...)
	r.Messages = append(r.Messages, other.Messages...)
}

// StringList decodes either a JSON array of strings or a comma separated string
type StringList []string

func (s *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*s = nil
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		var out []string
		for _, part := range strings.Split(str, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		*s = out
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("expected string or list: %w", err)
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		var t Text
		if err := json.Unmarshal(r, &t); err != nil {
			return err
		}
		if v := strings.TrimSpace(string(t)); v != "" {
			out = append(out, v)
		}
	}
	*s = out
	return nil
}

// Text decodes a string, number or boolean into its string form. Objects
// and arrays are kept as compact JSON.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*t = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return err
		}
		*t = Text(buf.String())
	default:
		*t = Text(data)
	}
	return nil
}

// Timeline is a free-text timeline or a {start, end} range
type Timeline struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
	Text  string `json:"text,omitempty"`
}

// IsZero reports whether no timeline was given
func (t Timeline) IsZero() bool {
	return t.Start == "" && t.End == "" && t.Text == ""
}

// IsRange reports whether both ends of a range are present
func (t Timeline) IsRange() bool {
	return t.Start != "" && t.End != ""
}

func (t *Timeline) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*t = Timeline{}
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &t.Text)
	}
	var obj struct {
		Start Text `json:"start"`
		End   Text `json:"end"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("expected timeline string or object: %w", err)
	}
	t.Start, t.End = string(obj.Start), string(obj.End)
	return nil
}

// Percent decodes 50, 50.5 or "50%"; unparseable values decode to zero
type Percent float64

func (p *Percent) UnmarshalJSON(data []byte) error {
	var t Text
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(string(t)), "%"))
	if s == "" {
		*p = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*p = 0
		return nil
	}
	*p = Percent(v)
	return nil
}
