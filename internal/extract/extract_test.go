package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mcao2/lifelog-sync/internal/limitless"
)

// stubModel returns canned responses keyed by a substring of the user prompt
type stubModel struct {
	responses map[string]string
	errs      map[string]error
	calls     []string
	systems   []string
}

func (s *stubModel) Complete(_ context.Context, system, user string) (string, error) {
	s.calls = append(s.calls, user)
	s.systems = append(s.systems, system)
	for key, err := range s.errs {
		if strings.Contains(user, key) {
			return "", err
		}
	}
	for key, resp := range s.responses {
		if strings.Contains(user, key) {
			return resp, nil
		}
	}
	return `{}`, nil
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("item-%d", n)
	}
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
		ok   bool
	}{
		{"tasks", Tasks, true},
		{"Task", Tasks, true},
		{" MEETINGS ", Meetings, true},
		{"projects", Projects, true},
		{"research", Research, true},
		{"Messages", Messages, true},
		{"notes", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseCategory(tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("ParseCategory(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
	for _, c := range AllCategories {
		if back, ok := ParseCategory(c.String()); !ok || back != c {
			t.Errorf("round trip failed for %s", c)
		}
	}
}

func TestParseExtraction(t *testing.T) {
	tests := []struct {
		name    string
		content string
		counts  map[Category]int
		wantErr bool
	}{
		{
			name:    "plain object",
			content: `{"tasks":[{"title":"A"},{"title":"B"}],"meetings":[],"projects":[],"research":[],"messages":[]}`,
			counts:  map[Category]int{Tasks: 2},
		},
		{
			name:    "fenced with prose",
			content: "Here you go:\n```json\n{\"Meetings\":[{\"title\":\"Standup\",\"participants\":\"Ana, Bo\"}]}\n```\nThanks",
			counts:  map[Category]int{Meetings: 1},
		},
		{
			name:    "braces inside strings",
			content: `Sure! {"messages":[{"recipient":"Sam","content":"use {curly} braces"}]} done`,
			counts:  map[Category]int{Messages: 1},
		},
		{
			name:    "single object and null category",
			content: `{"projects":{"name":"Garden","timeline":{"start":"2026-04-01","end":"2026-06-01"}},"research":null}`,
			counts:  map[Category]int{Projects: 1},
		},
		{
			name:    "unknown keys ignored",
			content: `{"summary":"nothing","tasks":[]}`,
			counts:  map[Category]int{},
		},
		{name: "no json", content: "I could not find anything.", wantErr: true},
		{name: "truncated", content: `{"tasks":[{"title":"A"}`, wantErr: true},
		{name: "wrong category shape", content: `{"tasks":"call mom"}`, wantErr: true},
		{name: "bad item", content: `{"tasks":[{"title":42,"due_date":[]}]}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseExtraction(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for _, c := range AllCategories {
				if got.Count(c) != tt.counts[c] {
					t.Errorf("%s: expected %d items, got %d", c, tt.counts[c], got.Count(c))
				}
			}
		})
	}
}

func TestFlexibleFieldDecoding(t *testing.T) {
	var p Project
	raw := `{"name":"Garden","goals":"grow tomatoes, build beds","team":["Ana",7],"timeline":"spring","budget":1200,"completion_percentage":"40%"}`
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(p.Goals) != 2 || p.Goals[1] != "build beds" {
		t.Errorf("unexpected goals %v", p.Goals)
	}
	if len(p.Team) != 2 || p.Team[1] != "7" {
		t.Errorf("unexpected team %v", p.Team)
	}
	if p.Timeline.Text != "spring" || p.Timeline.IsRange() {
		t.Errorf("unexpected timeline %+v", p.Timeline)
	}
	if p.Budget != "1200" {
		t.Errorf("unexpected budget %q", p.Budget)
	}
	if p.Completion != 40 {
		t.Errorf("unexpected completion %v", p.Completion)
	}

	var task Task
	if err := json.Unmarshal([]byte(`{"title":"x","completion_percentage":"lots"}`), &task); err != nil {
		t.Fatalf("unparseable percent should not fail: %v", err)
	}
	if task.Completion != 0 {
		t.Errorf("expected zero completion, got %v", task.Completion)
	}
}

func TestExtractorStampsProvenance(t *testing.T) {
	details := &limitless.Details{TranscriptID: "tr-1", ImportanceLevel: limitless.ImportanceHigh, Keywords: []string{"invoice"}}
	model := &stubModel{responses: map[string]string{
		"invoice": `{"tasks":[{"title":"Send invoice"}],"messages":[{"recipient":"Sam","content":"Invoice sent"}]}`,
	}}
	today := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	e := NewExtractor(model, WithIDGenerator(sequentialIDs()), WithExtractorClock(func() time.Time { return today }))
	result := e.Extract(context.Background(), []limitless.Transcript{
		{ID: "tr-1", Content: "please send the invoice to Sam", Details: details},
	})

	if result.Total() != 2 {
		t.Fatalf("expected 2 items, got %d", result.Total())
	}
	task := result.Tasks[0]
	if task.ItemID != "item-1" || task.TranscriptID != "tr-1" {
		t.Errorf("unexpected envelope %+v", task.Envelope)
	}
	if task.TranscriptDetails == nil || task.TranscriptDetails.ImportanceLevel != limitless.ImportanceHigh {
		t.Fatalf("expected details copied, got %+v", task.TranscriptDetails)
	}
	if task.TranscriptDetails == details {
		t.Error("expected a copy of the transcript details, not the same pointer")
	}
	if result.Messages[0].ItemID != "item-2" {
		t.Errorf("expected distinct ids, got %q", result.Messages[0].ItemID)
	}

	if !strings.HasPrefix(model.calls[0], UserPromptPrefix) {
		t.Errorf("unexpected user prompt %q", model.calls[0])
	}
	if !strings.Contains(model.systems[0], "Today's date is: 2026-03-10") {
		t.Errorf("expected today anchor in system prompt")
	}
}

func TestExtractorIsolatesFailures(t *testing.T) {
	model := &stubModel{
		responses: map[string]string{
			"alpha": `{"tasks":[{"title":"Alpha task"}]}`,
			"gamma": `{"research":[{"topic":"Gamma topic"}]}`,
			"delta": `{"tasks":[{"title":"ok"}], "meetings":[{"title":["bad"]}]}`,
		},
		errs: map[string]error{"beta": errors.New("API error (status 500)")},
	}

	e := NewExtractor(model, WithIDGenerator(sequentialIDs()))
	result := e.Extract(context.Background(), []limitless.Transcript{
		{ID: "a", Content: "alpha content"},
		{ID: "b", Content: "beta content"},
		{ID: "c", Content: "   "},
		{ID: "d", Content: "delta content"},
		{ID: "g", Content: "gamma content"},
	})

	if len(model.calls) != 4 {
		t.Errorf("expected empty transcript to be skipped, got %d calls", len(model.calls))
	}
	if len(result.Tasks) != 1 || result.Tasks[0].Title != "Alpha task" {
		t.Errorf("expected only alpha task (delta must contribute nothing), got %+v", result.Tasks)
	}
	if len(result.Research) != 1 || result.Research[0].TranscriptID != "g" {
		t.Errorf("expected gamma research item, got %+v", result.Research)
	}
}

func TestExtractorWithoutModel(t *testing.T) {
	result := NewExtractor(nil).Extract(context.Background(), []limitless.Transcript{{ID: "a", Content: "call mom"}})
	if result.Total() != 0 {
		t.Errorf("expected no items without a model, got %d", result.Total())
	}
}

func TestResultMergeKeepsOrder(t *testing.T) {
	r := &Result{Tasks: []*Task{{Title: "1"}}}
	r.Merge(&Result{Tasks: []*Task{{Title: "2"}}, Messages: []*Message{{Recipient: "x"}}})
	r.Merge(nil)

	if len(r.Tasks) != 2 || r.Tasks[1].Title != "2" {
		t.Errorf("unexpected tasks %+v", r.Tasks)
	}
	all := r.All()
	if len(all) != 3 || all[2].Category() != Messages {
		t.Errorf("unexpected All ordering %+v", all)
	}
}

func TestNilBudgetPassesThrough(t *testing.T) {
	b, err := NewBudget("gpt-4o-mini", 0)
	if err != nil || b != nil {
		t.Fatalf("expected nil budget when disabled, got %v, %v", b, err)
	}
	text, cut := b.Trim("unchanged")
	if cut || text != "unchanged" {
		t.Errorf("expected passthrough, got %q, %v", text, cut)
	}
}

func TestBudgetTrim(t *testing.T) {
	b, err := NewBudget("gpt-4o-mini", 5)
	if err != nil {
		t.Skipf("tokenizer unavailable: %v", err)
	}
	long := strings.Repeat("remember to water the plants ", 20)
	trimmed, cut := b.Trim(long)
	if !cut {
		t.Fatal("expected text to be trimmed")
	}
	if b.Count(trimmed) > 5 {
		t.Errorf("trimmed text exceeds budget: %d tokens", b.Count(trimmed))
	}
	if _, cut := b.Trim("hi"); cut {
		t.Error("short text should not be trimmed")
	}
}

func TestClipboardModel(t *testing.T) {
	var copied string
	m := NewClipboardModel(strings.NewReader("\n"), &strings.Builder{})
	m.write = func(s string) error { copied = s; return nil }
	m.read = func() (string, error) { return `{"tasks":[]}`, nil }

	got, err := m.Complete(context.Background(), "SYSTEM", "USER")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != `{"tasks":[]}` {
		t.Errorf("unexpected answer %q", got)
	}
	if !strings.Contains(copied, "SYSTEM") || !strings.Contains(copied, "USER") {
		t.Errorf("expected both prompts copied, got %q", copied)
	}
}

func TestClipboardModelErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		read  func() (string, error)
	}{
		{"skip", "skip\n", func() (string, error) { return `{}`, nil }},
		{"empty clipboard", "\n", func() (string, error) { return "  ", nil }},
		{"prompt not replaced", "\n", func() (string, error) { return "S\n\n---\n\nU", nil }},
		{"read failure", "\n", func() (string, error) { return "", errors.New("no clipboard") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewClipboardModel(strings.NewReader(tt.input), &strings.Builder{})
			m.write = func(string) error { return nil }
			m.read = tt.read
			if _, err := m.Complete(context.Background(), "S", "U"); err == nil {
				t.Error("expected error")
			}
		})
	}
}
