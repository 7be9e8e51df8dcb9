package transform

import (
	"strings"
	"testing"
	"time"

	"github.com/mcao2/lifelog-sync/internal/config"
	"github.com/mcao2/lifelog-sync/internal/extract"
	"github.com/mcao2/lifelog-sync/internal/limitless"
	"github.com/mcao2/lifelog-sync/internal/notion"
)

var testNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

func newTestTransformer(opts ...Option) *Transformer {
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return New(config.DefaultKeywords(), opts...)
}

func portalTask() *extract.Task {
	return &extract.Task{
		Envelope: extract.Envelope{
			ItemID:       "item-1",
			TranscriptID: "tr-1",
			TranscriptDetails: &limitless.Details{
				Content:         "Fix the login form validation for the client portal before the demo.",
				Keywords:        []string{"login", "form", "validation"},
				ImportanceLevel: limitless.ImportanceMedium,
			},
		},
		Title:    "Fix login form validation",
		Priority: "medium",
		DueDate:  "2026-03-10",
		Project:  "Client Portal",
	}
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}

func priorityTags(tags []string) int {
	n := 0
	for _, t := range tags {
		if strings.HasPrefix(t, "Priority: ") {
			n++
		}
	}
	return n
}

func TestTransformTaskFanOut(t *testing.T) {
	tr := newTestTransformer()
	set := tr.Transform(&extract.Result{Tasks: []*extract.Task{portalTask()}})

	tasks, todos := set[notion.CollectionTasks], set[notion.CollectionTodo]
	if len(tasks) != 1 || len(todos) != 1 {
		t.Fatalf("got %d tasks and %d todos, want 1 each", len(tasks), len(todos))
	}
	if tasks[0].TranscriptID != "tr-1" || todos[0].TranscriptID != "tr-1" {
		t.Errorf("transcript ids = %q, %q", tasks[0].TranscriptID, todos[0].TranscriptID)
	}
	if todos[0].ParentItemID != tasks[0].ItemID || tasks[0].ItemID != "item-1" {
		t.Errorf("todo parent = %q, task item = %q", todos[0].ParentItemID, tasks[0].ItemID)
	}
	if todos[0].ItemID == tasks[0].ItemID {
		t.Error("todo and task must have distinct item ids")
	}
	if len(set[notion.CollectionLifelog]) != 1 {
		t.Errorf("want one lifelog record, got %d", len(set[notion.CollectionLifelog]))
	}

	task := tasks[0].Properties
	if got := task["Title"].Text; got != "2026-03-10 | Fix login form validation" {
		t.Errorf("Title = %q", got)
	}
	if task["Status"].Name != "Not Started" || task["Priority"].Name != "Medium" {
		t.Errorf("Status = %q, Priority = %q", task["Status"].Name, task["Priority"].Name)
	}
	if task["Project"].Name != "Client Portal" {
		t.Errorf("Project = %q", task["Project"].Name)
	}
	if task["Source"].Text != "Transcript ID: tr-1" {
		t.Errorf("Source = %q", task["Source"].Text)
	}
	desc := task["Description"].Text
	for _, want := range []string{
		"## Purpose & Objectives\n" + defaultPurpose,
		"## Task Details\n**Project**: Client Portal\n**Target Completion**: 2026-03-10",
		"## Original Transcript\nFix the login form",
		"## Key Topics & Themes\n**login**, **form**, **validation**",
		"**MEDIUM PRIORITY**",
		"## Reference\nSource: Transcript ID tr-1",
	} {
		if !strings.Contains(desc, want) {
			t.Errorf("description missing %q:\n%s", want, desc)
		}
	}
	if strings.Contains(desc, "## Background & Context") {
		t.Error("empty context section should be omitted")
	}

	todo := todos[0].Properties
	if todo["Status"].Type != notion.TypeCheckbox || todo["Status"].Checkbox {
		t.Errorf("todo Status = %+v", todo["Status"])
	}
	if todo["Due"].Date.Start != "2026-03-10" || *todo["Progress"].Number != 0 {
		t.Errorf("todo Due = %+v, Progress = %v", todo["Due"].Date, *todo["Progress"].Number)
	}
	if !strings.Contains(todo["Notes"].Text, "Source: Transcript tr-1") {
		t.Errorf("todo Notes = %q", todo["Notes"].Text)
	}
}

func TestTransformEndToEndTags(t *testing.T) {
	tr := newTestTransformer()
	set := tr.Transform(&extract.Result{Tasks: []*extract.Task{portalTask()}})

	for _, c := range []notion.Collection{notion.CollectionTasks, notion.CollectionTodo} {
		tags := set[c][0].Properties["Tags"].Names
		for _, want := range []string{"Priority: Medium", "Due Today", "Client Portal"} {
			if !hasTag(tags, want) {
				t.Errorf("%s tags %v missing %q", c, tags, want)
			}
		}
		if !hasTag(tags, "Login") && !hasTag(tags, "Form") && !hasTag(tags, "Validation") {
			t.Errorf("%s tags %v missing a keyword tag", c, tags)
		}
	}
}

func TestTransformDoesNotMutateItems(t *testing.T) {
	task := portalTask()
	task.TranscriptDetails.Context = ""
	task.Context = "from the standup"

	newTestTransformer().Transform(&extract.Result{Tasks: []*extract.Task{task}})

	if task.TranscriptDetails.Context != "" || task.TranscriptDetails.CreatedAt != "" {
		t.Errorf("transcript details were modified: %+v", task.TranscriptDetails)
	}
	if task.CreatedDate != "" {
		t.Errorf("CreatedDate was modified: %q", task.CreatedDate)
	}
}

func TestTransformDefaults(t *testing.T) {
	tr := newTestTransformer(WithDatePrefix(false))
	set := tr.Transform(&extract.Result{
		Tasks:    []*extract.Task{{Title: "Bare", DueDate: "next friday"}},
		Meetings: []*extract.Meeting{{Title: "Sync"}, {Title: "Review", Date: "2026-03-12", Time: "14:30"}, {Title: "Odd", Date: "2026-03-12", Time: "2pm"}},
		Projects: []*extract.Project{{Name: "Atlas"}},
		Research: []*extract.ResearchItem{{Topic: "Vector stores"}},
		Messages: []*extract.Message{{Recipient: "Sam", Content: "Please send over the signed contract by Friday afternoon", Urgency: "very urgent"}},
	})

	tasks := set[notion.CollectionTasks]
	if len(tasks) != 5 {
		t.Fatalf("got %d task records, want 5", len(tasks))
	}
	bare := tasks[0].Properties
	if bare["Title"].Text != "Bare" {
		t.Errorf("Title = %q", bare["Title"].Text)
	}
	if bare["Due Date"].Date.Start != "2026-03-17" {
		t.Errorf("invalid due date should default to +7 days, got %q", bare["Due Date"].Date.Start)
	}
	if bare["Project"].Name != defaultProject {
		t.Errorf("Project = %q", bare["Project"].Name)
	}

	sync := tasks[1].Properties
	if sync["Title"].Text != "Meeting: Sync" || sync["Type"].Name != "Meeting" {
		t.Errorf("meeting = %q / %q", sync["Title"].Text, sync["Type"].Name)
	}
	if sync["Meeting Date"].Date.Start != "2026-03-17" {
		t.Errorf("Meeting Date = %q", sync["Meeting Date"].Date.Start)
	}
	if got := tasks[2].Properties["Meeting Date"].Date.Start; got != "2026-03-12T14:30" {
		t.Errorf("Meeting Date with time = %q", got)
	}
	if got := tasks[3].Properties["Due Date"].Date.Start; got != "2026-03-12" {
		t.Errorf("unparseable time should be dropped, got %q", got)
	}

	research := tasks[4].Properties
	if research["Title"].Text != "Research: Vector stores" || research["Type"].Name != "Research" {
		t.Errorf("research = %q / %q", research["Title"].Text, research["Type"].Name)
	}

	project := set[notion.CollectionProjects][0].Properties
	if project["Status"].Name != "Planning" {
		t.Errorf("project Status = %q", project["Status"].Name)
	}
	tl := project["Timeline"].Date
	if tl == nil || tl.Start != "2026-03-10" || tl.End != "2026-06-08" {
		t.Errorf("Timeline = %+v", tl)
	}
	pdesc := project["Description"].Text
	for _, want := range []string{"## Project Overview\n" + defaultOverview, "## Goals & Objectives\n- Successfully"} {
		if !strings.Contains(pdesc, want) {
			t.Errorf("project description missing %q", want)
		}
	}
	for _, absent := range []string{"## Project Scope", "## Team & Stakeholders", "## Dependencies & Relationships", "## Reference"} {
		if strings.Contains(pdesc, absent) {
			t.Errorf("project description should omit %q", absent)
		}
	}

	msg := set[notion.CollectionTodo][1].Properties
	if msg["Title"].Text != "Message to Sam: Please send over the signed co..." {
		t.Errorf("message Title = %q", msg["Title"].Text)
	}
	if msg["Priority"].Name != "High" || msg["Due"].Date.Start != "2026-03-10" || msg["Type"].Name != "Message" {
		t.Errorf("message = %+v", msg)
	}
}

func TestProjectTimeline(t *testing.T) {
	tr := newTestTransformer()
	set := tr.Transform(&extract.Result{Projects: []*extract.Project{
		{Name: "Range", Timeline: extract.Timeline{Start: "2026-04-01", End: "2026-05-01"}, URL: "https://example.com", Team: []string{"Ana", "Bo"}, Owner: "Ana"},
		{Name: "Text", Timeline: extract.Timeline{Text: "Q3"}, Dependencies: []string{"Budget approval"}},
	}})
	projects := set[notion.CollectionProjects]

	r := projects[0].Properties
	if r["Timeline"].Date.Start != "2026-04-01" || r["Timeline"].Date.End != "2026-05-01" {
		t.Errorf("range Timeline = %+v", r["Timeline"].Date)
	}
	if !hasTag(r["Tags"].Names, "Has URL") {
		t.Errorf("tags %v missing Has URL", r["Tags"].Names)
	}
	if !strings.Contains(r["Description"].Text, "**Team Members**: Ana, Bo\n**Project Owner**: Ana") {
		t.Errorf("team section missing:\n%s", r["Description"].Text)
	}

	x := projects[1].Properties
	if _, ok := x["Timeline"]; ok {
		t.Error("text timeline should not produce a date")
	}
	if x["Timeline Description"].Text != "Q3" {
		t.Errorf("Timeline Description = %q", x["Timeline Description"].Text)
	}
	if !strings.Contains(x["Description"].Text, "## Dependencies & Relationships\n**Dependencies**:\n- Budget approval") {
		t.Errorf("dependencies section missing:\n%s", x["Description"].Text)
	}
}

func TestTransformEmpty(t *testing.T) {
	set := newTestTransformer().Transform(&extract.Result{})
	if set.Total() != 0 {
		t.Errorf("empty result produced %d records", set.Total())
	}
	if set := newTestTransformer().Transform(nil); set.Total() != 0 {
		t.Errorf("nil result produced %d records", set.Total())
	}
}

func TestLifelogRecord(t *testing.T) {
	tr := newTestTransformer()
	result := &extract.Result{
		Tasks:    []*extract.Task{{Envelope: extract.Envelope{TranscriptID: "b"}, Title: "One", Priority: "high"}},
		Meetings: []*extract.Meeting{{Envelope: extract.Envelope{TranscriptID: "a"}, Title: "M1"}, {Envelope: extract.Envelope{TranscriptID: "b"}, Title: "M2", Date: "2026-03-11"}},
	}
	rec, ok := tr.lifelogRecord(result)
	if !ok {
		t.Fatal("expected a lifelog record")
	}
	p := rec.Properties
	if p["Entry"].Text != "Processed: 1 tasks, 2 meetings" {
		t.Errorf("Entry = %q", p["Entry"].Text)
	}
	if p["Mood"].Name != "Collaborative" {
		t.Errorf("Mood = %q", p["Mood"].Name)
	}
	if *p["Item Count"].Number != 3 {
		t.Errorf("Item Count = %v", *p["Item Count"].Number)
	}
	if strings.Join(p["Tags"].Names, ",") != "Tasks,Meetings" {
		t.Errorf("Tags = %v", p["Tags"].Names)
	}
	notes := p["Notes"].Text
	for _, want := range []string{
		"Processed 3 total items on 2026-03-10:",
		"## Tasks\n- One (Priority: High)",
		"- M1 (Date: No date specified)\n- M2 (Date: 2026-03-11)",
		"## Source Transcripts\n- Transcript ID: a\n- Transcript ID: b",
	} {
		if !strings.Contains(notes, want) {
			t.Errorf("notes missing %q:\n%s", want, notes)
		}
	}

	tests := []struct {
		name   string
		result *extract.Result
		want   string
	}{
		{"projects", &extract.Result{Projects: []*extract.Project{{}}, Research: []*extract.ResearchItem{{}}}, "Creative"},
		{"research", &extract.Result{Research: []*extract.ResearchItem{{}}, Tasks: []*extract.Task{{}}}, "Curious"},
		{"tasks", &extract.Result{Tasks: []*extract.Task{{}}}, "Productive"},
	}
	for _, tt := range tests {
		if got := mood(tt.result); got != tt.want {
			t.Errorf("%s: mood = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestInferProject(t *testing.T) {
	kw := config.DefaultKeywords()
	kw.ProjectCategoryKeywords = map[string][]string{
		"Marketing":   {"campaign", "launch"},
		"Engineering": {"deploy"},
	}
	tr := New(kw, WithClock(func() time.Time { return testNow }))
	task := &extract.Task{
		Envelope: extract.Envelope{TranscriptDetails: &limitless.Details{ActionKeywords: []string{"Deploy"}}},
		Title:    "Ship",
	}
	set := tr.Transform(&extract.Result{Tasks: []*extract.Task{task}})
	if got := set[notion.CollectionTasks][0].Properties["Project"].Name; got != "Engineering" {
		t.Errorf("Project = %q, want Engineering", got)
	}
}

func TestBlockedBy(t *testing.T) {
	tests := []struct {
		name string
		task *extract.Task
		want string
	}{
		{"explicit", &extract.Task{BlockedBy: []string{"API keys"}, Dependencies: []string{"x"}}, "API keys"},
		{"dependencies", &extract.Task{Dependencies: []string{"Design review"}}, "Design review"},
		{"description", &extract.Task{Description: "Cannot start, Blocked by the vendor contract."}, "Blocked by the vendor contract."},
		{"description cut", &extract.Task{Description: "We are waiting for legal to finish reviewing the new supplier agreement"}, "waiting for legal to finish reviewing the"},
		{"none", &extract.Task{Description: "Just do it"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strings.Join(blockedBy(tt.task), ", ")
			if got != tt.want {
				t.Errorf("blockedBy() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPriorityHelpers(t *testing.T) {
	for in, want := range map[string]string{"HIGH": "High", "urgent": "High", "low": "Low", "": "Medium", "whatever": "Medium"} {
		if got := NormalizePriority(in); got != want {
			t.Errorf("NormalizePriority(%q) = %q, want %q", in, got, want)
		}
	}
	for in, want := range map[string]string{"very urgent": "High", "Important": "High", "low key": "Low", "whenever": "Low", "normal": "Medium"} {
		if got := UrgencyPriority(in); got != want {
			t.Errorf("UrgencyPriority(%q) = %q, want %q", in, got, want)
		}
	}
}
