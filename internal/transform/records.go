package transform

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mcao2/lifelog-sync/internal/extract"
	"github.com/mcao2/lifelog-sync/internal/notion"
)

const (
	taskExcerptLen    = 500
	todoExcerptLen    = 300
	messageTitleLen   = 30
	blockedContextLen = 30
	defaultStatus     = "Not Started"
	defaultPurpose    = "This task is intended to track and complete the work described in this entry."
)

var (
	purposeWords   = []string{"purpose", "goal", "aim", "objective", "intention"}
	blockedPhrases = []string{"blocked by", "depends on", "waiting for", "dependent on", "blocked until"}
	doneStatuses   = map[string]bool{"done": true, "completed": true, "finished": true}
	sentStatuses   = map[string]bool{"sent": true, "completed": true, "done": true}
	clockPattern   = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d(:[0-5]\d)?$`)
)

func (t *Transformer) taskRecord(task *extract.Task, in input) notion.Record {
	d := in.details
	raw := task.Title
	if strings.TrimSpace(raw) == "" {
		raw = "Untitled Task"
	}

	purpose := task.Description
	if !containsAny(strings.ToLower(purpose), purposeWords) {
		purpose = strings.TrimSpace(purpose + "\n\n" + defaultPurpose)
	}
	blocked := blockedBy(task)

	var desc sections
	desc.add("Purpose & Objectives", purpose)
	desc.add("Background & Context", in.context)
	var details []string
	if task.Project != "" {
		details = append(details, "**Project**: "+task.Project)
	}
	if task.DueDate != "" {
		details = append(details, "**Target Completion**: "+task.DueDate)
	}
	if len(blocked) > 0 {
		details = append(details, "**Dependencies**: "+strings.Join(blocked, ", "))
	}
	desc.add("Task Details", strings.Join(details, "\n"))
	t.transcriptSections(&desc, in, "task")

	due := dateOr(task.DueDate, t.daysFromToday(t.dueInDays))
	project := t.projectFor(task.Project, in)
	status := task.Status
	if strings.TrimSpace(status) == "" {
		status = defaultStatus
	}

	props := notion.Properties{
		"Title":        notion.Title(t.title(in.created, raw)),
		"Description":  notion.RichText(desc.String()),
		"Status":       notion.Status(status),
		"Priority":     notion.Select(NormalizePriority(task.Priority)),
		"Created Date": notion.Date(in.created),
		"Due Date":     notion.Date(due),
		"Assignee":     t.people(),
		"Project":      notion.Select(project),
		"Tags": notion.MultiSelect(t.Tags(TagInput{
			ItemType: "task",
			Explicit: task.Tags,
			Priority: task.Priority,
			Project:  task.Project,
			DueDate:  due,
			Details:  d,
		})...),
	}
	if task.EstimatedTime != "" {
		props["Estimated Time"] = notion.RichText(string(task.EstimatedTime))
	}
	if len(task.Updates) > 0 {
		props["Updates"] = notion.RichText(bulletList(task.Updates))
	}
	if len(blocked) > 0 {
		props["Blocked By"] = notion.RichText(strings.Join(blocked, ", "))
	}
	if task.Completion > 0 {
		props["Completion"] = notion.Number(float64(task.Completion))
	}

	return notion.Record{
		ItemID:       in.itemID,
		TranscriptID: in.transcriptID,
		Details:      d,
		Properties:   props,
	}
}

// todoRecord builds the checklist mirror of a task, linked to it by parentID
func (t *Transformer) todoRecord(task *extract.Task, in input, parentID string) notion.Record {
	d := in.details
	raw := task.Title
	if strings.TrimSpace(raw) == "" {
		raw = "Untitled Todo"
	}

	var notes paragraphs
	notes.add("", task.Description)
	notes.add("Context: ", in.context)
	notes.add("Transcript Content:\n", excerpt(d.Content, todoExcerptLen))
	notes.add("Keywords: ", strings.Join(d.Keywords, ", "))
	notes.add("Importance Level: ", string(d.ImportanceLevel))
	notes.add("Source: Transcript ", in.transcriptID)

	done := doneStatuses[strings.ToLower(strings.TrimSpace(task.Status))]
	progress := 0.0
	if done {
		progress = 100
	}
	due := dateOr(task.DueDate, t.daysFromToday(t.dueInDays))

	props := notion.Properties{
		"Title":        notion.Title(t.title(in.created, raw)),
		"Status":       notion.Checkbox(done),
		"Priority":     notion.Select(NormalizePriority(task.Priority)),
		"Created Date": notion.Date(in.created),
		"Due":          notion.Date(due),
		"Notes":        notion.RichText(notes.String()),
		"Assignee":     t.people(),
		"Progress":     notion.Number(progress),
		"Project":      notion.Select(t.projectFor(task.Project, in)),
		"Tags": notion.MultiSelect(t.Tags(TagInput{
			ItemType: "todo",
			Explicit: task.Tags,
			Priority: task.Priority,
			Project:  task.Project,
			DueDate:  due,
			Details:  d,
		})...),
	}
	if task.EstimatedTime != "" {
		props["Estimated Time"] = notion.RichText(string(task.EstimatedTime))
	}
	if len(task.Updates) > 0 {
		props["Updates"] = notion.RichText(bulletList(task.Updates))
	}

	itemID := ""
	if in.itemID != "" {
		itemID = in.itemID + todoIDSuffix
	}
	return notion.Record{
		ItemID:       itemID,
		TranscriptID: in.transcriptID,
		ParentItemID: parentID,
		Details:      d,
		Properties:   props,
	}
}

func (t *Transformer) meetingRecord(m *extract.Meeting, in input) notion.Record {
	raw := m.Title
	if strings.TrimSpace(raw) == "" {
		raw = "Untitled Meeting"
	}

	var desc paragraphs
	desc.add("", m.Description)
	desc.add("Agenda: ", string(m.Agenda))
	desc.add("Participants: ", strings.Join(m.Participants, ", "))
	desc.add("Location: ", m.Location)
	desc.add("Context: ", in.context)
	desc.add("Source: Transcript ", in.transcriptID)

	when := t.daysFromToday(t.dueInDays)
	if notion.ValidDate(m.Date) {
		when = strings.TrimSpace(m.Date)
		if clock := strings.TrimSpace(m.Time); len(when) == len(dateLayout) && clockPattern.MatchString(clock) {
			when += "T" + clock
		}
	}

	props := notion.Properties{
		"Title":        notion.Title(t.title(in.created, "Meeting: "+raw)),
		"Description":  notion.RichText(desc.String()),
		"Status":       notion.Status(defaultStatus),
		"Type":         notion.Select("Meeting"),
		"Priority":     notion.Select(NormalizePriority(m.Priority)),
		"Created Date": notion.Date(in.created),
		"Due Date":     notion.Date(when),
		"Meeting Date": notion.Date(when),
		"Tags": notion.MultiSelect(t.Tags(TagInput{
			ItemType: "meeting",
			Explicit: m.Tags,
			Priority: m.Priority,
			Details:  in.details,
		})...),
	}
	if m.Duration != "" {
		props["Duration"] = notion.RichText(string(m.Duration))
	}
	if m.Recurrence != "" {
		props["Recurrence"] = notion.RichText(m.Recurrence)
	}
	if m.Notes != "" {
		props["Meeting Notes"] = notion.RichText(string(m.Notes))
	}

	return notion.Record{
		ItemID:       in.itemID,
		TranscriptID: in.transcriptID,
		Details:      in.details,
		Properties:   props,
	}
}

func (t *Transformer) researchRecord(r *extract.ResearchItem, in input) notion.Record {
	raw := r.Topic
	if strings.TrimSpace(raw) == "" {
		raw = "Untitled Research"
	}

	var desc paragraphs
	desc.add("", r.Description)
	if len(r.Questions) > 0 {
		desc.add("Questions:\n", bulletList(r.Questions))
	}
	if len(r.Sources) > 0 {
		desc.add("Sources:\n", bulletList(r.Sources))
	}
	desc.add("Context: ", in.context)
	desc.add("Source: Transcript ", in.transcriptID)

	status := r.Status
	if strings.TrimSpace(status) == "" {
		status = defaultStatus
	}
	due := dateOr(r.DueDate, t.daysFromToday(t.dueInDays))

	props := notion.Properties{
		"Title":        notion.Title(t.title(in.created, "Research: "+raw)),
		"Description":  notion.RichText(desc.String()),
		"Status":       notion.Status(status),
		"Type":         notion.Select("Research"),
		"Priority":     notion.Select(NormalizePriority(r.Priority)),
		"Created Date": notion.Date(in.created),
		"Due Date":     notion.Date(due),
		"Tags": notion.MultiSelect(t.Tags(TagInput{
			ItemType: "research",
			Explicit: r.Tags,
			Priority: r.Priority,
			Details:  in.details,
		})...),
	}
	if r.Project != "" {
		props["Project"] = notion.Select(r.Project)
	}
	if r.EstimatedTime != "" {
		props["Estimated Time"] = notion.RichText(string(r.EstimatedTime))
	}

	return notion.Record{
		ItemID:       in.itemID,
		TranscriptID: in.transcriptID,
		Details:      in.details,
		Properties:   props,
	}
}

func (t *Transformer) messageRecord(m *extract.Message, in input) notion.Record {
	preview := m.Content
	if r := []rune(preview); len(r) > messageTitleLen {
		preview = string(r[:messageTitleLen]) + "..."
	}
	raw := fmt.Sprintf("Message to %s: %s", m.Recipient, preview)

	var notes paragraphs
	notes = append(notes, "Message Content: "+m.Content)
	notes.add("Medium: ", m.Medium)
	notes.add("Urgency: ", m.Urgency)
	notes.add("Context: ", in.context)
	notes.add("Source: Transcript ", in.transcriptID)

	priority := UrgencyPriority(m.Urgency)
	props := notion.Properties{
		"Title":        notion.Title(t.title(in.created, raw)),
		"Status":       notion.Checkbox(sentStatuses[strings.ToLower(strings.TrimSpace(m.Status))]),
		"Type":         notion.Select("Message"),
		"Priority":     notion.Select(priority),
		"Created Date": notion.Date(in.created),
		"Due":          notion.Date(dateOr(m.DueDate, t.todayString())),
		"Notes":        notion.RichText(notes.String()),
		"Recipient":    notion.RichText(m.Recipient),
		"Tags": notion.MultiSelect(t.Tags(TagInput{
			ItemType: "message",
			Explicit: m.Tags,
			Priority: priority,
			Details:  in.details,
		})...),
	}
	if m.Medium != "" {
		props["Medium"] = notion.Select(capitalize(m.Medium))
	}
	if notion.ValidDate(m.FollowUpDate) {
		props["Follow-up Date"] = notion.Date(strings.TrimSpace(m.FollowUpDate))
	}

	return notion.Record{
		ItemID:       in.itemID,
		TranscriptID: in.transcriptID,
		Details:      in.details,
		Properties:   props,
	}
}

// transcriptSections appends the transcript excerpt, key topics, priority
// assessment and reference sections shared by tasks and projects.
func (t *Transformer) transcriptSections(desc *sections, in input, noun string) {
	d := in.details
	desc.add("Original Transcript", excerpt(d.Content, taskExcerptLen))
	desc.add("Key Topics & Themes", boldList(d.Keywords, 15))
	if d.ImportanceLevel != "" {
		desc.add("Priority Assessment", fmt.Sprintf(
			"This %s has been assessed as **%s PRIORITY** based on the transcript content and context.",
			noun, strings.ToUpper(string(d.ImportanceLevel))))
	}
	if in.transcriptID != "" {
		desc.add("Reference", "Source: Transcript ID "+in.transcriptID)
	}
}

func (t *Transformer) projectFor(explicit string, in input) string {
	if p := strings.TrimSpace(explicit); p != "" {
		return p
	}
	if p := t.inferProject(in.details); p != "" {
		return p
	}
	return defaultProject
}

// blockedBy returns explicit blockers, then dependencies, then a phrase
// found in the description.
func blockedBy(task *extract.Task) []string {
	if len(task.BlockedBy) > 0 {
		return task.BlockedBy
	}
	if len(task.Dependencies) > 0 {
		return task.Dependencies
	}
	lower := strings.ToLower(task.Description)
	for _, phrase := range blockedPhrases {
		idx := strings.Index(lower, phrase)
		if idx < 0 {
			continue
		}
		// lower-casing can change byte lengths, so cut from the original by runes
		r := []rune(task.Description)
		start := len([]rune(lower[:idx]))
		end := start + len([]rune(phrase)) + blockedContextLen
		if end > len(r) {
			end = len(r)
		}
		if start > len(r) {
			return nil
		}
		return []string{strings.TrimSpace(string(r[start:end]))}
	}
	return nil
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
