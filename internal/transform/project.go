package transform

import (
	"strings"

	"github.com/mcao2/lifelog-sync/internal/extract"
	"github.com/mcao2/lifelog-sync/internal/notion"
)

const (
	defaultProjectStatus = "Planning"
	defaultOverview      = "This project was created based on transcript content and detected project references."
)

var defaultGoals = []string{
	"Successfully implement and deliver the project as described",
	"Track progress and coordinate efforts related to this project",
}

func (t *Transformer) projectRecord(p *extract.Project, in input) notion.Record {
	raw := p.Name
	if strings.TrimSpace(raw) == "" {
		raw = "Untitled Project"
	}

	overview := p.Description
	if strings.TrimSpace(overview) == "" {
		overview = defaultOverview
	}
	goals := []string(p.Goals)
	if len(goals) == 0 {
		goals = defaultGoals
	}

	var scope []string
	if p.Scope != "" {
		scope = append(scope, p.Scope)
	}
	switch {
	case p.Timeline.IsRange():
		scope = append(scope, "**Timeline**: "+p.Timeline.Start+" to "+p.Timeline.End)
	case p.Timeline.Text != "":
		scope = append(scope, "**Timeline**: "+p.Timeline.Text)
	}

	owner := p.Owner
	if owner == "" {
		owner = p.Manager
	}
	var team []string
	if len(p.Team) > 0 {
		team = append(team, "**Team Members**: "+strings.Join(p.Team, ", "))
	}
	if owner != "" {
		team = append(team, "**Project Owner**: "+owner)
	}

	deps := append(append([]string(nil), p.Dependencies...), p.BlockedBy...)
	var depText string
	if len(deps) > 0 {
		depText = "**Dependencies**:\n" + bulletList(deps)
	}

	var desc sections
	desc.add("Project Overview", overview)
	desc.add("Goals & Objectives", bulletList(goals))
	desc.add("Project Scope", strings.Join(scope, "\n\n"))
	desc.add("Background & Context", in.context)
	desc.add("Team & Stakeholders", strings.Join(team, "\n"))
	desc.add("Dependencies & Relationships", depText)
	t.transcriptSections(&desc, in, "project")

	status := p.Status
	if strings.TrimSpace(status) == "" {
		status = defaultProjectStatus
	}

	explicit := append(append([]string(nil), p.Tags...), p.Categories...)
	props := notion.Properties{
		"Name":         notion.Title(t.title(in.created, raw)),
		"Description":  notion.RichText(desc.String()),
		"Status":       notion.Select(status),
		"Priority":     notion.Select(NormalizePriority(p.Priority)),
		"Created Date": notion.Date(in.created),
		"Owner":        t.people(),
		"Completion":   notion.Number(float64(p.Completion)),
		"Tags": notion.MultiSelect(t.Tags(TagInput{
			ItemType: "project",
			Explicit: explicit,
			Priority: p.Priority,
			URL:      p.URL,
			Details:  in.details,
		})...),
	}

	switch {
	case p.Timeline.IsRange():
		props["Timeline"] = notion.DateRange(p.Timeline.Start, p.Timeline.End)
	case p.Timeline.Text != "":
		props["Timeline Description"] = notion.RichText(p.Timeline.Text)
	case p.Timeline.IsZero():
		props["Timeline"] = notion.DateRange(t.todayString(), t.daysFromToday(defaultProjectDays))
	}
	if len(p.Team) > 0 {
		props["Team"] = notion.RichText(strings.Join(p.Team, ", "))
	}
	if len(p.Updates) > 0 {
		props["Updates"] = notion.RichText(bulletList(p.Updates))
	}
	if p.Budget != "" {
		props["Budget"] = notion.RichText(string(p.Budget))
	}
	if len(deps) > 0 {
		props["Dependencies"] = notion.RichText(strings.Join(deps, ", "))
	}
	if p.URL != "" {
		props["URL"] = notion.RichText(p.URL)
	}

	return notion.Record{
		ItemID:       in.itemID,
		TranscriptID: in.transcriptID,
		Details:      in.details,
		Properties:   props,
	}
}
