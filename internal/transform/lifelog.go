package transform

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mcao2/lifelog-sync/internal/extract"
	"github.com/mcao2/lifelog-sync/internal/notion"
)

const messagePreviewLen = 50

// lifelogRecord summarizes a run's extraction. It reports false when
// nothing was extracted.
func (t *Transformer) lifelogRecord(r *extract.Result) (notion.Record, bool) {
	total := r.Total()
	if total == 0 {
		return notion.Record{}, false
	}
	today := t.todayString()

	var counts, tags []string
	for _, c := range extract.AllCategories {
		if n := r.Count(c); n > 0 {
			counts = append(counts, fmt.Sprintf("%d %s", n, c))
			tags = append(tags, capitalize(c.String()))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Processed %d total items on %s:\n", total, today)
	b.WriteString(bulletList(counts))

	section := func(heading string, lines []string) {
		if len(lines) == 0 {
			return
		}
		b.WriteString("\n\n## " + heading + "\n")
		b.WriteString(bulletList(lines))
	}

	var lines []string
	for _, task := range r.Tasks {
		lines = append(lines, fmt.Sprintf("%s (Priority: %s)", orDefault(task.Title, "Untitled Task"), NormalizePriority(task.Priority)))
	}
	section("Tasks", lines)

	lines = nil
	for _, m := range r.Meetings {
		lines = append(lines, fmt.Sprintf("%s (Date: %s)", orDefault(m.Title, "Untitled Meeting"), orDefault(m.Date, "No date specified")))
	}
	section("Meetings", lines)

	lines = nil
	for _, p := range r.Projects {
		lines = append(lines, fmt.Sprintf("%s (Status: %s)", orDefault(p.Name, "Untitled Project"), orDefault(p.Status, defaultProjectStatus)))
	}
	section("Projects", lines)

	lines = nil
	for _, res := range r.Research {
		lines = append(lines, orDefault(res.Topic, "Untitled Research"))
	}
	section("Research", lines)

	lines = nil
	for _, m := range r.Messages {
		lines = append(lines, fmt.Sprintf("To %s: %s", m.Recipient, excerpt(m.Content, messagePreviewLen)))
	}
	section("Messages", lines)

	seen := make(map[string]bool)
	var sources []string
	for _, item := range r.All() {
		id := item.Base().TranscriptID
		if id != "" && !seen[id] {
			seen[id] = true
			sources = append(sources, "Transcript ID: "+id)
		}
	}
	sort.Strings(sources)
	section("Source Transcripts", sources)

	props := notion.Properties{
		"Entry":      notion.Title("Processed: " + strings.Join(counts, ", ")),
		"Date":       notion.Date(today),
		"Notes":      notion.RichText(b.String()),
		"Category":   notion.Select("Productivity"),
		"Mood":       notion.Select(mood(r)),
		"Item Count": notion.Number(float64(total)),
		"Tags":       notion.MultiSelect(tags...),
	}
	return notion.Record{Properties: props}, true
}

func mood(r *extract.Result) string {
	switch {
	case len(r.Projects) > 0:
		return "Creative"
	case len(r.Research) > 0:
		return "Curious"
	case len(r.Meetings) > len(r.Tasks):
		return "Collaborative"
	}
	return "Productive"
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
