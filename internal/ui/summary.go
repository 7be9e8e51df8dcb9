package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mcao2/lifelog-sync/internal/extract"
	"github.com/mcao2/lifelog-sync/internal/notion"
	"github.com/mcao2/lifelog-sync/internal/pipeline"
)

// RenderSummary renders a run summary as a bordered box. A summary with
// FirstError set is rendered as a failure summary.
func RenderSummary(sum *pipeline.Summary, styles Styles) string {
	if sum == nil {
		return ""
	}

	var title string
	switch {
	case sum.FirstError != nil && sum.TotalCreated() == 0 && sum.Failed == 0:
		title = styles.Error.Render("✗ Sync failed")
	case sum.FirstError != nil:
		title = styles.Warning.Render("! Sync finished with errors")
	case sum.DryRun:
		title = styles.Highlight.Render("✓ Dry run complete")
	default:
		title = styles.Success.Render("✓ Sync complete")
	}

	row := func(label string, value any) string {
		return styles.Label.Render(label) + styles.Normal.Render(fmt.Sprint(value))
	}

	lines := []string{
		title,
		"",
		row("Transcripts", fmt.Sprintf("%d fetched, %d relevant", sum.Fetched, sum.Relevant)),
		row("Archived", fmt.Sprintf("%d new, %d marked", sum.Archived, sum.Marked)),
		row("Items", itemCounts(sum)),
	}

	if sum.DryRun {
		lines = append(lines, row("Records", sum.Records.Total()))
	} else {
		lines = append(lines, row("Pages created", createdCounts(sum)))
		if sum.Failed > 0 {
			lines = append(lines, row("Failed", styles.Error.Render(fmt.Sprint(sum.Failed))))
		}
		if sum.Skipped > 0 {
			lines = append(lines, row("Skipped", styles.Warning.Render(fmt.Sprint(sum.Skipped))))
		}
	}
	if sum.Duration > 0 {
		lines = append(lines, row("Duration", sum.Duration.Round(10*time.Millisecond)))
	}
	if sum.FirstError != nil {
		lines = append(lines, "", styles.Error.Render("First error: ")+styles.Normal.Render(Truncate(sum.FirstError.Error(), 100)))
	}

	return styles.Border.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func itemCounts(sum *pipeline.Summary) string {
	var parts []string
	for _, c := range extract.AllCategories {
		if n := sum.Items[c]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, c))
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

func createdCounts(sum *pipeline.Summary) string {
	var parts []string
	for _, c := range notion.Collections {
		if n := sum.Created[c]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, c))
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}
