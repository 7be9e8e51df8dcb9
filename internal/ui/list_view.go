package ui

import (
	"encoding/json"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/mcao2/lifelog-sync/internal/notion"
)

// Item is one target record as shown in the review table
type Item struct {
	Collection   string
	ItemID       string
	TranscriptID string
	Title        string
	Priority     string
	Due          string
	Tags         []string
	Description  string
	JSON         string // property payload as sent to Notion
}

// dueFields are checked in order for the Due column
var dueFields = []string{"Due Date", "Due", "Follow-up Date", "Date", "Timeline"}

// ItemsFromRecords flattens a record set in write order
func ItemsFromRecords(set notion.RecordSet) []Item {
	var items []Item
	for _, c := range notion.Collections {
		for _, rec := range set[c] {
			items = append(items, itemFromRecord(c, rec))
		}
	}
	return items
}

func itemFromRecord(c notion.Collection, rec notion.Record) Item {
	item := Item{
		Collection:   c.String(),
		ItemID:       rec.ItemID,
		TranscriptID: rec.TranscriptID,
		Title:        rec.Properties.TitleText(),
		Priority:     rec.Properties["Priority"].PlainText(),
		Tags:         rec.Properties["Tags"].Names,
		Description:  rec.Properties[notion.DescriptionField(c)].PlainText(),
	}
	for _, name := range dueFields {
		if v := rec.Properties[name].PlainText(); v != "" {
			item.Due = v
			break
		}
	}
	if data, err := json.MarshalIndent(rec.Properties, "", "  "); err == nil {
		item.JSON = string(data)
	}
	return item
}

type ListView struct {
	table       table.Model
	items       []Item
	cursor      int
	width       int
	height      int
	visibleRows int // number of data rows visible (excluding header)

	headerStyle   lipgloss.Style
	cellStyle     lipgloss.Style
	selectedStyle lipgloss.Style
	columns       []table.Column
}

func listColumns(width int) []table.Column {
	// Each cell has Padding(0,1), so 5 columns add 10 chars, plus 2 to stay
	// clear of the terminal edge.
	fixedWidth := 10 + 8 + 12 + 24
	padding := 5*2 + 2
	titleWidth := width - fixedWidth - padding
	if titleWidth < 20 {
		titleWidth = 20
	}
	return []table.Column{
		{Title: "Collection", Width: 10},
		{Title: "Priority", Width: 8},
		{Title: "Due", Width: 12},
		{Title: "Tags", Width: 24},
		{Title: "Title", Width: titleWidth},
	}
}

// reserved lines: header(2) + divider(1) + detail pane + status(1) + footer(2) + table header(2)
func visibleRowsFor(height int) int {
	rows := height - 8 - detailPaneHeight
	if rows < 3 {
		rows = 3
	}
	return rows
}

func NewListView(width, height int) ListView {
	columns := listColumns(width)
	visibleRows := visibleRowsFor(height)

	t := table.New(
		table.WithColumns(columns),
		table.WithHeight(visibleRows+2),
		table.WithFocused(true),
	)

	lv := ListView{
		table:       t,
		width:       width,
		height:      height,
		visibleRows: visibleRows,
		cellStyle:   lipgloss.NewStyle().Padding(0, 1),
		columns:     columns,
	}
	lv.UpdateTableStyles(DefaultTheme)
	return lv
}

// UpdateTableStyles updates the styles to match the theme
func (lv *ListView) UpdateTableStyles(theme Theme) {
	lv.headerStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color(theme.Subtle)).
		BorderBottom(true).
		Bold(true).
		Foreground(lipgloss.Color(theme.Primary))
	lv.selectedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color(theme.Background)).
		Background(lipgloss.Color(theme.Primary)).
		Bold(false)

	s := table.DefaultStyles()
	s.Header = lv.headerStyle
	s.Selected = lv.selectedStyle
	lv.table.SetStyles(s)
}

func (lv *ListView) SetItems(items []Item) {
	lv.items = items
	if lv.cursor >= len(items) {
		lv.cursor = 0
	}
	lv.updateRows()
}

func (lv *ListView) updateRows() {
	rows := make([]table.Row, len(lv.items))
	for i, item := range lv.items {
		rows[i] = table.Row{
			item.Collection,
			getPriorityText(item.Priority),
			item.Due,
			strings.Join(item.Tags, ", "),
			item.Title,
		}
	}
	lv.table.SetRows(rows)
}

func Truncate(s string, maxLen int) string {
	if runewidth.StringWidth(s) > maxLen {
		return runewidth.Truncate(s, maxLen, "…")
	}
	return s
}

func getPriorityText(priority string) string {
	switch strings.ToLower(priority) {
	case "high":
		return "🔴 High"
	case "medium":
		return "🟡 Med"
	case "low":
		return "🟢 Low"
	default:
		return "  —"
	}
}

// detailPaneHeight is the fixed number of lines the detail pane always occupies.
const detailPaneHeight = 4

// DetailView renders a detail pane for the current item, padded to a fixed height.
func (lv *ListView) DetailView(width int, styles Styles) string {
	item := lv.GetItem(lv.cursor)
	if item == nil {
		return ""
	}

	maxWidth := width - 4
	if maxWidth < 20 {
		maxWidth = 20
	}

	lines := []string{styles.Highlight.Render(Truncate(item.Title, maxWidth))}

	var meta []string
	if item.TranscriptID != "" {
		meta = append(meta, "transcript:"+item.TranscriptID)
	}
	if item.ItemID != "" {
		meta = append(meta, "item:"+item.ItemID)
	}
	if len(item.Tags) > 0 {
		meta = append(meta, "tags:"+strings.Join(item.Tags, ","))
	}
	if len(meta) > 0 {
		lines = append(lines, styles.Normal.Render(Truncate(strings.Join(meta, " · "), maxWidth)))
	}

	if desc := strings.Join(strings.Fields(item.Description), " "); desc != "" {
		lines = append(lines, styles.HelpDesc.Render(Truncate(desc, maxWidth)))
	}

	for len(lines) < detailPaneHeight {
		lines = append(lines, "")
	}
	return strings.Join(lines[:detailPaneHeight], "\n")
}

func (lv ListView) Cursor() int {
	return lv.cursor
}

func (lv *ListView) SetCursor(pos int) {
	if pos >= 0 && pos < len(lv.items) {
		lv.cursor = pos
		lv.table.SetCursor(pos)
	}
}

func (lv *ListView) MoveCursor(delta int) {
	newPos := lv.cursor + delta
	if newPos >= 0 && newPos < len(lv.items) {
		lv.cursor = newPos
		lv.table.SetCursor(newPos)
	}
}

func (lv ListView) Len() int {
	return len(lv.items)
}

func (lv ListView) GetItem(index int) *Item {
	if index >= 0 && index < len(lv.items) {
		return &lv.items[index]
	}
	return nil
}

// renderCell renders a single cell value with the given column width.
func (lv *ListView) renderCell(value string, colWidth int) string {
	style := lipgloss.NewStyle().Width(colWidth).MaxWidth(colWidth).Inline(true)
	return lv.cellStyle.Render(style.Render(runewidth.Truncate(value, colWidth, "…")))
}

// View renders the table with its own scrolling window instead of the
// bubbles table viewport.
func (lv ListView) View() string {
	rows := lv.table.Rows()

	headerCells := make([]string, 0, len(lv.columns))
	for _, col := range lv.columns {
		style := lipgloss.NewStyle().Width(col.Width).MaxWidth(col.Width).Inline(true)
		cell := style.Render(runewidth.Truncate(col.Title, col.Width, "…"))
		headerCells = append(headerCells, lv.headerStyle.Render(lv.cellStyle.Render(cell)))
	}
	header := lipgloss.JoinHorizontal(lipgloss.Top, headerCells...)

	visibleRows := lv.visibleRows
	start := 0
	if lv.cursor >= visibleRows {
		start = lv.cursor - visibleRows + 1
	}
	end := start + visibleRows
	if end > len(rows) {
		end = len(rows)
	}

	renderedRows := make([]string, 0, visibleRows)
	for i := start; i < end; i++ {
		cells := make([]string, 0, len(lv.columns))
		for ci, value := range rows[i] {
			cells = append(cells, lv.renderCell(value, lv.columns[ci].Width))
		}
		row := lipgloss.JoinHorizontal(lipgloss.Top, cells...)
		if i == lv.cursor {
			row = lv.selectedStyle.Render(row)
		}
		renderedRows = append(renderedRows, row)
	}

	for len(renderedRows) < visibleRows {
		renderedRows = append(renderedRows, "")
	}

	return header + "\n" + strings.Join(renderedRows, "\n")
}

func (lv *ListView) SetWidthHeight(width, height int) {
	lv.width = width
	lv.height = height
	lv.columns = listColumns(width)
	lv.visibleRows = visibleRowsFor(height)

	lv.table.SetHeight(lv.visibleRows + 2)
	lv.table.SetColumns(lv.columns)
}

func (lv ListView) Update(msg tea.Msg) (ListView, tea.Cmd) {
	var cmd tea.Cmd
	lv.table, cmd = lv.table.Update(msg)
	lv.cursor = lv.table.Cursor()
	return lv, cmd
}
