package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mcao2/lifelog-sync/internal/pipeline"
)

type State int

const (
	StateLoading State = iota
	StateReviewing
	StateMessage
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "Loading"
	case StateReviewing:
		return "Reviewing"
	case StateMessage:
		return "Message"
	default:
		return "Unknown"
	}
}

// LoadFunc produces the records to review, normally a dry run of the pipeline
type LoadFunc func(ctx context.Context) (*pipeline.Summary, error)

// Model is the review screen: it runs the loader behind a spinner, then lists
// the target records that a real run would write.
type Model struct {
	state  State
	width  int
	height int
	styles Styles
	keys   KeyMap

	showHelp bool
	showJSON bool

	load     LoadFunc
	copy     func(string) error
	summary  *pipeline.Summary
	listView ListView
	spinner  spinner.Model

	statusMessage string
	messageType   string
}

func NewModel(load LoadFunc) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(DefaultTheme.Primary))

	return &Model{
		state:    StateLoading,
		styles:   DefaultStyles(),
		keys:     DefaultKeyMap(),
		load:     load,
		copy:     clipboard.WriteAll,
		listView: NewListView(80, 24),
		spinner:  s,
	}
}

type RecordsLoadedMsg struct {
	Summary *pipeline.Summary
}

type ErrorMsg struct {
	Error error
}

type CopiedMsg struct {
	Title string
	Err   error
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadRecords())
}

func (m *Model) loadRecords() tea.Cmd {
	load := m.load
	return func() tea.Msg {
		if load == nil {
			return ErrorMsg{Error: fmt.Errorf("nothing to load")}
		}
		sum, err := load(context.Background())
		if err != nil {
			return ErrorMsg{Error: err}
		}
		return RecordsLoadedMsg{Summary: sum}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.listView.SetWidthHeight(msg.Width, msg.Height)

	case spinner.TickMsg:
		if m.state != StateLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case RecordsLoadedMsg:
		m.summary = msg.Summary
		var items []Item
		if msg.Summary != nil {
			items = ItemsFromRecords(msg.Summary.Records)
		}
		if len(items) == 0 {
			m.statusMessage = "No records would be written for this window"
			m.messageType = "info"
			m.state = StateMessage
			return m, nil
		}
		m.listView.SetItems(items)
		m.statusMessage = fmt.Sprintf("%d records from %d transcripts (dry run)", len(items), msg.Summary.Relevant)
		m.state = StateReviewing

	case ErrorMsg:
		m.statusMessage = msg.Error.Error()
		m.messageType = "error"
		m.state = StateMessage

	case CopiedMsg:
		if msg.Err != nil {
			m.statusMessage = fmt.Sprintf("Copy failed: %v", msg.Err)
		} else {
			m.statusMessage = fmt.Sprintf("Copied %q to clipboard", Truncate(msg.Title, 40))
		}
	}

	return m, nil
}

func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case keyMatches(msg, m.keys.Quit):
		return m, tea.Quit
	case keyMatches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m, nil
	}

	switch m.state {
	case StateReviewing:
		return m.handleReviewingKeys(msg)
	case StateMessage:
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleReviewingKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case keyMatches(msg, m.keys.Up):
		m.listView.MoveCursor(-1)
	case keyMatches(msg, m.keys.Down):
		m.listView.MoveCursor(1)
	case keyMatches(msg, m.keys.Top):
		m.listView.SetCursor(0)
	case keyMatches(msg, m.keys.Bottom):
		m.listView.SetCursor(m.listView.Len() - 1)
	case keyMatches(msg, m.keys.Detail):
		m.showJSON = !m.showJSON
	case keyMatches(msg, m.keys.Copy):
		return m, m.copyCurrent()
	}
	return m, nil
}

func (m *Model) copyCurrent() tea.Cmd {
	item := m.listView.GetItem(m.listView.Cursor())
	if item == nil {
		return nil
	}
	copyFn, title, data := m.copy, item.Title, item.JSON
	return func() tea.Msg {
		return CopiedMsg{Title: title, Err: copyFn(data)}
	}
}

func (m *Model) View() string {
	var content string
	centered := true

	switch m.state {
	case StateLoading:
		content = m.loadingView()
	case StateReviewing:
		content = m.reviewingView()
		centered = false
	case StateMessage:
		content = m.messageView()
	default:
		return "Unknown state"
	}

	if centered && m.width > 0 && m.height > 0 {
		content = lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	return content
}

func (m *Model) loadingView() string {
	status := fmt.Sprintf("%s Fetching and extracting transcripts...", m.spinner.View())
	content := m.styles.Border.Render(
		lipgloss.JoinVertical(lipgloss.Center,
			m.styles.Title.Render("Preparing Review"),
			m.styles.Normal.Render(status),
		),
	)
	help := m.renderHelpLine([]helpEntry{{"q", "cancel"}})
	return lipgloss.JoinVertical(lipgloss.Center, "", content, "", help)
}

func (m *Model) reviewingView() string {
	width := m.width
	if width <= 0 {
		width = 80
	}

	header := m.styles.Title.Render("Lifelog Review")
	if m.summary != nil {
		header += m.styles.Help.Render(fmt.Sprintf("  %d fetched · %d relevant · %d items",
			m.summary.Fetched, m.summary.Relevant, m.summary.TotalItems()))
	}

	var pane string
	if m.showJSON {
		pane = m.jsonView(width)
	} else {
		pane = m.listView.DetailView(width, m.styles)
	}

	parts := []string{
		header,
		m.listView.View(),
		m.styles.HelpSep.Render(strings.Repeat("─", width)),
		pane,
		m.styles.Normal.Render(m.statusMessage),
	}
	if m.showHelp {
		parts = append(parts, m.renderFullHelp())
	} else {
		parts = append(parts, m.renderHelpLine([]helpEntry{
			{"j/k", "navigate"},
			{"enter", "json"},
			{"c", "copy json"},
			{"?", "help"},
			{"q", "quit"},
		}))
	}
	return strings.Join(parts, "\n")
}

// jsonView shows the first lines of the current record's payload in the
// detail pane's space.
func (m *Model) jsonView(width int) string {
	item := m.listView.GetItem(m.listView.Cursor())
	if item == nil {
		return ""
	}
	lines := strings.Split(item.JSON, "\n")
	if len(lines) > detailPaneHeight {
		lines = append(lines[:detailPaneHeight-1], "…")
	}
	for i, l := range lines {
		lines[i] = m.styles.HelpDesc.Render(Truncate(l, width-2))
	}
	for len(lines) < detailPaneHeight {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (m *Model) messageView() string {
	var icon, title string
	var titleStyle lipgloss.Style

	switch m.messageType {
	case "error":
		icon, title = "✗", "Error"
		titleStyle = m.styles.Error
	default:
		icon, title = "·", "Nothing to review"
		titleStyle = m.styles.Warning
	}

	content := m.styles.Border.Render(
		lipgloss.JoinVertical(lipgloss.Center,
			titleStyle.Render(icon+" "+title),
			"",
			m.styles.Normal.Render(m.statusMessage),
		),
	)
	help := m.renderHelpLine([]helpEntry{{"any key", "quit"}})
	return lipgloss.JoinVertical(lipgloss.Center, "", content, "", help)
}

type helpEntry struct {
	key  string
	desc string
}

func (m *Model) renderHelpLine(entries []helpEntry) string {
	var parts []string
	sep := m.styles.HelpSep.Render(" · ")
	for _, e := range entries {
		parts = append(parts, m.styles.HelpKey.Render(e.key)+" "+m.styles.HelpDesc.Render(e.desc))
	}
	return strings.Join(parts, sep)
}

func (m *Model) renderFullHelp() string {
	var lines []string
	for _, b := range m.keys.Keys() {
		h := b.Help()
		lines = append(lines, m.styles.HelpKey.Render(fmt.Sprintf("%-8s", h.Key))+" "+m.styles.HelpDesc.Render(h.Desc))
	}
	return strings.Join(lines, "\n")
}

func keyMatches(msg tea.KeyMsg, target key.Binding) bool {
	for _, k := range target.Keys() {
		if msg.String() == k {
			return true
		}
	}
	return false
}
