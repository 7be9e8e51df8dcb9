package ui

import "github.com/charmbracelet/lipgloss"

// Theme is a named color palette
type Theme struct {
	Primary    string
	Subtle     string
	Background string
	Text       string
	Success    string
	Warning    string
	Error      string
}

// DefaultTheme is the palette used by every view
var DefaultTheme = Theme{
	Primary:    "#7D56F4",
	Subtle:     "#737373",
	Background: "#1A1A1A",
	Text:       "#FAFAFA",
	Success:    "#04B575",
	Warning:    "#F2C94C",
	Error:      "#FF5F56",
}

// Styles holds all the UI styles
type Styles struct {
	Title     lipgloss.Style
	Normal    lipgloss.Style
	Help      lipgloss.Style
	HelpKey   lipgloss.Style
	HelpDesc  lipgloss.Style
	HelpSep   lipgloss.Style
	Highlight lipgloss.Style
	Selected  lipgloss.Style
	Error     lipgloss.Style
	Warning   lipgloss.Style
	Success   lipgloss.Style
	Border    lipgloss.Style
	Label     lipgloss.Style
}

// DefaultStyles returns the default style set
func DefaultStyles() Styles {
	return NewStyles(DefaultTheme)
}

// NewStyles builds the style set for a theme
func NewStyles(theme Theme) Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(theme.Primary)).
			PaddingBottom(1),

		Normal: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Text)),

		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Subtle)).
			Italic(true),

		HelpKey: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(theme.Primary)),

		HelpDesc: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Subtle)),

		HelpSep: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Subtle)),

		Highlight: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(theme.Success)),

		Selected: lipgloss.NewStyle().
			Background(lipgloss.Color(theme.Primary)).
			Foreground(lipgloss.Color(theme.Background)),

		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(theme.Error)),

		Warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Warning)),

		Success: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(theme.Success)),

		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(theme.Primary)).
			Padding(1, 2),

		Label: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Subtle)).
			Width(18),
	}
}
