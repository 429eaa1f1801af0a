package tui

import "github.com/charmbracelet/lipgloss"

// Styles contains all the lipgloss styles for the TUI.
type Styles struct {
	App lipgloss.Style

	// Title
	Title    lipgloss.Style
	TitleBar lipgloss.Style

	// Panes
	Pane        lipgloss.Style
	PaneFocused lipgloss.Style
	PaneTitle   lipgloss.Style
	Item        lipgloss.Style
	ItemCursor  lipgloss.Style
	ItemActive  lipgloss.Style

	// Editor
	SegmentLabel   lipgloss.Style
	Segment        lipgloss.Style
	SegmentFocused lipgloss.Style
	Cursor         lipgloss.Style

	// Status bar
	StatusBar     lipgloss.Style
	StatusOnline  lipgloss.Style
	StatusOffline lipgloss.Style

	// Content
	Muted   lipgloss.Style
	Error   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style

	Help lipgloss.Style
}

// DefaultStyles returns the default color scheme.
func DefaultStyles() Styles {
	subtle := lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight := lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special := lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	muted := lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}
	text := lipgloss.AdaptiveColor{Light: "#343433", Dark: "#C1C6B2"}

	pane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(subtle).
		Padding(0, 1)

	return Styles{
		App: lipgloss.NewStyle().
			Padding(0, 1),

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(highlight).
			Padding(0, 1),

		TitleBar: lipgloss.NewStyle().
			Foreground(text).
			Background(subtle).
			Padding(0, 1).
			MarginBottom(1),

		Pane: pane,

		PaneFocused: pane.
			BorderForeground(highlight),

		PaneTitle: lipgloss.NewStyle().
			Foreground(muted).
			Bold(true),

		Item: lipgloss.NewStyle().
			PaddingLeft(2),

		ItemCursor: lipgloss.NewStyle().
			Foreground(highlight).
			Bold(true),

		ItemActive: lipgloss.NewStyle().
			Foreground(special),

		SegmentLabel: lipgloss.NewStyle().
			Foreground(muted),

		Segment: lipgloss.NewStyle().
			Foreground(text).
			Padding(0, 1),

		SegmentFocused: lipgloss.NewStyle().
			Foreground(highlight).
			Bold(true).
			Padding(0, 1),

		Cursor: lipgloss.NewStyle().
			Reverse(true),

		StatusBar: lipgloss.NewStyle().
			Foreground(text).
			Background(subtle).
			Padding(0, 1).
			MarginTop(1),

		StatusOnline: lipgloss.NewStyle().
			Foreground(special).
			Bold(true),

		StatusOffline: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true),

		Muted: lipgloss.NewStyle().
			Foreground(muted),

		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")),

		Success: lipgloss.NewStyle().
			Foreground(special),

		Warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFCC00")),

		Help: lipgloss.NewStyle().
			Foreground(muted).
			MarginTop(1),
	}
}
