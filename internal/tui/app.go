package tui

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gregLibert/apdu-utility/pkg/session"
)

// Run starts the TUI application and returns when the user quits. The caller
// owns the session and must shut it down.
func Run(s *session.Session, opts Options) error {
	m := NewModel(s, opts)
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		return err
	}

	return nil
}
