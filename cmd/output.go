package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gregLibert/apdu-utility/pkg/iso7816"
	"github.com/gregLibert/apdu-utility/pkg/session"
	"github.com/gregLibert/apdu-utility/pkg/tlv"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"})
)

// withSession runs fn against a fresh session and shuts it down afterwards.
func withSession(fn func(s *session.Session) error) error {
	lf, closeLog, err := openLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	s, err := newSession(lf)
	if err != nil {
		return err
	}

	err = fn(s)
	if shutdownErr := s.Shutdown(); shutdownErr != nil {
		err = errors.Join(err, fmt.Errorf("shutting down: %w", shutdownErr))
	}
	return err
}

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...).
		String()
}

// printTrace writes every exchange of trace followed by the decoded final
// response.
func printTrace(w io.Writer, trace iso7816.Trace) {
	for _, tx := range trace {
		fmt.Fprintf(w, ">> %s\n", tx.Command.Hex())
		if tx.Response == nil {
			fmt.Fprintln(w, "<< (no response)")
			continue
		}
		fmt.Fprintf(w, "<< %s %s\n", strings.ToUpper(hex.EncodeToString(tx.Response.Data)), tx.Response.Status)
	}

	resp := trace.Response()
	if resp == nil {
		return
	}
	fmt.Fprintf(w, "\n%s\n", resp.Status.Verbose())
	if len(resp.Data) == 0 {
		return
	}
	if desc, err := tlv.Describe(resp.Data); err == nil {
		fmt.Fprintf(w, "\n%s\n", desc)
	} else {
		fmt.Fprintf(w, "\n%s\n", tlv.MakeSafeASCII(resp.Data))
	}
}
