package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gregLibert/apdu-utility/pkg/session"
)

var readersCmd = &cobra.Command{
	Use:   "readers",
	Short: "List the available card readers",
	Args:  cobra.NoArgs,
	RunE:  runReaders,
}

func init() {
	readersCmd.Flags().Bool("atr", false, "connect to each reader and print the card status")
	rootCmd.AddCommand(readersCmd)
}

func runReaders(cmd *cobra.Command, args []string) error {
	showATR, _ := cmd.Flags().GetBool("atr")
	out := cmd.OutOrStdout()

	return withSession(func(s *session.Session) error {
		names, err := s.Readers()
		if err != nil {
			return fmt.Errorf("listing readers: %w", err)
		}
		if len(names) == 0 {
			fmt.Fprintln(out, "No reader found")
			return nil
		}

		if !showATR {
			for _, name := range names {
				fmt.Fprintln(out, name)
			}
			return nil
		}

		rows := make([][]string, 0, len(names))
		for _, name := range names {
			st, err := s.Connect(name)
			if err != nil {
				rows = append(rows, []string{name, "-", err.Error()})
				continue
			}
			rows = append(rows, []string{name, st.Protocol.String(), fmt.Sprintf("%X", st.ATR)})
		}
		fmt.Fprintln(out, renderTable([]string{"Reader", "Protocol", "ATR"}, rows))
		return nil
	})
}
