package cmd

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/gregLibert/apdu-utility/pkg/catalog"
	"github.com/gregLibert/apdu-utility/pkg/session"
)

var sendCmd = &cobra.Command{
	Use:   "send [vendor command]",
	Short: "Send a stored command, or raw hex, to a card",
	Example: `  apdu-utility send acme select_ppse
  apdu-utility send --hex "00 A4 04 00 00 325041592E5359532E4444463031"`,
	Args: func(cmd *cobra.Command, args []string) error {
		if raw, _ := cmd.Flags().GetString("hex"); raw != "" {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(2)(cmd, args)
	},
	RunE: runSend,
}

func init() {
	sendCmd.Flags().String("hex", "",
		"command digits in editor order: CLA INS P1 P2 Le then data")
	sendCmd.Flags().Bool("le-zero", false,
		"send an Le of 00, asking for up to 256 bytes")
	sendCmd.Flags().String("reader", "",
		"reader to use (default: configured reader, then the first one found)")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	raw, _ := cmd.Flags().GetString("hex")
	readerName, _ := cmd.Flags().GetString("reader")
	if leZero, _ := cmd.Flags().GetBool("le-zero"); leZero {
		cfg.LeZero = true
	}
	out := cmd.OutOrStdout()

	return withSession(func(s *session.Session) error {
		if raw != "" {
			s.Editor().Clear()
			if err := s.Editor().PasteText(raw); err != nil {
				return fmt.Errorf("parsing --hex: %w", err)
			}
		} else if err := selectStored(s, args[0], args[1]); err != nil {
			return err
		}

		name, err := pickReader(s, readerName)
		if err != nil {
			return err
		}
		st, err := s.Connect(name)
		if err != nil {
			return fmt.Errorf("connecting to %s: %w", name, err)
		}
		fmt.Fprintf(out, "%s\n\n", st)

		trace, err := s.Transmit()
		printTrace(out, trace)
		if err != nil {
			return fmt.Errorf("transmit: %w", err)
		}
		return nil
	})
}

func selectStored(s *session.Session, vendor, command string) error {
	if err := s.SwitchVendor(vendor); err != nil {
		return err
	}
	i := slices.IndexFunc(s.Entries(), func(e catalog.Entry) bool { return e.Name == command })
	if i < 0 {
		return fmt.Errorf("command %q in vendor %s: %w", command, vendor, catalog.ErrNotFound)
	}
	return s.Select(i)
}

func pickReader(s *session.Session, name string) (string, error) {
	if name == "" {
		name = cfg.Reader
	}
	if name != "" {
		return name, nil
	}

	readers, err := s.Readers()
	if err != nil {
		return "", fmt.Errorf("listing readers: %w", err)
	}
	if len(readers) == 0 {
		return "", errors.New("no reader found")
	}
	return readers[0], nil
}
