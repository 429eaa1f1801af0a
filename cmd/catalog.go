package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gregLibert/apdu-utility/pkg/catalog"
	"github.com/gregLibert/apdu-utility/pkg/iso7816"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog <vendor>",
	Short: "Print the commands stored for a vendor",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalog,
}

func init() {
	catalogCmd.Flags().Bool("describe", false, "decode every command header")
	rootCmd.AddCommand(catalogCmd)
}

func runCatalog(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	describe, _ := cmd.Flags().GetBool("describe")
	out := cmd.OutOrStdout()

	store := catalog.NewStore(catalog.StoreConfig{Dir: cfg.VendorsDir})
	c, err := store.LoadVendor(args[0])
	if err != nil {
		return err
	}

	entries := c.Entries()
	if len(entries) == 0 {
		fmt.Fprintf(out, "Vendor %s has no command\n", c.Vendor())
		return nil
	}

	if describe {
		for _, e := range entries {
			fmt.Fprintf(out, "# %s\n%s\n\n", e.Name, iso7816.Describe(e.Command))
		}
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.Name, e.Command.Hex()})
	}
	fmt.Fprintln(out, renderTable([]string{"Name", "APDU"}, rows))
	return nil
}
