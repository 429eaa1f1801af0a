package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/gregLibert/apdu-utility/pkg/catalog"
	"github.com/gregLibert/apdu-utility/pkg/vendors"
)

var vendorsCmd = &cobra.Command{
	Use:   "vendors",
	Short: "List the vendor catalogs",
	Args:  cobra.NoArgs,
	RunE:  runVendors,
}

func init() {
	rootCmd.AddCommand(vendorsCmd)
}

func runVendors(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	out := cmd.OutOrStdout()

	names, err := vendors.List(cfg.VendorsDir)
	if err != nil {
		return fmt.Errorf("listing vendors: %w", err)
	}
	if len(names) == 0 {
		fmt.Fprintf(out, "No vendor in %s\n", cfg.VendorsDir)
		return nil
	}

	store := catalog.NewStore(catalog.StoreConfig{Dir: cfg.VendorsDir})
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		c, err := store.LoadVendor(name)
		if err != nil {
			rows = append(rows, []string{name, "-", err.Error()})
			continue
		}
		rows = append(rows, []string{name, strconv.Itoa(c.Len()), store.Path(name)})
	}
	fmt.Fprintln(out, renderTable([]string{"Vendor", "Commands", "File"}, rows))
	return nil
}
