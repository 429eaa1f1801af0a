package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/gregLibert/apdu-utility/internal/config"
	"github.com/gregLibert/apdu-utility/pkg/reader"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Edit the configuration interactively",
	Args:  cobra.NoArgs,
	RunE:  runSettings,
}

func init() {
	rootCmd.AddCommand(settingsCmd)
}

// settingsForm holds the form values; numbers are edited as text.
type settingsForm struct {
	cfg     config.Config
	history string
}

func newSettingsForm(c config.Config) *settingsForm {
	return &settingsForm{cfg: c, history: strconv.Itoa(c.HistorySize)}
}

func validateHistory(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return errors.New("enter a positive number")
	}
	return nil
}

func validateDir(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("a directory is required")
	}
	return nil
}

func (f *settingsForm) build() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Vendors directory").
				Description("Where vendor catalogs are stored, one JSON file per vendor.").
				Value(&f.cfg.VendorsDir).
				Validate(validateDir),
			huh.NewInput().
				Title("Default vendor").
				Description("Loaded at startup. Leave empty for none.").
				Value(&f.cfg.Vendor),
			huh.NewInput().
				Title("Default reader").
				Description("Connected at startup. Leave empty for none.").
				Value(&f.cfg.Reader),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Context scope").
				Options(huh.NewOptions(reader.ScopeNames()...)...).
				Value(&f.cfg.Scope),
			huh.NewSelect[string]().
				Title("Share mode").
				Options(huh.NewOptions(reader.ShareModeNames()...)...).
				Value(&f.cfg.ShareMode),
			huh.NewSelect[string]().
				Title("Protocol").
				Options(huh.NewOptions(reader.ProtocolNames()...)...).
				Value(&f.cfg.Protocol),
			huh.NewConfirm().
				Title("Handle 61XX and 6CXX automatically").
				Affirmative("Yes").
				Negative("No").
				Value(&f.cfg.AutoResponse),
			huh.NewConfirm().
				Title("Send Le 00").
				Description("Le 00 asks for up to 256 bytes. When off, an Le of 00 is left out.").
				Affirmative("Yes").
				Negative("No").
				Value(&f.cfg.LeZero),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("History size").
				Description("Exchanges kept per session.").
				Value(&f.history).
				Validate(validateHistory),
			huh.NewSelect[string]().
				Title("Log level").
				Options(huh.NewOptions(config.LogLevelNames...)...).
				Value(&f.cfg.LogLevel),
		),
	)
}

// result returns the edited configuration.
func (f *settingsForm) result() (config.Config, error) {
	c := f.cfg
	c.VendorsDir = strings.TrimSpace(c.VendorsDir)
	c.Vendor = strings.TrimSpace(c.Vendor)
	c.Reader = strings.TrimSpace(c.Reader)
	n, err := strconv.Atoi(strings.TrimSpace(f.history))
	if err != nil {
		return c, fmt.Errorf("history_size: %w", err)
	}
	c.HistorySize = n
	return c, c.Validate()
}

func runSettings(cmd *cobra.Command, args []string) error {
	form := newSettingsForm(cfg)
	if err := form.build().Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		return err
	}

	updated, err := form.result()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	path := configPath()
	if err := config.SaveConfig(path, updated); err != nil {
		return err
	}
	cfg = updated
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", path)
	return nil
}
