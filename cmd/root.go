package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/pion/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gregLibert/apdu-utility/internal/config"
	"github.com/gregLibert/apdu-utility/internal/tui"
	"github.com/gregLibert/apdu-utility/pkg/catalog"
	"github.com/gregLibert/apdu-utility/pkg/reader"
	"github.com/gregLibert/apdu-utility/pkg/session"
	"github.com/gregLibert/apdu-utility/pkg/vendors"
)

var (
	version = "dev"
	cfgFile string
	cfg     config.Config
	virtual bool
)

// queryBackground asks the terminal for its background color. It runs right
// before the TUI starts so the OSC 11 reply cannot land in an input field.
var queryBackground = func() { _ = lipgloss.HasDarkBackground() }

var rootCmd = &cobra.Command{
	Use:     "apdu-utility",
	Short:   "Edit, store and send smart card APDUs",
	Long:    `A terminal editor for ISO 7816 command APDUs. Commands are grouped per vendor, stored as JSON and sent to a PC/SC reader.`,
	Version: version,
	RunE:    runApp,

	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/apdu-utility/config.yaml)")
	rootCmd.PersistentFlags().String("vendors-dir", "",
		"directory holding the vendor catalogs")
	rootCmd.PersistentFlags().String("log-level", "",
		"log level: "+fmt.Sprint(config.LogLevelNames))
	rootCmd.PersistentFlags().BoolVar(&virtual, "virtual", false,
		"use an in-memory echo card instead of PC/SC")
	rootCmd.Flags().String("vendor", "", "vendor to load at startup")
	rootCmd.Flags().String("reader", "", "reader to connect at startup")

	// Bind flags to viper
	_ = viper.BindPFlag("vendors_dir", rootCmd.PersistentFlags().Lookup("vendors-dir"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("vendor", rootCmd.Flags().Lookup("vendor"))
	_ = viper.BindPFlag("reader", rootCmd.Flags().Lookup("reader"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("vendors_dir", defaults.VendorsDir)
	viper.SetDefault("scope", defaults.Scope)
	viper.SetDefault("share_mode", defaults.ShareMode)
	viper.SetDefault("protocol", defaults.Protocol)
	viper.SetDefault("reader", defaults.Reader)
	viper.SetDefault("vendor", defaults.Vendor)
	viper.SetDefault("auto_response", defaults.AutoResponse)
	viper.SetDefault("le_zero", defaults.LeZero)
	viper.SetDefault("history_size", defaults.HistorySize)
	viper.SetDefault("log_file", defaults.LogFile)
	viper.SetDefault("log_level", defaults.LogLevel)

	viper.SetEnvPrefix("APDU")
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(config.DefaultConfigDir())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Warning: reading config: %v\n", err)
		}
	}

	_ = viper.Unmarshal(&cfg)
}

// configPath returns the file preferences are written back to.
func configPath() string {
	if p := viper.ConfigFileUsed(); p != "" {
		return p
	}
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// openLogger opens the log file. The TUI owns the terminal, so logs never go
// to stderr while it runs. A nil factory means logging is disabled.
func openLogger() (logging.LoggerFactory, func() error, error) {
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	if level == logging.LogLevelDisabled || cfg.LogFile == "" {
		return nil, func() error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	factory := logging.NewDefaultLoggerFactory()
	factory.Writer = f
	factory.DefaultLogLevel = level
	return factory, f.Close, nil
}

func newExecutor(lf logging.LoggerFactory) reader.Executor {
	if virtual {
		return reader.NewVirtual(reader.VirtualConfig{
			AutoResponse:  cfg.AutoResponse,
			LoggerFactory: lf,
		})
	}
	return reader.NewPCSC(reader.PCSCConfig{
		AutoResponse:  cfg.AutoResponse,
		LoggerFactory: lf,
	})
}

func newSession(lf logging.LoggerFactory) (*session.Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	scope, share, protocol := cfg.ReaderSettings()
	return session.New(session.Config{
		Store: catalog.NewStore(catalog.StoreConfig{
			Dir:           cfg.VendorsDir,
			LoggerFactory: lf,
		}),
		Executor:      newExecutor(lf),
		Scope:         scope,
		ShareMode:     share,
		Protocol:      protocol,
		LeZero:        cfg.LeZero,
		HistorySize:   cfg.HistorySize,
		LoggerFactory: lf,
	}), nil
}

func runApp(cmd *cobra.Command, args []string) error {
	lf, closeLog, err := openLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	var log logging.LeveledLogger
	if lf != nil {
		log = lf.NewLogger("app")
	}

	s, err := newSession(lf)
	if err != nil {
		return err
	}

	if cfg.Vendor != "" {
		if err := s.SwitchVendor(cfg.Vendor); err != nil && log != nil {
			log.Warnf("Failed to load vendor %s: %v", cfg.Vendor, err)
		}
	}
	if cfg.Reader != "" {
		if _, err := s.Connect(cfg.Reader); err != nil && log != nil {
			log.Warnf("Failed to connect to %s: %v", cfg.Reader, err)
		}
	}

	opts := tui.Options{VendorsDir: cfg.VendorsDir}

	if ch, stop, err := watchVendors(lf); err == nil {
		opts.Watch = ch
		defer stop()
	} else if log != nil {
		log.Warnf("Vendor directory watch disabled: %v", err)
	}

	queryBackground()
	err = tui.Run(s, opts)

	// Remember where the user left off.
	connected := ""
	if st, ok := s.Connection(); ok {
		connected = st.Reader
	}
	if saveErr := config.SaveSession(configPath(), s.Vendor(), connected); saveErr != nil && log != nil {
		log.Warnf("Failed to save session: %v", saveErr)
	}

	if shutdownErr := s.Shutdown(); shutdownErr != nil {
		err = errors.Join(err, fmt.Errorf("shutting down: %w", shutdownErr))
	}
	if err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}

// watchVendors starts watching the vendors directory, creating it first so
// the first vendor added from the TUI is seen.
func watchVendors(lf logging.LoggerFactory) (<-chan struct{}, func() error, error) {
	if err := os.MkdirAll(cfg.VendorsDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating vendors directory: %w", err)
	}

	watchCfg := vendors.DefaultWatcherConfig(cfg.VendorsDir)
	watchCfg.LoggerFactory = lf
	watcher, err := vendors.NewWatcher(watchCfg)
	if err != nil {
		return nil, nil, err
	}
	ch, err := watcher.Start()
	if err != nil {
		_ = watcher.Stop()
		return nil, nil, err
	}
	return ch, watcher.Stop, nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
