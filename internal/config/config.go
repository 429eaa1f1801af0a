// Package config provides configuration types, defaults, validation and
// persistence for apdu-utility.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gregLibert/apdu-utility/pkg/reader"
	"github.com/gregLibert/apdu-utility/pkg/session"
	"github.com/pion/logging"
)

// Config holds the user configuration.
type Config struct {
	VendorsDir   string `mapstructure:"vendors_dir"`
	Scope        string `mapstructure:"scope"`      // user, terminal or system
	ShareMode    string `mapstructure:"share_mode"` // shared, exclusive or direct
	Protocol     string `mapstructure:"protocol"`   // any, t0, t1 or raw
	Reader       string `mapstructure:"reader"`     // reader connected at startup, "" for none
	Vendor       string `mapstructure:"vendor"`     // vendor loaded at startup, "" for none
	AutoResponse bool   `mapstructure:"auto_response"`
	LeZero       bool   `mapstructure:"le_zero"` // send an Le of 00 as "up to 256 bytes"
	HistorySize  int    `mapstructure:"history_size"`
	LogFile      string `mapstructure:"log_file"`
	LogLevel     string `mapstructure:"log_level"` // disabled, error, warn, info, debug or trace
}

// Defaults returns the configuration used when no file sets a value.
func Defaults() Config {
	return Config{
		VendorsDir:   DefaultVendorsDir(),
		Scope:        reader.ScopeUser.String(),
		ShareMode:    reader.ShareShared.String(),
		Protocol:     reader.ProtocolAny.String(),
		AutoResponse: false,
		HistorySize:  session.DefaultHistorySize,
		LogFile:      DefaultLogFile(),
		LogLevel:     "info",
	}
}

// DefaultConfigDir returns ~/.config/apdu-utility, or "" if the home
// directory is unknown.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "apdu-utility")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultVendorsDir returns the default vendors directory.
func DefaultVendorsDir() string {
	return filepath.Join(DefaultConfigDir(), "vendors")
}

// DefaultLogFile returns the default log file path.
func DefaultLogFile() string {
	return filepath.Join(DefaultConfigDir(), "apdu-utility.log")
}

// Validate checks every enumerated setting.
func (c Config) Validate() error {
	if c.VendorsDir == "" {
		return fmt.Errorf("vendors_dir is required")
	}
	if _, err := reader.ParseScope(c.Scope); err != nil {
		return fmt.Errorf("scope: %w", err)
	}
	if _, err := reader.ParseShareMode(c.ShareMode); err != nil {
		return fmt.Errorf("share_mode: %w", err)
	}
	if _, err := reader.ParseProtocol(c.Protocol); err != nil {
		return fmt.Errorf("protocol: %w", err)
	}
	if c.HistorySize < 0 {
		return fmt.Errorf("history_size must not be negative, got %d", c.HistorySize)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// ReaderSettings returns the parsed connection settings. Call Validate first.
func (c Config) ReaderSettings() (reader.Scope, reader.ShareMode, reader.Protocol) {
	scope, _ := reader.ParseScope(c.Scope)
	share, _ := reader.ParseShareMode(c.ShareMode)
	protocol, _ := reader.ParseProtocol(c.Protocol)
	return scope, share, protocol
}

var logLevels = map[string]logging.LogLevel{
	"disabled": logging.LogLevelDisabled,
	"error":    logging.LogLevelError,
	"warn":     logging.LogLevelWarn,
	"info":     logging.LogLevelInfo,
	"debug":    logging.LogLevelDebug,
	"trace":    logging.LogLevelTrace,
}

// LogLevelNames lists the accepted log levels, quietest first.
var LogLevelNames = []string{"disabled", "error", "warn", "info", "debug", "trace"}

// ParseLogLevel maps a level name to a pion log level. "" means info.
func ParseLogLevel(s string) (logging.LogLevel, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return logging.LogLevelInfo, nil
	}
	if lvl, ok := logLevels[s]; ok {
		return lvl, nil
	}
	return logging.LogLevelDisabled, fmt.Errorf("invalid level %q (want one of %s)", s, strings.Join(LogLevelNames, ", "))
}
