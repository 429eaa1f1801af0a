package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pion/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/gregLibert/apdu-utility/pkg/reader"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "user", cfg.Scope)
	assert.Equal(t, "shared", cfg.ShareMode)
	assert.Equal(t, "any", cfg.Protocol)
	assert.False(t, cfg.AutoResponse)
	assert.False(t, cfg.LeZero)
	assert.Equal(t, 100, cfg.HistorySize)
	assert.True(t, strings.HasSuffix(cfg.VendorsDir, filepath.Join("apdu-utility", "vendors")))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"Valid", func(*Config) {}, ""},
		{"Missing vendors dir", func(c *Config) { c.VendorsDir = "" }, "vendors_dir"},
		{"Bad scope", func(c *Config) { c.Scope = "global" }, "scope"},
		{"Bad share mode", func(c *Config) { c.ShareMode = "open" }, "share_mode"},
		{"Bad protocol", func(c *Config) { c.Protocol = "t2" }, "protocol"},
		{"Negative history", func(c *Config) { c.HistorySize = -1 }, "history_size"},
		{"Bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"Case insensitive", func(c *Config) { c.Protocol = "T1"; c.Scope = "System" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReaderSettings(t *testing.T) {
	cfg := Defaults()
	cfg.Scope, cfg.ShareMode, cfg.Protocol = "system", "exclusive", "t0"

	scope, share, protocol := cfg.ReaderSettings()
	assert.Equal(t, reader.ScopeSystem, scope)
	assert.Equal(t, reader.ShareExclusive, share)
	assert.Equal(t, reader.ProtocolT0, protocol)
}

func TestParseLogLevel(t *testing.T) {
	lvl, err := ParseLogLevel("")
	require.NoError(t, err)
	assert.Equal(t, logging.LogLevelInfo, lvl)

	lvl, err = ParseLogLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, logging.LogLevelDebug, lvl)

	_, err = ParseLogLevel("verbose")
	assert.Error(t, err)
}

func TestSavePreferences_NewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, SaveSession(path, "acme", "Virtual Card Reader 0"))

	var got map[string]any
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, map[string]any{"vendor": "acme", "reader": "Virtual Card Reader 0"}, got)
}

func TestSavePreferences_KeepsComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	original := `# APDU utility settings
vendors_dir: /data/vendors # shared with the team
vendor: old
protocol: t1
`
	require.NoError(t, os.WriteFile(path, []byte(original), 0644))

	require.NoError(t, SavePreferences(path, map[string]string{"vendor": "new", "reader": "R1"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "# APDU utility settings")
	assert.Contains(t, content, "vendors_dir: /data/vendors # shared with the team")
	assert.Contains(t, content, "vendor: new")
	assert.Contains(t, content, "protocol: t1")
	assert.Contains(t, content, "reader: R1")
	assert.NotContains(t, content, "old")
}

func TestSaveConfig_Types(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Defaults()
	cfg.AutoResponse = true
	cfg.LeZero = true
	cfg.HistorySize = 7
	cfg.Vendor = "true"

	require.NoError(t, SaveConfig(path, cfg))

	var got map[string]any
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, yaml.Unmarshal(data, &got))

	assert.Equal(t, true, got["auto_response"])
	assert.Equal(t, true, got["le_zero"])
	assert.Equal(t, 7, got["history_size"])
	assert.Equal(t, "true", got["vendor"], "string settings must stay strings")
}

func TestSavePreferences_RejectsNonMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- a\n- b\n"), 0644))

	assert.Error(t, SavePreferences(path, map[string]string{"vendor": "x"}))
}
