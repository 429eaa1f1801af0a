package config

import (
	"bytes"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"
)

// SavePreferences writes the given keys into the config file, keeping every
// other key and all comments. Keys missing from the file are appended.
func SavePreferences(configPath string, prefs map[string]string) error {
	data, err := os.ReadFile(configPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}

	var doc yaml.Node
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	if doc.Kind == 0 {
		doc = yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode}},
		}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return fmt.Errorf("config %s: top level is not a mapping", configPath)
	}
	root := doc.Content[0]

	for _, key := range slices.Sorted(maps.Keys(prefs)) {
		setScalar(root, key, prefs[key])
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&doc); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_ = encoder.Close()

	return writeFileAtomic(configPath, buf.Bytes())
}

// SaveSession remembers the last vendor and reader.
func SaveSession(configPath, vendor, reader string) error {
	return SavePreferences(configPath, map[string]string{
		"vendor": vendor,
		"reader": reader,
	})
}

// SaveConfig writes every setting of c.
func SaveConfig(configPath string, c Config) error {
	return SavePreferences(configPath, map[string]string{
		"vendors_dir":   c.VendorsDir,
		"scope":         c.Scope,
		"share_mode":    c.ShareMode,
		"protocol":      c.Protocol,
		"reader":        c.Reader,
		"vendor":        c.Vendor,
		"auto_response": strconv.FormatBool(c.AutoResponse),
		"le_zero":       strconv.FormatBool(c.LeZero),
		"history_size":  strconv.Itoa(c.HistorySize),
		"log_file":      c.LogFile,
		"log_level":     c.LogLevel,
	})
}

// keyTags lists the non-string settings.
var keyTags = map[string]string{
	"auto_response": "!!bool",
	"le_zero":       "!!bool",
	"history_size":  "!!int",
}

func setScalar(root *yaml.Node, key, value string) {
	node := &yaml.Node{Kind: yaml.ScalarNode, Value: value, Tag: "!!str"}
	if tag, ok := keyTags[key]; ok {
		node.Tag = tag
	}

	for i := 0; i < len(root.Content)-1; i += 2 {
		if root.Content[i].Value == key {
			// Keep comments attached to the old value.
			old := root.Content[i+1]
			node.LineComment = old.LineComment
			node.HeadComment = old.HeadComment
			node.FootComment = old.FootComment
			root.Content[i+1] = node
			return
		}
	}
	root.Content = append(root.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: key}, node)
}

func writeFileAtomic(configPath string, data []byte) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".apdu-utility.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tempPath, configPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
