package catalog

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gregLibert/apdu-utility/pkg/iso7816"
	"github.com/pion/logging"
)

// FILE FORMAT:
// One JSON object per vendor. Each key is a command name, each value holds the
// command fields as lowercase hex strings:
//
//	{
//	  "select PSE": {"CLA": "00", "INS": "a4", "P1": "04", "P2": "00", "Le": "00", "Data": "315041592e5359532e4444463031"}
//	}
//
// Key order is the display order. The document is read as a token stream so
// the order survives, and duplicate keys are kept as separate entries.
// Header values of a single digit ("a") are accepted and read as "0a".

// FileExt is the extension of vendor catalog files.
const FileExt = ".json"

// ErrInvalidVendor is returned for a vendor name that cannot be used as a file name.
var ErrInvalidVendor = errors.New("invalid vendor name")

type wireCommand struct {
	CLA  *string `json:"CLA"`
	INS  *string `json:"INS"`
	P1   *string `json:"P1"`
	P2   *string `json:"P2"`
	Le   *string `json:"Le"`
	Data *string `json:"Data"`
}

// Load reads the catalog stored at path. The vendor name is the file name
// without its extension. The returned catalog is clean.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Kind: Unreadable, Path: path, Err: err}
	}

	entries, err := decodeDocument(path, raw)
	if err != nil {
		return nil, err
	}

	vendor := strings.TrimSuffix(filepath.Base(path), FileExt)
	return &Catalog{vendor: vendor, entries: entries}, nil
}

func decodeDocument(path string, raw []byte) ([]Entry, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, malformed(path, "expected a JSON object: %v", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, malformed(path, "expected a JSON object, got %v", tok)
	}

	var entries []Entry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, malformed(path, "reading key: %v", err)
		}
		name, ok := tok.(string)
		if !ok {
			return nil, malformed(path, "unexpected token %v", tok)
		}

		var w wireCommand
		if err := dec.Decode(&w); err != nil {
			return nil, malformed(path, "command %q: %v", name, err)
		}
		cmd, err := w.command()
		if err != nil {
			return nil, malformed(path, "command %q: %v", name, err)
		}
		entries = append(entries, Entry{Name: name, Command: cmd})
	}

	if _, err := dec.Token(); err != nil {
		return nil, malformed(path, "unterminated object: %v", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, malformed(path, "trailing content after the catalog object")
	}
	return entries, nil
}

func (w wireCommand) command() (*iso7816.CommandAPDU, error) {
	fields := []struct {
		name  string
		value *string
	}{
		{"CLA", w.CLA}, {"INS", w.INS}, {"P1", w.P1}, {"P2", w.P2}, {"Le", w.Le}, {"Data", w.Data},
	}
	for _, f := range fields {
		if f.value == nil {
			return nil, fmt.Errorf("missing key %s", f.name)
		}
	}

	var header [5]byte
	for i, f := range fields[:5] {
		b, err := decodeByte(*f.value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
		header[i] = b
	}

	if len(*w.Data)%2 != 0 {
		return nil, fmt.Errorf("Data: odd number of hex digits (%d)", len(*w.Data))
	}
	data, err := hex.DecodeString(*w.Data)
	if err != nil {
		return nil, fmt.Errorf("Data: %w", err)
	}

	return iso7816.NewCommandAPDU(header[0], header[1], header[2], header[3], data, header[4]), nil
}

func decodeByte(s string) (byte, error) {
	switch len(s) {
	case 1:
		s = "0" + s
	case 2:
	default:
		return 0, fmt.Errorf("%q is not one byte", s)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not hex", s)
	}
	return b[0], nil
}

// Save writes the catalog to path. The document is written to a temporary
// file next to path and renamed over it, so readers never see a partial file.
// The dirty flag is cleared only on success.
func Save(path string, c *Catalog) error {
	doc, err := encodeDocument(c.entries)
	if err != nil {
		return &SaveError{Path: path, Err: err}
	}

	if err := writeAtomic(path, doc); err != nil {
		return &SaveError{Path: path, Err: err}
	}
	c.markClean()
	return nil
}

func encodeDocument(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{")
	for i, e := range entries {
		if i > 0 {
			buf.WriteString(",")
		}
		key, err := json.Marshal(e.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(wireFrom(e.Command))
		if err != nil {
			return nil, err
		}
		buf.WriteString("\n  ")
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(value)
	}
	if len(entries) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

func wireFrom(cmd *iso7816.CommandAPDU) wireCommand {
	str := func(s string) *string { return &s }
	return wireCommand{
		CLA:  str(fmt.Sprintf("%02x", cmd.CLA)),
		INS:  str(fmt.Sprintf("%02x", cmd.INS)),
		P1:   str(fmt.Sprintf("%02x", cmd.P1)),
		P2:   str(fmt.Sprintf("%02x", cmd.P2)),
		Le:   str(fmt.Sprintf("%02x", cmd.Le)),
		Data: str(hex.EncodeToString(cmd.Data)),
	}
}

func writeAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Chmod(0o644); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// StoreConfig configures a Store.
type StoreConfig struct {
	// Dir is the directory holding one <vendor>.json file per vendor.
	Dir string

	// LoggerFactory creates the store logger. Nil disables logging.
	LoggerFactory logging.LoggerFactory
}

// Store maps vendor names to catalog files inside a directory.
type Store struct {
	dir string
	log logging.LeveledLogger
}

// NewStore creates a store over config.Dir.
func NewStore(config StoreConfig) *Store {
	s := &Store{dir: config.Dir}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("catalog")
	}
	return s
}

// Dir returns the vendors directory.
func (s *Store) Dir() string {
	return s.dir
}

// ValidateVendor checks that name can be used as a vendor file name.
func ValidateVendor(name string) error {
	if strings.TrimSpace(name) == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidVendor, name)
	}
	return nil
}

// Path returns the file holding the catalog of vendor.
func (s *Store) Path(vendor string) string {
	return filepath.Join(s.dir, vendor+FileExt)
}

// LoadVendor loads the catalog of vendor.
func (s *Store) LoadVendor(vendor string) (*Catalog, error) {
	if err := ValidateVendor(vendor); err != nil {
		return nil, err
	}
	c, err := Load(s.Path(vendor))
	if err != nil {
		if s.log != nil {
			s.log.Warnf("Failed to load vendor %s: %v", vendor, err)
		}
		return nil, err
	}
	if s.log != nil {
		s.log.Debugf("Loaded vendor %s with %d commands", vendor, c.Len())
	}
	return c, nil
}

// SaveCatalog writes c to the file of its vendor, creating the directory if needed.
func (s *Store) SaveCatalog(c *Catalog) error {
	if err := ValidateVendor(c.Vendor()); err != nil {
		return err
	}
	path := s.Path(c.Vendor())
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return &SaveError{Path: path, Err: err}
	}
	if err := Save(path, c); err != nil {
		if s.log != nil {
			s.log.Errorf("Failed to save vendor %s: %v", c.Vendor(), err)
		}
		return err
	}
	if s.log != nil {
		s.log.Debugf("Saved vendor %s with %d commands", c.Vendor(), c.Len())
	}
	return nil
}
