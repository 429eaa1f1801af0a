// Package vendors discovers vendor catalogs in the vendors directory and
// watches it for vendors being added or removed.
package vendors

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gregLibert/apdu-utility/pkg/catalog"
)

// List returns the vendor names found in dir, sorted. A vendor is a regular
// file named <vendor>.json. A missing directory yields no vendors.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading vendors directory %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if name, ok := vendorName(e.Name()); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// vendorName maps a file name to its vendor. Hidden files are skipped so the
// temporary files of an in-flight save never show up.
func vendorName(file string) (string, bool) {
	if strings.HasPrefix(file, ".") || !strings.HasSuffix(file, catalog.FileExt) {
		return "", false
	}
	name := strings.TrimSuffix(file, catalog.FileExt)
	if catalog.ValidateVendor(name) != nil {
		return "", false
	}
	return name, true
}

// IsVendorFile reports whether path names a vendor catalog file.
func IsVendorFile(path string) bool {
	_, ok := vendorName(filepath.Base(path))
	return ok
}
