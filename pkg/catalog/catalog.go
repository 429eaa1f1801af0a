// Package catalog holds the named commands of one card vendor and persists
// them as a JSON document.
package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gregLibert/apdu-utility/pkg/iso7816"
)

// CATALOG LIFECYCLE:
//
//	Empty -> Loaded(vendor) -> Dirty(vendor) -> Loaded(vendor)
//
// Every mutating call marks the catalog dirty. Only a successful Save clears
// the flag. Switching to another vendor is the caller's job (see package
// session); the catalog never writes itself.

// DefaultBaseName is the name prefix given to freshly created commands.
const DefaultBaseName = "newCommand"

// ErrNotFound is returned by Get for an index outside the catalog.
var ErrNotFound = errors.New("catalog entry not found")

// Entry is one named command of a catalog.
type Entry struct {
	Name    string
	Command *iso7816.CommandAPDU
}

// Catalog is the ordered list of commands of one vendor.
// It is not safe for concurrent use.
type Catalog struct {
	vendor  string
	entries []Entry
	dirty   bool
}

// New returns an empty, clean catalog for vendor.
func New(vendor string) *Catalog {
	return &Catalog{vendor: vendor}
}

// Vendor returns the vendor name the catalog belongs to.
func (c *Catalog) Vendor() string {
	return c.vendor
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// IsDirty reports whether the catalog changed since it was loaded or saved.
func (c *Catalog) IsDirty() bool {
	return c.dirty
}

// Entries returns the entries in display order. Commands are copies.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	for i, e := range c.entries {
		out[i] = Entry{Name: e.Name, Command: e.Command.Clone()}
	}
	return out
}

// Get returns a copy of the entry at index.
func (c *Catalog) Get(index int) (Entry, error) {
	if index < 0 || index >= len(c.entries) {
		return Entry{}, fmt.Errorf("index %d: %w", index, ErrNotFound)
	}
	e := c.entries[index]
	return Entry{Name: e.Name, Command: e.Command.Clone()}, nil
}

// CreateNamed inserts an all-zero command at afterIndex and returns its index.
// An index outside [0, Len()] appends.
//
// The name is baseName, suffixed with "_N" where N counts the existing names
// starting with baseName. This avoids most collisions but does not guarantee
// uniqueness once entries are renamed or removed.
func (c *Catalog) CreateNamed(baseName string, afterIndex int) int {
	count := 0
	for _, e := range c.entries {
		if strings.HasPrefix(e.Name, baseName) {
			count++
		}
	}
	name := baseName
	if count > 0 {
		name = fmt.Sprintf("%s_%d", baseName, count)
	}

	entry := Entry{Name: name, Command: iso7816.NewCommandAPDU(0, 0, 0, 0, nil, 0)}
	index := afterIndex
	if index < 0 || index > len(c.entries) {
		index = len(c.entries)
	}
	c.entries = append(c.entries, Entry{})
	copy(c.entries[index+1:], c.entries[index:])
	c.entries[index] = entry

	c.dirty = true
	return index
}

// Append adds a named command at the end. Duplicate names are allowed.
func (c *Catalog) Append(name string, cmd *iso7816.CommandAPDU) {
	c.entries = append(c.entries, Entry{Name: name, Command: cmd.Clone()})
	c.dirty = true
}

// UpdateSelected replaces the command at index. The index must be valid;
// an out of range index leaves the catalog untouched.
func (c *Catalog) UpdateSelected(index int, cmd *iso7816.CommandAPDU) {
	if index < 0 || index >= len(c.entries) || cmd == nil {
		return
	}
	c.entries[index].Command = cmd.Clone()
	c.dirty = true
}

// Rename changes the display name at index. Out of range is a no-op.
func (c *Catalog) Rename(index int, name string) {
	if index < 0 || index >= len(c.entries) {
		return
	}
	c.entries[index].Name = name
	c.dirty = true
}

// Remove deletes the entry at index. Out of range is a no-op.
func (c *Catalog) Remove(index int) {
	if index < 0 || index >= len(c.entries) {
		return
	}
	c.entries = append(c.entries[:index], c.entries[index+1:]...)
	c.dirty = true
}

func (c *Catalog) markClean() {
	c.dirty = false
}
