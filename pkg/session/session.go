// Package session owns the editing state of the application: one editor, the
// catalog of the current vendor, the selected entry and the reader connection.
// Every lifecycle rule (flush before switching vendor, flush on shutdown,
// reconnect after a transport error) lives here so user interfaces stay thin.
package session

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/gregLibert/apdu-utility/pkg/catalog"
	"github.com/gregLibert/apdu-utility/pkg/hexedit"
	"github.com/gregLibert/apdu-utility/pkg/iso7816"
	"github.com/gregLibert/apdu-utility/pkg/reader"
	"github.com/pion/logging"
)

// DefaultHistorySize bounds the exchanges kept by a session.
const DefaultHistorySize = 100

var (
	// ErrNoVendor is returned by catalog operations before a vendor is loaded.
	ErrNoVendor = errors.New("no vendor selected")
	// ErrNoSelection is returned when an operation needs a selected command.
	ErrNoSelection = errors.New("no command selected")
)

// Config configures a Session.
type Config struct {
	// Store persists vendor catalogs.
	Store *catalog.Store

	// Executor talks to the card reader.
	Executor reader.Executor

	// Scope, ShareMode and Protocol are used when connecting.
	Scope     reader.Scope
	ShareMode reader.ShareMode
	Protocol  reader.Protocol

	// LeZero sends an edited Le of 00 on the wire, asking the card for up
	// to 256 bytes. When false an Le of 00 is left out.
	LeZero bool

	// HistorySize bounds History. Zero means DefaultHistorySize.
	HistorySize int

	// LoggerFactory creates the session logger. Nil disables logging.
	LoggerFactory logging.LoggerFactory
}

// Session is the single owner of the editor and the current catalog.
// It is not safe for concurrent use.
type Session struct {
	config Config
	log    logging.LeveledLogger

	editor   *hexedit.Editor
	catalog  *catalog.Catalog
	selected int

	connection *reader.Status
	history    []iso7816.Transaction
}

// New creates a session with no vendor loaded and a cleared editor.
func New(config Config) *Session {
	if config.HistorySize <= 0 {
		config.HistorySize = DefaultHistorySize
	}
	s := &Session{
		config:   config,
		editor:   hexedit.New(),
		selected: -1,
	}
	s.editor.Clear()
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("session")
	}
	return s
}

// Editor returns the command editor.
func (s *Session) Editor() *hexedit.Editor {
	return s.editor
}

// Vendor returns the loaded vendor, or "".
func (s *Session) Vendor() string {
	if s.catalog == nil {
		return ""
	}
	return s.catalog.Vendor()
}

// Entries returns the commands of the loaded vendor in display order.
func (s *Session) Entries() []catalog.Entry {
	if s.catalog == nil {
		return nil
	}
	return s.catalog.Entries()
}

// IsDirty reports whether the loaded catalog has unsaved changes.
func (s *Session) IsDirty() bool {
	return s.catalog != nil && s.catalog.IsDirty()
}

// Selected returns the selected entry index, or -1.
func (s *Session) Selected() int {
	return s.selected
}

// SwitchVendor flushes the current catalog and loads vendor. A vendor without
// a file starts empty. If the flush or the load fails the current catalog is
// kept as is.
func (s *Session) SwitchVendor(vendor string) error {
	if s.catalog != nil && s.catalog.Vendor() == vendor {
		return nil
	}
	if err := s.Flush(); err != nil {
		return fmt.Errorf("switching to %s: %w", vendor, err)
	}

	c, err := s.config.Store.LoadVendor(vendor)
	if errors.Is(err, fs.ErrNotExist) {
		c, err = catalog.New(vendor), nil
	}
	if err != nil {
		return fmt.Errorf("switching to %s: %w", vendor, err)
	}

	s.setCatalog(c)
	if s.log != nil {
		s.log.Infof("Vendor %s loaded (%d commands)", vendor, c.Len())
	}
	return nil
}

// AddVendor flushes the current catalog and starts an empty one for name.
// The file is written on the next flush. An existing vendor is loaded instead.
func (s *Session) AddVendor(name string) error {
	if err := catalog.ValidateVendor(name); err != nil {
		return err
	}
	if s.catalog != nil && s.catalog.Vendor() == name {
		return nil
	}
	if err := s.Flush(); err != nil {
		return fmt.Errorf("adding vendor %s: %w", name, err)
	}

	c, err := s.config.Store.LoadVendor(name)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		c = catalog.New(name)
	case err != nil:
		return fmt.Errorf("adding vendor %s: %w", name, err)
	}
	s.setCatalog(c)
	return nil
}

func (s *Session) setCatalog(c *catalog.Catalog) {
	s.catalog = c
	s.selected = -1
	s.editor.Clear()
}

// NewCommand clears the editor and inserts a zero command at the selected
// row, or at the end when nothing is selected. The new entry is selected.
func (s *Session) NewCommand() (int, error) {
	if s.catalog == nil {
		return -1, ErrNoVendor
	}
	s.editor.Clear()
	s.selected = s.catalog.CreateNamed(catalog.DefaultBaseName, s.selected)
	return s.selected, nil
}

// Select loads the entry at index into the editor.
func (s *Session) Select(index int) error {
	if s.catalog == nil {
		return ErrNoVendor
	}
	e, err := s.catalog.Get(index)
	if err != nil {
		return err
	}
	s.editor.Load(e.Command)
	s.selected = index
	return nil
}

// SaveCurrent commits the editor into the selected entry. The catalog is
// only written by Flush.
func (s *Session) SaveCurrent() error {
	if err := s.requireSelection(); err != nil {
		return err
	}
	cmd, err := s.editor.Commit()
	if err != nil {
		return err
	}
	s.catalog.UpdateSelected(s.selected, cmd)
	return nil
}

// RenameSelected changes the name of the selected entry.
func (s *Session) RenameSelected(name string) error {
	if err := s.requireSelection(); err != nil {
		return err
	}
	s.catalog.Rename(s.selected, name)
	return nil
}

// RemoveSelected removes the selected entry and selects its neighbour.
func (s *Session) RemoveSelected() error {
	if err := s.requireSelection(); err != nil {
		return err
	}
	s.catalog.Remove(s.selected)

	next := min(s.selected, s.catalog.Len()-1)
	if next < 0 {
		s.selected = -1
		s.editor.Clear()
		return nil
	}
	return s.Select(next)
}

func (s *Session) requireSelection() error {
	if s.catalog == nil {
		return ErrNoVendor
	}
	if s.selected < 0 || s.selected >= s.catalog.Len() {
		return ErrNoSelection
	}
	return nil
}

// Flush writes the loaded catalog when it has unsaved changes. On failure the
// catalog stays dirty.
func (s *Session) Flush() error {
	if s.catalog == nil || !s.catalog.IsDirty() {
		return nil
	}
	return s.config.Store.SaveCatalog(s.catalog)
}

// Readers lists the available readers, establishing the context if needed.
func (s *Session) Readers() ([]string, error) {
	if err := s.ensureContext(); err != nil {
		return nil, err
	}
	return s.config.Executor.ListReaders()
}

// Connect opens a connection to name, closing any previous one, and returns
// the card status.
func (s *Session) Connect(name string) (reader.Status, error) {
	if err := s.ensureContext(); err != nil {
		return reader.Status{}, err
	}
	if s.connection != nil {
		if err := s.Disconnect(); err != nil && s.log != nil {
			s.log.Warnf("Failed to close previous connection: %v", err)
		}
	}

	st, err := s.config.Executor.Connect(name, s.config.ShareMode, s.config.Protocol)
	if err != nil {
		return reader.Status{}, err
	}
	s.connection = &st
	return st, nil
}

// Connection returns the current connection status.
func (s *Session) Connection() (reader.Status, bool) {
	if s.connection == nil {
		return reader.Status{}, false
	}
	return *s.connection, true
}

// Disconnect closes the card connection, leaving the card as is.
func (s *Session) Disconnect() error {
	if s.connection == nil {
		return nil
	}
	s.connection = nil
	err := s.config.Executor.Disconnect(reader.LeaveCard)
	if errors.Is(err, reader.ErrNotConnected) {
		return nil
	}
	return err
}

func (s *Session) ensureContext() error {
	if s.config.Executor.IsContextEstablished() {
		return nil
	}
	return s.config.Executor.EstablishContext(s.config.Scope)
}

// Transmit commits the editor and sends the command. The exchanges are
// appended to the history. After a transport error the connection is
// considered lost and Connect must be called again.
func (s *Session) Transmit() (iso7816.Trace, error) {
	cmd, err := s.editor.Commit()
	if err != nil {
		return nil, err
	}
	if s.connection == nil {
		return nil, reader.ErrNotConnected
	}
	if s.config.LeZero && !cmd.HasLe() {
		cmd = cmd.WithLe(0x00)
	}

	trace, err := reader.Send(s.config.Executor, cmd)
	s.record(trace)
	if err != nil {
		s.connection = nil
		if s.log != nil {
			s.log.Warnf("Transmit failed, connection lost: %v", err)
		}
		return trace, err
	}
	return trace, nil
}

func (s *Session) record(trace iso7816.Trace) {
	s.history = append(s.history, trace...)
	if over := len(s.history) - s.config.HistorySize; over > 0 {
		s.history = append([]iso7816.Transaction(nil), s.history[over:]...)
	}
}

// History returns the recorded exchanges, oldest first.
func (s *Session) History() []iso7816.Transaction {
	return append([]iso7816.Transaction(nil), s.history...)
}

// Shutdown flushes the catalog, closes the connection and releases the
// context. Every step runs; the errors are joined.
func (s *Session) Shutdown() error {
	var errs []error
	if err := s.Flush(); err != nil {
		errs = append(errs, err)
	}
	if err := s.Disconnect(); err != nil {
		errs = append(errs, err)
	}
	if s.config.Executor != nil && s.config.Executor.IsContextEstablished() {
		if err := s.config.Executor.ReleaseContext(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
