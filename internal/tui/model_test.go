package tui

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregLibert/apdu-utility/pkg/catalog"
	"github.com/gregLibert/apdu-utility/pkg/hexedit"
	"github.com/gregLibert/apdu-utility/pkg/iso7816"
	"github.com/gregLibert/apdu-utility/pkg/reader"
	"github.com/gregLibert/apdu-utility/pkg/session"
)

func newTestModel(t *testing.T, opts Options) (Model, *session.Session) {
	t.Helper()
	if opts.VendorsDir == "" {
		opts.VendorsDir = t.TempDir()
	}
	s := session.New(session.Config{
		Store:    catalog.NewStore(catalog.StoreConfig{Dir: opts.VendorsDir}),
		Executor: reader.NewVirtual(reader.VirtualConfig{}),
	})
	return NewModel(s, opts), s
}

// send feeds msgs through Update and returns the resulting model.
func send(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func keyMsg(t tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: t}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func paste(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s), Paste: true}
}

func segmentTexts(s *session.Session) []string {
	var out []string
	for _, seg := range s.Editor().Segments() {
		out = append(out, seg.Text)
	}
	return out
}

func TestNewModel(t *testing.T) {
	m, s := newTestModel(t, Options{})

	assert.Equal(t, PaneVendors, m.focus)
	assert.Empty(t, m.vendors)
	assert.Equal(t, []string{reader.VirtualReaderName}, m.readers)
	assert.Equal(t, -1, s.Selected())
	assert.NotNil(t, m.opts.Clipboard)
	assert.Nil(t, m.Init(), "no watcher means no command")
}

func TestModel_PaneCycling(t *testing.T) {
	m, _ := newTestModel(t, Options{})

	m = send(t, m, keyMsg(tea.KeyTab))
	assert.Equal(t, PaneCommands, m.focus)
	m = send(t, m, keyMsg(tea.KeyTab), keyMsg(tea.KeyTab), keyMsg(tea.KeyTab))
	assert.Equal(t, PaneVendors, m.focus)
	m = send(t, m, keyMsg(tea.KeyShiftTab))
	assert.Equal(t, PaneEditor, m.focus)
}

func TestModel_AddVendorEditAndSave(t *testing.T) {
	dir := t.TempDir()
	m, s := newTestModel(t, Options{VendorsDir: dir})

	m = send(t, m, keyMsg(tea.KeyCtrlA), runes("acme"), keyMsg(tea.KeyEnter))
	require.Empty(t, m.errorMsg)
	assert.Equal(t, "acme", s.Vendor())
	assert.Equal(t, PaneCommands, m.focus)
	assert.Equal(t, []string{"acme"}, m.vendors, "a new vendor is listed before its file exists")

	m = send(t, m, keyMsg(tea.KeyCtrlN))
	assert.Equal(t, PaneEditor, m.focus)
	assert.Equal(t, 0, s.Selected())

	m = send(t, m, paste("00 A4 04 00 00 A0000000031010"))
	assert.Equal(t, []string{"00", "a4", "04", "00", "00", "a0000000031010"}, segmentTexts(s))

	m = send(t, m, keyMsg(tea.KeyCtrlS))
	require.Empty(t, m.errorMsg)
	assert.False(t, s.IsDirty())
	assert.Contains(t, m.View(), "acme")

	c, err := catalog.Load(filepath.Join(dir, "acme.json"))
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())
	entry, err := c.Get(0)
	require.NoError(t, err)
	assert.Equal(t, catalog.DefaultBaseName, entry.Name)
	assert.True(t, entry.Command.Equal(iso7816.NewCommandAPDU(0x00, 0xA4, 0x04, 0x00,
		[]byte{0xA0, 0x00, 0x00, 0x00, 0x03, 0x10, 0x10}, 0x00)))
}

func TestModel_AddVendorCancel(t *testing.T) {
	m, s := newTestModel(t, Options{})

	m = send(t, m, keyMsg(tea.KeyCtrlA), runes("acme"), keyMsg(tea.KeyEsc))
	assert.Equal(t, dialogNone, m.dialog)
	assert.Empty(t, s.Vendor())
}

func TestModel_AddVendorInvalidName(t *testing.T) {
	m, s := newTestModel(t, Options{})

	m = send(t, m, keyMsg(tea.KeyCtrlA), runes("../escape"), keyMsg(tea.KeyEnter))
	assert.NotEmpty(t, m.errorMsg)
	assert.Empty(t, s.Vendor())
}

func TestModel_SwitchAndSelect(t *testing.T) {
	dir := t.TempDir()
	content := `{
  "select": {"CLA": "00", "INS": "A4", "P1": "04", "P2": "00", "Le": "00", "Data": "A000"},
  "read": {"CLA": "00", "INS": "B2", "P1": "01", "P2": "0C", "Le": "00", "Data": ""}
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "acme.json"), []byte(content), 0o644))

	m, s := newTestModel(t, Options{VendorsDir: dir})
	require.Equal(t, []string{"acme"}, m.vendors)

	m = send(t, m, keyMsg(tea.KeyEnter))
	require.Empty(t, m.errorMsg)
	assert.Equal(t, "acme", s.Vendor())
	assert.Equal(t, PaneCommands, m.focus)

	m = send(t, m, keyMsg(tea.KeyDown), keyMsg(tea.KeyEnter))
	assert.Equal(t, PaneEditor, m.focus)
	assert.Equal(t, 1, s.Selected())
	assert.Equal(t, []string{"00", "b2", "01", "0c", "00", ""}, segmentTexts(s))
}

func TestModel_Typing(t *testing.T) {
	m, s := newTestModel(t, Options{})
	m = send(t, m, keyMsg(tea.KeyCtrlA), runes("acme"), keyMsg(tea.KeyEnter), keyMsg(tea.KeyCtrlN))

	// Jump to Data.
	for i := 0; i < hexedit.SegData; i++ {
		m = send(t, m, keyMsg(tea.KeyDown))
	}
	index, _ := s.Editor().Focus()
	require.Equal(t, hexedit.SegData, index)

	m = send(t, m, runes("1"), runes("F"), runes("3"))
	assert.Equal(t, "1f3", s.Editor().Text(hexedit.SegData))

	m = send(t, m, runes("z"))
	assert.Equal(t, hexedit.ErrNotHex.Error(), m.errorMsg)

	m = send(t, m, keyMsg(tea.KeyCtrlS))
	assert.Contains(t, m.errorMsg, "Data")
	assert.True(t, s.IsDirty(), "an odd payload must not be saved")

	m = send(t, m, keyMsg(tea.KeyBackspace), keyMsg(tea.KeyCtrlS))
	assert.Empty(t, m.errorMsg)
	assert.Equal(t, "1f", s.Editor().Text(hexedit.SegData))
}

func TestModel_ClipboardPaste(t *testing.T) {
	m, s := newTestModel(t, Options{
		Clipboard: func() (string, error) { return "80CA9F7F00", nil },
	})
	m.focus = PaneEditor

	m = send(t, m, keyMsg(tea.KeyCtrlV))
	require.Empty(t, m.errorMsg)
	assert.Equal(t, []string{"80", "ca", "9f", "7f", "00", ""}, segmentTexts(s))
}

func TestModel_ClipboardError(t *testing.T) {
	m, s := newTestModel(t, Options{
		Clipboard: func() (string, error) { return "", errors.New("no clipboard") },
	})
	m.focus = PaneEditor

	m = send(t, m, keyMsg(tea.KeyCtrlV))
	assert.Equal(t, "no clipboard", m.errorMsg)
	assert.Equal(t, []string{"00", "00", "00", "00", "00", ""}, segmentTexts(s))
}

func TestModel_Transmit(t *testing.T) {
	m, s := newTestModel(t, Options{})

	m.focus = PaneEditor
	m = send(t, m, paste("0000000000 5A021234"), keyMsg(tea.KeyCtrlT))
	assert.Equal(t, reader.ErrNotConnected.Error(), m.errorMsg)

	m.focus = PaneReaders
	m = send(t, m, keyMsg(tea.KeyEnter))
	require.Empty(t, m.errorMsg)
	_, connected := s.Connection()
	require.True(t, connected)

	m = send(t, m, keyMsg(tea.KeyCtrlT))
	require.Empty(t, m.errorMsg)
	require.Len(t, m.lastTrace, 1)
	resp := m.lastTrace.Response()
	require.NotNil(t, resp)
	assert.Equal(t, iso7816.SW_NO_ERROR, resp.Status)
	assert.Equal(t, []byte{0x5A, 0x02, 0x12, 0x34}, resp.Data)
	assert.Contains(t, m.View(), "5A021234")
}

func TestModel_RenameAndRemove(t *testing.T) {
	m, s := newTestModel(t, Options{})

	m = send(t, m, keyMsg(tea.KeyCtrlE))
	assert.Equal(t, session.ErrNoSelection.Error(), m.errorMsg)

	m = send(t, m, keyMsg(tea.KeyCtrlA), runes("acme"), keyMsg(tea.KeyEnter), keyMsg(tea.KeyCtrlN))
	m = send(t, m, keyMsg(tea.KeyCtrlE))
	require.Equal(t, dialogRename, m.dialog)
	assert.Equal(t, catalog.DefaultBaseName, m.input.Value())

	m = send(t, m, runes("2"), keyMsg(tea.KeyEnter))
	require.Len(t, s.Entries(), 1)
	assert.Equal(t, catalog.DefaultBaseName+"2", s.Entries()[0].Name)

	m = send(t, m, keyMsg(tea.KeyCtrlD))
	assert.Empty(t, m.errorMsg)
	assert.Empty(t, s.Entries())
	assert.Equal(t, -1, s.Selected())
}

func TestModel_VendorsChanged(t *testing.T) {
	dir := t.TempDir()
	ch := make(chan struct{}, 1)
	m, _ := newTestModel(t, Options{VendorsDir: dir, Watch: ch})
	require.Empty(t, m.vendors)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "beta.json"), []byte("{}\n"), 0o644))
	ch <- struct{}{}

	cmd := m.Init()
	require.NotNil(t, cmd)
	msg := cmd()
	require.IsType(t, vendorsChangedMsg{}, msg)

	next, cmd := m.Update(msg)
	m = next.(Model)
	assert.Equal(t, []string{"beta"}, m.vendors)
	assert.NotNil(t, cmd, "the model keeps listening")
}

func TestWaitForChange_Closed(t *testing.T) {
	ch := make(chan struct{})
	close(ch)
	assert.Nil(t, waitForChange(ch)())
	assert.Nil(t, waitForChange(nil))
}

func TestModel_Quit(t *testing.T) {
	m, _ := newTestModel(t, Options{})

	_, cmd := m.Update(keyMsg(tea.KeyCtrlQ))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestMoveCursor(t *testing.T) {
	assert.Equal(t, 0, moveCursor(0, -1, 3))
	assert.Equal(t, 2, moveCursor(2, 1, 3))
	assert.Equal(t, 1, moveCursor(0, 1, 3))
	assert.Equal(t, 0, moveCursor(0, 1, 0))
}
