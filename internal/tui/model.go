package tui

import (
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gregLibert/apdu-utility/pkg/hexedit"
	"github.com/gregLibert/apdu-utility/pkg/iso7816"
	"github.com/gregLibert/apdu-utility/pkg/session"
	"github.com/gregLibert/apdu-utility/pkg/tlv"
	"github.com/gregLibert/apdu-utility/pkg/vendors"
)

// Pane identifies a focusable area of the screen.
type Pane int

const (
	PaneVendors Pane = iota
	PaneCommands
	PaneReaders
	PaneEditor

	paneCount
)

var paneTitles = [paneCount]string{"Vendors", "Commands", "Readers", "Command"}

type dialog int

const (
	dialogNone dialog = iota
	dialogAddVendor
	dialogRename
)

// Options configures the model.
type Options struct {
	// VendorsDir is listed to fill the vendor pane.
	VendorsDir string

	// Watch delivers a value whenever the vendors directory changes. Nil
	// disables live refresh.
	Watch <-chan struct{}

	// Clipboard reads the system clipboard. Defaults to clipboard.ReadAll.
	Clipboard func() (string, error)
}

// Model is the Bubbletea model of the APDU editor.
type Model struct {
	session *session.Session
	opts    Options

	// State
	focus         Pane
	vendors       []string
	vendorCursor  int
	commandCursor int
	readers       []string
	readerCursor  int
	width         int
	height        int

	// Dialog
	dialog dialog
	input  textinput.Model

	// Output
	lastTrace iso7816.Trace
	statusMsg string
	errorMsg  string

	// Components
	keys   KeyMap
	help   help.Model
	styles Styles
}

// vendorsChangedMsg signals a change in the vendors directory.
type vendorsChangedMsg struct{}

// NewModel builds the model around s and loads the vendor and reader lists.
func NewModel(s *session.Session, opts Options) Model {
	if opts.Clipboard == nil {
		opts.Clipboard = clipboard.ReadAll
	}

	input := textinput.New()
	input.CharLimit = 64

	m := Model{
		session: s,
		opts:    opts,
		focus:   PaneVendors,
		input:   input,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		styles:  DefaultStyles(),
	}
	m.refreshVendors()
	m.refreshReaders()
	if s.Vendor() != "" {
		m.focus = PaneCommands
		m.commandCursor = max(s.Selected(), 0)
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return waitForChange(m.opts.Watch)
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return vendorsChangedMsg{}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case vendorsChangedMsg:
		m.refreshVendors()
		return m, waitForChange(m.opts.Watch)

	case tea.KeyMsg:
		if m.dialog != dialogNone {
			return m.updateDialog(msg)
		}
		return m.updateKey(msg)
	}
	return m, nil
}

func (m Model) updateDialog(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.closeDialog()
		return m, nil

	case key.Matches(msg, m.keys.Confirm):
		value := strings.TrimSpace(m.input.Value())
		kind := m.dialog
		m.closeDialog()
		if value == "" {
			return m, nil
		}
		switch kind {
		case dialogAddVendor:
			if m.report(m.session.AddVendor(value)) {
				m.refreshVendors()
				m.commandCursor = 0
				m.focus = PaneCommands
				m.statusMsg = fmt.Sprintf("Vendor %s loaded", value)
			}
		case dialogRename:
			if m.report(m.session.RenameSelected(value)) {
				m.statusMsg = fmt.Sprintf("Renamed to %s", value)
			}
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) openDialog(d dialog, placeholder, value string) tea.Cmd {
	m.dialog = d
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m *Model) closeDialog() {
	m.dialog = dialogNone
	m.input.Blur()
	m.input.Reset()
}

func (m Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.errorMsg = ""

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.NextPane):
		m.focus = (m.focus + 1) % paneCount
		return m, nil

	case key.Matches(msg, m.keys.PrevPane):
		m.focus = (m.focus + paneCount - 1) % paneCount
		return m, nil

	case key.Matches(msg, m.keys.Save):
		m.save()
		return m, nil

	case key.Matches(msg, m.keys.Transmit):
		m.transmit()
		return m, nil

	case key.Matches(msg, m.keys.New):
		index, err := m.session.NewCommand()
		if m.report(err) {
			m.commandCursor = index
			m.focus = PaneEditor
		}
		return m, nil

	case key.Matches(msg, m.keys.Remove):
		if m.report(m.session.RemoveSelected()) {
			m.commandCursor = max(m.session.Selected(), 0)
		}
		return m, nil

	case key.Matches(msg, m.keys.Rename):
		entries := m.session.Entries()
		sel := m.session.Selected()
		if sel < 0 || sel >= len(entries) {
			m.report(session.ErrNoSelection)
			return m, nil
		}
		cmd := m.openDialog(dialogRename, "command name", entries[sel].Name)
		return m, cmd

	case key.Matches(msg, m.keys.AddVendor):
		cmd := m.openDialog(dialogAddVendor, "vendor name", "")
		return m, cmd

	case key.Matches(msg, m.keys.Refresh):
		m.refreshVendors()
		m.refreshReaders()
		return m, nil
	}

	switch m.focus {
	case PaneVendors:
		m.updateVendors(msg)
	case PaneCommands:
		m.updateCommands(msg)
	case PaneReaders:
		m.updateReaders(msg)
	case PaneEditor:
		m.updateEditor(msg)
	}
	return m, nil
}

func (m *Model) updateVendors(msg tea.KeyMsg) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.vendorCursor = moveCursor(m.vendorCursor, -1, len(m.vendors))
	case key.Matches(msg, m.keys.Down):
		m.vendorCursor = moveCursor(m.vendorCursor, 1, len(m.vendors))
	case key.Matches(msg, m.keys.Select):
		if m.vendorCursor >= len(m.vendors) {
			return
		}
		vendor := m.vendors[m.vendorCursor]
		if m.report(m.session.SwitchVendor(vendor)) {
			m.commandCursor = 0
			m.focus = PaneCommands
			m.statusMsg = fmt.Sprintf("Vendor %s loaded", vendor)
		}
	}
}

func (m *Model) updateCommands(msg tea.KeyMsg) {
	n := len(m.session.Entries())
	switch {
	case key.Matches(msg, m.keys.Up):
		m.commandCursor = moveCursor(m.commandCursor, -1, n)
	case key.Matches(msg, m.keys.Down):
		m.commandCursor = moveCursor(m.commandCursor, 1, n)
	case key.Matches(msg, m.keys.Select):
		if m.report(m.session.Select(m.commandCursor)) {
			m.focus = PaneEditor
		}
	}
}

func (m *Model) updateReaders(msg tea.KeyMsg) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.readerCursor = moveCursor(m.readerCursor, -1, len(m.readers))
	case key.Matches(msg, m.keys.Down):
		m.readerCursor = moveCursor(m.readerCursor, 1, len(m.readers))
	case key.Matches(msg, m.keys.Select):
		if m.readerCursor >= len(m.readers) {
			return
		}
		st, err := m.session.Connect(m.readers[m.readerCursor])
		if m.report(err) {
			m.statusMsg = "Connected: " + st.String()
		}
	}
}

func (m *Model) updateEditor(msg tea.KeyMsg) {
	ed := m.session.Editor()

	if msg.Paste {
		m.report(ed.PasteText(string(msg.Runes)))
		return
	}

	switch {
	case key.Matches(msg, m.keys.Left):
		ed.MovePrev()
	case key.Matches(msg, m.keys.Right):
		ed.MoveNext()
	case key.Matches(msg, m.keys.Up):
		index, _ := ed.Focus()
		_ = ed.SetFocus(max(index-1, 0), 0)
	case key.Matches(msg, m.keys.Down):
		index, _ := ed.Focus()
		_ = ed.SetFocus(min(index+1, hexedit.SegData), 0)
	case key.Matches(msg, m.keys.Backspace):
		ed.Backspace()
	case key.Matches(msg, m.keys.Delete):
		ed.Delete()
	case key.Matches(msg, m.keys.Clear):
		ed.Clear()
	case key.Matches(msg, m.keys.Paste):
		text, err := m.opts.Clipboard()
		if !m.report(err) {
			return
		}
		m.report(ed.PasteText(text))
	case msg.Type == tea.KeyRunes:
		for _, r := range msg.Runes {
			if !m.report(ed.TypeDigit(r)) {
				return
			}
		}
	}
}

// save stores the editor into the selected entry and writes the catalog.
func (m *Model) save() {
	if !m.report(m.session.SaveCurrent()) {
		return
	}
	if !m.report(m.session.Flush()) {
		return
	}
	m.statusMsg = fmt.Sprintf("Saved %s", m.session.Vendor())
}

func (m *Model) transmit() {
	trace, err := m.session.Transmit()
	if len(trace) > 0 {
		m.lastTrace = trace
	}
	if !m.report(err) {
		return
	}
	if resp := trace.Response(); resp != nil {
		m.statusMsg = "Response: " + resp.Status.String()
	}
}

// report stores err for display and returns whether the call succeeded.
func (m *Model) report(err error) bool {
	if err == nil {
		return true
	}
	var commitErr *hexedit.CommitError
	switch {
	case errors.As(err, &commitErr):
		m.errorMsg = fmt.Sprintf("%s: %v", commitErr.Segment, commitErr.Err)
	default:
		m.errorMsg = err.Error()
	}
	m.statusMsg = ""
	return false
}

// refreshVendors lists the vendors directory. The loaded vendor is always
// shown, even before its file exists.
func (m *Model) refreshVendors() {
	names, err := vendors.List(m.opts.VendorsDir)
	if err != nil {
		m.report(fmt.Errorf("listing vendors: %w", err))
	}
	if v := m.session.Vendor(); v != "" && !slices.Contains(names, v) {
		names = append(names, v)
		slices.Sort(names)
	}
	m.vendors = names
	if i := slices.Index(names, m.session.Vendor()); i >= 0 {
		m.vendorCursor = i
	}
	m.vendorCursor = clampCursor(m.vendorCursor, len(names))
}

func (m *Model) refreshReaders() {
	readers, err := m.session.Readers()
	if err != nil {
		m.report(fmt.Errorf("listing readers: %w", err))
	}
	m.readers = readers
	m.readerCursor = clampCursor(m.readerCursor, len(readers))
}

func moveCursor(cursor, delta, n int) int {
	return clampCursor(cursor+delta, n)
}

func clampCursor(cursor, n int) int {
	if cursor >= n {
		cursor = n - 1
	}
	return max(cursor, 0)
}

// View implements tea.Model.
func (m Model) View() string {
	left := lipgloss.JoinVertical(lipgloss.Left,
		m.renderList(PaneVendors, m.vendors, m.vendorCursor, m.session.Vendor()),
		m.renderList(PaneCommands, m.commandNames(), m.commandCursor, m.selectedName()),
		m.renderList(PaneReaders, m.readers, m.readerCursor, m.connectedReader()),
	)
	right := lipgloss.JoinVertical(lipgloss.Left,
		m.renderEditor(),
		m.renderInspector(),
		m.renderResponse(),
	)

	var b strings.Builder
	b.WriteString(m.renderTitle())
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	b.WriteString("\n")
	if m.dialog != dialogNone {
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render(m.help.View(m.keys)))

	return m.styles.App.Render(b.String())
}

func (m Model) renderTitle() string {
	title := m.styles.Title.Render("APDU Utility")
	vendor := m.session.Vendor()
	if vendor == "" {
		vendor = "no vendor"
	}
	if m.session.IsDirty() {
		vendor += " *"
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, title, m.styles.TitleBar.Render(vendor))
}

func (m Model) paneStyle(p Pane) lipgloss.Style {
	if m.focus == p {
		return m.styles.PaneFocused
	}
	return m.styles.Pane
}

func (m Model) renderList(p Pane, items []string, cursor int, active string) string {
	var b strings.Builder
	b.WriteString(m.styles.PaneTitle.Render(paneTitles[p]))
	b.WriteString("\n")
	if len(items) == 0 {
		b.WriteString(m.styles.Muted.Render("(none)"))
	}
	for i, item := range items {
		if i > 0 {
			b.WriteString("\n")
		}
		line := item
		if item == active && active != "" {
			line = m.styles.ItemActive.Render(item)
		}
		if i == cursor && m.focus == p {
			b.WriteString(m.styles.ItemCursor.Render("> ") + line)
		} else {
			b.WriteString(m.styles.Item.Render(line))
		}
	}
	return m.paneStyle(p).Width(28).Render(b.String())
}

func (m Model) commandNames() []string {
	entries := m.session.Entries()
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

func (m Model) selectedName() string {
	entries := m.session.Entries()
	if sel := m.session.Selected(); sel >= 0 && sel < len(entries) {
		return entries[sel].Name
	}
	return ""
}

func (m Model) connectedReader() string {
	st, ok := m.session.Connection()
	if !ok {
		return ""
	}
	return st.Reader
}

func (m Model) renderEditor() string {
	ed := m.session.Editor()
	focused, offset := ed.Focus()

	cols := make([]string, 0, hexedit.SegmentCount)
	for i, seg := range ed.Segments() {
		text := strings.ToUpper(seg.Text)
		style := m.styles.Segment
		if i == focused && m.focus == PaneEditor {
			style = m.styles.SegmentFocused
			text = m.withCursor(text, offset)
		} else if text == "" {
			text = m.styles.Muted.Render("--")
		}
		cols = append(cols, lipgloss.JoinVertical(lipgloss.Left,
			m.styles.SegmentLabel.Render(seg.Label),
			style.Render(text),
		))
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		m.styles.PaneTitle.Render(paneTitles[PaneEditor]),
		lipgloss.JoinHorizontal(lipgloss.Top, cols...),
	)
	return m.paneStyle(PaneEditor).Render(body)
}

func (m Model) withCursor(text string, offset int) string {
	if offset >= len(text) {
		return text + m.styles.Cursor.Render(" ")
	}
	return text[:offset] + m.styles.Cursor.Render(text[offset:offset+1]) + text[offset+1:]
}

func (m Model) renderInspector() string {
	cmd, err := m.session.Editor().Commit()
	if err != nil {
		return m.styles.Pane.Render(m.styles.Warning.Render(err.Error()))
	}
	return m.styles.Pane.Render(iso7816.Describe(cmd))
}

func (m Model) renderResponse() string {
	if len(m.lastTrace) == 0 {
		return m.styles.Pane.Render(m.styles.Muted.Render("No response yet"))
	}

	var b strings.Builder
	for _, tx := range m.lastTrace {
		fmt.Fprintf(&b, ">> %s\n", tx.Command.Hex())
		if tx.Response == nil {
			b.WriteString(m.styles.Error.Render("<< (no response)"))
			b.WriteString("\n")
			continue
		}
		fmt.Fprintf(&b, "<< %s %s\n", strings.ToUpper(hex.EncodeToString(tx.Response.Data)), tx.Response.Status)
	}

	resp := m.lastTrace.Response()
	if resp != nil {
		status := m.styles.Success
		if !resp.Status.IsSuccess() {
			status = m.styles.Error
		}
		b.WriteString(status.Render(resp.Status.Verbose()))
		if len(resp.Data) > 0 {
			b.WriteString("\n\n")
			if desc, err := tlv.Describe(resp.Data); err == nil {
				b.WriteString(desc)
			} else {
				b.WriteString(tlv.MakeSafeASCII(resp.Data))
			}
		}
	}
	return m.styles.Pane.Render(b.String())
}

func (m Model) renderStatus() string {
	var conn string
	if st, ok := m.session.Connection(); ok {
		conn = m.styles.StatusOnline.Render("● " + st.Reader + " " + st.Protocol.String())
	} else {
		conn = m.styles.StatusOffline.Render("○ disconnected")
	}

	msg := m.statusMsg
	if m.errorMsg != "" {
		msg = m.styles.Error.Render(m.errorMsg)
	}
	return m.styles.StatusBar.Render(conn + "  " + msg)
}
