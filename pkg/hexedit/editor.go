package hexedit

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/gregLibert/apdu-utility/pkg/iso7816"
)

// SEGMENTED EDITOR:
// The editor presents a command as six windows over one hex stream:
//
//	[CLA][INS][P1][P2][Le][Data.............]
//
// Only boundary crossings are intercepted; inside a segment the cursor behaves
// like a plain line edit limited to the segment width.
//
//   - A digit typed at offset 1 of a fixed segment replaces the second digit and
//     moves focus to the start of the next segment. The last fixed segment (Le)
//     hands focus to Data.
//   - Moving right from offset 1 (or from the end) of a fixed segment crosses
//     to the next segment. Data never hands focus forward.
//   - Moving left or deleting backward at offset 0 crosses to the end of the
//     previous segment. Nothing happens on CLA.
//   - A paste is spread two digits at a time from the focused segment onward;
//     the leftover is inserted at the start of Data.

// Segment indexes.
const (
	SegCLA = iota
	SegINS
	SegP1
	SegP2
	SegLe
	SegData

	SegmentCount
)

var segmentLabels = [SegmentCount]string{"CLA", "INS", "P1", "P2", "Le", "Data"}

var (
	// ErrNotHex is returned when the input holds no hex digit.
	ErrNotHex = errors.New("not a hex digit")
	// ErrSegmentFull is returned when a digit cannot be inserted into a full fixed segment.
	ErrSegmentFull = errors.New("segment already holds two digits")
	// ErrOddLength is returned when Data holds an unpaired digit at commit time.
	ErrOddLength = errors.New("odd number of hex digits")
	// ErrFocusOutOfRange is returned by SetFocus for an invalid index or offset.
	ErrFocusOutOfRange = errors.New("focus out of range")
)

// CommitError reports the segment that prevented a commit.
type CommitError struct {
	Segment string
	Digits  int
	Err     error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit %s: %v (%d digits)", e.Segment, e.Err, e.Digits)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

// Editor owns the segments, the focused segment and the cursor offset inside it.
// It is not safe for concurrent use.
type Editor struct {
	segments [SegmentCount]Segment
	focused  int
	cursor   int
}

// New returns an editor with every segment empty and focus on CLA.
func New() *Editor {
	e := &Editor{}
	for i := range e.segments {
		e.segments[i] = Segment{Label: segmentLabels[i], Kind: FixedByte}
	}
	e.segments[SegData].Kind = FreeHex
	return e
}

// Segments returns a copy of the segments in display order.
func (e *Editor) Segments() []Segment {
	out := make([]Segment, SegmentCount)
	copy(out, e.segments[:])
	return out
}

// Text returns the digits held by segment i, or "" for an unknown index.
func (e *Editor) Text(i int) string {
	if i < 0 || i >= SegmentCount {
		return ""
	}
	return e.segments[i].Text
}

// Focus returns the focused segment index and the cursor offset inside it.
func (e *Editor) Focus() (index, offset int) {
	return e.focused, e.cursor
}

// SetFocus moves focus directly, as a mouse click or a field jump would.
func (e *Editor) SetFocus(index, offset int) error {
	if index < 0 || index >= SegmentCount {
		return ErrFocusOutOfRange
	}
	if offset < 0 || offset > len(e.segments[index].Text) {
		return ErrFocusOutOfRange
	}
	e.focused, e.cursor = index, offset
	return nil
}

// Clear resets the editor to an all-zero command with an empty payload.
func (e *Editor) Clear() {
	for i := SegCLA; i < SegData; i++ {
		e.segments[i].Text = "00"
	}
	e.segments[SegData].Text = ""
	e.focused, e.cursor = SegCLA, 0
}

// Load fills the segments from an existing command.
func (e *Editor) Load(cmd *iso7816.CommandAPDU) {
	header := [SegData]byte{cmd.CLA, cmd.INS, cmd.P1, cmd.P2, cmd.Le}
	for i, b := range header {
		e.segments[i].Text = fmt.Sprintf("%02x", b)
	}
	e.segments[SegData].Text = hex.EncodeToString(cmd.Data)
	e.focused, e.cursor = SegCLA, 0
}

// TypeDigit handles one typed character.
func (e *Editor) TypeDigit(ch rune) error {
	if !isHexDigit(ch) {
		return ErrNotHex
	}
	d := strings.ToLower(string(ch))
	seg := &e.segments[e.focused]

	if seg.Kind == FixedByte && e.cursor == 1 {
		seg.Text = seg.Text[:1] + d
		e.advance()
		return nil
	}

	if seg.Full() {
		return ErrSegmentFull
	}
	seg.Text = seg.Text[:e.cursor] + d + seg.Text[e.cursor:]
	e.cursor++
	return nil
}

// MoveNext moves the cursor one step right, crossing into the next segment
// from offset 1 or the end of a fixed segment.
func (e *Editor) MoveNext() {
	seg := e.segments[e.focused]
	if seg.Kind == FixedByte && (e.cursor == 1 || e.cursor == len(seg.Text)) {
		e.advance()
		return
	}
	if e.cursor < len(seg.Text) {
		e.cursor++
	}
}

// MovePrev moves the cursor one step left, crossing to the end of the
// previous segment from offset 0.
func (e *Editor) MovePrev() {
	if e.cursor == 0 {
		e.retreat()
		return
	}
	e.cursor--
}

// BackspaceAtStart handles a delete-backward request at offset 0. It moves to
// the end of the previous segment without deleting anything.
func (e *Editor) BackspaceAtStart() {
	if e.cursor == 0 {
		e.retreat()
	}
}

// Backspace deletes the digit before the cursor, or crosses to the previous
// segment when the cursor is at offset 0.
func (e *Editor) Backspace() {
	if e.cursor == 0 {
		e.BackspaceAtStart()
		return
	}
	seg := &e.segments[e.focused]
	seg.Text = seg.Text[:e.cursor-1] + seg.Text[e.cursor:]
	e.cursor--
}

// Delete removes the digit after the cursor. It never crosses segments.
func (e *Editor) Delete() {
	seg := &e.segments[e.focused]
	if e.cursor >= len(seg.Text) {
		return
	}
	seg.Text = seg.Text[:e.cursor] + seg.Text[e.cursor+1:]
}

// PasteText spreads the hex digits found in raw across the segments starting
// at the focused one. Input without any hex digit is rejected.
// Focus moves past a fixed segment only when it received two digits; after a
// one-digit final chunk it stays there with the cursor after the digit.
func (e *Editor) PasteText(raw string) error {
	digits := FilterHex(raw)
	if digits == "" {
		return ErrNotHex
	}

	seg := &e.segments[e.focused]
	if seg.Kind == FreeHex {
		seg.Text = seg.Text[:e.cursor] + digits + seg.Text[e.cursor:]
		e.cursor += len(digits)
		return nil
	}

	remaining := seg.Text[:e.cursor] + digits
	for i := e.focused; i < SegData && remaining != ""; i++ {
		n := min(FixedWidth, len(remaining))
		e.segments[i].Text = remaining[:n]
		remaining = remaining[n:]

		e.focused, e.cursor = i, n
		if n == FixedWidth {
			e.focused, e.cursor = i+1, 0
		}
	}

	if remaining != "" {
		data := &e.segments[SegData]
		data.Text = remaining + data.Text
		e.focused, e.cursor = SegData, len(remaining)
	}
	return nil
}

// Commit resolves the segments into a command.
// A fixed segment with one digit is read as '0X', an empty one as 00.
func (e *Editor) Commit() (*iso7816.CommandAPDU, error) {
	var header [SegData]byte
	for i := SegCLA; i < SegData; i++ {
		b, err := fixedByte(e.segments[i].Text)
		if err != nil {
			return nil, &CommitError{Segment: segmentLabels[i], Digits: len(e.segments[i].Text), Err: err}
		}
		header[i] = b
	}

	text := e.segments[SegData].Text
	if len(text)%2 != 0 {
		return nil, &CommitError{Segment: segmentLabels[SegData], Digits: len(text), Err: ErrOddLength}
	}
	data, err := hex.DecodeString(text)
	if err != nil {
		return nil, &CommitError{Segment: segmentLabels[SegData], Digits: len(text), Err: ErrNotHex}
	}

	return iso7816.NewCommandAPDU(header[SegCLA], header[SegINS], header[SegP1], header[SegP2], data, header[SegLe]), nil
}

func fixedByte(text string) (byte, error) {
	switch len(text) {
	case 0:
		return 0x00, nil
	case 1:
		text = "0" + text
	}
	b, err := hex.DecodeString(text)
	if err != nil || len(b) != 1 {
		return 0, ErrNotHex
	}
	return b[0], nil
}

func (e *Editor) advance() {
	if e.focused >= SegData {
		return
	}
	e.focused++
	e.cursor = 0
}

func (e *Editor) retreat() {
	if e.focused == SegCLA {
		return
	}
	e.focused--
	e.cursor = len(e.segments[e.focused].Text)
}
