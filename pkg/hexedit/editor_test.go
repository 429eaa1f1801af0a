package hexedit

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gregLibert/apdu-utility/pkg/iso7816"
)

// texts returns the digits of every segment in display order.
func texts(e *Editor) []string {
	out := make([]string, 0, SegmentCount)
	for _, s := range e.Segments() {
		out = append(out, s.Text)
	}
	return out
}

// focus packs the focus state for comparisons.
func focus(e *Editor) [2]int {
	i, o := e.Focus()
	return [2]int{i, o}
}

func TestNew(t *testing.T) {
	e := New()

	want := []Segment{
		{Label: "CLA", Kind: FixedByte},
		{Label: "INS", Kind: FixedByte},
		{Label: "P1", Kind: FixedByte},
		{Label: "P2", Kind: FixedByte},
		{Label: "Le", Kind: FixedByte},
		{Label: "Data", Kind: FreeHex},
	}
	if diff := cmp.Diff(want, e.Segments()); diff != "" {
		t.Errorf("segments mismatch (-want +got):\n%s", diff)
	}
	if focus(e) != [2]int{SegCLA, 0} {
		t.Errorf("initial focus = %v, want CLA at 0", focus(e))
	}
}

func TestTypeDigit(t *testing.T) {
	t.Run("Type through every fixed segment", func(t *testing.T) {
		e := New()
		for _, ch := range "00a40400" + "0a" {
			if err := e.TypeDigit(ch); err != nil {
				t.Fatalf("TypeDigit(%q): %v", ch, err)
			}
		}

		if diff := cmp.Diff([]string{"00", "a4", "04", "00", "0a", ""}, texts(e)); diff != "" {
			t.Errorf("texts mismatch (-want +got):\n%s", diff)
		}
		if focus(e) != [2]int{SegData, 0} {
			t.Errorf("focus = %v, want Data at 0", focus(e))
		}
	})

	t.Run("Digit at offset 1 overwrites the second digit and advances", func(t *testing.T) {
		e := New()
		e.Clear()
		_ = e.SetFocus(SegP1, 1)

		if err := e.TypeDigit('C'); err != nil {
			t.Fatalf("TypeDigit: %v", err)
		}
		if got := e.Text(SegP1); got != "0c" {
			t.Errorf("P1 = %q, want %q", got, "0c")
		}
		if focus(e) != [2]int{SegP2, 0} {
			t.Errorf("focus = %v, want P2 at 0", focus(e))
		}
	})

	t.Run("Full segment rejects input at offset 0", func(t *testing.T) {
		e := New()
		e.Clear()

		err := e.TypeDigit('f')
		if !errors.Is(err, ErrSegmentFull) {
			t.Fatalf("expected ErrSegmentFull, got %v", err)
		}
		if e.Text(SegCLA) != "00" || focus(e) != [2]int{SegCLA, 0} {
			t.Errorf("state changed after rejected digit: %q %v", e.Text(SegCLA), focus(e))
		}
	})

	t.Run("Non hex character is rejected", func(t *testing.T) {
		e := New()
		if err := e.TypeDigit('g'); !errors.Is(err, ErrNotHex) {
			t.Errorf("expected ErrNotHex, got %v", err)
		}
		if e.Text(SegCLA) != "" {
			t.Errorf("CLA = %q, want empty", e.Text(SegCLA))
		}
	})

	t.Run("Data inserts at the cursor and never leaves", func(t *testing.T) {
		e := New()
		_ = e.SetFocus(SegData, 0)
		for _, ch := range "aabb" {
			_ = e.TypeDigit(ch)
		}
		_ = e.SetFocus(SegData, 2)
		_ = e.TypeDigit('1')

		if got := e.Text(SegData); got != "aa1bb" {
			t.Errorf("Data = %q, want %q", got, "aa1bb")
		}
		if focus(e) != [2]int{SegData, 3} {
			t.Errorf("focus = %v, want Data at 3", focus(e))
		}
	})
}

func TestMoveNext(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		seg, off  int
		wantFocus [2]int
	}{
		{"Offset 1 crosses", "ab", SegCLA, 1, [2]int{SegINS, 0}},
		{"Offset 0 moves within", "ab", SegCLA, 0, [2]int{SegCLA, 1}},
		{"End of full segment crosses", "ab", SegP2, 2, [2]int{SegLe, 0}},
		{"Empty segment crosses", "", SegP1, 0, [2]int{SegP2, 0}},
		{"Last fixed segment enters Data", "ab", SegLe, 1, [2]int{SegData, 0}},
		{"Data end stays", "abcd", SegData, 4, [2]int{SegData, 4}},
		{"Data moves within", "abcd", SegData, 1, [2]int{SegData, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New()
			e.segments[tt.seg].Text = tt.text
			if err := e.SetFocus(tt.seg, tt.off); err != nil {
				t.Fatalf("SetFocus: %v", err)
			}

			e.MoveNext()
			if got := focus(e); got != tt.wantFocus {
				t.Errorf("focus = %v, want %v", got, tt.wantFocus)
			}
		})
	}
}

func TestMovePrevAndBackspace(t *testing.T) {
	t.Run("Offset 0 crosses to the end of the previous segment", func(t *testing.T) {
		for _, op := range []func(*Editor){(*Editor).MovePrev, (*Editor).BackspaceAtStart, (*Editor).Backspace} {
			e := New()
			e.Clear()
			e.segments[SegP1].Text = "7"
			_ = e.SetFocus(SegP2, 0)

			op(e)
			if focus(e) != [2]int{SegP1, 1} {
				t.Errorf("focus = %v, want P1 at 1", focus(e))
			}
			if e.Text(SegP1) != "7" || e.Text(SegP2) != "00" {
				t.Errorf("crossing must not delete: %v", texts(e))
			}
		}
	})

	t.Run("Data start crosses to Le end", func(t *testing.T) {
		e := New()
		e.Clear()
		_ = e.SetFocus(SegData, 0)

		e.Backspace()
		if focus(e) != [2]int{SegLe, 2} {
			t.Errorf("focus = %v, want Le at 2", focus(e))
		}
	})

	t.Run("First segment start is a no-op", func(t *testing.T) {
		for _, op := range []func(*Editor){(*Editor).MovePrev, (*Editor).BackspaceAtStart, (*Editor).Backspace} {
			e := New()
			e.Clear()

			op(e)
			if focus(e) != [2]int{SegCLA, 0} {
				t.Errorf("focus = %v, want CLA at 0", focus(e))
			}
			if e.Text(SegCLA) != "00" {
				t.Errorf("CLA = %q, want unchanged", e.Text(SegCLA))
			}
		}
	})

	t.Run("Backspace inside a segment deletes", func(t *testing.T) {
		e := New()
		e.Clear()
		_ = e.SetFocus(SegINS, 2)

		e.Backspace()
		if e.Text(SegINS) != "0" || focus(e) != [2]int{SegINS, 1} {
			t.Errorf("got %q %v, want \"0\" at INS 1", e.Text(SegINS), focus(e))
		}
	})

	t.Run("BackspaceAtStart ignores other offsets", func(t *testing.T) {
		e := New()
		e.Clear()
		_ = e.SetFocus(SegINS, 1)

		e.BackspaceAtStart()
		if focus(e) != [2]int{SegINS, 1} || e.Text(SegINS) != "00" {
			t.Errorf("state changed: %q %v", e.Text(SegINS), focus(e))
		}
	})

	t.Run("MovePrev inside a segment", func(t *testing.T) {
		e := New()
		e.Clear()
		_ = e.SetFocus(SegINS, 2)

		e.MovePrev()
		if focus(e) != [2]int{SegINS, 1} {
			t.Errorf("focus = %v, want INS at 1", focus(e))
		}
	})
}

func TestDelete(t *testing.T) {
	e := New()
	e.Clear()
	_ = e.SetFocus(SegP1, 0)

	e.Delete()
	if e.Text(SegP1) != "0" {
		t.Errorf("P1 = %q, want %q", e.Text(SegP1), "0")
	}

	_ = e.SetFocus(SegP1, 1)
	e.Delete()
	if e.Text(SegP1) != "0" || focus(e) != [2]int{SegP1, 1} {
		t.Errorf("Delete at end must be a no-op: %q %v", e.Text(SegP1), focus(e))
	}
}

func TestPasteText(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(*Editor)
		paste     string
		wantTexts []string
		wantFocus [2]int
	}{
		{
			name:      "Spread over every segment into Data",
			setup:     func(*Editor) {},
			paste:     "0a1b2c3d4e5f67",
			wantTexts: []string{"0a", "1b", "2c", "3d", "4e", "5f67"},
			wantFocus: [2]int{SegData, 4},
		},
		{
			name:      "Separators and case are ignored",
			setup:     func(*Editor) {},
			paste:     "00 A4:04-00",
			wantTexts: []string{"00", "a4", "04", "00", "", ""},
			wantFocus: [2]int{SegLe, 0},
		},
		{
			name: "Prefix before the cursor is kept",
			setup: func(e *Editor) {
				e.Clear()
				e.segments[SegINS].Text = "ab"
				_ = e.SetFocus(SegINS, 1)
			},
			paste:     "cde",
			wantTexts: []string{"00", "ac", "de", "00", "00", ""},
			wantFocus: [2]int{SegP2, 0},
		},
		{
			name: "Short final chunk keeps focus",
			setup: func(e *Editor) {
				e.Clear()
				_ = e.SetFocus(SegP1, 0)
			},
			paste:     "123",
			wantTexts: []string{"00", "00", "12", "3", "00", ""},
			wantFocus: [2]int{SegP2, 1},
		},
		{
			name: "Leftover is inserted before existing Data",
			setup: func(e *Editor) {
				e.Clear()
				e.segments[SegData].Text = "ff"
				_ = e.SetFocus(SegLe, 0)
			},
			paste:     "0102",
			wantTexts: []string{"00", "00", "00", "00", "01", "02ff"},
			wantFocus: [2]int{SegData, 2},
		},
		{
			name: "Paste into Data inserts at the cursor",
			setup: func(e *Editor) {
				e.segments[SegData].Text = "aabb"
				_ = e.SetFocus(SegData, 2)
			},
			paste:     "1122",
			wantTexts: []string{"", "", "", "", "", "aa1122bb"},
			wantFocus: [2]int{SegData, 6},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New()
			tt.setup(e)

			if err := e.PasteText(tt.paste); err != nil {
				t.Fatalf("PasteText: %v", err)
			}
			if diff := cmp.Diff(tt.wantTexts, texts(e)); diff != "" {
				t.Errorf("texts mismatch (-want +got):\n%s", diff)
			}
			if got := focus(e); got != tt.wantFocus {
				t.Errorf("focus = %v, want %v", got, tt.wantFocus)
			}
		})
	}
}

func TestPasteText_Rejected(t *testing.T) {
	e := New()
	e.Clear()
	_ = e.SetFocus(SegINS, 1)

	if err := e.PasteText("xyz -- !"); !errors.Is(err, ErrNotHex) {
		t.Fatalf("expected ErrNotHex, got %v", err)
	}
	if diff := cmp.Diff([]string{"00", "00", "00", "00", "00", ""}, texts(e)); diff != "" {
		t.Errorf("state changed (-want +got):\n%s", diff)
	}
	if focus(e) != [2]int{SegINS, 1} {
		t.Errorf("focus changed: %v", focus(e))
	}
}

func TestCommit(t *testing.T) {
	t.Run("SELECT header with empty payload", func(t *testing.T) {
		e := New()
		if err := e.PasteText("00a4040000"); err != nil {
			t.Fatalf("PasteText: %v", err)
		}

		cmd, err := e.Commit()
		if err != nil {
			t.Fatalf("Commit: %v", err)
		}
		want := &iso7816.CommandAPDU{CLA: 0x00, INS: 0xA4, P1: 0x04, P2: 0x00, Le: 0x00}
		if diff := cmp.Diff(want, cmd); diff != "" {
			t.Errorf("command mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Single digit is zero padded, empty is 00", func(t *testing.T) {
		e := New()
		e.segments[SegCLA].Text = "8"
		e.segments[SegINS].Text = "ca"
		e.segments[SegData].Text = "DEADbeef"

		cmd, err := e.Commit()
		if err != nil {
			t.Fatalf("Commit: %v", err)
		}
		want := iso7816.NewCommandAPDU(0x08, 0xCA, 0x00, 0x00, []byte{0xDE, 0xAD, 0xBE, 0xEF}, 0x00)
		if diff := cmp.Diff(want, cmd); diff != "" {
			t.Errorf("command mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Odd Data length fails", func(t *testing.T) {
		e := New()
		e.Clear()
		e.segments[SegData].Text = "abc"

		_, err := e.Commit()
		if !errors.Is(err, ErrOddLength) {
			t.Fatalf("expected ErrOddLength, got %v", err)
		}
		var ce *CommitError
		if !errors.As(err, &ce) || ce.Segment != "Data" || ce.Digits != 3 {
			t.Errorf("unexpected commit error detail: %+v", ce)
		}
		if e.Text(SegData) != "abc" {
			t.Errorf("failed commit changed state: %q", e.Text(SegData))
		}
	})
}

func TestLoadAndClear(t *testing.T) {
	e := New()
	cmd := iso7816.NewCommandAPDU(0x80, 0x0A, 0xFF, 0x01, []byte{0x01, 0xAB}, 0x10)
	_ = e.SetFocus(SegP2, 0)

	e.Load(cmd)
	if diff := cmp.Diff([]string{"80", "0a", "ff", "01", "10", "01ab"}, texts(e)); diff != "" {
		t.Errorf("texts mismatch (-want +got):\n%s", diff)
	}
	if focus(e) != [2]int{SegCLA, 0} {
		t.Errorf("focus = %v, want CLA at 0", focus(e))
	}

	back, err := e.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if !back.Equal(cmd) {
		t.Errorf("Load/Commit changed the command: %v vs %v", back, cmd)
	}

	e.Clear()
	if diff := cmp.Diff([]string{"00", "00", "00", "00", "00", ""}, texts(e)); diff != "" {
		t.Errorf("Clear mismatch (-want +got):\n%s", diff)
	}
}

func TestSetFocus(t *testing.T) {
	e := New()
	e.Clear()

	if err := e.SetFocus(SegP1, 2); err != nil {
		t.Errorf("SetFocus(P1, 2): %v", err)
	}
	for _, bad := range [][2]int{{-1, 0}, {SegmentCount, 0}, {SegCLA, 3}, {SegData, 1}} {
		if err := e.SetFocus(bad[0], bad[1]); !errors.Is(err, ErrFocusOutOfRange) {
			t.Errorf("SetFocus(%d, %d) = %v, want ErrFocusOutOfRange", bad[0], bad[1], err)
		}
	}
	if focus(e) != [2]int{SegP1, 2} {
		t.Errorf("rejected SetFocus changed focus: %v", focus(e))
	}
}
