package hexedit

import "strings"

// SEGMENT MODEL:
// A command is edited as one logical hex string shown through several windows.
//
// 1. FixedByte: exactly one byte (two hex digits). Typing overwrites.
//    Holding a single digit is allowed while editing; it commits as '0X'.
//
// 2. FreeHex: any number of digits. Typing inserts.
//    The digit count must be even when the editor commits.

// SegmentKind tells how a segment accepts input.
type SegmentKind int

const (
	// FixedByte holds at most two hex digits with overwrite semantics.
	FixedByte SegmentKind = iota
	// FreeHex holds an unbounded run of hex digits with insert semantics.
	FreeHex
)

func (k SegmentKind) String() string {
	switch k {
	case FixedByte:
		return "FixedByte"
	case FreeHex:
		return "FreeHex"
	default:
		return "Unknown"
	}
}

// FixedWidth is the number of hex digits a FixedByte segment can hold.
const FixedWidth = 2

// Segment is one editable unit of the editor.
type Segment struct {
	Label string
	Kind  SegmentKind
	Text  string
}

// Full reports whether a fixed segment already holds both digits.
// A FreeHex segment is never full.
func (s Segment) Full() bool {
	return s.Kind == FixedByte && len(s.Text) >= FixedWidth
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// FilterHex keeps only hex digits from raw and lowers their case.
func FilterHex(raw string) string {
	var sb strings.Builder
	sb.Grow(len(raw))
	for _, r := range raw {
		if isHexDigit(r) {
			sb.WriteRune(r)
		}
	}
	return strings.ToLower(sb.String())
}
