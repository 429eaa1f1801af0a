// Package tlv renders BER-TLV (Basic Encoding Rules - Tag-Length-Value)
// response data as an indented tree for the response inspector.
package tlv

import (
	"fmt"
	"strings"

	"github.com/moov-io/bertlv"
)

// Describe decodes data as BER-TLV and returns one line per tag.
// Constructed tags list their children indented below them; primitive tags
// show their value in hex, followed by the printable ASCII rendering when the
// value looks like text.
func Describe(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty data cannot be parsed")
	}

	packets, err := bertlv.Decode(data)
	if err != nil {
		return "", fmt.Errorf("bertlv decode failed: %w", err)
	}

	var lines []string
	writePackets(&lines, packets, 0)
	return strings.Join(lines, "\n"), nil
}

func writePackets(lines *[]string, packets []bertlv.TLV, depth int) {
	indent := strings.Repeat("  ", depth)

	for _, p := range packets {
		tag := strings.ToUpper(p.Tag)

		if len(p.TLVs) > 0 {
			*lines = append(*lines, fmt.Sprintf("%s%s", indent, tag))
			writePackets(lines, p.TLVs, depth+1)
			continue
		}

		*lines = append(*lines, fmt.Sprintf("%s%s (%d): %s", indent, tag, len(p.Value), formatValue(p.Value)))
	}
}

func formatValue(value []byte) string {
	if len(value) == 0 {
		return "-"
	}
	if isMostlyText(value) {
		return fmt.Sprintf("%X (%q)", value, MakeSafeASCII(value))
	}
	return fmt.Sprintf("%X", value)
}

func isMostlyText(value []byte) bool {
	printable := 0
	for _, b := range value {
		if b >= 32 && b <= 126 {
			printable++
		}
	}
	return printable*4 >= len(value)*3
}

// MakeSafeASCII replaces non-printable bytes with '.'.
func MakeSafeASCII(data []byte) string {
	return strings.Map(func(r rune) rune {
		if r >= 32 && r <= 126 {
			return r
		}
		return '.'
	}, string(data))
}
