package iso7816

import (
	"fmt"
	"strings"
)

// Describe generates a field-by-field report of a command, as shown next to
// the editor before the command is transmitted.
func Describe(cmd *CommandAPDU) string {
	var sb strings.Builder

	sb.WriteString("=== COMMAND APDU ===\n")

	if cls, err := NewClass(cmd.CLA); err != nil {
		sb.WriteString(fmt.Sprintf("    + CLA:  %02X -> %v\n", cmd.CLA, err))
	} else {
		sb.WriteString(fmt.Sprintf("    + CLA:  %02X\n", cmd.CLA))
		for _, line := range strings.Split(cls.Verbose(), "\n") {
			sb.WriteString(fmt.Sprintf("            %s\n", line))
		}
	}

	if ins, err := NewInstruction(cmd.INS); err != nil {
		sb.WriteString(fmt.Sprintf("    + INS:  %02X -> %v\n", cmd.INS, err))
	} else {
		sb.WriteString(fmt.Sprintf("    + INS:  %02X -> %s\n", cmd.INS, ins.Verbose()))
	}

	sb.WriteString(fmt.Sprintf("    + P1P2: %02X %02X\n", cmd.P1, cmd.P2))

	if len(cmd.Data) > 0 {
		sb.WriteString(fmt.Sprintf("    + Lc:   %d\n", len(cmd.Data)))
		sb.WriteString(fmt.Sprintf("    + Data: %X (%q)\n", cmd.Data, safeASCII(cmd.Data)))
	}

	if cmd.HasLe() {
		sb.WriteString(fmt.Sprintf("    + Le:   %02X (%d)\n", cmd.Le, cmd.Ne()))
	} else {
		sb.WriteString("    + Le:   absent\n")
	}

	if raw, err := cmd.Bytes(); err != nil {
		sb.WriteString(fmt.Sprintf("    - Encoding failed: %v\n", err))
	} else {
		sb.WriteString(fmt.Sprintf("    = Wire: %X\n", raw))
	}

	return strings.TrimRight(sb.String(), "\n")
}

func safeASCII(data []byte) string {
	return strings.Map(func(r rune) rune {
		if r >= 32 && r <= 126 {
			return r
		}
		return '.'
	}, string(data))
}
