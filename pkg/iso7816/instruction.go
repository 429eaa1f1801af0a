package iso7816

import (
	"fmt"
)

// Instruction Byte (INS) Logic according to ISO/IEC 7816-4.
//
// 1. Data Encoding (Bit 1):
//    With the interindustry class an odd INS usually means the data field is BER-TLV
//    encoded (e.g. READ BINARY 'B0' vs 'B1').
//
// 2. Reserved Ranges:
//    '6X' and '9X' are invalid INS values: they collide with SW1 procedure bytes
//    in the T=0 transport (ISO/IEC 7816-3).

// InsCode is a typed representation of the instruction byte.
type InsCode byte

// Instruction codes referenced by the client and the inspector.
const (
	INS_VERIFY             InsCode = 0x20
	INS_GET_CHALLENGE      InsCode = 0x84
	INS_SELECT             InsCode = 0xA4
	INS_READ_BINARY        InsCode = 0xB0
	INS_READ_RECORD        InsCode = 0xB2
	INS_GET_RESPONSE       InsCode = 0xC0
	INS_GET_DATA           InsCode = 0xCA
	INS_UPDATE_BINARY      InsCode = 0xD6
	INS_PUT_DATA           InsCode = 0xDA
	INS_UPDATE_RECORD      InsCode = 0xDC
	INS_INTERNAL_AUTHENTIC InsCode = 0x88
)

var instructionNames = map[InsCode]string{
	0x04:                   "DEACTIVATE FILE",
	0x0C:                   "ERASE RECORD",
	0x0E:                   "ERASE BINARY",
	0x0F:                   "ERASE BINARY",
	0x10:                   "PERFORM SCQL OPERATION",
	0x12:                   "PERFORM TRANSACTION OPERATION",
	0x14:                   "PERFORM USER OPERATION",
	INS_VERIFY:             "VERIFY",
	0x21:                   "VERIFY",
	0x22:                   "MANAGE SECURITY ENVIRONMENT",
	0x24:                   "CHANGE REFERENCE DATA",
	0x26:                   "DISABLE VERIFICATION REQUIREMENT",
	0x28:                   "ENABLE VERIFICATION REQUIREMENT",
	0x2A:                   "PERFORM SECURITY OPERATION",
	0x2C:                   "RESET RETRY COUNTER",
	0x44:                   "ACTIVATE FILE",
	0x46:                   "GENERATE ASYMMETRIC KEY PAIR",
	0x70:                   "MANAGE CHANNEL",
	0x82:                   "EXTERNAL AUTHENTICATE",
	INS_GET_CHALLENGE:      "GET CHALLENGE",
	0x86:                   "GENERAL AUTHENTICATE",
	0x87:                   "GENERAL AUTHENTICATE",
	INS_INTERNAL_AUTHENTIC: "INTERNAL AUTHENTICATE",
	0xA0:                   "SEARCH BINARY",
	0xA1:                   "SEARCH BINARY",
	0xA2:                   "SEARCH RECORD",
	INS_SELECT:             "SELECT",
	INS_READ_BINARY:        "READ BINARY",
	0xB1:                   "READ BINARY",
	INS_READ_RECORD:        "READ RECORD",
	0xB3:                   "READ RECORD",
	INS_GET_RESPONSE:       "GET RESPONSE",
	0xC2:                   "ENVELOPE",
	0xC3:                   "ENVELOPE",
	INS_GET_DATA:           "GET DATA",
	0xCB:                   "GET DATA",
	0xD0:                   "WRITE BINARY",
	0xD1:                   "WRITE BINARY",
	0xD2:                   "WRITE RECORD",
	INS_UPDATE_BINARY:      "UPDATE BINARY",
	0xD7:                   "UPDATE BINARY",
	INS_PUT_DATA:           "PUT DATA",
	0xDB:                   "PUT DATA",
	INS_UPDATE_RECORD:      "UPDATE RECORD",
	0xDD:                   "UPDATE RECORD",
	0xE0:                   "CREATE FILE",
	0xE2:                   "APPEND RECORD",
	0xE4:                   "DELETE FILE",
	0xE6:                   "TERMINATE DF",
	0xE8:                   "TERMINATE EF",
	0xFE:                   "TERMINATE CARD USAGE",
}

// String returns the interindustry command name, or "UNKNOWN".
func (i InsCode) String() string {
	if name, ok := instructionNames[i]; ok {
		return name
	}
	return "UNKNOWN"
}

// Instruction represents the decoded INS byte.
type Instruction struct {
	Raw      InsCode
	IsBERTLV bool
}

// NewInstruction decodes an INS byte.
// It rejects '6X' and '9X' values as they are invalid according to ISO 7816-3.
func NewInstruction(ins byte) (Instruction, error) {
	highNibble := ins & 0xF0
	if highNibble == 0x60 || highNibble == 0x90 {
		return Instruction{Raw: InsCode(ins)}, fmt.Errorf("invalid INS 0x%02X: 6X and 9X are reserved", ins)
	}

	return Instruction{
		Raw:      InsCode(ins),
		IsBERTLV: ins&0x01 != 0,
	}, nil
}

// Verbose returns a human-readable description of the instruction.
func (i Instruction) Verbose() string {
	format := "Standard"
	if i.IsBERTLV {
		format = "BER-TLV"
	}
	return fmt.Sprintf("INS: 0x%02X | Command: %s | Format: %s", byte(i.Raw), i.Raw, format)
}
