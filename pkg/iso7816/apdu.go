package iso7816

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// APDU (Application Protocol Data Unit) structures according to ISO/IEC 7816-3 and 7816-4.
//
// COMMAND APDU (C-APDU):
// The editor works on five single-byte fields and one payload.
//
//	CLA | INS | P1 | P2 | [Lc | Data] | [Le]
//
//   - CLA, INS, P1, P2: the mandatory header.
//   - Lc: derived from the payload length, never edited directly.
//   - Le: the expected response length as typed by the user. 00 is not sent
//     unless LePresent is set, in which case it asks for 256 bytes (65536 in
//     extended mode).
//
// ENCODING CASES (ISO 7816-3):
// - Case 1: header only (no Data, no Le).
// - Case 2: header + Le.
// - Case 3: header + Lc + Data.
// - Case 4: header + Lc + Data + Le.
//
// A payload longer than 255 bytes switches to extended length: Lc becomes
// '00 XX XX' and Le becomes two bytes.
//
// RESPONSE APDU (R-APDU):
// Optional data followed by the mandatory trailer SW1 SW2 (e.g. '90 00').

// APDU Limits according to ISO 7816-3.
const (
	// HeaderSize is the size of CLA INS P1 P2.
	HeaderSize = 4

	// MaxShortLc is the maximum payload length encodable in short mode.
	MaxShortLc = 255

	// MaxExtendedLc is the maximum payload length encodable in extended mode.
	MaxExtendedLc = 65535

	// MaxAPDUBufferSize bounds an encoded extended command.
	// Header(4) + ExtLc(3) + MaxData(65535) + ExtLe(2).
	MaxAPDUBufferSize = HeaderSize + 3 + MaxExtendedLc + 2
)

// CommandAPDU represents a command sent to the card.
// Values are not modified after construction; callers replace them instead.
type CommandAPDU struct {
	CLA  byte
	INS  byte
	P1   byte
	P2   byte
	Le   byte
	Data []byte

	// LePresent forces Le on the wire even when it is 00.
	LePresent bool
}

// NewCommandAPDU creates a command holding its own copy of data.
// An empty payload is stored as nil.
func NewCommandAPDU(cla, ins, p1, p2 byte, data []byte, le byte) *CommandAPDU {
	return &CommandAPDU{
		CLA:  cla,
		INS:  ins,
		P1:   p1,
		P2:   p2,
		Le:   le,
		Data: append([]byte(nil), data...),
	}
}

// Clone returns a deep copy of the command.
func (c *CommandAPDU) Clone() *CommandAPDU {
	clone := NewCommandAPDU(c.CLA, c.INS, c.P1, c.P2, c.Data, c.Le)
	clone.LePresent = c.LePresent
	return clone
}

// WithLe returns a copy of the command that always sends le, 00 included.
func (c *CommandAPDU) WithLe(le byte) *CommandAPDU {
	clone := c.Clone()
	clone.Le = le
	clone.LePresent = true
	return clone
}

// HasLe reports whether Le is part of the encoded command.
func (c *CommandAPDU) HasLe() bool {
	return c.LePresent || c.Le != 0
}

// Ne returns the number of response bytes requested, 0 when Le is absent.
func (c *CommandAPDU) Ne() int {
	switch {
	case !c.HasLe():
		return 0
	case c.Le != 0:
		return int(c.Le)
	case len(c.Data) > MaxShortLc:
		return MaxExtendedLc + 1
	default:
		return MaxShortLc + 1
	}
}

// Equal reports whether both commands carry the same bytes.
func (c *CommandAPDU) Equal(o *CommandAPDU) bool {
	if c == nil || o == nil {
		return c == o
	}
	return c.CLA == o.CLA && c.INS == o.INS && c.P1 == o.P1 && c.P2 == o.P2 &&
		c.Le == o.Le && c.HasLe() == o.HasLe() && bytes.Equal(c.Data, o.Data)
}

// Bytes encodes the command into its wire representation.
// Extended length is selected when the payload exceeds MaxShortLc.
func (c *CommandAPDU) Bytes() ([]byte, error) {
	nc := len(c.Data)
	if nc > MaxExtendedLc {
		return nil, fmt.Errorf("payload too long: %d bytes (max %d)", nc, MaxExtendedLc)
	}

	buf := new(bytes.Buffer)
	buf.Grow(HeaderSize + 3 + nc + 2)

	// 1. Header
	buf.WriteByte(c.CLA)
	buf.WriteByte(c.INS)
	buf.WriteByte(c.P1)
	buf.WriteByte(c.P2)

	isExtended := nc > MaxShortLc

	// 2. Lc + Data
	if nc > 0 {
		if isExtended {
			buf.WriteByte(0x00)
			buf.WriteByte(byte(nc >> 8))
			buf.WriteByte(byte(nc))
		} else {
			buf.WriteByte(byte(nc))
		}
		buf.Write(c.Data)
	}

	// 3. Le
	if c.HasLe() {
		if isExtended {
			buf.WriteByte(0x00)
		}
		buf.WriteByte(c.Le)
	}

	return buf.Bytes(), nil
}

// Hex returns the encoded command as lowercase hex, or "" if it cannot be encoded.
func (c *CommandAPDU) Hex() string {
	raw, err := c.Bytes()
	if err != nil {
		return ""
	}
	return hex.EncodeToString(raw)
}

// String returns a readable representation of the command meta-data.
func (c *CommandAPDU) String() string {
	return fmt.Sprintf("%02X %02X %02X %02X | Lc: %d | Le: %02X",
		c.CLA, c.INS, c.P1, c.P2, len(c.Data), c.Le)
}

// ResponseAPDU represents the reply from the card (R-APDU).
type ResponseAPDU struct {
	Data   []byte
	Status StatusWord
}

// ParseResponseAPDU parses raw bytes received from the card into a ResponseAPDU.
// The input must contain at least 2 bytes (SW1, SW2).
func ParseResponseAPDU(raw []byte) (*ResponseAPDU, error) {
	if len(raw) < 2 {
		return nil, fmt.Errorf("response too short: length %d", len(raw))
	}

	indexSW1 := len(raw) - 2

	return &ResponseAPDU{
		Data:   append([]byte(nil), raw[:indexSW1]...),
		Status: NewStatusWord(raw[indexSW1], raw[indexSW1+1]),
	}, nil
}

// SW1 returns the first status byte.
func (r *ResponseAPDU) SW1() byte {
	return r.Status.SW1()
}

// SW2 returns the second status byte.
func (r *ResponseAPDU) SW2() byte {
	return r.Status.SW2()
}

// String returns a readable representation of the response.
func (r *ResponseAPDU) String() string {
	return fmt.Sprintf("Data (%d bytes) | Status: %s", len(r.Data), r.Status.Verbose())
}
