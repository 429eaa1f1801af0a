package iso7816

import (
	"errors"
	"fmt"
)

// CLIENT & PROTOCOL LOGIC:
// The Client sends an edited command as-is. When AutoResponse is enabled it also
// performs the T=0 follow-ups that many readers leave to the application:
//
// 1. "61 XX" (Response Available): send GET RESPONSE with Le = XX.
// 2. "6C XX" (Wrong Length): re-send the original command with Le = XX.
//
// Send() returns a Trace holding every exchange, so the user sees exactly what
// went over the wire.

// DefaultMaxExchanges bounds the follow-ups triggered by a single Send.
const DefaultMaxExchanges = 16

// ErrTooManyExchanges is returned when the card keeps asking for follow-ups.
var ErrTooManyExchanges = errors.New("too many chained exchanges")

// Transmitter abstracts the physical card connection.
type Transmitter interface {
	Transmit(cmd []byte) ([]byte, error)
}

// Client manages the communication with the card.
type Client struct {
	Card         Transmitter
	AutoResponse bool
	MaxExchanges int
}

// NewClient creates a new Client instance.
func NewClient(card Transmitter) *Client {
	return &Client{Card: card, MaxExchanges: DefaultMaxExchanges}
}

// Send transmits a command and, if enabled, handles 61XX and 6CXX.
// On error the returned trace holds the exchanges that completed.
func (c *Client) Send(cmd *CommandAPDU) (Trace, error) {
	limit := c.MaxExchanges
	if limit <= 0 {
		limit = DefaultMaxExchanges
	}

	var trace Trace
	next := cmd
	for next != nil {
		if len(trace) >= limit {
			return trace, ErrTooManyExchanges
		}

		resp, err := c.exchange(next)
		if err != nil {
			return trace, err
		}
		trace = append(trace, Transaction{Command: next, Response: resp})

		if !c.AutoResponse {
			break
		}
		next = followUp(next, resp.Status)
	}

	return trace, nil
}

func (c *Client) exchange(cmd *CommandAPDU) (*ResponseAPDU, error) {
	rawCmd, err := cmd.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encoding error: %w", err)
	}

	rawResp, err := c.Card.Transmit(rawCmd)
	if err != nil {
		return nil, fmt.Errorf("transmission error: %w", err)
	}

	return ParseResponseAPDU(rawResp)
}

// followUp returns the command required by a procedure status, or nil.
func followUp(last *CommandAPDU, sw StatusWord) *CommandAPDU {
	switch sw.SW1() {
	case 0x61:
		// ISO 7816-4: GET RESPONSE uses the logical channel of the original command.
		cla := last.CLA
		if cls, err := NewClass(cla); err == nil {
			cla = cls.WithoutChaining()
		}
		// '61 00' means 256 bytes are waiting, so Le 00 must be sent.
		return NewCommandAPDU(cla, byte(INS_GET_RESPONSE), 0x00, 0x00, nil, 0x00).WithLe(sw.SW2())
	case 0x6C:
		return last.WithLe(sw.SW2())
	default:
		return nil
	}
}
