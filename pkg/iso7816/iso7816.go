/*
Package iso7816 implements the command and response structures used to talk to smart cards according to the ISO/IEC 7816 standard.

The package is deliberately byte-oriented: a CommandAPDU is the five bytes a user edits (CLA, INS, P1, P2, Le) plus a payload, and the encoder derives Lc and the short/extended form.

# Fundamentals

The communication with a smart card is strictly synchronous:
 1. The Host sends a Command APDU (Header + Optional Body).
 2. The Card processes it and returns a Response APDU (Optional Body + Trailer SW1/SW2).

# Status Words

Every response ends with a 2-byte Status Word (SW).
  - 0x9000: Success (OK).
  - 0x61XX: Success, but response data is still available (XX bytes).
  - 0x6CXX: Error, wrong length expectation (XX is the correct length).
  - Other: Various error conditions.

# Usage Example

	cmd := iso7816.NewCommandAPDU(0x00, 0xA4, 0x04, 0x00, aid, 0x00)

	client := iso7816.NewClient(card)
	client.AutoResponse = true

	trace, err := client.Send(cmd)
	if err != nil {
	    log.Fatal(err)
	}

	resp := trace.Response()
	fmt.Printf("SW: %s\n", resp.Status.Verbose())

	// Field-by-field explanation of the command, as shown by the editor.
	fmt.Println(iso7816.Describe(cmd))
*/
package iso7816
