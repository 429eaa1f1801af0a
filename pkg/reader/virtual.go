package reader

import (
	"encoding/hex"
	"fmt"
	"slices"
	"strings"

	"github.com/gregLibert/apdu-utility/pkg/iso7816"
	"github.com/pion/logging"
)

// VirtualReaderName is the reader a Virtual executor exposes by default.
const VirtualReaderName = "Virtual Card Reader 0"

// DefaultVirtualATR is a T=1 contact ATR with no historical bytes.
var DefaultVirtualATR = []byte{0x3B, 0x80, 0x80, 0x01, 0x01}

// Handler computes the raw response (data + SW1 SW2) of a raw command.
type Handler func(cmd []byte) ([]byte, error)

// EchoHandler answers every command with its data field followed by 9000.
func EchoHandler(cmd []byte) ([]byte, error) {
	data := commandData(cmd)
	return append(append([]byte(nil), data...), 0x90, 0x00), nil
}

// commandData extracts the data field of an encoded command, short or
// extended. Commands without a data field give nil.
func commandData(cmd []byte) []byte {
	if len(cmd) <= iso7816.HeaderSize+1 {
		return nil // case 1 or short case 2
	}
	body := cmd[iso7816.HeaderSize:]

	start, lc := 1, int(body[0])
	if lc == 0 {
		// Extended: 00 Lc1 Lc2.
		if len(body) < 3 {
			return nil
		}
		start, lc = 3, int(body[1])<<8|int(body[2])
	}
	if lc == 0 || start+lc > len(body) {
		return nil // extended case 2
	}
	return body[start : start+lc]
}

// ScriptHandler answers from a table keyed by the uppercase hex of the command.
// Unknown commands get fallback. Keys and responses may contain spaces.
func ScriptHandler(responses map[string]string, fallback iso7816.StatusWord) (Handler, error) {
	table := make(map[string][]byte, len(responses))
	for k, v := range responses {
		raw, err := hex.DecodeString(strings.ReplaceAll(v, " ", ""))
		if err != nil {
			return nil, fmt.Errorf("scripted response for %s: %w", k, err)
		}
		if len(raw) < 2 {
			return nil, fmt.Errorf("scripted response for %s: missing status word", k)
		}
		table[strings.ToUpper(strings.ReplaceAll(k, " ", ""))] = raw
	}
	return func(cmd []byte) ([]byte, error) {
		if resp, ok := table[fmt.Sprintf("%X", cmd)]; ok {
			return append([]byte(nil), resp...), nil
		}
		return []byte{fallback.SW1(), fallback.SW2()}, nil
	}, nil
}

// VirtualConfig configures a Virtual executor.
type VirtualConfig struct {
	// Readers lists the reader names. Empty means one VirtualReaderName.
	Readers []string

	// ATR is returned by Connect. Nil means DefaultVirtualATR.
	ATR []byte

	// Handler answers commands. Nil means EchoHandler.
	Handler Handler

	// AutoResponse enables automatic GET RESPONSE and Le correction.
	AutoResponse bool

	// LoggerFactory creates the reader logger. Nil disables logging.
	LoggerFactory logging.LoggerFactory
}

// Virtual is an in-memory Executor. It never touches hardware.
type Virtual struct {
	config VirtualConfig
	log    logging.LeveledLogger

	established bool
	connected   string
	sent        [][]byte
}

// NewVirtual creates a Virtual executor.
func NewVirtual(config VirtualConfig) *Virtual {
	if len(config.Readers) == 0 {
		config.Readers = []string{VirtualReaderName}
	}
	if config.ATR == nil {
		config.ATR = DefaultVirtualATR
	}
	if config.Handler == nil {
		config.Handler = EchoHandler
	}
	v := &Virtual{config: config}
	if config.LoggerFactory != nil {
		v.log = config.LoggerFactory.NewLogger("reader")
	}
	return v
}

// EstablishContext marks the context as established.
func (v *Virtual) EstablishContext(scope Scope) error {
	v.established = true
	if v.log != nil {
		v.log.Infof("Virtual context established (scope %s)", scope)
	}
	return nil
}

// IsContextEstablished reports whether EstablishContext was called.
func (v *Virtual) IsContextEstablished() bool {
	return v.established
}

// ReleaseContext drops the connection and the context.
func (v *Virtual) ReleaseContext() error {
	v.established = false
	v.connected = ""
	return nil
}

// ListReaders returns the configured reader names.
func (v *Virtual) ListReaders() ([]string, error) {
	if !v.established {
		return nil, ErrNoContext
	}
	return slices.Clone(v.config.Readers), nil
}

// Connect opens a connection to one of the configured readers.
func (v *Virtual) Connect(reader string, share ShareMode, protocol Protocol) (Status, error) {
	if !v.established {
		return Status{}, ErrNoContext
	}
	if !slices.Contains(v.config.Readers, reader) {
		return Status{}, fmt.Errorf("connect %s: %w", reader, ErrUnknownReader)
	}
	v.connected = reader

	if protocol == ProtocolAny {
		protocol = ProtocolT1
	}
	if v.log != nil {
		v.log.Infof("Connected to %s (%s, %s)", reader, share, protocol)
	}
	return Status{Reader: reader, Protocol: protocol, ATR: slices.Clone(v.config.ATR)}, nil
}

// Disconnect closes the connection.
func (v *Virtual) Disconnect(disposition Disposition) error {
	if v.connected == "" {
		return ErrNotConnected
	}
	v.connected = ""
	return nil
}

// Connected returns the connected reader name, or "".
func (v *Virtual) Connected() string {
	return v.connected
}

// Sent returns the raw commands received so far, follow-ups included.
func (v *Virtual) Sent() [][]byte {
	return slices.Clone(v.sent)
}

// Transmit sends cmd and returns the final response.
func (v *Virtual) Transmit(cmd *iso7816.CommandAPDU) (*iso7816.ResponseAPDU, error) {
	trace, err := v.TransmitTrace(cmd)
	if err != nil {
		return nil, err
	}
	return trace.Response(), nil
}

// TransmitTrace sends cmd through the handler and returns every exchange.
// A handler error drops the connection.
func (v *Virtual) TransmitTrace(cmd *iso7816.CommandAPDU) (iso7816.Trace, error) {
	if v.connected == "" {
		return nil, ErrNotConnected
	}

	client := iso7816.NewClient(transmitFunc(v.transmit))
	client.AutoResponse = v.config.AutoResponse

	trace, err := client.Send(cmd)
	if err != nil {
		if v.log != nil {
			v.log.Errorf("Transmit failed, dropping connection: %v", err)
		}
		v.connected = ""
		return trace, err
	}
	return trace, nil
}

func (v *Virtual) transmit(raw []byte) ([]byte, error) {
	v.sent = append(v.sent, slices.Clone(raw))
	return v.config.Handler(raw)
}

type transmitFunc func([]byte) ([]byte, error)

func (f transmitFunc) Transmit(cmd []byte) ([]byte, error) {
	return f(cmd)
}
