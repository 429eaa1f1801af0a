// Package reader connects the editor to a card reader. It defines the
// Executor boundary and two implementations: PCSC for real readers and
// Virtual for tests and offline use.
package reader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gregLibert/apdu-utility/pkg/iso7816"
)

var (
	// ErrNoContext is returned when no resource manager context is established.
	ErrNoContext = errors.New("no reader context established")
	// ErrNotConnected is returned when no card connection is open.
	ErrNotConnected = errors.New("not connected to a card")
	// ErrUnknownReader is returned when a reader name is not available.
	ErrUnknownReader = errors.New("unknown reader")
)

// Executor is the transport the session drives. Calls are synchronous and may
// be slow. After a Transmit error the connection state is unknown and the
// caller must connect again.
type Executor interface {
	EstablishContext(scope Scope) error
	IsContextEstablished() bool
	ReleaseContext() error
	ListReaders() ([]string, error)
	Connect(reader string, share ShareMode, protocol Protocol) (Status, error)
	Disconnect(disposition Disposition) error
	Transmit(cmd *iso7816.CommandAPDU) (*iso7816.ResponseAPDU, error)
}

// Tracer is implemented by executors that can report every exchange a
// command triggered, follow-ups included.
type Tracer interface {
	TransmitTrace(cmd *iso7816.CommandAPDU) (iso7816.Trace, error)
}

// Send transmits cmd through e and returns the exchanges it produced.
// Executors without Tracer yield a single transaction.
func Send(e Executor, cmd *iso7816.CommandAPDU) (iso7816.Trace, error) {
	if t, ok := e.(Tracer); ok {
		return t.TransmitTrace(cmd)
	}
	resp, err := e.Transmit(cmd)
	if err != nil {
		return nil, err
	}
	return iso7816.Trace{{Command: cmd, Response: resp}}, nil
}

// Status is the result of a successful Connect.
type Status struct {
	Reader   string
	Protocol Protocol
	ATR      []byte
}

func (s Status) String() string {
	return fmt.Sprintf("%s (%s) ATR: %X", s.Reader, s.Protocol, s.ATR)
}

// Scope is the resource manager context scope.
type Scope int

const (
	ScopeUser Scope = iota
	ScopeTerminal
	ScopeSystem
)

var scopeNames = []string{"user", "terminal", "system"}

func (s Scope) String() string { return enumName(scopeNames, int(s)) }

// ParseScope parses a scope name.
func ParseScope(s string) (Scope, error) {
	v, err := parseEnum("scope", scopeNames, s)
	return Scope(v), err
}

// ShareMode tells whether other applications may use the card.
type ShareMode int

const (
	ShareShared ShareMode = iota
	ShareExclusive
	ShareDirect
)

var shareNames = []string{"shared", "exclusive", "direct"}

func (m ShareMode) String() string { return enumName(shareNames, int(m)) }

// ParseShareMode parses a share mode name.
func ParseShareMode(s string) (ShareMode, error) {
	v, err := parseEnum("share mode", shareNames, s)
	return ShareMode(v), err
}

// Protocol is the transmission protocol requested at connection time.
type Protocol int

const (
	// ProtocolAny lets the reader negotiate T=0 or T=1.
	ProtocolAny Protocol = iota
	ProtocolT0
	ProtocolT1
	ProtocolRaw
)

var protocolNames = []string{"any", "t0", "t1", "raw"}

func (p Protocol) String() string { return enumName(protocolNames, int(p)) }

// ParseProtocol parses a protocol name.
func ParseProtocol(s string) (Protocol, error) {
	v, err := parseEnum("protocol", protocolNames, s)
	return Protocol(v), err
}

// Disposition tells what happens to the card on disconnect.
type Disposition int

const (
	LeaveCard Disposition = iota
	ResetCard
	UnpowerCard
	EjectCard
)

var dispositionNames = []string{"leave", "reset", "unpower", "eject"}

func (d Disposition) String() string { return enumName(dispositionNames, int(d)) }

// ParseDisposition parses a disposition name.
func ParseDisposition(s string) (Disposition, error) {
	v, err := parseEnum("disposition", dispositionNames, s)
	return Disposition(v), err
}

func enumName(names []string, v int) string {
	if v < 0 || v >= len(names) {
		return fmt.Sprintf("unknown(%d)", v)
	}
	return names[v]
}

func parseEnum(kind string, names []string, s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range names {
		if n == s {
			return i, nil
		}
	}
	return 0, fmt.Errorf("invalid %s %q (want one of %s)", kind, s, strings.Join(names, ", "))
}

// ScopeNames lists the accepted scope names.
func ScopeNames() []string { return append([]string(nil), scopeNames...) }

// ShareModeNames lists the accepted share mode names.
func ShareModeNames() []string { return append([]string(nil), shareNames...) }

// ProtocolNames lists the accepted protocol names.
func ProtocolNames() []string { return append([]string(nil), protocolNames...) }

// DispositionNames lists the accepted disposition names.
func DispositionNames() []string { return append([]string(nil), dispositionNames...) }
