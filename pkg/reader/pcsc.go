package reader

import (
	"fmt"

	"github.com/ebfe/scard"
	"github.com/gregLibert/apdu-utility/pkg/iso7816"
	"github.com/pion/logging"
)

// PC/SC BACKEND:
// The resource manager context is established once, then a card connection
// is opened per reader. Commands go through an iso7816.Client so the optional
// 61XX/6CXX follow-ups are handled in one place for every backend.
//
// The PC/SC binding always establishes a system scope context; the requested
// scope is recorded and reported but the resource manager decides.

// PCSCConfig configures a PCSC executor.
type PCSCConfig struct {
	// AutoResponse enables automatic GET RESPONSE and Le correction.
	AutoResponse bool

	// MaxExchanges bounds the follow-ups of a single command.
	MaxExchanges int

	// LoggerFactory creates the reader logger. Nil disables logging.
	LoggerFactory logging.LoggerFactory
}

// PCSC is an Executor backed by the system PC/SC resource manager.
type PCSC struct {
	config PCSCConfig
	log    logging.LeveledLogger

	ctx   *scard.Context
	card  *scard.Card
	scope Scope
}

// NewPCSC creates a PCSC executor. No context is established yet.
func NewPCSC(config PCSCConfig) *PCSC {
	p := &PCSC{config: config}
	if config.LoggerFactory != nil {
		p.log = config.LoggerFactory.NewLogger("reader")
	}
	return p
}

// EstablishContext opens the resource manager context. It is a no-op when a
// valid context already exists.
func (p *PCSC) EstablishContext(scope Scope) error {
	if p.IsContextEstablished() {
		return nil
	}
	ctx, err := scard.EstablishContext()
	if err != nil {
		return fmt.Errorf("establish context: %w", err)
	}
	p.ctx = ctx
	p.scope = scope
	if p.log != nil {
		p.log.Infof("PC/SC context established (requested scope %s)", scope)
	}
	return nil
}

// IsContextEstablished reports whether the context is still valid.
func (p *PCSC) IsContextEstablished() bool {
	if p.ctx == nil {
		return false
	}
	ok, err := p.ctx.IsValid()
	return err == nil && ok
}

// Scope returns the scope requested when the context was established.
func (p *PCSC) Scope() Scope {
	return p.scope
}

// ReleaseContext drops the card connection and the context.
func (p *PCSC) ReleaseContext() error {
	if p.ctx == nil {
		return nil
	}
	if p.card != nil {
		if err := p.card.Disconnect(scard.LeaveCard); err != nil && p.log != nil {
			p.log.Warnf("Failed to disconnect card: %v", err)
		}
		p.card = nil
	}
	err := p.ctx.Release()
	p.ctx = nil
	if err != nil {
		return fmt.Errorf("release context: %w", err)
	}
	return nil
}

// ListReaders returns the names of the readers known to the resource manager.
func (p *PCSC) ListReaders() ([]string, error) {
	if p.ctx == nil {
		return nil, ErrNoContext
	}
	readers, err := p.ctx.ListReaders()
	if err != nil {
		if err == scard.ErrNoReadersAvailable {
			return nil, nil
		}
		return nil, fmt.Errorf("list readers: %w", err)
	}
	return readers, nil
}

// Connect opens a connection to the card in reader. An existing connection
// is closed first.
func (p *PCSC) Connect(reader string, share ShareMode, protocol Protocol) (Status, error) {
	if p.ctx == nil {
		return Status{}, ErrNoContext
	}
	if p.card != nil {
		if err := p.Disconnect(LeaveCard); err != nil && p.log != nil {
			p.log.Warnf("Failed to close previous connection: %v", err)
		}
	}

	card, err := p.ctx.Connect(reader, scardShareMode(share), scardProtocol(protocol))
	if err != nil {
		return Status{}, fmt.Errorf("connect %s: %w", reader, err)
	}
	p.card = card

	st := Status{Reader: reader, Protocol: protocol}
	if cs, err := card.Status(); err == nil {
		st.Protocol = fromScardProtocol(cs.ActiveProtocol)
		st.ATR = append([]byte(nil), cs.Atr...)
	} else if p.log != nil {
		p.log.Warnf("Failed to read card status: %v", err)
	}

	if p.log != nil {
		p.log.Infof("Connected to %s", st)
	}
	return st, nil
}

// Disconnect closes the card connection.
func (p *PCSC) Disconnect(disposition Disposition) error {
	if p.card == nil {
		return ErrNotConnected
	}
	err := p.card.Disconnect(scardDisposition(disposition))
	p.card = nil
	if err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	return nil
}

// Transmit sends cmd and returns the final response.
func (p *PCSC) Transmit(cmd *iso7816.CommandAPDU) (*iso7816.ResponseAPDU, error) {
	trace, err := p.TransmitTrace(cmd)
	if err != nil {
		return nil, err
	}
	return trace.Response(), nil
}

// TransmitTrace sends cmd and returns every exchange it triggered. A transport
// error drops the connection.
func (p *PCSC) TransmitTrace(cmd *iso7816.CommandAPDU) (iso7816.Trace, error) {
	if p.card == nil {
		return nil, ErrNotConnected
	}

	client := iso7816.NewClient(p.card)
	client.AutoResponse = p.config.AutoResponse
	if p.config.MaxExchanges > 0 {
		client.MaxExchanges = p.config.MaxExchanges
	}

	if p.log != nil {
		p.log.Debugf(">> %s", cmd.Hex())
	}
	trace, err := client.Send(cmd)
	if err != nil {
		if p.log != nil {
			p.log.Errorf("Transmit failed, dropping connection: %v", err)
		}
		_ = p.card.Disconnect(scard.LeaveCard)
		p.card = nil
		return trace, err
	}
	if p.log != nil {
		for _, tx := range trace {
			p.log.Debugf("<< %s", tx.Response)
		}
	}
	return trace, nil
}

func scardShareMode(m ShareMode) scard.ShareMode {
	switch m {
	case ShareExclusive:
		return scard.ShareExclusive
	case ShareDirect:
		return scard.ShareDirect
	default:
		return scard.ShareShared
	}
}

func scardProtocol(p Protocol) scard.Protocol {
	switch p {
	case ProtocolT0:
		return scard.ProtocolT0
	case ProtocolT1:
		return scard.ProtocolT1
	case ProtocolRaw:
		return scard.ProtocolRaw
	default:
		// T=0 or T=1 avoids "Parameter Incorrect" on readers that reject Undefined.
		return scard.ProtocolT0 | scard.ProtocolT1
	}
}

func fromScardProtocol(p scard.Protocol) Protocol {
	switch p {
	case scard.ProtocolT0:
		return ProtocolT0
	case scard.ProtocolT1:
		return ProtocolT1
	case scard.ProtocolRaw:
		return ProtocolRaw
	default:
		return ProtocolAny
	}
}

func scardDisposition(d Disposition) scard.Disposition {
	switch d {
	case ResetCard:
		return scard.ResetCard
	case UnpowerCard:
		return scard.UnpowerCard
	case EjectCard:
		return scard.EjectCard
	default:
		return scard.LeaveCard
	}
}
