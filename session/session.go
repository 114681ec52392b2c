// Package session drives the per-tap handshake between a payer device and a
// collector. A session is single-shot: it is created when a tap starts,
// walks Idle -> Selected -> AwaitingAddress -> AwaitingPayment -> Completed,
// and is destroyed on completion, timeout, or cancellation. The transport is
// half-duplex with no retransmission, so every command handled here produces
// exactly one response.
package session

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/freepay/freepay/apdu"
	"github.com/freepay/freepay/logger"
	"github.com/freepay/freepay/ndef"
	"github.com/freepay/freepay/types"
)

// State of a handshake session.
type State int

const (
	Idle State = iota
	Selected
	AwaitingAddress
	AwaitingPayment
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Selected:
		return "selected"
	case AwaitingAddress:
		return "awaiting-address"
	case AwaitingPayment:
		return "awaiting-payment"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == Completed || s == Failed
}

// FailReason explains a Failed session.
type FailReason string

const (
	ReasonNone              FailReason = ""
	ReasonProtocolViolation FailReason = "protocol_violation"
	ReasonTimeout           FailReason = "timeout"
	ReasonRelayFailed       FailReason = "relay_failed"
)

// AddressRequestURI is the message a collector sends to ask the payer for
// its account. The payer answers with the raw bytes of its canonical
// CAIP-10 account string, no record wrapper, because the response channel
// is a flat byte buffer.
const AddressRequestURI = "freepay://request-address"

// PaymentScheme marks a decoded message as a payment request to hand off.
const PaymentScheme = "ethereum:"

// AddressProvider supplies the payer's account. Implementations must return
// a syntactically valid account id or an error, regardless of how the
// address was captured.
type AddressProvider interface {
	AccountID() (types.AccountID, error)
}

// WalletLauncher hands a payment URI to an external wallet application.
type WalletLauncher interface {
	Launch(uri string) error
}

// Machine is one session's state machine. All methods are safe for
// concurrent use; a command response may race a timeout transition, and a
// terminal state, once set, is never overwritten.
type Machine struct {
	id       string
	provider AddressProvider
	launcher WalletLauncher
	log      logger.Logger

	mu          sync.Mutex
	state       State
	reason      FailReason
	startedAt   time.Time
	idleTimeout time.Duration
	timer       *time.Timer
}

// ID returns the session id.
func (m *Machine) ID() string { return m.id }

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// StartedAt returns when the session was created.
func (m *Machine) StartedAt() time.Time { return m.startedAt }

// Reason returns the failure reason, if the session failed.
func (m *Machine) Reason() FailReason {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reason
}

// Handle processes one raw command and returns the response to transmit.
// It never returns an empty response.
func (m *Machine) Handle(raw []byte) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.timer != nil {
		m.timer.Reset(m.idleTimeout)
	}

	if m.state.Terminal() {
		return apdu.EncodeResponse(nil, apdu.SWNotFound)
	}

	cmd, err := apdu.Decode(raw)
	if err != nil {
		return m.rejectLocked(err)
	}

	switch cmd.Kind {
	case apdu.KindSelect:
		return m.handleSelectLocked(cmd)
	case apdu.KindPayment, apdu.KindBareRecord:
		return m.handleRecordLocked(cmd.Payload)
	}
	return m.rejectLocked(apdu.ErrUnknownCommand)
}

// handleSelectLocked accepts any well-formed select. The platform has
// already routed the command here by AID, so a foreign identifier is noted
// but not refused.
func (m *Machine) handleSelectLocked(cmd apdu.Command) []byte {
	if !cmd.SelectsApplication() {
		m.log.Debug("select with foreign aid", map[string]any{"session": m.id})
	}
	m.state = Selected
	m.log.Debug("application selected", map[string]any{"session": m.id})
	return apdu.EncodeResponse(nil, apdu.SWSuccess)
}

func (m *Machine) handleRecordLocked(payload []byte) []byte {
	if m.state == Idle {
		// Payment before select is a legacy reader quirk; a record that
		// validates is still served, anything else is simply unsupported.
		m.state = Selected
	}

	rec, err := ndef.DecodeURIRecord(payload)
	if err != nil {
		return m.failLocked(ReasonProtocolViolation, apdu.SWWrongData, err)
	}
	if rec.Partial {
		m.log.Warn("record truncated by transport, using partial payload", map[string]any{
			"session": m.id,
			"bytes":   len(rec.URI),
		})
	}

	switch {
	case rec.URI == AddressRequestURI:
		return m.answerAddressLocked()
	case strings.HasPrefix(rec.URI, PaymentScheme):
		return m.relayPaymentLocked(rec.URI)
	}
	return m.failLocked(ReasonProtocolViolation, apdu.SWWrongData,
		types.Errorf(types.ErrProtocolViolation, "unrecognized message"))
}

func (m *Machine) answerAddressLocked() []byte {
	account, err := m.provider.AccountID()
	if err != nil {
		return m.failLocked(ReasonRelayFailed, apdu.SWWrongData, err)
	}
	m.state = AwaitingAddress
	m.log.Info("address request answered", map[string]any{
		"session": m.id,
		"account": account.String(),
	})
	return apdu.EncodeResponse([]byte(account.String()), apdu.SWSuccess)
}

func (m *Machine) relayPaymentLocked(uri string) []byte {
	m.state = AwaitingPayment
	if err := m.launcher.Launch(uri); err != nil {
		return m.failLocked(ReasonRelayFailed, apdu.SWWrongData, err)
	}
	m.state = Completed
	m.stopTimerLocked()
	m.log.Info("payment handed off to wallet", map[string]any{"session": m.id})
	return apdu.EncodeResponse(nil, apdu.SWSuccess)
}

// rejectLocked maps a frame decode failure to its status word. Outside
// Idle the session is also failed: a malformed frame mid-handshake means
// the two ends have lost protocol agreement.
func (m *Machine) rejectLocked(err error) []byte {
	sw := apdu.SWNotFound
	if errors.Is(err, apdu.ErrTruncated) {
		sw = apdu.SWWrongData
	}
	if m.state != Idle {
		return m.failLocked(ReasonProtocolViolation, sw, err)
	}
	m.log.Debug("frame rejected", map[string]any{"session": m.id, "error": err.Error()})
	return apdu.EncodeResponse(nil, sw)
}

func (m *Machine) failLocked(reason FailReason, sw []byte, err error) []byte {
	if !m.state.Terminal() {
		m.state = Failed
		m.reason = reason
		m.stopTimerLocked()
		m.log.Warn("session failed", map[string]any{
			"session": m.id,
			"reason":  string(reason),
			"error":   err.Error(),
		})
	}
	return apdu.EncodeResponse(nil, sw)
}

// expire is invoked by the inactivity timer.
func (m *Machine) expire() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Terminal() {
		return
	}
	m.state = Failed
	m.reason = ReasonTimeout
	m.log.Warn("session timed out", map[string]any{"session": m.id})
}

func (m *Machine) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
	}
}
