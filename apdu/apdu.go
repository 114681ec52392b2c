// Package apdu implements the command/response byte framing used over the
// contactless link. Frames are stateless and validated independently; a
// malformed frame is reported as an error, never a panic, because the
// transport has no retransmission and every command needs a response.
package apdu

import (
	"bytes"
	"errors"
	"fmt"
)

// Command prefixes. CLA/INS/P1/P2 of the two commands the reader issues.
var (
	// SelectPrefix starts a SELECT-by-AID command.
	SelectPrefix = []byte{0x00, 0xA4, 0x04, 0x00}

	// PaymentPrefix starts a proprietary payment-message command. The body
	// is a 1-byte length followed by an NDEF record.
	PaymentPrefix = []byte{0x80, 0xCF, 0x00, 0x00}
)

// AID is the application identifier selected at the start of every tap:
// proprietary RID 0xF0 followed by "FREEPAY".
var AID = []byte{0xF0, 0x46, 0x52, 0x45, 0x45, 0x50, 0x41, 0x59}

// Status words appended to every response.
var (
	SWSuccess   = []byte{0x90, 0x00}
	SWNotFound  = []byte{0x6A, 0x82}
	SWWrongData = []byte{0x6A, 0x80}
)

// Frame decoding errors.
var (
	ErrTruncated      = errors.New("apdu: frame shorter than declared length")
	ErrUnknownCommand = errors.New("apdu: unrecognized command")
)

// Kind discriminates the decoded command.
type Kind int

const (
	KindSelect Kind = iota + 1
	KindPayment
	// KindBareRecord is a legacy fallback: some senders push the NDEF
	// record with no command wrapper at all.
	KindBareRecord
)

func (k Kind) String() string {
	switch k {
	case KindSelect:
		return "select"
	case KindPayment:
		return "payment"
	case KindBareRecord:
		return "bare-record"
	}
	return "unknown"
}

// Command is a decoded contactless command.
type Command struct {
	Kind    Kind
	Payload []byte // AID for select, record bytes otherwise
}

// ndefLeadingByte matches the flags byte EncodeURIRecord emits
// (MB|ME|SR, TNF well-known), used to spot a bare record frame.
const ndefLeadingByte = 0xD1

// Decode parses a raw command buffer. Validation order: prefix match, then
// length byte presence, then declared length against available bytes.
func Decode(buf []byte) (Command, error) {
	switch {
	case bytes.HasPrefix(buf, SelectPrefix):
		payload, err := lengthPrefixedBody(buf, len(SelectPrefix))
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: KindSelect, Payload: payload}, nil

	case bytes.HasPrefix(buf, PaymentPrefix):
		payload, err := lengthPrefixedBody(buf, len(PaymentPrefix))
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: KindPayment, Payload: payload}, nil

	case len(buf) > 0 && buf[0] == ndefLeadingByte:
		return Command{Kind: KindBareRecord, Payload: buf}, nil
	}
	return Command{}, fmt.Errorf("%w: % x", ErrUnknownCommand, head(buf, 4))
}

func lengthPrefixedBody(buf []byte, offset int) ([]byte, error) {
	if len(buf) < offset+1 {
		return nil, fmt.Errorf("%w: missing length byte", ErrTruncated)
	}
	declared := int(buf[offset])
	if len(buf) < offset+1+declared {
		return nil, fmt.Errorf("%w: declared %d, have %d",
			ErrTruncated, declared, len(buf)-offset-1)
	}
	return buf[offset+1 : offset+1+declared], nil
}

// SelectsApplication reports whether a select command carries our AID.
// Some readers declare one byte short and push the final AID byte into the
// trailing Le slot, so a clipped prefix of the AID is accepted too.
func (c Command) SelectsApplication() bool {
	if c.Kind != KindSelect {
		return false
	}
	if bytes.Equal(c.Payload, AID) {
		return true
	}
	return len(c.Payload) >= 5 && bytes.HasPrefix(AID, c.Payload)
}

// EncodeResponse appends the status word to an optional payload.
func EncodeResponse(payload []byte, sw []byte) []byte {
	out := make([]byte, 0, len(payload)+2)
	out = append(out, payload...)
	return append(out, sw...)
}

func head(b []byte, n int) []byte {
	if len(b) < n {
		return b
	}
	return b[:n]
}
