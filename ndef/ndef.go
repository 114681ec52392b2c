// Package ndef encodes and decodes the NDEF URI records carried inside
// payment command frames. Only well-known URI records are accepted; the
// decoder is deliberately lenient about truncated payloads because the
// physical transport can cut a response short mid-transfer.
package ndef

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Record header flag bits.
const (
	flagMessageBegin = 0x80
	flagMessageEnd   = 0x40
	flagChunked      = 0x20
	flagShortRecord  = 0x10
	flagIDPresent    = 0x08
	tnfMask          = 0x07

	tnfWellKnown = 0x01
	typeURI      = 0x55 // 'U'
)

// Decoding errors.
var (
	ErrMalformed       = errors.New("ndef: malformed record")
	ErrUnsupportedType = errors.New("ndef: unsupported record type")
)

// URIRecord is a decoded well-known URI record. Partial is set when the
// buffer ended before the declared payload length; the URI then holds
// whatever bytes were present. Callers treat a partial record as usable
// input as long as the content still parses.
type URIRecord struct {
	URI     string
	Partial bool
}

// DecodeURIRecord parses a single NDEF record from buf.
func DecodeURIRecord(buf []byte) (URIRecord, error) {
	if len(buf) < 3 {
		return URIRecord{}, fmt.Errorf("%w: %d bytes", ErrMalformed, len(buf))
	}

	flags := buf[0]
	typeLen := int(buf[1])

	if flags&tnfMask != tnfWellKnown {
		return URIRecord{}, fmt.Errorf("%w: tnf %d", ErrUnsupportedType, flags&tnfMask)
	}

	short := flags&flagShortRecord != 0
	lenWidth := 4
	if short {
		lenWidth = 1
	}
	if len(buf) < 2+lenWidth {
		return URIRecord{}, fmt.Errorf("%w: header cut at length field", ErrMalformed)
	}

	var payloadLen int
	if short {
		payloadLen = int(buf[2])
	} else {
		payloadLen = int(binary.BigEndian.Uint32(buf[2 : 2+lenWidth]))
	}

	offset := 2 + lenWidth
	if typeLen != 1 || len(buf) < offset+typeLen {
		return URIRecord{}, fmt.Errorf("%w: type length %d", ErrUnsupportedType, typeLen)
	}
	if buf[offset] != typeURI {
		return URIRecord{}, fmt.Errorf("%w: type 0x%02x", ErrUnsupportedType, buf[offset])
	}
	offset += typeLen

	if flags&flagIDPresent != 0 {
		if len(buf) < offset+1 {
			return URIRecord{}, fmt.Errorf("%w: header cut at id length", ErrMalformed)
		}
		offset += 1 + int(buf[offset])
	}

	if offset > len(buf) || payloadLen < 1 {
		return URIRecord{}, fmt.Errorf("%w: payload start %d beyond %d bytes",
			ErrMalformed, offset, len(buf))
	}

	end := offset + payloadLen
	partial := false
	if end > len(buf) {
		// Lenient mode: decode the bytes actually present.
		end = len(buf)
		partial = true
	}
	if end <= offset {
		return URIRecord{}, fmt.Errorf("%w: empty payload", ErrMalformed)
	}

	payload := buf[offset:end]
	uri := ExpandPrefix(payload[0]) + string(payload[1:])
	return URIRecord{URI: uri, Partial: partial}, nil
}

// EncodeURIRecord emits the short-record form with no id and abbreviation
// code 0 (no prefix). The payload, abbreviation byte included, must fit the
// short-record ceiling of 255 bytes.
func EncodeURIRecord(uri string) ([]byte, error) {
	payloadLen := 1 + len(uri)
	if payloadLen > 0xFF {
		return nil, fmt.Errorf("%w: uri payload %d bytes exceeds short record",
			ErrMalformed, payloadLen)
	}

	out := make([]byte, 0, 4+payloadLen)
	out = append(out,
		flagMessageBegin|flagMessageEnd|flagShortRecord|tnfWellKnown,
		0x01,
		byte(payloadLen),
		typeURI,
		0x00, // no abbreviation
	)
	return append(out, uri...), nil
}
