// Package frame implements the on-wire layout of a single link frame:
// preamble, length-prefixed header, opaque payload, and a trailing
// CRC-16/XMODEM. Encoding is stateless; decoding is driven byte-at-a-time by
// the receive state machine in package node, since the transport is a raw
// byte stream with no framing of its own.
package frame

import (
	"encoding/binary"

	"github.com/minimirror/linkd/internal/crc"
)

const (
	// PreambleByte is repeated PreambleLen times at the start of every frame.
	PreambleByte byte = 0x16
	PreambleLen  int  = 4

	// HeaderLen is the size in bytes of receiver+sender+cmd+seq, each u16 BE.
	HeaderLen = 8
	// CRCLen is the size in bytes of the trailing CRC.
	CRCLen = 2
	// MinTotalLength is the smallest legal declared length: header + 0 payload + CRC.
	MinTotalLength = HeaderLen + CRCLen

	// BroadcastID is the receiver id that every node accepts regardless of its own id.
	BroadcastID uint16 = 0xFFFF
)

// Header holds the four big-endian u16 header fields of a frame.
type Header struct {
	Receiver uint16
	Sender   uint16
	Cmd      uint16
	Seq      uint16
}

// PutHeader writes h into dst in wire order. dst must have length >= HeaderLen.
func PutHeader(dst []byte, h Header) {
	binary.BigEndian.PutUint16(dst[0:2], h.Receiver)
	binary.BigEndian.PutUint16(dst[2:4], h.Sender)
	binary.BigEndian.PutUint16(dst[4:6], h.Cmd)
	binary.BigEndian.PutUint16(dst[6:8], h.Seq)
}

// Encode renders a complete outbound frame: preamble, big-endian total
// length, header, payload, and a CRC-16/XMODEM computed over header+payload.
// It is a pure function; the caller supplies the sequence number to embed
// (the outbound sequence counter is owned by the node, not this package).
func Encode(h Header, payload []byte) []byte {
	totalLength := HeaderLen + len(payload) + CRCLen
	out := make([]byte, PreambleLen+2+totalLength)

	for i := 0; i < PreambleLen; i++ {
		out[i] = PreambleByte
	}
	binary.BigEndian.PutUint16(out[PreambleLen:PreambleLen+2], uint16(totalLength))

	headerOff := PreambleLen + 2
	PutHeader(out[headerOff:headerOff+HeaderLen], h)
	copy(out[headerOff+HeaderLen:], payload)

	crcRegion := out[headerOff : headerOff+HeaderLen+len(payload)]
	sum := crc.XMODEM(crcRegion)
	binary.BigEndian.PutUint16(out[len(out)-CRCLen:], sum)

	return out
}
