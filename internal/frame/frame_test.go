package frame

import (
	"encoding/binary"
	"testing"

	"github.com/minimirror/linkd/internal/crc"
)

func TestEncode_Layout(t *testing.T) {
	h := Header{Receiver: 2, Sender: 1, Cmd: 0x0001, Seq: 7}
	payload := []byte("PING")
	wire := Encode(h, payload)

	for i := 0; i < PreambleLen; i++ {
		if wire[i] != PreambleByte {
			t.Fatalf("preamble byte %d = %#02x, want %#02x", i, wire[i], PreambleByte)
		}
	}
	gotLen := binary.BigEndian.Uint16(wire[PreambleLen : PreambleLen+2])
	wantLen := uint16(HeaderLen + len(payload) + CRCLen)
	if gotLen != wantLen {
		t.Fatalf("total length = %d, want %d", gotLen, wantLen)
	}
	if len(wire) != PreambleLen+2+int(wantLen) {
		t.Fatalf("wire length = %d, want %d", len(wire), PreambleLen+2+int(wantLen))
	}

	headerOff := PreambleLen + 2
	if got := binary.BigEndian.Uint16(wire[headerOff : headerOff+2]); got != h.Receiver {
		t.Errorf("receiver = %d, want %d", got, h.Receiver)
	}
	if got := binary.BigEndian.Uint16(wire[headerOff+2 : headerOff+4]); got != h.Sender {
		t.Errorf("sender = %d, want %d", got, h.Sender)
	}
	if got := binary.BigEndian.Uint16(wire[headerOff+4 : headerOff+6]); got != h.Cmd {
		t.Errorf("cmd = %d, want %d", got, h.Cmd)
	}
	if got := binary.BigEndian.Uint16(wire[headerOff+6 : headerOff+8]); got != h.Seq {
		t.Errorf("seq = %d, want %d", got, h.Seq)
	}

	crcRegion := wire[headerOff : len(wire)-CRCLen]
	wantCRC := crc.XMODEM(crcRegion)
	gotCRC := binary.BigEndian.Uint16(wire[len(wire)-CRCLen:])
	if gotCRC != wantCRC {
		t.Fatalf("crc = %#04x, want %#04x", gotCRC, wantCRC)
	}
}

func TestEncode_EmptyPayloadMinLength(t *testing.T) {
	wire := Encode(Header{Receiver: BroadcastID, Sender: 9, Cmd: 0x0020, Seq: 0}, nil)
	if len(wire) != PreambleLen+2+MinTotalLength {
		t.Fatalf("empty-payload frame length = %d, want %d", len(wire), PreambleLen+2+MinTotalLength)
	}
}
