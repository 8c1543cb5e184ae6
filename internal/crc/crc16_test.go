package crc

import "testing"

func TestXMODEM_KnownVectors(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want uint16
	}{
		{"empty", nil, 0x0000},
		{"123456789", []byte("123456789"), 0x31C3},
	}
	for _, tc := range cases {
		if got := XMODEM(tc.in); got != tc.want {
			t.Errorf("%s: XMODEM(%q) = %#04x, want %#04x", tc.name, tc.in, got, tc.want)
		}
	}
}

func TestXMODEM_MatchesIncrementalUpdate(t *testing.T) {
	data := []byte{0x00, 0x02, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 'P', 'I', 'N', 'G'}
	want := XMODEM(data)
	var crc uint16
	for _, b := range data {
		crc = Update(crc, b)
	}
	if crc != want {
		t.Fatalf("incremental Update = %#04x, want %#04x", crc, want)
	}
}

func TestXMODEM_SingleBitFlipChangesResult(t *testing.T) {
	data := []byte{0x16, 0x16, 0x16, 0x16, 0x00, 0x0A}
	base := XMODEM(data)
	for i := range data {
		mutated := append([]byte(nil), data...)
		mutated[i] ^= 0x01
		if XMODEM(mutated) == base {
			t.Fatalf("bit flip at byte %d did not change CRC", i)
		}
	}
}
