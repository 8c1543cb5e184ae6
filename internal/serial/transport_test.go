package serial

import "testing"

func TestPortTransport_ReadWriteBeforeOpen(t *testing.T) {
	tr := NewPortTransport("/dev/null-does-not-exist", 115200, 0)
	if tr.IsOpen() {
		t.Fatal("transport must not be open before Open is called")
	}
	n, err := tr.Read(make([]byte, 8))
	if n != 0 || err != nil {
		t.Fatalf("Read before open = (%d, %v), want (0, nil)", n, err)
	}
	n, err = tr.Write([]byte("x"))
	if n != 0 || err != nil {
		t.Fatalf("Write before open = (%d, %v), want (0, nil)", n, err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("Close before open: %v", err)
	}
}
