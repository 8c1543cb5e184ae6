// Package serial adapts a tarm/serial UART to the node.Transport contract.
package serial

import (
	"sync"
	"time"

	"github.com/tarm/serial"
)

// Port abstracts tarm/serial for testability.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// Open opens name at baud, with a read timeout short enough that Read
// returns promptly with zero bytes when the line is idle (non-blocking,
// as node.Transport requires).
func Open(name string, baud int, readTimeout time.Duration) (Port, error) {
	cfg := &serial.Config{Name: name, Baud: baud, ReadTimeout: readTimeout}
	return serial.OpenPort(cfg)
}

// PortTransport wraps a Port (lazily opened) to satisfy node.Transport,
// guarding Write with a mutex so it can be shared safely between the
// Poll()-driving goroutine and any outer code that writes to the same
// link (e.g. an operator console).
type PortTransport struct {
	name        string
	baud        int
	readTimeout time.Duration

	mu   sync.Mutex
	port Port
}

// NewPortTransport returns a PortTransport that opens name lazily on the
// first call to Open.
func NewPortTransport(name string, baud int, readTimeout time.Duration) *PortTransport {
	return &PortTransport{name: name, baud: baud, readTimeout: readTimeout}
}

func (t *PortTransport) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port != nil {
		return nil
	}
	p, err := Open(t.name, t.baud, t.readTimeout)
	if err != nil {
		return err
	}
	t.port = p
	return nil
}

func (t *PortTransport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port != nil
}

func (t *PortTransport) Read(p []byte) (int, error) {
	t.mu.Lock()
	port := t.port
	t.mu.Unlock()
	if port == nil {
		return 0, nil
	}
	return port.Read(p)
}

func (t *PortTransport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return 0, nil
	}
	return t.port.Write(p)
}

// Flush is a no-op: tarm/serial has no explicit flush primitive exposed
// through the Port interface above.
func (t *PortTransport) Flush() error { return nil }

func (t *PortTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	return err
}
