package monitor

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestHandshake_Success(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- Handshake(context.Background(), server, time.Second) }()

	if _, err := client.Write([]byte(helloMarker)); err != nil {
		t.Fatalf("client write: %v", err)
	}
	buf := make([]byte, len(okMarker))
	if _, err := client.Read(buf); err != nil {
		t.Fatalf("client read: %v", err)
	}
	if string(buf) != okMarker {
		t.Fatalf("ok marker = %q, want %q", buf, okMarker)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Handshake returned error: %v", err)
	}
}

func TestHandshake_WrongMarkerFails(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- Handshake(context.Background(), server, time.Second) }()

	_, _ = client.Write([]byte("NOT-A-MONITOR\n"))
	if err := <-errCh; err == nil {
		t.Fatal("expected handshake failure for wrong marker")
	}
}

func TestHandshake_ContextCancelled(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- Handshake(ctx, server, time.Second) }()
	cancel()
	if err := <-errCh; err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
