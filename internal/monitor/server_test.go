package monitor

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"
)

func TestServer_ClientReceivesBroadcastEvent(t *testing.T) {
	hub := New()
	srv := NewServer(hub, WithListenAddr("127.0.0.1:0"), WithHandshakeTimeout(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.Serve(ctx) }()

	select {
	case <-srv.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("server never became ready")
	}

	conn, err := net.Dial("tcp", srv.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(helloMarker)); err != nil {
		t.Fatalf("write hello: %v", err)
	}
	r := bufio.NewReader(conn)
	line, err := r.ReadString('\n')
	if err != nil || line != okMarker {
		t.Fatalf("handshake ack = %q, err=%v", line, err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && hub.Count() == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.Count() != 1 {
		t.Fatalf("hub client count = %d, want 1", hub.Count())
	}

	hub.Broadcast(Event{Kind: "frame_accepted", Sender: 9, Cmd: 1})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err = r.ReadString('\n')
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	var got Event
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if got.Kind != "frame_accepted" || got.Sender != 9 {
		t.Fatalf("got event = %+v", got)
	}
}
