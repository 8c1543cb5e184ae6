package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/minimirror/linkd/internal/transport"
)

func TestHub_BroadcastDeliversToAllClients(t *testing.T) {
	h := New()
	var mu sync.Mutex
	var count int

	newClient := func() *Client {
		cl := h.NewClient(context.Background(), func(ev Event) error {
			mu.Lock()
			count++
			mu.Unlock()
			return nil
		})
		h.Add(cl)
		return cl
	}
	c1 := newClient()
	c2 := newClient()

	h.Broadcast(Event{Kind: "frame_accepted"})
	time.Sleep(20 * time.Millisecond)

	if h.Count() != 2 {
		t.Fatalf("client count = %d, want 2", h.Count())
	}
	mu.Lock()
	if count != 2 {
		t.Fatalf("received count = %d, want 2", count)
	}
	mu.Unlock()
	h.Remove(c1)
	h.Remove(c2)
	if h.Count() != 0 {
		t.Fatalf("client count after removal = %d, want 0", h.Count())
	}
}

func TestHub_DropPolicyDoesNotKick(t *testing.T) {
	h := New()
	h.Policy = PolicyDrop
	h.OutBufSize = 1

	block := make(chan struct{})
	cl := h.NewClient(context.Background(), func(ev Event) error {
		<-block
		return nil
	})
	h.Add(cl)
	defer close(block)

	for i := 0; i < 5; i++ {
		h.Broadcast(Event{Kind: "frame_accepted"})
	}
	select {
	case <-cl.Closed:
		t.Fatal("client must not be closed under drop policy")
	default:
	}
}

func TestHub_KickPolicyClosesSlowClient(t *testing.T) {
	h := New()
	h.Policy = PolicyKick
	h.OutBufSize = 1

	block := make(chan struct{})
	cl := h.NewClient(context.Background(), func(ev Event) error {
		<-block
		return nil
	})
	h.Add(cl)

	for i := 0; i < 5; i++ {
		h.Broadcast(Event{Kind: "frame_accepted"})
	}
	close(block)

	select {
	case <-cl.Closed:
	case <-time.After(time.Second):
		t.Fatal("expected client to be closed under kick policy")
	}
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	h := New()
	cl := h.NewClient(context.Background(), func(Event) error { return nil })
	cl.Close()
	cl.Close()
	select {
	case <-cl.Closed:
	default:
		t.Fatal("Closed channel should be closed")
	}
	if err := cl.tx.Send(Event{}); !errors.Is(err, transport.ErrAsyncTxClosed) {
		t.Fatalf("expected ErrAsyncTxClosed after Close, got %v", err)
	}
}
