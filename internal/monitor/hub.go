package monitor

import (
	"context"
	"errors"
	"sync"

	"github.com/minimirror/linkd/internal/logging"
	"github.com/minimirror/linkd/internal/metrics"
	"github.com/minimirror/linkd/internal/transport"
)

// BackpressurePolicy decides what happens to a client that can't keep up
// with the event stream.
type BackpressurePolicy int

const (
	PolicyDrop BackpressurePolicy = iota
	PolicyKick
)

// Client is one connected monitor client. Delivery is funneled through a
// single-goroutine AsyncTx so a stalled socket never blocks the hub's
// Broadcast caller.
type Client struct {
	tx        *transport.AsyncTx[Event]
	Closed    chan struct{}
	closeOnce sync.Once
}

// Close signals the client is closed (idempotent).
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.tx.Close()
		close(c.Closed)
	})
}

// Hub fans broadcast events out to every connected monitor client.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	OutBufSize int
	Policy     BackpressurePolicy
}

// New creates a Hub with default settings.
func New() *Hub { return &Hub{clients: make(map[*Client]struct{})} }

// NewClient wires a writer goroutine (via AsyncTx) around send, which
// performs the actual socket write for one connected client.
func (h *Hub) NewClient(ctx context.Context, send func(Event) error) *Client {
	bufSize := 64
	if h.OutBufSize > 0 {
		bufSize = h.OutBufSize
	}
	cl := &Client{Closed: make(chan struct{})}
	cl.tx = transport.NewAsyncTx(ctx, bufSize, send, transport.Hooks[Event]{
		OnError: func(err error) {
			metrics.IncError(metrics.ErrMonitorWrite)
			logging.L().Warn("monitor_write_error", "error", err)
		},
		OnDrop: func() error { return errors.New("monitor client buffer full") },
	})
	return cl
}

// Add registers a client with the hub.
func (h *Hub) Add(c *Client) {
	h.mu.Lock()
	prev := len(h.clients)
	h.clients[c] = struct{}{}
	cur := len(h.clients)
	h.mu.Unlock()
	metrics.SetMonitorClients(cur)
	if prev == 0 && cur == 1 {
		logging.L().Info("monitor_clients_first_connected")
	}
}

// Remove unregisters a client; safe to call multiple times.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	_, existed := h.clients[c]
	if existed {
		delete(h.clients, c)
	}
	cur := len(h.clients)
	h.mu.Unlock()
	c.Close()
	metrics.SetMonitorClients(cur)
	if existed && cur == 0 {
		logging.L().Info("monitor_clients_last_disconnected")
	}
}

// Broadcast delivers ev to every connected client, honoring the
// backpressure policy for any client whose buffer is full.
func (h *Hub) Broadcast(ev Event) {
	clients := h.Snapshot()
	metrics.SetMonitorFanout(len(clients))
	for _, c := range clients {
		if err := c.tx.Send(ev); err != nil {
			if h.Policy == PolicyKick {
				metrics.IncMonitorKick()
				go h.Remove(c)
			} else {
				metrics.IncMonitorDrop()
			}
		}
	}
}

// Snapshot returns a slice copy of current clients (read-only use).
func (h *Hub) Snapshot() []*Client {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	return clients
}

// Count returns the number of active clients.
func (h *Hub) Count() int { h.mu.RLock(); defer h.mu.RUnlock(); return len(h.clients) }
