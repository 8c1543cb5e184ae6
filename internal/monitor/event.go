// Package monitor implements an optional TCP observability tap: any number
// of clients can connect and receive a live, newline-delimited JSON stream
// of decoded protocol events for a node they cannot otherwise see inside.
// It never feeds anything back into the node — Poll's single-goroutine
// contract is untouched.
package monitor

import (
	"time"

	"github.com/minimirror/linkd/internal/node"
)

// Event is the JSON-serializable projection of a node.Event broadcast to
// monitor clients.
type Event struct {
	Time     time.Time `json:"time"`
	Kind     string    `json:"kind"`
	Sender   uint16    `json:"sender,omitempty"`
	Receiver uint16    `json:"receiver,omitempty"`
	Cmd      uint16    `json:"cmd,omitempty"`
	Seq      uint16    `json:"seq,omitempty"`
	Detail   string    `json:"detail,omitempty"`
}

// FromNodeEvent projects a node.Event into its wire form, stamping the
// current time since the node package itself never touches wall-clock time.
func FromNodeEvent(ev node.Event, at time.Time) Event {
	return Event{
		Time:     at,
		Kind:     ev.Kind.String(),
		Sender:   ev.Sender,
		Receiver: ev.Receiver,
		Cmd:      ev.Cmd,
		Seq:      ev.Seq,
		Detail:   ev.Detail,
	}
}
