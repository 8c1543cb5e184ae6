// Package node implements the host/peer link protocol: a byte-at-a-time
// frame receiver, a per-sender sequence tracker, and a command dispatcher.
// A Node is single-threaded by design — Poll must be called from one
// goroutine at a time, and every handler it invokes (including the
// file-receive sub-protocol) runs synchronously inside that call. Outer
// layers that want concurrent observability should tap Node via EventSink
// rather than touch its state from another goroutine.
package node

import (
	"encoding/binary"

	"github.com/minimirror/linkd/internal/clock"
	"github.com/minimirror/linkd/internal/crc"
	"github.com/minimirror/linkd/internal/frame"
)

type receiveState int

const (
	stateWaitStart receiveState = iota
	stateReadLength
	stateReadReceiverID
	stateReadSenderID
	stateReadCmd
	stateReadSeq
	stateReadPayload
)

// interByteTimeoutMS is how long the receiver waits for the next byte of an
// in-progress frame before giving up and resyncing on the preamble.
const interByteTimeoutMS uint32 = 100

// sequenceJumpThreshold is purely diagnostic: a forward jump of more than this
// many missed frames is reported as a "large" gap rather than a "small" one.
// It never changes control flow.
const sequenceJumpThreshold uint16 = 3

// defaultBufferCapacity bounds both the largest frame this node will accept
// and the scratch buffer used to reassemble one.
const defaultBufferCapacity = 256

// Node is one endpoint of the link protocol.
type Node struct {
	ownID     uint16
	transport Transport
	clock     clock.Clock

	state           receiveState
	preambleCount   int
	lastByteTimeMS  uint32
	cursor          int
	declaredLength  int
	scratch         []byte
	recvBuf         []byte
	receiverID      uint16
	senderID        uint16
	cmd             uint16
	seq             uint16
	expectedSeq     map[uint16]uint16
	missingPackets  map[uint16]uint32
	outSeq          uint16

	file fileTransferContext

	onEvent        EventSink
	statusProvider StatusProvider
	powerFunc      PowerFunc
	playFunc       PlayFunc
	jogFunc        JogFunc
	configHandler  func(senderID uint16, payload []byte)
	unknownHandler func(senderID, cmd uint16)

	playState uint8
}

// Option configures a Node at construction time.
type Option func(*Node)

// WithClock overrides the millisecond tick source. Defaults to clock.NewSystem().
func WithClock(c clock.Clock) Option {
	return func(n *Node) { n.clock = c }
}

// WithBufferCapacity overrides the maximum frame size (header+payload+CRC)
// this node will accept. Frames declaring a larger total length are dropped
// and the receiver resyncs.
func WithBufferCapacity(capacity int) Option {
	return func(n *Node) { n.recvBuf = make([]byte, capacity) }
}

// WithEventSink registers a callback for observability events.
func WithEventSink(sink EventSink) Option {
	return func(n *Node) { n.onEvent = sink }
}

// WithStatusProvider registers the callback consulted on STATUS_SYNC.
func WithStatusProvider(p StatusProvider) Option {
	return func(n *Node) { n.statusProvider = p }
}

// WithPowerFunc registers the callback invoked on MAIN_POWER_CONTROL.
func WithPowerFunc(f PowerFunc) Option {
	return func(n *Node) { n.powerFunc = f }
}

// WithPlayFunc registers the callback invoked on PLAY_CONTROL.
func WithPlayFunc(f PlayFunc) Option {
	return func(n *Node) { n.playFunc = f }
}

// WithJogFunc registers the callback invoked on JOG_MOVE_CW_CCW.
func WithJogFunc(f JogFunc) Option {
	return func(n *Node) { n.jogFunc = f }
}

// WithConfigHandler registers the callback invoked on CONFIG frames. CONFIG
// never generates an automatic reply; the handler decides whether to answer.
func WithConfigHandler(f func(senderID uint16, payload []byte)) Option {
	return func(n *Node) { n.configHandler = f }
}

// WithUnknownCommandHandler registers a callback invoked when a frame with an
// unrecognized cmd value is accepted (CRC-valid, sequence-valid).
func WithUnknownCommandHandler(f func(senderID, cmd uint16)) Option {
	return func(n *Node) { n.unknownHandler = f }
}

// New constructs a Node bound to transport with the given own id (used for
// address filtering and as the Sender field of outbound frames).
func New(ownID uint16, transport Transport, opts ...Option) *Node {
	n := &Node{
		ownID:          ownID,
		transport:      transport,
		clock:          clock.NewSystem(),
		recvBuf:        make([]byte, defaultBufferCapacity),
		scratch:        make([]byte, 64),
		expectedSeq:    make(map[uint16]uint16),
		missingPackets: make(map[uint16]uint32),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// resync discards whatever partial frame is in progress and returns the
// receiver to preamble scanning.
func (n *Node) resync() {
	n.state = stateWaitStart
	n.preambleCount = 0
	n.cursor = 0
}

// Poll drains whatever bytes are currently available on the transport,
// feeding them through the receive state machine one at a time. It never
// blocks: if the transport has nothing buffered, it returns immediately.
// Any frame accepted as a result of this call is fully dispatched, and any
// reply the dispatch produces is written out, before Poll returns.
func (n *Node) Poll() error {
	if !n.transport.IsOpen() {
		return nil
	}

	now := n.clock.NowMS()
	if n.state != stateWaitStart && now-n.lastByteTimeMS > interByteTimeoutMS {
		n.emit(Event{Kind: EventResync, Detail: "inter-byte timeout"})
		n.resync()
	}

	for {
		nRead, err := n.transport.Read(n.scratch)
		if nRead > 0 {
			n.lastByteTimeMS = now
			for _, b := range n.scratch[:nRead] {
				if stepErr := n.step(b); stepErr != nil {
					return stepErr
				}
			}
		}
		if err != nil {
			return err
		}
		if nRead == 0 {
			return nil
		}
	}
}

// step feeds a single received byte through the frame state machine.
func (n *Node) step(b byte) error {
	switch n.state {
	case stateWaitStart:
		if b == frame.PreambleByte {
			n.preambleCount++
			if n.preambleCount == frame.PreambleLen {
				n.preambleCount = 0
				n.cursor = 0
				clear(n.recvBuf)
				n.state = stateReadLength
			}
		} else {
			n.preambleCount = 0
		}

	case stateReadLength:
		n.recvBuf[n.cursor] = b
		n.cursor++
		if n.cursor == 2 {
			n.declaredLength = int(binary.BigEndian.Uint16(n.recvBuf[0:2]))
			n.cursor = 0
			if n.declaredLength < frame.MinTotalLength || n.declaredLength > len(n.recvBuf) {
				n.emit(Event{Kind: EventResync, Detail: "declared length out of range"})
				n.resync()
				break
			}
			n.state = stateReadReceiverID
		}

	case stateReadReceiverID:
		n.recvBuf[n.cursor] = b
		n.cursor++
		if n.cursor == 2 {
			n.receiverID = binary.BigEndian.Uint16(n.recvBuf[0:2])
			n.cursor = 0
			if n.receiverID != n.ownID && n.receiverID != frame.BroadcastID {
				n.resync()
				break
			}
			n.state = stateReadSenderID
		}

	case stateReadSenderID:
		n.recvBuf[n.cursor] = b
		n.cursor++
		if n.cursor == 2 {
			n.senderID = binary.BigEndian.Uint16(n.recvBuf[0:2])
			n.cursor = 0
			n.state = stateReadCmd
		}

	case stateReadCmd:
		n.recvBuf[n.cursor] = b
		n.cursor++
		if n.cursor == 2 {
			n.cmd = binary.BigEndian.Uint16(n.recvBuf[0:2])
			n.cursor = 0
			n.state = stateReadSeq
		}

	case stateReadSeq:
		n.recvBuf[n.cursor] = b
		n.cursor++
		if n.cursor == 2 {
			n.seq = binary.BigEndian.Uint16(n.recvBuf[0:2])
			n.cursor = 0
			if !n.trackSequence() {
				n.resync()
				break
			}
			n.state = stateReadPayload
		}

	case stateReadPayload:
		n.recvBuf[n.cursor] = b
		n.cursor++
		remaining := n.declaredLength - frame.HeaderLen
		if n.cursor == remaining {
			payloadLen := remaining - frame.CRCLen
			n.finishFrame(n.recvBuf[:payloadLen])
		}
	}
	return nil
}

// trackSequence applies the sequence-accounting rules to the just-parsed seq
// field. It runs before CRC verification, so a corrupted frame that happens
// to parse this far can still perturb sequence bookkeeping for its sender;
// that is an accepted property of the protocol. It returns false if the
// frame must be dropped immediately (a regression).
func (n *Node) trackSequence() bool {
	if n.cmd == cmdSync {
		// CMD_SYNC's effect on sequence state is decided once the payload's
		// auth token has been read and the frame has passed CRC — see
		// handleSync. The raw seq field carried here is not evaluated.
		return true
	}

	expected, known := n.expectedSeq[n.senderID]
	if !known {
		n.expectedSeq[n.senderID] = n.seq + 1
		return true
	}

	diff := n.seq - expected
	switch {
	case diff == 0:
		n.expectedSeq[n.senderID] = expected + 1
	case diff <= 0x7FFF:
		n.missingPackets[n.senderID] += uint32(diff)
		n.expectedSeq[n.senderID] = n.seq + 1
		kind := EventSequenceGap
		detail := "small jump"
		if diff > sequenceJumpThreshold {
			detail = "large jump"
		}
		n.emit(Event{Kind: kind, Sender: n.senderID, Seq: n.seq, Detail: detail})
	default:
		n.emit(Event{Kind: EventSequenceRegression, Sender: n.senderID, Seq: n.seq})
		return false
	}
	return true
}

// finishFrame verifies the CRC over the fully-buffered header+payload and,
// if it matches, dispatches the frame. payload has length zero (but is never
// nil) for a CRC-only tail. Either way the receiver returns to preamble
// scanning.
func (n *Node) finishFrame(payload []byte) {
	defer n.resync()

	var header [frame.HeaderLen]byte
	binary.BigEndian.PutUint16(header[0:2], n.receiverID)
	binary.BigEndian.PutUint16(header[2:4], n.senderID)
	binary.BigEndian.PutUint16(header[4:6], n.cmd)
	binary.BigEndian.PutUint16(header[6:8], n.seq)

	computed := crcOverHeaderAndPayload(header[:], payload)
	wantCRC := binary.BigEndian.Uint16(n.recvBuf[len(payload) : len(payload)+frame.CRCLen])

	if computed != wantCRC {
		n.emit(Event{Kind: EventCRCReject, Sender: n.senderID, Cmd: n.cmd, Seq: n.seq})
		return
	}

	n.emit(Event{Kind: EventFrameAccepted, Sender: n.senderID, Receiver: n.receiverID, Cmd: n.cmd, Seq: n.seq})
	n.dispatch(n.senderID, n.cmd, payload)
}

func crcOverHeaderAndPayload(header, payload []byte) uint16 {
	c := crc.XMODEM(header)
	for _, b := range payload {
		c = crc.Update(c, b)
	}
	return c
}

// send encodes and writes a reply frame addressed back to receiverID, using
// the node's own id as sender and its own outbound sequence counter. Nothing
// is written if the transport reports itself closed.
func (n *Node) send(receiverID, cmd uint16, payload []byte) error {
	if !n.transport.IsOpen() {
		return ErrTransportClosed
	}
	h := frame.Header{Receiver: receiverID, Sender: n.ownID, Cmd: cmd, Seq: n.outSeq}
	n.outSeq++
	wire := frame.Encode(h, payload)
	return writeAll(n.transport, wire)
}

// MissingPackets reports the diagnostic missed-frame count accumulated for
// sender. It is advisory only and never affects dispatch.
func (n *Node) MissingPackets(sender uint16) uint32 {
	return n.missingPackets[sender]
}
