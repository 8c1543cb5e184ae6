package node

import "encoding/binary"

// Command codes. Every reply sets the 0x8000 bit on the request's code.
const (
	ackBit uint16 = 0x8000

	cmdPing    uint16 = 0x0001
	cmdPingAck uint16 = cmdPing | ackBit

	cmdFileReceive    uint16 = 0x0002
	cmdFileReceiveAck uint16 = cmdFileReceive | ackBit

	cmdConfig uint16 = 0x0003

	cmdIDScan    uint16 = 0x0004
	cmdIDScanAck uint16 = cmdIDScan | ackBit

	cmdStatusSync    uint16 = 0x0010
	cmdStatusSyncAck uint16 = cmdStatusSync | ackBit

	cmdSync    uint16 = 0x0020
	cmdSyncAck uint16 = cmdSync | ackBit

	cmdMainPowerControl    uint16 = 0x0100
	cmdMainPowerControlAck uint16 = cmdMainPowerControl | ackBit

	cmdPlayControl    uint16 = 0x0110
	cmdPlayControlAck uint16 = cmdPlayControl | ackBit

	cmdJogMoveCwCcw uint16 = 0x0120

	syncAuthToken uint16 = 0xABCD
)

// dispatch routes a CRC-valid, sequence-accepted frame to its handler.
func (n *Node) dispatch(senderID, cmd uint16, payload []byte) {
	n.emit(Event{Kind: EventDispatch, Sender: senderID, Cmd: cmd})

	switch cmd {
	case cmdPing:
		n.handlePing(senderID)
	case cmdFileReceive:
		n.handleFileReceive(senderID, payload)
	case cmdConfig:
		if n.configHandler != nil {
			n.configHandler(senderID, payload)
		}
	case cmdIDScan:
		n.handleIDScan(senderID, payload)
	case cmdStatusSync:
		n.handleStatusSync(senderID)
	case cmdSync:
		n.handleSync(senderID, payload)
	case cmdMainPowerControl:
		n.handleMainPowerControl(senderID, payload)
	case cmdPlayControl:
		n.handlePlayControl(senderID, payload)
	case cmdJogMoveCwCcw:
		n.handleJogMoveCwCcw(senderID, payload)
	default:
		n.emit(Event{Kind: EventUnknownCommand, Sender: senderID, Cmd: cmd})
		if n.unknownHandler != nil {
			n.unknownHandler(senderID, cmd)
		}
	}
}

func (n *Node) handlePing(senderID uint16) {
	_ = n.send(senderID, cmdPingAck, []byte("PONG"))
}

func (n *Node) handleIDScan(senderID uint16, payload []byte) {
	if len(payload) < 2 {
		return
	}
	target := binary.BigEndian.Uint16(payload[0:2])
	if target != n.ownID {
		return
	}
	var reply [2]byte
	binary.BigEndian.PutUint16(reply[:], n.ownID)
	_ = n.send(senderID, cmdIDScanAck, reply[:])
}

func (n *Node) handleStatusSync(senderID uint16) {
	var status Status
	if n.statusProvider != nil {
		status = n.statusProvider()
	}
	body := status.Serialize()
	_ = n.send(senderID, cmdStatusSyncAck, body[:])
}

// handleSync implements CMD_SYNC's session reset. The raw seq field was
// deliberately left untouched by trackSequence for this command; the reset
// below is the only place expected_seq changes for a sync, and it only
// commits when the payload carries the correct auth token. A sync with the
// wrong token is ignored outright: no reset, no reply.
func (n *Node) handleSync(senderID uint16, payload []byte) {
	if len(payload) < 6 {
		return
	}
	token := binary.BigEndian.Uint16(payload[4:6])
	if token != syncAuthToken {
		return
	}
	n.expectedSeq[senderID] = 0

	var reply [6]byte
	copy(reply[0:4], payload[0:4])
	binary.BigEndian.PutUint16(reply[4:6], syncAuthToken)
	_ = n.send(senderID, cmdSyncAck, reply[:])
}

func (n *Node) handleMainPowerControl(senderID uint16, payload []byte) {
	if len(payload) < 1 || payload[0] > 1 {
		return
	}
	on := payload[0] == 1
	if n.powerFunc != nil {
		n.powerFunc(on)
	}
	_ = n.send(senderID, cmdMainPowerControlAck, payload[:1])
}

func (n *Node) handlePlayControl(senderID uint16, payload []byte) {
	if len(payload) < 1 || !isValidPlayState(payload[0]) {
		return
	}
	n.playState = payload[0]
	if n.playFunc != nil {
		n.playFunc(n.playState)
	}
	_ = n.send(senderID, cmdPlayControlAck, []byte{n.playState})
}

func (n *Node) handleJogMoveCwCcw(senderID uint16, payload []byte) {
	if len(payload) < 7 {
		return
	}
	id := payload[0]
	subID := payload[1]
	speed := binary.BigEndian.Uint32(payload[2:6])
	direction := payload[6]
	if direction > 1 {
		return
	}
	if n.jogFunc != nil {
		n.jogFunc(id, subID, speed, direction)
	}
}
