package node

import (
	"encoding/binary"
	"fmt"

	"github.com/minimirror/linkd/internal/crc"
)

// File-receive sub-protocol stages. Stage 2 is not defined; the wire format
// jumps from request to data to verification.
const (
	fileStageRequestReceive uint8 = 1
	fileStageReceivingData  uint8 = 3
	fileStageVerifyChecksum uint8 = 4
)

// maxFileSize bounds a REQUEST_RECEIVE's declared size. Anything larger is
// rejected before any data is accepted.
const maxFileSize uint32 = 1 * 1024 * 1024

// fileTransferContext tracks one in-progress file receive. retryCount is
// diagnostic only, incremented when a data block arrives out of order or a
// checksum verification fails, so an operator can see a transfer struggling
// without it affecting acceptance decisions.
type fileTransferContext struct {
	active     bool
	fileSize   uint32
	received   uint32
	nextIndex  uint32
	checksum   uint16
	retryCount uint32
}

// handleFileReceive routes a FILE_RECEIVE frame to its stage handler. The
// rolling checksum deliberately replaces rather than accumulates on every
// data block: it always reflects only the most recently received block, a
// quirk carried over unchanged from the peer this protocol was built to
// interoperate with.
func (n *Node) handleFileReceive(senderID uint16, payload []byte) {
	if len(payload) < 1 {
		return
	}
	stage := payload[0]
	n.emit(Event{Kind: EventFileStage, Sender: senderID, Detail: fmt.Sprintf("stage %d", stage)})

	switch stage {
	case fileStageRequestReceive:
		n.handleFileRequestReceive(senderID, payload)
	case fileStageReceivingData:
		n.handleFileReceivingData(senderID, payload)
	case fileStageVerifyChecksum:
		n.handleFileVerifyChecksum(senderID, payload)
	}
}

func (n *Node) handleFileRequestReceive(senderID uint16, payload []byte) {
	if len(payload) < 5 {
		return
	}
	fileSize := binary.BigEndian.Uint32(payload[1:5])
	if fileSize > maxFileSize {
		n.sendFileAck(senderID, fileStageRequestReceive, false, 0)
		return
	}
	n.file = fileTransferContext{active: true, fileSize: fileSize}
	n.sendFileAck(senderID, fileStageRequestReceive, true, 0)
}

func (n *Node) handleFileReceivingData(senderID uint16, payload []byte) {
	if len(payload) < 5 {
		return
	}
	blockIndex := binary.BigEndian.Uint32(payload[1:5])
	if !n.file.active {
		n.sendFileAck(senderID, fileStageReceivingData, false, blockIndex)
		return
	}
	if blockIndex != n.file.nextIndex {
		n.file.retryCount++
		n.sendFileAck(senderID, fileStageReceivingData, false, blockIndex)
		return
	}

	block := payload[5:]
	n.file.checksum = crc.XMODEM(block)
	n.file.received += uint32(len(block))
	n.file.nextIndex++
	n.sendFileAck(senderID, fileStageReceivingData, true, blockIndex)
}

func (n *Node) handleFileVerifyChecksum(senderID uint16, payload []byte) {
	if len(payload) < 3 {
		return
	}
	if !n.file.active {
		n.sendFileAck(senderID, fileStageVerifyChecksum, false, 0)
		return
	}
	expected := binary.BigEndian.Uint16(payload[1:3])
	ok := expected == n.file.checksum
	n.sendFileAck(senderID, fileStageVerifyChecksum, ok, 0)
	if ok {
		n.file = fileTransferContext{}
	} else {
		n.file.retryCount++
	}
}

func (n *Node) sendFileAck(senderID uint16, stage uint8, ok bool, blockIndex uint32) {
	reply := make([]byte, 6)
	reply[0] = stage
	if ok {
		reply[1] = 1
	}
	binary.BigEndian.PutUint32(reply[2:6], blockIndex)
	_ = n.send(senderID, cmdFileReceiveAck, reply)
}
