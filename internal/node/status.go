package node

import "encoding/binary"

// Motor types carried in a Status frame. The firmware this protocol traces
// back to only names MotorNull explicitly; the remaining values (1..5) are
// reserved slots in its valid range.
const (
	MotorNull      uint8 = 0
	MotorBrushed   uint8 = 1
	MotorBrushless uint8 = 2
	MotorStepper   uint8 = 3
	MotorServo     uint8 = 4
	MotorLinear    uint8 = 5
)

// StatusLen is the fixed wire length of a serialized Status.
const StatusLen = 29

// Status is the payload of a STATUS_SYNC_ACK reply. Its fields mirror the
// runtime state a real peer would report back: power, playback, elapsed
// run time, position counts, bus electrical readings, and fault state.
type Status struct {
	MainPowerOn bool
	PlayState   uint8

	RunHours   uint8
	RunMinutes uint8
	RunSeconds uint8

	CurrentCount uint16
	TotalCount   uint16

	BusVoltageCentivolts uint16
	BusCurrentCentiamps  uint16

	MotionElapsedCentiseconds uint16
	MotionTotalCentiseconds   uint16

	Fault    bool
	ID       uint8
	SubID    uint8
	Motor    uint8
	ErrorTag [8]byte
}

// StatusProvider supplies the live Status at the moment a STATUS_SYNC request
// arrives. A nil provider makes the node reply with an all-zero Status.
type StatusProvider func() Status

func clampMotor(m uint8) uint8 {
	if m > MotorLinear {
		return MotorNull
	}
	return m
}

// Serialize renders s into the fixed 29-byte STATUS_SYNC_ACK payload layout.
func (s Status) Serialize() [StatusLen]byte {
	var b [StatusLen]byte

	if s.MainPowerOn {
		b[0] = 1
	}
	b[1] = s.PlayState
	b[2] = s.RunHours
	b[3] = s.RunMinutes
	b[4] = s.RunSeconds
	binary.BigEndian.PutUint16(b[5:7], s.CurrentCount)
	binary.BigEndian.PutUint16(b[7:9], s.TotalCount)
	binary.BigEndian.PutUint16(b[9:11], s.BusVoltageCentivolts)
	binary.BigEndian.PutUint16(b[11:13], s.BusCurrentCentiamps)
	binary.BigEndian.PutUint16(b[13:15], s.MotionElapsedCentiseconds)
	binary.BigEndian.PutUint16(b[15:17], s.MotionTotalCentiseconds)
	if s.Fault {
		b[17] = 1
	}
	b[18] = s.ID
	b[19] = s.SubID
	b[20] = clampMotor(s.Motor)
	copy(b[21:29], s.ErrorTag[:])

	return b
}
