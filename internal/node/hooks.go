package node

// Play states carried in PLAY_CONTROL payloads.
const (
	PlayStateOne    uint8 = 1
	PlayStateRepeat uint8 = 2
	PlayStatePause  uint8 = 3
	PlayStateStop   uint8 = 4
)

// PowerFunc is invoked when a MAIN_POWER_CONTROL frame is accepted. on
// reports the requested power state.
type PowerFunc func(on bool)

// PlayFunc is invoked when a PLAY_CONTROL frame carries one of the PlayState*
// values. Any other value is treated as malformed and dropped before this is
// called.
type PlayFunc func(state uint8)

// JogFunc is invoked when a JOG_MOVE_CW_CCW frame is accepted. direction is
// 0 (CW) or 1 (CCW); any other value is dropped before this is called.
type JogFunc func(id, subID uint8, speedHz uint32, direction uint8)

func isValidPlayState(s uint8) bool {
	switch s {
	case PlayStateOne, PlayStateRepeat, PlayStatePause, PlayStateStop:
		return true
	default:
		return false
	}
}
