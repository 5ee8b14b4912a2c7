package protocol

import "encoding/json"

// JOIN (client -> server): first message after the socket opens. The auth
// token and session id ride here rather than in headers so a reconnect can
// rejoin without renegotiating.
type JoinMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	Token           string `json:"token"`
}

// HEARTBEAT (client -> server)
type HeartbeatMsg struct {
	Type string `json:"type"`
	Tick uint64 `json:"tick,omitempty"`
}

// BOUNCE_ADD (client -> server)
type BounceAddMsg struct {
	Type    string `json:"type"`
	Address string `json:"address"`
}

// BOUNCE_REMOVE (client -> server): removal is by address or by stable
// position; exactly one of the two is meaningful per message.
type BounceRemoveMsg struct {
	Type     string `json:"type"`
	Address  string `json:"address,omitempty"`
	Position *int   `json:"position,omitempty"`
}

// CONNECT / DISCONNECT (client -> server)
type ConnectMsg struct {
	Type string `json:"type"`
}

// SCREEN_ACTION (client -> server): the generic "do something on the current
// remote screen" envelope. Action names are screen-defined.
type ScreenActionMsg struct {
	Type    string          `json:"type"`
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RUN_TOOL (client -> server)
type RunToolMsg struct {
	Type    string          `json:"type"`
	Tool    string          `json:"tool"`
	Version int             `json:"version"`
	Target  string          `json:"target"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// STOP_TOOL (client -> server): fire-and-forget cancellation request. The
// local record stays until the server confirms removal.
type StopToolMsg struct {
	Type   string `json:"type"`
	TaskID int    `json:"task_id"`
}

// Speed is the enumerated game-speed multiplier.
type Speed int

const (
	SpeedPaused Speed = 0
	SpeedNormal Speed = 1
	SpeedFast   Speed = 2
	SpeedMax    Speed = 4
)

func ValidSpeed(s Speed) bool {
	switch s {
	case SpeedPaused, SpeedNormal, SpeedFast, SpeedMax:
		return true
	}
	return false
}

// SET_SPEED (client -> server)
type SetSpeedMsg struct {
	Type  string `json:"type"`
	Speed Speed  `json:"speed"`
}
