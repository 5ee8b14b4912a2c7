package protocol

import "encoding/json"

const Version = "1.2"

// Server -> client message types.
const (
	TypeConnected        = "CONNECTED"
	TypeDisconnected     = "DISCONNECTED"
	TypeChainUpdate      = "CHAIN_UPDATE"
	TypeScreenUpdate     = "SCREEN_UPDATE"
	TypeTaskUpdate       = "TASK_UPDATE"
	TypeTaskComplete     = "TASK_COMPLETE"
	TypeTraceUpdate      = "TRACE_UPDATE"
	TypeAccountUpdate    = "ACCOUNT_UPDATE"
	TypeMessageReceived  = "MESSAGE_RECEIVED"
	TypeMissionAccepted  = "MISSION_ACCEPTED"
	TypeMissionCompleted = "MISSION_COMPLETED"
	TypeGameOver         = "GAME_OVER"
	TypeError            = "ERROR"
	TypeHeartbeatAck     = "HEARTBEAT_ACK"
)

// Client -> server message types.
const (
	TypeJoin         = "JOIN"
	TypeHeartbeat    = "HEARTBEAT"
	TypeBounceAdd    = "BOUNCE_ADD"
	TypeBounceRemove = "BOUNCE_REMOVE"
	TypeConnect      = "CONNECT"
	TypeDisconnect   = "DISCONNECT"
	TypeScreenAction = "SCREEN_ACTION"
	TypeRunTool      = "RUN_TOOL"
	TypeStopTool     = "STOP_TOOL"
	TypeSetSpeed     = "SET_SPEED"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
