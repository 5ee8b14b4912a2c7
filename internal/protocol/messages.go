package protocol

import "encoding/json"

// BounceNode is one hop of the server-confirmed bounce chain. Position is a
// stable index assigned by the server and used for removal, not an array
// offset.
type BounceNode struct {
	Position int    `json:"position"`
	Address  string `json:"address"`
}

// CONNECTED (server -> client)
type ConnectedMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version,omitempty"`
	TargetAddress   string     `json:"target_address"`
	Screen          ScreenData `json:"screen"`
}

// DISCONNECTED (server -> client)
type DisconnectedMsg struct {
	Type   string `json:"type"`
	Reason string `json:"reason,omitempty"`
}

// CHAIN_UPDATE (server -> client): the full confirmed chain, in route order.
type ChainUpdateMsg struct {
	Type  string       `json:"type"`
	Chain []BounceNode `json:"chain"`
}

// SCREEN_UPDATE (server -> client)
type ScreenUpdateMsg struct {
	Type   string     `json:"type"`
	Screen ScreenData `json:"screen"`
}

// TaskPatch is a partial task update merged by id. Absent fields leave the
// stored value untouched.
type TaskPatch struct {
	ID        int                        `json:"id"`
	Tool      *string                    `json:"tool,omitempty"`
	Version   *int                       `json:"version,omitempty"`
	Progress  *float64                   `json:"progress,omitempty"`
	TicksLeft *int                       `json:"ticks_left,omitempty"`
	Target    *string                    `json:"target,omitempty"`
	Extra     map[string]json.RawMessage `json:"extra,omitempty"`
}

// TASK_UPDATE (server -> client)
type TaskUpdateMsg struct {
	Type  string      `json:"type"`
	Tasks []TaskPatch `json:"tasks"`
}

// TASK_COMPLETE (server -> client)
type TaskCompleteMsg struct {
	Type   string `json:"type"`
	TaskID int    `json:"task_id"`
}

// TRACE_UPDATE (server -> client)
type TraceUpdateMsg struct {
	Type     string  `json:"type"`
	Progress float64 `json:"progress"`
	Active   bool    `json:"active"`
}

// ACCOUNT_UPDATE (server -> client): partial merge into the player snapshot.
type AccountUpdateMsg struct {
	Type         string  `json:"type"`
	Handle       *string `json:"handle,omitempty"`
	Balance      *int64  `json:"balance,omitempty"`
	Rating       *int    `json:"rating,omitempty"`
	CovertRating *int    `json:"covert_rating,omitempty"`
	CreditRating *int    `json:"credit_rating,omitempty"`
}

// Message is one inbox entry.
type Message struct {
	ID        int    `json:"id"`
	From      string `json:"from"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Read      bool   `json:"read"`
	CreatedAt uint64 `json:"created_at"`
}

// MESSAGE_RECEIVED (server -> client)
type MessageReceivedMsg struct {
	Type    string  `json:"type"`
	Message Message `json:"message"`
}

// Mission is one open contract.
type Mission struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
	Employer    string `json:"employer"`
	Payment     int64  `json:"payment"`
	Difficulty  int    `json:"difficulty"`
	MinRating   int    `json:"min_rating"`
	Target      string `json:"target"`
	Accepted    bool   `json:"accepted"`
	Completed   bool   `json:"completed"`
}

// MISSION_ACCEPTED / MISSION_COMPLETED (server -> client)
type MissionMsg struct {
	Type    string  `json:"type"`
	Mission Mission `json:"mission"`
}

// GAME_OVER (server -> client)
type GameOverMsg struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// ERROR (server -> client). The server sends either a bare string or an
// object with a message field; UnmarshalJSON accepts both. Code is optional
// and only present in the object form.
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ErrorMsg) UnmarshalJSON(b []byte) error {
	type wire struct {
		Type    string          `json:"type"`
		Code    string          `json:"code"`
		Message json.RawMessage `json:"message"`
	}
	var w wire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	e.Type = w.Type
	e.Code = w.Code
	if len(w.Message) == 0 {
		return nil
	}
	if w.Message[0] == '{' {
		var obj struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(w.Message, &obj); err != nil {
			return err
		}
		e.Message = obj.Message
		return nil
	}
	return json.Unmarshal(w.Message, &e.Message)
}

// HEARTBEAT_ACK (server -> client)
type HeartbeatAckMsg struct {
	Type string `json:"type"`
	Tick uint64 `json:"tick"`
}
