package state

import "gridlink.io/internal/protocol"

// PlayerSnapshot mirrors the server's view of the player. It is only ever
// written by merging server events; nothing here is computed locally.
type PlayerSnapshot struct {
	Handle       string
	Balance      int64
	Rating       int
	CovertRating int
	CreditRating int
}

// GatewaySnapshot mirrors the player's gateway hardware.
type GatewaySnapshot struct {
	CPUSpeed     int // MHz
	ModemSpeed   int // simulated Gq/s
	StorageSize  int // Gq
	SelfDestruct bool
	MotionSensor bool
}

// ConnectionState mirrors the live connection: the confirmed bounce chain,
// the mounted remote screen, and the pursuit trace.
//
// CurrentScreen is non-nil only while Connected is true; disconnecting nulls
// both atomically and resets the trace.
type ConnectionState struct {
	Chain         []protocol.BounceNode
	Connected     bool
	TargetAddress string
	CurrentScreen *protocol.ScreenData
	TraceProgress float64
	TraceActive   bool
}

// TaskRecord is one in-flight tool run, keyed by id.
type TaskRecord struct {
	ID        int
	Tool      string
	Version   int
	Progress  float64
	TicksLeft int
	Target    string
	Extra     map[string]string
}

// rankNames is the fixed ordered rank table both skill ratings index into.
var rankNames = []string{
	"Unregistered",
	"Script Kiddie",
	"Novice",
	"Apprentice",
	"Competent",
	"Skilled",
	"Experienced",
	"Professional",
	"Specialist",
	"Elite",
	"Ghost",
	"Legend",
}

// RankName maps a rating to its display rank. Out-of-range ratings clamp to
// the table ends.
func RankName(rating int) string {
	if rating < 0 {
		return rankNames[0]
	}
	if rating >= len(rankNames) {
		return rankNames[len(rankNames)-1]
	}
	return rankNames[rating]
}
