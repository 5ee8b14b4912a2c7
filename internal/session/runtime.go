// Package session wires the transport, the resource client, the store, the
// screen controller, and the task tracker into one running game session.
package session

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"gridlink.io/internal/config"
	"gridlink.io/internal/gamelog"
	"gridlink.io/internal/netlink"
	"gridlink.io/internal/protocol"
	"gridlink.io/internal/restapi"
	"gridlink.io/internal/screens"
	"gridlink.io/internal/state"
	"gridlink.io/internal/tasks"
	"gridlink.io/internal/trace"
)

type Runtime struct {
	cfg   config.Config
	log   *log.Logger
	store *state.Store
	link  *netlink.Client
	api   *restapi.Client

	Controller *screens.Controller
	Tracker    *tasks.Tracker

	events *gamelog.Writer // nil when event logging is off

	// While a resync is in flight, pushed messages queue here instead of
	// mutating the store, so a snapshot can never overwrite a newer push.
	syncMu  sync.Mutex
	syncGen int
	syncing bool
	pending []func()

	startOnce sync.Once
	closeOnce sync.Once
	stop      chan struct{}
	ended     chan protocol.GameOverMsg
	heartbeat *time.Ticker
}

// New builds a runtime around an already-constructed store, link, and api
// client. The registry decides how screens render; target is where.
func New(cfg config.Config, logger *log.Logger, store *state.Store,
	link *netlink.Client, api *restapi.Client,
	reg *screens.Registry, target screens.Target) *Runtime {

	r := &Runtime{
		cfg:        cfg,
		log:        logger,
		store:      store,
		link:       link,
		api:        api,
		Controller: screens.NewController(logger, reg, target, store),
		Tracker:    tasks.New(store),
		stop:       make(chan struct{}),
		ended:      make(chan protocol.GameOverMsg, 1),
	}
	if cfg.EventLogDir != "" {
		r.events = gamelog.NewWriter(cfg.EventLogDir, "session")
	}
	r.registerHandlers()
	link.SetStatusFunc(r.onLinkStatus)
	return r
}

// Start opens the push channel under the given session identity and begins
// heartbeating. The initial state snapshot is fetched on the first link-up.
func (r *Runtime) Start(token, sessionID string) error {
	var err error
	r.startOnce.Do(func() {
		err = r.link.Connect(token, sessionID)
		r.heartbeat = time.NewTicker(r.cfg.HeartbeatInterval.Std())
		go r.heartbeatLoop()
	})
	return err
}

// Ended yields the terminal game-over event, once.
func (r *Runtime) Ended() <-chan protocol.GameOverMsg { return r.ended }

func (r *Runtime) Close() {
	r.closeOnce.Do(func() {
		close(r.stop)
		if r.heartbeat != nil {
			r.heartbeat.Stop()
		}
		r.Tracker.Close()
		r.Controller.Close()
		r.link.Disconnect()
		if r.events != nil {
			_ = r.events.Close()
		}
	})
}

func (r *Runtime) heartbeatLoop() {
	for {
		select {
		case <-r.stop:
			return
		case <-r.heartbeat.C:
			r.link.Send(protocol.TypeHeartbeat, protocol.HeartbeatMsg{
				Type: protocol.TypeHeartbeat,
				Tick: r.store.GameTick(),
			})
		}
	}
}

// onLinkStatus feeds the passive indicator and resynchronizes the mirror
// after every (re)connect. Transport loss is never surfaced as an error.
// The gate is raised here, on the dialer's goroutine, before the read loop
// can deliver the first push of the new connection.
func (r *Runtime) onLinkStatus(up bool) {
	r.store.SetLinkUp(up)
	if !up {
		return
	}
	r.syncMu.Lock()
	r.syncGen++
	gen := r.syncGen
	r.syncing = true
	r.pending = nil
	r.syncMu.Unlock()
	go r.resync(gen)
}

// resync pulls the authoritative snapshot, replays it into the store, then
// releases the pushes that queued while it ran, in arrival order. Pushes
// are strictly newer than the snapshot they waited on, so the snapshot can
// never erase one. A fetch failure still releases the gate; the mirror
// stays on pushed deltas until the next reconnect.
func (r *Runtime) resync(gen int) {
	defer r.releaseSync(gen)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	snap, err := r.api.FetchSnapshot(ctx)
	if err != nil {
		r.log.Printf("resync failed: %v", err)
		return
	}
	r.syncMu.Lock()
	stale := gen != r.syncGen
	r.syncMu.Unlock()
	if stale {
		return
	}
	r.applySnapshot(snap)
}

// releaseSync drains the queue and lowers the gate. Messages arriving
// mid-drain queue behind the ones being replayed, so the loop runs until
// the queue is observed empty under the lock. A stale generation means a
// newer reconnect owns the gate; its drain is a no-op then.
func (r *Runtime) releaseSync(gen int) {
	for {
		r.syncMu.Lock()
		if gen != r.syncGen {
			r.syncMu.Unlock()
			return
		}
		queued := r.pending
		r.pending = nil
		if len(queued) == 0 {
			r.syncing = false
			r.syncMu.Unlock()
			return
		}
		r.syncMu.Unlock()
		for _, fn := range queued {
			fn()
		}
	}
}

func (r *Runtime) applySnapshot(snap restapi.Snapshot) {
	r.store.SetPlayer(state.PlayerSnapshot{
		Handle:       snap.Player.Handle,
		Balance:      snap.Player.Balance,
		Rating:       snap.Player.Rating,
		CovertRating: snap.Player.CovertRating,
		CreditRating: snap.Player.CreditRating,
	})
	r.store.SetGateway(state.GatewaySnapshot{
		CPUSpeed:     snap.Gateway.CPUSpeed,
		ModemSpeed:   snap.Gateway.ModemSpeed,
		StorageSize:  snap.Gateway.StorageSize,
		SelfDestruct: snap.Gateway.SelfDestruct,
		MotionSensor: snap.Gateway.MotionSensor,
	})
	r.store.SetChain(snap.Chain)
	r.store.SetMessages(snap.Messages)
	r.store.SetMissions(snap.Missions)
	r.store.ReplaceTasks(snap.Tasks)
	r.store.SetGameTick(snap.GameTick)
	r.store.SetSpeed(snap.Speed)
}

// registerHandlers routes every push-channel type into its store mutation.
// Handlers run serially on the read goroutine, preserving arrival order.
func (r *Runtime) registerHandlers() {
	r.on(protocol.TypeConnected, func(msg []byte) {
		var m protocol.ConnectedMsg
		if !r.decode(protocol.TypeConnected, msg, &m) {
			return
		}
		r.store.SetConnected(m.TargetAddress, m.Screen)
	})
	r.on(protocol.TypeDisconnected, func(msg []byte) {
		var m protocol.DisconnectedMsg
		if r.decode(protocol.TypeDisconnected, msg, &m) && m.Reason != "" {
			r.log.Printf("connection closed by server: %s", m.Reason)
		}
		r.store.SetDisconnected()
	})
	r.on(protocol.TypeChainUpdate, func(msg []byte) {
		var m protocol.ChainUpdateMsg
		if !r.decode(protocol.TypeChainUpdate, msg, &m) {
			return
		}
		r.store.SetChain(m.Chain)
	})
	r.on(protocol.TypeScreenUpdate, func(msg []byte) {
		var m protocol.ScreenUpdateMsg
		if !r.decode(protocol.TypeScreenUpdate, msg, &m) {
			return
		}
		r.store.SetScreen(m.Screen)
	})
	r.on(protocol.TypeTaskUpdate, func(msg []byte) {
		var m protocol.TaskUpdateMsg
		if !r.decode(protocol.TypeTaskUpdate, msg, &m) {
			return
		}
		r.store.UpdateTasks(m.Tasks)
	})
	r.on(protocol.TypeTaskComplete, func(msg []byte) {
		var m protocol.TaskCompleteMsg
		if !r.decode(protocol.TypeTaskComplete, msg, &m) {
			return
		}
		r.store.CompleteTask(m.TaskID)
	})
	r.on(protocol.TypeTraceUpdate, func(msg []byte) {
		var m protocol.TraceUpdateMsg
		if !r.decode(protocol.TypeTraceUpdate, msg, &m) {
			return
		}
		r.store.SetTrace(m.Progress, m.Active)
	})
	r.on(protocol.TypeAccountUpdate, func(msg []byte) {
		var m protocol.AccountUpdateMsg
		if !r.decode(protocol.TypeAccountUpdate, msg, &m) {
			return
		}
		r.store.MergePlayer(m)
	})
	r.on(protocol.TypeMessageReceived, func(msg []byte) {
		var m protocol.MessageReceivedMsg
		if !r.decode(protocol.TypeMessageReceived, msg, &m) {
			return
		}
		r.store.AddMessage(m.Message)
	})
	r.on(protocol.TypeMissionAccepted, func(msg []byte) {
		var m protocol.MissionMsg
		if !r.decode(protocol.TypeMissionAccepted, msg, &m) {
			return
		}
		m.Mission.Accepted = true
		r.store.UpsertMission(m.Mission)
	})
	r.on(protocol.TypeMissionCompleted, func(msg []byte) {
		var m protocol.MissionMsg
		if !r.decode(protocol.TypeMissionCompleted, msg, &m) {
			return
		}
		r.store.RemoveMission(m.Mission.ID)
	})
	r.on(protocol.TypeGameOver, func(msg []byte) {
		var m protocol.GameOverMsg
		if !r.decode(protocol.TypeGameOver, msg, &m) {
			return
		}
		r.store.SetDisconnected()
		r.store.ReplaceTasks(nil)
		r.store.GameOver(m.Reason, m.Detail)
		select {
		case r.ended <- m:
		default:
		}
	})
	r.on(protocol.TypeError, func(msg []byte) {
		var m protocol.ErrorMsg
		if !r.decode(protocol.TypeError, msg, &m) {
			return
		}
		switch {
		case !protocol.IsKnownCode(m.Code):
			r.log.Printf("server error (unrecognized code %q): %s", m.Code, m.Message)
		case m.Code != "":
			r.log.Printf("server error [%s]: %s", m.Code, m.Message)
		default:
			r.log.Printf("server error: %s", m.Message)
		}
	})
	r.on(protocol.TypeHeartbeatAck, func(msg []byte) {
		var m protocol.HeartbeatAckMsg
		if !r.decode(protocol.TypeHeartbeatAck, msg, &m) {
			return
		}
		if m.Tick != 0 {
			r.store.SetGameTick(m.Tick)
		}
	})
}

// on registers a handler that mirrors the raw message into the session
// event log and defers it while a resync gate is up.
func (r *Runtime) on(msgType string, fn netlink.Handler) {
	r.link.On(msgType, func(msg []byte) {
		if r.events != nil {
			_ = r.events.Write(gamelog.Entry{
				At:      time.Now(),
				Type:    msgType,
				Payload: append(json.RawMessage(nil), msg...),
			})
		}
		r.syncMu.Lock()
		if r.syncing {
			held := append([]byte(nil), msg...)
			r.pending = append(r.pending, func() { fn(held) })
			r.syncMu.Unlock()
			return
		}
		r.syncMu.Unlock()
		fn(msg)
	})
}

func (r *Runtime) decode(msgType string, msg []byte, v any) bool {
	if err := json.Unmarshal(msg, v); err != nil {
		r.log.Printf("drop malformed %s: %v", msgType, err)
		return false
	}
	return true
}

// --- UI-facing commands, all fire-and-forget through the link --------------

func (r *Runtime) AddBounce(address string) {
	r.link.Send(protocol.TypeBounceAdd, protocol.BounceAddMsg{
		Type: protocol.TypeBounceAdd, Address: address,
	})
}

func (r *Runtime) RemoveBounceByAddress(address string) {
	r.link.Send(protocol.TypeBounceRemove, protocol.BounceRemoveMsg{
		Type: protocol.TypeBounceRemove, Address: address,
	})
}

func (r *Runtime) RemoveBounceByPosition(position int) {
	p := position
	r.link.Send(protocol.TypeBounceRemove, protocol.BounceRemoveMsg{
		Type: protocol.TypeBounceRemove, Position: &p,
	})
}

// ConnectTarget asks the server to route through the current chain. The
// chain must be non-empty and no connection open; this is a UI precondition,
// and the server enforces the real rules.
func (r *Runtime) ConnectTarget() bool {
	conn := r.store.Connection()
	if !trace.CanConnect(conn.Chain, conn.Connected) {
		return false
	}
	r.link.Send(protocol.TypeConnect, protocol.ConnectMsg{Type: protocol.TypeConnect})
	return true
}

func (r *Runtime) DisconnectTarget() {
	r.link.Send(protocol.TypeDisconnect, protocol.ConnectMsg{Type: protocol.TypeDisconnect})
}

func (r *Runtime) ScreenAction(action string, payload json.RawMessage) {
	r.link.Send(protocol.TypeScreenAction, protocol.ScreenActionMsg{
		Type: protocol.TypeScreenAction, Action: action, Payload: payload,
	})
}

func (r *Runtime) RunTool(tool string, version int, target string, data json.RawMessage) {
	r.link.Send(protocol.TypeRunTool, protocol.RunToolMsg{
		Type: protocol.TypeRunTool, Tool: tool, Version: version, Target: target, Data: data,
	})
}

// StopTool requests cancellation. The local record stays until the server
// confirms removal through its own task update/complete events.
func (r *Runtime) StopTool(taskID int) {
	r.link.Send(protocol.TypeStopTool, protocol.StopToolMsg{
		Type: protocol.TypeStopTool, TaskID: taskID,
	})
}

func (r *Runtime) SetSpeed(sp protocol.Speed) {
	if !protocol.ValidSpeed(sp) {
		return
	}
	r.link.Send(protocol.TypeSetSpeed, protocol.SetSpeedMsg{
		Type: protocol.TypeSetSpeed, Speed: sp,
	})
}
