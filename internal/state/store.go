package state

import (
	"encoding/json"
	"log"
	"sort"
	"sync"

	"gridlink.io/internal/protocol"
)

// Store is the single mutable read model for one game session. All writes go
// through its mutation methods; each one merges its input and emits exactly
// one named event carrying a copy of the post-mutation slice. Presentation
// code reads via the accessor methods and must not retain slices across
// renders.
type Store struct {
	log *log.Logger
	ev  *emitter

	mu       sync.Mutex
	player   PlayerSnapshot
	gateway  GatewaySnapshot
	conn     ConnectionState
	tasks    map[int]*TaskRecord
	messages []protocol.Message
	unread   int
	missions []protocol.Mission
	gameTick uint64
	speed    protocol.Speed
	linkUp   bool
}

func New(logger *log.Logger) *Store {
	return &Store{
		log:   logger,
		ev:    newEmitter(logger),
		tasks: map[int]*TaskRecord{},
		speed: protocol.SpeedNormal,
	}
}

// On registers a listener for one event and returns a subscription id for
// Off. Listeners run synchronously on the mutating goroutine, in
// registration order.
func (s *Store) On(ev Event, fn func(any)) int { return s.ev.on(ev, fn) }

func (s *Store) Off(ev Event, id int) { s.ev.off(ev, id) }

// Reset restores every slice to its zero default. Listeners stay registered.
func (s *Store) Reset() {
	s.mu.Lock()
	s.player = PlayerSnapshot{}
	s.gateway = GatewaySnapshot{}
	s.conn = ConnectionState{}
	s.tasks = map[int]*TaskRecord{}
	s.messages = nil
	s.unread = 0
	s.missions = nil
	s.gameTick = 0
	s.speed = protocol.SpeedNormal
	s.linkUp = false
	s.mu.Unlock()
}

// --- player / gateway -------------------------------------------------------

func (s *Store) MergePlayer(p protocol.AccountUpdateMsg) {
	s.mu.Lock()
	if p.Handle != nil {
		s.player.Handle = *p.Handle
	}
	if p.Balance != nil {
		s.player.Balance = *p.Balance
	}
	if p.Rating != nil {
		s.player.Rating = *p.Rating
	}
	if p.CovertRating != nil {
		s.player.CovertRating = *p.CovertRating
	}
	if p.CreditRating != nil {
		s.player.CreditRating = *p.CreditRating
	}
	out := s.player
	s.mu.Unlock()
	s.ev.emit(EventPlayer, out)
}

func (s *Store) SetPlayer(p PlayerSnapshot) {
	s.mu.Lock()
	s.player = p
	s.mu.Unlock()
	s.ev.emit(EventPlayer, p)
}

func (s *Store) Player() PlayerSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.player
}

func (s *Store) SetGateway(g GatewaySnapshot) {
	s.mu.Lock()
	s.gateway = g
	s.mu.Unlock()
	s.ev.emit(EventGateway, g)
}

func (s *Store) Gateway() GatewaySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gateway
}

// --- connection / chain / screen / trace ------------------------------------

// SetChain replaces the bounce chain with the server-confirmed route. Nodes
// arrive in route order; positions are kept as sent.
func (s *Store) SetChain(chain []protocol.BounceNode) {
	cp := append([]protocol.BounceNode(nil), chain...)
	s.mu.Lock()
	s.conn.Chain = cp
	out := s.connLocked()
	s.mu.Unlock()
	s.ev.emit(EventChain, out)
}

// ClearChain empties the chain. This is the only way chain contents go away;
// disconnecting leaves them in place.
func (s *Store) ClearChain() {
	s.mu.Lock()
	s.conn.Chain = nil
	out := s.connLocked()
	s.mu.Unlock()
	s.ev.emit(EventChain, out)
}

// SetConnected records a server-confirmed connection and mounts its first
// screen.
func (s *Store) SetConnected(target string, screen protocol.ScreenData) {
	s.mu.Lock()
	s.conn.Connected = true
	s.conn.TargetAddress = target
	sc := screen
	s.conn.CurrentScreen = &sc
	out := s.connLocked()
	s.mu.Unlock()
	s.ev.emit(EventConnection, out)
}

// SetDisconnected clears everything that only makes sense while connected:
// target, screen, and trace, in one atomic step. The chain survives.
func (s *Store) SetDisconnected() {
	s.mu.Lock()
	s.conn.Connected = false
	s.conn.TargetAddress = ""
	s.conn.CurrentScreen = nil
	s.conn.TraceProgress = 0
	s.conn.TraceActive = false
	out := s.connLocked()
	s.mu.Unlock()
	s.ev.emit(EventConnection, out)
}

// SetScreen replaces the current screen payload. Ignored (with a log) when
// not connected, keeping the screen/connected invariant intact.
func (s *Store) SetScreen(screen protocol.ScreenData) {
	s.mu.Lock()
	if !s.conn.Connected {
		s.mu.Unlock()
		if s.log != nil {
			s.log.Printf("dropping screen_update (%s) while not connected", screen.Type)
		}
		return
	}
	sc := screen
	s.conn.CurrentScreen = &sc
	s.mu.Unlock()
	s.ev.emit(EventScreen, sc)
}

// SetTrace updates pursuit progress. Progress clamps to [0,1].
func (s *Store) SetTrace(progress float64, active bool) {
	if progress < 0 {
		progress = 0
	} else if progress > 1 {
		progress = 1
	}
	s.mu.Lock()
	s.conn.TraceProgress = progress
	s.conn.TraceActive = active
	out := s.connLocked()
	s.mu.Unlock()
	s.ev.emit(EventTrace, out)
}

func (s *Store) Connection() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connLocked()
}

func (s *Store) connLocked() ConnectionState {
	out := s.conn
	out.Chain = append([]protocol.BounceNode(nil), s.conn.Chain...)
	if s.conn.CurrentScreen != nil {
		sc := *s.conn.CurrentScreen
		out.CurrentScreen = &sc
	}
	return out
}

// --- tasks ------------------------------------------------------------------

// UpdateTasks merges task patches by id: unknown ids insert, known ids patch
// in place, fields absent from a patch keep their stored value.
func (s *Store) UpdateTasks(patches []protocol.TaskPatch) {
	s.mu.Lock()
	s.mergeTasksLocked(patches)
	out := s.activeTasksLocked()
	s.mu.Unlock()
	s.ev.emit(EventTasks, out)
}

func (s *Store) mergeTasksLocked(patches []protocol.TaskPatch) {
	for _, p := range patches {
		rec, ok := s.tasks[p.ID]
		if !ok {
			rec = &TaskRecord{ID: p.ID}
			s.tasks[p.ID] = rec
		}
		if p.Tool != nil {
			rec.Tool = *p.Tool
		}
		if p.Version != nil {
			rec.Version = *p.Version
		}
		if p.Progress != nil {
			rec.Progress = clamp01(*p.Progress)
		}
		if p.TicksLeft != nil {
			rec.TicksLeft = *p.TicksLeft
		}
		if p.Target != nil {
			rec.Target = *p.Target
		}
		for k, v := range p.Extra {
			if rec.Extra == nil {
				rec.Extra = map[string]string{}
			}
			rec.Extra[k] = rawToString(v)
		}
	}
}

// ReplaceTasks drops every record and applies the given patches to an empty
// set, as one atomic swap. Used when a bulk snapshot resynchronizes the
// mirror; in-flight ids the server no longer knows about must not survive,
// and no reader may observe the set empty between the clear and the merge.
func (s *Store) ReplaceTasks(patches []protocol.TaskPatch) {
	s.mu.Lock()
	s.tasks = map[int]*TaskRecord{}
	s.mergeTasksLocked(patches)
	out := s.activeTasksLocked()
	s.mu.Unlock()
	s.ev.emit(EventTasks, out)
}

// CompleteTask removes the record immediately. Completion feedback display is
// a presentation concern layered on top (see the tasks package), not a store
// delay.
func (s *Store) CompleteTask(id int) {
	s.mu.Lock()
	delete(s.tasks, id)
	out := s.activeTasksLocked()
	s.mu.Unlock()
	s.ev.emit(EventTasks, out)
}

// ActiveTasks returns in-flight tasks ordered by id.
func (s *Store) ActiveTasks() []TaskRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeTasksLocked()
}

func (s *Store) activeTasksLocked() []TaskRecord {
	out := make([]TaskRecord, 0, len(s.tasks))
	for _, rec := range s.tasks {
		cp := *rec
		if rec.Extra != nil {
			cp.Extra = make(map[string]string, len(rec.Extra))
			for k, v := range rec.Extra {
				cp.Extra[k] = v
			}
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// --- messages ---------------------------------------------------------------

// SetMessages replaces the inbox wholesale (bulk fetch) and rebuilds the
// unread counter from the read flags.
func (s *Store) SetMessages(msgs []protocol.Message) {
	cp := append([]protocol.Message(nil), msgs...)
	unread := 0
	for _, m := range cp {
		if !m.Read {
			unread++
		}
	}
	s.mu.Lock()
	s.messages = cp
	s.unread = unread
	out := append([]protocol.Message(nil), cp...)
	s.mu.Unlock()
	s.ev.emit(EventMessages, out)
}

// AddMessage prepends one message (newest first) and bumps the unread
// counter in lockstep.
func (s *Store) AddMessage(m protocol.Message) {
	s.mu.Lock()
	s.messages = append([]protocol.Message{m}, s.messages...)
	if !m.Read {
		s.unread++
	}
	out := append([]protocol.Message(nil), s.messages...)
	s.mu.Unlock()
	s.ev.emit(EventMessages, out)
}

// MarkMessageRead flips one read flag and keeps the counter in lockstep.
// Unknown ids and already-read messages are no-ops (no event).
func (s *Store) MarkMessageRead(id int) {
	s.mu.Lock()
	changed := false
	for i := range s.messages {
		if s.messages[i].ID == id && !s.messages[i].Read {
			s.messages[i].Read = true
			s.unread--
			changed = true
			break
		}
	}
	if !changed {
		s.mu.Unlock()
		return
	}
	out := append([]protocol.Message(nil), s.messages...)
	s.mu.Unlock()
	s.ev.emit(EventMessages, out)
}

func (s *Store) Messages() []protocol.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Message(nil), s.messages...)
}

func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// --- missions ---------------------------------------------------------------

func (s *Store) SetMissions(ms []protocol.Mission) {
	cp := append([]protocol.Mission(nil), ms...)
	s.mu.Lock()
	s.missions = cp
	out := append([]protocol.Mission(nil), cp...)
	s.mu.Unlock()
	s.ev.emit(EventMissions, out)
}

// UpsertMission merges one mission by id (accept acknowledgments).
func (s *Store) UpsertMission(m protocol.Mission) {
	s.mu.Lock()
	found := false
	for i := range s.missions {
		if s.missions[i].ID == m.ID {
			s.missions[i] = m
			found = true
			break
		}
	}
	if !found {
		s.missions = append(s.missions, m)
	}
	out := append([]protocol.Mission(nil), s.missions...)
	s.mu.Unlock()
	s.ev.emit(EventMissions, out)
}

// RemoveMission drops a mission on the server's completion acknowledgment.
func (s *Store) RemoveMission(id int) {
	s.mu.Lock()
	kept := s.missions[:0]
	for _, m := range s.missions {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	s.missions = kept
	out := append([]protocol.Mission(nil), s.missions...)
	s.mu.Unlock()
	s.ev.emit(EventMissions, out)
}

func (s *Store) Missions() []protocol.Mission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Mission(nil), s.missions...)
}

// --- clock / speed / link ---------------------------------------------------

func (s *Store) SetGameTick(tick uint64) {
	s.mu.Lock()
	s.gameTick = tick
	s.mu.Unlock()
	s.ev.emit(EventClock, tick)
}

func (s *Store) GameTick() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gameTick
}

// SetSpeed stores the server-acknowledged speed. Invalid values default to
// normal.
func (s *Store) SetSpeed(sp protocol.Speed) {
	if !protocol.ValidSpeed(sp) {
		sp = protocol.SpeedNormal
	}
	s.mu.Lock()
	s.speed = sp
	s.mu.Unlock()
	s.ev.emit(EventSpeed, sp)
}

func (s *Store) Speed() protocol.Speed {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

// SetLinkUp records transport health for the passive status indicator.
func (s *Store) SetLinkUp(up bool) {
	s.mu.Lock()
	if s.linkUp == up {
		s.mu.Unlock()
		return
	}
	s.linkUp = up
	s.mu.Unlock()
	s.ev.emit(EventLink, up)
}

func (s *Store) LinkUp() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linkUp
}

// GameOver broadcasts the terminal event. State is left as-is; the session
// runtime tears down screens and decides what survives.
func (s *Store) GameOver(reason, detail string) {
	s.ev.emit(EventGameOver, protocol.GameOverMsg{Reason: reason, Detail: detail})
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func rawToString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
