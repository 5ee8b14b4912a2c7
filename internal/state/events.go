package state

import (
	"log"
	"sync"
)

// Event names the closed set of store change notifications. Every mutation
// method emits exactly one of these, carrying the post-mutation slice.
type Event string

const (
	EventPlayer     Event = "player_updated"
	EventGateway    Event = "gateway_updated"
	EventChain      Event = "chain_updated"
	EventConnection Event = "connection_updated"
	EventScreen     Event = "screen_updated"
	EventTrace      Event = "trace_updated"
	EventTasks      Event = "tasks_updated"
	EventMessages   Event = "messages_updated"
	EventMissions   Event = "missions_updated"
	EventClock      Event = "clock_updated"
	EventSpeed      Event = "speed_updated"
	EventLink       Event = "link_status"
	EventGameOver   Event = "game_over"
)

type listener struct {
	id  int
	fn  func(any)
	off bool
}

// emitter is a registration-ordered publish/subscribe registry. Emission
// iterates a snapshot of the listener list, so handlers may subscribe or
// unsubscribe during delivery, and a panicking handler does not stop the
// rest.
type emitter struct {
	log    *log.Logger
	mu     sync.Mutex
	nextID int
	lists  map[Event][]*listener
	byID   map[int]*listener
	dead   map[Event]int
}

func newEmitter(logger *log.Logger) *emitter {
	return &emitter{
		log:   logger,
		lists: map[Event][]*listener{},
		byID:  map[int]*listener{},
		dead:  map[Event]int{},
	}
}

func (e *emitter) on(ev Event, fn func(any)) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	l := &listener{id: e.nextID, fn: fn}
	e.lists[ev] = append(e.lists[ev], l)
	e.byID[l.id] = l
	return l.id
}

func (e *emitter) off(ev Event, id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.byID[id]
	if !ok || l.off {
		return
	}
	l.off = true
	delete(e.byID, id)
	e.dead[ev]++
	// Compact lazily once tombstones dominate, keeping off() O(1) amortized.
	if list := e.lists[ev]; e.dead[ev] > len(list)/2 {
		kept := list[:0]
		for _, x := range list {
			if !x.off {
				kept = append(kept, x)
			}
		}
		e.lists[ev] = kept
		e.dead[ev] = 0
	}
}

func (e *emitter) emit(ev Event, payload any) {
	// Tombstones are filtered while the mutex is held; off flags are never
	// read outside it. A listener removed after the snapshot is taken may
	// still see this one emission.
	e.mu.Lock()
	list := e.lists[ev]
	snapshot := make([]*listener, 0, len(list))
	for _, l := range list {
		if !l.off {
			snapshot = append(snapshot, l)
		}
	}
	e.mu.Unlock()
	for _, l := range snapshot {
		e.call(ev, l, payload)
	}
}

func (e *emitter) call(ev Event, l *listener, payload any) {
	defer func() {
		if r := recover(); r != nil && e.log != nil {
			e.log.Printf("listener for %s panicked: %v", ev, r)
		}
	}()
	l.fn(payload)
}
