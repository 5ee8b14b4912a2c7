// Package tasks layers completion feedback on top of the store's task
// records. The store drops a task the moment the server completes it; the
// tracker keeps a terminal "done" row visible for a short grace period so
// the view can show the result before the row disappears.
package tasks

import (
	"sort"
	"sync"
	"time"

	"gridlink.io/internal/state"
)

// DisplayGrace is how long a completed task row stays visible.
const DisplayGrace = 3 * time.Second

// Row is one task line as the view should show it.
type Row struct {
	ID        int
	Tool      string
	Version   int
	Progress  float64
	TicksLeft int
	Target    string
	Done      bool
}

// Tracker mirrors the store's active tasks and holds completed rows through
// the grace period. It subscribes to the store on New and must be Closed to
// release its subscription and timers.
type Tracker struct {
	store *state.Store
	grace time.Duration

	mu       sync.Mutex
	active   map[int]Row
	done     map[int]Row
	timers   map[int]*time.Timer
	sub      int
	endSub   int
	onChange func()
	closed   bool
}

func New(store *state.Store) *Tracker {
	t := &Tracker{
		store:  store,
		grace:  DisplayGrace,
		active: map[int]Row{},
		done:   map[int]Row{},
		timers: map[int]*time.Timer{},
	}
	t.sub = store.On(state.EventTasks, func(payload any) {
		recs, ok := payload.([]state.TaskRecord)
		if !ok {
			return
		}
		t.apply(recs)
	})
	// Game over ends the session; done rows do not outlive it in grace.
	t.endSub = store.On(state.EventGameOver, func(any) {
		t.Flush()
	})
	return t
}

// OnChange registers a single view refresh callback, invoked after every row
// change including grace-period expiry.
func (t *Tracker) OnChange(fn func()) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

func (t *Tracker) Close() {
	t.store.Off(state.EventTasks, t.sub)
	t.store.Off(state.EventGameOver, t.endSub)
	t.mu.Lock()
	t.closed = true
	for id, tm := range t.timers {
		tm.Stop()
		delete(t.timers, id)
	}
	t.mu.Unlock()
}

// Flush drops every row immediately, active and done alike, cancelling
// pending grace timers.
func (t *Tracker) Flush() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.active = map[int]Row{}
	t.done = map[int]Row{}
	for id, tm := range t.timers {
		tm.Stop()
		delete(t.timers, id)
	}
	fn := t.onChange
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// apply reconciles the store's post-mutation active set. A task that was
// active and is now gone just completed: move it to done and start its
// grace timer.
func (t *Tracker) apply(recs []state.TaskRecord) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	next := make(map[int]Row, len(recs))
	for _, r := range recs {
		next[r.ID] = Row{
			ID:        r.ID,
			Tool:      r.Tool,
			Version:   r.Version,
			Progress:  r.Progress,
			TicksLeft: r.TicksLeft,
			Target:    r.Target,
		}
	}
	for id, row := range t.active {
		if _, still := next[id]; still {
			continue
		}
		row.Done = true
		row.Progress = 1
		row.TicksLeft = 0
		t.done[id] = row
		t.startGraceLocked(id)
	}
	// A re-inserted id cancels its pending removal.
	for id := range next {
		if _, wasDone := t.done[id]; wasDone {
			delete(t.done, id)
			if tm := t.timers[id]; tm != nil {
				tm.Stop()
				delete(t.timers, id)
			}
		}
	}
	t.active = next
	fn := t.onChange
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (t *Tracker) startGraceLocked(id int) {
	if tm := t.timers[id]; tm != nil {
		tm.Stop()
	}
	t.timers[id] = time.AfterFunc(t.grace, func() {
		t.mu.Lock()
		delete(t.done, id)
		delete(t.timers, id)
		fn := t.onChange
		closed := t.closed
		t.mu.Unlock()
		if fn != nil && !closed {
			fn()
		}
	})
}

// Rows returns the display rows: active tasks by id, then completed rows
// still inside their grace period.
func (t *Tracker) Rows() []Row {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Row, 0, len(t.active)+len(t.done))
	for _, r := range t.active {
		out = append(out, r)
	}
	for _, r := range t.done {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Done != out[j].Done {
			return !out[i].Done
		}
		return out[i].ID < out[j].ID
	})
	return out
}
