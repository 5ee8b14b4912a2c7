package tasks

import (
	"log"
	"os"
	"testing"
	"time"

	"gridlink.io/internal/protocol"
	"gridlink.io/internal/state"
)

func testStore() *state.Store {
	return state.New(log.New(os.Stdout, "[test] ", log.LstdFlags))
}

func f64Ptr(f float64) *float64 { return &f }
func strPtr(s string) *string   { return &s }

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

func TestTracker_CompletedRowOutlivesStoreRecord(t *testing.T) {
	store := testStore()
	tr := New(store)
	defer tr.Close()
	tr.grace = 150 * time.Millisecond

	store.UpdateTasks([]protocol.TaskPatch{
		{ID: 7, Tool: strPtr("decypher"), Progress: f64Ptr(0.3)},
	})
	rows := tr.Rows()
	if len(rows) != 1 || rows[0].Done {
		t.Fatalf("rows = %+v, want one active", rows)
	}

	store.CompleteTask(7)

	// The store forgets the task immediately...
	if got := store.ActiveTasks(); len(got) != 0 {
		t.Fatalf("store still has task: %+v", got)
	}
	// ...but the view keeps a terminal row through the grace period.
	rows = tr.Rows()
	if len(rows) != 1 || !rows[0].Done || rows[0].Progress != 1 {
		t.Fatalf("rows = %+v, want one done row", rows)
	}

	waitFor(t, "grace expiry", func() bool { return len(tr.Rows()) == 0 })
}

func TestTracker_ReinsertCancelsGraceRemoval(t *testing.T) {
	store := testStore()
	tr := New(store)
	defer tr.Close()
	tr.grace = time.Hour // would never expire within the test

	store.UpdateTasks([]protocol.TaskPatch{{ID: 3, Progress: f64Ptr(0.8)}})
	store.CompleteTask(3)
	store.UpdateTasks([]protocol.TaskPatch{{ID: 3, Progress: f64Ptr(0.1)}})

	rows := tr.Rows()
	if len(rows) != 1 {
		t.Fatalf("rows = %+v, want exactly one", rows)
	}
	if rows[0].Done {
		t.Fatalf("re-inserted task still shown done: %+v", rows[0])
	}
}

func TestTracker_ActiveBeforeDoneOrdering(t *testing.T) {
	store := testStore()
	tr := New(store)
	defer tr.Close()
	tr.grace = time.Hour

	store.UpdateTasks([]protocol.TaskPatch{
		{ID: 1, Progress: f64Ptr(0.5)},
		{ID: 2, Progress: f64Ptr(0.5)},
	})
	store.CompleteTask(1)

	rows := tr.Rows()
	if len(rows) != 2 {
		t.Fatalf("rows = %+v, want 2", rows)
	}
	if rows[0].ID != 2 || rows[0].Done {
		t.Fatalf("first row should be the active task: %+v", rows)
	}
	if rows[1].ID != 1 || !rows[1].Done {
		t.Fatalf("second row should be the done task: %+v", rows)
	}
}

func TestRemainingText(t *testing.T) {
	r := Row{Tool: "decypher", Version: 3, TicksLeft: 10}
	if got := RemainingText(r, 200*time.Millisecond); got != "2 seconds" {
		t.Fatalf("remaining = %q", got)
	}
	r.Done = true
	if got := RemainingText(r, 200*time.Millisecond); got != "done" {
		t.Fatalf("done remaining = %q", got)
	}
	if got := Label(Row{Tool: "scan", Version: 1, Target: "10.0.0.1"}); got != "scan v1 -> 10.0.0.1" {
		t.Fatalf("label = %q", got)
	}
}

func TestTracker_GameOverFlushesRows(t *testing.T) {
	s := testStore()
	tr := New(s)
	defer tr.Close()

	s.UpdateTasks([]protocol.TaskPatch{
		{ID: 3, Tool: strPtr("scan"), Progress: f64Ptr(0.2)},
		{ID: 4, Tool: strPtr("crack"), Progress: f64Ptr(0.9)},
	})
	s.CompleteTask(4)
	waitFor(t, "done row", func() bool {
		rows := tr.Rows()
		return len(rows) == 2 && rows[1].Done
	})

	s.ReplaceTasks(nil)
	s.GameOver(protocol.ReasonTraced, "")

	if rows := tr.Rows(); len(rows) != 0 {
		t.Fatalf("rows after game over = %+v, want none", rows)
	}
}
