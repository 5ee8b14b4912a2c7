package state

import (
	"log"
	"os"
	"reflect"
	"sync"
	"testing"

	"gridlink.io/internal/protocol"
)

func testLogger() *log.Logger {
	return log.New(os.Stdout, "[test] ", log.LstdFlags)
}

func strPtr(s string) *string   { return &s }
func intPtr(n int) *int         { return &n }
func f64Ptr(f float64) *float64 { return &f }
func i64Ptr(n int64) *int64     { return &n }

func TestUpdateTasks_MergeByID(t *testing.T) {
	s := New(testLogger())

	s.UpdateTasks([]protocol.TaskPatch{
		{ID: 7, Tool: strPtr("decypher"), Version: intPtr(3), Progress: f64Ptr(0.1), Target: strPtr("144.12.0.4")},
	})
	// A later patch for the same id must update only the fields it carries.
	s.UpdateTasks([]protocol.TaskPatch{
		{ID: 7, Progress: f64Ptr(0.4)},
	})

	tasks := s.ActiveTasks()
	if len(tasks) != 1 {
		t.Fatalf("tasks = %d, want 1", len(tasks))
	}
	got := tasks[0]
	if got.Tool != "decypher" || got.Version != 3 || got.Target != "144.12.0.4" {
		t.Fatalf("patch clobbered untouched fields: %+v", got)
	}
	if got.Progress != 0.4 {
		t.Fatalf("progress = %v, want 0.4", got.Progress)
	}
}

func TestUpdateTasks_OrderIndependentPerID(t *testing.T) {
	// Applying patches for distinct ids in any order yields each id once,
	// with the most recent patch per id winning.
	a := []protocol.TaskPatch{
		{ID: 1, Tool: strPtr("scan"), Progress: f64Ptr(0.2)},
		{ID: 2, Tool: strPtr("crack"), Progress: f64Ptr(0.5)},
	}
	b := []protocol.TaskPatch{
		{ID: 2, Progress: f64Ptr(0.6)},
		{ID: 1, Progress: f64Ptr(0.3)},
	}

	s1 := New(testLogger())
	s1.UpdateTasks(a)
	s1.UpdateTasks(b)

	s2 := New(testLogger())
	s2.UpdateTasks([]protocol.TaskPatch{a[1], a[0]})
	s2.UpdateTasks([]protocol.TaskPatch{b[1], b[0]})

	t1, t2 := s1.ActiveTasks(), s2.ActiveTasks()
	if len(t1) != 2 || len(t2) != 2 {
		t.Fatalf("lens = %d, %d, want 2, 2", len(t1), len(t2))
	}
	if !reflect.DeepEqual(t1, t2) {
		t.Fatalf("order sensitivity: %+v vs %+v", t1, t2)
	}
	if t1[0].Progress != 0.3 || t1[1].Progress != 0.6 {
		t.Fatalf("latest patches did not win: %+v", t1)
	}
}

func TestCompleteTask_RemovesImmediately(t *testing.T) {
	s := New(testLogger())
	s.UpdateTasks([]protocol.TaskPatch{{ID: 7, Progress: f64Ptr(0.3)}})
	s.CompleteTask(7)
	if got := s.ActiveTasks(); len(got) != 0 {
		t.Fatalf("completed task still active: %+v", got)
	}
}

func TestMessages_UnreadCountLockstep(t *testing.T) {
	s := New(testLogger())
	s.SetMessages([]protocol.Message{
		{ID: 1, Read: true},
		{ID: 2, Read: false},
	})
	if got := s.UnreadCount(); got != 1 {
		t.Fatalf("unread = %d, want 1", got)
	}

	s.AddMessage(protocol.Message{ID: 3, Subject: "job offer"})
	if got := s.UnreadCount(); got != 2 {
		t.Fatalf("unread after add = %d, want 2", got)
	}
	msgs := s.Messages()
	if msgs[0].ID != 3 {
		t.Fatalf("new message not first: %+v", msgs)
	}

	s.MarkMessageRead(3)
	if got := s.UnreadCount(); got != 1 {
		t.Fatalf("unread after read = %d, want 1", got)
	}
	// Marking twice must not drive the counter negative.
	s.MarkMessageRead(3)
	if got := s.UnreadCount(); got != 1 {
		t.Fatalf("unread after double read = %d, want 1", got)
	}
}

func TestDisconnect_ClearsConnectionAtomically(t *testing.T) {
	s := New(testLogger())
	s.SetChain([]protocol.BounceNode{{Position: 0, Address: "10.0.0.1"}})
	s.SetConnected("10.0.0.1", protocol.ScreenData{Type: protocol.ScreenPassword})
	s.SetTrace(0.7, true)

	s.SetDisconnected()

	conn := s.Connection()
	if conn.Connected || conn.TargetAddress != "" || conn.CurrentScreen != nil {
		t.Fatalf("disconnect left connection state: %+v", conn)
	}
	if conn.TraceProgress != 0 || conn.TraceActive {
		t.Fatalf("disconnect left trace state: %+v", conn)
	}
	// The chain itself survives until an explicit clear.
	if len(conn.Chain) != 1 {
		t.Fatalf("disconnect cleared the chain: %+v", conn.Chain)
	}
	s.ClearChain()
	if got := s.Connection().Chain; len(got) != 0 {
		t.Fatalf("explicit clear kept the chain: %+v", got)
	}
}

func TestSetScreen_DropsWhileDisconnected(t *testing.T) {
	s := New(testLogger())
	fired := false
	s.On(EventScreen, func(any) { fired = true })

	s.SetScreen(protocol.ScreenData{Type: protocol.ScreenBank})

	if fired {
		t.Fatal("screen event fired without a connection")
	}
	if s.Connection().CurrentScreen != nil {
		t.Fatal("screen stored without a connection")
	}
}

func TestEmit_IsolatesFaultingListeners(t *testing.T) {
	s := New(testLogger())
	var order []int
	s.On(EventClock, func(any) { order = append(order, 1) })
	s.On(EventClock, func(any) { panic("listener bug") })
	s.On(EventClock, func(any) { order = append(order, 3) })

	s.SetGameTick(5)

	if len(order) != 2 || order[0] != 1 || order[1] != 3 {
		t.Fatalf("order = %v, want [1 3]", order)
	}
}

func TestEmit_UnsubscribeDuringEmission(t *testing.T) {
	s := New(testLogger())
	calls := 0
	var id int
	id = s.On(EventClock, func(any) {
		calls++
		s.Off(EventClock, id)
	})

	s.SetGameTick(1)
	s.SetGameTick(2)

	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestReset_KeepsListeners(t *testing.T) {
	s := New(testLogger())
	s.MergePlayer(protocol.AccountUpdateMsg{Handle: strPtr("ghost"), Balance: i64Ptr(3000)})
	s.SetChain([]protocol.BounceNode{{Position: 0, Address: "10.0.0.1"}})

	calls := 0
	s.On(EventClock, func(any) { calls++ })

	s.Reset()

	if p := s.Player(); p.Handle != "" || p.Balance != 0 {
		t.Fatalf("reset kept player state: %+v", p)
	}
	if got := s.Connection().Chain; len(got) != 0 {
		t.Fatalf("reset kept chain: %+v", got)
	}
	s.SetGameTick(1)
	if calls != 1 {
		t.Fatal("reset dropped listeners")
	}
}

func TestMergePlayer_PartialMerge(t *testing.T) {
	s := New(testLogger())
	s.MergePlayer(protocol.AccountUpdateMsg{Handle: strPtr("ghost"), Balance: i64Ptr(1700), Rating: intPtr(4)})
	s.MergePlayer(protocol.AccountUpdateMsg{Balance: i64Ptr(2100)})

	p := s.Player()
	if p.Handle != "ghost" || p.Rating != 4 {
		t.Fatalf("partial merge clobbered fields: %+v", p)
	}
	if p.Balance != 2100 {
		t.Fatalf("balance = %d, want 2100", p.Balance)
	}
}

func TestRankName_Clamps(t *testing.T) {
	if RankName(-1) != rankNames[0] {
		t.Fatal("negative rating should clamp low")
	}
	if RankName(1000) != rankNames[len(rankNames)-1] {
		t.Fatal("huge rating should clamp high")
	}
}

func TestEmit_ConcurrentWithOff(t *testing.T) {
	// Mutations run on the transport read goroutine while components
	// unsubscribe from their own Close paths; subscription bookkeeping and
	// emission must not race.
	s := New(testLogger())

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := uint64(1); ; i++ {
			select {
			case <-stop:
				return
			default:
				s.SetGameTick(i)
			}
		}
	}()

	for i := 0; i < 200; i++ {
		id := s.On(EventClock, func(any) {})
		s.Off(EventClock, id)
	}
	close(stop)
	wg.Wait()
}
