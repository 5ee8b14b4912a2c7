package screens

import (
	"log"
	"os"
	"strings"
	"sync"
	"testing"

	"gridlink.io/internal/protocol"
	"gridlink.io/internal/state"
)

type recordTarget struct {
	mu     sync.Mutex
	clears int
	lines  []string
}

func (r *recordTarget) Clear() {
	r.mu.Lock()
	r.clears++
	r.lines = nil
	r.mu.Unlock()
}

func (r *recordTarget) Println(line string) {
	r.mu.Lock()
	r.lines = append(r.lines, line)
	r.mu.Unlock()
}

func (r *recordTarget) text() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.lines, "\n")
}

type trackedHandle struct{ destroyed *int }

func (h trackedHandle) Destroy() { *h.destroyed++ }

func testLogger() *log.Logger {
	return log.New(os.Stdout, "[test] ", log.LstdFlags)
}

func passwordScreen() protocol.ScreenData {
	return protocol.ScreenData{
		Type: protocol.ScreenPassword,
		Raw:  []byte(`{"screen_type":2,"title":"Access Terminal","prompt":"password:"}`),
	}
}

func TestRegistry_UnknownTagGetsPlaceholder(t *testing.T) {
	reg := NewRegistry()
	target := &recordTarget{}

	h := reg.Create(target, protocol.ScreenData{Type: protocol.ScreenType(42)})
	if h == nil {
		t.Fatal("Create returned nil handle")
	}
	h.Destroy()
	h.Destroy() // must be safe twice
	if !strings.Contains(target.text(), "42") {
		t.Fatalf("placeholder should show the raw tag, got %q", target.text())
	}
}

func TestRegistry_LaterRegistrationWins(t *testing.T) {
	reg := TextRenderers()
	called := false
	reg.Register(protocol.ScreenPassword, func(tg Target, d protocol.ScreenData) Handle {
		called = true
		return trackedHandle{destroyed: new(int)}
	})
	reg.Create(&recordTarget{}, passwordScreen())
	if !called {
		t.Fatal("override factory was not used")
	}
}

func TestController_StateMachine(t *testing.T) {
	store := state.New(testLogger())
	target := &recordTarget{}
	reg := NewRegistry()

	destroyed := 0
	mounts := 0
	reg.Register(protocol.ScreenPassword, func(tg Target, d protocol.ScreenData) Handle {
		mounts++
		return trackedHandle{destroyed: &destroyed}
	})
	reg.Register(protocol.ScreenBank, func(tg Target, d protocol.ScreenData) Handle {
		mounts++
		return trackedHandle{destroyed: &destroyed}
	})

	c := NewController(testLogger(), reg, target, store)
	defer c.Close()

	if c.Mounted() {
		t.Fatal("controller should start Idle")
	}

	// Idle -> connected: mount the connection's first screen.
	store.SetConnected("10.0.0.1", passwordScreen())
	if !c.Mounted() || mounts != 1 {
		t.Fatalf("mounted=%v mounts=%d, want mounted with 1 mount", c.Mounted(), mounts)
	}

	// screen_update while mounted: destroy previous, mount new.
	store.SetScreen(protocol.ScreenData{Type: protocol.ScreenBank, Raw: []byte(`{"screen_type":6}`)})
	if mounts != 2 || destroyed != 1 {
		t.Fatalf("mounts=%d destroyed=%d, want 2/1", mounts, destroyed)
	}

	// disconnected: back to Idle, current handle destroyed.
	store.SetDisconnected()
	if c.Mounted() || destroyed != 2 {
		t.Fatalf("mounted=%v destroyed=%d, want idle with 2 destroys", c.Mounted(), destroyed)
	}
}

func TestController_LatentUpdatesCoalesce(t *testing.T) {
	store := state.New(testLogger())
	target := &recordTarget{}
	reg := NewRegistry()

	var mountedTitles []string
	factory := func(tg Target, d protocol.ScreenData) Handle {
		var v struct {
			Title string `json:"title"`
		}
		_ = d.Decode(&v)
		mountedTitles = append(mountedTitles, v.Title)
		return trackedHandle{destroyed: new(int)}
	}
	reg.Register(protocol.ScreenPassword, factory)
	reg.Register(protocol.ScreenBank, factory)

	c := NewController(testLogger(), reg, target, store)
	defer c.Close()

	// Two latent updates while Idle: most recent wins, never a queue.
	latent1 := protocol.ScreenData{Type: protocol.ScreenPassword, Raw: []byte(`{"screen_type":2,"title":"stale"}`)}
	latent2 := protocol.ScreenData{Type: protocol.ScreenBank, Raw: []byte(`{"screen_type":6,"title":"fresh"}`)}
	c.onScreen(latent1)
	c.onScreen(latent2)

	c.onConnection(state.ConnectionState{Connected: true, TargetAddress: "10.0.0.1"})

	if len(mountedTitles) != 1 || mountedTitles[0] != "fresh" {
		t.Fatalf("mounted %v, want exactly the most recent latent screen", mountedTitles)
	}
}
