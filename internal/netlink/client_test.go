package netlink

import (
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"gridlink.io/internal/protocol"
)

func testLogger() *log.Logger {
	return log.New(os.Stdout, "[test] ", log.LstdFlags)
}

// echoServer accepts websocket connections, counts them, and keeps each
// open until the server closes.
func echoServer(t *testing.T, dials *atomic.Int32) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		dials.Add(1)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

func TestSend_NoopWhenNotConnected(t *testing.T) {
	c := New("ws://127.0.0.1:1/ws", testLogger())
	// Must neither panic nor block.
	c.Send(protocol.TypeHeartbeat, protocol.HeartbeatMsg{Type: protocol.TypeHeartbeat})
	c.Disconnect()
}

func TestConnect_JoinsAndReportsStatus(t *testing.T) {
	var dials atomic.Int32
	up := websocket.Upgrader{}
	joins := make(chan protocol.JoinMsg, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		dials.Add(1)
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var j protocol.JoinMsg
		if json.Unmarshal(msg, &j) == nil {
			joins <- j
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := New(wsURL(srv), testLogger())
	defer c.Disconnect()

	var ups atomic.Int32
	c.SetStatusFunc(func(up bool) {
		if up {
			ups.Add(1)
		}
	})
	if err := c.Connect("tok_abc", "S1"); err != nil {
		t.Fatalf("connect: %v", err)
	}

	select {
	case j := <-joins:
		if j.Type != protocol.TypeJoin || j.Token != "tok_abc" || j.SessionID != "S1" {
			t.Fatalf("join = %+v", j)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server never saw JOIN")
	}
	if ups.Load() != 1 {
		t.Fatalf("status ups = %d, want 1", ups.Load())
	}
}

func TestReconnect_SinglePendingTimer(t *testing.T) {
	var dials atomic.Int32
	srv := echoServer(t, &dials)
	defer srv.Close()

	c := New(wsURL(srv), testLogger())
	defer c.Disconnect()
	c.delay = 50 * time.Millisecond

	if err := c.Connect("tok", "S1"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitFor(t, "first dial", func() bool { return dials.Load() == 1 })

	// Two close notifications for the same generation within the backoff
	// window: the second must replace the first's pending timer, never add
	// a second one.
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	c.handleClose(gen)
	c.handleClose(gen)

	waitFor(t, "reconnect", func() bool { return c.Connected() && dials.Load() == 2 })

	// Let any rogue duplicate timer fire; the dial count must not move.
	time.Sleep(300 * time.Millisecond)
	if got := dials.Load(); got != 2 {
		t.Fatalf("dials = %d, want exactly 2", got)
	}
}

func TestDisconnect_CancelsPendingReconnect(t *testing.T) {
	var dials atomic.Int32
	c := New("ws://127.0.0.1:1/ws", testLogger())
	c.delay = 30 * time.Millisecond
	c.dial = func() (*websocket.Conn, error) {
		dials.Add(1)
		return nil, ErrClosed
	}

	_ = c.Connect("tok", "S1") // fails, schedules a retry
	waitFor(t, "first dial", func() bool { return dials.Load() >= 1 })
	c.Disconnect()
	time.Sleep(100 * time.Millisecond) // drain any in-flight attempt
	settled := dials.Load()

	time.Sleep(200 * time.Millisecond)
	if got := dials.Load(); got != settled {
		t.Fatalf("dials kept growing after Disconnect: %d -> %d", settled, got)
	}
}

func TestDispatch_HandlersAndUnknownTypes(t *testing.T) {
	c := New("ws://127.0.0.1:1/ws", testLogger())
	defer c.Disconnect()

	var got []string
	c.On(protocol.TypeTraceUpdate, func(msg []byte) { got = append(got, "a") })
	id := c.On(protocol.TypeTraceUpdate, func(msg []byte) { got = append(got, "b") })

	c.dispatch([]byte(`{"type":"TRACE_UPDATE","progress":0.5,"active":true}`))
	if strings.Join(got, "") != "ab" {
		t.Fatalf("handlers ran %v, want registration order", got)
	}

	// Unknown types and malformed payloads are ignored, not fatal.
	c.dispatch([]byte(`{"type":"SOMETHING_NEW"}`))
	c.dispatch([]byte(`not json`))

	c.Off(protocol.TypeTraceUpdate, id)
	c.dispatch([]byte(`{"type":"TRACE_UPDATE","progress":0.6,"active":true}`))
	if strings.Join(got, "") != "aba" {
		t.Fatalf("after Off got %v", got)
	}
}
