// Package netlink owns the one persistent duplex connection to the game
// server. Sends are fire-and-forget, incoming messages are routed to typed
// handlers by their discriminator, and an unexpected close schedules exactly
// one reconnect attempt at a time, forever, until Disconnect.
package netlink

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"gridlink.io/internal/protocol"
)

const (
	initialRetryDelay = 500 * time.Millisecond
	maxRetryDelay     = 5 * time.Second
	writeTimeout      = 5 * time.Second
	dialTimeout       = 5 * time.Second
)

// Handler receives the raw bytes of one message of its registered type.
type Handler func(msg []byte)

type handlerEntry struct {
	id int
	fn Handler
}

// Client is the transport client. Zero value is not usable; construct with
// New and open the link with Connect.
type Client struct {
	url string
	log *log.Logger

	// dial is swappable for tests.
	dial func() (*websocket.Conn, error)

	mu        sync.Mutex
	conn      *websocket.Conn
	gen       int
	closed    bool
	token     string
	sessionID string
	reconnect *time.Timer
	delay     time.Duration
	handlers  map[string][]handlerEntry
	nextID    int
	status    func(up bool)

	writeMu sync.Mutex
}

func New(url string, logger *log.Logger) *Client {
	c := &Client{
		url:      url,
		log:      logger,
		delay:    initialRetryDelay,
		handlers: map[string][]handlerEntry{},
	}
	c.dial = func() (*websocket.Conn, error) {
		d := websocket.Dialer{HandshakeTimeout: dialTimeout}
		conn, resp, err := d.Dial(c.url, http.Header{})
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return conn, err
	}
	return c
}

// SetStatusFunc registers the passive link indicator callback. Called with
// false on loss and true once a connection (or reconnection) handshake is
// done.
func (c *Client) SetStatusFunc(fn func(up bool)) {
	c.mu.Lock()
	c.status = fn
	c.mu.Unlock()
}

// On registers a handler for one message type and returns an id for Off.
// Multiple handlers per type run in registration order on the read
// goroutine.
func (c *Client) On(msgType string, fn Handler) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.handlers[msgType] = append(c.handlers[msgType], handlerEntry{id: c.nextID, fn: fn})
	return c.nextID
}

func (c *Client) Off(msgType string, id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.handlers[msgType]
	for i, e := range list {
		if e.id == id {
			c.handlers[msgType] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Connect opens the link and joins with the session credentials. The same
// credentials are reused by every automatic reconnect.
func (c *Client) Connect(token, sessionID string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.token = token
	c.sessionID = sessionID
	c.mu.Unlock()
	return c.attempt()
}

// Disconnect releases the connection and cancels any pending reconnect. The
// client cannot be reused afterwards.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.closed = true
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

// Send writes one message, fire-and-forget. When the link is down the
// message is silently dropped, not queued; callers must not assume
// delivery.
func (c *Client) Send(msgType string, msg any) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}
	b, err := json.Marshal(msg)
	if err != nil {
		if c.log != nil {
			c.log.Printf("drop %s: marshal: %v", msgType, err)
		}
		return
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil && c.log != nil {
		c.log.Printf("drop %s: write: %v", msgType, err)
	}
}

// Connected reports whether the link is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *Client) attempt() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.mu.Unlock()
	conn, err := c.dial()
	if err != nil {
		c.mu.Lock()
		if !c.closed {
			c.scheduleReconnectLocked()
		}
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	c.conn = conn
	c.gen++
	gen := c.gen
	c.delay = initialRetryDelay
	// A reconnect scheduled while this attempt was dialing is now moot.
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	join := protocol.JoinMsg{
		Type:            protocol.TypeJoin,
		ProtocolVersion: protocol.Version,
		SessionID:       c.sessionID,
		Token:           c.token,
	}
	status := c.status
	c.mu.Unlock()

	c.Send(protocol.TypeJoin, join)
	if status != nil {
		status(true)
	}
	go c.readLoop(conn, gen)
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(gen)
			return
		}
		c.dispatch(msg)
	}
}

// dispatch routes one raw message by its discriminator. Malformed payloads
// are dropped with a log; unrecognized types are ignored.
func (c *Client) dispatch(msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type == "" {
		if c.log != nil {
			c.log.Printf("drop malformed message: %v", err)
		}
		return
	}
	c.mu.Lock()
	list := append([]handlerEntry(nil), c.handlers[base.Type]...)
	c.mu.Unlock()
	for _, e := range list {
		e.fn(msg)
	}
}

// handleClose reacts to a dead read loop. Stale generations (a reconnect
// already replaced this conn) are ignored, so at most one reconnect chain
// runs.
func (c *Client) handleClose(gen int) {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	status := c.status
	c.scheduleReconnectLocked()
	c.mu.Unlock()
	if status != nil {
		status(false)
	}
}

// scheduleReconnectLocked replaces any pending reconnect timer with a fresh
// one. There is never more than one pending attempt.
func (c *Client) scheduleReconnectLocked() {
	if c.reconnect != nil {
		c.reconnect.Stop()
	}
	d := c.delay
	c.delay *= 2
	if c.delay > maxRetryDelay {
		c.delay = maxRetryDelay
	}
	c.reconnect = time.AfterFunc(d, func() {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.reconnect = nil
		c.mu.Unlock()
		if c.log != nil {
			c.log.Printf("reconnecting")
		}
		_ = c.attempt()
	})
}
