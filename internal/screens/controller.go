package screens

import (
	"log"
	"sync"

	"gridlink.io/internal/protocol"
	"gridlink.io/internal/state"
)

// Controller owns the remote-screen lifecycle: Idle until a connection is
// confirmed, then exactly one mounted renderer that is torn down and
// replaced on every screen update, back to Idle on disconnect. Screen
// updates that arrive while Idle are latent; only the most recent one is
// kept and used at the next mount.
type Controller struct {
	log      *log.Logger
	registry *Registry
	target   Target
	store    *state.Store

	mu      sync.Mutex
	mounted Handle
	latest  *protocol.ScreenData
	subs    []subRef
}

type subRef struct {
	ev state.Event
	id int
}

func NewController(logger *log.Logger, reg *Registry, target Target, store *state.Store) *Controller {
	c := &Controller{log: logger, registry: reg, target: target, store: store}
	c.subs = []subRef{
		{state.EventConnection, store.On(state.EventConnection, c.onConnection)},
		{state.EventScreen, store.On(state.EventScreen, c.onScreen)},
		{state.EventGameOver, store.On(state.EventGameOver, func(any) { c.unmount() })},
	}
	return c
}

// Close unmounts and unsubscribes. Safe to call twice.
func (c *Controller) Close() {
	for _, s := range c.subs {
		c.store.Off(s.ev, s.id)
	}
	c.subs = nil
	c.unmount()
}

func (c *Controller) onConnection(payload any) {
	conn, ok := payload.(state.ConnectionState)
	if !ok {
		return
	}
	if !conn.Connected {
		c.unmount()
		return
	}
	c.mu.Lock()
	data := conn.CurrentScreen
	if data == nil {
		data = c.latest
	}
	c.mu.Unlock()
	if data != nil {
		c.mount(*data)
	}
}

func (c *Controller) onScreen(payload any) {
	data, ok := payload.(protocol.ScreenData)
	if !ok {
		return
	}
	c.mu.Lock()
	mounted := c.mounted != nil
	if !mounted {
		// Latent update: most recent wins, never a queue.
		d := data
		c.latest = &d
	}
	c.mu.Unlock()
	if mounted {
		c.mount(data)
	}
}

// mount destroys the previous handle and clears the target before
// constructing the next renderer.
func (c *Controller) mount(data protocol.ScreenData) {
	c.mu.Lock()
	prev := c.mounted
	c.mounted = nil
	c.latest = nil
	c.mu.Unlock()

	if prev != nil {
		prev.Destroy()
	}
	c.target.Clear()
	h := c.registry.Create(c.target, data)

	c.mu.Lock()
	c.mounted = h
	c.mu.Unlock()
	if c.log != nil {
		c.log.Printf("screen mounted: %s", data.Type)
	}
}

func (c *Controller) unmount() {
	c.mu.Lock()
	prev := c.mounted
	c.mounted = nil
	c.latest = nil
	c.mu.Unlock()
	if prev != nil {
		prev.Destroy()
		c.target.Clear()
	}
}

// Mounted reports whether a renderer is currently active.
func (c *Controller) Mounted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mounted != nil
}
