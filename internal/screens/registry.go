// Package screens dispatches opaque server screen payloads to renderers.
// The registry is a static tag-to-factory table; the controller keeps
// exactly one renderer mounted and owns the Idle/Mounted state machine.
package screens

import (
	"fmt"
	"io"

	"gridlink.io/internal/protocol"
)

// Target is the surface a renderer draws into. Presentation toolkits adapt
// their drawing area to this; the headless client backs it with a writer.
type Target interface {
	Clear()
	Println(line string)
}

// Handle is a mounted renderer. Destroy is idempotent and safe on every
// handle the registry returns, including placeholders.
type Handle interface {
	Destroy()
}

// Factory constructs a renderer for one screen variant. Factories must not
// fail: bad payloads degrade to whatever the renderer can show.
type Factory func(t Target, data protocol.ScreenData) Handle

// Registry maps screen-type tags to factories. It is stateless; it holds no
// reference to screens it has created.
type Registry struct {
	factories map[protocol.ScreenType]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[protocol.ScreenType]Factory{}}
}

// Register installs a factory for one tag. Later registrations win, so a
// front end can override the built-in text renderers.
func (r *Registry) Register(t protocol.ScreenType, f Factory) {
	r.factories[t] = f
}

// Create looks up the factory for the payload's tag and constructs its
// renderer. An unregistered tag gets a placeholder showing the raw tag;
// Create never fails.
func (r *Registry) Create(target Target, data protocol.ScreenData) Handle {
	if f, ok := r.factories[data.Type]; ok {
		return f(target, data)
	}
	target.Println(fmt.Sprintf("[unknown screen type %d]", int(data.Type)))
	return nopHandle{}
}

type nopHandle struct{}

func (nopHandle) Destroy() {}

// WriterTarget adapts an io.Writer into a Target for the headless client
// and tests.
type WriterTarget struct {
	W io.Writer
}

func (t *WriterTarget) Clear() {
	fmt.Fprintln(t.W, "\n----------------------------------------")
}

func (t *WriterTarget) Println(line string) {
	fmt.Fprintln(t.W, line)
}
