package ledger

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/baileyhollabaugh/tokenvibes/core"
	"github.com/baileyhollabaugh/tokenvibes/events"
)

// Context is passed to every Handler and provides access to the ledger
// state, the triggering operation, and its journal sequence.
type Context struct {
	State     core.State
	Op        *core.Operation
	Seq       uint64
	Timestamp int64 // host apply time, unix nanoseconds

	events []events.Event
}

// Emit queues ev for delivery after the operation commits. Events from
// a failed operation are discarded along with its state changes, so
// subscribers never observe an operation that was not applied.
func (c *Context) Emit(ev events.Event) {
	c.events = append(c.events, ev)
}

// Handler is the function signature every operation module must implement.
type Handler func(ctx *Context, payload json.RawMessage) error

// Registry maps OpTypes to Handlers. Thread-safe for concurrent registration.
type Registry struct {
	mu       sync.RWMutex
	handlers map[core.OpType]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[core.OpType]Handler)}
}

// Register associates typ with h. Panics on duplicate registration.
func (r *Registry) Register(typ core.OpType, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[typ]; exists {
		panic(fmt.Sprintf("ledger: handler already registered for OpType %q", typ))
	}
	r.handlers[typ] = h
}

// Execute dispatches payload to the handler registered for typ.
func (r *Registry) Execute(typ core.OpType, ctx *Context, payload json.RawMessage) error {
	r.mu.RLock()
	h, ok := r.handlers[typ]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("ledger: no handler registered for OpType %q", typ)
	}
	return h(ctx, payload)
}

// globalRegistry is the package-level singleton that modules register into.
var globalRegistry = NewRegistry()

// Register adds a handler to the global registry.
// Module init() functions call this to self-register.
func Register(typ core.OpType, h Handler) {
	globalRegistry.Register(typ, h)
}
