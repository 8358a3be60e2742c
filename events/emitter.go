// Package events is a synchronous pub/sub broker for ledger state
// changes. The indexer and any external integrations subscribe here.
package events

import (
	"sync"

	"go.uber.org/zap"
)

// EventType labels what happened.
type EventType string

const (
	EventOpApplied         EventType = "op_applied"
	EventTokenCreated      EventType = "token_created"
	EventTokenMinted       EventType = "token_minted"
	EventTokenTransfer     EventType = "token_transfer"
	EventSaleOpened        EventType = "sale_opened"
	EventSalePurchase      EventType = "sale_purchase"
	EventProceedsWithdrawn EventType = "proceeds_withdrawn"
	EventSaleCancelled     EventType = "sale_cancelled"
)

// Event carries a typed payload emitted after a state change.
// Seq is the journal sequence of the operation that produced it.
type Event struct {
	Type EventType      `json:"type"`
	OpID string         `json:"op_id"`
	Seq  uint64         `json:"seq"`
	Data map[string]any `json:"data"`
}

// Handler is a callback invoked for matching events.
type Handler func(Event)

// Emitter is a simple pub/sub broker. Subscribe before Emit.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	logger   *zap.Logger
}

// NewEmitter creates an Emitter with no subscribers. A nil logger is
// replaced with a no-op logger.
func NewEmitter(logger *zap.Logger) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{
		handlers: make(map[EventType][]Handler),
		logger:   logger,
	}
}

// Subscribe registers h to be called whenever typ is emitted.
func (e *Emitter) Subscribe(typ EventType, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[typ] = append(e.handlers[typ], h)
}

// Emit delivers ev to all subscribers for ev.Type synchronously.
// Each handler is guarded by panic recovery so a misbehaving subscriber
// cannot crash the ledger host.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	handlers := e.handlers[ev.Type]
	e.mu.RUnlock()
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("event handler panicked",
						zap.String("event", string(ev.Type)),
						zap.Any("panic", r))
				}
			}()
			h(ev)
		}()
	}
}
