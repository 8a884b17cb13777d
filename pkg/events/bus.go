// Package events carries the observability notifications the engines emit:
// price updates, swap lifecycle transitions and configuration changes.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type names an observability event.
type Type string

const (
	TypePriceUpdated      Type = "price-updated"
	TypeSwapInitiated     Type = "swap-initiated"
	TypeSwapCompleted     Type = "swap-completed"
	TypeSwapFailed        Type = "swap-failed"
	TypeSwapRecovered     Type = "swap-recovered"
	TypeConfigChanged     Type = "configuration-changed"
	TypePaused            Type = "paused"
	TypeUnpaused          Type = "unpaused"
	TypeChainConfigChange Type = "chain-config-changed"
)

// Event is a single notification. ChainID and SwapID are set when relevant;
// Fields carries event-specific detail for external monitoring.
type Event struct {
	ID      uuid.UUID
	Type    Type
	At      time.Time
	ChainID string
	SwapID  string
	Fields  map[string]string
}

// Sink consumes published events. Sinks must not block; slow consumers
// should buffer internally.
type Sink interface {
	Notify(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

func (f SinkFunc) Notify(e Event) { f(e) }

// Bus fans events out to subscribed sinks.
type Bus struct {
	mu    sync.RWMutex
	sinks []Sink
	now   func() time.Time
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{now: time.Now}
}

// Subscribe registers a sink for all subsequent events.
func (b *Bus) Subscribe(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, s)
}

// Publish stamps the event with an id and timestamp and delivers it to all
// sinks. A zero At is filled with the current time.
func (b *Bus) Publish(e Event) {
	e.ID = uuid.New()
	if e.At.IsZero() {
		e.At = b.now()
	}
	b.mu.RLock()
	sinks := make([]Sink, len(b.sinks))
	copy(sinks, b.sinks)
	b.mu.RUnlock()

	for _, s := range sinks {
		s.Notify(e)
	}
}
