package archive

import (
	"context"

	"go.uber.org/zap"

	"github.com/omniroute/swap-middleware/pkg/events"
	"github.com/omniroute/swap-middleware/pkg/orchestrator"
)

// SwapReader resolves swap snapshots for terminal events.
type SwapReader interface {
	Swap(id string) (orchestrator.Swap, error)
}

// Sink subscribes to the event bus and writes behind: Notify never blocks
// the publisher, a background loop drains the buffer into the store.
// Events arriving while the buffer is full are dropped with a warning; the
// archive is monitoring data, not the authoritative record.
type Sink struct {
	store  *Store
	swaps  SwapReader
	logger *zap.Logger
	buf    chan events.Event
}

// NewSink creates a sink with the given buffer depth.
func NewSink(store *Store, swaps SwapReader, logger *zap.Logger, depth int) *Sink {
	if depth <= 0 {
		depth = 256
	}
	return &Sink{
		store:  store,
		swaps:  swaps,
		logger: logger.With(zap.String("component", "archive")),
		buf:    make(chan events.Event, depth),
	}
}

// Notify implements events.Sink.
func (s *Sink) Notify(e events.Event) {
	select {
	case s.buf <- e:
	default:
		s.logger.Warn("Archive buffer full, dropping event",
			zap.String("type", string(e.Type)),
			zap.String("swap_id", e.SwapID))
	}
}

// Run drains the buffer until ctx is cancelled.
func (s *Sink) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-s.buf:
			s.persist(ctx, e)
		}
	}
}

func (s *Sink) persist(ctx context.Context, e events.Event) {
	if err := s.store.InsertEvent(ctx, e); err != nil {
		s.logger.Error("Failed to archive event", zap.Error(err))
	}
	if !terminalEvent(e.Type) || e.SwapID == "" {
		return
	}
	swap, err := s.swaps.Swap(e.SwapID)
	if err != nil {
		s.logger.Error("Failed to load terminal swap for archiving",
			zap.String("swap_id", e.SwapID),
			zap.Error(err))
		return
	}
	if err := s.store.InsertSwap(ctx, swap); err != nil {
		s.logger.Error("Failed to archive terminal swap", zap.Error(err))
	}
}

func terminalEvent(t events.Type) bool {
	switch t {
	case events.TypeSwapCompleted, events.TypeSwapFailed, events.TypeSwapRecovered:
		return true
	}
	return false
}
