package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/uptrace/bun"

	"github.com/omniroute/swap-middleware/pkg/events"
	"github.com/omniroute/swap-middleware/pkg/orchestrator"
)

// ErrSwapNotArchived is returned when a swap id has no ledger entry.
var ErrSwapNotArchived = errors.New("swap not archived")

// Store is the postgres ledger.
type Store struct {
	db *bun.DB
}

// NewStore wraps a bun connection.
func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// InsertSwap archives a terminal swap. Re-archiving the same id updates the
// row, so retried terminal events stay idempotent.
func (s *Store) InsertSwap(ctx context.Context, swap orchestrator.Swap) error {
	dao := toSwapDao(swap)
	_, err := s.db.NewInsert().
		Model(dao).
		On("CONFLICT (id) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("amount_out = EXCLUDED.amount_out").
		Set("completed_at = EXCLUDED.completed_at").
		Set("failure_reason = EXCLUDED.failure_reason").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to archive swap %s: %w", swap.ID, err)
	}
	return nil
}

// InsertEvent archives one observability event.
func (s *Store) InsertEvent(ctx context.Context, e events.Event) error {
	_, err := s.db.NewInsert().
		Model(toEventDao(e)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to archive event %s: %w", e.ID, err)
	}
	return nil
}

// GetSwap loads an archived swap by id.
func (s *Store) GetSwap(ctx context.Context, id string) (orchestrator.Swap, error) {
	dao := new(SwapDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return orchestrator.Swap{}, ErrSwapNotArchived
		}
		return orchestrator.Swap{}, fmt.Errorf("failed to load archived swap: %w", err)
	}
	return toSwap(dao)
}

// ListSwapsByUser returns the user's archived swaps, newest first.
func (s *Store) ListSwapsByUser(ctx context.Context, user common.Address, limit int) ([]orchestrator.Swap, error) {
	var daos []SwapDao
	q := s.db.NewSelect().
		Model(&daos).
		Where("user_address = ?", user.Hex()).
		Order("initiated_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list archived swaps: %w", err)
	}
	swaps := make([]orchestrator.Swap, 0, len(daos))
	for i := range daos {
		swap, err := toSwap(&daos[i])
		if err != nil {
			return nil, err
		}
		swaps = append(swaps, swap)
	}
	return swaps, nil
}

// ListEvents returns the events recorded for a swap, oldest first.
func (s *Store) ListEvents(ctx context.Context, swapID string) ([]EventDao, error) {
	var daos []EventDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("swap_id = ?", swapID).
		Order("emitted_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list archived events: %w", err)
	}
	return daos, nil
}

// Models returns the bun models the archive schema consists of.
func Models() []any {
	return []any{(*SwapDao)(nil), (*EventDao)(nil)}
}
