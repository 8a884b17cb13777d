// Package archive persists terminal swaps and observability events to
// postgres for external monitoring. The orchestrator's in-memory tables
// stay authoritative; the archive is a write-behind ledger.
package archive

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/omniroute/swap-middleware/pkg/chains"
	"github.com/omniroute/swap-middleware/pkg/events"
	"github.com/omniroute/swap-middleware/pkg/orchestrator"
)

// SwapDao maps directly to the 'archived_swaps' table in PostgreSQL.
type SwapDao struct {
	bun.BaseModel    `bun:"table:archived_swaps,alias:s"`
	ID               string     `bun:"id,pk,type:varchar(66)"`
	UserAddress      string     `bun:"user_address,notnull,type:varchar(42)"`
	TokenIn          string     `bun:"token_in,notnull,type:varchar(42)"`
	TokenOut         string     `bun:"token_out,notnull,type:varchar(42)"`
	AmountIn         string     `bun:"amount_in,notnull,type:numeric(38,18)"`
	AmountOut        *string    `bun:"amount_out,type:numeric(38,18)"`
	SourceChain      uint64     `bun:"source_chain,notnull"`
	DestinationChain uint64     `bun:"destination_chain,notnull"`
	Status           string     `bun:"status,notnull,type:varchar(20)"`
	BridgeReference  *string    `bun:"bridge_reference,type:varchar(128)"`
	FailureReason    *string    `bun:"failure_reason,type:text"`
	InitiatedAt      time.Time  `bun:"initiated_at,notnull"`
	CompletedAt      *time.Time `bun:"completed_at"`
	ArchivedAt       time.Time  `bun:"archived_at,nullzero,default:current_timestamp"`
}

// EventDao maps directly to the 'events' table in PostgreSQL.
type EventDao struct {
	bun.BaseModel `bun:"table:events,alias:e"`
	ID            string            `bun:"id,pk,type:uuid"`
	Type          string            `bun:"type,notnull,type:varchar(40)"`
	ChainID       *string           `bun:"chain_id,type:varchar(32)"`
	SwapID        *string           `bun:"swap_id,type:varchar(66)"`
	Fields        map[string]string `bun:"fields,type:jsonb"`
	EmittedAt     time.Time         `bun:"emitted_at,notnull"`
}

func toSwapDao(s orchestrator.Swap) *SwapDao {
	dao := &SwapDao{
		ID:               s.ID,
		UserAddress:      s.User.Hex(),
		TokenIn:          s.TokenIn.Hex(),
		TokenOut:         s.TokenOut.Hex(),
		AmountIn:         s.AmountIn.String(),
		SourceChain:      uint64(s.SourceChain),
		DestinationChain: uint64(s.DestinationChain),
		Status:           string(s.Status),
		InitiatedAt:      s.InitiatedAt,
	}
	if !s.AmountOut.IsZero() {
		out := s.AmountOut.String()
		dao.AmountOut = &out
	}
	if s.BridgeReference != "" {
		dao.BridgeReference = &s.BridgeReference
	}
	if s.FailureReason != "" {
		dao.FailureReason = &s.FailureReason
	}
	if !s.CompletedAt.IsZero() {
		completed := s.CompletedAt
		dao.CompletedAt = &completed
	}
	return dao
}

func toSwap(dao *SwapDao) (orchestrator.Swap, error) {
	amountIn, err := decimal.NewFromString(dao.AmountIn)
	if err != nil {
		return orchestrator.Swap{}, err
	}
	s := orchestrator.Swap{
		ID:               dao.ID,
		User:             common.HexToAddress(dao.UserAddress),
		TokenIn:          common.HexToAddress(dao.TokenIn),
		TokenOut:         common.HexToAddress(dao.TokenOut),
		AmountIn:         amountIn,
		SourceChain:      chains.ID(dao.SourceChain),
		DestinationChain: chains.ID(dao.DestinationChain),
		InitiatedAt:      dao.InitiatedAt,
		Status:           orchestrator.Status(dao.Status),
	}
	if dao.AmountOut != nil {
		if s.AmountOut, err = decimal.NewFromString(*dao.AmountOut); err != nil {
			return orchestrator.Swap{}, err
		}
	}
	if dao.BridgeReference != nil {
		s.BridgeReference = *dao.BridgeReference
	}
	if dao.FailureReason != nil {
		s.FailureReason = *dao.FailureReason
	}
	if dao.CompletedAt != nil {
		s.CompletedAt = *dao.CompletedAt
	}
	return s, nil
}

func toEventDao(e events.Event) *EventDao {
	dao := &EventDao{
		ID:        e.ID.String(),
		Type:      string(e.Type),
		Fields:    e.Fields,
		EmittedAt: e.At,
	}
	if e.ChainID != "" {
		chain := e.ChainID
		dao.ChainID = &chain
	}
	if e.SwapID != "" {
		swap := e.SwapID
		dao.SwapID = &swap
	}
	return dao
}
