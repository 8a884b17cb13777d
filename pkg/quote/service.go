// Package quote is the decision entry point: it turns a prospective swap
// into a recommendation, and optionally initiates the cross-chain execution
// when the recommendation holds.
package quote

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/omniroute/swap-middleware/internal/metrics"
	apperrors "github.com/omniroute/swap-middleware/pkg/app/errors"
	"github.com/omniroute/swap-middleware/pkg/auth"
	"github.com/omniroute/swap-middleware/pkg/chains"
	"github.com/omniroute/swap-middleware/pkg/costmodel"
	"github.com/omniroute/swap-middleware/pkg/orchestrator"
)

// Optimizer is the cost-model surface the service consumes.
type Optimizer interface {
	TotalCost(ctx context.Context, chainID chains.ID, tokenIn, tokenOut common.Address, amountIn decimal.Decimal, gasEstimate uint64) (costmodel.Breakdown, error)
	FindOptimalChain(ctx context.Context, q costmodel.Query) (costmodel.Recommendation, error)
	Reliable(chainID chains.ID) bool
	HomeChain() chains.ID
	Estimates() costmodel.GasEstimates
}

// Initiator starts cross-chain swaps.
type Initiator interface {
	Initiate(ctx context.Context, cred auth.Credential, req orchestrator.InitiateRequest) (string, error)
}

// Request asks whether a swap should run on another chain.
type Request struct {
	User        common.Address
	TokenIn     common.Address
	TokenOut    common.Address
	AmountIn    decimal.Decimal
	Deadline    time.Time
	Preferences *Preferences
}

// Quote is the recommendation handed back to the caller. When
// ShouldOptimize is false the caller proceeds with local execution; Reason
// says why in monitoring-friendly terms.
type Quote struct {
	OriginalChainID     chains.ID       `json:"original_chain_id"`
	OptimizedChainID    chains.ID       `json:"optimized_chain_id"`
	OriginalCostUSD     decimal.Decimal `json:"original_cost_usd"`
	OptimizedCostUSD    decimal.Decimal `json:"optimized_cost_usd"`
	SavingsUSD          decimal.Decimal `json:"savings_usd"`
	SavingsBps          int64           `json:"savings_bps"`
	EstimatedBridgeTime time.Duration   `json:"estimated_bridge_time"`
	ShouldOptimize      bool            `json:"should_optimize"`
	Reason              string          `json:"reason,omitempty"`
}

// Service evaluates quotes and drives accepted ones into the orchestrator.
type Service struct {
	model    Optimizer
	swaps    Initiator
	logger   *zap.Logger
	defaults Defaults
}

// NewService wires the decision entry point.
func NewService(model Optimizer, swaps Initiator, logger *zap.Logger, d Defaults) *Service {
	return &Service{
		model:    model,
		swaps:    swaps,
		logger:   logger.With(zap.String("component", "quote")),
		defaults: d,
	}
}

// Quote evaluates the request against the user's preferences. Stale gas
// data on the home chain is advisory: the quote degrades to "do not
// optimize" rather than failing.
func (s *Service) Quote(ctx context.Context, req Request) (Quote, error) {
	prefs, err := normalize(req.Preferences, s.defaults)
	if err != nil {
		return Quote{}, err
	}
	if req.AmountIn.Sign() <= 0 {
		return Quote{}, apperrors.ValidationError(nil, "amount must be positive")
	}

	home := s.model.HomeChain()

	if !*prefs.EnableCrossChain {
		return s.localQuote(ctx, req, home, "cross-chain optimization disabled by preferences")
	}
	if !s.model.Reliable(home) {
		return s.localQuote(ctx, req, home, "gas price data for the current chain is stale")
	}

	rec, err := s.model.FindOptimalChain(ctx, costmodel.Query{
		TokenIn:               req.TokenIn,
		TokenOut:              req.TokenOut,
		AmountIn:              req.AmountIn,
		MinSavingsBps:         prefs.MinSavingsBps,
		MinAbsoluteSavingsUSD: prefs.MinAbsoluteSavingsUSD,
		MaxBridgeTime:         prefs.MaxBridgeTime,
	})
	if err != nil {
		return Quote{}, err
	}

	q := Quote{
		OriginalChainID:     home,
		OptimizedChainID:    rec.ChainID,
		OriginalCostUSD:     rec.CurrentCostUSD,
		OptimizedCostUSD:    rec.OptimizedCostUSD,
		SavingsUSD:          rec.SavingsUSD,
		SavingsBps:          rec.SavingsBps,
		EstimatedBridgeTime: rec.EstimatedBridgeTime,
		ShouldOptimize:      rec.Switch,
	}
	if !rec.Switch {
		q.Reason = "savings below threshold"
	} else if !s.model.Reliable(rec.ChainID) {
		// The winning candidate's gas data went stale; advisory downgrade.
		q.ShouldOptimize = false
		q.OptimizedChainID = home
		q.OptimizedCostUSD = rec.CurrentCostUSD
		q.SavingsUSD = decimal.Zero
		q.SavingsBps = 0
		q.EstimatedBridgeTime = 0
		q.Reason = fmt.Sprintf("gas price data for chain %s is stale", rec.ChainID)
	}

	metrics.QuotesTotal.WithLabelValues(fmt.Sprintf("%t", q.ShouldOptimize)).Inc()
	if q.ShouldOptimize {
		savings, _ := q.SavingsUSD.Float64()
		metrics.QuoteSavingsUSD.Observe(savings)
	}
	return q, nil
}

// Execute quotes the request and, when the recommendation holds, initiates
// the cross-chain swap. The returned id is empty when local execution was
// recommended.
func (s *Service) Execute(ctx context.Context, cred auth.Credential, req Request) (Quote, string, error) {
	q, err := s.Quote(ctx, req)
	if err != nil {
		return Quote{}, "", err
	}
	if !q.ShouldOptimize {
		return q, "", nil
	}
	id, err := s.swaps.Initiate(ctx, cred, orchestrator.InitiateRequest{
		User:             req.User,
		TokenIn:          req.TokenIn,
		TokenOut:         req.TokenOut,
		AmountIn:         req.AmountIn,
		DestinationChain: q.OptimizedChainID,
		Deadline:         req.Deadline,
	})
	if err != nil {
		return Quote{}, "", err
	}
	s.logger.Info("Optimized swap initiated",
		zap.String("swap_id", id),
		zap.String("destination", q.OptimizedChainID.String()),
		zap.String("savings_usd", q.SavingsUSD.String()))
	return q, id, nil
}

func (s *Service) localQuote(ctx context.Context, req Request, home chains.ID, reason string) (Quote, error) {
	cost, err := s.model.TotalCost(ctx, home, req.TokenIn, req.TokenOut, req.AmountIn, s.model.Estimates().SameChain)
	if err != nil {
		return Quote{}, err
	}
	metrics.QuotesTotal.WithLabelValues("false").Inc()
	return Quote{
		OriginalChainID:  home,
		OptimizedChainID: home,
		OriginalCostUSD:  cost.TotalCostUSD,
		OptimizedCostUSD: cost.TotalCostUSD,
		SavingsUSD:       decimal.Zero,
		Reason:           reason,
	}, nil
}
