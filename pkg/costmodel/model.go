// Package costmodel converts gas usage, bridging and slippage into USD
// totals per chain and decides whether switching chains is worthwhile.
package costmodel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/omniroute/swap-middleware/pkg/app/errors"
	"github.com/omniroute/swap-middleware/pkg/auth"
	"github.com/omniroute/swap-middleware/pkg/chains"
	"github.com/omniroute/swap-middleware/pkg/events"
)

const bpsDenominator = 10000

var decBps = decimal.NewFromInt(bpsDenominator)

// GasPricer is the slice of the gas tracker the cost model reads.
type GasPricer interface {
	USDPrice(ctx context.Context, chainID chains.ID) (decimal.Decimal, error)
	IsStale(chainID chains.ID) bool
}

// TokenPricer resolves a token's USD value.
type TokenPricer interface {
	TokenUSD(ctx context.Context, token common.Address) (decimal.Decimal, error)
}

// GasEstimates are the gas usage figures the optimal-chain search plugs
// into the cost formula.
type GasEstimates struct {
	// SameChain is the estimate for executing the swap locally.
	SameChain uint64
	// CrossChainSource covers the bridge leg on the source chain.
	CrossChainSource uint64
	// CrossChainDest covers destination execution plus the return leg.
	CrossChainDest uint64
}

// Breakdown is a pure computed cost value; it is never persisted.
type Breakdown struct {
	GasCostUSD             decimal.Decimal
	BridgeFeeUSD           decimal.Decimal
	SlippageCostUSD        decimal.Decimal
	TotalCostUSD           decimal.Decimal
	EstimatedExecutionTime time.Duration
}

// Query drives one optimal-chain search.
type Query struct {
	TokenIn               common.Address
	TokenOut              common.Address
	AmountIn              decimal.Decimal
	MinSavingsBps         int64
	MinAbsoluteSavingsUSD decimal.Decimal
	// MaxBridgeTime filters candidates whose bridge latency exceeds it;
	// zero disables the filter.
	MaxBridgeTime time.Duration
	ExcludeChains []chains.ID
}

// Recommendation is the outcome of an optimal-chain search.
type Recommendation struct {
	ChainID             chains.ID
	CurrentCostUSD      decimal.Decimal
	OptimizedCostUSD    decimal.Decimal
	SavingsUSD          decimal.Decimal
	SavingsBps          int64
	EstimatedBridgeTime time.Duration
	// Switch is true only when both the relative and the absolute savings
	// thresholds pass.
	Switch bool
}

// Model prices swap execution across chains. All read operations are pure
// given the current oracle and tracker state; only UpdateParameters mutates.
type Model struct {
	registry *chains.Registry
	gas      GasPricer
	tokens   TokenPricer
	bus      *events.Bus
	logger   *zap.Logger

	home      chains.ID
	estimates GasEstimates

	mu     sync.RWMutex
	params Parameters
	bounds Bounds
}

// New creates a cost model anchored at the home chain.
func New(
	registry *chains.Registry,
	gas GasPricer,
	tokens TokenPricer,
	bus *events.Bus,
	logger *zap.Logger,
	home chains.ID,
	estimates GasEstimates,
	params Parameters,
	bounds Bounds,
) (*Model, error) {
	if !registry.Contains(home) {
		return nil, fmt.Errorf("home chain %s is not registered", home)
	}
	if err := bounds.Check(params); err != nil {
		return nil, fmt.Errorf("initial cost parameters out of bounds: %w", err)
	}
	if estimates.SameChain == 0 || estimates.CrossChainSource == 0 || estimates.CrossChainDest == 0 {
		return nil, fmt.Errorf("gas estimates must be positive")
	}
	return &Model{
		registry:  registry,
		gas:       gas,
		tokens:    tokens,
		bus:       bus,
		logger:    logger.With(zap.String("component", "costmodel")),
		home:      home,
		estimates: estimates,
		params:    params,
		bounds:    bounds,
	}, nil
}

// Parameters returns the current coefficient set.
func (m *Model) Parameters() Parameters {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.params
}

// UpdateParameters replaces the coefficient set. Administrator only;
// out-of-bound values are rejected without partial application.
func (m *Model) UpdateParameters(cred auth.Credential, p Parameters) error {
	if !cred.IsAdmin() {
		return apperrors.UnauthorizedError(nil, "cost parameters require the administrator credential")
	}
	m.mu.Lock()
	if err := m.bounds.Check(p); err != nil {
		m.mu.Unlock()
		return err
	}
	m.params = p
	m.mu.Unlock()

	m.bus.Publish(events.Event{
		Type: events.TypeConfigChanged,
		Fields: map[string]string{
			"base_bridge_fee_usd":    p.BaseBridgeFeeUSD.String(),
			"bridge_fee_bps":         fmt.Sprintf("%d", p.BridgeFeeBps),
			"max_slippage_bps":       fmt.Sprintf("%d", p.MaxSlippageBps),
			"mev_protection_fee_bps": fmt.Sprintf("%d", p.MEVProtectionFeeBps),
			"gas_multiplier_bps":     fmt.Sprintf("%d", p.GasMultiplierBps),
		},
	})
	return nil
}

// TotalCost prices executing a tokenIn->tokenOut swap on chainID. Read-only
// and deterministic given its inputs and the current oracle state. Fees are
// charged against the input side; tokenOut is part of the route identity.
func (m *Model) TotalCost(ctx context.Context, chainID chains.ID, tokenIn, tokenOut common.Address, amountIn decimal.Decimal, gasEstimate uint64) (Breakdown, error) {
	if !m.registry.Contains(chainID) {
		return Breakdown{}, apperrors.ValidationError(nil, fmt.Sprintf("chain %s is not registered", chainID))
	}
	if amountIn.Sign() <= 0 {
		return Breakdown{}, apperrors.ValidationError(nil, "amount must be positive")
	}
	if tokenIn == tokenOut {
		return Breakdown{}, apperrors.ValidationError(nil, "input and output tokens must differ")
	}

	params := m.Parameters()

	usdPerGas, err := m.gas.USDPrice(ctx, chainID)
	if err != nil {
		return Breakdown{}, err
	}
	amountUSD, err := m.usdValue(ctx, tokenIn, amountIn)
	if err != nil {
		return Breakdown{}, err
	}

	inflatedGas := decimal.NewFromUint64(gasEstimate).
		Mul(decimal.NewFromInt(params.GasMultiplierBps)).
		Div(decBps)
	breakdown := Breakdown{GasCostUSD: inflatedGas.Mul(usdPerGas)}

	slippageBps := params.MaxSlippageBps
	if chainID != m.home {
		breakdown.BridgeFeeUSD = params.BaseBridgeFeeUSD.Add(
			amountUSD.Mul(decimal.NewFromInt(params.BridgeFeeBps)).Div(decBps))
		bridgeTime, err := m.registry.BridgeTime(m.home, chainID)
		if err != nil {
			return Breakdown{}, err
		}
		breakdown.EstimatedExecutionTime = bridgeTime
		// Cross-chain routes execute through MEV-protected relays.
		slippageBps += params.MEVProtectionFeeBps
	}

	breakdown.SlippageCostUSD = amountUSD.Mul(decimal.NewFromInt(slippageBps)).Div(decBps)
	breakdown.TotalCostUSD = breakdown.GasCostUSD.
		Add(breakdown.BridgeFeeUSD).
		Add(breakdown.SlippageCostUSD)
	return breakdown, nil
}

// FindOptimalChain compares executing locally against every other
// registered, enabled chain and recommends a switch only when both savings
// thresholds pass. Ties on cost go to the earliest chain in registry order.
func (m *Model) FindOptimalChain(ctx context.Context, q Query) (Recommendation, error) {
	if q.AmountIn.Sign() <= 0 {
		return Recommendation{}, apperrors.ValidationError(nil, "amount must be positive")
	}

	current, err := m.TotalCost(ctx, m.home, q.TokenIn, q.TokenOut, q.AmountIn, m.estimates.SameChain)
	if err != nil {
		return Recommendation{}, err
	}

	excluded := make(map[chains.ID]bool, len(q.ExcludeChains))
	for _, id := range q.ExcludeChains {
		excluded[id] = true
	}
	crossGas := m.estimates.CrossChainSource + m.estimates.CrossChainDest

	var (
		best      Breakdown
		bestChain chains.ID
		found     bool
	)
	for _, c := range m.registry.All() {
		if c.ID == m.home || excluded[c.ID] || !c.Enabled {
			continue
		}
		candidate, err := m.TotalCost(ctx, c.ID, q.TokenIn, q.TokenOut, q.AmountIn, crossGas)
		if err != nil {
			// A chain we cannot price is not a usable candidate.
			m.logger.Debug("Skipping unpriceable candidate",
				zap.String("chain", c.ID.String()),
				zap.Error(err))
			continue
		}
		if q.MaxBridgeTime > 0 && candidate.EstimatedExecutionTime > q.MaxBridgeTime {
			continue
		}
		if !found || candidate.TotalCostUSD.LessThan(best.TotalCostUSD) {
			best = candidate
			bestChain = c.ID
			found = true
		}
	}

	rec := Recommendation{
		ChainID:          m.home,
		CurrentCostUSD:   current.TotalCostUSD,
		OptimizedCostUSD: current.TotalCostUSD,
	}
	if !found {
		return rec, nil
	}

	savings := current.TotalCostUSD.Sub(best.TotalCostUSD)
	if savings.Sign() < 0 {
		savings = decimal.Zero
	}

	if !MeetsThreshold(current.TotalCostUSD, best.TotalCostUSD, q.MinSavingsBps, q.MinAbsoluteSavingsUSD) {
		// A single-sided improvement is never sufficient.
		return rec, nil
	}

	rec.ChainID = bestChain
	rec.OptimizedCostUSD = best.TotalCostUSD
	rec.SavingsUSD = savings
	rec.SavingsBps = SavingsPercent(current.TotalCostUSD, best.TotalCostUSD)
	rec.EstimatedBridgeTime = best.EstimatedExecutionTime
	rec.Switch = true
	return rec, nil
}

// SavingsPercent returns (original-optimized)*10000/original in basis
// points with floor division, or 0 when optimized >= original.
func SavingsPercent(original, optimized decimal.Decimal) int64 {
	if original.Sign() <= 0 || optimized.GreaterThanOrEqual(original) {
		return 0
	}
	return original.Sub(optimized).Mul(decBps).Div(original).Floor().IntPart()
}

// MeetsThreshold applies the dual savings test: the relative and the
// absolute threshold must BOTH pass, never either alone.
func MeetsThreshold(original, optimized decimal.Decimal, minSavingsBps int64, minAbsoluteUSD decimal.Decimal) bool {
	savings := original.Sub(optimized)
	if savings.Sign() <= 0 {
		return false
	}
	if SavingsPercent(original, optimized) < minSavingsBps {
		return false
	}
	return savings.GreaterThanOrEqual(minAbsoluteUSD)
}

// Reliable reports whether a chain's quote can be trusted: the chain is
// registered and its gas price is not stale. Callers must treat an
// unreliable chain's quote as "do not optimize", not as a fault.
func (m *Model) Reliable(chainID chains.ID) bool {
	return m.registry.Contains(chainID) && !m.gas.IsStale(chainID)
}

// HomeChain returns the chain the model prices against.
func (m *Model) HomeChain() chains.ID { return m.home }

// Estimates returns the configured gas usage figures.
func (m *Model) Estimates() GasEstimates { return m.estimates }

func (m *Model) usdValue(ctx context.Context, token common.Address, amount decimal.Decimal) (decimal.Decimal, error) {
	price, err := m.tokens.TokenUSD(ctx, token)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return amount.Mul(price), nil
}
