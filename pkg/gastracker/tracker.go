// Package gastracker maintains the authoritative gas price table per chain
// together with a bounded history used for trend analytics.
package gastracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/omniroute/swap-middleware/internal/metrics"
	apperrors "github.com/omniroute/swap-middleware/pkg/app/errors"
	"github.com/omniroute/swap-middleware/pkg/auth"
	"github.com/omniroute/swap-middleware/pkg/chains"
	"github.com/omniroute/swap-middleware/pkg/events"
	"github.com/omniroute/swap-middleware/pkg/oracle"
)

// PriceUpdate is one entry of a keeper batch: the chain and its new gas
// price in native gas units.
type PriceUpdate struct {
	ChainID chains.ID
	Price   uint64
}

// Record is the authoritative gas price entry for a chain. Once written it
// persists until overwritten; UpdatedAt is monotonically non-decreasing.
type Record struct {
	ChainID   chains.ID
	Price     uint64
	UpdatedAt time.Time
}

// Options configures a Tracker.
type Options struct {
	// StalenessThreshold is how old a record may be before IsStale reports
	// it unusable.
	StalenessThreshold time.Duration
	// MaxGasPrice is a sanity bound rejecting obviously malformed input.
	MaxGasPrice uint64
}

// Tracker owns the per-chain gas price table and history. The keeper role
// (or the administrator) is the single writer; all reads are concurrent.
type Tracker struct {
	registry *chains.Registry
	oracle   *oracle.Router
	bus      *events.Bus
	logger   *zap.Logger

	mu        sync.RWMutex
	records   map[chains.ID]Record
	histories map[chains.ID]*ring
	staleness time.Duration

	maxGasPrice uint64
	now         func() time.Time
}

// New creates a tracker over the given registry and oracle router.
func New(registry *chains.Registry, router *oracle.Router, bus *events.Bus, logger *zap.Logger, opts Options) (*Tracker, error) {
	if opts.StalenessThreshold <= 0 {
		return nil, fmt.Errorf("staleness threshold must be positive")
	}
	if opts.MaxGasPrice == 0 {
		return nil, fmt.Errorf("max gas price bound must be positive")
	}
	return &Tracker{
		registry:    registry,
		oracle:      router,
		bus:         bus,
		logger:      logger.With(zap.String("component", "gastracker")),
		records:     make(map[chains.ID]Record),
		histories:   make(map[chains.ID]*ring),
		staleness:   opts.StalenessThreshold,
		maxGasPrice: opts.MaxGasPrice,
		now:         time.Now,
	}, nil
}

// UpdatePrices applies a keeper batch. The whole batch is rejected, with no
// partial mutation, if it is empty, names an unregistered chain, or carries
// a price outside (0, MaxGasPrice].
func (t *Tracker) UpdatePrices(cred auth.Credential, batch []PriceUpdate) error {
	if !cred.IsKeeper() {
		return apperrors.UnauthorizedError(nil, "price updates require the keeper or administrator credential")
	}
	if len(batch) == 0 {
		return apperrors.ValidationError(nil, "empty price batch")
	}
	for _, u := range batch {
		if !t.registry.Contains(u.ChainID) {
			return apperrors.ValidationError(nil, fmt.Sprintf("chain %s is not registered", u.ChainID))
		}
		if u.Price == 0 {
			return apperrors.ValidationError(nil, fmt.Sprintf("chain %s: gas price must be positive", u.ChainID))
		}
		if u.Price > t.maxGasPrice {
			return apperrors.ValidationError(nil, fmt.Sprintf("chain %s: gas price %d exceeds the sanity bound %d", u.ChainID, u.Price, t.maxGasPrice))
		}
	}

	updatedAt := t.now()

	t.mu.Lock()
	for _, u := range batch {
		t.records[u.ChainID] = Record{ChainID: u.ChainID, Price: u.Price, UpdatedAt: updatedAt}
		h, ok := t.histories[u.ChainID]
		if !ok {
			h = &ring{}
			t.histories[u.ChainID] = h
		}
		h.push(u.Price)
	}
	t.mu.Unlock()

	for _, u := range batch {
		metrics.GasPrice.WithLabelValues(u.ChainID.String()).Set(float64(u.Price))
		metrics.PriceUpdatesTotal.WithLabelValues(u.ChainID.String()).Inc()
		t.bus.Publish(events.Event{
			Type:    events.TypePriceUpdated,
			At:      updatedAt,
			ChainID: u.ChainID.String(),
			Fields:  map[string]string{"price": fmt.Sprintf("%d", u.Price)},
		})
	}

	t.logger.Debug("Applied gas price batch",
		zap.Int("chains", len(batch)),
		zap.Time("updated_at", updatedAt))
	return nil
}

// Price returns the current gas price record for a chain. Fails with a
// not-found error when no update has been received yet.
func (t *Tracker) Price(chainID chains.ID) (Record, error) {
	if !t.registry.Contains(chainID) {
		return Record{}, apperrors.ValidationError(nil, fmt.Sprintf("chain %s is not registered", chainID))
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[chainID]
	if !ok {
		return Record{}, apperrors.NotFoundError(nil, fmt.Sprintf("no gas price recorded for chain %s", chainID))
	}
	return rec, nil
}

// USDPrice converts the chain's gas price to USD per gas unit using the
// native-asset oracle. Fails hard when the oracle answer is stale.
func (t *Tracker) USDPrice(ctx context.Context, chainID chains.ID) (decimal.Decimal, error) {
	rec, err := t.Price(chainID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	chain, err := t.registry.Get(chainID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	nativeUSD, err := t.oracle.NativeUSD(ctx, chainID)
	if err != nil {
		return decimal.Decimal{}, err
	}

	// price is in the smallest native unit per gas; rescale by the chain's
	// native decimals to express USD per gas unit.
	unit := decimal.New(1, int32(chain.NativeDecimals))
	return decimal.NewFromUint64(rec.Price).Mul(nativeUSD).Div(unit), nil
}

// Trend computes statistics over up to window recent samples. The window is
// clamped to the stored history length; an empty history yields zero stats.
func (t *Tracker) Trend(chainID chains.ID, window int) (TrendStats, error) {
	if !t.registry.Contains(chainID) {
		return TrendStats{}, apperrors.ValidationError(nil, fmt.Sprintf("chain %s is not registered", chainID))
	}
	if window <= 0 {
		return TrendStats{}, apperrors.ValidationError(nil, "trend window must be positive")
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.histories[chainID]
	if !ok {
		return TrendStats{}, nil
	}
	return computeTrend(h.last(window)), nil
}

// IsStale reports whether the chain has no record yet or its record is
// older than the staleness threshold.
func (t *Tracker) IsStale(chainID chains.ID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[chainID]
	if !ok {
		return true
	}
	return t.now().Sub(rec.UpdatedAt) > t.staleness
}

// StalenessThreshold returns the current threshold.
func (t *Tracker) StalenessThreshold() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.staleness
}

// SetStalenessThreshold updates the threshold. Administrator only.
func (t *Tracker) SetStalenessThreshold(cred auth.Credential, d time.Duration) error {
	if !cred.IsAdmin() {
		return apperrors.UnauthorizedError(nil, "staleness threshold requires the administrator credential")
	}
	if d <= 0 {
		return apperrors.ValidationError(nil, "staleness threshold must be positive")
	}
	t.mu.Lock()
	t.staleness = d
	t.mu.Unlock()

	t.bus.Publish(events.Event{
		Type:   events.TypeConfigChanged,
		Fields: map[string]string{"staleness_threshold": d.String()},
	})
	return nil
}
