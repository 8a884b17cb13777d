// Package oracle supplies USD price data with explicit staleness bounds.
// Every read carries the upstream timestamp; callers never consume a price
// older than the source's declared heartbeat.
package oracle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	apperrors "github.com/omniroute/swap-middleware/pkg/app/errors"
	"github.com/omniroute/swap-middleware/pkg/chains"
)

// PriceSource supplies a USD rate together with the time the upstream
// oracle last updated it. The caller enforces now - updatedAt <= Heartbeat.
type PriceSource interface {
	Latest(ctx context.Context) (price decimal.Decimal, updatedAt time.Time, err error)
	Heartbeat() time.Duration
}

// Static is a fixed-price source. It backs tests and config-pinned feeds
// (stablecoins quoted at par).
type Static struct {
	mu        sync.RWMutex
	price     decimal.Decimal
	updatedAt time.Time
	heartbeat time.Duration
}

// NewStatic creates a static source whose answer is always price, stamped
// with the current time at construction.
func NewStatic(price decimal.Decimal, heartbeat time.Duration) *Static {
	return &Static{price: price, updatedAt: time.Now(), heartbeat: heartbeat}
}

// Set replaces the price and timestamp.
func (s *Static) Set(price decimal.Decimal, updatedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.price = price
	s.updatedAt = updatedAt
}

func (s *Static) Latest(_ context.Context) (decimal.Decimal, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.price, s.updatedAt, nil
}

func (s *Static) Heartbeat() time.Duration { return s.heartbeat }

// Router resolves the price source for a chain's native asset or for an
// individual token, enforcing each source's heartbeat.
type Router struct {
	mu     sync.RWMutex
	native map[chains.ID]PriceSource
	tokens map[common.Address]PriceSource
	now    func() time.Time
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{
		native: make(map[chains.ID]PriceSource),
		tokens: make(map[common.Address]PriceSource),
		now:    time.Now,
	}
}

// SetNative registers the native-asset/USD source for a chain.
func (r *Router) SetNative(chain chains.ID, src PriceSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.native[chain] = src
}

// SetToken registers the token/USD source for a token address.
func (r *Router) SetToken(token common.Address, src PriceSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token] = src
}

// NativeUSD returns the USD price of a chain's native asset.
func (r *Router) NativeUSD(ctx context.Context, chain chains.ID) (decimal.Decimal, error) {
	r.mu.RLock()
	src, ok := r.native[chain]
	r.mu.RUnlock()
	if !ok {
		return decimal.Decimal{}, apperrors.NotFoundError(nil, fmt.Sprintf("no native price source for chain %s", chain))
	}
	return r.fresh(ctx, src, "native asset of chain "+chain.String())
}

// TokenUSD returns the USD price of a token.
func (r *Router) TokenUSD(ctx context.Context, token common.Address) (decimal.Decimal, error) {
	r.mu.RLock()
	src, ok := r.tokens[token]
	r.mu.RUnlock()
	if !ok {
		return decimal.Decimal{}, apperrors.NotFoundError(nil, fmt.Sprintf("no price source for token %s", token.Hex()))
	}
	return r.fresh(ctx, src, "token "+token.Hex())
}

// fresh reads a source and rejects answers older than the heartbeat.
func (r *Router) fresh(ctx context.Context, src PriceSource, what string) (decimal.Decimal, error) {
	price, updatedAt, err := src.Latest(ctx)
	if err != nil {
		return decimal.Decimal{}, apperrors.DependencyError(err, "price source read failed for "+what)
	}
	if price.Sign() <= 0 {
		return decimal.Decimal{}, apperrors.DependencyError(nil, "price source returned a non-positive price for "+what)
	}
	if age := r.now().Sub(updatedAt); age > src.Heartbeat() {
		return decimal.Decimal{}, apperrors.StalenessError(nil,
			fmt.Sprintf("price for %s is %s old, heartbeat is %s", what, age.Round(time.Second), src.Heartbeat()))
	}
	return price, nil
}
