// Package orchestrator drives cross-chain swaps through their lifecycle:
// Initiated -> Bridging -> Swapping -> BridgingBack -> Completed, with
// Failed and Recovered as alternate terminal states. It owns the
// authoritative swap table, the per-user active-swap index and the global
// statistics counters.
package orchestrator

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/omniroute/swap-middleware/internal/metrics"
	apperrors "github.com/omniroute/swap-middleware/pkg/app/errors"
	"github.com/omniroute/swap-middleware/pkg/auth"
	"github.com/omniroute/swap-middleware/pkg/bridge"
	"github.com/omniroute/swap-middleware/pkg/chains"
	"github.com/omniroute/swap-middleware/pkg/events"
)

const lockStripes = 64

// InitiateRequest describes the swap a user wants to run on another chain.
type InitiateRequest struct {
	User             common.Address
	TokenIn          common.Address
	TokenOut         common.Address
	AmountIn         decimal.Decimal
	DestinationChain chains.ID
	// Deadline bounds the whole swap; zero means no deadline.
	Deadline time.Time
}

// Stats is a snapshot of the orchestrator's running counters.
type Stats struct {
	TotalSwaps     uint64
	SucceededSwaps uint64
	FailedSwaps    uint64
	// AverageExecutionTime is accumulated completion time over succeeded
	// swaps, zero when nothing has completed yet.
	AverageExecutionTime time.Duration
}

// Orchestrator coordinates swap lifecycles. Every transition for a given
// swap id runs under that id's exclusive lock, so duplicate or late
// delivery of a transition is rejected as a StateConflict no-op.
type Orchestrator struct {
	registry *chains.Registry
	bus      *events.Bus
	logger   *zap.Logger

	home            chains.ID
	recoveryTimeout time.Duration

	bridgeMu    sync.RWMutex
	transport   bridge.Transport
	bridgeActor common.Address

	mu     sync.RWMutex
	swaps  map[string]*Swap
	active map[common.Address][]string
	paused bool

	total     uint64
	succeeded uint64
	failed    uint64
	execAccum time.Duration

	locks [lockStripes]sync.Mutex
	seq   atomic.Uint64
	now   func() time.Time
}

// New creates an orchestrator anchored at the home chain. The bridgeActor
// is the account lifecycle callbacks must authenticate as; a zero address
// accepts any bridge-role credential.
func New(
	registry *chains.Registry,
	transport bridge.Transport,
	bridgeActor common.Address,
	bus *events.Bus,
	logger *zap.Logger,
	home chains.ID,
	recoveryTimeout time.Duration,
) (*Orchestrator, error) {
	if transport == nil {
		return nil, fmt.Errorf("bridge transport is required")
	}
	if !registry.Contains(home) {
		return nil, fmt.Errorf("home chain %s is not registered", home)
	}
	if recoveryTimeout <= 0 {
		return nil, fmt.Errorf("recovery timeout must be positive")
	}
	return &Orchestrator{
		registry:        registry,
		bus:             bus,
		logger:          logger.With(zap.String("component", "orchestrator")),
		home:            home,
		recoveryTimeout: recoveryTimeout,
		transport:       transport,
		bridgeActor:     bridgeActor,
		swaps:           make(map[string]*Swap),
		active:          make(map[common.Address][]string),
		now:             time.Now,
	}, nil
}

// Initiate validates the request, dispatches the outbound bridge leg and
// records the swap as Bridging. Returns the new swap id.
func (o *Orchestrator) Initiate(ctx context.Context, cred auth.Credential, req InitiateRequest) (string, error) {
	if !cred.ActsFor(req.User) {
		return "", apperrors.UnauthorizedError(nil, "caller may not initiate swaps for this user")
	}
	if o.Paused() {
		return "", apperrors.PausedError("swap initiation is paused")
	}
	if req.User == (common.Address{}) {
		return "", apperrors.ValidationError(nil, "user address must be set")
	}
	if req.AmountIn.Sign() <= 0 {
		return "", apperrors.ValidationError(nil, "amount must be positive")
	}
	dest, err := o.registry.Get(req.DestinationChain)
	if err != nil {
		return "", err
	}
	if !dest.Enabled {
		return "", apperrors.ValidationError(nil, fmt.Sprintf("destination chain %s is disabled", dest.ID))
	}

	now := o.now()
	if !req.Deadline.IsZero() && !req.Deadline.After(now) {
		return "", apperrors.ValidationError(nil, "deadline has already passed")
	}

	id := deriveSwapID(req.User, req.TokenIn, req.TokenOut, req.AmountIn, req.DestinationChain, now, o.seq.Add(1))

	ref, err := o.dispatch(ctx, bridge.Order{
		SwapID:           id,
		SourceChain:      o.home,
		DestinationChain: req.DestinationChain,
		TokenIn:          req.TokenIn,
		TokenOut:         req.TokenOut,
		Amount:           req.AmountIn,
		Recipient:        req.User,
		Deadline:         req.Deadline,
	})
	if err != nil {
		return "", apperrors.DependencyError(err, "bridge dispatch failed")
	}

	// The pause check above is the admission decision. Once the order is
	// dispatched the commit is unconditional: a dispatched bridge order
	// must always have an owning record.
	o.mu.Lock()
	o.swaps[id] = &Swap{
		ID:               id,
		User:             req.User,
		TokenIn:          req.TokenIn,
		TokenOut:         req.TokenOut,
		AmountIn:         req.AmountIn,
		SourceChain:      o.home,
		DestinationChain: req.DestinationChain,
		InitiatedAt:      now,
		Deadline:         req.Deadline,
		Status:           StatusBridging,
		BridgeReference:  ref,
	}
	o.active[req.User] = append(o.active[req.User], id)
	o.total++
	o.mu.Unlock()

	metrics.SwapsTotal.WithLabelValues(string(StatusInitiated)).Inc()
	metrics.ActiveSwaps.Inc()
	o.bus.Publish(events.Event{
		Type:    events.TypeSwapInitiated,
		ChainID: req.DestinationChain.String(),
		SwapID:  id,
		Fields: map[string]string{
			"user":      req.User.Hex(),
			"amount_in": req.AmountIn.String(),
		},
	})
	o.logger.Info("Swap initiated",
		zap.String("swap_id", id),
		zap.String("user", req.User.Hex()),
		zap.String("destination", req.DestinationChain.String()))
	return id, nil
}

// HandleDestinationCompletion is the bridge's callback for a finished
// destination-chain execution. Valid only from Bridging: the swap passes
// through Swapping, records amountOut and moves to BridgingBack once the
// return leg is dispatched.
func (o *Orchestrator) HandleDestinationCompletion(ctx context.Context, cred auth.Credential, id string, amountOut decimal.Decimal) error {
	if err := o.authorizeBridge(cred); err != nil {
		return err
	}
	if amountOut.Sign() <= 0 {
		return apperrors.ValidationError(nil, "execution result amount must be positive")
	}

	lock := o.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	snap, err := o.snapshot(id)
	if err != nil {
		return err
	}
	if snap.Status != StatusBridging {
		return apperrors.StateConflictError(nil, fmt.Sprintf("swap %s is %s, expected %s", id, snap.Status, StatusBridging))
	}

	// Return leg: move the output token back to the user's home chain.
	if _, err := o.dispatch(ctx, bridge.Order{
		SwapID:           id,
		SourceChain:      snap.DestinationChain,
		DestinationChain: snap.SourceChain,
		TokenIn:          snap.TokenOut,
		TokenOut:         snap.TokenOut,
		Amount:           amountOut,
		Recipient:        snap.User,
		Deadline:         snap.Deadline,
	}); err != nil {
		return apperrors.DependencyError(err, "return bridge dispatch failed")
	}

	o.mu.Lock()
	s := o.swaps[id]
	s.Status = StatusBridgingBack
	s.AmountOut = amountOut
	o.mu.Unlock()

	o.logger.Info("Destination execution applied",
		zap.String("swap_id", id),
		zap.String("amount_out", amountOut.String()))
	return nil
}

// Complete settles a swap whose return leg arrived. Valid only from
// BridgingBack.
func (o *Orchestrator) Complete(ctx context.Context, cred auth.Credential, id string) error {
	if err := o.authorizeBridge(cred); err != nil {
		return err
	}

	lock := o.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	snap, err := o.snapshot(id)
	if err != nil {
		return err
	}
	if snap.Status != StatusBridgingBack {
		return apperrors.StateConflictError(nil, fmt.Sprintf("swap %s is %s, expected %s", id, snap.Status, StatusBridgingBack))
	}

	now := o.now()
	elapsed := now.Sub(snap.InitiatedAt)

	o.mu.Lock()
	s := o.swaps[id]
	s.Status = StatusCompleted
	s.CompletedAt = now
	o.succeeded++
	o.execAccum += elapsed
	o.removeActiveLocked(s.User, id)
	o.mu.Unlock()

	// Realized savings is a simplified proxy: input minus output, floored
	// at zero.
	savings := snap.AmountIn.Sub(snap.AmountOut)
	if savings.Sign() < 0 {
		savings = decimal.Zero
	}

	metrics.SwapsTotal.WithLabelValues(string(StatusCompleted)).Inc()
	metrics.SwapDuration.Observe(elapsed.Seconds())
	metrics.ActiveSwaps.Dec()
	o.bus.Publish(events.Event{
		Type:   events.TypeSwapCompleted,
		SwapID: id,
		Fields: map[string]string{
			"user":             snap.User.Hex(),
			"realized_savings": savings.String(),
			"duration":         elapsed.String(),
		},
	})
	o.logger.Info("Swap completed",
		zap.String("swap_id", id),
		zap.Duration("elapsed", elapsed))
	return nil
}

// EmergencyRecovery is the user's (or administrator's) last-resort exit for
// a stuck swap. It is gated on the recovery timeout so it cannot race an
// in-flight bridge transfer.
func (o *Orchestrator) EmergencyRecovery(ctx context.Context, cred auth.Credential, id string) error {
	lock := o.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	snap, err := o.snapshot(id)
	if err != nil {
		return err
	}
	if !cred.ActsFor(snap.User) {
		return apperrors.UnauthorizedError(nil, "only the swap's user or an administrator may recover it")
	}
	if snap.Status == StatusCompleted || snap.Status == StatusRecovered {
		return apperrors.StateConflictError(nil, fmt.Sprintf("swap %s is already %s", id, snap.Status))
	}
	if elapsed := o.now().Sub(snap.InitiatedAt); elapsed < o.recoveryTimeout {
		return apperrors.TimeoutGateError(nil, fmt.Sprintf("recovery available %s after initiation, only %s elapsed",
			o.recoveryTimeout, elapsed.Truncate(time.Second)))
	}

	wasFailed := snap.Status == StatusFailed

	o.mu.Lock()
	s := o.swaps[id]
	s.Status = StatusRecovered
	if !wasFailed {
		// A swap already marked failed was counted and de-indexed then.
		o.failed++
		o.removeActiveLocked(s.User, id)
	}
	o.mu.Unlock()

	if !wasFailed {
		metrics.ActiveSwaps.Dec()
	}
	metrics.SwapsTotal.WithLabelValues(string(StatusRecovered)).Inc()
	o.bus.Publish(events.Event{
		Type:   events.TypeSwapRecovered,
		SwapID: id,
		Fields: map[string]string{"user": snap.User.Hex(), "path": "emergency"},
	})
	o.logger.Warn("Swap recovered via emergency path", zap.String("swap_id", id))
	return nil
}

// MarkFailed is the bridge's failure-report hook. Valid from any
// non-terminal state.
func (o *Orchestrator) MarkFailed(ctx context.Context, cred auth.Credential, id, reason string) error {
	if err := o.authorizeBridge(cred); err != nil {
		return err
	}

	lock := o.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	snap, err := o.snapshot(id)
	if err != nil {
		return err
	}
	if snap.Status.Terminal() {
		return apperrors.StateConflictError(nil, fmt.Sprintf("swap %s is already %s", id, snap.Status))
	}

	o.mu.Lock()
	s := o.swaps[id]
	s.Status = StatusFailed
	s.FailureReason = reason
	o.failed++
	o.removeActiveLocked(s.User, id)
	o.mu.Unlock()

	metrics.SwapsTotal.WithLabelValues(string(StatusFailed)).Inc()
	metrics.ActiveSwaps.Dec()
	o.bus.Publish(events.Event{
		Type:   events.TypeSwapFailed,
		SwapID: id,
		Fields: map[string]string{"user": snap.User.Hex(), "reason": reason},
	})
	o.logger.Warn("Swap failed",
		zap.String("swap_id", id),
		zap.String("reason", reason))
	return nil
}

// ClaimFailedSwap lets the swap's own user acknowledge a Failed swap,
// moving it to Recovered. The failure was already counted when reported.
func (o *Orchestrator) ClaimFailedSwap(ctx context.Context, cred auth.Credential, id string) error {
	lock := o.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	snap, err := o.snapshot(id)
	if err != nil {
		return err
	}
	if cred.Role != auth.RoleUser || cred.Actor != snap.User {
		return apperrors.UnauthorizedError(nil, "only the swap's user may claim it")
	}
	if snap.Status != StatusFailed {
		return apperrors.StateConflictError(nil, fmt.Sprintf("swap %s is %s, expected %s", id, snap.Status, StatusFailed))
	}

	o.mu.Lock()
	o.swaps[id].Status = StatusRecovered
	o.mu.Unlock()

	metrics.SwapsTotal.WithLabelValues(string(StatusRecovered)).Inc()
	o.bus.Publish(events.Event{
		Type:   events.TypeSwapRecovered,
		SwapID: id,
		Fields: map[string]string{"user": snap.User.Hex(), "path": "claim"},
	})
	return nil
}

// Pause halts swap initiation. In-flight swaps keep progressing.
func (o *Orchestrator) Pause(cred auth.Credential) error {
	return o.setPaused(cred, true)
}

// Unpause resumes swap initiation.
func (o *Orchestrator) Unpause(cred auth.Credential) error {
	return o.setPaused(cred, false)
}

func (o *Orchestrator) setPaused(cred auth.Credential, paused bool) error {
	if !cred.IsAdmin() {
		return apperrors.UnauthorizedError(nil, "only an administrator may pause or unpause")
	}
	o.mu.Lock()
	changed := o.paused != paused
	o.paused = paused
	o.mu.Unlock()
	if !changed {
		return nil
	}

	typ := events.TypeUnpaused
	gauge := 0.0
	if paused {
		typ = events.TypePaused
		gauge = 1
	}
	metrics.Paused.Set(gauge)
	o.bus.Publish(events.Event{Type: typ})
	o.logger.Warn("Pause state changed", zap.Bool("paused", paused))
	return nil
}

// SetChainEnabled toggles a destination chain's eligibility.
func (o *Orchestrator) SetChainEnabled(cred auth.Credential, id chains.ID, enabled bool) error {
	if err := o.registry.SetEnabled(cred, id, enabled); err != nil {
		return err
	}
	o.bus.Publish(events.Event{
		Type:    events.TypeChainConfigChange,
		ChainID: id.String(),
		Fields:  map[string]string{"enabled": fmt.Sprintf("%t", enabled)},
	})
	return nil
}

// SetBridge swaps the bridge integration. In-flight swaps settle through
// whichever transport is current when their next leg dispatches.
func (o *Orchestrator) SetBridge(cred auth.Credential, transport bridge.Transport, actor common.Address) error {
	if !cred.IsAdmin() {
		return apperrors.UnauthorizedError(nil, "only an administrator may change the bridge integration")
	}
	if transport == nil {
		return apperrors.ValidationError(nil, "bridge transport is required")
	}
	o.bridgeMu.Lock()
	o.transport = transport
	o.bridgeActor = actor
	o.bridgeMu.Unlock()

	o.bus.Publish(events.Event{
		Type:   events.TypeConfigChanged,
		Fields: map[string]string{"setting": "bridge_integration", "actor": actor.Hex()},
	})
	return nil
}

// Swap returns a copy of the swap record.
func (o *Orchestrator) Swap(id string) (Swap, error) {
	return o.snapshot(id)
}

// ActiveSwaps returns the ids of the user's non-terminal swaps, oldest
// first.
func (o *Orchestrator) ActiveSwaps(user common.Address) []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	ids := o.active[user]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Stats returns a snapshot of the running counters.
func (o *Orchestrator) Stats() Stats {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s := Stats{
		TotalSwaps:     o.total,
		SucceededSwaps: o.succeeded,
		FailedSwaps:    o.failed,
	}
	if o.succeeded > 0 {
		s.AverageExecutionTime = o.execAccum / time.Duration(o.succeeded)
	}
	return s
}

// Paused reports whether initiation is halted.
func (o *Orchestrator) Paused() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.paused
}

// RecoveryTimeout returns the minimum age before emergency recovery opens.
func (o *Orchestrator) RecoveryTimeout() time.Duration {
	return o.recoveryTimeout
}

func (o *Orchestrator) authorizeBridge(cred auth.Credential) error {
	if cred.IsAdmin() {
		return nil
	}
	o.bridgeMu.RLock()
	actor := o.bridgeActor
	o.bridgeMu.RUnlock()
	if cred.Role == auth.RoleBridge && (actor == (common.Address{}) || cred.Actor == actor) {
		return nil
	}
	return apperrors.UnauthorizedError(nil, "only the configured bridge integration may advance swap lifecycles")
}

func (o *Orchestrator) dispatch(ctx context.Context, order bridge.Order) (string, error) {
	o.bridgeMu.RLock()
	t := o.transport
	o.bridgeMu.RUnlock()
	return t.Bridge(ctx, order)
}

func (o *Orchestrator) snapshot(id string) (Swap, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s, ok := o.swaps[id]
	if !ok {
		return Swap{}, apperrors.NotFoundError(nil, fmt.Sprintf("swap %s does not exist", id))
	}
	return *s, nil
}

// removeActiveLocked drops id from the user's active index. Idempotent;
// callers hold o.mu.
func (o *Orchestrator) removeActiveLocked(user common.Address, id string) {
	ids := o.active[user]
	for i, existing := range ids {
		if existing == id {
			o.active[user] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(o.active[user]) == 0 {
		delete(o.active, user)
	}
}

func (o *Orchestrator) lockFor(id string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(id))
	return &o.locks[h.Sum32()%lockStripes]
}
