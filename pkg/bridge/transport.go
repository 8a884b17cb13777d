// Package bridge abstracts the external value-transfer mechanism. The
// transport is asynchronous: Bridge only dispatches the transfer, and the
// bridge operator reports completion or failure back through the
// orchestrator's lifecycle calls.
package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/omniroute/swap-middleware/pkg/chains"
)

// Order describes one bridge leg.
type Order struct {
	SwapID           string
	SourceChain      chains.ID
	DestinationChain chains.ID
	TokenIn          common.Address
	TokenOut         common.Address
	Amount           decimal.Decimal
	Recipient        common.Address
	Deadline         time.Time
	// Payload carries opaque auxiliary data for the bridge operator.
	Payload []byte
}

// Transport dispatches a bridge leg and returns the operator's reference
// for it. A nil error means dispatched, not settled.
type Transport interface {
	Bridge(ctx context.Context, order Order) (string, error)
}

// Recorder is an in-memory Transport for tests and local runs. It records
// every order and hands out deterministic references. Failures can be
// scripted per call or set persistently.
type Recorder struct {
	mu       sync.Mutex
	orders   []Order
	seq      uint64
	scripted []error
	err      error
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Bridge records the order and returns a sequential reference.
func (r *Recorder) Bridge(_ context.Context, order Order) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.scripted) > 0 {
		err := r.scripted[0]
		r.scripted = r.scripted[1:]
		return "", err
	}
	if r.err != nil {
		return "", r.err
	}
	r.seq++
	r.orders = append(r.orders, order)
	return fmt.Sprintf("bridge-ref-%08d", r.seq), nil
}

// FailNext queues an error consumed by the next Bridge call.
func (r *Recorder) FailNext(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scripted = append(r.scripted, err)
}

// SetError makes every subsequent non-scripted Bridge call fail with err.
// Pass nil to restore normal operation.
func (r *Recorder) SetError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Orders returns a copy of every recorded order, oldest first.
func (r *Recorder) Orders() []Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Order, len(r.orders))
	copy(out, r.orders)
	return out
}

// LastOrder returns the most recently recorded order.
func (r *Recorder) LastOrder() (Order, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.orders) == 0 {
		return Order{}, false
	}
	return r.orders[len(r.orders)-1], true
}
