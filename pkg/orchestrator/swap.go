package orchestrator

import (
	"encoding/binary"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"github.com/omniroute/swap-middleware/pkg/chains"
)

// Status is a swap's lifecycle phase.
type Status string

const (
	StatusInitiated    Status = "initiated"
	StatusBridging     Status = "bridging"
	StatusSwapping     Status = "swapping"
	StatusBridgingBack Status = "bridging_back"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusRecovered    Status = "recovered"
)

// Terminal reports whether no further transition can leave the status.
// Terminal swaps stay queryable forever; records are never deleted.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusRecovered:
		return true
	}
	return false
}

// Swap is the authoritative record of one cross-chain swap. The
// orchestrator exclusively owns it; callers only ever see copies.
type Swap struct {
	ID               string          `json:"id"`
	User             common.Address  `json:"user"`
	TokenIn          common.Address  `json:"token_in"`
	TokenOut         common.Address  `json:"token_out"`
	AmountIn         decimal.Decimal `json:"amount_in"`
	AmountOut        decimal.Decimal `json:"amount_out"`
	SourceChain      chains.ID       `json:"source_chain"`
	DestinationChain chains.ID       `json:"destination_chain"`
	InitiatedAt      time.Time       `json:"initiated_at"`
	CompletedAt      time.Time       `json:"completed_at,omitzero"`
	Deadline         time.Time       `json:"deadline"`
	Status           Status          `json:"status"`
	BridgeReference  string          `json:"bridge_reference,omitempty"`
	FailureReason    string          `json:"failure_reason,omitempty"`
}

// deriveSwapID hashes the request identity together with the initiation
// time and a process-wide sequence number, so two concurrent initiations
// with identical parameters still get distinct ids.
func deriveSwapID(user, tokenIn, tokenOut common.Address, amountIn decimal.Decimal, dest chains.ID, at time.Time, seq uint64) string {
	buf := make([]byte, 0, 3*common.AddressLength+len(amountIn.String())+24)
	buf = append(buf, user.Bytes()...)
	buf = append(buf, tokenIn.Bytes()...)
	buf = append(buf, tokenOut.Bytes()...)
	buf = append(buf, []byte(amountIn.String())...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(dest))
	buf = binary.BigEndian.AppendUint64(buf, uint64(at.UnixNano()))
	buf = binary.BigEndian.AppendUint64(buf, seq)
	return hexutil.Encode(crypto.Keccak256(buf))
}
