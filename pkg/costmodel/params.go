package costmodel

import (
	"fmt"

	"github.com/shopspring/decimal"

	apperrors "github.com/omniroute/swap-middleware/pkg/app/errors"
)

// Parameters are the tunable coefficients of the cost model. They are owned
// by the administrator and always satisfy the configured Bounds.
type Parameters struct {
	// BaseBridgeFeeUSD is the flat component of the bridge fee.
	BaseBridgeFeeUSD decimal.Decimal
	// BridgeFeeBps is the proportional bridge fee in basis points of the
	// trade's USD value.
	BridgeFeeBps int64
	// MaxSlippageBps is the worst-case slippage estimate in basis points.
	MaxSlippageBps int64
	// MEVProtectionFeeBps is charged on cross-chain routes, which execute
	// through protected relays on the destination chain.
	MEVProtectionFeeBps int64
	// GasMultiplierBps inflates gas usage estimates as a safety margin,
	// 10000 = 1.0x.
	GasMultiplierBps int64
}

// Bounds are the admissible ranges for Parameters. They come from
// deployment configuration so operators can tune them without a release.
type Bounds struct {
	MaxBaseBridgeFeeUSD decimal.Decimal
	MaxBridgeFeeBps     int64
	MaxSlippageBps      int64
	MaxMEVFeeBps        int64
	GasMultiplierMinBps int64
	GasMultiplierMaxBps int64
}

// Check returns a ValidationError when p falls outside the bounds.
func (b Bounds) Check(p Parameters) error {
	if p.BaseBridgeFeeUSD.Sign() < 0 || p.BaseBridgeFeeUSD.GreaterThan(b.MaxBaseBridgeFeeUSD) {
		return apperrors.ValidationError(nil, fmt.Sprintf("base bridge fee %s outside [0, %s]", p.BaseBridgeFeeUSD, b.MaxBaseBridgeFeeUSD))
	}
	if p.BridgeFeeBps < 0 || p.BridgeFeeBps > b.MaxBridgeFeeBps {
		return apperrors.ValidationError(nil, fmt.Sprintf("bridge fee %d bps outside [0, %d]", p.BridgeFeeBps, b.MaxBridgeFeeBps))
	}
	if p.MaxSlippageBps < 0 || p.MaxSlippageBps > b.MaxSlippageBps {
		return apperrors.ValidationError(nil, fmt.Sprintf("slippage %d bps outside [0, %d]", p.MaxSlippageBps, b.MaxSlippageBps))
	}
	if p.MEVProtectionFeeBps < 0 || p.MEVProtectionFeeBps > b.MaxMEVFeeBps {
		return apperrors.ValidationError(nil, fmt.Sprintf("mev protection fee %d bps outside [0, %d]", p.MEVProtectionFeeBps, b.MaxMEVFeeBps))
	}
	if p.GasMultiplierBps < b.GasMultiplierMinBps || p.GasMultiplierBps > b.GasMultiplierMaxBps {
		return apperrors.ValidationError(nil, fmt.Sprintf("gas multiplier %d bps outside [%d, %d]", p.GasMultiplierBps, b.GasMultiplierMinBps, b.GasMultiplierMaxBps))
	}
	return nil
}
