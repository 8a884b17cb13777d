package quote

import (
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	apperrors "github.com/omniroute/swap-middleware/pkg/app/errors"
)

// Preferences tunes the savings decision per user. Absent fields fall back
// to the struct defaults, which deployments may override through the swap
// configuration block.
type Preferences struct {
	MinSavingsBps         int64           `json:"min_savings_bps" default:"500" validate:"gte=0,lte=10000"`
	MinAbsoluteSavingsUSD decimal.Decimal `json:"min_absolute_savings_usd"`
	MaxBridgeTime         time.Duration   `json:"max_bridge_time" default:"30m" validate:"gte=0"`
	EnableCrossChain      *bool           `json:"enable_cross_chain" default:"true"`
	EnableUSDDisplay      *bool           `json:"enable_usd_display" default:"true"`
}

// Defaults is the deployment-level fallback applied before the static
// struct defaults.
type Defaults struct {
	MinSavingsBps         int64
	MinAbsoluteSavingsUSD decimal.Decimal
	MaxBridgeTime         time.Duration
	EnableCrossChain      bool
}

var validate = validator.New()

// normalize fills unset preference fields from the deployment defaults,
// then from the struct defaults, and validates the result. A nil p yields
// pure defaults.
func normalize(p *Preferences, d Defaults) (Preferences, error) {
	var out Preferences
	if p != nil {
		out = *p
	}
	if out.MinSavingsBps == 0 && d.MinSavingsBps > 0 {
		out.MinSavingsBps = d.MinSavingsBps
	}
	if out.MinAbsoluteSavingsUSD.IsZero() {
		out.MinAbsoluteSavingsUSD = d.MinAbsoluteSavingsUSD
	}
	if out.MaxBridgeTime == 0 && d.MaxBridgeTime > 0 {
		out.MaxBridgeTime = d.MaxBridgeTime
	}
	if out.EnableCrossChain == nil {
		enabled := d.EnableCrossChain
		out.EnableCrossChain = &enabled
	}
	if err := defaults.Set(&out); err != nil {
		return Preferences{}, apperrors.GeneralError(err)
	}
	if err := validate.Struct(&out); err != nil {
		return Preferences{}, apperrors.ValidationError(err, "invalid preferences")
	}
	return out, nil
}
