package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/omniroute/swap-middleware/pkg/app/errors"
	apphttp "github.com/omniroute/swap-middleware/pkg/app/http"
	"github.com/omniroute/swap-middleware/pkg/auth"
	"github.com/omniroute/swap-middleware/pkg/chains"
	"github.com/omniroute/swap-middleware/pkg/costmodel"
	"github.com/omniroute/swap-middleware/pkg/gastracker"
	"github.com/omniroute/swap-middleware/pkg/orchestrator"
)

// Swaps is the orchestrator surface the HTTP layer consumes.
type Swaps interface {
	Swap(id string) (orchestrator.Swap, error)
	ActiveSwaps(user common.Address) []string
	Stats() orchestrator.Stats
	HandleDestinationCompletion(ctx context.Context, cred auth.Credential, id string, amountOut decimal.Decimal) error
	Complete(ctx context.Context, cred auth.Credential, id string) error
	MarkFailed(ctx context.Context, cred auth.Credential, id, reason string) error
	EmergencyRecovery(ctx context.Context, cred auth.Credential, id string) error
	ClaimFailedSwap(ctx context.Context, cred auth.Credential, id string) error
	Pause(cred auth.Credential) error
	Unpause(cred auth.Credential) error
	SetChainEnabled(cred auth.Credential, id chains.ID, enabled bool) error
}

// Prices is the gas tracker surface the HTTP layer consumes.
type Prices interface {
	UpdatePrices(cred auth.Credential, batch []gastracker.PriceUpdate) error
	Price(chainID chains.ID) (gastracker.Record, error)
	Trend(chainID chains.ID, window int) (gastracker.TrendStats, error)
}

// Params is the cost-parameter surface the HTTP layer consumes.
type Params interface {
	Parameters() costmodel.Parameters
	UpdateParameters(cred auth.Credential, p costmodel.Parameters) error
}

// HTTP exposes the middleware over chi.
type HTTP struct {
	service *Service
	swaps   Swaps
	prices  Prices
	params  Params
	logger  *zap.Logger
}

// RegisterRoutes mounts all v1 endpoints on the given router. The router
// is expected to already carry the auth middleware.
func RegisterRoutes(r chi.Router, service *Service, swaps Swaps, prices Prices, params Params, logger *zap.Logger) {
	h := &HTTP{
		service: service,
		swaps:   swaps,
		prices:  prices,
		params:  params,
		logger:  logger,
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/quote", apphttp.HandleError(h.quote))
		r.Post("/swaps", apphttp.HandleError(h.executeSwap))
		r.Get("/swaps/{id}", apphttp.HandleError(h.getSwap))
		r.Post("/swaps/{id}/recover", apphttp.HandleError(h.recoverSwap))
		r.Post("/swaps/{id}/claim", apphttp.HandleError(h.claimSwap))
		r.Get("/users/{address}/swaps", apphttp.HandleError(h.userSwaps))
		r.Get("/chains/{id}/gas", apphttp.HandleError(h.chainGas))
		r.Get("/stats", apphttp.HandleError(h.stats))

		r.Post("/bridge/completions", apphttp.HandleError(h.bridgeCompletion))
		r.Post("/bridge/failures", apphttp.HandleError(h.bridgeFailure))

		r.Route("/admin", func(r chi.Router) {
			r.Post("/pause", apphttp.HandleError(h.pause))
			r.Post("/unpause", apphttp.HandleError(h.unpause))
			r.Post("/prices", apphttp.HandleError(h.updatePrices))
			r.Post("/parameters", apphttp.HandleError(h.updateParameters))
			r.Post("/chains/{id}/enabled", apphttp.HandleError(h.setChainEnabled))
		})
	})
}

type quoteRequest struct {
	User        string       `json:"user" validate:"required,eth_addr"`
	TokenIn     string       `json:"token_in" validate:"required,eth_addr"`
	TokenOut    string       `json:"token_out" validate:"required,eth_addr"`
	AmountIn    string       `json:"amount_in" validate:"required"`
	Deadline    time.Time    `json:"deadline,omitzero"`
	Preferences *Preferences `json:"preferences,omitempty"`
}

func (q *quoteRequest) toRequest() (Request, error) {
	amount, err := decimal.NewFromString(q.AmountIn)
	if err != nil {
		return Request{}, apperrors.ValidationError(err, "invalid amount")
	}
	return Request{
		User:        common.HexToAddress(q.User),
		TokenIn:     common.HexToAddress(q.TokenIn),
		TokenOut:    common.HexToAddress(q.TokenOut),
		AmountIn:    amount,
		Deadline:    q.Deadline,
		Preferences: q.Preferences,
	}, nil
}

func (h *HTTP) quote(w http.ResponseWriter, r *http.Request) error {
	var body quoteRequest
	if err := decodeJSON(r, &body); err != nil {
		return err
	}
	req, err := body.toRequest()
	if err != nil {
		return err
	}
	q, err := h.service.Quote(r.Context(), req)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, q)
	return nil
}

type executeResponse struct {
	Quote  Quote  `json:"quote"`
	SwapID string `json:"swap_id,omitempty"`
}

func (h *HTTP) executeSwap(w http.ResponseWriter, r *http.Request) error {
	cred, err := auth.FromContext(r.Context())
	if err != nil {
		return err
	}
	var body quoteRequest
	if err := decodeJSON(r, &body); err != nil {
		return err
	}
	req, err := body.toRequest()
	if err != nil {
		return err
	}
	q, id, err := h.service.Execute(r.Context(), cred, req)
	if err != nil {
		return err
	}
	status := http.StatusOK
	if id != "" {
		status = http.StatusCreated
	}
	apphttp.WriteJSON(w, status, executeResponse{Quote: q, SwapID: id})
	return nil
}

func (h *HTTP) getSwap(w http.ResponseWriter, r *http.Request) error {
	s, err := h.swaps.Swap(chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, s)
	return nil
}

func (h *HTTP) userSwaps(w http.ResponseWriter, r *http.Request) error {
	address := chi.URLParam(r, "address")
	if !common.IsHexAddress(address) {
		return apperrors.ValidationError(nil, "invalid user address")
	}
	ids := h.swaps.ActiveSwaps(common.HexToAddress(address))
	apphttp.WriteJSON(w, http.StatusOK, map[string][]string{"active_swaps": ids})
	return nil
}

func (h *HTTP) recoverSwap(w http.ResponseWriter, r *http.Request) error {
	cred, err := auth.FromContext(r.Context())
	if err != nil {
		return err
	}
	id := chi.URLParam(r, "id")
	if err := h.swaps.EmergencyRecovery(r.Context(), cred, id); err != nil {
		return err
	}
	return h.writeSwap(w, id)
}

func (h *HTTP) claimSwap(w http.ResponseWriter, r *http.Request) error {
	cred, err := auth.FromContext(r.Context())
	if err != nil {
		return err
	}
	id := chi.URLParam(r, "id")
	if err := h.swaps.ClaimFailedSwap(r.Context(), cred, id); err != nil {
		return err
	}
	return h.writeSwap(w, id)
}

type gasResponse struct {
	Record gastracker.Record     `json:"record"`
	Trend  gastracker.TrendStats `json:"trend"`
}

func (h *HTTP) chainGas(w http.ResponseWriter, r *http.Request) error {
	id, err := parseChainID(chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	record, err := h.prices.Price(id)
	if err != nil {
		return err
	}
	window := gastracker.HistoryDepth
	if raw := r.URL.Query().Get("window"); raw != "" {
		window, err = strconv.Atoi(raw)
		if err != nil {
			return apperrors.ValidationError(err, "invalid trend window")
		}
	}
	trend, err := h.prices.Trend(id, window)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, gasResponse{Record: record, Trend: trend})
	return nil
}

func (h *HTTP) stats(w http.ResponseWriter, r *http.Request) error {
	apphttp.WriteJSON(w, http.StatusOK, h.swaps.Stats())
	return nil
}

type bridgeCompletionRequest struct {
	SwapID    string `json:"swap_id" validate:"required"`
	Leg       string `json:"leg" validate:"required,oneof=destination return"`
	AmountOut string `json:"amount_out" validate:"required_if=Leg destination"`
}

func (h *HTTP) bridgeCompletion(w http.ResponseWriter, r *http.Request) error {
	cred, err := auth.FromContext(r.Context())
	if err != nil {
		return err
	}
	var body bridgeCompletionRequest
	if err := decodeJSON(r, &body); err != nil {
		return err
	}
	switch body.Leg {
	case "destination":
		amountOut, err := decimal.NewFromString(body.AmountOut)
		if err != nil {
			return apperrors.ValidationError(err, "invalid amount_out")
		}
		if err := h.swaps.HandleDestinationCompletion(r.Context(), cred, body.SwapID, amountOut); err != nil {
			return err
		}
	case "return":
		if err := h.swaps.Complete(r.Context(), cred, body.SwapID); err != nil {
			return err
		}
	}
	return h.writeSwap(w, body.SwapID)
}

type bridgeFailureRequest struct {
	SwapID string `json:"swap_id" validate:"required"`
	Reason string `json:"reason" validate:"required"`
}

func (h *HTTP) bridgeFailure(w http.ResponseWriter, r *http.Request) error {
	cred, err := auth.FromContext(r.Context())
	if err != nil {
		return err
	}
	var body bridgeFailureRequest
	if err := decodeJSON(r, &body); err != nil {
		return err
	}
	if err := h.swaps.MarkFailed(r.Context(), cred, body.SwapID, body.Reason); err != nil {
		return err
	}
	return h.writeSwap(w, body.SwapID)
}

func (h *HTTP) pause(w http.ResponseWriter, r *http.Request) error {
	cred, err := auth.FromContext(r.Context())
	if err != nil {
		return err
	}
	if err := h.swaps.Pause(cred); err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, map[string]bool{"paused": true})
	return nil
}

func (h *HTTP) unpause(w http.ResponseWriter, r *http.Request) error {
	cred, err := auth.FromContext(r.Context())
	if err != nil {
		return err
	}
	if err := h.swaps.Unpause(cred); err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, map[string]bool{"paused": false})
	return nil
}

type priceUpdateRequest struct {
	Updates []struct {
		ChainID uint64 `json:"chain_id" validate:"required"`
		Price   uint64 `json:"price" validate:"required"`
	} `json:"updates" validate:"required,min=1,dive"`
}

func (h *HTTP) updatePrices(w http.ResponseWriter, r *http.Request) error {
	cred, err := auth.FromContext(r.Context())
	if err != nil {
		return err
	}
	var body priceUpdateRequest
	if err := decodeJSON(r, &body); err != nil {
		return err
	}
	batch := make([]gastracker.PriceUpdate, 0, len(body.Updates))
	for _, u := range body.Updates {
		batch = append(batch, gastracker.PriceUpdate{ChainID: chains.ID(u.ChainID), Price: u.Price})
	}
	if err := h.prices.UpdatePrices(cred, batch); err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, map[string]int{"accepted": len(batch)})
	return nil
}

type parametersRequest struct {
	BaseBridgeFeeUSD    string `json:"base_bridge_fee_usd" validate:"required"`
	BridgeFeeBps        int64  `json:"bridge_fee_bps" validate:"gte=0"`
	MaxSlippageBps      int64  `json:"max_slippage_bps" validate:"gte=0"`
	MEVProtectionFeeBps int64  `json:"mev_protection_fee_bps" validate:"gte=0"`
	GasMultiplierBps    int64  `json:"gas_multiplier_bps" validate:"gt=0"`
}

func (h *HTTP) updateParameters(w http.ResponseWriter, r *http.Request) error {
	cred, err := auth.FromContext(r.Context())
	if err != nil {
		return err
	}
	var body parametersRequest
	if err := decodeJSON(r, &body); err != nil {
		return err
	}
	base, err := decimal.NewFromString(body.BaseBridgeFeeUSD)
	if err != nil {
		return apperrors.ValidationError(err, "invalid base bridge fee")
	}
	p := costmodel.Parameters{
		BaseBridgeFeeUSD:    base,
		BridgeFeeBps:        body.BridgeFeeBps,
		MaxSlippageBps:      body.MaxSlippageBps,
		MEVProtectionFeeBps: body.MEVProtectionFeeBps,
		GasMultiplierBps:    body.GasMultiplierBps,
	}
	if err := h.params.UpdateParameters(cred, p); err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, h.params.Parameters())
	return nil
}

type chainEnabledRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

func (h *HTTP) setChainEnabled(w http.ResponseWriter, r *http.Request) error {
	cred, err := auth.FromContext(r.Context())
	if err != nil {
		return err
	}
	id, err := parseChainID(chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	var body chainEnabledRequest
	if err := decodeJSON(r, &body); err != nil {
		return err
	}
	if err := h.swaps.SetChainEnabled(cred, id, *body.Enabled); err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, map[string]any{"chain_id": id, "enabled": *body.Enabled})
	return nil
}

func (h *HTTP) writeSwap(w http.ResponseWriter, id string) error {
	s, err := h.swaps.Swap(id)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, s)
	return nil
}

func parseChainID(raw string) (chains.ID, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, apperrors.ValidationError(err, fmt.Sprintf("invalid chain id %q", raw))
	}
	return chains.ID(id), nil
}

// decodeJSON reads, unmarshals and validates a request body.
func decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB limit
	if err != nil {
		return apperrors.ValidationError(err, "failed to read request")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return apperrors.ValidationError(err, "invalid JSON")
	}
	if err := validate.Struct(v); err != nil {
		return apperrors.ValidationError(err, "invalid request")
	}
	return nil
}
