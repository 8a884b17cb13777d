package quote

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/omniroute/swap-middleware/pkg/app/errors"
	"github.com/omniroute/swap-middleware/pkg/auth"
	"github.com/omniroute/swap-middleware/pkg/bridge"
	"github.com/omniroute/swap-middleware/pkg/chains"
	"github.com/omniroute/swap-middleware/pkg/costmodel"
	"github.com/omniroute/swap-middleware/pkg/events"
	"github.com/omniroute/swap-middleware/pkg/gastracker"
	"github.com/omniroute/swap-middleware/pkg/oracle"
	"github.com/omniroute/swap-middleware/pkg/orchestrator"
)

const (
	chainEthereum = chains.ID(1)
	chainArbitrum = chains.ID(42161)
)

var (
	userAddr   = common.HexToAddress("0x00000000000000000000000000000000000000Aa")
	keeperAddr = common.HexToAddress("0x00000000000000000000000000000000000000Ba")
	bridgeAddr = common.HexToAddress("0x00000000000000000000000000000000000000Bb")
	tokenUSDC  = common.HexToAddress("0x00000000000000000000000000000000000000C1")
	tokenWETH  = common.HexToAddress("0x00000000000000000000000000000000000000C2")
)

// stack is a fully wired in-memory middleware: static oracles, a real
// tracker, cost model and orchestrator, and a recorder bridge.
type stack struct {
	service *Service
	tracker *gastracker.Tracker
	model   *costmodel.Model
	orch    *orchestrator.Orchestrator
	rec     *bridge.Recorder
}

func newStack(t *testing.T) *stack {
	t.Helper()
	logger := zap.NewNop()
	bus := events.NewBus()

	reg, err := chains.NewRegistry([]chains.Chain{
		{ID: chainEthereum, Name: "ethereum", NativeSymbol: "ETH", NativeDecimals: 18, Enabled: true,
			BridgeTimes: map[chains.ID]time.Duration{chainArbitrum: 10 * time.Minute}},
		{ID: chainArbitrum, Name: "arbitrum", NativeSymbol: "ETH", NativeDecimals: 18, Enabled: true,
			BridgeTimes: map[chains.ID]time.Duration{chainEthereum: 15 * time.Minute}},
	})
	require.NoError(t, err)

	router := oracle.NewRouter()
	eth := oracle.NewStatic(decimal.NewFromInt(2000), time.Hour)
	router.SetNative(chainEthereum, eth)
	router.SetNative(chainArbitrum, eth)
	router.SetToken(tokenUSDC, oracle.NewStatic(decimal.NewFromInt(1), time.Hour))
	router.SetToken(tokenWETH, oracle.NewStatic(decimal.NewFromInt(2000), time.Hour))

	tracker, err := gastracker.New(reg, router, bus, logger, gastracker.Options{
		StalenessThreshold: 5 * time.Minute,
		MaxGasPrice:        10_000_000_000_000,
	})
	require.NoError(t, err)

	// 50 gwei at $2000 is 0.0001 USD per gas unit; 1 gwei is 0.000002.
	require.NoError(t, tracker.UpdatePrices(auth.Keeper(keeperAddr), []gastracker.PriceUpdate{
		{ChainID: chainEthereum, Price: 50_000_000_000},
		{ChainID: chainArbitrum, Price: 1_000_000_000},
	}))

	model, err := costmodel.New(reg, tracker, router, bus, logger, chainEthereum,
		costmodel.GasEstimates{SameChain: 100_000, CrossChainSource: 100_000, CrossChainDest: 100_000},
		costmodel.Parameters{
			BaseBridgeFeeUSD:    decimal.RequireFromString("2.00"),
			BridgeFeeBps:        30,
			MaxSlippageBps:      50,
			MEVProtectionFeeBps: 10,
			GasMultiplierBps:    10000,
		},
		costmodel.Bounds{
			MaxBaseBridgeFeeUSD: decimal.NewFromInt(100),
			MaxBridgeFeeBps:     1000,
			MaxSlippageBps:      1000,
			MaxMEVFeeBps:        500,
			GasMultiplierMinBps: 10000,
			GasMultiplierMaxBps: 30000,
		})
	require.NoError(t, err)

	rec := bridge.NewRecorder()
	orch, err := orchestrator.New(reg, rec, bridgeAddr, bus, logger, chainEthereum, time.Hour)
	require.NoError(t, err)

	service := NewService(model, orch, logger, Defaults{
		MinSavingsBps:         500,
		MinAbsoluteSavingsUSD: decimal.NewFromInt(1),
		MaxBridgeTime:         30 * time.Minute,
		EnableCrossChain:      true,
	})
	return &stack{service: service, tracker: tracker, model: model, orch: orch, rec: rec}
}

func testQuoteRequest() Request {
	return Request{
		User:     userAddr,
		TokenIn:  tokenUSDC,
		TokenOut: tokenWETH,
		AmountIn: decimal.NewFromInt(1000),
	}
}

func TestQuote_RecommendsSwitch(t *testing.T) {
	s := newStack(t)

	q, err := s.service.Quote(context.Background(), testQuoteRequest())
	require.NoError(t, err)
	require.True(t, q.ShouldOptimize)
	require.Equal(t, chainEthereum, q.OriginalChainID)
	require.Equal(t, chainArbitrum, q.OptimizedChainID)
	// local: 10 gas + 5 slippage. remote: 0.4 gas + 5 bridge + 6 slippage.
	require.True(t, q.OriginalCostUSD.Equal(decimal.NewFromInt(15)), "original %s", q.OriginalCostUSD)
	require.True(t, q.OptimizedCostUSD.Equal(decimal.RequireFromString("11.4")), "optimized %s", q.OptimizedCostUSD)
	require.True(t, q.SavingsUSD.Equal(decimal.RequireFromString("3.6")))
	require.Equal(t, int64(2400), q.SavingsBps)
	require.Equal(t, 10*time.Minute, q.EstimatedBridgeTime)
	require.Empty(t, q.Reason)
}

func TestQuote_CrossChainDisabledByPreferences(t *testing.T) {
	s := newStack(t)

	disabled := false
	req := testQuoteRequest()
	req.Preferences = &Preferences{EnableCrossChain: &disabled}

	q, err := s.service.Quote(context.Background(), req)
	require.NoError(t, err)
	require.False(t, q.ShouldOptimize)
	require.Equal(t, chainEthereum, q.OptimizedChainID)
	require.True(t, q.OriginalCostUSD.Equal(q.OptimizedCostUSD))
	require.True(t, q.SavingsUSD.IsZero())
	require.NotEmpty(t, q.Reason)
}

func TestQuote_ThresholdNotMet(t *testing.T) {
	s := newStack(t)

	req := testQuoteRequest()
	req.Preferences = &Preferences{MinAbsoluteSavingsUSD: decimal.NewFromInt(100)}

	q, err := s.service.Quote(context.Background(), req)
	require.NoError(t, err)
	require.False(t, q.ShouldOptimize)
	require.Equal(t, chainEthereum, q.OptimizedChainID)
	require.Equal(t, "savings below threshold", q.Reason)
}

func TestQuote_StaleGasDataIsAdvisory(t *testing.T) {
	s := newStack(t)

	require.NoError(t, s.tracker.SetStalenessThreshold(auth.Admin(), time.Nanosecond))
	time.Sleep(time.Millisecond)

	q, err := s.service.Quote(context.Background(), testQuoteRequest())
	require.NoError(t, err)
	require.False(t, q.ShouldOptimize)
	require.Equal(t, chainEthereum, q.OptimizedChainID)
	require.NotEmpty(t, q.Reason)
}

func TestQuote_MaxBridgeTimePreference(t *testing.T) {
	s := newStack(t)

	req := testQuoteRequest()
	req.Preferences = &Preferences{MaxBridgeTime: 5 * time.Minute} // arbitrum takes 10m

	q, err := s.service.Quote(context.Background(), req)
	require.NoError(t, err)
	require.False(t, q.ShouldOptimize)
}

func TestQuote_InvalidAmount(t *testing.T) {
	s := newStack(t)

	req := testQuoteRequest()
	req.AmountIn = decimal.Zero
	_, err := s.service.Quote(context.Background(), req)
	require.True(t, apperrors.Is(err, apperrors.CategoryValidation))
}

func TestQuote_InvalidPreferences(t *testing.T) {
	s := newStack(t)

	req := testQuoteRequest()
	req.Preferences = &Preferences{MinSavingsBps: 20000}
	_, err := s.service.Quote(context.Background(), req)
	require.True(t, apperrors.Is(err, apperrors.CategoryValidation))
}

func TestExecute_InitiatesWhenFavorable(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	q, id, err := s.service.Execute(ctx, auth.User(userAddr), testQuoteRequest())
	require.NoError(t, err)
	require.True(t, q.ShouldOptimize)
	require.NotEmpty(t, id)

	swap, err := s.orch.Swap(id)
	require.NoError(t, err)
	require.Equal(t, orchestrator.StatusBridging, swap.Status)
	require.Equal(t, chainArbitrum, swap.DestinationChain)

	order, ok := s.rec.LastOrder()
	require.True(t, ok)
	require.Equal(t, id, order.SwapID)
}

func TestExecute_LocalExecutionRecommended(t *testing.T) {
	s := newStack(t)

	disabled := false
	req := testQuoteRequest()
	req.Preferences = &Preferences{EnableCrossChain: &disabled}

	q, id, err := s.service.Execute(context.Background(), auth.User(userAddr), req)
	require.NoError(t, err)
	require.False(t, q.ShouldOptimize)
	require.Empty(t, id)
	require.Zero(t, s.orch.Stats().TotalSwaps)
}
