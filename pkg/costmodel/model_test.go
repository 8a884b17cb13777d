package costmodel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/omniroute/swap-middleware/pkg/app/errors"
	"github.com/omniroute/swap-middleware/pkg/auth"
	"github.com/omniroute/swap-middleware/pkg/chains"
	"github.com/omniroute/swap-middleware/pkg/events"
)

const (
	chainEthereum = chains.ID(1)
	chainArbitrum = chains.ID(42161)
	chainOptimism = chains.ID(10)
)

var (
	tokenUSDC = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	tokenWETH = common.HexToAddress("0x00000000000000000000000000000000000000c2")
)

// mockGasPricer is a function-field mock for the GasPricer interface.
type mockGasPricer struct {
	USDPriceFunc func(ctx context.Context, chainID chains.ID) (decimal.Decimal, error)
	IsStaleFunc  func(chainID chains.ID) bool
}

func (m *mockGasPricer) USDPrice(ctx context.Context, chainID chains.ID) (decimal.Decimal, error) {
	return m.USDPriceFunc(ctx, chainID)
}

func (m *mockGasPricer) IsStale(chainID chains.ID) bool {
	if m.IsStaleFunc != nil {
		return m.IsStaleFunc(chainID)
	}
	return false
}

// mockTokenPricer is a function-field mock for the TokenPricer interface.
type mockTokenPricer struct {
	TokenUSDFunc func(ctx context.Context, token common.Address) (decimal.Decimal, error)
}

func (m *mockTokenPricer) TokenUSD(ctx context.Context, token common.Address) (decimal.Decimal, error) {
	if m.TokenUSDFunc != nil {
		return m.TokenUSDFunc(ctx, token)
	}
	return decimal.NewFromInt(1), nil
}

func testRegistry(t *testing.T) *chains.Registry {
	t.Helper()
	reg, err := chains.NewRegistry([]chains.Chain{
		{ID: chainEthereum, Name: "ethereum", NativeSymbol: "ETH", NativeDecimals: 18, Enabled: true,
			BridgeTimes: map[chains.ID]time.Duration{chainArbitrum: 10 * time.Minute, chainOptimism: 5 * time.Minute}},
		{ID: chainArbitrum, Name: "arbitrum", NativeSymbol: "ETH", NativeDecimals: 18, Enabled: true,
			BridgeTimes: map[chains.ID]time.Duration{chainEthereum: 15 * time.Minute}},
		{ID: chainOptimism, Name: "optimism", NativeSymbol: "ETH", NativeDecimals: 18, Enabled: true,
			BridgeTimes: map[chains.ID]time.Duration{chainEthereum: 15 * time.Minute}},
	})
	require.NoError(t, err)
	return reg
}

func testParams() Parameters {
	return Parameters{
		BaseBridgeFeeUSD:    decimal.RequireFromString("2.00"),
		BridgeFeeBps:        30,
		MaxSlippageBps:      50,
		MEVProtectionFeeBps: 10,
		GasMultiplierBps:    10000, // 1.0x keeps the arithmetic legible
	}
}

func testBounds() Bounds {
	return Bounds{
		MaxBaseBridgeFeeUSD: decimal.NewFromInt(100),
		MaxBridgeFeeBps:     1000,
		MaxSlippageBps:      1000,
		MaxMEVFeeBps:        500,
		GasMultiplierMinBps: 10000,
		GasMultiplierMaxBps: 30000,
	}
}

// usdPerGas returns a gas pricer with fixed USD-per-gas rates per chain.
func usdPerGas(rates map[chains.ID]string) *mockGasPricer {
	return &mockGasPricer{
		USDPriceFunc: func(_ context.Context, chainID chains.ID) (decimal.Decimal, error) {
			rate, ok := rates[chainID]
			if !ok {
				return decimal.Decimal{}, errors.New("no gas price")
			}
			return decimal.RequireFromString(rate), nil
		},
	}
}

func newTestModel(t *testing.T, gas GasPricer) *Model {
	t.Helper()
	m, err := New(testRegistry(t), gas, &mockTokenPricer{}, events.NewBus(), zap.NewNop(),
		chainEthereum,
		GasEstimates{SameChain: 100_000, CrossChainSource: 100_000, CrossChainDest: 100_000},
		testParams(), testBounds())
	require.NoError(t, err)
	return m
}

func TestSavingsPercent(t *testing.T) {
	require.Equal(t, int64(2000), SavingsPercent(decimal.NewFromInt(100), decimal.NewFromInt(80)))
	require.Equal(t, int64(0), SavingsPercent(decimal.NewFromInt(100), decimal.NewFromInt(120)))
	require.Equal(t, int64(0), SavingsPercent(decimal.NewFromInt(100), decimal.NewFromInt(100)))
	require.Equal(t, int64(0), SavingsPercent(decimal.Zero, decimal.Zero))
	// Floor division: 1/3 of 10000 truncates.
	require.Equal(t, int64(3333), SavingsPercent(decimal.NewFromInt(3), decimal.NewFromInt(2)))
}

func TestMeetsThreshold_Conjunctive(t *testing.T) {
	ten := decimal.NewFromInt(10)
	one := decimal.NewFromInt(1)

	// Both tests pass.
	require.True(t, MeetsThreshold(decimal.NewFromInt(100), decimal.NewFromInt(80), 500, ten))
	// Relative test fails (200 bps < 500 bps) despite absolute passing.
	require.False(t, MeetsThreshold(decimal.NewFromInt(100), decimal.NewFromInt(98), 500, one))
	// Absolute test fails despite 50% relative savings.
	require.False(t, MeetsThreshold(decimal.NewFromInt(10), decimal.NewFromInt(5), 500, ten))
	// No savings at all.
	require.False(t, MeetsThreshold(decimal.NewFromInt(10), decimal.NewFromInt(10), 0, decimal.Zero))
}

func TestTotalCost_SameChain(t *testing.T) {
	m := newTestModel(t, usdPerGas(map[chains.ID]string{chainEthereum: "0.0001"}))

	b, err := m.TotalCost(context.Background(), chainEthereum, tokenUSDC, tokenWETH, decimal.NewFromInt(1000), 100_000)
	require.NoError(t, err)

	// gas: 100000 * 0.0001 = 10; no bridge fee; slippage: 50 bps of 1000 = 5.
	require.True(t, b.GasCostUSD.Equal(decimal.NewFromInt(10)), "gas %s", b.GasCostUSD)
	require.True(t, b.BridgeFeeUSD.IsZero())
	require.True(t, b.SlippageCostUSD.Equal(decimal.NewFromInt(5)), "slippage %s", b.SlippageCostUSD)
	require.True(t, b.TotalCostUSD.Equal(decimal.NewFromInt(15)))
	require.Zero(t, b.EstimatedExecutionTime)
}

func TestTotalCost_CrossChain(t *testing.T) {
	m := newTestModel(t, usdPerGas(map[chains.ID]string{chainArbitrum: "0.000001"}))

	b, err := m.TotalCost(context.Background(), chainArbitrum, tokenUSDC, tokenWETH, decimal.NewFromInt(1000), 200_000)
	require.NoError(t, err)

	// gas: 200000 * 0.000001 = 0.2
	require.True(t, b.GasCostUSD.Equal(decimal.RequireFromString("0.2")), "gas %s", b.GasCostUSD)
	// bridge: 2.00 base + 30 bps of 1000 = 5
	require.True(t, b.BridgeFeeUSD.Equal(decimal.NewFromInt(5)), "bridge %s", b.BridgeFeeUSD)
	// slippage: (50 + 10 mev) bps of 1000 = 6
	require.True(t, b.SlippageCostUSD.Equal(decimal.NewFromInt(6)), "slippage %s", b.SlippageCostUSD)
	require.True(t, b.TotalCostUSD.Equal(decimal.RequireFromString("11.2")))
	require.Equal(t, 10*time.Minute, b.EstimatedExecutionTime)
}

func TestTotalCost_GasMultiplierInflates(t *testing.T) {
	m := newTestModel(t, usdPerGas(map[chains.ID]string{chainEthereum: "0.0001"}))
	p := testParams()
	p.GasMultiplierBps = 15000 // 1.5x
	require.NoError(t, m.UpdateParameters(auth.Admin(), p))

	b, err := m.TotalCost(context.Background(), chainEthereum, tokenUSDC, tokenWETH, decimal.NewFromInt(1000), 100_000)
	require.NoError(t, err)
	require.True(t, b.GasCostUSD.Equal(decimal.NewFromInt(15)), "gas %s", b.GasCostUSD)
}

func TestTotalCost_Validation(t *testing.T) {
	m := newTestModel(t, usdPerGas(map[chains.ID]string{chainEthereum: "0.0001"}))

	_, err := m.TotalCost(context.Background(), chains.ID(999), tokenUSDC, tokenWETH, decimal.NewFromInt(1), 1)
	require.True(t, apperrors.Is(err, apperrors.CategoryValidation))

	_, err = m.TotalCost(context.Background(), chainEthereum, tokenUSDC, tokenWETH, decimal.Zero, 1)
	require.True(t, apperrors.Is(err, apperrors.CategoryValidation))

	_, err = m.TotalCost(context.Background(), chainEthereum, tokenUSDC, tokenUSDC, decimal.NewFromInt(1), 1)
	require.True(t, apperrors.Is(err, apperrors.CategoryValidation))
}

func TestFindOptimalChain_PicksCheapest(t *testing.T) {
	m := newTestModel(t, usdPerGas(map[chains.ID]string{
		chainEthereum: "0.0001",    // local total 15
		chainArbitrum: "0.000001",  // total 11.2
		chainOptimism: "0.000002",  // total 11.4
	}))

	rec, err := m.FindOptimalChain(context.Background(), Query{
		TokenIn:               tokenUSDC,
		TokenOut:              tokenWETH,
		AmountIn:              decimal.NewFromInt(1000),
		MinSavingsBps:         500,
		MinAbsoluteSavingsUSD: decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	require.True(t, rec.Switch)
	require.Equal(t, chainArbitrum, rec.ChainID)
	require.True(t, rec.CurrentCostUSD.Equal(decimal.NewFromInt(15)))
	require.True(t, rec.OptimizedCostUSD.Equal(decimal.RequireFromString("11.2")))
	require.True(t, rec.SavingsUSD.Equal(decimal.RequireFromString("3.8")))
	require.Equal(t, SavingsPercent(rec.CurrentCostUSD, rec.OptimizedCostUSD), rec.SavingsBps)
	require.Equal(t, 10*time.Minute, rec.EstimatedBridgeTime)
}

func TestFindOptimalChain_MaxBridgeTimeFilters(t *testing.T) {
	m := newTestModel(t, usdPerGas(map[chains.ID]string{
		chainEthereum: "0.0001",
		chainArbitrum: "0.000001", // 10m to bridge, filtered out
		chainOptimism: "0.000002", // 5m to bridge
	}))

	rec, err := m.FindOptimalChain(context.Background(), Query{
		TokenIn:               tokenUSDC,
		AmountIn:              decimal.NewFromInt(1000),
		MinSavingsBps:         500,
		MinAbsoluteSavingsUSD: decimal.NewFromInt(1),
		MaxBridgeTime:         6 * time.Minute,
	})
	require.NoError(t, err)
	require.True(t, rec.Switch)
	require.Equal(t, chainOptimism, rec.ChainID)
}

func TestFindOptimalChain_ExcludeChains(t *testing.T) {
	m := newTestModel(t, usdPerGas(map[chains.ID]string{
		chainEthereum: "0.0001",
		chainArbitrum: "0.000001",
		chainOptimism: "0.000002",
	}))

	rec, err := m.FindOptimalChain(context.Background(), Query{
		TokenIn:               tokenUSDC,
		AmountIn:              decimal.NewFromInt(1000),
		MinSavingsBps:         500,
		MinAbsoluteSavingsUSD: decimal.NewFromInt(1),
		ExcludeChains:         []chains.ID{chainArbitrum},
	})
	require.NoError(t, err)
	require.Equal(t, chainOptimism, rec.ChainID)
}

func TestFindOptimalChain_ThresholdFailReturnsHome(t *testing.T) {
	m := newTestModel(t, usdPerGas(map[chains.ID]string{
		chainEthereum: "0.0001",
		chainArbitrum: "0.000001",
		chainOptimism: "0.000002",
	}))

	rec, err := m.FindOptimalChain(context.Background(), Query{
		TokenIn:               tokenUSDC,
		AmountIn:              decimal.NewFromInt(1000),
		MinSavingsBps:         500,
		MinAbsoluteSavingsUSD: decimal.NewFromInt(100), // absolute test fails
	})
	require.NoError(t, err)
	require.False(t, rec.Switch)
	require.Equal(t, chainEthereum, rec.ChainID)
	require.True(t, rec.SavingsUSD.IsZero())
	require.True(t, rec.OptimizedCostUSD.Equal(rec.CurrentCostUSD))
}

func TestFindOptimalChain_TieBreakRegistryOrder(t *testing.T) {
	// Identical candidate costs; arbitrum is registered before optimism.
	m := newTestModel(t, usdPerGas(map[chains.ID]string{
		chainEthereum: "0.0001",
		chainArbitrum: "0.000001",
		chainOptimism: "0.000001",
	}))

	rec, err := m.FindOptimalChain(context.Background(), Query{
		TokenIn:               tokenUSDC,
		AmountIn:              decimal.NewFromInt(1000),
		MinSavingsBps:         100,
		MinAbsoluteSavingsUSD: decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	require.True(t, rec.Switch)
	require.Equal(t, chainArbitrum, rec.ChainID)
}

func TestFindOptimalChain_SkipsUnpriceableAndDisabled(t *testing.T) {
	reg := testRegistry(t)
	require.NoError(t, reg.SetEnabled(auth.Admin(), chainOptimism, false))

	gas := usdPerGas(map[chains.ID]string{
		chainEthereum: "0.0001",
		chainOptimism: "0.000001", // disabled, must not be considered
		// arbitrum unpriceable: no rate configured
	})
	m, err := New(reg, gas, &mockTokenPricer{}, events.NewBus(), zap.NewNop(),
		chainEthereum,
		GasEstimates{SameChain: 100_000, CrossChainSource: 100_000, CrossChainDest: 100_000},
		testParams(), testBounds())
	require.NoError(t, err)

	rec, err := m.FindOptimalChain(context.Background(), Query{
		TokenIn:               tokenUSDC,
		AmountIn:              decimal.NewFromInt(1000),
		MinSavingsBps:         0,
		MinAbsoluteSavingsUSD: decimal.Zero,
	})
	require.NoError(t, err)
	require.False(t, rec.Switch)
	require.Equal(t, chainEthereum, rec.ChainID)
}

func TestUpdateParameters(t *testing.T) {
	m := newTestModel(t, usdPerGas(map[chains.ID]string{chainEthereum: "0.0001"}))

	err := m.UpdateParameters(auth.Keeper(common.Address{}), testParams())
	require.True(t, apperrors.Is(err, apperrors.CategoryUnauthorized))

	bad := testParams()
	bad.BridgeFeeBps = 5000 // above the 10% bound
	err = m.UpdateParameters(auth.Admin(), bad)
	require.True(t, apperrors.Is(err, apperrors.CategoryValidation))

	good := testParams()
	good.MaxSlippageBps = 75
	require.NoError(t, m.UpdateParameters(auth.Admin(), good))
	require.Equal(t, int64(75), m.Parameters().MaxSlippageBps)
}

func TestReliable(t *testing.T) {
	gas := usdPerGas(map[chains.ID]string{chainEthereum: "0.0001"})
	gas.IsStaleFunc = func(chainID chains.ID) bool { return chainID == chainArbitrum }
	m := newTestModel(t, gas)

	require.True(t, m.Reliable(chainEthereum))
	require.False(t, m.Reliable(chainArbitrum)) // stale gas data
	require.False(t, m.Reliable(chains.ID(999)))
}
