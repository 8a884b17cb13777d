package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/omniroute/swap-middleware/pkg/app/httpserver"
	"github.com/omniroute/swap-middleware/pkg/archive"
	"github.com/omniroute/swap-middleware/pkg/auth"
	"github.com/omniroute/swap-middleware/pkg/bridge"
	"github.com/omniroute/swap-middleware/pkg/chains"
	"github.com/omniroute/swap-middleware/pkg/config"
	"github.com/omniroute/swap-middleware/pkg/costmodel"
	"github.com/omniroute/swap-middleware/pkg/events"
	"github.com/omniroute/swap-middleware/pkg/gastracker"
	"github.com/omniroute/swap-middleware/pkg/oracle"
	"github.com/omniroute/swap-middleware/pkg/orchestrator"
	"github.com/omniroute/swap-middleware/pkg/pgutil"
	"github.com/omniroute/swap-middleware/pkg/quote"
)

var configPath = flag.String("config", "config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting cross-chain swap cost optimizer")

	registry, err := chains.LoadRegistry(cfg.Chains.RegistryFile)
	if err != nil {
		logger.Fatal("Failed to load chain registry", zap.Error(err))
	}
	home := chains.ID(cfg.Chains.HomeChainID)
	logger.Info("Chain registry loaded",
		zap.Int("chains", len(registry.All())),
		zap.String("home", home.String()))

	bus := events.NewBus()
	bus.Subscribe(loggerSink(logger))

	router, err := buildOracleRouter(cfg.Oracle)
	if err != nil {
		logger.Fatal("Failed to build price feeds", zap.Error(err))
	}

	tracker, err := gastracker.New(registry, router, bus, logger, gastracker.Options{
		StalenessThreshold: cfg.Gas.StalenessThreshold,
		MaxGasPrice:        cfg.Gas.MaxGasPrice,
	})
	if err != nil {
		logger.Fatal("Failed to initialize gas tracker", zap.Error(err))
	}

	params, bounds, err := costConfig(cfg.Cost)
	if err != nil {
		logger.Fatal("Invalid cost configuration", zap.Error(err))
	}
	model, err := costmodel.New(registry, tracker, router, bus, logger, home,
		costmodel.GasEstimates{
			SameChain:        cfg.Gas.SameChainEstimate,
			CrossChainSource: cfg.Gas.CrossChainSourceEstimate,
			CrossChainDest:   cfg.Gas.CrossChainDestEstimate,
		},
		params, bounds)
	if err != nil {
		logger.Fatal("Failed to initialize cost model", zap.Error(err))
	}

	// The recorder transport stands in until a real bridge integration is
	// registered through the admin API.
	orch, err := orchestrator.New(registry, bridge.NewRecorder(), common.Address{}, bus, logger, home, cfg.Swap.RecoveryTimeout)
	if err != nil {
		logger.Fatal("Failed to initialize orchestrator", zap.Error(err))
	}

	minAbsolute, err := decimal.NewFromString(cfg.Swap.DefaultMinAbsoluteUSD)
	if err != nil {
		logger.Fatal("Invalid swap.default_min_absolute_usd", zap.Error(err))
	}
	service := quote.NewService(model, orch, logger, quote.Defaults{
		MinSavingsBps:         cfg.Swap.DefaultMinSavingsBps,
		MinAbsoluteSavingsUSD: minAbsolute,
		MaxBridgeTime:         cfg.Swap.DefaultMaxBridgeTime,
		EnableCrossChain:      cfg.Swap.DefaultEnableCrossChain,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Database.Enabled {
		db, err := pgutil.ConnectDB(&cfg.Database)
		if err != nil {
			logger.Fatal("Failed to connect to archive database", zap.Error(err))
		}
		defer db.Close()
		sink := archive.NewSink(archive.NewStore(db), orch, logger, 256)
		bus.Subscribe(sink)
		go sink.Run(ctx)
		logger.Info("Archive ledger enabled", zap.String("database", cfg.Database.Database))
	}

	issuer, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	if err != nil {
		logger.Fatal("Failed to initialize token issuer", zap.Error(err))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(auth.Middleware(issuer))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if orch.Paused() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("PAUSED"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("READY"))
	})
	r.Handle("/metrics", promhttp.Handler())

	quote.RegisterRoutes(r, service, orch, tracker, model, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	if err := httpserver.ServeAndWait(ctx, logger, srv, cfg.Shutdown.Timeout); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}

	logger.Info("Optimizer stopped")
}

// buildOracleRouter wires one price source per configured feed: a pinned
// static price (stablecoins at par) or an HTTP endpoint.
func buildOracleRouter(cfg config.OracleConfig) (*oracle.Router, error) {
	router := oracle.NewRouter()

	newSource := func(f config.FeedConfig) (oracle.PriceSource, error) {
		heartbeat := f.Heartbeat
		if heartbeat == 0 {
			heartbeat = cfg.DefaultHeartbeat
		}
		if f.StaticPrice != "" {
			price, err := decimal.NewFromString(f.StaticPrice)
			if err != nil {
				return nil, fmt.Errorf("invalid static price %q: %w", f.StaticPrice, err)
			}
			return oracle.NewStatic(price, heartbeat), nil
		}
		return oracle.NewHTTPSource(oracle.HTTPSourceOptions{
			URL:       f.URL,
			Heartbeat: heartbeat,
			Timeout:   cfg.RequestTimeout,
		})
	}

	for _, f := range cfg.NativeFeeds {
		src, err := newSource(f)
		if err != nil {
			return nil, fmt.Errorf("native feed for chain %d: %w", f.ChainID, err)
		}
		router.SetNative(chains.ID(f.ChainID), src)
	}
	for _, f := range cfg.TokenFeeds {
		if !common.IsHexAddress(f.Token) {
			return nil, fmt.Errorf("token feed has invalid address %q", f.Token)
		}
		src, err := newSource(f)
		if err != nil {
			return nil, fmt.Errorf("token feed for %s: %w", f.Token, err)
		}
		router.SetToken(common.HexToAddress(f.Token), src)
	}
	return router, nil
}

func costConfig(cfg config.CostConfig) (costmodel.Parameters, costmodel.Bounds, error) {
	base, err := decimal.NewFromString(cfg.BaseBridgeFeeUSD)
	if err != nil {
		return costmodel.Parameters{}, costmodel.Bounds{}, fmt.Errorf("invalid cost.base_bridge_fee_usd: %w", err)
	}
	maxBase, err := decimal.NewFromString(cfg.MaxBaseBridgeFeeUSD)
	if err != nil {
		return costmodel.Parameters{}, costmodel.Bounds{}, fmt.Errorf("invalid cost.max_base_bridge_fee_usd: %w", err)
	}
	params := costmodel.Parameters{
		BaseBridgeFeeUSD:    base,
		BridgeFeeBps:        cfg.BridgeFeeBps,
		MaxSlippageBps:      cfg.MaxSlippageBps,
		MEVProtectionFeeBps: cfg.MEVProtectionFeeBps,
		GasMultiplierBps:    cfg.GasMultiplierBps,
	}
	bounds := costmodel.Bounds{
		MaxBaseBridgeFeeUSD: maxBase,
		MaxBridgeFeeBps:     cfg.MaxBridgeFeeBps,
		MaxSlippageBps:      cfg.MaxSlippageBpsLimit,
		MaxMEVFeeBps:        cfg.MaxMEVFeeBps,
		GasMultiplierMinBps: cfg.GasMultiplierMinBps,
		GasMultiplierMaxBps: cfg.GasMultiplierMaxBps,
	}
	return params, bounds, nil
}

// loggerSink mirrors every bus event into the structured log.
func loggerSink(logger *zap.Logger) events.Sink {
	l := logger.With(zap.String("component", "events"))
	return events.SinkFunc(func(e events.Event) {
		fields := []zap.Field{zap.String("event_id", e.ID.String())}
		if e.ChainID != "" {
			fields = append(fields, zap.String("chain_id", e.ChainID))
		}
		if e.SwapID != "" {
			fields = append(fields, zap.String("swap_id", e.SwapID))
		}
		for k, v := range e.Fields {
			fields = append(fields, zap.String(k, v))
		}
		l.Info(string(e.Type), fields...)
	})
}
