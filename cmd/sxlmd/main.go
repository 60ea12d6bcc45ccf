package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rajdeep-singha/sXLM/config"
	"github.com/rajdeep-singha/sXLM/core"
	"github.com/rajdeep-singha/sXLM/gov"
	"github.com/rajdeep-singha/sXLM/observe"
	"github.com/rajdeep-singha/sXLM/queue"
	"github.com/rajdeep-singha/sXLM/staking"
	"github.com/rajdeep-singha/sXLM/store"
	"github.com/rajdeep-singha/sXLM/swap"
	"github.com/rajdeep-singha/sXLM/token"
	"github.com/rajdeep-singha/sXLM/utils"
	"github.com/rajdeep-singha/sXLM/validator"
)

func main() {
	configPath := flag.String("config", "sxlm.toml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := observe.NewLogger("sxlmd")
		bootLog.Fatal().Err(err).Msg("load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := observe.NewLoggerWithLevel("sxlmd", level)

	admin := uuid.FromStringOrNil(cfg.Admin)
	if admin == uuid.Nil {
		admin = uuid.Must(uuid.NewV4())
		logger.Warn().Str("admin", admin.String()).Msg("no admin configured, generated ephemeral admin")
	}

	engineAccount := uuid.Must(uuid.FromString(utils.GenUuidFromStrings("account", "engine")))
	poolAccount := uuid.Must(uuid.FromString(utils.GenUuidFromStrings("account", "staking-pool")))
	swapAccount := uuid.Must(uuid.FromString(utils.GenUuidFromStrings("account", "swap-pool")))
	treasury := uuid.Must(uuid.FromString(utils.GenUuidFromStrings("account", "treasury")))

	ledger := token.NewLedger()
	xlm, err := ledger.CreateAsset("XLM", admin)
	if err != nil {
		logger.Fatal().Err(err).Msg("register native asset")
	}
	sxlm, err := ledger.CreateAsset("sXLM", poolAccount)
	if err != nil {
		logger.Fatal().Err(err).Msg("register staked asset")
	}

	st, err := store.Open(cfg.DataDSN)
	if err != nil {
		logger.Fatal().Err(err).Str("dsn", cfg.DataDSN).Msg("open store")
	}

	validators := validator.NewManager(admin, poolAccount, observe.NewLoggerWithLevel("validator", level))

	withdrawals := queue.NewQueue(admin, poolAccount, xlm.Id, poolAccount, st, ledger,
		queue.WithUnbondingPeriod(cfg.Staking.UnbondingPeriodSeconds),
		queue.WithLogger(observe.NewLoggerWithLevel("queue", level)),
	)

	pool, err := staking.NewPool(staking.Config{
		Admin:          admin,
		StakedAsset:    sxlm.Id,
		NativeAsset:    xlm.Id,
		PoolAccount:    poolAccount,
		Treasury:       treasury,
		ProtocolFeeBps: decimal.NewFromInt(cfg.Staking.ProtocolFeeBps),
	}, ledger,
		staking.WithAllocator(validators),
		staking.WithWithdrawalQueue(withdrawals),
		staking.WithLogger(observe.NewLoggerWithLevel("staking", level)),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("build staking pool")
	}

	metrics := observe.NewMetrics(prometheus.DefaultRegisterer)

	params := &core.RiskParams{
		CollateralFactorBps:     decimal.NewFromInt(cfg.Risk.CollateralFactorBps),
		LiquidationThresholdBps: decimal.NewFromInt(cfg.Risk.LiquidationThresholdBps),
		LiquidationBonusBps:     decimal.NewFromInt(cfg.Risk.LiquidationBonusBps),
		BorrowRateBps:           decimal.NewFromInt(cfg.Risk.BorrowRateBps),
		ExchangeRate:            core.RATE_PRECISION,
	}

	engine, err := core.NewEngine(core.Config{
		Admin:         admin,
		StakedAsset:   sxlm.Id,
		NativeAsset:   xlm.Id,
		EngineAccount: engineAccount,
	}, st, ledger,
		core.WithParams(params),
		core.WithOracle(pool),
		core.WithSink(observe.NewMetricsSink(metrics)),
		core.WithLog(core.NewLog(observe.NewLoggerWithLevel("engine", level))),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("build engine")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := engine.LoadAggregates(ctx); err != nil {
		logger.Fatal().Err(err).Msg("load engine aggregates")
	}

	market := swap.NewPool(ledger, xlm.Id, sxlm.Id, swapAccount,
		decimal.NewFromInt(cfg.Swap.FeeBps),
		observe.NewLoggerWithLevel("swap", level),
	)
	registry := gov.NewRegistry(admin, sxlm.Id, ledger,
		gov.WithLogger(observe.NewLoggerWithLevel("gov", level)),
	)

	health := observe.NewHealthChecker()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.LivenessHandler)
	mux.HandleFunc("/readyz", health.ReadinessHandler)

	server := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: mux,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	health.SetReady(true)
	logger.Info().
		Str("metricsAddr", cfg.MetricsAddr).
		Str("spotPrice", market.SpotPrice().String()).
		Int("activeProposals", len(registry.ActiveProposals())).
		Str("totalCollateral", engine.TotalCollateral().String()).
		Msg("sxlmd started")

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("metrics server shutdown")
		os.Exit(1)
	}
}
