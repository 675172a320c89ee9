package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Kernlog/pump-sniper/internal/config"
	"github.com/Kernlog/pump-sniper/internal/domain"
	"github.com/Kernlog/pump-sniper/internal/engine"
	"github.com/Kernlog/pump-sniper/internal/execution"
	"github.com/Kernlog/pump-sniper/internal/ingestion"
	"github.com/Kernlog/pump-sniper/internal/journal"
	"github.com/Kernlog/pump-sniper/internal/logger"
	"github.com/Kernlog/pump-sniper/internal/observability"
	"github.com/Kernlog/pump-sniper/internal/pricing"
	"github.com/Kernlog/pump-sniper/internal/queue"
	"github.com/Kernlog/pump-sniper/internal/solrpc"
)

const shutdownTimeout = 30 * time.Second

func main() {
	envFile := flag.String("env-file", ".env", "Optional dotenv file loaded before parsing the environment")
	testMode := flag.Bool("test-mode", false, "Stop after the first successful buy (overrides TEST_MODE)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (overrides METRICS_ADDR, \"-\" disables)")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *testMode {
		cfg.TestMode = true
	}
	switch *metricsAddr {
	case "":
	case "-":
		cfg.MetricsAddr = ""
	default:
		cfg.MetricsAddr = *metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("sniper stopped", zap.Error(err))
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	metrics := observability.NewMetrics("pump_sniper", prometheus.DefaultRegisterer)
	if cfg.MetricsAddr != "" {
		srv := startMetricsServer(cfg.MetricsAddr, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	wallet, err := cfg.Wallet()
	if err != nil {
		return err
	}

	rpc := solrpc.NewHTTPClient(cfg.RPCEndpoint)
	if err := checkBalance(ctx, rpc, wallet.PublicKey(), cfg, log); err != nil {
		return err
	}

	prices := pricing.NewService(
		pricing.NewCoinGecko(cfg.Price.APIURL, cfg.Price.Timeout),
		pricing.NewCache(cfg.Price.CacheTTL),
		cfg.Price.Timeout,
		pricing.WithLogger(log.With(zap.String("component", "pricing"))),
		pricing.WithMetrics(metrics),
	)
	if _, err := prices.Refresh(ctx); err != nil {
		log.Warn("initial sol price fetch failed, will retry on demand", zap.Error(err))
	}
	if cfg.Price.WarmSchedule != "" {
		warmer, err := pricing.NewWarmer(ctx, prices, cfg.Price.WarmSchedule, log)
		if err != nil {
			return fmt.Errorf("price warmer: %w", err)
		}
		warmer.Start()
		defer warmer.Stop()
	}

	stores, closeStores, err := openStores(ctx, cfg.Storage, log)
	if err != nil {
		return err
	}
	defer closeStores()

	// The journal outlives the pipeline context so it can drain after shutdown.
	jr := journal.New(stores, journal.WithLogger(log), journal.WithMetrics(metrics))
	journalDone := make(chan error, 1)
	go func() { journalDone <- jr.Run(context.WithoutCancel(ctx)) }()
	defer func() {
		jr.Close()
		select {
		case <-journalDone:
		case <-time.After(shutdownTimeout):
			log.Warn("journal drain timed out")
		}
	}()

	events := queue.New[domain.Event]()
	executor := execution.NewExecutor(rpc, execution.Config{
		SlippageBps:         cfg.MaxSlippageBps,
		PriorityFeeLamports: cfg.PriorityFeeLamports,
		ComputeUnitLimit:    cfg.ComputeUnitLimit,
	}, execution.WithLogger(log.With(zap.String("component", "execution"))), execution.WithMetrics(metrics))

	eng := engine.New(engine.Options{
		Config: engine.Config{
			ThresholdUSD:  cfg.MarketCapThresholdUSD,
			BuyAmount:     cfg.BuyAmountLamports,
			SingleBuy:     cfg.TestMode,
			StatsInterval: cfg.StatsInterval,
			CurveMaxAge:   cfg.CurveMaxAge,
		},
		Queue:    events,
		Executor: executor,
		Prices:   prices,
		Wallet:   wallet,
		Journal:  jr,
		Logger:   log,
		Metrics:  metrics,
	})

	stream := ingestion.NewStream(ingestion.StreamOptions{
		Endpoint: cfg.StreamEndpoint,
		Dial: func(ctx context.Context) (solrpc.PubSub, error) {
			return solrpc.NewWSClient(ctx, cfg.StreamEndpoint, nil)
		},
		Sink:    events,
		Logger:  log.With(zap.String("component", "stream")),
		Metrics: metrics,
	})

	log.Info("sniper starting",
		zap.String("wallet", wallet.PublicKey().String()),
		zap.String("threshold_usd", cfg.MarketCapThresholdUSD.String()),
		zap.Float64("buy_sol", cfg.BuyAmountSOL()),
		zap.Float64("priority_fee_sol", cfg.PriorityFeeSOL()),
		zap.Uint64("slippage_bps", cfg.MaxSlippageBps),
		zap.Bool("test_mode", cfg.TestMode),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return eng.Run(gctx)
	})
	g.Go(func() error {
		return runStream(gctx, stream, log, metrics)
	})

	err = g.Wait()
	events.Close()

	successful, failed := eng.State().Counts()
	log.Info("session summary",
		zap.Int("tokens_tracked", eng.State().TrackedCount()),
		zap.Int("successful_buys", successful),
		zap.Int("failed_buys", failed),
	)

	switch {
	case errors.Is(err, engine.ErrSingleBuyComplete):
		log.Info("test mode: first buy submitted, exiting")
		return nil
	case err == nil, errors.Is(err, context.Canceled):
		return nil
	default:
		return err
	}
}

// runStream restarts the stream after every connection loss until ctx ends.
// Stream.Run already waits out the reconnect delay before returning.
func runStream(ctx context.Context, stream *ingestion.Stream, log *zap.Logger, metrics *observability.Metrics) error {
	for {
		err := stream.Run(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var connErr *ingestion.ConnectionError
		if !errors.As(err, &connErr) {
			return err
		}
		metrics.RecordStreamRestart()
		log.Warn("stream lost, reconnecting", zap.Error(err))
	}
}

// checkBalance refuses to start with less than one buy plus its fees.
func checkBalance(ctx context.Context, rpc solrpc.RPCClient, owner solana.PublicKey, cfg *config.Config, log *zap.Logger) error {
	balance, err := rpc.GetBalance(ctx, owner)
	if err != nil {
		return fmt.Errorf("wallet balance: %w", err)
	}

	required := cfg.BuyAmountLamports + cfg.PriorityFeeLamports + execution.FeeReserveLamports
	log.Info("wallet balance",
		zap.String("wallet", owner.String()),
		zap.Uint64("lamports", balance),
		zap.Uint64("required", required),
	)
	if balance < required {
		return fmt.Errorf("%w: have %d lamports, need %d", execution.ErrInsufficientFunds, balance, required)
	}
	return nil
}

func startMetricsServer(addr string, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("metrics server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server", zap.Error(err))
		}
	}()
	return srv
}
