// Package engine decides when to buy. It is the single consumer of the
// domain-event queue and owns all decision state.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Kernlog/pump-sniper/internal/domain"
	"github.com/Kernlog/pump-sniper/internal/execution"
	"github.com/Kernlog/pump-sniper/internal/observability"
	"github.com/Kernlog/pump-sniper/internal/pump"
	"github.com/Kernlog/pump-sniper/internal/queue"
)

// ErrSingleBuyComplete stops Run after the first successful buy in single-buy mode.
var ErrSingleBuyComplete = errors.New("single buy complete")

// Trigger paths.
const (
	PathCached   = "cached"
	PathFallback = "fallback"
	PathInstant  = "instant"
)

// Executor reads curves and submits buys.
type Executor interface {
	FetchBondingCurve(ctx context.Context, address solana.PublicKey) (pump.BondingCurve, error)
	ExecuteBuy(ctx context.Context, wallet solana.PrivateKey, token domain.TokenRecord, amount uint64) (execution.Receipt, error)
}

// PriceSource converts a lamport market cap to USD.
type PriceSource interface {
	MarketCapUSD(ctx context.Context, lamports uint64) (decimal.Decimal, error)
}

// Journal receives every processed event. Record must not block.
type Journal interface {
	Record(ev domain.Event)
}

// Config holds the decision parameters.
type Config struct {
	ThresholdUSD  decimal.Decimal
	BuyAmount     uint64 // lamports
	SingleBuy     bool
	StatsInterval time.Duration // zero disables StatsUpdate
	CurveMaxAge   time.Duration // cached curves older than this are re-read; zero never expires
}

// Options contains configuration for creating an Engine.
type Options struct {
	Config   Config
	Queue    *queue.Queue[domain.Event]
	Executor Executor
	Prices   PriceSource
	Wallet   solana.PrivateKey
	Journal  Journal
	Logger   *zap.Logger
	Metrics  *observability.Metrics
}

// Engine handles domain events in arrival order.
type Engine struct {
	cfg     Config
	state   *State
	queue   *queue.Queue[domain.Event]
	exec    Executor
	prices  PriceSource
	wallet  solana.PrivateKey
	journal Journal
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
	started time.Time
}

var _ domain.EventHandler = (*Engine)(nil)

// New creates an engine.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:     opts.Config,
		state:   NewState(),
		queue:   opts.Queue,
		exec:    opts.Executor,
		prices:  opts.Prices,
		wallet:  opts.Wallet,
		journal: opts.Journal,
		logger:  logger.With(zap.String("component", "engine")),
		metrics: opts.Metrics,
		now:     time.Now,
	}
}

// State exposes the engine's state for inspection.
func (e *Engine) State() *State {
	return e.state
}

// Run consumes the queue until ctx is cancelled, the queue is closed and
// drained (nil), or a single-buy run completes (ErrSingleBuyComplete).
func (e *Engine) Run(ctx context.Context) error {
	e.started = e.now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if e.cfg.StatsInterval > 0 {
		go e.publishStats(ctx)
	}

	e.logger.Info("engine started",
		zap.String("threshold_usd", e.cfg.ThresholdUSD.String()),
		zap.Uint64("buy_lamports", e.cfg.BuyAmount),
		zap.Bool("single_buy", e.cfg.SingleBuy),
	)

	for {
		ev, err := e.queue.Pop(ctx)
		if errors.Is(err, queue.ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}

		e.metrics.RecordEvent(string(ev.Kind()), e.queue.Len())
		if e.journal != nil {
			e.journal.Record(ev)
		}

		if err := domain.Dispatch(ctx, ev, e); err != nil {
			if errors.Is(err, ErrSingleBuyComplete) {
				return err
			}
			if domain.IsCritical(ev) {
				e.logger.Error("buy event handler failed", zap.String("kind", string(ev.Kind())), zap.Error(err))
			} else {
				e.logger.Warn("event handler failed", zap.String("kind", string(ev.Kind())), zap.Error(err))
			}
		}
	}
}

func (e *Engine) publishStats(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.StatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.publish(e.Stats()); err != nil {
				return
			}
		}
	}
}

// Stats summarizes the current state.
func (e *Engine) Stats() domain.StatsUpdate {
	successful, failed := e.state.Counts()
	var uptime time.Duration
	if !e.started.IsZero() {
		uptime = e.now().Sub(e.started)
	}
	return domain.StatsUpdate{
		TokensTracked:  e.state.TrackedCount(),
		SuccessfulBuys: successful,
		FailedBuys:     failed,
		Uptime:         uptime,
	}
}

func (e *Engine) publish(ev domain.Event) error {
	return e.queue.Push(ev)
}

// HandleTokenCreated tracks the token and evaluates it against the cached
// curve, or a fresh read when no update has been streamed yet.
func (e *Engine) HandleTokenCreated(ctx context.Context, ev domain.TokenCreated) error {
	token := ev.Token
	e.state.track(token)
	e.metrics.SetTokensTracked(e.state.TrackedCount())

	if curve, at, ok := e.state.CachedCurve(token.BondingCurve()); ok {
		cached := domain.NewMarketSnapshot(token, curve, at)
		if e.cfg.CurveMaxAge <= 0 || !cached.IsStale(e.now(), e.cfg.CurveMaxAge) {
			return e.evaluate(ctx, token, curve, PathCached)
		}
		e.logger.Debug("cached curve is stale, re-reading",
			zap.String("mint", token.Mint.String()),
			zap.Time("received_at", at),
		)
	}

	curve, err := e.exec.FetchBondingCurve(ctx, token.BondingCurve())
	if err != nil {
		e.logger.Warn("curve fetch failed",
			zap.String("mint", token.Mint.String()),
			zap.String("symbol", token.Symbol),
			zap.Error(err),
		)
		return nil
	}
	return e.evaluate(ctx, token, curve, PathFallback)
}

// HandleBondingCurveUpdated caches the snapshot and evaluates the owning token, if tracked.
func (e *Engine) HandleBondingCurveUpdated(ctx context.Context, ev domain.BondingCurveUpdated) error {
	e.state.cacheCurve(ev.Address, ev.Curve, e.now())

	token, ok := e.state.TrackedByCurve(ev.Address)
	if !ok {
		return nil
	}
	return e.evaluate(ctx, token, ev.Curve, PathInstant)
}

func (e *Engine) evaluate(ctx context.Context, token domain.TokenRecord, curve pump.BondingCurve, path string) error {
	snapshot := domain.NewMarketSnapshot(token, curve, e.now())

	usd, err := e.prices.MarketCapUSD(ctx, snapshot.MarketCap)
	if err != nil {
		e.logger.Warn("market cap conversion failed",
			zap.String("mint", token.Mint.String()),
			zap.String("symbol", token.Symbol),
			zap.Error(err),
		)
		return nil
	}

	if err := e.publish(domain.MarketCapUpdated{Token: token, Snapshot: snapshot, USD: usd}); err != nil {
		return err
	}

	if usd.LessThan(e.cfg.ThresholdUSD) {
		return nil
	}
	if e.state.Bought(token.Mint) || e.state.Pending(token.Mint) {
		return nil
	}
	if e.cfg.SingleBuy && e.state.BoughtOnce() {
		e.logger.Info("threshold met but single buy already done",
			zap.String("token", token.DisplayName()),
			zap.String("market_cap_usd", usd.StringFixed(2)),
		)
		return nil
	}

	e.logger.Info("buy triggered",
		zap.String("path", path),
		zap.String("token", token.DisplayName()),
		zap.String("mint", token.Mint.String()),
		zap.String("market_cap_usd", usd.StringFixed(2)),
		zap.Duration("token_age", token.Age(e.now())),
	)
	e.metrics.RecordBuyTriggered(path)
	e.state.markPending(token.Mint)

	return e.publish(domain.BuyTriggered{
		Token:       token,
		MarketCap:   snapshot.MarketCap,
		Amount:      e.cfg.BuyAmount,
		TriggeredAt: e.now(),
	})
}

// HandleBuyTriggered executes the buy unless the mint is already bought or a
// single-buy run has completed. The mint joins the bought-set before
// submission and leaves it again on failure.
func (e *Engine) HandleBuyTriggered(ctx context.Context, ev domain.BuyTriggered) error {
	token := ev.Token
	e.state.clearPending(token.Mint)
	if e.cfg.SingleBuy && e.state.BoughtOnce() {
		e.logger.Info("skipping buy, single buy already done", zap.String("token", token.DisplayName()))
		return nil
	}
	if !e.state.markBought(token.Mint) {
		e.logger.Info("already bought, skipping", zap.String("token", token.DisplayName()))
		return nil
	}

	e.logger.Info("executing buy",
		zap.String("token", token.DisplayName()),
		zap.Uint64("lamports", ev.Amount),
	)

	start := time.Now()
	receipt, err := e.exec.ExecuteBuy(ctx, e.wallet, token, ev.Amount)
	latency := time.Since(start)

	if err != nil {
		e.state.recordFailure(token.Mint)
		e.metrics.RecordBuyResult("failed", latency)
		return e.publish(domain.BuyFailed{
			Token:       token,
			Amount:      ev.Amount,
			Err:         err,
			TriggeredAt: ev.TriggeredAt,
			FailedAt:    e.now(),
		})
	}

	e.state.recordSuccess(token.Mint)
	e.metrics.RecordBuyResult("submitted", latency)
	e.metrics.SetTokensTracked(e.state.TrackedCount())
	return e.publish(domain.BuyExecuted{
		Token:          token,
		Signature:      receipt.Signature,
		Amount:         ev.Amount,
		ExpectedTokens: receipt.ExpectedTokens,
		TriggeredAt:    ev.TriggeredAt,
		ExecutedAt:     e.now(),
	})
}

// HandleMarketCapUpdated is journal-only.
func (e *Engine) HandleMarketCapUpdated(_ context.Context, ev domain.MarketCapUpdated) error {
	e.logger.Debug("market cap",
		zap.String("mint", ev.Token.Mint.String()),
		zap.Uint64("lamports", ev.Snapshot.MarketCap),
		zap.String("usd", ev.USD.StringFixed(2)),
		zap.Float64("progress", ev.Snapshot.Progress()),
	)
	return nil
}

// HandleBuyExecuted logs the buy. In single-buy mode it ends the run.
func (e *Engine) HandleBuyExecuted(_ context.Context, ev domain.BuyExecuted) error {
	e.logger.Info("buy successful",
		zap.String("token", ev.Token.DisplayName()),
		zap.String("signature", ev.Signature.String()),
		zap.Uint64("lamports", ev.Amount),
		zap.Uint64("expected_tokens", ev.ExpectedTokens),
		zap.Duration("latency", ev.ExecutedAt.Sub(ev.TriggeredAt)),
	)
	if e.cfg.SingleBuy {
		e.logger.Info("first buy completed, stopping")
		return ErrSingleBuyComplete
	}
	return nil
}

// HandleBuyFailed logs the failure. The mint may trigger again.
func (e *Engine) HandleBuyFailed(_ context.Context, ev domain.BuyFailed) error {
	e.logger.Error("buy failed",
		zap.String("token", ev.Token.DisplayName()),
		zap.String("kind", execution.ErrorKind(ev.Err)),
		zap.Error(ev.Err),
	)
	return nil
}

// HandleConnectionStatusChanged logs stream connectivity.
func (e *Engine) HandleConnectionStatusChanged(_ context.Context, ev domain.ConnectionStatusChanged) error {
	if ev.Connected {
		e.logger.Info("stream connected", zap.String("endpoint", ev.Endpoint))
		return nil
	}
	e.logger.Warn("stream disconnected", zap.String("endpoint", ev.Endpoint), zap.String("reason", ev.Reason))
	return nil
}

// HandleStatsUpdate logs the periodic summary.
func (e *Engine) HandleStatsUpdate(_ context.Context, ev domain.StatsUpdate) error {
	e.logger.Info("stats",
		zap.Int("tracked", ev.TokensTracked),
		zap.Int("successful_buys", ev.SuccessfulBuys),
		zap.Int("failed_buys", ev.FailedBuys),
		zap.Duration("uptime", ev.Uptime),
	)
	return nil
}
