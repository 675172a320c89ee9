// Package journal persists engine events off the decision path. The engine
// hands events over without blocking; a separate goroutine writes them.
package journal

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Kernlog/pump-sniper/internal/domain"
	"github.com/Kernlog/pump-sniper/internal/execution"
	"github.com/Kernlog/pump-sniper/internal/idhash"
	"github.com/Kernlog/pump-sniper/internal/observability"
	"github.com/Kernlog/pump-sniper/internal/queue"
	"github.com/Kernlog/pump-sniper/internal/storage"
)

// DefaultBatchSize bounds how many snapshots are buffered before a flush.
const DefaultBatchSize = 100

// flushTimeout bounds the final flush after cancellation.
const flushTimeout = 5 * time.Second

// Stores are the journal backends.
type Stores struct {
	Tokens    storage.TokenStore
	Attempts  storage.BuyAttemptStore
	Snapshots storage.MarketSnapshotStore
}

// Journal writes tokens, market snapshots and buy attempts.
type Journal struct {
	stores    Stores
	queue     *queue.Queue[domain.Event]
	logger    *zap.Logger
	metrics   *observability.Metrics
	batchSize int

	pending  []*domain.MarketCapPoint
	attempts map[string]int // attempts journaled per mint
}

// Option configures Journal.
type Option func(*Journal)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(j *Journal) {
		j.logger = l
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(j *Journal) {
		j.metrics = m
	}
}

// WithBatchSize sets the snapshot batch size.
func WithBatchSize(n int) Option {
	return func(j *Journal) {
		if n > 0 {
			j.batchSize = n
		}
	}
}

// New creates a journal over stores.
func New(stores Stores, opts ...Option) *Journal {
	j := &Journal{
		stores:    stores,
		queue:     queue.New[domain.Event](),
		logger:    zap.NewNop(),
		batchSize: DefaultBatchSize,
		attempts:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(j)
	}
	j.logger = j.logger.With(zap.String("component", "journal"))
	return j
}

// Record enqueues ev. It never blocks; events recorded after Close are dropped.
func (j *Journal) Record(ev domain.Event) {
	if err := j.queue.Push(ev); err != nil {
		if domain.IsCritical(ev) {
			j.logger.Warn("journal closed, dropping buy event", zap.String("kind", string(ev.Kind())))
			return
		}
		j.logger.Debug("journal closed, dropping event", zap.String("kind", string(ev.Kind())))
	}
}

// Close stops accepting events. Run drains what is queued and returns.
func (j *Journal) Close() {
	j.queue.Close()
}

// Run writes queued events until Close (nil) or cancellation (ctx.Err()).
// Buffered snapshots are flushed before returning in both cases.
func (j *Journal) Run(ctx context.Context) error {
	for {
		ev, err := j.queue.Pop(ctx)
		if err != nil {
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
			j.flush(flushCtx)
			cancel()
			if errors.Is(err, queue.ErrClosed) {
				return nil
			}
			return err
		}

		j.write(ctx, ev)

		if len(j.pending) >= j.batchSize || j.queue.Len() == 0 {
			j.flush(ctx)
		}
	}
}

func (j *Journal) write(ctx context.Context, ev domain.Event) {
	switch e := ev.(type) {
	case domain.TokenCreated:
		j.insertToken(ctx, domain.NewDiscoveredToken(e))
	case domain.MarketCapUpdated:
		point := domain.NewMarketCapPoint(e)
		point.SnapshotID = idhash.ComputeSnapshotID(point.Mint, point.TimestampMs, point.MarketCapLamports)
		j.pending = append(j.pending, point)
	case domain.BuyExecuted:
		j.insertAttempt(ctx, submittedAttempt(e, j.nextAttempt(e.Token.Mint.String())))
	case domain.BuyFailed:
		j.insertAttempt(ctx, failedAttempt(e, j.nextAttempt(e.Token.Mint.String())))
	default:
		// Connection, stats and trigger events are not persisted.
	}
}

func (j *Journal) insertToken(ctx context.Context, t *domain.DiscoveredToken) {
	if j.stores.Tokens == nil {
		return
	}
	start := time.Now()
	err := j.stores.Tokens.Insert(ctx, t)
	if errors.Is(err, storage.ErrDuplicateKey) {
		j.logger.Debug("token already journaled", zap.String("mint", t.Mint))
		err = nil
	}
	j.metrics.RecordDBQuery("tokens", "insert", time.Since(start), err)
	if err != nil {
		j.logger.Error("journal token", zap.String("mint", t.Mint), zap.Error(err))
	}
}

func (j *Journal) insertAttempt(ctx context.Context, a *domain.BuyAttempt) {
	if j.stores.Attempts == nil {
		return
	}
	start := time.Now()
	err := j.stores.Attempts.Insert(ctx, a)
	j.metrics.RecordDBQuery("buy_attempts", "insert", time.Since(start), err)
	if err != nil {
		j.logger.Error("journal buy attempt",
			zap.String("attempt_id", a.AttemptID),
			zap.String("mint", a.Mint),
			zap.Error(err),
		)
	}
}

func (j *Journal) flush(ctx context.Context) {
	if len(j.pending) == 0 {
		return
	}
	batch := j.pending
	j.pending = nil
	if j.stores.Snapshots == nil {
		return
	}

	start := time.Now()
	err := j.stores.Snapshots.InsertBulk(ctx, batch)
	j.metrics.RecordDBQuery("market_snapshots", "insert_bulk", time.Since(start), err)
	if err != nil {
		j.logger.Error("journal market snapshots", zap.Int("count", len(batch)), zap.Error(err))
	}
}

func (j *Journal) nextAttempt(mint string) int {
	j.attempts[mint]++
	return j.attempts[mint]
}

func submittedAttempt(e domain.BuyExecuted, seq int) *domain.BuyAttempt {
	mint := e.Token.Mint.String()
	triggered := e.TriggeredAt.UnixMilli()
	sig := e.Signature.String()
	return &domain.BuyAttempt{
		AttemptID:   idhash.ComputeAttemptID(mint, e.Amount, triggered, seq),
		Mint:        mint,
		Amount:      e.Amount,
		Status:      domain.BuyStatusSubmitted,
		Signature:   &sig,
		TriggeredAt: triggered,
		FinishedAt:  e.ExecutedAt.UnixMilli(),
	}
}

func failedAttempt(e domain.BuyFailed, seq int) *domain.BuyAttempt {
	mint := e.Token.Mint.String()
	triggered := e.TriggeredAt.UnixMilli()
	a := &domain.BuyAttempt{
		AttemptID:   idhash.ComputeAttemptID(mint, e.Amount, triggered, seq),
		Mint:        mint,
		Amount:      e.Amount,
		Status:      domain.BuyStatusFailed,
		TriggeredAt: triggered,
		FinishedAt:  e.FailedAt.UnixMilli(),
	}
	if e.Err != nil {
		kind := execution.ErrorKind(e.Err)
		text := e.Err.Error()
		a.ErrorKind = &kind
		a.ErrorText = &text
	}
	return a
}
