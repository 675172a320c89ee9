// Package pricing converts lamport market caps to USD using a cached SOL price.
package pricing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Kernlog/pump-sniper/internal/observability"
)

// Fetcher retrieves a fresh SOL price in USD.
type Fetcher interface {
	FetchSOLPrice(ctx context.Context) (decimal.Decimal, error)
}

var lamportsPerSOL = decimal.NewFromInt(1_000_000_000)

// Service answers price questions from its cache, fetching on a miss.
// Concurrent misses share one fetch.
type Service struct {
	fetcher Fetcher
	cache   *Cache
	timeout time.Duration
	logger  *zap.Logger
	metrics *observability.Metrics
	group   singleflight.Group
}

// Option configures Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService creates a Service. Every fetch is bounded by timeout.
func NewService(fetcher Fetcher, cache *Cache, timeout time.Duration, opts ...Option) *Service {
	s := &Service{
		fetcher: fetcher,
		cache:   cache,
		timeout: timeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SOLPriceUSD returns the SOL price, from cache when fresh.
func (s *Service) SOLPriceUSD(ctx context.Context) (decimal.Decimal, error) {
	if price, ok := s.cache.Get(); ok {
		if age, ok := s.cache.Age(); ok {
			s.metrics.SetSOLPriceAge(age)
		}
		return price, nil
	}
	return s.Refresh(ctx)
}

// Refresh fetches a new price and stores it in the cache.
func (s *Service) Refresh(ctx context.Context) (decimal.Decimal, error) {
	v, err, _ := s.group.Do("sol", func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		price, err := s.fetcher.FetchSOLPrice(fetchCtx)
		f, _ := price.Float64()
		s.metrics.RecordSOLPrice(f, err)
		if err != nil {
			return decimal.Zero, err
		}

		s.cache.Set(price)
		s.metrics.SetSOLPriceAge(0)
		s.logger.Info("sol price updated", zap.String("usd", price.StringFixed(2)))
		return price, nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return v.(decimal.Decimal), nil
}

// MarketCapUSD converts a market cap in lamports to USD.
func (s *Service) MarketCapUSD(ctx context.Context, lamports uint64) (decimal.Decimal, error) {
	price, err := s.SOLPriceUSD(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return LamportsToUSD(lamports, price), nil
}

// LamportsToUSD converts lamports to USD at price per SOL.
func LamportsToUSD(lamports uint64, price decimal.Decimal) decimal.Decimal {
	return decimal.NewFromUint64(lamports).Div(lamportsPerSOL).Mul(price)
}
