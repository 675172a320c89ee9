// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the sniper.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Stream metrics
	StreamState          prometheus.Gauge
	StreamConnected      prometheus.Gauge
	StreamRestarts       prometheus.Counter
	TransactionsReceived prometheus.Counter
	AccountsReceived     prometheus.Counter
	TokensDiscovered     prometheus.Counter
	DecodeErrors         *prometheus.CounterVec
	HighestSlotSeen      prometheus.Gauge

	// Decision metrics
	EventsProcessed *prometheus.CounterVec
	QueueDepth      prometheus.Gauge
	TokensTracked   prometheus.Gauge
	BuysTriggered   *prometheus.CounterVec
	BuyResults      *prometheus.CounterVec
	BuyLatency      prometheus.Histogram

	// RPC metrics
	RPCCallLatency *prometheus.HistogramVec
	RPCRetries     *prometheus.CounterVec

	// Price metrics
	SOLPriceUSD      prometheus.Gauge
	SOLPriceAge      prometheus.Gauge
	PriceFetchErrors prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastEventTimestamp prometheus.Gauge

	highestSlot atomic.Uint64
}

// NewMetrics creates a Metrics instance registered with reg.
// A nil reg uses the default Prometheus registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "pump_sniper"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		// Stream metrics
		StreamState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "state",
			Help:      "Current stream state (0=disconnected 1=connecting 2=subscribed 3=streaming 4=reconnecting)",
		}),
		StreamConnected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "connected",
			Help:      "1 while the stream subscription is live",
		}),
		StreamRestarts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "restarts_total",
			Help:      "Total number of stream restarts after a connection error",
		}),
		TransactionsReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "transactions_received_total",
			Help:      "Total number of transaction notifications received",
		}),
		AccountsReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "accounts_received_total",
			Help:      "Total number of account notifications received",
		}),
		TokensDiscovered: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "tokens_discovered_total",
			Help:      "Total number of token creations parsed",
		}),
		DecodeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "decode_errors_total",
			Help:      "Total number of payloads dropped by kind",
		}, []string{"kind"}),
		HighestSlotSeen: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "highest_slot_seen",
			Help:      "Highest Solana slot number seen",
		}),

		// Decision metrics
		EventsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "events_processed_total",
			Help:      "Total number of domain events processed by kind",
		}, []string{"kind"}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "queue_depth",
			Help:      "Number of domain events waiting in the queue",
		}),
		TokensTracked: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "tokens_tracked",
			Help:      "Number of tokens awaiting a buy decision",
		}),
		BuysTriggered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "buys_triggered_total",
			Help:      "Total number of buy triggers by decision path",
		}, []string{"path"}),
		BuyResults: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "buy_results_total",
			Help:      "Total number of buy attempts by outcome",
		}, []string{"status"}),
		BuyLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "buy_latency_seconds",
			Help:      "Time from buy trigger to submission",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),

		// RPC metrics
		RPCCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_retries_total",
			Help:      "Total number of account read retries",
		}, []string{"method"}),

		// Price metrics
		SOLPriceUSD: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "sol_price_usd",
			Help:      "Last fetched SOL price in USD",
		}),
		SOLPriceAge: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "sol_price_age_seconds",
			Help:      "Age of the SOL price served from cache",
		}),
		PriceFetchErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "fetch_errors_total",
			Help:      "Total number of failed SOL price fetches",
		}),

		// Database metrics
		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastEventTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_event_timestamp",
			Help:      "Unix timestamp of the last processed domain event",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns a /metrics handler for a specific registry.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// SetStreamState records the numeric stream state.
func (m *Metrics) SetStreamState(state int) {
	if m == nil {
		return
	}
	m.StreamState.Set(float64(state))
}

// SetConnected records stream connectivity.
func (m *Metrics) SetConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.StreamConnected.Set(1)
	} else {
		m.StreamConnected.Set(0)
	}
}

// RecordStreamRestart increments the restart counter.
func (m *Metrics) RecordStreamRestart() {
	if m == nil {
		return
	}
	m.StreamRestarts.Inc()
}

// RecordTransaction records a transaction notification at slot.
func (m *Metrics) RecordTransaction(slot uint64) {
	if m == nil {
		return
	}
	m.TransactionsReceived.Inc()
	m.updateSlot(slot)
}

// RecordAccount records an account notification at slot.
func (m *Metrics) RecordAccount(slot uint64) {
	if m == nil {
		return
	}
	m.AccountsReceived.Inc()
	m.updateSlot(slot)
}

func (m *Metrics) updateSlot(slot uint64) {
	for {
		cur := m.highestSlot.Load()
		if slot <= cur {
			return
		}
		if m.highestSlot.CompareAndSwap(cur, slot) {
			m.HighestSlotSeen.Set(float64(slot))
			return
		}
	}
}

// RecordTokenDiscovered increments the token discovery counter.
func (m *Metrics) RecordTokenDiscovered() {
	if m == nil {
		return
	}
	m.TokensDiscovered.Inc()
}

// RecordDecodeError records a dropped payload.
func (m *Metrics) RecordDecodeError(kind string) {
	if m == nil {
		return
	}
	m.DecodeErrors.WithLabelValues(kind).Inc()
}

// RecordEvent records one processed domain event.
func (m *Metrics) RecordEvent(kind string, queueDepth int) {
	if m == nil {
		return
	}
	m.EventsProcessed.WithLabelValues(kind).Inc()
	m.QueueDepth.Set(float64(queueDepth))
	m.LastEventTimestamp.Set(float64(time.Now().Unix()))
}

// SetTokensTracked records the number of tracked tokens.
func (m *Metrics) SetTokensTracked(n int) {
	if m == nil {
		return
	}
	m.TokensTracked.Set(float64(n))
}

// RecordBuyTriggered records a buy trigger on a decision path.
func (m *Metrics) RecordBuyTriggered(path string) {
	if m == nil {
		return
	}
	m.BuysTriggered.WithLabelValues(path).Inc()
}

// RecordBuyResult records the outcome of a buy attempt.
func (m *Metrics) RecordBuyResult(status string, latency time.Duration) {
	if m == nil {
		return
	}
	m.BuyResults.WithLabelValues(status).Inc()
	m.BuyLatency.Observe(latency.Seconds())
}

// RecordRPCLatency records RPC call latency.
func (m *Metrics) RecordRPCLatency(method string, d time.Duration) {
	if m == nil {
		return
	}
	m.RPCCallLatency.WithLabelValues(method).Observe(d.Seconds())
}

// RecordRPCRetry records a retried RPC read.
func (m *Metrics) RecordRPCRetry(method string) {
	if m == nil {
		return
	}
	m.RPCRetries.WithLabelValues(method).Inc()
}

// RecordSOLPrice records a successful price fetch, or a failure when err is set.
func (m *Metrics) RecordSOLPrice(price float64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.PriceFetchErrors.Inc()
		return
	}
	m.SOLPriceUSD.Set(price)
}

// SetSOLPriceAge records the age of the price last served.
func (m *Metrics) SetSOLPriceAge(age time.Duration) {
	if m == nil {
		return
	}
	m.SOLPriceAge.Set(age.Seconds())
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(d.Seconds())
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
