// Package metrics exposes Prometheus collectors for the signal engine and
// the /healthz, /metrics HTTP surface.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"trend-signals/internal/model"
)

// Metrics holds all Prometheus metrics for the signal engine. It implements
// pipeline.Hooks.
type Metrics struct {
	Registry *prometheus.Registry

	EventsTotal       *prometheus.CounterVec // labels: kind
	EventsRejected    *prometheus.CounterVec // labels: kind
	PipelineDur       prometheus.Histogram
	TrackedSymbols    prometheus.Gauge
	EvictionsTotal    prometheus.Counter
	SignalTransitions *prometheus.CounterVec // labels: from, to
	Recommendations   *prometheus.CounterVec // labels: recommendation

	// Ingest
	RingBufOverflow      prometheus.Counter
	PELMessagesReclaimed prometheus.Counter
	WarmupCandles        prometheus.Counter

	// Output
	PublishFailures          prometheus.Counter
	PublishThrottled         prometheus.Counter
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
	RedisBufferedWrites      prometheus.Counter
	FanoutDropsTotal         *prometheus.CounterVec // labels: sink
	WSClients                prometheus.Gauge
	AlertsTotal              *prometheus.CounterVec // labels: result
}

// NewMetrics creates all collectors on a private registry, together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalengine_events_total",
			Help: "Events processed by the pipeline (by kind)",
		}, []string{"kind"}),
		EventsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalengine_events_rejected_total",
			Help: "Malformed events rejected before processing (by kind)",
		}, []string{"kind"}),
		PipelineDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "signalengine_pipeline_duration_seconds",
			Help:    "Full pipeline latency per event",
			Buckets: []float64{0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),
		TrackedSymbols: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalengine_symbols_tracked",
			Help: "Symbols with live pipeline state",
		}),
		EvictionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalengine_evictions_total",
			Help: "Symbols evicted after inactivity",
		}),
		SignalTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalengine_signal_transitions_total",
			Help: "Signal persistence state transitions",
		}, []string{"from", "to"}),
		Recommendations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalengine_recommendations_total",
			Help: "Analysis records produced (by recommendation)",
		}, []string{"recommendation"}),

		RingBufOverflow: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalengine_ringbuf_overflow_total",
			Help: "Ring buffer push overflows (events left pending)",
		}),
		PELMessagesReclaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalengine_pel_messages_reclaimed_total",
			Help: "Messages reclaimed from dead consumers via XCLAIM",
		}),
		WarmupCandles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalengine_warmup_candles_total",
			Help: "Historical candles replayed during warm-up",
		}),

		PublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalengine_publish_failures_total",
			Help: "Analysis publishes that failed",
		}),
		PublishThrottled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalengine_publish_throttled_total",
			Help: "Analysis publishes skipped by the per-symbol rate limit",
		}),
		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalengine_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalengine_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		RedisBufferedWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalengine_redis_buffered_writes_total",
			Help: "Analysis writes held locally while the circuit was open",
		}),
		FanoutDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalengine_fanout_drops_total",
			Help: "Analysis records dropped by the bus per sink",
		}, []string{"sink"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalengine_ws_clients",
			Help: "Connected WebSocket clients",
		}),
		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalengine_alerts_total",
			Help: "Recommendation-change alerts by delivery result",
		}, []string{"result"}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.EventsTotal,
		m.EventsRejected,
		m.PipelineDur,
		m.TrackedSymbols,
		m.EvictionsTotal,
		m.SignalTransitions,
		m.Recommendations,
		m.RingBufOverflow,
		m.PELMessagesReclaimed,
		m.WarmupCandles,
		m.PublishFailures,
		m.PublishThrottled,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.RedisBufferedWrites,
		m.FanoutDropsTotal,
		m.WSClients,
		m.AlertsTotal,
	)

	return m
}

// EventProcessed implements pipeline.Hooks.
func (m *Metrics) EventProcessed(kind model.EventKind, elapsed time.Duration) {
	m.EventsTotal.WithLabelValues(kind.String()).Inc()
	m.PipelineDur.Observe(elapsed.Seconds())
}

// EventRejected implements pipeline.Hooks.
func (m *Metrics) EventRejected(kind model.EventKind) {
	m.EventsRejected.WithLabelValues(kind.String()).Inc()
}

// SignalTransition implements pipeline.Hooks.
func (m *Metrics) SignalTransition(from, to model.SignalState) {
	m.SignalTransitions.WithLabelValues(string(from), string(to)).Inc()
}

// Recommendation implements pipeline.Hooks.
func (m *Metrics) Recommendation(rec model.Recommendation) {
	m.Recommendations.WithLabelValues(string(rec)).Inc()
}

// SymbolsTracked implements pipeline.Hooks.
func (m *Metrics) SymbolsTracked(n int) { m.TrackedSymbols.Set(float64(n)) }

// SymbolsEvicted implements pipeline.Hooks.
func (m *Metrics) SymbolsEvicted(n int) { m.EvictionsTotal.Add(float64(n)) }
