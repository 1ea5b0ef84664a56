package diagnosis

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the diagnosis subsystem.
type Metrics struct {
	OrchestrationsTotal *prometheus.CounterVec
	OrchestrationTime   *prometheus.HistogramVec
	SLAMissesTotal      prometheus.Counter
	AdapterCallsTotal   *prometheus.CounterVec
	AdapterLatency      *prometheus.HistogramVec
	FallbacksTotal      prometheus.Counter
	CacheLookupsTotal   *prometheus.CounterVec
	ConsensusTotal      prometheus.Counter
}

// NewMetrics registers and returns diagnosis metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OrchestrationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "verdict_orchestrations_total",
			Help: "Total orchestration calls by provenance.",
		}, []string{"provenance"}),
		OrchestrationTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "verdict_orchestration_duration_seconds",
			Help:    "Duration of orchestration calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms .. ~25s
		}, []string{"provenance"}),
		SLAMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "verdict_sla_misses_total",
			Help: "Orchestration calls that exceeded the latency budget.",
		}),
		AdapterCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "verdict_adapter_calls_total",
			Help: "Total adapter calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		AdapterLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "verdict_adapter_latency_seconds",
			Help:    "Latency of individual adapter calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms .. ~25s
		}, []string{"provider"}),
		FallbacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "verdict_fallbacks_total",
			Help: "Orchestration calls answered by the fallback analyzer.",
		}),
		CacheLookupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "verdict_cache_lookups_total",
			Help: "Response cache lookups by result (hit/miss).",
		}, []string{"result"}),
		ConsensusTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "verdict_consensus_merges_total",
			Help: "Comparison-mode consensus merges performed.",
		}),
	}

	reg.MustRegister(
		m.OrchestrationsTotal,
		m.OrchestrationTime,
		m.SLAMissesTotal,
		m.AdapterCallsTotal,
		m.AdapterLatency,
		m.FallbacksTotal,
		m.CacheLookupsTotal,
		m.ConsensusTotal,
	)

	return m
}

// Hooks returns a CoordinatorHooks that increments the corresponding metrics.
func (m *Metrics) Hooks() CoordinatorHooks {
	return CoordinatorHooks{
		OnAdapterResult: func(provider string, success bool, class ErrorClass, latency time.Duration) {
			outcome := "success"
			if !success {
				outcome = string(class)
			}
			m.AdapterCallsTotal.WithLabelValues(provider, outcome).Inc()
			m.AdapterLatency.WithLabelValues(provider).Observe(latency.Seconds())
		},
		OnOutcome: func(provenance string, slaMet bool, elapsed time.Duration) {
			m.OrchestrationsTotal.WithLabelValues(provenance).Inc()
			m.OrchestrationTime.WithLabelValues(provenance).Observe(elapsed.Seconds())
			if provenance == ProvenanceFallback {
				m.FallbacksTotal.Inc()
			}
			if !slaMet {
				m.SLAMissesTotal.Inc()
			}
		},
	}
}

// ObserveCacheLookup records a response-cache hit or miss.
func (m *Metrics) ObserveCacheLookup(hit bool) {
	if hit {
		m.CacheLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	m.CacheLookupsTotal.WithLabelValues("miss").Inc()
}
