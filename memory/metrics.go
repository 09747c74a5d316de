package memory

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the Prometheus instruments of the memory system.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Archives            *prometheus.CounterVec
	SummarizerFallbacks prometheus.Counter
	StoreInserts        *prometheus.CounterVec
	Recalls             prometheus.Counter
	RecalledMemories    *prometheus.CounterVec
	ArchiveLatency      prometheus.Histogram
}

// NewMetrics registers the memory instruments with reg.
// Pass prometheus.DefaultRegisterer to expose them on the default handler.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Archives: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_archives_total",
			Help:      "Archival attempts by mode and outcome.",
		}, []string{"mode", "outcome"}),
		SummarizerFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_summarizer_fallbacks_total",
			Help:      "Summaries produced by the local fallback.",
		}),
		StoreInserts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_store_inserts_total",
			Help:      "Store insert attempts by outcome.",
		}, []string{"outcome"}),
		Recalls: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_recalls_total",
			Help:      "Recall queries served.",
		}),
		RecalledMemories: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_recalled_total",
			Help:      "Recalled records by relevance bucket.",
		}, []string{"bucket"}),
		ArchiveLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "memory_archive_latency_ms",
			Help:      "Archival latency in milliseconds.",
			Buckets:   []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}),
	}
}

func (m *Metrics) archive(mode EvictionMode, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Archives.WithLabelValues(mode.String(), outcome).Inc()
	m.ArchiveLatency.Observe(float64(elapsed.Milliseconds()))
}

func (m *Metrics) fallback() {
	if m == nil {
		return
	}
	m.SummarizerFallbacks.Inc()
}

func (m *Metrics) insert(outcome string) {
	if m == nil {
		return
	}
	m.StoreInserts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) recalled(b Bucket) {
	if m == nil {
		return
	}
	m.RecalledMemories.WithLabelValues(string(b)).Inc()
}

func (m *Metrics) recall() {
	if m == nil {
		return
	}
	m.Recalls.Inc()
}
