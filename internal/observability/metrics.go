package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Invocations            *prometheus.CounterVec
	StageLatency           *prometheus.HistogramVec
	MemoryWrites           *prometheus.CounterVec
	ClassificationFallback prometheus.Counter
	MemoryUpsertFailures   prometheus.Counter
	ReferencesIngested     *prometheus.CounterVec
	QuizTransitions        *prometheus.CounterVec
}

// NewMetrics registers the instruments with reg; pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Invocations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocations_total",
			Help:      "Tutor pipeline invocations by outcome.",
		}, []string{"outcome"}),
		StageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_latency_ms",
			Help:      "Latency of each pipeline node in milliseconds.",
			Buckets:   []float64{5, 20, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}, []string{"stage"}),
		MemoryWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_writes_total",
			Help:      "Committed exchanges by classification category.",
		}, []string{"category"}),
		ClassificationFallback: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classification_fallbacks_total",
			Help:      "Classifier outputs that could not be parsed.",
		}),
		MemoryUpsertFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_upsert_failures_total",
			Help:      "Long-term memory points that could not be stored.",
		}),
		ReferencesIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reference_chunks_total",
			Help:      "Reference chunks processed by ingestion, by result.",
		}, []string{"result"}),
		QuizTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quiz_transitions_total",
			Help:      "Quiz session state transitions by target state.",
		}, []string{"state"}),
	}
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageLatency.WithLabelValues(stage).Observe(float64(d.Milliseconds()))
}

func (m *Metrics) CountInvocation(outcome string) {
	if m == nil {
		return
	}
	m.Invocations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) CountMemoryWrite(category string) {
	if m == nil {
		return
	}
	m.MemoryWrites.WithLabelValues(category).Inc()
}

func (m *Metrics) CountClassificationFallback() {
	if m == nil {
		return
	}
	m.ClassificationFallback.Inc()
}

func (m *Metrics) CountUpsertFailure() {
	if m == nil {
		return
	}
	m.MemoryUpsertFailures.Inc()
}

func (m *Metrics) CountReferenceChunk(result string) {
	if m == nil {
		return
	}
	m.ReferencesIngested.WithLabelValues(result).Inc()
}

func (m *Metrics) CountQuizTransition(state string) {
	if m == nil {
		return
	}
	m.QuizTransitions.WithLabelValues(state).Inc()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
