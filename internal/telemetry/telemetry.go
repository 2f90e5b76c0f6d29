package telemetry

import (
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Telemetry aggregates the service metrics. A nil *Telemetry is a valid
// no-op receiver so tests can skip metrics wiring.
type Telemetry struct {
	requests     *prometheus.CounterVec
	fallbacks    *prometheus.CounterVec
	cancels      prometheus.Counter
	duration     *prometheus.HistogramVec
	verification *prometheus.CounterVec
	retrieved    prometheus.Histogram

	costMu    sync.Mutex
	totalCost float64
	costGauge prometheus.Gauge

	logger *log.Logger
}

// New registers the service metrics on the given registerer.
func New(reg prometheus.Registerer) *Telemetry {
	factory := promauto.With(reg)
	return &Telemetry{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "campusqa_requests_total",
			Help: "Questions answered, by chosen path.",
		}, []string{"path"}),
		fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "campusqa_fallbacks_total",
			Help: "Path fallbacks, by reason class.",
		}, []string{"reason"}),
		cancels: factory.NewCounter(prometheus.CounterOpts{
			Name: "campusqa_cancellations_total",
			Help: "Requests cancelled mid-pipeline.",
		}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "campusqa_request_duration_seconds",
			Help:    "End-to-end answer latency, by chosen path.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"}),
		verification: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "campusqa_verification_total",
			Help: "Guardrail verdicts.",
		}, []string{"verdict"}),
		retrieved: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "campusqa_retrieved_candidates",
			Help:    "Candidates surviving retrieval per request.",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
		}),
		costGauge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "campusqa_llm_cost_dollars_total",
			Help: "Accumulated estimated LLM spend.",
		}),
		logger: log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
	}
}

// ObserveRequest records one answered question.
func (t *Telemetry) ObserveRequest(path string, duration time.Duration) {
	if t == nil {
		return
	}
	t.requests.WithLabelValues(path).Inc()
	t.duration.WithLabelValues(path).Observe(duration.Seconds())
}

// ObserveFallback records a path fallback.
func (t *Telemetry) ObserveFallback(reason string) {
	if t == nil {
		return
	}
	t.fallbacks.WithLabelValues(reason).Inc()
}

// ObserveCancellation records a cooperative cancellation.
func (t *Telemetry) ObserveCancellation() {
	if t == nil {
		return
	}
	t.cancels.Inc()
}

// ObserveVerification records a guardrail verdict.
func (t *Telemetry) ObserveVerification(verified bool) {
	if t == nil {
		return
	}
	verdict := "rejected"
	if verified {
		verdict = "verified"
	}
	t.verification.WithLabelValues(verdict).Inc()
}

// ObserveRetrieved records how many candidates retrieval produced.
func (t *Telemetry) ObserveRetrieved(n int) {
	if t == nil {
		return
	}
	t.retrieved.Observe(float64(n))
}

// AddCost accumulates estimated LLM spend in dollars.
func (t *Telemetry) AddCost(dollars float64) {
	if t == nil || dollars <= 0 {
		return
	}
	t.costMu.Lock()
	t.totalCost += dollars
	total := t.totalCost
	t.costMu.Unlock()
	t.costGauge.Set(total)
}

// TotalCost reports the accumulated spend.
func (t *Telemetry) TotalCost() float64 {
	if t == nil {
		return 0
	}
	t.costMu.Lock()
	defer t.costMu.Unlock()
	return t.totalCost
}
