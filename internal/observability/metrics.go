package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "phonechat"

// Metrics holds the Prometheus collectors for the chat pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	chatOutcomes       *prometheus.CounterVec
	guardDecisions     *prometheus.CounterVec
	completionDuration *prometheus.HistogramVec
	candidates         prometheus.Histogram
	enforcerRemovals   *prometheus.CounterVec
	rateLimited        prometheus.Counter
}

// NewMetrics registers the collectors on reg. Pass prometheus.NewRegistry()
// in tests to avoid duplicate registration on the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		chatOutcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chat_requests_total",
				Help:      "Chat requests by outcome",
			},
			[]string{"outcome"}, // answered, no_match, rejected, rate_limited, invalid, failed, cancelled
		),
		guardDecisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "guard_decisions_total",
				Help:      "Input guard decisions by source and verdict",
			},
			[]string{"source", "valid"},
		),
		completionDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "completion_duration_seconds",
				Help:      "Duration of completion service calls in seconds",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"kind", "status"}, // kind: classify, complete
		),
		candidates: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "filter_candidates",
				Help:      "Number of catalog entries passed to the prompt",
				Buckets:   []float64{0, 1, 2, 3, 5, 8, 10},
			},
		),
		enforcerRemovals: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "enforcer_removals_total",
				Help:      "Fragments removed from completions by pass",
			},
			[]string{"pass"}, // truth, tone
		),
		rateLimited: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_total",
				Help:      "Requests rejected by the rate limiter",
			},
		),
	}
}

// ChatOutcome counts one finished chat request.
func (m *Metrics) ChatOutcome(outcome string) {
	if m == nil {
		return
	}
	m.chatOutcomes.WithLabelValues(outcome).Inc()
}

// GuardDecision counts one input guard verdict.
func (m *Metrics) GuardDecision(source string, valid bool) {
	if m == nil {
		return
	}
	v := "false"
	if valid {
		v = "true"
	}
	m.guardDecisions.WithLabelValues(source, v).Inc()
}

// ObserveCompletion records the latency of a completion service call.
func (m *Metrics) ObserveCompletion(kind string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.completionDuration.WithLabelValues(kind, status).Observe(d.Seconds())
}

// ObserveCandidates records how many phones survived filtering.
func (m *Metrics) ObserveCandidates(n int) {
	if m == nil {
		return
	}
	m.candidates.Observe(float64(n))
}

// EnforcerRemovals counts fragments removed by the output enforcer.
func (m *Metrics) EnforcerRemovals(truth, tone int) {
	if m == nil {
		return
	}
	m.enforcerRemovals.WithLabelValues("truth").Add(float64(truth))
	m.enforcerRemovals.WithLabelValues("tone").Add(float64(tone))
}

// RateLimited counts one rejected request.
func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}
