package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the review workflow engine.
type Metrics struct {
	TransitionsTotal   *prometheus.CounterVec
	SamplingBranches   *prometheus.CounterVec
	ConflictsTotal     prometheus.Counter
	ExecuteDuration    prometheus.Histogram
	RecordsImported    prometheus.Counter
	PayloadEditsTotal  prometheus.Counter
	ReassignmentsTotal prometheus.Counter
}

// New creates a Metrics instance with all workflow metrics registered.
func New() *Metrics {
	return &Metrics{
		TransitionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "caseflow_transitions_total",
			Help: "Workflow transitions by action and outcome",
		}, []string{"action", "outcome"}),
		SamplingBranches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "caseflow_sampling_branches_total",
			Help: "Sampling gate branch decisions",
		}, []string{"branch"}),
		ConflictsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caseflow_transition_conflicts_total",
			Help: "Transitions that lost a concurrent-modification race",
		}),
		ExecuteDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "caseflow_transition_execute_duration_seconds",
			Help:    "Duration of transition engine Execute calls",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		RecordsImported: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caseflow_records_imported_total",
			Help: "Records created from upstream survey responses",
		}),
		PayloadEditsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caseflow_payload_edits_total",
			Help: "Payload field edits by interviewers",
		}),
		ReassignmentsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caseflow_reassignments_total",
			Help: "Manual record reassignments",
		}),
	}
}

// ObserveExecute records the duration of one Execute call.
// Call with time.Now() captured at the start of the operation.
func (m *Metrics) ObserveExecute(start time.Time) {
	m.ExecuteDuration.Observe(time.Since(start).Seconds())
}

// IncTransition records a transition attempt outcome ("applied", "rejected"
// or an error code).
func (m *Metrics) IncTransition(action, outcome string) {
	m.TransitionsTotal.WithLabelValues(action, outcome).Inc()
}

// IncSamplingBranch records which way the sampling gate went.
func (m *Metrics) IncSamplingBranch(branch string) {
	m.SamplingBranches.WithLabelValues(branch).Inc()
}
