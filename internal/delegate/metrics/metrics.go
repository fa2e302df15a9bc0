package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the delegate roster.
// Tracks registration outcomes, deletions with cleanup warnings, and the
// duration of coordinator operations.
type Metrics struct {
	Registrations   *prometheus.CounterVec
	Deletions       prometheus.Counter
	CleanupWarnings *prometheus.CounterVec
	Promotions      prometheus.Counter
	Validations     prometheus.Counter
	OpDuration      *prometheus.HistogramVec
}

// Registration outcome labels.
const (
	OutcomeRegistered = "registered"
	OutcomeDuplicate  = "duplicate_person"
	OutcomeQuotaFull  = "quota_full"
	OutcomeRejected   = "rejected"
	OutcomeError      = "error"
)

// New registers the delegate metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Registrations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "quorum_delegate_registrations_total",
			Help: "Delegate registration attempts by kind and outcome",
		}, []string{"kind", "outcome"}),
		Deletions: f.NewCounter(prometheus.CounterOpts{
			Name: "quorum_delegate_deletions_total",
			Help: "Total number of delegates deleted",
		}),
		CleanupWarnings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "quorum_delegate_cleanup_warnings_total",
			Help: "Secondary cleanups that failed after a deletion, by step",
		}, []string{"step"}),
		Promotions: f.NewCounter(prometheus.CounterOpts{
			Name: "quorum_delegate_promotions_total",
			Help: "Delegates mirrored into a national roster",
		}),
		Validations: f.NewCounter(prometheus.CounterOpts{
			Name: "quorum_delegate_validations_total",
			Help: "Full registrations completed",
		}),
		OpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quorum_delegate_operation_duration_seconds",
			Help:    "Duration of delegate coordinator operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"op"}),
	}
}

func (m *Metrics) ObserveRegistration(kind, outcome string) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) IncrementDeletions() {
	if m == nil {
		return
	}
	m.Deletions.Inc()
}

func (m *Metrics) IncrementCleanupWarning(step string) {
	if m == nil {
		return
	}
	m.CleanupWarnings.WithLabelValues(step).Inc()
}

func (m *Metrics) IncrementPromotions() {
	if m == nil {
		return
	}
	m.Promotions.Inc()
}

func (m *Metrics) IncrementValidations() {
	if m == nil {
		return
	}
	m.Validations.Inc()
}

// ObserveOp records the duration of op. Call with time.Now() at the start.
func (m *Metrics) ObserveOp(op string, start time.Time) {
	if m == nil {
		return
	}
	m.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
