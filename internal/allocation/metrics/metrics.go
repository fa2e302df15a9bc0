package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the allocation ledger.
type Metrics struct {
	Reservations *prometheus.CounterVec
	Releases     prometheus.Counter
	Moves        *prometheus.CounterVec
	OpDuration   *prometheus.HistogramVec
}

// Outcome labels.
const (
	OutcomeReserved  = "reserved"
	OutcomeQuotaFull = "quota_full"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"
)

// New registers the allocation metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Reservations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "quorum_seat_reservations_total",
			Help: "Seat reservation attempts by category and outcome",
		}, []string{"category", "outcome"}),
		Releases: f.NewCounter(prometheus.CounterOpts{
			Name: "quorum_seat_releases_total",
			Help: "Total number of seats released",
		}),
		Moves: f.NewCounterVec(prometheus.CounterOpts{
			Name: "quorum_seat_moves_total",
			Help: "Seat category moves by outcome",
		}, []string{"outcome"}),
		OpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quorum_ledger_operation_duration_seconds",
			Help:    "Duration of ledger operations, including the commit callback",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"op"}),
	}
}

// ObserveReservation records a reservation attempt. Safe on a nil receiver.
func (m *Metrics) ObserveReservation(category, outcome string) {
	if m == nil {
		return
	}
	m.Reservations.WithLabelValues(category, outcome).Inc()
}

func (m *Metrics) IncrementReleases() {
	if m == nil {
		return
	}
	m.Releases.Inc()
}

func (m *Metrics) ObserveMove(outcome string) {
	if m == nil {
		return
	}
	m.Moves.WithLabelValues(outcome).Inc()
}

// ObserveOp records the duration of op. Call with time.Now() at the start of
// the operation.
func (m *Metrics) ObserveOp(op string, start time.Time) {
	if m == nil {
		return
	}
	m.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
