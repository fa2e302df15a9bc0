// Package outbox relays audit entries written to the outbox table onto Kafka.
package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"quorum/internal/platform/kafka"
)

// Entry is one row of the outbox table.
type Entry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// Store hands pending entries to a callback. Entries are marked published
// only when the callback succeeds; otherwise they stay pending.
type Store interface {
	ProcessPending(ctx context.Context, limit int, fn func(ctx context.Context, entries []Entry) error) (int, error)
}

// Sink receives outbox entries as Kafka messages.
type Sink interface {
	Produce(ctx context.Context, msgs []kafka.Message) error
}

// Worker polls the store and forwards pending entries to the sink.
type Worker struct {
	store    Store
	sink     Sink
	interval time.Duration
	batch    int
	logger   *slog.Logger

	published prometheus.Counter
	failures  prometheus.Counter
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batch = n
		}
	}
}

// WithRegisterer registers the worker counters on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(w *Worker) {
		f := promauto.With(reg)
		w.published = f.NewCounter(prometheus.CounterOpts{
			Name: "quorum_outbox_published_total",
			Help: "Outbox entries published to Kafka",
		})
		w.failures = f.NewCounter(prometheus.CounterOpts{
			Name: "quorum_outbox_failures_total",
			Help: "Outbox publish batches that failed and were left pending",
		})
	}
}

func NewWorker(store Store, sink Sink, opts ...Option) *Worker {
	w := &Worker{
		store:    store,
		sink:     sink,
		interval: 2 * time.Second,
		batch:    100,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls until ctx is cancelled. A full batch triggers an immediate
// follow-up poll.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		n, err := w.Tick(ctx)
		if err != nil && ctx.Err() == nil {
			w.logger.WarnContext(ctx, "outbox publish failed", "error", err)
		}
		if err == nil && n == w.batch {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick publishes one batch and returns how many entries were published.
func (w *Worker) Tick(ctx context.Context) (int, error) {
	n, err := w.store.ProcessPending(ctx, w.batch, func(ctx context.Context, entries []Entry) error {
		return w.sink.Produce(ctx, toMessages(entries))
	})
	if err != nil {
		if w.failures != nil {
			w.failures.Inc()
		}
		return 0, err
	}
	if w.published != nil {
		w.published.Add(float64(n))
	}
	return n, nil
}

func toMessages(entries []Entry) []kafka.Message {
	msgs := make([]kafka.Message, 0, len(entries))
	for _, e := range entries {
		msgs = append(msgs, kafka.Message{
			Key:   []byte(e.AggregateID),
			Value: e.Payload,
			Headers: map[string]string{
				"event_type":     e.EventType,
				"aggregate_type": e.AggregateType,
				"outbox_id":      e.ID.String(),
			},
		})
	}
	return msgs
}
