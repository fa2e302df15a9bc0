package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"quorum/internal/platform/kafka"
)

type fakeStore struct {
	mu        sync.Mutex
	pending   []Entry
	published []Entry
}

func (s *fakeStore) ProcessPending(ctx context.Context, limit int, fn func(context.Context, []Entry) error) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := min(limit, len(s.pending))
	if n == 0 {
		return 0, nil
	}
	batch := append([]Entry(nil), s.pending[:n]...)
	if err := fn(ctx, batch); err != nil {
		return 0, err
	}
	s.pending = s.pending[n:]
	s.published = append(s.published, batch...)
	return n, nil
}

func (s *fakeStore) publishedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.published)
}

type fakeSink struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (s *fakeSink) Produce(_ context.Context, msgs []kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.msgs = append(s.msgs, msgs...)
	return nil
}

func entries(n int) []Entry {
	out := make([]Entry, n)
	for i := range out {
		out[i] = Entry{
			ID:            uuid.New(),
			AggregateType: "subject",
			AggregateID:   "delegate-" + string(rune('a'+i%26)),
			EventType:     "delegate_registered",
			Payload:       []byte(`{}`),
			CreatedAt:     time.Now(),
		}
	}
	return out
}

func TestWorker_TickPublishesBatch(t *testing.T) {
	store := &fakeStore{pending: entries(3)}
	sink := &fakeSink{}
	reg := prometheus.NewRegistry()
	w := NewWorker(store, sink, WithBatchSize(2), WithRegisterer(reg))

	n, err := w.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, sink.msgs, 2)
	assert.Equal(t, "delegate_registered", sink.msgs[0].Headers["event_type"])
	assert.Equal(t, []byte("delegate-a"), sink.msgs[0].Key)

	n, err = w.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, float64(3), testutil.ToFloat64(w.published))
}

func TestWorker_SinkFailureLeavesEntriesPending(t *testing.T) {
	store := &fakeStore{pending: entries(2)}
	sink := &fakeSink{err: errors.New("broker down")}
	reg := prometheus.NewRegistry()
	w := NewWorker(store, sink, WithRegisterer(reg))

	_, err := w.Tick(context.Background())
	require.Error(t, err)
	assert.Len(t, store.pending, 2)
	assert.Equal(t, float64(1), testutil.ToFloat64(w.failures))
}

func TestWorker_RunDrainsAndStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := &fakeStore{pending: entries(5)}
	sink := &fakeSink{}
	w := NewWorker(store, sink, WithBatchSize(2), WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return store.publishedCount() == 5 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
