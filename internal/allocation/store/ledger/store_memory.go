package ledger

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"quorum/internal/allocation/metrics"
	"quorum/internal/allocation/models"
	"quorum/internal/quota"
	id "quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
	"quorum/pkg/requestcontext"
)

// InMemoryLedger keeps seat counters in process memory.
//
// Each (event, state) shard has its own mutex, so unrelated delegations never
// contend. Every mutation publishes an immutable snapshot through an atomic
// pointer; Snapshot reads it without taking the shard lock.
type InMemoryLedger struct {
	schema  *quota.Schema
	metrics *metrics.Metrics

	mu     sync.RWMutex // guards shards only
	shards map[models.ShardKey]*shard
}

type shard struct {
	key     models.ShardKey
	mu      sync.Mutex
	usage   models.Usages
	tokens  map[id.TokenID]models.SeatToken
	version uint64
	current atomic.Pointer[models.Snapshot]
}

// Option configures an InMemoryLedger.
type Option func(*InMemoryLedger)

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *InMemoryLedger) {
		l.metrics = m
	}
}

// NewInMemory constructs an empty ledger over schema.
func NewInMemory(schema *quota.Schema, opts ...Option) *InMemoryLedger {
	l := &InMemoryLedger{
		schema: schema,
		shards: make(map[models.ShardKey]*shard),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Reserve claims one seat. commit may be nil.
func (l *InMemoryLedger) Reserve(ctx context.Context, req models.SeatRequest, commit CommitFunc) (*models.SeatToken, error) {
	start := time.Now()
	defer l.metrics.ObserveOp("reserve", start)

	if !req.Gender.IsValid() {
		req.Gender = id.GenderUnspecified
	}
	s := l.shard(req.Key(), true)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := admit(l.schema, req.State, req.Category, s.usage); err != nil {
		l.metrics.ObserveReservation(req.Category.String(), outcomeOf(err))
		return nil, err
	}

	token := models.SeatToken{
		ID:         id.NewTokenID(),
		Event:      req.Event,
		State:      req.State,
		Category:   req.Category,
		Gender:     req.Gender,
		ReservedAt: requestcontext.Now(ctx),
	}
	apply(s.usage, token.Category, token.Gender, 1)
	s.tokens[token.ID] = token

	if commit != nil {
		if err := commit(ctx, token); err != nil {
			apply(s.usage, token.Category, token.Gender, -1)
			delete(s.tokens, token.ID)
			l.metrics.ObserveReservation(req.Category.String(), metrics.OutcomeError)
			return nil, err
		}
	}

	l.publish(ctx, s)
	l.metrics.ObserveReservation(req.Category.String(), metrics.OutcomeReserved)
	return &token, nil
}

// Release frees the seat held by token. The ledger's own record of the
// token is authoritative; only its ID and shard are read from the argument.
func (l *InMemoryLedger) Release(ctx context.Context, token models.SeatToken, commit CommitFunc) error {
	start := time.Now()
	defer l.metrics.ObserveOp("release", start)

	s := l.shard(token.Key(), false)
	if s == nil {
		return invalidToken(token.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.tokens[token.ID]
	if !ok {
		return invalidToken(token.ID)
	}
	apply(s.usage, stored.Category, stored.Gender, -1)
	delete(s.tokens, stored.ID)

	if commit != nil {
		if err := commit(ctx, stored); err != nil {
			apply(s.usage, stored.Category, stored.Gender, 1)
			s.tokens[stored.ID] = stored
			return err
		}
	}

	l.publish(ctx, s)
	l.metrics.IncrementReleases()
	return nil
}

// Move re-files the reservation under category and gender as one atomic
// release-then-reserve. The token keeps its ID. On failure the original
// reservation is untouched.
func (l *InMemoryLedger) Move(ctx context.Context, token models.SeatToken, category quota.Category, gender id.Gender, commit CommitFunc) (*models.SeatToken, error) {
	start := time.Now()
	defer l.metrics.ObserveOp("move", start)

	s := l.shard(token.Key(), false)
	if s == nil {
		return nil, invalidToken(token.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.tokens[token.ID]
	if !ok {
		return nil, invalidToken(token.ID)
	}
	if !gender.IsValid() {
		gender = id.GenderUnspecified
	}

	apply(s.usage, stored.Category, stored.Gender, -1)
	if err := admit(l.schema, stored.State, category, s.usage); err != nil {
		apply(s.usage, stored.Category, stored.Gender, 1)
		l.metrics.ObserveMove(outcomeOf(err))
		return nil, err
	}

	moved := stored
	moved.Category = category
	moved.Gender = gender
	apply(s.usage, moved.Category, moved.Gender, 1)
	s.tokens[moved.ID] = moved

	if commit != nil {
		if err := commit(ctx, moved); err != nil {
			apply(s.usage, moved.Category, moved.Gender, -1)
			apply(s.usage, stored.Category, stored.Gender, 1)
			s.tokens[stored.ID] = stored
			l.metrics.ObserveMove(metrics.OutcomeError)
			return nil, err
		}
	}

	l.publish(ctx, s)
	l.metrics.ObserveMove(metrics.OutcomeReserved)
	return &moved, nil
}

// Regender adjusts only the gender sub-counters of the reservation.
func (l *InMemoryLedger) Regender(ctx context.Context, token models.SeatToken, gender id.Gender, commit CommitFunc) (*models.SeatToken, error) {
	start := time.Now()
	defer l.metrics.ObserveOp("regender", start)

	s := l.shard(token.Key(), false)
	if s == nil {
		return nil, invalidToken(token.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.tokens[token.ID]
	if !ok {
		return nil, invalidToken(token.ID)
	}
	if !gender.IsValid() {
		gender = id.GenderUnspecified
	}

	updated := stored
	updated.Gender = gender
	regender(s.usage, stored.Category, stored.Gender, gender)
	s.tokens[updated.ID] = updated

	if commit != nil {
		if err := commit(ctx, updated); err != nil {
			regender(s.usage, stored.Category, gender, stored.Gender)
			s.tokens[stored.ID] = stored
			return nil, err
		}
	}

	l.publish(ctx, s)
	return &updated, nil
}

// Snapshot returns the last published view of the shard. Shards that never
// saw a reservation report empty counters.
func (l *InMemoryLedger) Snapshot(ctx context.Context, event id.EventID, state id.StateCode) (*models.Snapshot, error) {
	key := models.ShardKey{Event: event, State: state}
	if s := l.shard(key, false); s != nil {
		if snap := s.current.Load(); snap != nil {
			return snap, nil
		}
	}
	return buildSnapshot(l.schema, key, models.Usages{}, 0, requestcontext.Now(ctx)), nil
}

// Snapshots returns one snapshot per state.
func (l *InMemoryLedger) Snapshots(ctx context.Context, event id.EventID, states []id.StateCode) (map[id.StateCode]*models.Snapshot, error) {
	out := make(map[id.StateCode]*models.Snapshot, len(states))
	for _, state := range states {
		snap, err := l.Snapshot(ctx, event, state)
		if err != nil {
			return nil, err
		}
		out[state] = snap
	}
	return out, nil
}

// Outstanding returns the live tokens of a shard, so callers can check that
// released seats leave no token behind.
func (l *InMemoryLedger) Outstanding(_ context.Context, event id.EventID, state id.StateCode) ([]models.SeatToken, error) {
	s := l.shard(models.ShardKey{Event: event, State: state}, false)
	if s == nil {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SeatToken, 0, len(s.tokens))
	for _, t := range s.tokens {
		out = append(out, t)
	}
	return out, nil
}

// shard returns the shard for key, creating it when create is set.
func (l *InMemoryLedger) shard(key models.ShardKey, create bool) *shard {
	l.mu.RLock()
	s := l.shards[key]
	l.mu.RUnlock()
	if s != nil || !create {
		return s
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if s = l.shards[key]; s != nil {
		return s
	}
	s = &shard{
		key:    key,
		usage:  make(models.Usages),
		tokens: make(map[id.TokenID]models.SeatToken),
	}
	l.shards[key] = s
	return s
}

// publish stores a fresh snapshot. Must be called while holding s.mu.
func (l *InMemoryLedger) publish(ctx context.Context, s *shard) {
	s.version++
	s.current.Store(buildSnapshot(l.schema, s.key, s.usage, s.version, requestcontext.Now(ctx)))
}

func regender(usage models.Usages, category quota.Category, from, to id.Gender) {
	u := usage[category]
	u.ByGender = u.ByGender.Add(from, -1).Add(to, 1)
	usage[category] = u
}

func outcomeOf(err error) string {
	switch {
	case dErrors.HasCode(err, dErrors.CodeQuotaFull):
		return metrics.OutcomeQuotaFull
	case dErrors.HasCode(err, dErrors.CodeUnknownCategory), dErrors.HasCode(err, dErrors.CodeInvalidToken):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}
