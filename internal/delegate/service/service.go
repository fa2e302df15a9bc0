package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	allocation "quorum/internal/allocation/models"
	"quorum/internal/allocation/store/ledger"
	assembly "quorum/internal/assembly/models"
	"quorum/internal/delegate/metrics"
	"quorum/internal/delegate/models"
	"quorum/internal/delegate/personlock"
	"quorum/internal/quota"
	id "quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
	audit "quorum/pkg/platform/audit"
	"quorum/pkg/platform/sentinel"
	"quorum/pkg/requestcontext"
)

// Ledger is the seat allocation ledger. Every mutation takes a commit
// callback that runs while the shard is held; an error from it rolls the
// mutation back.
type Ledger interface {
	Reserve(ctx context.Context, req allocation.SeatRequest, commit ledger.CommitFunc) (*allocation.SeatToken, error)
	Release(ctx context.Context, token allocation.SeatToken, commit ledger.CommitFunc) error
	Move(ctx context.Context, token allocation.SeatToken, category quota.Category, gender id.Gender, commit ledger.CommitFunc) (*allocation.SeatToken, error)
	Regender(ctx context.Context, token allocation.SeatToken, gender id.Gender, commit ledger.CommitFunc) (*allocation.SeatToken, error)
}

// DelegateStore persists the roster. The person index is unique across
// the whole system.
type DelegateStore interface {
	Create(ctx context.Context, d *models.Delegate) error
	FindByID(ctx context.Context, delegateID id.DelegateID) (*models.Delegate, error)
	FindByPerson(ctx context.Context, person id.PersonID) (*models.Delegate, error)
	FindAlternateFor(ctx context.Context, electedID id.DelegateID) (*models.Delegate, error)
	ListRoster(ctx context.Context, event id.EventID, state id.StateCode) ([]*models.Delegate, error)
	CountByEvent(ctx context.Context, event id.EventID) (int, error)
	Update(ctx context.Context, d *models.Delegate) error
	Delete(ctx context.Context, delegateID id.DelegateID) error
}

// ProfileStore holds full-registration profiles keyed by delegate.
type ProfileStore interface {
	Save(ctx context.Context, p *models.Profile) error
	Find(ctx context.Context, delegateID id.DelegateID) (*models.Profile, error)
	Delete(ctx context.Context, delegateID id.DelegateID) (bool, error)
}

// MirrorStore holds national copies keyed by (person, state).
type MirrorStore interface {
	Create(ctx context.Context, mirror *models.Mirror) error
	DeleteByPerson(ctx context.Context, person id.PersonID, state id.StateCode) (int, error)
}

// EventLookup resolves assembly events. Errors are already coded.
type EventLookup interface {
	GetEvent(ctx context.Context, eventID id.EventID) (*assembly.Event, error)
}

// TxRunner groups store writes that do not touch the ledger.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service coordinates the roster, the ledger and the secondary records so
// that a person holds at most one seat and no seat outlives its delegate.
type Service struct {
	delegates DelegateStore
	profiles  ProfileStore
	mirrors   MirrorStore
	ledger    Ledger
	events    EventLookup
	locker    personlock.Locker

	tx             TxRunner
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTx sets the transaction runner for writes outside the ledger. The
// default runs the callback directly, which suits the in-memory stores.
func WithTx(tx TxRunner) Option {
	return func(s *Service) {
		if tx != nil {
			s.tx = tx
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// Deps groups the required collaborators.
type Deps struct {
	Delegates DelegateStore
	Profiles  ProfileStore
	Mirrors   MirrorStore
	Ledger    Ledger
	Events    EventLookup
	Locker    personlock.Locker
}

func New(deps Deps, opts ...Option) (*Service, error) {
	if deps.Delegates == nil || deps.Profiles == nil || deps.Mirrors == nil {
		return nil, errors.New("delegate, profile and mirror stores are required")
	}
	if deps.Ledger == nil {
		return nil, errors.New("allocation ledger is required")
	}
	if deps.Events == nil {
		return nil, errors.New("event lookup is required")
	}
	s := &Service{
		delegates: deps.Delegates,
		profiles:  deps.Profiles,
		mirrors:   deps.Mirrors,
		ledger:    deps.Ledger,
		events:    deps.Events,
		locker:    deps.Locker,
		tx:        directTx{},
		logger:    slog.Default(),
		tracer:    otel.Tracer("quorum/delegate"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.locker == nil {
		s.locker = personlock.NewKeyed()
	}
	return s, nil
}

type directTx struct{}

func (directTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// GetDelegate returns a delegate by ID.
func (s *Service) GetDelegate(ctx context.Context, delegateID id.DelegateID) (*models.Delegate, error) {
	d, err := s.delegates.FindByID(ctx, delegateID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "delegate not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load delegate")
	}
	return d, nil
}

// ListDelegates returns the roster of one state within an event.
func (s *Service) ListDelegates(ctx context.Context, eventID id.EventID, state id.StateCode) ([]*models.Delegate, error) {
	if _, err := s.events.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	roster, err := s.delegates.ListRoster(ctx, eventID, state)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list delegates")
	}
	return roster, nil
}

// CountByEvent reports how many delegates an event holds.
func (s *Service) CountByEvent(ctx context.Context, eventID id.EventID) (int, error) {
	return s.delegates.CountByEvent(ctx, eventID)
}

// lockPerson serializes every roster change of one person.
func (s *Service) lockPerson(ctx context.Context, person id.PersonID) (personlock.Unlock, error) {
	unlock, err := s.locker.Lock(ctx, person.String())
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeTimeout) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock person")
	}
	return unlock, nil
}

func (s *Service) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	ctx, span := s.tracer.Start(ctx, "delegate."+op, trace.WithAttributes(attrs...))
	return ctx, span, time.Now()
}

func (s *Service) endSpan(span trace.Span, op string, start time.Time, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	span.End()
	s.metrics.ObserveOp(op, start)
}

func (s *Service) logAudit(ctx context.Context, action audit.AuditEvent, event audit.Event, attributes ...any) {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "subject", event.Subject, "event", string(action), "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(action), args...)
	}
	if s.auditPublisher == nil {
		return
	}
	event.Action = string(action)
	event.RequestID = requestID
	event.ActorID = requestcontext.Operator(ctx)
	if err := s.auditPublisher.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", string(action), "error", err)
	}
}

func delegateAudit(d *models.Delegate) audit.Event {
	return audit.Event{
		Subject:  d.ID.String(),
		Assembly: d.Event,
		State:    d.State,
		Detail:   d.Category.String(),
	}
}

// internalUnlessCoded keeps coded errors and wraps the rest.
func internalUnlessCoded(err error, msg string) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
