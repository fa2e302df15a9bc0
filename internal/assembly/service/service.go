package service

import (
	"context"
	"errors"
	"log/slog"

	"quorum/internal/assembly/models"
	id "quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
	audit "quorum/pkg/platform/audit"
	"quorum/pkg/platform/sentinel"
	"quorum/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, event *models.Event) error
	FindByID(ctx context.Context, eventID id.EventID) (*models.Event, error)
	List(ctx context.Context) ([]*models.Event, error)
	ListLinked(ctx context.Context, nationalID id.EventID) ([]*models.Event, error)
	Update(ctx context.Context, event *models.Event) error
}

// RosterCounter reports how many delegates an event holds.
type RosterCounter interface {
	CountByEvent(ctx context.Context, eventID id.EventID) (int, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service manages assembly events.
type Service struct {
	events         Store
	roster         RosterCounter
	logger         *slog.Logger
	auditPublisher AuditPublisher
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

// New constructs a Service. roster may be nil, in which case events are
// treated as having no delegates.
func New(events Store, roster RosterCounter, opts ...Option) *Service {
	s := &Service{events: events, roster: roster}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateEvent registers a state or national assembly. A state event may link
// to an existing national event.
func (s *Service) CreateEvent(ctx context.Context, req *models.CreateEventRequest) (*models.Event, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var state id.StateCode
	if req.Kind == models.KindState {
		parsed, err := id.ParseStateCode(req.State)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, "state must be a valid UF code")
		}
		state = parsed
	}

	var national *id.EventID
	if req.NationalEventID != "" {
		link, err := s.resolveNational(ctx, req.NationalEventID)
		if err != nil {
			return nil, err
		}
		national = &link
	}

	ev, err := models.NewEvent(id.NewEventID(), req.Kind, state, req.Name, req.TargetCount, national, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}
	if err := s.events.Create(ctx, ev); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create event")
	}

	s.logAudit(ctx, audit.EventAssemblyCreated, ev,
		"kind", string(ev.Kind),
		"target_count", ev.TargetCount,
	)
	return ev, nil
}

func (s *Service) GetEvent(ctx context.Context, eventID id.EventID) (*models.Event, error) {
	ev, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "event not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load event")
	}
	return ev, nil
}

func (s *Service) ListEvents(ctx context.Context) ([]*models.Event, error) {
	events, err := s.events.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list events")
	}
	return events, nil
}

// LinkedStates returns the state events feeding nationalID.
func (s *Service) LinkedStates(ctx context.Context, nationalID id.EventID) ([]*models.Event, error) {
	events, err := s.events.ListLinked(ctx, nationalID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list linked events")
	}
	return events, nil
}

// UpdateEvent applies administrative corrections. Name and target count can
// always change; the national link only while the event has no delegates.
func (s *Service) UpdateEvent(ctx context.Context, eventID id.EventID, req *models.UpdateEventRequest) (*models.Event, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	ev, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	if req.Name != nil {
		if err := ev.Rename(*req.Name, now); err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
	}
	if req.TargetCount != nil {
		if err := ev.SetTarget(*req.TargetCount, now); err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
	}
	if req.NationalEventID != nil {
		if err := s.relink(ctx, ev, *req.NationalEventID); err != nil {
			return nil, err
		}
		ev.UpdatedAt = now
	}

	if err := s.events.Update(ctx, ev); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "event not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update event")
	}
	s.logAudit(ctx, audit.EventAssemblyUpdated, ev,
		"target_count", ev.TargetCount,
	)
	return ev, nil
}

func (s *Service) relink(ctx context.Context, ev *models.Event, raw string) error {
	if ev.IsNational() {
		return dErrors.New(dErrors.CodeValidation, "national events cannot link to another event")
	}
	if s.roster != nil {
		count, err := s.roster.CountByEvent(ctx, ev.ID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count delegates")
		}
		if count > 0 {
			return dErrors.New(dErrors.CodeConflict, "event already has delegates; only name and target count can change")
		}
	}
	if raw == "" {
		ev.NationalEventID = nil
		return nil
	}
	link, err := s.resolveNational(ctx, raw)
	if err != nil {
		return err
	}
	ev.NationalEventID = &link
	return nil
}

func (s *Service) resolveNational(ctx context.Context, raw string) (id.EventID, error) {
	nationalID, err := id.ParseEventID(raw)
	if err != nil {
		return id.EventID{}, dErrors.New(dErrors.CodeValidation, "national_event_id must be a valid UUID")
	}
	national, err := s.events.FindByID(ctx, nationalID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return id.EventID{}, dErrors.New(dErrors.CodeNotFound, "national event not found")
		}
		return id.EventID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load national event")
	}
	if !national.IsNational() {
		return id.EventID{}, dErrors.New(dErrors.CodeValidation, "national_event_id must reference a national event")
	}
	return nationalID, nil
}

func (s *Service) logAudit(ctx context.Context, action audit.AuditEvent, ev *models.Event, attributes ...any) {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event_id", ev.ID.String(), "event", string(action), "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(action), args...)
	}
	if s.auditPublisher == nil {
		return
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		Action:    string(action),
		Subject:   ev.ID.String(),
		Assembly:  ev.ID,
		State:     ev.State,
		Detail:    ev.Name,
		RequestID: requestID,
		ActorID:   requestcontext.Operator(ctx),
	})
}
