package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"quorum/internal/delegate/models"
	id "quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
	audit "quorum/pkg/platform/audit"
	"quorum/pkg/platform/sentinel"
	"quorum/pkg/requestcontext"
)

// CompleteRegistration stores the full-registration profile and marks the
// delegate validated.
func (s *Service) CompleteRegistration(ctx context.Context, delegateID id.DelegateID, req *models.CompleteRegistrationRequest) (d *models.Delegate, err error) {
	ctx, span, start := s.startSpan(ctx, "complete_registration", attribute.String("delegate_id", delegateID.String()))
	defer func() { s.endSpan(span, "complete_registration", start, err) }()

	req.Normalize()
	d, err = s.GetDelegate(ctx, delegateID)
	if err != nil {
		return nil, err
	}
	unlock, err := s.lockPerson(ctx, d.PersonID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	d, err = s.GetDelegate(ctx, delegateID)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	profile, err := req.ToProfile(d, now)
	if err != nil {
		return nil, err
	}
	if err := d.Validate(now); err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.profiles.Save(ctx, profile); err != nil {
			return err
		}
		if err := s.delegates.Update(ctx, d); err != nil {
			return err
		}
		s.logAudit(ctx, audit.EventDelegateValidated, delegateAudit(d),
			"delegate_id", d.ID.String(),
		)
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "delegate not found")
		}
		return nil, internalUnlessCoded(err, "failed to complete registration")
	}
	s.metrics.IncrementValidations()
	return d, nil
}

// GetProfile returns the full-registration profile of a delegate.
func (s *Service) GetProfile(ctx context.Context, delegateID id.DelegateID) (*models.Profile, error) {
	p, err := s.profiles.Find(ctx, delegateID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "registration profile not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registration profile")
	}
	return p, nil
}

// PromoteDelegate copies a validated state delegate into the national event
// its state event links to.
func (s *Service) PromoteDelegate(ctx context.Context, delegateID id.DelegateID, req *models.PromoteRequest) (m *models.Mirror, err error) {
	ctx, span, start := s.startSpan(ctx, "promote", attribute.String("delegate_id", delegateID.String()))
	defer func() { s.endSpan(span, "promote", start, err) }()

	d, err := s.GetDelegate(ctx, delegateID)
	if err != nil {
		return nil, err
	}
	unlock, err := s.lockPerson(ctx, d.PersonID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	d, err = s.GetDelegate(ctx, delegateID)
	if err != nil {
		return nil, err
	}
	if !d.IsValidated() {
		return nil, dErrors.New(dErrors.CodeConflict, "only validated delegates can be promoted")
	}
	ev, err := s.events.GetEvent(ctx, d.Event)
	if err != nil {
		return nil, err
	}
	if ev.IsNational() {
		return nil, dErrors.New(dErrors.CodeValidation, "national delegates cannot be promoted")
	}
	if ev.NationalEventID == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "event is not linked to a national event")
	}
	nationalID := *ev.NationalEventID
	if req != nil && req.NationalEventID != "" {
		requested, err := id.ParseEventID(req.NationalEventID)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, "national_event_id must be a valid UUID")
		}
		if requested != nationalID {
			return nil, dErrors.New(dErrors.CodeValidation, "national_event_id is not the event's linked national event")
		}
	}

	mirror := models.NewMirror(d, nationalID, requestcontext.Now(ctx))
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.mirrors.Create(ctx, mirror); err != nil {
			return err
		}
		s.logAudit(ctx, audit.EventDelegatePromoted, audit.Event{
			Subject:  d.ID.String(),
			Assembly: nationalID,
			State:    d.State,
			Detail:   d.Category.String(),
		}, "delegate_id", d.ID.String(), "national_event_id", nationalID.String())
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "delegate is already on the national roster")
		}
		return nil, internalUnlessCoded(err, "failed to promote delegate")
	}
	s.metrics.IncrementPromotions()
	return mirror, nil
}
