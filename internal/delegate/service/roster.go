package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	allocation "quorum/internal/allocation/models"
	assembly "quorum/internal/assembly/models"
	"quorum/internal/delegate/metrics"
	"quorum/internal/delegate/models"
	"quorum/internal/quota"
	id "quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
	audit "quorum/pkg/platform/audit"
	"quorum/pkg/platform/sentinel"
	"quorum/pkg/requestcontext"
)

// RegisterDelegate admits a person into an event's roster.
//
// The person lock makes the uniqueness check and the insert atomic for one
// identifier; the store's unique person index backs it up across instances.
// The seat is reserved and the record persisted under the ledger shard, so a
// failed insert never leaves a seat behind.
func (s *Service) RegisterDelegate(ctx context.Context, eventID id.EventID, req *models.RegisterRequest) (d *models.Delegate, err error) {
	ctx, span, start := s.startSpan(ctx, "register", attribute.String("event_id", eventID.String()))
	defer func() { s.endSpan(span, "register", start, err) }()

	req.Normalize()
	if err := req.Validate(); err != nil {
		s.metrics.ObserveRegistration(string(req.Kind), metrics.OutcomeRejected)
		return nil, err
	}
	person, err := id.ParsePersonID(req.PersonID)
	if err != nil {
		s.metrics.ObserveRegistration(string(req.Kind), metrics.OutcomeRejected)
		return nil, err
	}
	gender, err := id.ParseGender(req.Gender)
	if err != nil {
		s.metrics.ObserveRegistration(string(req.Kind), metrics.OutcomeRejected)
		return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
	}
	ev, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	state, err := rosterState(ev, req.State)
	if err != nil {
		s.metrics.ObserveRegistration(string(req.Kind), metrics.OutcomeRejected)
		return nil, err
	}

	params := models.Params{
		ID:       id.NewDelegateID(),
		Event:    ev.ID,
		State:    state,
		PersonID: person,
		FullName: req.FullName,
		Gender:   gender,
		Category: quota.Category(req.Category),
		Kind:     req.Kind,
		Now:      requestcontext.Now(ctx),
	}
	switch req.Kind {
	case models.KindAlternate:
		params.Alternate = &models.AlternateDetails{Reason: req.Reason}
		if req.ReplacesID != "" {
			replaces, err := id.ParseDelegateID(req.ReplacesID)
			if err != nil {
				return nil, dErrors.New(dErrors.CodeValidation, "replaces_id must be a valid UUID")
			}
			params.Alternate.ReplacesID = replaces
		}
	case models.KindBornSeat:
		params.BornSeat = &models.BornSeatDetails{Group: req.Group}
	}
	span.SetAttributes(attribute.String("state", state.String()), attribute.String("kind", string(req.Kind)))

	unlock, err := s.lockPerson(ctx, person)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Uniqueness is decided before the variant data is checked.
	existing, err := s.delegates.FindByPerson(ctx, person)
	switch {
	case err == nil:
		return nil, s.duplicate(ctx, params.Kind, params.Event, params.State, existing)
	case !errors.Is(err, sentinel.ErrNotFound):
		s.metrics.ObserveRegistration(string(req.Kind), metrics.OutcomeError)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check person")
	}

	delegate, err := models.NewDelegate(params)
	if err != nil {
		s.metrics.ObserveRegistration(string(req.Kind), metrics.OutcomeRejected)
		return nil, err
	}
	if delegate.Kind == models.KindAlternate {
		if err := s.checkReplaced(ctx, delegate); err != nil {
			s.metrics.ObserveRegistration(string(delegate.Kind), metrics.OutcomeRejected)
			return nil, err
		}
	}

	_, err = s.ledger.Reserve(ctx, delegate.SeatRequest(), func(ctx context.Context, token allocation.SeatToken) error {
		if delegate.Kind == models.KindAlternate {
			// Re-checked under the shard: the elected delegate shares it.
			if err := s.checkReplaced(ctx, delegate); err != nil {
				return err
			}
		}
		delegate.Token = token.ID
		delegate.Gender = token.Gender
		if err := s.delegates.Create(ctx, delegate); err != nil {
			return err
		}
		s.logAudit(ctx, audit.EventDelegateRegistered, delegateAudit(delegate),
			"delegate_id", delegate.ID.String(),
			"kind", string(delegate.Kind),
			"state", delegate.State.String(),
			"category", delegate.Category.String(),
		)
		return nil
	})
	if err != nil {
		return nil, s.registrationFailed(ctx, delegate, err)
	}

	s.metrics.ObserveRegistration(string(delegate.Kind), metrics.OutcomeRegistered)
	return delegate, nil
}

// rosterState resolves the state a delegate is filed under. State events
// fix it; national events take it from the request.
func rosterState(ev *assembly.Event, raw string) (id.StateCode, error) {
	if !ev.IsNational() {
		if raw != "" && raw != ev.State.String() {
			return "", dErrors.New(dErrors.CodeValidation, "state does not match the event's state")
		}
		return ev.State, nil
	}
	state, err := id.ParseStateCode(raw)
	if err != nil {
		return "", dErrors.New(dErrors.CodeValidation, "state must be a valid UF code")
	}
	return state, nil
}

// checkReplaced verifies the elected delegate an alternate stands in for.
func (s *Service) checkReplaced(ctx context.Context, alt *models.Delegate) error {
	replacesID := alt.Alternate.ReplacesID
	elected, err := s.delegates.FindByID(ctx, replacesID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeMissingSubstitutionData, "replaced delegate does not exist")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load replaced delegate")
	}
	if elected.Kind != models.KindElected {
		return dErrors.New(dErrors.CodeMissingSubstitutionData, "alternates can only replace elected delegates")
	}
	if elected.Event != alt.Event || elected.State != alt.State {
		return dErrors.New(dErrors.CodeMissingSubstitutionData, "replaced delegate belongs to another roster")
	}
	_, err = s.delegates.FindAlternateFor(ctx, replacesID)
	switch {
	case err == nil:
		return dErrors.New(dErrors.CodeMissingSubstitutionData, "replaced delegate already has an alternate")
	case !errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check existing alternate")
	}
	return nil
}

func (s *Service) duplicate(ctx context.Context, kind models.Kind, event id.EventID, state id.StateCode, existing *models.Delegate) error {
	s.metrics.ObserveRegistration(string(kind), metrics.OutcomeDuplicate)
	s.logAudit(ctx, audit.EventDuplicatePerson, audit.Event{
		Subject:  existing.ID.String(),
		Assembly: event,
		State:    state,
		Detail:   string(existing.Kind),
	},
		"existing_kind", string(existing.Kind),
		"existing_state", existing.State.String(),
	)
	return &models.DuplicatePersonError{
		ExistingID:    existing.ID,
		ExistingKind:  existing.Kind,
		ExistingState: existing.State,
	}
}

// registrationFailed maps a failed reservation or insert to its outcome.
func (s *Service) registrationFailed(ctx context.Context, d *models.Delegate, err error) error {
	switch {
	case dErrors.HasCode(err, dErrors.CodeQuotaFull):
		s.metrics.ObserveRegistration(string(d.Kind), metrics.OutcomeQuotaFull)
		s.logAudit(ctx, audit.EventQuotaFull, audit.Event{
			Subject:  d.PersonID.Masked(),
			Assembly: d.Event,
			State:    d.State,
			Detail:   d.Category.String(),
		}, "category", d.Category.String())
		return err
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		existing, findErr := s.delegates.FindByPerson(ctx, d.PersonID)
		if findErr != nil {
			s.metrics.ObserveRegistration(string(d.Kind), metrics.OutcomeDuplicate)
			return dErrors.New(dErrors.CodeDuplicatePerson, "person is already registered")
		}
		return s.duplicate(ctx, d.Kind, d.Event, d.State, existing)
	case errors.Is(err, sentinel.ErrConflict):
		s.metrics.ObserveRegistration(string(d.Kind), metrics.OutcomeRejected)
		return dErrors.New(dErrors.CodeMissingSubstitutionData, "replaced delegate already has an alternate")
	case dErrors.HasCode(err, dErrors.CodeUnknownCategory), dErrors.HasCode(err, dErrors.CodeMissingSubstitutionData):
		s.metrics.ObserveRegistration(string(d.Kind), metrics.OutcomeRejected)
		return err
	}
	s.metrics.ObserveRegistration(string(d.Kind), metrics.OutcomeError)
	return internalUnlessCoded(err, "failed to register delegate")
}

// UpdateDelegate edits a delegate. A category change moves the seat and a
// gender change adjusts the gender sub-counter; either way the record is
// written under the same ledger shard so both roll back together.
func (s *Service) UpdateDelegate(ctx context.Context, delegateID id.DelegateID, req *models.UpdateRequest) (d *models.Delegate, err error) {
	ctx, span, start := s.startSpan(ctx, "update", attribute.String("delegate_id", delegateID.String()))
	defer func() { s.endSpan(span, "update", start, err) }()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	current, err := s.GetDelegate(ctx, delegateID)
	if err != nil {
		return nil, err
	}
	unlock, err := s.lockPerson(ctx, current.PersonID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Reload under the lock.
	current, err = s.GetDelegate(ctx, delegateID)
	if err != nil {
		return nil, err
	}
	updated, err := applyUpdate(current, req)
	if err != nil {
		return nil, err
	}
	updated.UpdatedAt = requestcontext.Now(ctx)

	write := func(ctx context.Context) error {
		if err := s.delegates.Update(ctx, updated); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "delegate not found")
			}
			return err
		}
		s.logAudit(ctx, audit.EventDelegateUpdated, delegateAudit(updated),
			"delegate_id", updated.ID.String(),
			"category", updated.Category.String(),
			"gender", updated.Gender.String(),
		)
		return nil
	}
	commit := func(ctx context.Context, token allocation.SeatToken) error {
		updated.Category = token.Category
		updated.Gender = token.Gender
		return write(ctx)
	}

	switch {
	case updated.Category != current.Category:
		_, err = s.ledger.Move(ctx, current.Seat(), updated.Category, updated.Gender, commit)
	case updated.Gender != current.Gender:
		_, err = s.ledger.Regender(ctx, current.Seat(), updated.Gender, commit)
	default:
		err = s.tx.RunInTx(ctx, write)
	}
	if err != nil {
		return nil, internalUnlessCoded(err, "failed to update delegate")
	}

	if updated.Category != current.Category || updated.Gender != current.Gender || updated.FullName != current.FullName {
		s.refreshMirror(ctx, updated)
	}
	return updated, nil
}

func applyUpdate(current *models.Delegate, req *models.UpdateRequest) (*models.Delegate, error) {
	updated := current.Clone()
	if req.FullName != nil {
		if len(*req.FullName) > 200 {
			return nil, dErrors.New(dErrors.CodeValidation, "full name must be 200 characters or less")
		}
		updated.FullName = *req.FullName
	}
	if req.Gender != nil {
		gender, err := id.ParseGender(*req.Gender)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		updated.Gender = gender
	}
	if req.Category != nil {
		updated.Category = quota.Category(*req.Category)
	}
	if req.Group != nil {
		if updated.Kind != models.KindBornSeat {
			return nil, dErrors.New(dErrors.CodeValidation, "only born-seat delegates carry a group")
		}
		if *req.Group == "" {
			return nil, dErrors.New(dErrors.CodeMissingBornSeatGroup, "born-seat delegates need a group label")
		}
		updated.BornSeat.Group = *req.Group
	}
	if req.Reason != nil {
		if updated.Kind != models.KindAlternate {
			return nil, dErrors.New(dErrors.CodeValidation, "only alternates carry a substitution reason")
		}
		if *req.Reason == "" {
			return nil, dErrors.New(dErrors.CodeMissingSubstitutionData, "alternates need a substitution reason")
		}
		updated.Alternate.Reason = *req.Reason
	}
	return updated, nil
}

// refreshMirror re-copies a promoted delegate into the national roster.
// Best-effort: the state roster is the source of truth.
func (s *Service) refreshMirror(ctx context.Context, d *models.Delegate) {
	ev, err := s.events.GetEvent(ctx, d.Event)
	if err != nil || ev.NationalEventID == nil {
		return
	}
	removed, err := s.mirrors.DeleteByPerson(ctx, d.PersonID, d.State)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to refresh national mirror", "delegate_id", d.ID.String(), "error", err)
		return
	}
	if removed == 0 {
		return
	}
	if err := s.mirrors.Create(ctx, models.NewMirror(d, *ev.NationalEventID, requestcontext.Now(ctx))); err != nil {
		s.metrics.IncrementCleanupWarning("mirror_refresh")
		s.logger.WarnContext(ctx, "failed to refresh national mirror", "delegate_id", d.ID.String(), "error", err)
	}
}
