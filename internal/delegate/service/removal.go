package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	allocation "quorum/internal/allocation/models"
	"quorum/internal/delegate/models"
	id "quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
	audit "quorum/pkg/platform/audit"
	"quorum/pkg/platform/sentinel"
)

// DeleteDelegate removes a delegate and everything hanging off it.
//
// The record is deleted and the seat released as one unit under the ledger
// shard; if either fails nothing else is touched. Profile and mirror removal
// follow best-effort and failures come back as report warnings.
func (s *Service) DeleteDelegate(ctx context.Context, delegateID id.DelegateID) (report *models.DeletionReport, err error) {
	ctx, span, start := s.startSpan(ctx, "delete", attribute.String("delegate_id", delegateID.String()))
	defer func() { s.endSpan(span, "delete", start, err) }()

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

	report = &models.DeletionReport{DelegateID: d.ID}
	removeRecord := func(ctx context.Context, _ allocation.SeatToken) error {
		if d.Kind == models.KindElected {
			_, err := s.delegates.FindAlternateFor(ctx, d.ID)
			switch {
			case err == nil:
				return dErrors.New(dErrors.CodeConflict, "delegate has an alternate; remove the alternate first")
			case !errors.Is(err, sentinel.ErrNotFound):
				return fmt.Errorf("check alternate: %w", err)
			}
		}
		if err := s.delegates.Delete(ctx, d.ID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "delegate not found")
			}
			return err
		}
		s.logAudit(ctx, audit.EventDelegateDeleted, delegateAudit(d),
			"delegate_id", d.ID.String(),
			"kind", string(d.Kind),
		)
		return nil
	}

	err = s.ledger.Release(ctx, d.Seat(), removeRecord)
	switch {
	case err == nil:
		report.SeatReleased = true
	case dErrors.HasCode(err, dErrors.CodeInvalidToken):
		// The seat is already gone; the record still has to go.
		if err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
			return removeRecord(ctx, d.Seat())
		}); err != nil {
			return nil, internalUnlessCoded(err, "failed to delete delegate")
		}
		s.warn(ctx, report, "seat", "seat token was not held by the ledger", err)
	default:
		return nil, internalUnlessCoded(err, "failed to delete delegate")
	}
	s.metrics.IncrementDeletions()

	removed, err := s.profiles.Delete(ctx, d.ID)
	if err != nil {
		s.warn(ctx, report, "profile", "failed to remove registration profile", err)
	}
	report.ProfileRemoved = removed

	mirrors, err := s.mirrors.DeleteByPerson(ctx, d.PersonID, d.State)
	if err != nil {
		s.warn(ctx, report, "mirror", "failed to remove national mirror", err)
	}
	report.MirrorsRemoved = mirrors
	if mirrors > 0 {
		s.logAudit(ctx, audit.EventMirrorRemoved, delegateAudit(d),
			"delegate_id", d.ID.String(),
			"mirrors", mirrors,
		)
	}
	return report, nil
}

func (s *Service) warn(ctx context.Context, report *models.DeletionReport, step, msg string, err error) {
	report.Warnings = append(report.Warnings, msg)
	s.metrics.IncrementCleanupWarning(step)
	args := []any{"delegate_id", report.DelegateID.String(), "step", step}
	if err != nil {
		args = append(args, "error", err)
	}
	s.logger.WarnContext(ctx, msg, args...)
}
