package service

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	allocation "quorum/internal/allocation/models"
	"quorum/internal/allocation/openquota"
	assembly "quorum/internal/assembly/models"
	delegate "quorum/internal/delegate/models"
	"quorum/internal/parity"
	"quorum/internal/quota"
	"quorum/internal/report/models"
	id "quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
)

// SnapshotReader reads committed ledger counters.
type SnapshotReader interface {
	Snapshot(ctx context.Context, event id.EventID, state id.StateCode) (*allocation.Snapshot, error)
	Snapshots(ctx context.Context, event id.EventID, states []id.StateCode) (map[id.StateCode]*allocation.Snapshot, error)
}

// EventLookup resolves events and the state events linked to a national one.
type EventLookup interface {
	GetEvent(ctx context.Context, eventID id.EventID) (*assembly.Event, error)
	LinkedStates(ctx context.Context, nationalID id.EventID) ([]*assembly.Event, error)
}

// MirrorLister lists the national copies of promoted delegates.
type MirrorLister interface {
	ListByEvent(ctx context.Context, nationalID id.EventID) ([]*delegate.Mirror, error)
}

// Service builds read-only quota and parity reports.
type Service struct {
	schema  *quota.Schema
	ledger  SnapshotReader
	events  EventLookup
	mirrors MirrorLister
	logger  *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(schema *quota.Schema, ledger SnapshotReader, events EventLookup, mirrors MirrorLister, opts ...Option) (*Service, error) {
	if schema == nil || ledger == nil {
		return nil, errors.New("quota schema and ledger are required")
	}
	if events == nil || mirrors == nil {
		return nil, errors.New("event lookup and mirror lister are required")
	}
	s := &Service{schema: schema, ledger: ledger, events: events, mirrors: mirrors, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// QuotaOverview returns the per-category tuples of one (event, state).
func (s *Service) QuotaOverview(ctx context.Context, eventID id.EventID, state id.StateCode) (*models.QuotaOverview, error) {
	snap, err := s.snapshot(ctx, eventID, state)
	if err != nil {
		return nil, err
	}
	usage := make(allocation.Usages, len(snap.Categories))
	for _, c := range snap.Categories {
		usage[c.Category] = allocation.Usage{Filled: c.Filled, ByGender: c.ByGender}
	}
	totals := snap.Totals()
	return &models.QuotaOverview{
		EventID:      eventID,
		State:        state,
		StateName:    state.Name(),
		Version:      snap.Version,
		Categories:   snap.Categories,
		Totals:       totals,
		Relinquished: openquota.Relinquished(s.schema, state, usage),
		Borrowed:     openquota.Borrowed(s.schema, state, usage),
		Parity:       parity.Compute(totals),
		TakenAt:      snap.TakenAt,
	}, nil
}

// StateParity returns the parity of one state's delegation with the
// per-category breakdown.
func (s *Service) StateParity(ctx context.Context, eventID id.EventID, state id.StateCode) (*parity.StateReport, error) {
	snap, err := s.snapshot(ctx, eventID, state)
	if err != nil {
		return nil, err
	}
	report := parity.ForState(snap)
	return &report, nil
}

// NationalParity aggregates a national event: promoted mirrors of every
// linked state plus delegates registered directly in the national event.
// Linked states with nobody seated still appear, with no data.
func (s *Service) NationalParity(ctx context.Context, nationalID id.EventID) (*models.NationalParity, error) {
	ev, err := s.events.GetEvent(ctx, nationalID)
	if err != nil {
		return nil, err
	}
	if !ev.IsNational() {
		return nil, dErrors.New(dErrors.CodeValidation, "event is not a national event")
	}

	var (
		linked  []*assembly.Event
		mirrors []*delegate.Mirror
		direct  map[id.StateCode]*allocation.Snapshot
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		linked, err = s.events.LinkedStates(gctx, nationalID)
		return err
	})
	g.Go(func() error {
		var err error
		mirrors, err = s.mirrors.ListByEvent(gctx, nationalID)
		return err
	})
	g.Go(func() error {
		var err error
		direct, err = s.ledger.Snapshots(gctx, nationalID, id.StateCodes())
		return err
	})
	if err := g.Wait(); err != nil {
		var de *dErrors.Error
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load national roster")
	}

	counts := make(map[id.StateCode]map[quota.Category]allocation.GenderCounts)
	add := func(state id.StateCode, category quota.Category, c allocation.GenderCounts) {
		byCat, ok := counts[state]
		if !ok {
			byCat = make(map[quota.Category]allocation.GenderCounts)
			counts[state] = byCat
		}
		byCat[category] = byCat[category].Plus(c)
	}
	for _, linkedEvent := range linked {
		if _, ok := counts[linkedEvent.State]; !ok {
			counts[linkedEvent.State] = make(map[quota.Category]allocation.GenderCounts)
		}
	}
	for _, m := range mirrors {
		add(m.State, m.Category, allocation.GenderCounts{}.Add(m.Gender, 1))
	}
	for state, snap := range direct {
		for _, c := range snap.Categories {
			if c.Filled > 0 {
				add(state, c.Category, c.ByGender)
			}
		}
	}

	reports := make([]parity.StateReport, 0, len(counts))
	for state, byCat := range counts {
		reports = append(reports, parity.Report(state, s.categoryCounts(byCat)))
	}
	return &models.NationalParity{EventID: nationalID, NationalReport: parity.Aggregate(reports)}, nil
}

// categoryCounts orders counts by schema category. Categories no longer in
// the schema are appended under their raw name.
func (s *Service) categoryCounts(byCat map[quota.Category]allocation.GenderCounts) []parity.CategoryCounts {
	out := make([]parity.CategoryCounts, 0, len(byCat))
	seen := make(map[quota.Category]bool, len(byCat))
	for _, c := range s.schema.Categories() {
		seen[c.Name] = true
		out = append(out, parity.CategoryCounts{Category: c.Name, Label: c.Label, Counts: byCat[c.Name]})
	}
	for category, c := range byCat {
		if !seen[category] {
			out = append(out, parity.CategoryCounts{Category: category, Label: category.String(), Counts: c})
		}
	}
	return out
}

func (s *Service) snapshot(ctx context.Context, eventID id.EventID, state id.StateCode) (*allocation.Snapshot, error) {
	ev, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !ev.IsNational() && ev.State != state {
		return nil, dErrors.New(dErrors.CodeNotFound, "event has no roster for this state")
	}
	snap, err := s.ledger.Snapshot(ctx, eventID, state)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to read ledger snapshot", "event_id", eventID.String(), "state", state.String(), "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read quota counters")
	}
	return snap, nil
}
