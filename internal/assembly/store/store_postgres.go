package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"quorum/internal/assembly/models"
	"quorum/internal/platform/postgres"
	id "quorum/pkg/domain"
	"quorum/pkg/platform/sentinel"
)

// Postgres persists events in the events table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const eventColumns = `id, kind, state_code, name, target_count, national_event_id, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, event *models.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, event.ID.String(), string(event.Kind), event.State.String(), event.Name, event.TargetCount,
		nullableID(event.NationalEventID), event.CreatedAt, event.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err, "") {
			return fmt.Errorf("event %s: %w", event.ID, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, eventID id.EventID) (*models.Event, error) {
	ev, err := scanEvent(s.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, eventID.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", eventID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find event: %w", err)
	}
	return ev, nil
}

func (s *Postgres) List(ctx context.Context) ([]*models.Event, error) {
	return s.query(ctx, `SELECT `+eventColumns+` FROM events ORDER BY created_at, id`)
}

func (s *Postgres) ListLinked(ctx context.Context, nationalID id.EventID) ([]*models.Event, error) {
	return s.query(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE national_event_id = $1
		ORDER BY created_at, id
	`, nationalID.String())
}

func (s *Postgres) Update(ctx context.Context, event *models.Event) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE events
		SET name = $2, target_count = $3, national_event_id = $4, updated_at = $5
		WHERE id = $1
	`, event.ID.String(), event.Name, event.TargetCount, nullableID(event.NationalEventID), event.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("event %s: %w", event.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *Postgres) query(ctx context.Context, query string, args ...any) ([]*models.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []*models.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*models.Event, error) {
	var (
		ev                models.Event
		eventID, kind, st string
		national          sql.NullString
	)
	if err := row.Scan(&eventID, &kind, &st, &ev.Name, &ev.TargetCount, &national, &ev.CreatedAt, &ev.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := id.ParseEventID(eventID)
	if err != nil {
		return nil, fmt.Errorf("parse event id: %w", err)
	}
	ev.ID = parsed
	ev.Kind = models.Kind(kind)
	ev.State = id.StateCode(st)
	if national.Valid {
		link, err := id.ParseEventID(national.String)
		if err != nil {
			return nil, fmt.Errorf("parse national event id: %w", err)
		}
		ev.NationalEventID = &link
	}
	return &ev, nil
}

func nullableID(eventID *id.EventID) any {
	if eventID == nil {
		return nil
	}
	return eventID.String()
}
