package delegate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"quorum/internal/delegate/models"
	"quorum/internal/platform/postgres"
	"quorum/internal/quota"
	id "quorum/pkg/domain"
	"quorum/pkg/platform/sentinel"
)

// Postgres persists delegates. Every method joins the transaction carried
// by ctx, so writes made from a ledger commit callback commit with the seat.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const delegateColumns = `id, event_id, state_code, person_id, full_name, gender, category, kind, status,
	token_id, replaces_id, substitution_reason, born_seat_group, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, d *models.Delegate) error {
	replaces, reason, group := variantColumns(d)
	_, err := postgres.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO delegates (`+delegateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, d.ID.String(), d.Event.String(), d.State.String(), d.PersonID.String(), d.FullName,
		d.Gender.String(), d.Category.String(), string(d.Kind), string(d.Status), d.Token.String(),
		replaces, reason, group, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		switch {
		case postgres.IsUniqueViolation(err, "uq_delegates_person"):
			return fmt.Errorf("person %s: %w", d.PersonID.Masked(), sentinel.ErrAlreadyUsed)
		case postgres.IsUniqueViolation(err, "uq_delegates_replaces"):
			return fmt.Errorf("delegate already has an alternate: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert delegate: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, delegateID id.DelegateID) (*models.Delegate, error) {
	return s.findOne(ctx, `SELECT `+delegateColumns+` FROM delegates WHERE id = $1`, delegateID.String())
}

func (s *Postgres) FindByPerson(ctx context.Context, person id.PersonID) (*models.Delegate, error) {
	return s.findOne(ctx, `SELECT `+delegateColumns+` FROM delegates WHERE person_id = $1`, person.String())
}

func (s *Postgres) FindAlternateFor(ctx context.Context, electedID id.DelegateID) (*models.Delegate, error) {
	return s.findOne(ctx, `SELECT `+delegateColumns+` FROM delegates WHERE replaces_id = $1`, electedID.String())
}

func (s *Postgres) ListRoster(ctx context.Context, event id.EventID, state id.StateCode) ([]*models.Delegate, error) {
	return s.query(ctx, `
		SELECT `+delegateColumns+` FROM delegates
		WHERE event_id = $1 AND state_code = $2
		ORDER BY created_at, id
	`, event.String(), state.String())
}

func (s *Postgres) ListByEvent(ctx context.Context, event id.EventID) ([]*models.Delegate, error) {
	return s.query(ctx, `
		SELECT `+delegateColumns+` FROM delegates
		WHERE event_id = $1
		ORDER BY created_at, id
	`, event.String())
}

func (s *Postgres) CountByEvent(ctx context.Context, event id.EventID) (int, error) {
	var n int
	err := postgres.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM delegates WHERE event_id = $1`, event.String()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count delegates: %w", err)
	}
	return n, nil
}

func (s *Postgres) Update(ctx context.Context, d *models.Delegate) error {
	replaces, reason, group := variantColumns(d)
	res, err := postgres.Conn(ctx, s.db).ExecContext(ctx, `
		UPDATE delegates
		SET full_name = $2, gender = $3, category = $4, status = $5, token_id = $6,
			replaces_id = $7, substitution_reason = $8, born_seat_group = $9, updated_at = $10
		WHERE id = $1
	`, d.ID.String(), d.FullName, d.Gender.String(), d.Category.String(), string(d.Status), d.Token.String(),
		replaces, reason, group, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update delegate: %w", err)
	}
	return requireRow(res, d.ID)
}

func (s *Postgres) Delete(ctx context.Context, delegateID id.DelegateID) error {
	res, err := postgres.Conn(ctx, s.db).ExecContext(ctx, `DELETE FROM delegates WHERE id = $1`, delegateID.String())
	if err != nil {
		return fmt.Errorf("delete delegate: %w", err)
	}
	return requireRow(res, delegateID)
}

func (s *Postgres) findOne(ctx context.Context, query string, arg any) (*models.Delegate, error) {
	d, err := scanDelegate(postgres.Conn(ctx, s.db).QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("delegate: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find delegate: %w", err)
	}
	return d, nil
}

func (s *Postgres) query(ctx context.Context, query string, args ...any) ([]*models.Delegate, error) {
	rows, err := postgres.Conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list delegates: %w", err)
	}
	defer rows.Close()

	var out []*models.Delegate
	for rows.Next() {
		d, err := scanDelegate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delegate: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate delegates: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDelegate(row rowScanner) (*models.Delegate, error) {
	var (
		d                                   models.Delegate
		delegateID, eventID, state, person  string
		gender, category, kind, status, tok string
		replaces                            sql.NullString
		reason, group                       string
	)
	if err := row.Scan(&delegateID, &eventID, &state, &person, &d.FullName, &gender, &category, &kind, &status,
		&tok, &replaces, &reason, &group, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if d.ID, err = id.ParseDelegateID(delegateID); err != nil {
		return nil, fmt.Errorf("parse delegate id: %w", err)
	}
	if d.Event, err = id.ParseEventID(eventID); err != nil {
		return nil, fmt.Errorf("parse event id: %w", err)
	}
	if d.Token, err = id.ParseTokenID(tok); err != nil {
		return nil, fmt.Errorf("parse token id: %w", err)
	}
	d.State = id.StateCode(state)
	d.PersonID = id.PersonID(person)
	d.Gender = id.Gender(gender)
	d.Category = quota.Category(category)
	d.Kind = models.Kind(kind)
	d.Status = models.Status(status)

	switch d.Kind {
	case models.KindAlternate:
		alt := &models.AlternateDetails{Reason: reason}
		if replaces.Valid {
			if alt.ReplacesID, err = id.ParseDelegateID(replaces.String); err != nil {
				return nil, fmt.Errorf("parse replaces id: %w", err)
			}
		}
		d.Alternate = alt
	case models.KindBornSeat:
		d.BornSeat = &models.BornSeatDetails{Group: group}
	}
	return &d, nil
}

func variantColumns(d *models.Delegate) (replaces any, reason, group string) {
	if d.Alternate != nil {
		replaces = d.Alternate.ReplacesID.String()
		reason = d.Alternate.Reason
	}
	if d.BornSeat != nil {
		group = d.BornSeat.Group
	}
	return replaces, reason, group
}

func requireRow(res sql.Result, delegateID id.DelegateID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delegate %s: %w", delegateID, sentinel.ErrNotFound)
	}
	return nil
}
