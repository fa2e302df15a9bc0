// Package mirror stores national-roster copies of promoted state delegates.
package mirror

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"quorum/internal/delegate/models"
	"quorum/internal/platform/postgres"
	"quorum/internal/quota"
	id "quorum/pkg/domain"
	"quorum/pkg/platform/sentinel"
)

type key struct {
	national id.EventID
	person   id.PersonID
	state    id.StateCode
}

type InMemory struct {
	mu      sync.RWMutex
	mirrors map[key]models.Mirror
}

func NewInMemory() *InMemory {
	return &InMemory{mirrors: make(map[key]models.Mirror)}
}

func (s *InMemory) Create(_ context.Context, m *models.Mirror) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{m.NationalEventID, m.PersonID, m.State}
	if _, ok := s.mirrors[k]; ok {
		return fmt.Errorf("mirror of %s/%s: %w", m.State, m.PersonID.Masked(), sentinel.ErrAlreadyUsed)
	}
	s.mirrors[k] = *m
	return nil
}

// DeleteByPerson removes every mirror of (person, state) and reports how
// many were removed.
func (s *InMemory) DeleteByPerson(_ context.Context, person id.PersonID, state id.StateCode) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.mirrors {
		if k.person == person && k.state == state {
			delete(s.mirrors, k)
			n++
		}
	}
	return n, nil
}

// ListByEvent returns the mirrors on a national roster ordered by state and
// promotion time.
func (s *InMemory) ListByEvent(_ context.Context, nationalID id.EventID) ([]*models.Mirror, error) {
	s.mu.RLock()
	var out []*models.Mirror
	for k, m := range s.mirrors {
		if k.national == nationalID {
			out = append(out, &m)
		}
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].State != out[j].State {
			return out[i].State < out[j].State
		}
		return out[i].PromotedAt.Before(out[j].PromotedAt)
	})
	return out, nil
}

type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Create(ctx context.Context, m *models.Mirror) error {
	_, err := postgres.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO national_mirrors (national_event_id, person_id, state_code, delegate_id, full_name, gender, category, promoted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, m.NationalEventID.String(), m.PersonID.String(), m.State.String(), m.DelegateID.String(),
		m.FullName, m.Gender.String(), m.Category.String(), m.PromotedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err, "") {
			return fmt.Errorf("mirror of %s/%s: %w", m.State, m.PersonID.Masked(), sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert mirror: %w", err)
	}
	return nil
}

func (s *Postgres) DeleteByPerson(ctx context.Context, person id.PersonID, state id.StateCode) (int, error) {
	res, err := postgres.Conn(ctx, s.db).ExecContext(ctx,
		`DELETE FROM national_mirrors WHERE person_id = $1 AND state_code = $2`, person.String(), state.String())
	if err != nil {
		return 0, fmt.Errorf("delete mirror: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete mirror: %w", err)
	}
	return int(n), nil
}

func (s *Postgres) ListByEvent(ctx context.Context, nationalID id.EventID) ([]*models.Mirror, error) {
	return s.list(ctx, `
		SELECT national_event_id, person_id, state_code, delegate_id, full_name, gender, category, promoted_at
		FROM national_mirrors
		WHERE national_event_id = $1
		ORDER BY state_code, promoted_at
	`, nationalID.String())
}

func (s *Postgres) list(ctx context.Context, query string, args ...any) ([]*models.Mirror, error) {
	rows, err := postgres.Conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list mirrors: %w", err)
	}
	defer rows.Close()

	var out []*models.Mirror
	for rows.Next() {
		var (
			m                                 models.Mirror
			national, person, state, delegate string
			gender, category                  string
		)
		if err := rows.Scan(&national, &person, &state, &delegate, &m.FullName, &gender, &category, &m.PromotedAt); err != nil {
			return nil, fmt.Errorf("scan mirror: %w", err)
		}
		if m.NationalEventID, err = id.ParseEventID(national); err != nil {
			return nil, fmt.Errorf("parse national event id: %w", err)
		}
		if m.DelegateID, err = id.ParseDelegateID(delegate); err != nil {
			return nil, fmt.Errorf("parse delegate id: %w", err)
		}
		m.PersonID = id.PersonID(person)
		m.State = id.StateCode(state)
		m.Gender = id.Gender(gender)
		m.Category = quota.Category(category)
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mirrors: %w", err)
	}
	return out, nil
}
