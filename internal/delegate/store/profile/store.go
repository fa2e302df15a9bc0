// Package profile stores full-registration profiles keyed by delegate ID.
package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"quorum/internal/delegate/models"
	"quorum/internal/platform/postgres"
	id "quorum/pkg/domain"
	"quorum/pkg/platform/sentinel"
)

type InMemory struct {
	mu       sync.RWMutex
	profiles map[id.DelegateID]models.Profile
}

func NewInMemory() *InMemory {
	return &InMemory{profiles: make(map[id.DelegateID]models.Profile)}
}

// Save inserts or replaces the profile.
func (s *InMemory) Save(_ context.Context, p *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.DelegateID] = *p
	return nil
}

func (s *InMemory) Find(_ context.Context, delegateID id.DelegateID) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[delegateID]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", delegateID, sentinel.ErrNotFound)
	}
	return &p, nil
}

// Delete removes the profile. A missing profile is not an error.
func (s *InMemory) Delete(_ context.Context, delegateID id.DelegateID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.profiles[delegateID]
	delete(s.profiles, delegateID)
	return ok, nil
}

type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Save(ctx context.Context, p *models.Profile) error {
	_, err := postgres.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO delegate_profiles (delegate_id, email, phone, birth_date, address, organization, accessibility, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (delegate_id) DO UPDATE SET
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			birth_date = EXCLUDED.birth_date,
			address = EXCLUDED.address,
			organization = EXCLUDED.organization,
			accessibility = EXCLUDED.accessibility,
			completed_at = EXCLUDED.completed_at
	`, p.DelegateID.String(), p.Email, p.Phone, p.BirthDate, p.Address, p.Organization, p.Accessibility, p.CompletedAt)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func (s *Postgres) Find(ctx context.Context, delegateID id.DelegateID) (*models.Profile, error) {
	var (
		p     models.Profile
		birth sql.NullTime
	)
	err := postgres.Conn(ctx, s.db).QueryRowContext(ctx, `
		SELECT email, phone, birth_date, address, organization, accessibility, completed_at
		FROM delegate_profiles WHERE delegate_id = $1
	`, delegateID.String()).Scan(&p.Email, &p.Phone, &birth, &p.Address, &p.Organization, &p.Accessibility, &p.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", delegateID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find profile: %w", err)
	}
	p.DelegateID = delegateID
	if birth.Valid {
		p.BirthDate = &birth.Time
	}
	return &p, nil
}

func (s *Postgres) Delete(ctx context.Context, delegateID id.DelegateID) (bool, error) {
	res, err := postgres.Conn(ctx, s.db).ExecContext(ctx,
		`DELETE FROM delegate_profiles WHERE delegate_id = $1`, delegateID.String())
	if err != nil {
		return false, fmt.Errorf("delete profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete profile: %w", err)
	}
	return n > 0, nil
}
