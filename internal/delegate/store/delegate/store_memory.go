package delegate

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"quorum/internal/delegate/models"
	id "quorum/pkg/domain"
	"quorum/pkg/platform/sentinel"
)

// InMemory keeps delegates in memory with the same uniqueness rules as the
// delegates table: one record per person, one alternate per elected delegate.
type InMemory struct {
	mu        sync.RWMutex
	delegates map[id.DelegateID]*models.Delegate
	byPerson  map[id.PersonID]id.DelegateID
	replaced  map[id.DelegateID]id.DelegateID // elected -> alternate
}

func NewInMemory() *InMemory {
	return &InMemory{
		delegates: make(map[id.DelegateID]*models.Delegate),
		byPerson:  make(map[id.PersonID]id.DelegateID),
		replaced:  make(map[id.DelegateID]id.DelegateID),
	}
}

func (s *InMemory) Create(_ context.Context, d *models.Delegate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byPerson[d.PersonID]; ok {
		return fmt.Errorf("person %s: %w", d.PersonID.Masked(), sentinel.ErrAlreadyUsed)
	}
	if d.Alternate != nil {
		if _, ok := s.replaced[d.Alternate.ReplacesID]; ok {
			return fmt.Errorf("delegate %s already has an alternate: %w", d.Alternate.ReplacesID, sentinel.ErrConflict)
		}
		s.replaced[d.Alternate.ReplacesID] = d.ID
	}
	s.delegates[d.ID] = d.Clone()
	s.byPerson[d.PersonID] = d.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, delegateID id.DelegateID) (*models.Delegate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.delegates[delegateID]
	if !ok {
		return nil, fmt.Errorf("delegate %s: %w", delegateID, sentinel.ErrNotFound)
	}
	return d.Clone(), nil
}

func (s *InMemory) FindByPerson(_ context.Context, person id.PersonID) (*models.Delegate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	delegateID, ok := s.byPerson[person]
	if !ok {
		return nil, fmt.Errorf("person %s: %w", person.Masked(), sentinel.ErrNotFound)
	}
	return s.delegates[delegateID].Clone(), nil
}

// FindAlternateFor returns the alternate replacing electedID.
func (s *InMemory) FindAlternateFor(_ context.Context, electedID id.DelegateID) (*models.Delegate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	alternateID, ok := s.replaced[electedID]
	if !ok {
		return nil, fmt.Errorf("alternate for %s: %w", electedID, sentinel.ErrNotFound)
	}
	return s.delegates[alternateID].Clone(), nil
}

// ListRoster returns one state's delegates in an event, oldest first.
func (s *InMemory) ListRoster(_ context.Context, event id.EventID, state id.StateCode) ([]*models.Delegate, error) {
	return s.filter(func(d *models.Delegate) bool {
		return d.Event == event && d.State == state
	}), nil
}

// ListByEvent returns every delegate registered directly in event.
func (s *InMemory) ListByEvent(_ context.Context, event id.EventID) ([]*models.Delegate, error) {
	return s.filter(func(d *models.Delegate) bool {
		return d.Event == event
	}), nil
}

func (s *InMemory) CountByEvent(_ context.Context, event id.EventID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, d := range s.delegates {
		if d.Event == event {
			n++
		}
	}
	return n, nil
}

// Update replaces the mutable fields. Person, event, state and kind are
// fixed at creation.
func (s *InMemory) Update(_ context.Context, d *models.Delegate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.delegates[d.ID]; !ok {
		return fmt.Errorf("delegate %s: %w", d.ID, sentinel.ErrNotFound)
	}
	s.delegates[d.ID] = d.Clone()
	return nil
}

func (s *InMemory) Delete(_ context.Context, delegateID id.DelegateID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.delegates[delegateID]
	if !ok {
		return fmt.Errorf("delegate %s: %w", delegateID, sentinel.ErrNotFound)
	}
	delete(s.delegates, delegateID)
	delete(s.byPerson, d.PersonID)
	if d.Alternate != nil {
		delete(s.replaced, d.Alternate.ReplacesID)
	}
	return nil
}

func (s *InMemory) filter(keep func(*models.Delegate) bool) []*models.Delegate {
	s.mu.RLock()
	var out []*models.Delegate
	for _, d := range s.delegates {
		if keep(d) {
			out = append(out, d.Clone())
		}
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
