package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"quorum/internal/assembly/models"
	id "quorum/pkg/domain"
	"quorum/pkg/platform/sentinel"
)

// InMemory stores events in memory. Returned events are copies.
type InMemory struct {
	mu     sync.RWMutex
	events map[id.EventID]*models.Event
}

func NewInMemory() *InMemory {
	return &InMemory{events: make(map[id.EventID]*models.Event)}
}

func (s *InMemory) Create(_ context.Context, event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[event.ID]; ok {
		return fmt.Errorf("event %s: %w", event.ID, sentinel.ErrAlreadyUsed)
	}
	s.events[event.ID] = clone(event)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, eventID id.EventID) (*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[eventID]
	if !ok {
		return nil, fmt.Errorf("event %s: %w", eventID, sentinel.ErrNotFound)
	}
	return clone(ev), nil
}

// List returns every event ordered by creation time.
func (s *InMemory) List(_ context.Context) ([]*models.Event, error) {
	s.mu.RLock()
	out := make([]*models.Event, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, clone(ev))
	}
	s.mu.RUnlock()
	sortEvents(out)
	return out, nil
}

// ListLinked returns the state events linked to nationalID.
func (s *InMemory) ListLinked(_ context.Context, nationalID id.EventID) ([]*models.Event, error) {
	s.mu.RLock()
	var out []*models.Event
	for _, ev := range s.events {
		if ev.NationalEventID != nil && *ev.NationalEventID == nationalID {
			out = append(out, clone(ev))
		}
	}
	s.mu.RUnlock()
	sortEvents(out)
	return out, nil
}

func (s *InMemory) Update(_ context.Context, event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[event.ID]; !ok {
		return fmt.Errorf("event %s: %w", event.ID, sentinel.ErrNotFound)
	}
	s.events[event.ID] = clone(event)
	return nil
}

func clone(ev *models.Event) *models.Event {
	c := *ev
	if ev.NationalEventID != nil {
		link := *ev.NationalEventID
		c.NationalEventID = &link
	}
	return &c
}

func sortEvents(events []*models.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].ID.String() < events[j].ID.String()
		}
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
}
