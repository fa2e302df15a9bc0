package models

import (
	"strings"
	"time"

	id "quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
)

// Kind distinguishes state assemblies from the national one.
type Kind string

const (
	KindState    Kind = "state"
	KindNational Kind = "national"
)

func (k Kind) IsValid() bool {
	return k == KindState || k == KindNational
}

const maxNameLength = 200

// Event is one assembly instance.
//
// Invariants:
//   - Name is non-empty and at most 200 characters
//   - TargetCount >= 0
//   - State is a known state code for state events and empty for national ones
//   - NationalEventID is only set on state events
type Event struct {
	ID              id.EventID   `json:"id"`
	Kind            Kind         `json:"kind"`
	State           id.StateCode `json:"state,omitempty"`
	Name            string       `json:"name"`
	TargetCount     int          `json:"target_count"`
	NationalEventID *id.EventID  `json:"national_event_id,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

func (e *Event) IsNational() bool {
	return e.Kind == KindNational
}

// NewEvent validates invariants and builds an Event.
func NewEvent(eventID id.EventID, kind Kind, state id.StateCode, name string, target int, national *id.EventID, now time.Time) (*Event, error) {
	if !kind.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "event kind must be 'state' or 'national'")
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	if target < 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "target count cannot be negative")
	}
	switch kind {
	case KindState:
		if !state.IsValid() {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "state events need a valid state code")
		}
	case KindNational:
		if state != "" {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "national events have no state code")
		}
		if national != nil {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "national events cannot link to another national event")
		}
	}
	return &Event{
		ID:              eventID,
		Kind:            kind,
		State:           state,
		Name:            name,
		TargetCount:     target,
		NationalEventID: national,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func validateName(name string) error {
	if name == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "event name cannot be empty")
	}
	if len(name) > maxNameLength {
		return dErrors.New(dErrors.CodeInvariantViolation, "event name must be 200 characters or less")
	}
	return nil
}

// Rename applies an administrative name correction.
func (e *Event) Rename(name string, now time.Time) error {
	if err := validateName(name); err != nil {
		return err
	}
	e.Name = name
	e.UpdatedAt = now
	return nil
}

// SetTarget applies an administrative target correction.
func (e *Event) SetTarget(target int, now time.Time) error {
	if target < 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "target count cannot be negative")
	}
	e.TargetCount = target
	e.UpdatedAt = now
	return nil
}

// CreateEventRequest is the input to CreateEvent.
type CreateEventRequest struct {
	Kind            Kind   `json:"kind"`
	State           string `json:"state"`
	Name            string `json:"name"`
	TargetCount     int    `json:"target_count"`
	NationalEventID string `json:"national_event_id"`
}

func (r *CreateEventRequest) Normalize() {
	r.Kind = Kind(strings.ToLower(strings.TrimSpace(string(r.Kind))))
	r.State = strings.ToUpper(strings.TrimSpace(r.State))
	r.Name = strings.TrimSpace(r.Name)
	r.NationalEventID = strings.TrimSpace(r.NationalEventID)
}

func (r *CreateEventRequest) Validate() error {
	if !r.Kind.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "kind must be 'state' or 'national'")
	}
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if r.TargetCount < 0 {
		return dErrors.New(dErrors.CodeValidation, "target_count cannot be negative")
	}
	if r.Kind == KindState && r.State == "" {
		return dErrors.New(dErrors.CodeValidation, "state is required for state events")
	}
	if r.Kind == KindNational && (r.State != "" || r.NationalEventID != "") {
		return dErrors.New(dErrors.CodeValidation, "national events take neither state nor national_event_id")
	}
	return nil
}

// UpdateEventRequest carries administrative corrections. Nil fields are
// left unchanged.
type UpdateEventRequest struct {
	Name            *string `json:"name,omitempty"`
	TargetCount     *int    `json:"target_count,omitempty"`
	NationalEventID *string `json:"national_event_id,omitempty"`
}

func (r *UpdateEventRequest) Normalize() {
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		r.Name = &name
	}
	if r.NationalEventID != nil {
		link := strings.TrimSpace(*r.NationalEventID)
		r.NationalEventID = &link
	}
}

func (r *UpdateEventRequest) Validate() error {
	if r.Name == nil && r.TargetCount == nil && r.NationalEventID == nil {
		return dErrors.New(dErrors.CodeValidation, "no fields to update")
	}
	if r.Name != nil && *r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name cannot be empty")
	}
	if r.TargetCount != nil && *r.TargetCount < 0 {
		return dErrors.New(dErrors.CodeValidation, "target_count cannot be negative")
	}
	return nil
}
