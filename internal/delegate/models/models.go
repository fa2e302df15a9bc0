package models

import (
	"fmt"
	"time"

	allocation "quorum/internal/allocation/models"
	"quorum/internal/quota"
	id "quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
)

// Kind is the delegate variant.
type Kind string

const (
	KindElected   Kind = "elected"
	KindBornSeat  Kind = "born_seat"
	KindAlternate Kind = "alternate"
)

func (k Kind) IsValid() bool {
	switch k {
	case KindElected, KindBornSeat, KindAlternate:
		return true
	}
	return false
}

// Status tracks the full-registration lifecycle: pending -> validated.
type Status string

const (
	StatusPending   Status = "pending"
	StatusValidated Status = "validated"
)

// AlternateDetails belongs to alternates only.
type AlternateDetails struct {
	ReplacesID id.DelegateID `json:"replaces_id"`
	Reason     string        `json:"reason"`
}

// BornSeatDetails belongs to born-seat delegates only.
type BornSeatDetails struct {
	Group string `json:"group"`
}

// Delegate is a person holding exactly one seat.
//
// Invariants:
//   - Alternate is set iff Kind is alternate; it names an elected delegate and a reason
//   - BornSeat is set iff Kind is born_seat; its group is non-empty
//   - Token is the ID of the seat reservation held in the allocation ledger
type Delegate struct {
	ID        id.DelegateID     `json:"id"`
	Event     id.EventID        `json:"event_id"`
	State     id.StateCode      `json:"state"`
	PersonID  id.PersonID       `json:"person_id"`
	FullName  string            `json:"full_name"`
	Gender    id.Gender         `json:"gender"`
	Category  quota.Category    `json:"category"`
	Kind      Kind              `json:"kind"`
	Status    Status            `json:"status"`
	Token     id.TokenID        `json:"seat_token"`
	Alternate *AlternateDetails `json:"alternate,omitempty"`
	BornSeat  *BornSeatDetails  `json:"born_seat,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Params collects the constructor inputs of a Delegate.
type Params struct {
	ID        id.DelegateID
	Event     id.EventID
	State     id.StateCode
	PersonID  id.PersonID
	FullName  string
	Gender    id.Gender
	Category  quota.Category
	Kind      Kind
	Alternate *AlternateDetails
	BornSeat  *BornSeatDetails
	Now       time.Time
}

// NewDelegate validates the variant and builds a pending Delegate without a
// seat. The seat token is assigned once the ledger grants the reservation.
func NewDelegate(p Params) (*Delegate, error) {
	if p.PersonID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "person identifier is required")
	}
	if p.FullName == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "full name is required")
	}
	if len(p.FullName) > 200 {
		return nil, dErrors.New(dErrors.CodeValidation, "full name must be 200 characters or less")
	}
	if !p.Gender.IsValid() {
		p.Gender = id.GenderUnspecified
	}
	if err := validateVariant(p.Kind, p.Alternate, p.BornSeat); err != nil {
		return nil, err
	}
	return &Delegate{
		ID:        p.ID,
		Event:     p.Event,
		State:     p.State,
		PersonID:  p.PersonID,
		FullName:  p.FullName,
		Gender:    p.Gender,
		Category:  p.Category,
		Kind:      p.Kind,
		Status:    StatusPending,
		Alternate: p.Alternate,
		BornSeat:  p.BornSeat,
		CreatedAt: p.Now,
		UpdatedAt: p.Now,
	}, nil
}

func validateVariant(kind Kind, alt *AlternateDetails, born *BornSeatDetails) error {
	switch kind {
	case KindElected:
		if alt != nil || born != nil {
			return dErrors.New(dErrors.CodeValidation, "elected delegates carry no substitution or group data")
		}
	case KindAlternate:
		if born != nil {
			return dErrors.New(dErrors.CodeValidation, "alternates carry no born-seat group")
		}
		if alt == nil || alt.ReplacesID.IsNil() || alt.Reason == "" {
			return dErrors.New(dErrors.CodeMissingSubstitutionData, "alternates need the replaced delegate and a reason")
		}
	case KindBornSeat:
		if alt != nil {
			return dErrors.New(dErrors.CodeValidation, "born-seat delegates carry no substitution data")
		}
		if born == nil || born.Group == "" {
			return dErrors.New(dErrors.CodeMissingBornSeatGroup, "born-seat delegates need a group label")
		}
	default:
		return dErrors.New(dErrors.CodeValidation, "kind must be 'elected', 'born_seat' or 'alternate'")
	}
	return nil
}

// Seat rebuilds the seat token the delegate holds.
func (d *Delegate) Seat() allocation.SeatToken {
	return allocation.SeatToken{
		ID:         d.Token,
		Event:      d.Event,
		State:      d.State,
		Category:   d.Category,
		Gender:     d.Gender,
		ReservedAt: d.CreatedAt,
	}
}

// SeatRequest is the ledger request for the delegate's current seat.
func (d *Delegate) SeatRequest() allocation.SeatRequest {
	return allocation.SeatRequest{Event: d.Event, State: d.State, Category: d.Category, Gender: d.Gender}
}

func (d *Delegate) IsValidated() bool {
	return d.Status == StatusValidated
}

// Validate flips pending to validated.
func (d *Delegate) Validate(now time.Time) error {
	if d.Status == StatusValidated {
		return dErrors.New(dErrors.CodeConflict, "delegate registration is already complete")
	}
	d.Status = StatusValidated
	d.UpdatedAt = now
	return nil
}

// Clone returns a deep copy.
func (d *Delegate) Clone() *Delegate {
	c := *d
	if d.Alternate != nil {
		alt := *d.Alternate
		c.Alternate = &alt
	}
	if d.BornSeat != nil {
		born := *d.BornSeat
		c.BornSeat = &born
	}
	return &c
}

// DuplicatePersonError reports a person identifier that is already
// registered. It unwraps to a duplicate_person domain error.
type DuplicatePersonError struct {
	ExistingID    id.DelegateID
	ExistingKind  Kind
	ExistingState id.StateCode
}

func (e *DuplicatePersonError) Error() string {
	return fmt.Sprintf("person is already registered as %s in %s", e.ExistingKind, e.ExistingState)
}

func (e *DuplicatePersonError) Unwrap() error {
	return dErrors.New(dErrors.CodeDuplicatePerson, e.Error())
}

// DeletionReport lists what a deletion cleaned up. Warnings are secondary
// cleanups that failed; the primary deletion stands regardless.
type DeletionReport struct {
	DelegateID     id.DelegateID `json:"delegate_id"`
	SeatReleased   bool          `json:"seat_released"`
	ProfileRemoved bool          `json:"profile_removed"`
	MirrorsRemoved int           `json:"mirrors_removed"`
	Warnings       []string      `json:"warnings,omitempty"`
}

// Profile is the full-registration record of a delegate.
type Profile struct {
	DelegateID    id.DelegateID `json:"delegate_id"`
	Email         string        `json:"email"`
	Phone         string        `json:"phone,omitempty"`
	BirthDate     *time.Time    `json:"birth_date,omitempty"`
	Address       string        `json:"address,omitempty"`
	Organization  string        `json:"organization,omitempty"`
	Accessibility string        `json:"accessibility,omitempty"`
	CompletedAt   time.Time     `json:"completed_at"`
}

// Mirror is a promoted state delegate's copy on the national roster, keyed
// by (PersonID, State) within the national event.
type Mirror struct {
	NationalEventID id.EventID     `json:"national_event_id"`
	PersonID        id.PersonID    `json:"person_id"`
	State           id.StateCode   `json:"state"`
	DelegateID      id.DelegateID  `json:"delegate_id"`
	FullName        string         `json:"full_name"`
	Gender          id.Gender      `json:"gender"`
	Category        quota.Category `json:"category"`
	PromotedAt      time.Time      `json:"promoted_at"`
}

// NewMirror copies the fields the national roster needs.
func NewMirror(d *Delegate, nationalID id.EventID, now time.Time) *Mirror {
	return &Mirror{
		NationalEventID: nationalID,
		PersonID:        d.PersonID,
		State:           d.State,
		DelegateID:      d.ID,
		FullName:        d.FullName,
		Gender:          d.Gender,
		Category:        d.Category,
		PromotedAt:      now,
	}
}
