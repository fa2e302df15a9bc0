package models

import (
	"net/mail"
	"strings"
	"time"

	dErrors "quorum/pkg/domain-errors"
)

// RegisterRequest is the input to RegisterDelegate. State may be omitted for
// state events, where it defaults to the event's state.
type RegisterRequest struct {
	State      string `json:"state"`
	PersonID   string `json:"person_id"`
	FullName   string `json:"full_name"`
	Gender     string `json:"gender"`
	Category   string `json:"category"`
	Kind       Kind   `json:"kind"`
	ReplacesID string `json:"replaces_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Group      string `json:"group,omitempty"`
}

func (r *RegisterRequest) Normalize() {
	r.State = strings.ToUpper(strings.TrimSpace(r.State))
	r.FullName = strings.Join(strings.Fields(r.FullName), " ")
	r.Gender = strings.ToLower(strings.TrimSpace(r.Gender))
	r.Category = strings.ToLower(strings.TrimSpace(r.Category))
	r.Kind = Kind(strings.ToLower(strings.TrimSpace(string(r.Kind))))
	if r.Kind == "" {
		r.Kind = KindElected
	}
	r.ReplacesID = strings.TrimSpace(r.ReplacesID)
	r.Reason = strings.TrimSpace(r.Reason)
	r.Group = strings.TrimSpace(r.Group)
}

func (r *RegisterRequest) Validate() error {
	if r.FullName == "" {
		return dErrors.New(dErrors.CodeValidation, "full_name is required")
	}
	if r.Category == "" {
		return dErrors.New(dErrors.CodeValidation, "category is required")
	}
	if !r.Kind.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "kind must be 'elected', 'born_seat' or 'alternate'")
	}
	return nil
}

// UpdateRequest edits a delegate. Nil fields are left unchanged.
type UpdateRequest struct {
	FullName *string `json:"full_name,omitempty"`
	Gender   *string `json:"gender,omitempty"`
	Category *string `json:"category,omitempty"`
	Group    *string `json:"group,omitempty"`
	Reason   *string `json:"reason,omitempty"`
}

func (r *UpdateRequest) Normalize() {
	trim := func(p *string, lower bool) *string {
		if p == nil {
			return nil
		}
		v := strings.TrimSpace(*p)
		if lower {
			v = strings.ToLower(v)
		}
		return &v
	}
	if r.FullName != nil {
		name := strings.Join(strings.Fields(*r.FullName), " ")
		r.FullName = &name
	}
	r.Gender = trim(r.Gender, true)
	r.Category = trim(r.Category, true)
	r.Group = trim(r.Group, false)
	r.Reason = trim(r.Reason, false)
}

func (r *UpdateRequest) Validate() error {
	if r.FullName == nil && r.Gender == nil && r.Category == nil && r.Group == nil && r.Reason == nil {
		return dErrors.New(dErrors.CodeValidation, "no fields to update")
	}
	if r.FullName != nil && *r.FullName == "" {
		return dErrors.New(dErrors.CodeValidation, "full_name cannot be empty")
	}
	if r.Category != nil && *r.Category == "" {
		return dErrors.New(dErrors.CodeValidation, "category cannot be empty")
	}
	return nil
}

// CompleteRegistrationRequest carries the full-registration profile.
type CompleteRegistrationRequest struct {
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	BirthDate     string `json:"birth_date"`
	Address       string `json:"address"`
	Organization  string `json:"organization"`
	Accessibility string `json:"accessibility"`
}

func (r *CompleteRegistrationRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Phone = strings.TrimSpace(r.Phone)
	r.BirthDate = strings.TrimSpace(r.BirthDate)
	r.Address = strings.TrimSpace(r.Address)
	r.Organization = strings.TrimSpace(r.Organization)
	r.Accessibility = strings.TrimSpace(r.Accessibility)
}

// ToProfile validates the request and builds the profile.
func (r *CompleteRegistrationRequest) ToProfile(d *Delegate, now time.Time) (*Profile, error) {
	if r.Email == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "email is invalid")
	}
	p := &Profile{
		DelegateID:    d.ID,
		Email:         r.Email,
		Phone:         r.Phone,
		Address:       r.Address,
		Organization:  r.Organization,
		Accessibility: r.Accessibility,
		CompletedAt:   now,
	}
	if r.BirthDate != "" {
		birth, err := time.Parse(time.DateOnly, r.BirthDate)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, "birth_date must be YYYY-MM-DD")
		}
		if birth.After(now) {
			return nil, dErrors.New(dErrors.CodeValidation, "birth_date cannot be in the future")
		}
		p.BirthDate = &birth
	}
	return p, nil
}

// PromoteRequest names the national event to mirror into. Empty uses the
// state event's linked national event.
type PromoteRequest struct {
	NationalEventID string `json:"national_event_id"`
}
