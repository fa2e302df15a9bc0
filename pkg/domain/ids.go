// Package domain holds the value types shared across modules: typed
// identifiers, person identifiers, state codes and gender.
package domain

import (
	"github.com/google/uuid"

	dErrors "quorum/pkg/domain-errors"
)

// Typed identifiers keep event and delegate IDs from being mixed up at
// compile time. All of them are UUIDs underneath.
type (
	EventID    uuid.UUID
	DelegateID uuid.UUID
	TokenID    uuid.UUID
)

func NewEventID() EventID       { return EventID(uuid.New()) }
func NewDelegateID() DelegateID { return DelegateID(uuid.New()) }
func NewTokenID() TokenID       { return TokenID(uuid.New()) }

// ParseEventID parses an EventID at a trust boundary.
//
// Errors: returns CodeInvalidInput when the value is empty, malformed, or the
// nil UUID.
func ParseEventID(s string) (EventID, error) {
	u, err := parseUUID(s, "event ID")
	return EventID(u), err
}

func ParseDelegateID(s string) (DelegateID, error) {
	u, err := parseUUID(s, "delegate ID")
	return DelegateID(u), err
}

func ParseTokenID(s string) (TokenID, error) {
	u, err := parseUUID(s, "token ID")
	return TokenID(u), err
}

func parseUUID(s, name string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, name+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+name)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, name+" cannot be nil")
	}
	return u, nil
}

func (id EventID) String() string    { return uuid.UUID(id).String() }
func (id DelegateID) String() string { return uuid.UUID(id).String() }
func (id TokenID) String() string    { return uuid.UUID(id).String() }

func (id EventID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id DelegateID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id TokenID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id EventID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id DelegateID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id TokenID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }

func (id *EventID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id *DelegateID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id *TokenID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}
