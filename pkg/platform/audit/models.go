package audit

import (
	"context"
	"time"

	id "quorum/pkg/domain"
)

// EventCategory classifies audit events by retention and routing needs.
type EventCategory string

const (
	// CategoryCompliance covers roster changes that must be reconstructible:
	// registrations, deletions, validations, promotions.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers routine activity useful for support.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	Action    string
	// Subject is the delegate or event the action was applied to.
	Subject  string
	Assembly id.EventID
	State    id.StateCode
	// Detail carries the quota category, the kind of a duplicate, or a
	// cleanup warning, depending on Action.
	Detail    string
	Reason    string
	RequestID string
	// ActorID is the registration desk operator, when known.
	ActorID string
}

type AuditEvent string

const (
	EventDelegateRegistered AuditEvent = "delegate_registered"
	EventDelegateUpdated    AuditEvent = "delegate_updated"
	EventDelegateDeleted    AuditEvent = "delegate_deleted"
	EventDelegateValidated  AuditEvent = "delegate_validated"
	EventDelegatePromoted   AuditEvent = "delegate_promoted"
	EventMirrorRemoved      AuditEvent = "mirror_removed"
	EventQuotaFull          AuditEvent = "quota_full"
	EventDuplicatePerson    AuditEvent = "duplicate_person"

	EventAssemblyCreated AuditEvent = "event_created"
	EventAssemblyUpdated AuditEvent = "event_updated"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventDelegateRegistered: CategoryCompliance,
	EventDelegateUpdated:    CategoryCompliance,
	EventDelegateDeleted:    CategoryCompliance,
	EventDelegateValidated:  CategoryCompliance,
	EventDelegatePromoted:   CategoryCompliance,
	EventMirrorRemoved:      CategoryCompliance,
	EventAssemblyCreated:    CategoryCompliance,
	EventAssemblyUpdated:    CategoryCompliance,

	EventQuotaFull:       CategoryOperations,
	EventDuplicatePerson: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}
