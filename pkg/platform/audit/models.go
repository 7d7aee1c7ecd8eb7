package audit

import (
	"context"
	"time"

	id "anchorid/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose. Categories
// drive retention and routing, not behavior.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance:
	// enrollments, verification outcomes, ledger anchoring.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to monitoring and forensics:
	// auth failures, tampered ciphertexts, degraded anchoring.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine events useful for debugging.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	UserID    id.UserID
	DID       id.DID
	Action    string
	Decision  string
	Reason    string
	// Receipt carries the ledger receipt when the action was anchored.
	Receipt string
	// RequestID is the correlation ID from the HTTP request context.
	RequestID string
}

type AuditEvent string

const (
	// Enrollment events
	EventIdentityRegistered AuditEvent = "identity_registered"
	EventIdentityConflict   AuditEvent = "identity_conflict"

	// Verification events
	EventVerificationPassed AuditEvent = "verification_passed"
	EventVerificationFailed AuditEvent = "verification_failed"

	// Anchoring events
	EventAnchorDegraded AuditEvent = "anchor_degraded"
	EventAnchorFailed   AuditEvent = "anchor_failed"

	// Security events
	EventAuthFailed       AuditEvent = "auth_failed"
	EventCiphertextTamper AuditEvent = "ciphertext_tamper"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	EventIdentityRegistered: CategoryCompliance,
	EventVerificationPassed: CategoryCompliance,
	EventVerificationFailed: CategoryCompliance,

	EventIdentityConflict: CategorySecurity,
	EventAnchorDegraded:   CategorySecurity,
	EventAnchorFailed:     CategorySecurity,
	EventAuthFailed:       CategorySecurity,
	EventCiphertextTamper: CategorySecurity,
}

// Category returns the EventCategory for this audit event. Unknown events
// default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByDID(ctx context.Context, did id.DID) ([]Event, error)
}
