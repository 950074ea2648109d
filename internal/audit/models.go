package audit

import (
	"time"

	"github.com/google/uuid"

	id "civreg/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance.
	// These require tamper-proof storage and long retention.
	// Examples: certificate lifecycle transitions, account creation.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring and forensics.
	// Examples: auth failures, forbidden transition attempts.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and operational visibility.
	// These can be sampled or aggregated with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
//
// ActorID is empty for system-originated entries. CertificateID is nil for
// events that do not concern a certificate (logins, registrations).
type Event struct {
	ID            uuid.UUID
	Category      EventCategory
	Timestamp     time.Time
	ActorID       id.UserID
	CertificateID id.CertificateID
	Action        string
	// Details carries the structured payload: certificate number, notes,
	// rejection reason. Keys are stable; values are strings.
	Details   map[string]string
	IP        string
	UserAgent string
	RequestID string
}

// Action is the closed vocabulary of audit actions.
type Action string

const (
	// Certificate lifecycle
	ActionCertificateCreated       Action = "certificate_created"
	ActionCertificateReviewStarted Action = "certificate_review_started"
	ActionCertificateVerified      Action = "certificate_verified"
	ActionCertificateApproved      Action = "certificate_approved"
	ActionCertificateRejected      Action = "certificate_rejected"

	// Accounts
	ActionUserRegistered Action = "user_registered"
	ActionUserLoggedIn   Action = "user_logged_in"
	ActionAuthFailed     Action = "auth_failed"
)

// actionCategories maps each audit action to its category.
// Compliance: legal/regulatory significance, long retention required.
// Security: security monitoring, SIEM integration, alerting.
// Operations: debugging, operational visibility, can be sampled.
var actionCategories = map[Action]EventCategory{
	ActionCertificateCreated:       CategoryCompliance,
	ActionCertificateReviewStarted: CategoryCompliance,
	ActionCertificateVerified:      CategoryCompliance,
	ActionCertificateApproved:      CategoryCompliance,
	ActionCertificateRejected:      CategoryCompliance,

	ActionUserRegistered: CategoryCompliance,
	ActionUserLoggedIn:   CategoryOperations,

	ActionAuthFailed: CategorySecurity,
}

// Category returns the category for the action, defaulting to operations for
// unknown actions so nothing is silently dropped.
func (a Action) Category() EventCategory {
	if c, ok := actionCategories[a]; ok {
		return c
	}
	return CategoryOperations
}

func (a Action) String() string {
	return string(a)
}
