package models

import (
	"strings"
	"time"

	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
)

// Subject carries the vital-record data the certificate attests to. FullName
// is always required; the remaining fields apply per certificate type and
// stay optional.
type Subject struct {
	FullName     string `json:"full_name"`
	DateOfBirth  string `json:"date_of_birth,omitempty"`
	DateOfEvent  string `json:"date_of_event,omitempty"`
	PlaceOfEvent string `json:"place_of_event,omitempty"`
	FatherName   string `json:"father_name,omitempty"`
	MotherName   string `json:"mother_name,omitempty"`
	SpouseName   string `json:"spouse_name,omitempty"`
}

// Certificate is the aggregate root for one vital-record application.
//
// Invariants:
//   - Status is always one of the five lifecycle states and only moves along
//     validTransitions; APPROVED and REJECTED are terminal
//   - Number is assigned at creation and never reassigned
//   - VerifierID and VerifiedAt are both set or both unset; same for
//     ApproverID/ApprovedAt
//   - Artifact is non-empty if and only if Status is APPROVED
//   - records are never hard-deleted; terminal states are retained for history
type Certificate struct {
	ID        id.CertificateID   `json:"id"`
	Number    string             `json:"certificate_number"`
	Type      id.CertificateType `json:"type"`
	Status    Status             `json:"status"`
	OwnerID   id.UserID          `json:"owner_id"`
	Subject   Subject            `json:"subject"`
	Notes     string             `json:"notes,omitempty"`
	Artifact  string             `json:"artifact,omitempty"`
	IssuedAt  *time.Time         `json:"issued_at,omitempty"`
	ExpiresAt *time.Time         `json:"expires_at,omitempty"`

	VerifierID *id.UserID `json:"verifier_id,omitempty"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	ApproverID *id.UserID `json:"approver_id,omitempty"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCertificate validates the application and returns a PENDING certificate.
func NewCertificate(certID id.CertificateID, number string, certType id.CertificateType, owner id.UserID, subject Subject, now time.Time) (*Certificate, error) {
	if !certType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unsupported certificate type")
	}
	subject.FullName = strings.TrimSpace(subject.FullName)
	if subject.FullName == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "subject full name cannot be empty")
	}
	if owner.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "certificate must have an owner")
	}
	if number == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "certificate number cannot be empty")
	}
	return &Certificate{
		ID:        certID,
		Number:    number,
		Type:      certType,
		Status:    StatusPending,
		OwnerID:   owner,
		Subject:   subject,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsExpired reports whether the certificate has an expiry in the past.
func (c *Certificate) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

// CanStartReview checks the PENDING → UNDER_REVIEW transition.
// Use with ApplyReviewStart in Execute callbacks so the check and the
// mutation happen under the same lock.
func (c *Certificate) CanStartReview() error {
	if !c.Status.CanTransitionTo(StatusUnderReview) {
		return dErrors.New(dErrors.CodeInvariantViolation, "certificate is not pending review")
	}
	return nil
}

// ApplyReviewStart transitions the certificate to UNDER_REVIEW.
// Call CanStartReview first to validate the transition.
func (c *Certificate) ApplyReviewStart(now time.Time) {
	c.Status = StatusUnderReview
	c.UpdatedAt = now
}

// CanVerify checks the transition to VERIFIED.
func (c *Certificate) CanVerify() error {
	if !c.Status.CanTransitionTo(StatusVerified) {
		return dErrors.New(dErrors.CodeInvariantViolation, "certificate cannot be verified from status "+c.Status.String())
	}
	return nil
}

// ApplyVerification transitions to VERIFIED, recording the verifying actor.
// Call CanVerify first to validate the transition.
func (c *Certificate) ApplyVerification(verifier id.UserID, notes string, now time.Time) {
	c.Status = StatusVerified
	c.VerifierID = &verifier
	c.VerifiedAt = &now
	if notes != "" {
		c.Notes = notes
	}
	c.UpdatedAt = now
}

// CanApprove checks the transition to APPROVED.
func (c *Certificate) CanApprove() error {
	if !c.Status.CanTransitionTo(StatusApproved) {
		return dErrors.New(dErrors.CodeInvariantViolation, "certificate cannot be approved from status "+c.Status.String())
	}
	return nil
}

// ApplyApproval transitions to APPROVED, recording the approving actor, the
// issuance timestamp, and the verification artifact.
// Call CanApprove first to validate the transition.
func (c *Certificate) ApplyApproval(approver id.UserID, notes, artifact string, now time.Time) {
	c.Status = StatusApproved
	c.ApproverID = &approver
	c.ApprovedAt = &now
	c.IssuedAt = &now
	c.Artifact = artifact
	if notes != "" {
		c.Notes = notes
	}
	c.UpdatedAt = now
}

// CanReject checks the transition to REJECTED. Rejection is allowed from any
// non-terminal state.
func (c *Certificate) CanReject() error {
	if !c.Status.CanTransitionTo(StatusRejected) {
		return dErrors.New(dErrors.CodeInvariantViolation, "certificate cannot be rejected from status "+c.Status.String())
	}
	return nil
}

// ApplyRejection transitions to REJECTED. The reason replaces any prior notes.
// Call CanReject first to validate the transition.
func (c *Certificate) ApplyRejection(reason string, now time.Time) {
	c.Status = StatusRejected
	c.Notes = reason
	c.UpdatedAt = now
}
