package domain

import dErrors "civreg/pkg/domain-errors"

// Role is the canonical staff/citizen role vocabulary. Every authorization
// decision in the service maps onto this single enumeration.
//
// Usage: construct via ParseRole at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type Role string

const (
	RoleCitizen  Role = "CITIZEN"
	RoleClerk    Role = "CLERK"
	RoleVerifier Role = "VERIFIER"
	RoleApprover Role = "APPROVER"
	RoleAdmin    Role = "ADMIN"
)

// validRoles is the single source of truth for valid roles.
var validRoles = map[Role]bool{
	RoleCitizen:  true,
	RoleClerk:    true,
	RoleVerifier: true,
	RoleApprover: true,
	RoleAdmin:    true,
}

// ParseRole constructs a Role from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "role cannot be empty")
	}
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid role")
	}
	return r, nil
}

// IsValid checks if the role is one of the supported enum values.
func (r Role) IsValid() bool {
	return validRoles[r]
}

// IsStaff reports whether the role participates in certificate review.
func (r Role) IsStaff() bool {
	switch r {
	case RoleClerk, RoleVerifier, RoleApprover, RoleAdmin:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}
