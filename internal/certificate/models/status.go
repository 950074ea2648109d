package models

import dErrors "civreg/pkg/domain-errors"

// Status is the closed set of certificate lifecycle states.
//
// The lifecycle only moves forward:
//
//	PENDING → UNDER_REVIEW → VERIFIED → APPROVED
//
// with REJECTED reachable from any non-terminal state. APPROVED and REJECTED
// are terminal; nothing transitions out of them.
type Status string

const (
	StatusPending     Status = "PENDING"
	StatusUnderReview Status = "UNDER_REVIEW"
	StatusVerified    Status = "VERIFIED"
	StatusApproved    Status = "APPROVED"
	StatusRejected    Status = "REJECTED"
)

var validStatuses = map[Status]bool{
	StatusPending:     true,
	StatusUnderReview: true,
	StatusVerified:    true,
	StatusApproved:    true,
	StatusRejected:    true,
}

// validTransitions is the single source of truth for the state machine.
var validTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusUnderReview: true,
		StatusVerified:    true,
		StatusRejected:    true,
	},
	StatusUnderReview: {
		StatusVerified: true,
		StatusRejected: true,
	},
	StatusVerified: {
		StatusApproved: true,
		StatusRejected: true,
	},
	// Terminal states have no outgoing transitions.
	StatusApproved: {},
	StatusRejected: {},
}

// ParseStatus constructs a Status from external input.
func ParseStatus(s string) (Status, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "status cannot be empty")
	}
	st := Status(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid status")
	}
	return st, nil
}

// IsValid checks if the status is one of the supported enum values.
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransitionTo reports whether the state machine permits moving to next.
func (s Status) CanTransitionTo(next Status) bool {
	return validTransitions[s][next]
}

func (s Status) String() string {
	return string(s)
}
