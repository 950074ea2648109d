// Package policy is the stateless permission gate for certificate operations.
// It is the single authorization contract: services consult Allowed before
// executing a transition, never interleaving role checks with persistence.
package policy

import id "civreg/pkg/domain"

// Operation names a role-gated certificate operation.
type Operation string

const (
	OpCreate      Operation = "create"
	OpStartReview Operation = "start_review"
	OpVerify      Operation = "verify"
	OpApprove     Operation = "approve"
	OpReject      Operation = "reject"
	OpReadAny     Operation = "read_any"
)

// permittedRoles is the total mapping from operation to the roles allowed to
// perform it. Create is intentionally absent: any authenticated user may file
// an application.
var permittedRoles = map[Operation]map[id.Role]bool{
	OpStartReview: {
		id.RoleClerk:    true,
		id.RoleVerifier: true,
		id.RoleAdmin:    true,
	},
	OpVerify: {
		id.RoleVerifier: true,
		id.RoleAdmin:    true,
	},
	OpApprove: {
		id.RoleApprover: true,
		id.RoleAdmin:    true,
	},
	OpReject: {
		id.RoleVerifier: true,
		id.RoleApprover: true,
		id.RoleAdmin:    true,
	},
	OpReadAny: {
		id.RoleClerk:    true,
		id.RoleVerifier: true,
		id.RoleApprover: true,
		id.RoleAdmin:    true,
	},
}

// Allowed reports whether role may perform op.
func Allowed(role id.Role, op Operation) bool {
	if op == OpCreate {
		return role.IsValid()
	}
	return permittedRoles[op][role]
}

// CanReadCertificate reports whether the actor may read a certificate owned
// by ownerID: the owner always may, staff roles may read any.
func CanReadCertificate(actorID id.UserID, role id.Role, ownerID id.UserID) bool {
	if actorID == ownerID {
		return true
	}
	return Allowed(role, OpReadAny)
}
