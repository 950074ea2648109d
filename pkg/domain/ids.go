// Package domain holds the typed identifiers and closed enumerations shared
// across services. IDs are distinct uuid wrappers so the compiler rejects
// cross-type assignment; construct them via the Parse functions at trust
// boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "civreg/pkg/domain-errors"
)

// UserID identifies an account (citizen or staff).
type UserID uuid.UUID

// CertificateID identifies a certificate application.
type CertificateID uuid.UUID

// NotificationID identifies a notification inbox entry.
type NotificationID uuid.UUID

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be nil")
	}
	return u, nil
}

// ParseUserID validates and returns a UserID.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	if err != nil {
		return UserID{}, err
	}
	return UserID(u), nil
}

// ParseCertificateID validates and returns a CertificateID.
func ParseCertificateID(s string) (CertificateID, error) {
	u, err := parseUUID(s, "certificate id")
	if err != nil {
		return CertificateID{}, err
	}
	return CertificateID(u), nil
}

// ParseNotificationID validates and returns a NotificationID.
func ParseNotificationID(s string) (NotificationID, error) {
	u, err := parseUUID(s, "notification id")
	if err != nil {
		return NotificationID{}, err
	}
	return NotificationID(u), nil
}

func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id CertificateID) String() string  { return uuid.UUID(id).String() }
func (id NotificationID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id CertificateID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id NotificationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// Text marshaling keeps the IDs as canonical uuid strings in JSON; defined
// types do not inherit uuid.UUID's methods.

func (id UserID) MarshalText() ([]byte, error)         { return []byte(id.String()), nil }
func (id CertificateID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }
func (id NotificationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = UserID(u)
	return nil
}

func (id *CertificateID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = CertificateID(u)
	return nil
}

func (id *NotificationID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = NotificationID(u)
	return nil
}
