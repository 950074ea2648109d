package models

import (
	"time"

	id "civreg/pkg/domain"
)

// Type classifies a notification for the applicant's inbox.
type Type string

const (
	// TypeStatusUpdate announces a lifecycle change that requires no action.
	TypeStatusUpdate Type = "STATUS_UPDATE"
	// TypeDocumentReady announces that the issued certificate can be collected.
	TypeDocumentReady Type = "DOCUMENT_READY"
)

func (t Type) IsValid() bool {
	return t == TypeStatusUpdate || t == TypeDocumentReady
}

// Notification is one inbox entry for an applicant. Entries are immutable
// except for the read flag.
type Notification struct {
	ID            id.NotificationID `json:"id"`
	RecipientID   id.UserID         `json:"recipient_id"`
	CertificateID id.CertificateID  `json:"certificate_id"`
	Type          Type              `json:"type"`
	Title         string            `json:"title"`
	Message       string            `json:"message"`
	Read          bool              `json:"read"`
	CreatedAt     time.Time         `json:"created_at"`
}
