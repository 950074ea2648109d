package store

import (
	"context"

	"civreg/internal/notification/models"
	id "civreg/pkg/domain"
)

// Store persists applicant notifications. Implementations return sentinel
// errors for not-found and let the service layer translate them.
type Store interface {
	Create(ctx context.Context, n *models.Notification) error
	FindByID(ctx context.Context, notifID id.NotificationID) (*models.Notification, error)
	ListByRecipient(ctx context.Context, recipientID id.UserID) ([]*models.Notification, error)
	MarkRead(ctx context.Context, notifID id.NotificationID) error
	Delete(ctx context.Context, notifID id.NotificationID) error
}
