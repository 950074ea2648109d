package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"civreg/internal/notification/models"
	"civreg/internal/notification/store"
	"civreg/internal/platform/metrics"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/sentinel"
	"civreg/pkg/requestcontext"
)

// Service manages applicant notifications. Lifecycle notifications are
// written through the same store so they join the caller's transaction and
// commit atomically with the certificate change that produced them.
type Service struct {
	store   store.Store
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(store store.Store, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{store: store, metrics: m, logger: logger}
}

// NotifyVerified records a status update for a certificate that passed
// verification.
func (s *Service) NotifyVerified(ctx context.Context, recipient id.UserID, certID id.CertificateID, number string) error {
	return s.create(ctx, recipient, certID, models.TypeStatusUpdate,
		"Certificate Verified",
		fmt.Sprintf("Your certificate %s has been verified and is awaiting final approval.", number))
}

// NotifyApproved records that the issued certificate is ready for collection.
func (s *Service) NotifyApproved(ctx context.Context, recipient id.UserID, certID id.CertificateID, number string) error {
	return s.create(ctx, recipient, certID, models.TypeDocumentReady,
		"Certificate Ready",
		fmt.Sprintf("Your certificate %s has been approved and is ready for download.", number))
}

// NotifyRejected records a rejection. The reason is included verbatim so the
// applicant sees exactly what the registrar recorded.
func (s *Service) NotifyRejected(ctx context.Context, recipient id.UserID, certID id.CertificateID, number, reason string) error {
	return s.create(ctx, recipient, certID, models.TypeStatusUpdate,
		"Certificate Rejected",
		fmt.Sprintf("Your certificate application %s was rejected: %s", number, reason))
}

func (s *Service) create(ctx context.Context, recipient id.UserID, certID id.CertificateID, ntype models.Type, title, message string) error {
	n := &models.Notification{
		ID:            id.NotificationID(uuid.New()),
		RecipientID:   recipient,
		CertificateID: certID,
		Type:          ntype,
		Title:         title,
		Message:       message,
		CreatedAt:     requestcontext.Now(ctx),
	}
	if err := s.store.Create(ctx, n); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create notification")
	}
	if s.metrics != nil {
		s.metrics.NotificationsSent.Inc()
	}
	return nil
}

// List returns the caller's notifications, newest first.
func (s *Service) List(ctx context.Context, recipient id.UserID) ([]*models.Notification, error) {
	out, err := s.store.ListByRecipient(ctx, recipient)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list notifications")
	}
	return out, nil
}

// MarkRead flags one notification as read. Only the recipient may do so.
func (s *Service) MarkRead(ctx context.Context, actor id.UserID, notifID id.NotificationID) error {
	if err := s.authorize(ctx, actor, notifID); err != nil {
		return err
	}
	if err := s.store.MarkRead(ctx, notifID); err != nil {
		return s.translate(err, "failed to mark notification read")
	}
	return nil
}

// Delete removes one notification. Only the recipient may do so.
func (s *Service) Delete(ctx context.Context, actor id.UserID, notifID id.NotificationID) error {
	if err := s.authorize(ctx, actor, notifID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, notifID); err != nil {
		return s.translate(err, "failed to delete notification")
	}
	return nil
}

func (s *Service) authorize(ctx context.Context, actor id.UserID, notifID id.NotificationID) error {
	n, err := s.store.FindByID(ctx, notifID)
	if err != nil {
		return s.translate(err, "failed to load notification")
	}
	if n.RecipientID != actor {
		return dErrors.New(dErrors.CodeForbidden, "notification belongs to another user")
	}
	return nil
}

func (s *Service) translate(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "notification not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
