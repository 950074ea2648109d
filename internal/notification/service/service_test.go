package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civreg/internal/notification/models"
	"civreg/internal/notification/store"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
)

func newService() *Service {
	return New(store.NewInMemory(), nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestNotifyMessages(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	recipient := id.UserID(uuid.New())
	certID := id.CertificateID(uuid.New())
	const number = "BIRTH-1700000000000-ABCD1234"

	require.NoError(t, svc.NotifyVerified(ctx, recipient, certID, number))
	require.NoError(t, svc.NotifyApproved(ctx, recipient, certID, number))
	require.NoError(t, svc.NotifyRejected(ctx, recipient, certID, number, "missing witness signature"))

	notifs, err := svc.List(ctx, recipient)
	require.NoError(t, err)
	require.Len(t, notifs, 3)

	byTitle := make(map[string]*models.Notification, len(notifs))
	for _, n := range notifs {
		byTitle[n.Title] = n
		assert.Equal(t, certID, n.CertificateID)
		assert.Contains(t, n.Message, number)
		assert.False(t, n.Read)
	}

	require.Contains(t, byTitle, "Certificate Verified")
	assert.Equal(t, models.TypeStatusUpdate, byTitle["Certificate Verified"].Type)

	require.Contains(t, byTitle, "Certificate Ready")
	assert.Equal(t, models.TypeDocumentReady, byTitle["Certificate Ready"].Type)

	require.Contains(t, byTitle, "Certificate Rejected")
	assert.Equal(t, models.TypeStatusUpdate, byTitle["Certificate Rejected"].Type)
	assert.Contains(t, byTitle["Certificate Rejected"].Message, "missing witness signature")
}

func TestMarkReadIsRecipientOnly(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	recipient := id.UserID(uuid.New())
	stranger := id.UserID(uuid.New())

	require.NoError(t, svc.NotifyVerified(ctx, recipient, id.CertificateID(uuid.New()), "BIRTH-1-A"))
	notifs, err := svc.List(ctx, recipient)
	require.NoError(t, err)
	require.Len(t, notifs, 1)

	err = svc.MarkRead(ctx, stranger, notifs[0].ID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))

	require.NoError(t, svc.MarkRead(ctx, recipient, notifs[0].ID))
	notifs, err = svc.List(ctx, recipient)
	require.NoError(t, err)
	assert.True(t, notifs[0].Read)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	recipient := id.UserID(uuid.New())
	stranger := id.UserID(uuid.New())

	require.NoError(t, svc.NotifyVerified(ctx, recipient, id.CertificateID(uuid.New()), "BIRTH-1-A"))
	notifs, err := svc.List(ctx, recipient)
	require.NoError(t, err)
	require.Len(t, notifs, 1)

	err = svc.Delete(ctx, stranger, notifs[0].ID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))

	require.NoError(t, svc.Delete(ctx, recipient, notifs[0].ID))
	notifs, err = svc.List(ctx, recipient)
	require.NoError(t, err)
	assert.Empty(t, notifs)

	err = svc.Delete(ctx, recipient, id.NotificationID(uuid.New()))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}
