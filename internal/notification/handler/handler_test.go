package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civreg/internal/notification/models"
	"civreg/internal/notification/service"
	"civreg/internal/notification/store"
	id "civreg/pkg/domain"
	"civreg/pkg/testutil"
)

func newTestServer(t *testing.T) (*chi.Mux, *service.Service) {
	t.Helper()
	svc := service.New(store.NewInMemory(), nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	h := New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	h.Routes(r)
	return r, svc
}

func seedNotification(t *testing.T, svc *service.Service, recipient id.UserID) *models.Notification {
	t.Helper()
	certID := id.CertificateID(uuid.New())
	require.NoError(t, svc.NotifyApproved(t.Context(), recipient, certID, "BIRTH-1-AAAAAAAA"))
	notifs, err := svc.List(t.Context(), recipient)
	require.NoError(t, err)
	require.Len(t, notifs, 1)
	return notifs[0]
}

func TestList(t *testing.T) {
	r, svc := newTestServer(t)
	recipient := id.UserID(uuid.New())
	seedNotification(t, svc, recipient)

	req := httptest.NewRequest(http.MethodGet, "/notifications", nil)
	req = testutil.WithActor(req, recipient.String(), id.RoleCitizen)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var notifs []*models.Notification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notifs))
	require.Len(t, notifs, 1)
	assert.Equal(t, models.TypeDocumentReady, notifs[0].Type)
	assert.False(t, notifs[0].Read)
}

func TestMarkRead(t *testing.T) {
	r, svc := newTestServer(t)
	recipient := id.UserID(uuid.New())
	notif := seedNotification(t, svc, recipient)

	req := httptest.NewRequest(http.MethodPost, "/notifications/"+notif.ID.String()+"/read", nil)
	req = testutil.WithActor(req, recipient.String(), id.RoleCitizen)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	notifs, err := svc.List(t.Context(), recipient)
	require.NoError(t, err)
	assert.True(t, notifs[0].Read)
}

func TestMarkReadOtherRecipient(t *testing.T) {
	r, svc := newTestServer(t)
	recipient := id.UserID(uuid.New())
	notif := seedNotification(t, svc, recipient)

	req := httptest.NewRequest(http.MethodPost, "/notifications/"+notif.ID.String()+"/read", nil)
	req = testutil.WithActor(req, uuid.NewString(), id.RoleCitizen)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDelete(t *testing.T) {
	r, svc := newTestServer(t)
	recipient := id.UserID(uuid.New())
	notif := seedNotification(t, svc, recipient)

	req := httptest.NewRequest(http.MethodDelete, "/notifications/"+notif.ID.String(), nil)
	req = testutil.WithActor(req, recipient.String(), id.RoleCitizen)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	notifs, err := svc.List(t.Context(), recipient)
	require.NoError(t, err)
	assert.Empty(t, notifs)
}

func TestMarkReadUnknownID(t *testing.T) {
	r, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/notifications/"+uuid.NewString()+"/read", nil)
	req = testutil.WithActor(req, uuid.NewString(), id.RoleCitizen)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMarkReadMalformedID(t *testing.T) {
	r, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/notifications/not-a-uuid/read", nil)
	req = testutil.WithActor(req, uuid.NewString(), id.RoleCitizen)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
