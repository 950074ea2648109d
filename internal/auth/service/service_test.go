package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civreg/internal/audit"
	auditmemory "civreg/internal/audit/store/memory"
	"civreg/internal/auth/store"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	txcontext "civreg/pkg/platform/tx"
)

type stubIssuer struct{}

func (stubIssuer) Issue(userID id.UserID, role id.Role) (string, time.Time, error) {
	return "token-" + userID.String(), time.Now().Add(time.Hour), nil
}

func newService() (*Service, *auditmemory.Store) {
	auditStore := auditmemory.New()
	svc := New(
		store.NewInMemory(),
		audit.NewPublisher(auditStore),
		stubIssuer{},
		txcontext.Passthrough{},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return svc, auditStore
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	svc, auditStore := newService()

	user, err := svc.Register(ctx, RegisterRequest{
		Email:    "Amina.Okafor@Example.com",
		FullName: "Amina Okafor",
		Password: "correct-horse-battery",
	})
	require.NoError(t, err)
	assert.Equal(t, "amina.okafor@example.com", user.Email, "email is stored lowercased")
	assert.Equal(t, id.RoleCitizen, user.Role, "self-registration always yields a citizen account")
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEqual(t, "correct-horse-battery", user.PasswordHash)

	events, err := auditStore.ListByActor(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.ActionUserRegistered), events[0].Action)
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	svc, _ := newService()
	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "a@example.com",
		FullName: "A",
		Password: "short",
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	req := RegisterRequest{Email: "a@example.com", FullName: "Amina Okafor", Password: "correct-horse-battery"}
	_, err := svc.Register(ctx, req)
	require.NoError(t, err)

	_, err = svc.Register(ctx, req)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestCreateUserWithRole(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	adminID := id.UserID(uuid.New())

	user, err := svc.CreateUser(ctx, adminID, CreateUserRequest{
		Email:    "verifier@registry.gov",
		FullName: "Ngozi Eze",
		Password: "correct-horse-battery",
		Role:     id.RoleVerifier,
	})
	require.NoError(t, err)
	assert.Equal(t, id.RoleVerifier, user.Role)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	svc, auditStore := newService()

	user, err := svc.Register(ctx, RegisterRequest{
		Email:    "a@example.com",
		FullName: "Amina Okafor",
		Password: "correct-horse-battery",
	})
	require.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		result, err := svc.Login(ctx, "A@Example.com", "correct-horse-battery")
		require.NoError(t, err)
		assert.Equal(t, user.ID, result.User.ID)
		assert.NotEmpty(t, result.Token)
		assert.True(t, result.ExpiresAt.After(time.Now()))
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, "a@example.com", "wrong-password")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("unknown email looks identical", func(t *testing.T) {
		_, err := svc.Login(ctx, "nobody@example.com", "correct-horse-battery")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("failures are audited", func(t *testing.T) {
		events, err := auditStore.ListRecent(ctx, 100)
		require.NoError(t, err)
		failed := 0
		for _, e := range events {
			if e.Action == string(audit.ActionAuthFailed) {
				failed++
			}
		}
		assert.Equal(t, 2, failed)
	})
}
