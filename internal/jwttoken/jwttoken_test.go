package jwttoken

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "civreg/pkg/domain"
)

func TestIssueAndValidate(t *testing.T) {
	issuer := NewIssuer("test-signing-key")
	userID := id.UserID(uuid.New())

	token, expiresAt, err := issuer.Issue(userID, id.RoleVerifier)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := issuer.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, id.RoleVerifier, claims.Role)
}

func TestValidateRejectsWrongKey(t *testing.T) {
	token, _, err := NewIssuer("key-one").Issue(id.UserID(uuid.New()), id.RoleCitizen)
	require.NoError(t, err)

	_, err = NewIssuer("key-two").ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateRejectsExpired(t *testing.T) {
	issuer := NewIssuer("test-signing-key")
	issuer.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }

	token, _, err := issuer.Issue(id.UserID(uuid.New()), id.RoleCitizen)
	require.NoError(t, err)

	_, err = issuer.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateRejectsGarbage(t *testing.T) {
	issuer := NewIssuer("test-signing-key")
	_, err := issuer.ValidateToken("not-a-jwt")
	assert.Error(t, err)
}
