package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "civreg/pkg/domain-errors"
)

func TestParseUserID(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		raw := uuid.New().String()
		userID, err := ParseUserID(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, userID.String())
		assert.False(t, userID.IsNil())
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ParseUserID("")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := ParseUserID("not-a-uuid")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("nil uuid", func(t *testing.T) {
		_, err := ParseUserID(uuid.Nil.String())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestTypedIDsAreDistinct(t *testing.T) {
	raw := uuid.New().String()

	certID, err := ParseCertificateID(raw)
	require.NoError(t, err)
	notifID, err := ParseNotificationID(raw)
	require.NoError(t, err)

	// Same underlying uuid, distinct Go types: only the string form matches.
	assert.Equal(t, certID.String(), notifID.String())
}

func TestIDJSONRoundTrip(t *testing.T) {
	certID, err := ParseCertificateID(uuid.New().String())
	require.NoError(t, err)

	raw, err := json.Marshal(certID)
	require.NoError(t, err)
	assert.JSONEq(t, `"`+certID.String()+`"`, string(raw), "IDs marshal as uuid strings")

	var decoded CertificateID
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, certID, decoded)
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("VERIFIER")
	require.NoError(t, err)
	assert.Equal(t, RoleVerifier, role)
	assert.True(t, role.IsStaff())

	citizen, err := ParseRole("CITIZEN")
	require.NoError(t, err)
	assert.False(t, citizen.IsStaff())

	_, err = ParseRole("verifier")
	assert.Error(t, err, "roles are case-sensitive")

	_, err = ParseRole("")
	assert.Error(t, err)
}

func TestParseCertificateType(t *testing.T) {
	ct, err := ParseCertificateType("MARRIAGE")
	require.NoError(t, err)
	assert.Equal(t, CertificateTypeMarriage, ct)

	_, err = ParseCertificateType("PASSPORT")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
