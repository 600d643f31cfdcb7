package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"samudra-ledger/registry-backend/pkg/apperrors"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	assert.NoError(t, VerifyPassword("correct horse", hash))

	err = VerifyPassword("wrong", hash)
	assert.True(t, apperrors.Is(err, apperrors.KindAuthentication))
}

func TestHashPassword_Empty(t *testing.T) {
	_, err := HashPassword("")
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestTokenService_IssueAndValidate(t *testing.T) {
	svc := NewTokenService("secret", "registry", time.Hour)

	token, expiresAt, err := svc.Issue("user_1", "pm@example.com", "Asha", "project_manager")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user_1", claims.UserID)
	assert.Equal(t, "project_manager", claims.Role)
	assert.Equal(t, "Asha", claims.Name)
}

func TestTokenService_RejectsForeignAndExpiredTokens(t *testing.T) {
	svc := NewTokenService("secret", "registry", time.Hour)
	other := NewTokenService("other-secret", "registry", time.Hour)

	token, _, err := other.Issue("user_1", "a@b.c", "A", "buyer")
	require.NoError(t, err)
	_, err = svc.Validate(token)
	assert.True(t, apperrors.Is(err, apperrors.KindAuthentication))

	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, _, err := svc.Issue("user_1", "a@b.c", "A", "buyer")
	require.NoError(t, err)
	svc.now = time.Now
	_, err = svc.Validate(stale)
	require.Error(t, err)
	assert.Equal(t, "Token has expired", err.Error())
}
