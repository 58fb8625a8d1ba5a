package client

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/queryloom/queryloom/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedTestToken(t *testing.T, role string, expiresAt time.Time) string {
	t.Helper()
	claims := sessionClaims{
		UserID:   42,
		TenantID: "acme",
		Role:     role,
		Status:   models.UserStatusActive,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ada@example.com",
			IssuedAt:  jwt.NewNumericDate(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestNewSessionDecodesClaims(t *testing.T) {
	expiry := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	token := signedTestToken(t, models.UserRoleUser, expiry)

	session, err := NewSession(token)
	require.NoError(t, err)
	assert.Equal(t, token, session.Token)
	assert.Equal(t, "ada@example.com", session.Email)
	assert.Equal(t, uint(42), session.UserID)
	assert.Equal(t, "acme", session.TenantID)
	assert.Equal(t, models.UserRoleUser, session.Role)
	assert.Equal(t, models.UserStatusActive, session.Status)
	assert.True(t, session.ExpiresAt.Equal(expiry))
}

func TestNewSessionRejectsGarbage(t *testing.T) {
	_, err := NewSession("not-a-jwt")
	assert.Error(t, err)
}

func TestSessionExpiry(t *testing.T) {
	fresh, err := NewSession(signedTestToken(t, models.UserRoleUser, time.Now().Add(time.Hour)))
	require.NoError(t, err)
	assert.False(t, fresh.IsExpired())

	stale, err := NewSession(signedTestToken(t, models.UserRoleUser, time.Now().Add(-time.Hour)))
	require.NoError(t, err)
	assert.True(t, stale.IsExpired())
}

func TestSessionRolePermissions(t *testing.T) {
	tests := []struct {
		role      string
		admin     bool
		canSubmit bool
	}{
		{models.UserRoleAdmin, true, true},
		{models.UserRoleUser, false, true},
		{models.UserRoleViewer, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			session, err := NewSession(signedTestToken(t, tt.role, time.Now().Add(time.Hour)))
			require.NoError(t, err)
			assert.Equal(t, tt.admin, session.IsAdmin())
			assert.Equal(t, tt.canSubmit, session.CanSubmitQueries())
		})
	}
}
