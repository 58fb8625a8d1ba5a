package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/queryloom/queryloom/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUser() *models.User {
	return &models.User{
		ID:       42,
		UUID:     uuid.New(),
		TenantID: "acme",
		Email:    "ada@example.com",
		Role:     models.UserRoleUser,
		Status:   models.UserStatusActive,
	}
}

func TestTokenServiceGenerateAndValidate(t *testing.T) {
	svc, err := NewTokenService(time.Hour, "queryloom", "queryloom-api", false, "", "", "test-secret-key-0123456789abcdef")
	require.NoError(t, err)

	token, err := svc.GenerateAccessToken(testUser())
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", claims.Subject)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "acme", claims.TenantID)
	assert.Equal(t, models.UserRoleUser, claims.Role)
	assert.Equal(t, models.UserStatusActive, claims.Status)
	assert.NotEmpty(t, claims.TokenID)
	assert.True(t, claims.ExpiresAt.After(time.Now()))
}

func TestTokenServiceRejectsWrongSecret(t *testing.T) {
	issuerSvc, err := NewTokenService(time.Hour, "queryloom", "queryloom-api", false, "", "", "secret-one-0123456789abcdef0000")
	require.NoError(t, err)
	otherSvc, err := NewTokenService(time.Hour, "queryloom", "queryloom-api", false, "", "", "secret-two-0123456789abcdef0000")
	require.NoError(t, err)

	token, err := issuerSvc.GenerateAccessToken(testUser())
	require.NoError(t, err)

	_, err = otherSvc.ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenServiceRejectsExpiredToken(t *testing.T) {
	svc, err := NewTokenService(-time.Minute, "queryloom", "queryloom-api", false, "", "", "test-secret-key-0123456789abcdef")
	require.NoError(t, err)

	token, err := svc.GenerateAccessToken(testUser())
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenServiceRevocation(t *testing.T) {
	svc, err := NewTokenService(time.Hour, "queryloom", "queryloom-api", false, "", "", "test-secret-key-0123456789abcdef")
	require.NoError(t, err)

	token, err := svc.GenerateAccessToken(testUser())
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.False(t, svc.IsTokenRevoked(claims.TokenID))

	require.NoError(t, svc.RevokeToken(token))
	assert.True(t, svc.IsTokenRevoked(claims.TokenID))

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestTokenServiceRequiresSecret(t *testing.T) {
	_, err := NewTokenService(time.Hour, "queryloom", "queryloom-api", false, "", "", "")
	assert.Error(t, err)
}
