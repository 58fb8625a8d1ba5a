package tests

import (
	"context"
	"testing"
	"time"

	"github.com/queryloom/queryloom/app/dto"
	"github.com/queryloom/queryloom/app/services"
	businessflow "github.com/queryloom/queryloom/business_flow"
	"github.com/queryloom/queryloom/models"
	"github.com/queryloom/queryloom/repository"
	testingutil "github.com/queryloom/queryloom/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoginFlow(t *testing.T, testDB *testingutil.TestDB) businessflow.LoginFlow {
	t.Helper()

	tokenService, err := services.NewTokenService(time.Hour, "test-issuer", "test-audience", false, "", "", "test-secret-key-0123456789abcdef")
	require.NoError(t, err)

	// Captcha gating only engages after repeated failures recorded in redis;
	// without redis the threshold is never reached, so no captcha service is needed.
	return businessflow.NewLoginFlow(
		repository.NewUserRepository(testDB.DB),
		repository.NewSessionRepository(testDB.DB),
		repository.NewAuditLogRepository(testDB.DB),
		tokenService,
		nil,
		nil,
		nil,
		testDB.DB,
	)
}

func TestLogin(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := newLoginFlow(t, testDB)
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test-agent")

		user, err := fixtures.CreateTestUser("acme", models.UserRoleUser)
		require.NoError(t, err)

		t.Run("SuccessfulLogin", func(t *testing.T) {
			result, err := flow.Login(context.Background(), &dto.LoginRequest{
				Email:    user.Email,
				Password: "TestPass123!",
			}, metadata)
			require.NoError(t, err)
			assert.NotEmpty(t, result.AccessToken)
			assert.Equal(t, "Bearer", result.TokenType)
			assert.Equal(t, user.Email, result.User.Email)

			// Login stamps last_login_at
			userRepo := repository.NewUserRepository(testDB.DB)
			refreshed, err := userRepo.ByID(context.Background(), user.ID)
			require.NoError(t, err)
			assert.NotNil(t, refreshed.LastLoginAt)
		})

		t.Run("EmailIsCaseInsensitive", func(t *testing.T) {
			_, err := flow.Login(context.Background(), &dto.LoginRequest{
				Email:    "  " + user.Email + "  ",
				Password: "TestPass123!",
			}, metadata)
			require.NoError(t, err)
		})

		t.Run("WrongPassword", func(t *testing.T) {
			_, err := flow.Login(context.Background(), &dto.LoginRequest{
				Email:    user.Email,
				Password: "WrongPass123!",
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsIncorrectPassword(err))
		})

		t.Run("UnknownEmail", func(t *testing.T) {
			_, err := flow.Login(context.Background(), &dto.LoginRequest{
				Email:    "nobody@example.com",
				Password: "TestPass123!",
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsUserNotFound(err))
		})

		t.Run("SuspendedAccount", func(t *testing.T) {
			suspended, err := fixtures.CreateTestUser("acme", models.UserRoleUser)
			require.NoError(t, err)
			suspended.Status = models.UserStatusSuspended
			require.NoError(t, testDB.DB.Save(suspended).Error)

			_, err = flow.Login(context.Background(), &dto.LoginRequest{
				Email:    suspended.Email,
				Password: "TestPass123!",
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsAccountInactive(err))
		})

		return nil
	})
	require.NoError(t, err)
}
