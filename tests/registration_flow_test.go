// Package tests contains integration tests that exercise flows against a real database
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
	"github.com/queryloom/queryloom/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistrationFlow(t *testing.T, testDB *testingutil.TestDB, smsService services.SMSService) businessflow.RegistrationFlow {
	t.Helper()

	tokenService, err := services.NewTokenService(time.Hour, "test-issuer", "test-audience", false, "", "", "test-secret-key-0123456789abcdef")
	require.NoError(t, err)

	return businessflow.NewRegistrationFlow(
		repository.NewUserRepository(testDB.DB),
		repository.NewOTPVerificationRepository(testDB.DB),
		repository.NewSessionRepository(testDB.DB),
		repository.NewAuditLogRepository(testDB.DB),
		tokenService,
		smsService,
		nil, // no redis in integration tests; cooldown enforcement is skipped
		nil,
		testDB.DB,
	)
}

func TestRegistrationSendOTP(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		mockSMS := services.NewMockSMSService()
		flow := newRegistrationFlow(t, testDB, mockSMS)
		otpRepo := repository.NewOTPVerificationRepository(testDB.DB)
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test-agent")

		t.Run("SuccessfulSend", func(t *testing.T) {
			result, err := flow.SendOTP(context.Background(), &dto.SendOTPRequest{
				PhoneNumber: "1-2125551234",
				SenderName:  "QueryLoom",
			}, metadata)
			require.NoError(t, err)
			require.NotNil(t, result)
			assert.True(t, result.OTPSent)
			assert.Contains(t, result.OTPTarget, "****")

			otp, err := otpRepo.LatestActiveByTarget(context.Background(), "1-2125551234", models.OTPTypeRegistration)
			require.NoError(t, err)
			require.NotNil(t, otp)
			assert.Len(t, otp.OTPCode, 6)
			assert.Equal(t, models.OTPStatusPending, otp.Status)
		})

		t.Run("ResendExpiresOlderCodes", func(t *testing.T) {
			_, err := flow.SendOTP(context.Background(), &dto.SendOTPRequest{
				PhoneNumber: "1-2125551234",
				SenderName:  "QueryLoom",
			}, metadata)
			require.NoError(t, err)

			expired := models.OTPStatusExpired
			target := "1-2125551234"
			olderOTPs, err := otpRepo.ByFilter(context.Background(), models.OTPVerificationFilter{
				TargetValue: &target,
				Status:      &expired,
			}, "", 0, 0)
			require.NoError(t, err)
			assert.NotEmpty(t, olderOTPs, "a resend must expire the previous pending code")
		})

		t.Run("RejectsMalformedPayload", func(t *testing.T) {
			_, err := flow.SendOTP(context.Background(), &dto.SendOTPRequest{
				PhoneNumber: "2125551234", // missing dial code prefix
				SenderName:  "QueryLoom",
			}, metadata)
			require.Error(t, err)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestRegistrationVerifyAndRegister(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		mockSMS := services.NewMockSMSService()
		flow := newRegistrationFlow(t, testDB, mockSMS)
		userRepo := repository.NewUserRepository(testDB.DB)
		otpRepo := repository.NewOTPVerificationRepository(testDB.DB)
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test-agent")

		_, err := flow.SendOTP(context.Background(), &dto.SendOTPRequest{
			PhoneNumber: "1-2125551234",
			SenderName:  "QueryLoom",
		}, metadata)
		require.NoError(t, err)

		otp, err := otpRepo.LatestActiveByTarget(context.Background(), "1-2125551234", models.OTPTypeRegistration)
		require.NoError(t, err)
		require.NotNil(t, otp)

		t.Run("WrongCodeBumpsAttempts", func(t *testing.T) {
			_, err := flow.VerifyOTP(context.Background(), &dto.VerifyOTPRequest{
				PhoneNumber: "1-2125551234",
				OTPCode:     "000000",
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidOTPCode(err))
		})

		t.Run("RegisterBeforeVerificationFails", func(t *testing.T) {
			_, err := flow.Register(context.Background(), &dto.RegisterRequest{
				TenantID:    "acme",
				FirstName:   "Ada",
				LastName:    "Lovelace",
				Email:       "ada@example.com",
				PhoneNumber: "1-2125551234",
				Password:    "Str0ngPass",
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsPhoneNotVerified(err))
		})

		t.Run("CorrectCodeVerifies", func(t *testing.T) {
			result, err := flow.VerifyOTP(context.Background(), &dto.VerifyOTPRequest{
				PhoneNumber: "1-2125551234",
				OTPCode:     otp.OTPCode,
			}, metadata)
			require.NoError(t, err)
			assert.True(t, result.Verified)
		})

		t.Run("RegisterCreatesUserAndSession", func(t *testing.T) {
			result, err := flow.Register(context.Background(), &dto.RegisterRequest{
				TenantID:    "acme",
				FirstName:   "Ada",
				LastName:    "Lovelace",
				Email:       "Ada@Example.com",
				PhoneNumber: "1-2125551234",
				Password:    "Str0ngPass",
			}, metadata)
			require.NoError(t, err)
			assert.NotEmpty(t, result.AccessToken)
			assert.Equal(t, "Bearer", result.TokenType)

			user, err := userRepo.ByEmail(context.Background(), "ada@example.com")
			require.NoError(t, err)
			require.NotNil(t, user)
			assert.Equal(t, "acme", user.TenantID)
			assert.Equal(t, "1-2125551234", user.PhoneNumber)
			assert.Equal(t, models.UserRoleUser, user.Role)
			assert.Equal(t, models.UserStatusActive, user.Status)
			assert.True(t, utils.IsTrue(user.IsPhoneVerified))

			sessionRepo := repository.NewSessionRepository(testDB.DB)
			sessions, err := sessionRepo.ListActiveByUser(context.Background(), user.ID)
			require.NoError(t, err)
			assert.Len(t, sessions, 1)
		})

		t.Run("DuplicateEmailRejected", func(t *testing.T) {
			_, err := flow.SendOTP(context.Background(), &dto.SendOTPRequest{
				PhoneNumber: "1-3105550000",
				SenderName:  "QueryLoom",
			}, metadata)
			require.NoError(t, err)
			otp2, err := otpRepo.LatestActiveByTarget(context.Background(), "1-3105550000", models.OTPTypeRegistration)
			require.NoError(t, err)
			_, err = flow.VerifyOTP(context.Background(), &dto.VerifyOTPRequest{
				PhoneNumber: "1-3105550000",
				OTPCode:     otp2.OTPCode,
			}, metadata)
			require.NoError(t, err)

			_, err = flow.Register(context.Background(), &dto.RegisterRequest{
				TenantID:    "acme",
				FirstName:   "Grace",
				LastName:    "Hopper",
				Email:       "ada@example.com",
				PhoneNumber: "1-3105550000",
				Password:    "Str0ngPass",
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsEmailAlreadyExists(err))
		})

		return nil
	})
	require.NoError(t, err)
}
