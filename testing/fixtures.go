// Package testing provides test utilities and database setup for integration tests
package testing

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	mrand "math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/queryloom/queryloom/models"
	"github.com/queryloom/queryloom/utils"
	"golang.org/x/crypto/bcrypt"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestUser creates an active user in the given tenant with the given role
func (tf *TestFixtures) CreateTestUser(tenantID, role string) (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("TestPass123!"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	randomDigits := fmt.Sprintf("%09d", mrand.Intn(900000000)+100000000)

	user := &models.User{
		UUID:            uuid.New(),
		TenantID:        tenantID,
		FirstName:       "Ada",
		LastName:        "Lovelace",
		Email:           fmt.Sprintf("ada.%s.%s@example.com", tenantID, randomDigits),
		PhoneNumber:     fmt.Sprintf("1-212%s", randomDigits[:7]),
		PasswordHash:    string(hashedPassword),
		Role:            role,
		Status:          models.UserStatusActive,
		IsPhoneVerified: utils.ToPtr(true),
	}

	if err := tf.DB.DB.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create test user: %w", err)
	}

	return user, nil
}

// CreateTestOTP creates an OTP verification record for the given target
func (tf *TestFixtures) CreateTestOTP(userID *uint, targetValue, otpCode string) (*models.OTPVerification, error) {
	otp := &models.OTPVerification{
		CorrelationID: uuid.New(),
		UserID:        userID,
		OTPCode:       otpCode,
		OTPType:       models.OTPTypeRegistration,
		TargetValue:   targetValue,
		Status:        models.OTPStatusPending,
		AttemptsCount: 0,
		MaxAttempts:   3,
		ExpiresAt:     time.Now().UTC().Add(5 * time.Minute),
	}

	if err := tf.DB.DB.Create(otp).Error; err != nil {
		return nil, fmt.Errorf("failed to create test OTP: %w", err)
	}

	return otp, nil
}

// CreateTestSession creates an active session for the user
func (tf *TestFixtures) CreateTestSession(userID uint) (*models.Session, error) {
	accessToken, err := GenerateSecureToken(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	session := &models.Session{
		CorrelationID: uuid.New(),
		UserID:        userID,
		AccessToken:   accessToken,
		ExpiresAt:     time.Now().UTC().Add(time.Hour),
		IsActive:      utils.ToPtr(true),
	}

	if err := tf.DB.DB.Create(session).Error; err != nil {
		return nil, fmt.Errorf("failed to create test session: %w", err)
	}

	return session, nil
}

// CreateTestThread creates a thread owned by the user
func (tf *TestFixtures) CreateTestThread(tenantID string, userID uint, title string) (*models.Thread, error) {
	thread := &models.Thread{
		UUID:     uuid.New(),
		TenantID: tenantID,
		UserID:   userID,
		Title:    title,
	}

	if err := tf.DB.DB.Create(thread).Error; err != nil {
		return nil, fmt.Errorf("failed to create test thread: %w", err)
	}

	return thread, nil
}

// CreateTestTask creates a pending query task inside the thread
func (tf *TestFixtures) CreateTestTask(tenantID string, userID uint, threadUUID uuid.UUID, question string) (*models.QueryTask, error) {
	task := &models.QueryTask{
		TaskID:   uuid.New(),
		TenantID: tenantID,
		UserID:   userID,
		ThreadID: threadUUID,
		Question: question,
		Status:   models.QueryTaskStatusPending,
	}

	if err := tf.DB.DB.Create(task).Error; err != nil {
		return nil, fmt.Errorf("failed to create test task: %w", err)
	}

	return task, nil
}

// GenerateSecureToken returns a URL-safe random token
func GenerateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
