// Package businessflow contains the core business logic and use cases for authentication and query workflows
package businessflow

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/google/uuid"
	"github.com/queryloom/queryloom/app/dto"
	"github.com/queryloom/queryloom/app/services"
	"github.com/queryloom/queryloom/config"
	"github.com/queryloom/queryloom/models"
	"github.com/queryloom/queryloom/phone"
	"github.com/queryloom/queryloom/repository"
	"github.com/queryloom/queryloom/utils"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// RegistrationFlow handles the phone-verified registration business logic
type RegistrationFlow interface {
	SendOTP(ctx context.Context, req *dto.SendOTPRequest, metadata *ClientMetadata) (*dto.SendOTPResponse, error)
	VerifyOTP(ctx context.Context, req *dto.VerifyOTPRequest, metadata *ClientMetadata) (*dto.VerifyOTPResponse, error)
	Register(ctx context.Context, req *dto.RegisterRequest, metadata *ClientMetadata) (*dto.RegisterResponse, error)
}

// RegistrationFlowImpl implements the registration business flow
type RegistrationFlowImpl struct {
	userRepo     repository.UserRepository
	otpRepo      repository.OTPVerificationRepository
	sessionRepo  repository.SessionRepository
	auditRepo    repository.AuditLogRepository
	tokenService services.TokenService
	smsService   services.SMSService
	rc           *redis.Client
	cacheConfig  *config.CacheConfig
	db           *gorm.DB
}

// NewRegistrationFlow creates a new registration flow instance
func NewRegistrationFlow(
	userRepo repository.UserRepository,
	otpRepo repository.OTPVerificationRepository,
	sessionRepo repository.SessionRepository,
	auditRepo repository.AuditLogRepository,
	tokenService services.TokenService,
	smsService services.SMSService,
	rc *redis.Client,
	cacheConfig *config.CacheConfig,
	db *gorm.DB,
) RegistrationFlow {
	return &RegistrationFlowImpl{
		userRepo:     userRepo,
		otpRepo:      otpRepo,
		sessionRepo:  sessionRepo,
		auditRepo:    auditRepo,
		tokenService: tokenService,
		smsService:   smsService,
		rc:           rc,
		cacheConfig:  cacheConfig,
		db:           db,
	}
}

// SendOTP dispatches a registration code to the requested phone number.
// Repeated requests for the same target are rejected while the resend
// cooldown is in effect.
func (s *RegistrationFlowImpl) SendOTP(ctx context.Context, req *dto.SendOTPRequest, metadata *ClientMetadata) (*dto.SendOTPResponse, error) {
	target, recipient, err := NormalizePhonePayload(req.PhoneNumber)
	if err != nil {
		return nil, NewBusinessError("SEND_OTP_VALIDATION_FAILED", "Phone number validation failed", err)
	}

	if s.rc != nil {
		cooldownKey := redisKey(*s.cacheConfig, fmt.Sprintf("otp:cooldown:%s", target))
		remaining, err := s.rc.TTL(ctx, cooldownKey).Result()
		if err == nil && remaining > 0 {
			return nil, NewBusinessError("OTP_RESEND_TOO_SOON", "An OTP was sent recently", ErrOTPResendTooSoon)
		}
	}

	var otpCode string

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		if err := s.otpRepo.ExpireOldOTPs(txCtx, target, models.OTPTypeRegistration); err != nil {
			return err
		}

		var err error
		otpCode, err = s.generateAndSaveOTP(txCtx, target, req.SenderName, metadata)
		return err
	})

	if err != nil {
		errMsg := fmt.Sprintf("Send OTP failed: %s", err.Error())
		_ = s.createAuditLog(ctx, nil, models.AuditActionOTPFailed, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("SEND_OTP_FAILED", "Failed to send OTP", err)
	}

	msg := fmt.Sprintf("OTP sent to %s", maskPhoneNumber(target))
	_ = s.createAuditLog(ctx, nil, models.AuditActionOTPSent, msg, true, nil, metadata)

	if s.rc != nil {
		cooldownKey := redisKey(*s.cacheConfig, fmt.Sprintf("otp:cooldown:%s", target))
		_ = s.rc.Set(ctx, cooldownKey, "1", utils.OTPResendCooldown).Err()
	}

	// Send SMS outside the transaction so a gateway failure does not roll back the record
	go func() {
		message := fmt.Sprintf("Your verification code is: %s. Valid for 5 minutes.", otpCode)
		if err := s.smsService.SendOTP(context.Background(), recipient, req.SenderName, message); err != nil {
			errMsg := fmt.Sprintf("Failed to send SMS: %v", err)
			_ = s.createAuditLog(context.Background(), nil, models.AuditActionOTPFailed, errMsg, false, &errMsg, metadata)
		}
	}()

	return &dto.SendOTPResponse{
		Message:     "OTP sent to your phone number.",
		OTPSent:     true,
		OTPTarget:   maskPhoneNumber(target),
		ResendAfter: int(utils.OTPResendCooldown.Seconds()),
	}, nil
}

// VerifyOTP checks the submitted code against the latest active OTP for the
// target phone number. Verification records are immutable; each attempt
// appends a new row sharing the original correlation ID.
func (s *RegistrationFlowImpl) VerifyOTP(ctx context.Context, req *dto.VerifyOTPRequest, metadata *ClientMetadata) (*dto.VerifyOTPResponse, error) {
	target, _, err := NormalizePhonePayload(req.PhoneNumber)
	if err != nil {
		return nil, NewBusinessError("VERIFY_OTP_VALIDATION_FAILED", "Phone number validation failed", err)
	}

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		return s.verifyOTPCode(txCtx, target, req.OTPCode)
	})

	if err != nil {
		errMsg := fmt.Sprintf("OTP verification failed: %s", err.Error())
		_ = s.createAuditLog(ctx, nil, models.AuditActionOTPFailed, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("OTP_VERIFICATION_FAILED", "OTP verification failed", err)
	}

	msg := fmt.Sprintf("OTP verified for %s", maskPhoneNumber(target))
	_ = s.createAuditLog(ctx, nil, models.AuditActionOTPVerified, msg, true, nil, metadata)

	return &dto.VerifyOTPResponse{
		Message:  "Phone number verified successfully.",
		Verified: true,
	}, nil
}

// Register creates the account once the phone number has been verified and
// returns a session token so the user is signed in immediately.
func (s *RegistrationFlowImpl) Register(ctx context.Context, req *dto.RegisterRequest, metadata *ClientMetadata) (*dto.RegisterResponse, error) {
	target, _, err := NormalizePhonePayload(req.PhoneNumber)
	if err != nil {
		return nil, NewBusinessError("REGISTRATION_VALIDATION_FAILED", "Phone number validation failed", err)
	}

	if err := s.validateRegisterRequest(ctx, req, target); err != nil {
		return nil, NewBusinessError("REGISTRATION_VALIDATION_FAILED", "Registration validation failed", err)
	}

	var user *models.User
	var accessToken string

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		var err error
		user, err = s.createUser(txCtx, req, target)
		if err != nil {
			return err
		}

		accessToken, err = s.tokenService.GenerateAccessToken(user)
		if err != nil {
			return err
		}

		return s.createSession(txCtx, user.ID, accessToken, metadata)
	})

	if err != nil {
		errMsg := fmt.Sprintf("Registration failed: %s", err.Error())
		_ = s.createAuditLog(ctx, user, models.AuditActionRegistration, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("REGISTRATION_FAILED", "Registration failed", err)
	}

	msg := fmt.Sprintf("Registration completed: %d", user.ID)
	_ = s.createAuditLog(ctx, user, models.AuditActionRegistration, msg, true, nil, metadata)

	return &dto.RegisterResponse{
		Message:     "Registration completed successfully!",
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   utils.AccessTokenTTLSeconds,
		User:        ToUserDTO(*user),
	}, nil
}

// Private helper methods

func (s *RegistrationFlowImpl) validateRegisterRequest(ctx context.Context, req *dto.RegisterRequest, target string) error {
	existingUser, err := s.userRepo.ByEmail(ctx, req.Email)
	if err != nil {
		return err
	}
	if existingUser != nil {
		return ErrEmailAlreadyExists
	}

	existingUser, err = s.userRepo.ByPhoneNumber(ctx, target)
	if err != nil {
		return err
	}
	if existingUser != nil {
		return ErrPhoneAlreadyExists
	}

	// The phone must have a verified OTP on record
	verified := models.OTPStatusVerified
	otpType := models.OTPTypeRegistration
	filter := models.OTPVerificationFilter{
		TargetValue: &target,
		OTPType:     &otpType,
		Status:      &verified,
	}
	hasVerified, err := s.otpRepo.Exists(ctx, filter)
	if err != nil {
		return err
	}
	if !hasVerified {
		return ErrPhoneNotVerified
	}

	return nil
}

func (s *RegistrationFlowImpl) createUser(ctx context.Context, req *dto.RegisterRequest, target string) (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := utils.UTCNow()
	user := &models.User{
		UUID:            uuid.New(),
		TenantID:        req.TenantID,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           strings.ToLower(req.Email),
		PhoneNumber:     target,
		PasswordHash:    string(hashedPassword),
		Role:            models.UserRoleUser,
		Status:          models.UserStatusActive,
		IsPhoneVerified: utils.ToPtr(true),
		PhoneVerifiedAt: &now,
	}

	if err := s.userRepo.Save(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *RegistrationFlowImpl) generateAndSaveOTP(ctx context.Context, target, senderName string, metadata *ClientMetadata) (string, error) {
	otpCode, err := GenerateOTP()
	if err != nil {
		return "", err
	}

	otp := &models.OTPVerification{
		CorrelationID: uuid.New(),
		OTPCode:       otpCode,
		OTPType:       models.OTPTypeRegistration,
		TargetValue:   target,
		SenderName:    utils.ToPtr(senderName),
		Status:        models.OTPStatusPending,
		AttemptsCount: 0,
		MaxAttempts:   3,
		ExpiresAt:     utils.UTCNow().Add(utils.OTPExpiry),
	}
	if metadata != nil {
		otp.IPAddress = &metadata.IPAddress
		otp.UserAgent = &metadata.UserAgent
	}

	if err := s.otpRepo.Save(ctx, otp); err != nil {
		return "", err
	}

	return otpCode, nil
}

func (s *RegistrationFlowImpl) verifyOTPCode(ctx context.Context, target, code string) error {
	validOTP, err := s.otpRepo.LatestActiveByTarget(ctx, target, models.OTPTypeRegistration)
	if err != nil {
		return err
	}
	if validOTP == nil {
		return ErrNoValidOTPFound
	}
	if validOTP.IsExpired() {
		return ErrOTPExpired
	}
	if !validOTP.CanAttempt() {
		return ErrNoValidOTPFound
	}

	if validOTP.OTPCode != code {
		// Append failed attempt record sharing the correlation ID
		failedOTP := *validOTP
		failedOTP.ID = 0
		failedOTP.AttemptsCount++
		failedOTP.Status = models.OTPStatusFailed
		_ = s.otpRepo.Save(ctx, &failedOTP)

		return ErrInvalidOTPCode
	}

	verifiedOTP := *validOTP
	verifiedOTP.ID = 0
	verifiedOTP.Status = models.OTPStatusVerified
	verifiedOTP.VerifiedAt = utils.ToPtr(utils.UTCNow())

	return s.otpRepo.Save(ctx, &verifiedOTP)
}

func (s *RegistrationFlowImpl) createSession(ctx context.Context, userID uint, accessToken string, metadata *ClientMetadata) error {
	session := &models.Session{
		CorrelationID: uuid.New(),
		UserID:        userID,
		AccessToken:   accessToken,
		IsActive:      utils.ToPtr(true),
		ExpiresAt:     utils.UTCNow().Add(utils.SessionTimeout),
	}
	if metadata != nil {
		session.IPAddress = &metadata.IPAddress
		session.UserAgent = &metadata.UserAgent
	}

	return s.sessionRepo.Save(ctx, session)
}

func (s *RegistrationFlowImpl) createAuditLog(ctx context.Context, user *models.User, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) error {
	var userID *uint
	var tenantID *string
	if user != nil {
		userID = &user.ID
		tenantID = &user.TenantID
	}

	audit := &models.AuditLog{
		UserID:       userID,
		TenantID:     tenantID,
		Action:       action,
		Description:  &description,
		Success:      utils.ToPtr(success),
		ErrorMessage: errorMsg,
	}
	if metadata != nil {
		audit.IPAddress = &metadata.IPAddress
		audit.UserAgent = &metadata.UserAgent
		if metadata.RequestID != "" {
			audit.RequestID = &metadata.RequestID
		}
	}

	return s.auditRepo.Save(ctx, audit)
}

// NormalizePhonePayload parses the "<dialcode>-<digits>" payload form and
// returns the stored target value and the bare E.164 recipient (no plus).
// The national part must validate against at least one country sharing the
// dial code.
func NormalizePhonePayload(payload string) (target, recipient string, err error) {
	parts := strings.SplitN(payload, "-", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", ErrInvalidPhoneNumber
	}

	dialCode := "+" + parts[0]
	digits := phone.Clean(parts[1])
	if digits == "" || phone.Clean(parts[0]) != parts[0] {
		return "", "", ErrInvalidPhoneNumber
	}

	for _, countryCode := range phone.Supported() {
		rule := phone.RuleFor(countryCode)
		if rule == nil || rule.DialCode != dialCode {
			continue
		}
		if result := phone.Validate(digits, countryCode); result.Valid {
			return parts[0] + "-" + digits, parts[0] + digits, nil
		}
	}

	return "", "", ErrInvalidPhoneNumber
}

func maskPhoneNumber(target string) string {
	if len(target) < 8 {
		return target
	}
	return target[:4] + "****" + target[len(target)-4:]
}

func redisKey(cfg config.CacheConfig, key string) string {
	return cfg.RedisPrefix + key
}
