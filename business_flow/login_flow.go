package businessflow

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/google/uuid"
	"github.com/queryloom/queryloom/app/dto"
	"github.com/queryloom/queryloom/app/services"
	"github.com/queryloom/queryloom/config"
	"github.com/queryloom/queryloom/models"
	"github.com/queryloom/queryloom/repository"
	"github.com/queryloom/queryloom/utils"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// LoginFlow handles password authentication and the captcha gate that is
// raised after repeated failures.
type LoginFlow interface {
	Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error)
	CaptchaChallenge(ctx context.Context) (*dto.CaptchaChallengeResponse, error)
}

// LoginFlowImpl implements the login business flow
type LoginFlowImpl struct {
	userRepo       repository.UserRepository
	sessionRepo    repository.SessionRepository
	auditRepo      repository.AuditLogRepository
	tokenService   services.TokenService
	captchaService services.CaptchaService
	rc             *redis.Client
	cacheConfig    *config.CacheConfig
	db             *gorm.DB
}

// NewLoginFlow creates a new login flow instance
func NewLoginFlow(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	auditRepo repository.AuditLogRepository,
	tokenService services.TokenService,
	captchaService services.CaptchaService,
	rc *redis.Client,
	cacheConfig *config.CacheConfig,
	db *gorm.DB,
) LoginFlow {
	return &LoginFlowImpl{
		userRepo:       userRepo,
		sessionRepo:    sessionRepo,
		auditRepo:      auditRepo,
		tokenService:   tokenService,
		captchaService: captchaService,
		rc:             rc,
		cacheConfig:    cacheConfig,
		db:             db,
	}
}

// Login authenticates the user by email and password. Once an account has
// accumulated enough failed attempts inside the failure window, a solved
// captcha is required before the password is even checked.
func (lf *LoginFlowImpl) Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := lf.userRepo.ByEmail(ctx, email)
	if err != nil {
		return nil, NewBusinessError("LOGIN_FAILED", "Login failed", err)
	}
	if user == nil {
		return nil, NewBusinessError("LOGIN_FAILED", "Login failed", ErrUserNotFound)
	}
	if !user.IsActive() {
		return nil, NewBusinessError("LOGIN_FAILED", "Login failed", ErrAccountInactive)
	}

	if lf.failureCount(ctx, email) >= utils.LoginFailureCaptchaThreshold {
		if req.CaptchaID == nil || req.CaptchaAngle == nil {
			_ = lf.createAuditLog(ctx, user, models.AuditActionCaptchaRequired, "Captcha required after repeated failures", false, nil, metadata)
			return nil, NewBusinessError("CAPTCHA_REQUIRED", "Captcha verification required", ErrCaptchaRequired)
		}
		if !lf.captchaService.VerifyRotate(ctx, *req.CaptchaID, *req.CaptchaAngle) {
			errMsg := "Captcha verification failed"
			_ = lf.createAuditLog(ctx, user, models.AuditActionCaptchaFailed, errMsg, false, &errMsg, metadata)
			return nil, NewBusinessError("CAPTCHA_FAILED", "Captcha verification failed", ErrCaptchaFailed)
		}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		lf.recordFailure(ctx, email)
		errMsg := "Incorrect password"
		_ = lf.createAuditLog(ctx, user, models.AuditActionLoginFailed, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("LOGIN_FAILED", "Login failed", ErrIncorrectPassword)
	}

	lf.resetFailures(ctx, email)

	var accessToken string

	err = repository.WithTransaction(ctx, lf.db, func(txCtx context.Context) error {
		var err error
		accessToken, err = lf.tokenService.GenerateAccessToken(user)
		if err != nil {
			return err
		}

		if err := lf.createSession(txCtx, user.ID, accessToken, metadata); err != nil {
			return err
		}

		return lf.userRepo.UpdateLastLogin(txCtx, user.ID, utils.UTCNow())
	})

	if err != nil {
		errMsg := fmt.Sprintf("Login failed: %s", err.Error())
		_ = lf.createAuditLog(ctx, user, models.AuditActionLoginFailed, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("LOGIN_FAILED", "Login failed", err)
	}

	msg := fmt.Sprintf("Login successful: %d", user.ID)
	_ = lf.createAuditLog(ctx, user, models.AuditActionLoginSuccess, msg, true, nil, metadata)

	return &dto.LoginResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   utils.AccessTokenTTLSeconds,
		User:        ToUserDTO(*user),
	}, nil
}

// CaptchaChallenge issues a fresh rotate captcha for gated logins
func (lf *LoginFlowImpl) CaptchaChallenge(ctx context.Context) (*dto.CaptchaChallengeResponse, error) {
	challenge, err := lf.captchaService.GenerateRotate(ctx)
	if err != nil {
		return nil, NewBusinessError("CAPTCHA_GENERATION_FAILED", "Failed to generate captcha", err)
	}

	return &dto.CaptchaChallengeResponse{
		CaptchaID:   challenge.ID,
		MasterImage: challenge.MasterImageBase64,
		ThumbImage:  challenge.ThumbImageBase64,
	}, nil
}

// Private helper methods

func (lf *LoginFlowImpl) failureCount(ctx context.Context, email string) int {
	if lf.rc == nil {
		return 0
	}
	key := redisKey(*lf.cacheConfig, fmt.Sprintf("login:failures:%s", email))
	count, err := lf.rc.Get(ctx, key).Int()
	if err != nil {
		return 0
	}
	return count
}

func (lf *LoginFlowImpl) recordFailure(ctx context.Context, email string) {
	if lf.rc == nil {
		return
	}
	key := redisKey(*lf.cacheConfig, fmt.Sprintf("login:failures:%s", email))
	if count, err := lf.rc.Incr(ctx, key).Result(); err == nil && count == 1 {
		_ = lf.rc.Expire(ctx, key, utils.LoginFailureWindow).Err()
	}
}

func (lf *LoginFlowImpl) resetFailures(ctx context.Context, email string) {
	if lf.rc == nil {
		return
	}
	key := redisKey(*lf.cacheConfig, fmt.Sprintf("login:failures:%s", email))
	_ = lf.rc.Del(ctx, key).Err()
}

func (lf *LoginFlowImpl) createSession(ctx context.Context, userID uint, accessToken string, metadata *ClientMetadata) error {
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

	return lf.sessionRepo.Save(ctx, session)
}

func (lf *LoginFlowImpl) createAuditLog(ctx context.Context, user *models.User, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) error {
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

	return lf.auditRepo.Save(ctx, audit)
}

// GenerateOTP generates a secure 6-digit code using crypto/rand
func GenerateOTP() (string, error) {
	max := big.NewInt(999999)
	min := big.NewInt(100000)

	n, err := rand.Int(rand.Reader, new(big.Int).Sub(max, min))
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%06d", new(big.Int).Add(n, min).Int64()), nil
}
