// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/queryloom/queryloom/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Update(ctx context.Context, entity *T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// UserRepository defines operations for platform users
type UserRepository interface {
	Repository[models.User, models.UserFilter]
	ByEmail(ctx context.Context, email string) (*models.User, error)
	ByPhoneNumber(ctx context.Context, phoneNumber string) (*models.User, error)
	ByUUID(ctx context.Context, uuid uuid.UUID) (*models.User, error)
	ListByTenant(ctx context.Context, tenantID string, filter models.UserFilter, limit, offset int) ([]*models.User, error)
	UpdateLastLogin(ctx context.Context, userID uint, at time.Time) error
	UpdateVerificationStatus(ctx context.Context, userID uint, verified bool, verifiedAt *time.Time) error
	SoftDelete(ctx context.Context, userID uint) error
	CountByRole(ctx context.Context, tenantID string) (map[string]int64, error)
}

// OTPVerificationRepository defines operations for OTP verifications
type OTPVerificationRepository interface {
	Repository[models.OTPVerification, models.OTPVerificationFilter]
	ByTargetAndType(ctx context.Context, targetValue, otpType string) (*models.OTPVerification, error)
	LatestActiveByTarget(ctx context.Context, targetValue, otpType string) (*models.OTPVerification, error)
	ExpireOldOTPs(ctx context.Context, targetValue, otpType string) error
	GetLatestByCorrelationID(ctx context.Context, correlationID uuid.UUID) (*models.OTPVerification, error)
}

// SessionRepository defines operations for issued sessions
type SessionRepository interface {
	Repository[models.Session, models.SessionFilter]
	ByAccessToken(ctx context.Context, token string) (*models.Session, error)
	ListActiveByUser(ctx context.Context, userID uint) ([]*models.Session, error)
	RevokeAllForUser(ctx context.Context, userID uint) error
	CleanupExpired(ctx context.Context) error
}

// AuditLogRepository defines operations for audit logs
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.AuditLog, error)
	ListFailedActions(ctx context.Context, limit, offset int) ([]*models.AuditLog, error)
}

// ThreadRepository defines operations for conversation threads
type ThreadRepository interface {
	Repository[models.Thread, models.ThreadFilter]
	ByUUID(ctx context.Context, threadUUID uuid.UUID) (*models.Thread, error)
	ListByUser(ctx context.Context, tenantID string, userID uint) ([]*models.Thread, error)
	Rename(ctx context.Context, threadUUID uuid.UUID, title string) error
	Touch(ctx context.Context, threadID uint, at time.Time) error
	DeleteWithMessages(ctx context.Context, threadUUID uuid.UUID, tenantID string) error
}

// MessageRepository defines operations for thread messages
type MessageRepository interface {
	Repository[models.Message, models.MessageFilter]
	ByUUID(ctx context.Context, messageUUID uuid.UUID) (*models.Message, error)
	ListByThread(ctx context.Context, threadID uint) ([]*models.Message, error)
	ListByUserAndTenant(ctx context.Context, userID uint, tenantID string) ([]*models.Message, error)
	CountByTenant(ctx context.Context, tenantID string) (int64, error)
	LastWithoutResult(ctx context.Context, threadID uint) (*models.Message, error)
	AttachResult(ctx context.Context, messageID uint, task *models.QueryTask) error
}

// QueryTaskRepository defines operations for asynchronous query tasks
type QueryTaskRepository interface {
	Repository[models.QueryTask, models.QueryTaskFilter]
	ByTaskID(ctx context.Context, taskID uuid.UUID) (*models.QueryTask, error)
	ClaimNextPending(ctx context.Context) (*models.QueryTask, error)
	MarkCompleted(ctx context.Context, task *models.QueryTask) error
	MarkError(ctx context.Context, task *models.QueryTask, message string, suggestions []string) error
	CountByStatus(ctx context.Context, tenantID string) (map[string]int64, error)
	ExpireStuckTasks(ctx context.Context, olderThan time.Duration) error
}
