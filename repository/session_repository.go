// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/queryloom/queryloom/models"
	"github.com/queryloom/queryloom/utils"
	"gorm.io/gorm"
)

// SessionRepositoryImpl implements SessionRepository interface
type SessionRepositoryImpl struct {
	*BaseRepository[models.Session, models.SessionFilter]
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &SessionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Session, models.SessionFilter](db),
	}
}

// ByAccessToken retrieves a session by its access token
func (r *SessionRepositoryImpl) ByAccessToken(ctx context.Context, token string) (*models.Session, error) {
	db := r.getDB(ctx)

	var session models.Session
	err := db.Where("access_token = ?", token).
		Order("id DESC").
		First(&session).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &session, nil
}

// ListActiveByUser retrieves all active, non-expired sessions for a user
func (r *SessionRepositoryImpl) ListActiveByUser(ctx context.Context, userID uint) ([]*models.Session, error) {
	db := r.getDB(ctx)

	var sessions []*models.Session
	err := db.Where("user_id = ? AND is_active = ? AND revoked_at IS NULL AND expires_at > ?",
		userID, true, utils.UTCNow()).
		Order("created_at DESC").
		Find(&sessions).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}

	return sessions, nil
}

// RevokeAllForUser deactivates every live session of a user
func (r *SessionRepositoryImpl) RevokeAllForUser(ctx context.Context, userID uint) error {
	db := r.getDB(ctx)

	err := db.Model(&models.Session{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Updates(map[string]any{
			"is_active":  false,
			"revoked_at": utils.UTCNow(),
		}).Error

	if err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}

	return nil
}

// CleanupExpired deactivates sessions whose expiry has passed
func (r *SessionRepositoryImpl) CleanupExpired(ctx context.Context) error {
	db := r.getDB(ctx)

	err := db.Model(&models.Session{}).
		Where("expires_at <= ? AND is_active = ?", utils.UTCNow(), true).
		Update("is_active", false).Error

	if err != nil {
		return fmt.Errorf("failed to cleanup expired sessions: %w", err)
	}

	return nil
}

func (r *SessionRepositoryImpl) applyFilter(query *gorm.DB, filter models.SessionFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}

	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}

	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}

	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}

	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}

	if filter.ExpiresAfter != nil {
		query = query.Where("expires_at > ?", *filter.ExpiresAfter)
	}

	if filter.ExpiresBefore != nil {
		query = query.Where("expires_at < ?", *filter.ExpiresBefore)
	}

	return query
}

// ByFilter retrieves sessions based on filter criteria
func (r *SessionRepositoryImpl) ByFilter(ctx context.Context, filter models.SessionFilter, orderBy string, limit, offset int) ([]*models.Session, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Session{}), filter)

	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var sessions []*models.Session
	err := query.Find(&sessions).Error
	if err != nil {
		return nil, err
	}

	return sessions, nil
}

// Count returns the number of sessions matching the filter
func (r *SessionRepositoryImpl) Count(ctx context.Context, filter models.SessionFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Session{}), filter)

	var count int64
	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any session matching the filter exists
func (r *SessionRepositoryImpl) Exists(ctx context.Context, filter models.SessionFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}
