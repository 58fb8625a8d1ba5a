// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/queryloom/queryloom/models"
	"gorm.io/gorm"
)

// ThreadRepositoryImpl implements ThreadRepository interface
type ThreadRepositoryImpl struct {
	*BaseRepository[models.Thread, models.ThreadFilter]
}

// NewThreadRepository creates a new thread repository
func NewThreadRepository(db *gorm.DB) ThreadRepository {
	return &ThreadRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Thread, models.ThreadFilter](db),
	}
}

// ByUUID retrieves a thread by public UUID
func (r *ThreadRepositoryImpl) ByUUID(ctx context.Context, threadUUID uuid.UUID) (*models.Thread, error) {
	db := r.getDB(ctx)

	var thread models.Thread
	err := db.Where("uuid = ?", threadUUID).Last(&thread).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find thread by uuid: %w", err)
	}

	return &thread, nil
}

// ListByUser retrieves a user's threads in a tenant, most recently updated first
func (r *ThreadRepositoryImpl) ListByUser(ctx context.Context, tenantID string, userID uint) ([]*models.Thread, error) {
	db := r.getDB(ctx)

	var threads []*models.Thread
	err := db.Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Order("updated_at DESC").
		Find(&threads).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}

	return threads, nil
}

// Rename updates a thread's title
func (r *ThreadRepositoryImpl) Rename(ctx context.Context, threadUUID uuid.UUID, title string) error {
	db := r.getDB(ctx)

	err := db.Model(&models.Thread{}).
		Where("uuid = ?", threadUUID).
		Updates(map[string]any{
			"title":      title,
			"updated_at": time.Now().UTC(),
		}).Error

	if err != nil {
		return fmt.Errorf("failed to rename thread: %w", err)
	}

	return nil
}

// Touch bumps a thread's updated_at so it sorts to the top of the list
func (r *ThreadRepositoryImpl) Touch(ctx context.Context, threadID uint, at time.Time) error {
	db := r.getDB(ctx)

	err := db.Model(&models.Thread{}).
		Where("id = ?", threadID).
		Update("updated_at", at).Error

	if err != nil {
		return fmt.Errorf("failed to touch thread: %w", err)
	}

	return nil
}

// DeleteWithMessages removes a thread and all its messages in one transaction.
// The tenant check keeps one tenant from deleting another tenant's threads.
func (r *ThreadRepositoryImpl) DeleteWithMessages(ctx context.Context, threadUUID uuid.UUID, tenantID string) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	var thread models.Thread
	err = db.Where("uuid = ? AND tenant_id = ?", threadUUID, tenantID).First(&thread).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return gorm.ErrRecordNotFound
		}
		return fmt.Errorf("failed to load thread for delete: %w", err)
	}

	err = db.Where("thread_id = ?", thread.ID).Delete(&models.Message{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete thread messages: %w", err)
	}

	err = db.Delete(&models.Thread{}, thread.ID).Error
	if err != nil {
		return fmt.Errorf("failed to delete thread: %w", err)
	}

	return nil
}

func (r *ThreadRepositoryImpl) applyFilter(query *gorm.DB, filter models.ThreadFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}

	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}

	if filter.TenantID != nil {
		query = query.Where("tenant_id = ?", *filter.TenantID)
	}

	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}

	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}

	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}

	return query
}

// ByFilter retrieves threads based on filter criteria
func (r *ThreadRepositoryImpl) ByFilter(ctx context.Context, filter models.ThreadFilter, orderBy string, limit, offset int) ([]*models.Thread, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Thread{}), filter)

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

	var threads []*models.Thread
	err := query.Find(&threads).Error
	if err != nil {
		return nil, err
	}

	return threads, nil
}

// Count returns the number of threads matching the filter
func (r *ThreadRepositoryImpl) Count(ctx context.Context, filter models.ThreadFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Thread{}), filter)

	var count int64
	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any thread matching the filter exists
func (r *ThreadRepositoryImpl) Exists(ctx context.Context, filter models.ThreadFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}
