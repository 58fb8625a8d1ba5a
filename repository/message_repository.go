// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/queryloom/queryloom/models"
	"github.com/queryloom/queryloom/utils"
	"gorm.io/gorm"
)

// MessageRepositoryImpl implements MessageRepository interface
type MessageRepositoryImpl struct {
	*BaseRepository[models.Message, models.MessageFilter]
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &MessageRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Message, models.MessageFilter](db),
	}
}

// ByUUID retrieves a message by public UUID
func (r *MessageRepositoryImpl) ByUUID(ctx context.Context, messageUUID uuid.UUID) (*models.Message, error) {
	db := r.getDB(ctx)

	var message models.Message
	err := db.Where("uuid = ?", messageUUID).Last(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find message by uuid: %w", err)
	}

	return &message, nil
}

// ListByThread retrieves a thread's messages in chronological order
func (r *MessageRepositoryImpl) ListByThread(ctx context.Context, threadID uint) ([]*models.Message, error) {
	db := r.getDB(ctx)

	var messages []*models.Message
	err := db.Where("thread_id = ?", threadID).
		Order("created_at ASC").
		Find(&messages).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	return messages, nil
}

// ListByUserAndTenant retrieves every message of a user's threads in a tenant,
// joined with the owning thread, newest message first.
func (r *MessageRepositoryImpl) ListByUserAndTenant(ctx context.Context, userID uint, tenantID string) ([]*models.Message, error) {
	db := r.getDB(ctx)

	var messages []*models.Message
	err := db.Joins("JOIN threads ON threads.id = messages.thread_id").
		Where("threads.user_id = ? AND threads.tenant_id = ?", userID, tenantID).
		Order("messages.created_at DESC").
		Preload("Thread").
		Find(&messages).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list messages by user and tenant: %w", err)
	}

	return messages, nil
}

// CountByTenant returns the number of messages across a tenant's threads
func (r *MessageRepositoryImpl) CountByTenant(ctx context.Context, tenantID string) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	err := db.Model(&models.Message{}).
		Joins("JOIN threads ON threads.id = messages.thread_id").
		Where("threads.tenant_id = ?", tenantID).
		Count(&count).Error

	if err != nil {
		return 0, fmt.Errorf("failed to count messages by tenant: %w", err)
	}

	return count, nil
}

// LastWithoutResult retrieves the newest message of a thread that has no
// attached result yet. Returns nil when every message is settled.
func (r *MessageRepositoryImpl) LastWithoutResult(ctx context.Context, threadID uint) (*models.Message, error) {
	db := r.getDB(ctx)

	var message models.Message
	err := db.Where("thread_id = ? AND has_result = ?", threadID, false).
		Order("created_at DESC").
		First(&message).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &message, nil
}

// AttachResult copies a terminal task's payload onto a message.
// Missing fields are normalized so the stored row never has nulls where the
// client expects empty collections.
func (r *MessageRepositoryImpl) AttachResult(ctx context.Context, messageID uint, task *models.QueryTask) error {
	db := r.getDB(ctx)

	columns := task.Columns
	if columns == nil {
		columns = pq.StringArray{}
	}
	suggestions := task.Suggestions
	if suggestions == nil {
		suggestions = pq.StringArray{}
	}
	rows := task.Rows
	if rows == nil {
		rows = []byte("[]")
	}

	err := db.Model(&models.Message{}).
		Where("id = ?", messageID).
		Updates(map[string]any{
			"has_result":  true,
			"task_id":     task.TaskID,
			"sql":         task.SQL,
			"columns":     columns,
			"rows":        rows,
			"row_count":   task.RowCount,
			"success":     utils.IsTrue(task.Success),
			"error":       task.Error,
			"suggestions": suggestions,
			"updated_at":  utils.UTCNow(),
		}).Error

	if err != nil {
		return fmt.Errorf("failed to attach result to message: %w", err)
	}

	return nil
}

func (r *MessageRepositoryImpl) applyFilter(query *gorm.DB, filter models.MessageFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}

	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}

	if filter.ThreadID != nil {
		query = query.Where("thread_id = ?", *filter.ThreadID)
	}

	if filter.TaskID != nil {
		query = query.Where("task_id = ?", *filter.TaskID)
	}

	if filter.HasResult != nil {
		query = query.Where("has_result = ?", *filter.HasResult)
	}

	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}

	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}

	return query
}

// ByFilter retrieves messages based on filter criteria
func (r *MessageRepositoryImpl) ByFilter(ctx context.Context, filter models.MessageFilter, orderBy string, limit, offset int) ([]*models.Message, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Message{}), filter)

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

	var messages []*models.Message
	err := query.Find(&messages).Error
	if err != nil {
		return nil, err
	}

	return messages, nil
}

// Count returns the number of messages matching the filter
func (r *MessageRepositoryImpl) Count(ctx context.Context, filter models.MessageFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Message{}), filter)

	var count int64
	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any message matching the filter exists
func (r *MessageRepositoryImpl) Exists(ctx context.Context, filter models.MessageFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}
