// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/queryloom/queryloom/models"
	"github.com/queryloom/queryloom/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueryTaskRepositoryImpl implements QueryTaskRepository interface
type QueryTaskRepositoryImpl struct {
	*BaseRepository[models.QueryTask, models.QueryTaskFilter]
}

// NewQueryTaskRepository creates a new query task repository
func NewQueryTaskRepository(db *gorm.DB) QueryTaskRepository {
	return &QueryTaskRepositoryImpl{
		BaseRepository: NewBaseRepository[models.QueryTask, models.QueryTaskFilter](db),
	}
}

// ByTaskID retrieves a task by its public task ID
func (r *QueryTaskRepositoryImpl) ByTaskID(ctx context.Context, taskID uuid.UUID) (*models.QueryTask, error) {
	db := r.getDB(ctx)

	var task models.QueryTask
	err := db.Where("task_id = ?", taskID).Last(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find task by task id: %w", err)
	}

	return &task, nil
}

// ClaimNextPending atomically picks the oldest pending task and marks it
// running. SKIP LOCKED lets multiple workers claim without contention.
func (r *QueryTaskRepositoryImpl) ClaimNextPending(ctx context.Context) (*models.QueryTask, error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return nil, err
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

	var task models.QueryTask
	err = db.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ?", models.QueryTaskStatusPending).
		Order("created_at ASC").
		First(&task).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = nil
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim pending task: %w", err)
	}

	now := utils.UTCNow()
	task.Status = models.QueryTaskStatusRunning
	task.StartedAt = &now

	err = db.Model(&models.QueryTask{}).
		Where("id = ?", task.ID).
		Updates(map[string]any{
			"status":     models.QueryTaskStatusRunning,
			"started_at": now,
		}).Error

	if err != nil {
		return nil, fmt.Errorf("failed to mark task running: %w", err)
	}

	return &task, nil
}

// MarkCompleted stores the task's result payload and flips it to completed
func (r *QueryTaskRepositoryImpl) MarkCompleted(ctx context.Context, task *models.QueryTask) error {
	db := r.getDB(ctx)

	columns := task.Columns
	if columns == nil {
		columns = pq.StringArray{}
	}
	rows := task.Rows
	if rows == nil {
		rows = []byte("[]")
	}

	err := db.Model(&models.QueryTask{}).
		Where("id = ?", task.ID).
		Updates(map[string]any{
			"status":      models.QueryTaskStatusCompleted,
			"sql":         task.SQL,
			"columns":     columns,
			"rows":        rows,
			"row_count":   task.RowCount,
			"success":     true,
			"error":       nil,
			"finished_at": utils.UTCNow(),
		}).Error

	if err != nil {
		return fmt.Errorf("failed to mark task completed: %w", err)
	}

	return nil
}

// MarkError flips the task to error with a message and follow-up suggestions
func (r *QueryTaskRepositoryImpl) MarkError(ctx context.Context, task *models.QueryTask, message string, suggestions []string) error {
	db := r.getDB(ctx)

	err := db.Model(&models.QueryTask{}).
		Where("id = ?", task.ID).
		Updates(map[string]any{
			"status":      models.QueryTaskStatusError,
			"success":     false,
			"error":       message,
			"suggestions": pq.StringArray(suggestions),
			"finished_at": utils.UTCNow(),
		}).Error

	if err != nil {
		return fmt.Errorf("failed to mark task errored: %w", err)
	}

	return nil
}

// CountByStatus returns the number of tasks per status within a tenant
func (r *QueryTaskRepositoryImpl) CountByStatus(ctx context.Context, tenantID string) (map[string]int64, error) {
	db := r.getDB(ctx)

	type statusCount struct {
		Status string
		Count  int64
	}

	var rows []statusCount
	err := db.Model(&models.QueryTask{}).
		Select("status, COUNT(*) AS count").
		Where("tenant_id = ?", tenantID).
		Group("status").
		Scan(&rows).Error

	if err != nil {
		return nil, fmt.Errorf("failed to count tasks by status: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}

	return counts, nil
}

// ExpireStuckTasks errors out running tasks whose worker died mid-flight
func (r *QueryTaskRepositoryImpl) ExpireStuckTasks(ctx context.Context, olderThan time.Duration) error {
	db := r.getDB(ctx)

	cutoff := utils.UTCNow().Add(-olderThan)
	err := db.Model(&models.QueryTask{}).
		Where("status = ? AND started_at < ?", models.QueryTaskStatusRunning, cutoff).
		Updates(map[string]any{
			"status":      models.QueryTaskStatusError,
			"success":     false,
			"error":       "query timed out",
			"finished_at": utils.UTCNow(),
		}).Error

	if err != nil {
		return fmt.Errorf("failed to expire stuck tasks: %w", err)
	}

	return nil
}

func (r *QueryTaskRepositoryImpl) applyFilter(query *gorm.DB, filter models.QueryTaskFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}

	if filter.TaskID != nil {
		query = query.Where("task_id = ?", *filter.TaskID)
	}

	if filter.TenantID != nil {
		query = query.Where("tenant_id = ?", *filter.TenantID)
	}

	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}

	if filter.ThreadID != nil {
		query = query.Where("thread_id = ?", *filter.ThreadID)
	}

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}

	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}

	return query
}

// ByFilter retrieves query tasks based on filter criteria
func (r *QueryTaskRepositoryImpl) ByFilter(ctx context.Context, filter models.QueryTaskFilter, orderBy string, limit, offset int) ([]*models.QueryTask, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.QueryTask{}), filter)

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

	var tasks []*models.QueryTask
	err := query.Find(&tasks).Error
	if err != nil {
		return nil, err
	}

	return tasks, nil
}

// Count returns the number of query tasks matching the filter
func (r *QueryTaskRepositoryImpl) Count(ctx context.Context, filter models.QueryTaskFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.QueryTask{}), filter)

	var count int64
	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any query task matching the filter exists
func (r *QueryTaskRepositoryImpl) Exists(ctx context.Context, filter models.QueryTaskFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}
