package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/queryloom/queryloom/app/dto"
	"github.com/queryloom/queryloom/config"
	"github.com/queryloom/queryloom/models"
	"github.com/queryloom/queryloom/repository"
	"github.com/queryloom/queryloom/utils"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// QueryFlow handles natural-language query submission and result polling.
// Submission is asynchronous: the question is accepted, queued as a task,
// and answered by the background worker; clients poll for the outcome.
type QueryFlow interface {
	SubmitQuery(ctx context.Context, req *dto.SubmitQueryRequest, metadata *ClientMetadata) (*dto.SubmitQueryResponse, error)
	GetResult(ctx context.Context, taskID string, tenantID string, userID uint, metadata *ClientMetadata) (*dto.TaskResultResponse, error)
}

// QueryFlowImpl implements the query business flow
type QueryFlowImpl struct {
	userRepo    repository.UserRepository
	threadRepo  repository.ThreadRepository
	messageRepo repository.MessageRepository
	taskRepo    repository.QueryTaskRepository
	auditRepo   repository.AuditLogRepository
	rc          *redis.Client
	cacheConfig *config.CacheConfig
	db          *gorm.DB
}

// NewQueryFlow creates a new query flow instance
func NewQueryFlow(
	userRepo repository.UserRepository,
	threadRepo repository.ThreadRepository,
	messageRepo repository.MessageRepository,
	taskRepo repository.QueryTaskRepository,
	auditRepo repository.AuditLogRepository,
	rc *redis.Client,
	cacheConfig *config.CacheConfig,
	db *gorm.DB,
) QueryFlow {
	return &QueryFlowImpl{
		userRepo:    userRepo,
		threadRepo:  threadRepo,
		messageRepo: messageRepo,
		taskRepo:    taskRepo,
		auditRepo:   auditRepo,
		rc:          rc,
		cacheConfig: cacheConfig,
		db:          db,
	}
}

// SubmitQuery validates the question, resolves or creates the conversation
// thread, and queues a pending task for the worker. The response carries the
// task ID to poll and the thread the question was filed under.
func (s *QueryFlowImpl) SubmitQuery(ctx context.Context, req *dto.SubmitQueryRequest, metadata *ClientMetadata) (*dto.SubmitQueryResponse, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, NewBusinessError("QUERY_VALIDATION_FAILED", "Query validation failed", ErrEmptyQuestion)
	}

	user, err := s.userRepo.ByID(ctx, req.UserID)
	if err != nil {
		return nil, NewBusinessError("QUERY_SUBMISSION_FAILED", "Query submission failed", err)
	}
	if user == nil || user.TenantID != req.TenantID {
		return nil, NewBusinessError("QUERY_SUBMISSION_FAILED", "Query submission failed", ErrUserNotFound)
	}
	if !user.CanSubmitQueries() {
		return nil, NewBusinessError("QUERY_NOT_PERMITTED", "Query submission not permitted", ErrQueryNotPermitted)
	}

	var parentID *uuid.UUID
	if req.ParentID != nil {
		parsed, err := uuid.Parse(*req.ParentID)
		if err != nil {
			return nil, NewBusinessError("QUERY_VALIDATION_FAILED", "Query validation failed", err)
		}
		parentID = &parsed
	}

	var task *models.QueryTask
	var thread *models.Thread

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		var err error
		thread, err = s.resolveThread(txCtx, req, user)
		if err != nil {
			return err
		}

		message := &models.Message{
			UUID:      uuid.New(),
			ThreadID:  thread.ID,
			ParentID:  parentID,
			Question:  question,
			HasResult: utils.ToPtr(false),
		}
		if err := s.messageRepo.Save(txCtx, message); err != nil {
			return err
		}

		task = &models.QueryTask{
			TaskID:   uuid.New(),
			TenantID: req.TenantID,
			UserID:   req.UserID,
			ThreadID: thread.UUID,
			ParentID: parentID,
			Question: question,
			Status:   models.QueryTaskStatusPending,
		}
		if err := s.taskRepo.Save(txCtx, task); err != nil {
			return err
		}

		return s.threadRepo.Touch(txCtx, thread.ID, utils.UTCNow())
	})

	if err != nil {
		errMsg := fmt.Sprintf("Query submission failed: %s", err.Error())
		_ = s.createAuditLog(ctx, user, models.AuditActionQueryFailed, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("QUERY_SUBMISSION_FAILED", "Query submission failed", err)
	}

	msg := fmt.Sprintf("Query submitted: %s", task.TaskID)
	_ = s.createAuditLog(ctx, user, models.AuditActionQuerySubmitted, msg, true, nil, metadata)

	return &dto.SubmitQueryResponse{
		TaskID:   task.TaskID.String(),
		ThreadID: thread.UUID.String(),
	}, nil
}

// GetResult returns the current state of a task. Settled results are served
// from the cache when available; a task still in flight always reports
// pending on the wire.
func (s *QueryFlowImpl) GetResult(ctx context.Context, taskID string, tenantID string, userID uint, metadata *ClientMetadata) (*dto.TaskResultResponse, error) {
	parsedTaskID, err := uuid.Parse(taskID)
	if err != nil {
		return nil, NewBusinessError("TASK_NOT_FOUND", "Task not found", ErrTaskNotFound)
	}

	if cached := s.cachedResult(ctx, parsedTaskID, tenantID, userID); cached != nil {
		return cached, nil
	}

	task, err := s.taskRepo.ByTaskID(ctx, parsedTaskID)
	if err != nil {
		return nil, NewBusinessError("RESULT_LOOKUP_FAILED", "Result lookup failed", err)
	}
	if task == nil {
		return nil, NewBusinessError("TASK_NOT_FOUND", "Task not found", ErrTaskNotFound)
	}
	if task.TenantID != tenantID || task.UserID != userID {
		return nil, NewBusinessError("TASK_ACCESS_DENIED", "Task access denied", ErrTaskAccessDenied)
	}

	result := ToTaskResultDTO(*task)
	if task.IsTerminal() {
		StoreTaskResult(ctx, s.rc, *s.cacheConfig, task)
	}

	return &result, nil
}

// Private helper methods

func (s *QueryFlowImpl) resolveThread(ctx context.Context, req *dto.SubmitQueryRequest, user *models.User) (*models.Thread, error) {
	if req.ThreadID != nil {
		threadUUID, err := uuid.Parse(*req.ThreadID)
		if err != nil {
			return nil, ErrThreadNotFound
		}
		thread, err := s.threadRepo.ByUUID(ctx, threadUUID)
		if err != nil {
			return nil, err
		}
		if thread == nil {
			return nil, ErrThreadNotFound
		}
		if !thread.BelongsTo(req.TenantID, req.UserID) {
			return nil, ErrThreadAccessDenied
		}
		return thread, nil
	}

	thread := &models.Thread{
		UUID:     uuid.New(),
		TenantID: req.TenantID,
		UserID:   req.UserID,
		Title:    utils.DefaultThreadTitle,
	}
	if err := s.threadRepo.Save(ctx, thread); err != nil {
		return nil, err
	}
	return thread, nil
}

// CachedTaskResult is the Redis payload for a settled task. Ownership fields
// are stored alongside the wire response so cache hits can be authorized.
type CachedTaskResult struct {
	TenantID string                 `json:"tenant_id"`
	UserID   uint                   `json:"user_id"`
	Result   dto.TaskResultResponse `json:"result"`
}

// TaskResultCacheKey builds the Redis key for a task's cached result
func TaskResultCacheKey(cfg config.CacheConfig, taskID uuid.UUID) string {
	return redisKey(cfg, fmt.Sprintf("result:%s", taskID))
}

// StoreTaskResult caches a terminal task's wire response. Shared between the
// polling flow and the background worker so both write the same shape.
func StoreTaskResult(ctx context.Context, rc *redis.Client, cfg config.CacheConfig, task *models.QueryTask) {
	if rc == nil || !task.IsTerminal() {
		return
	}
	entry := CachedTaskResult{
		TenantID: task.TenantID,
		UserID:   task.UserID,
		Result:   ToTaskResultDTO(*task),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	_ = rc.Set(ctx, TaskResultCacheKey(cfg, task.TaskID), raw, utils.ResultCacheTTL).Err()
}

func (s *QueryFlowImpl) cachedResult(ctx context.Context, taskID uuid.UUID, tenantID string, userID uint) *dto.TaskResultResponse {
	if s.rc == nil {
		return nil
	}
	raw, err := s.rc.Get(ctx, TaskResultCacheKey(*s.cacheConfig, taskID)).Bytes()
	if err != nil {
		return nil
	}
	var entry CachedTaskResult
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil
	}
	// Ownership is checked against the cached copy too
	if entry.TenantID != tenantID || entry.UserID != userID {
		return nil
	}
	return &entry.Result
}

func (s *QueryFlowImpl) createAuditLog(ctx context.Context, user *models.User, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) error {
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
