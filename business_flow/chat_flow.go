package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/queryloom/queryloom/app/dto"
	"github.com/queryloom/queryloom/models"
	"github.com/queryloom/queryloom/repository"
	"github.com/queryloom/queryloom/utils"
	"gorm.io/gorm"
)

// ChatFlow handles conversation history retrieval and thread management
type ChatFlow interface {
	ChatHistory(ctx context.Context, req *dto.ChatHistoryRequest, metadata *ClientMetadata) (*dto.ChatHistoryResponse, error)
	DeleteThread(ctx context.Context, req *dto.DeleteThreadRequest, userID uint, metadata *ClientMetadata) (*dto.DeleteThreadResponse, error)
	RenameThread(ctx context.Context, req *dto.RenameThreadRequest, userID uint, metadata *ClientMetadata) (*dto.ThreadDTO, error)
}

// ChatFlowImpl implements the chat business flow
type ChatFlowImpl struct {
	userRepo    repository.UserRepository
	threadRepo  repository.ThreadRepository
	messageRepo repository.MessageRepository
	auditRepo   repository.AuditLogRepository
	db          *gorm.DB
}

// NewChatFlow creates a new chat flow instance
func NewChatFlow(
	userRepo repository.UserRepository,
	threadRepo repository.ThreadRepository,
	messageRepo repository.MessageRepository,
	auditRepo repository.AuditLogRepository,
	db *gorm.DB,
) ChatFlow {
	return &ChatFlowImpl{
		userRepo:    userRepo,
		threadRepo:  threadRepo,
		messageRepo: messageRepo,
		auditRepo:   auditRepo,
		db:          db,
	}
}

// ChatHistory returns every message of the user's threads in the tenant,
// newest first. Clients group the flat list into threads themselves.
func (s *ChatFlowImpl) ChatHistory(ctx context.Context, req *dto.ChatHistoryRequest, metadata *ClientMetadata) (*dto.ChatHistoryResponse, error) {
	messages, err := s.messageRepo.ListByUserAndTenant(ctx, req.UserID, req.TenantID)
	if err != nil {
		return nil, NewBusinessError("CHAT_HISTORY_FAILED", "Failed to load chat history", err)
	}

	response := &dto.ChatHistoryResponse{
		Messages: make([]dto.ChatMessageDTO, 0, len(messages)),
	}
	for _, message := range messages {
		response.Messages = append(response.Messages, toChatMessageDTO(message))
	}

	return response, nil
}

// DeleteThread removes the conversation and all of its messages
func (s *ChatFlowImpl) DeleteThread(ctx context.Context, req *dto.DeleteThreadRequest, userID uint, metadata *ClientMetadata) (*dto.DeleteThreadResponse, error) {
	threadUUID, err := uuid.Parse(req.ThreadID)
	if err != nil {
		return nil, NewBusinessError("THREAD_NOT_FOUND", "Thread not found", ErrThreadNotFound)
	}

	thread, err := s.loadOwnedThread(ctx, threadUUID, req.TenantID, userID)
	if err != nil {
		return nil, err
	}

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		return s.threadRepo.DeleteWithMessages(txCtx, threadUUID, req.TenantID)
	})
	if err != nil {
		errMsg := fmt.Sprintf("Thread deletion failed: %s", err.Error())
		_ = s.createAuditLog(ctx, userID, req.TenantID, models.AuditActionThreadDeleted, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("THREAD_DELETION_FAILED", "Thread deletion failed", err)
	}

	msg := fmt.Sprintf("Thread deleted: %s", thread.UUID)
	_ = s.createAuditLog(ctx, userID, req.TenantID, models.AuditActionThreadDeleted, msg, true, nil, metadata)

	return &dto.DeleteThreadResponse{
		Message:  "Thread deleted successfully.",
		ThreadID: thread.UUID.String(),
	}, nil
}

// RenameThread changes the conversation title
func (s *ChatFlowImpl) RenameThread(ctx context.Context, req *dto.RenameThreadRequest, userID uint, metadata *ClientMetadata) (*dto.ThreadDTO, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, NewBusinessError("THREAD_RENAME_FAILED", "Thread rename failed", ErrEmptyThreadTitle)
	}

	threadUUID, err := uuid.Parse(req.ThreadID)
	if err != nil {
		return nil, NewBusinessError("THREAD_NOT_FOUND", "Thread not found", ErrThreadNotFound)
	}

	thread, err := s.loadOwnedThread(ctx, threadUUID, req.TenantID, userID)
	if err != nil {
		return nil, err
	}

	if err := s.threadRepo.Rename(ctx, threadUUID, title); err != nil {
		errMsg := fmt.Sprintf("Thread rename failed: %s", err.Error())
		_ = s.createAuditLog(ctx, userID, req.TenantID, models.AuditActionThreadRenamed, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("THREAD_RENAME_FAILED", "Thread rename failed", err)
	}

	msg := fmt.Sprintf("Thread renamed: %s", thread.UUID)
	_ = s.createAuditLog(ctx, userID, req.TenantID, models.AuditActionThreadRenamed, msg, true, nil, metadata)

	return &dto.ThreadDTO{
		ThreadID:  thread.UUID.String(),
		Title:     title,
		CreatedAt: thread.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: utils.UTCNow().Format(time.RFC3339),
	}, nil
}

// Private helper methods

func (s *ChatFlowImpl) loadOwnedThread(ctx context.Context, threadUUID uuid.UUID, tenantID string, userID uint) (*models.Thread, error) {
	thread, err := s.threadRepo.ByUUID(ctx, threadUUID)
	if err != nil {
		return nil, NewBusinessError("THREAD_LOOKUP_FAILED", "Thread lookup failed", err)
	}
	if thread == nil {
		return nil, NewBusinessError("THREAD_NOT_FOUND", "Thread not found", ErrThreadNotFound)
	}
	if !thread.BelongsTo(tenantID, userID) {
		return nil, NewBusinessError("THREAD_ACCESS_DENIED", "Thread access denied", ErrThreadAccessDenied)
	}
	return thread, nil
}

func toChatMessageDTO(message *models.Message) dto.ChatMessageDTO {
	var parentID *string
	if message.ParentID != nil {
		parentID = utils.ToPtr(message.ParentID.String())
	}

	results := json.RawMessage("[]")
	if len(message.Rows) > 0 {
		results = message.Rows
	}

	columns := []string(message.Columns)
	if columns == nil {
		columns = []string{}
	}
	suggestions := []string(message.Suggestions)
	if suggestions == nil {
		suggestions = []string{}
	}

	return dto.ChatMessageDTO{
		MessageID:   message.UUID.String(),
		ThreadID:    message.Thread.UUID.String(),
		ParentID:    parentID,
		Question:    message.Question,
		HasResult:   message.ResultAttached(),
		SQL:         message.SQL,
		Results:     results,
		Columns:     columns,
		RowCount:    message.RowCount,
		Success:     utils.IsTrue(message.Success),
		Error:       message.Error,
		Suggestions: suggestions,
		CreatedAt:   message.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *ChatFlowImpl) createAuditLog(ctx context.Context, userID uint, tenantID, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) error {
	audit := &models.AuditLog{
		UserID:       &userID,
		TenantID:     &tenantID,
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
