package handlers

import (
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/queryloom/queryloom/app/dto"
	"github.com/queryloom/queryloom/app/middleware"
	businessflow "github.com/queryloom/queryloom/business_flow"
)

// ChatHandlerInterface defines the contract for chat history handlers
type ChatHandlerInterface interface {
	ChatHistory(c fiber.Ctx) error
	DeleteThread(c fiber.Ctx) error
	RenameThread(c fiber.Ctx) error
}

// ChatHandler handles conversation history HTTP requests
type ChatHandler struct {
	chatFlow  businessflow.ChatFlow
	validator *validator.Validate
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatFlow businessflow.ChatFlow) *ChatHandler {
	return &ChatHandler{
		chatFlow:  chatFlow,
		validator: newValidator(),
	}
}

func (h *ChatHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *ChatHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ChatHistory returns every message of the user's threads, newest first
func (h *ChatHandler) ChatHistory(c fiber.Ctx) error {
	var req dto.ChatHistoryRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrorList(err))
	}

	claims, ok := middleware.GetTokenClaimsFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHORIZED", nil)
	}
	if claims.UserID != req.UserID || claims.TenantID != req.TenantID {
		return h.ErrorResponse(c, fiber.StatusForbidden, "Identity mismatch", "IDENTITY_MISMATCH", nil)
	}

	result, err := h.chatFlow.ChatHistory(createRequestContext(c, "/api/v1/chat-history"), &req, clientMetadata(c))
	if err != nil {
		log.Println("Chat history failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load chat history", "CHAT_HISTORY_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Chat history", result)
}

// DeleteThread removes a conversation and its messages
func (h *ChatHandler) DeleteThread(c fiber.Ctx) error {
	var req dto.DeleteThreadRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrorList(err))
	}

	claims, ok := middleware.GetTokenClaimsFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHORIZED", nil)
	}
	if claims.TenantID != req.TenantID {
		return h.ErrorResponse(c, fiber.StatusForbidden, "Identity mismatch", "IDENTITY_MISMATCH", nil)
	}

	result, err := h.chatFlow.DeleteThread(createRequestContext(c, "/api/v1/delete-thread"), &req, claims.UserID, clientMetadata(c))
	if err != nil {
		if businessflow.IsThreadNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Thread not found", "THREAD_NOT_FOUND", nil)
		}
		if businessflow.IsThreadAccessDenied(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Thread access denied", "THREAD_ACCESS_DENIED", nil)
		}

		log.Println("Thread deletion failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Thread deletion failed", "THREAD_DELETION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// RenameThread changes a conversation's title
func (h *ChatHandler) RenameThread(c fiber.Ctx) error {
	var req dto.RenameThreadRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrorList(err))
	}

	claims, ok := middleware.GetTokenClaimsFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHORIZED", nil)
	}
	if claims.TenantID != req.TenantID {
		return h.ErrorResponse(c, fiber.StatusForbidden, "Identity mismatch", "IDENTITY_MISMATCH", nil)
	}

	result, err := h.chatFlow.RenameThread(createRequestContext(c, "/api/v1/rename-thread"), &req, claims.UserID, clientMetadata(c))
	if err != nil {
		if businessflow.IsEmptyThreadTitle(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Title must not be empty", "EMPTY_TITLE", nil)
		}
		if businessflow.IsThreadNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Thread not found", "THREAD_NOT_FOUND", nil)
		}
		if businessflow.IsThreadAccessDenied(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Thread access denied", "THREAD_ACCESS_DENIED", nil)
		}

		log.Println("Thread rename failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Thread rename failed", "THREAD_RENAME_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Thread renamed", result)
}
