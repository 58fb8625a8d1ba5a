package handlers

import (
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/queryloom/queryloom/app/dto"
	"github.com/queryloom/queryloom/app/middleware"
	businessflow "github.com/queryloom/queryloom/business_flow"
)

// QueryHandlerInterface defines the contract for query handlers
type QueryHandlerInterface interface {
	SubmitQuery(c fiber.Ctx) error
	GetResult(c fiber.Ctx) error
}

// QueryHandler handles query submission and result polling HTTP requests
type QueryHandler struct {
	queryFlow businessflow.QueryFlow
	validator *validator.Validate
}

// NewQueryHandler creates a new query handler
func NewQueryHandler(queryFlow businessflow.QueryFlow) *QueryHandler {
	return &QueryHandler{
		queryFlow: queryFlow,
		validator: newValidator(),
	}
}

func (h *QueryHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *QueryHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// SubmitQuery accepts a natural-language question and queues it for the worker
func (h *QueryHandler) SubmitQuery(c fiber.Ctx) error {
	var req dto.SubmitQueryRequest
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
	// The body must match the authenticated identity
	if claims.UserID != req.UserID || claims.TenantID != req.TenantID {
		return h.ErrorResponse(c, fiber.StatusForbidden, "Identity mismatch", "IDENTITY_MISMATCH", nil)
	}

	result, err := h.queryFlow.SubmitQuery(createRequestContext(c, "/api/v1/query"), &req, clientMetadata(c))
	if err != nil {
		if businessflow.IsEmptyQuestion(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Question must not be empty", "EMPTY_QUESTION", nil)
		}
		if businessflow.IsQueryNotPermitted(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Query submission not permitted", "QUERY_NOT_PERMITTED", nil)
		}
		if businessflow.IsThreadNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Thread not found", "THREAD_NOT_FOUND", nil)
		}
		if businessflow.IsThreadAccessDenied(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Thread access denied", "THREAD_ACCESS_DENIED", nil)
		}

		log.Println("Query submission failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Query submission failed", "QUERY_SUBMISSION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusAccepted, "Query accepted", result)
}

// GetResult returns the current state of a task by ID
func (h *QueryHandler) GetResult(c fiber.Ctx) error {
	taskID := c.Params("task_id")
	if taskID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Task ID is required", "INVALID_REQUEST", nil)
	}

	claims, ok := middleware.GetTokenClaimsFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHORIZED", nil)
	}

	result, err := h.queryFlow.GetResult(createRequestContext(c, "/api/v1/result"), taskID, claims.TenantID, claims.UserID, clientMetadata(c))
	if err != nil {
		if businessflow.IsTaskNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Task not found", "TASK_NOT_FOUND", nil)
		}
		if businessflow.IsTaskAccessDenied(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Task access denied", "TASK_ACCESS_DENIED", nil)
		}

		log.Println("Result lookup failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Result lookup failed", "RESULT_LOOKUP_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Task state", result)
}
