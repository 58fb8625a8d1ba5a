package handlers

import (
	"fmt"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/queryloom/queryloom/app/dto"
	"github.com/queryloom/queryloom/app/middleware"
	businessflow "github.com/queryloom/queryloom/business_flow"
)

// AdminUserHandlerInterface defines the contract for admin user management handlers
type AdminUserHandlerInterface interface {
	ListUsers(c fiber.Ctx) error
	CreateUser(c fiber.Ctx) error
	UpdateUser(c fiber.Ctx) error
	DeleteUser(c fiber.Ctx) error
	ExportUsers(c fiber.Ctx) error
	Metrics(c fiber.Ctx) error
}

// AdminUserHandler handles tenant administration HTTP requests
type AdminUserHandler struct {
	adminFlow businessflow.AdminUserFlow
	validator *validator.Validate
}

// NewAdminUserHandler creates a new admin user handler
func NewAdminUserHandler(adminFlow businessflow.AdminUserFlow) *AdminUserHandler {
	return &AdminUserHandler{
		adminFlow: adminFlow,
		validator: newValidator(),
	}
}

func (h *AdminUserHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *AdminUserHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ListUsers returns a filtered page of the tenant's users
func (h *AdminUserHandler) ListUsers(c fiber.Ctx) error {
	claims, ok := middleware.GetTokenClaimsFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHORIZED", nil)
	}

	var req dto.AdminListUsersRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrorList(err))
	}

	result, err := h.adminFlow.ListUsers(createRequestContext(c, "/api/v1/admin/users"), claims.TenantID, &req)
	if err != nil {
		log.Println("User listing failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list users", "USER_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Users", result)
}

// CreateUser provisions a user directly in the admin's tenant
func (h *AdminUserHandler) CreateUser(c fiber.Ctx) error {
	claims, ok := middleware.GetTokenClaimsFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHORIZED", nil)
	}

	var req dto.AdminCreateUserRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	// Admins only manage their own tenant
	req.TenantID = claims.TenantID

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrorList(err))
	}

	result, err := h.adminFlow.CreateUser(createRequestContext(c, "/api/v1/admin/users"), &req, clientMetadata(c))
	if err != nil {
		if businessflow.IsEmailAlreadyExists(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Email already exists", "EMAIL_EXISTS", nil)
		}
		if businessflow.IsPhoneAlreadyExists(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Phone number already exists", "PHONE_EXISTS", nil)
		}
		if businessflow.IsInvalidRole(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid role", "INVALID_ROLE", nil)
		}
		if businessflow.IsInvalidPhoneNumber(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid phone number", "INVALID_PHONE_NUMBER", nil)
		}

		log.Println("User creation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "User creation failed", "USER_CREATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "User created", result)
}

// UpdateUser changes the mutable fields of a tenant user
func (h *AdminUserHandler) UpdateUser(c fiber.Ctx) error {
	claims, ok := middleware.GetTokenClaimsFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHORIZED", nil)
	}

	userUUID := c.Params("uuid")
	if userUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "User UUID is required", "INVALID_REQUEST", nil)
	}

	var req dto.AdminUpdateUserRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrorList(err))
	}

	result, err := h.adminFlow.UpdateUser(createRequestContext(c, "/api/v1/admin/users"), claims.TenantID, userUUID, &req, clientMetadata(c))
	if err != nil {
		if businessflow.IsUserNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "User not found", "USER_NOT_FOUND", nil)
		}
		if businessflow.IsInvalidRole(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid role", "INVALID_ROLE", nil)
		}

		log.Println("User update failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "User update failed", "USER_UPDATE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "User updated", result)
}

// DeleteUser soft-deletes a tenant user
func (h *AdminUserHandler) DeleteUser(c fiber.Ctx) error {
	claims, ok := middleware.GetTokenClaimsFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHORIZED", nil)
	}

	userUUID := c.Params("uuid")
	if userUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "User UUID is required", "INVALID_REQUEST", nil)
	}

	err := h.adminFlow.DeleteUser(createRequestContext(c, "/api/v1/admin/users"), claims.TenantID, userUUID, clientMetadata(c))
	if err != nil {
		if businessflow.IsUserNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "User not found", "USER_NOT_FOUND", nil)
		}

		log.Println("User deletion failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "User deletion failed", "USER_DELETION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "User deleted", nil)
}

// ExportUsers streams the tenant user list as an Excel workbook
func (h *AdminUserHandler) ExportUsers(c fiber.Ctx) error {
	claims, ok := middleware.GetTokenClaimsFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHORIZED", nil)
	}

	filename, content, err := h.adminFlow.ExportUsers(createRequestContext(c, "/api/v1/admin/users/export"), claims.TenantID, clientMetadata(c))
	if err != nil {
		log.Println("User export failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "User export failed", "USER_EXPORT_FAILED", nil)
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(content)
}

// Metrics summarizes tenant activity for the admin dashboard
func (h *AdminUserHandler) Metrics(c fiber.Ctx) error {
	claims, ok := middleware.GetTokenClaimsFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHORIZED", nil)
	}

	result, err := h.adminFlow.Metrics(createRequestContext(c, "/api/v1/admin/metrics"), claims.TenantID)
	if err != nil {
		log.Println("Metrics computation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to compute metrics", "METRICS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Metrics", result)
}
