package businessflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/google/uuid"
	"github.com/queryloom/queryloom/app/dto"
	"github.com/queryloom/queryloom/models"
	"github.com/queryloom/queryloom/repository"
	"github.com/queryloom/queryloom/utils"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// AdminUserFlow provides use cases for tenant administration: user CRUD,
// an Excel export of the user list, and dashboard metrics.
type AdminUserFlow interface {
	ListUsers(ctx context.Context, tenantID string, req *dto.AdminListUsersRequest) (*dto.AdminUserListResponse, error)
	CreateUser(ctx context.Context, req *dto.AdminCreateUserRequest, metadata *ClientMetadata) (*dto.UserDTO, error)
	UpdateUser(ctx context.Context, tenantID string, userUUID string, req *dto.AdminUpdateUserRequest, metadata *ClientMetadata) (*dto.UserDTO, error)
	DeleteUser(ctx context.Context, tenantID string, userUUID string, metadata *ClientMetadata) error
	ExportUsers(ctx context.Context, tenantID string, metadata *ClientMetadata) (string, []byte, error)
	Metrics(ctx context.Context, tenantID string) (*dto.AdminMetricsResponse, error)
}

// AdminUserFlowImpl implements the admin user flow
type AdminUserFlowImpl struct {
	userRepo    repository.UserRepository
	threadRepo  repository.ThreadRepository
	messageRepo repository.MessageRepository
	taskRepo    repository.QueryTaskRepository
	auditRepo   repository.AuditLogRepository
	db          *gorm.DB
}

// NewAdminUserFlow creates a new admin user flow instance
func NewAdminUserFlow(
	userRepo repository.UserRepository,
	threadRepo repository.ThreadRepository,
	messageRepo repository.MessageRepository,
	taskRepo repository.QueryTaskRepository,
	auditRepo repository.AuditLogRepository,
	db *gorm.DB,
) AdminUserFlow {
	return &AdminUserFlowImpl{
		userRepo:    userRepo,
		threadRepo:  threadRepo,
		messageRepo: messageRepo,
		taskRepo:    taskRepo,
		auditRepo:   auditRepo,
		db:          db,
	}
}

// ListUsers returns a filtered, paginated page of the tenant's users
func (f *AdminUserFlowImpl) ListUsers(ctx context.Context, tenantID string, req *dto.AdminListUsersRequest) (*dto.AdminUserListResponse, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	filter := models.UserFilter{
		TenantID: &tenantID,
		Role:     req.Role,
		Status:   req.Status,
		Search:   req.Search,
	}

	total, err := f.userRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("USER_LIST_FAILED", "Failed to list users", err)
	}

	users, err := f.userRepo.ListByTenant(ctx, tenantID, filter, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("USER_LIST_FAILED", "Failed to list users", err)
	}

	response := &dto.AdminUserListResponse{
		Users: make([]dto.UserDTO, 0, len(users)),
		Pagination: dto.PaginationDTO{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: total,
			TotalPages: int((total + int64(pageSize) - 1) / int64(pageSize)),
		},
	}
	for _, user := range users {
		response.Users = append(response.Users, ToUserDTO(*user))
	}

	return response, nil
}

// CreateUser provisions an account directly. The phone number is stored
// unverified since no OTP round-trip took place.
func (f *AdminUserFlowImpl) CreateUser(ctx context.Context, req *dto.AdminCreateUserRequest, metadata *ClientMetadata) (*dto.UserDTO, error) {
	target, _, err := NormalizePhonePayload(req.PhoneNumber)
	if err != nil {
		return nil, NewBusinessError("USER_CREATION_FAILED", "User creation failed", err)
	}

	if !models.IsValidUserRole(req.Role) {
		return nil, NewBusinessError("USER_CREATION_FAILED", "User creation failed", ErrInvalidRole)
	}

	existing, err := f.userRepo.ByEmail(ctx, strings.ToLower(req.Email))
	if err != nil {
		return nil, NewBusinessError("USER_CREATION_FAILED", "User creation failed", err)
	}
	if existing != nil {
		return nil, NewBusinessError("USER_CREATION_FAILED", "User creation failed", ErrEmailAlreadyExists)
	}

	existing, err = f.userRepo.ByPhoneNumber(ctx, target)
	if err != nil {
		return nil, NewBusinessError("USER_CREATION_FAILED", "User creation failed", err)
	}
	if existing != nil {
		return nil, NewBusinessError("USER_CREATION_FAILED", "User creation failed", ErrPhoneAlreadyExists)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, NewBusinessError("USER_CREATION_FAILED", "User creation failed", err)
	}

	user := &models.User{
		UUID:            uuid.New(),
		TenantID:        req.TenantID,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           strings.ToLower(req.Email),
		PhoneNumber:     target,
		PasswordHash:    string(hashedPassword),
		Role:            req.Role,
		Status:          models.UserStatusActive,
		IsPhoneVerified: utils.ToPtr(false),
	}

	if err := f.userRepo.Save(ctx, user); err != nil {
		errMsg := fmt.Sprintf("User creation failed: %s", err.Error())
		_ = f.createAuditLog(ctx, nil, req.TenantID, models.AuditActionUserCreated, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("USER_CREATION_FAILED", "User creation failed", err)
	}

	msg := fmt.Sprintf("User created: %d", user.ID)
	_ = f.createAuditLog(ctx, &user.ID, req.TenantID, models.AuditActionUserCreated, msg, true, nil, metadata)

	result := ToUserDTO(*user)
	return &result, nil
}

// UpdateUser changes the mutable fields of a tenant user
func (f *AdminUserFlowImpl) UpdateUser(ctx context.Context, tenantID string, userUUID string, req *dto.AdminUpdateUserRequest, metadata *ClientMetadata) (*dto.UserDTO, error) {
	user, err := f.loadTenantUser(ctx, tenantID, userUUID)
	if err != nil {
		return nil, err
	}

	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Role != nil {
		if !models.IsValidUserRole(*req.Role) {
			return nil, NewBusinessError("USER_UPDATE_FAILED", "User update failed", ErrInvalidRole)
		}
		user.Role = *req.Role
	}
	if req.Status != nil {
		user.Status = *req.Status
	}

	if err := f.userRepo.Update(ctx, user); err != nil {
		errMsg := fmt.Sprintf("User update failed: %s", err.Error())
		_ = f.createAuditLog(ctx, &user.ID, tenantID, models.AuditActionUserUpdated, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("USER_UPDATE_FAILED", "User update failed", err)
	}

	msg := fmt.Sprintf("User updated: %d", user.ID)
	_ = f.createAuditLog(ctx, &user.ID, tenantID, models.AuditActionUserUpdated, msg, true, nil, metadata)

	result := ToUserDTO(*user)
	return &result, nil
}

// DeleteUser soft-deletes a tenant user
func (f *AdminUserFlowImpl) DeleteUser(ctx context.Context, tenantID string, userUUID string, metadata *ClientMetadata) error {
	user, err := f.loadTenantUser(ctx, tenantID, userUUID)
	if err != nil {
		return err
	}

	if err := f.userRepo.SoftDelete(ctx, user.ID); err != nil {
		errMsg := fmt.Sprintf("User deletion failed: %s", err.Error())
		_ = f.createAuditLog(ctx, &user.ID, tenantID, models.AuditActionUserDeleted, errMsg, false, &errMsg, metadata)

		return NewBusinessError("USER_DELETION_FAILED", "User deletion failed", err)
	}

	msg := fmt.Sprintf("User deleted: %d", user.ID)
	_ = f.createAuditLog(ctx, &user.ID, tenantID, models.AuditActionUserDeleted, msg, true, nil, metadata)

	return nil
}

// ExportUsers builds an Excel workbook of the tenant's users and returns the
// suggested file name together with the serialized bytes.
func (f *AdminUserFlowImpl) ExportUsers(ctx context.Context, tenantID string, metadata *ClientMetadata) (string, []byte, error) {
	users, err := f.userRepo.ListByTenant(ctx, tenantID, models.UserFilter{TenantID: &tenantID}, 0, 0)
	if err != nil {
		return "", nil, NewBusinessError("USER_EXPORT_FAILED", "User export failed", err)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	sheet := "Users"
	xl.SetSheetName(xl.GetSheetName(0), sheet)

	header := []string{"id", "uuid", "first_name", "last_name", "email", "phone_number", "role", "status", "phone_verified", "created_at", "last_login_at"}
	_ = xl.SetSheetRow(sheet, "A1", &header)

	for ri, user := range users {
		lastLogin := ""
		if user.LastLoginAt != nil {
			lastLogin = user.LastLoginAt.UTC().Format(time.RFC3339)
		}
		record := []string{
			strconv.FormatUint(uint64(user.ID), 10),
			user.UUID.String(),
			user.FirstName,
			user.LastName,
			user.Email,
			user.PhoneNumber,
			user.Role,
			user.Status,
			strconv.FormatBool(utils.IsTrue(user.IsPhoneVerified)),
			user.CreatedAt.UTC().Format(time.RFC3339),
			lastLogin,
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, ri+2)
		_ = xl.SetSheetRow(sheet, cellRef, &record)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("USER_EXPORT_FAILED", "User export failed", err)
	}

	msg := fmt.Sprintf("Users exported: %d rows", len(users))
	_ = f.createAuditLog(ctx, nil, tenantID, models.AuditActionUsersExported, msg, true, nil, metadata)

	filename := fmt.Sprintf("users_%s_%s.xlsx", tenantID, utils.UTCNow().Format("20060102_150405"))
	return filename, buf.Bytes(), nil
}

// Metrics summarizes tenant activity for the admin dashboard
func (f *AdminUserFlowImpl) Metrics(ctx context.Context, tenantID string) (*dto.AdminMetricsResponse, error) {
	usersByRole, err := f.userRepo.CountByRole(ctx, tenantID)
	if err != nil {
		return nil, NewBusinessError("METRICS_FAILED", "Failed to compute metrics", err)
	}

	tasksByStatus, err := f.taskRepo.CountByStatus(ctx, tenantID)
	if err != nil {
		return nil, NewBusinessError("METRICS_FAILED", "Failed to compute metrics", err)
	}

	totalThreads, err := f.threadRepo.Count(ctx, models.ThreadFilter{TenantID: &tenantID})
	if err != nil {
		return nil, NewBusinessError("METRICS_FAILED", "Failed to compute metrics", err)
	}

	totalMessages, err := f.messageRepo.CountByTenant(ctx, tenantID)
	if err != nil {
		return nil, NewBusinessError("METRICS_FAILED", "Failed to compute metrics", err)
	}

	return &dto.AdminMetricsResponse{
		UsersByRole:   usersByRole,
		TasksByStatus: tasksByStatus,
		TotalThreads:  totalThreads,
		TotalMessages: totalMessages,
	}, nil
}

// Private helper methods

func (f *AdminUserFlowImpl) loadTenantUser(ctx context.Context, tenantID string, userUUID string) (*models.User, error) {
	parsed, err := uuid.Parse(userUUID)
	if err != nil {
		return nil, NewBusinessError("USER_NOT_FOUND", "User not found", ErrUserNotFound)
	}

	user, err := f.userRepo.ByUUID(ctx, parsed)
	if err != nil {
		return nil, NewBusinessError("USER_LOOKUP_FAILED", "User lookup failed", err)
	}
	if user == nil || user.TenantID != tenantID {
		return nil, NewBusinessError("USER_NOT_FOUND", "User not found", ErrUserNotFound)
	}

	return user, nil
}

func (f *AdminUserFlowImpl) createAuditLog(ctx context.Context, userID *uint, tenantID, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) error {
	audit := &models.AuditLog{
		UserID:       userID,
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

	return f.auditRepo.Save(ctx, audit)
}
