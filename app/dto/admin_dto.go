// Package dto contains Data Transfer Objects for API request and response structures
package dto

// AdminListUsersRequest filters and paginates the tenant user list
type AdminListUsersRequest struct {
	Page     int     `query:"page" validate:"omitempty,min=1"`
	PageSize int     `query:"page_size" validate:"omitempty,min=1,max=100"`
	Role     *string `query:"role" validate:"omitempty,oneof=admin user viewer"`
	Status   *string `query:"status" validate:"omitempty,oneof=active suspended pending"`
	Search   *string `query:"search" validate:"omitempty,max=255"`
}

// AdminCreateUserRequest provisions a user directly, bypassing OTP signup
type AdminCreateUserRequest struct {
	TenantID    string `json:"tenant_id" validate:"required,max=64"`
	FirstName   string `json:"first_name" validate:"required,max=255,alpha_space"`
	LastName    string `json:"last_name" validate:"required,max=255,alpha_space"`
	Email       string `json:"email" validate:"required,email,max=255"`
	PhoneNumber string `json:"phone_number" validate:"required,phone_payload"`
	Password    string `json:"password" validate:"required,min=8,password_strength"`
	Role        string `json:"role" validate:"required,oneof=admin user viewer"`
}

// AdminUpdateUserRequest updates mutable fields of a user
type AdminUpdateUserRequest struct {
	FirstName *string `json:"first_name,omitempty" validate:"omitempty,max=255,alpha_space"`
	LastName  *string `json:"last_name,omitempty" validate:"omitempty,max=255,alpha_space"`
	Role      *string `json:"role,omitempty" validate:"omitempty,oneof=admin user viewer"`
	Status    *string `json:"status,omitempty" validate:"omitempty,oneof=active suspended pending"`
}

// PaginationDTO carries paging metadata on list responses
type PaginationDTO struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// AdminUserListResponse is the paginated tenant user list
type AdminUserListResponse struct {
	Users      []UserDTO     `json:"users"`
	Pagination PaginationDTO `json:"pagination"`
}

// AdminMetricsResponse summarizes tenant activity for the admin dashboard
type AdminMetricsResponse struct {
	UsersByRole   map[string]int64 `json:"users_by_role"`
	TasksByStatus map[string]int64 `json:"tasks_by_status"`
	TotalThreads  int64            `json:"total_threads"`
	TotalMessages int64            `json:"total_messages"`
}
