// Package models contains domain entities and business models for the query platform
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	UUID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_users_uuid" json:"uuid"`
	TenantID string    `gorm:"size:64;not null;index:idx_users_tenant_id" json:"tenant_id"`

	FirstName   string `gorm:"size:255;not null" json:"first_name"`
	LastName    string `gorm:"size:255;not null" json:"last_name"`
	Email       string `gorm:"size:255;not null;uniqueIndex:uk_users_email" json:"email"`
	PhoneNumber string `gorm:"size:20;not null;uniqueIndex:uk_users_phone_number" json:"phone_number"`

	PasswordHash string `gorm:"size:255;not null" json:"-"` // Never serialize password hash

	Role   string `gorm:"type:user_role_enum;not null;default:user;index:idx_users_role" json:"role"`
	Status string `gorm:"type:user_status_enum;not null;default:active;index:idx_users_status" json:"status"`

	IsPhoneVerified *bool `gorm:"default:false" json:"is_phone_verified"`

	CreatedAt       time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_users_created_at" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
	PhoneVerifiedAt *time.Time     `json:"phone_verified_at,omitempty"`
	LastLoginAt     *time.Time     `gorm:"index:idx_users_last_login_at" json:"last_login_at,omitempty"`
	DeletedAt       gorm.DeletedAt `gorm:"index:idx_users_deleted_at" json:"-"`

	// Relations
	OTPVerifications []OTPVerification `gorm:"foreignKey:UserID" json:"-"`
	Sessions         []Session         `gorm:"foreignKey:UserID" json:"-"`
	AuditLogs        []AuditLog        `gorm:"foreignKey:UserID" json:"-"`
	Threads          []Thread          `gorm:"foreignKey:UserID" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// User role constants
const (
	UserRoleAdmin  = "admin"
	UserRoleUser   = "user"
	UserRoleViewer = "viewer"
)

// User status constants
const (
	UserStatusActive    = "active"
	UserStatusSuspended = "suspended"
	UserStatusPending   = "pending"
)

// UserFilter represents filter criteria for user queries
type UserFilter struct {
	ID              *uint
	UUID            *uuid.UUID
	TenantID        *string
	Email           *string
	PhoneNumber     *string
	Role            *string
	Status          *string
	IsPhoneVerified *bool
	CreatedAfter    *time.Time
	CreatedBefore   *time.Time
	Search          *string // Matches first name, last name, or email
}

// IsValidUserRole reports whether role is one of the known role values
func IsValidUserRole(role string) bool {
	return role == UserRoleAdmin || role == UserRoleUser || role == UserRoleViewer
}

func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

func (u *User) IsViewer() bool {
	return u.Role == UserRoleViewer
}

func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// CanSubmitQueries reports whether this user may create query tasks.
// Viewers get read access to history but cannot ask new questions.
func (u *User) CanSubmitQueries() bool {
	return u.IsActive() && u.Role != UserRoleViewer
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}
