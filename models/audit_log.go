// Package models contains domain entities and business models for the query platform
package models

import (
	"encoding/json"
	"time"
)

type AuditLog struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	UserID       *uint           `gorm:"index:idx_audit_user_id" json:"user_id,omitempty"`
	User         *User           `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`
	TenantID     *string         `gorm:"size:64;index:idx_audit_tenant_id" json:"tenant_id,omitempty"`
	Action       string          `gorm:"type:audit_action_enum;not null;index:idx_audit_action" json:"action"`
	Description  *string         `gorm:"type:text" json:"description,omitempty"`
	IPAddress    *string         `gorm:"type:inet" json:"ip_address,omitempty"`
	UserAgent    *string         `gorm:"type:text" json:"user_agent,omitempty"`
	RequestID    *string         `gorm:"size:255;index:idx_audit_request_id" json:"request_id,omitempty"`
	Metadata     json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"`
	Success      *bool           `gorm:"default:true;index:idx_audit_success" json:"success"`
	ErrorMessage *string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time       `gorm:"default:CURRENT_TIMESTAMP;index:idx_audit_created_at" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}

// Audit action constants
const (
	AuditActionOTPSent          = "otp_sent"
	AuditActionOTPVerified      = "otp_verified"
	AuditActionOTPFailed        = "otp_failed"
	AuditActionRegistration     = "registration_completed"
	AuditActionLoginSuccess     = "login_success"
	AuditActionLoginFailed      = "login_failed"
	AuditActionQuerySubmitted   = "query_submitted"
	AuditActionQueryCompleted   = "query_completed"
	AuditActionQueryFailed      = "query_failed"
	AuditActionThreadDeleted    = "thread_deleted"
	AuditActionThreadRenamed    = "thread_renamed"
	AuditActionUserCreated      = "user_created"
	AuditActionUserUpdated      = "user_updated"
	AuditActionUserDeleted      = "user_deleted"
	AuditActionUsersExported    = "users_exported"
	AuditActionPasswordChanged  = "password_changed"
	AuditActionSessionCreated   = "session_created"
	AuditActionCaptchaRequired  = "captcha_required"
	AuditActionCaptchaFailed    = "captcha_failed"
)

// AuditLogFilter represents filter criteria for audit log queries
type AuditLogFilter struct {
	ID            *uint
	UserID        *uint
	TenantID      *string
	Action        *string
	Success       *bool
	RequestID     *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (a *AuditLog) IsFailed() bool {
	return a.Success != nil && !*a.Success
}

func (a *AuditLog) IsSecurityEvent() bool {
	securityActions := map[string]bool{
		AuditActionLoginSuccess:    true,
		AuditActionLoginFailed:     true,
		AuditActionOTPFailed:       true,
		AuditActionPasswordChanged: true,
		AuditActionCaptchaFailed:   true,
		AuditActionUserDeleted:     true,
	}
	return securityActions[a.Action]
}
