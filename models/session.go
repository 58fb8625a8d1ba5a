// Package models contains domain entities and business models for the query platform
package models

import (
	"time"

	"github.com/google/uuid"
)

// Session records an issued access token. Authentication itself is stateless
// JWT; the row exists for auditing and forced revocation.
type Session struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	CorrelationID  uuid.UUID  `gorm:"type:uuid;not null;index:idx_sessions_correlation_id" json:"correlation_id"`
	UserID         uint       `gorm:"not null;index:idx_sessions_user_id" json:"user_id"`
	User           User       `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`
	AccessToken    string     `gorm:"size:512;not null;index:idx_sessions_access_token" json:"-"`
	CreatedAt      time.Time  `gorm:"default:CURRENT_TIMESTAMP;index:idx_sessions_created_at" json:"created_at"`
	ExpiresAt      time.Time  `gorm:"not null;index:idx_sessions_expires_at" json:"expires_at"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	RevokedAt      *time.Time `json:"revoked_at,omitempty"`
	IsActive       *bool      `gorm:"default:true;index:idx_sessions_is_active" json:"is_active"`
	IPAddress      *string    `gorm:"type:inet" json:"ip_address,omitempty"`
	UserAgent      *string    `gorm:"type:text" json:"user_agent,omitempty"`
}

func (Session) TableName() string {
	return "sessions"
}

// SessionFilter represents filter criteria for session queries
type SessionFilter struct {
	ID            *uint
	UserID        *uint
	IsActive      *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	ExpiresAfter  *time.Time
	ExpiresBefore *time.Time
}

func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

func (s *Session) IsValid() bool {
	return !s.IsExpired() && s.RevokedAt == nil && s.IsActive != nil && *s.IsActive
}
