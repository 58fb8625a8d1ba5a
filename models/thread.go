// Package models contains domain entities and business models for the query platform
package models

import (
	"time"

	"github.com/google/uuid"
)

// Thread is a single conversation between a user and the query engine.
type Thread struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	UUID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_threads_uuid" json:"uuid"`
	TenantID string    `gorm:"size:64;not null;index:idx_threads_tenant_id" json:"tenant_id"`
	UserID   uint      `gorm:"not null;index:idx_threads_user_id" json:"user_id"`
	User     User      `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`
	Title    string    `gorm:"size:255;not null" json:"title"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP;index:idx_threads_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP;index:idx_threads_updated_at" json:"updated_at"`

	Messages []Message `gorm:"foreignKey:ThreadID" json:"messages,omitempty"`
}

func (Thread) TableName() string {
	return "threads"
}

// ThreadFilter represents filter criteria for thread queries
type ThreadFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	TenantID      *string
	UserID        *uint
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (t *Thread) BelongsTo(tenantID string, userID uint) bool {
	return t.TenantID == tenantID && t.UserID == userID
}
