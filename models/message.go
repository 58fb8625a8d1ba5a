// Package models contains domain entities and business models for the query platform
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Message is one question inside a thread, plus the query result once the
// asynchronous task producing it reaches a terminal state.
type Message struct {
	ID       uint       `gorm:"primaryKey" json:"id"`
	UUID     uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_messages_uuid" json:"uuid"`
	ThreadID uint       `gorm:"not null;index:idx_messages_thread_id" json:"thread_id"`
	Thread   Thread     `gorm:"foreignKey:ThreadID;references:ID" json:"thread,omitempty"`
	ParentID *uuid.UUID `gorm:"type:uuid" json:"parent_id,omitempty"`

	Question string     `gorm:"type:text;not null" json:"question"`
	TaskID   *uuid.UUID `gorm:"type:uuid;index:idx_messages_task_id" json:"task_id,omitempty"`

	// Result payload, populated when the task goes terminal.
	HasResult   *bool           `gorm:"default:false;index:idx_messages_has_result" json:"has_result"`
	SQL         string          `gorm:"column:sql;type:text" json:"sql"`
	Columns     pq.StringArray  `gorm:"type:text[];not null;default:'{}'" json:"columns"`
	Rows        json.RawMessage `gorm:"type:jsonb" json:"results"`
	RowCount    int             `gorm:"default:0" json:"row_count"`
	Success     *bool           `gorm:"default:false" json:"success"`
	Error       *string         `gorm:"type:text" json:"error,omitempty"`
	Suggestions pq.StringArray  `gorm:"type:text[];not null;default:'{}'" json:"suggestions"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP;index:idx_messages_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Message) TableName() string {
	return "messages"
}

// MessageFilter represents filter criteria for message queries
type MessageFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	ThreadID      *uint
	TaskID        *uuid.UUID
	HasResult     *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (m *Message) ResultAttached() bool {
	return m.HasResult != nil && *m.HasResult
}
