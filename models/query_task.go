// Package models contains domain entities and business models for the query platform
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// QueryTask is one asynchronous natural-language question travelling through
// the engine: submitted, claimed by a worker, translated to SQL, executed,
// and finally marked completed or error. Clients poll it by TaskID.
type QueryTask struct {
	ID       uint       `gorm:"primaryKey" json:"id"`
	TaskID   uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_query_tasks_task_id" json:"task_id"`
	TenantID string     `gorm:"size:64;not null;index:idx_query_tasks_tenant_id" json:"tenant_id"`
	UserID   uint       `gorm:"not null;index:idx_query_tasks_user_id" json:"user_id"`
	User     User       `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`
	ThreadID uuid.UUID  `gorm:"type:uuid;not null;index:idx_query_tasks_thread_id" json:"thread_id"`
	ParentID *uuid.UUID `gorm:"type:uuid" json:"parent_id,omitempty"`

	Question string `gorm:"type:text;not null" json:"question"`
	Status   string `gorm:"type:query_task_status_enum;not null;default:pending;index:idx_query_tasks_status" json:"status"`

	SQL         string          `gorm:"column:sql;type:text" json:"sql"`
	Columns     pq.StringArray  `gorm:"type:text[];not null;default:'{}'" json:"columns"`
	Rows        json.RawMessage `gorm:"type:jsonb" json:"results"`
	RowCount    int             `gorm:"default:0" json:"row_count"`
	Success     *bool           `gorm:"default:false" json:"success"`
	Error       *string         `gorm:"type:text" json:"error,omitempty"`
	Suggestions pq.StringArray  `gorm:"type:text[];not null;default:'{}'" json:"suggestions"`

	CreatedAt  time.Time  `gorm:"default:CURRENT_TIMESTAMP;index:idx_query_tasks_created_at" json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func (QueryTask) TableName() string {
	return "query_tasks"
}

// Query task status constants
const (
	QueryTaskStatusPending   = "pending"
	QueryTaskStatusRunning   = "running"
	QueryTaskStatusCompleted = "completed"
	QueryTaskStatusError     = "error"
)

// QueryTaskFilter represents filter criteria for query task queries
type QueryTaskFilter struct {
	ID            *uint
	TaskID        *uuid.UUID
	TenantID      *string
	UserID        *uint
	ThreadID      *uuid.UUID
	Status        *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// IsTerminal reports whether the task has stopped moving. Polling clients
// see only pending, completed, or error; running maps to pending on the wire.
func (q *QueryTask) IsTerminal() bool {
	return q.Status == QueryTaskStatusCompleted || q.Status == QueryTaskStatusError
}

func (q *QueryTask) IsPending() bool {
	return q.Status == QueryTaskStatusPending || q.Status == QueryTaskStatusRunning
}
