// Package dto contains Data Transfer Objects for API request and response structures
package dto

import "encoding/json"

// Task statuses as they appear on the wire. A running task is reported as
// pending; clients only distinguish pending from the two terminal states.
const (
	TaskStatusPending   = "pending"
	TaskStatusCompleted = "completed"
	TaskStatusError     = "error"
)

// SubmitQueryRequest asks the engine to answer a natural-language question.
// ThreadID is optional; when absent a new conversation is started. ParentID
// links a follow-up question to the message it refines.
type SubmitQueryRequest struct {
	TenantID string  `json:"tenant_id" validate:"required,max=64"`
	UserID   uint    `json:"user_id" validate:"required"`
	Question string  `json:"question" validate:"required,max=4000"`
	ThreadID *string `json:"thread_id,omitempty" validate:"omitempty,uuid"`
	ParentID *string `json:"parent_id,omitempty" validate:"omitempty,uuid"`
}

// SubmitQueryResponse acknowledges an accepted question
type SubmitQueryResponse struct {
	TaskID   string `json:"task_id"`
	ThreadID string `json:"thread_id"`
}

// TaskResultResponse is the polled result of an asynchronous query task.
// Status is one of pending, completed, or error; collections are always
// present, never null.
type TaskResultResponse struct {
	TaskID      string          `json:"task_id"`
	Status      string          `json:"status"`
	SQL         string          `json:"sql"`
	Results     json.RawMessage `json:"results"`
	Columns     []string        `json:"columns"`
	RowCount    int             `json:"row_count"`
	Success     bool            `json:"success"`
	Error       *string         `json:"error"`
	Suggestions []string        `json:"suggestions"`
}
