// Package dto contains Data Transfer Objects for API request and response structures
package dto

import "encoding/json"

// ChatHistoryRequest asks for every message of a user's threads in a tenant
type ChatHistoryRequest struct {
	UserID   uint   `json:"user_id" validate:"required"`
	TenantID string `json:"tenant_id" validate:"required,max=64"`
}

// ChatHistoryResponse returns the flat message list, newest first.
// Clients group the messages into threads themselves.
type ChatHistoryResponse struct {
	Messages []ChatMessageDTO `json:"messages"`
}

// ChatMessageDTO represents one question and, when settled, its result
type ChatMessageDTO struct {
	MessageID   string          `json:"message_id"`
	ThreadID    string          `json:"thread_id"`
	ParentID    *string         `json:"parent_id,omitempty"`
	Question    string          `json:"question"`
	HasResult   bool            `json:"has_result"`
	SQL         string          `json:"sql"`
	Results     json.RawMessage `json:"results"`
	Columns     []string        `json:"columns"`
	RowCount    int             `json:"row_count"`
	Success     bool            `json:"success"`
	Error       *string         `json:"error"`
	Suggestions []string        `json:"suggestions"`
	CreatedAt   string          `json:"created_at"`
}

// DeleteThreadRequest removes a whole conversation
type DeleteThreadRequest struct {
	ThreadID string `json:"thread_id" validate:"required,uuid"`
	TenantID string `json:"tenant_id" validate:"required,max=64"`
}

// DeleteThreadResponse confirms the deletion
type DeleteThreadResponse struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id"`
}

// RenameThreadRequest changes a conversation's title
type RenameThreadRequest struct {
	ThreadID string `json:"thread_id" validate:"required,uuid"`
	TenantID string `json:"tenant_id" validate:"required,max=64"`
	Title    string `json:"title" validate:"required,max=255"`
}

// ThreadDTO represents a conversation for API responses
type ThreadDTO struct {
	ThreadID  string `json:"thread_id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}
