// Package businessflow contains the business logic for the application.
package businessflow

import (
	"time"

	"github.com/queryloom/queryloom/app/dto"
	"github.com/queryloom/queryloom/models"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds all client-related information for audit logging and session tracking
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	RequestID  string            `json:"request_id,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Additional: make(map[string]string),
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// AddAdditional adds additional custom information to the metadata
func (cm *ClientMetadata) AddAdditional(key, value string) {
	if cm.Additional == nil {
		cm.Additional = make(map[string]string)
	}
	cm.Additional[key] = value
}

// ToUserDTO converts a user model to UserDTO for API responses
func ToUserDTO(user models.User) dto.UserDTO {
	return dto.UserDTO{
		ID:              user.ID,
		UUID:            user.UUID.String(),
		TenantID:        user.TenantID,
		FirstName:       user.FirstName,
		LastName:        user.LastName,
		Email:           user.Email,
		PhoneNumber:     user.PhoneNumber,
		Role:            user.Role,
		Status:          user.Status,
		IsPhoneVerified: user.IsPhoneVerified,
		CreatedAt:       user.CreatedAt.Format(time.RFC3339),
		LastLoginAt:     formatTimePtr(user.LastLoginAt),
	}
}

// ToTaskResultDTO converts a query task to the wire shape polled by clients.
// Running tasks are reported as pending; absent result fields are normalized
// to their empty values so clients never see null collections.
func ToTaskResultDTO(task models.QueryTask) dto.TaskResultResponse {
	status := task.Status
	if status == models.QueryTaskStatusRunning {
		status = models.QueryTaskStatusPending
	}

	res := dto.TaskResultResponse{
		TaskID:      task.TaskID.String(),
		Status:      status,
		SQL:         task.SQL,
		Columns:     []string(task.Columns),
		RowCount:    task.RowCount,
		Success:     task.Success != nil && *task.Success,
		Error:       task.Error,
		Suggestions: []string(task.Suggestions),
	}

	if res.Columns == nil {
		res.Columns = []string{}
	}
	if res.Suggestions == nil {
		res.Suggestions = []string{}
	}
	if len(task.Rows) > 0 {
		res.Results = task.Rows
	} else {
		res.Results = []byte("[]")
	}

	return res
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
