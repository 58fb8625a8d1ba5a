// Package services provides external service integrations and technical concerns like notifications and tokens
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/queryloom/queryloom/config"
	"github.com/queryloom/queryloom/utils"
)

// SMSService handles SMS sending operations
type SMSService interface {
	SendOTP(ctx context.Context, recipient, senderName, message string) error
}

// SMSServiceImpl implements SMSService
type SMSServiceImpl struct {
	config *config.SMSConfig
	client *http.Client
}

// SMSRequest represents the request payload for the SMS gateway
type SMSRequest struct {
	Sender         string `json:"sender"`         // Display sender name
	Recipient      string `json:"recipient"`      // E.164 without the plus
	Body           string `json:"body"`           // Message content
	RetryCount     int    `json:"retryCount"`     // Number of retries
	Type           int    `json:"type"`           // Always 1
	ValidityPeriod int    `json:"validityPeriod"` // Validity in seconds
}

// SMSResponse represents an individual message result from the SMS gateway
type SMSResponse struct {
	MessageID  int64  `json:"messageId"`
	Recipient  string `json:"recipient"`
	Status     string `json:"status"`
	StatusCode int    `json:"statusCode"`
}

// NewSMSService creates a new SMS service instance
func NewSMSService(cfg *config.SMSConfig) SMSService {
	return &SMSServiceImpl{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// SendOTP sends an OTP message through the configured gateway
func (s *SMSServiceImpl) SendOTP(ctx context.Context, recipient, senderName, message string) error {
	if senderName == "" {
		senderName = s.config.DefaultSender
	}

	request := SMSRequest{
		Sender:         senderName,
		Recipient:      recipient,
		Body:           message,
		RetryCount:     s.config.RetryCount,
		Type:           1,
		ValidityPeriod: s.config.ValidityPeriod,
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal SMS request: %w", err)
	}

	url := fmt.Sprintf("https://%s/api/v3.0.1/send", s.config.ProviderDomain)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBody))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send SMS request: %w", err)
	}
	defer resp.Body.Close()

	var result SMSResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode SMS response: %w", err)
	}
	if result.StatusCode != 200 || result.Status != "ACCEPTED" {
		return fmt.Errorf("SMS delivery failed for %s: %s (%d)", result.Recipient, result.Status, result.StatusCode)
	}
	return nil
}

// MockSMSService implements SMSService for testing
type MockSMSService struct {
	SentMessages []MockSMSMessage
	FailNext     error // When set, the next send returns this error once
}

// MockSMSMessage represents a mock SMS message
type MockSMSMessage struct {
	Recipient  string
	SenderName string
	Message    string
	SentAt     time.Time
}

// NewMockSMSService creates a new mock SMS service
func NewMockSMSService() *MockSMSService {
	return &MockSMSService{
		SentMessages: make([]MockSMSMessage, 0),
	}
}

// SendOTP records a mock OTP message
func (m *MockSMSService) SendOTP(ctx context.Context, recipient, senderName, message string) error {
	if m.FailNext != nil {
		err := m.FailNext
		m.FailNext = nil
		return err
	}

	m.SentMessages = append(m.SentMessages, MockSMSMessage{
		Recipient:  recipient,
		SenderName: senderName,
		Message:    message,
		SentAt:     utils.UTCNow(),
	})
	return nil
}

// LastMessage returns the most recently sent mock message, or nil
func (m *MockSMSService) LastMessage() *MockSMSMessage {
	if len(m.SentMessages) == 0 {
		return nil
	}
	return &m.SentMessages[len(m.SentMessages)-1]
}

// ClearSentMessages clears the sent messages list
func (m *MockSMSService) ClearSentMessages() {
	m.SentMessages = make([]MockSMSMessage, 0)
}
