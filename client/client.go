// Package client is the Go SDK for the QueryLoom API. It carries the
// product's interaction semantics: the registration state machine, the
// polling engine for asynchronous query tasks, and the conversation store.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/queryloom/queryloom/app/dto"
)

// APIClient is the remote surface the SDK components depend on. Tests
// substitute fakes; production code uses Client.
type APIClient interface {
	SendOTP(ctx context.Context, req *dto.SendOTPRequest) (*dto.SendOTPResponse, error)
	VerifyOTP(ctx context.Context, req *dto.VerifyOTPRequest) (*dto.VerifyOTPResponse, error)
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error)
	CaptchaChallenge(ctx context.Context) (*dto.CaptchaChallengeResponse, error)
	SubmitQuery(ctx context.Context, req *dto.SubmitQueryRequest) (*dto.SubmitQueryResponse, error)
	GetResult(ctx context.Context, taskID string) (*dto.TaskResultResponse, error)
	ChatHistory(ctx context.Context, req *dto.ChatHistoryRequest) (*dto.ChatHistoryResponse, error)
	DeleteThread(ctx context.Context, req *dto.DeleteThreadRequest) (*dto.DeleteThreadResponse, error)
	RenameThread(ctx context.Context, req *dto.RenameThreadRequest) (*dto.ThreadDTO, error)
}

// APIError is a non-success response from the server, carrying the error
// code from the response envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Client is the HTTP implementation of APIClient
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sets the initial bearer token
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a Client for the given API base URL, e.g.
// "https://api.queryloom.io/api/v1".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken stores the bearer token attached to authenticated requests
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// ClearToken removes the stored bearer token. This is the sign-out
// contract; the server keeps no session to tear down.
func (c *Client) ClearToken() {
	c.SetToken("")
}

// Token returns the stored bearer token
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// envelope mirrors dto.APIResponse with the payload left raw so callers
// can decode into their own types.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Success {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: env.Message}
		var detail dto.ErrorDetail
		if len(env.Error) > 0 && json.Unmarshal(env.Error, &detail) == nil {
			apiErr.Code = detail.Code
		}
		return apiErr
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// SendOTP requests a registration OTP for a phone number
func (c *Client) SendOTP(ctx context.Context, req *dto.SendOTPRequest) (*dto.SendOTPResponse, error) {
	var out dto.SendOTPResponse
	if err := c.do(ctx, http.MethodPost, "/auth/send-otp", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyOTP checks a registration OTP code
func (c *Client) VerifyOTP(ctx context.Context, req *dto.VerifyOTPRequest) (*dto.VerifyOTPResponse, error) {
	var out dto.VerifyOTPResponse
	if err := c.do(ctx, http.MethodPost, "/auth/verify-otp", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register completes account creation after OTP verification
func (c *Client) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error) {
	var out dto.RegisterResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login authenticates with email and password and stores the returned
// access token on the client.
func (c *Client) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	var out dto.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", req, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.AccessToken)
	return &out, nil
}

// CaptchaChallenge fetches a rotation captcha challenge
func (c *Client) CaptchaChallenge(ctx context.Context) (*dto.CaptchaChallengeResponse, error) {
	var out dto.CaptchaChallengeResponse
	if err := c.do(ctx, http.MethodGet, "/auth/captcha", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitQuery submits a natural language question for asynchronous execution
func (c *Client) SubmitQuery(ctx context.Context, req *dto.SubmitQueryRequest) (*dto.SubmitQueryResponse, error) {
	var out dto.SubmitQueryResponse
	if err := c.do(ctx, http.MethodPost, "/query", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetResult polls the status of a submitted query task
func (c *Client) GetResult(ctx context.Context, taskID string) (*dto.TaskResultResponse, error) {
	var out dto.TaskResultResponse
	if err := c.do(ctx, http.MethodGet, "/result/"+taskID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChatHistory fetches the flat message history for a user
func (c *Client) ChatHistory(ctx context.Context, req *dto.ChatHistoryRequest) (*dto.ChatHistoryResponse, error) {
	var out dto.ChatHistoryResponse
	if err := c.do(ctx, http.MethodPost, "/chat-history", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteThread removes a conversation and its messages
func (c *Client) DeleteThread(ctx context.Context, req *dto.DeleteThreadRequest) (*dto.DeleteThreadResponse, error) {
	var out dto.DeleteThreadResponse
	if err := c.do(ctx, http.MethodPost, "/delete-thread", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RenameThread changes a conversation's title
func (c *Client) RenameThread(ctx context.Context, req *dto.RenameThreadRequest) (*dto.ThreadDTO, error) {
	var out dto.ThreadDTO
	if err := c.do(ctx, http.MethodPost, "/rename-thread", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
