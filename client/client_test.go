package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/queryloom/queryloom/app/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI implements APIClient with overridable function fields. Calls
// without an override fail the test wiring by returning zero values.
type fakeAPI struct {
	sendOTPFn      func(ctx context.Context, req *dto.SendOTPRequest) (*dto.SendOTPResponse, error)
	verifyOTPFn    func(ctx context.Context, req *dto.VerifyOTPRequest) (*dto.VerifyOTPResponse, error)
	registerFn     func(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error)
	loginFn        func(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error)
	submitFn       func(ctx context.Context, req *dto.SubmitQueryRequest) (*dto.SubmitQueryResponse, error)
	getResultFn    func(ctx context.Context, taskID string) (*dto.TaskResultResponse, error)
	chatHistoryFn  func(ctx context.Context, req *dto.ChatHistoryRequest) (*dto.ChatHistoryResponse, error)
	deleteThreadFn func(ctx context.Context, req *dto.DeleteThreadRequest) (*dto.DeleteThreadResponse, error)
	renameThreadFn func(ctx context.Context, req *dto.RenameThreadRequest) (*dto.ThreadDTO, error)

	sendOTPCalls int
	submitCalls  int
	resultCalls  int
}

func (f *fakeAPI) SendOTP(ctx context.Context, req *dto.SendOTPRequest) (*dto.SendOTPResponse, error) {
	f.sendOTPCalls++
	if f.sendOTPFn != nil {
		return f.sendOTPFn(ctx, req)
	}
	return &dto.SendOTPResponse{OTPSent: true}, nil
}

func (f *fakeAPI) VerifyOTP(ctx context.Context, req *dto.VerifyOTPRequest) (*dto.VerifyOTPResponse, error) {
	if f.verifyOTPFn != nil {
		return f.verifyOTPFn(ctx, req)
	}
	return &dto.VerifyOTPResponse{Verified: true}, nil
}

func (f *fakeAPI) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error) {
	if f.registerFn != nil {
		return f.registerFn(ctx, req)
	}
	return &dto.RegisterResponse{AccessToken: "token"}, nil
}

func (f *fakeAPI) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	if f.loginFn != nil {
		return f.loginFn(ctx, req)
	}
	return &dto.LoginResponse{AccessToken: "token"}, nil
}

func (f *fakeAPI) CaptchaChallenge(ctx context.Context) (*dto.CaptchaChallengeResponse, error) {
	return &dto.CaptchaChallengeResponse{}, nil
}

func (f *fakeAPI) SubmitQuery(ctx context.Context, req *dto.SubmitQueryRequest) (*dto.SubmitQueryResponse, error) {
	f.submitCalls++
	if f.submitFn != nil {
		return f.submitFn(ctx, req)
	}
	return &dto.SubmitQueryResponse{TaskID: "task-1", ThreadID: "thread-1"}, nil
}

func (f *fakeAPI) GetResult(ctx context.Context, taskID string) (*dto.TaskResultResponse, error) {
	f.resultCalls++
	if f.getResultFn != nil {
		return f.getResultFn(ctx, taskID)
	}
	return &dto.TaskResultResponse{TaskID: taskID, Status: dto.TaskStatusPending}, nil
}

func (f *fakeAPI) ChatHistory(ctx context.Context, req *dto.ChatHistoryRequest) (*dto.ChatHistoryResponse, error) {
	if f.chatHistoryFn != nil {
		return f.chatHistoryFn(ctx, req)
	}
	return &dto.ChatHistoryResponse{Messages: []dto.ChatMessageDTO{}}, nil
}

func (f *fakeAPI) DeleteThread(ctx context.Context, req *dto.DeleteThreadRequest) (*dto.DeleteThreadResponse, error) {
	if f.deleteThreadFn != nil {
		return f.deleteThreadFn(ctx, req)
	}
	return &dto.DeleteThreadResponse{ThreadID: req.ThreadID}, nil
}

func (f *fakeAPI) RenameThread(ctx context.Context, req *dto.RenameThreadRequest) (*dto.ThreadDTO, error) {
	if f.renameThreadFn != nil {
		return f.renameThreadFn(ctx, req)
	}
	return &dto.ThreadDTO{ThreadID: req.ThreadID, Title: req.Title}, nil
}

func TestClientAttachesBearerToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(dto.APIResponse{
			Success: true,
			Data:    dto.SubmitQueryResponse{TaskID: "t1", ThreadID: "th1"},
		})
	}))
	defer server.Close()

	c := New(server.URL, WithToken("abc"))
	resp, err := c.SubmitQuery(context.Background(), &dto.SubmitQueryRequest{
		TenantID: "acme",
		UserID:   1,
		Question: "show total sales",
	})
	require.NoError(t, err)
	assert.Equal(t, "t1", resp.TaskID)
	assert.Equal(t, "Bearer abc", gotAuth)
}

func TestClientDecodesErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(dto.APIResponse{
			Success: false,
			Message: "Task not found",
			Error:   dto.ErrorDetail{Code: "TASK_NOT_FOUND"},
		})
	}))
	defer server.Close()

	c := New(server.URL)
	_, err := c.GetResult(context.Background(), "missing")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "TASK_NOT_FOUND", apiErr.Code)
	assert.Equal(t, "Task not found", apiErr.Message)
}

func TestClientLoginStoresToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(dto.APIResponse{
			Success: true,
			Data:    dto.LoginResponse{AccessToken: "fresh-token", TokenType: "Bearer"},
		})
	}))
	defer server.Close()

	c := New(server.URL)
	_, err := c.Login(context.Background(), &dto.LoginRequest{Email: "a@b.com", Password: "Secret123"})
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", c.Token())

	c.ClearToken()
	assert.Empty(t, c.Token())
}
