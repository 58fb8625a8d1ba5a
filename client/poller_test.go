package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/queryloom/queryloom/app/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollerRejectsBlankQuestion(t *testing.T) {
	api := &fakeAPI{}
	store := NewChatStore(api, 1, "acme")
	poller := NewPoller(api, store, 5*time.Millisecond)

	_, err := poller.Submit(context.Background(), "   \n\t")
	assert.ErrorIs(t, err, ErrEmptyQuestion)
	assert.Zero(t, api.submitCalls)
}

func TestPollerSubmitWhileLoadingIsNoOp(t *testing.T) {
	api := &fakeAPI{
		getResultFn: func(ctx context.Context, taskID string) (*dto.TaskResultResponse, error) {
			return &dto.TaskResultResponse{TaskID: taskID, Status: dto.TaskStatusPending}, nil
		},
	}
	store := NewChatStore(api, 1, "acme")
	poller := NewPoller(api, store, time.Hour)

	taskID, err := poller.Submit(context.Background(), "total sales last month")
	require.NoError(t, err)
	require.Equal(t, "task-1", taskID)
	require.True(t, poller.Loading())

	second, err := poller.Submit(context.Background(), "another question")
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Equal(t, 1, api.submitCalls, "a second in-flight submission must not create a task")

	// The first question is the only pending message.
	thread := store.ActiveThread()
	require.NotNil(t, thread)
	assert.Len(t, thread.Messages, 1)

	poller.Stop()
	assert.False(t, poller.Loading())
}

func TestPollerTerminalResultAttachesToPendingMessage(t *testing.T) {
	var polls int32
	api := &fakeAPI{
		getResultFn: func(ctx context.Context, taskID string) (*dto.TaskResultResponse, error) {
			if atomic.AddInt32(&polls, 1) < 3 {
				return &dto.TaskResultResponse{TaskID: taskID, Status: dto.TaskStatusPending}, nil
			}
			return &dto.TaskResultResponse{
				TaskID:   taskID,
				Status:   dto.TaskStatusCompleted,
				SQL:      "SELECT SUM(amount) FROM sales",
				Results:  json.RawMessage(`[{"sum":42}]`),
				Columns:  []string{"sum"},
				RowCount: 1,
				Success:  true,
			}, nil
		},
	}
	store := NewChatStore(api, 1, "acme")
	poller := NewPoller(api, store, 5*time.Millisecond)

	done := make(chan *MessageResult, 1)
	poller.Subscribe(func(taskID string, result *MessageResult) {
		done <- result
	})

	_, err := poller.Submit(context.Background(), "total sales")
	require.NoError(t, err)

	select {
	case result := <-done:
		assert.True(t, result.Success)
		assert.Equal(t, "SELECT SUM(amount) FROM sales", result.SQL)
	case <-time.After(2 * time.Second):
		t.Fatal("poller never settled")
	}

	assert.False(t, poller.Loading())
	assert.GreaterOrEqual(t, atomic.LoadInt32(&polls), int32(3))

	thread := store.ActiveThread()
	require.NotNil(t, thread)
	require.Len(t, thread.Messages, 1)
	require.NotNil(t, thread.Messages[0].Result)
	assert.Equal(t, 1, thread.Messages[0].Result.RowCount)

	// Polling stopped after the terminal status.
	settled := atomic.LoadInt32(&polls)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, atomic.LoadInt32(&polls))
}

func TestPollerTransportFailureSettlesWithError(t *testing.T) {
	api := &fakeAPI{
		getResultFn: func(ctx context.Context, taskID string) (*dto.TaskResultResponse, error) {
			return nil, errors.New("connection refused")
		},
	}
	store := NewChatStore(api, 1, "acme")
	poller := NewPoller(api, store, 5*time.Millisecond)

	done := make(chan *MessageResult, 1)
	poller.Subscribe(func(taskID string, result *MessageResult) {
		done <- result
	})

	_, err := poller.Submit(context.Background(), "total sales")
	require.NoError(t, err)

	select {
	case result := <-done:
		assert.False(t, result.Success)
		require.NotNil(t, result.Error)
		assert.Contains(t, *result.Error, "connection refused")
	case <-time.After(2 * time.Second):
		t.Fatal("transport failure did not settle the task")
	}
	assert.False(t, poller.Loading())
}

func TestPollerSubmitFailureClearsLoading(t *testing.T) {
	api := &fakeAPI{
		submitFn: func(ctx context.Context, req *dto.SubmitQueryRequest) (*dto.SubmitQueryResponse, error) {
			return nil, &APIError{StatusCode: 503, Message: "overloaded"}
		},
	}
	store := NewChatStore(api, 1, "acme")
	poller := NewPoller(api, store, 5*time.Millisecond)

	_, err := poller.Submit(context.Background(), "total sales")
	require.Error(t, err)
	assert.False(t, poller.Loading())

	// The failed submission left no pending message behind.
	thread := store.ActiveThread()
	require.NotNil(t, thread)
	assert.Empty(t, thread.Messages)
}

func TestPollerAdoptsServerThreadAndLinksFollowUps(t *testing.T) {
	var requests []*dto.SubmitQueryRequest
	api := &fakeAPI{
		submitFn: func(ctx context.Context, req *dto.SubmitQueryRequest) (*dto.SubmitQueryResponse, error) {
			copied := *req
			requests = append(requests, &copied)
			return &dto.SubmitQueryResponse{TaskID: "task-1", ThreadID: "server-thread"}, nil
		},
		getResultFn: func(ctx context.Context, taskID string) (*dto.TaskResultResponse, error) {
			return &dto.TaskResultResponse{TaskID: taskID, Status: dto.TaskStatusCompleted, Success: true}, nil
		},
	}
	store := NewChatStore(api, 1, "acme")
	poller := NewPoller(api, store, 5*time.Millisecond)

	done := make(chan struct{}, 2)
	poller.Subscribe(func(string, *MessageResult) { done <- struct{}{} })

	_, err := poller.Submit(context.Background(), "first question")
	require.NoError(t, err)
	<-done

	_, err = poller.Submit(context.Background(), "follow-up question")
	require.NoError(t, err)
	<-done

	require.Len(t, requests, 2)
	assert.Nil(t, requests[0].ThreadID, "a fresh local thread submits without a thread id")
	require.NotNil(t, requests[1].ThreadID, "after adoption the server thread id is reused")
	assert.Equal(t, "server-thread", *requests[1].ThreadID)
	require.NotNil(t, requests[1].ParentID, "follow-ups reference the previous message")

	thread := store.ActiveThread()
	require.NotNil(t, thread)
	assert.Equal(t, "server-thread", thread.ID)
	assert.Len(t, thread.Messages, 2)
}
