package client

import (
	"context"
	"errors"
	"testing"

	"github.com/queryloom/queryloom/app/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatStoreCreateThreadActivates(t *testing.T) {
	store := NewChatStore(&fakeAPI{}, 1, "acme")

	first := store.CreateThread()
	second := store.CreateThread()

	threads := store.Threads()
	require.Len(t, threads, 2)
	assert.Equal(t, second.ID, threads[0].ID, "newest thread goes to the front")
	assert.Equal(t, first.ID, threads[1].ID)
	assert.Equal(t, DefaultThreadTitle, threads[0].Title)

	active := store.ActiveThread()
	require.NotNil(t, active)
	assert.Equal(t, second.ID, active.ID)

	store.SelectThread(first.ID)
	assert.Equal(t, first.ID, store.ActiveThread().ID)

	store.SelectThread("no-such-thread")
	assert.Equal(t, first.ID, store.ActiveThread().ID, "unknown ids leave the selection alone")
}

func TestChatStoreAppendQuestionSetsTitle(t *testing.T) {
	store := NewChatStore(&fakeAPI{}, 1, "acme")
	thread := store.CreateThread()

	msg := store.AppendQuestion(thread.ID, "m1", "revenue by region", nil)
	require.NotNil(t, msg)
	assert.Nil(t, msg.Result, "a fresh question is pending")

	parent := msg.ID
	store.AppendQuestion(thread.ID, "m2", "only for 2025", &parent)

	got := store.ActiveThread()
	assert.Equal(t, "revenue by region", got.Title, "first question names the thread")
	require.Len(t, got.Messages, 2)
	require.NotNil(t, got.Messages[1].ParentID)
	assert.Equal(t, "m1", *got.Messages[1].ParentID)
}

func TestChatStoreDeleteThreadRemoteFailureKeepsState(t *testing.T) {
	api := &fakeAPI{
		deleteThreadFn: func(ctx context.Context, req *dto.DeleteThreadRequest) (*dto.DeleteThreadResponse, error) {
			return nil, errors.New("server unavailable")
		},
	}
	store := NewChatStore(api, 1, "acme")
	thread := store.CreateThread()
	store.AdoptServerThread(thread.ID, "server-1")

	err := store.DeleteThread(context.Background(), "server-1")
	require.Error(t, err)
	assert.Len(t, store.Threads(), 1, "failed remote delete leaves the thread in place")
	assert.Equal(t, "server-1", store.ActiveThread().ID)
}

func TestChatStoreDeleteThreadRetargetsActive(t *testing.T) {
	store := NewChatStore(&fakeAPI{}, 1, "acme")
	older := store.CreateThread()
	newer := store.CreateThread()
	store.AdoptServerThread(newer.ID, "server-2")

	require.NoError(t, store.DeleteThread(context.Background(), "server-2"))
	require.Len(t, store.Threads(), 1)
	assert.Equal(t, older.ID, store.ActiveThread().ID, "deleting the active thread activates the next one")

	require.NoError(t, store.DeleteThread(context.Background(), older.ID))
	assert.Empty(t, store.Threads())
	assert.Nil(t, store.ActiveThread())

	assert.ErrorIs(t, store.DeleteThread(context.Background(), "gone"), ErrThreadNotFound)
}

func TestChatStoreRenameThread(t *testing.T) {
	renamed := 0
	api := &fakeAPI{
		renameThreadFn: func(ctx context.Context, req *dto.RenameThreadRequest) (*dto.ThreadDTO, error) {
			renamed++
			return &dto.ThreadDTO{ThreadID: req.ThreadID, Title: req.Title}, nil
		},
	}
	store := NewChatStore(api, 1, "acme")
	thread := store.CreateThread()

	// Local-only threads rename without a server round trip.
	require.NoError(t, store.RenameThread(context.Background(), thread.ID, "Q1 numbers"))
	assert.Zero(t, renamed)
	assert.Equal(t, "Q1 numbers", store.ActiveThread().Title)

	store.AdoptServerThread(thread.ID, "server-1")
	require.NoError(t, store.RenameThread(context.Background(), "server-1", "Q1 revenue"))
	assert.Equal(t, 1, renamed)
	assert.Equal(t, "Q1 revenue", store.ActiveThread().Title)

	// Blank titles are swallowed, unknown threads are reported.
	require.NoError(t, store.RenameThread(context.Background(), "server-1", "   "))
	assert.Equal(t, "Q1 revenue", store.ActiveThread().Title)
	assert.ErrorIs(t, store.RenameThread(context.Background(), "missing", "x"), ErrThreadNotFound)
}

func TestChatStoreAttachResultScansFromEnd(t *testing.T) {
	store := NewChatStore(&fakeAPI{}, 1, "acme")
	thread := store.CreateThread()

	store.AppendQuestion(thread.ID, "m1", "first", nil)
	store.AttachResult(&MessageResult{Success: true, SQL: "SELECT 1"})

	store.AppendQuestion(thread.ID, "m2", "second", nil)
	store.AttachResult(&MessageResult{Success: true, SQL: "SELECT 2"})

	got := store.ActiveThread()
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "SELECT 1", got.Messages[0].Result.SQL)
	assert.Equal(t, "SELECT 2", got.Messages[1].Result.SQL)

	// No pending message left: the result is dropped, nothing overwritten.
	store.AttachResult(&MessageResult{Success: true, SQL: "SELECT 3"})
	assert.Equal(t, "SELECT 2", got.Messages[1].Result.SQL)
}

func TestChatStoreLoadHistoryGroupsAndSorts(t *testing.T) {
	api := &fakeAPI{
		chatHistoryFn: func(ctx context.Context, req *dto.ChatHistoryRequest) (*dto.ChatHistoryResponse, error) {
			return &dto.ChatHistoryResponse{Messages: []dto.ChatMessageDTO{
				{
					MessageID: "b2", ThreadID: "thread-b", Question: "and by city?",
					HasResult: true, Success: true, SQL: "SELECT city", CreatedAt: "2026-02-01T10:05:00Z",
				},
				{
					MessageID: "a1", ThreadID: "thread-a", Question: "total orders",
					HasResult: true, Success: true, SQL: "SELECT COUNT(*)", CreatedAt: "2026-01-15T09:00:00Z",
				},
				{
					MessageID: "b1", ThreadID: "thread-b", Question: "orders by region",
					HasResult: true, Success: true, SQL: "SELECT region", CreatedAt: "2026-02-01T10:00:00Z",
				},
			}}, nil
		},
	}
	store := NewChatStore(api, 1, "acme")
	require.NoError(t, store.LoadHistory(context.Background()))

	threads := store.Threads()
	require.Len(t, threads, 2)

	// Newest activity first.
	assert.Equal(t, "thread-b", threads[0].ID)
	assert.Equal(t, "orders by region", threads[0].Title, "title comes from the oldest question")
	require.Len(t, threads[0].Messages, 2)
	assert.Equal(t, "b1", threads[0].Messages[0].ID, "messages ordered oldest first")
	assert.Equal(t, "b2", threads[0].Messages[1].ID)

	assert.Equal(t, "thread-a", threads[1].ID)

	active := store.ActiveThread()
	require.NotNil(t, active)
	assert.Equal(t, "thread-b", active.ID, "newest thread activated when none was")

	require.NotNil(t, threads[0].Messages[0].Result)
	assert.Equal(t, "[]", string(threads[0].Messages[0].Result.Results), "missing result rows normalize to an empty array")
	assert.NotNil(t, threads[0].Messages[0].Result.Columns)
	assert.NotNil(t, threads[0].Messages[0].Result.Suggestions)
}

func TestChatStoreLoadHistoryKeepsValidSelection(t *testing.T) {
	api := &fakeAPI{
		chatHistoryFn: func(ctx context.Context, req *dto.ChatHistoryRequest) (*dto.ChatHistoryResponse, error) {
			return &dto.ChatHistoryResponse{Messages: []dto.ChatMessageDTO{
				{MessageID: "a1", ThreadID: "thread-a", Question: "q1", CreatedAt: "2026-01-01T00:00:00Z"},
				{MessageID: "b1", ThreadID: "thread-b", Question: "q2", CreatedAt: "2026-02-01T00:00:00Z"},
			}}, nil
		},
	}
	store := NewChatStore(api, 1, "acme")

	require.NoError(t, store.LoadHistory(context.Background()))
	store.SelectThread("thread-a")

	// A reload keeps the user's selection when the thread still exists.
	require.NoError(t, store.LoadHistory(context.Background()))
	assert.Equal(t, "thread-a", store.ActiveThread().ID)
}
