package client

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/queryloom/queryloom/app/dto"
)

// DefaultThreadTitle names a conversation before its first question
const DefaultThreadTitle = "New Conversation"

// ErrThreadNotFound is returned when an operation targets an unknown thread
var ErrThreadNotFound = errors.New("thread not found")

// MessageResult is the settled answer attached to a message. All
// collections are non-nil so consumers never check for missing fields.
type MessageResult struct {
	SQL         string
	Results     json.RawMessage
	Columns     []string
	RowCount    int
	Success     bool
	Error       *string
	Suggestions []string
}

// ChatMessage is one question and, once settled, its answer. Result is
// nil while the answer is pending.
type ChatMessage struct {
	ID        string
	ParentID  *string
	Question  string
	Result    *MessageResult
	CreatedAt time.Time
}

// Thread is one conversation: an ordered message list plus metadata
// derived from it.
type Thread struct {
	ID        string
	Title     string
	Messages  []*ChatMessage
	UpdatedAt time.Time

	// persisted marks threads the server knows about. Local-only threads
	// are deleted without a remote call and submitted without a thread id.
	persisted bool
}

// LastMessage returns the newest message, or nil for an empty thread
func (t *Thread) LastMessage() *ChatMessage {
	if len(t.Messages) == 0 {
		return nil
	}
	return t.Messages[len(t.Messages)-1]
}

// ChatStore holds the conversation state: the thread list and the active
// thread pointer. All mutation goes through its methods so derived fields
// stay consistent with the message lists.
type ChatStore struct {
	api      APIClient
	userID   uint
	tenantID string

	mu       sync.Mutex
	threads  []*Thread
	activeID string
}

// NewChatStore creates an empty store bound to one user and tenant
func NewChatStore(api APIClient, userID uint, tenantID string) *ChatStore {
	return &ChatStore{
		api:      api,
		userID:   userID,
		tenantID: tenantID,
	}
}

// Threads returns the thread list, newest first
func (s *ChatStore) Threads() []*Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Thread, len(s.threads))
	copy(out, s.threads)
	return out
}

// ActiveThread returns the active thread, or nil when none is active
func (s *ChatStore) ActiveThread() *Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findLocked(s.activeID)
}

func (s *ChatStore) findLocked(id string) *Thread {
	for _, t := range s.threads {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// CreateThread starts a new local conversation, inserts it at the front
// of the list, and makes it active. The server learns about it on the
// first submitted question.
func (s *ChatStore) CreateThread() *Thread {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &Thread{
		ID:        uuid.New().String(),
		Title:     DefaultThreadTitle,
		UpdatedAt: time.Now().UTC(),
	}
	s.threads = append([]*Thread{t}, s.threads...)
	s.activeID = t.ID
	return t
}

// SelectThread makes the given thread active. Unknown ids are ignored.
func (s *ChatStore) SelectThread(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findLocked(id) != nil {
		s.activeID = id
	}
}

// RenameThread updates a thread's title locally and, for persisted
// threads, on the server. Titles that trim to empty are ignored.
func (s *ChatStore) RenameThread(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}

	s.mu.Lock()
	t := s.findLocked(id)
	if t == nil {
		s.mu.Unlock()
		return ErrThreadNotFound
	}
	persisted := t.persisted
	s.mu.Unlock()

	if persisted {
		if _, err := s.api.RenameThread(ctx, &dto.RenameThreadRequest{
			ThreadID: id,
			TenantID: s.tenantID,
			Title:    title,
		}); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.findLocked(id); t != nil {
		t.Title = title
	}
	return nil
}

// DeleteThread removes a conversation, remote-first: the local thread only
// disappears once the server confirms the delete. On failure local state
// is untouched and the error is returned. If the deleted thread was
// active, the first remaining thread becomes active, or none.
func (s *ChatStore) DeleteThread(ctx context.Context, id string) error {
	s.mu.Lock()
	t := s.findLocked(id)
	if t == nil {
		s.mu.Unlock()
		return ErrThreadNotFound
	}
	persisted := t.persisted
	s.mu.Unlock()

	if persisted {
		if _, err := s.api.DeleteThread(ctx, &dto.DeleteThreadRequest{
			ThreadID: id,
			TenantID: s.tenantID,
		}); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.threads {
		if t.ID == id {
			s.threads = append(s.threads[:i], s.threads[i+1:]...)
			break
		}
	}
	if s.activeID == id {
		if len(s.threads) > 0 {
			s.activeID = s.threads[0].ID
		} else {
			s.activeID = ""
		}
	}
	return nil
}

// AppendQuestion adds a pending message to a thread, updating the title
// when it is the thread's first message.
func (s *ChatStore) AppendQuestion(threadID, messageID, question string, parentID *string) *ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findLocked(threadID)
	if t == nil {
		return nil
	}

	msg := &ChatMessage{
		ID:        messageID,
		ParentID:  parentID,
		Question:  question,
		CreatedAt: time.Now().UTC(),
	}
	t.Messages = append(t.Messages, msg)
	t.UpdatedAt = msg.CreatedAt
	if len(t.Messages) == 1 || t.Title == DefaultThreadTitle {
		t.Title = question
	}
	return msg
}

// AdoptServerThread rebinds a local thread to the id the server assigned
// on first submission and marks it persisted.
func (s *ChatStore) AdoptServerThread(localID, serverID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findLocked(localID)
	if t == nil {
		return
	}
	t.ID = serverID
	t.persisted = true
	if s.activeID == localID {
		s.activeID = serverID
	}
}

// AttachResult attaches a settled result to the last message of the
// active thread that has none yet, scanning from the end. When no pending
// message exists, the result is dropped.
func (s *ChatStore) AttachResult(result *MessageResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findLocked(s.activeID)
	if t == nil {
		return
	}
	for i := len(t.Messages) - 1; i >= 0; i-- {
		if t.Messages[i].Result == nil {
			t.Messages[i].Result = result
			t.UpdatedAt = time.Now().UTC()
			return
		}
	}
}

// LoadHistory fetches the flat message history and rebuilds the thread
// list: messages grouped by thread id (synthetic id when missing), title
// from the first question, updatedAt from the newest message, sorted
// newest first. The newest thread becomes active only when no thread is.
func (s *ChatStore) LoadHistory(ctx context.Context) error {
	resp, err := s.api.ChatHistory(ctx, &dto.ChatHistoryRequest{
		UserID:   s.userID,
		TenantID: s.tenantID,
	})
	if err != nil {
		return err
	}

	byThread := make(map[string]*Thread)
	var order []string
	for _, m := range resp.Messages {
		threadID := m.ThreadID
		if threadID == "" {
			threadID = uuid.New().String()
		}
		t, ok := byThread[threadID]
		if !ok {
			t = &Thread{ID: threadID, persisted: m.ThreadID != ""}
			byThread[threadID] = t
			order = append(order, threadID)
		}
		t.Messages = append(t.Messages, historyMessage(&m))
	}

	threads := make([]*Thread, 0, len(order))
	for _, id := range order {
		t := byThread[id]
		sort.SliceStable(t.Messages, func(i, j int) bool {
			return t.Messages[i].CreatedAt.Before(t.Messages[j].CreatedAt)
		})
		t.Title = DefaultThreadTitle
		if len(t.Messages) > 0 {
			t.Title = t.Messages[0].Question
			t.UpdatedAt = t.Messages[len(t.Messages)-1].CreatedAt
		}
		threads = append(threads, t)
	}
	sort.SliceStable(threads, func(i, j int) bool {
		return threads[i].UpdatedAt.After(threads[j].UpdatedAt)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads = threads
	if s.findLocked(s.activeID) == nil {
		s.activeID = ""
	}
	if s.activeID == "" && len(threads) > 0 {
		s.activeID = threads[0].ID
	}
	return nil
}

// historyMessage converts a wire message into the local message shape
func historyMessage(m *dto.ChatMessageDTO) *ChatMessage {
	msg := &ChatMessage{
		ID:       m.MessageID,
		ParentID: m.ParentID,
		Question: m.Question,
	}
	if ts, err := time.Parse(time.RFC3339, m.CreatedAt); err == nil {
		msg.CreatedAt = ts
	}
	if m.HasResult {
		msg.Result = normalizeResult(m.SQL, m.Results, m.Columns, m.RowCount, m.Success, m.Error, m.Suggestions)
	}
	return msg
}

// normalizeResult fills missing sub-fields with safe defaults so
// consumers never dereference nil collections.
func normalizeResult(sql string, results json.RawMessage, columns []string, rowCount int, success bool, errMsg *string, suggestions []string) *MessageResult {
	if len(results) == 0 {
		results = json.RawMessage("[]")
	}
	if columns == nil {
		columns = []string{}
	}
	if suggestions == nil {
		suggestions = []string{}
	}
	return &MessageResult{
		SQL:         sql,
		Results:     results,
		Columns:     columns,
		RowCount:    rowCount,
		Success:     success,
		Error:       errMsg,
		Suggestions: suggestions,
	}
}
