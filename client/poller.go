package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/queryloom/queryloom/app/dto"
)

// ErrEmptyQuestion rejects blank submissions before any network call
var ErrEmptyQuestion = errors.New("question must not be empty")

// QueryEngine is the submission surface the UI talks to: submit a
// question and subscribe to terminal results. The interval-polling Poller
// is one implementation; a streaming subscription could be another.
type QueryEngine interface {
	Submit(ctx context.Context, question string) (string, error)
	Subscribe(fn func(taskID string, result *MessageResult))
	Stop()
}

// Poller submits questions and polls for their results once per second
// until a terminal status arrives, then attaches the result to the
// store's pending message. Only one polling session runs at a time:
// submitting while a session is active is a no-op.
type Poller struct {
	api      APIClient
	store    *ChatStore
	interval time.Duration

	mu            sync.Mutex
	loading       bool
	currentTaskID string
	cancel        context.CancelFunc
	subscribers   []func(taskID string, result *MessageResult)
}

// NewPoller creates a poller over the given API client and store. A zero
// interval defaults to one second.
func NewPoller(api APIClient, store *ChatStore, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	return &Poller{
		api:      api,
		store:    store,
		interval: interval,
	}
}

// Subscribe registers a callback invoked once per task when its terminal
// result has been attached.
func (p *Poller) Subscribe(fn func(taskID string, result *MessageResult)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, fn)
}

// Loading reports whether a submission or poll session is in flight
func (p *Poller) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loading
}

// Submit posts a question against the active thread (creating one when
// none is active) and starts the polling session. While a session is in
// flight, Submit is a no-op returning an empty task id: results always
// attach to the most recent pending message, so a second in-flight
// question would misattribute them.
func (p *Poller) Submit(ctx context.Context, question string) (string, error) {
	if isBlank(question) {
		return "", ErrEmptyQuestion
	}

	p.mu.Lock()
	if p.loading {
		p.mu.Unlock()
		return "", nil
	}
	p.loading = true
	p.mu.Unlock()

	thread := p.store.ActiveThread()
	if thread == nil {
		thread = p.store.CreateThread()
	}
	localID := thread.ID

	req := &dto.SubmitQueryRequest{
		TenantID: p.store.tenantID,
		UserID:   p.store.userID,
		Question: question,
	}
	if thread.persisted {
		req.ThreadID = &localID
	}
	if last := thread.LastMessage(); last != nil {
		parentID := last.ID
		req.ParentID = &parentID
	}

	resp, err := p.api.SubmitQuery(ctx, req)
	if err != nil {
		p.mu.Lock()
		p.loading = false
		p.mu.Unlock()
		return "", err
	}

	p.store.AdoptServerThread(localID, resp.ThreadID)
	p.store.AppendQuestion(resp.ThreadID, uuid.New().String(), question, req.ParentID)

	pollCtx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	p.currentTaskID = resp.TaskID
	p.cancel = cancel
	p.mu.Unlock()

	go p.poll(pollCtx, resp.TaskID)

	return resp.TaskID, nil
}

// Stop cancels the active polling session without attaching a result
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.currentTaskID = ""
	p.loading = false
}

// poll issues one status request per tick until the task settles. A
// transport failure is treated as a terminal response carrying the error,
// not a crash, so the conversation shows what happened.
func (p *Poller) poll(ctx context.Context, taskID string) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := p.api.GetResult(ctx, taskID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				msg := err.Error()
				p.settle(taskID, &dto.TaskResultResponse{
					TaskID: taskID,
					Status: dto.TaskStatusCompleted,
					Error:  &msg,
				})
				return
			}
			switch result.Status {
			case dto.TaskStatusCompleted, dto.TaskStatusError:
				p.settle(taskID, result)
				return
			}
			// anything else means still pending; keep polling
		}
	}
}

// settle ends the polling session and attaches the normalized result to
// the last pending message. Stale results whose task no longer matches
// the session are dropped.
func (p *Poller) settle(taskID string, result *dto.TaskResultResponse) {
	p.mu.Lock()
	if p.currentTaskID != taskID {
		p.mu.Unlock()
		return
	}
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.currentTaskID = ""
	p.loading = false
	subscribers := make([]func(string, *MessageResult), len(p.subscribers))
	copy(subscribers, p.subscribers)
	p.mu.Unlock()

	normalized := normalizeResult(result.SQL, result.Results, result.Columns, result.RowCount, result.Success, result.Error, result.Suggestions)
	p.store.AttachResult(normalized)

	for _, fn := range subscribers {
		fn(taskID, normalized)
	}
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
