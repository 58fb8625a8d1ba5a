// Package scheduler runs the background workers that settle asynchronous query tasks
package scheduler

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/queryloom/queryloom/app/middleware"
	"github.com/queryloom/queryloom/app/services"
	businessflow "github.com/queryloom/queryloom/business_flow"
	"github.com/queryloom/queryloom/config"
	"github.com/queryloom/queryloom/models"
	"github.com/queryloom/queryloom/repository"
	"github.com/queryloom/queryloom/utils"
)

// historyLimit caps how many previous question/SQL pairs are fed to the
// translator as conversational context.
const historyLimit = 10

// QueryWorker drains pending query tasks: each task is translated to SQL,
// executed against the analytics database, and the outcome is written back to
// the task, the owning thread's message, and the result cache.
type QueryWorker struct {
	taskRepo    repository.QueryTaskRepository
	threadRepo  repository.ThreadRepository
	messageRepo repository.MessageRepository
	nl2sql      services.NL2SQLService
	executor    services.QueryExecutor
	rc          *redis.Client
	cacheConfig config.CacheConfig
	db          *gorm.DB
	logger      *log.Logger
	interval    time.Duration
	taskTimeout time.Duration

	logFile *os.File
}

// NewQueryWorker creates a new query worker instance
func NewQueryWorker(
	taskRepo repository.QueryTaskRepository,
	threadRepo repository.ThreadRepository,
	messageRepo repository.MessageRepository,
	nl2sql services.NL2SQLService,
	executor services.QueryExecutor,
	rc *redis.Client,
	cacheConfig config.CacheConfig,
	db *gorm.DB,
	interval time.Duration,
	taskTimeout time.Duration,
) *QueryWorker {
	if interval <= 0 {
		interval = time.Second
	}
	if taskTimeout <= 0 {
		taskTimeout = utils.QueryTaskTimeout
	}

	w := &QueryWorker{
		taskRepo:    taskRepo,
		threadRepo:  threadRepo,
		messageRepo: messageRepo,
		nl2sql:      nl2sql,
		executor:    executor,
		rc:          rc,
		cacheConfig: cacheConfig,
		db:          db,
		interval:    interval,
		taskTimeout: taskTimeout,
	}

	if err := w.initWorkerLogger(); err != nil {
		w.logger = log.Default()
		w.logger.Printf("worker: failed to initialize file logger: %v", err)
	}

	return w
}

// initWorkerLogger configures a logger that writes to both stdout and a persistent file under data/ (or /data)
func (w *QueryWorker) initWorkerLogger() error {
	candidates := []string{
		filepath.Join("data"),
		"/data",
	}
	for _, dir := range candidates {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			continue
		}
		logPath := filepath.Join(dir, "worker.log")
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			continue
		}
		w.logFile = f
		mw := io.MultiWriter(os.Stdout, f)
		w.logger = log.New(mw, "worker ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
		return nil
	}
	return fmt.Errorf("could not create worker log file in any candidate directory")
}

// Start launches the worker loop in a background goroutine and returns a stop function
func (w *QueryWorker) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		w.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.runOnce(ctx)
			}
		}
	}()

	go w.startStuckTaskSweeper(ctx)

	return cancel
}

// runOnce drains every pending task currently in the queue
func (w *QueryWorker) runOnce(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, err := w.taskRepo.ClaimNextPending(ctx)
		if err != nil {
			w.logger.Printf("worker: claim pending task failed: %v", err)
			return
		}
		if task == nil {
			return
		}

		if err := w.processTask(ctx, task); err != nil {
			w.logger.Printf("worker: process task id=%s failed: %v", task.TaskID, err)
		}
	}
}

// processTask answers one claimed task end to end
func (w *QueryWorker) processTask(ctx context.Context, task *models.QueryTask) error {
	taskCtx, cancel := context.WithTimeout(ctx, w.taskTimeout)
	defer cancel()

	history, err := w.threadHistory(taskCtx, task)
	if err != nil {
		w.logger.Printf("worker: load history for task id=%s failed: %v", task.TaskID, err)
		history = nil
	}

	translation, err := w.nl2sql.GenerateSQL(taskCtx, task.Question, history)
	if err != nil {
		w.logger.Printf("worker: translation failed for task id=%s: %v", task.TaskID, err)
		return w.settleWithError(ctx, task, "could not translate the question to SQL", suggestionsFor(translation))
	}

	result, err := w.executor.Execute(taskCtx, translation.SQL)
	if err != nil {
		w.logger.Printf("worker: execution failed for task id=%s: %v", task.TaskID, err)
		task.SQL = translation.SQL
		return w.settleWithError(ctx, task, "query execution failed", translation.Suggestions)
	}

	task.SQL = translation.SQL
	task.Columns = pq.StringArray(result.Columns)
	task.Rows = result.Rows
	task.RowCount = result.RowCount
	task.Success = utils.ToPtr(true)
	task.Error = nil
	task.Suggestions = pq.StringArray(translation.Suggestions)

	if err := w.taskRepo.MarkCompleted(ctx, task); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	task.Status = models.QueryTaskStatusCompleted

	w.settle(ctx, task)
	w.logger.Printf("worker: task id=%s completed with %d rows", task.TaskID, result.RowCount)
	return nil
}

// settleWithError marks the task errored and propagates the terminal state
func (w *QueryWorker) settleWithError(ctx context.Context, task *models.QueryTask, message string, suggestions []string) error {
	if suggestions == nil {
		suggestions = []string{}
	}
	if err := w.taskRepo.MarkError(ctx, task, message, suggestions); err != nil {
		return fmt.Errorf("mark error: %w", err)
	}

	task.Status = models.QueryTaskStatusError
	task.Success = utils.ToPtr(false)
	task.Error = &message
	task.Suggestions = pq.StringArray(suggestions)

	w.settle(ctx, task)
	return nil
}

// settle attaches the terminal payload to the thread's pending message and
// primes the result cache so pollers see the outcome immediately.
func (w *QueryWorker) settle(ctx context.Context, task *models.QueryTask) {
	middleware.ObserveTaskSettled(task.Status, time.Since(task.CreatedAt))
	businessflow.StoreTaskResult(ctx, w.rc, w.cacheConfig, task)

	thread, err := w.threadRepo.ByUUID(ctx, task.ThreadID)
	if err != nil || thread == nil {
		w.logger.Printf("worker: thread lookup for task id=%s failed: %v", task.TaskID, err)
		return
	}

	message, err := w.messageRepo.LastWithoutResult(ctx, thread.ID)
	if err != nil {
		w.logger.Printf("worker: pending message lookup for task id=%s failed: %v", task.TaskID, err)
		return
	}
	if message == nil {
		return
	}

	if err := w.messageRepo.AttachResult(ctx, message.ID, task); err != nil {
		w.logger.Printf("worker: attach result for task id=%s failed: %v", task.TaskID, err)
	}
}

// threadHistory collects the settled question/SQL pairs of the task's thread,
// oldest first, capped at historyLimit.
func (w *QueryWorker) threadHistory(ctx context.Context, task *models.QueryTask) ([]services.QuestionSQLPair, error) {
	thread, err := w.threadRepo.ByUUID(ctx, task.ThreadID)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return nil, nil
	}

	messages, err := w.messageRepo.ListByThread(ctx, thread.ID)
	if err != nil {
		return nil, err
	}

	history := make([]services.QuestionSQLPair, 0, len(messages))
	for _, message := range messages {
		if !message.ResultAttached() || message.SQL == "" || !utils.IsTrue(message.Success) {
			continue
		}
		history = append(history, services.QuestionSQLPair{
			Question: message.Question,
			SQL:      message.SQL,
		})
	}
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}

	return history, nil
}

// startStuckTaskSweeper periodically errors out running tasks whose worker
// died mid-flight.
func (w *QueryWorker) startStuckTaskSweeper(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.taskRepo.ExpireStuckTasks(ctx, w.taskTimeout); err != nil {
				w.logger.Printf("worker: expire stuck tasks failed: %v", err)
			}
		}
	}
}

// suggestionsFor tolerates a nil translation when the model call itself failed
func suggestionsFor(translation *services.NL2SQLResult) []string {
	if translation == nil {
		return []string{}
	}
	return translation.Suggestions
}
