// Package core drives harvest tasks: a pre-filter for rows that should
// never be harvested, and a worker pool that drains task rows through the
// harvest pipeline and writes outcomes back to the store.
package core

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pengxu9-rgb/Pivota-catalog-intelligence/internal/harvest"
	"github.com/pengxu9-rgb/Pivota-catalog-intelligence/internal/observability"
	"github.com/pengxu9-rgb/Pivota-catalog-intelligence/internal/store"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 256
	maxErrorLen      = 500
)

// RowStore is the slice of the store the runner needs.
type RowStore interface {
	GetRow(ctx context.Context, rowID string) (store.Row, error)
	UpdateRow(ctx context.Context, r store.Row) error
	UpdateTaskRow(ctx context.Context, taskID, rowID, status, message string) error
	MaybeFinishTask(ctx context.Context, taskID string) (bool, error)
}

// RowHarvester runs the search, fetch, and extract pipeline for one product.
type RowHarvester interface {
	Harvest(ctx context.Context, market, brand, productName string) harvest.Outcome
}

type job struct {
	taskID string
	rowID  string
	force  bool
}

// Runner fans queued task rows out across worker goroutines. Enqueue is
// best-effort: when the queue is full or the runner is stopped, the caller
// is expected to process the row inline instead.
type Runner struct {
	store     RowStore
	harvester RowHarvester
	logger    *slog.Logger

	workers int
	jobs    chan job

	mu       sync.RWMutex
	stopped  bool
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRunner builds a runner with the given pool size and queue capacity.
// Non-positive values fall back to the defaults.
func NewRunner(st RowStore, harvester RowHarvester, workers, queueSize int, logger *slog.Logger) *Runner {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		store:     st,
		harvester: harvester,
		logger:    logger,
		workers:   workers,
		jobs:      make(chan job, queueSize),
	}
}

// Workers reports the pool size.
func (r *Runner) Workers() int {
	return r.workers
}

// Start launches the worker goroutines. Workers exit when ctx is canceled
// or when Stop closes the queue.
func (r *Runner) Start(ctx context.Context) {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.work(ctx)
	}
	r.logger.Info("harvest runner started", "workers", r.workers, "queue_size", cap(r.jobs))
}

// Stop closes intake and waits for in-flight rows to finish. Queued rows
// that were never claimed stay QUEUED in the store and can be re-dispatched.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.stopped = true
		close(r.jobs)
		r.mu.Unlock()
		r.wg.Wait()
	})
}

// Enqueue offers one row to the pool. It reports false when the queue is
// full or the runner is stopped.
func (r *Runner) Enqueue(taskID, rowID string, force bool) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		return false
	}
	select {
	case r.jobs <- job{taskID: taskID, rowID: rowID, force: force}:
		return true
	default:
		return false
	}
}

func (r *Runner) work(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-r.jobs:
			if !ok {
				return
			}
			r.Process(ctx, j.taskID, j.rowID, j.force)
		}
	}
}

// Process runs one task row end to end: skip checks, then the harvest
// pipeline, then result writeback and task accounting. It is also the
// inline fallback path used when the queue rejects a row.
func (r *Runner) Process(ctx context.Context, taskID, rowID string, force bool) {
	if err := r.store.UpdateTaskRow(ctx, taskID, rowID, store.TaskRowStatusRunning, ""); err != nil {
		r.logger.Warn("failed to mark task row running", "task_id", taskID, "row_id", rowID, "error", err)
	}

	row, err := r.store.GetRow(ctx, rowID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			r.writeTaskRow(ctx, taskID, rowID, store.RowStatusError, "row_not_found")
			r.finishTask(ctx, taskID)
			return
		}
		observability.IncError(observability.ErrorOther, "runner")
		r.logger.Error("failed to load row", "row_id", rowID, "error", err)
		return
	}

	if !force && strings.TrimSpace(row.RawIngredientText) != "" {
		row.Status = store.RowStatusSkipped
		if err := r.store.UpdateRow(ctx, row); err != nil {
			r.logger.Warn("failed to mark row skipped", "row_id", rowID, "error", err)
		}
		r.writeTaskRow(ctx, taskID, rowID, store.RowStatusSkipped, "already_has_raw_ingredient_text")
		r.finishTask(ctx, taskID)
		return
	}

	if reason := NonCosmeticSkipReason(row.Brand, row.ProductName); reason != "" {
		row.Status = store.RowStatusSkipped
		row.Error = reason
		if err := r.store.UpdateRow(ctx, row); err != nil {
			r.logger.Warn("failed to mark row skipped", "row_id", rowID, "error", err)
		}
		r.writeTaskRow(ctx, taskID, rowID, store.RowStatusSkipped, reason)
		r.finishTask(ctx, taskID)
		return
	}

	outcome := r.harvester.Harvest(ctx, row.Market, row.Brand, row.ProductName)

	row.Status = string(outcome.Status)
	row.Confidence = outcome.Confidence
	row.RawIngredientText = outcome.RawText
	row.SourceRef = outcome.SourceRef
	row.SourceType = string(outcome.SourceType)
	row.Error = ""
	if err := r.store.UpdateRow(ctx, row); err != nil {
		observability.IncError(observability.ErrorOther, "runner")
		r.logger.Error("failed to write harvest result", "row_id", rowID, "error", err)

		msg := truncateError(err.Error())
		row.Status = store.RowStatusError
		row.Error = msg
		if uerr := r.store.UpdateRow(ctx, row); uerr != nil {
			r.logger.Warn("failed to mark row errored", "row_id", rowID, "error", uerr)
		}
		r.writeTaskRow(ctx, taskID, rowID, store.RowStatusError, msg)
		r.finishTask(ctx, taskID)
		return
	}

	r.writeTaskRow(ctx, taskID, rowID, string(outcome.Status), outcome.Diagnostic)
	r.finishTask(ctx, taskID)
}

func (r *Runner) writeTaskRow(ctx context.Context, taskID, rowID, status, message string) {
	if err := r.store.UpdateTaskRow(ctx, taskID, rowID, status, message); err != nil {
		r.logger.Warn("failed to update task row", "task_id", taskID, "row_id", rowID, "error", err)
	}
}

func (r *Runner) finishTask(ctx context.Context, taskID string) {
	finished, err := r.store.MaybeFinishTask(ctx, taskID)
	if err != nil {
		r.logger.Warn("failed to refresh task status", "task_id", taskID, "error", err)
		return
	}
	if finished {
		r.logger.Info("harvest task finished", "task_id", taskID)
	}
}

func truncateError(msg string) string {
	if utf8.RuneCountInString(msg) <= maxErrorLen {
		return msg
	}
	return string([]rune(msg)[:maxErrorLen])
}
