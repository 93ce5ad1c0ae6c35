// Package task_worker polls the durable task store and executes due
// tasks. Transfer batches get their run times from the batch scheduler;
// this worker only has to fire them once they are due.
package task_worker

import (
	"context"
	"sync"
	"time"

	"github.com/vortex-market/tola-sync/internal/domain/entities"
	"github.com/vortex-market/tola-sync/internal/domain/repositories"
	"github.com/vortex-market/tola-sync/internal/domain/services/batch"
	"github.com/vortex-market/tola-sync/pkg/logger"
)

const claimBatchSize = 20

// retryBackoff spaces re-runs of a transiently failed task
const retryBackoff = 30 * time.Second

// Worker executes due scheduled tasks
type Worker struct {
	tasks        repositories.TaskRepository
	scheduler    *batch.Scheduler
	pollInterval time.Duration
	logger       *logger.Logger
	stopCh       chan struct{}
	wg           sync.WaitGroup
}

// NewWorker creates a task worker polling at the given interval
func NewWorker(tasks repositories.TaskRepository, scheduler *batch.Scheduler, pollInterval time.Duration, log *logger.Logger) *Worker {
	return &Worker{
		tasks:        tasks,
		scheduler:    scheduler,
		pollInterval: pollInterval,
		logger:       log,
		stopCh:       make(chan struct{}),
	}
}

// Start begins the polling loop
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Task worker started", "poll_interval", w.pollInterval)
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.logger.Info("Task worker stopped")
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.processDue(ctx)
		}
	}
}

func (w *Worker) processDue(ctx context.Context) {
	claimed, err := w.tasks.ClaimDue(ctx, time.Now().UTC(), claimBatchSize)
	if err != nil {
		w.logger.Error("Failed to claim due tasks", "error", err)
		return
	}

	for _, task := range claimed {
		w.execute(ctx, task)
	}
}

func (w *Worker) execute(ctx context.Context, task *entities.ScheduledTask) {
	var err error
	switch task.Kind {
	case entities.TaskKindTransferBatch:
		err = w.scheduler.ExecuteBatch(ctx, task.Payload)
	default:
		w.logger.Error("Task with unknown kind", "task_id", task.ID, "kind", task.Kind)
		err = w.tasks.Retry(ctx, task.ID, time.Now().UTC(), "unknown task kind")
		if err != nil {
			w.logger.Error("Failed to retire unknown task", "error", err, "task_id", task.ID)
		}
		return
	}

	if err != nil {
		w.logger.Error("Task execution failed",
			"error", err, "task_id", task.ID, "kind", task.Kind, "attempt", task.Attempts)
		if rerr := w.tasks.Retry(ctx, task.ID, time.Now().UTC().Add(retryBackoff), err.Error()); rerr != nil {
			w.logger.Error("Failed to reschedule task", "error", rerr, "task_id", task.ID)
		}
		return
	}

	if err := w.tasks.Complete(ctx, task.ID); err != nil {
		w.logger.Error("Failed to mark task completed", "error", err, "task_id", task.ID)
	}
}
