// Package queue_worker drains the outbound transaction queue on a cron
// schedule.
package queue_worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/vortex-market/tola-sync/internal/domain/services/queue"
	"github.com/vortex-market/tola-sync/pkg/logger"
)

// Worker runs periodic queue drains
type Worker struct {
	queueService *queue.Service
	spec         string
	cron         *cron.Cron
	logger       *logger.Logger
}

// NewWorker creates a queue worker. spec is a standard 5-field cron
// expression; every minute by default.
func NewWorker(queueService *queue.Service, spec string, log *logger.Logger) *Worker {
	return &Worker{
		queueService: queueService,
		spec:         spec,
		cron:         cron.New(),
		logger:       log,
	}
}

// Start schedules the drain and begins the cron loop
func (w *Worker) Start() error {
	_, err := w.cron.AddFunc(w.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		executed, err := w.queueService.ProcessQueue(ctx)
		if err != nil {
			w.logger.Error("Queue drain failed", "error", err)
			return
		}
		if executed > 0 {
			w.logger.Info("Queue drained", "executed", executed)
		}
	})
	if err != nil {
		return err
	}

	w.cron.Start()
	w.logger.Info("Queue worker started", "spec", w.spec)
	return nil
}

// Stop halts the cron loop; a running drain finishes its entries
func (w *Worker) Stop() {
	w.cron.Stop()
	w.logger.Info("Queue worker stopped")
}
