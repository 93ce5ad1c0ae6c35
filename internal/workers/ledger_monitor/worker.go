// Package ledger_monitor probes the ledger service periodically and
// alerts the operator when it transitions to unhealthy.
package ledger_monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/vortex-market/tola-sync/internal/adapters/tola"
	"github.com/vortex-market/tola-sync/internal/domain/services/notify"
	"github.com/vortex-market/tola-sync/pkg/logger"
)

// Worker probes ledger health on a schedule
type Worker struct {
	ledger   *tola.Client
	notifier notify.Notifier
	cron     *cron.Cron
	logger   *logger.Logger

	mu        sync.Mutex
	unhealthy bool
}

// NewWorker creates a ledger monitor
func NewWorker(ledger *tola.Client, notifier notify.Notifier, log *logger.Logger) *Worker {
	return &Worker{
		ledger:   ledger,
		notifier: notifier,
		cron:     cron.New(),
		logger:   log,
	}
}

// Start schedules the probe every five minutes
func (w *Worker) Start() error {
	_, err := w.cron.AddFunc("*/5 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		w.probe(ctx)
	})
	if err != nil {
		return err
	}

	w.cron.Start()
	w.logger.Info("Ledger monitor started")
	return nil
}

// Stop halts the probe schedule
func (w *Worker) Stop() {
	w.cron.Stop()
	w.logger.Info("Ledger monitor stopped")
}

// probe alerts only on the healthy-to-unhealthy transition so a long
// outage produces one notification, not one per probe.
func (w *Worker) probe(ctx context.Context) {
	status, err := w.ledger.GetStatus(ctx)
	healthy := err == nil && status.Healthy

	w.mu.Lock()
	transitioned := healthy == w.unhealthy
	w.unhealthy = !healthy
	w.mu.Unlock()

	if !transitioned {
		return
	}

	if healthy {
		w.logger.Info("Ledger service recovered")
		return
	}

	detail := "Ledger service reported unhealthy status"
	if err != nil {
		detail = fmt.Sprintf("Ledger service unreachable: %v", err)
	}
	w.logger.Error("Ledger service unhealthy", "error", err)
	w.notifier.Anomaly(ctx, "TOLA Ledger Service Unhealthy", detail)
}
