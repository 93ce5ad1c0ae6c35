// Package queue runs the outbound transaction queue: writes destined for
// the TOLA ledger are enqueued durably, claimed in small drains, and
// retried with a cooldown until they complete or exhaust their attempts.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vortex-market/tola-sync/internal/domain/entities"
	"github.com/vortex-market/tola-sync/internal/domain/repositories"
	"github.com/vortex-market/tola-sync/pkg/logger"
	"github.com/vortex-market/tola-sync/pkg/metrics"
)

// Executor performs one queued transaction against the ledger and
// returns the result payload to persist.
type Executor func(ctx context.Context, tx *entities.QueuedTransaction) (json.RawMessage, error)

// Config holds queue policy
type Config struct {
	// MaxAttempts bounds executions per transaction.
	MaxAttempts int
	// RetryCooldown is the minimum gap between attempts on one transaction.
	RetryCooldown time.Duration
	// DrainLimit caps transactions claimed per processing run.
	DrainLimit int
}

// Service drives the outbound transaction queue
type Service struct {
	config    Config
	txns      repositories.QueuedTransactionRepository
	executors map[entities.TransactionType]Executor
	logger    *logger.Logger
}

// NewService creates a queue service with no executors registered
func NewService(config Config, txns repositories.QueuedTransactionRepository, log *logger.Logger) *Service {
	return &Service{
		config:    config,
		txns:      txns,
		executors: make(map[entities.TransactionType]Executor),
		logger:    log,
	}
}

// RegisterExecutor binds an executor to a transaction type
func (s *Service) RegisterExecutor(txType entities.TransactionType, exec Executor) {
	s.executors[txType] = exec
}

// Enqueue adds a transaction to the queue and returns its id
func (s *Service) Enqueue(ctx context.Context, txType entities.TransactionType, data json.RawMessage) (uuid.UUID, error) {
	if _, ok := s.executors[txType]; !ok {
		return uuid.Nil, fmt.Errorf("no executor registered for transaction type %s", txType)
	}

	tx := entities.NewQueuedTransaction(txType, data, uint32(s.config.MaxAttempts))
	if err := s.txns.Enqueue(ctx, tx); err != nil {
		return uuid.Nil, fmt.Errorf("failed to enqueue %s transaction: %w", txType, err)
	}

	s.logger.Info("Transaction enqueued", "tx_id", tx.ID, "type", txType)
	return tx.ID, nil
}

// ProcessQueue drains one round of the queue: transactions out of
// attempts are failed, then up to DrainLimit eligible ones are claimed
// (which counts the attempt) and executed. Returns how many were
// executed. Claiming before executing means a crash mid-run costs an
// attempt rather than risking a double execution.
func (s *Service) ProcessQueue(ctx context.Context) (int, error) {
	exhausted, err := s.txns.FailExhausted(ctx, "Max attempts reached")
	if err != nil {
		return 0, fmt.Errorf("failed to retire exhausted transactions: %w", err)
	}
	if exhausted > 0 {
		s.logger.Warn("Transactions failed after exhausting attempts", "count", exhausted)
	}

	claimed, err := s.txns.ClaimEligible(ctx, s.config.DrainLimit, s.config.RetryCooldown)
	if err != nil {
		return 0, fmt.Errorf("failed to claim transactions: %w", err)
	}

	for _, tx := range claimed {
		s.execute(ctx, tx)
	}

	s.updateDepthGauges(ctx)
	return len(claimed), nil
}

func (s *Service) execute(ctx context.Context, tx *entities.QueuedTransaction) {
	exec, ok := s.executors[tx.Type]
	if !ok {
		// Nothing will ever run this; retrying is pointless
		tx.MarkFailed(fmt.Sprintf("no executor for type %s", tx.Type))
		if err := s.txns.Update(ctx, tx); err != nil {
			s.logger.Error("Failed to fail unexecutable transaction", "error", err, "tx_id", tx.ID)
		}
		metrics.QueueAttempts.WithLabelValues(string(tx.Type), "no_executor").Inc()
		return
	}

	result, execErr := exec(ctx, tx)
	if execErr != nil {
		s.logger.Error("Transaction attempt failed",
			"error", execErr, "tx_id", tx.ID, "type", tx.Type,
			"attempt", tx.Attempts, "max_attempts", tx.MaxAttempts)
		metrics.QueueAttempts.WithLabelValues(string(tx.Type), "error").Inc()

		if tx.ExhaustedAttempts() {
			tx.MarkFailed("Max attempts reached")
			if err := s.txns.Update(ctx, tx); err != nil {
				s.logger.Error("Failed to mark transaction failed", "error", err, "tx_id", tx.ID)
			}
		}
		// Otherwise leave it pending; the cooldown gates the next attempt
		return
	}

	tx.MarkCompleted(result)
	if err := s.txns.Update(ctx, tx); err != nil {
		s.logger.Error("Failed to mark transaction completed", "error", err, "tx_id", tx.ID)
		return
	}
	metrics.QueueAttempts.WithLabelValues(string(tx.Type), "ok").Inc()
	s.logger.Info("Transaction completed", "tx_id", tx.ID, "type", tx.Type, "attempts", tx.Attempts)
}

// Status reports queue depth by status
func (s *Service) Status(ctx context.Context) (map[entities.TransactionStatus]int64, error) {
	counts, err := s.txns.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count queue entries: %w", err)
	}
	for _, status := range []entities.TransactionStatus{
		entities.TxStatusPending, entities.TxStatusCompleted, entities.TxStatusFailed,
	} {
		if _, ok := counts[status]; !ok {
			counts[status] = 0
		}
	}
	return counts, nil
}

func (s *Service) updateDepthGauges(ctx context.Context) {
	counts, err := s.Status(ctx)
	if err != nil {
		s.logger.Warn("Failed to update queue depth gauges", "error", err)
		return
	}
	for status, n := range counts {
		metrics.QueueDepth.WithLabelValues(string(status)).Set(float64(n))
	}
}
