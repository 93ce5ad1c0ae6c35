// Package batch splits large token transfers into fixed-size chunks and
// schedules them as durable tasks with staggered run times, so a single
// oversized ledger event never lands on the mirror in one write.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vortex-market/tola-sync/internal/domain/entities"
	"github.com/vortex-market/tola-sync/internal/domain/repositories"
	"github.com/vortex-market/tola-sync/pkg/logger"
	"github.com/vortex-market/tola-sync/pkg/metrics"
)

// ChunkApplier applies a single transfer chunk to the mirror
type ChunkApplier interface {
	ApplyBatch(ctx context.Context, payload *entities.TransferBatchPayload) error
}

// Notifier reports a completed large transfer to the operator
type Notifier interface {
	LargeTransferComplete(ctx context.Context, from, to string, total decimal.Decimal, batches uint32, txHash string)
}

// MetricsRefresher recomputes marketplace metrics after the final chunk
// of a large transfer lands.
type MetricsRefresher interface {
	RefreshMetrics(ctx context.Context) error
}

// Config holds the batching policy
type Config struct {
	// BatchSize is the amount of tokens per chunk.
	BatchSize decimal.Decimal
	// InterBatchDelay spaces consecutive chunk run times apart.
	InterBatchDelay time.Duration
	// TaskMaxAttempts bounds retries per chunk task.
	TaskMaxAttempts int
}

// Scheduler plans and executes transfer batches
type Scheduler struct {
	config   Config
	tasks    repositories.TaskRepository
	applier  ChunkApplier
	notifier Notifier
	refresh  MetricsRefresher
	logger   *logger.Logger
}

// NewScheduler creates a batch scheduler. The applier, notifier and
// refresher are only needed for execution; a planner-only caller may
// still pass them so the same instance serves both sides.
func NewScheduler(
	config Config,
	tasks repositories.TaskRepository,
	applier ChunkApplier,
	notifier Notifier,
	refresh MetricsRefresher,
	log *logger.Logger,
) *Scheduler {
	return &Scheduler{
		config:   config,
		tasks:    tasks,
		applier:  applier,
		notifier: notifier,
		refresh:  refresh,
		logger:   log,
	}
}

// SetApplier breaks the construction cycle between the scheduler and the
// reconciler: the scheduler is built first, then receives the reconciler.
func (s *Scheduler) SetApplier(applier ChunkApplier) {
	s.applier = applier
}

// ScheduleBatches splits totalAmount into ceil(total/batchSize) chunks of
// batchSize each, the last chunk carrying the remainder, and schedules
// chunk i to run i*InterBatchDelay from now.
func (s *Scheduler) ScheduleBatches(ctx context.Context, from, to string, totalAmount decimal.Decimal, txHash string, blockNumber uint64) error {
	if totalAmount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("total amount must be positive, got %s", totalAmount)
	}
	// Div panics on a zero divisor; refuse before touching the task store
	if s.config.BatchSize.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("batch size must be positive, got %s", s.config.BatchSize)
	}

	count := uint32(totalAmount.Div(s.config.BatchSize).Ceil().IntPart())
	if count == 0 {
		count = 1
	}

	now := time.Now().UTC()
	for i := uint32(0); i < count; i++ {
		amount := s.config.BatchSize
		if i == count-1 {
			// Last chunk takes whatever is left so the chunks sum exactly
			amount = totalAmount.Sub(s.config.BatchSize.Mul(decimal.NewFromInt(int64(count - 1))))
		}

		payload := entities.TransferBatchPayload{
			From:         from,
			To:           to,
			Amount:       amount.String(),
			TxHash:       txHash,
			BlockNumber:  blockNumber,
			BatchIndex:   i,
			TotalBatches: count,
			TotalAmount:  totalAmount.String(),
			IsLast:       i == count-1,
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode batch payload: %w", err)
		}

		task := entities.NewScheduledTask(
			entities.TaskKindTransferBatch,
			raw,
			now.Add(time.Duration(i)*s.config.InterBatchDelay),
			uint32(s.config.TaskMaxAttempts),
		)
		if err := s.tasks.Schedule(ctx, task); err != nil {
			return fmt.Errorf("failed to schedule batch %d/%d: %w", i+1, count, err)
		}
		metrics.BatchesScheduled.Inc()
	}

	s.logger.Info("Large transfer split into batches",
		"tx_hash", txHash, "total", totalAmount, "batches", count, "batch_size", s.config.BatchSize)
	return nil
}

// ExecuteBatch runs one scheduled transfer_batch task: apply the chunk,
// and on the final chunk refresh marketplace metrics and notify the
// operator. Post-completion side effects never fail the task; the chunk
// itself is already applied and a retry would double it up.
func (s *Scheduler) ExecuteBatch(ctx context.Context, raw json.RawMessage) error {
	var payload entities.TransferBatchPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("malformed batch payload: %w", err)
	}

	if err := s.applier.ApplyBatch(ctx, &payload); err != nil {
		return fmt.Errorf("failed to apply batch %d/%d of %s: %w",
			payload.BatchIndex+1, payload.TotalBatches, payload.TxHash, err)
	}

	if payload.IsLast {
		s.finishTransfer(ctx, &payload)
	}
	return nil
}

func (s *Scheduler) finishTransfer(ctx context.Context, payload *entities.TransferBatchPayload) {
	if s.refresh != nil {
		if err := s.refresh.RefreshMetrics(ctx); err != nil {
			s.logger.Error("Failed to refresh metrics after large transfer",
				"error", err, "tx_hash", payload.TxHash)
		}
	}

	total, err := decimal.NewFromString(payload.TotalAmount)
	if err != nil {
		s.logger.Error("Malformed total amount in final batch", "error", err, "tx_hash", payload.TxHash)
		return
	}
	if s.notifier != nil {
		s.notifier.LargeTransferComplete(ctx, payload.From, payload.To, total, payload.TotalBatches, payload.TxHash)
	}

	s.logger.Info("Large transfer fully applied",
		"tx_hash", payload.TxHash, "total", payload.TotalAmount, "batches", payload.TotalBatches)
}
