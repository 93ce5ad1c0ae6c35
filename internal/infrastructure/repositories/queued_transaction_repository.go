package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/vortex-market/tola-sync/internal/domain/entities"
	"github.com/vortex-market/tola-sync/pkg/logger"
)

// QueuedTransactionRepository is the durable outbound transaction queue
type QueuedTransactionRepository struct {
	db     *sqlx.DB
	logger *logger.Logger
}

// NewQueuedTransactionRepository creates a queue repository
func NewQueuedTransactionRepository(db *sqlx.DB, log *logger.Logger) *QueuedTransactionRepository {
	return &QueuedTransactionRepository{db: db, logger: log}
}

// Enqueue durably stores a new pending transaction
func (r *QueuedTransactionRepository) Enqueue(ctx context.Context, tx *entities.QueuedTransaction) error {
	query := `
		INSERT INTO queued_transactions (
			id, tx_type, data, status, attempts, max_attempts,
			queued_at, last_attempt_at, result, failure_reason, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.ExecContext(ctx, query,
		tx.ID,
		string(tx.Type),
		[]byte(tx.Data),
		string(tx.Status),
		tx.Attempts,
		tx.MaxAttempts,
		tx.QueuedAt,
		tx.LastAttemptAt,
		nullableJSON(tx.Result),
		tx.FailureReason,
		tx.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue transaction: %w", err)
	}

	r.logger.Info("Transaction enqueued", "id", tx.ID, "tx_type", tx.Type)
	return nil
}

// GetByID retrieves a queue entry
func (r *QueuedTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.QueuedTransaction, error) {
	query := `
		SELECT id, tx_type, data, status, attempts, max_attempts,
		       queued_at, last_attempt_at, result, failure_reason, updated_at
		FROM queued_transactions
		WHERE id = $1`

	var tx entities.QueuedTransaction
	err := r.db.GetContext(ctx, &tx, query, id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("queued transaction not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queued transaction: %w", err)
	}
	return &tx, nil
}

// ClaimEligible atomically claims up to limit pending entries outside the
// cooldown window. Attempts and last_attempt_at are bumped in the claiming
// statement itself, so an entry can never be handed to two concurrent
// workers: the second claimer's row-level lock waits, then its WHERE no
// longer matches.
func (r *QueuedTransactionRepository) ClaimEligible(ctx context.Context, limit int, cooldown time.Duration) ([]*entities.QueuedTransaction, error) {
	query := `
		UPDATE queued_transactions
		SET attempts = attempts + 1,
		    last_attempt_at = NOW(),
		    updated_at = NOW()
		WHERE id IN (
			SELECT id FROM queued_transactions
			WHERE status = 'pending'
			  AND attempts < max_attempts
			  AND (last_attempt_at IS NULL OR last_attempt_at <= NOW() - $1::interval)
			ORDER BY queued_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, tx_type, data, status, attempts, max_attempts,
		          queued_at, last_attempt_at, result, failure_reason, updated_at`

	interval := fmt.Sprintf("%d seconds", int(cooldown.Seconds()))

	rows, err := r.db.QueryxContext(ctx, query, interval, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim queue entries: %w", err)
	}
	defer rows.Close()

	var claimed []*entities.QueuedTransaction
	for rows.Next() {
		var tx entities.QueuedTransaction
		if err := rows.StructScan(&tx); err != nil {
			r.logger.Error("Failed to scan claimed entry", "error", err)
			continue
		}
		claimed = append(claimed, &tx)
	}
	return claimed, rows.Err()
}

// Update writes back a processed entry's terminal fields
func (r *QueuedTransactionRepository) Update(ctx context.Context, tx *entities.QueuedTransaction) error {
	query := `
		UPDATE queued_transactions
		SET status = $1,
		    result = $2,
		    failure_reason = $3,
		    updated_at = $4
		WHERE id = $5`

	result, err := r.db.ExecContext(ctx, query,
		string(tx.Status),
		nullableJSON(tx.Result),
		tx.FailureReason,
		tx.UpdatedAt,
		tx.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update queued transaction: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("queued transaction not found: %s", tx.ID)
	}
	return nil
}

// FailExhausted transitions pending entries past their attempt budget to
// the terminal failed state.
func (r *QueuedTransactionRepository) FailExhausted(ctx context.Context, reason string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE queued_transactions
		SET status = 'failed', failure_reason = $1, updated_at = NOW()
		WHERE status = 'pending' AND attempts >= max_attempts`,
		reason)
	if err != nil {
		return 0, fmt.Errorf("failed to fail exhausted entries: %w", err)
	}
	return result.RowsAffected()
}

// CountByStatus returns queue depth per status
func (r *QueuedTransactionRepository) CountByStatus(ctx context.Context) (map[entities.TransactionStatus]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM queued_transactions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count queue entries: %w", err)
	}
	defer rows.Close()

	counts := make(map[entities.TransactionStatus]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan queue count: %w", err)
		}
		counts[entities.TransactionStatus(status)] = count
	}
	return counts, rows.Err()
}

// nullableJSON maps empty payloads to SQL NULL
func nullableJSON(data []byte) interface{} {
	if len(data) == 0 {
		return nil
	}
	return []byte(data)
}
