package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/vortex-market/tola-sync/internal/domain/entities"
	"github.com/vortex-market/tola-sync/pkg/logger"
)

// ScheduledTaskRepository is the durable delayed-task store
type ScheduledTaskRepository struct {
	db     *sqlx.DB
	logger *logger.Logger
}

// NewScheduledTaskRepository creates a scheduled task repository
func NewScheduledTaskRepository(db *sqlx.DB, log *logger.Logger) *ScheduledTaskRepository {
	return &ScheduledTaskRepository{db: db, logger: log}
}

// Schedule durably stores a task due at its run_at time
func (r *ScheduledTaskRepository) Schedule(ctx context.Context, task *entities.ScheduledTask) error {
	query := `
		INSERT INTO scheduled_tasks (
			id, kind, payload, run_at, status, attempts, max_attempts,
			last_error, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query,
		task.ID,
		string(task.Kind),
		[]byte(task.Payload),
		task.RunAt,
		string(task.Status),
		task.Attempts,
		task.MaxAttempts,
		task.LastError,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to schedule task: %w", err)
	}

	r.logger.Debug("Task scheduled", "id", task.ID, "kind", task.Kind, "run_at", task.RunAt)
	return nil
}

// ClaimDue atomically claims up to limit due tasks, bumping attempts so
// concurrent pollers never run the same task twice.
func (r *ScheduledTaskRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*entities.ScheduledTask, error) {
	query := `
		UPDATE scheduled_tasks
		SET attempts = attempts + 1,
		    updated_at = NOW()
		WHERE id IN (
			SELECT id FROM scheduled_tasks
			WHERE status = 'scheduled'
			  AND run_at <= $1
			ORDER BY run_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, kind, payload, run_at, status, attempts, max_attempts,
		          last_error, created_at, updated_at`

	rows, err := r.db.QueryxContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim due tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*entities.ScheduledTask
	for rows.Next() {
		var task entities.ScheduledTask
		if err := rows.StructScan(&task); err != nil {
			r.logger.Error("Failed to scan claimed task", "error", err)
			continue
		}
		tasks = append(tasks, &task)
	}
	return tasks, rows.Err()
}

// Complete marks a task as successfully executed
func (r *ScheduledTaskRepository) Complete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_tasks
		SET status = 'completed', updated_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to complete task: %w", err)
	}
	return nil
}

// Retry pushes a transiently failed task back onto the schedule, or marks
// it failed once its attempt budget is spent.
func (r *ScheduledTaskRepository) Retry(ctx context.Context, id uuid.UUID, runAt time.Time, taskErr string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_tasks
		SET run_at = $1, last_error = $2, updated_at = NOW()
		WHERE id = $3 AND attempts < max_attempts`,
		runAt, taskErr, id)
	if err != nil {
		return fmt.Errorf("failed to retry task: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		_, err = r.db.ExecContext(ctx, `
			UPDATE scheduled_tasks
			SET status = 'failed', last_error = $1, updated_at = NOW()
			WHERE id = $2`, taskErr, id)
		if err != nil {
			return fmt.Errorf("failed to mark task failed: %w", err)
		}
		r.logger.Warn("Task failed after max attempts", "id", id, "error", taskErr)
	}
	return nil
}
