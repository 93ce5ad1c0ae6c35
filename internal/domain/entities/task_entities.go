package entities

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of a scheduled task
type TaskStatus string

const (
	TaskStatusScheduled TaskStatus = "scheduled"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// TaskKind identifies what a scheduled task does when it fires
type TaskKind string

const (
	TaskKindTransferBatch TaskKind = "transfer_batch"
)

// ScheduledTask is a durable delayed task. The task worker claims due
// tasks and executes them; a transiently failing task is pushed back with
// a new run time until its attempt budget runs out.
type ScheduledTask struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	Kind        TaskKind        `db:"kind" json:"kind"`
	Payload     json.RawMessage `db:"payload" json:"payload"`
	RunAt       time.Time       `db:"run_at" json:"run_at"`
	Status      TaskStatus      `db:"status" json:"status"`
	Attempts    uint32          `db:"attempts" json:"attempts"`
	MaxAttempts uint32          `db:"max_attempts" json:"max_attempts"`
	LastError   *string         `db:"last_error" json:"last_error,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// NewScheduledTask builds a task due at runAt
func NewScheduledTask(kind TaskKind, payload json.RawMessage, runAt time.Time, maxAttempts uint32) *ScheduledTask {
	now := time.Now().UTC()
	return &ScheduledTask{
		ID:          uuid.New(),
		Kind:        kind,
		Payload:     payload,
		RunAt:       runAt,
		Status:      TaskStatusScheduled,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// TransferBatchPayload is the payload of a transfer_batch task
type TransferBatchPayload struct {
	From         string `json:"from"`
	To           string `json:"to"`
	Amount       string `json:"amount"`
	TxHash       string `json:"tx_hash"`
	BlockNumber  uint64 `json:"block_number"`
	BatchIndex   uint32 `json:"batch_index"`
	TotalBatches uint32 `json:"total_batches"`
	TotalAmount  string `json:"total_amount"`
	IsLast       bool   `json:"is_last"`
}
