package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vortex-market/tola-sync/internal/domain/entities"
)

// TransferRepository persists the append-only transfer log.
type TransferRepository interface {
	// Insert appends a transfer record. Returns (false, nil) when a record
	// with the same (tx_hash, batch_index) already exists.
	Insert(ctx context.Context, record *entities.TransferRecord) (bool, error)
	// InsertWithAdjustments appends a transfer record and applies the given
	// cached-balance deltas in one transaction: either the record and every
	// adjustment land, or nothing does. A (tx_hash, batch_index) replay
	// returns (false, nil) and touches no balance.
	InsertWithAdjustments(ctx context.Context, record *entities.TransferRecord, adjustments []entities.BalanceAdjustment) (bool, error)
	GetByTxHash(ctx context.Context, txHash string) ([]*entities.TransferRecord, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
}

// WalletBindingRepository reads the user/address mapping owned by the
// user-management collaborator and refreshes cached balances.
type WalletBindingRepository interface {
	GetByAddress(ctx context.Context, address string) (*entities.WalletBinding, error)
	SetBalance(ctx context.Context, address string, balance decimal.Decimal) error
}

// QueuedTransactionRepository is the durable outbound transaction queue.
type QueuedTransactionRepository interface {
	Enqueue(ctx context.Context, tx *entities.QueuedTransaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.QueuedTransaction, error)
	// ClaimEligible atomically claims up to limit pending entries whose last
	// attempt is older than cooldown, bumping attempts and last_attempt_at
	// in the same statement so concurrent workers never double-execute.
	ClaimEligible(ctx context.Context, limit int, cooldown time.Duration) ([]*entities.QueuedTransaction, error)
	Update(ctx context.Context, tx *entities.QueuedTransaction) error
	// FailExhausted force-fails pending entries that have used their attempt
	// budget and returns how many were transitioned.
	FailExhausted(ctx context.Context, reason string) (int64, error)
	CountByStatus(ctx context.Context) (map[entities.TransactionStatus]int64, error)
}

// AssetContractRepository mirrors on-ledger contract state per asset.
type AssetContractRepository interface {
	Upsert(ctx context.Context, record *entities.AssetContractRecord) error
	GetByAssetID(ctx context.Context, assetID int64) (*entities.AssetContractRecord, error)
	GetByContractID(ctx context.Context, contractID string) (*entities.AssetContractRecord, error)
	GetByTokenID(ctx context.Context, tokenID string) (*entities.AssetContractRecord, error)
	// UpdateStatus applies a status transition plus optional ledger
	// identifiers; implementations must reject non-monotonic transitions.
	UpdateStatus(ctx context.Context, assetID int64, status entities.ContractStatus, contractID, tokenID, contractHash *string) error
	SetOwner(ctx context.Context, tokenID string, ownerUserID int64, lastSalePrice decimal.Decimal) error
}

// SaleRepository records marketplace sales observed on the ledger.
type SaleRepository interface {
	// Insert appends a sale. Returns (false, nil) on a tx_hash replay.
	Insert(ctx context.Context, sale *entities.SaleRecord) (bool, error)
}

// TaskRepository is the durable delayed-task store backing the batch
// scheduler.
type TaskRepository interface {
	Schedule(ctx context.Context, task *entities.ScheduledTask) error
	// ClaimDue atomically claims up to limit tasks whose run_at has passed,
	// bumping attempts so concurrent pollers never run the same task twice.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*entities.ScheduledTask, error)
	Complete(ctx context.Context, id uuid.UUID) error
	// Retry pushes a failed task back with a new run time, or marks it
	// failed when its attempt budget is spent.
	Retry(ctx context.Context, id uuid.UUID, runAt time.Time, taskErr string) error
}
