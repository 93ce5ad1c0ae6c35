package entities

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TransactionType identifies the kind of outbound ledger mutation
type TransactionType string

const (
	TxTypeCreateContract TransactionType = "create_contract"
	TxTypeRegisterSale   TransactionType = "register_sale"
	TxTypeStakeTokens    TransactionType = "stake_tokens"
)

// Validate checks if the transaction type has a registered executor
func (t TransactionType) Validate() error {
	switch t {
	case TxTypeCreateContract, TxTypeRegisterSale, TxTypeStakeTokens:
		return nil
	default:
		return fmt.Errorf("unknown transaction type: %s", t)
	}
}

// TransactionStatus is the queue state of an outbound transaction
type TransactionStatus string

const (
	TxStatusPending   TransactionStatus = "pending"
	TxStatusCompleted TransactionStatus = "completed"
	TxStatusFailed    TransactionStatus = "failed"
)

// IsTerminal reports whether the worker may still act on this status
func (s TransactionStatus) IsTerminal() bool {
	return s == TxStatusCompleted || s == TxStatusFailed
}

// QueuedTransaction is a durable, retryable outbound ledger mutation.
// The worker mutates status, attempts, last attempt time and result in
// place until the entry reaches a terminal state.
type QueuedTransaction struct {
	ID            uuid.UUID         `db:"id" json:"id"`
	Type          TransactionType   `db:"tx_type" json:"tx_type"`
	Data          json.RawMessage   `db:"data" json:"data"`
	Status        TransactionStatus `db:"status" json:"status"`
	Attempts      uint32            `db:"attempts" json:"attempts"`
	MaxAttempts   uint32            `db:"max_attempts" json:"max_attempts"`
	QueuedAt      time.Time         `db:"queued_at" json:"queued_at"`
	LastAttemptAt *time.Time        `db:"last_attempt_at" json:"last_attempt_at,omitempty"`
	Result        json.RawMessage   `db:"result" json:"result,omitempty"`
	FailureReason *string           `db:"failure_reason" json:"failure_reason,omitempty"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updated_at"`
}

// NewQueuedTransaction builds a pending entry ready for the durable store
func NewQueuedTransaction(txType TransactionType, data json.RawMessage, maxAttempts uint32) *QueuedTransaction {
	now := time.Now().UTC()
	return &QueuedTransaction{
		ID:          uuid.New(),
		Type:        txType,
		Data:        data,
		Status:      TxStatusPending,
		MaxAttempts: maxAttempts,
		QueuedAt:    now,
		UpdatedAt:   now,
	}
}

// Eligible reports whether the worker should attempt this entry now.
// Entries inside the cooldown window since their last attempt are skipped,
// as are terminal entries.
func (q *QueuedTransaction) Eligible(now time.Time, cooldown time.Duration) bool {
	if q.Status.IsTerminal() {
		return false
	}
	if q.LastAttemptAt != nil && now.Sub(*q.LastAttemptAt) < cooldown {
		return false
	}
	return true
}

// ExhaustedAttempts reports whether the entry has used up its attempt budget
func (q *QueuedTransaction) ExhaustedAttempts() bool {
	return q.Attempts >= q.MaxAttempts
}

// MarkAttempt records the start of an executor attempt
func (q *QueuedTransaction) MarkAttempt(now time.Time) {
	q.Attempts++
	q.LastAttemptAt = &now
	q.UpdatedAt = now
}

// MarkCompleted moves the entry to its terminal success state
func (q *QueuedTransaction) MarkCompleted(result json.RawMessage) {
	q.Status = TxStatusCompleted
	q.Result = result
	q.UpdatedAt = time.Now().UTC()
}

// MarkFailed moves the entry to its terminal failure state
func (q *QueuedTransaction) MarkFailed(reason string) {
	q.Status = TxStatusFailed
	q.FailureReason = &reason
	q.UpdatedAt = time.Now().UTC()
}

// CreateContractData is the payload of a create_contract entry
type CreateContractData struct {
	AssetID      int64           `json:"asset_id"`
	ContractData json.RawMessage `json:"contract_data"`
}

// RegisterSaleData is the payload of a register_sale entry
type RegisterSaleData struct {
	ContractID    string `json:"contract_id"`
	SellerAddress string `json:"seller_address"`
	BuyerAddress  string `json:"buyer_address"`
	Price         string `json:"price"`
	Currency      string `json:"currency"`
}

// StakeTokensData is the payload of a stake_tokens entry
type StakeTokensData struct {
	WalletAddress string `json:"wallet_address"`
	Amount        string `json:"amount"`
}
