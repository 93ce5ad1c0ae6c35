package entities

import (
	"encoding/json"
	"time"
)

// ContractStatus tracks how far an asset has progressed on the ledger.
// Transitions are monotonic except failed, which is terminal for the
// attempt; retrying means enqueueing a fresh create_contract entry.
type ContractStatus string

const (
	ContractStatusPending     ContractStatus = "pending"
	ContractStatusMinted      ContractStatus = "minted"
	ContractStatusTransferred ContractStatus = "transferred"
	ContractStatusFailed      ContractStatus = "failed"
)

// rank orders the monotonic statuses; failed sits outside the ladder
func (s ContractStatus) rank() int {
	switch s {
	case ContractStatusPending:
		return 0
	case ContractStatusMinted:
		return 1
	case ContractStatusTransferred:
		return 2
	default:
		return -1
	}
}

// CanTransitionTo reports whether moving to next keeps the monotonic
// ordering. Any status may move to failed.
func (s ContractStatus) CanTransitionTo(next ContractStatus) bool {
	if next == ContractStatusFailed {
		return true
	}
	if s == ContractStatusFailed {
		return false
	}
	return next.rank() > s.rank()
}

// AssetContractRecord mirrors an asset's on-ledger contract state.
// Keyed by the marketplace asset id; the contract and token ids appear
// once the ledger confirms the mint.
type AssetContractRecord struct {
	AssetID       int64           `db:"asset_id" json:"asset_id"`
	ContractID    *string         `db:"contract_id" json:"contract_id,omitempty"`
	TokenID       *string         `db:"token_id" json:"token_id,omitempty"`
	ContractHash  *string         `db:"contract_hash" json:"contract_hash,omitempty"`
	Status        ContractStatus  `db:"status" json:"status"`
	Metadata      json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	Verified      bool            `db:"verified" json:"verified"`
	OwnerUserID   *int64          `db:"owner_user_id" json:"owner_user_id,omitempty"`
	LastUpdatedAt time.Time       `db:"last_updated_at" json:"last_updated_at"`
}
