package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransferRecord is one applied token transfer in the append-only mirror
// log. Batched transfers produce one record per chunk, distinguished by
// BatchIndex; records are never mutated after insert.
type TransferRecord struct {
	ID           int64           `db:"id" json:"id"`
	FromAddress  string          `db:"from_address" json:"from_address"`
	ToAddress    string          `db:"to_address" json:"to_address"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	TxHash       string          `db:"tx_hash" json:"tx_hash"`
	BlockNumber  uint64          `db:"block_number" json:"block_number"`
	BatchIndex   *uint32         `db:"batch_index" json:"batch_index,omitempty"`
	TotalBatches *uint32         `db:"total_batches" json:"total_batches,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// IsBatched reports whether this record is a chunk of a split transfer
func (t *TransferRecord) IsBatched() bool {
	return t.BatchIndex != nil
}

// BalanceAdjustment is one signed cached-balance delta, applied in the
// same transaction as the transfer record that caused it.
type BalanceAdjustment struct {
	Address string
	Delta   decimal.Decimal
}

// WalletBinding maps a marketplace user to a verified ledger address.
// Owned by the user-management side; the reconciliation core only reads it
// and refreshes the cached balance column.
type WalletBinding struct {
	UserID        int64           `db:"user_id" json:"user_id"`
	WalletAddress string          `db:"wallet_address" json:"wallet_address"`
	Verified      bool            `db:"verified" json:"verified"`
	Balance       decimal.Decimal `db:"balance" json:"balance"`
	BalanceAt     *time.Time      `db:"balance_at" json:"balance_at,omitempty"`
}

// SaleRecord is one recorded marketplace sale. Seller/buyer user ids are
// zero when the ledger address has no verified binding.
type SaleRecord struct {
	ID           int64           `db:"id" json:"id"`
	TokenID      string          `db:"token_id" json:"token_id"`
	SellerUserID int64           `db:"seller_user_id" json:"seller_user_id"`
	BuyerUserID  int64           `db:"buyer_user_id" json:"buyer_user_id"`
	Price        decimal.Decimal `db:"price" json:"price"`
	Currency     string          `db:"currency" json:"currency"`
	TxHash       string          `db:"tx_hash" json:"tx_hash"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}
