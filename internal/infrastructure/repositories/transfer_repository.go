package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/vortex-market/tola-sync/internal/domain/entities"
	"github.com/vortex-market/tola-sync/pkg/logger"
)

// TransferRepository persists the append-only token transfer log
type TransferRepository struct {
	db     *sqlx.DB
	logger *logger.Logger
}

// NewTransferRepository creates a transfer repository
func NewTransferRepository(db *sqlx.DB, log *logger.Logger) *TransferRepository {
	return &TransferRepository{db: db, logger: log}
}

// Insert appends a transfer record. The dedupe index on
// (tx_hash, batch_index) absorbs webhook redelivery: a conflicting insert
// returns (false, nil) and writes nothing.
func (r *TransferRepository) Insert(ctx context.Context, record *entities.TransferRecord) (bool, error) {
	return r.InsertWithAdjustments(ctx, record, nil)
}

// InsertWithAdjustments appends a transfer record and applies the given
// cached-balance deltas in a single transaction, so a crash can never
// leave the record without its balance effects or the reverse. A replayed
// (tx_hash, batch_index) rolls back and returns (false, nil).
func (r *TransferRepository) InsertWithAdjustments(ctx context.Context, record *entities.TransferRecord, adjustments []entities.BalanceAdjustment) (bool, error) {
	query := `
		INSERT INTO token_transfers (
			from_address, to_address, amount, tx_hash, block_number,
			batch_index, total_batches, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tx_hash, (COALESCE(batch_index, -1))) DO NOTHING
		RETURNING id`

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, query,
		record.FromAddress,
		record.ToAddress,
		record.Amount,
		record.TxHash,
		record.BlockNumber,
		record.BatchIndex,
		record.TotalBatches,
		record.CreatedAt,
	).Scan(&record.ID)

	if err == sql.ErrNoRows {
		r.logger.Debug("Transfer already recorded, skipping", "tx_hash", record.TxHash, "batch_index", record.BatchIndex)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert transfer: %w", err)
	}

	for _, adj := range adjustments {
		_, err := tx.ExecContext(ctx, `
			UPDATE wallet_bindings
			SET balance = balance + $1, balance_at = NOW()
			WHERE wallet_address = $2 AND verified = TRUE`,
			adj.Delta, adj.Address)
		if err != nil {
			return false, fmt.Errorf("failed to adjust balance for %s: %w", adj.Address, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transfer: %w", err)
	}
	return true, nil
}

// GetByTxHash returns all recorded chunks for a transaction hash
func (r *TransferRepository) GetByTxHash(ctx context.Context, txHash string) ([]*entities.TransferRecord, error) {
	query := `
		SELECT id, from_address, to_address, amount, tx_hash, block_number,
		       batch_index, total_batches, created_at
		FROM token_transfers
		WHERE tx_hash = $1
		ORDER BY COALESCE(batch_index, -1)`

	var records []*entities.TransferRecord
	if err := r.db.SelectContext(ctx, &records, query, txHash); err != nil {
		return nil, fmt.Errorf("failed to get transfers: %w", err)
	}
	return records, nil
}

// CountSince counts transfers recorded after the given time
func (r *TransferRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM token_transfers WHERE created_at > $1`, since)
	if err != nil {
		return 0, fmt.Errorf("failed to count transfers: %w", err)
	}
	return count, nil
}

// WalletBindingRepository reads user/wallet bindings and maintains the
// cached balance column.
type WalletBindingRepository struct {
	db     *sqlx.DB
	logger *logger.Logger
}

// NewWalletBindingRepository creates a wallet binding repository
func NewWalletBindingRepository(db *sqlx.DB, log *logger.Logger) *WalletBindingRepository {
	return &WalletBindingRepository{db: db, logger: log}
}

// GetByAddress looks up a verified binding for a ledger address.
// Returns (nil, nil) when the address is unknown or unverified; that is
// not an error for reconciliation purposes.
func (r *WalletBindingRepository) GetByAddress(ctx context.Context, address string) (*entities.WalletBinding, error) {
	query := `
		SELECT user_id, wallet_address, verified, balance, balance_at
		FROM wallet_bindings
		WHERE wallet_address = $1 AND verified = TRUE`

	var binding entities.WalletBinding
	err := r.db.GetContext(ctx, &binding, query, address)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet binding: %w", err)
	}
	return &binding, nil
}

// SetBalance overwrites a cached balance with an authoritative value
func (r *WalletBindingRepository) SetBalance(ctx context.Context, address string, balance decimal.Decimal) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE wallet_bindings
		SET balance = $1, balance_at = NOW()
		WHERE wallet_address = $2`,
		balance, address)
	if err != nil {
		return fmt.Errorf("failed to set balance: %w", err)
	}
	return nil
}

// SaleRepository records marketplace sales observed on the ledger
type SaleRepository struct {
	db     *sqlx.DB
	logger *logger.Logger
}

// NewSaleRepository creates a sale repository
func NewSaleRepository(db *sqlx.DB, log *logger.Logger) *SaleRepository {
	return &SaleRepository{db: db, logger: log}
}

// Insert appends a sale record; a replayed tx_hash is a no-op
func (r *SaleRepository) Insert(ctx context.Context, sale *entities.SaleRecord) (bool, error) {
	query := `
		INSERT INTO asset_sales (
			token_id, seller_user_id, buyer_user_id, price, currency, tx_hash, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tx_hash) DO NOTHING
		RETURNING id`

	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	if sale.Currency == "" {
		sale.Currency = "TOLA"
	}

	err := r.db.QueryRowContext(ctx, query,
		sale.TokenID,
		sale.SellerUserID,
		sale.BuyerUserID,
		sale.Price,
		sale.Currency,
		sale.TxHash,
		sale.CreatedAt,
	).Scan(&sale.ID)

	if err == sql.ErrNoRows {
		r.logger.Debug("Sale already recorded, skipping", "tx_hash", sale.TxHash)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert sale: %w", err)
	}
	return true, nil
}
