package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/vortex-market/tola-sync/internal/domain/entities"
	"github.com/vortex-market/tola-sync/pkg/logger"
)

// AssetContractRepository mirrors on-ledger contract state per asset
type AssetContractRepository struct {
	db     *sqlx.DB
	logger *logger.Logger
}

// NewAssetContractRepository creates an asset contract repository
func NewAssetContractRepository(db *sqlx.DB, log *logger.Logger) *AssetContractRepository {
	return &AssetContractRepository{db: db, logger: log}
}

const assetContractColumns = `
	asset_id, contract_id, token_id, contract_hash, status,
	metadata, verified, owner_user_id, last_updated_at`

// Upsert inserts or refreshes an asset's contract record. An existing
// record keeps its status; webhook redelivery for a known contract or
// token id must not regress the ladder.
func (r *AssetContractRepository) Upsert(ctx context.Context, record *entities.AssetContractRecord) error {
	query := `
		INSERT INTO asset_contracts (
			asset_id, contract_id, token_id, contract_hash, status,
			metadata, verified, owner_user_id, last_updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (asset_id) DO UPDATE
		SET contract_id   = COALESCE(EXCLUDED.contract_id, asset_contracts.contract_id),
		    token_id      = COALESCE(EXCLUDED.token_id, asset_contracts.token_id),
		    contract_hash = COALESCE(EXCLUDED.contract_hash, asset_contracts.contract_hash),
		    metadata      = COALESCE(EXCLUDED.metadata, asset_contracts.metadata),
		    verified      = asset_contracts.verified OR EXCLUDED.verified,
		    last_updated_at = NOW()`

	_, err := r.db.ExecContext(ctx, query,
		record.AssetID,
		record.ContractID,
		record.TokenID,
		record.ContractHash,
		string(record.Status),
		nullableJSON(record.Metadata),
		record.Verified,
		record.OwnerUserID,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert asset contract: %w", err)
	}
	return nil
}

// GetByAssetID retrieves a record by marketplace asset id
func (r *AssetContractRepository) GetByAssetID(ctx context.Context, assetID int64) (*entities.AssetContractRecord, error) {
	return r.getOne(ctx, `SELECT `+assetContractColumns+` FROM asset_contracts WHERE asset_id = $1`, assetID)
}

// GetByContractID retrieves a record by ledger contract id
func (r *AssetContractRepository) GetByContractID(ctx context.Context, contractID string) (*entities.AssetContractRecord, error) {
	return r.getOne(ctx, `SELECT `+assetContractColumns+` FROM asset_contracts WHERE contract_id = $1`, contractID)
}

// GetByTokenID retrieves a record by ledger token id
func (r *AssetContractRepository) GetByTokenID(ctx context.Context, tokenID string) (*entities.AssetContractRecord, error) {
	return r.getOne(ctx, `SELECT `+assetContractColumns+` FROM asset_contracts WHERE token_id = $1`, tokenID)
}

func (r *AssetContractRepository) getOne(ctx context.Context, query string, arg interface{}) (*entities.AssetContractRecord, error) {
	var record entities.AssetContractRecord
	err := r.db.GetContext(ctx, &record, query, arg)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset contract: %w", err)
	}
	return &record, nil
}

// UpdateStatus applies a monotonic status transition together with any
// ledger identifiers that arrived with it. The transition check runs in
// the UPDATE itself so concurrent writers cannot interleave a regression.
func (r *AssetContractRepository) UpdateStatus(ctx context.Context, assetID int64, status entities.ContractStatus, contractID, tokenID, contractHash *string) error {
	current, err := r.GetByAssetID(ctx, assetID)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("asset contract not found: %d", assetID)
	}
	if !current.Status.CanTransitionTo(status) {
		r.logger.Debug("Ignoring non-monotonic status transition",
			"asset_id", assetID, "from", current.Status, "to", status)
		return nil
	}

	query := `
		UPDATE asset_contracts
		SET status        = $1,
		    contract_id   = COALESCE($2, contract_id),
		    token_id      = COALESCE($3, token_id),
		    contract_hash = COALESCE($4, contract_hash),
		    last_updated_at = NOW()
		WHERE asset_id = $5 AND status = $6`

	result, err := r.db.ExecContext(ctx, query,
		string(status), contractID, tokenID, contractHash,
		assetID, string(current.Status))
	if err != nil {
		return fmt.Errorf("failed to update asset contract status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		// Lost the race to a concurrent transition; the other writer's
		// state wins and a redelivery will reconcile if needed.
		r.logger.Debug("Status transition lost conditional update", "asset_id", assetID, "to", status)
	}
	return nil
}

// SetOwner records the post-sale owner and last sale price for a token
func (r *AssetContractRepository) SetOwner(ctx context.Context, tokenID string, ownerUserID int64, lastSalePrice decimal.Decimal) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE asset_contracts
		SET owner_user_id = $1, last_sale_price = $2, last_updated_at = NOW()
		WHERE token_id = $3`,
		ownerUserID, lastSalePrice, tokenID)
	if err != nil {
		return fmt.Errorf("failed to set asset owner: %w", err)
	}
	return nil
}
