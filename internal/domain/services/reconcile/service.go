// Package reconcile applies verified ledger events to the local mirror
// store. Handlers are order-independent and idempotent: the ledger
// service redelivers webhooks and delivers them out of order, so every
// write is keyed by tx hash, contract id or token id.
package reconcile

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vortex-market/tola-sync/internal/domain/entities"
	"github.com/vortex-market/tola-sync/internal/domain/repositories"
	"github.com/vortex-market/tola-sync/pkg/logger"
	"github.com/vortex-market/tola-sync/pkg/metrics"
)

// BatchPlanner splits oversized transfers into delayed batches
type BatchPlanner interface {
	ScheduleBatches(ctx context.Context, from, to string, totalAmount decimal.Decimal, txHash string, blockNumber uint64) error
}

// BalanceInvalidator drops a cached ledger balance after the mirror's
// view of an address changes.
type BalanceInvalidator interface {
	Invalidate(ctx context.Context, address string)
}

// Config holds reconciliation policy
type Config struct {
	// LargeTransferThreshold is the amount above which a transfer is not
	// applied directly but handed to the batch planner.
	LargeTransferThreshold decimal.Decimal
}

// Service reconciles ledger events against the local mirror
type Service struct {
	config    Config
	transfers repositories.TransferRepository
	wallets   repositories.WalletBindingRepository
	assets    repositories.AssetContractRepository
	sales     repositories.SaleRepository
	batches   BatchPlanner
	balances  BalanceInvalidator
	logger    *logger.Logger
}

// NewService creates a reconciliation service
func NewService(
	config Config,
	transfers repositories.TransferRepository,
	wallets repositories.WalletBindingRepository,
	assets repositories.AssetContractRepository,
	sales repositories.SaleRepository,
	batches BatchPlanner,
	balances BalanceInvalidator,
	log *logger.Logger,
) *Service {
	return &Service{
		config:    config,
		transfers: transfers,
		wallets:   wallets,
		assets:    assets,
		sales:     sales,
		batches:   batches,
		balances:  balances,
		logger:    log,
	}
}

// ApplyTransfer reconciles a token_transfer event. Amounts above the
// large-transfer threshold are handed to the batch planner and applied
// later in chunks; everything else is applied immediately.
func (s *Service) ApplyTransfer(ctx context.Context, ev *entities.TokenTransferEvent) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("invalid transfer event: %w", err)
	}

	if ev.Amount.GreaterThan(s.config.LargeTransferThreshold) {
		s.logger.Info("Large transfer, scheduling batches",
			"tx_hash", ev.TxHash, "amount", ev.Amount, "threshold", s.config.LargeTransferThreshold)
		return s.batches.ScheduleBatches(ctx, ev.From, ev.To, ev.Amount, ev.TxHash, ev.BlockNumber)
	}

	return s.applyChunk(ctx, &entities.TransferRecord{
		FromAddress: ev.From,
		ToAddress:   ev.To,
		Amount:      ev.Amount,
		TxHash:      ev.TxHash,
		BlockNumber: ev.BlockNumber,
	})
}

// ApplyBatch applies one chunk of a previously split transfer. Chunks are
// below the threshold by construction and run through the same idempotent
// path as direct transfers.
func (s *Service) ApplyBatch(ctx context.Context, payload *entities.TransferBatchPayload) error {
	amount, err := decimal.NewFromString(payload.Amount)
	if err != nil {
		return fmt.Errorf("invalid batch amount %q: %w", payload.Amount, err)
	}

	batchIndex := payload.BatchIndex
	totalBatches := payload.TotalBatches
	return s.applyChunk(ctx, &entities.TransferRecord{
		FromAddress:  payload.From,
		ToAddress:    payload.To,
		Amount:       amount,
		TxHash:       payload.TxHash,
		BlockNumber:  payload.BlockNumber,
		BatchIndex:   &batchIndex,
		TotalBatches: &totalBatches,
	})
}

// applyChunk appends the transfer record and adjusts cached balances for
// whichever sides have verified wallet bindings, in one transaction: a
// failure writes nothing, so redelivery can repair it. A replay of the
// same (tx_hash, batch_index) is a no-op success; an unbound address only
// skips the balance update, never the record.
func (s *Service) applyChunk(ctx context.Context, record *entities.TransferRecord) error {
	var adjustments []entities.BalanceAdjustment
	sides := []entities.BalanceAdjustment{
		{Address: record.FromAddress, Delta: record.Amount.Neg()},
		{Address: record.ToAddress, Delta: record.Amount},
	}
	for _, side := range sides {
		binding, err := s.wallets.GetByAddress(ctx, side.Address)
		if err != nil {
			metrics.TransfersApplied.WithLabelValues("error").Inc()
			return fmt.Errorf("failed to resolve wallet binding for %s: %w", side.Address, err)
		}
		if binding == nil {
			// Unknown addresses are expected; the transfer log still has them
			s.logger.Debug("No verified binding for address, skipping balance update", "address", side.Address)
			continue
		}
		adjustments = append(adjustments, side)
	}

	inserted, err := s.transfers.InsertWithAdjustments(ctx, record, adjustments)
	if err != nil {
		metrics.TransfersApplied.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to record transfer: %w", err)
	}
	if !inserted {
		metrics.TransfersApplied.WithLabelValues("duplicate").Inc()
		s.logger.Info("Transfer already applied (idempotent)",
			"tx_hash", record.TxHash, "batch_index", record.BatchIndex)
		return nil
	}

	for _, adj := range adjustments {
		s.balances.Invalidate(ctx, adj.Address)
	}

	metrics.TransfersApplied.WithLabelValues("applied").Inc()
	s.logger.Info("Transfer applied",
		"tx_hash", record.TxHash, "from", record.FromAddress, "to", record.ToAddress,
		"amount", record.Amount, "batch_index", record.BatchIndex)
	return nil
}

// HandleContractUpdate reconciles a contract_update event onto the
// matching asset record. Updates for contracts the mirror has never seen
// are logged and dropped; the mint path owns record creation.
func (s *Service) HandleContractUpdate(ctx context.Context, ev *entities.ContractUpdateEvent) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("invalid contract update: %w", err)
	}

	record, err := s.assets.GetByContractID(ctx, ev.ContractID)
	if err != nil {
		return fmt.Errorf("failed to look up contract: %w", err)
	}
	if record == nil {
		s.logger.Warn("Contract update for unknown contract", "contract_id", ev.ContractID)
		return nil
	}

	status := entities.ContractStatus(ev.Status)
	if err := s.assets.UpdateStatus(ctx, record.AssetID, status, nil, nil, nil); err != nil {
		return fmt.Errorf("failed to apply contract update: %w", err)
	}

	if len(ev.Metadata) > 0 {
		record.Metadata = ev.Metadata
		if err := s.assets.Upsert(ctx, record); err != nil {
			return fmt.Errorf("failed to store contract metadata: %w", err)
		}
	}

	s.logger.Info("Contract update applied", "contract_id", ev.ContractID, "status", ev.Status)
	return nil
}

// HandleNewAsset reconciles a new_artwork event: an asset minted directly
// on the ledger. A token id the mirror already knows is just re-verified.
func (s *Service) HandleNewAsset(ctx context.Context, ev *entities.NewAssetEvent) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("invalid new asset event: %w", err)
	}

	existing, err := s.assets.GetByTokenID(ctx, ev.TokenID)
	if err != nil {
		return fmt.Errorf("failed to look up token: %w", err)
	}
	if existing != nil {
		existing.Verified = true
		if err := s.assets.Upsert(ctx, existing); err != nil {
			return fmt.Errorf("failed to re-verify asset: %w", err)
		}
		return nil
	}

	creator, err := s.wallets.GetByAddress(ctx, ev.Creator)
	if err != nil {
		return fmt.Errorf("failed to resolve creator: %w", err)
	}
	if creator == nil {
		// Without a bound creator there is no marketplace asset to attach
		// the contract to; the ledger stays authoritative.
		s.logger.Warn("Cannot import asset: no verified binding for creator",
			"creator", ev.Creator, "token_id", ev.TokenID)
		return nil
	}

	tokenID := ev.TokenID
	contractID := ev.ContractID
	record := &entities.AssetContractRecord{
		AssetID:       assetIDForToken(ev.TokenID),
		ContractID:    &contractID,
		TokenID:       &tokenID,
		Status:        entities.ContractStatusMinted,
		Metadata:      ev.Metadata,
		Verified:      true,
		OwnerUserID:   &creator.UserID,
		LastUpdatedAt: time.Now().UTC(),
	}
	if err := s.assets.Upsert(ctx, record); err != nil {
		return fmt.Errorf("failed to import asset: %w", err)
	}

	s.logger.Info("New ledger asset imported", "token_id", ev.TokenID, "creator_user_id", creator.UserID)
	return nil
}

// HandleMarketplaceSale reconciles a marketplace_sale event: record the
// sale and move ownership to the buyer. Unknown tokens are dropped with a
// warning; unbound buyer/seller sides degrade to user id 0.
func (s *Service) HandleMarketplaceSale(ctx context.Context, ev *entities.MarketplaceSaleEvent) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("invalid sale event: %w", err)
	}

	asset, err := s.assets.GetByTokenID(ctx, ev.TokenID)
	if err != nil {
		return fmt.Errorf("failed to look up token: %w", err)
	}
	if asset == nil {
		s.logger.Warn("Cannot record sale: token not in mirror", "token_id", ev.TokenID)
		return nil
	}

	sale := &entities.SaleRecord{
		TokenID:  ev.TokenID,
		Price:    ev.Price,
		Currency: ev.Currency,
		TxHash:   ev.TxHash,
	}
	if seller, err := s.wallets.GetByAddress(ctx, ev.Seller); err == nil && seller != nil {
		sale.SellerUserID = seller.UserID
	}
	buyer, err := s.wallets.GetByAddress(ctx, ev.Buyer)
	if err == nil && buyer != nil {
		sale.BuyerUserID = buyer.UserID
	}

	inserted, err := s.sales.Insert(ctx, sale)
	if err != nil {
		return fmt.Errorf("failed to record sale: %w", err)
	}
	if !inserted {
		s.logger.Info("Sale already recorded (idempotent)", "tx_hash", ev.TxHash)
		return nil
	}

	if buyer != nil {
		if err := s.assets.SetOwner(ctx, ev.TokenID, buyer.UserID, ev.Price); err != nil {
			return fmt.Errorf("failed to transfer ownership: %w", err)
		}
	}
	if err := s.assets.UpdateStatus(ctx, asset.AssetID, entities.ContractStatusTransferred, nil, nil, nil); err != nil {
		return fmt.Errorf("failed to mark asset transferred: %w", err)
	}

	s.logger.Info("Marketplace sale recorded",
		"token_id", ev.TokenID, "price", ev.Price, "tx_hash", ev.TxHash)
	return nil
}

// assetIDForToken derives a stable local asset id for tokens that first
// appear on the ledger rather than in the marketplace. FNV keeps the id
// deterministic across redeliveries.
func assetIDForToken(tokenID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(tokenID))
	// Keep it positive and clear of small hand-assigned ids
	return int64(h.Sum64()>>1)%((1<<62)-1000000) + 1000000
}
