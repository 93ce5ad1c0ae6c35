package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vortex-market/tola-sync/internal/adapters/tola"
	"github.com/vortex-market/tola-sync/internal/domain/entities"
	"github.com/vortex-market/tola-sync/internal/domain/repositories"
	"github.com/vortex-market/tola-sync/pkg/logger"
)

// Executors holds the ledger-facing implementations for each queued
// transaction type.
type Executors struct {
	ledger *tola.Client
	assets repositories.AssetContractRepository
	logger *logger.Logger
}

// NewExecutors creates the executor set
func NewExecutors(ledger *tola.Client, assets repositories.AssetContractRepository, log *logger.Logger) *Executors {
	return &Executors{ledger: ledger, assets: assets, logger: log}
}

// RegisterAll wires every executor into the queue service
func (e *Executors) RegisterAll(s *Service) {
	s.RegisterExecutor(entities.TxTypeCreateContract, e.CreateContract)
	s.RegisterExecutor(entities.TxTypeRegisterSale, e.RegisterSale)
	s.RegisterExecutor(entities.TxTypeStakeTokens, e.StakeTokens)
}

// CreateContract mints an NFT contract for a marketplace asset and
// records the assigned identifiers on the local asset record.
func (e *Executors) CreateContract(ctx context.Context, tx *entities.QueuedTransaction) (json.RawMessage, error) {
	var data entities.CreateContractData
	if err := json.Unmarshal(tx.Data, &data); err != nil {
		return nil, fmt.Errorf("malformed create_contract data: %w", err)
	}
	if data.AssetID == 0 {
		return nil, fmt.Errorf("create_contract requires an asset id")
	}

	resp, err := e.ledger.MintNFT(ctx, &tola.MintRequest{ContractData: data.ContractData})
	if err != nil {
		return nil, fmt.Errorf("mint failed for asset %d: %w", data.AssetID, err)
	}

	if err := e.assets.UpdateStatus(ctx, data.AssetID, entities.ContractStatusMinted,
		&resp.ContractID, &resp.TokenID, &resp.ContractHash); err != nil {
		// The contract exists on the ledger; surface the mirror failure but
		// keep the identifiers in the result so an operator can repair it.
		e.logger.Error("Minted contract not recorded on asset",
			"error", err, "asset_id", data.AssetID, "contract_id", resp.ContractID)
	}

	e.logger.Info("Contract created",
		"asset_id", data.AssetID, "contract_id", resp.ContractID, "token_id", resp.TokenID)
	return json.Marshal(resp)
}

// RegisterSale records a completed marketplace sale on the ledger by
// submitting the token transfer from seller to buyer.
func (e *Executors) RegisterSale(ctx context.Context, tx *entities.QueuedTransaction) (json.RawMessage, error) {
	var data entities.RegisterSaleData
	if err := json.Unmarshal(tx.Data, &data); err != nil {
		return nil, fmt.Errorf("malformed register_sale data: %w", err)
	}
	if data.ContractID == "" || data.SellerAddress == "" || data.BuyerAddress == "" {
		return nil, fmt.Errorf("register_sale requires contract and both addresses")
	}

	resp, err := e.ledger.TransferNFT(ctx, &tola.TransferRequest{
		ContractID:  data.ContractID,
		FromAddress: data.SellerAddress,
		ToAddress:   data.BuyerAddress,
		Amount:      data.Price,
		Currency:    data.Currency,
		Timestamp:   time.Now().Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("sale registration failed for contract %s: %w", data.ContractID, err)
	}

	e.logger.Info("Sale registered on ledger",
		"contract_id", data.ContractID, "transaction_hash", resp.TransactionHash)
	return json.Marshal(resp)
}

// StakeTokens locks tokens for a wallet on the ledger
func (e *Executors) StakeTokens(ctx context.Context, tx *entities.QueuedTransaction) (json.RawMessage, error) {
	var data entities.StakeTokensData
	if err := json.Unmarshal(tx.Data, &data); err != nil {
		return nil, fmt.Errorf("malformed stake_tokens data: %w", err)
	}
	if data.WalletAddress == "" {
		return nil, fmt.Errorf("stake_tokens requires a wallet address")
	}

	resp, err := e.ledger.Stake(ctx, &tola.StakeRequest{
		WalletAddress: data.WalletAddress,
		Amount:        data.Amount,
	})
	if err != nil {
		return nil, fmt.Errorf("stake failed for %s: %w", data.WalletAddress, err)
	}

	e.logger.Info("Tokens staked", "wallet", data.WalletAddress, "staked", resp.Staked)
	return json.Marshal(resp)
}
