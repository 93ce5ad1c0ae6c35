package tola

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// MintRequest creates an NFT contract for a marketplace asset
type MintRequest struct {
	ContractData json.RawMessage `json:"contract_data"`
}

// MintResponse carries the identifiers the ledger assigns at mint time
type MintResponse struct {
	ContractID   string `json:"contract_id"`
	ContractHash string `json:"contract_hash"`
	ContractURL  string `json:"contract_url"`
	TokenID      string `json:"token_id"`
}

// TransferRequest moves a token between ledger addresses
type TransferRequest struct {
	ContractID  string `json:"contract_id"`
	FromAddress string `json:"from_address"`
	ToAddress   string `json:"to_address"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

// TransferResponse describes the submitted ledger transaction
type TransferResponse struct {
	TransactionID   string `json:"transaction_id"`
	TransactionHash string `json:"transaction_hash"`
	TransactionURL  string `json:"transaction_url"`
}

// MetadataUpdateRequest replaces a token's metadata document
type MetadataUpdateRequest struct {
	TokenID  string          `json:"token_id"`
	Metadata json.RawMessage `json:"metadata"`
}

// VerifyResponse is the ledger's view of a token
type VerifyResponse struct {
	TokenID    string `json:"token_id"`
	ContractID string `json:"contract_id"`
	Owner      string `json:"owner"`
	Verified   bool   `json:"verified"`
}

// BalanceResponse is the on-ledger balance of an address
type BalanceResponse struct {
	Address string          `json:"address"`
	Balance decimal.Decimal `json:"balance"`
}

// StakeRequest locks tokens for an address
type StakeRequest struct {
	WalletAddress string `json:"wallet_address"`
	Amount        string `json:"amount"`
}

// StakeResponse confirms a stake/unstake/claim operation
type StakeResponse struct {
	TransactionID string          `json:"transaction_id"`
	Staked        decimal.Decimal `json:"staked"`
	Rewards       decimal.Decimal `json:"rewards,omitempty"`
}

// StatusResponse is the ledger service health summary
type StatusResponse struct {
	Healthy     bool   `json:"healthy"`
	BlockHeight uint64 `json:"block_height"`
	Network     string `json:"network"`
}

// MetricsSummary aggregates ledger-side marketplace activity
type MetricsSummary struct {
	TotalTransfers int64           `json:"total_transfers"`
	TotalVolume    decimal.Decimal `json:"total_volume"`
	ActiveTokens   int64           `json:"active_tokens"`
}

// WebhookRegistration registers this service's endpoint with the ledger
type WebhookRegistration struct {
	URL    string   `json:"url"`
	Secret string   `json:"secret"`
	Events []string `json:"events"`
}

// WebhookRegistrationResponse carries the assigned webhook id
type WebhookRegistrationResponse struct {
	WebhookID string `json:"webhook_id"`
}
