package entities

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EventType identifies the kind of ledger event carried by a webhook
type EventType string

const (
	EventTokenTransfer   EventType = "token_transfer"
	EventContractUpdate  EventType = "contract_update"
	EventNewAsset        EventType = "new_artwork"
	EventMarketplaceSale EventType = "marketplace_sale"
)

// Validate checks that the event type is one the dispatcher knows about
func (e EventType) Validate() error {
	switch e {
	case EventTokenTransfer, EventContractUpdate, EventNewAsset, EventMarketplaceSale:
		return nil
	default:
		return fmt.Errorf("unknown event type: %s", e)
	}
}

// WebhookEvent is a verified inbound event from the TOLA ledger service.
// The payload stays opaque until the matching handler decodes it.
type WebhookEvent struct {
	EventType  EventType       `json:"event_type"`
	Data       json.RawMessage `json:"data"`
	ReceivedAt time.Time       `json:"-"`
}

// TokenTransferEvent is the payload of a token_transfer event
type TokenTransferEvent struct {
	From        string          `json:"from"`
	To          string          `json:"to"`
	Amount      decimal.Decimal `json:"amount"`
	TxHash      string          `json:"tx_hash"`
	BlockNumber uint64          `json:"block_number"`
}

// Validate checks the fields every transfer event must carry
func (e *TokenTransferEvent) Validate() error {
	if e.From == "" || e.To == "" {
		return fmt.Errorf("transfer event missing from/to address")
	}
	if e.TxHash == "" {
		return fmt.Errorf("transfer event missing tx hash")
	}
	if e.Amount.IsZero() || e.Amount.IsNegative() {
		return fmt.Errorf("transfer event has invalid amount: %s", e.Amount)
	}
	return nil
}

// ContractUpdateEvent is the payload of a contract_update event
type ContractUpdateEvent struct {
	ContractID string          `json:"contract_id"`
	Status     string          `json:"status"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

// Validate checks the fields every contract update must carry
func (e *ContractUpdateEvent) Validate() error {
	if e.ContractID == "" {
		return fmt.Errorf("contract update missing contract id")
	}
	return nil
}

// NewAssetEvent is the payload of a new_artwork event: an asset minted
// directly on the ledger that the mirror has not seen yet.
type NewAssetEvent struct {
	TokenID     string          `json:"token_id"`
	ContractID  string          `json:"contract_id"`
	Creator     string          `json:"creator"`
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// Validate checks the fields every new asset event must carry
func (e *NewAssetEvent) Validate() error {
	if e.TokenID == "" {
		return fmt.Errorf("new asset event missing token id")
	}
	if e.Creator == "" {
		return fmt.Errorf("new asset event missing creator address")
	}
	return nil
}

// MarketplaceSaleEvent is the payload of a marketplace_sale event
type MarketplaceSaleEvent struct {
	TokenID  string          `json:"token_id"`
	Seller   string          `json:"seller"`
	Buyer    string          `json:"buyer"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency,omitempty"`
	TxHash   string          `json:"tx_hash"`
}

// Validate checks the fields every sale event must carry
func (e *MarketplaceSaleEvent) Validate() error {
	if e.TokenID == "" || e.Seller == "" || e.Buyer == "" {
		return fmt.Errorf("sale event missing token/seller/buyer")
	}
	if e.Price.IsZero() || e.Price.IsNegative() {
		return fmt.Errorf("sale event has invalid price: %s", e.Price)
	}
	return nil
}
