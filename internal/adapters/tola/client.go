// Package tola is the HTTP client for the external TOLA ledger service.
// It carries no business logic: every method sets a bounded timeout,
// attaches bearer authentication and maps the response into either a typed
// result, a *RemoteError or a *TransportError.
package tola

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"github.com/vortex-market/tola-sync/pkg/logger"
	"github.com/vortex-market/tola-sync/pkg/metrics"
)

// Config represents TOLA API client configuration
type Config struct {
	APIKey string
	BaseURL string
	// Timeout bounds mutating calls (mint, transfer, stake)
	Timeout time.Duration
	// QueryTimeout bounds read-only calls (balance, status, verify)
	QueryTimeout time.Duration
}

// Client is an authenticated TOLA API client
type Client struct {
	config  Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *logger.Logger
}

// NewClient creates a TOLA API client
func NewClient(config Config, log *logger.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = 45 * time.Second
	}
	if config.QueryTimeout == 0 {
		config.QueryTimeout = 30 * time.Second
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.tola-blockchain.io/v1"
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "tola-api",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &Client{
		config:  config,
		http:    &http.Client{},
		breaker: breaker,
		logger:  log,
	}
}

// MintNFT creates an NFT contract on the ledger
func (c *Client) MintNFT(ctx context.Context, req *MintRequest) (*MintResponse, error) {
	var resp MintResponse
	if err := c.doRequest(ctx, http.MethodPost, "/nft/mint", req, &resp, c.config.Timeout); err != nil {
		return nil, fmt.Errorf("mint failed: %w", err)
	}
	return &resp, nil
}

// TransferNFT submits a token transfer to the ledger
func (c *Client) TransferNFT(ctx context.Context, req *TransferRequest) (*TransferResponse, error) {
	var resp TransferResponse
	if err := c.doRequest(ctx, http.MethodPost, "/nft/transfer", req, &resp, c.config.Timeout); err != nil {
		return nil, fmt.Errorf("transfer failed: %w", err)
	}
	return &resp, nil
}

// UpdateMetadata replaces a token's metadata document
func (c *Client) UpdateMetadata(ctx context.Context, req *MetadataUpdateRequest) error {
	if err := c.doRequest(ctx, http.MethodPut, "/nft/metadata", req, nil, c.config.Timeout); err != nil {
		return fmt.Errorf("metadata update failed: %w", err)
	}
	return nil
}

// VerifyToken fetches the ledger's view of a token
func (c *Client) VerifyToken(ctx context.Context, tokenID string) (*VerifyResponse, error) {
	var resp VerifyResponse
	if err := c.doRequest(ctx, http.MethodGet, "/nft/verify/"+tokenID, nil, &resp, c.config.QueryTimeout); err != nil {
		return nil, fmt.Errorf("verify token failed: %w", err)
	}
	return &resp, nil
}

// BalanceOf fetches the on-ledger balance for an address
func (c *Client) BalanceOf(ctx context.Context, address string) (*BalanceResponse, error) {
	var resp BalanceResponse
	if err := c.doRequest(ctx, http.MethodGet, "/token/balance/"+address, nil, &resp, c.config.QueryTimeout); err != nil {
		return nil, fmt.Errorf("balance query failed: %w", err)
	}
	return &resp, nil
}

// Stake locks tokens for an address
func (c *Client) Stake(ctx context.Context, req *StakeRequest) (*StakeResponse, error) {
	var resp StakeResponse
	if err := c.doRequest(ctx, http.MethodPost, "/token/stake", req, &resp, c.config.Timeout); err != nil {
		return nil, fmt.Errorf("stake failed: %w", err)
	}
	return &resp, nil
}

// Unstake releases staked tokens for an address
func (c *Client) Unstake(ctx context.Context, req *StakeRequest) (*StakeResponse, error) {
	var resp StakeResponse
	if err := c.doRequest(ctx, http.MethodPost, "/token/unstake", req, &resp, c.config.Timeout); err != nil {
		return nil, fmt.Errorf("unstake failed: %w", err)
	}
	return &resp, nil
}

// ClaimRewards claims accrued staking rewards for an address
func (c *Client) ClaimRewards(ctx context.Context, walletAddress string) (*StakeResponse, error) {
	var resp StakeResponse
	req := &StakeRequest{WalletAddress: walletAddress}
	if err := c.doRequest(ctx, http.MethodPost, "/token/rewards/claim", req, &resp, c.config.Timeout); err != nil {
		return nil, fmt.Errorf("claim rewards failed: %w", err)
	}
	return &resp, nil
}

// GetStatus fetches the ledger service health summary
func (c *Client) GetStatus(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.doRequest(ctx, http.MethodGet, "/status", nil, &resp, c.config.QueryTimeout); err != nil {
		return nil, fmt.Errorf("status query failed: %w", err)
	}
	return &resp, nil
}

// MetricsSummary fetches ledger-side marketplace metrics
func (c *Client) MetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	var resp MetricsSummary
	if err := c.doRequest(ctx, http.MethodGet, "/metrics/summary", nil, &resp, c.config.QueryTimeout); err != nil {
		return nil, fmt.Errorf("metrics query failed: %w", err)
	}
	return &resp, nil
}

// RegisterWebhook registers this service's webhook endpoint with TOLA
func (c *Client) RegisterWebhook(ctx context.Context, reg *WebhookRegistration) (*WebhookRegistrationResponse, error) {
	var resp WebhookRegistrationResponse
	if err := c.doRequest(ctx, http.MethodPost, "/webhooks", reg, &resp, c.config.QueryTimeout); err != nil {
		return nil, fmt.Errorf("webhook registration failed: %w", err)
	}
	return &resp, nil
}

// doRequest performs one HTTP round trip. The endpoint-specific timeout is
// layered onto whatever deadline the caller's context already carries.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body, response interface{}, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fullURL := c.config.BaseURL + endpoint

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	c.logger.Debug("Sending TOLA API request", "method", method, "url", fullURL)

	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, &TransportError{Op: method + " " + endpoint, Err: err}
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &TransportError{Op: method + " " + endpoint, Err: err}
		}
		return &rawResponse{status: resp.StatusCode, body: respBody}, nil
	})
	if err != nil {
		if _, ok := err.(*TransportError); !ok {
			// Breaker-open errors look like transport failures to callers
			err = &TransportError{Op: method + " " + endpoint, Err: err}
		}
		metrics.LedgerRequests.WithLabelValues(endpoint, "transport_error").Inc()
		return err
	}

	raw := result.(*rawResponse)
	c.logger.Debug("Received TOLA API response", "status_code", raw.status, "body_size", len(raw.body))

	if raw.status >= 400 {
		metrics.LedgerRequests.WithLabelValues(endpoint, "remote_error").Inc()
		remote := &RemoteError{Status: raw.status, Body: string(raw.body)}
		// Message/code are best effort; the raw body is kept either way
		_ = json.Unmarshal(raw.body, remote)
		return remote
	}

	metrics.LedgerRequests.WithLabelValues(endpoint, "ok").Inc()

	if response != nil && len(raw.body) > 0 {
		if err := json.Unmarshal(raw.body, response); err != nil {
			return &TransportError{Op: method + " " + endpoint, Err: fmt.Errorf("malformed response: %w", err)}
		}
	}

	return nil
}

type rawResponse struct {
	status int
	body   []byte
}
