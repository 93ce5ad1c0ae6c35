// Package balance serves TOLA balances with a Redis read-through cache
// in front of the ledger service, and keeps the mirror's stored balances
// in step with what the ledger reports.
package balance

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vortex-market/tola-sync/internal/adapters/tola"
	"github.com/vortex-market/tola-sync/internal/domain/repositories"
	"github.com/vortex-market/tola-sync/internal/infrastructure/cache"
	"github.com/vortex-market/tola-sync/pkg/logger"
)

// Service resolves and caches wallet balances
type Service struct {
	ledger  *tola.Client
	wallets repositories.WalletBindingRepository
	cache   cache.Cache
	ttl     time.Duration
	logger  *logger.Logger
}

// NewService creates a balance service. ttl bounds how stale a cached
// balance may get between ledger reads.
func NewService(ledger *tola.Client, wallets repositories.WalletBindingRepository, c cache.Cache, ttl time.Duration, log *logger.Logger) *Service {
	return &Service{
		ledger:  ledger,
		wallets: wallets,
		cache:   c,
		ttl:     ttl,
		logger:  log,
	}
}

func cacheKey(address string) string {
	return fmt.Sprintf("tola:balance:%s", address)
}

// Get returns the balance for an address, serving from cache when fresh
// and falling through to the ledger otherwise. A successful ledger read
// also refreshes the mirror's stored balance for bound wallets.
func (s *Service) Get(ctx context.Context, address string) (decimal.Decimal, error) {
	var cached string
	if err := s.cache.Get(ctx, cacheKey(address), &cached); err == nil {
		if amount, perr := decimal.NewFromString(cached); perr == nil {
			return amount, nil
		}
	}

	resp, err := s.ledger.BalanceOf(ctx, address)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch balance: %w", err)
	}

	if err := s.cache.Set(ctx, cacheKey(address), resp.Balance.String(), s.ttl); err != nil {
		s.logger.Warn("Failed to cache balance", "error", err, "address", address)
	}

	if binding, err := s.wallets.GetByAddress(ctx, address); err == nil && binding != nil {
		if err := s.wallets.SetBalance(ctx, address, resp.Balance); err != nil {
			s.logger.Warn("Failed to store refreshed balance", "error", err, "address", address)
		}
	}

	return resp.Balance, nil
}

// Invalidate drops the cached balance for an address. Called after the
// reconciler adjusts the mirror so the next read hits the ledger.
func (s *Service) Invalidate(ctx context.Context, address string) {
	if err := s.cache.Del(ctx, cacheKey(address)); err != nil {
		s.logger.Warn("Failed to invalidate cached balance", "error", err, "address", address)
	}
}

// RefreshMetrics re-reads the ledger's marketplace metrics summary and
// caches it for the dashboard. Runs after the last chunk of a large
// transfer and on demand.
func (s *Service) RefreshMetrics(ctx context.Context) error {
	summary, err := s.ledger.MetricsSummary(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch metrics summary: %w", err)
	}

	if err := s.cache.Set(ctx, "tola:metrics:summary", summary, s.ttl); err != nil {
		return fmt.Errorf("failed to cache metrics summary: %w", err)
	}

	s.logger.Info("Marketplace metrics refreshed",
		"total_transfers", summary.TotalTransfers, "total_volume", summary.TotalVolume)
	return nil
}
