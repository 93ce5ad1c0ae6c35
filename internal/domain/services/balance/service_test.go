package balance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vortex-market/tola-sync/internal/adapters/tola"
	"github.com/vortex-market/tola-sync/internal/domain/entities"
	"github.com/vortex-market/tola-sync/internal/infrastructure/cache"
	"github.com/vortex-market/tola-sync/pkg/logger"
)

type memoryCache struct {
	values map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: make(map[string][]byte)}
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = raw
	return nil
}

func (m *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := m.values[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Del(_ context.Context, key string) error {
	delete(m.values, key)
	return nil
}

func (m *memoryCache) Ping(_ context.Context) error { return nil }
func (m *memoryCache) Close() error                 { return nil }

type stubWalletRepo struct {
	binding *entities.WalletBinding
	set     []decimal.Decimal
}

func (s *stubWalletRepo) GetByAddress(_ context.Context, _ string) (*entities.WalletBinding, error) {
	return s.binding, nil
}

func (s *stubWalletRepo) SetBalance(_ context.Context, _ string, balance decimal.Decimal) error {
	s.set = append(s.set, balance)
	return nil
}

func TestGet_CachesLedgerReads(t *testing.T) {
	var ledgerHits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ledgerHits++
		_ = json.NewEncoder(w).Encode(tola.BalanceResponse{
			Address: "addr-1",
			Balance: decimal.NewFromInt(750),
		})
	}))
	defer server.Close()

	z, _ := zap.NewDevelopment()
	log := logger.NewLogger(z)
	client := tola.NewClient(tola.Config{APIKey: "k", BaseURL: server.URL}, log)
	wallets := &stubWalletRepo{binding: &entities.WalletBinding{UserID: 1, WalletAddress: "addr-1", Verified: true}}
	mem := newMemoryCache()

	svc := NewService(client, wallets, mem, 5*time.Minute, log)

	got, err := svc.Get(context.Background(), "addr-1")
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(750)))
	assert.Equal(t, 1, ledgerHits)
	require.Len(t, wallets.set, 1, "mirror balance refreshed from ledger read")

	// Second read is served from cache
	got, err = svc.Get(context.Background(), "addr-1")
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(750)))
	assert.Equal(t, 1, ledgerHits)

	// Invalidation forces the next read back to the ledger
	svc.Invalidate(context.Background(), "addr-1")
	_, err = svc.Get(context.Background(), "addr-1")
	require.NoError(t, err)
	assert.Equal(t, 2, ledgerHits)
}

func TestGet_LedgerFailurePropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":"INTERNAL"}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	z, _ := zap.NewDevelopment()
	log := logger.NewLogger(z)
	client := tola.NewClient(tola.Config{APIKey: "k", BaseURL: server.URL}, log)
	svc := NewService(client, &stubWalletRepo{}, newMemoryCache(), time.Minute, log)

	_, err := svc.Get(context.Background(), "addr-1")
	assert.Error(t, err)
}

func TestRefreshMetrics_CachesSummary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/metrics/summary", r.URL.Path)
		_ = json.NewEncoder(w).Encode(tola.MetricsSummary{
			TotalTransfers: 12,
			TotalVolume:    decimal.NewFromInt(9000),
			ActiveTokens:   3,
		})
	}))
	defer server.Close()

	z, _ := zap.NewDevelopment()
	log := logger.NewLogger(z)
	client := tola.NewClient(tola.Config{APIKey: "k", BaseURL: server.URL}, log)
	mem := newMemoryCache()
	svc := NewService(client, &stubWalletRepo{}, mem, time.Minute, log)

	require.NoError(t, svc.RefreshMetrics(context.Background()))

	var cached tola.MetricsSummary
	require.NoError(t, mem.Get(context.Background(), "tola:metrics:summary", &cached))
	assert.Equal(t, int64(12), cached.TotalTransfers)
}
