package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vortex-market/tola-sync/internal/adapters/tola"
	"github.com/vortex-market/tola-sync/internal/domain/entities"
	"github.com/vortex-market/tola-sync/pkg/logger"
)

type stubAssetRepo struct {
	records   map[int64]*entities.AssetContractRecord
	updateErr error
}

func newStubAssetRepo() *stubAssetRepo {
	return &stubAssetRepo{records: make(map[int64]*entities.AssetContractRecord)}
}

func (s *stubAssetRepo) Upsert(_ context.Context, record *entities.AssetContractRecord) error {
	cp := *record
	s.records[record.AssetID] = &cp
	return nil
}

func (s *stubAssetRepo) GetByAssetID(_ context.Context, assetID int64) (*entities.AssetContractRecord, error) {
	if r, ok := s.records[assetID]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (s *stubAssetRepo) GetByContractID(_ context.Context, _ string) (*entities.AssetContractRecord, error) {
	return nil, nil
}

func (s *stubAssetRepo) GetByTokenID(_ context.Context, _ string) (*entities.AssetContractRecord, error) {
	return nil, nil
}

func (s *stubAssetRepo) UpdateStatus(_ context.Context, assetID int64, status entities.ContractStatus, contractID, tokenID, contractHash *string) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	r, ok := s.records[assetID]
	if !ok {
		return fmt.Errorf("asset %d not found", assetID)
	}
	if !r.Status.CanTransitionTo(status) {
		return nil
	}
	r.Status = status
	if contractID != nil {
		r.ContractID = contractID
	}
	if tokenID != nil {
		r.TokenID = tokenID
	}
	if contractHash != nil {
		r.ContractHash = contractHash
	}
	return nil
}

func (s *stubAssetRepo) SetOwner(_ context.Context, _ string, _ int64, _ decimal.Decimal) error {
	return nil
}

func mintServer(t *testing.T, resp tola.MintResponse) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/nft/mint", r.URL.Path)
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func executorFixture(t *testing.T, server *httptest.Server, assets *stubAssetRepo) (*Service, *fakeTxnRepo) {
	t.Helper()
	z, _ := zap.NewDevelopment()
	log := logger.NewLogger(z)

	client := tola.NewClient(tola.Config{APIKey: "test-key", BaseURL: server.URL}, log)
	repo := newFakeTxnRepo()
	svc := testService(repo)
	NewExecutors(client, assets, log).RegisterAll(svc)
	return svc, repo
}

func TestCreateContract_CompletesEntryAndRecordsMint(t *testing.T) {
	server := mintServer(t, tola.MintResponse{
		ContractID:   "c1",
		ContractHash: "hash-1",
		TokenID:      "t1",
	})
	defer server.Close()

	assets := newStubAssetRepo()
	require.NoError(t, assets.Upsert(context.Background(), &entities.AssetContractRecord{
		AssetID: 7, Status: entities.ContractStatusPending,
	}))

	svc, repo := executorFixture(t, server, assets)
	id, err := svc.Enqueue(context.Background(), entities.TxTypeCreateContract,
		json.RawMessage(`{"asset_id":7,"contract_data":{"title":"Genesis"}}`))
	require.NoError(t, err)

	n, err := svc.ProcessQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, entities.TxStatusCompleted, stored.Status)
	assert.Contains(t, string(stored.Result), `"contract_id":"c1"`)

	asset, err := assets.GetByAssetID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, entities.ContractStatusMinted, asset.Status)
	require.NotNil(t, asset.ContractID)
	assert.Equal(t, "c1", *asset.ContractID)
	require.NotNil(t, asset.TokenID)
	assert.Equal(t, "t1", *asset.TokenID)
}

func TestCreateContract_MirrorWriteFailureDoesNotFailEntry(t *testing.T) {
	server := mintServer(t, tola.MintResponse{ContractID: "c2", TokenID: "t2"})
	defer server.Close()

	assets := newStubAssetRepo()
	assets.updateErr = fmt.Errorf("deadlock detected")

	svc, repo := executorFixture(t, server, assets)
	id, err := svc.Enqueue(context.Background(), entities.TxTypeCreateContract,
		json.RawMessage(`{"asset_id":7,"contract_data":{}}`))
	require.NoError(t, err)

	_, err = svc.ProcessQueue(context.Background())
	require.NoError(t, err)

	// The contract exists on the ledger; losing the mirror write must not
	// re-run the mint. The identifiers survive in the stored result.
	stored, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, entities.TxStatusCompleted, stored.Status)
	assert.Contains(t, string(stored.Result), `"contract_id":"c2"`)
}

func TestCreateContract_LedgerErrorLeavesEntryPending(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"code":"invalid_contract","message":"bad contract data"}`))
	}))
	defer server.Close()

	assets := newStubAssetRepo()
	svc, repo := executorFixture(t, server, assets)
	id, err := svc.Enqueue(context.Background(), entities.TxTypeCreateContract,
		json.RawMessage(`{"asset_id":7,"contract_data":{}}`))
	require.NoError(t, err)

	_, err = svc.ProcessQueue(context.Background())
	require.NoError(t, err)

	stored, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, entities.TxStatusPending, stored.Status)
	assert.Equal(t, uint32(1), stored.Attempts)
}
