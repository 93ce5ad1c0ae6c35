package batch

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vortex-market/tola-sync/internal/domain/entities"
	"github.com/vortex-market/tola-sync/pkg/logger"
)

type fakeTaskRepo struct {
	scheduled []*entities.ScheduledTask
}

func (f *fakeTaskRepo) Schedule(_ context.Context, task *entities.ScheduledTask) error {
	f.scheduled = append(f.scheduled, task)
	return nil
}

func (f *fakeTaskRepo) ClaimDue(_ context.Context, _ time.Time, _ int) ([]*entities.ScheduledTask, error) {
	return nil, nil
}

func (f *fakeTaskRepo) Complete(_ context.Context, _ uuid.UUID) error { return nil }

func (f *fakeTaskRepo) Retry(_ context.Context, _ uuid.UUID, _ time.Time, _ string) error {
	return nil
}

type fakeApplier struct {
	applied []*entities.TransferBatchPayload
	err     error
}

func (f *fakeApplier) ApplyBatch(_ context.Context, payload *entities.TransferBatchPayload) error {
	if f.err != nil {
		return f.err
	}
	f.applied = append(f.applied, payload)
	return nil
}

type fakeNotifier struct {
	completions int
	lastTotal   decimal.Decimal
	lastBatches uint32
}

func (f *fakeNotifier) LargeTransferComplete(_ context.Context, _, _ string, total decimal.Decimal, batches uint32, _ string) {
	f.completions++
	f.lastTotal = total
	f.lastBatches = batches
}

type fakeRefresher struct {
	refreshes int
}

func (f *fakeRefresher) RefreshMetrics(_ context.Context) error {
	f.refreshes++
	return nil
}

func testScheduler(repo *fakeTaskRepo, applier *fakeApplier, notifier *fakeNotifier, refresher *fakeRefresher) *Scheduler {
	z, _ := zap.NewDevelopment()
	return NewScheduler(Config{
		BatchSize:       decimal.NewFromInt(50),
		InterBatchDelay: 10 * time.Second,
		TaskMaxAttempts: 3,
	}, repo, applier, notifier, refresher, logger.NewLogger(z))
}

func decodePayloads(t *testing.T, tasks []*entities.ScheduledTask) []entities.TransferBatchPayload {
	t.Helper()
	out := make([]entities.TransferBatchPayload, 0, len(tasks))
	for _, task := range tasks {
		var p entities.TransferBatchPayload
		require.NoError(t, json.Unmarshal(task.Payload, &p))
		out = append(out, p)
	}
	return out
}

func TestScheduleBatches_SplitsWithRemainder(t *testing.T) {
	repo := &fakeTaskRepo{}
	s := testScheduler(repo, &fakeApplier{}, &fakeNotifier{}, &fakeRefresher{})

	err := s.ScheduleBatches(context.Background(), "addr-a", "addr-b",
		decimal.NewFromInt(125), "0xhash", 777)
	require.NoError(t, err)
	require.Len(t, repo.scheduled, 3)

	payloads := decodePayloads(t, repo.scheduled)
	assert.Equal(t, "50", payloads[0].Amount)
	assert.Equal(t, "50", payloads[1].Amount)
	assert.Equal(t, "25", payloads[2].Amount)

	for i, p := range payloads {
		assert.Equal(t, uint32(i), p.BatchIndex)
		assert.Equal(t, uint32(3), p.TotalBatches)
		assert.Equal(t, "125", p.TotalAmount)
		assert.Equal(t, i == 2, p.IsLast)
		assert.Equal(t, "0xhash", p.TxHash)
	}
}

func TestScheduleBatches_ExactMultiple(t *testing.T) {
	repo := &fakeTaskRepo{}
	s := testScheduler(repo, &fakeApplier{}, &fakeNotifier{}, &fakeRefresher{})

	err := s.ScheduleBatches(context.Background(), "a", "b",
		decimal.NewFromInt(100), "0xhash", 1)
	require.NoError(t, err)
	require.Len(t, repo.scheduled, 2)

	payloads := decodePayloads(t, repo.scheduled)
	assert.Equal(t, "50", payloads[0].Amount)
	assert.Equal(t, "50", payloads[1].Amount)
	assert.True(t, payloads[1].IsLast)
}

func TestScheduleBatches_SmallAmountSingleBatch(t *testing.T) {
	repo := &fakeTaskRepo{}
	s := testScheduler(repo, &fakeApplier{}, &fakeNotifier{}, &fakeRefresher{})

	err := s.ScheduleBatches(context.Background(), "a", "b",
		decimal.NewFromInt(7), "0xhash", 1)
	require.NoError(t, err)
	require.Len(t, repo.scheduled, 1)

	payloads := decodePayloads(t, repo.scheduled)
	assert.Equal(t, "7", payloads[0].Amount)
	assert.True(t, payloads[0].IsLast)
}

func TestScheduleBatches_ChunksSumToTotal(t *testing.T) {
	repo := &fakeTaskRepo{}
	s := testScheduler(repo, &fakeApplier{}, &fakeNotifier{}, &fakeRefresher{})

	total := decimal.RequireFromString("12345.67")
	err := s.ScheduleBatches(context.Background(), "a", "b", total, "0xhash", 1)
	require.NoError(t, err)

	sum := decimal.Zero
	for _, p := range decodePayloads(t, repo.scheduled) {
		sum = sum.Add(decimal.RequireFromString(p.Amount))
	}
	assert.True(t, sum.Equal(total), "chunks sum %s, want %s", sum, total)
}

func TestScheduleBatches_StaggersRunTimes(t *testing.T) {
	repo := &fakeTaskRepo{}
	s := testScheduler(repo, &fakeApplier{}, &fakeNotifier{}, &fakeRefresher{})

	require.NoError(t, s.ScheduleBatches(context.Background(), "a", "b",
		decimal.NewFromInt(150), "0xhash", 1))
	require.Len(t, repo.scheduled, 3)

	for i := 1; i < len(repo.scheduled); i++ {
		gap := repo.scheduled[i].RunAt.Sub(repo.scheduled[i-1].RunAt)
		assert.Equal(t, 10*time.Second, gap)
	}
}

func TestScheduleBatches_RejectsNonPositive(t *testing.T) {
	s := testScheduler(&fakeTaskRepo{}, &fakeApplier{}, &fakeNotifier{}, &fakeRefresher{})
	assert.Error(t, s.ScheduleBatches(context.Background(), "a", "b", decimal.Zero, "0x", 1))
	assert.Error(t, s.ScheduleBatches(context.Background(), "a", "b", decimal.NewFromInt(-5), "0x", 1))
}

func TestScheduleBatches_RejectsZeroBatchSize(t *testing.T) {
	z, _ := zap.NewDevelopment()
	repo := &fakeTaskRepo{}
	s := NewScheduler(Config{
		BatchSize:       decimal.Zero,
		InterBatchDelay: 10 * time.Second,
		TaskMaxAttempts: 3,
	}, repo, &fakeApplier{}, &fakeNotifier{}, &fakeRefresher{}, logger.NewLogger(z))

	// Must error out, not panic on the division, and schedule nothing
	assert.Error(t, s.ScheduleBatches(context.Background(), "a", "b", decimal.NewFromInt(20000), "0x", 1))
	assert.Empty(t, repo.scheduled)
}

func TestExecuteBatch_FinalChunkTriggersSideEffects(t *testing.T) {
	applier := &fakeApplier{}
	notifier := &fakeNotifier{}
	refresher := &fakeRefresher{}
	s := testScheduler(&fakeTaskRepo{}, applier, notifier, refresher)

	mid, _ := json.Marshal(entities.TransferBatchPayload{
		From: "a", To: "b", Amount: "50", TxHash: "0x1",
		BatchIndex: 0, TotalBatches: 2, TotalAmount: "75", IsLast: false,
	})
	last, _ := json.Marshal(entities.TransferBatchPayload{
		From: "a", To: "b", Amount: "25", TxHash: "0x1",
		BatchIndex: 1, TotalBatches: 2, TotalAmount: "75", IsLast: true,
	})

	require.NoError(t, s.ExecuteBatch(context.Background(), mid))
	assert.Equal(t, 0, notifier.completions)
	assert.Equal(t, 0, refresher.refreshes)

	require.NoError(t, s.ExecuteBatch(context.Background(), last))
	assert.Equal(t, 1, notifier.completions)
	assert.Equal(t, 1, refresher.refreshes)
	assert.True(t, notifier.lastTotal.Equal(decimal.NewFromInt(75)))
	assert.Equal(t, uint32(2), notifier.lastBatches)
	assert.Len(t, applier.applied, 2)
}

func TestExecuteBatch_ApplyFailurePropagates(t *testing.T) {
	applier := &fakeApplier{err: assert.AnError}
	notifier := &fakeNotifier{}
	s := testScheduler(&fakeTaskRepo{}, applier, notifier, &fakeRefresher{})

	raw, _ := json.Marshal(entities.TransferBatchPayload{
		From: "a", To: "b", Amount: "25", TxHash: "0x1",
		BatchIndex: 1, TotalBatches: 2, TotalAmount: "75", IsLast: true,
	})
	assert.Error(t, s.ExecuteBatch(context.Background(), raw))
	assert.Equal(t, 0, notifier.completions, "side effects must not run when the chunk fails")
}
