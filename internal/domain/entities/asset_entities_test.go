package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestContractStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from ContractStatus
		to   ContractStatus
		want bool
	}{
		{ContractStatusPending, ContractStatusMinted, true},
		{ContractStatusPending, ContractStatusTransferred, true},
		{ContractStatusMinted, ContractStatusTransferred, true},
		{ContractStatusMinted, ContractStatusPending, false},
		{ContractStatusTransferred, ContractStatusMinted, false},
		{ContractStatusTransferred, ContractStatusPending, false},
		// failed is always reachable and terminal
		{ContractStatusPending, ContractStatusFailed, true},
		{ContractStatusMinted, ContractStatusFailed, true},
		{ContractStatusFailed, ContractStatusMinted, false},
		// re-applying the current status is filtered out like a regression;
		// the store treats it as a no-op rather than an error
		{ContractStatusMinted, ContractStatusMinted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestQueuedTransaction_Eligible(t *testing.T) {
	now := time.Now().UTC()
	cooldown := 5 * time.Minute

	fresh := NewQueuedTransaction(TxTypeCreateContract, nil, 5)
	assert.True(t, fresh.Eligible(now, cooldown), "never-attempted entry is eligible")

	fresh.MarkAttempt(now)
	assert.False(t, fresh.Eligible(now.Add(time.Minute), cooldown), "inside cooldown")
	assert.True(t, fresh.Eligible(now.Add(6*time.Minute), cooldown), "past cooldown")

	fresh.MarkCompleted(nil)
	assert.False(t, fresh.Eligible(now.Add(time.Hour), cooldown), "terminal entries never run")

	failed := NewQueuedTransaction(TxTypeRegisterSale, nil, 5)
	failed.MarkFailed("Max attempts reached")
	assert.False(t, failed.Eligible(now.Add(time.Hour), cooldown))
}
