package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vortex-market/tola-sync/internal/domain/entities"
	"github.com/vortex-market/tola-sync/pkg/logger"
)

func testDispatcher() *Dispatcher {
	z, _ := zap.NewDevelopment()
	return NewDispatcher(logger.NewLogger(z))
}

func event(eventType entities.EventType, data string) *entities.WebhookEvent {
	return &entities.WebhookEvent{EventType: eventType, Data: json.RawMessage(data)}
}

func TestDispatch_RoutesToRegisteredHandler(t *testing.T) {
	d := testDispatcher()

	var got json.RawMessage
	d.Register(entities.EventTokenTransfer, func(_ context.Context, data json.RawMessage) error {
		got = data
		return nil
	})

	err := d.Dispatch(context.Background(), event(entities.EventTokenTransfer, `{"amount":"5"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"5"}`, string(got))
}

func TestDispatch_UnknownTypeReturnsSentinel(t *testing.T) {
	d := testDispatcher()
	d.Register(entities.EventTokenTransfer, func(_ context.Context, _ json.RawMessage) error {
		t.Fatal("handler must not run for other types")
		return nil
	})

	err := d.Dispatch(context.Background(), event("nft_burned", `{}`))
	assert.ErrorIs(t, err, ErrUnknownEventType)
}

func TestDispatch_HandlerErrorPropagates(t *testing.T) {
	d := testDispatcher()
	boom := errors.New("handler exploded")
	d.Register(entities.EventContractUpdate, func(_ context.Context, _ json.RawMessage) error {
		return boom
	})

	err := d.Dispatch(context.Background(), event(entities.EventContractUpdate, `{}`))
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrUnknownEventType)
}

func TestDispatch_HandlerFailureDoesNotAffectOtherTypes(t *testing.T) {
	d := testDispatcher()
	d.Register(entities.EventContractUpdate, func(_ context.Context, _ json.RawMessage) error {
		return errors.New("always fails")
	})
	var saleHandled bool
	d.Register(entities.EventMarketplaceSale, func(_ context.Context, _ json.RawMessage) error {
		saleHandled = true
		return nil
	})

	_ = d.Dispatch(context.Background(), event(entities.EventContractUpdate, `{}`))
	require.NoError(t, d.Dispatch(context.Background(), event(entities.EventMarketplaceSale, `{}`)))
	assert.True(t, saleHandled)
}

func TestRegisterHandlers_DecodeRejectsMalformedPayload(t *testing.T) {
	d := testDispatcher()
	d.Register(entities.EventTokenTransfer, decode(func(_ context.Context, _ *entities.TokenTransferEvent) error {
		t.Fatal("handler must not run on malformed payload")
		return nil
	}))

	err := d.Dispatch(context.Background(), event(entities.EventTokenTransfer, `{"amount":`))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownEventType)
}
