// Package dispatch routes verified webhook events to their typed
// handlers. Unknown event types are not an error to the sender: the
// ledger service adds event types faster than consumers upgrade, and a
// non-2xx response would only trigger pointless redelivery.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vortex-market/tola-sync/internal/domain/entities"
	"github.com/vortex-market/tola-sync/pkg/logger"
	"github.com/vortex-market/tola-sync/pkg/metrics"
)

// ErrUnknownEventType marks an event type with no registered handler
var ErrUnknownEventType = errors.New("unknown event type")

// Handler processes one decoded webhook event payload
type Handler func(ctx context.Context, data json.RawMessage) error

// Dispatcher holds the event type registry
type Dispatcher struct {
	handlers map[entities.EventType]Handler
	logger   *logger.Logger
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher(log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[entities.EventType]Handler),
		logger:   log,
	}
}

// Register binds a handler to an event type, replacing any previous one
func (d *Dispatcher) Register(eventType entities.EventType, handler Handler) {
	d.handlers[eventType] = handler
}

// Dispatch routes the event to its handler. An unknown event type
// returns ErrUnknownEventType so the transport layer can acknowledge it
// while still logging the anomaly; handler failures propagate as-is.
func (d *Dispatcher) Dispatch(ctx context.Context, event *entities.WebhookEvent) error {
	handler, ok := d.handlers[event.EventType]
	if !ok {
		metrics.EventsDispatched.WithLabelValues(string(event.EventType), "unknown").Inc()
		d.logger.Warn("Received webhook with unknown event type", "event_type", event.EventType)
		return fmt.Errorf("%w: %s", ErrUnknownEventType, event.EventType)
	}

	if err := handler(ctx, event.Data); err != nil {
		metrics.EventsDispatched.WithLabelValues(string(event.EventType), "error").Inc()
		return fmt.Errorf("handler for %s failed: %w", event.EventType, err)
	}

	metrics.EventsDispatched.WithLabelValues(string(event.EventType), "ok").Inc()
	return nil
}

// RegisterHandlers wires the reconciliation handlers for every event type
// the ledger service currently emits.
func RegisterHandlers(d *Dispatcher, r ReconcileHandlers) {
	d.Register(entities.EventTokenTransfer, decode(r.ApplyTransfer))
	d.Register(entities.EventContractUpdate, decode(r.HandleContractUpdate))
	d.Register(entities.EventNewAsset, decode(r.HandleNewAsset))
	d.Register(entities.EventMarketplaceSale, decode(r.HandleMarketplaceSale))
}

// ReconcileHandlers is the slice of the reconciler the dispatcher needs
type ReconcileHandlers interface {
	ApplyTransfer(ctx context.Context, ev *entities.TokenTransferEvent) error
	HandleContractUpdate(ctx context.Context, ev *entities.ContractUpdateEvent) error
	HandleNewAsset(ctx context.Context, ev *entities.NewAssetEvent) error
	HandleMarketplaceSale(ctx context.Context, ev *entities.MarketplaceSaleEvent) error
}

// decode adapts a typed handler to the raw-payload Handler signature
func decode[T any](fn func(ctx context.Context, ev *T) error) Handler {
	return func(ctx context.Context, data json.RawMessage) error {
		var ev T
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("malformed event payload: %w", err)
		}
		return fn(ctx, &ev)
	}
}
