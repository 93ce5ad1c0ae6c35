package handlers

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vortex-market/tola-sync/internal/domain/entities"
	"github.com/vortex-market/tola-sync/internal/domain/services/dispatch"
	"github.com/vortex-market/tola-sync/pkg/logger"
	"github.com/vortex-market/tola-sync/pkg/metrics"
	"github.com/vortex-market/tola-sync/pkg/webhook"
)

// SignatureHeader carries the HMAC of the raw request body
const SignatureHeader = "X-Tola-Signature"

// WebhookHandlers receives ledger webhooks and hands verified events to
// the dispatcher.
type WebhookHandlers struct {
	dispatcher     *dispatch.Dispatcher
	secret         string
	previousSecret string
	logger         *logger.Logger
}

// NewWebhookHandlers creates the webhook handler set. previousSecret may
// be empty; it is honored during secret rotation.
func NewWebhookHandlers(dispatcher *dispatch.Dispatcher, secret, previousSecret string, log *logger.Logger) *WebhookHandlers {
	return &WebhookHandlers{
		dispatcher:     dispatcher,
		secret:         secret,
		previousSecret: previousSecret,
		logger:         log,
	}
}

// wirePayload is the envelope the ledger service posts
type wirePayload struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
}

// LedgerWebhook handles POST /api/v1/webhooks/tola. Every rejection path
// before dispatch returns the same status and body so a caller probing
// with forged signatures learns nothing about which check failed.
func (h *WebhookHandlers) LedgerWebhook(c *gin.Context) {
	rawBody, err := c.GetRawData()
	if err != nil {
		metrics.WebhooksReceived.WithLabelValues("rejected").Inc()
		respondBadRequest(c, "Invalid webhook request")
		return
	}

	signature := c.GetHeader(SignatureHeader)
	if !webhook.VerifyWithSecrets(rawBody, signature, h.secret, h.previousSecret) {
		metrics.WebhooksReceived.WithLabelValues("rejected").Inc()
		h.logger.Warn("Webhook signature verification failed",
			"request_id", getRequestID(c), "client_ip", c.ClientIP())
		respondBadRequest(c, "Invalid webhook request")
		return
	}

	var payload wirePayload
	if err := json.Unmarshal(rawBody, &payload); err != nil || payload.EventType == "" {
		metrics.WebhooksReceived.WithLabelValues("rejected").Inc()
		respondBadRequest(c, "Invalid webhook request")
		return
	}

	metrics.WebhooksReceived.WithLabelValues("accepted").Inc()

	event := &entities.WebhookEvent{
		EventType:  entities.EventType(payload.EventType),
		Data:       payload.Data,
		ReceivedAt: time.Now().UTC(),
	}

	err = h.dispatcher.Dispatch(c.Request.Context(), event)
	if errors.Is(err, dispatch.ErrUnknownEventType) {
		// Acknowledged so the sender stops redelivering; the dispatcher has
		// already logged the anomaly.
		c.JSON(200, gin.H{"status": "ignored"})
		return
	}
	if err != nil {
		// Recognized events are acknowledged even when handling fails: the
		// sender redelivers on non-2xx, and a payload that can never be
		// applied would loop forever. Failures surface to operators through
		// this log and the dispatch metrics, not through the response code.
		h.logger.Error("Webhook event processing failed",
			"error", err, "event_type", payload.EventType, "request_id", getRequestID(c))
		c.JSON(200, gin.H{"status": "error"})
		return
	}

	c.JSON(200, gin.H{"status": "processed"})
}
