package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vortex-market/tola-sync/internal/domain/entities"
	"github.com/vortex-market/tola-sync/internal/domain/services/dispatch"
	"github.com/vortex-market/tola-sync/pkg/logger"
	"github.com/vortex-market/tola-sync/pkg/webhook"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testRouter(t *testing.T, register func(*dispatch.Dispatcher)) (*gin.Engine, *dispatch.Dispatcher) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	z, _ := zap.NewDevelopment()
	log := logger.NewLogger(z)

	d := dispatch.NewDispatcher(log)
	if register != nil {
		register(d)
	}

	h := NewWebhookHandlers(d, testSecret, "", log)
	router := gin.New()
	router.POST("/webhook", h.LedgerWebhook)
	return router, d
}

func post(router *gin.Engine, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func signedBody(t *testing.T, eventType string, data interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{"event_type": eventType, "data": data})
	require.NoError(t, err)
	return raw
}

func TestLedgerWebhook_ValidSignatureDispatches(t *testing.T) {
	var handled bool
	router, _ := testRouter(t, func(d *dispatch.Dispatcher) {
		d.Register(entities.EventTokenTransfer, func(_ context.Context, _ json.RawMessage) error {
			handled = true
			return nil
		})
	})

	body := signedBody(t, "token_transfer", map[string]string{"tx_hash": "0x1"})
	w := post(router, body, webhook.Sign(body, testSecret))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, handled)
	assert.Contains(t, w.Body.String(), "processed")
}

func TestLedgerWebhook_RejectionsAreIndistinguishable(t *testing.T) {
	router, _ := testRouter(t, func(d *dispatch.Dispatcher) {
		d.Register(entities.EventTokenTransfer, func(_ context.Context, _ json.RawMessage) error {
			t.Fatal("handler must not run on a rejected request")
			return nil
		})
	})

	body := signedBody(t, "token_transfer", map[string]string{"tx_hash": "0x1"})

	tests := []struct {
		name      string
		body      []byte
		signature string
	}{
		{"missing signature", body, ""},
		{"wrong secret", body, webhook.Sign(body, "some-other-secret-value-entirely")},
		{"tampered body", append(body, ' '), webhook.Sign(body, testSecret)},
		{"garbage signature", body, "zzzz"},
		{"malformed json", []byte("{"), webhook.Sign([]byte("{"), testSecret)},
		{"missing event type", []byte(`{"data":{}}`), webhook.Sign([]byte(`{"data":{}}`), testSecret)},
	}

	var firstBody string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(router, tt.body, tt.signature)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			if firstBody == "" {
				firstBody = w.Body.String()
				return
			}
			// Every rejection returns the same body
			assert.Equal(t, firstBody, w.Body.String())
		})
	}
}

func TestLedgerWebhook_UnknownEventTypeAcknowledged(t *testing.T) {
	router, _ := testRouter(t, nil)

	body := signedBody(t, "nft_burned", map[string]string{"token_id": "t1"})
	w := post(router, body, webhook.Sign(body, testSecret))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ignored")
}

func TestLedgerWebhook_HandlerFailureStillAcknowledged(t *testing.T) {
	var attempts int
	router, _ := testRouter(t, func(d *dispatch.Dispatcher) {
		d.Register(entities.EventContractUpdate, func(_ context.Context, _ json.RawMessage) error {
			attempts++
			return assert.AnError
		})
	})

	body := signedBody(t, "contract_update", map[string]string{"contract_id": "c1"})

	// A payload the handler can never apply must not solicit redelivery:
	// every delivery gets a 2xx, however often the sender repeats it.
	for i := 0; i < 3; i++ {
		w := post(router, body, webhook.Sign(body, testSecret))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "error")
	}
	assert.Equal(t, 3, attempts)
}

func TestLedgerWebhook_InvalidEventPayloadAcknowledged(t *testing.T) {
	router, _ := testRouter(t, func(d *dispatch.Dispatcher) {
		dispatch.RegisterHandlers(d, failingReconciler{})
	})

	// token_transfer with no from/to/amount fails validation permanently
	body := signedBody(t, "token_transfer", map[string]string{})
	w := post(router, body, webhook.Sign(body, testSecret))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "error")
}

// failingReconciler stands in for the real reconciler: every handler
// rejects its event the way validation would.
type failingReconciler struct{}

func (failingReconciler) ApplyTransfer(_ context.Context, ev *entities.TokenTransferEvent) error {
	return ev.Validate()
}

func (failingReconciler) HandleContractUpdate(_ context.Context, ev *entities.ContractUpdateEvent) error {
	return ev.Validate()
}

func (failingReconciler) HandleNewAsset(_ context.Context, ev *entities.NewAssetEvent) error {
	return ev.Validate()
}

func (failingReconciler) HandleMarketplaceSale(_ context.Context, ev *entities.MarketplaceSaleEvent) error {
	return ev.Validate()
}

func TestLedgerWebhook_PreviousSecretHonored(t *testing.T) {
	gin.SetMode(gin.TestMode)
	z, _ := zap.NewDevelopment()
	log := logger.NewLogger(z)

	var handled bool
	d := dispatch.NewDispatcher(log)
	d.Register(entities.EventTokenTransfer, func(_ context.Context, _ json.RawMessage) error {
		handled = true
		return nil
	})

	previous := "previous-secret-previous-secret-"
	h := NewWebhookHandlers(d, testSecret, previous, log)
	router := gin.New()
	router.POST("/webhook", h.LedgerWebhook)

	body := signedBody(t, "token_transfer", map[string]string{"tx_hash": "0x1"})
	w := post(router, body, webhook.Sign(body, previous))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, handled)
}
