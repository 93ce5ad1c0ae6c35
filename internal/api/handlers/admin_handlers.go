package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vortex-market/tola-sync/internal/domain/services/balance"
	"github.com/vortex-market/tola-sync/internal/domain/services/queue"
	"github.com/vortex-market/tola-sync/pkg/logger"
)

// AdminHandlers exposes operator endpoints: queue introspection, a manual
// drain trigger and balance lookups.
type AdminHandlers struct {
	queueService   *queue.Service
	balanceService *balance.Service
	logger         *logger.Logger
}

// NewAdminHandlers creates the admin handler set
func NewAdminHandlers(queueService *queue.Service, balanceService *balance.Service, log *logger.Logger) *AdminHandlers {
	return &AdminHandlers{
		queueService:   queueService,
		balanceService: balanceService,
		logger:         log,
	}
}

// QueueStatus handles GET /api/v1/admin/queue
func (h *AdminHandlers) QueueStatus(c *gin.Context) {
	counts, err := h.queueService.Status(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to read queue status", "error", err)
		respondInternalError(c, "Failed to read queue status")
		return
	}
	c.JSON(http.StatusOK, gin.H{"queue": counts})
}

// ProcessQueue handles POST /api/v1/admin/queue/process. The cron worker
// runs the same drain on its schedule; this exists for operators who do
// not want to wait for the next tick.
func (h *AdminHandlers) ProcessQueue(c *gin.Context) {
	executed, err := h.queueService.ProcessQueue(c.Request.Context())
	if err != nil {
		h.logger.Error("Manual queue drain failed", "error", err)
		respondInternalError(c, "Failed to process queue")
		return
	}
	c.JSON(http.StatusOK, gin.H{"executed": executed})
}

// WalletBalance handles GET /api/v1/admin/balance/:address
func (h *AdminHandlers) WalletBalance(c *gin.Context) {
	address := c.Param("address")
	if address == "" {
		respondBadRequest(c, "Wallet address is required")
		return
	}

	amount, err := h.balanceService.Get(c.Request.Context(), address)
	if err != nil {
		h.logger.Error("Failed to fetch balance", "error", err, "address", address)
		respondInternalError(c, "Failed to fetch balance")
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": address, "balance": amount})
}
