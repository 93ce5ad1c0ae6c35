package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/vortex-market/tola-sync/internal/adapters/tola"
	"github.com/vortex-market/tola-sync/internal/infrastructure/cache"
	"github.com/vortex-market/tola-sync/pkg/logger"
)

// HealthHandlers reports service and dependency health
type HealthHandlers struct {
	db     *sqlx.DB
	cache  cache.Cache
	ledger *tola.Client
	logger *logger.Logger
}

// NewHealthHandlers creates the health handler set
func NewHealthHandlers(db *sqlx.DB, c cache.Cache, ledger *tola.Client, log *logger.Logger) *HealthHandlers {
	return &HealthHandlers{db: db, cache: c, ledger: ledger, logger: log}
}

// Live handles GET /live: the process is up
func (h *HealthHandlers) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Health handles GET /health: checks every dependency and reports each
// one, with 503 if any hard dependency is down.
func (h *HealthHandlers) Health(c *gin.Context) {
	ctx := c.Request.Context()
	checks := gin.H{}
	healthy := true

	if err := h.db.PingContext(ctx); err != nil {
		checks["database"] = "down"
		healthy = false
		h.logger.Error("Health check: database unreachable", "error", err)
	} else {
		checks["database"] = "up"
	}

	if err := h.cache.Ping(ctx); err != nil {
		checks["cache"] = "down"
		healthy = false
	} else {
		checks["cache"] = "up"
	}

	// The ledger being down degrades us but webhooks still queue up, so it
	// does not flip readiness.
	if status, err := h.ledger.GetStatus(ctx); err != nil || !status.Healthy {
		checks["ledger"] = "down"
	} else {
		checks["ledger"] = "up"
	}

	code := http.StatusOK
	status := "healthy"
	if !healthy {
		code = http.StatusServiceUnavailable
		status = "unhealthy"
	}
	c.JSON(code, gin.H{"status": status, "checks": checks})
}
