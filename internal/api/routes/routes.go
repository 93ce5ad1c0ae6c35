package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vortex-market/tola-sync/internal/adapters/tola"
	"github.com/vortex-market/tola-sync/internal/api/handlers"
	"github.com/vortex-market/tola-sync/internal/api/middleware"
	"github.com/vortex-market/tola-sync/internal/domain/services/balance"
	"github.com/vortex-market/tola-sync/internal/domain/services/dispatch"
	"github.com/vortex-market/tola-sync/internal/domain/services/queue"
	"github.com/vortex-market/tola-sync/internal/infrastructure/cache"
	"github.com/vortex-market/tola-sync/internal/infrastructure/config"
	"github.com/vortex-market/tola-sync/pkg/logger"
)

// Deps carries everything the HTTP layer needs
type Deps struct {
	Config         *config.Config
	DB             *sqlx.DB
	Cache          cache.Cache
	Ledger         *tola.Client
	Dispatcher     *dispatch.Dispatcher
	QueueService   *queue.Service
	BalanceService *balance.Service
	Logger         *logger.Logger
}

// SetupRoutes configures all application routes
func SetupRoutes(deps Deps) *gin.Engine {
	if deps.Config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.RequestSizeLimit())
	router.Use(middleware.Logger(deps.Logger))
	router.Use(middleware.Recovery(deps.Logger))

	healthHandlers := handlers.NewHealthHandlers(deps.DB, deps.Cache, deps.Ledger, deps.Logger)
	router.GET("/live", healthHandlers.Live)
	router.GET("/health", healthHandlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	webhookHandlers := handlers.NewWebhookHandlers(
		deps.Dispatcher,
		deps.Config.Tola.WebhookSecret,
		deps.Config.Tola.PreviousWebhookSecret,
		deps.Logger,
	)
	adminHandlers := handlers.NewAdminHandlers(deps.QueueService, deps.BalanceService, deps.Logger)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/webhooks/tola", webhookHandlers.LedgerWebhook)

		admin := v1.Group("/admin", middleware.AdminAuth(deps.Config.Server.AdminToken))
		{
			admin.GET("/queue", adminHandlers.QueueStatus)
			admin.POST("/queue/process", adminHandlers.ProcessQueue)
			admin.GET("/balance/:address", adminHandlers.WalletBalance)
		}
	}

	return router
}
