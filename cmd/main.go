package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vortex-market/tola-sync/internal/adapters/tola"
	"github.com/vortex-market/tola-sync/internal/api/routes"
	"github.com/vortex-market/tola-sync/internal/domain/services/balance"
	"github.com/vortex-market/tola-sync/internal/domain/services/batch"
	"github.com/vortex-market/tola-sync/internal/domain/services/dispatch"
	"github.com/vortex-market/tola-sync/internal/domain/services/notify"
	"github.com/vortex-market/tola-sync/internal/domain/services/queue"
	"github.com/vortex-market/tola-sync/internal/domain/services/reconcile"
	"github.com/vortex-market/tola-sync/internal/infrastructure/cache"
	"github.com/vortex-market/tola-sync/internal/infrastructure/config"
	"github.com/vortex-market/tola-sync/internal/infrastructure/database"
	"github.com/vortex-market/tola-sync/internal/infrastructure/repositories"
	"github.com/vortex-market/tola-sync/internal/workers/ledger_monitor"
	"github.com/vortex-market/tola-sync/internal/workers/queue_worker"
	"github.com/vortex-market/tola-sync/internal/workers/task_worker"
	"github.com/vortex-market/tola-sync/pkg/logger"
	"github.com/vortex-market/tola-sync/pkg/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log := logger.New(cfg.LogLevel, cfg.Environment)
	defer func() { _ = log.Sync() }()

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn("Failed to close database connection", "error", err)
		}
	}()

	if err := database.RunMigrations(cfg.Database.URL); err != nil {
		log.Fatal("Failed to run migrations", "error", err)
	}

	redisCache, err := cache.NewRedisCache(cfg.Redis, log)
	if err != nil {
		log.Fatal("Failed to connect to Redis", "error", err)
	}
	defer func() { _ = redisCache.Close() }()

	// Repositories
	transferRepo := repositories.NewTransferRepository(db, log)
	walletRepo := repositories.NewWalletBindingRepository(db, log)
	saleRepo := repositories.NewSaleRepository(db, log)
	assetRepo := repositories.NewAssetContractRepository(db, log)
	txnRepo := repositories.NewQueuedTransactionRepository(db, log)
	taskRepo := repositories.NewScheduledTaskRepository(db, log)

	// Ledger client
	ledger := tola.NewClient(tola.Config{
		APIKey:       cfg.Tola.APIKey,
		BaseURL:      cfg.Tola.BaseURL,
		Timeout:      time.Duration(cfg.Tola.RequestTimeout) * time.Second,
		QueryTimeout: time.Duration(cfg.Tola.QueryTimeout) * time.Second,
	}, log)

	// Services
	notifier := notify.NewService(cfg.Notify, log)
	balanceService := balance.NewService(ledger, walletRepo, redisCache,
		time.Duration(cfg.Sync.BalanceCacheTTL)*time.Second, log)

	threshold, err := decimal.NewFromString(cfg.Sync.LargeTransferThreshold)
	if err != nil {
		log.Fatal("Invalid large transfer threshold", "error", err, "value", cfg.Sync.LargeTransferThreshold)
	}
	batchSize, err := decimal.NewFromString(cfg.Sync.BatchSize)
	if err != nil {
		log.Fatal("Invalid batch size", "error", err, "value", cfg.Sync.BatchSize)
	}

	// The scheduler and reconciler reference each other: the reconciler
	// hands oversized transfers to the scheduler, the scheduler applies
	// chunks through the reconciler. Build the scheduler first and fill in
	// the applier once the reconciler exists.
	scheduler := batch.NewScheduler(batch.Config{
		BatchSize:       batchSize,
		InterBatchDelay: cfg.Sync.InterBatchDelayDuration(),
		TaskMaxAttempts: int(cfg.Sync.TaskMaxAttempts),
	}, taskRepo, nil, notifier, balanceService, log)

	reconciler := reconcile.NewService(reconcile.Config{
		LargeTransferThreshold: threshold,
	}, transferRepo, walletRepo, assetRepo, saleRepo, scheduler, balanceService, log)
	scheduler.SetApplier(reconciler)

	queueService := queue.NewService(queue.Config{
		MaxAttempts:   int(cfg.Queue.MaxAttempts),
		RetryCooldown: cfg.Queue.RetryCooldownDuration(),
		DrainLimit:    cfg.Queue.DrainLimit,
	}, txnRepo, log)
	queue.NewExecutors(ledger, assetRepo, log).RegisterAll(queueService)

	dispatcher := dispatch.NewDispatcher(log)
	dispatch.RegisterHandlers(dispatcher, reconciler)

	// Workers
	queueWorker := queue_worker.NewWorker(queueService, cfg.Queue.WorkerSpec, log)
	if err := queueWorker.Start(); err != nil {
		log.Fatal("Failed to start queue worker", "error", err)
	}
	defer queueWorker.Stop()

	taskWorker := task_worker.NewWorker(taskRepo, scheduler,
		time.Duration(cfg.Sync.TaskPollInterval)*time.Second, log)
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	taskWorker.Start(workerCtx)
	defer func() {
		cancelWorkers()
		taskWorker.Stop()
	}()

	monitor := ledger_monitor.NewWorker(ledger, notifier, log)
	if err := monitor.Start(); err != nil {
		log.Fatal("Failed to start ledger monitor", "error", err)
	}
	defer monitor.Stop()

	registerWebhook(cfg, ledger, log)

	// HTTP server
	router := routes.SetupRoutes(routes.Deps{
		Config:         cfg,
		DB:             db,
		Cache:          redisCache,
		Ledger:         ledger,
		Dispatcher:     dispatcher,
		QueueService:   queueService,
		BalanceService: balanceService,
		Logger:         log,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("Forced shutdown", "error", err)
	}
}

// registerWebhook tells the ledger service where to deliver events. Best
// effort at startup; a registration that already exists comes back as a
// success on the ledger side.
func registerWebhook(cfg *config.Config, ledger *tola.Client, log *logger.Logger) {
	if cfg.Server.PublicURL == "" {
		log.Warn("No public URL configured, skipping webhook registration")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var resp *tola.WebhookRegistrationResponse
	err := retry.WithExponentialBackoff(ctx, retry.RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
	}, func() error {
		var rerr error
		resp, rerr = ledger.RegisterWebhook(ctx, &tola.WebhookRegistration{
			URL:    cfg.Server.PublicURL + "/api/v1/webhooks/tola",
			Secret: cfg.Tola.WebhookSecret,
			Events: []string{"token_transfer", "contract_update", "new_artwork", "marketplace_sale"},
		})
		return rerr
	}, tola.IsRetryable)
	if err != nil {
		log.Error("Webhook registration failed", "error", err)
		return
	}
	log.Info("Webhook registered with ledger", "webhook_id", resp.WebhookID)
}
