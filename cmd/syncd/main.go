package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/scc-edu/registry-sync/internal/handler"
	"github.com/scc-edu/registry-sync/internal/models"
	"github.com/scc-edu/registry-sync/internal/remote"
	"github.com/scc-edu/registry-sync/internal/repository"
	"github.com/scc-edu/registry-sync/internal/service"
	"github.com/scc-edu/registry-sync/pkg/cache"
	"github.com/scc-edu/registry-sync/pkg/config"
	"github.com/scc-edu/registry-sync/pkg/database"
	"github.com/scc-edu/registry-sync/pkg/logger"
	corsmiddleware "github.com/scc-edu/registry-sync/pkg/middleware/cors"
	reqidmiddleware "github.com/scc-edu/registry-sync/pkg/middleware/requestid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	store := remote.NewHTTPStore(cfg.Remote.BaseURL, cfg.Remote.RequestTimeout, cfg.Remote.PollInterval, logr)
	defer store.Close()

	queueStore, err := newQueueStore(cfg)
	if err != nil {
		logr.Sugar().Fatalw("failed to init queue store", "backend", cfg.Queue.Backend, "error", err)
	}

	var auditRepo *repository.AuditRepository
	if cfg.Database.Enabled {
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect audit database", "error", err)
		}
		defer db.Close() //nolint:errcheck
		auditRepo = repository.NewAuditRepository(db)
	}

	metrics := service.NewMetricsService()
	audit := newAuditService(auditRepo, logr)

	monitor := service.NewHealthMonitor(store, cfg.Health, metrics, logr)
	queue, err := service.NewOfflineQueue(queueStore, store, cfg.Queue, metrics, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to init offline queue", "error", err)
	}
	reconciler := service.NewReconciler(store, cfg.Reconcile, metrics, logr)
	exports := service.NewExportService(reconciler, nil, nil, logr)
	imports := service.NewImportService(reconciler, queue, audit, cfg.Import, nil, metrics, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	monitor.Start(ctx)
	defer monitor.Stop()
	if err := reconciler.Start(ctx); err != nil {
		logr.Sugar().Fatalw("failed to start reconciler", "error", err)
	}
	defer reconciler.Stop()
	unbind := queue.BindMonitor(ctx, monitor)
	defer unbind()
	unsubDead := queue.SubscribeDeadLetters(func(w models.QueuedWrite) {
		audit.Record(ctx, models.AuditActionDeadLetter, w.Collection, w.Key, w.LastError, w.Payload)
	})
	defer unsubDead()

	statusHandler := handler.NewStatusHandler(monitor, queue)
	registryHandler := handler.NewRegistryHandler(reconciler, exports)
	importHandler := handler.NewImportHandler(imports)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", statusHandler.Health)
	r.GET("/status", statusHandler.Status)
	r.POST("/reconnect", statusHandler.Reconnect)
	r.GET("/queue/dead-letters", statusHandler.DeadLetters)
	r.POST("/queue/flush", statusHandler.Flush)
	r.GET("/registry", registryHandler.List)
	r.GET("/registry/validate/:studentId", registryHandler.Validate)
	r.GET("/registry/export", registryHandler.Export)
	r.POST("/import", importHandler.Upload)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	if auditRepo != nil {
		auditHandler := handler.NewAuditHandler(auditRepo)
		r.GET("/audit/:resourceId", auditHandler.ListByResource)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "queue_backend", cfg.Queue.Backend)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("server shutdown", "error", err)
	}
}

// newQueueStore picks the durable backend for the offline write queue.
func newQueueStore(cfg *config.Config) (queueBackend, error) {
	switch cfg.Queue.Backend {
	case config.QueueBackendRedis:
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			return nil, err
		}
		return repository.NewRedisQueueStore(client), nil
	case config.QueueBackendMemory:
		return repository.NewMemoryQueueStore(), nil
	case config.QueueBackendFilesystem, "":
		return repository.NewFileQueueStore(cfg.Queue.Dir)
	default:
		return nil, fmt.Errorf("unknown queue backend: %s", cfg.Queue.Backend)
	}
}

type queueBackend interface {
	List(ctx context.Context) ([]models.QueuedWrite, error)
	Save(ctx context.Context, w models.QueuedWrite) error
	Delete(ctx context.Context, id string) error
}

func newAuditService(repo *repository.AuditRepository, logr *zap.Logger) *service.AuditService {
	if repo == nil {
		return service.NewAuditService(nil, logr)
	}
	return service.NewAuditService(repo, logr)
}
