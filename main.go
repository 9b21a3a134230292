package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dev-mohitbeniwal/dirsync/audit"
	"github.com/dev-mohitbeniwal/dirsync/cache"
	"github.com/dev-mohitbeniwal/dirsync/config"
	"github.com/dev-mohitbeniwal/dirsync/connector"
	"github.com/dev-mohitbeniwal/dirsync/consumer"
	"github.com/dev-mohitbeniwal/dirsync/controller"
	"github.com/dev-mohitbeniwal/dirsync/dao"
	"github.com/dev-mohitbeniwal/dirsync/db"
	"github.com/dev-mohitbeniwal/dirsync/directory"
	dirsync_errors "github.com/dev-mohitbeniwal/dirsync/errors"
	logger "github.com/dev-mohitbeniwal/dirsync/logging"
	"github.com/dev-mohitbeniwal/dirsync/router"
	"github.com/dev-mohitbeniwal/dirsync/util"
)

func main() {
	// Initialize configuration
	if err := config.InitConfig(); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	// Initialize logger
	logger.InitLogger(config.GetString("log.dir"))
	defer logger.Sync()

	// Initialize Neo4j
	if err := db.InitNeo4j(); err != nil {
		logger.Fatal("Failed to initialize Neo4j", zap.Error(err))
	}
	defer db.CloseNeo4j()

	// Initialize Redis
	if err := db.InitRedis(); err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer db.CloseRedis()

	props, err := config.GetSyncProperties()
	if err != nil {
		logger.Fatal("Invalid sync configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// One connector per consumer name; the run lock keeps a second process
	// from draining the same changelog.
	const runLockTTL = 1 * time.Hour
	locked, err := db.AcquireRunLock(ctx, props.ConsumerName, runLockTTL)
	if err != nil {
		logger.Fatal("Failed to acquire the run lock", zap.Error(err))
	}
	if !locked {
		logger.Fatal("Failed to start",
			zap.Error(dirsync_errors.ErrConnectorLocked),
			zap.String("consumer", props.ConsumerName))
	}
	defer db.ReleaseRunLock(context.Background(), props.ConsumerName)

	// Keep the lock alive for as long as the process runs.
	go func() {
		ticker := time.NewTicker(runLockTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := db.RefreshRunLock(ctx, props.ConsumerName, runLockTTL); err != nil {
					logger.Fatal("Lost the run lock", zap.Error(err),
						zap.String("consumer", props.ConsumerName))
				}
			}
		}
	}()

	// Initialize EventBus
	eventBus := util.NewEventBus()
	eventBus.Start(ctx)

	// Initialize the audit trail and feed it from sync events
	auditRepository, err := audit.NewElasticsearchRepository(config.GetString("elasticsearch.url"))
	if err != nil {
		logger.Fatal("Failed to initialize the audit repository", zap.Error(err))
	}
	auditService := audit.NewService(auditRepository)
	subscribeAudit(eventBus, auditService)

	// The directory client owns transport and credentials; the connector
	// only ever sees the directory.Client interface.
	directoryClient := directory.NewRESTClient(
		config.GetString("directory.baseURL"),
		config.GetString("directory.token"),
	)

	// The directory caches are process-wide: one group cache and one user
	// cache shared by every connector, because the remote directory is one
	// rate-limited system.
	cacheManager := cache.NewManager()

	registryDAO := dao.NewRegistryDAO(db.Neo4jDriver)

	conn := connector.New(props, directoryClient, cacheManager, registryDAO)
	if err := conn.Initialize(ctx); err != nil {
		logger.Fatal("Failed to initialize the connector", zap.Error(err))
	}

	// Pre-populate the decision cache so the first changelog batch doesn't
	// pay for per-node resolution.
	if err := conn.CacheSyncedObjects(ctx, config.GetBool("sync.fullyPopulateDecisions")); err != nil {
		logger.Error("Failed to pre-populate the decision cache", zap.Error(err))
	}

	changeConsumer := consumer.New(conn, registryDAO, eventBus).
		WithCheckpoint(db.NewSequenceCheckpoint(props.ConsumerName))
	go changeConsumer.Run(ctx, config.GetDuration("sync.pollInterval"))

	// Initialize controllers
	syncController := controller.NewSyncController(conn, auditService)

	// Set up Gin
	gin.SetMode(gin.ReleaseMode)
	engine := router.SetupRouter(syncController, 100, time.Minute)

	// Set up the server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", config.GetString("server.port")),
		Handler: engine,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", config.GetString("server.port")))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}

// subscribeAudit mirrors every applied sync event into the audit trail
// without blocking the reconciliation path.
func subscribeAudit(eventBus *util.EventBus, auditService audit.Service) {
	handler := func(ctx context.Context, event util.Event) error {
		syncEvent, ok := event.Payload.(consumer.SyncEvent)
		if !ok {
			return fmt.Errorf("unexpected payload for event %s", event.Type)
		}
		return auditService.LogAction(ctx, audit.Entry{
			Timestamp: time.Now(),
			Consumer:  syncEvent.Consumer,
			Action:    event.Type,
			Target:    syncEvent.GroupName,
			SubjectID: syncEvent.SubjectID,
			Succeeded: syncEvent.Succeeded,
			Detail:    syncEvent.Detail,
		})
	}

	for _, eventType := range []string{
		consumer.EventGroupProvisioned,
		consumer.EventGroupUpdated,
		consumer.EventGroupDeleted,
		consumer.EventMembershipAdded,
		consumer.EventMembershipRemoved,
	} {
		eventBus.Subscribe(eventType, handler)
	}
}
