package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/alterspective-engine/hotfolder-engine/internal/api"
	"github.com/alterspective-engine/hotfolder-engine/internal/config"
	"github.com/alterspective-engine/hotfolder-engine/internal/counter"
	"github.com/alterspective-engine/hotfolder-engine/internal/expr"
	"github.com/alterspective-engine/hotfolder-engine/internal/export"
	"github.com/alterspective-engine/hotfolder-engine/internal/hotfolder"
	"github.com/alterspective-engine/hotfolder-engine/internal/license"
	"github.com/alterspective-engine/hotfolder-engine/internal/ocr"
	"github.com/alterspective-engine/hotfolder-engine/internal/pipeline"
	"github.com/alterspective-engine/hotfolder-engine/internal/queue"
	"github.com/alterspective-engine/hotfolder-engine/internal/storage"
	"github.com/alterspective-engine/hotfolder-engine/internal/version"
)

func main() {
	configDir := flag.String("config", "config", "directory containing settings.json")
	flag.Parse()

	settings, err := config.Load(*configDir)
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	setupLogging(settings.LogLevel)
	log.WithField("version", version.GetInfo().Version).Info("starting hotfolder-engine")

	configStore, err := config.NewStoreWithLicenser(settings.ConfigStorePath, license.AlwaysLicensed{})
	if err != nil {
		log.Fatalf("failed to load hotfolder config store: %v", err)
	}

	counterPath := settings.ConfigStorePath + ".counters.json"
	counterStore, err := counter.NewStore(counterPath)
	if err != nil {
		log.Fatalf("failed to load counter store: %v", err)
	}

	evaluator := expr.NewEvaluator(counterStore)

	var documentQueue queue.Queue
	if settings.RedisURL != "" {
		redisQueue, err := queue.NewRedisQueue(settings.RedisURL)
		if err != nil {
			log.WithError(err).Warn("redis unavailable, falling back to in-memory queue")
			documentQueue = queue.NewMemoryQueue()
		} else {
			documentQueue = redisQueue
		}
	} else {
		documentQueue = queue.NewMemoryQueue()
	}

	var remoteStorage storage.Storage
	if settings.AzureConnectionStr != "" {
		azureStorage, err := storage.NewAzureStorage(settings.AzureConnectionStr, settings.AzureStorageContainer)
		if err != nil {
			log.WithError(err).Warn("azure storage configured but unreachable, remote exports stay unavailable")
		} else {
			remoteStorage = azureStorage
		}
	}

	ocrService := ocr.NewService(settings.DependenciesDir)
	exportRouter := export.NewRouter(nil, settings.DependenciesDir, remoteStorage)

	tempBaseDir := settings.TempBaseDir
	if tempBaseDir == "" {
		tempBaseDir = os.TempDir()
	}
	engine := pipeline.NewEngine(tempBaseDir, evaluator, ocrService, exportRouter, settings.DependenciesDir)

	supervisor := hotfolder.NewSupervisor(configStore, documentQueue, engine, settings.WorkerCount, settings.DebounceWindow, settings.PairingTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := supervisor.Start(ctx); err != nil {
		log.Fatalf("failed to start hotfolder supervisor: %v", err)
	}

	router := setupRouter(configStore, documentQueue, supervisor)
	server := &api.Server{Router: router, Port: settings.Port}

	go func() {
		if err := server.Start(); err != nil && err.Error() != "http: Server closed" {
			log.WithError(err).Fatal("api server stopped unexpectedly")
		}
	}()

	waitForShutdown(settings.ShutdownGrace, func(shutdownCtx context.Context) {
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("api server did not shut down cleanly")
		}
		cancel()
		supervisor.Stop()
	})
}

func waitForShutdown(grace time.Duration, shutdown func(ctx context.Context)) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("shutdown signal received, draining in-flight work")
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	shutdown(ctx)
	log.Info("shutdown complete")
}

func setupLogging(level string) {
	log.SetFormatter(&log.JSONFormatter{})

	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

func setupRouter(configStore *config.Store, documentQueue queue.Queue, supervisor *hotfolder.Supervisor) *gin.Engine {
	if gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ginLogger())

	r.GET("/health", api.HealthCheck())
	r.GET("/health/live", api.LivenessCheck())
	r.GET("/health/ready", api.ReadinessCheck(documentQueue))
	r.GET("/metrics", api.PrometheusHandler())
	r.GET("/version", api.VersionHandler())
	r.GET("/changelog", api.ChangelogHandler())

	v1 := r.Group("/api/v1")
	{
		v1.GET("/metrics", api.MetricsHandler(documentQueue, supervisor))

		hotfolders := v1.Group("/hotfolders")
		{
			hotfolders.GET("", api.ListHotfolders(configStore))
			hotfolders.POST("", reconciling(supervisor, api.CreateHotfolder(configStore)))
			hotfolders.GET("/:id", api.GetHotfolder(configStore))
			hotfolders.PUT("/:id", reconciling(supervisor, api.UpdateHotfolder(configStore)))
			hotfolders.DELETE("/:id", reconciling(supervisor, api.DeleteHotfolder(configStore)))
			hotfolders.GET("/:id/export", api.ExportHotfolder(configStore))
			hotfolders.POST("/import", reconciling(supervisor, api.ImportHotfolder(configStore)))
		}

		jobs := v1.Group("/jobs")
		{
			jobs.GET("", api.ListDocumentJobs(documentQueue))
			jobs.GET("/:id", api.GetDocumentStatus(documentQueue))
			jobs.DELETE("/:id", api.CancelDocumentJob(documentQueue))
		}
	}

	return r
}

// reconciling wraps a config-mutating handler so the supervisor's watcher
// set is brought in line with the store immediately after the request
// completes; the supervisor does not otherwise re-run Reconcile after
// start-up.
func reconciling(supervisor *hotfolder.Supervisor, handler gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		handler(c)
		supervisor.Reconcile(c.Request.Context())
	}
}

func ginLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		log.WithFields(log.Fields{
			"status":   c.Writer.Status(),
			"method":   c.Request.Method,
			"path":     path,
			"duration": time.Since(start),
		}).Info("request")
	}
}
