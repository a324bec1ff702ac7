/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the outpass workflow server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (config.yml + environment), apply flag overrides
  2. Initialize SQLite store
  3. Connect Redis if REDIS_URL is set (marker + dispatcher), else memory marker
  4. Start the notification worker on the event queue
  5. Create service, API handler and router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for in-memory database
  -config  Directory holding config.yml (default: .)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the event queue and let the worker drain it
  4. Close Redis and database connections

SEE ALSO:
  - config/config.go: Configuration keys
  - api/server.go: Router configuration
  - notify/worker.go: Event consumer
*/
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/warp/outpass-engine/api"
	"github.com/warp/outpass-engine/config"
	"github.com/warp/outpass-engine/notify"
	"github.com/warp/outpass-engine/store/sqlite"
	"github.com/warp/outpass-engine/workflow"
)

func main() {
	// Flags
	port := flag.String("port", "", "HTTP server port (overrides PORT)")
	dbPath := flag.String("db", "", "SQLite database path (overrides DB_PATH)")
	configDir := flag.String("config", ".", "directory holding config.yml")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load(*configDir, log)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if *port != "" {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	log.SetLevel(cfg.Level())

	roles, err := cfg.RoleTable()
	if err != nil {
		log.WithError(err).Fatal("invalid role aliases")
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath,
		sqlite.WithRoleTable(roles),
		sqlite.WithLegacyMirror(cfg.MirrorLegacyRoles),
	)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	// Notifications
	var (
		rdb    *redis.Client
		marker notify.Marker = notify.NewMemoryMarker(cfg.NotifyDedupTTL)
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.WithError(err).Fatal("invalid REDIS_URL")
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.WithError(err).Warn("redis unreachable; notifications will retry per event")
		}
		marker = notify.NewRedisMarker(rdb, cfg.NotifyDedupTTL)
	} else {
		log.Info("REDIS_URL not set; using in-memory dedup marker and no-op dispatcher")
	}

	queue := notify.NewQueue(1024)
	worker := notify.NewWorker(notify.NewRedisDispatcher(rdb), marker, log)
	workerCtx, stopWorker := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(workerCtx, queue.Events())
	}()

	svc := workflow.NewService(store, store, workflow.Options{
		Roles:             roles,
		Policy:            cfg.Policy(),
		Publisher:         queue,
		Logger:            log,
		DecideMaxAttempts: cfg.DecideMaxAttempts,
	})

	handler := api.NewHandler(svc, store, log)
	handler.MirrorLegacyRoles = cfg.MirrorLegacyRoles
	router := api.NewRouter(handler, cfg.AllowedOrigins)

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.WithField("port", cfg.Port).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}

	queue.Close()
	select {
	case <-workerDone:
	case <-ctx.Done():
		stopWorker()
		<-workerDone
	}
	stopWorker()

	log.Info("server stopped")
}
