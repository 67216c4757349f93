/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the slip-engine server: configuration, logger,
  SQLite store, HTTP router, the tombstone purge job, and graceful
  shutdown.

STARTUP SEQUENCE:
  1. Load environment configuration (.env honored)
  2. Apply command-line flag overrides
  3. Open the SQLite store
  4. Wire the API handler and router
  5. Schedule the tombstone purge job
  6. Serve until SIGINT/SIGTERM, then drain for up to 30s

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides PORT)
  -db      SQLite database path (overrides DATABASE_PATH)
           Use ":memory:" for an in-memory database

ENVIRONMENT:
  PORT, DATABASE_PATH, LOG_LEVEL, LOG_PRETTY,
  PURGE_SCHEDULE, PURGE_RETENTION_DAYS

SEE ALSO:
  - api/server.go: router configuration
  - store/sqlite/sqlite.go: database implementation
  - scheduler/scheduler.go: background jobs
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/slip-engine/api"
	"github.com/warp/slip-engine/config"
	"github.com/warp/slip-engine/logging"
	"github.com/warp/slip-engine/scheduler"
	"github.com/warp/slip-engine/store/sqlite"
)

func main() {
	port := flag.Int("port", 0, "HTTP server port (overrides PORT)")
	dbPath := flag.String("db", "", "SQLite database path (overrides DATABASE_PATH)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}

	log := logging.New(logging.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	store, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("failed to open database")
	}
	defer store.Close()

	handler := api.NewHandler(store, log)
	router := api.NewRouter(handler)

	sched := scheduler.New(log)
	retention := time.Duration(cfg.PurgeRetentionDays) * 24 * time.Hour
	purge := newPurgeJob(store, retention, log)
	if err := sched.AddJob(cfg.PurgeSchedule, purge); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.PurgeSchedule).Msg("failed to schedule purge job")
	}
	sched.Start()
	defer sched.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
