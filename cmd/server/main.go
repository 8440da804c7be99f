/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the ledger engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse flags
  2. Build the zap logger (production unless APP_ENV=development)
  3. Initialize SQLite store and run migrations
  4. Wire the transfer engine and webhook notifier
  5. Start server with graceful shutdown

CONFIGURATION:
  Flags take defaults from the environment, so either works:
  -port / PORT            HTTP server port (default: 8080)
  -db / DB_PATH           SQLite database path (default: ledger.db)
                          Use ":memory:" for an in-memory database
  -notify-url / NOTIFY_URL  Webhook endpoint for transfer notifications
                            (empty disables notifications)
  APP_ENV                 "development" switches to the dev logger

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - bank/transfer.go: Transfer engine
  - store/sqlite/sqlite.go: Database implementation
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

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hamropay/ledger-engine/api"
	"github.com/hamropay/ledger-engine/bank"
	"github.com/hamropay/ledger-engine/notify"
	"github.com/hamropay/ledger-engine/store/sqlite"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DB_PATH", "ledger.db"), "SQLite database path")
	notifyURL := flag.String("notify-url", envStr("NOTIFY_URL", ""), "webhook URL for transfer notifications")
	flag.Parse()

	log, err := buildLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	// Wire the engine
	var notifier bank.Notifier = bank.NopNotifier{}
	if *notifyURL != "" {
		notifier = notify.NewWebhook(*notifyURL, log)
	}
	engine := bank.NewEngine(store, notifier, log)

	// Create router
	handler := api.NewHandler(engine, log)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting",
			zap.Int("port", *port),
			zap.String("db", *dbPath))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
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
		log.Fatal("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

func buildLogger() (*zap.Logger, error) {
	if os.Getenv("APP_ENV") == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}
