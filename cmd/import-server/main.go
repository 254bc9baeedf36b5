// cmd/import-server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"pipeline-crm/internal/common/config"
	"pipeline-crm/internal/common/database"
	"pipeline-crm/internal/common/logger"
	"pipeline-crm/internal/common/observability"
	"pipeline-crm/internal/events"
	httpapi "pipeline-crm/internal/http"
	"pipeline-crm/internal/importer"
	"pipeline-crm/internal/outreach"
	"pipeline-crm/internal/store"
	"pipeline-crm/internal/wizard"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting import server...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redisClient *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redisClient.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redisClient.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init event publisher (best-effort) ---
	publisher := events.NewNoOp(log)
	if cfg.Events.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			publisher, err = events.New(cfg.Events.URL, cfg.Events.Exchange, log)
			return err
		}, 5, 2*time.Second, zapLog, "RabbitMQ connection")
		if err != nil {
			// A down broker must never block imports.
			zapLog.Warn("rabbitmq unavailable, events disabled", zap.Error(err))
			publisher = events.NewNoOp(log)
		} else {
			zapLog.Info("RabbitMQ connected successfully")
		}
	}
	defer publisher.Close()

	// --- Wire components ---
	recordStore := store.New(pg.DB, log)
	executor := importer.NewExecutor(recordStore, config.GetDuration(cfg.Import.StoreTimeout), log)

	provider := outreach.NewProviderClient(
		cfg.Outreach.BaseURL,
		cfg.Outreach.APIKey,
		config.GetDuration(cfg.Outreach.RequestTimeout),
	)
	dispatcher := outreach.NewDispatcher(provider, log)
	resultStore := outreach.NewResultStore(
		provider,
		redisClient,
		time.Duration(cfg.Outreach.ResultTTLHours)*time.Hour,
		log,
	)

	machine := wizard.NewMachine(
		recordStore,
		executor,
		dispatcher,
		resultStore,
		publisher,
		config.GetDuration(cfg.Outreach.MessageDelayMs),
		config.GetDuration(cfg.Import.ResultsGraceMs),
		log,
	)
	sessions := wizard.NewManager(machine, time.Duration(cfg.Import.SessionTTLMinute)*time.Minute, log)
	sessions.StartSweeper(time.Minute)
	defer sessions.StopSweeper()

	router := httpapi.Router(cfg.Server, sessions, resultStore, recordStore, log)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	zapLog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("server shutdown failed", zap.Error(err))
	}
	zapLog.Info("Shutdown complete")
}
