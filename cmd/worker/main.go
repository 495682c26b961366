package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/meditrack/adherence-api/internal/config"
	"github.com/meditrack/adherence-api/internal/repository/postgres"
	internalworker "github.com/meditrack/adherence-api/internal/worker"
	"github.com/meditrack/adherence-api/pkg/logger"
	"github.com/meditrack/adherence-api/pkg/messaging/redis"
	"github.com/meditrack/adherence-api/pkg/metrics"
	"github.com/meditrack/adherence-api/pkg/worker"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	// Initialize database
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Initialize Redis broker
	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	// Initialize repositories
	outboxRepo := postgres.NewOutboxRepository(db)
	medicationRepo := postgres.NewMedicationRepository(db)
	userRepo := postgres.NewUserRepository(db)

	workerMetrics := metrics.NewMetrics("meditrack", "worker")

	// Initialize workers
	processor := worker.NewOutboxProcessor(
		outboxRepo,
		broker,
		worker.OutboxProcessorConfig{
			BatchSize:     cfg.Worker.OutboxBatchSize,
			PollInterval:  cfg.Worker.OutboxPollInterval,
			RetryAttempts: cfg.Worker.OutboxRetryAttempts,
			RetryDelay:    cfg.Worker.OutboxRetryDelay,
		},
		appLogger,
		workerMetrics,
	)

	rollup := internalworker.NewRollupWorker(
		medicationRepo,
		userRepo,
		internalworker.RollupConfig{CheckInterval: cfg.Worker.RollupCheckInterval},
		log.Logger,
		workerMetrics,
	)

	setupHealthCheck()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("shutting down workers...")
		cancel()
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		rollup.Start(ctx)
	}()
	wg.Wait()

	log.Info().Msg("workers exited properly")
}

func setupHealthCheck() {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := http.ListenAndServe(":8081", mux); err != nil {
			log.Error().Err(err).Msg("health check server failed")
		}
	}()
}
