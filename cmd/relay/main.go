package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/zenithmed/registry-api/internal/config"
	"github.com/zenithmed/registry-api/internal/repository/postgres"
	"github.com/zenithmed/registry-api/pkg/logger"
	redisbroker "github.com/zenithmed/registry-api/pkg/messaging/redis"
	"github.com/zenithmed/registry-api/pkg/metrics"
	"github.com/zenithmed/registry-api/pkg/worker"
)

// Standalone relay for deployments where the API replicas should not each
// poll the outbox. Running it alongside API-embedded relays is safe: the
// FOR UPDATE SKIP LOCKED fetch keeps relays from double-publishing.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	broker, err := redisbroker.NewRedisBroker(redisbroker.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &appLogger.ZL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer broker.Close()

	promRegistry := prometheus.NewRegistry()
	m := metrics.NewMetrics(promRegistry, "registry_relay")

	outboxRepo := postgres.NewOutboxRepository(db)
	relay := worker.NewFeedRelay(outboxRepo, broker, worker.FeedRelayConfig{
		BatchSize:     cfg.Relay.BatchSize,
		PollInterval:  cfg.Relay.PollInterval,
		RetryAttempts: cfg.Relay.RetryAttempts,
		RetryDelay:    cfg.Relay.RetryDelay,
		RetainFor:     cfg.Relay.RetainFor,
	}, appLogger, m)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	go func() {
		if err := http.ListenAndServe(":8081", mux); err != nil {
			appLogger.Error(err, "relay health server failed")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go relay.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down relay")
	cancel()
}
