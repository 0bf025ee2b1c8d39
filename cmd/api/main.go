package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/zenithmed/registry-api/internal/assist"
	"github.com/zenithmed/registry-api/internal/config"
	"github.com/zenithmed/registry-api/internal/feed"
	"github.com/zenithmed/registry-api/internal/gateway"
	"github.com/zenithmed/registry-api/internal/handler"
	appointmentHandler "github.com/zenithmed/registry-api/internal/handler/appointment"
	assistHandler "github.com/zenithmed/registry-api/internal/handler/assist"
	authHandler "github.com/zenithmed/registry-api/internal/handler/auth"
	clinicstateHandler "github.com/zenithmed/registry-api/internal/handler/clinicstate"
	serviceHandler "github.com/zenithmed/registry-api/internal/handler/service"
	"github.com/zenithmed/registry-api/internal/middleware"
	"github.com/zenithmed/registry-api/internal/model"
	"github.com/zenithmed/registry-api/internal/notification"
	"github.com/zenithmed/registry-api/internal/registry"
	"github.com/zenithmed/registry-api/internal/repository/postgres"
	"github.com/zenithmed/registry-api/internal/router"
	"github.com/zenithmed/registry-api/pkg/auth"
	"github.com/zenithmed/registry-api/pkg/logger"
	redisbroker "github.com/zenithmed/registry-api/pkg/messaging/redis"
	"github.com/zenithmed/registry-api/pkg/metrics"
	"github.com/zenithmed/registry-api/pkg/security"
	"github.com/zenithmed/registry-api/pkg/validator"
	"github.com/zenithmed/registry-api/pkg/worker"
)

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
	m := metrics.NewMetrics(promRegistry, "registry")

	// Repositories
	appointmentRepo := postgres.NewAppointmentRepository(db)
	serviceRepo := postgres.NewServiceRepository(db)
	clinicStateRepo := postgres.NewClinicStateRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	// Local reconciled state and the mutation gateway
	reg := registry.New(appLogger, m)
	gw := gateway.New(appointmentRepo, serviceRepo, clinicStateRepo, reg, gateway.Config{
		EchoTimeout: cfg.Gateway.EchoTimeout,
	}, appLogger, m)

	// Change feed: one session-long listener, fed by the outbox relay
	listener := feed.NewListener(
		appointmentRepo, serviceRepo, clinicStateRepo,
		broker, reg, gw,
		feed.Config{
			BackoffBase: cfg.Feed.BackoffBase,
			BackoffMax:  cfg.Feed.BackoffMax,
		},
		appLogger, m,
	)

	relay := worker.NewFeedRelay(outboxRepo, broker, worker.FeedRelayConfig{
		BatchSize:     cfg.Relay.BatchSize,
		PollInterval:  cfg.Relay.PollInterval,
		RetryAttempts: cfg.Relay.RetryAttempts,
		RetryDelay:    cfg.Relay.RetryDelay,
		RetainFor:     cfg.Relay.RetainFor,
	}, appLogger, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go relay.Start(ctx)

	if err := listener.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start change feed listener")
	}
	defer listener.Close()

	// AI assist and the optional summary mailer
	assistClient := assist.NewClient(assist.Config{
		APIKey:     cfg.Assist.APIKey,
		Model:      cfg.Assist.Model,
		BaseURL:    cfg.Assist.BaseURL,
		Timeout:    cfg.Assist.Timeout,
		SummaryTTL: cfg.Assist.SummaryTTL,
	}, appLogger, m)
	mailer := notification.NewMailer(cfg.SMTP, appLogger)

	// Auth
	jwtService := auth.NewJWTService(auth.Config{
		Secret:         cfg.Auth.JWT.Secret,
		Expiry:         cfg.Auth.JWT.Expiry,
		ExtendedExpiry: cfg.Auth.JWT.ExtendedExpiry,
	})
	hasher := security.NewBcryptHasher(0)
	accessCodes := make(map[model.Role]string, len(cfg.Auth.AccessCodes))
	for role, hash := range cfg.Auth.AccessCodes {
		accessCodes[model.Role(role)] = hash
	}
	authMiddleware := middleware.NewAuthMiddleware(jwtService)

	v := validator.New()

	// Handlers
	healthH := handler.NewHealthHandler(db)
	authH := authHandler.NewHandler(jwtService, hasher, accessCodes)
	appointmentH := appointmentHandler.NewHandler(reg, gw, v)
	serviceH := serviceHandler.NewHandler(reg, gw, v)
	clinicStateH := clinicstateHandler.NewHandler(reg, gw)
	assistH := assistHandler.NewHandler(assistClient, reg, mailer)

	routerCfg := router.Config{CORS: middleware.DefaultCORSConfig()}
	if cfg.RateLimit.Enabled {
		routerCfg.RateLimit = rate.Limit(cfg.RateLimit.RequestsPerSecond)
		routerCfg.RateBurst = cfg.RateLimit.Burst
	}

	r := router.NewRouter(authMiddleware, authH, appointmentH, serviceH, clinicStateH, assistH, healthH, routerCfg)
	r.Setup(promRegistry)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		appLogger.Info("starting registry API", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(err, "graceful shutdown failed")
	}
}
