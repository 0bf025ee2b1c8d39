package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/zenithmed/registry-api/internal/model"
	"github.com/zenithmed/registry-api/internal/repository"
	"github.com/zenithmed/registry-api/pkg/logger"
	"github.com/zenithmed/registry-api/pkg/messaging"
	"github.com/zenithmed/registry-api/pkg/metrics"
)

type FeedRelayConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	// RetainFor bounds how long processed events are kept before cleanup.
	RetainFor time.Duration
}

func (c *FeedRelayConfig) defaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 250 * time.Millisecond
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.RetainFor <= 0 {
		c.RetainFor = 24 * time.Hour
	}
}

// FeedRelay drains the outbox in commit order and publishes each staged
// change event to the broker. Per-collection ordering for subscribers comes
// from this single relay publishing rows oldest-first.
type FeedRelay struct {
	repo    repository.OutboxRepository
	broker  messaging.Broker
	config  FeedRelayConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewFeedRelay(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	config FeedRelayConfig,
	log *logger.Logger,
	m *metrics.Metrics,
) *FeedRelay {
	config.defaults()
	return &FeedRelay{
		repo:    repo,
		broker:  broker,
		config:  config,
		logger:  log,
		metrics: m,
	}
}

func (r *FeedRelay) Start(ctx context.Context) {
	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	cleanup := time.NewTicker(time.Hour)
	defer cleanup.Stop()

	r.logger.Info("starting feed relay")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("shutting down feed relay")
			return
		case <-ticker.C:
			if err := r.relayPending(ctx); err != nil {
				r.logger.Error(err, "failed to relay pending events")
			}
		case <-cleanup.C:
			if n, err := r.repo.DeleteProcessedBefore(ctx, time.Now().Add(-r.config.RetainFor)); err != nil {
				r.logger.Error(err, "failed to clean up processed events")
			} else if n > 0 {
				r.logger.Debug("cleaned up processed events", "count", n)
			}
		}
	}
}

func (r *FeedRelay) relayPending(ctx context.Context) error {
	events, err := r.repo.ClaimPending(ctx, r.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to claim pending events: %w", err)
	}

	for _, event := range events {
		if err := r.relayEvent(ctx, event); err != nil {
			r.logger.Error(err, "failed to relay event",
				"event_id", event.ID.String(),
				"collection", string(event.Collection))
			// keep going: a stuck event must not block the feed
			continue
		}
	}

	return nil
}

func (r *FeedRelay) relayEvent(ctx context.Context, event *model.OutboxEvent) error {
	err := retry(r.config.RetryAttempts, r.config.RetryDelay, func() error {
		return r.broker.Publish(ctx, messaging.ChannelChanges, event.Payload)
	})

	if err != nil {
		r.metrics.RelayFailed.Inc()
		errStr := err.Error()
		if markErr := r.repo.MarkFailed(ctx, event.ID, errStr); markErr != nil {
			r.logger.Error(markErr, "failed to mark event failed")
		}
		return err
	}

	r.metrics.RelayPublished.Inc()
	if err := r.repo.MarkProcessed(ctx, event.ID); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}

	return nil
}

func retry(attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
		}
	}
	return err
}
