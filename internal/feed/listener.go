package feed

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/zenithmed/registry-api/internal/model"
	"github.com/zenithmed/registry-api/internal/registry"
	"github.com/zenithmed/registry-api/internal/repository"
	"github.com/zenithmed/registry-api/pkg/logger"
	"github.com/zenithmed/registry-api/pkg/messaging"
	"github.com/zenithmed/registry-api/pkg/metrics"
)

// EchoSink is notified when a change event carrying an origin token has been
// applied. The mutation gateway implements it to resolve pending writes.
type EchoSink interface {
	Resolve(origin string)
}

type Config struct {
	// BackoffBase is the first resubscribe delay after subscription loss.
	BackoffBase time.Duration
	// BackoffMax caps the exponential backoff.
	BackoffMax time.Duration
}

func (c *Config) defaults() {
	if c.BackoffBase <= 0 {
		c.BackoffBase = 500 * time.Millisecond
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 30 * time.Second
	}
}

// Listener owns the session's view of the store: one bulk load into the
// registry, then one multiplexed subscription applied event by event for the
// lifetime of the session. The subscription is supervised; on loss it re-runs
// the bulk load before resubscribing so no missed events leave the mirror
// stale forever.
type Listener struct {
	appointments repository.AppointmentRepository
	services     repository.ServiceRepository
	clinicState  repository.ClinicStateRepository
	broker       messaging.Broker
	registry     *registry.Registry
	echo         EchoSink
	config       Config
	logger       *logger.Logger
	metrics      *metrics.Metrics

	closed atomic.Bool
	cancel context.CancelFunc
	done   chan struct{}
}

func NewListener(
	appointments repository.AppointmentRepository,
	services repository.ServiceRepository,
	clinicState repository.ClinicStateRepository,
	broker messaging.Broker,
	reg *registry.Registry,
	echo EchoSink,
	config Config,
	log *logger.Logger,
	m *metrics.Metrics,
) *Listener {
	config.defaults()
	return &Listener{
		appointments: appointments,
		services:     services,
		clinicState:  clinicState,
		broker:       broker,
		registry:     reg,
		echo:         echo,
		config:       config,
		logger:       log,
		metrics:      m,
		done:         make(chan struct{}),
	}
}

// Start performs the initial bulk load and opens the subscription. A bulk
// load failure leaves that collection empty; callers cannot distinguish
// "truly empty" from "load failed" except through logs and metrics, which is
// the accepted contract.
func (l *Listener) Start(ctx context.Context) error {
	ctx, l.cancel = context.WithCancel(ctx)

	l.bulkLoad(ctx)

	go l.run(ctx)
	return nil
}

// Close tears the subscription down deterministically. Events already in
// flight when Close is called are discarded, never applied to a dead state.
func (l *Listener) Close() {
	if l.closed.Swap(true) {
		return
	}
	if l.cancel != nil {
		l.cancel()
	}
	<-l.done
}

func (l *Listener) bulkLoad(ctx context.Context) {
	if appointments, err := l.appointments.List(ctx); err != nil {
		l.logger.Error(err, "appointment bulk load failed, collection left empty")
		l.metrics.BulkLoadFailures.WithLabelValues(string(model.CollectionAppointments)).Inc()
		l.registry.InstallAppointments(nil)
	} else {
		l.registry.InstallAppointments(appointments)
	}

	if services, err := l.services.List(ctx); err != nil {
		l.logger.Error(err, "service bulk load failed, collection left empty")
		l.metrics.BulkLoadFailures.WithLabelValues(string(model.CollectionServices)).Inc()
		l.registry.InstallServices(nil)
	} else {
		l.registry.InstallServices(services)
	}

	if state, err := l.clinicState.Get(ctx); err != nil {
		l.logger.Error(err, "clinic state load failed, work day defaults inactive")
		l.metrics.BulkLoadFailures.WithLabelValues(string(model.CollectionClinicState)).Inc()
		l.registry.InstallWorkDayActive(false)
	} else {
		l.registry.InstallWorkDayActive(state.Active())
	}
}

func (l *Listener) run(ctx context.Context) {
	defer close(l.done)

	backoff := l.config.BackoffBase

	for {
		if ctx.Err() != nil || l.closed.Load() {
			return
		}

		events, err := l.broker.Subscribe(ctx, messaging.ChannelChanges)
		if err != nil {
			l.logger.Error(err, "change feed subscribe failed", "retry_in", backoff.String())
			if !l.sleep(ctx, backoff) {
				return
			}
			backoff = l.nextBackoff(backoff)
			continue
		}
		backoff = l.config.BackoffBase

		l.consume(events)

		if ctx.Err() != nil || l.closed.Load() {
			return
		}

		// Closed channel with a live context means the subscription dropped.
		// Resync the mirror before resubscribing: events emitted during the
		// gap are gone for good and only a fresh bulk load recovers them.
		l.metrics.FeedResyncs.Inc()
		l.logger.Warn("change feed subscription lost, resyncing")
		if !l.sleep(ctx, backoff) {
			return
		}
		backoff = l.nextBackoff(backoff)
		l.bulkLoad(ctx)
	}
}

func (l *Listener) consume(events <-chan []byte) {
	for payload := range events {
		if l.closed.Load() {
			return
		}

		var evt model.ChangeEvent
		if err := json.Unmarshal(payload, &evt); err != nil {
			l.logger.Error(err, "discarding undecodable change event")
			continue
		}

		if err := l.registry.Apply(&evt); err != nil {
			l.logger.Error(err, "failed to apply change event",
				"collection", string(evt.Collection),
				"kind", string(evt.Kind))
			continue
		}

		if evt.Origin != "" && l.echo != nil {
			l.echo.Resolve(evt.Origin)
		}
	}
}

func (l *Listener) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (l *Listener) nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > l.config.BackoffMax {
		next = l.config.BackoffMax
	}
	return next
}
