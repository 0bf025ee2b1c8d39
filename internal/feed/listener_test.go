package feed_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenithmed/registry-api/internal/feed"
	"github.com/zenithmed/registry-api/internal/gateway"
	"github.com/zenithmed/registry-api/internal/model"
	"github.com/zenithmed/registry-api/internal/registry"
	"github.com/zenithmed/registry-api/pkg/logger"
	"github.com/zenithmed/registry-api/pkg/messaging"
	"github.com/zenithmed/registry-api/pkg/messaging/memory"
	"github.com/zenithmed/registry-api/pkg/metrics"
)

// fakeStore backs the repository interfaces with in-memory slices and
// publishes each write's change event straight to the broker, collapsing the
// store and the relay into one synchronous step.
type fakeStore struct {
	mu           sync.Mutex
	broker       *memory.MemoryBroker
	appointments []*model.Appointment
	services     []*model.MedicalService
	state        model.ClinicState

	listErr error
}

func newFakeStore(broker *memory.MemoryBroker) *fakeStore {
	return &fakeStore{
		broker: broker,
		state:  model.ClinicState{ID: model.WorkDayStateKey, Value: "false"},
	}
}

func (s *fakeStore) publish(ctx context.Context, collection model.Collection, kind model.EventKind, newRec, oldRec interface{}, origin string) error {
	evt := model.ChangeEvent{
		Collection:  collection,
		Kind:        kind,
		Origin:      origin,
		CommittedAt: time.Now(),
	}
	if newRec != nil {
		data, err := json.Marshal(newRec)
		if err != nil {
			return err
		}
		evt.New = data
	}
	if oldRec != nil {
		data, err := json.Marshal(oldRec)
		if err != nil {
			return err
		}
		evt.Old = data
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return s.broker.Publish(ctx, messaging.ChannelChanges, payload)
}

func (s *fakeStore) List(ctx context.Context) ([]*model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]*model.Appointment(nil), s.appointments...), nil
}

func (s *fakeStore) Insert(ctx context.Context, apt *model.Appointment, origin string) error {
	s.mu.Lock()
	apt.ID = uuid.New()
	apt.CreatedAt = time.Now()
	s.appointments = append([]*model.Appointment{apt}, s.appointments...)
	s.mu.Unlock()
	return s.publish(ctx, model.CollectionAppointments, model.EventInsert, apt, nil, origin)
}

func (s *fakeStore) Update(ctx context.Context, apt *model.Appointment, origin string) error {
	s.mu.Lock()
	for i, existing := range s.appointments {
		if existing.ID == apt.ID {
			s.appointments[i] = apt
			break
		}
	}
	s.mu.Unlock()
	return s.publish(ctx, model.CollectionAppointments, model.EventUpdate, apt, nil, origin)
}

func (s *fakeStore) Delete(ctx context.Context, id uuid.UUID, origin string) error {
	s.mu.Lock()
	for i, existing := range s.appointments {
		if existing.ID == id {
			s.appointments = append(s.appointments[:i], s.appointments[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	return s.publish(ctx, model.CollectionAppointments, model.EventDelete, nil, map[string]string{"id": id.String()}, origin)
}

// serviceStore adapts fakeStore to the service repository interface.
type serviceStore struct{ *fakeStore }

func (s serviceStore) List(ctx context.Context) ([]*model.MedicalService, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.MedicalService(nil), s.services...), nil
}

func (s serviceStore) Insert(ctx context.Context, svc *model.MedicalService, origin string) error {
	s.mu.Lock()
	svc.ID = uuid.New()
	s.services = append(s.services, svc)
	s.mu.Unlock()
	return s.publish(ctx, model.CollectionServices, model.EventInsert, svc, nil, origin)
}

func (s serviceStore) Delete(ctx context.Context, id uuid.UUID, origin string) error {
	s.mu.Lock()
	for i, existing := range s.services {
		if existing.ID == id {
			s.services = append(s.services[:i], s.services[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	return s.publish(ctx, model.CollectionServices, model.EventDelete, nil, map[string]string{"id": id.String()}, origin)
}

// clinicStateStore adapts fakeStore to the clinic state repository interface.
type clinicStateStore struct{ *fakeStore }

func (s clinicStateStore) Get(ctx context.Context) (*model.ClinicState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.state
	return &state, nil
}

func (s clinicStateStore) Set(ctx context.Context, value string, origin string) error {
	s.mu.Lock()
	s.state.Value = value
	state := s.state
	s.mu.Unlock()
	return s.publish(ctx, model.CollectionClinicState, model.EventUpdate, &state, nil, origin)
}

type fixture struct {
	store    *fakeStore
	broker   *memory.MemoryBroker
	registry *registry.Registry
	gateway  *gateway.Gateway
	listener *feed.Listener
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	m := metrics.NewMetrics(prometheus.NewRegistry(), "test")
	broker := memory.NewMemoryBroker()
	store := newFakeStore(broker)
	reg := registry.New(log, m)

	gw := gateway.New(store, serviceStore{store}, clinicStateStore{store}, reg,
		gateway.Config{EchoTimeout: 2 * time.Second}, log, m)

	listener := feed.NewListener(store, serviceStore{store}, clinicStateStore{store},
		broker, reg, gw,
		feed.Config{BackoffBase: 10 * time.Millisecond, BackoffMax: 50 * time.Millisecond},
		log, m)

	return &fixture{store: store, broker: broker, registry: reg, gateway: gw, listener: listener}
}

// start opens the listener and blocks until the subscription is registered,
// so a write issued right after cannot publish into a subscriber-less broker.
func (f *fixture) start(t *testing.T) {
	t.Helper()
	require.NoError(t, f.listener.Start(context.Background()))
	require.Eventually(t, func() bool {
		return f.broker.Subscribers(messaging.ChannelChanges) > 0
	}, time.Second, 5*time.Millisecond)
}

func TestBulkLoadSeedsTheMirror(t *testing.T) {
	f := newFixture(t)
	f.store.appointments = []*model.Appointment{
		{ID: uuid.New(), PatientName: "preloaded", Status: model.AppointmentStatusWaiting},
	}
	f.store.services = []*model.MedicalService{
		{ID: uuid.New(), Name: "Cardiology", BaseCost: 120},
	}
	f.store.state.Value = "true"

	require.NoError(t, f.listener.Start(context.Background()))
	defer f.listener.Close()

	assert.Len(t, f.registry.Appointments(), 1)
	assert.Len(t, f.registry.Services(), 1)
	assert.True(t, f.registry.WorkDayActive())
}

func TestBulkLoadFailureLeavesCollectionEmpty(t *testing.T) {
	f := newFixture(t)
	f.store.listErr = fmt.Errorf("connection refused")
	f.store.services = []*model.MedicalService{
		{ID: uuid.New(), Name: "Diagnostics", BaseCost: 80},
	}

	require.NoError(t, f.listener.Start(context.Background()))
	defer f.listener.Close()

	assert.Empty(t, f.registry.Appointments())
	assert.Len(t, f.registry.Services(), 1)
}

func TestWriteBecomesVisibleOnlyThroughTheFeed(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	defer f.listener.Close()

	ctx := context.Background()
	token, err := f.gateway.AddAppointment(ctx, &model.CreateAppointmentRequest{
		PatientName: "Jane Doe",
		Date:        "2026-09-01",
		Time:        "10:00",
		Category:    "Cardiology",
	})
	require.NoError(t, err)
	require.NoError(t, f.gateway.Await(ctx, token))

	appointments := f.registry.Appointments()
	require.Len(t, appointments, 1)
	assert.Equal(t, "Jane Doe", appointments[0].PatientName)
	assert.Equal(t, model.AppointmentStatusWaiting, appointments[0].Status)
	assert.Regexp(t, regexp.MustCompile(`^PAT-\d{4}$`), appointments[0].PatientCode)
}

func TestWorkDayToggleRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	defer f.listener.Close()

	ctx := context.Background()
	token, err := f.gateway.SetWorkDayActive(ctx, true)
	require.NoError(t, err)
	require.NoError(t, f.gateway.Await(ctx, token))
	assert.True(t, f.registry.WorkDayActive())

	token, err = f.gateway.SetWorkDayActive(ctx, false)
	require.NoError(t, err)
	require.NoError(t, f.gateway.Await(ctx, token))
	assert.False(t, f.registry.WorkDayActive())
}

func TestCloseStopsEventApplication(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	ctx := context.Background()
	token, err := f.gateway.AddAppointment(ctx, &model.CreateAppointmentRequest{
		PatientName: "before close", Date: "2026-09-01", Time: "09:00",
	})
	require.NoError(t, err)
	require.NoError(t, f.gateway.Await(ctx, token))
	require.Len(t, f.registry.Appointments(), 1)

	f.listener.Close()

	apt := &model.Appointment{ID: uuid.New(), PatientName: "after close"}
	require.NoError(t, f.store.publish(ctx, model.CollectionAppointments, model.EventInsert, apt, nil, ""))

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, f.registry.Appointments(), 1)
}

func TestSubscriptionLossTriggersResync(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	defer f.listener.Close()

	// A record lands in the store while the subscription is down; its event is
	// lost for good. Only the resync bulk load can recover it.
	missed := &model.Appointment{ID: uuid.New(), PatientName: "missed during gap", Status: model.AppointmentStatusWaiting}
	f.store.mu.Lock()
	f.store.appointments = append(f.store.appointments, missed)
	f.store.mu.Unlock()

	f.broker.Drop(messaging.ChannelChanges)

	// Probe with a repeated insert; applying it more than once is harmless
	// because insert dedupes by id. Seeing it in the mirror proves the
	// resubscription is live again, not just that the bulk load ran.
	ctx := context.Background()
	probe := &model.Appointment{ID: uuid.New(), PatientName: "probe", Status: model.AppointmentStatusWaiting}
	require.Eventually(t, func() bool {
		_ = f.store.publish(ctx, model.CollectionAppointments, model.EventInsert, probe, nil, "")
		for _, apt := range f.registry.Appointments() {
			if apt.ID == probe.ID {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)

	ids := make(map[uuid.UUID]bool)
	for _, apt := range f.registry.Appointments() {
		ids[apt.ID] = true
	}
	assert.True(t, ids[missed.ID], "record written during the gap should be recovered by the resync")
}
