package gateway

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenithmed/registry-api/internal/model"
	"github.com/zenithmed/registry-api/internal/registry"
	apperrors "github.com/zenithmed/registry-api/pkg/errors"
	"github.com/zenithmed/registry-api/pkg/logger"
	"github.com/zenithmed/registry-api/pkg/metrics"
)

type stubAppointments struct {
	inserted *model.Appointment
	updated  *model.Appointment
	err      error
}

func (s *stubAppointments) List(ctx context.Context) ([]*model.Appointment, error) { return nil, nil }

func (s *stubAppointments) Insert(ctx context.Context, apt *model.Appointment, origin string) error {
	if s.err != nil {
		return s.err
	}
	s.inserted = apt
	return nil
}

func (s *stubAppointments) Update(ctx context.Context, apt *model.Appointment, origin string) error {
	if s.err != nil {
		return s.err
	}
	s.updated = apt
	return nil
}

func (s *stubAppointments) Delete(ctx context.Context, id uuid.UUID, origin string) error {
	return s.err
}

type stubServices struct{ err error }

func (s *stubServices) List(ctx context.Context) ([]*model.MedicalService, error) { return nil, nil }
func (s *stubServices) Insert(ctx context.Context, svc *model.MedicalService, origin string) error {
	return s.err
}
func (s *stubServices) Delete(ctx context.Context, id uuid.UUID, origin string) error { return s.err }

type stubClinicState struct{ err error }

func (s *stubClinicState) Get(ctx context.Context) (*model.ClinicState, error) { return nil, nil }
func (s *stubClinicState) Set(ctx context.Context, value string, origin string) error {
	return s.err
}

type env struct {
	appointments *stubAppointments
	services     *stubServices
	clinicState  *stubClinicState
	registry     *registry.Registry
	gw           *Gateway
}

func newEnv(t *testing.T, cfg Config) *env {
	t.Helper()
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	m := metrics.NewMetrics(prometheus.NewRegistry(), "test")

	e := &env{
		appointments: &stubAppointments{},
		services:     &stubServices{},
		clinicState:  &stubClinicState{},
		registry:     registry.New(log, m),
	}
	e.gw = New(e.appointments, e.services, e.clinicState, e.registry, cfg, log, m)
	return e
}

func TestGeneratePatientCodeFormat(t *testing.T) {
	for i := 0; i < 100; i++ {
		assert.Regexp(t, `^PAT-\d{4}$`, GeneratePatientCode())
	}
}

func TestAddAppointmentDefaults(t *testing.T) {
	e := newEnv(t, Config{})

	_, err := e.gw.AddAppointment(context.Background(), &model.CreateAppointmentRequest{
		PatientName: "Jane Doe",
		Date:        "2026-09-01",
		Time:        "10:00",
	})
	require.NoError(t, err)

	require.NotNil(t, e.appointments.inserted)
	assert.Equal(t, model.AppointmentStatusWaiting, e.appointments.inserted.Status)
	assert.Regexp(t, `^PAT-\d{4}$`, e.appointments.inserted.PatientCode)
}

func TestAddAppointmentSnapshotsServiceCost(t *testing.T) {
	e := newEnv(t, Config{})
	e.registry.InstallServices([]*model.MedicalService{
		{ID: uuid.New(), Name: "Cardiology", BaseCost: 120},
	})

	_, err := e.gw.AddAppointment(context.Background(), &model.CreateAppointmentRequest{
		PatientName: "Jane Doe",
		Date:        "2026-09-01",
		Time:        "10:00",
		Category:    "Cardiology",
	})
	require.NoError(t, err)
	assert.Equal(t, 120.0, e.appointments.inserted.Cost)
}

func TestAddAppointmentKeepsExplicitCost(t *testing.T) {
	e := newEnv(t, Config{})
	e.registry.InstallServices([]*model.MedicalService{
		{ID: uuid.New(), Name: "Cardiology", BaseCost: 120},
	})

	_, err := e.gw.AddAppointment(context.Background(), &model.CreateAppointmentRequest{
		PatientName: "Jane Doe",
		Date:        "2026-09-01",
		Time:        "10:00",
		Category:    "Cardiology",
		Cost:        45,
	})
	require.NoError(t, err)
	assert.Equal(t, 45.0, e.appointments.inserted.Cost)
}

func TestUpdateAppointmentPreservesIdentityFields(t *testing.T) {
	e := newEnv(t, Config{})

	created := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	existing := &model.Appointment{
		ID:          uuid.New(),
		PatientCode: "PAT-4242",
		PatientName: "Jane Doe",
		CreatedAt:   created,
	}
	e.registry.InstallAppointments([]*model.Appointment{existing})

	_, err := e.gw.UpdateAppointment(context.Background(), existing.ID, &model.UpdateAppointmentRequest{
		PatientName: "Jane A. Doe",
		Date:        "2026-09-02",
		Time:        "14:00",
	})
	require.NoError(t, err)

	require.NotNil(t, e.appointments.updated)
	assert.Equal(t, "PAT-4242", e.appointments.updated.PatientCode)
	assert.Equal(t, created, e.appointments.updated.CreatedAt)
	assert.Equal(t, model.AppointmentStatusWaiting, e.appointments.updated.Status)
}

func TestAwaitResolvesOnEcho(t *testing.T) {
	e := newEnv(t, Config{EchoTimeout: time.Second})

	token, err := e.gw.AddAppointment(context.Background(), &model.CreateAppointmentRequest{
		PatientName: "Jane Doe", Date: "2026-09-01", Time: "10:00",
	})
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		e.gw.Resolve(token)
	}()

	assert.NoError(t, e.gw.Await(context.Background(), token))
}

func TestAwaitTimesOut(t *testing.T) {
	e := newEnv(t, Config{EchoTimeout: 30 * time.Millisecond})

	token, err := e.gw.AddAppointment(context.Background(), &model.CreateAppointmentRequest{
		PatientName: "Jane Doe", Date: "2026-09-01", Time: "10:00",
	})
	require.NoError(t, err)

	err = e.gw.Await(context.Background(), token)
	assert.ErrorIs(t, err, apperrors.ErrEchoTimeout)
}

func TestAwaitHonorsContextCancellation(t *testing.T) {
	e := newEnv(t, Config{EchoTimeout: time.Minute})

	token, err := e.gw.SetWorkDayActive(context.Background(), true)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, e.gw.Await(ctx, token), context.Canceled)
}

func TestAwaitUnknownTokenReturnsImmediately(t *testing.T) {
	e := newEnv(t, Config{EchoTimeout: time.Minute})

	// A token the tracker never saw is treated as already resolved.
	assert.NoError(t, e.gw.Await(context.Background(), uuid.NewString()))
}

func TestRejectedWriteSurfacesAsWriteFailure(t *testing.T) {
	e := newEnv(t, Config{})
	e.appointments.err = fmt.Errorf("connection refused")

	_, err := e.gw.AddAppointment(context.Background(), &model.CreateAppointmentRequest{
		PatientName: "Jane Doe", Date: "2026-09-01", Time: "10:00",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsWriteFailure(err))
}

func TestResolveAfterForgetIsHarmless(t *testing.T) {
	e := newEnv(t, Config{EchoTimeout: 10 * time.Millisecond})

	token, err := e.gw.SetWorkDayActive(context.Background(), true)
	require.NoError(t, err)

	require.ErrorIs(t, e.gw.Await(context.Background(), token), apperrors.ErrEchoTimeout)

	// the echo arriving after the deadline must not panic or block
	e.gw.Resolve(token)
}
