package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/zenithmed/registry-api/internal/model"
	"github.com/zenithmed/registry-api/internal/registry"
	"github.com/zenithmed/registry-api/internal/repository"
	apperrors "github.com/zenithmed/registry-api/pkg/errors"
	"github.com/zenithmed/registry-api/pkg/logger"
	"github.com/zenithmed/registry-api/pkg/metrics"
)

const DefaultEchoTimeout = 5 * time.Second

type Config struct {
	// EchoTimeout bounds how long Await waits for a write's change event to
	// come back through the feed before reporting a WriteFailure.
	EchoTimeout time.Duration
}

// Gateway issues remote writes. It never touches the registry mirrors
// directly: a mutation becomes visible only when its change event arrives
// back through the listener. The registry reference here is read-only, used
// to snapshot service costs at write time.
type Gateway struct {
	appointments repository.AppointmentRepository
	services     repository.ServiceRepository
	clinicState  repository.ClinicStateRepository
	reg          *registry.Registry
	pending      *pendingTracker
	echoTimeout  time.Duration
	logger       *logger.Logger
	metrics      *metrics.Metrics
}

func New(
	appointments repository.AppointmentRepository,
	services repository.ServiceRepository,
	clinicState repository.ClinicStateRepository,
	reg *registry.Registry,
	config Config,
	log *logger.Logger,
	m *metrics.Metrics,
) *Gateway {
	if config.EchoTimeout <= 0 {
		config.EchoTimeout = DefaultEchoTimeout
	}
	return &Gateway{
		appointments: appointments,
		services:     services,
		clinicState:  clinicState,
		reg:          reg,
		pending:      newPendingTracker(m),
		echoTimeout:  config.EchoTimeout,
		logger:       log,
		metrics:      m,
	}
}

// Resolve implements feed.EchoSink.
func (g *Gateway) Resolve(origin string) {
	g.pending.resolve(origin)
}

// Await blocks until the mutation identified by token has been echoed, the
// echo deadline passes, or ctx is cancelled. A deadline pass means the write
// may or may not have committed; only the feed would tell.
func (g *Gateway) Await(ctx context.Context, token string) error {
	select {
	case <-g.pending.wait(token):
		return nil
	case <-time.After(g.echoTimeout):
		g.pending.forget(token)
		g.metrics.WriteFailures.WithLabelValues("echo_timeout").Inc()
		return apperrors.ErrEchoTimeout
	case <-ctx.Done():
		g.pending.forget(token)
		return ctx.Err()
	}
}

// AddAppointment generates the patient display code and cost snapshot, then
// writes the new record. The returned token resolves when the insert event
// comes back through the feed.
func (g *Gateway) AddAppointment(ctx context.Context, req *model.CreateAppointmentRequest) (string, error) {
	apt := &model.Appointment{
		PatientCode:  GeneratePatientCode(),
		PatientName:  req.PatientName,
		Date:         req.Date,
		Time:         req.Time,
		Category:     req.Category,
		Physician:    req.Physician,
		Room:         req.Room,
		Reports:      req.Reports,
		Cost:         req.Cost,
		PatientImage: req.PatientImage,
		Status:       model.AppointmentStatusWaiting,
	}

	// Cost not supplied: snapshot the service's base cost as of now. The
	// snapshot is never recomputed when the service price changes later.
	if apt.Cost == 0 && apt.Category != "" {
		if svc, ok := g.reg.ServiceByName(apt.Category); ok {
			apt.Cost = svc.BaseCost
		}
	}

	token := uuid.NewString()
	g.pending.track(token)

	if err := g.appointments.Insert(ctx, apt, token); err != nil {
		g.pending.forget(token)
		g.writeFailed("add_appointment", err)
		return "", apperrors.NewWriteFailure("appointment", err)
	}

	return token, nil
}

// UpdateAppointment is a full-record overwrite: last writer wins, no version
// check between concurrent editors.
func (g *Gateway) UpdateAppointment(ctx context.Context, id uuid.UUID, req *model.UpdateAppointmentRequest) (string, error) {
	status := req.Status
	if status == "" {
		status = model.AppointmentStatusWaiting
	}

	apt := &model.Appointment{
		ID:           id,
		PatientName:  req.PatientName,
		Date:         req.Date,
		Time:         req.Time,
		Category:     req.Category,
		Physician:    req.Physician,
		Room:         req.Room,
		Reports:      req.Reports,
		Cost:         req.Cost,
		Status:       status,
		Notes:        req.Notes,
		PatientImage: req.PatientImage,
	}

	// Preserve the existing patient code and creation time; the overwrite
	// request does not carry them.
	for _, existing := range g.reg.Appointments() {
		if existing.ID == id {
			apt.PatientCode = existing.PatientCode
			apt.CreatedAt = existing.CreatedAt
			break
		}
	}

	token := uuid.NewString()
	g.pending.track(token)

	if err := g.appointments.Update(ctx, apt, token); err != nil {
		g.pending.forget(token)
		g.writeFailed("update_appointment", err)
		return "", apperrors.NewWriteFailure("appointment", err)
	}

	return token, nil
}

func (g *Gateway) RemoveAppointment(ctx context.Context, id uuid.UUID) (string, error) {
	token := uuid.NewString()
	g.pending.track(token)

	if err := g.appointments.Delete(ctx, id, token); err != nil {
		g.pending.forget(token)
		g.writeFailed("remove_appointment", err)
		return "", apperrors.NewWriteFailure("appointment", err)
	}

	return token, nil
}

func (g *Gateway) AddService(ctx context.Context, name string, baseCost float64) (string, error) {
	svc := &model.MedicalService{
		Name:     name,
		BaseCost: baseCost,
	}

	token := uuid.NewString()
	g.pending.track(token)

	if err := g.services.Insert(ctx, svc, token); err != nil {
		g.pending.forget(token)
		g.writeFailed("add_service", err)
		return "", apperrors.NewWriteFailure("service", err)
	}

	return token, nil
}

func (g *Gateway) RemoveService(ctx context.Context, id uuid.UUID) (string, error) {
	token := uuid.NewString()
	g.pending.track(token)

	if err := g.services.Delete(ctx, id, token); err != nil {
		g.pending.forget(token)
		g.writeFailed("remove_service", err)
		return "", apperrors.NewWriteFailure("service", err)
	}

	return token, nil
}

// SetWorkDayActive flips the shared singleton flag. Concurrent writers race
// last-writer-wins, same as every other mutation.
func (g *Gateway) SetWorkDayActive(ctx context.Context, active bool) (string, error) {
	token := uuid.NewString()
	g.pending.track(token)

	if err := g.clinicState.Set(ctx, strconv.FormatBool(active), token); err != nil {
		g.pending.forget(token)
		g.writeFailed("set_work_day", err)
		return "", apperrors.NewWriteFailure("clinic state", err)
	}

	return token, nil
}

func (g *Gateway) writeFailed(op string, err error) {
	g.metrics.WriteFailures.WithLabelValues(op).Inc()
	g.logger.Error(err, "mutation rejected by store", "operation", op)
}

// GeneratePatientCode produces the front-desk display code. It is not
// globally unique; collisions are possible and not detected.
func GeneratePatientCode() string {
	return fmt.Sprintf("PAT-%04d", 1000+rand.Intn(9000))
}
