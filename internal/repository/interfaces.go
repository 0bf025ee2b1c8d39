package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/zenithmed/registry-api/internal/model"
)

// Write operations carry the origin correlation token of the mutation that
// issued them; it is copied onto the staged change event so the writing
// session can recognize its own echo.

type AppointmentRepository interface {
	// List returns all appointments newest-created-first.
	List(ctx context.Context) ([]*model.Appointment, error)
	Insert(ctx context.Context, apt *model.Appointment, origin string) error
	Update(ctx context.Context, apt *model.Appointment, origin string) error
	Delete(ctx context.Context, id uuid.UUID, origin string) error
}

type ServiceRepository interface {
	List(ctx context.Context) ([]*model.MedicalService, error)
	Insert(ctx context.Context, svc *model.MedicalService, origin string) error
	Delete(ctx context.Context, id uuid.UUID, origin string) error
}

type ClinicStateRepository interface {
	// Get returns the singleton work-day row.
	Get(ctx context.Context) (*model.ClinicState, error)
	Set(ctx context.Context, value string, origin string) error
}

type OutboxRepository interface {
	// ClaimPending atomically claims up to limit staged events, oldest first.
	ClaimPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}
