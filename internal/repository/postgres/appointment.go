package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/zenithmed/registry-api/internal/model"
	"github.com/zenithmed/registry-api/internal/repository"
)

type appointmentRepository struct {
	db *sqlx.DB
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{db: db}
}

func (r *appointmentRepository) List(ctx context.Context) ([]*model.Appointment, error) {
	query := `
		SELECT id, patient_code, patient_name, visit_date, visit_time,
			   category, physician, room, reports, cost, status, notes,
			   patient_image, created_at, updated_at
		FROM appointments
		ORDER BY created_at DESC
	`
	var appointments []*model.Appointment
	err := r.db.SelectContext(ctx, &appointments, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) Insert(ctx context.Context, apt *model.Appointment, origin string) error {
	query := `
		INSERT INTO appointments (
			id, patient_code, patient_name, visit_date, visit_time,
			category, physician, room, reports, cost, status, notes,
			patient_image, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	apt.ID = uuid.New()
	apt.CreatedAt = time.Now()
	apt.UpdatedAt = apt.CreatedAt

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, query,
		apt.ID,
		apt.PatientCode,
		apt.PatientName,
		apt.Date,
		apt.Time,
		apt.Category,
		apt.Physician,
		apt.Room,
		apt.Reports,
		apt.Cost,
		apt.Status,
		apt.Notes,
		apt.PatientImage,
		apt.CreatedAt,
		apt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}

	if err := stageEvent(ctx, tx, model.CollectionAppointments, model.EventInsert, apt, nil, origin); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *appointmentRepository) Update(ctx context.Context, apt *model.Appointment, origin string) error {
	query := `
		UPDATE appointments
		SET patient_code = $1, patient_name = $2, visit_date = $3, visit_time = $4,
			category = $5, physician = $6, room = $7, reports = $8, cost = $9,
			status = $10, notes = $11, patient_image = $12, updated_at = $13
		WHERE id = $14
	`
	apt.UpdatedAt = time.Now()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, query,
		apt.PatientCode,
		apt.PatientName,
		apt.Date,
		apt.Time,
		apt.Category,
		apt.Physician,
		apt.Room,
		apt.Reports,
		apt.Cost,
		apt.Status,
		apt.Notes,
		apt.PatientImage,
		apt.UpdatedAt,
		apt.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("appointment not found")
	}

	if err := stageEvent(ctx, tx, model.CollectionAppointments, model.EventUpdate, apt, nil, origin); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *appointmentRepository) Delete(ctx context.Context, id uuid.UUID, origin string) error {
	query := `
		DELETE FROM appointments
		WHERE id = $1
	`
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("appointment not found")
	}

	old := map[string]interface{}{"id": id}
	if err := stageEvent(ctx, tx, model.CollectionAppointments, model.EventDelete, nil, old, origin); err != nil {
		return err
	}

	return tx.Commit()
}
