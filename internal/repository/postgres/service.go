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

type serviceRepository struct {
	db *sqlx.DB
}

func NewServiceRepository(db *sqlx.DB) repository.ServiceRepository {
	return &serviceRepository{db: db}
}

func (r *serviceRepository) List(ctx context.Context) ([]*model.MedicalService, error) {
	query := `
		SELECT id, name, base_cost, created_at, updated_at
		FROM services
	`
	var services []*model.MedicalService
	err := r.db.SelectContext(ctx, &services, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	return services, nil
}

func (r *serviceRepository) Insert(ctx context.Context, svc *model.MedicalService, origin string) error {
	query := `
		INSERT INTO services (id, name, base_cost, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	svc.ID = uuid.New()
	svc.CreatedAt = time.Now()
	svc.UpdatedAt = svc.CreatedAt

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, query,
		svc.ID,
		svc.Name,
		svc.BaseCost,
		svc.CreatedAt,
		svc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	if err := stageEvent(ctx, tx, model.CollectionServices, model.EventInsert, svc, nil, origin); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *serviceRepository) Delete(ctx context.Context, id uuid.UUID, origin string) error {
	// Removal does not cascade to appointments: their category text is a
	// historical snapshot.
	query := `
		DELETE FROM services
		WHERE id = $1
	`
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete service: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("service not found")
	}

	old := map[string]interface{}{"id": id}
	if err := stageEvent(ctx, tx, model.CollectionServices, model.EventDelete, nil, old, origin); err != nil {
		return err
	}

	return tx.Commit()
}
