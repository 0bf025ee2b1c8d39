package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/zenithmed/registry-api/internal/model"
	"github.com/zenithmed/registry-api/internal/repository"
)

type clinicStateRepository struct {
	db *sqlx.DB
}

func NewClinicStateRepository(db *sqlx.DB) repository.ClinicStateRepository {
	return &clinicStateRepository{db: db}
}

func (r *clinicStateRepository) Get(ctx context.Context) (*model.ClinicState, error) {
	query := `
		SELECT id, value, updated_at
		FROM clinic_state
		WHERE id = $1
	`
	var state model.ClinicState
	err := r.db.GetContext(ctx, &state, query, model.WorkDayStateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get clinic state: %w", err)
	}
	return &state, nil
}

func (r *clinicStateRepository) Set(ctx context.Context, value string, origin string) error {
	query := `
		INSERT INTO clinic_state (id, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET value = $2, updated_at = $3
	`
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	state := &model.ClinicState{
		ID:        model.WorkDayStateKey,
		Value:     value,
		UpdatedAt: time.Now(),
	}

	_, err = tx.ExecContext(ctx, query, state.ID, state.Value, state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to set clinic state: %w", err)
	}

	if err := stageEvent(ctx, tx, model.CollectionClinicState, model.EventUpdate, state, nil, origin); err != nil {
		return err
	}

	return tx.Commit()
}
