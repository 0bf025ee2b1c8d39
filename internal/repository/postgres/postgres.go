package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/zenithmed/registry-api/internal/model"
)

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

func NewDB(cfg DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// stageEvent inserts a change event row inside the same transaction as the
// write it describes, so the feed never announces an uncommitted change and
// never misses a committed one.
func stageEvent(ctx context.Context, tx *sqlx.Tx, collection model.Collection, kind model.EventKind, newRec, oldRec interface{}, origin string) error {
	evt := model.ChangeEvent{
		Collection:  collection,
		Kind:        kind,
		Origin:      origin,
		CommittedAt: time.Now(),
	}

	if newRec != nil {
		data, err := json.Marshal(newRec)
		if err != nil {
			return fmt.Errorf("failed to marshal new record: %w", err)
		}
		evt.New = data
	}
	if oldRec != nil {
		data, err := json.Marshal(oldRec)
		if err != nil {
			return fmt.Errorf("failed to marshal old record: %w", err)
		}
		evt.Old = data
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}

	query := `
		INSERT INTO outbox_events (
			id, collection, kind, payload, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	now := time.Now()
	_, err = tx.ExecContext(ctx, query,
		uuid.New(),
		collection,
		kind,
		payload,
		model.OutboxStatusPending,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to stage change event: %w", err)
	}
	return nil
}
