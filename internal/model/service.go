package model

import (
	"time"

	"github.com/google/uuid"
)

// MedicalService is a billable clinical service category. Appointments link to
// it by Name, not ID, so renaming or removing a service leaves existing
// appointments with their historical category text.
type MedicalService struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	BaseCost  float64   `db:"base_cost" json:"baseCost"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type CreateServiceRequest struct {
	Name     string  `json:"name" binding:"required" validate:"required,max=100"`
	BaseCost float64 `json:"baseCost" validate:"gte=0"`
}
