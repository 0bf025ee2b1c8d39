package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusWaiting    AppointmentStatus = "Waiting"
	AppointmentStatusInProgress AppointmentStatus = "In Progress"
	AppointmentStatusCompleted  AppointmentStatus = "Completed"
	AppointmentStatusCancelled  AppointmentStatus = "Cancelled"
)

// Appointment is one scheduled or completed clinical visit. Category and Cost
// are snapshots of the service name and base cost at creation/edit time; they
// are never recomputed when the service catalog changes.
type Appointment struct {
	ID           uuid.UUID         `db:"id" json:"id"`
	PatientCode  string            `db:"patient_code" json:"patientId"`
	PatientName  string            `db:"patient_name" json:"patientName"`
	Date         string            `db:"visit_date" json:"date"`
	Time         string            `db:"visit_time" json:"time"`
	Category     string            `db:"category" json:"category"`
	Physician    string            `db:"physician" json:"physician"`
	Room         string            `db:"room" json:"room"`
	Reports      string            `db:"reports" json:"reports"`
	Cost         float64           `db:"cost" json:"cost"`
	Status       AppointmentStatus `db:"status" json:"status"`
	Notes        *string           `db:"notes" json:"notes,omitempty"`
	PatientImage *string           `db:"patient_image" json:"patientImage,omitempty"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time         `db:"updated_at" json:"updated_at"`
}

type CreateAppointmentRequest struct {
	PatientName  string  `json:"patientName" binding:"required" validate:"required,max=200"`
	Date         string  `json:"date" binding:"required" validate:"required"`
	Time         string  `json:"time" binding:"required" validate:"required"`
	Category     string  `json:"category" validate:"max=100"`
	Physician    string  `json:"physician" validate:"max=200"`
	Room         string  `json:"room" validate:"max=50"`
	Reports      string  `json:"reports" validate:"max=4000"`
	Cost         float64 `json:"cost" validate:"gte=0"`
	PatientImage *string `json:"patientImage,omitempty"`
}

type UpdateAppointmentRequest struct {
	PatientName  string            `json:"patientName" binding:"required" validate:"required,max=200"`
	Date         string            `json:"date" binding:"required" validate:"required"`
	Time         string            `json:"time" binding:"required" validate:"required"`
	Category     string            `json:"category" validate:"max=100"`
	Physician    string            `json:"physician" validate:"max=200"`
	Room         string            `json:"room" validate:"max=50"`
	Reports      string            `json:"reports" validate:"max=4000"`
	Cost         float64           `json:"cost" validate:"gte=0"`
	Status       AppointmentStatus `json:"status" validate:"omitempty,oneof=Waiting 'In Progress' Completed Cancelled"`
	Notes        *string           `json:"notes,omitempty"`
	PatientImage *string           `json:"patientImage,omitempty"`
}
