package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Collection string

const (
	CollectionAppointments Collection = "appointments"
	CollectionServices     Collection = "services"
	CollectionClinicState  Collection = "clinic_state"
)

type EventKind string

const (
	EventInsert EventKind = "insert"
	EventUpdate EventKind = "update"
	EventDelete EventKind = "delete"
)

// ChangeEvent is one row change on a watched collection, delivered to every
// active subscriber. Origin carries the correlation token of the mutation that
// produced the change so the writing session can match its own echo; other
// sessions see a token they never issued and ignore it.
type ChangeEvent struct {
	Collection  Collection      `json:"collection"`
	Kind        EventKind       `json:"kind"`
	New         json.RawMessage `json:"new,omitempty"`
	Old         json.RawMessage `json:"old,omitempty"`
	Origin      string          `json:"origin,omitempty"`
	CommittedAt time.Time       `json:"committed_at"`
}

type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusProcessed  OutboxStatus = "processed"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// OutboxEvent is a change event staged in the same transaction as the write
// that produced it. The feed relay publishes pending rows to the broker in
// commit order, which is what gives subscribers per-collection ordering.
type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	Collection   Collection      `db:"collection" json:"collection"`
	Kind         EventKind       `db:"kind" json:"kind"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}
