package model

import "time"

// WorkDayStateKey is the fixed id of the single clinic_state row shared by all
// sessions.
const WorkDayStateKey = "isWorkDayActive"

// ClinicState is a string-valued key/value row. The work-day flag is stored as
// a string; only the exact literal "true" reads back as an active work day.
type ClinicState struct {
	ID        string    `db:"id" json:"id"`
	Value     string    `db:"value" json:"value"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (s *ClinicState) Active() bool {
	return s.Value == "true"
}

type SetWorkDayRequest struct {
	Active bool `json:"active"`
}
