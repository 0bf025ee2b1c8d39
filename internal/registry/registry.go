package registry

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/zenithmed/registry-api/internal/model"
	"github.com/zenithmed/registry-api/pkg/logger"
	"github.com/zenithmed/registry-api/pkg/metrics"
)

// Registry is the in-memory mirror of the store collections. It is
// authoritative only between change events: every entry's validity window
// ends the instant a newer event for that id arrives. Reads return copies;
// the only writers are InstallX (bulk load) and Apply (event application).
type Registry struct {
	mu            sync.RWMutex
	appointments  []*model.Appointment
	services      []*model.MedicalService
	workDayActive bool

	logger  *logger.Logger
	metrics *metrics.Metrics
}

func New(log *logger.Logger, m *metrics.Metrics) *Registry {
	return &Registry{
		logger:  log,
		metrics: m,
	}
}

// InstallAppointments replaces the appointment mirror with a bulk load
// result. The slice is expected newest-created-first.
func (r *Registry) InstallAppointments(appointments []*model.Appointment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appointments = append([]*model.Appointment(nil), appointments...)
}

func (r *Registry) InstallServices(services []*model.MedicalService) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services = append([]*model.MedicalService(nil), services...)
}

func (r *Registry) InstallWorkDayActive(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workDayActive = active
}

// Appointments returns a snapshot of the appointment mirror, newest first.
func (r *Registry) Appointments() []*model.Appointment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*model.Appointment(nil), r.appointments...)
}

func (r *Registry) Services() []*model.MedicalService {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*model.MedicalService(nil), r.services...)
}

// ServiceByName finds a service by its display name, the linking key
// appointments use for their category snapshot.
func (r *Registry) ServiceByName(name string) (*model.MedicalService, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, svc := range r.services {
		if svc.Name == name {
			copied := *svc
			return &copied, true
		}
	}
	return nil, false
}

func (r *Registry) WorkDayActive() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.workDayActive
}

// Apply folds one change event into the mirror. Events must be applied in
// receipt order; the method itself never reorders or buffers.
func (r *Registry) Apply(evt *model.ChangeEvent) error {
	switch evt.Collection {
	case model.CollectionAppointments:
		return r.applyAppointment(evt)
	case model.CollectionServices:
		return r.applyService(evt)
	case model.CollectionClinicState:
		return r.applyClinicState(evt)
	default:
		r.drop(evt.Collection, "unknown_collection")
		return fmt.Errorf("unknown collection %q", evt.Collection)
	}
}

func (r *Registry) applyAppointment(evt *model.ChangeEvent) error {
	switch evt.Kind {
	case model.EventInsert, model.EventUpdate:
		var apt model.Appointment
		if err := json.Unmarshal(evt.New, &apt); err != nil {
			r.drop(evt.Collection, "malformed_payload")
			return fmt.Errorf("failed to decode appointment: %w", err)
		}

		r.mu.Lock()
		defer r.mu.Unlock()

		for i, existing := range r.appointments {
			if existing.ID == apt.ID {
				// replace in place, list position preserved
				r.appointments[i] = &apt
				r.applied(evt)
				return nil
			}
		}

		if evt.Kind == model.EventUpdate {
			// The update raced ahead of a record this session never loaded.
			// Dropping (not buffering) is the documented policy; the counter
			// makes the race visible to operators.
			r.drop(evt.Collection, "unknown_id")
			r.logger.Debug("dropped update for unknown appointment", "id", apt.ID.String())
			return nil
		}

		r.appointments = append([]*model.Appointment{&apt}, r.appointments...)
		r.applied(evt)
		return nil

	case model.EventDelete:
		id, err := recordID(evt)
		if err != nil {
			r.drop(evt.Collection, "malformed_payload")
			return err
		}

		r.mu.Lock()
		defer r.mu.Unlock()

		for i, existing := range r.appointments {
			if existing.ID == id {
				r.appointments = append(r.appointments[:i], r.appointments[i+1:]...)
				break
			}
		}
		// absent id is a no-op, delete is idempotent
		r.applied(evt)
		return nil

	default:
		r.drop(evt.Collection, "unknown_kind")
		return fmt.Errorf("unknown event kind %q", evt.Kind)
	}
}

func (r *Registry) applyService(evt *model.ChangeEvent) error {
	switch evt.Kind {
	case model.EventInsert, model.EventUpdate:
		var svc model.MedicalService
		if err := json.Unmarshal(evt.New, &svc); err != nil {
			r.drop(evt.Collection, "malformed_payload")
			return fmt.Errorf("failed to decode service: %w", err)
		}

		r.mu.Lock()
		defer r.mu.Unlock()

		for i, existing := range r.services {
			if existing.ID == svc.ID {
				r.services[i] = &svc
				r.applied(evt)
				return nil
			}
		}

		// service list order is not meaningful, append is fine
		r.services = append(r.services, &svc)
		r.applied(evt)
		return nil

	case model.EventDelete:
		id, err := recordID(evt)
		if err != nil {
			r.drop(evt.Collection, "malformed_payload")
			return err
		}

		r.mu.Lock()
		defer r.mu.Unlock()

		for i, existing := range r.services {
			if existing.ID == id {
				r.services = append(r.services[:i], r.services[i+1:]...)
				break
			}
		}
		r.applied(evt)
		return nil

	default:
		r.drop(evt.Collection, "unknown_kind")
		return fmt.Errorf("unknown event kind %q", evt.Kind)
	}
}

func (r *Registry) applyClinicState(evt *model.ChangeEvent) error {
	var state model.ClinicState
	if err := json.Unmarshal(evt.New, &state); err != nil {
		r.drop(evt.Collection, "malformed_payload")
		return fmt.Errorf("failed to decode clinic state: %w", err)
	}

	if state.ID != model.WorkDayStateKey {
		r.drop(evt.Collection, "unknown_key")
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.workDayActive = state.Active()
	r.applied(evt)
	return nil
}

// recordID extracts the record id from an event, preferring the old record
// for deletes.
func recordID(evt *model.ChangeEvent) (uuid.UUID, error) {
	raw := evt.Old
	if len(raw) == 0 {
		raw = evt.New
	}

	var rec struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return uuid.Nil, fmt.Errorf("failed to extract record id: %w", err)
	}
	return rec.ID, nil
}

func (r *Registry) applied(evt *model.ChangeEvent) {
	if r.metrics != nil {
		r.metrics.EventsApplied.WithLabelValues(string(evt.Collection), string(evt.Kind)).Inc()
	}
}

func (r *Registry) drop(collection model.Collection, reason string) {
	if r.metrics != nil {
		r.metrics.EventsDropped.WithLabelValues(string(collection), reason).Inc()
	}
}
