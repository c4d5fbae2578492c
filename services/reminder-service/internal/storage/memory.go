package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/carepulse/portal/services/reminder-service/internal/model"
)

// MemoryAppointments mirrors AppointmentRepository in process memory. It backs
// reminderctl's simulation and the service tests.
type MemoryAppointments struct {
	mu    sync.Mutex
	appts map[string]model.Appointment
}

func NewMemoryAppointments(appts ...model.Appointment) *MemoryAppointments {
	m := &MemoryAppointments{appts: map[string]model.Appointment{}}
	for _, a := range appts {
		m.appts[a.ID] = a
	}
	return m
}

func (m *MemoryAppointments) ListScheduled(_ context.Context) ([]model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Appointment
	for _, a := range m.appts {
		if a.Status == model.StatusScheduled {
			out = append(out, cloneAppointment(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ScheduledAt.Before(out[j].ScheduledAt)
	})
	return out, nil
}

func (m *MemoryAppointments) CountScheduled(ctx context.Context) (int, error) {
	appts, err := m.ListScheduled(ctx)
	return len(appts), err
}

func (m *MemoryAppointments) Get(_ context.Context, id string) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return model.Appointment{}, ErrNotFound
	}
	return cloneAppointment(a), nil
}

func (m *MemoryAppointments) RecordReminderSent(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return ErrNotFound
	}
	if a.LastReminderSentAt == nil || at.After(*a.LastReminderSentAt) {
		t := at
		a.LastReminderSentAt = &t
	}
	m.appts[id] = a
	return nil
}

func (m *MemoryAppointments) MarkLinkSent(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok || a.OneTimeLinkSentAt != nil {
		return false, nil
	}
	t := at
	a.OneTimeLinkSentAt = &t
	m.appts[id] = a
	return true, nil
}

func (m *MemoryAppointments) TransitionStatus(_ context.Context, id string, to model.Status, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return false, ErrNotFound
	}
	if a.Status.Terminal() {
		return false, nil
	}
	a.Status = to
	if to == model.StatusCompleted && a.ConfirmedAt == nil {
		t := at
		a.ConfirmedAt = &t
	}
	m.appts[id] = a
	return true, nil
}

func (m *MemoryAppointments) Upsert(_ context.Context, appt model.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.appts[appt.ID]; ok {
		appt.Status = prev.Status
		appt.ReminderEnabled = prev.ReminderEnabled
		appt.LastReminderSentAt = prev.LastReminderSentAt
		appt.OneTimeLinkSentAt = prev.OneTimeLinkSentAt
		appt.ConfirmedAt = prev.ConfirmedAt
	}
	m.appts[appt.ID] = cloneAppointment(appt)
	return nil
}

func cloneAppointment(a model.Appointment) model.Appointment {
	a.LastReminderSentAt = cloneTime(a.LastReminderSentAt)
	a.OneTimeLinkSentAt = cloneTime(a.OneTimeLinkSentAt)
	a.ConfirmedAt = cloneTime(a.ConfirmedAt)
	return a
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
