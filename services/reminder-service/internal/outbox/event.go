package outbox

import (
	"encoding/json"
	"time"

	"github.com/carepulse/portal/services/reminder-service/internal/dispatcher"
)

// The Kafka topic name equals EventType.
const (
	EventReminderSent     = "reminder.sent.v1"
	EventReminderLinkSent = "reminder.link_sent.v1"
	EventReminderFailed   = "reminder.failed.v1"

	AggregateAppointment = "appointment"
)

// Event is the domain event envelope written to the outbox table.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

type ReminderPayload struct {
	AppointmentID    string    `json:"appointment_id"`
	PatientID        string    `json:"patient_id"`
	Kind             string    `json:"kind"`
	Tone             string    `json:"tone"`
	MinutesRemaining int       `json:"minutes_remaining"`
	CountdownText    string    `json:"countdown_text"`
	MeetingLink      string    `json:"meeting_link,omitempty"`
	Provider         string    `json:"provider,omitempty"`
	MessageID        string    `json:"message_id,omitempty"`
	Error            string    `json:"error,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// FromDispatch maps a send outcome onto its outbox event.
func FromDispatch(ev dispatcher.Event) (Event, error) {
	eventType := EventReminderSent
	switch {
	case ev.Failed():
		eventType = EventReminderFailed
	case ev.Kind == dispatcher.EventLink:
		eventType = EventReminderLinkSent
	}

	payload := ReminderPayload{
		AppointmentID:    ev.Appointment.ID,
		PatientID:        ev.Appointment.PatientID,
		Kind:             string(ev.Kind),
		Tone:             string(ev.Tone),
		MinutesRemaining: ev.Countdown.TotalMinutes,
		CountdownText:    ev.Countdown.Text,
		MeetingLink:      ev.MeetingLink,
		Provider:         ev.Receipt.Provider,
		MessageID:        ev.Receipt.MessageID,
		OccurredAt:       ev.At.UTC(),
	}
	if ev.Err != nil {
		payload.Error = ev.Err.Error()
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: AggregateAppointment,
		AggregateID:   ev.Appointment.ID,
		EventType:     eventType,
		Payload:       raw,
	}, nil
}
