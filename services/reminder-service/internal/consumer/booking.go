package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/carepulse/portal/services/reminder-service/internal/model"
	"github.com/carepulse/portal/services/reminder-service/internal/policy"
	"github.com/segmentio/kafka-go"
)

const TopicAppointmentBooked = "booking.appointment.booked.v1"

type AppointmentUpserter interface {
	Upsert(ctx context.Context, appt model.Appointment) error
}

type PolicySeeder interface {
	Seed(ctx context.Context, appointmentID string, enabled bool) (policy.Policy, bool, error)
}

type LoopStarter interface {
	EnsureRunning(ctx context.Context) bool
}

// bookedEvent accepts both the patient_* fields and the customer_* fields
// emitted by the booking service.
type bookedEvent struct {
	AppointmentID   string `json:"appointment_id"`
	PatientID       string `json:"patient_id"`
	PatientName     string `json:"patient_name"`
	PatientEmail    string `json:"patient_email"`
	PatientPhone    string `json:"patient_phone"`
	CustomerEmail   string `json:"customer_email"`
	CustomerPhone   string `json:"customer_phone"`
	ProviderName    string `json:"provider_name"`
	StartTime       string `json:"start_time"`
	Kind            string `json:"kind"`
	MeetingLink     string `json:"meeting_link"`
	ContactChannel  string `json:"contact_channel"`
	ReminderEnabled *bool  `json:"reminder_enabled"`
}

type BookingHandler struct {
	appts    AppointmentUpserter
	policies PolicySeeder
	loop     LoopStarter
	logger   *slog.Logger
}

func NewBookingHandler(appts AppointmentUpserter, policies PolicySeeder, loop LoopStarter, logger *slog.Logger) *BookingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BookingHandler{appts: appts, policies: policies, loop: loop, logger: logger}
}

// Handle returns nil for malformed payloads: they can never succeed, so
// redelivering them is pointless.
func (h *BookingHandler) Handle(ctx context.Context, msg kafka.Message) error {
	var evt bookedEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		h.logger.Error("invalid booked event", "err", err)
		return nil
	}
	appt, err := evt.appointment()
	if err != nil {
		h.logger.Error("invalid booked event", "err", err, "appointment_id", evt.AppointmentID)
		return nil
	}

	if err := h.appts.Upsert(ctx, appt); err != nil {
		return fmt.Errorf("upsert appointment %s: %w", appt.ID, err)
	}
	if _, created, err := h.policies.Seed(ctx, appt.ID, appt.ReminderEnabled); err != nil {
		return err
	} else if created {
		h.logger.Info("reminder policy seeded", "appointment_id", appt.ID, "enabled", appt.ReminderEnabled)
	}

	if h.loop != nil && h.loop.EnsureRunning(ctx) {
		h.logger.Info("reminder loop started by booking", "appointment_id", appt.ID)
	}
	return nil
}

func (e bookedEvent) appointment() (model.Appointment, error) {
	if strings.TrimSpace(e.AppointmentID) == "" {
		return model.Appointment{}, fmt.Errorf("missing appointment_id")
	}
	at, err := time.Parse(time.RFC3339, e.StartTime)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("invalid start_time: %w", err)
	}

	kind := model.Kind(e.Kind)
	if kind != model.KindRemote {
		kind = model.KindInPerson
	}
	channel := model.Channel(e.ContactChannel)
	if channel != model.ChannelSMS {
		channel = model.ChannelEmail
	}
	enabled := true
	if e.ReminderEnabled != nil {
		enabled = *e.ReminderEnabled
	}

	addr := firstNonEmpty(e.PatientEmail, e.CustomerEmail)
	if addr != "" {
		parsed, err := mail.ParseAddress(addr)
		if err != nil || strings.ContainsAny(parsed.Address, "\r\n") {
			return model.Appointment{}, fmt.Errorf("invalid patient_email %q", addr)
		}
		addr = parsed.Address
	}

	return model.Appointment{
		ID:              e.AppointmentID,
		PatientID:       e.PatientID,
		PatientName:     e.PatientName,
		PatientEmail:    addr,
		PatientPhone:    firstNonEmpty(e.PatientPhone, e.CustomerPhone),
		ProviderName:    e.ProviderName,
		ScheduledAt:     at.UTC(),
		Status:          model.StatusScheduled,
		Kind:            kind,
		MeetingLink:     e.MeetingLink,
		ContactChannel:  channel,
		ReminderEnabled: enabled,
	}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
