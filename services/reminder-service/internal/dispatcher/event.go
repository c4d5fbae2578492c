package dispatcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/carepulse/portal/services/reminder-service/internal/countdown"
	"github.com/carepulse/portal/services/reminder-service/internal/model"
	"github.com/carepulse/portal/services/reminder-service/internal/notify"
	"github.com/carepulse/portal/services/reminder-service/internal/policy"
)

type EventKind string

const (
	EventReminder EventKind = "reminder"
	EventLink     EventKind = "link"
)

// Event describes one send attempt. It carries everything the UI needs to
// show a toast for a successful send.
type Event struct {
	Kind        EventKind
	Appointment model.Appointment
	Countdown   countdown.Countdown
	Policy      policy.Policy
	Tone        countdown.Tone
	MeetingLink string
	Receipt     notify.Receipt
	At          time.Time
	Err         error
}

func (e Event) Failed() bool {
	return e.Err != nil
}

type Observer interface {
	Observe(ctx context.Context, ev Event)
}

type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) Observe(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// Observers fans an event out in order.
type Observers []Observer

func (o Observers) Observe(ctx context.Context, ev Event) {
	for _, obs := range o {
		if obs != nil {
			obs.Observe(ctx, ev)
		}
	}
}

// Report summarises one tick.
type Report struct {
	Evaluated int `json:"evaluated"`
	Sent      int `json:"sent"`
	LinkSent  int `json:"link_sent"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Recorder receives tick-level measurements.
type Recorder interface {
	TickCompleted(report Report, took time.Duration, err error)
	TickSkipped()
}

type nopRecorder struct{}

func (nopRecorder) TickCompleted(Report, time.Duration, error) {}
func (nopRecorder) TickSkipped()                               {}

// NewLogObserver logs successful sends. Failures are already logged where
// they happen.
func NewLogObserver(logger *slog.Logger) Observer {
	return ObserverFunc(func(_ context.Context, ev Event) {
		if ev.Failed() {
			return
		}
		logger.Info("reminder sent",
			"appointment_id", ev.Appointment.ID,
			"kind", string(ev.Kind),
			"tone", string(ev.Tone),
			"countdown", ev.Countdown.Text,
			"provider", ev.Receipt.Provider,
			"message_id", ev.Receipt.MessageID,
		)
	})
}
