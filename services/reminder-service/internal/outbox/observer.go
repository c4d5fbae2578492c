package outbox

import (
	"context"
	"log/slog"

	"github.com/carepulse/portal/services/reminder-service/internal/dispatcher"
)

type Appender interface {
	Append(ctx context.Context, evt Event) error
}

// Observer records every dispatcher send outcome as an outbox event. Write
// failures are logged and never fail the tick.
type Observer struct {
	out    Appender
	logger *slog.Logger
}

func NewObserver(out Appender, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{out: out, logger: logger}
}

func (o *Observer) Observe(ctx context.Context, ev dispatcher.Event) {
	evt, err := FromDispatch(ev)
	if err != nil {
		o.logger.Error("encode reminder event failed", "appointment_id", ev.Appointment.ID, "err", err)
		return
	}
	if err := o.out.Append(ctx, evt); err != nil {
		o.logger.Error("outbox write failed",
			"appointment_id", ev.Appointment.ID,
			"event_type", evt.EventType,
			"err", err,
		)
	}
}
