// Package notify turns a due reminder into an email or SMS.
package notify

import (
	"context"

	"github.com/carepulse/portal/services/reminder-service/internal/countdown"
	"github.com/carepulse/portal/services/reminder-service/internal/model"
	"github.com/carepulse/portal/services/reminder-service/internal/policy"
)

type Request struct {
	Appointment model.Appointment
	Countdown   countdown.Countdown
	Policy      policy.Policy
	Tone        countdown.Tone
	// LinkOnly marks the single meeting-link message sent to remote patients
	// who turned recurring reminders off.
	LinkOnly    bool
	MeetingLink string
}

type Receipt struct {
	MessageID string
	Provider  string
}

// Sender delivers one reminder. Any error is a transient failure: the
// appointment stays eligible and is retried on a later tick.
type Sender interface {
	Send(ctx context.Context, req Request) (Receipt, error)
}
