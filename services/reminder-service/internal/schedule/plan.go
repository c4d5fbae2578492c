// Package schedule decides when reminders for an appointment should go out.
package schedule

import (
	"time"

	"github.com/carepulse/portal/services/reminder-service/internal/countdown"
	"github.com/carepulse/portal/services/reminder-service/internal/model"
	"github.com/carepulse/portal/services/reminder-service/internal/policy"
)

// PlannedReminder is one projected emission. A Deferred entry is
// informational: it marks when the lead window opens and is never sent.
type PlannedReminder struct {
	SendAt           time.Time
	MinutesRemaining int
	Urgent           bool
	Deferred         bool
}

// Plan projects the reminders an appointment would receive from now on if
// every tick sent on time. It is a preview only; the dispatcher re-evaluates
// IsDue against the wall clock on every tick.
func Plan(appt model.Appointment, p policy.Policy, now time.Time) []PlannedReminder {
	if countdown.Remaining(now, appt.ScheduledAt).Passed {
		return nil
	}

	windowStart := LeadWindowStart(appt.ScheduledAt, p.LeadHours)
	if now.Before(windowStart) {
		remaining := minutesBetween(windowStart, appt.ScheduledAt)
		return []PlannedReminder{{
			SendAt:           windowStart,
			MinutesRemaining: remaining,
			Urgent:           remaining <= p.UrgentThresholdMinutes,
			Deferred:         true,
		}}
	}

	step := p.Frequency()
	if step <= 0 {
		step = policy.Defaults().Frequency()
	}

	var planned []PlannedReminder
	for sendAt := now; sendAt.Before(appt.ScheduledAt); sendAt = sendAt.Add(step) {
		remaining := minutesBetween(sendAt, appt.ScheduledAt)
		planned = append(planned, PlannedReminder{
			SendAt:           sendAt,
			MinutesRemaining: remaining,
			Urgent:           remaining <= p.UrgentThresholdMinutes,
		})
	}
	return planned
}

func LeadWindowStart(scheduledAt time.Time, leadHours int) time.Time {
	return scheduledAt.Add(-time.Duration(leadHours) * time.Hour)
}

func minutesBetween(from, to time.Time) int {
	return int(to.Sub(from) / time.Minute)
}
